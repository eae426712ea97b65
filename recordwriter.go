package bcf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/carbocation/pfx"
)

// Writer produces a packed record stream readable by NewBCFP.
type Writer struct {
	Header *Header

	file   *os.File // nil unless created by Create
	body   io.WriteCloser
	writer *bufio.Writer

	// Cached values
	buf []byte
}

// Create writes a new stream to path.
func Create(path string, h *Header, c Compression) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	w, err := NewWriter(f, h, c)
	if err != nil {
		f.Close()
		return nil, pfx.Err(err)
	}
	w.file = f
	return w, nil
}

// NewWriter writes the preamble and header to dst. Close must be called to
// flush the stream; it does not close dst.
func NewWriter(dst io.Writer, h *Header, c Compression) (*Writer, error) {
	preamble := make([]byte, preambleLength)
	copy(preamble[offsetMagicNumber:], MagicNumber)
	preamble[offsetVersion] = StreamVersion
	preamble[offsetCompression] = uint8(c)
	if _, err := dst.Write(preamble); err != nil {
		return nil, pfx.Err(err)
	}

	body, err := compressingWriter(dst, c)
	if err != nil {
		return nil, pfx.Err(err)
	}
	w := &Writer{
		Header: h,
		body:   body,
		writer: bufio.NewWriter(body),
	}

	header := encodeHeader(h)
	w.buf = appendUint32(w.buf[:0], uint32(len(header)))
	w.buf = append(w.buf, header...)
	if _, err := w.writer.Write(w.buf); err != nil {
		return nil, pfx.Err(err)
	}

	return w, nil
}

// Write appends r to the stream. Blocks of r that were never unpacked are
// copied through as read, so a record whose INFO or FORMAT block cannot be
// decoded is still written unchanged.
func (w *Writer) Write(r *Record) error {
	nInfo, nFormat := len(r.Info), len(r.Format)
	if r.packed&UnpackInfo != 0 {
		nInfo = r.nInfoRaw
	}
	if r.packed&UnpackFormat != 0 {
		nFormat = r.nFmtRaw
	}
	if nInfo > 0xFFFF || nFormat > 0xFFFF || len(r.Alleles) > 0xFFFF {
		return pfx.Err(fmt.Errorf("%s has too many fields or alleles to be written", r.Site(w.Header)))
	}

	if r.NSamples != len(w.Header.Samples) {
		return pfx.Err(fmt.Errorf("%s has %d samples but the header declares %d", r.Site(w.Header), r.NSamples, len(w.Header.Samples)))
	}

	// The preamble is filled in once the block lengths are known
	var zero [recordPreambleLength]byte
	w.buf = append(w.buf[:0], zero[:]...)

	start := len(w.buf)
	w.buf = appendUint32(w.buf, uint32(r.RID))
	w.buf = appendUint32(w.buf, uint32(r.Pos))
	w.buf = appendStr16(w.buf, r.ID)
	w.buf = appendUint16(w.buf, uint16(len(r.Alleles)))
	for _, a := range r.Alleles {
		w.buf = appendStr32(w.buf, a)
	}
	lSite := len(w.buf) - start

	start = len(w.buf)
	if r.packed&UnpackInfo != 0 {
		w.buf = append(w.buf, r.infoBuf...)
	} else {
		for _, f := range r.Info {
			if want := f.Len * f.Type.Size(); len(f.Data) != want {
				return pfx.Err(fmt.Errorf("%s: INFO/%s holds %d bytes, expected %d", r.Site(w.Header), w.Header.Name(f.Key), len(f.Data), want))
			}
			w.buf = appendUint32(w.buf, uint32(int32(f.Key)))
			w.buf = append(w.buf, uint8(f.Type))
			w.buf = appendUint32(w.buf, uint32(f.Len))
			w.buf = append(w.buf, f.Data...)
		}
	}
	lInfo := len(w.buf) - start

	start = len(w.buf)
	if r.packed&UnpackFormat != 0 {
		w.buf = append(w.buf, r.fmtBuf...)
	} else {
		for _, f := range r.Format {
			if want := r.NSamples * f.Stride(); len(f.Data) != want {
				return pfx.Err(fmt.Errorf("%s: FORMAT/%s holds %d bytes, expected %d", r.Site(w.Header), w.Header.Name(f.Key), len(f.Data), want))
			}
			w.buf = appendUint32(w.buf, uint32(int32(f.Key)))
			w.buf = append(w.buf, uint8(f.Type))
			w.buf = appendUint32(w.buf, uint32(f.N))
			w.buf = append(w.buf, f.Data...)
		}
	}
	lFmt := len(w.buf) - start

	binary.LittleEndian.PutUint32(w.buf[0:4], uint32(lSite))
	binary.LittleEndian.PutUint32(w.buf[4:8], uint32(lInfo))
	binary.LittleEndian.PutUint32(w.buf[8:12], uint32(lFmt))
	binary.LittleEndian.PutUint16(w.buf[12:14], uint16(nInfo))
	binary.LittleEndian.PutUint16(w.buf[14:16], uint16(nFormat))

	if _, err := w.writer.Write(w.buf); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// Close flushes buffered records and the compressor, then closes the file
// if the Writer was made by Create.
func (w *Writer) Close() error {
	err := w.writer.Flush()
	if cerr := w.body.Close(); err == nil {
		err = cerr
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return pfx.Err(err)
	}
	return nil
}
