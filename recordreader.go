package bcf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/carbocation/pfx"
)

// Every record starts with a fixed preamble: the lengths of the site, INFO
// and FORMAT blocks followed by the number of INFO and FORMAT fields.
const recordPreambleLength = 4 + 4 + 4 + 2 + 2

var errTruncated = errors.New("block ends early")

type RecordReader struct {
	RecordsSeen uint32
	b           *BCFP
	err         error

	// Cached values
	preamble []byte
}

// NewRecordReader iterates over the records following the header. Records
// are returned with their INFO and FORMAT blocks still packed.
func (b *BCFP) NewRecordReader() *RecordReader {
	return &RecordReader{
		b:        b,
		preamble: make([]byte, recordPreambleLength),
	}
}

func (rr *RecordReader) Error() error {
	return rr.err
}

// Read returns the next record, or nil at the end of the stream or on
// error. Check Error after Read returns nil.
func (rr *RecordReader) Read() *Record {
	if rr.err != nil {
		return nil
	}

	r, err := rr.readRecord()
	if err != nil {
		var de *DataError
		switch {
		case err == io.EOF:
		case errors.As(err, &de):
			rr.err = err
		default:
			rr.err = pfx.Err(err)
		}
		return nil
	}

	rr.RecordsSeen++
	return r
}

func (rr *RecordReader) readRecord() (*Record, error) {
	if _, err := io.ReadFull(rr.b.reader, rr.preamble); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, &DataError{Site: fmt.Sprintf("record %d", rr.RecordsSeen+1), Detail: "truncated record preamble"}
		}
		return nil, err
	}

	lSite := binary.LittleEndian.Uint32(rr.preamble[0:4])
	lInfo := binary.LittleEndian.Uint32(rr.preamble[4:8])
	lFmt := binary.LittleEndian.Uint32(rr.preamble[8:12])

	// The body grows only as bytes arrive, so a corrupt length cannot force
	// a huge allocation. The INFO and FORMAT blocks are kept as sub-slices
	// until the record is unpacked.
	total := int64(lSite) + int64(lInfo) + int64(lFmt)
	var body bytes.Buffer
	if n, err := io.CopyN(&body, rr.b.reader, total); err != nil {
		return nil, &DataError{Site: fmt.Sprintf("record %d", rr.RecordsSeen+1), Detail: fmt.Sprintf("truncated record body: read %d of %d bytes: %v", n, total, err)}
	}
	buf := body.Bytes()

	r := &Record{
		NSamples: len(rr.b.Header.Samples),
		nInfoRaw: int(binary.LittleEndian.Uint16(rr.preamble[12:14])),
		nFmtRaw:  int(binary.LittleEndian.Uint16(rr.preamble[14:16])),
		infoBuf:  buf[lSite : lSite+lInfo],
		fmtBuf:   buf[lSite+lInfo:],
		packed:   UnpackAll,
	}
	if err := decodeSite(r, buf[:lSite]); err != nil {
		return nil, &DataError{Site: fmt.Sprintf("record %d", rr.RecordsSeen+1), Detail: err.Error()}
	}

	return r, nil
}

func decodeSite(r *Record, buf []byte) error {
	br := &blockReader{b: buf}
	r.RID = int32(br.u32())
	r.Pos = int32(br.u32())
	r.ID = br.str16()
	nAllele := int(br.u16())
	r.Alleles = make([]string, 0, nAllele)
	for i := 0; i < nAllele && br.err == nil; i++ {
		r.Alleles = append(r.Alleles, br.str32())
	}
	if br.err != nil {
		return fmt.Errorf("site block: %w", br.err)
	}
	return nil
}

func decodeInfoBlock(buf []byte, n int) ([]InfoField, error) {
	br := &blockReader{b: buf}
	out := make([]InfoField, 0, n)
	for i := 0; i < n; i++ {
		f := InfoField{
			Key:  int(int32(br.u32())),
			Type: Width(br.u8()),
			Len:  int(br.u32()),
		}
		f.Data = br.bytes(f.Len * f.Type.Size())
		if br.err != nil {
			return nil, fmt.Errorf("INFO field %d: %w", i, br.err)
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeFormatBlock(buf []byte, n, nSamples int) ([]FormatField, error) {
	br := &blockReader{b: buf}
	out := make([]FormatField, 0, n)
	for i := 0; i < n; i++ {
		f := FormatField{
			Key:  int(int32(br.u32())),
			Type: Width(br.u8()),
			N:    int(br.u32()),
		}
		f.Data = br.bytes(nSamples * f.Stride())
		if br.err != nil {
			return nil, fmt.Errorf("FORMAT field %d: %w", i, br.err)
		}
		out = append(out, f)
	}
	return out, nil
}

// blockReader consumes little-endian values from a block. The first
// failure sticks; later reads return zero values.
type blockReader struct {
	b   []byte
	off int
	err error
}

func (br *blockReader) take(n int) []byte {
	if br.err != nil {
		return nil
	}
	if n < 0 || br.off+n > len(br.b) {
		br.err = errTruncated
		return nil
	}
	p := br.b[br.off : br.off+n]
	br.off += n
	return p
}

func (br *blockReader) u8() uint8 {
	if p := br.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (br *blockReader) u16() uint16 {
	if p := br.take(2); p != nil {
		return binary.LittleEndian.Uint16(p)
	}
	return 0
}

func (br *blockReader) u32() uint32 {
	if p := br.take(4); p != nil {
		return binary.LittleEndian.Uint32(p)
	}
	return 0
}

func (br *blockReader) str16() string {
	return string(br.take(int(br.u16())))
}

func (br *blockReader) str32() string {
	return string(br.take(int(br.u32())))
}

// bytes returns a copy so that callers may keep the result after the
// block is released.
func (br *blockReader) bytes(n int) []byte {
	p := br.take(n)
	if p == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, p)
	return out
}

func leUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func appendUint16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

func appendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func appendStr16(b []byte, s string) []byte {
	b = appendUint16(b, uint16(len(s)))
	return append(b, s...)
}

func appendStr32(b []byte, s string) []byte {
	b = appendUint32(b, uint32(len(s)))
	return append(b, s...)
}
