package bcf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carbocation/pfx"
)

// MagicNumber opens every packed record stream
const MagicNumber = "BCFP"

// StreamVersion is the supported version of the stream layout
const StreamVersion uint8 = 1

const (
	offsetMagicNumber = 0
	offsetVersion     = 4
	offsetCompression = 5
	preambleLength    = 6
)

// BCFP is the main object used for reading packed record streams
type BCFP struct {
	FilePath    string
	Version     uint8
	Compression Compression
	Header      *Header

	source io.Closer
	body   io.ReadCloser
	reader *bufio.Reader
}

// Open attempts to read a stream located at path, which may be a local file
// or a gs://bucket/object URL. If successful, the header has been parsed
// and records can be read with NewRecordReader.
func Open(path string) (*BCFP, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext is Open with a context for remote reads.
func OpenContext(ctx context.Context, path string) (*BCFP, error) {
	var (
		src io.ReadCloser
		err error
	)
	if strings.HasPrefix(path, "gs://") {
		src, err = openGoogleStorage(ctx, path)
	} else {
		src, err = os.Open(path)
	}
	if err != nil {
		return nil, pfx.Err(err)
	}

	b, err := NewBCFP(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.FilePath = path
	b.source = src

	return b, nil
}

// NewBCFP parses the preamble and header from r.
func NewBCFP(r io.Reader) (*BCFP, error) {
	b := &BCFP{}

	preamble := make([]byte, preambleLength)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, pfx.Err(err)
	}
	if MagicNumber != string(preamble[offsetMagicNumber:offsetVersion]) {
		return nil, fmt.Errorf("%w: expected magic number %s (%v when printed as a byte slice), found %v", ErrNotBCFP, MagicNumber, []byte(MagicNumber), preamble[offsetMagicNumber:offsetVersion])
	}
	b.Version = preamble[offsetVersion]
	if b.Version != StreamVersion {
		return nil, pfx.Err(fmt.Errorf("stream version %d is not supported; expected %d", b.Version, StreamVersion))
	}
	b.Compression = Compression(preamble[offsetCompression])

	body, err := decompressingReader(r, b.Compression)
	if err != nil {
		return nil, pfx.Err(err)
	}
	b.body = body
	b.reader = bufio.NewReader(body)

	if err := b.populateHeader(); err != nil {
		body.Close()
		return nil, pfx.Err(err)
	}

	return b, nil
}

func (b *BCFP) populateHeader() error {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(b.reader, lengthBuf); err != nil {
		return pfx.Err(err)
	}
	headerBuf := make([]byte, leUint32(lengthBuf))
	if _, err := io.ReadFull(b.reader, headerBuf); err != nil {
		return pfx.Err(err)
	}

	h, err := decodeHeader(headerBuf)
	if err != nil {
		return pfx.Err(err)
	}
	b.Header = h

	return nil
}

// Close releases the decompressor and the underlying file or object.
func (b *BCFP) Close() error {
	var err error
	if b.body != nil {
		err = b.body.Close()
	}
	if b.source != nil {
		if cerr := b.source.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func decodeHeader(buf []byte) (*Header, error) {
	br := &blockReader{b: buf}
	h := NewHeader()

	nContigs := int(br.u16())
	for i := 0; i < nContigs && br.err == nil; i++ {
		h.Contigs = append(h.Contigs, br.str16())
	}

	nDecls := int(br.u16())
	for i := 0; i < nDecls && br.err == nil; i++ {
		kind := Kind(br.u8())
		name := br.str16()
		decl := FieldDecl{
			Number: Number(br.u8()),
			Count:  int(br.u32()),
			Type:   Width(br.u8()),
		}
		decl.Description = br.str16()
		if br.err != nil {
			break
		}
		if _, err := h.Declare(kind, name, decl); err != nil {
			return nil, err
		}
	}

	nSamples := int(br.u32())
	for i := 0; i < nSamples && br.err == nil; i++ {
		h.Samples = append(h.Samples, br.str16())
	}

	if br.err != nil {
		return nil, fmt.Errorf("truncated header: %w", br.err)
	}
	return h, nil
}

func encodeHeader(h *Header) []byte {
	var out []byte
	out = appendUint16(out, uint16(len(h.Contigs)))
	for _, c := range h.Contigs {
		out = appendStr16(out, c)
	}

	nDecls := 0
	for id := 0; id < h.NFields(); id++ {
		for _, k := range []Kind{KindInfo, KindFormat} {
			if h.Decl(k, id) != nil {
				nDecls++
			}
		}
	}
	out = appendUint16(out, uint16(nDecls))
	// Declarations are written in ID order so that IDs survive a round trip
	for id := 0; id < h.NFields(); id++ {
		for _, k := range []Kind{KindInfo, KindFormat} {
			d := h.Decl(k, id)
			if d == nil {
				continue
			}
			out = append(out, uint8(k))
			out = appendStr16(out, h.Name(id))
			out = append(out, uint8(d.Number))
			out = appendUint32(out, uint32(d.Count))
			out = append(out, uint8(d.Type))
			out = appendStr16(out, d.Description)
		}
	}

	out = appendUint32(out, uint32(len(h.Samples)))
	for _, s := range h.Samples {
		out = appendStr16(out, s)
	}
	return out
}
