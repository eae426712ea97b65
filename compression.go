package bcf

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression indicates how (and whether) the body of a stream is compressed
type Compression uint8

const (
	CompressionDisabled Compression = iota
	CompressionZStandard
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionDisabled:
		return "none"
	case CompressionZStandard:
		return "zstd"
	case CompressionLZ4:
		return "lz4"

	default:
		return "Illegal selection"
	}
}

// ParseCompression accepts the names produced by Compression.String.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionDisabled, nil
	case "zstd":
		return CompressionZStandard, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

func decompressingReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionDisabled:
		return io.NopCloser(r), nil
	case CompressionZStandard:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, fmt.Errorf("compression %s is not supported", c)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func compressingWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionDisabled:
		return nopWriteCloser{w}, nil
	case CompressionZStandard:
		return zstd.NewWriter(w)
	case CompressionLZ4:
		// Close writes the frame footer without closing w
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("compression %s is not supported", c)
}
