package bcf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/carbocation/pfx"
)

// Width is the declared storage type of a packed value array. The numeric
// values match the type codes used by BCF.
type Width uint8

const (
	WidthNull  Width = 0
	WidthInt8  Width = 1
	WidthInt16 Width = 2
	WidthInt32 Width = 3
	WidthFloat Width = 5
	WidthChar  Width = 7
)

func (w Width) String() string {
	switch w {
	case WidthNull:
		return "null"
	case WidthInt8:
		return "int8"
	case WidthInt16:
		return "int16"
	case WidthInt32:
		return "int32"
	case WidthFloat:
		return "float"
	case WidthChar:
		return "char"

	default:
		return fmt.Sprintf("Illegal width %d", uint8(w))
	}
}

// Size is the number of bytes used by one value of this width.
func (w Width) Size() int {
	switch w {
	case WidthInt8, WidthChar:
		return 1
	case WidthInt16:
		return 2
	case WidthInt32, WidthFloat:
		return 4
	}
	return 0
}

// Float sentinels are stored as NaN payloads and can only be compared by
// their bit patterns.
const (
	floatMissingBits     uint32 = 0x7F800001
	floatEndOfVectorBits uint32 = 0x7F800002
)

// Missing returns the MISSING sentinel of w, widened to int32. For floats
// the returned value is the sentinel's bit pattern.
func Missing(w Width) int32 {
	switch w {
	case WidthInt8:
		return math.MinInt8
	case WidthInt16:
		return math.MinInt16
	case WidthInt32:
		return math.MinInt32
	case WidthFloat:
		return int32(floatMissingBits)
	}
	return 0
}

// EndOfVector returns the END_OF_VECTOR sentinel of w, widened to int32.
func EndOfVector(w Width) int32 {
	switch w {
	case WidthInt8:
		return math.MinInt8 + 1
	case WidthInt16:
		return math.MinInt16 + 1
	case WidthInt32:
		return math.MinInt32 + 1
	case WidthFloat:
		return int32(floatEndOfVectorBits)
	}
	return 0
}

// codec reads and writes single values of one declared width. Values are
// widened to int32 on read; the sentinels are those of the declared width.
type codec struct {
	width   Width
	size    int
	missing int32
	end     int32
	get     func(b []byte) int32
	put     func(b []byte, v int32)
}

func (c *codec) isMissing(v int32) bool { return v == c.missing }
func (c *codec) isEnd(v int32) bool     { return v == c.end }

var (
	int8Codec = &codec{
		width: WidthInt8, size: 1,
		missing: Missing(WidthInt8), end: EndOfVector(WidthInt8),
		get: func(b []byte) int32 { return int32(int8(b[0])) },
		put: func(b []byte, v int32) { b[0] = byte(int8(v)) },
	}
	int16Codec = &codec{
		width: WidthInt16, size: 2,
		missing: Missing(WidthInt16), end: EndOfVector(WidthInt16),
		get: func(b []byte) int32 { return int32(int16(binary.LittleEndian.Uint16(b))) },
		put: func(b []byte, v int32) { binary.LittleEndian.PutUint16(b, uint16(int16(v))) },
	}
	int32Codec = &codec{
		width: WidthInt32, size: 4,
		missing: Missing(WidthInt32), end: EndOfVector(WidthInt32),
		get: func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) },
		put: func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) },
	}
	// floatCodec moves raw bit patterns. It is only used where values are
	// copied or compared against sentinels, never interpreted.
	floatCodec = &codec{
		width: WidthFloat, size: 4,
		missing: Missing(WidthFloat), end: EndOfVector(WidthFloat),
		get: func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) },
		put: func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) },
	}
)

// codecFor is the single dispatch point for integer widths.
func codecFor(w Width) (*codec, error) {
	switch w {
	case WidthInt8:
		return int8Codec, nil
	case WidthInt16:
		return int16Codec, nil
	case WidthInt32:
		return int32Codec, nil
	}
	return nil, &UnsupportedError{Kind: UnsupportedWidth, Detail: fmt.Sprintf("cannot decode %s values as integers", w)}
}

// elementCodecFor also accepts floats, for fields whose values are only
// moved around.
func elementCodecFor(w Width) (*codec, error) {
	if w == WidthFloat {
		return floatCodec, nil
	}
	return codecFor(w)
}

// DecodeInts widens the first n values of b, packed at width w, to int32.
func DecodeInts(b []byte, w Width, n int) ([]int32, error) {
	c, err := codecFor(w)
	if err != nil {
		return nil, err
	}
	if len(b) < n*c.size {
		return nil, pfx.Err(fmt.Errorf("buffer holds %d bytes, need %d for %d %s values", len(b), n*c.size, n, w))
	}

	out := make([]int32, n)
	for i := range out {
		out[i] = c.get(b[i*c.size:])
	}
	return out, nil
}

// EncodeInts narrows vals to width w and writes them to the front of dst.
// Values must already fit in w; sentinels should be obtained from Missing
// and EndOfVector for the same width.
func EncodeInts(dst []byte, w Width, vals []int32) error {
	c, err := codecFor(w)
	if err != nil {
		return err
	}
	if len(dst) < len(vals)*c.size {
		return pfx.Err(fmt.Errorf("buffer holds %d bytes, need %d for %d %s values", len(dst), len(vals)*c.size, len(vals), w))
	}

	for i, v := range vals {
		c.put(dst[i*c.size:], v)
	}
	return nil
}

// SmallestWidth returns the narrowest integer width that can hold every
// value in vals without colliding with that width's sentinels. The int32
// sentinels are ignored so that they can be narrowed with the rest.
func SmallestWidth(vals []int32) Width {
	w := WidthInt8
	for _, v := range vals {
		if v == Missing(WidthInt32) || v == EndOfVector(WidthInt32) {
			continue
		}
		switch {
		case v > math.MaxInt16 || v <= math.MinInt16+1:
			return WidthInt32
		case v > math.MaxInt8 || v <= math.MinInt8+1:
			w = WidthInt16
		}
	}
	return w
}
