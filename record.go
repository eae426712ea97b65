package bcf

import (
	"fmt"
	"math"

	"github.com/carbocation/pfx"
)

// Unpack selects which lazily decoded parts of a record to materialize.
type Unpack uint8

const (
	UnpackInfo Unpack = 1 << iota
	UnpackFormat

	UnpackAll = UnpackInfo | UnpackFormat
)

// Record is one variant site. Alleles[0] is the reference allele.
//
// Records read from a stream carry their INFO and FORMAT blocks in packed
// form until Unpack is called. Records assembled in memory are considered
// fully unpacked. A Record must not be shared between goroutines while it
// is being modified.
type Record struct {
	RID      int32 // index into Header.Contigs
	Pos      int32 // 0-based
	ID       string
	Alleles  []string
	NSamples int
	Info     []InfoField
	Format   []FormatField

	packed   Unpack // parts still held in infoBuf/fmtBuf
	infoBuf  []byte
	fmtBuf   []byte
	nInfoRaw int
	nFmtRaw  int
}

// InfoField is a whole-record value array.
type InfoField struct {
	Key  int
	Type Width
	Len  int
	Data []byte
}

// FormatField holds N values for every sample, packed back to back.
type FormatField struct {
	Key  int
	Type Width
	N    int
	Data []byte
}

// NAlleles is the number of alleles including the reference.
func (r *Record) NAlleles() int {
	return len(r.Alleles)
}

// Unpack decodes the requested blocks if they are still packed.
func (r *Record) Unpack(which Unpack) error {
	if which&UnpackInfo != 0 && r.packed&UnpackInfo != 0 {
		info, err := decodeInfoBlock(r.infoBuf, r.nInfoRaw)
		if err != nil {
			return &DataError{Site: r.siteNoHeader(), Detail: err.Error()}
		}
		r.Info = info
		r.infoBuf = nil
		r.packed &^= UnpackInfo
	}
	if which&UnpackFormat != 0 && r.packed&UnpackFormat != 0 {
		format, err := decodeFormatBlock(r.fmtBuf, r.nFmtRaw, r.NSamples)
		if err != nil {
			return &DataError{Site: r.siteNoHeader(), Detail: err.Error()}
		}
		r.Format = format
		r.fmtBuf = nil
		r.packed &^= UnpackFormat
	}
	return nil
}

// Site names the record for error messages, e.g. "chr2:1043".
func (r *Record) Site(h *Header) string {
	if h == nil {
		return r.siteNoHeader()
	}
	return fmt.Sprintf("%s:%d", h.Contig(r.RID), int64(r.Pos)+1)
}

func (r *Record) siteNoHeader() string {
	return fmt.Sprintf("contig#%d:%d", r.RID, int64(r.Pos)+1)
}

// InfoByKey returns the INFO field with the given ID, or nil.
func (r *Record) InfoByKey(key int) *InfoField {
	for i := range r.Info {
		if r.Info[i].Key == key {
			return &r.Info[i]
		}
	}
	return nil
}

// FormatByKey returns the FORMAT field with the given ID, or nil.
func (r *Record) FormatByKey(key int) *FormatField {
	for i := range r.Format {
		if r.Format[i].Key == key {
			return &r.Format[i]
		}
	}
	return nil
}

// FormatByName resolves name through h and unpacks FORMAT data first.
func (r *Record) FormatByName(h *Header, name string) (*FormatField, error) {
	id, ok := h.ID(name)
	if !ok {
		return nil, nil
	}
	if err := r.Unpack(UnpackFormat); err != nil {
		return nil, resite(err, r.Site(h))
	}
	return r.FormatByKey(id), nil
}

// InfoByName resolves name through h and unpacks INFO data first.
func (r *Record) InfoByName(h *Header, name string) (*InfoField, error) {
	id, ok := h.ID(name)
	if !ok {
		return nil, nil
	}
	if err := r.Unpack(UnpackInfo); err != nil {
		return nil, resite(err, r.Site(h))
	}
	return r.InfoByKey(id), nil
}

// Ints decodes all values of the field.
func (f *InfoField) Ints() ([]int32, error) {
	return DecodeInts(f.Data, f.Type, f.Len)
}

// Stride is the number of bytes used by one sample.
func (f *FormatField) Stride() int {
	return f.N * f.Type.Size()
}

// Sample returns the packed sub-array of sample i.
func (f *FormatField) Sample(i int) ([]byte, error) {
	stride := f.Stride()
	if i < 0 || (i+1)*stride > len(f.Data) {
		return nil, pfx.Err(fmt.Errorf("sample %d out of range for a field of %d bytes with stride %d", i, len(f.Data), stride))
	}
	return f.Data[i*stride : (i+1)*stride], nil
}

// SampleInts decodes the sub-array of sample i.
func (f *FormatField) SampleInts(i int) ([]int32, error) {
	b, err := f.Sample(i)
	if err != nil {
		return nil, err
	}
	return DecodeInts(b, f.Type, f.N)
}

// narrowSentinels maps int32 sentinels in vals to those of w.
func narrowSentinels(vals []int32, w Width) []int32 {
	out := make([]int32, len(vals))
	for i, v := range vals {
		switch v {
		case Missing(WidthInt32):
			out[i] = Missing(w)
		case EndOfVector(WidthInt32):
			out[i] = EndOfVector(w)
		default:
			out[i] = v
		}
	}
	return out
}

// NewInfoInts packs vals at the narrowest width that holds them. Use the
// int32 sentinels to mark missing values.
func NewInfoInts(key int, vals ...int32) InfoField {
	w := SmallestWidth(vals)
	data := make([]byte, len(vals)*w.Size())
	// SmallestWidth guarantees every value fits
	_ = EncodeInts(data, w, narrowSentinels(vals, w))
	return InfoField{Key: key, Type: w, Len: len(vals), Data: data}
}

// NewFormatInts packs n values per sample at the narrowest width that holds
// them. len(vals) must be a multiple of n. Use the int32 sentinels to mark
// missing and end-of-vector values.
func NewFormatInts(key, n int, vals []int32) (FormatField, error) {
	return NewFormatIntsWidth(key, SmallestWidth(vals), n, vals)
}

// NewFormatIntsWidth is NewFormatInts with an explicit width.
func NewFormatIntsWidth(key int, w Width, n int, vals []int32) (FormatField, error) {
	if n <= 0 || len(vals)%n != 0 {
		return FormatField{}, pfx.Err(fmt.Errorf("%d values cannot be split into samples of %d", len(vals), n))
	}
	data := make([]byte, len(vals)*w.Size())
	if err := EncodeInts(data, w, narrowSentinels(vals, w)); err != nil {
		return FormatField{}, err
	}
	return FormatField{Key: key, Type: w, N: n, Data: data}, nil
}

// Float sentinels as float32 values. Compare with FloatIsMissing and
// FloatIsEndOfVector, never with ==.
var (
	FloatMissing     = math.Float32frombits(floatMissingBits)
	FloatEndOfVector = math.Float32frombits(floatEndOfVectorBits)
)

func FloatIsMissing(v float32) bool     { return math.Float32bits(v) == floatMissingBits }
func FloatIsEndOfVector(v float32) bool { return math.Float32bits(v) == floatEndOfVectorBits }

// NewFormatFloats packs n float values per sample.
func NewFormatFloats(key, n int, vals []float32) (FormatField, error) {
	if n <= 0 || len(vals)%n != 0 {
		return FormatField{}, pfx.Err(fmt.Errorf("%d values cannot be split into samples of %d", len(vals), n))
	}
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		floatCodec.put(data[i*4:], int32(math.Float32bits(v)))
	}
	return FormatField{Key: key, Type: WidthFloat, N: n, Data: data}, nil
}

// SampleFloats decodes the float sub-array of sample i.
func (f *FormatField) SampleFloats(i int) ([]float32, error) {
	if f.Type != WidthFloat {
		return nil, &UnsupportedError{Kind: UnsupportedWidth, Detail: fmt.Sprintf("%s field read as float", f.Type)}
	}
	b, err := f.Sample(i)
	if err != nil {
		return nil, err
	}
	out := make([]float32, f.N)
	for k := range out {
		out[k] = math.Float32frombits(uint32(floatCodec.get(b[k*4:])))
	}
	return out, nil
}
