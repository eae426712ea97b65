package bcf

import (
	"fmt"
)

// GenotypeClass is the zygosity of one sample's call.
type GenotypeClass uint8

const (
	GTUnknown GenotypeClass = iota
	GTHomRR
	GTHomAA
	GTHetRA
	GTHetAA
)

func (c GenotypeClass) String() string {
	switch c {
	case GTUnknown:
		return "Unknown"
	case GTHomRR:
		return "HomRR"
	case GTHomAA:
		return "HomAA"
	case GTHetRA:
		return "HetRA"
	case GTHetAA:
		return "HetAA"

	default:
		return "Illegal selection"
	}
}

// EncodeGenotype packs an allele index and phase bit into one GT value.
// allele -1 encodes a no-call.
func EncodeGenotype(allele int, phased bool) int32 {
	g := int32(allele+1) << 1
	if phased {
		g |= 1
	}
	return g
}

// DecodeGenotype is the inverse of EncodeGenotype. It must not be called on
// sentinel values.
func DecodeGenotype(g int32) (allele int, phased bool) {
	return int(g>>1) - 1, g&1 == 1
}

// IsNoCall reports whether g encodes "no call" for its ploidy slot.
func IsNoCall(g int32) bool {
	return g>>1 == 0
}

// gtStep says what to do with one raw GT slot during a scan.
type gtStep uint8

const (
	gtUse gtStep = iota
	gtSkip
	gtStop
)

// stepGT applies the GT scanning rules: no-call and END_OF_VECTOR end the
// sample, MISSING is skipped.
func stepGT(c *codec, g int32) gtStep {
	if IsNoCall(g) || c.isEnd(g) {
		return gtStop
	}
	if c.isMissing(g) {
		return gtSkip
	}
	return gtUse
}

// scanGenotypes calls fn with the allele index of every usable GT slot of
// every sample, in order. Negative values other than the sentinels are
// reported as malformed.
func scanGenotypes(gt *FormatField, nSamples int, site string, fn func(sample, slot, allele int) error) error {
	c, err := codecFor(gt.Type)
	if err != nil {
		return err
	}
	stride := gt.Stride()
	if len(gt.Data) < nSamples*stride {
		return &DataError{Site: site, Detail: fmt.Sprintf("GT holds %d bytes, need %d for %d samples", len(gt.Data), nSamples*stride, nSamples)}
	}

	for i := 0; i < nSamples; i++ {
		p := gt.Data[i*stride : (i+1)*stride]
	Slots:
		for k := 0; k < gt.N; k++ {
			g := c.get(p[k*c.size:])
			switch stepGT(c, g) {
			case gtStop:
				break Slots
			case gtSkip:
				continue
			}
			if g < 0 {
				return &DataError{Site: site, Detail: fmt.Sprintf("sample %d has GT value %d", i, g)}
			}
			if err := fn(i, k, int(g>>1)-1); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClassifyCall classifies one sample's GT sub-array, given as values widened
// from width w. It also returns the smallest alternate allele index in the
// call, or -1 if the call has none. Widths other than int8, int16 and int32
// yield an *UnsupportedError.
func ClassifyCall(call []int32, w Width) (GenotypeClass, int, error) {
	c, err := codecFor(w)
	if err != nil {
		return GTUnknown, -1, annotate(err, FieldGT, "")
	}

	var a, b, min, nref int32
	seen := false
	for _, g := range call {
		if c.isEnd(g) {
			break
		}
		if c.isMissing(g) {
			continue
		}
		v := g >> 1
		if !seen {
			a, b, min = v, v, v
			nref = 0
			if v > 1 {
				nref = v
			}
			seen = true
			continue
		}
		if v < min {
			min = v
		}
		if v > 1 && (nref == 0 || v < nref) {
			nref = v
		}
		a |= v
		b &= v
	}

	if !seen || min == 0 {
		return GTUnknown, -1, nil
	}

	alt := -1
	if nref != 0 {
		alt = int(nref) - 1
	}
	if a == b {
		if min == 1 {
			return GTHomRR, alt, nil
		}
		return GTHomAA, alt, nil
	}
	if min == 1 {
		return GTHetRA, alt, nil
	}
	return GTHetAA, alt, nil
}

// ClassifyGenotype classifies the call of one sample of a GT field.
func ClassifyGenotype(gt *FormatField, sample int) (GenotypeClass, int, error) {
	call, err := gt.SampleInts(sample)
	if err != nil {
		return GTUnknown, -1, err
	}
	return ClassifyCall(call, gt.Type)
}
