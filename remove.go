package bcf

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// removalPlan maps old allele indices to their position after the alleles
// in the mask are deleted.
type removalPlan struct {
	nOld     int
	nNew     int
	removed  *bitset.BitSet
	newIndex []int // -1 for removed alleles
	moved    bool  // some surviving allele changes index
}

func newRemovalPlan(nAllele int, mask *bitset.BitSet) (*removalPlan, error) {
	if mask == nil {
		mask = bitset.New(0)
	}
	if mask.Test(0) {
		return nil, fmt.Errorf("%w: the reference allele cannot be removed", ErrInvalidMask)
	}
	for i, ok := mask.NextSet(0); ok; i, ok = mask.NextSet(i + 1) {
		if int(i) >= nAllele {
			return nil, fmt.Errorf("%w: allele %d is set but the record has %d alleles", ErrInvalidMask, i, nAllele)
		}
	}

	p := &removalPlan{
		nOld:     nAllele,
		removed:  mask,
		newIndex: make([]int, nAllele),
	}
	j := 0
	for i := 0; i < nAllele; i++ {
		if mask.Test(uint(i)) {
			p.newIndex[i] = -1
			continue
		}
		p.newIndex[i] = j
		if i != j {
			p.moved = true
		}
		j++
	}
	p.nNew = j

	return p, nil
}

func (p *removalPlan) nRemoved() int {
	return p.nOld - p.nNew
}

func (p *removalPlan) isRemoved(allele int) bool {
	return p.newIndex[allele] < 0
}

func (p *removalPlan) compactAlleles(alleles []string) []string {
	out := make([]string, 0, p.nNew)
	for i, a := range alleles {
		if !p.isRemoved(i) {
			out = append(out, a)
		}
	}
	return out
}

// remapGenotypes returns a copy of the GT data with every call renumbered.
// Calls of a removed allele become no-calls that keep their phase bit.
func (p *removalPlan) remapGenotypes(gt *FormatField, nSamples int, site string) ([]byte, error) {
	c, err := codecFor(gt.Type)
	if err != nil {
		return nil, err
	}
	stride := gt.Stride()
	if len(gt.Data) < nSamples*stride {
		return nil, &DataError{Site: site, Detail: fmt.Sprintf("GT holds %d bytes, need %d for %d samples", len(gt.Data), nSamples*stride, nSamples)}
	}

	out := make([]byte, len(gt.Data))
	copy(out, gt.Data)
	if !p.moved && p.noCallsRemoved(gt, nSamples, c) {
		return out, nil
	}

	for i := 0; i < nSamples; i++ {
		s := out[i*stride : (i+1)*stride]
	Slots:
		for k := 0; k < gt.N; k++ {
			g := c.get(s[k*c.size:])
			switch stepGT(c, g) {
			case gtStop:
				break Slots
			case gtSkip:
				continue
			}
			allele, phased := DecodeGenotype(g)
			if g < 0 || allele >= p.nOld {
				return nil, &DataError{Site: site, Detail: fmt.Sprintf("sample %d calls allele %d but the record has %d alleles", i, allele, p.nOld)}
			}
			c.put(s[k*c.size:], EncodeGenotype(p.newIndex[allele], phased))
		}
	}
	return out, nil
}

// noCallsRemoved reports whether no sample calls a removed allele. Together
// with an unmoved plan it means the GT data needs no rewrite.
func (p *removalPlan) noCallsRemoved(gt *FormatField, nSamples int, c *codec) bool {
	stride := gt.Stride()
	for i := 0; i < nSamples; i++ {
		s := gt.Data[i*stride : (i+1)*stride]
	Slots:
		for k := 0; k < gt.N; k++ {
			g := c.get(s[k*c.size:])
			switch stepGT(c, g) {
			case gtStop:
				break Slots
			case gtSkip:
				continue
			}
			if allele, _ := DecodeGenotype(g); g < 0 || allele >= p.nOld || p.isRemoved(allele) {
				return false
			}
		}
	}
	return true
}

// compactGenotypeField drops every value of a Number=G field whose genotype
// includes a removed allele. Samples hold either all n(n+1)/2 diploid values
// or n haploid values followed by END_OF_VECTOR.
func (p *removalPlan) compactGenotypeField(f *FormatField, nSamples int) ([]byte, int, error) {
	c, err := elementCodecFor(f.Type)
	if err != nil {
		return nil, 0, err
	}

	nGOld := NGenotypes(p.nOld, 2)
	nGNew := NGenotypes(p.nNew, 2)
	if f.N != nGOld {
		return nil, 0, &UnsupportedError{Kind: UnsupportedShape, Detail: fmt.Sprintf("%d values per sample, expected %d for %d alleles", f.N, nGOld, p.nOld)}
	}
	oldStride := nGOld * c.size
	newStride := nGNew * c.size
	if len(f.Data) < nSamples*oldStride {
		return nil, 0, fmt.Errorf("field holds %d bytes, need %d for %d samples", len(f.Data), nSamples*oldStride, nSamples)
	}

	out := make([]byte, nSamples*newStride)
	for j := 0; j < nSamples; j++ {
		src := f.Data[j*oldStride : (j+1)*oldStride]
		dst := out[j*newStride : (j+1)*newStride]

		nset := 0
		for k := 0; k < nGOld; k++ {
			v := c.get(src[k*c.size:])
			if c.isEnd(v) {
				break
			}
			if !c.isMissing(v) {
				nset++
			}
		}

		switch nset {
		case nGOld:
			kOld, kNew := 0, 0
			for a := 0; a < p.nOld; a++ {
				for b := 0; b <= a; b++ {
					if !p.isRemoved(a) && !p.isRemoved(b) {
						copy(dst[kNew*c.size:(kNew+1)*c.size], src[kOld*c.size:(kOld+1)*c.size])
						kNew++
					}
					kOld++
				}
			}
		case p.nOld:
			kNew := 0
			for k := 0; k < p.nOld; k++ {
				if !p.isRemoved(k) {
					copy(dst[kNew*c.size:(kNew+1)*c.size], src[k*c.size:(k+1)*c.size])
					kNew++
				}
			}
			for ; kNew < nGNew; kNew++ {
				c.put(dst[kNew*c.size:], c.end)
			}
		default:
			return nil, 0, &UnsupportedError{Kind: UnsupportedShape, Detail: fmt.Sprintf("sample %d has %d values set, expected %d (diploid) or %d (haploid)", j, nset, nGOld, p.nOld)}
		}
	}
	return out, nGNew, nil
}

// compactAlleleField drops the values of removed alleles from a Number=R
// field.
func (p *removalPlan) compactAlleleField(f *FormatField, nSamples int) ([]byte, int, error) {
	c, err := elementCodecFor(f.Type)
	if err != nil {
		return nil, 0, err
	}
	if f.N != p.nOld {
		return nil, 0, &UnsupportedError{Kind: UnsupportedShape, Detail: fmt.Sprintf("%d values per sample, expected %d for %d alleles", f.N, p.nOld, p.nOld)}
	}
	oldStride := p.nOld * c.size
	newStride := p.nNew * c.size
	if len(f.Data) < nSamples*oldStride {
		return nil, 0, fmt.Errorf("field holds %d bytes, need %d for %d samples", len(f.Data), nSamples*oldStride, nSamples)
	}

	out := make([]byte, nSamples*newStride)
	for j := 0; j < nSamples; j++ {
		src := f.Data[j*oldStride : (j+1)*oldStride]
		dst := out[j*newStride : (j+1)*newStride]
		kNew := 0
		for k := 0; k < p.nOld; k++ {
			if !p.isRemoved(k) {
				copy(dst[kNew*c.size:(kNew+1)*c.size], src[k*c.size:(k+1)*c.size])
				kNew++
			}
		}
	}
	return out, p.nNew, nil
}

// compactInfoField drops the values of removed alleles from an INFO field
// with one value per alternate (Number=A), per allele (Number=R) or per
// diploid genotype (Number=G).
func (p *removalPlan) compactInfoField(f *InfoField, number Number) ([]byte, int, error) {
	c, err := elementCodecFor(f.Type)
	if err != nil {
		return nil, 0, err
	}

	var keep []bool
	switch number {
	case NumberA:
		for a := 1; a < p.nOld; a++ {
			keep = append(keep, !p.isRemoved(a))
		}
	case NumberR:
		for a := 0; a < p.nOld; a++ {
			keep = append(keep, !p.isRemoved(a))
		}
	case NumberG:
		for a := 0; a < p.nOld; a++ {
			for b := 0; b <= a; b++ {
				keep = append(keep, !p.isRemoved(a) && !p.isRemoved(b))
			}
		}
	}
	if f.Len != len(keep) {
		return nil, 0, fmt.Errorf("%d values, expected %d for %d alleles", f.Len, len(keep), p.nOld)
	}
	if len(f.Data) < f.Len*c.size {
		return nil, 0, fmt.Errorf("field holds %d bytes, need %d", len(f.Data), f.Len*c.size)
	}

	out := make([]byte, 0, len(keep)*c.size)
	for k, ok := range keep {
		if ok {
			out = append(out, f.Data[k*c.size:(k+1)*c.size]...)
		}
	}
	return out, len(out) / c.size, nil
}

// adjustAN lowers INFO/AN by the INFO/AC of every removed allele, since
// their calls become no-calls. AN becomes missing when one of those AC values
// is missing.
func (p *removalPlan) adjustAN(an, ac *InfoField, site string) ([]byte, error) {
	anVals, err := an.Ints()
	if err != nil {
		return nil, annotate(err, FieldAN, site)
	}
	if len(anVals) == 0 || anVals[0] == Missing(an.Type) || anVals[0] == EndOfVector(an.Type) {
		return nil, nil
	}
	acVals, err := ac.Ints()
	if err != nil {
		return nil, annotate(err, FieldAC, site)
	}
	if len(acVals) != p.nOld-1 {
		return nil, &DataError{Site: site, Detail: fmt.Sprintf("INFO/AC has %d values for %d alternate alleles", len(acVals), p.nOld-1)}
	}

	n := anVals[0]
	for a := 1; a < p.nOld; a++ {
		if !p.isRemoved(a) {
			continue
		}
		v := acVals[a-1]
		if v == Missing(ac.Type) || v == EndOfVector(ac.Type) {
			n = Missing(an.Type)
			break
		}
		n -= v
		if n < 0 {
			return nil, &DataError{Site: site, Detail: fmt.Sprintf("INFO/AN=%d is smaller than the INFO/AC of the removed alleles", anVals[0])}
		}
	}

	out := make([]byte, len(an.Data))
	copy(out, an.Data)
	if err := EncodeInts(out, an.Type, []int32{n}); err != nil {
		return nil, &DataError{Site: site, Detail: fmt.Sprintf("INFO/%s: %v", FieldAN, err)}
	}
	return out, nil
}

// RemoveAlleles deletes the alleles set in mask from r and renumbers every
// field that depends on allele indices: FORMAT GT, Number=G and Number=R,
// and INFO Number=A, Number=R and Number=G. INFO/AN drops by the INFO/AC of
// the removed alleles. It returns the number of alleles removed.
//
// The reference allele cannot be removed. Number=A FORMAT fields are not
// supported and make the call fail. Nothing in r is modified unless every
// field could be rewritten.
func RemoveAlleles(h *Header, r *Record, mask *bitset.BitSet) (int, error) {
	site := r.Site(h)
	plan, err := newRemovalPlan(r.NAlleles(), mask)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", site, err)
	}
	if plan.nRemoved() == 0 {
		return 0, nil
	}
	if err := r.Unpack(UnpackAll); err != nil {
		return 0, resite(err, site)
	}

	type rewrite struct {
		field int
		n     int
		data  []byte
	}
	var rewrites, infoRewrites []rewrite

	gtID, hasGT := h.ID(FieldGT)
	for i := range r.Format {
		f := &r.Format[i]
		name := h.Name(f.Key)

		if hasGT && f.Key == gtID {
			data, err := plan.remapGenotypes(f, r.NSamples, site)
			if err != nil {
				return 0, annotate(err, name, site)
			}
			rewrites = append(rewrites, rewrite{field: i, n: f.N, data: data})
			continue
		}

		decl := h.Decl(KindFormat, f.Key)
		if decl == nil {
			continue
		}

		var (
			data []byte
			n    int
		)
		switch decl.Number {
		case NumberA:
			return 0, &UnsupportedError{Kind: UnsupportedNumber, Field: name, Site: site, Detail: "Number=A fields cannot be rewritten"}
		case NumberG:
			data, n, err = plan.compactGenotypeField(f, r.NSamples)
		case NumberR:
			data, n, err = plan.compactAlleleField(f, r.NSamples)
		default:
			continue
		}
		if err != nil {
			var ue *UnsupportedError
			if errors.As(err, &ue) {
				return 0, annotate(err, name, site)
			}
			return 0, &DataError{Site: site, Detail: fmt.Sprintf("FORMAT/%s: %v", name, err)}
		}
		rewrites = append(rewrites, rewrite{field: i, n: n, data: data})
	}

	anID, hasAN := h.ID(FieldAN)
	acID, hasAC := h.ID(FieldAC)
	for i := range r.Info {
		f := &r.Info[i]
		name := h.Name(f.Key)

		if hasAN && hasAC && f.Key == anID {
			ac := r.InfoByKey(acID)
			if ac == nil {
				continue
			}
			data, err := plan.adjustAN(f, ac, site)
			if err != nil {
				return 0, err
			}
			if data != nil {
				infoRewrites = append(infoRewrites, rewrite{field: i, n: f.Len, data: data})
			}
			continue
		}

		decl := h.Decl(KindInfo, f.Key)
		if decl == nil {
			continue
		}
		switch decl.Number {
		case NumberA, NumberR, NumberG:
		default:
			continue
		}
		data, n, err := plan.compactInfoField(f, decl.Number)
		if err != nil {
			var ue *UnsupportedError
			if errors.As(err, &ue) {
				return 0, annotate(err, name, site)
			}
			return 0, &DataError{Site: site, Detail: fmt.Sprintf("INFO/%s: %v", name, err)}
		}
		infoRewrites = append(infoRewrites, rewrite{field: i, n: n, data: data})
	}

	for _, rw := range rewrites {
		r.Format[rw.field].N = rw.n
		r.Format[rw.field].Data = rw.data
	}
	for _, rw := range infoRewrites {
		r.Info[rw.field].Len = rw.n
		r.Info[rw.field].Data = rw.data
	}
	r.Alleles = plan.compactAlleles(r.Alleles)

	return plan.nRemoved(), nil
}
