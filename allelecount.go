package bcf

import (
	"fmt"
)

// CountSource says which strategy produced a set of allele counts.
type CountSource uint8

const (
	CountSourceNone CountSource = iota
	CountSourceInfo
	CountSourceFormat
)

func (s CountSource) String() string {
	switch s {
	case CountSourceNone:
		return "none"
	case CountSourceInfo:
		return "INFO/AC,AN"
	case CountSourceFormat:
		return "FORMAT/GT"

	default:
		return "Illegal selection"
	}
}

// CalcAlleleCounts returns one count per allele of r, reference first.
//
// With UnpackInfo in which, the counts come from INFO/AN and INFO/AC when
// both are present. Otherwise, with UnpackFormat in which, every GT call of
// every sample is tallied. ok is false when neither source is available.
func CalcAlleleCounts(h *Header, r *Record, which Unpack) (counts []int, ok bool, err error) {
	counts, src, err := AlleleCounts(h, r, which)
	return counts, src != CountSourceNone, err
}

// AlleleCounts is CalcAlleleCounts that also reports which source was used.
func AlleleCounts(h *Header, r *Record, which Unpack) ([]int, CountSource, error) {
	if which&UnpackInfo != 0 {
		counts, ok, err := countsFromInfo(h, r)
		if err != nil {
			return nil, CountSourceNone, err
		}
		if ok {
			return counts, CountSourceInfo, nil
		}
	}

	if which&UnpackFormat != 0 {
		counts, ok, err := countsFromGenotypes(h, r)
		if err != nil {
			return nil, CountSourceNone, err
		}
		if ok {
			return counts, CountSourceFormat, nil
		}
	}

	return nil, CountSourceNone, nil
}

func countsFromInfo(h *Header, r *Record) ([]int, bool, error) {
	anID, okAN := h.ID(FieldAN)
	acID, okAC := h.ID(FieldAC)
	if !okAN || !okAC {
		return nil, false, nil
	}
	if err := r.Unpack(UnpackInfo); err != nil {
		return nil, false, resite(err, r.Site(h))
	}

	acField := r.InfoByKey(acID)
	anField := r.InfoByKey(anID)
	if acField == nil || anField == nil {
		return nil, false, nil
	}

	site := r.Site(h)
	an, err := anField.Ints()
	if err != nil {
		return nil, false, annotate(err, FieldAN, site)
	}
	if len(an) == 0 || an[0] == Missing(anField.Type) || an[0] == EndOfVector(anField.Type) {
		return nil, false, nil
	}
	ac, err := acField.Ints()
	if err != nil {
		return nil, false, annotate(err, FieldAC, site)
	}

	nAllele := r.NAlleles()
	if len(ac) != nAllele-1 {
		return nil, false, &DataError{Site: site, Detail: fmt.Sprintf("INFO/AC has %d values for %d alternate alleles", len(ac), nAllele-1)}
	}

	counts := make([]int, nAllele)
	nac := 0
	for i, v := range ac {
		if v == Missing(acField.Type) || v == EndOfVector(acField.Type) {
			return nil, false, &DataError{Site: site, Detail: fmt.Sprintf("INFO/AC value %d is missing", i+1)}
		}
		counts[i+1] = int(v)
		nac += int(v)
	}
	if int(an[0]) < nac {
		return nil, false, &DataError{Site: site, Detail: fmt.Sprintf("INFO/AN=%d is smaller than the sum of INFO/AC=%d", an[0], nac)}
	}
	counts[0] = int(an[0]) - nac

	return counts, true, nil
}

func countsFromGenotypes(h *Header, r *Record) ([]int, bool, error) {
	gt, err := r.FormatByName(h, FieldGT)
	if err != nil {
		return nil, false, err
	}
	if gt == nil {
		return nil, false, nil
	}

	site := r.Site(h)
	counts := make([]int, r.NAlleles())
	err = scanGenotypes(gt, r.NSamples, site, func(sample, slot, allele int) error {
		if allele >= len(counts) {
			return &DataError{Site: site, Detail: fmt.Sprintf("sample %d calls allele %d but the record has %d alleles", sample, allele, len(counts))}
		}
		counts[allele]++
		return nil
	})
	if err != nil {
		return nil, false, annotate(err, FieldGT, site)
	}

	return counts, true, nil
}

// AlleleFrequencies divides each count by the total. All frequencies are
// zero when nothing was observed.
func AlleleFrequencies(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}

	out := make([]float64, len(counts))
	if total == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(total)
	}
	return out
}
