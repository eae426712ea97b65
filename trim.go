package bcf

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// UnusedAlleles returns a mask of the alternate alleles of r that no sample
// calls. Records without GT yield an empty mask.
func UnusedAlleles(h *Header, r *Record) (*bitset.BitSet, error) {
	nAllele := r.NAlleles()
	mask := bitset.New(uint(nAllele))

	gt, err := r.FormatByName(h, FieldGT)
	if err != nil {
		return nil, err
	}
	if gt == nil || nAllele < 2 {
		return mask, nil
	}

	site := r.Site(h)
	seen := bitset.New(uint(nAllele))
	err = scanGenotypes(gt, r.NSamples, site, func(sample, slot, allele int) error {
		if allele >= nAllele {
			return &DataError{Site: site, Detail: fmt.Sprintf("sample %d calls allele %d but the record has %d alleles", sample, allele, nAllele)}
		}
		seen.Set(uint(allele))
		return nil
	})
	if err != nil {
		return nil, annotate(err, FieldGT, site)
	}

	for i := 1; i < nAllele; i++ {
		if !seen.Test(uint(i)) {
			mask.Set(uint(i))
		}
	}
	return mask, nil
}

// TrimAlleles removes every alternate allele of r that no sample calls and
// returns how many were removed.
func TrimAlleles(h *Header, r *Record) (int, error) {
	mask, err := UnusedAlleles(h, r)
	if err != nil {
		return 0, err
	}
	if mask.None() {
		return 0, nil
	}
	return RemoveAlleles(h, r, mask)
}
