package bcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnusedAlleles(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 1), gt(1, 1))}

	mask, err := UnusedAlleles(h, r)
	require.NoError(t, err)
	assert.Equal(t, uint(1), mask.Count())
	assert.True(t, mask.Test(2))
	assert.False(t, mask.Test(0))
}

func TestUnusedAllelesNeverIncludesReference(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(2, 2))}

	mask, err := UnusedAlleles(h, r)
	require.NoError(t, err)
	assert.False(t, mask.Test(0))
	assert.True(t, mask.Test(1))
	assert.False(t, mask.Test(2))
}

func TestUnusedAllelesWithoutGenotypes(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{formatInts(t, h, "DP", []int32{12})}

	mask, err := UnusedAlleles(h, r)
	require.NoError(t, err)
	assert.True(t, mask.None())

	n, err := TrimAlleles(h, r)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"A", "C", "G"}, r.Alleles)
}

func TestTrimAlleles(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 1), gt(1, 1))}
	before := cloneRecord(r)

	n, err := TrimAlleles(h, r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "C"}, r.Alleles)
	// Allele 2 was last, so no surviving index changed
	assert.Equal(t, before.Format[0].Data, r.Format[0].Data)

	// A second pass finds nothing to do
	n, err = TrimAlleles(h, r)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTrimAllelesRenumbersDependentFields(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{
		formatInts(t, h, FieldGT, gt(0, 2), gt(2, 2)),
		formatInts(t, h, "AD", []int32{10, 0, 4}, []int32{0, 0, 9}),
		formatInts(t, h, "PL", []int32{0, 10, 20, 30, 40, 50}, []int32{60, 70, 80, 90, 100, 110}),
		formatInts(t, h, "DP", []int32{14}, []int32{9}),
	}

	n, err := TrimAlleles(h, r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "G"}, r.Alleles)

	gtField, err := r.FormatByName(h, FieldGT)
	require.NoError(t, err)
	s0, err := gtField.SampleInts(0)
	require.NoError(t, err)
	assert.Equal(t, gt(0, 1), s0)
	s1, err := gtField.SampleInts(1)
	require.NoError(t, err)
	assert.Equal(t, gt(1, 1), s1)

	ad, err := r.FormatByName(h, "AD")
	require.NoError(t, err)
	assert.Equal(t, 2, ad.N)
	a0, err := ad.SampleInts(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 4}, a0)

	// Triangular order 0/0 0/1 1/1 0/2 1/2 2/2 keeps 0/0 0/2 2/2
	pl, err := r.FormatByName(h, "PL")
	require.NoError(t, err)
	assert.Equal(t, 3, pl.N)
	p1, err := pl.SampleInts(1)
	require.NoError(t, err)
	assert.Equal(t, []int32{60, 90, 110}, p1)

	dp, err := r.FormatByName(h, "DP")
	require.NoError(t, err)
	d1, err := dp.SampleInts(1)
	require.NoError(t, err)
	assert.Equal(t, []int32{9}, d1)
}

func TestTrimAllelesCorruptGenotype(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C")
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 3))}

	_, err := TrimAlleles(h, r)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, []string{"A", "C"}, r.Alleles)
}
