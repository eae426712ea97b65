package bcf

import (
	"errors"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maskOf(alleles ...uint) *bitset.BitSet {
	m := bitset.New(8)
	for _, a := range alleles {
		m.Set(a)
	}
	return m
}

func TestRemoveAllelesGenotypeField(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G", "T")
	r.Format = []FormatField{
		formatInts(t, h, FieldGT, gt(0, 3)),
		formatInts(t, h, "PL", []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}),
	}

	n, err := RemoveAlleles(h, r, maskOf(2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "C", "T"}, r.Alleles)

	pl, err := r.FormatByName(h, "PL")
	require.NoError(t, err)
	require.Equal(t, 6, pl.N)
	vals, err := pl.SampleInts(0)
	require.NoError(t, err)
	// 0/0 1/0 1/1 3/0 3/1 3/3
	assert.Equal(t, []int32{0, 1, 2, 6, 7, 9}, vals)

	g, err := r.FormatByName(h, FieldGT)
	require.NoError(t, err)
	call, err := g.SampleInts(0)
	require.NoError(t, err)
	assert.Equal(t, gt(0, 2), call)
}

func TestRemoveAllelesEmptyMask(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{
		formatInts(t, h, FieldGT, gt(0, 1), gt(2, 2)),
		formatInts(t, h, "PL", []int32{0, 1, 2, 3, 4, 5}, []int32{5, 4, 3, 2, 1, 0}),
	}
	before := cloneRecord(r)

	for _, mask := range []*bitset.BitSet{nil, bitset.New(0), bitset.New(3)} {
		n, err := RemoveAlleles(h, r, mask)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, before.Alleles, r.Alleles)
		assert.Equal(t, before.Format, r.Format)
	}
}

func TestRemoveAllelesInvalidMask(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 1))}
	before := cloneRecord(r)

	for _, mask := range []*bitset.BitSet{maskOf(0), maskOf(0, 1), maskOf(3), maskOf(1, 5)} {
		_, err := RemoveAlleles(h, r, mask)
		assert.ErrorIs(t, err, ErrInvalidMask, mask.String())
		assert.Equal(t, before.Alleles, r.Alleles)
		assert.Equal(t, before.Format, r.Format)
	}
}

func TestRemoveAllelesNumberARejected(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{
		formatInts(t, h, FieldGT, gt(0, 1), gt(1, 1)),
		formatInts(t, h, "PL", []int32{0, 1, 2, 3, 4, 5}, []int32{5, 4, 3, 2, 1, 0}),
		formatInts(t, h, "EC", []int32{1, 0}, []int32{2, 0}),
	}
	before := cloneRecord(r)

	n, err := RemoveAlleles(h, r, maskOf(2))
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.False(t, errors.Is(err, ErrCorrupt))

	var ue *UnsupportedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, UnsupportedNumber, ue.Kind)
	assert.Equal(t, "EC", ue.Field)
	assert.Equal(t, "chr1:101", ue.Site)

	// Fields before EC were already planned but nothing was committed
	assert.Equal(t, before.Alleles, r.Alleles)
	assert.Equal(t, before.Format, r.Format)
}

func TestRemoveAllelesHaploidGenotypeField(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	end := EndOfVector(WidthInt32)
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{
		formatInts(t, h, FieldGT, []int32{EncodeGenotype(0, false), end}, gt(2, 2)),
		formatInts(t, h, "PL", []int32{10, 20, 30, end, end, end}, []int32{0, 1, 2, 3, 4, 5}),
	}

	n, err := RemoveAlleles(h, r, maskOf(1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pl, err := r.FormatByName(h, "PL")
	require.NoError(t, err)
	require.Equal(t, 3, pl.N)

	haploid, err := pl.SampleInts(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 30, EndOfVector(pl.Type)}, haploid)

	diploid, err := pl.SampleInts(1)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 3, 5}, diploid)

	g, err := r.FormatByName(h, FieldGT)
	require.NoError(t, err)
	call, err := g.SampleInts(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{EncodeGenotype(0, false), EndOfVector(g.Type)}, call)
	call, err = g.SampleInts(1)
	require.NoError(t, err)
	assert.Equal(t, gt(1, 1), call)
}

func TestRemoveAllelesFloatGenotypeField(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G")
	gl, err := NewFormatFloats(mustID(t, h, "GL"), 6, []float32{-0.1, -1.5, -2.5, FloatMissing, -3.5, -4.5})
	require.NoError(t, err)
	r.Format = []FormatField{gl}

	// Five populated values fit neither the diploid nor the haploid layout

	_, err = RemoveAlleles(h, r, maskOf(2))
	assert.ErrorIs(t, err, ErrUnsupported)

	gl, err = NewFormatFloats(mustID(t, h, "GL"), 6, []float32{-0.1, -1.5, -2.5, -3, -3.5, -4.5})
	require.NoError(t, err)
	r.Format = []FormatField{gl}

	n, err := RemoveAlleles(h, r, maskOf(2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := r.FormatByName(h, "GL")
	require.NoError(t, err)
	require.Equal(t, 3, f.N)
	vals, err := f.SampleFloats(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{-0.1, -1.5, -2.5}, vals)
}

func TestRemoveAllelesFloatHaploidPadding(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G")
	gl, err := NewFormatFloats(mustID(t, h, "GL"), 6, []float32{-0.5, -1, -2, FloatEndOfVector, FloatEndOfVector, FloatEndOfVector})
	require.NoError(t, err)
	r.Format = []FormatField{gl}

	_, err = RemoveAlleles(h, r, maskOf(1))
	require.NoError(t, err)

	f, err := r.FormatByName(h, "GL")
	require.NoError(t, err)
	vals, err := f.SampleFloats(0)
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, float32(-0.5), vals[0])
	assert.Equal(t, float32(-2), vals[1])
	assert.True(t, FloatIsEndOfVector(vals[2]))
}

func TestRemoveAllelesRenumbersGenotypes(t *testing.T) {
	h := testHeader(t, "s1", "s2", "s3", "s4")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{formatInts(t, h, FieldGT,
		gt(0, 2),
		gt(1, 2),
		[]int32{EncodeGenotype(0, true), EncodeGenotype(1, true)},
		[]int32{Missing(WidthInt32), EncodeGenotype(2, false)},
	)}

	n, err := RemoveAlleles(h, r, maskOf(1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "G"}, r.Alleles)

	g := &r.Format[0]
	want := [][]int32{
		gt(0, 1),
		// The removed allele becomes a no-call
		gt(-1, 1),
		// Phase survives on the no-call
		{EncodeGenotype(0, true), EncodeGenotype(-1, true)},
		{Missing(g.Type), EncodeGenotype(1, false)},
	}
	for i, w := range want {
		call, err := g.SampleInts(i)
		require.NoError(t, err)
		assert.Equal(t, w, call, "sample %d", i)
	}
}

func TestRemoveAllelesLastAlleleCalled(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 2))}

	// Removing a called allele at the end moves no index but still has to
	// rewrite the call
	_, err := RemoveAlleles(h, r, maskOf(2))
	require.NoError(t, err)

	call, err := r.Format[0].SampleInts(0)
	require.NoError(t, err)
	assert.Equal(t, gt(0, -1), call)
}

func TestRemoveAllelesNumberR(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	r := newRecord(h, "A", "C", "G", "T")
	r.Format = []FormatField{formatInts(t, h, "AD", []int32{10, 5, 0, 1}, []int32{7, 0, 0, 8})}

	n, err := RemoveAlleles(h, r, maskOf(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A", "T"}, r.Alleles)

	ad := &r.Format[0]
	require.Equal(t, 2, ad.N)
	s0, err := ad.SampleInts(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 1}, s0)
	s1, err := ad.SampleInts(1)
	require.NoError(t, err)
	assert.Equal(t, []int32{7, 8}, s1)
}

func TestRemoveAllelesUnsupportedShape(t *testing.T) {
	h := testHeader(t, "s1")

	// PL sized for a different number of alleles
	r := newRecord(h, "A", "C", "G")
	r.Format = []FormatField{formatInts(t, h, "PL", []int32{0, 1, 2})}
	before := cloneRecord(r)

	_, err := RemoveAlleles(h, r, maskOf(1))
	var ue *UnsupportedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, UnsupportedShape, ue.Kind)
	assert.Equal(t, "PL", ue.Field)
	assert.Equal(t, before.Alleles, r.Alleles)
	assert.Equal(t, before.Format, r.Format)

	// A sample with no populated values at all
	end := EndOfVector(WidthInt32)
	r.Format = []FormatField{formatInts(t, h, "PL", []int32{end, end, end, end, end, end})}
	_, err = RemoveAlleles(h, r, maskOf(1))
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, UnsupportedShape, ue.Kind)
}

func TestTrimAllelesKeepsInfoCountsConsistent(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	r := newRecord(h, "A", "C", "G")
	r.Info = []InfoField{
		NewInfoInts(mustID(t, h, FieldAN), 4),
		NewInfoInts(mustID(t, h, FieldAC), 1, 0),
	}
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 1), gt(0, 0))}

	n, err := TrimAlleles(h, r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "C"}, r.Alleles)

	counts, src, err := AlleleCounts(h, r, UnpackAll)
	require.NoError(t, err)
	assert.Equal(t, CountSourceInfo, src)
	assert.Equal(t, []int{3, 1}, counts)

	// The INFO counts agree with a recount from GT
	fromGT, src, err := AlleleCounts(h, r, UnpackFormat)
	require.NoError(t, err)
	assert.Equal(t, CountSourceFormat, src)
	assert.Equal(t, counts, fromGT)
}

func TestRemoveAllelesCalledAlleleLowersAN(t *testing.T) {
	h := testHeader(t, "s1", "s2")
	r := newRecord(h, "A", "C", "G")
	r.Info = []InfoField{
		NewInfoInts(mustID(t, h, FieldAN), 4),
		NewInfoInts(mustID(t, h, FieldAC), 1, 2),
	}
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 2), gt(1, 2))}

	n, err := RemoveAlleles(h, r, maskOf(2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	an, err := r.InfoByName(h, FieldAN)
	require.NoError(t, err)
	vals, err := an.Ints()
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, vals)

	ac, err := r.InfoByName(h, FieldAC)
	require.NoError(t, err)
	assert.Equal(t, 1, ac.Len)
	vals, err = ac.Ints()
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, vals)

	counts, src, err := AlleleCounts(h, r, UnpackAll)
	require.NoError(t, err)
	assert.Equal(t, CountSourceInfo, src)
	assert.Equal(t, []int{1, 1}, counts)
}

func TestRemoveAllelesMissingACMakesANMissing(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G")
	r.Info = []InfoField{
		NewInfoInts(mustID(t, h, FieldAN), 2),
		NewInfoInts(mustID(t, h, FieldAC), 1, Missing(WidthInt32)),
	}
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 1))}

	_, err := RemoveAlleles(h, r, maskOf(2))
	require.NoError(t, err)

	// Without a usable AN the counts come from GT
	counts, src, err := AlleleCounts(h, r, UnpackAll)
	require.NoError(t, err)
	assert.Equal(t, CountSourceFormat, src)
	assert.Equal(t, []int{1, 1}, counts)
}

func TestRemoveAllelesInfoNumberRAndG(t *testing.T) {
	h := testHeader(t, "s1")
	rd := h.MustDeclare(KindInfo, "RD", FieldDecl{Number: NumberR, Type: WidthInt32, Description: "Read depth per allele"})
	gp := h.MustDeclare(KindInfo, "GP", FieldDecl{Number: NumberG, Type: WidthInt32, Description: "Genotype counts"})
	r := newRecord(h, "A", "C", "G")
	r.Info = []InfoField{
		NewInfoInts(rd, 10, 20, 30),
		NewInfoInts(gp, 0, 1, 2, 3, 4, 5),
	}
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 2))}

	_, err := RemoveAlleles(h, r, maskOf(1))
	require.NoError(t, err)

	vals, err := r.InfoByKey(rd).Ints()
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 30}, vals)

	vals, err = r.InfoByKey(gp).Ints()
	require.NoError(t, err)
	// 0/0 2/0 2/2
	assert.Equal(t, []int32{0, 3, 5}, vals)
}

func TestRemoveAllelesInfoLengthMismatch(t *testing.T) {
	h := testHeader(t, "s1")
	r := newRecord(h, "A", "C", "G")
	r.Info = []InfoField{NewInfoInts(mustID(t, h, FieldAC), 1)}
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 1))}
	before := cloneRecord(r)

	_, err := RemoveAlleles(h, r, maskOf(2))
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "INFO/AC")
	assert.Equal(t, before.Alleles, r.Alleles)
	assert.Equal(t, before.Info, r.Info)
	assert.Equal(t, before.Format, r.Format)
}

func TestRemoveAllelesManyAlleles(t *testing.T) {
	h := testHeader(t, "s1")
	alleles := make([]string, 40)
	for i := range alleles {
		alleles[i] = string(rune('A' + i%26))
	}
	r := newRecord(h, alleles...)
	r.Format = []FormatField{formatInts(t, h, FieldGT, gt(0, 39))}

	mask, err := UnusedAlleles(h, r)
	require.NoError(t, err)
	assert.Equal(t, uint(38), mask.Count())

	n, err := RemoveAlleles(h, r, mask)
	require.NoError(t, err)
	assert.Equal(t, 38, n)
	require.Len(t, r.Alleles, 2)

	call, err := r.Format[0].SampleInts(0)
	require.NoError(t, err)
	assert.Equal(t, gt(0, 1), call)
}
