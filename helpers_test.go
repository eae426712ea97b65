package bcf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testHeader declares the fields used throughout the tests. PL is an int
// Number=G field, GL a float one, AD is Number=R, EC is Number=A and DP is
// a fixed scalar.
func testHeader(t *testing.T, samples ...string) *Header {
	t.Helper()

	h := NewHeader()
	h.Contigs = []string{"chr1", "chr2"}
	h.Samples = samples

	h.MustDeclare(KindInfo, FieldAN, FieldDecl{Number: NumberFixed, Count: 1, Type: WidthInt32, Description: "Total number of alleles in called genotypes"})
	h.MustDeclare(KindInfo, FieldAC, FieldDecl{Number: NumberA, Type: WidthInt32, Description: "Allele count in genotypes"})
	h.MustDeclare(KindFormat, FieldGT, FieldDecl{Number: NumberFixed, Count: 2, Type: WidthInt8, Description: "Genotype"})
	h.MustDeclare(KindFormat, "PL", FieldDecl{Number: NumberG, Type: WidthInt32, Description: "Phred-scaled genotype likelihoods"})
	h.MustDeclare(KindFormat, "GL", FieldDecl{Number: NumberG, Type: WidthFloat, Description: "Genotype likelihoods"})
	h.MustDeclare(KindFormat, "AD", FieldDecl{Number: NumberR, Type: WidthInt32, Description: "Allelic depths"})
	h.MustDeclare(KindFormat, "EC", FieldDecl{Number: NumberA, Type: WidthInt32, Description: "Expected alternate allele counts"})
	h.MustDeclare(KindFormat, "DP", FieldDecl{Number: NumberFixed, Count: 1, Type: WidthInt32, Description: "Read depth"})

	return h
}

func mustID(t *testing.T, h *Header, name string) int {
	t.Helper()
	id, ok := h.ID(name)
	require.True(t, ok, "%s is not declared", name)
	return id
}

// gt encodes one unphased diploid or haploid call per argument list.
func gt(alleles ...int) []int32 {
	out := make([]int32, len(alleles))
	for i, a := range alleles {
		out[i] = EncodeGenotype(a, false)
	}
	return out
}

// formatInts packs the per-sample values in samples (all of the same
// length) into one FORMAT field.
func formatInts(t *testing.T, h *Header, name string, samples ...[]int32) FormatField {
	t.Helper()
	require.NotEmpty(t, samples)
	var vals []int32
	for _, s := range samples {
		require.Len(t, s, len(samples[0]))
		vals = append(vals, s...)
	}
	f, err := NewFormatInts(mustID(t, h, name), len(samples[0]), vals)
	require.NoError(t, err)
	return f
}

func newRecord(h *Header, alleles ...string) *Record {
	return &Record{
		RID:      0,
		Pos:      100,
		ID:       "rs1",
		Alleles:  alleles,
		NSamples: len(h.Samples),
	}
}

// cloneRecord deep copies the parts of r that allele removal may touch.
func cloneRecord(r *Record) *Record {
	out := *r
	out.Alleles = append([]string(nil), r.Alleles...)
	out.Info = make([]InfoField, len(r.Info))
	for i, f := range r.Info {
		f.Data = append([]byte(nil), f.Data...)
		out.Info[i] = f
	}
	out.Format = make([]FormatField, len(r.Format))
	for i, f := range r.Format {
		f.Data = append([]byte(nil), f.Data...)
		out.Format[i] = f
	}
	return &out
}
