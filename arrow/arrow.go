// Package arrow exports per-allele counts as Arrow IPC files.
package arrow

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/carbocation/bcf"
)

// CountSchema is the layout of every file written by CountWriter. Position
// is 1-based.
var CountSchema = arrow.NewSchema([]arrow.Field{
	{Name: "chromosome", Type: arrow.BinaryTypes.String},
	{Name: "position", Type: arrow.PrimitiveTypes.Int32},
	{Name: "allele_index", Type: arrow.PrimitiveTypes.Int32},
	{Name: "allele", Type: arrow.BinaryTypes.String},
	{Name: "count", Type: arrow.PrimitiveTypes.Int64},
	{Name: "frequency", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// CountWriter writes one row per allele, flushing a record batch every
// chunkSize rows.
type CountWriter struct {
	file   *os.File
	writer *ipc.FileWriter
	pool   *memory.GoAllocator

	chromosome  *array.StringBuilder
	position    *array.Int32Builder
	alleleIndex *array.Int32Builder
	allele      *array.StringBuilder
	count       *array.Int64Builder
	frequency   *array.Float64Builder

	chunkSize      int
	numRowsInChunk int
}

func NewCountWriter(filePath string, chunkSize int) (*CountWriter, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}

	writer, err := ipc.NewFileWriter(file, ipc.WithSchema(CountSchema))
	if err != nil {
		file.Close()
		return nil, err
	}

	pool := memory.NewGoAllocator()

	return &CountWriter{
		file:        file,
		writer:      writer,
		pool:        pool,
		chromosome:  array.NewStringBuilder(pool),
		position:    array.NewInt32Builder(pool),
		alleleIndex: array.NewInt32Builder(pool),
		allele:      array.NewStringBuilder(pool),
		count:       array.NewInt64Builder(pool),
		frequency:   array.NewFloat64Builder(pool),
		chunkSize:   chunkSize,
	}, nil
}

// Write appends the counts of r, one row per allele.
func (cw *CountWriter) Write(h *bcf.Header, r *bcf.Record, counts []int) error {
	if len(counts) != len(r.Alleles) {
		return fmt.Errorf("mismatch in number of alleles: expected %d, got %d", len(r.Alleles), len(counts))
	}

	chrom := h.Contig(r.RID)
	freqs := bcf.AlleleFrequencies(counts)
	for i, allele := range r.Alleles {
		cw.chromosome.Append(chrom)
		cw.position.Append(r.Pos + 1)
		cw.alleleIndex.Append(int32(i))
		cw.allele.Append(allele)
		cw.count.Append(int64(counts[i]))
		cw.frequency.Append(freqs[i])

		cw.numRowsInChunk++
		if cw.numRowsInChunk == cw.chunkSize {
			if err := cw.writeChunk(); err != nil {
				return err
			}
		}
	}

	return nil
}

func (cw *CountWriter) writeChunk() error {
	// NewArray resets each builder
	cols := []arrow.Array{
		cw.chromosome.NewArray(),
		cw.position.NewArray(),
		cw.alleleIndex.NewArray(),
		cw.allele.NewArray(),
		cw.count.NewArray(),
		cw.frequency.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	record := array.NewRecord(CountSchema, cols, int64(cw.numRowsInChunk))
	defer record.Release()

	if err := cw.writer.Write(record); err != nil {
		return err
	}

	cw.numRowsInChunk = 0

	return nil
}

// Close writes any buffered rows, the file footer, and closes the file.
func (cw *CountWriter) Close() error {
	if cw.numRowsInChunk > 0 {
		if err := cw.writeChunk(); err != nil {
			cw.file.Close()
			return err
		}
	}
	if err := cw.writer.Close(); err != nil {
		cw.file.Close()
		return err
	}
	return cw.file.Close()
}
