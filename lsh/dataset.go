package lsh

import "fmt"

// Dataset is the minimal read-only capability the core requires of its
// input matrix: row count, dimension, and indexed row access. Callers may
// supply their own implementation (e.g. a memory-mapped fvecs reader); the
// core never assumes a particular storage layout beyond row-major access.
type Dataset interface {
	Rows() int
	Dim() int
	Row(i int) []float32
}

// FloatMatrix is a minimal in-memory, row-major Dataset implementation.
type FloatMatrix struct {
	rows int
	dim  int
	data [][]float32
}

// NewFloatMatrix wraps existing row-major data as a Dataset. Every row must
// have the same length; rows is stored by reference, not copied.
func NewFloatMatrix(rows [][]float32) (*FloatMatrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: dataset has zero rows", ErrDataset)
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: dataset rows have zero dimension", ErrDataset)
	}
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("%w: row %d has dimension %d, expected %d", ErrDataset, i, len(r), dim)
		}
	}
	return &FloatMatrix{rows: len(rows), dim: dim, data: rows}, nil
}

func (m *FloatMatrix) Rows() int           { return m.rows }
func (m *FloatMatrix) Dim() int            { return m.dim }
func (m *FloatMatrix) Row(i int) []float32 { return m.data[i] }
