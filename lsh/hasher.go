package lsh

import (
	"context"
	"fmt"
	"math"
)

// Stats holds the quantization statistics computed by MeanAndStd: for each
// of the N code dimensions, the mean and standard deviation of the
// projection conditioned on its sign.
type Stats struct {
	MeanPos []float32
	MeanNeg []float32
	StdPos  []float32
	StdNeg  []float32
}

// Hasher turns vectors into bucket ids using a trained set of per-table
// bases. It has no state of its own beyond the bases it was built from.
type Hasher struct {
	bases [][][]float32 // [table][bit][dim]
	n     int
	d     int
}

// NewHasher wraps a trained set of per-table bases. Every basis must have N
// rows of length D.
func NewHasher(bases [][][]float32, n, d int) (*Hasher, error) {
	for k, basis := range bases {
		if len(basis) != n {
			return nil, fmt.Errorf("%w: table %d basis has %d rows, expected N=%d", ErrDataset, k, len(basis), n)
		}
		for i, row := range basis {
			if len(row) != d {
				return nil, fmt.Errorf("%w: table %d basis row %d has length %d, expected D=%d", ErrDataset, k, i, len(row), d)
			}
		}
	}
	return &Hasher{bases: bases, n: n, d: d}, nil
}

// Basis returns the N x D basis for table k.
func (h *Hasher) Basis(k int) [][]float32 { return h.bases[k] }

// NumTables returns how many per-table bases this hasher holds.
func (h *Hasher) NumTables() int { return len(h.bases) }

// Project returns basis[k].v, a real-valued N-vector. v must not contain
// NaN or infinite values; behavior on such input is unspecified.
func (h *Hasher) Project(k int, v []float32) []float32 {
	basis := h.bases[k]
	out := make([]float32, h.n)
	for i, row := range basis {
		var sum float32
		for j, b := range row {
			sum += b * v[j]
		}
		out[i] = sum
	}
	return out
}

// Quantize maps a real-valued projection to its sign-based binary code:
// bit i is 1 when f[i] >= 0. It is a total function; a vector of zeros
// quantizes to all ones.
func Quantize(f []float32) []bool {
	bits := make([]bool, len(f))
	for i, v := range f {
		bits[i] = v >= 0
	}
	return bits
}

// PackBits packs a quantized bit vector into a 64-bit bucket id, bit 0 at
// the most-significant position and bit N-1 at the least-significant
// position. This big-endian bit order is load-bearing for the persisted
// format and must never be flipped.
func PackBits(bits []bool) uint64 {
	var id uint64
	n := len(bits)
	for i, b := range bits {
		if b {
			id |= uint64(1) << uint(n-1-i)
		}
	}
	return id
}

// BucketID computes the bucket id for table k and vector v. It is
// implemented strictly as Project then Quantize then PackBits so the
// refinement invariant bucketId == pack(quantize(project(v))) holds
// structurally rather than by coincidence.
func (h *Hasher) BucketID(k int, v []float32) uint64 {
	return PackBits(Quantize(h.Project(k, v)))
}

// MeanAndStd computes the quantization statistics for table 0 over the
// entire dataset, in two passes: the first accumulates per-dimension sums
// and counts split by the sign of the projection, yielding the conditional
// means; the second accumulates squared deviations from those means,
// dividing by the conditional count (not count-1, a biased/population
// estimator) before taking the square root.
//
// ctx is checked once per row so a long-running call over a large dataset
// can be cancelled; it returns ctx.Err() on cancellation.
func (h *Hasher) MeanAndStd(ctx context.Context, data Dataset) (Stats, error) {
	n := h.n
	sumPos := make([]float64, n)
	sumNeg := make([]float64, n)
	countPos := make([]int, n)
	countNeg := make([]int, n)

	rows := data.Rows()
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		f := h.Project(0, data.Row(r))
		for i, v := range f {
			if v >= 0 {
				sumPos[i] += float64(v)
				countPos[i]++
			} else {
				sumNeg[i] += float64(v)
				countNeg[i]++
			}
		}
	}

	meanPos := make([]float32, n)
	meanNeg := make([]float32, n)
	for i := 0; i < n; i++ {
		if countPos[i] > 0 {
			meanPos[i] = float32(sumPos[i] / float64(countPos[i]))
		}
		if countNeg[i] > 0 {
			meanNeg[i] = float32(sumNeg[i] / float64(countNeg[i]))
		}
	}

	sqPos := make([]float64, n)
	sqNeg := make([]float64, n)
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		f := h.Project(0, data.Row(r))
		for i, v := range f {
			if v >= 0 {
				d := float64(v) - float64(meanPos[i])
				sqPos[i] += d * d
			} else {
				d := float64(v) - float64(meanNeg[i])
				sqNeg[i] += d * d
			}
		}
	}

	stdPos := make([]float32, n)
	stdNeg := make([]float32, n)
	for i := 0; i < n; i++ {
		if countPos[i] > 0 {
			stdPos[i] = float32(math.Sqrt(sqPos[i] / float64(countPos[i])))
		}
		if countNeg[i] > 0 {
			stdNeg[i] = float32(math.Sqrt(sqNeg[i] / float64(countNeg[i])))
		}
	}

	return Stats{MeanPos: meanPos, MeanNeg: meanNeg, StdPos: stdPos, StdNeg: stdNeg}, nil
}
