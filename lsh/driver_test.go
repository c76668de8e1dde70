package lsh

import (
	"errors"
	"math"
	"testing"
)

// S6: training MUST complete and populate every table's basis regardless of
// batchSize, whether tables are trained one at a time, in small batches, or
// all at once.
func TestTrainAllBatchSizeIndependence(t *testing.T) {
	data := gaussianDataset(t, 300, 10, 21)
	p := Parameter{D: 10, N: 6, S: 64, L: 16}

	for _, batchSize := range []int{1, 4, 16} {
		bases, err := TrainAll(data, p, batchSize, 100)
		if err != nil {
			t.Fatalf("TrainAll(batchSize=%d) error: %v", batchSize, err)
		}
		if len(bases) != int(p.L) {
			t.Fatalf("TrainAll(batchSize=%d) returned %d bases, want %d", batchSize, len(bases), p.L)
		}
		for k, basis := range bases {
			if len(basis) != int(p.N) {
				t.Fatalf("batchSize=%d: basis %d has %d rows, want %d", batchSize, k, len(basis), p.N)
			}
		}
	}
}

func TestTrainAllFirstErrorWinsNoPartialUse(t *testing.T) {
	rows := make([][]float32, 64)
	for i := range rows {
		row := make([]float32, 4)
		for j := range row {
			row[j] = float32(i + j)
		}
		rows[i] = row
	}
	// S equals the full dataset, so corrupting a handful of rows guarantees
	// every table's sample draws at least one non-finite value.
	for i := 60; i < len(rows); i++ {
		rows[i][0] = float32(math.NaN())
	}
	data, err := NewFloatMatrix(rows)
	if err != nil {
		t.Fatalf("NewFloatMatrix: %v", err)
	}

	p := Parameter{D: 4, N: 2, S: 64, L: 8}
	bases, err := TrainAll(data, p, 2, 9)
	if err == nil {
		t.Fatal("TrainAll with a corrupted dataset returned nil error")
	}
	if !errors.Is(err, ErrDataset) {
		t.Errorf("TrainAll error = %v, want ErrDataset", err)
	}
	if bases != nil {
		t.Error("TrainAll returned non-nil bases alongside an error")
	}
}

func TestTrainAllRejectsInvalidParameter(t *testing.T) {
	data := gaussianDataset(t, 16, 4, 1)
	p := Parameter{D: 4, N: 2, S: 16, L: 0}
	if _, err := TrainAll(data, p, 0, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("TrainAll with L=0 error = %v, want ErrInvalidParameter", err)
	}
}
