package lsh

import "errors"

// Sentinel error kinds. Wrap one of these with fmt.Errorf("...: %w", ErrX)
// so callers can classify failures with errors.Is without parsing messages.
var (
	// ErrInvalidParameter covers out-of-range N, S, D, L == 0, and k > n at the sampler.
	ErrInvalidParameter = errors.New("lsh: invalid parameter")

	// ErrDataset covers dimension mismatch, non-finite scalars, and empty datasets.
	ErrDataset = errors.New("lsh: dataset error")

	// ErrTraining covers eigendecomposition or SVD failing to converge.
	ErrTraining = errors.New("lsh: training failure")

	// ErrIO covers file open, read, write, and short-read failures.
	ErrIO = errors.New("lsh: io error")

	// ErrFormat covers a serialized stream that is internally inconsistent.
	ErrFormat = errors.New("lsh: format error")

	// ErrState covers an operation invoked in the wrong lifecycle state.
	ErrState = errors.New("lsh: invalid state")
)
