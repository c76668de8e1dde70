// Package ann provides the benchmark driver collaborators the lsh index
// core treats as external: fvecs/ivecs file readers, recall computation,
// and result formatting. None of it is required to use package lsh; it
// exists so the library is runnable end to end against the standard
// ANN-benchmark corpora (SIFT1M, GIST1M, and similar), which ship their
// vectors and ground truth in these binary formats.
package ann

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ReadFvecs reads a .fvecs file: a sequence of records, each a little-endian
// int32 dimension followed by that many little-endian float32 values. All
// records must share the same dimension.
func ReadFvecs(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ann: opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var vectors [][]float32
	var dim int32

	for {
		var d int32
		if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("ann: reading dimension in %s: %w", path, err)
		}
		if dim == 0 {
			dim = d
		} else if d != dim {
			return nil, fmt.Errorf("ann: %s: record has dimension %d, expected %d", path, d, dim)
		}

		row := make([]float32, d)
		if err := binary.Read(r, binary.LittleEndian, &row); err != nil {
			return nil, fmt.Errorf("ann: reading vector in %s: %w", path, err)
		}
		vectors = append(vectors, row)
	}
	return vectors, nil
}

// ReadIvecs reads a .ivecs file: the same record layout as fvecs, but with
// int32 payloads instead of float32. Used for ground-truth neighbor lists.
func ReadIvecs(path string) ([][]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ann: opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var records [][]int32

	for {
		var d int32
		if err := binary.Read(r, binary.LittleEndian, &d); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("ann: reading dimension in %s: %w", path, err)
		}

		row := make([]int32, d)
		if err := binary.Read(r, binary.LittleEndian, &row); err != nil {
			return nil, fmt.Errorf("ann: reading record in %s: %w", path, err)
		}
		records = append(records, row)
	}
	return records, nil
}
