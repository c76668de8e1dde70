package core

import "math"

// NormalizeVector scales vec to unit L2 norm in place. A zero vector is left unchanged.
func NormalizeVector(vec []float32) {
	if len(vec) == 0 {
		return
	}
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	scale := float32(1.0 / norm)
	for i := range vec {
		vec[i] *= scale
	}
}

// NormalizeBatch normalizes multiple vectors concurrently, one goroutine per vector.
func NormalizeBatch(vecs [][]float32) {
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return
	}

	// Create a channel to synchronize the goroutines.
	done := make(chan struct{})
	for i := range vecs {
		go func(i int) {
			NormalizeVector(vecs[i])
			done <- struct{}{}
		}(i)
	}

	// Wait for all go routines to finish.
	for range vecs {
		<-done
	}

	close(done)
}
