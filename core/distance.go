package core

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

// Distances is a map of human-readable names to distance functions.
// You can use it to choose a distance metric by name.
var Distances = map[string]DistanceFunc{
	"euclidean":         Euclidean,
	"squared_euclidean": SquaredEuclidean,
	"manhattan":         Manhattan,
	"cosine":            CosineDistance,
	"angular":           AngularDistance,
}

func asBlasVector(v []float32) blas32.Vector {
	return blas32.Vector{N: len(v), Inc: 1, Data: v}
}

func dot(a, b []float32) float64 {
	return float64(blas32.Dot(asBlasVector(a), asBlasVector(b)))
}

func requireSameLen(a, b []float32) {
	if len(a) == 0 || len(b) == 0 {
		panic("vectors must not be empty")
	}
	if len(a) != len(b) {
		panic("vectors must have the same length")
	}
}

// Euclidean computes the Euclidean (L2) distance between two vectors.
func Euclidean(a, b []float32) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// SquaredEuclidean computes the squared Euclidean distance between two vectors.
func SquaredEuclidean(a, b []float32) float64 {
	requireSameLen(a, b)
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

// Manhattan computes the Manhattan (L1) distance between two vectors.
func Manhattan(a, b []float32) float64 {
	requireSameLen(a, b)
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i] - b[i]))
	}
	return sum
}

// CosineDistance computes the cosine distance (1 - cosine similarity) between two vectors.
func CosineDistance(a, b []float32) float64 {
	requireSameLen(a, b)
	num := dot(a, b)
	denom := math.Sqrt(dot(a, a)) * math.Sqrt(dot(b, b))
	if denom == 0 {
		return 1
	}
	return 1 - num/denom
}

// AngularDistance computes the angle (in radians) between two vectors.
func AngularDistance(a, b []float32) float64 {
	requireSameLen(a, b)
	num := dot(a, b)
	denom := math.Sqrt(dot(a, a)) * math.Sqrt(dot(b, b))
	if denom == 0 {
		return 0
	}
	cos := num / denom
	// Guard against floating-point drift pushing the ratio outside [-1, 1].
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}
