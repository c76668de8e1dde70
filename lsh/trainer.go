package lsh

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// TrainTable computes the N x D projection basis for one hash table: the N
// leading principal components of the centered sample covariance,
// optionally composed with an iterative-quantization rotation.
//
// rng supplies all randomness for this call (the sample draw, the seed
// rotation, and, when I > 0, nothing further — ITQ itself is
// deterministic given C and the seed rotation).
func TrainTable(data Dataset, p Parameter, rng *rand.Rand) ([][]float32, error) {
	n, d := data.Rows(), data.Dim()
	s, nbits := int(p.S), int(p.N)

	if s > n {
		return nil, fmt.Errorf("%w: sample size S (%d) exceeds dataset rows (%d)", ErrInvalidParameter, s, n)
	}
	if nbits > d {
		return nil, fmt.Errorf("%w: N (%d) exceeds dataset dimension (%d)", ErrInvalidParameter, nbits, d)
	}

	sampleIdx, err := SelectIndices(n, s, rng)
	if err != nil {
		return nil, err
	}

	// Gather the sample into an S x D matrix and center it by column mean.
	xc := mat.NewDense(s, d, nil)
	mean := make([]float64, d)
	for _, row := range sampleIdx {
		v := data.Row(row)
		if len(v) != d {
			return nil, fmt.Errorf("%w: row %d has dimension %d, expected %d", ErrDataset, row, len(v), d)
		}
		for j, f := range v {
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				return nil, fmt.Errorf("%w: non-finite value at row %d, dim %d", ErrDataset, row, j)
			}
			mean[j] += float64(f)
		}
	}
	for j := range mean {
		mean[j] /= float64(s)
	}
	for i, row := range sampleIdx {
		v := data.Row(row)
		for j, f := range v {
			xc.Set(i, j, float64(f)-mean[j])
		}
	}

	// Symmetric covariance Sigma = Xc^T Xc / (S - 1).
	var cov mat.Dense
	cov.Mul(xc.T(), xc)
	cov.Scale(1.0/float64(s-1), &cov)
	symCov := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			symCov.SetSym(i, j, cov.At(i, j))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(symCov, true); !ok {
		return nil, fmt.Errorf("%w: covariance eigendecomposition did not converge", ErrTraining)
	}
	var eigenvectors mat.Dense
	eig.VectorsTo(&eigenvectors)

	// gonum returns eigenvectors in ascending eigenvalue order, so the top
	// N components are the last N columns.
	proj := mat.NewDense(d, nbits, nil)
	for col := 0; col < nbits; col++ {
		srcCol := d - nbits + col
		for row := 0; row < d; row++ {
			proj.Set(row, col, eigenvectors.At(row, srcCol))
		}
	}

	// C = Xc . P, an S x N matrix of centered projections.
	var c mat.Dense
	c.Mul(xc, proj)

	// Random N x N Gaussian seed matrix, thin SVD, R := U gives an
	// orthonormal seed rotation.
	seed := mat.NewDense(nbits, nbits, nil)
	for i := 0; i < nbits; i++ {
		for j := 0; j < nbits; j++ {
			seed.Set(i, j, rng.NormFloat64())
		}
	}
	var seedSVD mat.SVD
	if ok := seedSVD.Factorize(seed, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: seed rotation SVD did not converge", ErrTraining)
	}
	var r mat.Dense
	seedSVD.UTo(&r)

	for iter := 0; iter < int(p.I); iter++ {
		newR, err := itqStep(&c, &r, nbits)
		if err != nil {
			return nil, err
		}
		r = *newR
	}

	// Final basis: row i of the stored N x D basis equals column i of P.R.
	var pr mat.Dense
	pr.Mul(proj, &r)

	basis := make([][]float32, nbits)
	for i := 0; i < nbits; i++ {
		row := make([]float32, d)
		for j := 0; j < d; j++ {
			row[j] = float32(pr.At(j, i))
		}
		basis[i] = row
	}
	return basis, nil
}

// itqStep runs one alternating-minimization update of the ITQ rotation:
// B := sign(C.R), then R := V.U^T from the SVD of B^T.C. It minimizes
// ||sign(C.R) - C.R||^2 in the rotation R.
func itqStep(c, r *mat.Dense, nbits int) (*mat.Dense, error) {
	var cr mat.Dense
	cr.Mul(c, r)

	rows, _ := cr.Dims()
	b := mat.NewDense(rows, nbits, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < nbits; j++ {
			if cr.At(i, j) >= 0 {
				b.Set(i, j, 1)
			} else {
				b.Set(i, j, -1)
			}
		}
	}

	var m mat.Dense
	m.Mul(b.T(), c)

	var svd mat.SVD
	if ok := svd.Factorize(&m, mat.SVDFull); !ok {
		return nil, fmt.Errorf("%w: ITQ rotation SVD did not converge", ErrTraining)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var newR mat.Dense
	newR.Mul(&v, u.T())
	return &newR, nil
}
