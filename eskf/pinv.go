package eskf

import "gonum.org/v1/gonum/mat"

// pseudoInverse computes the Moore-Penrose pseudo-inverse of a via SVD, the
// same fallback the indoor positioning filter this package is descended
// from uses when its innovation covariance turns out singular.
func pseudoInverse(a mat.Matrix) *mat.Dense {
	var svd mat.SVD
	ok := svd.Factorize(a, mat.SVDThin)
	r, c := a.Dims()
	if !ok {
		return mat.NewDense(r, c, nil)
	}

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	const tol = 1e-10
	sInv := mat.NewDense(len(values), len(values), nil)
	for i, s := range values {
		if s > tol {
			sInv.Set(i, i, 1/s)
		}
	}

	var vs mat.Dense
	vs.Mul(&v, sInv)
	var out mat.Dense
	out.Mul(&vs, u.T())
	return &out
}
