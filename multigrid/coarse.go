// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multigrid

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mheldman/obstacle/sparse"
)

// CoarseSolver performs the exact solve of the coarsest-level system.
type CoarseSolver interface {
	Solve(a *sparse.CSR, b []float64) ([]float64, error)
}

// DenseSolver is a direct coarse-grid solver using a dense LU
// factorization. The coarsest system is small, so the dense expansion is
// cheap. A singular or ill-posed system is a fatal error and is reported as
// such; the multigrid layer does not attempt recovery.
type DenseSolver struct{}

// Solve returns the solution of A*x = b.
func (DenseSolver) Solve(a *sparse.CSR, b []float64) ([]float64, error) {
	n, c := a.Dims()
	if n != c {
		panic("multigrid: coarse operator is not square")
	}
	if len(b) != n {
		panic("multigrid: dimension mismatch")
	}
	var lu mat.LU
	lu.Factorize(a.Dense())
	x := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(n, b)); err != nil {
		return nil, fmt.Errorf("multigrid: coarse solve failed: %w", err)
	}
	return x.RawVector().Data, nil
}
