// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multigrid

import "github.com/mheldman/obstacle/sparse"

// Smoother performs stationary relaxation sweeps on the system A*u = b,
// updating u in place.
type Smoother interface {
	Smooth(a *sparse.CSR, u, b []float64, sweeps int)
}

// GaussSeidel is a lexicographic Gauss-Seidel smoother.
type GaussSeidel struct{}

// Smooth runs sweeps Gauss-Seidel sweeps on A*u = b.
func (GaussSeidel) Smooth(a *sparse.CSR, u, b []float64, sweeps int) {
	n, _ := a.Dims()
	if len(u) != n || len(b) != n {
		panic("multigrid: dimension mismatch")
	}
	for s := 0; s < sweeps; s++ {
		for i := 0; i < n; i++ {
			var sum, diag float64
			a.DoRowNonZero(i, func(j int, v float64) {
				if j == i {
					diag = v
				} else {
					sum += v * u[j]
				}
			})
			u[i] = (b[i] - sum) / diag
		}
	}
}

// ProjectedGaussSeidel is a projected Gauss-Seidel smoother for linear
// complementarity problems: each pointwise update is clamped to the
// feasible region u >= 0.
type ProjectedGaussSeidel struct{}

// Smooth runs sweeps projected Gauss-Seidel sweeps on the complementarity
// system A*u = b, u >= 0.
func (ProjectedGaussSeidel) Smooth(a *sparse.CSR, u, b []float64, sweeps int) {
	n, _ := a.Dims()
	if len(u) != n || len(b) != n {
		panic("multigrid: dimension mismatch")
	}
	for s := 0; s < sweeps; s++ {
		for i := 0; i < n; i++ {
			var sum, diag float64
			a.DoRowNonZero(i, func(j int, v float64) {
				if j == i {
					diag = v
				} else {
					sum += v * u[j]
				}
			})
			ui := (b[i] - sum) / diag
			if ui < 0 {
				ui = 0
			}
			u[i] = ui
		}
	}
}
