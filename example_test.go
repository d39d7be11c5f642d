// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obstacle_test

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mheldman/obstacle"
	"github.com/mheldman/obstacle/multigrid"
)

// Example solves the radially symmetric obstacle problem of Brandt and
// Cryer: a spherical obstacle under an elastic membrane on [-2,2]².
func Example() {
	const (
		alpha = 0.68026
		beta  = 0.47152
	)
	f := func(x, y float64) float64 { return 0 }
	g := func(x, y float64) float64 {
		return -alpha*math.Log(math.Hypot(x, y)) + beta
	}
	psi := func(x, y float64) float64 {
		rr := x*x + y*y
		z := math.Sqrt(math.Max(1-rr, 0))
		if z < 1/math.Sqrt2 {
			z = -rr/math.Sqrt2 + math.Sqrt2 - 1/(2*math.Sqrt2)
		}
		return z
	}

	prob := obstacle.New(-2, 2, -2, 2, f, g, psi)
	levels := prob.Hierarchy(1, 1, 4)

	solver, err := multigrid.NewPFAS(levels,
		multigrid.ProjectedGaussSeidel{}, multigrid.GaussSeidel{}, multigrid.DenseSolver{})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Print(prob)
	fmt.Print(solver)

	res, err := solver.Solve(prob.B, multigrid.Settings{Tolerance: 1e-8})
	if err != nil {
		fmt.Println(err)
		return
	}
	last := res.Residuals[len(res.Residuals)-1]
	fmt.Println("converged:", last/floats.Norm(prob.B, 2) <= 1e-8)
	fmt.Println("contact detected:", len(res.ActiveSet) > 0)

	// Output:
	// Obstacle problem on [-2, 2] x [-2, 2]
	// Discretized on (17 x 17) grid
	// PFAS solver
	// Number of levels = 4
	// Fine grid size (17 x 17)
	// 225 fine grid unknowns
	// Coarse grid size (3 x 3)
	// 1 coarse grid unknown(s)
	// converged: true
	// contact detected: true
}
