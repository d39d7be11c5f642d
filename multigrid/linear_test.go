// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multigrid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/mheldman/obstacle/poisson"
)

// poissonHierarchy builds a finest-first Poisson hierarchy on
// [x1,x2]×[y1,y2], refining numLevels-1 times from a coarseMx×coarseMx
// coarsest grid.
func poissonHierarchy(coarseMx, numLevels int, x1, x2, y1, y2 float64) []*Level {
	levels := make([]*Level, numLevels)
	mx := coarseMx
	for l := numLevels - 1; l >= 0; l-- {
		levels[l] = NewLevelFromBuilders(mx, mx, x1, x2, y1, y2,
			poisson.Operator, poisson.Restriction, poisson.Prolongation,
			poisson.BoundaryIndices(mx, mx))
		mx = 2*mx + 1
	}
	return levels
}

// sinProblem is a Poisson problem on [-1,1]² with the known solution
// sin(2πx)sin(2πy).
func sinProblem(mx int) (b, uexact []float64) {
	f := func(x, y float64) float64 {
		return -8 * math.Pi * math.Pi * math.Sin(2*math.Pi*x) * math.Sin(2*math.Pi*y)
	}
	g := func(x, y float64) float64 { return 0 }
	b = poisson.RHS(f, g, mx, mx, -1, 1, -1, 1)

	nx := mx + 2
	h := 2 / float64(mx+1)
	uexact = make([]float64, nx*nx)
	for j := 0; j < nx; j++ {
		y := -1 + float64(j)*h
		for i := 0; i < nx; i++ {
			x := -1 + float64(i)*h
			uexact[j*nx+i] = math.Sin(2*math.Pi*x) * math.Sin(2*math.Pi*y)
		}
	}
	return b, uexact
}

func maxAbsDiff(a, b []float64) float64 {
	var e float64
	for i := range a {
		e = math.Max(e, math.Abs(a[i]-b[i]))
	}
	return e
}

// solveSin runs one linear multigrid solve of the sine problem and returns
// the discretization error against the analytic solution.
func solveSin(t *testing.T, mx, numLevels int, settings Settings) (Result, float64) {
	t.Helper()
	levels := poissonHierarchy(1, numLevels, -1, 1, -1, 1)
	require.Equal(t, mx, levels[0].Mx)
	s, err := NewSolver(levels, GaussSeidel{}, DenseSolver{})
	require.NoError(t, err)

	b, uexact := sinProblem(mx)
	res, err := s.Solve(b, settings)
	require.NoError(t, err)
	return res, maxAbsDiff(res.X, uexact)
}

func TestSolverVCycle(t *testing.T) {
	res15, err15 := solveSin(t, 15, 4, Settings{Cycle: CycleV, Tolerance: 1e-10})
	res31, err31 := solveSin(t, 31, 5, Settings{Cycle: CycleV, Tolerance: 1e-10})

	for _, res := range []Result{res15, res31} {
		require.Greater(t, res.Stats.Iterations, 0)
		for i := 1; i < len(res.Residuals); i++ {
			assert.Less(t, res.Residuals[i], res.Residuals[i-1], "residuals must decrease monotonically")
		}
		assert.Less(t, res.ConvergenceFactor, 0.5)
		assert.Equal(t, res.Residuals[len(res.Residuals)-1], res.Stats.ResidualNorm)
	}

	// Second-order discretization: halving h divides the error by about 4.
	assert.Less(t, err31, 0.02)
	assert.Greater(t, err15/err31, 2.5)
}

func TestSolverCycleTypes(t *testing.T) {
	b, _ := sinProblem(15)
	normb := floats.Norm(b, 2)
	for _, cycle := range []Cycle{CycleV, CycleW, CycleFV, CycleFW} {
		res, solErr := solveSin(t, 15, 4, Settings{Cycle: cycle, Tolerance: 1e-9})
		assert.LessOrEqual(t, res.Residuals[len(res.Residuals)-1]/normb, 1e-9, "cycle %s", cycle)
		assert.Less(t, solErr, 0.06, "cycle %s", cycle)
	}
}

func TestSolverFMG(t *testing.T) {
	_, errV := solveSin(t, 31, 5, Settings{Cycle: CycleV, Tolerance: 1e-10})
	res, errFMG := solveSin(t, 31, 5, Settings{Cycle: CycleFMG, SmoothingIters: 2})

	// One full-multigrid pass visits each level once on the way up.
	assert.Equal(t, 4, res.Stats.Iterations)
	assert.Len(t, res.Residuals, 1)
	// A single pass already reaches the discretization error scale.
	assert.Less(t, errFMG, 5*errV)
}

func TestSolverZeroRHS(t *testing.T) {
	levels := poissonHierarchy(1, 3, 0, 1, 0, 1)
	s, err := NewSolver(levels, GaussSeidel{}, DenseSolver{})
	require.NoError(t, err)

	b := make([]float64, levels[0].n())
	res, err := s.Solve(b, Settings{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stats.Iterations)
	assert.Equal(t, make([]float64, levels[0].n()), res.X)
}

func TestSolverIterationLimit(t *testing.T) {
	levels := poissonHierarchy(1, 4, -1, 1, -1, 1)
	s, err := NewSolver(levels, GaussSeidel{}, DenseSolver{})
	require.NoError(t, err)

	b, _ := sinProblem(15)
	res, err := s.Solve(b, Settings{Cycle: CycleV, Tolerance: 1e-14, MaxIterations: 2})
	require.ErrorIs(t, err, ErrIterationLimit)
	// The best iterate and the full history are still returned.
	assert.Equal(t, 2, res.Stats.Iterations)
	assert.Len(t, res.Residuals, 3)
	assert.Less(t, res.Residuals[2], res.Residuals[0])
}

func TestNewSolverValidation(t *testing.T) {
	levels := poissonHierarchy(1, 3, 0, 1, 0, 1)

	_, err := NewSolver(levels, nil, DenseSolver{})
	assert.ErrorContains(t, err, "nil smoother")

	_, err = NewSolver(levels, GaussSeidel{}, nil)
	assert.ErrorContains(t, err, "nil coarse solver")

	_, err = NewSolver(levels[:1], GaussSeidel{}, DenseSolver{})
	assert.ErrorContains(t, err, "at least two levels")

	// Broken nesting: 15 does not refine to 5.
	bad := []*Level{
		NewLevelFromBuilders(15, 15, 0, 1, 0, 1, poisson.Operator, poisson.Restriction, nil, nil),
		NewLevelFromBuilders(5, 5, 0, 1, 0, 1, poisson.Operator, nil, poisson.Prolongation, nil),
	}
	_, err = NewSolver(bad, GaussSeidel{}, DenseSolver{})
	assert.ErrorContains(t, err, "not nested")

	// Missing restriction operator.
	bad = []*Level{
		NewLevelFromBuilders(3, 3, 0, 1, 0, 1, poisson.Operator, nil, nil, nil),
		NewLevelFromBuilders(1, 1, 0, 1, 0, 1, poisson.Operator, nil, poisson.Prolongation, nil),
	}
	_, err = NewSolver(bad, GaussSeidel{}, DenseSolver{})
	assert.ErrorContains(t, err, "no restriction operator")
}

func TestSolverObserver(t *testing.T) {
	levels := poissonHierarchy(1, 4, -1, 1, -1, 1)
	s, err := NewSolver(levels, GaussSeidel{}, DenseSolver{})
	require.NoError(t, err)

	var iters []int
	var depths []int
	obs := &Observer{
		Level: func(depth, mx, my int) {
			depths = append(depths, depth)
			assert.Equal(t, levels[depth].Mx, mx)
			assert.Equal(t, levels[depth].My, my)
		},
		Iteration: func(phase Phase, iter int, residual float64) {
			assert.Equal(t, PhaseProjected, phase)
			assert.Greater(t, residual, 0.0)
			iters = append(iters, iter)
		},
	}

	b, _ := sinProblem(15)
	_, err = s.Solve(b, Settings{Cycle: CycleV, Tolerance: 1e-8, Observer: obs})
	require.NoError(t, err)

	require.NotEmpty(t, iters)
	for i := range iters {
		assert.Equal(t, i, iters[i])
	}
	// A V-cycle reaches every depth of the four-level hierarchy.
	assert.Contains(t, depths, 0)
	assert.Contains(t, depths, 3)
}

func TestSolverString(t *testing.T) {
	levels := poissonHierarchy(1, 4, -1, 1, -1, 1)
	s, err := NewSolver(levels, GaussSeidel{}, DenseSolver{})
	require.NoError(t, err)
	want := "Multigrid solver\n" +
		"Number of levels = 4\n" +
		"Fine grid size (17 x 17)\n" +
		"225 fine grid unknowns\n" +
		"Coarse grid size (3 x 3)\n" +
		"1 coarse grid unknown(s)\n"
	assert.Equal(t, want, s.String())
}
