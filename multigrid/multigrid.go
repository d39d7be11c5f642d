// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package multigrid implements recursive geometric multigrid solvers on
// structured rectangular grid hierarchies: a linear solver for elliptic
// systems and a projected full approximation scheme (PFAS) solver for the
// linear complementarity problems arising from obstacle and free-boundary
// problems.
//
// A hierarchy is an ordered sequence of Level values, finest first, with
// nested grids satisfying mxFine = 2*mxCoarse + 1. An external assembler
// supplies the per-level operator, transfer operators and boundary index
// set; this package only consumes them.
//
// The PFAS solver follows
//
//	Achi Brandt and Colin W. Cryer. Multigrid algorithms for the solution
//	of linear complementarity problems arising from free boundary
//	problems. SIAM J. Sci. Stat. Comput., 4(4):655–684, 1983.
package multigrid

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/mheldman/obstacle/sparse"
)

// Cycle selects the pattern of recursive descent through the hierarchy
// performed by one iteration.
type Cycle string

const (
	// CycleV descends once per level.
	CycleV Cycle = "V"
	// CycleW descends twice per level.
	CycleW Cycle = "W"
	// CycleFV performs a nested full-multigrid descent followed by a
	// V-cycle on each level.
	CycleFV Cycle = "FV"
	// CycleFW performs a nested full-multigrid descent followed by a
	// W-cycle on each level.
	CycleFW Cycle = "FW"
	// CycleFMGV is the full-approximation variant of CycleFV used by the
	// PFAS solver: the nested descent restricts the original right-hand
	// side rather than the defect.
	CycleFMGV Cycle = "fmgV"
	// CycleFMG runs a single full-multigrid pass instead of iterating
	// cycles at the finest level: the right-hand side is restricted down
	// every level, the coarsest problem is solved, and the solution is
	// prolonged and refined level by level.
	CycleFMG Cycle = "fmg"
)

// Guess names a strategy for computing the initial iterate of a PFAS solve
// when Settings.X0 is nil.
type Guess int

const (
	// GuessZero starts from the zero vector with boundary values injected
	// from the right-hand side.
	GuessZero Guess = iota
	// GuessDirect starts from the exact solution of the unconstrained
	// system.
	GuessDirect
	// GuessMultigrid starts from one unconstrained multigrid solve.
	GuessMultigrid
	// GuessRelax starts from plain relaxation iterated until the residual
	// ratio falls below the tolerance.
	GuessRelax
)

// Accel selects the policy that decides when the PFAS outer loop stops
// cycling and switches to the frozen linear-correction phase.
type Accel int

const (
	// AccelNone switches when the active set is identical to the previous
	// iteration's, or reports divergence when the geometric convergence
	// factor exceeds 0.75.
	AccelNone Accel = iota
	// AccelRSP switches earlier: when the symmetric-difference fraction
	// between consecutive active sets falls below 1% or the convergence
	// factor exceeds 0.3.
	AccelRSP
)

// Phase identifies which phase of a solve produced an iteration.
type Phase int

const (
	// PhaseProjected is the projected-cycle phase of a PFAS solve, and the
	// only phase of a linear solve.
	PhaseProjected Phase = iota
	// PhaseLinear is the frozen linear-correction phase of a PFAS solve.
	PhaseLinear
)

// Observer receives diagnostic snapshots during a solve. Any field may be
// nil. The callbacks run synchronously on the iteration path and should not
// block; rendering belongs to the caller.
type Observer struct {
	// Level is called when the solver visits a level, with the recursion
	// depth and the level's grid dimensions.
	Level func(depth, mx, my int)
	// Iteration is called after each outer iteration with the recorded
	// residual norm.
	Iteration func(phase Phase, iter int, residual float64)
	// ActiveSet is called by the PFAS solver after each outer iteration
	// with the current active set. The slice must not be retained.
	ActiveSet func(iter int, active []int)
	// ResidualField is called after each outer iteration with the current
	// merit-function or residual field. The slice must not be retained.
	ResidualField func(iter int, r []float64)
}

func (o *Observer) level(depth, mx, my int) {
	if o != nil && o.Level != nil {
		o.Level(depth, mx, my)
	}
}

func (o *Observer) iteration(phase Phase, iter int, residual float64) {
	if o != nil && o.Iteration != nil {
		o.Iteration(phase, iter, residual)
	}
}

func (o *Observer) activeSet(iter int, active []int) {
	if o != nil && o.ActiveSet != nil {
		o.ActiveSet(iter, active)
	}
}

func (o *Observer) residualField(iter int, r []float64) {
	if o != nil && o.ResidualField != nil {
		o.ResidualField(iter, r)
	}
}

// Settings holds the configuration of a solve. The zero value is a usable
// default.
type Settings struct {
	// X0 is an initial guess. If it is nil, the solver's initial-guess
	// strategy is used (the zero vector for the linear solver, Guess for
	// the PFAS solver). If it is not nil, its length must equal the
	// dimension of the finest level.
	X0 []float64

	// Guess selects the initial-guess strategy of the PFAS solver when X0
	// is nil. The linear solver ignores it.
	Guess Guess

	// Cycle is the cycle type iterated by the solve. The default is
	// CycleFV.
	Cycle Cycle

	// Tolerance is the relative residual tolerance. The default is 1e-8.
	Tolerance float64

	// MaxIterations is the limit on outer iterations. Reaching it is not
	// fatal: the best iterate and the recorded history are returned along
	// with ErrIterationLimit. The defaults are 50 for the linear solver
	// and 400 for the PFAS solver.
	MaxIterations int

	// SmoothingIters is the number of smoothing sweeps per level visit.
	// The default is 1.
	SmoothingIters int

	// Accel selects the PFAS acceleration policy. The linear solver
	// ignores it.
	Accel Accel

	// Observer, if non-nil, receives diagnostic snapshots.
	Observer *Observer
}

func defaultSettings(s *Settings, maxiters int) {
	if s.Cycle == "" {
		s.Cycle = CycleFV
	}
	if s.Tolerance == 0 {
		s.Tolerance = 1e-8
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = maxiters
	}
	if s.SmoothingIters == 0 {
		s.SmoothingIters = 1
	}
}

// Result holds the result of a solve.
type Result struct {
	// X is the final iterate.
	X []float64
	// Residuals is the ordered residual-norm history: infinity norms of
	// the residual for the linear solver and of the merit function for the
	// PFAS solver. For a PFAS solve that entered the frozen linear phase
	// it is the concatenation of both phases' histories.
	Residuals []float64
	// ConvergenceFactor is the achieved geometric convergence factor
	// (rFinal/rInitial)^(1/iterations), or zero if no iterations ran.
	ConvergenceFactor float64
	// ActiveSet is the final active set of a PFAS solve, in increasing
	// order. It is nil for linear solves.
	ActiveSet []int
	// Stats holds the statistics of the solve.
	Stats Stats
}

// Stats holds statistics about a solve.
type Stats struct {
	// Iterations is the number of outer iterations performed.
	Iterations int
	// ResidualNorm is the final recorded residual norm.
	ResidualNorm float64
	// StartTime is an approximate time when the solve was started.
	StartTime time.Time
	// Runtime is an approximate duration of the solve.
	Runtime time.Duration
}

// ErrIterationLimit is returned when a solve reaches MaxIterations before
// the tolerance. The accompanying Result still holds the best iterate and
// the full residual history.
var ErrIterationLimit = errors.New("multigrid: iteration limit reached")

var (
	errNilSmoother = errors.New("multigrid: nil smoother")
	errNilCoarse   = errors.New("multigrid: nil coarse solver")
)

func normInf(v []float64) float64 {
	return floats.Norm(v, math.Inf(1))
}

// residual stores b - A*u into dst.
func residual(dst []float64, a *sparse.CSR, u, b []float64) {
	a.MulVec(dst, u)
	floats.AddScaledTo(dst, b, -1, dst)
}

// convFactor is the geometric convergence factor over iters iterations.
func convFactor(rFinal, rInitial float64, iters int) float64 {
	if iters <= 0 || rInitial == 0 {
		return 0
	}
	return math.Pow(rFinal/rInitial, 1/float64(iters))
}
