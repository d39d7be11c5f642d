// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multigrid

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Solver is a recursive geometric multigrid solver for linear systems on a
// fixed hierarchy. A Solver holds no per-solve state; concurrent Solve
// calls on the same Solver are safe as long as the hierarchy is treated as
// read-only.
type Solver struct {
	levels   []*Level
	smoother Smoother
	coarse   CoarseSolver
}

// NewSolver returns a multigrid solver operating on the given hierarchy,
// ordered finest first. It fails fast on a malformed hierarchy, before any
// iteration begins.
func NewSolver(levels []*Level, smoother Smoother, coarse CoarseSolver) (*Solver, error) {
	if smoother == nil {
		return nil, errNilSmoother
	}
	if coarse == nil {
		return nil, errNilCoarse
	}
	if err := validateHierarchy(levels); err != nil {
		return nil, err
	}
	return &Solver{levels: levels, smoother: smoother, coarse: coarse}, nil
}

// String returns a summary of the hierarchy.
func (s *Solver) String() string {
	fine := s.levels[0]
	coarse := s.levels[len(s.levels)-1]
	return fmt.Sprintf("Multigrid solver\n"+
		"Number of levels = %d\n"+
		"Fine grid size (%d x %d)\n"+
		"%d fine grid unknowns\n"+
		"Coarse grid size (%d x %d)\n"+
		"%d coarse grid unknown(s)\n",
		len(s.levels),
		fine.Mx+2, fine.My+2, fine.Mx*fine.My,
		coarse.Mx+2, coarse.My+2, coarse.Mx*coarse.My)
}

// Solve solves A*u = b on the finest level. The length of b must equal the
// dimension of the finest level.
//
// A zero right-hand side is treated as already converged. Reaching
// MaxIterations before the tolerance returns the best iterate together
// with ErrIterationLimit.
func (s *Solver) Solve(b []float64, settings Settings) (Result, error) {
	stats := Stats{StartTime: time.Now()}
	dim := s.levels[0].n()
	if len(b) != dim {
		panic("multigrid: mismatched length of right-hand side")
	}
	if settings.X0 != nil && len(settings.X0) != dim {
		panic("multigrid: mismatched length of initial guess")
	}
	defaultSettings(&settings, 50)

	if settings.Cycle == CycleFMG {
		return s.solveFMG(b, settings, stats)
	}

	u := make([]float64, dim)
	if settings.X0 != nil {
		copy(u, settings.X0)
	}
	r := make([]float64, dim)
	residual(r, s.levels[0].A, u, b)
	residuals := []float64{normInf(r)}

	normb := floats.Norm(b, 2)
	obs := settings.Observer
	var z int
	if normb > 0 {
		for residuals[len(residuals)-1]/normb > settings.Tolerance && z < settings.MaxIterations {
			obs.iteration(PhaseProjected, z, residuals[len(residuals)-1])
			if err := s.cycleStep(0, u, b, settings.Cycle, settings.SmoothingIters, obs); err != nil {
				return Result{X: u, Residuals: residuals, Stats: stats}, err
			}
			residual(r, s.levels[0].A, u, b)
			residuals = append(residuals, normInf(r))
			z++
		}
	}

	stats.Iterations = z
	stats.ResidualNorm = residuals[len(residuals)-1]
	stats.Runtime = time.Since(stats.StartTime)
	res := Result{
		X:                 u,
		Residuals:         residuals,
		ConvergenceFactor: convFactor(residuals[len(residuals)-1], residuals[0], z),
		Stats:             stats,
	}
	if normb > 0 && residuals[len(residuals)-1]/normb > settings.Tolerance {
		return res, ErrIterationLimit
	}
	return res, nil
}

// cycleStep performs one recursive multigrid cycle on level lvl, updating u
// in place.
func (s *Solver) cycleStep(lvl int, u, b []float64, cycle Cycle, sweeps int, obs *Observer) error {
	level := s.levels[lvl]
	obs.level(lvl, level.Mx, level.My)

	s.smoother.Smooth(level.A, u, b, sweeps)

	r := make([]float64, level.n())
	residual(r, level.A, u, b)
	coarseB := make([]float64, s.levels[lvl+1].n())
	level.R.MulVec(coarseB, r)

	var coarseU []float64
	if lvl < len(s.levels)-2 {
		coarseU = make([]float64, len(coarseB))
		switch cycle {
		case CycleV:
			if err := s.cycleStep(lvl+1, coarseU, coarseB, cycle, sweeps, obs); err != nil {
				return err
			}
		case CycleW:
			for i := 0; i < 2; i++ {
				if err := s.cycleStep(lvl+1, coarseU, coarseB, cycle, sweeps, obs); err != nil {
					return err
				}
			}
		case CycleFV:
			if err := s.cycleStep(lvl+1, coarseU, coarseB, CycleFV, sweeps, obs); err != nil {
				return err
			}
			if err := s.cycleStep(lvl+1, coarseU, coarseB, CycleV, sweeps, obs); err != nil {
				return err
			}
		case CycleFW:
			if err := s.cycleStep(lvl+1, coarseU, coarseB, CycleFW, sweeps, obs); err != nil {
				return err
			}
			if err := s.cycleStep(lvl+1, coarseU, coarseB, CycleW, sweeps, obs); err != nil {
				return err
			}
		default:
			panic("multigrid: invalid cycle type")
		}
	} else {
		last := s.levels[len(s.levels)-1]
		obs.level(lvl+1, last.Mx, last.My)
		var err error
		coarseU, err = s.coarse.Solve(last.A, coarseB)
		if err != nil {
			return err
		}
	}

	pc := make([]float64, level.n())
	s.levels[lvl+1].P.MulVec(pc, coarseU)
	floats.Add(u, pc)

	s.smoother.Smooth(level.A, u, b, sweeps)
	return nil
}

// solveFMG runs a single full-multigrid pass: restrict b down every level,
// solve exactly on the coarsest, then prolong and refine with one V-cycle
// per level on the way up, each on a fresh solver scoped to the
// sub-hierarchy from that level down.
func (s *Solver) solveFMG(b []float64, settings Settings, stats Stats) (Result, error) {
	L := len(s.levels)
	blist := make([][]float64, L)
	blist[0] = b
	for k := 0; k < L-1; k++ {
		rb := make([]float64, s.levels[k+1].n())
		s.levels[k].R.MulVec(rb, blist[k])
		blist[k+1] = rb
	}

	u, err := s.coarse.Solve(s.levels[L-1].A, blist[L-1])
	if err != nil {
		return Result{Stats: stats}, err
	}

	for n := 1; n < L; n++ {
		lvl := L - 1 - n
		fine := make([]float64, s.levels[lvl].n())
		s.levels[lvl+1].P.MulVec(fine, u)
		u = fine

		sub, err := NewSolver(s.levels[lvl:], s.smoother, s.coarse)
		if err != nil {
			return Result{X: u, Stats: stats}, err
		}
		res, err := sub.Solve(blist[lvl], Settings{
			X0:             u,
			Cycle:          CycleV,
			Tolerance:      settings.Tolerance,
			MaxIterations:  1,
			SmoothingIters: settings.SmoothingIters,
			Observer:       settings.Observer,
		})
		if err != nil && err != ErrIterationLimit {
			return Result{X: res.X, Stats: stats}, err
		}
		u = res.X
	}

	r := make([]float64, s.levels[0].n())
	residual(r, s.levels[0].A, u, b)
	stats.Iterations = L - 1
	stats.ResidualNorm = normInf(r)
	stats.Runtime = time.Since(stats.StartTime)
	return Result{
		X:         u,
		Residuals: []float64{stats.ResidualNorm},
		Stats:     stats,
	}, nil
}
