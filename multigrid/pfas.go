// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multigrid

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/mheldman/obstacle/sparse"
)

// activeTol is the numerical threshold below which an iterate component is
// considered to sit at its lower bound.
const activeTol = 1e-16

// coarseIncrementTol bounds the scaled increment (mx+1)*|du| of the
// coarsest-level projected relaxation loop.
const coarseIncrementTol = 1e-12

// Fomega evaluates the complementarity merit function of the iterate u and
// residual r = b - A*u: min(r, 0) at points on the lower bound and the raw
// residual at free points. Its infinity norm vanishes exactly when u
// satisfies the complementarity conditions.
func Fomega(u, r []float64) []float64 {
	if len(u) != len(r) {
		panic("multigrid: dimension mismatch")
	}
	f := make([]float64, len(r))
	for i, ri := range r {
		if u[i] > activeTol || ri < 0 {
			f[i] = ri
		}
	}
	return f
}

// ActiveSet returns the indices where u is numerically at its lower bound
// and the residual r is strictly positive, in increasing order. Identical
// inputs always yield the identical set.
func ActiveSet(u, r []float64) []int {
	if len(u) != len(r) {
		panic("multigrid: dimension mismatch")
	}
	var set []int
	for i := range u {
		if u[i] < activeTol && r[i] > 0 {
			set = append(set, i)
		}
	}
	return set
}

// equalSets reports whether the sorted index sets a and b are identical.
func equalSets(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}

// symDiffCount counts the elements in the symmetric difference of the
// sorted index sets a and b.
func symDiffCount(a, b []int) int {
	var n, i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			n++
			i++
		case a[i] > b[j]:
			n++
			j++
		default:
			i++
			j++
		}
	}
	return n + len(a) - i + len(b) - j
}

// PFAS solves the linear complementarity problem
//
//	u >= 0,  r = b - A*u,  u_i*r_i = 0,  r_i <= 0 wherever u_i > 0,
//
// on a fixed hierarchy with the projected full approximation scheme. The
// projected smoother drives the recursive cycles; once the active set
// stabilizes, the solver freezes it and finishes with unconstrained
// multigrid on a constrained view of the hierarchy, using the linear
// smoother and the coarse solver. The caller's levels are never mutated.
type PFAS struct {
	levels   []*Level
	smoother Smoother // projected, used in the PFAS cycles
	linear   Smoother // unprojected, used in the frozen linear phase
	coarse   CoarseSolver
}

// NewPFAS returns a PFAS solver operating on the given hierarchy, ordered
// finest first. smoother must be a projected smoother; linear and coarse
// drive the frozen linear-correction phase and the unconstrained
// initial-guess strategies. It fails fast on a malformed hierarchy.
func NewPFAS(levels []*Level, smoother, linear Smoother, coarse CoarseSolver) (*PFAS, error) {
	if smoother == nil || linear == nil {
		return nil, errNilSmoother
	}
	if coarse == nil {
		return nil, errNilCoarse
	}
	if err := validateHierarchy(levels); err != nil {
		return nil, err
	}
	return &PFAS{levels: levels, smoother: smoother, linear: linear, coarse: coarse}, nil
}

// String returns a summary of the hierarchy.
func (p *PFAS) String() string {
	fine := p.levels[0]
	coarse := p.levels[len(p.levels)-1]
	return fmt.Sprintf("PFAS solver\n"+
		"Number of levels = %d\n"+
		"Fine grid size (%d x %d)\n"+
		"%d fine grid unknowns\n"+
		"Coarse grid size (%d x %d)\n"+
		"%d coarse grid unknown(s)\n",
		len(p.levels),
		fine.Mx+2, fine.My+2, fine.Mx*fine.My,
		coarse.Mx+2, coarse.My+2, coarse.Mx*coarse.My)
}

// Solve solves the complementarity problem with right-hand side b on the
// finest level. The length of b must equal the dimension of the finest
// level.
//
// A zero right-hand side is treated as already converged. Reaching
// MaxIterations before the tolerance returns the best iterate together
// with ErrIterationLimit.
func (p *PFAS) Solve(b []float64, settings Settings) (Result, error) {
	stats := Stats{StartTime: time.Now()}
	dim := p.levels[0].n()
	if len(b) != dim {
		panic("multigrid: mismatched length of right-hand side")
	}
	if settings.X0 != nil && len(settings.X0) != dim {
		panic("multigrid: mismatched length of initial guess")
	}
	defaultSettings(&settings, 400)

	if settings.Cycle == CycleFMG {
		return p.solveFMG(b, settings, stats)
	}

	u, err := p.initialGuess(b, &settings)
	if err != nil {
		return Result{Stats: stats}, err
	}
	for i := range u {
		if u[i] < 0 {
			u[i] = 0
		}
	}

	obs := settings.Observer
	a0 := p.levels[0].A
	r := make([]float64, dim)
	residual(r, a0, u, b)
	fom := Fomega(u, r)
	residuals := []float64{normInf(fom)}
	obs.iteration(PhaseProjected, 0, residuals[0])
	obs.residualField(0, fom)
	activeNew := ActiveSet(u, r)
	obs.activeSet(0, activeNew)

	normb := floats.Norm(b, 2)
	if normb == 0 {
		stats.ResidualNorm = residuals[0]
		stats.Runtime = time.Since(stats.StartTime)
		return Result{X: u, Residuals: residuals, ActiveSet: activeNew, Stats: stats}, nil
	}

	// Converge relative to both the right-hand side and the initial merit
	// norm, whichever is stricter.
	target := math.Min(residuals[0], normb)

	// Projected cycling phase.
	var z int
	for residuals[len(residuals)-1]/target > settings.Tolerance && z < settings.MaxIterations {
		p.lvlSolve(0, u, b, settings.Cycle, settings.SmoothingIters, obs)
		z++
		residual(r, a0, u, b)
		fom = Fomega(u, r)
		residuals = append(residuals, normInf(fom))
		obs.iteration(PhaseProjected, z, residuals[len(residuals)-1])
		obs.residualField(z, fom)
		activeOld := activeNew
		activeNew = ActiveSet(u, r)
		obs.activeSet(z, activeNew)

		cf := convFactor(residuals[len(residuals)-1], residuals[0], len(residuals)-1)
		if settings.Accel == AccelRSP {
			var change float64
			if len(activeNew) != 0 {
				change = float64(symDiffCount(activeNew, activeOld)) / float64(len(activeNew))
			}
			if change < 0.01 || cf > 0.3 {
				break
			}
		} else if equalSets(activeNew, activeOld) {
			break
		}
	}

	// Frozen linear-correction phase: eliminate the active set from every
	// level and finish with unconstrained multigrid on the free
	// sub-problem. The constrained operators form a view over the base
	// hierarchy; the caller's levels stay untouched.
	lcycle := settings.Cycle
	if lcycle == CycleFMGV {
		lcycle = CycleFV
	}
	lobs := obs
	if obs != nil && obs.Iteration != nil {
		// The nested linear solver reports its iterations as this solve's
		// linear phase.
		w := *obs
		w.Iteration = func(_ Phase, iter int, residual float64) {
			obs.Iteration(PhaseLinear, iter, residual)
		}
		lobs = &w
	}
	for residuals[len(residuals)-1]/target > settings.Tolerance && z < settings.MaxIterations {
		clevels, cb := p.constrainedHierarchy(activeNew, b)
		sub, err := NewSolver(clevels, p.linear, p.coarse)
		if err != nil {
			return Result{X: u, Residuals: residuals, ActiveSet: activeNew, Stats: stats}, err
		}
		normcb := floats.Norm(cb, 2)
		if normcb == 0 {
			break
		}
		res, lerr := sub.Solve(cb, Settings{
			X0:             u,
			Cycle:          lcycle,
			Tolerance:      settings.Tolerance * target / normcb,
			MaxIterations:  settings.MaxIterations,
			SmoothingIters: settings.SmoothingIters,
			Observer:       lobs,
		})
		if lerr != nil && lerr != ErrIterationLimit {
			return Result{X: u, Residuals: residuals, ActiveSet: activeNew, Stats: stats}, lerr
		}
		u = res.X
		for i := range u {
			if u[i] < 0 {
				u[i] = 0
			}
		}
		z++
		residual(r, a0, u, b)
		fom = Fomega(u, r)
		residuals = append(residuals, res.Residuals[1:]...)
		residuals = append(residuals, normInf(fom))
		obs.iteration(PhaseLinear, z, residuals[len(residuals)-1])
		obs.residualField(z, fom)
		activeNew = ActiveSet(u, r)
		obs.activeSet(z, activeNew)
		if len(res.Residuals) == 1 {
			// The first correction pass was already converged.
			break
		}
	}

	last := residuals[len(residuals)-1]
	stats.Iterations = z
	stats.ResidualNorm = last
	stats.Runtime = time.Since(stats.StartTime)
	result := Result{
		X:                 u,
		Residuals:         residuals,
		ConvergenceFactor: convFactor(last, residuals[0], len(residuals)-1),
		ActiveSet:         activeNew,
		Stats:             stats,
	}
	if last/target > settings.Tolerance {
		return result, ErrIterationLimit
	}
	return result, nil
}

// lvlSolve performs one recursive projected cycle on level lvl, updating u
// in place. The coarse right-hand side carries the full-approximation
// correction R*(b - A*u) + Ac*(R*u), so the coarse problem solves for the
// full coarse approximation rather than a correction.
func (p *PFAS) lvlSolve(lvl int, u, b []float64, cycle Cycle, sweeps int, obs *Observer) {
	level := p.levels[lvl]
	next := p.levels[lvl+1]
	obs.level(lvl, level.Mx, level.My)

	p.smoother.Smooth(level.A, u, b, sweeps)

	coarseU := make([]float64, next.n())
	level.R.MulVec(coarseU, u)
	coarseU0 := append([]float64(nil), coarseU...)

	r := make([]float64, level.n())
	residual(r, level.A, u, b)
	coarseB := make([]float64, next.n())
	level.R.MulVec(coarseB, r)
	tmp := make([]float64, next.n())
	next.A.MulVec(tmp, coarseU)
	floats.Add(coarseB, tmp)

	if lvl < len(p.levels)-2 {
		switch cycle {
		case CycleV:
			p.lvlSolve(lvl+1, coarseU, coarseB, cycle, sweeps, obs)
		case CycleW:
			p.lvlSolve(lvl+1, coarseU, coarseB, cycle, sweeps, obs)
			p.lvlSolve(lvl+1, coarseU, coarseB, cycle, sweeps, obs)
		case CycleFV:
			p.lvlSolve(lvl+1, coarseU, coarseB, CycleFV, sweeps, obs)
			p.lvlSolve(lvl+1, coarseU, coarseB, CycleV, sweeps, obs)
		case CycleFW:
			p.lvlSolve(lvl+1, coarseU, coarseB, CycleFW, sweeps, obs)
			p.lvlSolve(lvl+1, coarseU, coarseB, CycleW, sweeps, obs)
		case CycleFMGV:
			// Nested full multigrid on the constrained problem: the
			// descent restricts the original right-hand side, not the
			// defect.
			coarseB2 := make([]float64, next.n())
			level.R.MulVec(coarseB2, b)
			p.lvlSolve(lvl+1, coarseU, coarseB2, CycleFMGV, sweeps, obs)
			p.lvlSolve(lvl+1, coarseU, coarseB, CycleV, sweeps, obs)
		default:
			panic("multigrid: invalid cycle type")
		}
	} else {
		obs.level(lvl+1, next.Mx, next.My)
		p.relaxCoarsest(next.A, coarseU, coarseB, next.Mx)
	}

	// Prolongate the correction, not the raw coarse solution.
	floats.Sub(coarseU, coarseU0)
	pc := make([]float64, level.n())
	next.P.MulVec(pc, coarseU)
	floats.Add(u, pc)

	p.smoother.Smooth(level.A, u, b, sweeps)
}

// relaxCoarsest iterates the projected smoother on the coarsest problem
// until the scaled increment (mx+1)*|du| drops below coarseIncrementTol.
// The coarsest system is small, so the increment is a cheap surrogate
// convergence test.
func (p *PFAS) relaxCoarsest(a *sparse.CSR, u, b []float64, mx int) {
	uold := make([]float64, len(u))
	for {
		copy(uold, u)
		p.smoother.Smooth(a, u, b, 1)
		if float64(mx+1)*floats.Distance(u, uold, 2) <= coarseIncrementTol {
			return
		}
	}
}

// constrainedHierarchy builds the constrained view of the hierarchy for the
// frozen active set: on every level A' = Ie*A*Ie + Ia, where Ie zeroes
// rows and columns at active indices and Ia places identity rows there,
// pinning u = 0 exactly on the frozen indices. The fine active-set
// indicator is restricted down the hierarchy with R. The returned
// right-hand side is b with active entries zeroed.
func (p *PFAS) constrainedHierarchy(active []int, b []float64) ([]*Level, []float64) {
	ind := make([]float64, p.levels[0].n())
	for _, k := range active {
		ind[k] = 1
	}
	cb := append([]float64(nil), b...)
	for _, k := range active {
		cb[k] = 0
	}

	clevels := make([]*Level, len(p.levels))
	for l, lvl := range p.levels {
		cl := *lvl
		cl.A = constrainOperator(lvl.A, ind)
		clevels[l] = &cl
		if l < len(p.levels)-1 {
			next := make([]float64, p.levels[l+1].n())
			lvl.R.MulVec(next, ind)
			ind = next
		}
	}
	return clevels, cb
}

// constrainOperator forms Ie*A*Ie + Ia for the active-set indicator ind.
func constrainOperator(a *sparse.CSR, ind []float64) *sparse.CSR {
	n, _ := a.Dims()
	if len(ind) != n {
		panic("multigrid: dimension mismatch")
	}
	d := sparse.NewDOK(n, n)
	a.DoNonZero(func(i, j int, v float64) {
		w := (1 - ind[i]) * v * (1 - ind[j])
		if w != 0 {
			d.AddAt(i, j, w)
		}
	})
	for i, vi := range ind {
		if vi != 0 {
			d.AddAt(i, i, vi)
		}
	}
	return d.Compress()
}

// initialGuess resolves the initial iterate for a PFAS solve according to
// Settings.X0 and Settings.Guess.
func (p *PFAS) initialGuess(b []float64, settings *Settings) ([]float64, error) {
	dim := p.levels[0].n()
	if settings.X0 != nil {
		u := make([]float64, dim)
		copy(u, settings.X0)
		return u, nil
	}

	boundary := p.levels[0].Boundary
	zeroGuess := func() []float64 {
		u := make([]float64, dim)
		for _, k := range boundary {
			u[k] = b[k]
		}
		return u
	}

	switch settings.Guess {
	case GuessZero:
		return zeroGuess(), nil

	case GuessDirect:
		return p.coarse.Solve(p.levels[0].A, b)

	case GuessMultigrid:
		sub, err := NewSolver(p.levels, p.linear, p.coarse)
		if err != nil {
			return nil, err
		}
		res, err := sub.Solve(b, Settings{
			Tolerance:      settings.Tolerance * math.Sqrt(float64(dim)),
			SmoothingIters: settings.SmoothingIters,
		})
		if err != nil && err != ErrIterationLimit {
			return nil, err
		}
		return res.X, nil

	case GuessRelax:
		u := make([]float64, dim)
		r0 := normInf(b)
		if r0 == 0 {
			return u, nil
		}
		r := make([]float64, dim)
		for {
			p.linear.Smooth(p.levels[0].A, u, b, 1)
			residual(r, p.levels[0].A, u, b)
			if floats.Norm(r, 2)/r0 <= settings.Tolerance {
				return u, nil
			}
		}

	default:
		// Unrecognized strategy: fall back to the zero guess with
		// boundary injection, or to b itself if no boundary indices are
		// known.
		if len(boundary) > 0 {
			return zeroGuess(), nil
		}
		u := make([]float64, dim)
		copy(u, b)
		return u, nil
	}
}

// solveFMG runs the grid-sequenced full-multigrid variant of PFAS: restrict
// b down every level, solve the coarsest obstacle problem by projected
// relaxation, then prolong the solution level by level, inject the level's
// boundary values and refine with a fresh PFAS solver scoped to the
// sub-hierarchy from that level down.
func (p *PFAS) solveFMG(b []float64, settings Settings, stats Stats) (Result, error) {
	L := len(p.levels)
	blist := make([][]float64, L)
	blist[0] = b
	for k := 0; k < L-1; k++ {
		rb := make([]float64, p.levels[k+1].n())
		p.levels[k].R.MulVec(rb, blist[k])
		blist[k+1] = rb
	}

	coarsest := p.levels[L-1]
	u := make([]float64, coarsest.n())
	for _, k := range coarsest.Boundary {
		u[k] = blist[L-1][k]
	}
	p.relaxCoarsest(coarsest.A, u, blist[L-1], coarsest.Mx)

	for n := 1; n < L; n++ {
		lvl := L - 1 - n
		fine := make([]float64, p.levels[lvl].n())
		p.levels[lvl+1].P.MulVec(fine, u)
		u = fine
		for _, k := range p.levels[lvl].Boundary {
			u[k] = blist[lvl][k]
		}

		sub, err := NewPFAS(p.levels[lvl:], p.smoother, p.linear, p.coarse)
		if err != nil {
			return Result{X: u, Stats: stats}, err
		}
		res, err := sub.Solve(blist[lvl], Settings{
			X0:             u,
			Cycle:          CycleV,
			Tolerance:      settings.Tolerance,
			MaxIterations:  settings.MaxIterations,
			SmoothingIters: settings.SmoothingIters,
			Accel:          settings.Accel,
			Observer:       settings.Observer,
		})
		if err != nil && err != ErrIterationLimit {
			return Result{X: u, Stats: stats}, err
		}
		u = res.X
	}

	r := make([]float64, p.levels[0].n())
	residual(r, p.levels[0].A, u, b)
	fom := Fomega(u, r)
	stats.Iterations = L - 1
	stats.ResidualNorm = normInf(fom)
	stats.Runtime = time.Since(stats.StartTime)
	result := Result{
		X:         u,
		Residuals: []float64{stats.ResidualNorm},
		ActiveSet: ActiveSet(u, r),
		Stats:     stats,
	}
	normb := floats.Norm(b, 2)
	if normb > 0 && stats.ResidualNorm/normb > settings.Tolerance {
		return result, ErrIterationLimit
	}
	return result, nil
}
