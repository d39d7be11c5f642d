// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package obstacle sets up box-constrained obstacle problems on rectangular
// regions for solution by the multigrid solvers: find u >= psi with
//
//	-Δu >= f,  (u - psi)*(Δu + f) = 0,
//
// and boundary values g. The problem is shifted by the obstacle to the
// standard complementarity form v = u - psi >= 0 consumed by
// multigrid.PFAS; Recover maps the solved v back to u.
package obstacle

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/mheldman/obstacle/multigrid"
	"github.com/mheldman/obstacle/poisson"
	"github.com/mheldman/obstacle/sparse"
)

// Func2D is a scalar function on the plane.
type Func2D func(x, y float64) float64

// Problem is an obstacle problem on the box [X1,X2]×[Y1,Y2] with source f,
// boundary values g and obstacle psi. Discretize fills in the discrete
// fields.
type Problem struct {
	X1, X2, Y1, Y2 float64
	F, G, Psi      Func2D

	// Discrete fields, valid after Discretize.
	Mx, My   int
	A        *sparse.CSR // Poisson operator with identity boundary rows
	B        []float64   // shifted right-hand side rhs - A*psi
	PsiVals  []float64   // obstacle sampled on the grid
	U0       []float64   // feasible initial iterate for the shifted problem
	Boundary []int
}

// New returns an obstacle problem on [x1,x2]×[y1,y2].
func New(x1, x2, y1, y2 float64, f, g, psi Func2D) *Problem {
	return &Problem{X1: x1, X2: x2, Y1: y1, Y2: y2, F: f, G: g, Psi: psi}
}

// String returns a summary of the problem.
func (p *Problem) String() string {
	s := fmt.Sprintf("Obstacle problem on [%g, %g] x [%g, %g]\n", p.X1, p.X2, p.Y1, p.Y2)
	if p.A == nil {
		return s
	}
	return s + fmt.Sprintf("Discretized on (%d x %d) grid\n", p.Mx+2, p.My+2)
}

// Discretize assembles the problem on a grid with mx×my interior unknowns
// and shifts it by the obstacle into the form v >= 0, solved against the
// right-hand side B.
func (p *Problem) Discretize(mx, my int) {
	p.Mx, p.My = mx, my
	nx, ny := mx+2, my+2
	n := nx * ny
	hx := (p.X2 - p.X1) / float64(mx+1)
	hy := (p.Y2 - p.Y1) / float64(my+1)

	p.A = poisson.Operator(mx, my, p.X1, p.X2, p.Y1, p.Y2)
	p.Boundary = poisson.BoundaryIndices(mx, my)
	rhs := poisson.RHS(p.F, p.G, mx, my, p.X1, p.X2, p.Y1, p.Y2)

	p.PsiVals = make([]float64, n)
	p.U0 = make([]float64, n)
	for j := 0; j < ny; j++ {
		y := p.Y1 + float64(j)*hy
		for i := 0; i < nx; i++ {
			x := p.X1 + float64(i)*hx
			k := j*nx + i
			p.PsiVals[k] = p.Psi(x, y)
			p.U0[k] = max(-p.PsiVals[k], 0)
		}
	}
	// Shift the right-hand side by the obstacle: the solver works on
	// v = u - psi >= 0 with A*v <= B.
	p.B = make([]float64, n)
	p.A.MulVec(p.B, p.PsiVals)
	floats.AddScaledTo(p.B, rhs, -1, p.B)
	for _, k := range p.Boundary {
		p.U0[k] = p.B[k]
	}
}

// Hierarchy builds a finest-first multigrid hierarchy for the problem with
// the given number of levels, refining from coarseMx×coarseMy interior
// unknowns. Discretize is called with the finest grid dimensions as a side
// effect.
func (p *Problem) Hierarchy(coarseMx, coarseMy, numLevels int) []*multigrid.Level {
	levels := make([]*multigrid.Level, numLevels)
	mx, my := coarseMx, coarseMy
	for l := numLevels - 1; l >= 0; l-- {
		levels[l] = multigrid.NewLevelFromBuilders(mx, my, p.X1, p.X2, p.Y1, p.Y2,
			poisson.Operator, poisson.Restriction, poisson.Prolongation,
			poisson.BoundaryIndices(mx, my))
		mx, my = 2*mx+1, 2*my+1
	}
	fine := levels[0]
	p.Discretize(fine.Mx, fine.My)
	return levels
}

// Recover maps a solution v of the shifted problem back to the original
// unknowns u = psi + v.
func (p *Problem) Recover(v []float64) []float64 {
	u := make([]float64, len(v))
	floats.AddTo(u, p.PsiVals, v)
	return u
}
