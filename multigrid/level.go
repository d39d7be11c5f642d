// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multigrid

import (
	"errors"
	"fmt"

	"github.com/mheldman/obstacle/sparse"
)

// OperatorBuilder builds the discrete operator for a grid with mx×my
// interior unknowns on [x1,x2]×[y1,y2].
type OperatorBuilder func(mx, my int, x1, x2, y1, y2 float64) *sparse.CSR

// TransferBuilder builds a grid-transfer operator for a grid with mx×my
// interior unknowns.
type TransferBuilder func(mx, my int) *sparse.CSR

// Level stores one level of a multigrid hierarchy. It is a value object:
// once constructed it is never mutated by the solvers.
//
// A holds the square operator of size (mx+2)*(my+2). R restricts a vector
// on this level to the next coarser level and is unused on the coarsest
// level. P prolongs a vector on this level to the next finer level and is
// unused on the finest level. Boundary holds the flat indices of the grid
// perimeter.
type Level struct {
	Mx, My         int
	X1, X2, Y1, Y2 float64
	Hx, Hy         float64
	A, R, P        *sparse.CSR
	Boundary       []int
}

// NewLevel returns a level holding the given prebuilt operators.
func NewLevel(mx, my int, x1, x2, y1, y2 float64, a, r, p *sparse.CSR, boundary []int) *Level {
	return &Level{
		Mx: mx, My: my,
		X1: x1, X2: x2, Y1: y1, Y2: y2,
		Hx: (x2 - x1) / float64(mx+1),
		Hy: (y2 - y1) / float64(my+1),
		A:  a, R: r, P: p,
		Boundary: boundary,
	}
}

// NewLevelFromBuilders returns a level whose operators are built on the
// spot from the given builder functions. Nil builders leave the
// corresponding operator unset.
func NewLevelFromBuilders(mx, my int, x1, x2, y1, y2 float64, ab OperatorBuilder, rb, pb TransferBuilder, boundary []int) *Level {
	var a, r, p *sparse.CSR
	if ab != nil {
		a = ab(mx, my, x1, x2, y1, y2)
	}
	if rb != nil {
		r = rb(mx, my)
	}
	if pb != nil {
		p = pb(mx, my)
	}
	return NewLevel(mx, my, x1, x2, y1, y2, a, r, p, boundary)
}

// n is the number of grid points on the level, including the boundary ring.
func (l *Level) n() int {
	return (l.Mx + 2) * (l.My + 2)
}

// validateHierarchy checks the preconditions on a hierarchy before any
// iteration begins: at least two levels, finest-first nesting, and
// consistent operator dimensions.
func validateHierarchy(levels []*Level) error {
	if len(levels) < 2 {
		return errors.New("multigrid: hierarchy needs at least two levels")
	}
	for l, lvl := range levels {
		if lvl == nil {
			return fmt.Errorf("multigrid: level %d is nil", l)
		}
		n := lvl.n()
		if lvl.A == nil {
			return fmt.Errorf("multigrid: level %d has no operator", l)
		}
		if r, c := lvl.A.Dims(); r != n || c != n {
			return fmt.Errorf("multigrid: level %d operator is %d×%d, want %d×%d", l, r, c, n, n)
		}
		for _, k := range lvl.Boundary {
			if k < 0 || n <= k {
				return fmt.Errorf("multigrid: level %d boundary index %d out of range", l, k)
			}
		}
		if l < len(levels)-1 {
			next := levels[l+1]
			if next == nil {
				return fmt.Errorf("multigrid: level %d is nil", l+1)
			}
			if lvl.Mx != 2*next.Mx+1 || lvl.My != 2*next.My+1 {
				return fmt.Errorf("multigrid: levels %d and %d are not nested", l, l+1)
			}
			if lvl.R == nil {
				return fmt.Errorf("multigrid: level %d has no restriction operator", l)
			}
			if r, c := lvl.R.Dims(); r != next.n() || c != n {
				return fmt.Errorf("multigrid: level %d restriction is %d×%d, want %d×%d", l, r, c, next.n(), n)
			}
		}
		if l > 0 {
			prev := levels[l-1]
			if lvl.P == nil {
				return fmt.Errorf("multigrid: level %d has no prolongation operator", l)
			}
			if r, c := lvl.P.Dims(); r != prev.n() || c != n {
				return fmt.Errorf("multigrid: level %d prolongation is %d×%d, want %d×%d", l, r, c, prev.n(), n)
			}
		}
	}
	return nil
}
