// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package poisson assembles finite-difference discretizations of the 2D
// Poisson equation on rectangular grids, together with the grid-transfer
// operators used by the multigrid solvers.
//
// A grid with mx×my interior unknowns on [x1,x2]×[y1,y2] stores all
// (mx+2)*(my+2) points including the boundary ring, with spacings
// hx = (x2-x1)/(mx+1) and hy = (y2-y1)/(my+1). A point (i, j) with
// 0 <= i < mx+2, 0 <= j < my+2 has flat index j*(mx+2) + i.
package poisson

import "github.com/mheldman/obstacle/sparse"

// Operator assembles the 5-point Laplacian on an (mx+2)×(my+2) grid over
// [x1,x2]×[y1,y2]. Interior rows discretize u_xx + u_yy; boundary rows are
// identity rows, so that the system carries boundary values directly in the
// right-hand side.
func Operator(mx, my int, x1, x2, y1, y2 float64) *sparse.CSR {
	nx, ny := mx+2, my+2
	n := nx * ny
	hx := (x2 - x1) / float64(mx+1)
	hy := (y2 - y1) / float64(my+1)
	cx := 1 / (hx * hx)
	cy := 1 / (hy * hy)

	d := sparse.NewDOK(n, n)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := j*nx + i
			if i == 0 || i == nx-1 || j == 0 || j == ny-1 {
				d.SetAt(k, k, 1)
				continue
			}
			d.SetAt(k, k, -2*(cx+cy))
			d.SetAt(k, k-1, cx)
			d.SetAt(k, k+1, cx)
			d.SetAt(k, k-nx, cy)
			d.SetAt(k, k+nx, cy)
		}
	}
	return d.Compress()
}

// RHS samples the right-hand side vector for Operator: f at interior points
// and the boundary function g on the boundary ring.
func RHS(f, g func(x, y float64) float64, mx, my int, x1, x2, y1, y2 float64) []float64 {
	nx, ny := mx+2, my+2
	hx := (x2 - x1) / float64(mx+1)
	hy := (y2 - y1) / float64(my+1)

	b := make([]float64, nx*ny)
	for j := 0; j < ny; j++ {
		y := y1 + float64(j)*hy
		for i := 0; i < nx; i++ {
			x := x1 + float64(i)*hx
			k := j*nx + i
			if i == 0 || i == nx-1 || j == 0 || j == ny-1 {
				b[k] = g(x, y)
			} else {
				b[k] = f(x, y)
			}
		}
	}
	return b
}

// BoundaryIndices returns the flat indices of the grid perimeter in
// increasing order.
func BoundaryIndices(mx, my int) []int {
	nx, ny := mx+2, my+2
	var idx []int
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if i == 0 || i == nx-1 || j == 0 || j == ny-1 {
				idx = append(idx, j*nx+i)
			}
		}
	}
	return idx
}

// Restriction returns the injection restriction operator mapping a grid with
// mx×my interior unknowns to the next coarser grid with (mx-1)/2×(my-1)/2
// interior unknowns. Grids must be nested: mx = 2*mxc + 1.
func Restriction(mx, my int) *sparse.CSR {
	mxc, myc := (mx-1)/2, (my-1)/2
	nxf := mx + 2
	nxc, nyc := mxc+2, myc+2

	d := sparse.NewDOK(nxc*nyc, (mx+2)*(my+2))
	for jc := 0; jc < nyc; jc++ {
		for ic := 0; ic < nxc; ic++ {
			kc := jc*nxc + ic
			kf := 2*jc*nxf + 2*ic
			d.SetAt(kc, kf, 1)
		}
	}
	return d.Compress()
}

// Prolongation returns the bilinear interpolation operator mapping a grid
// with mx×my interior unknowns to the next finer grid with 2*mx+1×2*my+1
// interior unknowns.
func Prolongation(mx, my int) *sparse.CSR {
	mxf, myf := 2*mx+1, 2*my+1
	nxc := mx + 2
	nxf, nyf := mxf+2, myf+2

	kc := func(ic, jc int) int { return jc*nxc + ic }
	d := sparse.NewDOK(nxf*nyf, (mx+2)*(my+2))
	for jf := 0; jf < nyf; jf++ {
		for ifx := 0; ifx < nxf; ifx++ {
			kf := jf*nxf + ifx
			ic, jc := ifx/2, jf/2
			switch {
			case ifx%2 == 0 && jf%2 == 0:
				d.SetAt(kf, kc(ic, jc), 1)
			case ifx%2 == 1 && jf%2 == 0:
				d.SetAt(kf, kc(ic, jc), 0.5)
				d.SetAt(kf, kc(ic+1, jc), 0.5)
			case ifx%2 == 0 && jf%2 == 1:
				d.SetAt(kf, kc(ic, jc), 0.5)
				d.SetAt(kf, kc(ic, jc+1), 0.5)
			default:
				d.SetAt(kf, kc(ic, jc), 0.25)
				d.SetAt(kf, kc(ic+1, jc), 0.25)
				d.SetAt(kf, kc(ic, jc+1), 0.25)
				d.SetAt(kf, kc(ic+1, jc+1), 0.25)
			}
		}
	}
	return d.Compress()
}
