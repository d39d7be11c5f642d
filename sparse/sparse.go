// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sparse provides the minimal sparse matrix support needed by the
// multigrid solvers: a map-backed DOK format for assembly and an immutable
// CSR format for matrix-vector products.
package sparse

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// DOK is a dictionary-of-keys sparse matrix used during assembly.
type DOK struct {
	Rows, Cols int

	data map[index]float64
}

type index struct {
	row, col int
}

// NewDOK returns an empty r×c matrix in DOK format.
func NewDOK(r, c int) *DOK {
	return &DOK{
		Rows: r,
		Cols: c,
		data: make(map[index]float64),
	}
}

// At returns the element at row i, column j.
func (m *DOK) At(i, j int) float64 {
	if i < 0 || m.Rows <= i {
		panic("sparse: row index out of range")
	}
	if j < 0 || m.Cols <= j {
		panic("sparse: column index out of range")
	}
	return m.data[index{i, j}]
}

// SetAt sets the element at row i, column j to v.
func (m *DOK) SetAt(i, j int, v float64) {
	if i < 0 || m.Rows <= i {
		panic("sparse: row index out of range")
	}
	if j < 0 || m.Cols <= j {
		panic("sparse: column index out of range")
	}
	m.data[index{i, j}] = v
}

// AddAt adds v to the element at row i, column j.
func (m *DOK) AddAt(i, j int, v float64) {
	if i < 0 || m.Rows <= i {
		panic("sparse: row index out of range")
	}
	if j < 0 || m.Cols <= j {
		panic("sparse: column index out of range")
	}
	m.data[index{i, j}] += v
}

// Compress converts m into CSR format. Explicitly stored zeros are dropped.
func (m *DOK) Compress() *CSR {
	c := &CSR{
		rows: m.Rows,
		cols: m.Cols,
		ptr:  make([]int, m.Rows+1),
	}
	for ij, v := range m.data {
		if v != 0 {
			c.ptr[ij.row+1]++
		}
	}
	for i := 0; i < m.Rows; i++ {
		c.ptr[i+1] += c.ptr[i]
	}
	nnz := c.ptr[m.Rows]
	c.ind = make([]int, nnz)
	c.val = make([]float64, nnz)
	fill := make([]int, m.Rows)
	for ij, v := range m.data {
		if v == 0 {
			continue
		}
		k := c.ptr[ij.row] + fill[ij.row]
		c.ind[k] = ij.col
		c.val[k] = v
		fill[ij.row]++
	}
	for i := 0; i < m.Rows; i++ {
		start, end := c.ptr[i], c.ptr[i+1]
		sort.Sort(rowSort{ind: c.ind[start:end], val: c.val[start:end]})
	}
	return c
}

type rowSort struct {
	ind []int
	val []float64
}

func (r rowSort) Len() int           { return len(r.ind) }
func (r rowSort) Less(i, j int) bool { return r.ind[i] < r.ind[j] }
func (r rowSort) Swap(i, j int) {
	r.ind[i], r.ind[j] = r.ind[j], r.ind[i]
	r.val[i], r.val[j] = r.val[j], r.val[i]
}

// CSR is a compressed sparse row matrix. The zero value is not usable;
// construct via DOK.Compress. A CSR matrix is immutable after construction.
type CSR struct {
	rows, cols int
	ptr        []int
	ind        []int
	val        []float64
}

// Dims returns the dimensions of the matrix.
func (m *CSR) Dims() (r, c int) {
	return m.rows, m.cols
}

// NNZ returns the number of stored elements.
func (m *CSR) NNZ() int {
	return len(m.val)
}

// At returns the element at row i, column j.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || m.rows <= i {
		panic("sparse: row index out of range")
	}
	if j < 0 || m.cols <= j {
		panic("sparse: column index out of range")
	}
	for k := m.ptr[i]; k < m.ptr[i+1]; k++ {
		if m.ind[k] == j {
			return m.val[k]
		}
	}
	return 0
}

// MulVec computes A*x and stores the result into dst.
func (m *CSR) MulVec(dst, x []float64) {
	if m.cols != len(x) {
		panic("sparse: dimension mismatch")
	}
	if m.rows != len(dst) {
		panic("sparse: dimension mismatch")
	}
	for i := 0; i < m.rows; i++ {
		var s float64
		for k := m.ptr[i]; k < m.ptr[i+1]; k++ {
			s += m.val[k] * x[m.ind[k]]
		}
		dst[i] = s
	}
}

// MulTransVec computes A^T*x and stores the result into dst.
func (m *CSR) MulTransVec(dst, x []float64) {
	if m.cols != len(dst) {
		panic("sparse: dimension mismatch")
	}
	if m.rows != len(x) {
		panic("sparse: dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < m.rows; i++ {
		for k := m.ptr[i]; k < m.ptr[i+1]; k++ {
			dst[m.ind[k]] += m.val[k] * x[i]
		}
	}
}

// DoNonZero calls fn for each stored element of the matrix.
func (m *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < m.rows; i++ {
		for k := m.ptr[i]; k < m.ptr[i+1]; k++ {
			fn(i, m.ind[k], m.val[k])
		}
	}
}

// DoRowNonZero calls fn for each stored element of row i.
func (m *CSR) DoRowNonZero(i int, fn func(j int, v float64)) {
	if i < 0 || m.rows <= i {
		panic("sparse: row index out of range")
	}
	for k := m.ptr[i]; k < m.ptr[i+1]; k++ {
		fn(m.ind[k], m.val[k])
	}
}

// Dense returns the matrix expanded into a newly allocated mat.Dense.
func (m *CSR) Dense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	m.DoNonZero(func(i, j int, v float64) {
		d.Set(i, j, v)
	})
	return d
}
