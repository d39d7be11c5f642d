// Copyright ©2019 The obstacle Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDOKSetAddAt(t *testing.T) {
	m := NewDOK(3, 4)
	m.SetAt(0, 1, 2)
	m.SetAt(2, 3, -1)
	m.AddAt(0, 1, 0.5)
	require.Equal(t, 2.5, m.At(0, 1))
	require.Equal(t, -1.0, m.At(2, 3))
	require.Equal(t, 0.0, m.At(1, 1))
}

func TestCompress(t *testing.T) {
	m := NewDOK(3, 3)
	m.SetAt(1, 2, 3)
	m.SetAt(1, 0, 1)
	m.SetAt(1, 1, 2)
	m.SetAt(0, 0, 5)
	m.SetAt(2, 2, 0) // explicit zero must be dropped

	c := m.Compress()
	r, cc := c.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 3, cc)
	require.Equal(t, 4, c.NNZ())

	// Row scans must be ordered by column.
	var cols []int
	var vals []float64
	c.DoRowNonZero(1, func(j int, v float64) {
		cols = append(cols, j)
		vals = append(vals, v)
	})
	require.Equal(t, []int{0, 1, 2}, cols)
	require.Equal(t, []float64{1, 2, 3}, vals)

	require.Equal(t, 5.0, c.At(0, 0))
	require.Equal(t, 0.0, c.At(2, 2))
	require.Equal(t, 0.0, c.At(0, 2))
}

func TestMulVec(t *testing.T) {
	// [1 2 0]
	// [0 0 3]
	m := NewDOK(2, 3)
	m.SetAt(0, 0, 1)
	m.SetAt(0, 1, 2)
	m.SetAt(1, 2, 3)
	c := m.Compress()

	x := []float64{1, -1, 2}
	dst := make([]float64, 2)
	c.MulVec(dst, x)
	require.Equal(t, []float64{-1, 6}, dst)

	xt := []float64{2, -1}
	dstT := make([]float64, 3)
	c.MulTransVec(dstT, xt)
	require.Equal(t, []float64{2, 4, -3}, dstT)
}

func TestDoNonZero(t *testing.T) {
	m := NewDOK(2, 2)
	m.SetAt(0, 1, 1)
	m.SetAt(1, 0, 2)
	c := m.Compress()

	sum := 0.0
	n := 0
	c.DoNonZero(func(i, j int, v float64) {
		sum += v
		n++
	})
	require.Equal(t, 2, n)
	require.Equal(t, 3.0, sum)
}

func TestDense(t *testing.T) {
	m := NewDOK(2, 3)
	m.SetAt(0, 2, 4)
	m.SetAt(1, 1, -2)
	c := m.Compress()

	d := c.Dense()
	r, cc := d.Dims()
	require.Equal(t, 2, r)
	require.Equal(t, 3, cc)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			require.Equal(t, c.At(i, j), d.At(i, j))
		}
	}
}
