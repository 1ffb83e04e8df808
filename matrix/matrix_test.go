// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package matrix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixStorage(t *testing.T) {
	a := New(3, 2)
	for j := 0; j < 2; j++ {
		for i := 0; i < 3; i++ {
			a.Set(i, j, float64(10*i+j))
		}
	}
	for j := 0; j < 2; j++ {
		for i := 0; i < 3; i++ {
			assert.Equal(t, float64(10*i+j), a.At(i, j))
		}
	}
	// Column-major layout with ld = m.
	assert.Equal(t, []float64{0, 10, 20, 1, 11, 21}, a.Data())
}

func TestMatrixViewAliasing(t *testing.T) {
	a := New(4, 4)
	a.InitializeFunc(func(i, j int) float64 { return float64(i + 4*j) })

	v, err := a.Submatrix(2, 2, 1, 2)
	require.NoError(t, err)
	assert.True(t, v.IsView())
	assert.Equal(t, a.At(1, 2), v.At(0, 0))
	assert.Equal(t, a.At(2, 3), v.At(1, 1))

	// Writes through the view land in the owner.
	v.Set(0, 1, -5)
	assert.Equal(t, -5.0, a.At(1, 3))

	// Views must not be resized or re-viewed.
	assert.ErrorIs(t, v.Dimension(2, 2, 2), ErrViewResize)
	_, err = v.Submatrix(1, 1, 0, 0)
	assert.ErrorIs(t, err, ErrViewOfView)

	_, err = a.Submatrix(3, 3, 2, 2)
	assert.ErrorIs(t, err, ErrViewRange)
}

func TestMatrixDimension(t *testing.T) {
	a := New(2, 2)
	require.NoError(t, a.Dimension(5, 3, 5))
	assert.Equal(t, 5, a.M())
	assert.Equal(t, 3, a.N())
	a.Initialize(1)
	assert.Equal(t, 1.0, a.At(4, 2))
}

func TestMatrixColSlice(t *testing.T) {
	a := NewLD(2, 2, 4)
	a.Set(0, 1, 7)
	col := a.ColSlice(1)
	require.Len(t, col, 2)
	assert.Equal(t, 7.0, col[0])
	col[1] = 9
	assert.Equal(t, 9.0, a.At(1, 1))
}

func TestMatrixTransposeMulVec(t *testing.T) {
	a := New(2, 3)
	a.InitializeFunc(func(i, j int) float64 { return float64(i*3 + j + 1) })
	at := a.Transpose()
	for j := 0; j < 3; j++ {
		for i := 0; i < 2; i++ {
			assert.Equal(t, a.At(i, j), at.At(j, i))
		}
	}
	y := make([]float64, 2)
	a.MulVec([]float64{1, 1, 1}, y)
	assert.Equal(t, []float64{6, 15}, y)
}

func TestSymMatrixBothTriangles(t *testing.T) {
	s := NewSym(4)
	s.Set(2, 1, 3.5)
	assert.Equal(t, 3.5, s.At(1, 2))
	s.Set(0, 3, -1)
	assert.Equal(t, -1.0, s.At(3, 0))

	// Packed index: (i,j), i ≥ j, lives at i + j*n - j*(j+1)/2.
	assert.Equal(t, 3.5, s.Data()[2+1*4-1])
}

func TestSymMatrixFromDense(t *testing.T) {
	a := New(3, 3)
	a.InitializeFunc(func(i, j int) float64 { return float64(i + j) })
	s := NewSymFromDense(a)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, a.At(i, j), s.At(i, j))
		}
	}
}

func TestSymMatrixQuadMulVec(t *testing.T) {
	s := NewSym(2)
	s.Set(0, 0, 2)
	s.Set(1, 1, 3)
	s.Set(1, 0, 1)
	x := []float64{1, 2}
	y := make([]float64, 2)
	s.MulVec(x, y)
	assert.Equal(t, []float64{4, 7}, y)
	// xᵀSx = 2 + 2·1·2 + 3·4
	assert.Equal(t, 18.0, s.Quad(x))
}

func TestVectorNorms(t *testing.T) {
	v := []float64{3, -4, 0}
	assert.Equal(t, 7.0, L1Norm(v))
	assert.Equal(t, 5.0, L2Norm(v))
	assert.Equal(t, 4.0, LInfNorm(v))
	assert.Equal(t, -12.0, Dot([]float64{3, 0}, []float64{-4, 9}))
}

func TestConstraintNorms(t *testing.T) {
	// Two variables, one constraint. x1 violates its upper bound by 1,
	// the constraint violates its lower bound by 2.
	xi := []float64{2, 0}
	constr := []float64{-1}
	bl := []float64{0, 0, 1}
	bu := []float64{1, 1, 3}

	assert.Equal(t, 2.0, LInfConstraintNorm(xi, constr, bl, bu))
	assert.Equal(t, 3.0, L1ConstraintNorm(xi, constr, bl, bu, nil))

	w := []float64{10, 10, 100}
	assert.Equal(t, 210.0, L1ConstraintNorm(xi, constr, bl, bu, w))

	// Constraint terms enter squared, bound terms linearly, one root
	// over the sum: √(1 + 2²).
	assert.InDelta(t, math.Sqrt(5), L2ConstraintNorm(xi, constr, bl, bu), 1e-15)
}

func TestL2ConstraintNormCountsEveryBound(t *testing.T) {
	// Every variable violation contributes, including lower-bound
	// violations on variables after the first.
	xi := []float64{0.5, -1, -2}
	constr := []float64{}
	bl := []float64{0, 0, 0}
	bu := []float64{10, 10, 10}
	assert.InDelta(t, math.Sqrt(3), L2ConstraintNorm(xi, constr, bl, bu), 1e-15)
}
