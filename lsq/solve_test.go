// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	inf = 1e20
	tol = 1e-10
)

func noBounds(n int) (bl, bu []float64) {
	bl, bu = make([]float64, n), make([]float64, n)
	for i := range bl {
		bl[i], bu[i] = -inf, inf
	}
	return
}

// identityFactors returns the packed LDLᵀ factors of v·I.
func identityFactors(n int, v float64) []float64 {
	l := make([]float64, n*(n+1)/2)
	k := 0
	for j := 0; j < n; j++ {
		l[k] = v
		k += n - j
	}
	return l
}

func TestLDLFactor(t *testing.T) {
	// B = [4 2; 2 3] = LDLᵀ with L21 = 0.5, D = (4, 2).
	b := []float64{4, 2, 3}
	l := make([]float64, 3)
	require.Equal(t, Solved, LDLFactor(2, b, l, 0))
	assert.InDelta(t, 4.0, l[0], tol)
	assert.InDelta(t, 0.5, l[1], tol)
	assert.InDelta(t, 2.0, l[2], tol)

	// Indefinite input is rejected.
	assert.Equal(t, NotPosDef, LDLFactor(2, []float64{1, 3, 1}, make([]float64, 3), 0))
}

func TestLDLFactorInPlace(t *testing.T) {
	b := []float64{4, 2, 3}
	require.Equal(t, Solved, LDLFactor(2, b, b, 0))
	assert.InDelta(t, 0.5, b[1], tol)
	assert.InDelta(t, 2.0, b[2], tol)
}

func TestSolveUnconstrained(t *testing.T) {
	// min ½‖x‖² - x₁ - x₂ over the whole plane: x = (1,1), obj = -1.
	n := 2
	l := identityFactors(n, 1)
	grad := []float64{-1, -1}
	bl, bu := noBounds(n)
	x, lam := make([]float64, n), make([]float64, n)

	obj, status := Solve(n, 0, l, grad, make([]float64, 1*n), 1, bl, bu, x, lam, 100, inf)
	require.Equal(t, Solved, status)
	assert.InDelta(t, 1.0, x[0], tol)
	assert.InDelta(t, 1.0, x[1], tol)
	assert.InDelta(t, -1.0, obj, tol)
}

func TestSolveEquality(t *testing.T) {
	// min ½‖x‖² s.t. x₁+x₂ = 1: x = (½,½) with multiplier ½.
	n, m := 2, 1
	l := identityFactors(n, 1)
	grad := []float64{0, 0}
	a := []float64{1, 1} // 1×2, lda 1
	bl, bu := noBounds(n + m)
	bl[n], bu[n] = 1, 1
	x, lam := make([]float64, n), make([]float64, n+m)

	obj, status := Solve(n, m, l, grad, a, 1, bl, bu, x, lam, 100, inf)
	require.Equal(t, Solved, status)
	assert.InDelta(t, 0.5, x[0], tol)
	assert.InDelta(t, 0.5, x[1], tol)
	assert.InDelta(t, 0.5, lam[n], tol)
	assert.InDelta(t, 0.25, obj, tol)
}

func TestSolveActiveUpperBound(t *testing.T) {
	// min ½‖x‖² - 2x₁ with x₁ ≤ 1: the bound is active and its
	// multiplier is negative under the ∇f - λ convention.
	n := 2
	l := identityFactors(n, 1)
	grad := []float64{-2, 0}
	bl, bu := noBounds(n)
	bu[0] = 1
	x, lam := make([]float64, n), make([]float64, n)

	_, status := Solve(n, 0, l, grad, make([]float64, n), 1, bl, bu, x, lam, 100, inf)
	require.Equal(t, Solved, status)
	assert.InDelta(t, 1.0, x[0], tol)
	assert.InDelta(t, 0.0, x[1], tol)
	assert.InDelta(t, -1.0, lam[0], tol)
}

func TestSolveTwoSidedRow(t *testing.T) {
	// min ½‖x‖² - 2(x₁+x₂) with 0 ≤ x₁+x₂ ≤ 1: the upper side is
	// active, x = (½,½), row multiplier -3/2.
	n, m := 2, 1
	l := identityFactors(n, 1)
	grad := []float64{-2, -2}
	a := []float64{1, 1}
	bl, bu := noBounds(n + m)
	bl[n], bu[n] = 0, 1
	x, lam := make([]float64, n), make([]float64, n+m)

	_, status := Solve(n, m, l, grad, a, 1, bl, bu, x, lam, 100, inf)
	require.Equal(t, Solved, status)
	assert.InDelta(t, 0.5, x[0], tol)
	assert.InDelta(t, 0.5, x[1], tol)
	assert.InDelta(t, -1.5, lam[n], tol)
}

func TestSolveReferenceProblem(t *testing.T) {
	// min Σxᵢ² s.t. 6x₁+3x₂+2x₃ = 5, x₁+x₂-x₃ = 1, x ≥ 0.
	// Optimum x = (31,19,1)/49 with row multipliers 8/49 and 14/49.
	n, m := 3, 2
	l := identityFactors(n, 2)
	grad := []float64{0, 0, 0}
	// 2×3 column-major, lda 2.
	a := []float64{6, 1, 3, 1, 2, -1}
	bl := []float64{0, 0, 0, 5, 1}
	bu := []float64{inf, inf, inf, 5, 1}
	x, lam := make([]float64, n), make([]float64, n+m)

	obj, status := Solve(n, m, l, grad, a, 2, bl, bu, x, lam, 100, inf)
	require.Equal(t, Solved, status)
	assert.InDelta(t, 31.0/49, x[0], 1e-9)
	assert.InDelta(t, 19.0/49, x[1], 1e-9)
	assert.InDelta(t, 1.0/49, x[2], 1e-9)
	assert.InDelta(t, 27.0/49, obj, 1e-9)
	assert.InDelta(t, 8.0/49, lam[n], 1e-9)
	assert.InDelta(t, 14.0/49, lam[n+1], 1e-9)
	// Inactive non-negativity bounds carry no multiplier.
	for i := 0; i < n; i++ {
		assert.InDelta(t, 0.0, lam[i], 1e-9)
	}
}

func TestSolveIncompatible(t *testing.T) {
	// x₁ ≥ 1 conflicts with x₁+x₂ = 0, x₂ ≥ 0.
	n, m := 2, 1
	l := identityFactors(n, 1)
	a := []float64{1, 1}
	bl := []float64{1, 0, 0}
	bu := []float64{inf, inf, 0}
	x, lam := make([]float64, n), make([]float64, n+m)

	_, status := Solve(n, m, l, []float64{0, 0}, a, 1, bl, bu, x, lam, 100, inf)
	assert.Equal(t, Incompatible, status)
}

func TestNNLSSimple(t *testing.T) {
	// min ‖Ax-b‖ with A = I₂, b = (1,-1): x = (1,0), residual 1.
	a := []float64{1, 0, 0, 1}
	b := []float64{1, -1}
	x, w, z := make([]float64, 2), make([]float64, 2), make([]float64, 2)
	index := make([]int, 2)
	rnorm, status := NNLS(2, 2, a, 2, b, x, w, z, index, 100)
	require.Equal(t, Solved, status)
	assert.InDelta(t, 1.0, x[0], tol)
	assert.InDelta(t, 0.0, x[1], tol)
	assert.InDelta(t, 1.0, rnorm, tol)
}
