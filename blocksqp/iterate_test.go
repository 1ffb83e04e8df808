// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionBlocks(t *testing.T) {
	sp := &Spec{NVar: 7, BlockIdx: []int{0, 2, 5, 7}}

	o := DefaultOptions()
	o.BlockHess = 0
	assert.Equal(t, []int{0, 7}, partitionBlocks(sp, o))

	o.BlockHess = 1
	assert.Equal(t, []int{0, 2, 5, 7}, partitionBlocks(sp, o))

	o.BlockHess = 2
	assert.Equal(t, []int{0, 5, 7}, partitionBlocks(sp, o))

	// Without annotation everything collapses to one block.
	o.BlockHess = 1
	assert.Equal(t, []int{0, 3}, partitionBlocks(&Spec{NVar: 3}, o))
}

func TestConvertHessian(t *testing.T) {
	o := DefaultOptions()
	sp := &Spec{NVar: 3, BlockIdx: []int{0, 2, 3}}
	it := newIterate(sp, o)
	require.Equal(t, 2, it.NBlocks())

	it.Hess[0].Set(0, 0, 2)
	it.Hess[0].Set(1, 0, 1)
	it.Hess[0].Set(1, 1, 3)
	it.Hess[1].Set(0, 0, 5)

	it.convertHessian(0)
	assert.Equal(t, []int{0, 2, 4, 5}, it.hessIndCol)
	assert.Equal(t, []float64{2, 1, 1, 3, 5}, it.hessNz)
	assert.Equal(t, []int{0, 1, 0, 1, 2}, it.hessIndRow)
	// First on-or-below-diagonal entry per column.
	assert.Equal(t, []int{0, 3, 4}, it.hessIndLo)

	// The dense expansion restores both triangles with zeros across blocks.
	d := it.denseHessian()
	assert.Equal(t, 1.0, d.At(0, 1))
	assert.Equal(t, 0.0, d.At(0, 2))
	assert.Equal(t, 0.0, d.At(2, 1))
	assert.Equal(t, 5.0, d.At(2, 2))
}

func TestConvertHessianDropsZeros(t *testing.T) {
	o := DefaultOptions()
	it := newIterate(&Spec{NVar: 2}, o)
	it.Hess[0].Set(0, 0, 4)
	it.Hess[0].Set(1, 1, 6)

	it.convertHessian(1e-16)
	assert.Equal(t, []float64{4, 6}, it.hessNz)
	assert.Equal(t, []int{0, 1, 2}, it.hessIndCol)
	assert.Equal(t, []int{0, 1}, it.hessIndLo)
}

// TestConvertHessianRepeated converts the same iterate twice with more
// nonzeros the second time, as happens on every sparse solve once the
// updates fill the blocks.
func TestConvertHessianRepeated(t *testing.T) {
	it := newIterate(&Spec{NVar: 2}, DefaultOptions())
	it.Hess[0].SetIdentity(1)

	it.convertHessian(0)
	require.Equal(t, []float64{1, 1}, it.hessNz)

	it.Hess[0].Set(0, 0, 3)
	it.Hess[0].Set(0, 1, 2)
	it.convertHessian(0)
	assert.Equal(t, []float64{3, 2, 2, 1}, it.hessNz)
	assert.Equal(t, []int{0, 2, 4}, it.hessIndCol)
	assert.Equal(t, []int{0, 1, 0, 1}, it.hessIndRow)
}

func TestHistoryRing(t *testing.T) {
	o := DefaultOptions()
	o.HessLimMem = true
	o.HessMemsize = 3
	it := newIterate(&Spec{NVar: 2}, o)

	for k := 1; k <= 4; k++ {
		it.advanceHistory(k)
		it.DeltaXi[0] = float64(k)
		it.Gamma[0] = float64(10 * k)
	}
	// Iteration 4 wrapped around onto column 0.
	d, g := it.pair(0, 0)
	assert.Equal(t, 4.0, d[0])
	assert.Equal(t, 40.0, g[0])
	d, _ = it.pair(1, 0)
	assert.Equal(t, 2.0, d[0])
	d, _ = it.pair(2, 0)
	assert.Equal(t, 3.0, d[0])
}

func TestMulJacSparseDense(t *testing.T) {
	sparse := DefaultOptions()
	sparse.SparseQP = true
	its := newIterate(&Spec{NVar: 3, NCon: 2}, sparse)
	its.Jac = &SparseJac{
		Nz:     []float64{6, 1, 3, 1, 2, -1},
		IndRow: []int{0, 1, 0, 1, 0, 1},
		IndCol: []int{0, 2, 4, 6},
	}

	itd := newIterate(&Spec{NVar: 3, NCon: 2}, DefaultOptions())
	rows := [2][3]float64{{6, 3, 2}, {1, 1, -1}}
	for i := range rows {
		for j := range rows[i] {
			itd.ConstrJac.Set(i, j, rows[i][j])
		}
	}

	x := []float64{1, -2, 3}
	ys, yd := make([]float64, 2), make([]float64, 2)
	its.mulJac(x, ys)
	itd.mulJac(x, yd)
	assert.InDeltaSlice(t, yd, ys, 1e-15)
	assert.InDelta(t, 6.0, ys[0], 1e-15)
	assert.InDelta(t, -4.0, ys[1], 1e-15)

	lam := []float64{0.5, -1}
	gs, gd := make([]float64, 3), make([]float64, 3)
	its.mulJacT(lam, gs)
	itd.mulJacT(lam, gd)
	assert.InDeltaSlice(t, gd, gs, 1e-15)
	assert.InDelta(t, 2.0, gs[0], 1e-15) // 6·0.5 - 1
}
