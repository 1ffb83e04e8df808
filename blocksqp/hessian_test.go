// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSolver builds a bare solver around an iterate, enough for the
// update routines which never touch the problem.
func testSolver(sp *Spec, o *Options) *solver {
	if err := o.consistency(); err != nil {
		panic(err)
	}
	it := newIterate(sp, o)
	return &solver{spec: sp, opts: o, it: it, stats: &Stats{}}
}

func TestBFGSUpdate(t *testing.T) {
	o := DefaultOptions()
	o.HessUpdate = HessBFGS
	s := testSolver(&Spec{NVar: 2}, o)
	s.calcInitialHessian()

	// B = I, δ = e₁, γ = 2e₁: the update doubles the (0,0) entry.
	s.calcBFGS([]float64{2, 0}, []float64{1, 0}, 0)
	B := s.it.Hess[0]
	assert.InDelta(t, 2.0, B.At(0, 0), 1e-14)
	assert.InDelta(t, 0.0, B.At(0, 1), 1e-14)
	assert.InDelta(t, 1.0, B.At(1, 1), 1e-14)
	assert.Equal(t, 0, s.it.noUpdateCounter[0])
	assert.Equal(t, 0, s.stats.HessDamped)
}

func TestBFGSDamping(t *testing.T) {
	o := DefaultOptions()
	o.HessUpdate = HessBFGS
	s := testSolver(&Spec{NVar: 2}, o)
	s.calcInitialHessian()

	// δᵀγ = 0.05 < 0.2·δᵀBδ activates Powell damping, which bends the
	// effective curvature up to exactly HessDampFac·δᵀBδ.
	s.calcBFGS([]float64{0.05, 0}, []float64{1, 0}, 0)
	assert.Equal(t, 1, s.stats.HessDamped)
	assert.InDelta(t, 0.2, s.it.Hess[0].At(0, 0), 1e-12)
}

func TestBFGSSkipsZeroPair(t *testing.T) {
	o := DefaultOptions()
	o.HessUpdate = HessBFGS
	o.HessDamp = false
	s := testSolver(&Spec{NVar: 2}, o)
	s.calcInitialHessian()

	s.calcBFGS([]float64{0, 0}, []float64{0, 0}, 0)
	assert.Equal(t, 1, s.stats.HessSkipped)
	assert.InDelta(t, 1.0, s.it.Hess[0].At(0, 0), 1e-15) // untouched
	assert.InDelta(t, 1.0, s.it.Hess[0].At(1, 1), 1e-15)
}

func TestSR1Update(t *testing.T) {
	s := testSolver(&Spec{NVar: 1}, DefaultOptions())
	s.calcInitialHessian()

	// B = 1, δ = 1, γ = 3: h = γ-Bδ = 2, update adds h²/δᵀh = 2.
	s.calcSR1([]float64{3}, []float64{1}, 0)
	assert.InDelta(t, 3.0, s.it.Hess[0].At(0, 0), 1e-14)
}

func TestSR1Rejected(t *testing.T) {
	s := testSolver(&Spec{NVar: 2}, DefaultOptions())
	s.calcInitialHessian()

	// γ ≈ Bδ makes the denominator tiny relative to the pair.
	s.calcSR1([]float64{1, 1e-12}, []float64{1, 0}, 0)
	assert.Equal(t, 1, s.stats.RejectedSR1)
	assert.InDelta(t, 1.0, s.it.Hess[0].At(0, 0), 1e-15)
}

func TestSkippedUpdatesReset(t *testing.T) {
	o := DefaultOptions()
	o.HessUpdate = HessBFGS
	o.HessDamp = false
	o.MaxConsecSkippedUpdates = 2
	s := testSolver(&Spec{NVar: 1}, o)
	s.calcInitialHessian()
	s.it.Hess[0].Set(0, 0, 7)

	for i := 0; i < 3; i++ {
		s.calcBFGS([]float64{0}, []float64{0}, 0)
	}
	// Third consecutive skip resets the block to the identity.
	assert.Equal(t, 3, s.stats.HessSkipped)
	assert.InDelta(t, 1.0, s.it.Hess[0].At(0, 0), 1e-15)
	assert.Equal(t, -1, s.it.noUpdateCounter[0])
}

func TestSizeInitialHessian(t *testing.T) {
	s := testSolver(&Spec{NVar: 1}, DefaultOptions())
	s.calcInitialHessian()

	// Shanno-Phua: γᵀγ/δᵀγ = 4/2 = 2.
	s.sizeInitialHessian([]float64{2}, []float64{1}, 0, ScaleSP)
	assert.InDelta(t, 2.0, s.it.Hess[0].At(0, 0), 1e-14)

	// Oren-Luenberger is capped at one.
	s.resetHessian(0)
	s.sizeInitialHessian([]float64{2}, []float64{1}, 0, ScaleOL)
	assert.InDelta(t, 1.0, s.it.Hess[0].At(0, 0), 1e-14)

	// Geometric mean of the two ratios: √(2·2) = 2.
	s.resetHessian(0)
	s.sizeInitialHessian([]float64{2}, []float64{1}, 0, ScaleGeoMean)
	assert.InDelta(t, 2.0, s.it.Hess[0].At(0, 0), 1e-14)
}

func TestLimitedMemoryReplay(t *testing.T) {
	o := DefaultOptions()
	o.HessUpdate = HessBFGS
	o.HessScaling = ScaleNone
	o.HessLimMem = true
	o.HessMemsize = 5
	o.MaxConvQP = 0
	s := testSolver(&Spec{NVar: 1}, o)
	s.calcInitialHessian()

	// Two stored pairs on a one dimensional block. Replaying from the
	// identity gives B = 1 → 2 (δ=1,γ=2) → 3 (δ=1,γ=3).
	s.stats.ItCount = 1
	s.it.advanceHistory(1)
	s.it.DeltaXi[0], s.it.Gamma[0] = 1, 2
	s.stats.ItCount = 2
	s.it.advanceHistory(2)
	s.it.DeltaXi[0], s.it.Gamma[0] = 1, 3

	s.calcHessianUpdateLimitedMemory(HessBFGS, ScaleNone)
	assert.InDelta(t, 3.0, s.it.Hess[0].At(0, 0), 1e-12)
}

func TestUpdateBlocksExactLast(t *testing.T) {
	o := DefaultOptions()
	o.WhichSecondDerv = 1
	require.NoError(t, o.consistency())
	it := newIterate(&Spec{NVar: 4, BlockIdx: []int{0, 2, 4}}, o)
	s := &solver{opts: o, it: it, stats: &Stats{}}
	assert.Equal(t, 1, s.updateBlocks())
}
