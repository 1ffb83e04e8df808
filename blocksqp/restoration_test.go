// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockopt/blocksqp/matrix"
)

func TestRestorationSpec(t *testing.T) {
	rp := NewRestorationProblem(newSphereProblem(), []float64{0.5, -3, 0})
	sp := rp.Spec()

	assert.Equal(t, 5, sp.NVar) // 3 variables + 2 slacks
	assert.Equal(t, 2, sp.NCon)
	// One 1x1 block per slack.
	assert.Equal(t, []int{0, 3, 4, 5}, sp.BlockIdx)
	// Parent variable bounds survive, slacks are free.
	assert.Equal(t, 0.0, sp.Bl[0])
	assert.True(t, sp.Bl[3] < -1e19)
	assert.True(t, sp.Bu[4] > 1e19)
	// Constraint bounds are the parent's.
	assert.Equal(t, 5.0, sp.Bl[5])
	assert.Equal(t, 1.0, sp.Bu[6])

	// Damping is relative to the reference magnitude beyond one.
	assert.Equal(t, 1.0, rp.diagScale[0])
	assert.InDelta(t, 1.0/3.0, rp.diagScale[1], 1e-15)
	assert.Equal(t, 1.0, rp.diagScale[2])
}

func TestRestorationSeedsSlacks(t *testing.T) {
	parent := newSphereProblem()
	rp := NewRestorationProblem(parent, parent.x0)
	sp := rp.Spec()

	xi := make([]float64, sp.NVar)
	lambda := make([]float64, sp.NVar+sp.NCon)
	jac := matrix.New(sp.NCon, sp.NVar)
	require.NoError(t, rp.InitializeDense(xi, lambda, jac))

	// c(x0) = (1.35, 0.3) against the equalities (5, 1), so the slacks
	// absorb the full residual and the reformulated violation is zero.
	assert.InDelta(t, -3.65, xi[3], 1e-12)
	assert.InDelta(t, -0.7, xi[4], 1e-12)

	ev := Evaluation{Constr: make([]float64, 2), GradObj: make([]float64, 5), ConstrJac: jac}
	require.NoError(t, rp.EvaluateDense(xi, lambda, EvalGrads, &ev))
	bl, bu := sp.bounds(1e20)
	assert.InDelta(t, 0.0, matrix.LInfConstraintNorm(xi, ev.Constr, bl, bu), 1e-12)

	// ρ/2·‖s‖² + 0 at the reference point itself.
	want := restRho / 2 * (3.65*3.65 + 0.7*0.7)
	assert.InDelta(t, want, ev.Obj, 1e-9)

	// Gradient: damped distance is zero, slack part is ρ·s.
	assert.InDelta(t, 0.0, ev.GradObj[0], 1e-12)
	assert.InDelta(t, restRho*-3.65, ev.GradObj[3], 1e-9)

	// Slack columns carry the constant -1.
	assert.Equal(t, -1.0, jac.At(0, 3))
	assert.Equal(t, -1.0, jac.At(1, 4))
	assert.Equal(t, 0.0, jac.At(0, 4))
}

// TestRestorationStartsAtReference pins the starting point to the
// reference iterate: the parent initialize installs its own x0, which
// the reformulation must override before seeding the slacks.
func TestRestorationStartsAtReference(t *testing.T) {
	ref := []float64{2, 3, 4}
	// c(ref) = (29, 1): the first equality is violated by 24, the
	// second holds exactly.
	for _, sparse := range []bool{false, true} {
		rp := NewRestorationProblem(newSphereProblem(), ref)
		sp := rp.Spec()
		xi := make([]float64, sp.NVar)
		lambda := make([]float64, sp.NVar+sp.NCon)
		if sparse {
			_, err := rp.InitializeSparse(xi, lambda)
			require.NoError(t, err)
		} else {
			jac := matrix.New(sp.NCon, sp.NVar)
			require.NoError(t, rp.InitializeDense(xi, lambda, jac))
		}
		assert.Equal(t, ref, xi[:3])
		assert.InDelta(t, 24.0, xi[3], 1e-12)
		assert.InDelta(t, 0.0, xi[4], 1e-12)
	}
}

func TestRestorationSparsePattern(t *testing.T) {
	parent := newSphereProblem()
	rp := NewRestorationProblem(parent, parent.x0)
	sp := rp.Spec()

	xi := make([]float64, sp.NVar)
	lambda := make([]float64, sp.NVar+sp.NCon)
	jac, err := rp.InitializeSparse(xi, lambda)
	require.NoError(t, err)

	// Parent pattern first, then one -1 per slack column.
	require.Len(t, jac.Nz, 8)
	assert.Equal(t, []int{0, 2, 4, 6, 7, 8}, jac.IndCol)
	assert.Equal(t, -1.0, jac.Nz[6])
	assert.Equal(t, 0, jac.IndRow[6])
	assert.Equal(t, -1.0, jac.Nz[7])
	assert.Equal(t, 1, jac.IndRow[7])

	ev := Evaluation{Constr: make([]float64, 2), GradObj: make([]float64, 5), Jac: jac}
	require.NoError(t, rp.EvaluateSparse(xi, lambda, EvalGrads, &ev))
	assert.Equal(t, 6.0, jac.Nz[0]) // parent values refreshed in place
}

// TestRestorationSolvesInfeasibleStart drives the slack reformulation
// itself to optimality: from a violated start the restored point must be
// feasible for the parent constraints.
func TestRestorationSolvesInfeasibleStart(t *testing.T) {
	parent := newSphereProblem()
	rp := NewRestorationProblem(parent, parent.x0)

	o := DefaultOptions()
	o.HessUpdate = HessBFGS
	o.RestoreFeas = false
	m, err := New(rp, o, nil)
	require.NoError(t, err)
	r, err := m.Solve(200)
	require.NoError(t, err)
	require.True(t, r.OK, "status %v", r.Status)

	// Residual slacks near zero mean the parent constraints hold.
	assert.InDelta(t, 0.0, r.Xi[3], 1e-2)
	assert.InDelta(t, 0.0, r.Xi[4], 1e-2)
	c1 := 6*r.Xi[0] + 3*r.Xi[1] + 2*r.Xi[2]
	c2 := r.Xi[0] + r.Xi[1] - r.Xi[2]
	assert.InDelta(t, 5.0, c1, 1e-2)
	assert.InDelta(t, 1.0, c2, 1e-2)
}
