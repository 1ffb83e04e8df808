// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"math"

	"github.com/blockopt/blocksqp/matrix"
)

// Weights of the restoration objective.
const (
	restZeta = 1.0e-3 // damping toward the reference point
	restRho  = 1.0e3  // weight of the slack norm
)

// RestorationProblem reformulates a problem whose constraints cannot be
// satisfied locally. One slack per constraint absorbs the violation,
//
//	min ρ/2·‖s‖² + ζ/2·‖D(x-xref)‖²  s.t.  bl ≤ c(x) - s ≤ bu,
//
// and the original variable bounds stay in place. The scaling D damps
// movement relative to the magnitude of the reference point. Each slack
// forms its own 1x1 Hessian block.
type RestorationProblem struct {
	parent     Problem
	parentSpec *Spec
	spec       Spec

	xiRef     []float64
	diagScale []float64

	parentJac  *SparseJac
	combined   *SparseJac
	parentView *matrix.Matrix
	gradBuf    []float64
	lamBuf     []float64
}

// parentLambda reorders the multipliers into the parent layout, dropping
// the slack bound entries.
func (rp *RestorationProblem) parentLambda(lambda []float64) []float64 {
	pn, pm := rp.parentSpec.NVar, rp.parentSpec.NCon
	copy(rp.lamBuf[:pn], lambda[:pn])
	copy(rp.lamBuf[pn:], lambda[pn+pm:])
	return rp.lamBuf
}

// NewRestorationProblem builds the slack reformulation of parent around
// the reference point xiRef.
func NewRestorationProblem(parent Problem, xiRef []float64) *RestorationProblem {
	ps := parent.Spec()
	pn, pm := ps.NVar, ps.NCon

	rp := &RestorationProblem{
		parent:     parent,
		parentSpec: ps,
		xiRef:      append([]float64(nil), xiRef...),
		diagScale:  make([]float64, pn),
		gradBuf:    make([]float64, pn),
		lamBuf:     make([]float64, pn+pm),
	}
	for i, v := range xiRef {
		rp.diagScale[i] = one
		if math.Abs(v) > one {
			rp.diagScale[i] = one / math.Abs(v)
		}
	}

	blocks := ps.BlockIdx
	if blocks == nil {
		blocks = []int{0, pn}
	}
	ri := make([]int, len(blocks), len(blocks)+pm)
	copy(ri, blocks)
	// Each slack forms its own 1x1 block, its Hessian is the diagonal ρ.
	for k := 1; k <= pm; k++ {
		ri = append(ri, pn+k)
	}

	bl := make([]float64, pn+pm+pm)
	bu := make([]float64, pn+pm+pm)
	pbl, pbu := ps.bounds(math.Inf(1))
	for i := 0; i < pn; i++ {
		bl[i], bu[i] = pbl[i], pbu[i]
	}
	for k := 0; k < pm; k++ {
		bl[pn+k], bu[pn+k] = math.Inf(-1), math.Inf(1) // slacks are free
		bl[pn+pm+k], bu[pn+pm+k] = pbl[pn+k], pbu[pn+k]
	}

	rp.spec = Spec{
		NVar:     pn + pm,
		NCon:     pm,
		BlockIdx: ri,
		Bl:       bl,
		Bu:       bu,
	}
	return rp
}

func (rp *RestorationProblem) Spec() *Spec { return &rp.spec }

// seedSlacks sets each slack to the residual of its violated constraint
// so the reformulated constraints start with zero violation.
func (rp *RestorationProblem) seedSlacks(xi, constr []float64) {
	pn, pm := rp.parentSpec.NVar, rp.parentSpec.NCon
	pbl, pbu := rp.parentSpec.bounds(math.Inf(1))
	for k := 0; k < pm; k++ {
		s := zero
		switch {
		case constr[k] > pbu[pn+k]:
			s = constr[k] - pbu[pn+k]
		case constr[k] < pbl[pn+k]:
			s = constr[k] - pbl[pn+k]
		}
		xi[pn+k] = s
	}
}

func (rp *RestorationProblem) InitializeDense(xi, lambda []float64, constrJac *matrix.Matrix) error {
	pn, pm := rp.parentSpec.NVar, rp.parentSpec.NCon
	for i := range lambda {
		lambda[i] = zero
	}

	var err error
	rp.parentView, err = constrJac.Submatrix(pm, pn, 0, 0)
	if err != nil {
		return err
	}
	if err := rp.parent.InitializeDense(xi[:pn], rp.parentLambda(lambda), rp.parentView); err != nil {
		return err
	}
	// The parent initialize installs its own starting point. The
	// restoration starts at the reference iterate instead.
	copy(xi[:pn], rp.xiRef)

	// Slack columns of the Jacobian are constant.
	for k := 0; k < pm; k++ {
		constrJac.Set(k, pn+k, -one)
	}

	ev := Evaluation{Constr: make([]float64, pm)}
	if err := rp.parent.EvaluateDense(xi[:pn], rp.parentLambda(lambda), EvalFuncs, &ev); err != nil {
		return err
	}
	rp.seedSlacks(xi, ev.Constr)
	return nil
}

func (rp *RestorationProblem) InitializeSparse(xi, lambda []float64) (*SparseJac, error) {
	pn, pm := rp.parentSpec.NVar, rp.parentSpec.NCon
	for i := range lambda {
		lambda[i] = zero
	}

	pj, err := rp.parent.InitializeSparse(xi[:pn], rp.parentLambda(lambda))
	if err != nil {
		return nil, err
	}
	rp.parentJac = pj
	copy(xi[:pn], rp.xiRef)

	// Extend the parent pattern with one -1 per slack column.
	nnz := len(pj.Nz)
	cj := &SparseJac{
		Nz:     make([]float64, nnz+pm),
		IndRow: make([]int, nnz+pm),
		IndCol: make([]int, pn+pm+1),
	}
	copy(cj.Nz, pj.Nz)
	copy(cj.IndRow, pj.IndRow)
	copy(cj.IndCol, pj.IndCol)
	for k := 0; k < pm; k++ {
		cj.Nz[nnz+k] = -one
		cj.IndRow[nnz+k] = k
		cj.IndCol[pn+1+k] = nnz + k + 1
	}
	rp.combined = cj

	ev := Evaluation{Constr: make([]float64, pm)}
	if err := rp.parent.EvaluateSparse(xi[:pn], rp.parentLambda(lambda), EvalFuncs, &ev); err != nil {
		return nil, err
	}
	rp.seedSlacks(xi, ev.Constr)
	return cj, nil
}

// objective fills in the restoration objective and its gradient and
// subtracts the slacks from the parent constraint values.
func (rp *RestorationProblem) objective(xi []float64, dmode int, ev *Evaluation) {
	pn, pm := rp.parentSpec.NVar, rp.parentSpec.NCon

	obj := zero
	for k := 0; k < pm; k++ {
		s := xi[pn+k]
		obj += s * s
		ev.Constr[k] -= s
	}
	obj *= restRho / two
	for i := 0; i < pn; i++ {
		d := rp.diagScale[i] * (xi[i] - rp.xiRef[i])
		obj += restZeta / two * d * d
	}
	ev.Obj = obj

	if dmode < EvalGrads {
		return
	}
	for i := 0; i < pn; i++ {
		d := xi[i] - rp.xiRef[i]
		ev.GradObj[i] = restZeta * rp.diagScale[i] * rp.diagScale[i] * d
	}
	for k := 0; k < pm; k++ {
		ev.GradObj[pn+k] = restRho * xi[pn+k]
	}
}

func (rp *RestorationProblem) EvaluateDense(xi, lambda []float64, dmode int, ev *Evaluation) error {
	pn, pm := rp.parentSpec.NVar, rp.parentSpec.NCon
	pev := Evaluation{Constr: ev.Constr, GradObj: rp.gradBuf, ConstrJac: rp.parentView}
	if err := rp.parent.EvaluateDense(xi[:pn], rp.parentLambda(lambda), dmode, &pev); err != nil {
		return err
	}
	rp.objective(xi, dmode, ev)
	if dmode >= EvalGrads && ev.ConstrJac != nil {
		for k := 0; k < pm; k++ {
			ev.ConstrJac.Set(k, pn+k, -one)
		}
	}
	return nil
}

func (rp *RestorationProblem) EvaluateSparse(xi, lambda []float64, dmode int, ev *Evaluation) error {
	pn := rp.parentSpec.NVar
	pev := Evaluation{Constr: ev.Constr, GradObj: rp.gradBuf, Jac: rp.parentJac}
	if err := rp.parent.EvaluateSparse(xi[:pn], rp.parentLambda(lambda), dmode, &pev); err != nil {
		return err
	}
	if dmode >= EvalGrads && ev.Jac != nil {
		copy(ev.Jac.Nz[:len(rp.parentJac.Nz)], rp.parentJac.Nz)
	}
	rp.objective(xi, dmode, ev)
	return nil
}

// feasibilityRestorationHeuristic asks the problem to repair the point
// itself, available for problems that implement ConstraintReducer. The
// repaired point still has to be acceptable to the filter.
func (s *solver) feasibilityRestorationHeuristic() bool {
	red, okIface := s.prob.(ConstraintReducer)
	if !okIface {
		return false
	}
	s.stats.NRestHeurCalls++
	it := s.it

	copy(it.trialXi, it.Xi)
	if err := red.ReduceConstrVio(it.trialXi); err != nil {
		return false
	}
	objTrial, cNormTrial, ok := s.evalTrial(it.trialXi)
	if !ok || !it.filter.Acceptable(cNormTrial, objTrial) {
		return false
	}

	copy(it.Xi, it.trialXi)
	for i := range it.DeltaXi {
		it.DeltaXi[i] = zero
	}
	it.Alpha = one
	it.NSOCS = 0
	it.Steptype = stepRestoration
	return true
}

// feasibilityRestorationPhase minimizes the constraint violation with a
// nested solver on the slack reformulation. The inner iteration advances
// one step at a time until its point is acceptable to the outer filter.
func (s *solver) feasibilityRestorationPhase() bool {
	o := s.opts
	if !o.RestoreFeas {
		return false
	}
	s.stats.NRestPhaseCalls++
	it := s.it
	pn, pm := it.nVar, it.nCon

	ro := DefaultOptions()
	ro.Globalization = true
	ro.RestoreFeas = false
	ro.WhichSecondDerv = 0
	ro.HessUpdate = HessBFGS
	ro.HessScaling = ScaleOL
	ro.HessLimMem = true
	ro.OptTol = o.OptTol
	ro.NLInfeasTol = o.NLInfeasTol
	ro.SparseQP = o.SparseQP
	ro.Inf = o.Inf

	rp := NewRestorationProblem(s.prob, it.Xi)
	rm, err := New(rp, ro, &Logger{Level: LogNoop})
	if err != nil {
		return false
	}
	w, err := rm.Init()
	if err != nil {
		return false
	}

	for k := 0; k < o.MaxRestIter; k++ {
		res := rm.Run(w, 1)

		copy(it.trialXi, w.it.Xi[:pn])
		objTrial, cNormTrial, ok := s.evalTrial(it.trialXi)
		if ok && it.filter.Acceptable(cNormTrial, objTrial) &&
			cNormTrial < it.CNorm {
			copy(it.Xi, it.trialXi)
			// Bound multipliers carry over, constraint multipliers come
			// from the inner solve.
			copy(it.Lambda[:pn], w.it.Lambda[:pn])
			copy(it.Lambda[pn:], w.it.Lambda[pn+pm:])
			for i := range it.DeltaXi {
				it.DeltaXi[i] = zero
			}
			it.Alpha = one
			it.NSOCS = 0
			it.Steptype = stepRestoration
			return true
		}
		if res.Status != MaxIterations {
			// The inner solver stopped, no further progress to harvest.
			return false
		}
	}
	return false
}
