// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"errors"
	"math"

	"github.com/blockopt/blocksqp/matrix"
)

// Method is a configured SQP solver for one problem. A Method is
// immutable after New, iteration state lives in the Workspace so several
// solves can share the configuration.
type Method struct {
	prob Problem
	spec *Spec
	opts *Options
	log  *Logger
	qp   QPSolver

	objLo, objUp float64
}

// Workspace carries the state of one solve. Run may be called repeatedly
// on the same workspace to continue the iteration.
type Workspace struct {
	it    *Iterate
	stats *Stats
}

// Iterate exposes the current iteration state.
func (w *Workspace) Iterate() *Iterate { return w.it }

// Stats exposes the accumulated counters.
func (w *Workspace) Stats() *Stats { return w.stats }

// Result summarizes a finished Run.
type Result struct {
	OK     bool
	Status Status
	Obj    float64
	Xi     []float64
	Lambda []float64
	CNorm  float64
	Tol    float64
	Summary
}

// Summary holds the counters of the run.
type Summary struct {
	NumIter         int
	NumQPIter       int
	NumFunCalls     int
	NumDerCalls     int
	HessSkipped     int
	HessDamped      int
	RejectedSR1     int
	NumRestPhases   int
}

// New validates the problem structure and options and returns a solver
// for it. The QP subproblems are solved with the built-in least squares
// solver unless a different one is installed with SetQPSolver.
func New(p Problem, opts *Options, logger *Logger) (*Method, error) {
	if p == nil {
		return nil, errors.New("blocksqp: problem must not be nil")
	}
	sp := p.Spec()
	if err := sp.validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.consistency(); err != nil {
		return nil, err
	}

	m := &Method{
		prob: p,
		spec: sp,
		opts: opts,
		log:  logger,
		qp:   NewLSQSolver(),
	}
	m.objLo, m.objUp = sp.ObjLo, sp.ObjUp
	if m.objLo == zero && m.objUp == zero {
		m.objLo, m.objUp = -opts.Inf, opts.Inf
	}
	return m, nil
}

// SetQPSolver replaces the subproblem solver.
func (m *Method) SetQPSolver(qp QPSolver) { m.qp = qp }

// Init allocates a workspace, calls the problem initialization and
// evaluates the starting point.
func (m *Method) Init() (*Workspace, error) {
	it := newIterate(m.spec, m.opts)
	w := &Workspace{it: it, stats: &Stats{}}
	s := m.solver(w)

	var err error
	if m.opts.SparseQP {
		it.Jac, err = m.prob.InitializeSparse(it.Xi, it.Lambda)
	} else {
		err = m.prob.InitializeDense(it.Xi, it.Lambda, it.ConstrJac)
	}
	if err != nil {
		return nil, err
	}

	if err := s.evaluateIterate(); err != nil {
		return nil, err
	}
	if math.IsNaN(it.Obj) || it.Obj <= s.objLo || it.Obj >= s.objUp {
		return nil, errors.New("blocksqp: objective at the starting point out of range")
	}

	s.calcInitialHessian()
	it.filter.Reset(m.opts.ThetaMax, s.objLo)
	s.calcOptTol()
	return w, nil
}

// Run continues the iteration for at most maxIt steps. It can be called
// again on the same workspace to iterate further.
func (m *Method) Run(w *Workspace, maxIt int) *Result {
	s := m.solver(w)
	status := s.run(maxIt)
	s.stats.printSummary(m.log, w.it, status)

	it, st := w.it, w.stats
	return &Result{
		OK:     status == Optimal,
		Status: status,
		Obj:    it.Obj,
		Xi:     append([]float64(nil), it.Xi...),
		Lambda: append([]float64(nil), it.Lambda...),
		CNorm:  it.CNormS,
		Tol:    it.Tol,
		Summary: Summary{
			NumIter:       st.ItCount,
			NumQPIter:     st.QPIterations,
			NumFunCalls:   st.NFunCalls,
			NumDerCalls:   st.NDerCalls,
			HessSkipped:   st.HessSkipped,
			HessDamped:    st.HessDamped,
			RejectedSR1:   st.RejectedSR1,
			NumRestPhases: st.NRestPhaseCalls,
		},
	}
}

// Solve is the convenience entry point: Init followed by Run with the
// given iteration limit.
func (m *Method) Solve(maxIt int) (*Result, error) {
	w, err := m.Init()
	if err != nil {
		return nil, err
	}
	return m.Run(w, maxIt), nil
}

// solver bundles method, workspace and options for the internal
// iteration routines.
type solver struct {
	meth  *Method
	prob  Problem
	spec  *Spec
	opts  *Options
	it    *Iterate
	stats *Stats
	qp    QPSolver
	log   *Logger

	objLo, objUp float64
}

func (m *Method) solver(w *Workspace) *solver {
	return &solver{
		meth:  m,
		prob:  m.prob,
		spec:  m.spec,
		opts:  m.opts,
		it:    w.it,
		stats: w.stats,
		qp:    m.qp,
		log:   m.log,
		objLo: m.objLo,
		objUp: m.objUp,
	}
}

// evaluate dispatches to the sparse or dense problem interface and keeps
// the call counters.
func (s *solver) evaluate(xi, lambda []float64, dmode int, ev *Evaluation) error {
	var err error
	if s.opts.SparseQP {
		err = s.prob.EvaluateSparse(xi, lambda, dmode, ev)
	} else {
		err = s.prob.EvaluateDense(xi, lambda, dmode, ev)
	}
	if dmode >= EvalGrads {
		s.stats.NDerCalls++
	} else {
		s.stats.NFunCalls++
	}
	return err
}

// evaluateIterate refreshes functions and derivatives at the current
// point, including exact Hessian blocks when the problem provides them.
func (s *solver) evaluateIterate() error {
	it := s.it
	dmode := EvalGrads
	ev := Evaluation{
		Constr:    it.Constr,
		GradObj:   it.GradObj,
		ConstrJac: it.ConstrJac,
		Jac:       it.Jac,
	}
	if s.opts.WhichSecondDerv == 1 {
		dmode = EvalHess
		ev.Hess = it.hess1
	}
	if err := s.evaluate(it.Xi, it.Lambda, dmode, &ev); err != nil {
		return err
	}
	it.Obj = ev.Obj
	return nil
}

// calcLagrangeGradient computes ∇L(x,λ) = ∇f - Aᵀλ_c - λ_b into out
// using the derivatives stored in the iterate.
func (s *solver) calcLagrangeGradient(lambda, out []float64) {
	it := s.it
	it.mulJacT(lambda[it.nVar:], out)
	for i := 0; i < it.nVar; i++ {
		out[i] = it.GradObj[i] - out[i] - lambda[i]
	}
}

// calcOptTol refreshes the scaled KKT measures of the current point and
// reports whether both tolerances hold.
func (s *solver) calcOptTol() bool {
	it := s.it
	s.calcLagrangeGradient(it.Lambda, it.GradLagrange)
	it.GradNorm = matrix.LInfNorm(it.GradLagrange)
	it.Tol = it.GradNorm / (one + matrix.LInfNorm(it.Lambda))
	it.CNorm = matrix.LInfConstraintNorm(it.Xi, it.Constr, it.bl, it.bu)
	it.CNormS = it.CNorm / (one + matrix.LInfNorm(it.Xi))
	return it.Tol <= s.opts.OptTol && it.CNormS <= s.opts.NLInfeasTol
}

// run is the SQP iteration loop.
func (s *solver) run(maxIt int) Status {
	it, o := s.it, s.opts

	if it.Tol <= o.OptTol && it.CNormS <= o.NLInfeasTol {
		return Optimal
	}
	for k := 0; k < maxIt; k++ {
		s.stats.ItCount++
		it.advanceHistory(s.stats.ItCount)

		// Quadratic subproblem at the current point.
		s.updateStepBounds(false)
		qpSt := s.solveQP(it.DeltaXi, it.LambdaQP)

		restored := false
		switch {
		case qpSt == QPSolved:
		case (qpSt == QPInfeasible || qpSt == QPMaxIter) && o.RestoreFeas:
			// An infeasible or stalled subproblem is a step rejection,
			// not a fatal failure. Only numerical breakdown is.
			if s.log.enable(LogTrace) {
				s.log.log("it %d: QP %v, entering restoration", s.stats.ItCount, qpSt)
			}
			if !s.feasibilityRestorationHeuristic() && !s.feasibilityRestorationPhase() {
				return RestorationFailed
			}
			restored = true
		default:
			return QPError
		}

		// Globalization.
		if !restored {
			accepted := false
			switch {
			case !o.Globalization,
				o.SkipFirstGlobalization && s.stats.ItCount == 1:
				accepted = s.fullstep()
			default:
				accepted = s.filterLineSearch()
				if !accepted {
					accepted = s.kktErrorReduction()
				}
				if !accepted && it.CNorm > 0.01*o.NLInfeasTol {
					if s.log.enable(LogTrace) {
						s.log.log("it %d: line search failed, entering restoration", s.stats.ItCount)
					}
					accepted = s.feasibilityRestorationHeuristic() || s.feasibilityRestorationPhase()
					restored = accepted
					if !accepted {
						return RestorationFailed
					}
				}
			}
			if !accepted {
				return SearchFailed
			}
			if it.reducedStepCount > o.MaxConsecReducedSteps {
				return SearchFailed
			}
		}

		if restored {
			// Fresh start at the restored point: derivatives, Hessian and
			// filter no longer match the trajectory.
			if err := s.evaluateIterate(); err != nil {
				return EvalError
			}
			s.calcInitialHessian()
			it.filter.Reset(o.ThetaMax, s.objLo)
			conv := s.calcOptTol()
			s.stats.printProgress(s.log, it, o.DebugLevel)
			if conv {
				return Optimal
			}
			continue
		}

		// γ = ∇L(x⁺,λ⁺) - ∇L(x,λ⁺), with the old derivatives still loaded.
		s.calcLagrangeGradient(it.Lambda, it.gradScratch)
		for i := range it.Gamma {
			it.Gamma[i] = -it.gradScratch[i]
		}

		if err := s.evaluateIterate(); err != nil {
			return EvalError
		}
		conv := s.calcOptTol()
		for i := range it.Gamma {
			it.Gamma[i] += it.GradLagrange[i]
		}

		s.stats.printProgress(s.log, it, o.DebugLevel)
		if conv && it.Steptype < stepRestoration {
			return Optimal
		}

		s.updateHessians()
		if o.DebugLevel > 1 {
			s.checkHessian()
		}
	}
	return MaxIterations
}
