// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"github.com/blockopt/blocksqp/lsq"
	"github.com/blockopt/blocksqp/matrix"
)

// QPStatus classifies the outcome of one quadratic subproblem.
type QPStatus int

const (
	QPSolved QPStatus = iota
	QPInfeasible
	QPNotPosDef
	QPMaxIter
	QPNumError
)

func (s QPStatus) String() string {
	switch s {
	case QPSolved:
		return "solved"
	case QPInfeasible:
		return "infeasible"
	case QPNotPosDef:
		return "hessian not positive definite"
	case QPMaxIter:
		return "iteration limit"
	case QPNumError:
		return "numerical error"
	}
	return "unknown"
}

// QPData is one quadratic subproblem
//
//	min ½dᵀBd + gᵀd  s.t.  bl ≤ [d, Ad] ≤ bu
//
// with the Hessian given as block diagonal matrices and the constraint
// Jacobian in either dense or compressed column form.
type QPData struct {
	N, M int

	Grad []float64

	Jac    *matrix.Matrix
	JacNz  []float64
	JacRow []int
	JacCol []int

	Hess     []*matrix.SymMatrix
	BlockIdx []int

	// The Hessian flattened to compressed column form, filled in sparse
	// mode for solvers that take the whole matrix at once. HessLo marks
	// the first on-or-below-diagonal entry of each column.
	HessNz  []float64
	HessRow []int
	HessCol []int
	HessLo  []int

	// Bl and Bu are the shifted step bounds, N variable entries followed
	// by M constraint entries.
	Bl, Bu []float64

	MaxIter int
	Inf     float64
}

// QPResult receives the primal step, the multipliers in bound-then-row
// layout and the QP objective value.
type QPResult struct {
	X          []float64
	Lambda     []float64
	Obj        float64
	Iterations int
}

// QPSolver solves the quadratic subproblems of the SQP iteration.
type QPSolver interface {
	Solve(d *QPData, r *QPResult) QPStatus
}

// lsqSolver solves the subproblems as least squares programs. The block
// Hessian is LDLᵀ-factored block by block, which turns ½dᵀBd + gᵀd into
// ½‖Ed+f‖² and lets the Lawson-Hanson chain handle the constraints. A
// Hessian block that is not positive definite surfaces as QPNotPosDef so
// the caller can retry with the fallback approximation.
type lsqSolver struct {
	factor []float64 // packed LDLᵀ factors of the full Hessian
	jac    []float64 // dense constraint matrix handed to lsq
	eps    float64
}

// NewLSQSolver returns the built-in least squares based QP solver.
func NewLSQSolver() QPSolver {
	return &lsqSolver{eps: 1.0e-14}
}

func (q *lsqSolver) Solve(d *QPData, r *QPResult) QPStatus {
	n, m := d.N, d.M

	// Factor each block in place of its packed column storage, then
	// scatter into the packed lower triangle of the full matrix. Entries
	// across blocks stay zero.
	total := n * (n + 1) / 2
	if cap(q.factor) < total {
		q.factor = make([]float64, total)
	}
	l := q.factor[:total]
	for i := range l {
		l[i] = zero
	}
	idx := func(i, j int) int { return i + j*n - j*(j+1)/2 }
	for b := 0; b+1 < len(d.BlockIdx); b++ {
		lo, hi := d.BlockIdx[b], d.BlockIdx[b+1]
		dim := hi - lo
		blk := make([]float64, dim*(dim+1)/2)
		if st := lsq.LDLFactor(dim, d.Hess[b].Data(), blk, q.eps); st != lsq.Solved {
			return QPNotPosDef
		}
		k := 0
		for j := 0; j < dim; j++ {
			for i := j; i < dim; i++ {
				l[idx(lo+i, lo+j)] = blk[k]
				k++
			}
		}
	}

	// The Lawson-Hanson routines want the constraint matrix dense.
	lda := m
	if lda < 1 {
		lda = 1
	}
	if cap(q.jac) < lda*n {
		q.jac = make([]float64, lda*n)
	}
	a := q.jac[:lda*n]
	switch {
	case d.Jac != nil:
		for j := 0; j < n; j++ {
			copy(a[j*lda:j*lda+m], d.Jac.ColSlice(j))
		}
	default:
		for i := range a {
			a[i] = zero
		}
		for j := 0; j < n; j++ {
			for k := d.JacCol[j]; k < d.JacCol[j+1]; k++ {
				a[d.JacRow[k]+j*lda] = d.JacNz[k]
			}
		}
	}

	obj, st := lsq.Solve(n, m, l, d.Grad, a, lda, d.Bl, d.Bu, r.X, r.Lambda, d.MaxIter, d.Inf)
	r.Obj = obj
	r.Iterations = 1

	switch st {
	case lsq.Solved:
		return QPSolved
	case lsq.Incompatible:
		return QPInfeasible
	case lsq.MaxIterNNLS:
		return QPMaxIter
	case lsq.NotPosDef, lsq.SingularObjective:
		return QPNotPosDef
	}
	return QPNumError
}

// solveQP builds the subproblem from the current iterate and hands it to
// the QP solver. When the primary Hessian is rejected as indefinite the
// positive definite companion is tried before giving up.
func (s *solver) solveQP(dir, lamQP []float64) QPStatus {
	it, o := s.it, s.opts

	d := &QPData{
		N:        it.nVar,
		M:        it.nCon,
		Grad:     it.GradObj,
		Hess:     it.Hess,
		BlockIdx: it.blockIdx,
		Bl:       it.DeltaBl,
		Bu:       it.DeltaBu,
		MaxIter:  o.MaxItQP,
		Inf:      o.Inf,
	}
	if o.SparseQP {
		d.JacNz = it.Jac.Nz
		d.JacRow = it.Jac.IndRow
		d.JacCol = it.Jac.IndCol
		it.convertHessian(o.Eps)
		d.HessNz = it.hessNz
		d.HessRow = it.hessIndRow
		d.HessCol = it.hessIndCol
		d.HessLo = it.hessIndLo
	} else {
		d.Jac = it.ConstrJac
	}

	r := &QPResult{X: dir, Lambda: lamQP}
	st := s.qp.Solve(d, r)
	s.stats.QPIterations += r.Iterations

	if st == QPNotPosDef && it.hess2 != nil {
		for try := 0; try < o.MaxConvQP && st == QPNotPosDef; try++ {
			d.Hess = it.hess2
			st = s.qp.Solve(d, r)
			s.stats.QPIterations += r.Iterations
			s.stats.QPResolves++
		}
	}

	if st == QPSolved {
		it.QPObj = r.Obj
		it.mulJac(dir, it.AdeltaXi)
	}
	return st
}

// updateStepBounds shifts the problem bounds to the current point. With
// soc the constraint rows are centered on the second order correction
// right hand side A·d + c(trial) instead of c(x).
func (s *solver) updateStepBounds(soc bool) {
	it, inf := s.it, s.opts.Inf
	n := it.nVar

	// Open bounds stay open, shifting ±inf would make them finite.
	shift := func(k int, by float64) {
		it.DeltaBl[k] = -inf
		if it.bl[k] > -inf {
			it.DeltaBl[k] = it.bl[k] - by
		}
		it.DeltaBu[k] = inf
		if it.bu[k] < inf {
			it.DeltaBu[k] = it.bu[k] - by
		}
	}

	for i := 0; i < n; i++ {
		shift(i, it.Xi[i])
	}
	for j := 0; j < it.nCon; j++ {
		c := it.Constr[j]
		if soc {
			c = it.AdeltaXi[j] + it.trialConstr[j]
		}
		shift(n+j, c)
	}
}
