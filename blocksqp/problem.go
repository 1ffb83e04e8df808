// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"errors"

	"github.com/blockopt/blocksqp/matrix"
)

// ErrNoSparse is returned by problems that only provide a dense
// constraint Jacobian.
var ErrNoSparse = errors.New("blocksqp: sparse derivatives not implemented")

// Spec describes the structure of a nonlinear program
//
//	min f(x)  s.t.  bl ≤ [x, c(x)] ≤ bu
//
// with a block diagonal Lagrangian Hessian. BlockIdx holds the block
// boundaries: block b covers the variables BlockIdx[b] to BlockIdx[b+1]-1.
// A nil BlockIdx means a single block over all variables.
type Spec struct {
	NVar     int
	NCon     int
	BlockIdx []int

	// Bl and Bu are the lower and upper bounds, NVar variable bounds
	// followed by NCon constraint bounds. Equality constraints carry
	// identical bounds. Nil means unbounded.
	Bl, Bu []float64

	// ObjLo and ObjUp bracket the objective values considered plausible.
	// Trial points outside the bracket are rejected by the line search.
	ObjLo, ObjUp float64
}

// SparseJac is a constraint Jacobian in compressed column storage.
// IndCol has NVar+1 entries, column j occupies Nz[IndCol[j]:IndCol[j+1]]
// with row indices IndRow[IndCol[j]:IndCol[j+1]].
type SparseJac struct {
	Nz     []float64
	IndRow []int
	IndCol []int
}

// Evaluation receives the problem functions and derivatives requested by
// the engine. Buffers are allocated by the caller, the problem fills them.
type Evaluation struct {
	Obj     float64
	Constr  []float64
	GradObj []float64

	// Exactly one of the two Jacobian forms is set, matching the
	// initialization that was used.
	ConstrJac *matrix.Matrix
	Jac       *SparseJac

	// Hess receives exact Hessian blocks when the evaluation mode asks
	// for them. Only the trailing blocks the problem declared exact are
	// consulted.
	Hess []*matrix.SymMatrix
}

// Evaluation modes passed to Problem evaluate calls.
const (
	EvalFuncs  = 0  // objective and constraint values only
	EvalGrads  = 1  // values plus objective gradient and constraint Jacobian
	EvalHess   = 2  // everything plus exact Hessian blocks where declared
	EvalConstr = -1 // constraint values only
)

// Problem is a nonlinear program with block diagonal Lagrangian Hessian.
//
// Initialize* is called once before the iteration starts. It sets the
// starting point and multiplier estimate and establishes the Jacobian
// storage: dense problems fill constrJac with the sparsity-defining values,
// sparse problems return the Jacobian pattern. Subsequent Evaluate* calls
// with dmode ≥ EvalGrads overwrite the same storage.
type Problem interface {
	Spec() *Spec

	InitializeDense(xi, lambda []float64, constrJac *matrix.Matrix) error
	InitializeSparse(xi, lambda []float64) (*SparseJac, error)

	EvaluateDense(xi, lambda []float64, dmode int, ev *Evaluation) error
	EvaluateSparse(xi, lambda []float64, dmode int, ev *Evaluation) error
}

// NoSparse can be embedded by problems that only implement the dense
// interface. Its methods return ErrNoSparse.
type NoSparse struct{}

func (NoSparse) InitializeSparse(_, _ []float64) (*SparseJac, error) { return nil, ErrNoSparse }

func (NoSparse) EvaluateSparse(_, _ []float64, _ int, _ *Evaluation) error { return ErrNoSparse }

// EvalConstraints evaluates only the constraint values at xi into constr.
// It prefers the sparse interface and falls back to the dense one for
// problems that do not implement it.
func EvalConstraints(p Problem, xi, lambda, constr []float64) error {
	ev := Evaluation{Constr: constr}
	err := p.EvaluateSparse(xi, lambda, EvalConstr, &ev)
	if errors.Is(err, ErrNoSparse) {
		err = p.EvaluateDense(xi, lambda, EvalConstr, &ev)
	}
	return err
}

// ConstraintReducer is implemented by problems that can cheaply move a
// point toward feasibility, for example by re-integrating the states of a
// shooting discretization. The engine consults it before starting a full
// restoration phase.
type ConstraintReducer interface {
	ReduceConstrVio(xi []float64) error
}

// validate checks a Spec for structural errors before any allocation.
func (sp *Spec) validate() error {
	switch {
	case sp == nil:
		return errors.New("blocksqp: problem spec must not be nil")
	case sp.NVar < 1:
		return errors.New("blocksqp: problem must have at least one variable")
	case sp.NCon < 0:
		return errors.New("blocksqp: negative number of constraints")
	case sp.Bl != nil && len(sp.Bl) != sp.NVar+sp.NCon:
		return errors.New("blocksqp: lower bound vector has wrong length")
	case sp.Bu != nil && len(sp.Bu) != sp.NVar+sp.NCon:
		return errors.New("blocksqp: upper bound vector has wrong length")
	}
	if sp.BlockIdx != nil {
		if len(sp.BlockIdx) < 2 || sp.BlockIdx[0] != 0 || sp.BlockIdx[len(sp.BlockIdx)-1] != sp.NVar {
			return errors.New("blocksqp: block boundaries must run from 0 to nVar")
		}
		for b := 1; b < len(sp.BlockIdx); b++ {
			if sp.BlockIdx[b] <= sp.BlockIdx[b-1] {
				return errors.New("blocksqp: block boundaries must be strictly increasing")
			}
		}
	}
	return nil
}

// bounds returns the working copies of the bound vectors with nil
// replaced by ±inf and the objective bracket widened to ±inf if unset.
func (sp *Spec) bounds(inf float64) (bl, bu []float64) {
	n := sp.NVar + sp.NCon
	bl = make([]float64, n)
	bu = make([]float64, n)
	for i := 0; i < n; i++ {
		bl[i], bu[i] = -inf, inf
	}
	if sp.Bl != nil {
		copy(bl, sp.Bl)
	}
	if sp.Bu != nil {
		copy(bu, sp.Bu)
	}
	return bl, bu
}
