// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lsq solves convex quadratic programs with two-sided linear
// constraints by reduction to a chain of least-squares problems
// (LSEI → LSI → LDP → NNLS) in the manner of Lawson and Hanson.
//
// The quadratic objective is supplied through the LDLᵀ factors of its
// Hessian, so the caller is responsible for convexity.
package lsq

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
	eps  = float64(7)/3 - float64(4)/3 - 1.
)

// Status reports the outcome of a subproblem solve.
type Status int

const (
	// Solved problem solved successfully.
	Solved Status = iota
	// BadInput input dimensions unacceptable.
	BadInput
	// MaxIterNNLS more than max iterations for solving NNLS.
	MaxIterNNLS
	// Incompatible inequality constraints incompatible.
	Incompatible
	// SingularObjective objective matrix E is rank-deficient in LSI.
	SingularObjective
	// SingularEquality equality constraint matrix C is rank-deficient in LSEI.
	SingularEquality
	// RankDefect rank-deficient least-squares system in HFTI.
	RankDefect
	// NotPosDef the Hessian factorization found a non-positive pivot.
	NotPosDef
)

func (s Status) String() string {
	switch s {
	case Solved:
		return "solved"
	case BadInput:
		return "bad input"
	case MaxIterNNLS:
		return "NNLS iteration limit"
	case Incompatible:
		return "incompatible constraints"
	case SingularObjective:
		return "singular objective"
	case SingularEquality:
		return "singular equality constraints"
	case RankDefect:
		return "rank defect"
	case NotPosDef:
		return "not positive definite"
	}
	return "unknown"
}
