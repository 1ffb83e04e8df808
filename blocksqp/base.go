// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
	ten  = 10.0
	hun  = 100.0
)

// Status reports how a solve finished.
type Status int

const (
	// Optimal the KKT conditions hold within the configured tolerances.
	Optimal Status = iota
	// MaxIterations the iteration limit was reached without convergence.
	MaxIterations
	// SearchFailed no acceptable step could be found and no recovery applied.
	SearchFailed
	// RestorationFailed the feasibility restoration phase did not produce
	// a point acceptable to the filter.
	RestorationFailed
	// QPError a quadratic subproblem could not be solved.
	QPError
	// EvalError a problem evaluation failed or returned non-finite values.
	EvalError
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case MaxIterations:
		return "iteration limit"
	case SearchFailed:
		return "line search failure"
	case RestorationFailed:
		return "restoration failure"
	case QPError:
		return "QP failure"
	case EvalError:
		return "evaluation failure"
	}
	return "unknown"
}

// Step provenance recorded in Iterate.Steptype.
const (
	stepKKTFallback = -1 // full step accepted because it reduced the KKT error
	stepLineSearch  = 0  // accepted by the line search or a full step
	stepSOC         = 1  // step includes second order corrections
	stepRestoration = 2  // point produced by the feasibility restoration phase
)
