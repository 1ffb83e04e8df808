// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blocksqp implements a sequential quadratic programming method
// for nonlinear programs whose Lagrangian Hessian is block diagonal,
// the structure that arises from direct multiple shooting discretizations
// of optimal control problems.
//
// Each Hessian block is approximated independently with SR1 or damped
// BFGS updates, optionally with limited memory and selective sizing.
// Since SR1 matrices may be indefinite, a positive definite companion
// approximation is maintained and used whenever a quadratic subproblem
// rejects the primary one. Steps are globalized with the filter line
// search of Wächter and Biegler, including second order corrections and
// a feasibility restoration phase on a slack reformulation.
//
// A typical solve:
//
//	m, err := blocksqp.New(problem, blocksqp.DefaultOptions(), logger)
//	if err != nil { ... }
//	res, err := m.Solve(100)
package blocksqp
