// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/blockopt/blocksqp/matrix"
)

// gershgorinBound returns a lower bound on the smallest eigenvalue of B
// from the Gershgorin circle theorem.
func gershgorinBound(b *matrix.SymMatrix) float64 {
	n := b.N()
	bound := math.Inf(1)
	for i := 0; i < n; i++ {
		radius := zero
		for j := 0; j < n; j++ {
			if j != i {
				radius += math.Abs(b.At(i, j))
			}
		}
		if v := b.At(i, i) - radius; v < bound {
			bound = v
		}
	}
	return bound
}

// smallestEigenvalue computes the smallest eigenvalue of B exactly.
func smallestEigenvalue(b *matrix.SymMatrix) (float64, error) {
	n := b.N()
	sym := mat.NewSymDense(n, nil)
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			sym.SetSym(i, j, b.At(i, j))
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return zero, errors.New("blocksqp: eigendecomposition failed")
	}
	return eig.Values(nil)[0], nil
}

// conditionEstimate computes ‖B‖∞·‖B⁻¹‖∞ through an explicit inverse.
// Expensive, trace diagnostics only.
func conditionEstimate(b *matrix.SymMatrix) (float64, error) {
	n := b.N()
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d.Set(i, j, b.At(i, j))
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(d); err != nil {
		return zero, err
	}
	return mat.Norm(d, math.Inf(1)) * mat.Norm(&inv, math.Inf(1)), nil
}

// checkHessian logs the spectrum of each Hessian block. The Gershgorin
// bound is cheap and checked first, the exact eigenvalue is only computed
// when the bound cannot certify definiteness.
func (s *solver) checkHessian() {
	if !s.log.enable(LogIter) {
		return
	}
	for b, blk := range s.it.Hess {
		if s.log.enable(LogTrace) {
			if cond, err := conditionEstimate(blk); err == nil {
				s.log.log("it %d: block %d condition estimate %.3e",
					s.stats.ItCount, b, cond)
			}
		}
		bound := gershgorinBound(blk)
		if bound > zero {
			continue
		}
		ev, err := smallestEigenvalue(blk)
		if err != nil {
			s.log.log("it %d: block %d spectrum check failed: %v", s.stats.ItCount, b, err)
			continue
		}
		if ev <= zero {
			s.log.log("it %d: block %d indefinite, smallest eigenvalue %.3e",
				s.stats.ItCount, b, ev)
		}
	}
}
