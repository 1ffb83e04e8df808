// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"math"

	"github.com/blockopt/blocksqp/matrix"
)

// calcInitialHessian sets every block to a scaled identity and clears the
// curvature bookkeeping.
func (s *solver) calcInitialHessian() {
	for b := 0; b < s.it.nBlocks; b++ {
		s.resetHessian(b)
	}
}

func (s *solver) resetHessian(b int) {
	it := s.it
	it.Hess[b].SetIdentity(s.opts.IniHessDiag)
	it.deltaNorm[b] = one
	it.deltaGamma[b] = zero
	it.deltaNormOld[b] = one
	it.deltaGammaOld[b] = zero
	it.noUpdateCounter[b] = -1
}

// sizeInitialHessian scales block b before its first update.
// option selects between Shanno-Phua, Oren-Luenberger and their
// geometric mean.
func (s *solver) sizeInitialHessian(gamma, delta []float64, b, option int) {
	myEps := 1.0e3 * s.opts.Eps
	deltaGamma := matrix.Dot(delta, gamma)
	scale := zero

	switch option {
	case ScaleSP:
		scale = matrix.Dot(gamma, gamma) / math.Max(deltaGamma, myEps)
	case ScaleOL:
		scale = deltaGamma / math.Max(matrix.Dot(delta, delta), myEps)
		scale = math.Min(scale, one)
	case ScaleGeoMean:
		s1 := matrix.Dot(gamma, gamma) / math.Max(deltaGamma, myEps)
		s2 := deltaGamma / math.Max(matrix.Dot(delta, delta), myEps)
		if s1 > zero && s2 > zero {
			scale = math.Sqrt(s1 * s2)
		}
	default:
		return
	}

	if scale <= zero {
		return
	}
	scale = math.Max(scale, myEps)
	s.it.Hess[b].SetIdentity(scale * s.opts.IniHessDiag)
	s.stats.itSizingFactor += scale
	s.stats.itSizedBlocks++
}

// sizeHessianCOL applies centered Oren-Luenberger sizing to block b.
// The factor blends the curvature ratio of the previous pair with that of
// the current one, weighted by the step length.
func (s *solver) sizeHessianCOL(delta []float64, b int) {
	it, o := s.it, s.opts
	myEps := 1.0e3 * o.Eps

	theta := one
	if it.noUpdateCounter[b] != -1 {
		theta = math.Min(o.ColTau1, o.ColTau2*it.deltaNorm[b])
	}
	deltaBdelta := it.Hess[b].Quad(delta)
	den := (one-theta)*it.deltaNormOld[b] + theta*deltaBdelta
	num := (one-theta)*it.deltaGammaOld[b] + theta*it.deltaGamma[b]
	if den < myEps {
		return
	}
	scale := num / den
	if scale <= zero {
		return
	}
	scale = math.Min(math.Max(o.ColEps, scale), one)
	it.Hess[b].Scale(scale)
	s.stats.itSizingFactor += scale
	s.stats.itSizedBlocks++
}

// calcBFGS applies a damped BFGS update to block b. Powell damping bends
// γ toward Bδ when the curvature condition degrades, so the update keeps
// the block positive definite.
func (s *solver) calcBFGS(gamma, delta []float64, b int) {
	it, o := s.it, s.opts
	dim := len(delta)
	B := it.Hess[b]

	Bdelta := make([]float64, dim)
	B.MulVec(delta, Bdelta)
	h1 := matrix.Dot(delta, Bdelta)
	h2 := matrix.Dot(delta, gamma)

	g := gamma
	if o.HessDamp && h2 < o.HessDampFac*h1 && h1 > h2 {
		thetaPowell := (one - o.HessDampFac) * h1 / (h1 - h2)
		g = make([]float64, dim)
		for i := range g {
			g[i] = thetaPowell*gamma[i] + (one-thetaPowell)*Bdelta[i]
		}
		h2 = o.HessDampFac * h1
		s.stats.HessDamped++
	}

	myEps := 1.0e2 * o.Eps
	if h1 < myEps || h2 < myEps {
		s.skipUpdate(b)
		return
	}

	for j := 0; j < dim; j++ {
		for i := j; i < dim; i++ {
			B.Set(i, j, B.At(i, j)-Bdelta[i]*Bdelta[j]/h1+g[i]*g[j]/h2)
		}
	}
	it.noUpdateCounter[b] = 0
}

// calcSR1 applies a symmetric rank one update to block b. The update is
// skipped when the denominator is small relative to the pair, the usual
// stability safeguard.
func (s *solver) calcSR1(gamma, delta []float64, b int) {
	it := s.it
	dim := len(delta)
	B := it.Hess[b]

	h := make([]float64, dim) // γ - Bδ
	B.MulVec(delta, h)
	for i := range h {
		h[i] = gamma[i] - h[i]
	}
	deltaH := matrix.Dot(delta, h)

	const r = 1.0e-8
	if math.Abs(deltaH) <= r*matrix.L2Norm(delta)*matrix.L2Norm(h) {
		s.stats.RejectedSR1++
		s.skipUpdate(b)
		return
	}

	for j := 0; j < dim; j++ {
		for i := j; i < dim; i++ {
			B.Set(i, j, B.At(i, j)+h[i]*h[j]/deltaH)
		}
	}
	it.noUpdateCounter[b] = 0
}

func (s *solver) skipUpdate(b int) {
	it := s.it
	if it.noUpdateCounter[b] < 0 {
		it.noUpdateCounter[b] = 0
	}
	it.noUpdateCounter[b]++
	s.stats.HessSkipped++
	if it.noUpdateCounter[b] > s.opts.MaxConsecSkippedUpdates {
		s.resetHessian(b)
	}
}

// updatePairProducts refreshes the per block curvature products for the
// pair (delta, gamma) of block b.
func (it *Iterate) updatePairProducts(gamma, delta []float64, b int) {
	it.deltaNormOld[b] = it.deltaNorm[b]
	it.deltaGammaOld[b] = it.deltaGamma[b]
	it.deltaNorm[b] = matrix.Dot(delta, delta)
	it.deltaGamma[b] = matrix.Dot(delta, gamma)
}

// updateBlocks returns how many leading blocks receive quasi-Newton
// updates. With an exact Hessian for the last block that block is left to
// the problem.
func (s *solver) updateBlocks() int {
	n := s.it.nBlocks
	if s.opts.WhichSecondDerv == 1 && n > 1 {
		n--
	}
	return n
}

// calcHessianUpdate applies one quasi-Newton update per block using the
// most recent pair.
func (s *solver) calcHessianUpdate(updateType, scaling int) {
	it := s.it
	for b := 0; b < s.updateBlocks(); b++ {
		lo, hi := it.blockIdx[b], it.blockIdx[b+1]
		delta := it.DeltaXi[lo:hi]
		gamma := it.Gamma[lo:hi]
		it.updatePairProducts(gamma, delta, b)

		if it.noUpdateCounter[b] == -1 && scaling > ScaleNone && scaling < ScaleCOL {
			s.sizeInitialHessian(gamma, delta, b, scaling)
		} else if scaling == ScaleCOL {
			s.sizeHessianCOL(delta, b)
		}

		switch updateType {
		case HessSR1:
			s.calcSR1(gamma, delta, b)
		case HessBFGS:
			s.calcBFGS(gamma, delta, b)
		}
	}
}

// calcHessianUpdateLimitedMemory rebuilds every block from a sized
// identity by replaying the stored pairs, oldest first.
func (s *solver) calcHessianUpdateLimitedMemory(updateType, scaling int) {
	it := s.it
	m := it.deltaMat.N()
	stored := s.stats.ItCount
	if stored > m {
		stored = m
	}
	posOldest := ((s.stats.ItCount-stored)%m + m) % m

	for b := 0; b < s.updateBlocks(); b++ {
		s.resetHessian(b)
		for k := 0; k < stored; k++ {
			pos := (posOldest + k) % m
			delta, gamma := it.pair(pos, b)
			it.updatePairProducts(gamma, delta, b)

			if k == 0 {
				if scaling > ScaleNone && scaling < ScaleCOL {
					s.sizeInitialHessian(gamma, delta, b, scaling)
				} else if scaling == ScaleCOL {
					s.sizeHessianCOL(delta, b)
				}
			}

			switch updateType {
			case HessSR1:
				s.calcSR1(gamma, delta, b)
			case HessBFGS:
				s.calcBFGS(gamma, delta, b)
			}
		}
	}
}

// updateHessians revises the primary approximation and, when present, the
// positive definite companion used as QP fallback.
func (s *solver) updateHessians() {
	it, o := s.it, s.opts
	s.stats.itSizingFactor = zero
	s.stats.itSizedBlocks = 0

	it.Hess = it.hess1
	if o.HessLimMem {
		s.calcHessianUpdateLimitedMemory(o.HessUpdate, o.HessScaling)
		if it.hess2 != nil {
			it.Hess = it.hess2
			s.calcHessianUpdateLimitedMemory(o.FallbackUpdate, o.FallbackScaling)
		}
	} else {
		s.calcHessianUpdate(o.HessUpdate, o.HessScaling)
	}
	it.Hess = it.hess1

	if s.stats.itSizedBlocks > 0 {
		s.stats.AverageSizingFactor = s.stats.itSizingFactor / float64(s.stats.itSizedBlocks)
	}
}
