// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"math"

	"github.com/blockopt/blocksqp/matrix"
)

// evalTrial evaluates objective and constraints at a trial point, storing
// the constraint values in the trial scratch buffer.
func (s *solver) evalTrial(xi []float64) (obj, cNorm float64, ok bool) {
	ev := Evaluation{Constr: s.it.trialConstr}
	err := s.evaluate(xi, s.it.Lambda, EvalFuncs, &ev)
	if err != nil {
		return zero, zero, false
	}
	cNorm = matrix.LInfConstraintNorm(xi, s.it.trialConstr, s.it.bl, s.it.bu)
	if math.IsNaN(ev.Obj) || math.IsNaN(cNorm) ||
		ev.Obj <= s.objLo || ev.Obj >= s.objUp {
		return zero, zero, false
	}
	return ev.Obj, cNorm, true
}

// acceptStep commits the step alpha·dir: the primal point and the ring
// buffer column advance, the multipliers move toward the QP multipliers.
// dir may alias the ring buffer column.
func (s *solver) acceptStep(dir, lamQP []float64, alpha float64, nSOCS int) {
	it := s.it
	it.Alpha = alpha
	it.NSOCS = nSOCS

	for i := 0; i < it.nVar; i++ {
		d := alpha * dir[i]
		it.DeltaXi[i] = d
		it.Xi[i] += d
	}

	norm := zero
	for i := range it.Lambda {
		d := alpha * (lamQP[i] - it.Lambda[i])
		if math.Abs(d) > norm {
			norm = math.Abs(d)
		}
		it.Lambda[i] += d
	}
	it.LambdaStepNorm = norm

	if alpha < one {
		it.reducedStepCount++
	} else {
		it.reducedStepCount = 0
	}
}

// fullstep takes the undamped SQP step, halving only when the evaluation
// fails or leaves the plausible objective range.
func (s *solver) fullstep() bool {
	it := s.it
	alpha := one
	for k := 0; k < ten; k++ {
		for i := 0; i < it.nVar; i++ {
			it.trialXi[i] = it.Xi[i] + alpha*it.DeltaXi[i]
		}
		if _, _, ok := s.evalTrial(it.trialXi); !ok {
			alpha *= 0.5
			continue
		}
		s.acceptStep(it.DeltaXi, it.LambdaQP, alpha, 0)
		it.Steptype = stepLineSearch
		return true
	}
	return false
}

// filterLineSearch backtracks along the QP step until the trial point is
// acceptable to the filter and satisfies the sufficient decrease
// conditions of Wächter and Biegler. Second order corrections are tried
// before the first step length reduction.
func (s *solver) filterLineSearch() bool {
	it, o := s.it, s.opts

	cNorm := matrix.LInfConstraintNorm(it.Xi, it.Constr, it.bl, it.bu)
	dfTdeltaXi := matrix.Dot(it.GradObj, it.DeltaXi)

	alpha := one
	for k := 0; k < o.MaxLineSearch; k++ {
		for i := 0; i < it.nVar; i++ {
			it.trialXi[i] = it.Xi[i] + alpha*it.DeltaXi[i]
		}
		objTrial, cNormTrial, ok := s.evalTrial(it.trialXi)
		if !ok {
			alpha *= 0.5
			continue
		}

		if !it.filter.Acceptable(cNormTrial, objTrial) {
			if s.secondOrderCorrection(cNorm, cNormTrial, dfTdeltaXi, false, k) {
				return true
			}
			alpha *= 0.5
			continue
		}

		if cNorm <= o.ThetaMin && dfTdeltaXi < zero &&
			alpha*math.Pow(-dfTdeltaXi, o.SF) > o.Delta*math.Pow(cNorm, o.STheta) {
			// f-type step: require Armijo decrease, leave the filter as is.
			if objTrial > it.Obj+o.Eta*alpha*dfTdeltaXi {
				if s.secondOrderCorrection(cNorm, cNormTrial, dfTdeltaXi, true, k) {
					return true
				}
				alpha *= 0.5
				continue
			}
			s.acceptStep(it.DeltaXi, it.LambdaQP, alpha, 0)
			it.Steptype = stepLineSearch
			return true
		}

		// θ-type step: sufficient decrease against the current pair, the
		// filter is augmented so the iteration cannot cycle back.
		if cNormTrial >= (one-o.GammaTheta)*cNorm && objTrial >= it.Obj-o.GammaF*cNorm {
			if s.secondOrderCorrection(cNorm, cNormTrial, dfTdeltaXi, false, k) {
				return true
			}
			alpha *= 0.5
			continue
		}
		it.filter.Add(cNormTrial, objTrial)
		s.acceptStep(it.DeltaXi, it.LambdaQP, alpha, 0)
		it.Steptype = stepLineSearch
		return true
	}
	return false
}

// secondOrderCorrection tries to repair a rejected full step by solving
// correction QPs whose constraint bounds are centered on the violation at
// the trial point. Corrections continue while the violation shrinks by at
// least the factor KappaSOC.
func (s *solver) secondOrderCorrection(cNorm, cNormTrial, dfTdeltaXi float64, swCond bool, k int) bool {
	// Corrections only make sense for the undamped step, and only when
	// the full step made the violation worse.
	if k > 0 || cNormTrial < cNorm {
		return false
	}

	it, o := s.it, s.opts
	dirSOC := make([]float64, it.nVar)
	lamSOC := make([]float64, it.nVar+it.nCon)
	copy(lamSOC, it.LambdaQP)

	cNormOld := cNormTrial
	for nSOCS := 1; nSOCS <= o.MaxSOCIter; nSOCS++ {
		s.updateStepBounds(true)
		if s.solveQP(dirSOC, lamSOC) != QPSolved {
			return false
		}

		for i := 0; i < it.nVar; i++ {
			it.trialXi[i] = it.Xi[i] + dirSOC[i]
		}
		objTrial, cNormTrialSOC, ok := s.evalTrial(it.trialXi)
		if !ok {
			return false
		}
		if !it.filter.Acceptable(cNormTrialSOC, objTrial) {
			return false
		}

		if cNorm <= o.ThetaMin && swCond {
			if objTrial <= it.Obj+o.Eta*dfTdeltaXi {
				s.acceptStep(dirSOC, lamSOC, one, nSOCS)
				it.Steptype = stepSOC
				return true
			}
		} else if cNormTrialSOC < (one-o.GammaTheta)*cNorm || objTrial < it.Obj-o.GammaF*cNorm {
			it.filter.Add(cNormTrialSOC, objTrial)
			s.acceptStep(dirSOC, lamSOC, one, nSOCS)
			it.Steptype = stepSOC
			return true
		}

		if cNormTrialSOC > o.KappaSOC*cNormOld {
			return false
		}
		cNormOld = cNormTrialSOC
	}
	return false
}

// kktErrorReduction accepts the full step when it reduces the KKT error
// by the factor KappaF even though the filter rejected it. The Lagrangian
// gradient at the trial point is approximated with the derivatives of the
// current point.
func (s *solver) kktErrorReduction() bool {
	it, o := s.it, s.opts

	for i := 0; i < it.nVar; i++ {
		it.trialXi[i] = it.Xi[i] + it.DeltaXi[i]
	}
	_, cNormTrial, ok := s.evalTrial(it.trialXi)
	if !ok {
		return false
	}

	s.calcLagrangeGradient(it.LambdaQP, it.gradScratch)
	trialTol := matrix.LInfNorm(it.gradScratch) / (one + matrix.LInfNorm(it.LambdaQP))

	if math.Max(cNormTrial, trialTol) >= o.KappaF*math.Max(it.CNorm, it.Tol) {
		return false
	}
	s.acceptStep(it.DeltaXi, it.LambdaQP, one, 0)
	it.Steptype = stepKKTFallback
	return true
}
