// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import "errors"

// Hessian approximation strategies (Options.HessUpdate, Options.FallbackUpdate).
const (
	HessIdentity = 0 // scaled identity, no quasi-Newton updates
	HessSR1      = 1 // symmetric rank one updates
	HessBFGS     = 2 // damped BFGS updates
)

// Hessian sizing strategies (Options.HessScaling, Options.FallbackScaling).
const (
	ScaleNone    = 0
	ScaleSP      = 1 // Shanno-Phua: γᵀγ/δᵀγ
	ScaleOL      = 2 // Oren-Luenberger: δᵀγ/δᵀδ, capped at one
	ScaleGeoMean = 3 // geometric mean of the two above
	ScaleCOL     = 4 // centered Oren-Luenberger, applied every iteration
)

// Options collects all algorithmic parameters of the SQP method.
// The zero value is not usable, start from DefaultOptions.
type Options struct {
	Eps float64 // values below this threshold are treated as zero
	Inf float64 // values beyond this threshold are treated as infinity

	OptTol      float64 // optimality tolerance on the scaled Lagrangian gradient
	NLInfeasTol float64 // feasibility tolerance on the scaled constraint violation

	// Globalization enables the filter line search. When false every
	// iteration takes the full SQP step.
	Globalization           bool
	SkipFirstGlobalization  bool // take a full first step regardless of the filter
	RestoreFeas             bool // enable the feasibility restoration phase
	MaxLineSearch           int  // maximum number of step length reductions
	MaxConsecReducedSteps   int  // abort after this many consecutive reduced steps
	MaxConsecSkippedUpdates int  // reset a block after this many skipped updates
	MaxSOCIter              int  // maximum number of second order corrections
	MaxRestIter             int  // iteration limit for one restoration phase

	BlockHess       int // 0: single block, 1: blocks as annotated, 2: condense to two blocks
	WhichSecondDerv int // 0: quasi-Newton only, 1: exact Hessian for the last block

	HessUpdate      int     // primary update strategy, one of the Hess constants
	FallbackUpdate  int     // update strategy for the fallback Hessian
	HessScaling     int     // sizing for the primary Hessian
	FallbackScaling int     // sizing for the fallback Hessian
	HessLimMem      bool    // limited memory updates from a history of pairs
	HessMemsize     int     // history length for limited memory updates
	HessDamp        bool    // Powell damping for BFGS updates
	HessDampFac     float64 // damping activates when δᵀγ < HessDampFac·δᵀBδ
	IniHessDiag     float64 // diagonal of the initial Hessian blocks

	// Filter line search parameters, following Wächter and Biegler.
	GammaTheta float64 // filter margin on constraint violation
	GammaF     float64 // filter margin on objective value
	KappaSOC   float64 // required violation decrease between corrections
	KappaF     float64 // required KKT error decrease for the full step fallback
	ThetaMax   float64 // violations beyond this are rejected outright
	ThetaMin   float64 // switching to f-type steps requires violation below this
	Delta      float64 // switching condition scaling
	STheta     float64 // switching condition exponent on the violation
	SF         float64 // switching condition exponent on the model decrease
	Eta        float64 // Armijo slope fraction

	// Centered Oren-Luenberger sizing parameters.
	ColEps  float64 // lower bound on the sizing factor
	ColTau1 float64 // maximum weight of the most recent pair
	ColTau2 float64 // weight growth with the step length

	SparseQP  bool // hand constraint Jacobian and Hessian to the QP in sparse form
	MaxItQP   int  // iteration limit for one QP subproblem
	MaxConvQP int  // QP retries with the fallback Hessian

	DebugLevel int // 0: silent, 1: keep an iteration trace, 2: Hessian spectrum checks
}

// DefaultOptions returns the parameter set the method was tuned with.
func DefaultOptions() *Options {
	return &Options{
		Eps:         1.0e-16,
		Inf:         1.0e20,
		OptTol:      1.0e-6,
		NLInfeasTol: 1.0e-6,

		Globalization:           true,
		SkipFirstGlobalization:  false,
		RestoreFeas:             true,
		MaxLineSearch:           20,
		MaxConsecReducedSteps:   100,
		MaxConsecSkippedUpdates: 100,
		MaxSOCIter:              3,
		MaxRestIter:             100,

		BlockHess:       1,
		WhichSecondDerv: 0,

		HessUpdate:      HessSR1,
		FallbackUpdate:  HessBFGS,
		HessScaling:     ScaleOL,
		FallbackScaling: ScaleCOL,
		HessLimMem:      true,
		HessMemsize:     20,
		HessDamp:        true,
		HessDampFac:     0.2,
		IniHessDiag:     one,

		GammaTheta: 1.0e-5,
		GammaF:     1.0e-5,
		KappaSOC:   0.99,
		KappaF:     0.999,
		ThetaMax:   1.0e7,
		ThetaMin:   1.0e-5,
		Delta:      one,
		STheta:     1.1,
		SF:         2.3,
		Eta:        1.0e-4,

		ColEps:  0.1,
		ColTau1: 0.5,
		ColTau2: 1.0e4,

		SparseQP:  false,
		MaxItQP:   5000,
		MaxConvQP: 1,

		DebugLevel: 0,
	}
}

// consistency validates the option set and reconciles combinations the
// method cannot honor.
func (o *Options) consistency() error {
	switch {
	case o == nil:
		return errors.New("blocksqp: options must not be nil")
	case o.Eps <= zero || o.Inf <= zero:
		return errors.New("blocksqp: eps and inf must be positive")
	case o.OptTol <= zero || o.NLInfeasTol <= zero:
		return errors.New("blocksqp: tolerances must be positive")
	case o.MaxLineSearch < 1 || o.MaxItQP < 1 || o.MaxRestIter < 1:
		return errors.New("blocksqp: iteration limits must be positive")
	case o.HessMemsize < 1:
		return errors.New("blocksqp: hessian memory size must be positive")
	case o.HessUpdate < HessIdentity || o.HessUpdate > HessBFGS:
		return errors.New("blocksqp: unknown hessian update strategy")
	case o.FallbackUpdate < HessIdentity || o.FallbackUpdate > HessBFGS:
		return errors.New("blocksqp: unknown fallback update strategy")
	case o.HessScaling < ScaleNone || o.HessScaling > ScaleCOL:
		return errors.New("blocksqp: unknown hessian sizing strategy")
	case o.FallbackScaling < ScaleNone || o.FallbackScaling > ScaleCOL:
		return errors.New("blocksqp: unknown fallback sizing strategy")
	case o.HessDampFac <= zero || o.HessDampFac >= one:
		return errors.New("blocksqp: damping factor must lie in (0,1)")
	case o.BlockHess < 0 || o.BlockHess > 2:
		return errors.New("blocksqp: unknown block partition strategy")
	case o.WhichSecondDerv < 0 || o.WhichSecondDerv > 1:
		return errors.New("blocksqp: unknown second derivative mode")
	}

	// SR1 matrices may be indefinite, so a positive definite companion
	// Hessian must be available for the QP. Maintaining it is only
	// affordable with limited memory updates.
	if o.HessUpdate == HessSR1 {
		o.HessLimMem = true
		if o.MaxConvQP < 1 {
			o.MaxConvQP = 1
		}
		if o.FallbackUpdate == HessSR1 {
			o.FallbackUpdate = HessBFGS
		}
	}
	return nil
}
