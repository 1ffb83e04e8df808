// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

// filterPair is one (constraint violation, objective) entry of the filter.
type filterPair struct {
	theta, obj float64
}

// Filter is the (θ,f) acceptance filter of the globalized line search.
// A trial point is acceptable when it improves on every entry in at least
// one of the two measures by the configured margin.
type Filter struct {
	gammaTheta float64
	gammaF     float64
	pairs      []filterPair
}

func newFilter(gammaTheta, gammaF float64) *Filter {
	return &Filter{gammaTheta: gammaTheta, gammaF: gammaF}
}

// Reset clears the filter and installs the upper bound on the constraint
// violation as its only entry.
func (f *Filter) Reset(thetaMax, objLo float64) {
	f.pairs = f.pairs[:0]
	f.pairs = append(f.pairs, filterPair{theta: thetaMax, obj: objLo})
}

// Acceptable reports whether the pair (theta, obj) is not dominated by
// any filter entry.
func (f *Filter) Acceptable(theta, obj float64) bool {
	for _, p := range f.pairs {
		if theta >= (one-f.gammaTheta)*p.theta && obj >= p.obj-f.gammaF*p.theta {
			return false
		}
	}
	return true
}

// Add augments the filter with the margin-shrunk envelope of (theta, obj)
// and drops entries the new pair dominates.
func (f *Filter) Add(theta, obj float64) {
	np := filterPair{
		theta: (one - f.gammaTheta) * theta,
		obj:   obj - f.gammaF*theta,
	}
	keep := f.pairs[:0]
	for _, p := range f.pairs {
		if p.theta < np.theta || p.obj < np.obj {
			keep = append(keep, p)
		}
	}
	f.pairs = append(keep, np)
}

// Size returns the number of filter entries.
func (f *Filter) Size() int { return len(f.pairs) }
