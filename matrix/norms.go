// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package matrix

import "math"

// L1Norm returns Σ|vᵢ|.
func L1Norm(v []float64) float64 {
	norm := 0.0
	for _, x := range v {
		norm += math.Abs(x)
	}
	return norm
}

// L2Norm returns √(Σvᵢ²).
func L2Norm(v []float64) float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	return math.Sqrt(norm)
}

// LInfNorm returns max|vᵢ|.
func LInfNorm(v []float64) float64 {
	norm := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > norm {
			norm = a
		}
	}
	return norm
}

// Dot returns Σaᵢbᵢ.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("bound check error")
	}
	acc := 0.0
	for i, x := range a {
		acc += x * b[i]
	}
	return acc
}

// Constraint violation norms. The bound vectors bl and bu have length
// len(xi)+len(constr): variable bounds first, then constraint bounds.
// A point violates component k by xi(k)-bu(k), bl(k)-xi(k), or the
// analogous constraint residual, whichever is positive.

// LInfConstraintNorm returns the maximum bound or constraint violation.
func LInfConstraintNorm(xi, constr, bl, bu []float64) float64 {
	n := len(xi)
	norm := 0.0
	for i, c := range constr {
		if v := c - bu[n+i]; v > norm {
			norm = v
		}
		if v := bl[n+i] - c; v > norm {
			norm = v
		}
	}
	for i, x := range xi {
		if v := x - bu[i]; v > norm {
			norm = v
		}
		if v := bl[i] - x; v > norm {
			norm = v
		}
	}
	return norm
}

// L1ConstraintNorm returns the total violation, each constraint term
// multiplied by its weight when weights is non-nil. Weights follow the
// bound vector layout, so constraint i uses weights[len(xi)+i].
func L1ConstraintNorm(xi, constr, bl, bu, weights []float64) float64 {
	n := len(xi)
	norm := 0.0
	for i, c := range constr {
		w := 1.0
		if weights != nil {
			w = weights[n+i]
		}
		if v := c - bu[n+i]; v > 0 {
			norm += w * v
		}
		if v := bl[n+i] - c; v > 0 {
			norm += w * v
		}
	}
	for i, x := range xi {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if v := x - bu[i]; v > 0 {
			norm += w * v
		}
		if v := bl[i] - x; v > 0 {
			norm += w * v
		}
	}
	return norm
}

// L2ConstraintNorm returns the root of the summed violations, with the
// constraint terms entering squared and the bound terms linearly.
func L2ConstraintNorm(xi, constr, bl, bu []float64) float64 {
	n := len(xi)
	norm := 0.0
	for i, x := range xi {
		if v := x - bu[i]; v > 0 {
			norm += v
		}
		if v := bl[i] - x; v > 0 {
			norm += v
		}
	}
	for i, c := range constr {
		if v := c - bu[n+i]; v > 0 {
			norm += v * v
		}
		if v := bl[n+i] - c; v > 0 {
			norm += v * v
		}
	}
	return math.Sqrt(norm)
}
