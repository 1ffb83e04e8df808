// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import "math"

// h1 constructs a Householder transformation that zeroes the elements
// of the m-vector v indexed from l through m-1, pivoting on element p
// (0 ≤ p < l). On return v holds the transformed vector with the pivot
// replaced by -σ‖v‖, and the pivot component uₚ of the reflector is
// returned separately. ive is the storage increment of v.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems'
// Prentice Hall, 1974 (revised 1995 edition), chapter 10.
func h1(p, l, m int, v []float64, ive int) (up float64) {
	if p < 0 || p >= l || l >= m {
		return
	}
	cl := math.Abs(v[p*ive])
	for j := l; j < m; j++ {
		cl = math.Max(math.Abs(v[j*ive]), cl)
	}
	if cl <= zero {
		return
	}
	// Accumulate the squared norm with the entries normalized by the
	// largest magnitude to avoid overflow.
	inv := one / cl
	sm := v[p*ive] * inv * (v[p*ive] * inv)
	for j := l; j < m; j++ {
		sm += v[j*ive] * inv * (v[j*ive] * inv)
	}
	s := cl * math.Sqrt(sm)
	if v[p*ive] > zero {
		s = -s
	}
	up = v[p*ive] - s
	v[p*ive] = s
	return
}

// h2 applies the Householder transformation built by h1 to ncv vectors
// stored in c: ice is the increment between elements of a vector and
// icv the increment between vectors. u and up define the reflector.
func h2(p, l, m int, u []float64, iue int, up float64, c []float64, ice, icv, ncv int) {
	if p < 0 || p >= l || l >= m || ncv <= 0 {
		return
	}
	b := up * u[p*iue]
	if b >= zero {
		return
	}
	b = one / b
	i2 := ice * p
	incr := ice * (l - p)
	for j := 0; j < ncv; j++ {
		i3 := i2 + incr
		i4 := i3
		sm := c[i2] * up
		for i := l; i < m; i++ {
			sm += c[i3] * u[i*iue]
			i3 += ice
		}
		if sm != zero {
			sm *= b
			c[i2] += sm * up
			for i := l; i < m; i++ {
				c[i4] += sm * u[i*iue]
				i4 += ice
			}
		}
		i2 += icv
	}
}

// g1 computes a 2×2 Givens rotation [c s; -s c] mapping (a,b) to (r,0).
func g1(a, b float64) (c, s, sig float64) {
	if xa, xb := math.Abs(a), math.Abs(b); xa > xb {
		xr := b / a
		yr := math.Sqrt(1 + xr*xr)
		c = math.Copysign(1/yr, a)
		s = c * xr
		sig = xa * yr
	} else if xb > 0 {
		xr := a / b
		yr := math.Sqrt(1 + xr*xr)
		s = math.Copysign(1/yr, b)
		c = s * xr
		sig = xb * yr
	} else {
		s = 1
	}
	return
}

// g2 applies the Givens rotation computed by g1 to the pair (x,y).
func g2(c, s, x, y float64) (xr, yr float64) {
	return c*x + s*y, -s*x + c*y
}
