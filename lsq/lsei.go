// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import "math"

var sqrtEps = math.Sqrt(eps)

// LSEI solves 𝚖𝚒𝚗‖𝐄𝐱 - 𝐟‖₂ subject to 𝐂𝐱 = 𝐝 and 𝐆𝐱 ≥ 𝐡.
//
// The mc equality constraints are eliminated first: a Householder
// transformation 𝐊 triangularizes 𝐂 from the right, 𝐲₁ is fixed by the
// triangular system 𝐂߬₁𝐲₁ = 𝐝, and the remaining n-mc variables are
// determined by an LSI problem (or an unconstrained HFTI solve when
// mg = 0) on the transformed 𝐄 and 𝐆. The solution is 𝐱 = 𝐊[𝐲₁ 𝐲₂]ᵀ.
//
// The matrices are column-major: c is (lc,n) with mc live rows, e is
// (le,n) with me live rows, g is (lg,n) with mg live rows. c, d, e, f,
// g, and h are overwritten. On success w[:mc] holds the equality
// multipliers 𝛍 and w[mc:mc+mg] the inequality multipliers 𝛌.
//
// The workspace w requires
// 2mc + me + (me+mg)(n-mc) + (n-mc+1)(mg+2) + 2mg elements and jw
// requires max(mg, min(me, n-mc)).
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems'
// Prentice Hall, 1974 (revised 1995 edition), algorithm 20.24 and
// chapter 23 section 6.
func LSEI(
	c, d []float64,
	e, f []float64,
	g, h []float64,
	lc, mc, le, me, lg, mg, n int,
	x []float64,
	w []float64,
	jw []int,
	maxIter int,
) (norm float64, status Status) {

	if n < 1 || mc > n {
		return math.NaN(), BadInput
	}
	if n > len(x) ||
		mc < 0 || mc > len(c) || mc > len(d) ||
		me < 0 || me > len(e) || me > len(f) ||
		mg < 0 || mg > len(g) || mg > len(h) {
		panic("bound check error")
	}

	l := n - mc
	// Workspace carve-up: mc slots for the equality multipliers, the
	// LSI workspace, mc Householder pivots for 𝐊, then the transformed
	// 𝐄߬₂, right side, and 𝐆߬₂.
	iw := mc
	ws := w[iw : iw+(l+1)*(mg+2)+2*mg]
	iw += len(ws)
	wp := w[iw : iw+mc]
	iw += len(wp)
	we := w[iw : iw+me*l]
	iw += len(we)
	wf := w[iw : iw+me]
	iw += len(wf)
	wg := w[iw : iw+mg*l]

	// Triangularize 𝐂 from the right and carry 𝐊 into 𝐄 and 𝐆.
	for i := 0; i < mc; i++ {
		j := min(i+1, lc-1)
		wp[i] = h1(i, i+1, n, c[i:], lc)
		h2(i, i+1, n, c[i:], lc, wp[i], c[j:], lc, 1, mc-i-1)
		h2(i, i+1, n, c[i:], lc, wp[i], e, le, 1, me)
		h2(i, i+1, n, c[i:], lc, wp[i], g, lg, 1, mg)
	}

	// 𝐲₁ from the triangular system 𝐂߬₁𝐲₁ = 𝐝.
	for i := 0; i < mc; i++ {
		diag := c[i+lc*i]
		if math.Abs(diag) < eps {
			return math.NaN(), SingularEquality
		}
		x[i] = (d[i] - ddot(i, c[i:], lc, x, 1)) / diag
	}

	dzero(ws[:mg])

	if mc < n {
		for i := 0; i < me; i++ {
			wf[i] = f[i] - ddot(mc, e[i:], le, x, 1)
		}
		if l > 0 {
			for i := 0; i < me; i++ {
				dcopy(l, e[i+le*mc:], le, we[i:], me)
			}
			for i := 0; i < mg; i++ {
				dcopy(l, g[i+lg*mc:], lg, wg[i:], mg)
			}
		}

		if mg > 0 {
			for i := 0; i < mg; i++ {
				h[i] -= ddot(mc, g[i:], lg, x, 1)
			}
			norm, status = LSI(we, wf, wg, h, me, me, mg, mg, l, x[mc:n], ws, jw, maxIter)
			if mc == 0 {
				return
			}
			if status != Solved {
				return math.NaN(), status
			}
			t := dnrm2(mc, x, 1)
			norm = math.Sqrt(norm*norm + t*t)
		} else {
			k, t := max(le, n), sqrtEps
			var nrm [1]float64
			rank := HFTI(we, me, me, l, wf, k, 1, t, nrm[:], w, w[l:], jw)
			norm = nrm[0]
			dcopy(l, wf, 1, x[mc:n], 1)
			if rank != l {
				return norm, RankDefect
			}
		}
	}

	// Equality multipliers 𝛍 = (𝐂ᵀ)⁻¹[𝐄ᵀ(𝐄𝐱 - 𝐟) - 𝐆ᵀ𝛌], computed in
	// the transformed basis before mapping x back through 𝐊.
	for i := 0; i < me; i++ {
		f[i] = ddot(n, e[i:], le, x, 1) - f[i]
	}
	for i := 0; i < mc; i++ {
		d[i] = ddot(me, e[i*le:], 1, f, 1) -
			ddot(mg, g[i*lg:], 1, ws[:mg], 1)
	}
	for i := mc - 1; i >= 0; i-- {
		h2(i, i+1, n, c[i:], lc, wp[i], x, 1, 1, 1)
	}
	for i := mc - 1; i >= 0; i-- {
		j := min(i+1, lc-1)
		w[i] = (d[i] - ddot(mc-i-1, c[j+lc*i:], 1, w[j:], 1)) / c[i+lc*i]
	}
	return norm, Solved
}

// LSI solves 𝚖𝚒𝚗‖𝐄𝐱 - 𝐟‖₂ subject to 𝐆𝐱 ≥ 𝐡 for full-column-rank 𝐄
// by QR-factorizing 𝐄 and reducing to the least-distance problem
// 𝚖𝚒𝚗‖𝐳‖₂ subject to 𝐆𝐑⁻¹𝐳 ≥ 𝐡 - 𝐆𝐑⁻¹𝐟߫₁.
//
// e, f, g, and h are overwritten. On success the inequality
// multipliers are in w[:mg]. The workspace w requires
// (n+1)(mg+2)+2mg elements and jw requires mg.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems'
// Prentice Hall, 1974 (revised 1995 edition), chapter 23 section 5.
func LSI(
	e, f []float64,
	g, h []float64,
	le, me, lg, mg, n int,
	x []float64,
	w []float64,
	jw []int,
	maxIter int) (xnorm float64, status Status) {

	if n < 1 {
		return 0, BadInput
	}

	// QR-factor 𝐄 and apply 𝐐 to 𝐟.
	for i := 0; i < n; i++ {
		j := min(i+1, n-1)
		t := h1(i, i+1, me, e[i*le:], 1)
		h2(i, i+1, me, e[i*le:], 1, t, e[j*le:], 1, le, n-i-1)
		h2(i, i+1, me, e[i*le:], 1, t, f, 1, 1, 1)
	}

	// Transform 𝐆 and 𝐡 into the least-distance form.
	for i := 0; i < mg; i++ {
		for j := 0; j < n; j++ {
			diag := e[j+le*j]
			if math.Abs(diag) < eps || math.IsNaN(diag) {
				return math.NaN(), SingularObjective
			}
			g[i+lg*j] = (g[i+lg*j] - ddot(j, g[i:], lg, e[j*le:], 1)) / diag
		}
		h[i] -= ddot(n, g[i:], lg, f, 1)
	}

	if xnorm, status = LDP(mg, n, g, lg, h, x, w, jw, maxIter); status == Solved {
		// 𝐱 = 𝐑⁻¹(𝐳 + 𝐟߫₁), residual norm (‖𝐳‖₂² + ‖𝐟߫₂‖₂²)¹ᐟ².
		daxpy(n, one, f, 1, x, 1)
		for i := n - 1; i >= 0; i-- {
			j := min(i+1, n-1)
			x[i] = (x[i] - ddot(n-i-1, e[i+le*j:], le, x[j:], 1)) / e[i+le*i]
		}
		j := min(n, me-1)
		t := dnrm2(me-n, f[j:], 1)
		xnorm = math.Sqrt(xnorm*xnorm + t*t)
	}
	return xnorm, status
}
