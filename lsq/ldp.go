// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import "math"

// LDP solves the least-distance problem 𝚖𝚒𝚗‖𝐱‖₂ subject to 𝐆𝐱 ≥ 𝐡
// by the NNLS reduction of Lawson and Hanson: the dual NNLS problem
// uses the (n+1)×m matrix [𝐆:𝐡]ᵀ and right side (0,···,0,1)ᵀ, and the
// primal solution is recovered as 𝐱 = 𝐆ᵀ𝐮/(1 - 𝐡ᵀ𝐮) from the dual
// optimum 𝐮. A zero NNLS residual signals incompatible constraints.
//
// g holds the m×n constraint matrix with leading dimension mdg and is
// not modified. On success the Lagrange multipliers 𝐮/(1-𝐡ᵀ𝐮) are
// stored in w[:m]. The workspace w requires (n+1)(m+2)+2m elements and
// jw requires m.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems'
// Prentice Hall, 1974 (revised 1995 edition), algorithm 23.27.
func LDP(m, n int, g []float64, mdg int, h, x, w []float64, jw []int, maxIter int) (xnorm float64, status Status) {
	if n <= 0 {
		return math.NaN(), BadInput
	}
	if m <= 0 {
		return 0, Solved
	}
	if m > mdg || mdg*n > len(g) || m > len(h) || n > len(x) || (n+1)*(m+2)+2*m > len(w) || m > len(jw) {
		panic("bound check error")
	}

	// Workspace layout: the (n+1)×m dual matrix, the (n+1)-vectors b
	// and z, then the m-vectors u and w.
	iw := 0
	a := w[iw : iw+m*(n+1)]
	iw += len(a)
	b := w[iw : iw+(n+1)]
	iw += len(b)
	z := w[iw : iw+(n+1)]
	iw += len(z)
	u := w[iw : iw+m]
	iw += len(u)
	dv := w[iw : iw+m]

	// Dual matrix [𝐆:𝐡]ᵀ, column j holds constraint row j of 𝐆 with
	// 𝐡ⱼ appended.
	for j := 0; j < m; j++ {
		dcopy(n, g[j:], mdg, a[j*(n+1):], 1)
		a[j*(n+1)+n] = h[j]
	}
	dzero(b[:n])
	b[n] = one

	rnorm, status := NNLS(n+1, m, a, n+1, b, u, dv, z, jw, maxIter)

	var fac float64
	if status == Solved {
		if rnorm <= zero {
			status = Incompatible
		} else {
			fac = one - ddot(m, h, 1, u, 1)
			if math.IsNaN(fac) || fac < eps {
				status = Incompatible
			}
		}
	}
	if status != Solved {
		return math.NaN(), status
	}

	fac = one / fac
	for j := 0; j < n; j++ {
		x[j] = ddot(m, g[mdg*j:], 1, u, 1) * fac
	}
	for j := 0; j < m; j++ {
		w[j] = u[j] * fac
	}
	return dnrm2(n, x, 1), Solved
}
