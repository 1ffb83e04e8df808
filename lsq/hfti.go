// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import "math"

// HFTI solves the possibly rank-deficient least-squares problem
// 𝐀𝐗 ≅ 𝐁 by Householder forward triangulation with column
// interchanges. The pseudo-rank k is the number of diagonal elements
// of the triangularized matrix exceeding tau in magnitude; the minimum
// length solution is computed on the leading k columns.
//
// a holds the m×n matrix with leading dimension mda and is overwritten
// with the factorization. b holds the m×nb right sides with leading
// dimension mdb and is overwritten with the n×nb solution. rnorm
// receives the residual norm per right side. h, g, and ip are
// workspaces of length n, min(m,n), and min(m,n). Returns the
// pseudo-rank.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems'
// Prentice Hall, 1974 (revised 1995 edition), algorithm 14.9.
func HFTI(a []float64, mda, m, n int, b []float64, mdb, nb int, tau float64, rnorm, h, g []float64, ip []int) int {
	const factor = 0.001

	diag := min(m, n)
	if diag <= 0 {
		return 0
	}
	if n > len(h) || diag > len(g) || diag > len(ip) {
		panic("bound check error")
	}

	hmax := zero
	for j := 0; j < diag; j++ {
		// Track squared column lengths of rows j..m-1 and pick the
		// pivot column, recomputing when cancellation degrades them.
		lmax := j
		if j > 0 {
			v := math.NaN()
			for l := j; l < n; l++ {
				t := a[(j-1)+mda*l]
				if h[l] -= t * t; !(h[l] <= v) {
					lmax, v = l, h[l]
				}
			}
		}
		if j == 0 || factor*h[lmax] < hmax*eps {
			v := math.NaN()
			for l := j; l < n; l++ {
				sm := zero
				for _, t := range a[j+mda*l : m+mda*l] {
					sm += t * t
				}
				if h[l] = sm; !(h[l] <= v) {
					lmax, v = l, h[l]
				}
			}
			hmax = h[lmax]
		}

		ip[j] = lmax
		if lmax != j {
			c1, c2 := a[mda*j:mda*j+m], a[mda*lmax:mda*lmax+m]
			for i := 0; i < m; i++ {
				c1[i], c2[i] = c2[i], c1[i]
			}
			h[lmax] = h[j]
		}

		// j-th Householder transformation, applied to 𝐀 and 𝐁.
		i := min(j+1, n-1)
		h[j] = h1(j, j+1, m, a[mda*j:], 1)
		h2(j, j+1, m, a[mda*j:], 1, h[j], a[mda*i:], 1, mda, n-j-1)
		h2(j, j+1, m, a[mda*j:], 1, h[j], b, 1, mdb, nb)
	}

	// Pseudo-rank from the diagonal magnitudes.
	k := diag
	for j := 0; j < diag; j++ {
		if math.Abs(a[j+mda*j]) <= tau {
			k = j
			break
		}
	}

	// Residual norms from the trailing right-side components.
	for jb := 0; jb < nb; jb++ {
		sm := zero
		for i := k; i < m; i++ {
			t := b[mdb*jb+i]
			sm += t * t
		}
		rnorm[jb] = math.Sqrt(sm)
	}

	if k == 0 {
		for jb := 0; jb < nb; jb++ {
			dzero(b[mdb*jb : mdb*jb+n])
		}
		return 0
	}

	// For pseudo-rank below n, reduce the leading k rows to lower
	// trapezoidal form with row-wise Householder transformations.
	if k < n {
		for i := k - 1; i >= 0; i-- {
			g[i] = h1(i, k, n, a[i:], mda)
			h2(i, k, n, a[i:], mda, g[i], a, mda, 1, i)
		}
	}

	for jb := 0; jb < nb; jb++ {
		cb := b[mdb*jb:]

		// Back-substitute the k×k triangular system.
		for i := k - 1; i >= 0; i-- {
			sm := zero
			for j := i + 1; j < k; j++ {
				sm += a[i+mda*j] * cb[j]
			}
			cb[i] = (cb[i] - sm) / a[i+mda*i]
		}

		if k < n {
			dzero(cb[k:n])
			for i := 0; i < k; i++ {
				h2(i, k, n, a[i:], mda, g[i], cb, 1, mdb, 1)
			}
		}

		// Undo the column interchanges.
		for j := diag - 1; j >= 0; j-- {
			if l := ip[j]; l != j {
				cb[l], cb[j] = cb[j], cb[l]
			}
		}
	}
	return k
}
