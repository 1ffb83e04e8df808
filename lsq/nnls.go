// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import "math"

// NNLS solves the non-negative least-squares problem 𝚖𝚒𝚗‖𝐀𝐱 - 𝐛‖₂
// subject to 𝐱 ≥ 0 with the Lawson-Hanson active-set method.
//
// The indices are partitioned into a zero set ℤ (variables held at
// zero) and a passive set ℙ (variables free to be positive). Each outer
// pass selects the most negative gradient component from ℤ, moves it
// to ℙ, and solves the unconstrained subproblem on ℙ by incremental QR
// factorization. Variables whose subproblem value turns negative are
// interpolated back to zero and returned to ℤ.
//
// a initially holds the m×n matrix 𝐀 in column-major order with
// leading dimension mda; on return it holds the triangularized 𝐐𝐀.
// b initially holds 𝐛 and is overwritten with 𝐐𝐛. The solution is
// written to x and the dual vector 𝐰 = 𝐀ᵀ(𝐛-𝐀𝐱) to w. z and index
// are workspaces of length m and n.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems'
// Prentice Hall, 1974 (revised 1995 edition), algorithm 23.10.
func NNLS(m, n int, a []float64, mda int, b, x, w, z []float64, index []int, maxIter int) (float64, Status) {
	const factor = 0.01

	if m <= 0 || n <= 0 || mda < m ||
		len(a) < mda*n || len(b) < m || len(x) < n || len(w) < n || len(z) < m || len(index) < n {
		return math.NaN(), BadInput
	}
	if maxIter <= 0 {
		maxIter = 3 * n
	}

	np := 0 // number of elements in ℙ
	z1 := 0 // start of ℤ within index

	// index[:np] lists ℙ, index[z1:] lists ℤ.
	index = index[:n]
	for i := range index {
		index[i] = i
	}
	dzero(x[:n])

	iter := 0
	term := func() (float64, Status) {
		var rnorm float64
		if np < m {
			rnorm = dnrm2(m-np, b[np:], 1)
		} else {
			dzero(w[:n])
		}
		if iter > maxIter {
			return rnorm, MaxIterNNLS
		}
		return rnorm, Solved
	}

	for {
		// Quit when ℤ is empty or m columns have been triangularized.
		if z1 >= n || np >= m {
			return term()
		}

		// Dual vector on ℤ: 𝐰ⱼ = 𝐀ᵀⱼ(𝐛 - 𝐀𝐱) reduces to 𝐀ᵀⱼ𝐛 in the
		// transformed system because 𝐱ⱼ = 0 for j ∈ ℤ.
		for _, j := range index[z1:] {
			w[j] = ddot(m-np, a[np+mda*j:], 1, b[np:], 1)
		}

		for {
			// Pick the index in ℤ with the largest dual component.
			wmax, izmax := zero, -1
			for i, j := range index[z1:] {
				if w[j] > wmax {
					wmax, izmax = w[j], z1+i
				}
			}
			// All duals non-positive: the KKT conditions hold.
			if wmax <= zero {
				return term()
			}

			j := index[izmax]
			aj := a[mda*j : mda*j+m]

			// Build the Householder reflector for column j and test
			// the new diagonal against near linear dependence.
			asave := aj[np]
			up := h1(np, np+1, m, aj, 1)
			accept := false
			if unorm := dnrm2(np, aj, 1); math.Abs(aj[np])*factor >= unorm*eps {
				copy(z[:m], b[:m])
				h2(np, np+1, m, aj, 1, up, z, 1, 1, 1)
				accept = z[np]/aj[np] > zero
			}
			if !accept {
				aj[np] = asave
				w[j] = zero
				continue
			}

			// Accept j: update b, move j from ℤ to ℙ, and apply the
			// reflector to the remaining columns of ℤ.
			copy(b[:m], z[:m])
			index[izmax] = index[z1]
			index[z1] = j
			z1++
			np++
			for _, jj := range index[z1:] {
				h2(np-1, np, m, aj, 1, up, a[jj*mda:], 1, mda, 1)
			}
			if np < m {
				dzero(aj[np:m])
			}
			w[j] = zero
			break
		}

		// Inner loop: solve the triangular system on ℙ and move any
		// variables that turned non-positive back to ℤ.
		for {
			for ip, jj := np-1, -1; ip >= 0; ip-- {
				if jj >= 0 {
					daxpy(ip+1, -z[ip+1], a[jj*mda:], 1, z, 1)
				}
				jj = index[ip]
				z[ip] /= a[ip+jj*mda]
			}

			if iter++; iter > maxIter {
				return term()
			}

			// Largest feasible interpolation step toward z.
			alpha, jq := two, -1
			for ip, l := range index[:np] {
				if z[ip] <= zero {
					if t := -x[l] / (z[ip] - x[l]); alpha > t {
						alpha, jq = t, ip
					}
				}
			}

			// All subproblem coefficients feasible: adopt z and return
			// to the outer loop.
			if jq < 0 {
				for ip, idx := range index[:np] {
					x[idx] = z[ip]
				}
				break
			}

			// 𝐱 = 𝐱 + α(𝐳 - 𝐱)
			for ip, l := range index[:np] {
				x[l] += alpha * (z[ip] - x[l])
			}

			// Move the blocking variable from ℙ to ℤ, restoring the
			// triangular structure with Givens rotations.
			i := index[jq]
			x[i] = zero
			for jj := jq + 1; jj < np; jj++ {
				ii := index[jj]
				ci := a[ii*mda:]
				index[jj-1] = ii
				var cc, ss float64
				cc, ss, ci[jj-1] = g1(ci[jj-1], ci[jj])
				ci[jj] = zero
				for l := 0; l < n; l++ {
					if l != ii {
						cl := a[l*mda : l*mda+jj+1 : l*mda+jj+1]
						cl[jj-1], cl[jj] = g2(cc, ss, cl[jj-1], cl[jj])
					}
				}
				b[jj-1], b[jj] = g2(cc, ss, b[jj-1], b[jj])
			}
			np--
			z1--
			index[z1] = i

			copy(z[:m], b[:m])
		}
	}
}
