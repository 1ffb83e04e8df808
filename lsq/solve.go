// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import "math"

// Solve minimizes ½𝐱ᵀ𝐁𝐱 + 𝐠ᵀ𝐱 subject to the two-sided constraints
// bl ≤ (𝐱, 𝐀𝐱) ≤ bu, where the first n components of the bound vectors
// box the variables and the remaining m bound the linear rows of 𝐀.
// A row whose bounds coincide is treated as an equality.
//
// 𝐁 is supplied through its 𝐋𝐃𝐋ᵀ factors in l, packed as in LDLFactor,
// so the problem reduces to the least-squares form
// 𝚖𝚒𝚗‖𝐃¹ᐟ²𝐋ᵀ𝐱 + 𝐃⁻¹ᐟ²𝐋⁻¹𝐠‖₂ and is solved by LSEI. Bounds of
// magnitude inf or larger are treated as absent.
//
// a is the m×n constraint matrix in column-major order with leading
// dimension lda. On success x holds the minimizer, lam the n+m
// multipliers in bound-vector layout with the sign convention
// 𝐁𝐱 + 𝐠 - 𝐀ᵀ𝛌ᶜ - 𝛌ᵇ = 0, and the returned value is the objective at
// the minimizer.
func Solve(n, m int, l, grad, a []float64, lda int, bl, bu []float64, x, lam []float64, maxIter int, inf float64) (float64, Status) {
	if n < 1 || m < 0 || lda < max(m, 1) ||
		len(l) < n*(n+1)/2 || len(grad) < n || len(a) < lda*n ||
		len(bl) < n+m || len(bu) < n+m || len(x) < n || len(lam) < n+m {
		return math.NaN(), BadInput
	}

	// Recover 𝐄 = 𝐃¹ᐟ²𝐋ᵀ and 𝐟 = -𝐃⁻¹ᐟ²𝐋⁻¹𝐠 from the packed factors.
	// Column j of 𝐋 becomes row j of 𝐄; the forward substitution for
	// 𝐋⁻¹𝐠 runs alongside because 𝐄ᵢⱼ = 𝐃¹ᐟ²ᵢᵢ𝐋ⱼᵢ.
	e := make([]float64, n*n)
	f := make([]float64, n)
	i2, i3, i4 := 0, 0, 0
	for j := 0; j < n; j++ {
		rem := n - j
		if l[i2] <= zero {
			return math.NaN(), NotPosDef
		}
		diag := math.Sqrt(l[i2])
		dzero(e[i3 : i3+rem])
		dcopy(rem, l[i2:], 1, e[i3:], n)
		dscal(rem, diag, e[i3:], n)
		e[i3] = diag
		f[j] = (grad[j] - ddot(j, e[i4:], 1, f, 1)) / diag
		i2 += rem
		i3 += n + 1
		i4 += n
	}
	dscal(n, -one, f, 1)
	fnorm2 := ddot(n, f, 1, f, 1)

	// Split the constraint rows into equalities and one-sided
	// inequalities, then append the finite variable bounds. Each
	// inequality row remembers its slot in the bound-vector layout and
	// its sign so the multipliers can be scattered back afterwards.
	type ineqRow struct {
		idx  int     // slot in the bound-vector layout
		sign float64 // +1 for a lower bound, -1 for an upper bound
	}
	var eqIdx []int
	var rows []ineqRow
	for i := 0; i < m; i++ {
		dl, du := bl[n+i], bu[n+i]
		if du-dl <= eps*(one+math.Abs(dl)) {
			eqIdx = append(eqIdx, i)
			continue
		}
		if dl > -inf {
			rows = append(rows, ineqRow{n + i, one})
		}
		if du < inf {
			rows = append(rows, ineqRow{n + i, -one})
		}
	}
	for i := 0; i < n; i++ {
		if bl[i] > -inf {
			rows = append(rows, ineqRow{i, one})
		}
		if bu[i] < inf {
			rows = append(rows, ineqRow{i, -one})
		}
	}

	mc, mg := len(eqIdx), len(rows)
	if mc > n {
		return math.NaN(), Incompatible
	}
	lc, lg := max(1, mc), max(1, mg)

	c := make([]float64, lc*n)
	d := make([]float64, lc)
	g := make([]float64, lg*n)
	h := make([]float64, lg)
	for r, i := range eqIdx {
		dcopy(n, a[i:], lda, c[r:], lc)
		d[r] = bl[n+i]
	}
	for r, row := range rows {
		if row.idx >= n {
			i := row.idx - n
			for j := 0; j < n; j++ {
				g[r+lg*j] = row.sign * a[i+lda*j]
			}
		} else {
			g[r+lg*row.idx] = row.sign
		}
		if row.sign > 0 {
			h[r] = bl[row.idx]
		} else {
			h[r] = -bu[row.idx]
		}
	}

	lfree := n - mc
	w := make([]float64, 2*mc+n+(n+mg)*lfree+(lfree+1)*(mg+2)+2*mg+1)
	jw := make([]int, max(mg, min(n, lfree))+1)

	_, status := LSEI(c, d, e, f, g, h, lc, mc, n, n, lg, mg, n, x, w, jw, maxIter)
	if status != Solved {
		return math.NaN(), status
	}

	// Scatter multipliers back: equalities first, then each one-sided
	// row signed into its slot.
	dzero(lam[:n+m])
	for r, i := range eqIdx {
		lam[n+i] = w[r]
	}
	mult := w[mc:]
	for r, row := range rows {
		lam[row.idx] += row.sign * mult[r]
	}

	// Clip round-off excursions beyond the box.
	for i := 0; i < n; i++ {
		if bl[i] > -inf && x[i] < bl[i] {
			x[i] = bl[i]
		}
		if bu[i] < inf && x[i] > bu[i] {
			x[i] = bu[i]
		}
	}

	// Objective from the residual of the least-squares form,
	// ‖𝐄𝐱 - 𝐟‖₂² = 𝐱ᵀ𝐁𝐱 + 2𝐠ᵀ𝐱 + ‖𝐟‖₂². LSEI's norm is not usable
	// here, it folds in the equality components of the transformed
	// solution.
	r2 := zero
	for i := 0; i < n; i++ {
		ri := ddot(n-i, e[i+i*n:], n, x[i:], 1) - f[i]
		r2 += ri * ri
	}
	return (r2 - fnorm2) / two, Solved
}
