// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

// LDLFactor computes the 𝐋𝐃𝐋ᵀ factorization of a symmetric positive
// definite matrix supplied in packed lower-triangular form: element
// (i,j) with i ≥ j lives at i + j·n - j(j+1)/2, the layout used
// throughout this package. On success l holds the strict lower factor
// with the diagonal of 𝐃 in its diagonal slots. Factorization stops
// with NotPosDef when a pivot falls below tol.
//
// b and l may alias.
func LDLFactor(n int, b, l []float64, tol float64) Status {
	if n < 1 || len(b) < n*(n+1)/2 || len(l) < n*(n+1)/2 {
		return BadInput
	}
	idx := func(i, j int) int { return i + j*n - j*(j+1)/2 }
	for j := 0; j < n; j++ {
		d := b[idx(j, j)]
		for k := 0; k < j; k++ {
			ljk := l[idx(j, k)]
			d -= ljk * ljk * l[idx(k, k)]
		}
		if d <= tol {
			return NotPosDef
		}
		for i := j + 1; i < n; i++ {
			s := b[idx(i, j)]
			for k := 0; k < j; k++ {
				s -= l[idx(i, k)] * l[idx(j, k)] * l[idx(k, k)]
			}
			l[idx(i, j)] = s / d
		}
		l[idx(j, j)] = d
	}
	return Solved
}
