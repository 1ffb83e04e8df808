// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsq

import "math"

// daxpy performs constant times a vector plus a vector operation.
func daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == zero {
		return
	}
	if incx*(n-1) >= len(dx) || incy*(n-1) >= len(dy) {
		panic("bound check error")
	}
	for k, ix, iy := 0, 0, 0; k < n; k++ {
		dy[iy] += da * dx[ix]
		ix += incx
		iy += incy
	}
}

// ddot computes the dot product of two vectors.
func ddot(n int, dx []float64, incx int, dy []float64, incy int) (dot float64) {
	if n <= 0 {
		return zero
	}
	if incx*(n-1) >= len(dx) || incy*(n-1) >= len(dy) {
		panic("bound check error")
	}
	for k, ix, iy := 0, 0, 0; k < n; k++ {
		dot += dx[ix] * dy[iy]
		ix += incx
		iy += incy
	}
	return dot
}

// dcopy copies a vector, x, to a vector, y.
func dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	if incx == 1 && incy == 1 {
		copy(dy[:n], dx[:n])
		return
	}
	if incx*(n-1) >= len(dx) || incy*(n-1) >= len(dy) {
		panic("bound check error")
	}
	for k, ix, iy := 0, 0, 0; k < n; k++ {
		dy[iy] = dx[ix]
		ix += incx
		iy += incy
	}
}

// dscal scales a vector by a constant.
func dscal(n int, da float64, dx []float64, incx int) {
	if n <= 0 || incx <= 0 {
		return
	}
	if incx*(n-1) >= len(dx) {
		panic("bound check error")
	}
	for k, ix := 0, 0; k < n; k++ {
		dx[ix] *= da
		ix += incx
	}
}

// dnrm2 computes the Euclidean norm of a vector x
// with scaling against intermediate overflow.
func dnrm2(n int, x []float64, incx int) float64 {
	if n < 1 || incx < 1 {
		return zero
	}
	if incx*(n-1) >= len(x) {
		panic("bound check error")
	}
	if n == 1 {
		return math.Abs(x[0])
	}
	scale, ssq := zero, one
	for k, ix := 0, 0; k < n; k++ {
		if absxi := math.Abs(x[ix]); absxi > 0 {
			if scale < absxi {
				sxi := scale / absxi
				ssq = 1 + ssq*sxi*sxi
				scale = absxi
			} else {
				sxi := absxi / scale
				ssq += sxi * sxi
			}
		}
		ix += incx
	}
	return scale * math.Sqrt(ssq)
}

// dzero fills vector x with zero.
func dzero(dx []float64) {
	for i := range dx {
		dx[i] = zero
	}
}
