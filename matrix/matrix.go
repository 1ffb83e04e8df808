// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package matrix provides the dense and packed symmetric matrix types
// used by the SQP engine, together with the vector and constraint norms
// the globalization strategy is built on.
//
// A Matrix is stored column-major with an explicit leading dimension,
// so a view can address a rectangular window of a larger owner without
// copying. A SymMatrix stores only the lower triangle in packed form.
package matrix

import (
	"errors"
	"math"
)

var (
	// ErrViewResize is returned when Dimension is called on a matrix
	// that does not own its storage.
	ErrViewResize = errors.New("matrix: cannot resize a view")
	// ErrViewOfView is returned when Submatrix is called on a view.
	ErrViewOfView = errors.New("matrix: cannot take a submatrix of a view")
	// ErrViewRange is returned when a requested window exceeds the owner.
	ErrViewRange = errors.New("matrix: submatrix window out of range")
)

// Matrix is a dense column-major matrix.
// Element (i,j) lives at data[i+j*ld].
type Matrix struct {
	m, n, ld int
	data     []float64
	view     bool
}

// New allocates an m×n matrix with leading dimension m.
func New(m, n int) *Matrix {
	return NewLD(m, n, m)
}

// NewLD allocates an m×n matrix with leading dimension ld ≥ m.
func NewLD(m, n, ld int) *Matrix {
	if ld < m {
		ld = m
	}
	return &Matrix{m: m, n: n, ld: ld, data: make([]float64, ld*n)}
}

// FromSlice wraps an existing column-major slice as an m×n view.
// The caller keeps ownership of data.
func FromSlice(m, n, ld int, data []float64) *Matrix {
	if ld < m {
		ld = m
	}
	return &Matrix{m: m, n: n, ld: ld, data: data, view: true}
}

// M returns the number of rows.
func (a *Matrix) M() int { return a.m }

// N returns the number of columns.
func (a *Matrix) N() int { return a.n }

// LD returns the leading dimension of the storage.
func (a *Matrix) LD() int { return a.ld }

// IsView reports whether the matrix borrows storage from an owner.
func (a *Matrix) IsView() bool { return a.view }

// Data exposes the backing slice. For a view the slice starts at the
// view origin and is laid out with stride LD.
func (a *Matrix) Data() []float64 { return a.data }

// At returns element (i,j).
func (a *Matrix) At(i, j int) float64 {
	if i < 0 || i >= a.m || j < 0 || j >= a.n {
		panic("bound check error")
	}
	return a.data[i+j*a.ld]
}

// Set assigns element (i,j).
func (a *Matrix) Set(i, j int, v float64) {
	if i < 0 || i >= a.m || j < 0 || j >= a.n {
		panic("bound check error")
	}
	a.data[i+j*a.ld] = v
}

// AtVec treats a one-column matrix as a vector and returns element i.
func (a *Matrix) AtVec(i int) float64 { return a.At(i, 0) }

// SetVec treats a one-column matrix as a vector and assigns element i.
func (a *Matrix) SetVec(i int, v float64) { a.Set(i, 0, v) }

// Dimension resizes an owner in place, reallocating only when the new
// shape needs more room. Element values are unspecified afterwards.
func (a *Matrix) Dimension(m, n, ld int) error {
	if a.view {
		return ErrViewResize
	}
	if ld < m {
		ld = m
	}
	if ld*n > cap(a.data) {
		a.data = make([]float64, ld*n)
	} else {
		a.data = a.data[:ld*n]
	}
	a.m, a.n, a.ld = m, n, ld
	return nil
}

// Submatrix returns an m×n view of a with origin (i0,j0).
// Views of views are not permitted.
func (a *Matrix) Submatrix(m, n, i0, j0 int) (*Matrix, error) {
	if a.view {
		return nil, ErrViewOfView
	}
	if i0 < 0 || j0 < 0 || i0+m > a.m || j0+n > a.n {
		return nil, ErrViewRange
	}
	return &Matrix{m: m, n: n, ld: a.ld, data: a.data[i0+j0*a.ld:], view: true}, nil
}

// ColSlice returns column j as a slice of length M sharing storage with a.
func (a *Matrix) ColSlice(j int) []float64 {
	if j < 0 || j >= a.n {
		panic("bound check error")
	}
	return a.data[j*a.ld : j*a.ld+a.m]
}

// Initialize sets every element to v.
func (a *Matrix) Initialize(v float64) {
	for j := 0; j < a.n; j++ {
		col := a.ColSlice(j)
		for i := range col {
			col[i] = v
		}
	}
}

// InitializeFunc sets every element (i,j) to f(i,j).
func (a *Matrix) InitializeFunc(f func(i, j int) float64) {
	for j := 0; j < a.n; j++ {
		for i := 0; i < a.m; i++ {
			a.data[i+j*a.ld] = f(i, j)
		}
	}
}

// CopyFrom copies the elements of b into a. Shapes must match.
func (a *Matrix) CopyFrom(b *Matrix) {
	if a.m != b.m || a.n != b.n {
		panic("bound check error")
	}
	for j := 0; j < a.n; j++ {
		copy(a.ColSlice(j), b.ColSlice(j))
	}
}

// Transpose returns a newly allocated transpose of a.
func (a *Matrix) Transpose() *Matrix {
	t := New(a.n, a.m)
	for j := 0; j < a.n; j++ {
		for i := 0; i < a.m; i++ {
			t.data[j+i*t.ld] = a.data[i+j*a.ld]
		}
	}
	return t
}

// MulVec computes y = A·x for a one-column result, x of length N.
func (a *Matrix) MulVec(x, y []float64) {
	if len(x) < a.n || len(y) < a.m {
		panic("bound check error")
	}
	for i := 0; i < a.m; i++ {
		y[i] = 0
	}
	for j := 0; j < a.n; j++ {
		xj := x[j]
		if xj == 0 {
			continue
		}
		col := a.ColSlice(j)
		for i := 0; i < a.m; i++ {
			y[i] += col[i] * xj
		}
	}
}

// IsFinite reports whether every element of a is a finite number.
func (a *Matrix) IsFinite() bool {
	for j := 0; j < a.n; j++ {
		for _, v := range a.ColSlice(j) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
