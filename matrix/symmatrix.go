// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package matrix

// SymMatrix is a symmetric n×n matrix storing only the lower triangle.
// The triangle is packed column by column, diagonal entry first, so
// element (i,j) with i ≥ j lives at data[i + j*n - j*(j+1)/2].
type SymMatrix struct {
	n    int
	data []float64
}

// NewSym allocates a zero symmetric matrix of order n.
func NewSym(n int) *SymMatrix {
	return &SymMatrix{n: n, data: make([]float64, n*(n+1)/2)}
}

// NewSymFromDense packs the lower triangle of the dense matrix a.
func NewSymFromDense(a *Matrix) *SymMatrix {
	s := NewSym(a.M())
	for j := 0; j < s.n; j++ {
		for i := j; i < s.n; i++ {
			s.data[s.index(i, j)] = a.At(i, j)
		}
	}
	return s
}

// N returns the order of the matrix.
func (s *SymMatrix) N() int { return s.n }

// Data exposes the packed lower triangle.
func (s *SymMatrix) Data() []float64 { return s.data }

func (s *SymMatrix) index(i, j int) int {
	if j > i {
		i, j = j, i
	}
	return i + j*s.n - j*(j+1)/2
}

// At returns element (i,j). Both triangles address the same storage.
func (s *SymMatrix) At(i, j int) float64 {
	if i < 0 || i >= s.n || j < 0 || j >= s.n {
		panic("bound check error")
	}
	return s.data[s.index(i, j)]
}

// Set assigns element (i,j) and, implicitly, (j,i).
func (s *SymMatrix) Set(i, j int, v float64) {
	if i < 0 || i >= s.n || j < 0 || j >= s.n {
		panic("bound check error")
	}
	s.data[s.index(i, j)] = v
}

// Initialize sets every element to v.
func (s *SymMatrix) Initialize(v float64) {
	for k := range s.data {
		s.data[k] = v
	}
}

// SetIdentity sets s to v times the identity.
func (s *SymMatrix) SetIdentity(v float64) {
	for k := range s.data {
		s.data[k] = 0
	}
	for i := 0; i < s.n; i++ {
		s.data[s.index(i, i)] = v
	}
}

// Scale multiplies every element by v.
func (s *SymMatrix) Scale(v float64) {
	for k := range s.data {
		s.data[k] *= v
	}
}

// CopyFrom copies the elements of b into s. Orders must match.
func (s *SymMatrix) CopyFrom(b *SymMatrix) {
	if s.n != b.n {
		panic("bound check error")
	}
	copy(s.data, b.data)
}

// MulVec computes y = S·x with x, y of length N.
func (s *SymMatrix) MulVec(x, y []float64) {
	if len(x) < s.n || len(y) < s.n {
		panic("bound check error")
	}
	for i := 0; i < s.n; i++ {
		acc := 0.0
		for j := 0; j < s.n; j++ {
			acc += s.At(i, j) * x[j]
		}
		y[i] = acc
	}
}

// Quad computes xᵀ·S·x.
func (s *SymMatrix) Quad(x []float64) float64 {
	if len(x) < s.n {
		panic("bound check error")
	}
	acc := 0.0
	for j := 0; j < s.n; j++ {
		acc += s.At(j, j) * x[j] * x[j]
		for i := j + 1; i < s.n; i++ {
			acc += 2 * s.At(i, j) * x[i] * x[j]
		}
	}
	return acc
}
