// Copyright ©2025 blockopt. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocksqp

import (
	"math"

	"github.com/blockopt/blocksqp/matrix"
)

// Iterate holds the complete state of the SQP iteration: the current
// point with its function values and derivatives, the block diagonal
// Hessian approximations, the quasi-Newton pair history and the scratch
// vectors of the line search.
type Iterate struct {
	nVar, nCon int
	nBlocks    int
	blockIdx   []int

	// Working copies of the bounds, ±inf where the problem left them open.
	bl, bu []float64

	Xi     []float64 // current point, length nVar
	Lambda []float64 // multipliers, nVar bound followed by nCon constraint entries

	Obj            float64
	QPObj          float64 // objective of the last QP subproblem
	CNorm          float64 // ∞-norm of the constraint violation
	CNormS         float64 // CNorm scaled by the size of the point
	GradNorm       float64 // ∞-norm of the Lagrangian gradient
	LambdaStepNorm float64
	Tol            float64 // GradNorm scaled by the size of the multipliers

	Constr       []float64
	GradObj      []float64
	GradLagrange []float64
	ConstrJac    *matrix.Matrix // dense Jacobian storage
	Jac          *SparseJac     // sparse Jacobian storage

	// Hess points at the approximation currently handed to the QP,
	// either hess1 or its positive definite companion hess2.
	Hess  []*matrix.SymMatrix
	hess1 []*matrix.SymMatrix
	hess2 []*matrix.SymMatrix

	// Block diagonal Hessian flattened to compressed column storage.
	hessNz     []float64
	hessIndRow []int
	hessIndCol []int
	hessIndLo  []int

	// Quasi-Newton pair history. With limited memory updates the
	// matrices hold HessMemsize columns used as a ring buffer, DeltaXi
	// and Gamma view the column of the running iteration.
	deltaMat, gammaMat *matrix.Matrix
	DeltaXi            []float64 // accepted step δ = x⁺ - x
	Gamma              []float64 // Lagrangian gradient difference γ

	DeltaBl, DeltaBu []float64 // bounds of the QP subproblem
	LambdaQP         []float64
	AdeltaXi         []float64 // constraint Jacobian times DeltaXi

	trialXi     []float64
	trialConstr []float64
	gradScratch []float64

	// Per block curvature products of the current and previous pair.
	deltaNorm       []float64 // δᵀδ
	deltaGamma      []float64 // δᵀγ
	deltaNormOld    []float64
	deltaGammaOld   []float64
	noUpdateCounter []int

	filter *Filter

	Steptype         int
	Alpha            float64
	NSOCS            int
	reducedStepCount int
}

// partitionBlocks derives the Hessian block boundaries from the problem
// annotation and the partition strategy.
func partitionBlocks(sp *Spec, o *Options) []int {
	pb := sp.BlockIdx
	switch {
	case o.BlockHess == 0 || len(pb) < 3:
		return []int{0, sp.NVar}
	case o.BlockHess == 2:
		// Condense to two blocks, splitting before the last annotated one.
		return []int{0, pb[len(pb)-2], sp.NVar}
	}
	out := make([]int, len(pb))
	copy(out, pb)
	return out
}

func newIterate(sp *Spec, o *Options) *Iterate {
	n, m := sp.NVar, sp.NCon
	it := &Iterate{nVar: n, nCon: m}
	it.blockIdx = partitionBlocks(sp, o)
	it.nBlocks = len(it.blockIdx) - 1
	it.bl, it.bu = sp.bounds(o.Inf)

	it.Xi = make([]float64, n)
	it.Lambda = make([]float64, n+m)
	it.Constr = make([]float64, m)
	it.GradObj = make([]float64, n)
	it.GradLagrange = make([]float64, n)
	if !o.SparseQP {
		it.ConstrJac = matrix.New(m, n)
	}

	it.hess1 = newHessianBlocks(it.blockIdx)
	it.Hess = it.hess1
	// The positive definite companion is rebuilt alongside the primary
	// matrix on every limited memory update, full memory has no fallback.
	if o.HessLimMem && (o.HessUpdate == HessSR1 || o.MaxConvQP > 0) {
		it.hess2 = newHessianBlocks(it.blockIdx)
	}

	memsize := 1
	if o.HessLimMem {
		memsize = o.HessMemsize
	}
	it.deltaMat = matrix.New(n, memsize)
	it.gammaMat = matrix.New(n, memsize)
	it.DeltaXi = it.deltaMat.ColSlice(0)
	it.Gamma = it.gammaMat.ColSlice(0)

	it.DeltaBl = make([]float64, n+m)
	it.DeltaBu = make([]float64, n+m)
	it.LambdaQP = make([]float64, n+m)
	it.AdeltaXi = make([]float64, m)

	it.trialXi = make([]float64, n)
	it.trialConstr = make([]float64, m)
	it.gradScratch = make([]float64, n)

	it.deltaNorm = make([]float64, it.nBlocks)
	it.deltaGamma = make([]float64, it.nBlocks)
	it.deltaNormOld = make([]float64, it.nBlocks)
	it.deltaGammaOld = make([]float64, it.nBlocks)
	it.noUpdateCounter = make([]int, it.nBlocks)
	for b := range it.deltaNorm {
		it.deltaNorm[b] = one
		it.noUpdateCounter[b] = -1
	}

	it.filter = newFilter(o.GammaTheta, o.GammaF)
	return it
}

func newHessianBlocks(blockIdx []int) []*matrix.SymMatrix {
	blocks := make([]*matrix.SymMatrix, len(blockIdx)-1)
	for b := range blocks {
		blocks[b] = matrix.NewSym(blockIdx[b+1] - blockIdx[b])
	}
	return blocks
}

// NBlocks returns the number of Hessian blocks.
func (it *Iterate) NBlocks() int { return it.nBlocks }

// BlockIdx returns the Hessian block boundaries.
func (it *Iterate) BlockIdx() []int { return it.blockIdx }

// advanceHistory points DeltaXi and Gamma at the ring buffer column of
// iteration itCount (counted from one).
func (it *Iterate) advanceHistory(itCount int) {
	m := it.deltaMat.N()
	if m < 2 {
		return
	}
	pos := (itCount - 1) % m
	it.DeltaXi = it.deltaMat.ColSlice(pos)
	it.Gamma = it.gammaMat.ColSlice(pos)
}

// pair returns the stored quasi-Newton pair at ring position pos,
// restricted to block b.
func (it *Iterate) pair(pos, b int) (delta, gamma []float64) {
	lo, hi := it.blockIdx[b], it.blockIdx[b+1]
	return it.deltaMat.ColSlice(pos)[lo:hi], it.gammaMat.ColSlice(pos)[lo:hi]
}

// convertHessian flattens the block diagonal approximation into
// compressed column storage. For each column hessIndLo marks the first
// entry on or below the diagonal, which lets a QP solver address the
// lower triangle directly. Entries below the zero threshold are dropped.
func (it *Iterate) convertHessian(eps float64) {
	nnz := 0
	for b := 0; b < it.nBlocks; b++ {
		dim := it.blockIdx[b+1] - it.blockIdx[b]
		nnz += dim * dim
	}
	if cap(it.hessNz) < nnz {
		it.hessNz = make([]float64, nnz)
		it.hessIndRow = make([]int, nnz)
	}
	// Earlier calls trimmed to their entry count, restore the capacity.
	it.hessNz = it.hessNz[:nnz]
	it.hessIndRow = it.hessIndRow[:nnz]
	if it.hessIndCol == nil {
		it.hessIndCol = make([]int, it.nVar+1)
		it.hessIndLo = make([]int, it.nVar)
	}

	count := 0
	for b := 0; b < it.nBlocks; b++ {
		lo, hi := it.blockIdx[b], it.blockIdx[b+1]
		B := it.Hess[b]
		for j := lo; j < hi; j++ {
			it.hessIndCol[j] = count
			it.hessIndLo[j] = -1
			for i := lo; i < hi; i++ {
				v := B.At(i-lo, j-lo)
				if math.Abs(v) <= eps {
					continue
				}
				it.hessNz[count] = v
				it.hessIndRow[count] = i
				if i >= j && it.hessIndLo[j] < 0 {
					it.hessIndLo[j] = count
				}
				count++
			}
			if it.hessIndLo[j] < 0 {
				it.hessIndLo[j] = count
			}
		}
	}
	it.hessIndCol[it.nVar] = count
	it.hessNz = it.hessNz[:count]
	it.hessIndRow = it.hessIndRow[:count]
}

// denseHessian expands the block diagonal approximation into a full
// square matrix, used for diagnostics.
func (it *Iterate) denseHessian() *matrix.Matrix {
	h := matrix.New(it.nVar, it.nVar)
	for b := 0; b < it.nBlocks; b++ {
		lo, hi := it.blockIdx[b], it.blockIdx[b+1]
		B := it.Hess[b]
		for j := lo; j < hi; j++ {
			for i := lo; i < hi; i++ {
				h.Set(i, j, B.At(i-lo, j-lo))
			}
		}
	}
	return h
}

// mulJac computes y = A·x with the Jacobian in whichever form is stored.
func (it *Iterate) mulJac(x, y []float64) {
	if it.ConstrJac != nil {
		it.ConstrJac.MulVec(x, y)
		return
	}
	for i := range y {
		y[i] = zero
	}
	j := it.Jac
	for col := 0; col < it.nVar; col++ {
		xv := x[col]
		if xv == zero {
			continue
		}
		for k := j.IndCol[col]; k < j.IndCol[col+1]; k++ {
			y[j.IndRow[k]] += j.Nz[k] * xv
		}
	}
}

// mulJacT computes y = Aᵀ·x.
func (it *Iterate) mulJacT(x, y []float64) {
	if it.ConstrJac != nil {
		for col := 0; col < it.nVar; col++ {
			s := zero
			for row := 0; row < it.nCon; row++ {
				s += it.ConstrJac.At(row, col) * x[row]
			}
			y[col] = s
		}
		return
	}
	j := it.Jac
	for col := 0; col < it.nVar; col++ {
		s := zero
		for k := j.IndCol[col]; k < j.IndCol[col+1]; k++ {
			s += j.Nz[k] * x[j.IndRow[k]]
		}
		y[col] = s
	}
}
