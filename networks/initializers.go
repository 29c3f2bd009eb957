// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// OrthogonalGain is the scale applied to every orthogonal weight matrix.
const OrthogonalGain = 0.8

// Orthogonal returns an initializer that fills rank-2 variables with a
// gain-scaled orthogonal matrix and everything of rank <= 1 (biases) with
// zeros.
//
// The matrix is the Q factor of the QR decomposition of a Gaussian random
// matrix, with column signs fixed by the diagonal of R so the result is
// unique, computed on the host with gonum and injected as a constant. The
// rng is consumed at variable-creation time, so creation order must be
// deterministic for a run to be reproducible.
func Orthogonal(rng *rand.Rand, gain float64) context.VariableInitializer {
	return func(g *Graph, shape shapes.Shape) *Node {
		if !shape.DType.IsFloat() || shape.Rank() != 2 {
			return Zeros(g, shape)
		}
		rows, cols := shape.Dimensions[0], shape.Dimensions[1]
		values := orthogonalMatrix(rng, rows, cols)
		for i := range values {
			values[i] *= gain
		}
		node := Const(g, tensors.FromFlatDataAndDimensions(values, rows, cols))
		if shape.DType != dtypes.Float64 {
			node = ConvertDType(node, shape.DType)
		}
		return node
	}
}

// orthogonalMatrix returns a rows×cols matrix (flat, row-major) with
// orthonormal rows or columns, whichever set is the smaller.
func orthogonalMatrix(rng *rand.Rand, rows, cols int) []float64 {
	n, m := rows, cols
	transposed := n < m
	if transposed {
		n, m = m, n
	}

	a := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			a.Set(i, j, rng.NormFloat64())
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	// Thin Q (n×m), sign-corrected by diag(R) to make the factorization
	// unique.
	values := make([]float64, rows*cols)
	for j := 0; j < m; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1.0
		}
		for i := 0; i < n; i++ {
			v := q.At(i, j) * sign
			if transposed {
				values[j*cols+i] = v
			} else {
				values[i*cols+j] = v
			}
		}
	}
	return values
}
