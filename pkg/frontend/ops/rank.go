// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
)

// shapeOf returns the dimensions of x as an int32 vector. GoMLX shapes are static, so it's a constant.
func shapeOf(x *Node) *Node {
	dims := xslices.Map(x.Shape().Dimensions, func(dim int) int32 { return int32(dim) })
	return ConstTensor(x.Graph(), tensors.FromFlatDataAndDimensions(dims, len(dims)))
}

// convertRank returns the rank of its input as an int32 scalar.
//
// For complex values the trailing (real, imaginary) axis is not counted, and the result is marked as
// derived from a complex value: it stays a plain integer scalar for the operations that consume it.
func convertRank(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, 1)
	input := ctx.Input(0)
	shape := shapeOf(input.Node)
	if input.IsComplex() {
		// Drop the packed axis before taking the shape of the shape.
		logicalShape := Slice(shape, AxisRange(0, shape.Shape().Dimensions[0]-1))
		rank := ctx.NameOutput(Squeeze(shapeOf(logicalShape)), 0)
		return []frontend.Value{frontend.MarkComplex(rank, input.ComplexPart())}
	}
	rank := ctx.NameOutput(Squeeze(shapeOf(shape)), 0)
	return []frontend.Value{frontend.NewValue(rank)}
}
