// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"slices"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/pkg/errors"
)

// withPackedAxis appends the packed (real, imaginary) axis dimension to dims of complex values.
func withPackedAxis(v frontend.Value, dims []int) []int {
	if !v.IsComplex() {
		return dims
	}
	return append(slices.Clone(dims), 2)
}

// logicalRank is the rank of the value, not counting the packed axis of complex values.
func logicalRank(v frontend.Value) int {
	if v.IsComplex() {
		return v.Node.Rank() - 1
	}
	return v.Node.Rank()
}

// convertConvertElementType converts JAX's convert_element_type (new_dtype attribute).
func convertConvertElementType(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, 1)
	x := ctx.Input(0)
	target := frontend.ParseElementType(ctx.MustString("new_dtype"))
	if !target.IsStatic() {
		panic(errors.Wrapf(frontend.ErrUnsupported, "%s: conversion to %s", ctx, target))
	}
	dtype := target.DType
	switch {
	case dtype.IsComplex() && x.IsComplex():
		return []frontend.Value{frontend.ComplexValue(ConvertDType(x.Node, dtype.RealDType()))}
	case dtype.IsComplex():
		re := ConvertDType(x.Node, dtype.RealDType())
		return []frontend.Value{joinComplex(re, ZerosLike(re))}
	case x.IsComplex():
		// JAX discards the imaginary part.
		re, _ := splitComplex(x)
		return []frontend.Value{frontend.NewValue(ConvertDType(re, dtype))}
	default:
		return []frontend.Value{keepDerivedMark(ConvertDType(x.Node, dtype), x)}
	}
}

// convertReshape converts JAX's reshape (new_sizes attribute).
func convertReshape(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, 1)
	if !ctx.Attribute("dimensions").IsAbsent() {
		if dims, ok := ctx.Attribute("dimensions").AsInts(); !ok || len(dims) > 0 {
			panic(errors.Wrapf(frontend.ErrUnsupported, "%s: reshape with dimensions (transposition) %s",
				ctx, ctx.Attribute("dimensions")))
		}
	}
	x := ctx.Input(0)
	newSizes := ctx.MustInts("new_sizes")
	return []frontend.Value{x.WithNode(Reshape(x.Node, withPackedAxis(x, newSizes)...))}
}

// convertTranspose converts JAX's transpose (permutation attribute).
func convertTranspose(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, 1)
	x := ctx.Input(0)
	permutation := ctx.MustInts("permutation")
	if len(permutation) != logicalRank(x) {
		panic(errors.Wrapf(frontend.ErrAttribute, "%s: permutation %v for input of rank %d",
			ctx, permutation, logicalRank(x)))
	}
	if x.IsComplex() {
		permutation = append(slices.Clone(permutation), len(permutation))
	}
	return []frontend.Value{x.WithNode(TransposeAllAxes(x.Node, permutation...))}
}

// convertBroadcastInDim converts JAX's broadcast_in_dim: axis i of the operand becomes the axis
// broadcast_dimensions[i] of the output, with the given shape.
func convertBroadcastInDim(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, -1) // Dynamic shapes are given as extra inputs, not supported below.
	if ctx.NumInputs() > 1 {
		panic(errors.Wrapf(frontend.ErrUnsupported, "%s: dynamic shapes", ctx))
	}
	x := ctx.Input(0)
	shape := ctx.MustInts("shape")
	broadcastDims := ctx.MustInts("broadcast_dimensions")
	if len(broadcastDims) != logicalRank(x) {
		panic(errors.Wrapf(frontend.ErrAttribute, "%s: broadcast_dimensions %v for input of rank %d",
			ctx, broadcastDims, logicalRank(x)))
	}
	dims := x.Node.Shape().Dimensions
	expanded := make([]int, len(shape))
	for i := range expanded {
		expanded[i] = 1
	}
	for i, axis := range broadcastDims {
		if axis < 0 || axis >= len(shape) || (i > 0 && axis <= broadcastDims[i-1]) {
			panic(errors.Wrapf(frontend.ErrAttribute, "%s: invalid broadcast_dimensions %v for shape %v",
				ctx, broadcastDims, shape))
		}
		expanded[axis] = dims[i]
	}
	node := Reshape(x.Node, withPackedAxis(x, expanded)...)
	node = BroadcastToDims(node, withPackedAxis(x, shape)...)
	return []frontend.Value{x.WithNode(node)}
}

// convertSqueeze converts JAX's squeeze (dimensions attribute).
func convertSqueeze(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, 1)
	x := ctx.Input(0)
	dims := ctx.MustInts("dimensions")
	if len(dims) == 0 {
		return []frontend.Value{x}
	}
	rank := logicalRank(x)
	axes := make([]int, len(dims))
	for i, axis := range dims {
		if axis < 0 {
			axis += rank
		}
		axes[i] = axis
	}
	return []frontend.Value{x.WithNode(Squeeze(x.Node, axes...))}
}

// reduceOp builds a translator for reductions over the axes attribute.
func reduceOp(fn func(x *Node, axes ...int) *Node, supportsComplex bool) frontend.Translator {
	return func(ctx *frontend.NodeContext) []frontend.Value {
		ctx.CheckInputs(1, 1)
		x := ctx.Input(0)
		if x.IsComplex() && !supportsComplex {
			panic(errors.Wrapf(frontend.ErrUnsupported, "%s: complex inputs", ctx))
		}
		axes := ctx.MustInts("axes")
		if len(axes) == 0 {
			return []frontend.Value{x}
		}
		return []frontend.Value{x.WithNode(fn(x.Node, axes...))}
	}
}

func registerShapeOps(r *frontend.Registry) {
	r.Register("convert_element_type", convertConvertElementType).
		Register("reshape", convertReshape).
		Register("transpose", convertTranspose).
		Register("broadcast_in_dim", convertBroadcastInDim).
		Register("squeeze", convertSqueeze).
		Register("reduce_sum", reduceOp(ReduceSum, true)).
		Register("reduce_max", reduceOp(ReduceMax, false)).
		Register("reduce_min", reduceOp(ReduceMin, false)).
		Register("rank", convertRank).
		Register("reduce_window_sum", convertReduceWindowSum)
}
