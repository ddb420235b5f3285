// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/pkg/errors"
)

// convertReduceWindowSum converts JAX's reduce_window_sum: a sum over a sliding window.
//
// Only spatial windows over a [batch, <spatial axes...>, channels] layout are supported: the batch and
// channels axes must have a window and stride of 1 and no padding. Dilations must be 1.
//
// GoMLX has no windowed sum, so it is computed as a mean pool (on the zero-padded input, so padding
// counts in the mean) multiplied by the window volume. Zero padding is concatenated to the input,
// since not every backend implements Pad.
func convertReduceWindowSum(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, 1)
	input := ctx.Input(0)
	if input.IsComplex() {
		panic(errors.Wrapf(frontend.ErrUnsupported, "%s: complex inputs", ctx))
	}
	x := input.Node

	windowDimensions := ctx.MustInts("window_dimensions")
	windowStrides := ctx.MustInts("window_strides")
	padding := ctx.MustIntLists("padding")
	baseDilation := ctx.MustInts("base_dilation")
	windowDilation := ctx.MustInts("window_dilation")

	rank := len(windowDimensions)
	for _, param := range []struct {
		name   string
		length int
	}{
		{"window_strides", len(windowStrides)},
		{"padding", len(padding)},
		{"base_dilation", len(baseDilation)},
		{"window_dilation", len(windowDilation)},
	} {
		if param.length != rank {
			panic(errors.Wrapf(frontend.ErrAttribute, "%s: %s has %d values, but window_dimensions has %d",
				ctx, param.name, param.length, rank))
		}
	}
	if x.Rank() != rank {
		panic(errors.Wrapf(frontend.ErrAttribute, "%s: window_dimensions has %d values, but input has rank %d (%s)",
			ctx, rank, x.Rank(), x.Shape()))
	}
	if rank < 3 {
		panic(errors.Wrapf(frontend.ErrUnsupported, "%s: input of rank %d, expected [batch, <spatial axes...>, channels]",
			ctx, rank))
	}

	numSpatial := rank - 2
	kernel := make([]int, numSpatial)
	strides := make([]int, numSpatial)
	paddings := make([][2]int, rank)
	for axis := range rank {
		if len(padding[axis]) != 2 {
			panic(errors.Wrapf(frontend.ErrAttribute, "%s: padding for axis %d has %d values, expected a (low, high) pair",
				ctx, axis, len(padding[axis])))
		}
		low, high := padding[axis][0], padding[axis][1]
		if axis == 0 || axis == rank-1 {
			if windowDimensions[axis] != 1 || windowStrides[axis] != 1 || low != 0 || high != 0 || baseDilation[axis] != 1 {
				panic(errors.Wrapf(frontend.ErrUnsupported,
					"%s: unsupported layout, the batch and channels axes (0 and %d) must have window 1, stride 1, "+
						"no padding and base dilation 1, got window %v, strides %v, padding %v and base dilation %v",
					ctx, rank-1, windowDimensions, windowStrides, padding, baseDilation))
			}
		} else {
			if baseDilation[axis] != 1 {
				panic(errors.Wrapf(frontend.ErrUnsupported, "%s: base dilation %d for axis %d, only 1 is supported",
					ctx, baseDilation[axis], axis))
			}
			if low < 0 || high < 0 {
				panic(errors.Wrapf(frontend.ErrUnsupported, "%s: negative padding %v for axis %d",
					ctx, padding[axis], axis))
			}
			kernel[axis-1] = windowDimensions[axis]
			strides[axis-1] = windowStrides[axis]
		}
		if windowDilation[axis] != 1 {
			panic(errors.Wrapf(frontend.ErrUnsupported, "%s: window dilation %d for axis %d, only 1 is supported",
				ctx, windowDilation[axis], axis))
		}
		// Paddings are applied after the transposition to channels first.
		transposedAxis := axis + 1
		if axis == rank-1 {
			transposedAxis = 1
		} else if axis == 0 {
			transposedAxis = 0
		}
		paddings[transposedAxis] = [2]int{low, high}
	}

	dtype := x.DType()
	if !dtype.IsFloat() {
		x = ConvertDType(x, dtypes.Float64)
	}

	// [batch, <spatial...>, channels] -> [batch, channels, <spatial...>]
	toChannelsFirst := make([]int, rank)
	fromChannelsFirst := make([]int, rank)
	toChannelsFirst[1] = rank - 1
	fromChannelsFirst[rank-1] = 1
	for axis := 2; axis < rank; axis++ {
		toChannelsFirst[axis] = axis - 1
		fromChannelsFirst[axis-1] = axis
	}
	x = TransposeAllAxes(x, toChannelsFirst...)
	for axis, pad := range paddings {
		x = padAxisWithZeros(x, axis, pad[0], pad[1])
	}
	pooled := MeanPool(x).
		ChannelsAxis(timage.ChannelsFirst).
		WindowPerAxis(kernel...).
		StridePerAxis(strides...).
		NoPadding().
		Done()
	pooled = TransposeAllAxes(pooled, fromChannelsFirst...)

	volume := 1
	for _, dim := range kernel {
		volume *= dim
	}
	sum := MulScalar(pooled, volume)
	if sum.DType() != dtype {
		// Integer sums are exact up to the rounding errors of the mean.
		sum = ConvertDType(Round(sum), dtype)
	}
	return []frontend.Value{frontend.NewValue(sum)}
}

// padAxisWithZeros concatenates low zeros before and high zeros after x along axis.
func padAxisWithZeros(x *Node, axis, low, high int) *Node {
	if low == 0 && high == 0 {
		return x
	}
	zeros := func(n int) *Node {
		dims := x.Shape().Clone().Dimensions
		dims[axis] = n
		return Zeros(x.Graph(), shapes.Make(x.DType(), dims...))
	}
	parts := make([]*Node, 0, 3)
	if low > 0 {
		parts = append(parts, zeros(low))
	}
	parts = append(parts, x)
	if high > 0 {
		parts = append(parts, zeros(high))
	}
	return Concatenate(parts, axis)
}
