// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/jax-gomlx/pkg/jaxpr"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// Literal is a constant value inlined in the trace, as a tensor.
//
// Complex literals are packed as real tensors with a trailing axis of dimension 2, and IsComplex is set.
type Literal struct {
	Tensor    *tensors.Tensor
	IsComplex bool
}

// literalFromJaxpr converts a serialized literal to a tensor of the given static abstract value.
func literalFromJaxpr(lit *jaxpr.Literal, aval AbstractValue) (Literal, error) {
	switch {
	case lit.Ints != nil:
		return integerLiteralTensor(lit.Ints, aval)
	case lit.Uints != nil:
		return integerLiteralTensor(lit.Uints, aval)
	default:
		return literalTensor(lit.Values, aval)
	}
}

// literalDims returns the dimensions and the real dtype of the tensor holding numValues values of aval.
func literalDims(numValues int, aval AbstractValue) (dims []int, dtype dtypes.DType, err error) {
	if !aval.IsStatic() {
		return nil, dtypes.InvalidDType, errors.Errorf("literal with non-static abstract value %s", aval)
	}
	dims = aval.Shape.Dimensions
	dtype = aval.Type.DType
	if dtype.IsComplex() {
		dims = append(dims[:len(dims):len(dims)], 2)
		dtype = dtype.RealDType()
	}
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	if numValues != size {
		return nil, dtypes.InvalidDType, errors.Errorf("literal has %d values, but abstract value %s requires %d", numValues, aval, size)
	}
	return dims, dtype, nil
}

// literalTensor converts the flat values of a literal to a tensor of the given static abstract value.
func literalTensor(values []float64, aval AbstractValue) (Literal, error) {
	dims, dtype, err := literalDims(len(values), aval)
	if err != nil {
		return Literal{}, err
	}
	isComplex := aval.Type.DType.IsComplex()
	var t *tensors.Tensor
	switch dtype {
	case dtypes.Bool:
		flat := make([]bool, len(values))
		for i, v := range values {
			flat[i] = v != 0
		}
		t = tensors.FromFlatDataAndDimensions(flat, dims...)
	case dtypes.Float16:
		flat := make([]float16.Float16, len(values))
		for i, v := range values {
			flat[i] = float16.Fromfloat32(float32(v))
		}
		t = tensors.FromFlatDataAndDimensions(flat, dims...)
	case dtypes.BFloat16:
		flat := make([]bfloat16.BFloat16, len(values))
		for i, v := range values {
			flat[i] = bfloat16.FromFloat64(v)
		}
		t = tensors.FromFlatDataAndDimensions(flat, dims...)
	case dtypes.Float32:
		t = tensors.FromFlatDataAndDimensions(convertFlat[float32](values), dims...)
	case dtypes.Float64:
		t = tensors.FromFlatDataAndDimensions(convertFlat[float64](values), dims...)
	case dtypes.Int8:
		t = tensors.FromFlatDataAndDimensions(convertFlat[int8](values), dims...)
	case dtypes.Int16:
		t = tensors.FromFlatDataAndDimensions(convertFlat[int16](values), dims...)
	case dtypes.Int32:
		t = tensors.FromFlatDataAndDimensions(convertFlat[int32](values), dims...)
	case dtypes.Int64:
		t = tensors.FromFlatDataAndDimensions(convertFlat[int64](values), dims...)
	case dtypes.Uint8:
		t = tensors.FromFlatDataAndDimensions(convertFlat[uint8](values), dims...)
	case dtypes.Uint16:
		t = tensors.FromFlatDataAndDimensions(convertFlat[uint16](values), dims...)
	case dtypes.Uint32:
		t = tensors.FromFlatDataAndDimensions(convertFlat[uint32](values), dims...)
	case dtypes.Uint64:
		t = tensors.FromFlatDataAndDimensions(convertFlat[uint64](values), dims...)
	default:
		return Literal{}, errors.Wrapf(ErrUnsupported, "literals of dtype %s", aval.Type)
	}
	return Literal{Tensor: t, IsComplex: isComplex}, nil
}

// integerLiteralTensor converts exact integer values of a literal to a tensor of an integer or bool dtype.
func integerLiteralTensor[S int64 | uint64](values []S, aval AbstractValue) (Literal, error) {
	dims, dtype, err := literalDims(len(values), aval)
	if err != nil {
		return Literal{}, err
	}
	var t *tensors.Tensor
	switch {
	case aval.Type.DType.IsComplex():
		return Literal{}, errors.Wrapf(ErrUnsupported, "integer literal values for dtype %s", aval.Type)
	case dtype == dtypes.Bool:
		flat := make([]bool, len(values))
		for i, v := range values {
			flat[i] = v != 0
		}
		t = tensors.FromFlatDataAndDimensions(flat, dims...)
	case dtype == dtypes.Int8:
		t = tensors.FromFlatDataAndDimensions(convertFlat[int8](values), dims...)
	case dtype == dtypes.Int16:
		t = tensors.FromFlatDataAndDimensions(convertFlat[int16](values), dims...)
	case dtype == dtypes.Int32:
		t = tensors.FromFlatDataAndDimensions(convertFlat[int32](values), dims...)
	case dtype == dtypes.Int64:
		t = tensors.FromFlatDataAndDimensions(convertFlat[int64](values), dims...)
	case dtype == dtypes.Uint8:
		t = tensors.FromFlatDataAndDimensions(convertFlat[uint8](values), dims...)
	case dtype == dtypes.Uint16:
		t = tensors.FromFlatDataAndDimensions(convertFlat[uint16](values), dims...)
	case dtype == dtypes.Uint32:
		t = tensors.FromFlatDataAndDimensions(convertFlat[uint32](values), dims...)
	case dtype == dtypes.Uint64:
		t = tensors.FromFlatDataAndDimensions(convertFlat[uint64](values), dims...)
	default:
		return Literal{}, errors.Wrapf(ErrUnsupported, "integer literal values for dtype %s", aval.Type)
	}
	return Literal{Tensor: t}, nil
}

func convertFlat[T, S constraints.Integer | constraints.Float](values []S) []T {
	flat := make([]T, len(values))
	for i, v := range values {
		flat[i] = T(v)
	}
	return flat
}
