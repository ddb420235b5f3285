// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend_test

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartialShape(t *testing.T) {
	static := StaticShape(2, 3)
	assert.True(t, static.IsStatic())
	assert.Equal(t, 2, static.Rank())
	assert.Equal(t, "[2, 3]", static.String())
	shape, err := static.ToShape(dtypes.Int8)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, shape.Dimensions)
	assert.Equal(t, dtypes.Int8, shape.DType)

	scalar := StaticShape()
	assert.True(t, scalar.IsStatic())
	assert.Equal(t, 0, scalar.Rank())
	assert.Equal(t, "[]", scalar.String())

	partial := StaticShape(DynamicDim, 3)
	assert.False(t, partial.IsStatic())
	assert.Equal(t, 2, partial.Rank())
	assert.Equal(t, "[?, 3]", partial.String())
	_, err = partial.ToShape(dtypes.Float32)
	require.Error(t, err)

	dynamicRank := DynamicRankShape()
	assert.False(t, dynamicRank.IsStatic())
	assert.Equal(t, -1, dynamicRank.Rank())
	assert.Equal(t, "[...]", dynamicRank.String())

	assert.True(t, partial.Equal(StaticShape(DynamicDim, 3)))
	assert.False(t, partial.Equal(static))
	assert.False(t, static.Equal(dynamicRank))
	assert.True(t, dynamicRank.Equal(PartialShape{DynamicRank: true, Dimensions: []int{1}}))

	// StaticShape copies its dimensions.
	dims := []int{4, 5}
	copied := StaticShape(dims...)
	dims[0] = 7
	assert.Equal(t, []int{4, 5}, copied.Dimensions)
}

func TestElementType(t *testing.T) {
	for name, want := range map[string]dtypes.DType{
		"float32":       dtypes.Float32,
		"bfloat16":      dtypes.BFloat16,
		"float16":       dtypes.Float16,
		"int8":          dtypes.Int8,
		"uint32":        dtypes.Uint32,
		"bool":          dtypes.Bool,
		"bool_":         dtypes.Bool,
		"complex64":     dtypes.Complex64,
		"complex128":    dtypes.Complex128,
		"float8_e4m3fn": dtypes.F8E4M3FN,
	} {
		et := ParseElementType(name)
		assert.Truef(t, et.IsStatic(), "%q should be static", name)
		assert.Equalf(t, want, et.DType, "dtype of %q", name)
	}

	custom := ParseElementType("key<fry>")
	assert.True(t, custom.IsCustom())
	assert.False(t, custom.IsStatic())
	assert.False(t, custom.IsDynamic())
	assert.Equal(t, "key<fry>", custom.String())
	assert.True(t, ParseElementType("float0").IsCustom())

	dynamic := ParseElementType("")
	assert.True(t, dynamic.IsDynamic())
	assert.Equal(t, DynamicType, dynamic)
	assert.Equal(t, "dynamic", dynamic.String())
}

func TestAbstractValue(t *testing.T) {
	av := AbstractValue{Shape: StaticShape(2), Type: TypeOf(dtypes.Float64)}
	assert.True(t, av.IsStatic())
	shape, err := av.ToShape()
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, shape.DType)

	for _, av := range []AbstractValue{
		{Shape: StaticShape(2), Type: ParseElementType("key<fry>")},
		{Shape: StaticShape(2), Type: DynamicType},
		{Shape: DynamicRankShape(), Type: TypeOf(dtypes.Float32)},
	} {
		assert.False(t, av.IsStatic())
		_, err := av.ToShape()
		assert.Errorf(t, err, "%s", av)
	}
}
