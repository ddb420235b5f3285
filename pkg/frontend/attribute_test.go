// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend_test

import (
	"testing"

	. "github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/stretchr/testify/assert"
)

func TestAttribute(t *testing.T) {
	absent := Attribute{}
	assert.True(t, absent.IsAbsent())
	assert.Equal(t, AttrAbsent, absent.Kind())
	assert.Equal(t, "<absent>", absent.String())
	_, ok := absent.AsInt()
	assert.False(t, ok)

	i := IntAttr(3)
	assert.Equal(t, AttrInt, i.Kind())
	v, ok := i.AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)
	f, ok := i.AsFloat()
	assert.True(t, ok, "ints are accepted as floats")
	assert.Equal(t, 3.0, f)
	_, ok = i.AsString()
	assert.False(t, ok)

	f, ok = FloatAttr(0.5).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)
	_, ok = FloatAttr(0.5).AsInt()
	assert.False(t, ok)

	s, ok := StringAttr("float32").AsString()
	assert.True(t, ok)
	assert.Equal(t, "float32", s)
	b, ok := BoolAttr(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	ints, ok := IntsAttr().AsInts()
	assert.True(t, ok)
	assert.NotNil(t, ints, "empty lists are not absent")
	assert.Empty(t, ints)
	floats, ok := FloatsAttr(1, 2).AsFloats()
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2}, floats)
	strs, ok := StringsAttr("a").AsStrings()
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, strs)
	bools, ok := BoolsAttr(true, false).AsBools()
	assert.True(t, ok)
	assert.Equal(t, []bool{true, false}, bools)
	lists, ok := IntListsAttr([]int64{0, 1}, []int64{2, 3}).AsIntLists()
	assert.True(t, ok)
	assert.Equal(t, [][]int64{{0, 1}, {2, 3}}, lists)

	sub, ok := SubgraphAttr(2).AsSubgraph()
	assert.True(t, ok)
	assert.Equal(t, SubgraphIndex(2), sub)
	subs, ok := SubgraphsAttr(0, 1).AsSubgraphs()
	assert.True(t, ok)
	assert.Equal(t, []SubgraphIndex{0, 1}, subs)
	_, ok = SubgraphsAttr(0, 1).AsSubgraph()
	assert.False(t, ok)

	assert.Equal(t, "ints([1 2])", IntsAttr(1, 2).String())
	for kind := AttrAbsent; kind <= AttrSubgraphs; kind++ {
		assert.NotEmpty(t, kind.String())
	}
}
