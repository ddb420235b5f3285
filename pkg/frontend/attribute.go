// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"fmt"
	"slices"

	"github.com/gomlx/jax-gomlx/pkg/jaxpr"
)

// AttributeKind enumerates the closed set of attribute values an equation can carry.
type AttributeKind int

const (
	AttrAbsent AttributeKind = iota
	AttrInt
	AttrFloat
	AttrString
	AttrBool
	AttrInts
	AttrFloats
	AttrStrings
	AttrBools
	AttrIntLists
	AttrSubgraph
	AttrSubgraphs
)

var attributeKindNames = [...]string{
	AttrAbsent:    "absent",
	AttrInt:       "int",
	AttrFloat:     "float",
	AttrString:    "string",
	AttrBool:      "bool",
	AttrInts:      "ints",
	AttrFloats:    "floats",
	AttrStrings:   "strings",
	AttrBools:     "bools",
	AttrIntLists:  "int_lists",
	AttrSubgraph:  "subgraph",
	AttrSubgraphs: "subgraphs",
}

func (k AttributeKind) String() string {
	if k < 0 || int(k) >= len(attributeKindNames) {
		return fmt.Sprintf("AttributeKind(%d)", int(k))
	}
	return attributeKindNames[k]
}

// SubgraphIndex references a nested graph of an equation: it is the index to use with Decoder.Subgraph.
type SubgraphIndex int

// Attribute is a static attribute value of an equation. The zero value is an absent attribute.
//
// Use Kind to inspect which value it holds, and the As* accessors to read it: they return false if the
// attribute holds a different kind.
type Attribute struct {
	kind  AttributeKind
	value any
}

// Attribute constructors.

func IntAttr(v int64) Attribute                { return Attribute{AttrInt, v} }
func FloatAttr(v float64) Attribute            { return Attribute{AttrFloat, v} }
func StringAttr(v string) Attribute            { return Attribute{AttrString, v} }
func BoolAttr(v bool) Attribute                { return Attribute{AttrBool, v} }
func IntsAttr(v ...int64) Attribute            { return Attribute{AttrInts, nonNil(v)} }
func FloatsAttr(v ...float64) Attribute        { return Attribute{AttrFloats, nonNil(v)} }
func StringsAttr(v ...string) Attribute        { return Attribute{AttrStrings, nonNil(v)} }
func BoolsAttr(v ...bool) Attribute            { return Attribute{AttrBools, nonNil(v)} }
func IntListsAttr(v ...[]int64) Attribute      { return Attribute{AttrIntLists, nonNil(v)} }
func SubgraphAttr(idx SubgraphIndex) Attribute { return Attribute{AttrSubgraph, idx} }
func SubgraphsAttr(indices ...SubgraphIndex) Attribute {
	return Attribute{AttrSubgraphs, nonNil(indices)}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Kind of value held.
func (a Attribute) Kind() AttributeKind { return a.kind }

// IsAbsent returns whether the attribute was not found.
func (a Attribute) IsAbsent() bool { return a.kind == AttrAbsent }

// Value returns the value held, as one of: int64, float64, string, bool, []int64, []float64, []string,
// []bool, [][]int64, SubgraphIndex or []SubgraphIndex. It returns nil for an absent attribute.
func (a Attribute) Value() any { return a.value }

func (a Attribute) String() string {
	if a.kind == AttrAbsent {
		return "<absent>"
	}
	return fmt.Sprintf("%s(%v)", a.kind, a.value)
}

// AsInt returns the value of an int attribute.
func (a Attribute) AsInt() (int64, bool) {
	v, ok := a.value.(int64)
	return v, ok && a.kind == AttrInt
}

// AsFloat returns the value of a float attribute. Int attributes are converted.
func (a Attribute) AsFloat() (float64, bool) {
	switch a.kind {
	case AttrFloat:
		return a.value.(float64), true
	case AttrInt:
		return float64(a.value.(int64)), true
	default:
		return 0, false
	}
}

// AsString returns the value of a string attribute.
func (a Attribute) AsString() (string, bool) {
	v, ok := a.value.(string)
	return v, ok
}

// AsBool returns the value of a bool attribute.
func (a Attribute) AsBool() (bool, bool) {
	v, ok := a.value.(bool)
	return v, ok
}

// AsInts returns the value of an ints attribute.
func (a Attribute) AsInts() ([]int64, bool) {
	v, ok := a.value.([]int64)
	return v, ok
}

// AsFloats returns the value of a floats attribute.
func (a Attribute) AsFloats() ([]float64, bool) {
	v, ok := a.value.([]float64)
	return v, ok
}

// AsStrings returns the value of a strings attribute.
func (a Attribute) AsStrings() ([]string, bool) {
	v, ok := a.value.([]string)
	return v, ok
}

// AsBools returns the value of a bools attribute.
func (a Attribute) AsBools() ([]bool, bool) {
	v, ok := a.value.([]bool)
	return v, ok
}

// AsIntLists returns the value of a list of lists of ints, e.g. padding pairs.
func (a Attribute) AsIntLists() ([][]int64, bool) {
	v, ok := a.value.([][]int64)
	return v, ok
}

// AsSubgraph returns the index of the nested graph referenced.
func (a Attribute) AsSubgraph() (SubgraphIndex, bool) {
	v, ok := a.value.(SubgraphIndex)
	return v, ok
}

// AsSubgraphs returns the indices of the nested graphs referenced.
func (a Attribute) AsSubgraphs() ([]SubgraphIndex, bool) {
	v, ok := a.value.([]SubgraphIndex)
	return v, ok
}

// attributeFromParam converts a wire parameter. Nested jaxprs are referenced by the given subgraph
// indices, in order.
func attributeFromParam(p *jaxpr.Param, subgraphs []SubgraphIndex) Attribute {
	kind, err := p.Kind()
	if err != nil {
		// Traces are validated when loaded.
		panic(err)
	}
	switch kind {
	case jaxpr.ParamInt:
		return IntAttr(*p.Int)
	case jaxpr.ParamFloat:
		return FloatAttr(*p.Float)
	case jaxpr.ParamString:
		return StringAttr(*p.String)
	case jaxpr.ParamBool:
		return BoolAttr(*p.Bool)
	case jaxpr.ParamInts:
		return IntsAttr(slices.Clone(p.Ints)...)
	case jaxpr.ParamFloats:
		return FloatsAttr(slices.Clone(p.Floats)...)
	case jaxpr.ParamStrings:
		return StringsAttr(slices.Clone(p.Strings)...)
	case jaxpr.ParamBools:
		return BoolsAttr(slices.Clone(p.Bools)...)
	case jaxpr.ParamIntLists:
		lists := make([][]int64, len(p.IntLists))
		for i, l := range p.IntLists {
			lists[i] = slices.Clone(l)
		}
		return IntListsAttr(lists...)
	case jaxpr.ParamJaxpr:
		return SubgraphAttr(subgraphs[0])
	case jaxpr.ParamJaxprs:
		return SubgraphsAttr(subgraphs...)
	default:
		panic(fmt.Sprintf("unknown parameter kind %s", kind))
	}
}
