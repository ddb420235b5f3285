// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Value is the IR value standing for a traced value.
//
// GoMLX graphs are built on real tensors only, so complex values are represented as real tensors with
// an extra trailing axis of dimension 2 holding the (real, imaginary) pair. Such a Value is "complex
// marked": ComplexPart returns the dtype of its parts.
//
// Values computed from a complex value but not complex themselves (e.g. its rank) can carry a "derived"
// mark instead: they are plain real tensors, with no packed axis, that remember the complex origin.
type Value struct {
	Node *Node

	complexPart dtypes.DType

	// packed is set for complex values, and false for values only derived from one.
	packed bool
}

// NewValue wraps a plain (not complex) node.
func NewValue(node *Node) Value { return Value{Node: node} }

// ComplexValue marks node as a complex value packed on its last axis, which must have dimension 2.
func ComplexValue(node *Node) Value {
	shape := node.Shape()
	if shape.Rank() == 0 || shape.Dimensions[shape.Rank()-1] != 2 {
		exceptions.Panicf("complex value must have a trailing axis of dimension 2 holding (real, imaginary), got shape %s",
			shape)
	}
	return Value{Node: node, complexPart: node.DType(), packed: true}
}

// MarkComplex returns node marked as derived from a complex value whose parts have the given dtype.
// The node is a plain real tensor: it has no packed (real, imaginary) axis, and IsComplex is false.
func MarkComplex(node *Node, complexPart dtypes.DType) Value {
	return Value{Node: node, complexPart: complexPart}
}

// IsNone returns whether the value is absent.
func (v Value) IsNone() bool { return v.Node == nil }

// IsComplex returns whether the value is complex, packed on its last axis.
func (v Value) IsComplex() bool { return v.packed && v.complexPart != dtypes.InvalidDType }

// IsDerivedFromComplex returns whether the value is a real value marked as derived from a complex one.
// See MarkComplex.
func (v Value) IsDerivedFromComplex() bool { return !v.packed && v.complexPart != dtypes.InvalidDType }

// ComplexPart returns the dtype of the real and imaginary parts of a complex value, or of the complex
// value it was derived from. It returns InvalidDType for other values.
func (v Value) ComplexPart() dtypes.DType { return v.complexPart }

// WithNode returns a value with the same complex mark and a different node.
func (v Value) WithNode(node *Node) Value {
	return Value{Node: node, complexPart: v.complexPart, packed: v.packed}
}

func (v Value) String() string {
	if v.IsNone() {
		return "<none>"
	}
	if v.IsComplex() {
		return fmt.Sprintf("complex<%s>(%s)", v.complexPart, v.Node.Shape())
	}
	if v.IsDerivedFromComplex() {
		return fmt.Sprintf("%s (from complex<%s>)", v.Node.Shape(), v.complexPart)
	}
	return v.Node.Shape().String()
}

// Values wraps plain nodes.
func Values(nodes ...*Node) []Value {
	values := make([]Value, len(nodes))
	for i, node := range nodes {
		values[i] = NewValue(node)
	}
	return values
}
