// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"fmt"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/pkg/errors"
)

// NodeContext is what a Translator sees of the equation it converts: its decoder, and the Values
// already built for its inputs.
//
// The Must* methods and the attribute accessors panic with an error on failure (ErrArity or
// ErrAttribute), which is reported by the Converter.
type NodeContext struct {
	decoder   Decoder
	g         *Graph
	inputs    []Value
	converter *Converter
}

// NewNodeContext binds the decoder of an equation to the values of its inputs.
// Usually it is only called by the Converter, or by tests of translators.
func NewNodeContext(g *Graph, d Decoder, inputs []Value, converter *Converter) *NodeContext {
	return &NodeContext{decoder: d, g: g, inputs: inputs, converter: converter}
}

func (ctx *NodeContext) String() string {
	return fmt.Sprintf("%s(%s)", ctx.decoder.OpType(), ctx.decoder.DebugInfo())
}

// OpType returns the primitive name.
func (ctx *NodeContext) OpType() string { return ctx.decoder.OpType() }

// Decoder returns the decoder of the equation.
func (ctx *NodeContext) Decoder() Decoder { return ctx.decoder }

// Graph where the equation is being converted.
func (ctx *NodeContext) Graph() *Graph { return ctx.g }

// NumInputs returns the number of inputs of the equation, including "none" inputs.
func (ctx *NodeContext) NumInputs() int { return len(ctx.inputs) }

// CheckInputs panics with ErrArity if the number of inputs is not in [minInputs, maxInputs].
// A negative maxInputs means no upper limit.
func (ctx *NodeContext) CheckInputs(minInputs, maxInputs int) {
	n := len(ctx.inputs)
	if n < minInputs || (maxInputs >= 0 && n > maxInputs) {
		var expected string
		switch {
		case minInputs == maxInputs:
			expected = fmt.Sprintf("exactly %d", minInputs)
		case maxInputs < 0:
			expected = fmt.Sprintf("at least %d", minInputs)
		default:
			expected = fmt.Sprintf("between %d and %d", minInputs, maxInputs)
		}
		panic(errors.Wrapf(ErrArity, "%s: expected %s inputs, got %d", ctx, expected, n))
	}
}

// Input returns the value of input i. It panics if i is out of range or if the input is "none".
func (ctx *NodeContext) Input(i int) Value {
	if i < 0 || i >= len(ctx.inputs) {
		panic(errors.Wrapf(ErrArity, "%s: input #%d requested, but it has %d inputs", ctx, i, len(ctx.inputs)))
	}
	if ctx.inputs[i].IsNone() {
		panic(errors.Wrapf(ErrArity, "%s: input #%d is none", ctx, i))
	}
	return ctx.inputs[i]
}

// InputNode returns the node of input i. Complex values are returned packed, see Value.
func (ctx *NodeContext) InputNode(i int) *Node { return ctx.Input(i).Node }

// InputIsNone returns whether the input i is a "none" placeholder.
func (ctx *NodeContext) InputIsNone(i int) bool {
	if i < 0 || i >= len(ctx.inputs) {
		panic(errors.Wrapf(ErrArity, "%s: input #%d requested, but it has %d inputs", ctx, i, len(ctx.inputs)))
	}
	return ctx.inputs[i].IsNone()
}

// InputLiteral returns the constant value of input i if it is an inline literal.
func (ctx *NodeContext) InputLiteral(i int) (Literal, bool) { return ctx.decoder.InputLiteral(i) }

// Attribute returns the named attribute, possibly absent.
func (ctx *NodeContext) Attribute(name string) Attribute { return ctx.decoder.Attribute(name) }

// MustAttr returns the value of the named attribute, which must hold a T: see Attribute.Value for the
// types of each kind. It panics with ErrAttribute if the attribute is absent or holds another kind.
func MustAttr[T any](ctx *NodeContext, name string) T {
	attr := ctx.Attribute(name)
	if attr.IsAbsent() {
		panic(errors.Wrapf(ErrAttribute, "%s: missing attribute %q", ctx, name))
	}
	v, ok := attr.Value().(T)
	if !ok {
		var want T
		panic(errors.Wrapf(ErrAttribute, "%s: attribute %q is a %s, expected %T", ctx, name, attr.Kind(), want))
	}
	return v
}

// MustInt returns the named int attribute.
func (ctx *NodeContext) MustInt(name string) int { return int(MustAttr[int64](ctx, name)) }

// MustInts returns the named list of ints attribute.
func (ctx *NodeContext) MustInts(name string) []int {
	return xslices.Map(MustAttr[[]int64](ctx, name), func(v int64) int { return int(v) })
}

// MustIntLists returns the named list of lists of ints attribute.
func (ctx *NodeContext) MustIntLists(name string) [][]int {
	return xslices.Map(MustAttr[[][]int64](ctx, name), func(l []int64) []int {
		return xslices.Map(l, func(v int64) int { return int(v) })
	})
}

// MustString returns the named string attribute.
func (ctx *NodeContext) MustString(name string) string { return MustAttr[string](ctx, name) }

// MustBool returns the named bool attribute.
func (ctx *NodeContext) MustBool(name string) bool { return MustAttr[bool](ctx, name) }

// MustFloat returns the named float attribute. Int attributes are converted.
func (ctx *NodeContext) MustFloat(name string) float64 {
	attr := ctx.Attribute(name)
	v, ok := attr.AsFloat()
	if !ok {
		panic(errors.Wrapf(ErrAttribute, "%s: attribute %q is %s, expected a float", ctx, name, attr.Kind()))
	}
	return v
}

// MustSubgraph returns the index of the nested graph held by the named attribute.
func (ctx *NodeContext) MustSubgraph(name string) SubgraphIndex {
	return MustAttr[SubgraphIndex](ctx, name)
}

// MustSubgraphs returns the indices of the nested graphs held by the named attribute.
func (ctx *NodeContext) MustSubgraphs(name string) []SubgraphIndex {
	return MustAttr[[]SubgraphIndex](ctx, name)
}

// IntOr returns the named int attribute, or defaultValue if it is absent.
func (ctx *NodeContext) IntOr(name string, defaultValue int) int {
	if ctx.Attribute(name).IsAbsent() {
		return defaultValue
	}
	return ctx.MustInt(name)
}

// IntsOr returns the named list of ints attribute, or defaultValue if it is absent.
func (ctx *NodeContext) IntsOr(name string, defaultValue []int) []int {
	if ctx.Attribute(name).IsAbsent() {
		return defaultValue
	}
	return ctx.MustInts(name)
}

// BoolOr returns the named bool attribute, or defaultValue if it is absent.
func (ctx *NodeContext) BoolOr(name string, defaultValue bool) bool {
	if ctx.Attribute(name).IsAbsent() {
		return defaultValue
	}
	return ctx.MustBool(name)
}

// OutputName returns the name of the equation output i.
func (ctx *NodeContext) OutputName(i int) string { return ctx.decoder.OutputDebugName(i) }

// NameOutput aliases node with the name of the equation output i, if node has no alias yet and the
// name is free. It returns node.
func (ctx *NodeContext) NameOutput(node *Node, i int) *Node {
	name := ctx.OutputName(i)
	if node.GetAlias() == "" && ctx.g.GetNodeByAlias(name) == nil {
		node.WithAlias(name)
	}
	return node
}

// MarkNode attaches the equation's provenance to node. See Decoder.MarkNode.
func (ctx *NodeContext) MarkNode(node *Node) *Node { return ctx.decoder.MarkNode(node) }

// ConvertSubgraph converts the nested graph i of the equation in the current graph, with the given
// inputs, and returns its outputs. For open graphs the inputs are its constants followed by its inputs.
func (ctx *NodeContext) ConvertSubgraph(i SubgraphIndex, inputs []Value) []Value {
	if ctx.converter == nil {
		panic(errors.Errorf("%s: no converter available to convert subgraph #%d", ctx, i))
	}
	return ctx.converter.convertSubgraph(ctx.g, ctx.decoder, i, inputs)
}
