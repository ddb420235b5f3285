// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"iter"

	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// NoID is returned as the id of input or output slots that don't reference a traced value: literals
// and "none" placeholders.
const NoID = -1

// Effect is a side effect declared by an equation or graph: an ordering or external interaction
// constraint not visible in the data-flow edges.
type Effect struct {
	Kind        string
	Description string
}

// ConstVar is a constant of a graph. Closed graphs carry its value, open graphs receive it from the caller.
type ConstVar struct {
	ID    int
	Names []string
	Aval  AbstractValue

	// Value is set for closed graphs.
	Value *Literal
}

// Decoder is a read-only view of one node of a traced graph: either an equation, or the graph
// itself (a pseudo-node whose inputs and outputs are the graph's).
//
// Indices of inputs, outputs, equations and subgraphs out of range are programmer errors and panic.
// Missing attributes are returned as absent Attribute values.
type Decoder interface {
	// OpType is the primitive name of an equation, or GraphOpType for a graph.
	OpType() string

	// Schema is the declared signature of the primitive, if known.
	Schema() string

	// DebugInfo is free-form provenance text, e.g. the Python source location.
	DebugInfo() string

	NumInputs() int

	// Inputs returns the ids of the inputs, with NoID for literals and "none" inputs.
	Inputs() []int
	InputHasAval(i int) bool
	InputAval(i int) AbstractValue
	InputIsNone(i int) bool
	InputDebugName(i int) string
	InputSignatureName(i int) string
	InputNames(i int) []string
	InputShape(i int) PartialShape
	InputType(i int) ElementType

	// InputLiteral returns the value of an inline literal input, and false if the input is not a literal.
	InputLiteral(i int) (Literal, bool)

	// NamedInput returns the index of the input with the given alias name.
	NamedInput(name string) (int, bool)

	NumOutputs() int

	// Outputs returns the ids of the outputs, with NoID for "none" (dropped) outputs.
	Outputs() []int
	Output(i int) int
	OutputIndex(id int) (int, bool)
	OutputIsNone(i int) bool

	// OutputLiteral returns the value of a graph output that is a constant, and false otherwise.
	OutputLiteral(i int) (Literal, bool)
	OutputDebugName(i int) string
	OutputNames(i int) []string
	OutputShape(i int) PartialShape
	OutputType(i int) ElementType

	// Effects declared by the equation or graph.
	Effects() []Effect

	// IsClosed reports whether the graph (or the graph enclosing the equation) is closed.
	IsClosed() bool

	NumConstVars() int
	ConstVar(i int) ConstVar

	// NumEquations is the number of equations of a graph. It is 0 for equations.
	NumEquations() int
	Equation(i int) Decoder

	// NumSubgraphs is the number of nested graphs an equation carries in its attributes.
	NumSubgraphs() int

	// Subgraph returns the decoder of the nested graph. It is decoded on first access.
	Subgraph(i SubgraphIndex) Decoder

	// Attribute returns the named static attribute, or an absent Attribute.
	Attribute(name string) Attribute
	AttributeNames() []string

	// MarkNode attaches the equation's provenance to node, and returns node.
	MarkNode(node *Node) *Node

	// TypeName identifies the Decoder implementation.
	TypeName() string
}

// GraphOpType is the OpType of decoders of graphs.
const GraphOpType = "jaxpr"

// Subgraphs iterates over the nested graphs of an equation, decoding each one only when reached.
func Subgraphs(d Decoder) iter.Seq2[SubgraphIndex, Decoder] {
	return func(yield func(SubgraphIndex, Decoder) bool) {
		for i := range d.NumSubgraphs() {
			idx := SubgraphIndex(i)
			if !yield(idx, d.Subgraph(idx)) {
				return
			}
		}
	}
}

// WalkSubgraphs iterates depth-first over all graphs nested, directly or transitively, in d, yielding
// each with its nesting depth (1 for direct subgraphs).
//
// For a graph decoder, the subgraphs of each of its equations are visited in order. Graphs are
// decoded only when reached, so stopping the iteration early leaves the remaining ones undecoded.
func WalkSubgraphs(d Decoder) iter.Seq2[int, Decoder] {
	return func(yield func(int, Decoder) bool) {
		walkSubgraphs(d, 1, yield)
	}
}

func walkSubgraphs(d Decoder, depth int, yield func(int, Decoder) bool) bool {
	for _, sub := range Subgraphs(d) {
		if !yield(depth, sub) || !walkSubgraphs(sub, depth+1, yield) {
			return false
		}
	}
	for i := range d.NumEquations() {
		if !walkSubgraphs(d.Equation(i), depth, yield) {
			return false
		}
	}
	return true
}
