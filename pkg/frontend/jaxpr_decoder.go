// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/jax-gomlx/pkg/jaxpr"
	"k8s.io/klog/v2"
)

// JaxprDecoderTypeName is returned by JaxprDecoder.TypeName.
const JaxprDecoderTypeName = "jaxpr"

// JaxprDecoder implements Decoder for traces in the jaxpr package format.
//
// A JaxprDecoder either wraps a graph (a jaxpr) or one of its equations. Equation decoders and
// nested graph decoders are created on demand and cached, so each is decoded at most once.
type JaxprDecoder struct {
	graph *jaxpr.Jaxpr
	name  string

	// Set for equation decoders.
	eqn      *jaxpr.Equation
	eqnIndex int

	equations []*JaxprDecoder

	// subgraphParams lists, per subgraph index, the parameter holding it and its position in
	// a list of jaxprs (0 for a single jaxpr). Parameters are taken in sorted name order.
	subgraphParams []subgraphParam
	subgraphs      []*JaxprDecoder
}

type subgraphParam struct {
	name     string
	position int
}

var _ Decoder = (*JaxprDecoder)(nil)

// NewJaxprDecoder returns the decoder of the graph j. The name is used for debugging.
func NewJaxprDecoder(j *jaxpr.Jaxpr, name string) *JaxprDecoder {
	return &JaxprDecoder{graph: j, name: name}
}

// NewTraceDecoder returns the decoder for the top-level graph of the trace.
func NewTraceDecoder(trace *jaxpr.Trace) *JaxprDecoder {
	name := trace.Name
	if name == "" {
		name = "jaxpr"
	}
	return NewJaxprDecoder(trace.Jaxpr, name)
}

func (d *JaxprDecoder) isGraph() bool { return d.eqn == nil }

func (d *JaxprDecoder) inputVars() []jaxpr.Var {
	if d.isGraph() {
		return d.graph.Invars
	}
	return d.eqn.Invars
}

func (d *JaxprDecoder) outputVars() []jaxpr.Var {
	if d.isGraph() {
		return d.graph.Outvars
	}
	return d.eqn.Outvars
}

func (d *JaxprDecoder) input(i int) *jaxpr.Var {
	vars := d.inputVars()
	if i < 0 || i >= len(vars) {
		exceptions.Panicf("%s: input #%d out of range, it has %d inputs", d, i, len(vars))
	}
	return &vars[i]
}

func (d *JaxprDecoder) output(i int) *jaxpr.Var {
	vars := d.outputVars()
	if i < 0 || i >= len(vars) {
		exceptions.Panicf("%s: output #%d out of range, it has %d outputs", d, i, len(vars))
	}
	return &vars[i]
}

// String implements fmt.Stringer.
func (d *JaxprDecoder) String() string {
	if d.isGraph() {
		return fmt.Sprintf("jaxpr %q", d.name)
	}
	return fmt.Sprintf("%s: equation #%d (%s)", d.name, d.eqnIndex, d.eqn.Primitive)
}

// OpType implements Decoder.
func (d *JaxprDecoder) OpType() string {
	if d.isGraph() {
		return GraphOpType
	}
	return d.eqn.Primitive
}

// Schema implements Decoder.
func (d *JaxprDecoder) Schema() string {
	if d.isGraph() {
		return ""
	}
	return d.eqn.Schema
}

// DebugInfo implements Decoder.
func (d *JaxprDecoder) DebugInfo() string {
	if d.isGraph() {
		return d.name
	}
	parts := make([]string, 0, 2)
	if d.eqn.SourceInfo != "" {
		parts = append(parts, d.eqn.SourceInfo)
	}
	if d.eqn.NameStack != "" {
		parts = append(parts, "["+d.eqn.NameStack+"]")
	}
	return strings.Join(parts, " ")
}

// varID returns the id of a var, or NoID for literals and none.
func varID(v *jaxpr.Var) int {
	if v.None || v.IsLiteral() {
		return NoID
	}
	return v.ID
}

func varDebugName(v *jaxpr.Var) string {
	switch {
	case v.None:
		return "_"
	case v.IsLiteral():
		return "literal"
	case len(v.Names) > 0:
		return v.Names[0]
	default:
		return strconv.Itoa(v.ID)
	}
}

// NumInputs implements Decoder.
func (d *JaxprDecoder) NumInputs() int { return len(d.inputVars()) }

// Inputs implements Decoder.
func (d *JaxprDecoder) Inputs() []int {
	vars := d.inputVars()
	ids := make([]int, len(vars))
	for i := range vars {
		ids[i] = varID(&vars[i])
	}
	return ids
}

// InputHasAval implements Decoder.
func (d *JaxprDecoder) InputHasAval(i int) bool { return d.input(i).Aval != nil }

// InputAval implements Decoder.
func (d *JaxprDecoder) InputAval(i int) AbstractValue { return abstractValueFromJaxpr(d.input(i).Aval) }

// InputIsNone implements Decoder.
func (d *JaxprDecoder) InputIsNone(i int) bool { return d.input(i).None }

// InputDebugName implements Decoder.
func (d *JaxprDecoder) InputDebugName(i int) string { return varDebugName(d.input(i)) }

// InputSignatureName implements Decoder. It defaults to the debug name.
func (d *JaxprDecoder) InputSignatureName(i int) string {
	v := d.input(i)
	if v.Signature != "" {
		return v.Signature
	}
	return varDebugName(v)
}

// InputNames implements Decoder.
func (d *JaxprDecoder) InputNames(i int) []string { return slices.Clone(d.input(i).Names) }

// InputShape implements Decoder.
func (d *JaxprDecoder) InputShape(i int) PartialShape { return d.InputAval(i).Shape }

// InputType implements Decoder.
func (d *JaxprDecoder) InputType(i int) ElementType { return d.InputAval(i).Type }

// InputLiteral implements Decoder. It panics if the literal doesn't match its abstract value.
func (d *JaxprDecoder) InputLiteral(i int) (Literal, bool) { return varLiteral(d.input(i)) }

func varLiteral(v *jaxpr.Var) (Literal, bool) {
	if !v.IsLiteral() {
		return Literal{}, false
	}
	lit, err := literalFromJaxpr(v.Literal, abstractValueFromJaxpr(v.Aval))
	if err != nil {
		panic(err)
	}
	return lit, true
}

// NamedInput implements Decoder.
func (d *JaxprDecoder) NamedInput(name string) (int, bool) {
	for i, v := range d.inputVars() {
		if slices.Contains(v.Names, name) {
			return i, true
		}
	}
	return 0, false
}

// NumOutputs implements Decoder.
func (d *JaxprDecoder) NumOutputs() int { return len(d.outputVars()) }

// Outputs implements Decoder.
func (d *JaxprDecoder) Outputs() []int {
	vars := d.outputVars()
	ids := make([]int, len(vars))
	for i := range vars {
		ids[i] = varID(&vars[i])
	}
	return ids
}

// Output implements Decoder.
func (d *JaxprDecoder) Output(i int) int { return varID(d.output(i)) }

// OutputIndex implements Decoder.
func (d *JaxprDecoder) OutputIndex(id int) (int, bool) {
	if id == NoID {
		return 0, false
	}
	for i := range d.outputVars() {
		if d.Output(i) == id {
			return i, true
		}
	}
	return 0, false
}

// OutputIsNone implements Decoder.
func (d *JaxprDecoder) OutputIsNone(i int) bool { return d.output(i).None }

// OutputLiteral implements Decoder. It panics if the literal doesn't match its abstract value.
func (d *JaxprDecoder) OutputLiteral(i int) (Literal, bool) { return varLiteral(d.output(i)) }

// OutputDebugName implements Decoder.
func (d *JaxprDecoder) OutputDebugName(i int) string { return varDebugName(d.output(i)) }

// OutputNames implements Decoder.
func (d *JaxprDecoder) OutputNames(i int) []string { return slices.Clone(d.output(i).Names) }

// OutputShape implements Decoder.
func (d *JaxprDecoder) OutputShape(i int) PartialShape {
	return abstractValueFromJaxpr(d.output(i).Aval).Shape
}

// OutputType implements Decoder.
func (d *JaxprDecoder) OutputType(i int) ElementType {
	return abstractValueFromJaxpr(d.output(i).Aval).Type
}

// Effects implements Decoder.
func (d *JaxprDecoder) Effects() []Effect {
	src := d.graph.Effects
	if !d.isGraph() {
		src = d.eqn.Effects
	}
	effects := make([]Effect, len(src))
	for i, e := range src {
		effects[i] = Effect{Kind: e.Kind, Description: e.Description}
	}
	return effects
}

// IsClosed implements Decoder.
func (d *JaxprDecoder) IsClosed() bool { return d.graph.Closed }

// NumConstVars implements Decoder. Equations have no constants.
func (d *JaxprDecoder) NumConstVars() int {
	if !d.isGraph() {
		return 0
	}
	return len(d.graph.Constvars)
}

// ConstVar implements Decoder.
func (d *JaxprDecoder) ConstVar(i int) ConstVar {
	if i < 0 || i >= d.NumConstVars() {
		exceptions.Panicf("%s: constvar #%d out of range, it has %d constvars", d, i, d.NumConstVars())
	}
	v := &d.graph.Constvars[i]
	cv := ConstVar{ID: v.ID, Names: slices.Clone(v.Names), Aval: abstractValueFromJaxpr(v.Aval)}
	if lit, ok := varLiteral(v); ok {
		cv.Value = &lit
	}
	return cv
}

// NumEquations implements Decoder.
func (d *JaxprDecoder) NumEquations() int {
	if !d.isGraph() {
		return 0
	}
	return len(d.graph.Eqns)
}

// Equation implements Decoder.
func (d *JaxprDecoder) Equation(i int) Decoder {
	if i < 0 || i >= d.NumEquations() {
		exceptions.Panicf("%s: equation #%d out of range, it has %d equations", d, i, d.NumEquations())
	}
	if d.equations == nil {
		d.equations = make([]*JaxprDecoder, len(d.graph.Eqns))
	}
	if d.equations[i] == nil {
		d.equations[i] = &JaxprDecoder{graph: d.graph, name: d.name, eqn: &d.graph.Eqns[i], eqnIndex: i}
	}
	return d.equations[i]
}

// enumerateSubgraphs lists the subgraph parameters, without decoding them.
func (d *JaxprDecoder) enumerateSubgraphs() {
	if d.subgraphParams != nil || d.isGraph() {
		return
	}
	d.subgraphParams = []subgraphParam{}
	for _, name := range slices.Sorted(maps.Keys(d.eqn.Params)) {
		p := d.eqn.Params[name]
		switch {
		case p.Jaxpr != nil:
			d.subgraphParams = append(d.subgraphParams, subgraphParam{name: name})
		case p.Jaxprs != nil:
			for pos := range p.Jaxprs {
				d.subgraphParams = append(d.subgraphParams, subgraphParam{name: name, position: pos})
			}
		}
	}
	d.subgraphs = make([]*JaxprDecoder, len(d.subgraphParams))
}

// NumSubgraphs implements Decoder.
func (d *JaxprDecoder) NumSubgraphs() int {
	d.enumerateSubgraphs()
	return len(d.subgraphParams)
}

// Subgraph implements Decoder.
func (d *JaxprDecoder) Subgraph(i SubgraphIndex) Decoder {
	n := d.NumSubgraphs()
	if i < 0 || int(i) >= n {
		exceptions.Panicf("%s: subgraph #%d out of range, it has %d subgraphs", d, i, n)
	}
	if d.subgraphs[i] == nil {
		ref := d.subgraphParams[i]
		p := d.eqn.Params[ref.name]
		sub := p.Jaxpr
		name := fmt.Sprintf("%s/%s_%d/%s", d.name, d.eqn.Primitive, d.eqnIndex, ref.name)
		if p.Jaxprs != nil {
			sub = p.Jaxprs[ref.position]
			name = fmt.Sprintf("%s[%d]", name, ref.position)
		}
		klog.V(2).Infof("decoding subgraph %s", name)
		d.subgraphs[i] = NewJaxprDecoder(sub, name)
	}
	return d.subgraphs[i]
}

// DecodedSubgraphs reports, per subgraph index, whether the subgraph has already been decoded.
func (d *JaxprDecoder) DecodedSubgraphs() []bool {
	decoded := make([]bool, d.NumSubgraphs())
	for i, sub := range d.subgraphs {
		decoded[i] = sub != nil
	}
	return decoded
}

// Attribute implements Decoder.
func (d *JaxprDecoder) Attribute(name string) Attribute {
	if d.isGraph() {
		return Attribute{}
	}
	p, found := d.eqn.Params[name]
	if !found {
		return Attribute{}
	}
	var indices []SubgraphIndex
	if p.Jaxpr != nil || p.Jaxprs != nil {
		d.enumerateSubgraphs()
		for i, ref := range d.subgraphParams {
			if ref.name == name {
				indices = append(indices, SubgraphIndex(i))
			}
		}
	}
	return attributeFromParam(&p, indices)
}

// AttributeNames implements Decoder. Names are sorted.
func (d *JaxprDecoder) AttributeNames() []string {
	if d.isGraph() {
		return nil
	}
	return slices.Sorted(maps.Keys(d.eqn.Params))
}

// MarkNode implements Decoder: it aliases node as "<primitive>_<equation index>", unless node already
// has an alias or the alias is taken (e.g. an equation returning its input unchanged).
func (d *JaxprDecoder) MarkNode(node *Node) *Node {
	if d.isGraph() || node == nil || node.GetAlias() != "" {
		return node
	}
	alias := fmt.Sprintf("%s_%d", d.eqn.Primitive, d.eqnIndex)
	if node.Graph().GetNodeByAlias(alias) != nil {
		return node
	}
	node.WithAlias(alias)
	if klog.V(2).Enabled() {
		klog.Infof("%s: %s -> %s", d.DebugInfo(), node.GetAlias(), node.Shape())
	}
	return node
}

// TypeName implements Decoder.
func (d *JaxprDecoder) TypeName() string { return JaxprDecoderTypeName }
