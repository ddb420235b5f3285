// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Converter builds a GoMLX graph from an InputModel, translating each equation with the translators
// of a Registry.
//
// Conversion is all-or-nothing: if any equation fails, an error is returned and the graph being built
// should be discarded.
type Converter struct {
	model    *InputModel
	registry *Registry

	name       string
	aliasScope string

	numSubgraphCalls int
}

// NewConverter creates a Converter for model, using the translators in registry.
func NewConverter(model *InputModel, registry *Registry) *Converter {
	return &Converter{model: model, registry: registry, name: "jaxpr"}
}

// WithName sets the name used for the graph in logs and errors. Default is "jaxpr".
func (c *Converter) WithName(name string) *Converter {
	c.name = name
	return c
}

// WithAliasScope sets an alias scope under which all the node aliases of the converted graph are
// created. See Graph.PushAliasScope.
func (c *Converter) WithAliasScope(scope string) *Converter {
	c.aliasScope = scope
	return c
}

// BuildGraph creates one graph.Parameter per current input of the model (see InputModel.AllInputs), in
// order, converts the equations and returns the values of the model outputs.
//
// Inputs must have static shapes and dtypes. Complex inputs are fed as real tensors with a trailing
// axis of dimension 2, holding the (real, imaginary) pairs.
func (c *Converter) BuildGraph(g *Graph) (outputs []Value, err error) {
	err = exceptions.TryCatch[error](func() {
		inputs := c.model.AllInputs()
		values := make([]Value, len(inputs))
		usedNames := make(map[string]bool, len(inputs))
		for i, p := range inputs {
			shape, err := c.model.Shape(p)
			if err != nil {
				panic(errors.Wrapf(ErrUnsupported, "input #%d must have a static shape and dtype: %v", i, err))
			}
			name := p.Name()
			if usedNames[name] {
				name = fmt.Sprintf("%s_%d", name, p.TensorID())
			}
			usedNames[name] = true
			if shape.DType.IsComplex() {
				realShape := shapes.Make(shape.DType.RealDType(), append(slices.Clone(shape.Dimensions), 2)...)
				values[i] = ComplexValue(Parameter(g, name, realShape))
			} else {
				values[i] = NewValue(Parameter(g, name, shape))
			}
		}
		outputs = c.build(g, values)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to convert %s", c.name)
	}
	return outputs, nil
}

// CallGraph converts the model into g using the given values for its current inputs (InputModel.AllInputs),
// and returns the values of the model outputs.
func (c *Converter) CallGraph(g *Graph, inputs []Value) (outputs []Value, err error) {
	err = exceptions.TryCatch[error](func() {
		if len(inputs) != len(c.model.inputs) {
			panic(errors.Wrapf(ErrArity, "expected %d inputs, got %d", len(c.model.inputs), len(inputs)))
		}
		outputs = c.build(g, inputs)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to convert %s", c.name)
	}
	return outputs, nil
}

// build converts the top-level graph, given the values of the current inputs.
func (c *Converter) build(g *Graph, inputs []Value) []Value {
	if c.aliasScope != "" {
		g.PushAliasScope(c.aliasScope)
		defer g.PopAliasScope()
	}
	d := c.model.Decoder()
	klog.V(1).Infof("converting %s: %d equations, %d inputs", c.name, d.NumEquations(), len(inputs))
	env := make(map[int]Value)
	for i, p := range c.model.AllInputs() {
		env[p.TensorID()] = inputs[i]
	}
	for _, p := range c.model.FrozenInputs() {
		desc, _ := c.model.Descriptor(p.TensorID())
		env[p.TensorID()] = constantValue(g, Literal{Tensor: desc.Value})
	}

	// Values of all outputs of the graph, indexed by their position in the decoder.
	graphOutputs := c.convertGraph(g, d, env)

	places := c.model.Outputs()
	outputs := make([]Value, len(places))
	for i, p := range places {
		outputs[i] = graphOutputs[p.entry().position]
	}
	return outputs
}

// constantValue materializes a constant, unpacking complex tensors.
func constantValue(g *Graph, lit Literal) Value {
	node := ConstTensor(g, lit.Tensor)
	if lit.IsComplex {
		return ComplexValue(node)
	}
	if node.DType().IsComplex() {
		return PackComplex(node)
	}
	return NewValue(node)
}

// PackComplex converts a GoMLX complex node to a complex marked Value.
func PackComplex(x *Node) Value {
	if !x.DType().IsComplex() {
		exceptions.Panicf("PackComplex requires a complex input, got %s", x.Shape())
	}
	return ComplexValue(Stack([]*Node{Real(x), Imag(x)}, x.Rank()))
}

// UnpackComplex converts a complex marked Value back to a GoMLX complex node.
func UnpackComplex(v Value) *Node {
	if !v.IsComplex() {
		exceptions.Panicf("UnpackComplex requires a complex value, got %s", v)
	}
	x := v.Node
	lastAxis := x.Rank() - 1
	re := Squeeze(SliceAxis(x, lastAxis, AxisRange(0, 1)), lastAxis)
	im := Squeeze(SliceAxis(x, lastAxis, AxisRange(1, 2)), lastAxis)
	return Complex(re, im)
}

// convertGraph converts the equations of d, given env with the values of its inputs (and of its
// constants, for open graphs). It returns the values of its outputs.
func (c *Converter) convertGraph(g *Graph, d Decoder, env map[int]Value) []Value {
	for i := range d.NumConstVars() {
		cv := d.ConstVar(i)
		if cv.Value != nil {
			env[cv.ID] = constantValue(g, *cv.Value)
		} else if _, found := env[cv.ID]; !found {
			panic(errors.Wrapf(ErrUndefinedValue, "%s: constvar #%d (id %d) has no value", d.DebugInfo(), i, cv.ID))
		}
	}
	for i := range d.NumEquations() {
		c.convertEquation(g, d.Equation(i), i, env)
	}
	outputs := make([]Value, d.NumOutputs())
	for i, id := range d.Outputs() {
		switch {
		case d.OutputIsNone(i):
		case id == NoID:
			lit, _ := d.OutputLiteral(i)
			outputs[i] = constantValue(g, lit)
		default:
			v, found := env[id]
			if !found {
				panic(errors.Wrapf(ErrUndefinedValue, "%s: output #%d (id %d) was never computed", d.DebugInfo(), i, id))
			}
			outputs[i] = v
		}
	}
	return outputs
}

// convertEquation translates one equation and binds its outputs in env.
func (c *Converter) convertEquation(g *Graph, d Decoder, eqnIdx int, env map[int]Value) {
	opType := d.OpType()
	wrapErr := func(err error) error {
		info := d.DebugInfo()
		if info != "" {
			info = " at " + info
		}
		return errors.WithMessagef(err, "equation #%d (%s)%s", eqnIdx, opType, info)
	}
	translator, found := c.registry.Lookup(opType)
	if !found {
		panic(wrapErr(errors.Wrapf(ErrUnknownOp, "primitive %q", opType)))
	}

	inputs := make([]Value, d.NumInputs())
	for i, id := range d.Inputs() {
		switch {
		case d.InputIsNone(i):
		case id == NoID:
			lit, _ := d.InputLiteral(i)
			inputs[i] = constantValue(g, lit)
		default:
			v, found := env[id]
			if !found {
				panic(wrapErr(errors.Wrapf(ErrUndefinedValue, "input #%d (id %d)", i, id)))
			}
			inputs[i] = v
		}
	}

	var outputs []Value
	ctx := NewNodeContext(g, d, inputs, c)
	err := exceptions.TryCatch[error](func() { outputs = translator(ctx) })
	if err != nil {
		panic(wrapErr(err))
	}
	if len(outputs) < d.NumOutputs() {
		panic(wrapErr(errors.Errorf("translator returned %d values, but the equation has %d outputs",
			len(outputs), d.NumOutputs())))
	}
	for i, id := range d.Outputs() {
		if d.OutputIsNone(i) {
			continue
		}
		v := outputs[i]
		if v.IsNone() {
			panic(wrapErr(errors.Errorf("translator returned no value for output #%d", i)))
		}
		if err := checkOutputType(d, i, v); err != nil {
			panic(wrapErr(err))
		}
		d.MarkNode(v.Node)
		env[id] = v
	}
}

// checkOutputType checks the dtype of the value against the declared dtype of the output, when static.
// Complex values must be declared complex, with the dtype of their parts matching.
func checkOutputType(d Decoder, i int, v Value) error {
	declared := d.OutputType(i)
	if !declared.IsStatic() {
		return nil
	}
	got := v.Node.DType()
	want := declared.DType
	if want.IsComplex() || v.IsComplex() {
		if !want.IsComplex() || !v.IsComplex() || want.RealDType() != got {
			return errors.Errorf("output #%d is declared %s, but translator returned %s", i, want, v)
		}
		return nil
	}
	if got != want {
		return errors.Errorf("output #%d is declared %s, but translator returned %s", i, want, got)
	}
	return nil
}

// convertSubgraph converts the nested graph idx of the equation d, with the given inputs.
func (c *Converter) convertSubgraph(g *Graph, d Decoder, idx SubgraphIndex, inputs []Value) []Value {
	sub := d.Subgraph(idx)
	env := make(map[int]Value)
	ids := sub.Inputs()
	if !sub.IsClosed() {
		constIDs := make([]int, sub.NumConstVars())
		for i := range constIDs {
			constIDs[i] = sub.ConstVar(i).ID
		}
		ids = append(constIDs, ids...)
	}
	if len(inputs) != len(ids) {
		panic(errors.Wrapf(ErrArity, "subgraph #%d of %s expects %d inputs, got %d", idx, d.OpType(), len(ids), len(inputs)))
	}
	for i, id := range ids {
		env[id] = inputs[i]
	}
	scope := fmt.Sprintf("%s_%d", d.OpType(), c.numSubgraphCalls)
	c.numSubgraphCalls++
	g.PushAliasScope(scope)
	defer g.PopAliasScope()
	klog.V(2).Infof("converting subgraph %s (%d equations) in scope %q", sub.DebugInfo(), sub.NumEquations(), scope)
	return c.convertGraph(g, sub, env)
}
