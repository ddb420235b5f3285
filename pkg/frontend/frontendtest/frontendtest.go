// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package frontendtest holds test utilities for packages that depend on the frontend package: a
// backend to execute converted graphs, a builder of traces and helpers to convert and run them.
package frontendtest

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/gomlx/jax-gomlx/pkg/jaxpr"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

// TestBackendName is the backend used to execute converted graphs in tests: the pure Go backend,
// which requires no installation.
const TestBackendName = "go"

var (
	backendOnce   sync.Once
	cachedBackend backends.Backend
)

// BuildTestBackend returns the backend used in tests, creating it on the first call.
func BuildTestBackend() backends.Backend {
	backendOnce.Do(func() {
		var err error
		cachedBackend, err = backends.NewWithConfig(TestBackendName)
		if err != nil {
			klog.Fatalf("Failed to create backend %q: %+v", TestBackendName, err)
		}
	})
	return cachedBackend
}

// Aval returns the abstract value of the given dtype and dimensions, in the trace format.
// A dimension of -1 is dynamic.
func Aval(dtype dtypes.DType, dims ...int) *jaxpr.AbstractValue {
	if dims == nil {
		dims = []int{}
	}
	return &jaxpr.AbstractValue{Shape: dims, DType: DTypeName(dtype)}
}

// DTypeName returns the name of dtype as written in traces (e.g. "float32").
func DTypeName(dtype dtypes.DType) string {
	return strings.ToLower(dtype.String())
}

// TraceBuilder builds jaxprs programmatically, allocating variable ids in order.
//
// Example:
//
//	b := frontendtest.NewTraceBuilder("f")
//	x := b.Input(frontendtest.Aval(dtypes.Float32, 2, 3), "x")
//	y := b.Eqn("neg", nil, []jaxpr.Var{x}, frontendtest.Aval(dtypes.Float32, 2, 3))
//	b.Output(y...)
//	trace := b.Trace()
type TraceBuilder struct {
	name   string
	nextID int
	jaxpr  *jaxpr.Jaxpr
}

// NewTraceBuilder returns a builder of an empty jaxpr.
func NewTraceBuilder(name string) *TraceBuilder {
	return &TraceBuilder{
		name: name,
		jaxpr: &jaxpr.Jaxpr{
			Invars:  []jaxpr.Var{},
			Outvars: []jaxpr.Var{},
			Eqns:    []jaxpr.Equation{},
		},
	}
}

func (b *TraceBuilder) newVar(aval *jaxpr.AbstractValue, names []string) jaxpr.Var {
	v := jaxpr.Var{ID: b.nextID, Aval: aval, Names: names}
	b.nextID++
	return v
}

// Input appends an input to the jaxpr, with the given aliases.
func (b *TraceBuilder) Input(aval *jaxpr.AbstractValue, names ...string) jaxpr.Var {
	v := b.newVar(aval, names)
	b.jaxpr.Invars = append(b.jaxpr.Invars, v)
	return v
}

// ConstVar appends a constvar. If values is not nil the jaxpr becomes closed, and the constvar holds them.
func (b *TraceBuilder) ConstVar(aval *jaxpr.AbstractValue, values []float64, names ...string) jaxpr.Var {
	v := b.newVar(aval, names)
	if values != nil {
		v.Literal = &jaxpr.Literal{Values: values}
		b.jaxpr.Closed = true
	}
	b.jaxpr.Constvars = append(b.jaxpr.Constvars, v)
	return v
}

// Literal returns an inline literal, to be used as an equation input or a jaxpr output.
func Literal(aval *jaxpr.AbstractValue, values ...float64) jaxpr.Var {
	if values == nil {
		values = []float64{}
	}
	return jaxpr.Var{Aval: aval, Literal: &jaxpr.Literal{Values: values}}
}

// IntLiteral returns an inline integer literal, holding values exactly.
func IntLiteral(aval *jaxpr.AbstractValue, values ...int64) jaxpr.Var {
	if values == nil {
		values = []int64{}
	}
	return jaxpr.Var{Aval: aval, Literal: &jaxpr.Literal{Ints: values}}
}

// None returns the "none" placeholder variable.
func None() jaxpr.Var { return jaxpr.Var{None: true} }

// Eqn appends an equation applying primitive to the inputs, and returns one new variable per output
// abstract value given. A nil output abstract value creates a dropped ("none") output.
func (b *TraceBuilder) Eqn(primitive string, params map[string]jaxpr.Param, inputs []jaxpr.Var,
	outputs ...*jaxpr.AbstractValue) []jaxpr.Var {
	outVars := make([]jaxpr.Var, len(outputs))
	for i, aval := range outputs {
		if aval == nil {
			outVars[i] = None()
			continue
		}
		outVars[i] = b.newVar(aval, nil)
	}
	b.jaxpr.Eqns = append(b.jaxpr.Eqns, jaxpr.Equation{
		Primitive:  primitive,
		Invars:     inputs,
		Outvars:    outVars,
		Params:     params,
		SourceInfo: fmt.Sprintf("%s.py:%d", b.name, len(b.jaxpr.Eqns)+1),
	})
	return outVars
}

// Eqn1 is like Eqn for equations with exactly one output.
func (b *TraceBuilder) Eqn1(primitive string, params map[string]jaxpr.Param, inputs []jaxpr.Var,
	output *jaxpr.AbstractValue) jaxpr.Var {
	return b.Eqn(primitive, params, inputs, output)[0]
}

// Name adds aliases to the variable v where it is defined (as an input, constvar or equation output) and
// where it is already used as an output of the jaxpr. It returns v with the names added.
func (b *TraceBuilder) Name(v jaxpr.Var, names ...string) jaxpr.Var {
	v.Names = append(v.Names, names...)
	allVars := [][]jaxpr.Var{b.jaxpr.Invars, b.jaxpr.Constvars, b.jaxpr.Outvars}
	for i := range b.jaxpr.Eqns {
		allVars = append(allVars, b.jaxpr.Eqns[i].Outvars)
	}
	for _, vars := range allVars {
		for i := range vars {
			if !vars[i].None && !vars[i].IsLiteral() && vars[i].ID == v.ID {
				vars[i].Names = v.Names
			}
		}
	}
	return v
}

// Output appends outputs to the jaxpr.
func (b *TraceBuilder) Output(vars ...jaxpr.Var) *TraceBuilder {
	b.jaxpr.Outvars = append(b.jaxpr.Outvars, vars...)
	return b
}

// Jaxpr returns the jaxpr built so far, e.g. to use as a parameter of an equation of another builder.
func (b *TraceBuilder) Jaxpr() *jaxpr.Jaxpr { return b.jaxpr }

// Trace returns the trace of the jaxpr built. It panics if the jaxpr is not valid.
func (b *TraceBuilder) Trace() *jaxpr.Trace {
	trace := &jaxpr.Trace{Version: jaxpr.CurrentVersion, Name: b.name, Jaxpr: b.jaxpr}
	if err := trace.Validate(); err != nil {
		panic(err)
	}
	return trace
}

// NewModel returns the InputModel of the trace.
func NewModel(trace *jaxpr.Trace) *frontend.InputModel {
	return frontend.NewInputModel(frontend.NewTraceDecoder(trace))
}

// Convert converts model into a new graph of the test backend, with the translators of registry.
func Convert(model *frontend.InputModel, registry *frontend.Registry) (*graph.Graph, []frontend.Value, error) {
	g := graph.NewGraph(BuildTestBackend(), model.Decoder().DebugInfo())
	outputs, err := frontend.NewConverter(model, registry).BuildGraph(g)
	return g, outputs, err
}

// ConvertAndRun converts model, executes it with the given inputs (anything accepted by graph.Graph.Run)
// and returns its outputs. Complex outputs are returned packed, with a trailing axis of dimension 2.
//
// It fails the test if the conversion or the execution fails.
func ConvertAndRun(t *testing.T, model *frontend.InputModel, registry *frontend.Registry, inputs ...any) []*tensors.Tensor {
	g, outputs, err := Convert(model, registry)
	require.NoError(t, err)
	var results []*tensors.Tensor
	require.NotPanics(t, func() {
		g.Compile(xslices.Map(outputs, func(v frontend.Value) *graph.Node { return v.Node })...)
		results = g.Run(inputs...)
	})
	return results
}

// RunTrace is like ConvertAndRun, for the InputModel of trace.
func RunTrace(t *testing.T, trace *jaxpr.Trace, registry *frontend.Registry, inputs ...any) []*tensors.Tensor {
	return ConvertAndRun(t, NewModel(trace), registry, inputs...)
}
