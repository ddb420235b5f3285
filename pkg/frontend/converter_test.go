// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/gomlx/jax-gomlx/pkg/frontend/frontendtest"
	"github.com/gomlx/jax-gomlx/pkg/jaxpr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRegistry returns a registry with a few plain (not complex aware) translators.
func testRegistry() *frontend.Registry {
	binary := func(fn func(lhs, rhs *Node) *Node) frontend.Translator {
		return func(ctx *frontend.NodeContext) []frontend.Value {
			ctx.CheckInputs(2, 2)
			return frontend.Values(fn(ctx.InputNode(0), ctx.InputNode(1)))
		}
	}
	return frontend.NewRegistry().
		Register("add", binary(Add)).
		Register("mul", binary(Mul)).
		Register("neg", func(ctx *frontend.NodeContext) []frontend.Value {
			ctx.CheckInputs(1, 1)
			return frontend.Values(Neg(ctx.InputNode(0)))
		}).
		Register("pjit", func(ctx *frontend.NodeContext) []frontend.Value {
			inputs := make([]frontend.Value, ctx.NumInputs())
			for i := range inputs {
				inputs[i] = ctx.Input(i)
			}
			return ctx.ConvertSubgraph(ctx.MustSubgraph("jaxpr"), inputs)
		})
}

func TestRegistry(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, []string{"add", "mul", "neg", "pjit"}, r.OpTypes())
	_, found := r.Lookup("add")
	assert.True(t, found)
	_, found = r.Lookup("sub")
	assert.False(t, found)
	// Replacing a translator is allowed.
	r.Register("add", func(ctx *frontend.NodeContext) []frontend.Value { return nil })
	assert.Len(t, r.OpTypes(), 4)
}

var vec3 = frontendtest.Aval(dtypes.Float32, 3)

// addTrace returns a trace computing (x+y, 2.0, x).
func addTrace() *jaxpr.Trace {
	b := frontendtest.NewTraceBuilder("add")
	x := b.Input(vec3, "x")
	y := b.Input(vec3, "y")
	z := b.Eqn1("add", nil, []jaxpr.Var{x, y}, vec3)
	b.Output(b.Name(z, "z"), frontendtest.Literal(frontendtest.Aval(dtypes.Float32), 2), x)
	return b.Trace()
}

func TestConverterBuildGraph(t *testing.T) {
	model := frontendtest.NewModel(addTrace())
	outputs := frontendtest.ConvertAndRun(t, model, testRegistry(), []float32{1, 2, 3}, []float32{10, 20, 30})
	require.Len(t, outputs, 3)
	assert.Equal(t, []float32{11, 22, 33}, outputs[0].Value())
	assert.Equal(t, float32(2), outputs[1].Value())
	assert.Equal(t, []float32{1, 2, 3}, outputs[2].Value())
}

func TestConverterProvenance(t *testing.T) {
	model := frontendtest.NewModel(addTrace())
	g := NewGraph(frontendtest.BuildTestBackend(), "provenance")
	outputs, err := frontend.NewConverter(model, testRegistry()).WithAliasScope("model").BuildGraph(g)
	require.NoError(t, err)
	assert.Same(t, outputs[0].Node, g.GetNodeByAlias("/model/add_0"))
	assert.Nil(t, g.GetNodeByAlias("add_0"), "aliases are created under the scope")
}

func TestConverterOverrides(t *testing.T) {
	t.Run("frozen-input", func(t *testing.T) {
		model := frontendtest.NewModel(addTrace())
		y, _ := model.PlaceByName("y")
		require.NoError(t, model.SetTensorValue(y, float32Bytes(100, 200, 300)))
		outputs := frontendtest.ConvertAndRun(t, model, testRegistry(), []float32{1, 2, 3})
		assert.Equal(t, []float32{101, 202, 303}, outputs[0].Value())
	})

	t.Run("reordered", func(t *testing.T) {
		model := frontendtest.NewModel(addTrace())
		// Names of outputs shadow the names of inputs, so places are taken by position.
		inputs, outputs := model.Inputs(), model.Outputs()
		require.NoError(t, model.OverrideAllInputs([]frontend.Place{inputs[1], inputs[0]}))
		require.NoError(t, model.OverrideAllOutputs([]frontend.Place{outputs[2], outputs[0]}))
		results := frontendtest.ConvertAndRun(t, model, testRegistry(), []float32{10, 20, 30}, []float32{1, 2, 3})
		require.Len(t, results, 2)
		// Inputs are now (y, x).
		assert.Equal(t, []float32{1, 2, 3}, results[0].Value())
		assert.Equal(t, []float32{11, 22, 33}, results[1].Value())
	})

	t.Run("dynamic-shape", func(t *testing.T) {
		b := frontendtest.NewTraceBuilder("dynamic")
		x := b.Input(frontendtest.Aval(dtypes.Float32, -1), "x")
		b.Output(b.Eqn1("neg", nil, []jaxpr.Var{x}, frontendtest.Aval(dtypes.Float32, -1)))
		model := frontendtest.NewModel(b.Trace())
		_, _, err := frontendtest.Convert(model, testRegistry())
		require.ErrorIs(t, err, frontend.ErrUnsupported)

		p, _ := model.PlaceByName("x")
		require.NoError(t, model.SetPartialShape(p, frontend.StaticShape(2)))
		outputs := frontendtest.ConvertAndRun(t, model, testRegistry(), []float32{1, -1})
		assert.Equal(t, []float32{-1, 1}, outputs[0].Value())
	})
}

func TestConverterConstants(t *testing.T) {
	t.Run("closed", func(t *testing.T) {
		b := frontendtest.NewTraceBuilder("closed")
		c := b.ConstVar(vec3, []float64{1, 10, 100}, "c")
		x := b.Input(vec3, "x")
		b.Output(b.Eqn1("mul", nil, []jaxpr.Var{x, c}, vec3))
		outputs := frontendtest.RunTrace(t, b.Trace(), testRegistry(), []float32{2, 3, 4})
		assert.Equal(t, []float32{2, 30, 400}, outputs[0].Value())
	})

	t.Run("open-without-value", func(t *testing.T) {
		b := frontendtest.NewTraceBuilder("open")
		c := b.ConstVar(vec3, nil, "c")
		x := b.Input(vec3, "x")
		b.Output(b.Eqn1("mul", nil, []jaxpr.Var{x, c}, vec3))
		_, _, err := frontendtest.Convert(frontendtest.NewModel(b.Trace()), testRegistry())
		require.ErrorIs(t, err, frontend.ErrUndefinedValue)
	})

	t.Run("literal-input", func(t *testing.T) {
		b := frontendtest.NewTraceBuilder("literal")
		x := b.Input(vec3, "x")
		b.Output(b.Eqn1("add", nil, []jaxpr.Var{x, frontendtest.Literal(vec3, 1, 2, 3)}, vec3))
		outputs := frontendtest.RunTrace(t, b.Trace(), testRegistry(), []float32{1, 1, 1})
		assert.Equal(t, []float32{2, 3, 4}, outputs[0].Value())
	})

	// Literals go through the JSON codec first: values a float64 list can't carry must survive it.
	jsonRoundTrip := func(t *testing.T, trace *jaxpr.Trace) *jaxpr.Trace {
		var buf bytes.Buffer
		require.NoError(t, jaxpr.Encode(&buf, jaxpr.FormatJSON, trace))
		decoded, err := jaxpr.Decode(&buf, jaxpr.FormatJSON)
		require.NoError(t, err)
		return decoded
	}

	t.Run("int64-literal-above-2^53", func(t *testing.T) {
		const big = int64(1)<<53 + 1
		i64 := frontendtest.Aval(dtypes.Int64, 2)
		b := frontendtest.NewTraceBuilder("int64")
		x := b.Input(i64, "x")
		b.Output(b.Eqn1("add", nil, []jaxpr.Var{x, frontendtest.IntLiteral(i64, big, -big)}, i64))
		outputs := frontendtest.RunTrace(t, jsonRoundTrip(t, b.Trace()), testRegistry(), []int64{0, 2})
		assert.Equal(t, []int64{big, 2 - big}, outputs[0].Value())
	})

	t.Run("non-finite-literal", func(t *testing.T) {
		b := frontendtest.NewTraceBuilder("non-finite")
		x := b.Input(vec3, "x")
		b.Output(b.Eqn1("add", nil, []jaxpr.Var{x, frontendtest.Literal(vec3, math.Inf(1), math.Inf(-1), math.NaN())}, vec3))
		outputs := frontendtest.RunTrace(t, jsonRoundTrip(t, b.Trace()), testRegistry(), []float32{1, 1, 1})
		got := outputs[0].Value().([]float32)
		assert.True(t, math.IsInf(float64(got[0]), 1))
		assert.True(t, math.IsInf(float64(got[1]), -1))
		assert.True(t, math.IsNaN(float64(got[2])))
	})
}

func TestConverterSubgraphs(t *testing.T) {
	inner := frontendtest.NewTraceBuilder("inner")
	c := inner.ConstVar(frontendtest.Aval(dtypes.Float32), nil, "scale")
	a := inner.Input(vec3)
	inner.Output(inner.Eqn1("mul", nil, []jaxpr.Var{a, c}, vec3))

	b := frontendtest.NewTraceBuilder("outer")
	x := b.Input(vec3, "x")
	two := frontendtest.Literal(frontendtest.Aval(dtypes.Float32), 2)
	// Open jaxprs receive their constants before their inputs.
	y := b.Eqn1("pjit", map[string]jaxpr.Param{"jaxpr": jaxpr.JaxprParam(inner.Jaxpr())}, []jaxpr.Var{two, x}, vec3)
	z := b.Eqn1("pjit", map[string]jaxpr.Param{"jaxpr": jaxpr.JaxprParam(inner.Jaxpr())}, []jaxpr.Var{two, y}, vec3)
	b.Output(z)

	model := frontendtest.NewModel(b.Trace())
	g, outputs, err := frontendtest.Convert(model, testRegistry())
	require.NoError(t, err)
	// Each call is converted under its own scope.
	assert.NotNil(t, g.GetNodeByAlias("/pjit_0/mul_0"))
	assert.NotNil(t, g.GetNodeByAlias("/pjit_1/mul_0"))
	g.Compile(outputs[0].Node)
	results := g.Run([]float32{1, 2, 3})
	assert.Equal(t, []float32{4, 8, 12}, results[0].Value())

	t.Run("arity", func(t *testing.T) {
		b := frontendtest.NewTraceBuilder("outer")
		x := b.Input(vec3, "x")
		b.Output(b.Eqn1("pjit", map[string]jaxpr.Param{"jaxpr": jaxpr.JaxprParam(inner.Jaxpr())}, []jaxpr.Var{x}, vec3))
		_, _, err := frontendtest.Convert(frontendtest.NewModel(b.Trace()), testRegistry())
		require.ErrorIs(t, err, frontend.ErrArity)
	})
}

func TestConverterCallGraph(t *testing.T) {
	model := frontendtest.NewModel(addTrace())
	g := NewGraph(frontendtest.BuildTestBackend(), "call")
	x := Const(g, []float32{1, 2, 3})
	converter := frontend.NewConverter(model, testRegistry()).WithName("add_model")
	outputs, err := converter.CallGraph(g, frontend.Values(x, x))
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	g.Compile(outputs[0].Node)
	assert.Equal(t, []float32{2, 4, 6}, g.Run()[0].Value())

	_, err = converter.CallGraph(NewGraph(frontendtest.BuildTestBackend(), "call"), frontend.Values(x))
	require.ErrorIs(t, err, frontend.ErrArity)
	require.ErrorContains(t, err, "add_model")
}

func TestConverterComplexInputs(t *testing.T) {
	b := frontendtest.NewTraceBuilder("complex")
	x := b.Input(frontendtest.Aval(dtypes.Complex64, 3), "x")
	b.Output(x)
	g, outputs, err := frontendtest.Convert(frontendtest.NewModel(b.Trace()), testRegistry())
	require.NoError(t, err)
	require.True(t, outputs[0].IsComplex())
	assert.Equal(t, dtypes.Float32, outputs[0].ComplexPart())
	assert.True(t, outputs[0].Node.Shape().Equal(shapes.Make(dtypes.Float32, 3, 2)))
	assert.Equal(t, 1, g.NumParameters())
}

func TestConverterErrors(t *testing.T) {
	failing := errors.New("translator failure")
	r := testRegistry().
		Register("fail", func(ctx *frontend.NodeContext) []frontend.Value { panic(failing) }).
		Register("too_few", func(ctx *frontend.NodeContext) []frontend.Value { return nil }).
		Register("to_int", func(ctx *frontend.NodeContext) []frontend.Value {
			return frontend.Values(ConvertDType(ctx.InputNode(0), dtypes.Int32))
		})

	for _, tc := range []struct {
		op      string
		wantErr error
		wantMsg string
	}{
		{"fail", failing, "equation #0 (fail) at fail.py:1"},
		{"too_few", nil, "translator returned 0 values"},
		{"to_int", nil, "declared Float32"},
		{"unknown", frontend.ErrUnknownOp, `primitive "unknown"`},
	} {
		t.Run(tc.op, func(t *testing.T) {
			b := frontendtest.NewTraceBuilder(tc.op)
			x := b.Input(vec3, "x")
			b.Output(b.Eqn1(tc.op, nil, []jaxpr.Var{x}, vec3))
			_, outputs, err := frontendtest.Convert(frontendtest.NewModel(b.Trace()), r)
			require.Error(t, err)
			assert.Nil(t, outputs)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			assert.ErrorContains(t, err, tc.wantMsg)
		})
	}
}

func TestNodeContext(t *testing.T) {
	b := frontendtest.NewTraceBuilder("inspect")
	x := b.Input(vec3, "x")
	params := map[string]jaxpr.Param{
		"i":       jaxpr.IntParam(3),
		"f":       jaxpr.FloatParam(0.5),
		"s":       jaxpr.StringParam("float32"),
		"flag":    jaxpr.BoolParam(true),
		"ints":    jaxpr.IntsParam(1, 2),
		"padding": jaxpr.IntListsParam([]int64{0, 1}, []int64{2, 3}),
	}
	b.Output(b.Eqn1("inspect", params, []jaxpr.Var{x, frontendtest.None()}, vec3))

	var inspected bool
	r := frontend.NewRegistry().Register("inspect", func(ctx *frontend.NodeContext) []frontend.Value {
		inspected = true
		assert.Equal(t, "inspect", ctx.OpType())
		assert.Equal(t, 2, ctx.NumInputs())
		assert.NotPanics(t, func() { ctx.CheckInputs(1, 2) })
		assert.Panics(t, func() { ctx.CheckInputs(3, -1) })
		assert.False(t, ctx.InputIsNone(0))
		assert.True(t, ctx.InputIsNone(1))
		assert.Panics(t, func() { ctx.Input(1) })
		assert.Panics(t, func() { ctx.Input(2) })
		_, isLiteral := ctx.InputLiteral(0)
		assert.False(t, isLiteral)

		assert.Equal(t, 3, ctx.MustInt("i"))
		assert.Equal(t, 3.0, ctx.MustFloat("i"))
		assert.Equal(t, 0.5, ctx.MustFloat("f"))
		assert.Equal(t, "float32", ctx.MustString("s"))
		assert.True(t, ctx.MustBool("flag"))
		assert.Equal(t, []int{1, 2}, ctx.MustInts("ints"))
		assert.Equal(t, [][]int{{0, 1}, {2, 3}}, ctx.MustIntLists("padding"))
		assert.Equal(t, 7, ctx.IntOr("missing", 7))
		assert.Equal(t, 3, ctx.IntOr("i", 7))
		assert.Equal(t, []int{5}, ctx.IntsOr("missing", []int{5}))
		assert.True(t, ctx.BoolOr("flag", false))
		assert.Equal(t, int64(3), frontend.MustAttr[int64](ctx, "i"))
		assert.Panics(t, func() { ctx.MustString("i") })
		assert.Panics(t, func() { ctx.MustInt("missing") })
		assert.Panics(t, func() { ctx.MustSubgraph("i") })
		assert.Equal(t, "1", ctx.OutputName(0))

		return frontend.Values(ctx.MarkNode(Neg(ctx.InputNode(0))))
	})
	model := frontendtest.NewModel(b.Trace())
	outputs := frontendtest.ConvertAndRun(t, model, r, []float32{1, 2, 3})
	require.True(t, inspected)
	assert.Equal(t, []float32{-1, -2, -3}, outputs[0].Value())
}

func TestConverterTensorInputs(t *testing.T) {
	// Inputs can also be given as tensors.
	outputs := frontendtest.RunTrace(t, addTrace(), testRegistry(),
		tensors.FromValue([]float32{1, 1, 1}), tensors.FromValue([]float32{0, 1, 2}))
	assert.Equal(t, []float32{1, 2, 3}, outputs[0].Value())
}
