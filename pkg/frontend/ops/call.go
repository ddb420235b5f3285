// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// callOp builds the translator of primitives that call a nested graph with the equation inputs,
// held by the first of the given attributes present.
func callOp(subgraphAttrs ...string) frontend.Translator {
	return func(ctx *frontend.NodeContext) []frontend.Value {
		for _, name := range subgraphAttrs {
			if ctx.Attribute(name).IsAbsent() {
				continue
			}
			inputs := make([]frontend.Value, ctx.NumInputs())
			for i := range inputs {
				inputs[i] = ctx.Input(i)
			}
			return ctx.ConvertSubgraph(ctx.MustSubgraph(name), inputs)
		}
		panic(errors.Wrapf(frontend.ErrAttribute, "%s: missing the called graph, expected one of the attributes %q",
			ctx, subgraphAttrs))
	}
}

// convertCond converts JAX's cond: the first input is the index of the branch to take (clamped to the
// valid range, booleans select branch 0 or 1), the remaining inputs are the operands of the branches.
//
// If the index is a constant only the branch taken is converted, and the other branches are never
// decoded. Otherwise the branches are converted into closures of a chain of If, so only the branch
// taken is executed.
func convertCond(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, -1)
	branches := ctx.MustSubgraphs("branches")
	if len(branches) == 0 {
		panic(errors.Wrapf(frontend.ErrAttribute, "%s: no branches", ctx))
	}
	operands := make([]frontend.Value, ctx.NumInputs()-1)
	for i := range operands {
		operands[i] = ctx.Input(i + 1)
	}
	clamp := func(idx int) int { return max(0, min(idx, len(branches)-1)) }

	if lit, ok := ctx.InputLiteral(0); ok {
		idx, err := scalarToInt(lit.Tensor)
		if err != nil {
			panic(errors.Wrapf(frontend.ErrAttribute, "%s: invalid branch index: %v", ctx, err))
		}
		idx = clamp(idx)
		klog.V(2).Infof("%s: constant index, converting only branch %d of %d", ctx, idx, len(branches))
		return ctx.ConvertSubgraph(branches[idx], operands)
	}
	if len(branches) == 1 {
		return ctx.ConvertSubgraph(branches[0], operands)
	}

	index := ctx.InputNode(0)
	if index.DType() == dtypes.Bool {
		index = ConvertDType(index, dtypes.Int32)
	}
	lowering := &condLowering{ctx: ctx, branches: branches, operands: operands, index: index}
	nodes := lowering.fromBranch(0)
	outputs := make([]frontend.Value, len(nodes))
	for i, node := range nodes {
		// Branches return values of the same type, so they share the complex marks.
		outputs[i] = lowering.marks[i].WithNode(node)
	}
	return outputs
}

// condLowering converts the branches of a cond with a dynamic index.
type condLowering struct {
	ctx      *frontend.NodeContext
	branches []frontend.SubgraphIndex
	operands []frontend.Value
	index    *Node

	// marks holds the values returned by the first branch converted.
	marks []frontend.Value
}

// convert converts branch i in the current function, and returns its output nodes.
func (l *condLowering) convert(i int) []*Node {
	values := l.ctx.ConvertSubgraph(l.branches[i], l.operands)
	if l.marks == nil {
		l.marks = values
	} else if len(values) != len(l.marks) {
		panic(errors.Wrapf(frontend.ErrAttribute, "%s: branch %d returns %d values, other branches return %d",
			l.ctx, i, len(values), len(l.marks)))
	}
	return xslices.Map(values, func(v frontend.Value) *Node { return v.Node })
}

// fromBranch returns the outputs of the branch selected by the index, among the branches i and above.
// Indices up to i select branch i, which also takes the negative indices when i is 0, and indices
// beyond the last branch select the last one.
func (l *condLowering) fromBranch(i int) []*Node {
	if i == len(l.branches)-1 {
		return l.convert(i)
	}
	g := l.index.Graph()
	takeBranch := LessOrEqual(l.index, Scalar(g, l.index.DType(), i))
	trueBranch := NewClosure(g, func(g *Graph) []*Node { return l.convert(i) })
	falseBranch := NewClosure(g, func(g *Graph) []*Node { return l.fromBranch(i + 1) })
	return If(takeBranch, trueBranch, falseBranch)
}

// scalarToInt returns the value of a scalar integer or boolean tensor.
func scalarToInt(t *tensors.Tensor) (int, error) {
	if !t.Shape().IsScalar() {
		return 0, errors.Errorf("expected a scalar, got shape %s", t.Shape())
	}
	switch v := t.Value().(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	default:
		return 0, errors.Errorf("expected an integer or boolean scalar, got %s", t.Shape())
	}
}

func registerCalls(r *frontend.Registry) {
	r.Register("pjit", callOp("jaxpr")).
		Register("jit", callOp("jaxpr")).
		Register("closed_call", callOp("call_jaxpr")).
		Register("core_call", callOp("call_jaxpr")).
		Register("remat", callOp("jaxpr")).
		Register("checkpoint", callOp("jaxpr")).
		Register("custom_jvp_call", callOp("call_jaxpr")).
		Register("custom_vjp_call", callOp("call_jaxpr", "fun_jaxpr")).
		Register("custom_vjp_call_jaxpr", callOp("fun_jaxpr")).
		Register("cond", convertCond)
}
