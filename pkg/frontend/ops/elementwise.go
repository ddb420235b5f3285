// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/pkg/errors"
)

// splitComplex returns the real and imaginary parts of a complex marked value.
func splitComplex(v frontend.Value) (re, im *Node) {
	x := v.Node
	lastAxis := x.Rank() - 1
	re = Squeeze(SliceAxis(x, lastAxis, AxisRange(0, 1)), lastAxis)
	im = Squeeze(SliceAxis(x, lastAxis, AxisRange(1, 2)), lastAxis)
	return
}

// joinComplex packs the real and imaginary parts into a complex marked value.
func joinComplex(re, im *Node) frontend.Value {
	if re.Rank() != im.Rank() {
		// One of them is a scalar.
		if re.IsScalar() {
			re = BroadcastToDims(re, im.Shape().Dimensions...)
		} else {
			im = BroadcastToDims(im, re.Shape().Dimensions...)
		}
	}
	return frontend.ComplexValue(Stack([]*Node{re, im}, re.Rank()))
}

// unaryOp builds a translator for a real elementwise function. Complex inputs are handled by
// complexFn, or rejected if it is nil.
func unaryOp(fn func(x *Node) *Node, complexFn func(x frontend.Value) frontend.Value) frontend.Translator {
	return func(ctx *frontend.NodeContext) []frontend.Value {
		ctx.CheckInputs(1, 1)
		x := ctx.Input(0)
		if x.IsComplex() {
			if complexFn == nil {
				panic(errors.Wrapf(frontend.ErrUnsupported, "%s: complex inputs", ctx))
			}
			return []frontend.Value{complexFn(x)}
		}
		return []frontend.Value{keepDerivedMark(fn(x.Node), x)}
	}
}

// binaryOp builds a translator for a real elementwise binary function. GoMLX broadcasts scalar operands,
// which JAX emits for weakly typed literals.
func binaryOp(fn func(lhs, rhs *Node) *Node, complexFn func(lhs, rhs frontend.Value) frontend.Value) frontend.Translator {
	return func(ctx *frontend.NodeContext) []frontend.Value {
		ctx.CheckInputs(2, 2)
		lhs, rhs := ctx.Input(0), ctx.Input(1)
		if lhs.IsComplex() || rhs.IsComplex() {
			if complexFn == nil {
				panic(errors.Wrapf(frontend.ErrUnsupported, "%s: complex inputs", ctx))
			}
			lhs, rhs = promoteComplex(lhs), promoteComplex(rhs)
			// A scalar operand is packed as a vector of dimension 2.
			if lhs.Node.Rank() < rhs.Node.Rank() {
				lhs = broadcastComplexScalar(lhs, rhs)
			} else if rhs.Node.Rank() < lhs.Node.Rank() {
				rhs = broadcastComplexScalar(rhs, lhs)
			}
			return []frontend.Value{complexFn(lhs, rhs)}
		}
		return []frontend.Value{keepDerivedMark(fn(lhs.Node, rhs.Node), lhs, rhs)}
	}
}

// keepDerivedMark returns node marked as derived from a complex value if any of the inputs is.
func keepDerivedMark(node *Node, inputs ...frontend.Value) frontend.Value {
	for _, input := range inputs {
		if input.IsDerivedFromComplex() {
			return frontend.MarkComplex(node, input.ComplexPart())
		}
	}
	return frontend.NewValue(node)
}

// broadcastComplexScalar broadcasts the packed complex scalar x to the shape of the complex value like.
func broadcastComplexScalar(x, like frontend.Value) frontend.Value {
	dims := like.Node.Shape().Dimensions
	expanded := make([]int, len(dims))
	for i := range expanded {
		expanded[i] = 1
	}
	expanded[len(expanded)-1] = 2
	return x.WithNode(BroadcastToDims(Reshape(x.Node, expanded...), dims...))
}

// promoteComplex converts a real value to complex, with zero imaginary part.
func promoteComplex(v frontend.Value) frontend.Value {
	if v.IsComplex() {
		return v
	}
	return joinComplex(v.Node, ZerosLike(v.Node))
}

func complexAdd(lhs, rhs frontend.Value) frontend.Value { return lhs.WithNode(Add(lhs.Node, rhs.Node)) }

func complexSub(lhs, rhs frontend.Value) frontend.Value { return lhs.WithNode(Sub(lhs.Node, rhs.Node)) }

func complexMul(lhs, rhs frontend.Value) frontend.Value {
	a, b := splitComplex(lhs)
	c, d := splitComplex(rhs)
	return joinComplex(Sub(Mul(a, c), Mul(b, d)), Add(Mul(a, d), Mul(b, c)))
}

func complexDiv(lhs, rhs frontend.Value) frontend.Value {
	a, b := splitComplex(lhs)
	c, d := splitComplex(rhs)
	denominator := Add(Mul(c, c), Mul(d, d))
	return joinComplex(
		Div(Add(Mul(a, c), Mul(b, d)), denominator),
		Div(Sub(Mul(b, c), Mul(a, d)), denominator))
}

func complexNeg(x frontend.Value) frontend.Value { return x.WithNode(Neg(x.Node)) }

// complexAbs returns the (real) magnitude.
func complexAbs(x frontend.Value) frontend.Value {
	re, im := splitComplex(x)
	return frontend.NewValue(Sqrt(Add(Mul(re, re), Mul(im, im))))
}

// complexExp: e^(a+bi) = e^a * (cos(b) + i*sin(b)).
func complexExp(x frontend.Value) frontend.Value {
	re, im := splitComplex(x)
	magnitude := Exp(re)
	return joinComplex(Mul(magnitude, Cos(im)), Mul(magnitude, Sin(im)))
}

func registerElementwise(r *frontend.Registry) {
	r.Register("add", binaryOp(Add, complexAdd)).
		Register("sub", binaryOp(Sub, complexSub)).
		Register("mul", binaryOp(Mul, complexMul)).
		Register("div", binaryOp(Div, complexDiv)).
		Register("max", binaryOp(Max, nil)).
		Register("min", binaryOp(Min, nil)).
		Register("pow", binaryOp(Pow, nil)).
		Register("neg", unaryOp(Neg, complexNeg)).
		Register("exp", unaryOp(Exp, complexExp)).
		Register("log", unaryOp(Log, nil)).
		Register("tanh", unaryOp(Tanh, nil)).
		Register("logistic", unaryOp(Logistic, nil)).
		Register("abs", unaryOp(Abs, complexAbs)).
		Register("sqrt", unaryOp(Sqrt, nil)).
		Register("rsqrt", unaryOp(Rsqrt, nil)).
		Register("sin", unaryOp(Sin, nil)).
		Register("cos", unaryOp(Cos, nil)).
		Register("sign", unaryOp(Sign, nil)).
		Register("floor", unaryOp(Floor, nil)).
		Register("ceil", unaryOp(Ceil, nil)).
		Register("copy", identity).
		Register("copy_p", identity)
}

// identity returns its input unchanged.
func identity(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(1, 1)
	return []frontend.Value{ctx.Input(0)}
}
