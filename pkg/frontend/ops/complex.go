// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/pkg/errors"
)

// convertComplex builds a complex value from its real and imaginary parts.
func convertComplex(ctx *frontend.NodeContext) []frontend.Value {
	ctx.CheckInputs(2, 2)
	re, im := ctx.Input(0), ctx.Input(1)
	if re.IsComplex() || im.IsComplex() {
		panic(errors.Wrapf(frontend.ErrAttribute, "%s: real and imaginary parts can't be complex", ctx))
	}
	return []frontend.Value{joinComplex(re.Node, im.Node)}
}

// complexPart builds the translator of real or imag. For real inputs real is the identity and imag is zero.
func complexPart(imaginary bool) frontend.Translator {
	return func(ctx *frontend.NodeContext) []frontend.Value {
		ctx.CheckInputs(1, 1)
		x := ctx.Input(0)
		if !x.IsComplex() {
			if imaginary {
				return []frontend.Value{frontend.NewValue(ZerosLike(x.Node))}
			}
			return []frontend.Value{x}
		}
		re, im := splitComplex(x)
		if imaginary {
			return []frontend.Value{frontend.NewValue(im)}
		}
		return []frontend.Value{frontend.NewValue(re)}
	}
}

func registerComplex(r *frontend.Registry) {
	r.Register("complex", convertComplex).
		Register("real", complexPart(false)).
		Register("imag", complexPart(true))
}
