// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops implements the translators of JAX primitives to GoMLX.
//
// Use DefaultRegistry to get a registry with all of them, or RegisterAll to add them to an existing one.
//
// Complex values are handled as described in frontend.Value: primitives that don't support them fail
// with frontend.ErrUnsupported.
package ops

import "github.com/gomlx/jax-gomlx/pkg/frontend"

// RegisterAll registers all translators of this package in r, and returns r.
func RegisterAll(r *frontend.Registry) *frontend.Registry {
	registerElementwise(r)
	registerShapeOps(r)
	registerComplex(r)
	registerCalls(r)
	return r
}

// DefaultRegistry returns a new registry with all translators of this package.
func DefaultRegistry() *frontend.Registry {
	return RegisterAll(frontend.NewRegistry())
}
