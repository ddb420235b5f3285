// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"maps"
	"slices"

	"k8s.io/klog/v2"
)

// Translator converts one equation to GoMLX nodes.
//
// It returns one Value per equation output, in order (extra values are ignored). Failures are reported
// by panicking with an error, the same way GoMLX graph building functions do: they are caught by the
// Converter and reported with the equation that failed.
type Translator func(ctx *NodeContext) []Value

// Registry maps primitive names to their translators.
type Registry struct {
	translators map[string]Translator
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{translators: make(map[string]Translator)}
}

// Register the translator for the primitive opType, replacing any previous one. It returns the registry,
// so calls can be chained.
func (r *Registry) Register(opType string, translator Translator) *Registry {
	if _, found := r.translators[opType]; found {
		klog.Warningf("replacing translator for primitive %q", opType)
	}
	r.translators[opType] = translator
	return r
}

// Lookup returns the translator for the primitive opType.
func (r *Registry) Lookup(opType string) (Translator, bool) {
	t, found := r.translators[opType]
	return t, found
}

// OpTypes returns the sorted list of primitives with a registered translator.
func (r *Registry) OpTypes() []string {
	return slices.Sorted(maps.Keys(r.translators))
}
