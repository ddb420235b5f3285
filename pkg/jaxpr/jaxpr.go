// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package jaxpr defines the serialized form of a JAX trace (a "jaxpr") as exported from Python,
// and the codecs to read and write it.
//
// A jaxpr is a flat list of equations in dependency order. Each equation applies one primitive
// to input variables and defines output variables, identified by integer ids unique within the
// enclosing jaxpr. Higher-order primitives (pjit, cond, closed_call, ...) carry nested jaxprs
// in their parameters.
//
// This package only models the data: interpretation (shapes, dtypes, attributes) is done by
// github.com/gomlx/jax-gomlx/pkg/frontend.
package jaxpr

// CurrentVersion of the trace format written by Save and Encode.
const CurrentVersion = 1

// Trace is the top-level content of a serialized trace file.
type Trace struct {
	// Version of the trace format. Zero is read as CurrentVersion.
	Version int `json:"version,omitempty" msgpack:"version,omitempty"`

	// Name of the traced function, used to name the converted graph.
	Name string `json:"name,omitempty" msgpack:"name,omitempty"`

	Jaxpr *Jaxpr `json:"jaxpr" msgpack:"jaxpr"`
}

// Jaxpr is a traced graph: its inputs, constants, outputs and equations.
type Jaxpr struct {
	// Closed is true for a "closed jaxpr": its constvars carry their values (Var.Literal)
	// and it has no free variables. An open jaxpr receives its constvars from the caller,
	// before its invars.
	Closed bool `json:"closed,omitempty" msgpack:"closed,omitempty"`

	Invars    []Var      `json:"invars" msgpack:"invars"`
	Constvars []Var      `json:"constvars,omitempty" msgpack:"constvars,omitempty"`
	Outvars   []Var      `json:"outvars" msgpack:"outvars"`
	Eqns      []Equation `json:"eqns" msgpack:"eqns"`
	Effects   []Effect   `json:"effects,omitempty" msgpack:"effects,omitempty"`
}

// Var is a traced value: a reference to a tensor result by id, a "none" placeholder,
// or an inline literal.
type Var struct {
	// ID is unique within the enclosing jaxpr. Ignored for None and literal vars.
	ID int `json:"id" msgpack:"id"`

	// Aval is the statically known abstract value, if any.
	Aval *AbstractValue `json:"aval,omitempty" msgpack:"aval,omitempty"`

	// Names are alias names (e.g. Python argument names). The first one is the debug name.
	Names []string `json:"names,omitempty" msgpack:"names,omitempty"`

	// Signature is the declared signature name of the value, if any.
	Signature string `json:"signature,omitempty" msgpack:"signature,omitempty"`

	// None marks an absent value (e.g. an optional slot, or a dropped output "_").
	None bool `json:"none,omitempty" msgpack:"none,omitempty"`

	// Literal holds the value of an inline literal or of a closed jaxpr constvar.
	Literal *Literal `json:"literal,omitempty" msgpack:"literal,omitempty"`
}

// IsLiteral returns whether the variable is an inline constant.
func (v *Var) IsLiteral() bool { return v.Literal != nil }

// AbstractValue is the static shape and dtype of a value.
type AbstractValue struct {
	// Shape holds the dimensions. A -1 marks a dynamic dimension.
	Shape []int `json:"shape" msgpack:"shape"`

	// DynamicRank is set when not even the rank is known; Shape is then ignored.
	DynamicRank bool `json:"dynamic_rank,omitempty" msgpack:"dynamic_rank,omitempty"`

	// DType is the JAX dtype name ("float32", "bfloat16", "int32", "bool", "complex64", ...).
	// Empty means unknown. Names GoMLX doesn't know (e.g. "key<fry>", "float0") are kept verbatim.
	DType string `json:"dtype,omitempty" msgpack:"dtype,omitempty"`

	WeakType bool `json:"weak_type,omitempty" msgpack:"weak_type,omitempty"`
}

// Size returns the number of elements of a static shape, or -1 if any dimension is dynamic.
func (av *AbstractValue) Size() int {
	if av.DynamicRank {
		return -1
	}
	size := 1
	for _, dim := range av.Shape {
		if dim < 0 {
			return -1
		}
		size *= dim
	}
	return size
}

// Equation is one primitive application.
type Equation struct {
	Primitive string           `json:"primitive" msgpack:"primitive"`
	Invars    []Var            `json:"invars" msgpack:"invars"`
	Outvars   []Var            `json:"outvars" msgpack:"outvars"`
	Params    map[string]Param `json:"params,omitempty" msgpack:"params,omitempty"`
	Effects   []Effect         `json:"effects,omitempty" msgpack:"effects,omitempty"`

	// SourceInfo is the Python source location that generated the equation.
	SourceInfo string `json:"source_info,omitempty" msgpack:"source_info,omitempty"`

	// NameStack is the JAX name stack (e.g. "jit(f)/transpose(jvp(g))").
	NameStack string `json:"name_stack,omitempty" msgpack:"name_stack,omitempty"`

	// Schema is a free-form description of the primitive signature, if the exporter provides one.
	Schema string `json:"schema,omitempty" msgpack:"schema,omitempty"`
}

// Effect is a side effect declared by an equation or a jaxpr: an ordering or external
// interaction constraint not visible in the data-flow edges.
type Effect struct {
	// Kind is e.g. "ordered", "io", "debug".
	Kind        string `json:"kind" msgpack:"kind"`
	Description string `json:"description,omitempty" msgpack:"description,omitempty"`
}
