// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/jax-gomlx/pkg/jaxpr"
	"github.com/pkg/errors"
)

// DynamicDim marks a dimension whose size is not statically known.
const DynamicDim = -1

// PartialShape is a possibly partially known shape: either a list of dimensions, some of which may be
// DynamicDim, or a shape of unknown (dynamic) rank.
type PartialShape struct {
	Dimensions  []int
	DynamicRank bool
}

// StaticShape returns a PartialShape with the given dimensions.
func StaticShape(dims ...int) PartialShape {
	return PartialShape{Dimensions: slices.Clone(dims)}
}

// DynamicRankShape returns a PartialShape with unknown rank.
func DynamicRankShape() PartialShape {
	return PartialShape{DynamicRank: true}
}

// IsStatic returns whether the rank and all dimensions are known.
func (ps PartialShape) IsStatic() bool {
	if ps.DynamicRank {
		return false
	}
	return !slices.Contains(ps.Dimensions, DynamicDim)
}

// Rank returns the rank, or -1 if the rank is dynamic.
func (ps PartialShape) Rank() int {
	if ps.DynamicRank {
		return -1
	}
	return len(ps.Dimensions)
}

// ToShape converts a static PartialShape to a GoMLX shape with the given dtype.
func (ps PartialShape) ToShape(dtype dtypes.DType) (shapes.Shape, error) {
	if !ps.IsStatic() {
		return shapes.Shape{}, errors.Errorf("shape %s is not static", ps)
	}
	return shapes.Make(dtype, ps.Dimensions...), nil
}

// Equal returns whether both shapes are identical, including their dynamic dimensions.
func (ps PartialShape) Equal(other PartialShape) bool {
	if ps.DynamicRank || other.DynamicRank {
		return ps.DynamicRank == other.DynamicRank
	}
	return slices.Equal(ps.Dimensions, other.Dimensions)
}

func (ps PartialShape) String() string {
	if ps.DynamicRank {
		return "[...]"
	}
	parts := make([]string, len(ps.Dimensions))
	for i, dim := range ps.Dimensions {
		if dim == DynamicDim {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprint(dim)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ElementType is the element type of a traced value.
//
// It is either a GoMLX dtype, a framework specific type GoMLX can't represent (Custom, e.g. "key<fry>"
// or "float0"), passed through as an opaque name, or dynamic (not known) when neither is set.
type ElementType struct {
	DType  dtypes.DType
	Custom string
}

// DynamicType is the ElementType of values whose type is not known.
var DynamicType = ElementType{}

// TypeOf returns the static ElementType for the given dtype.
func TypeOf(dtype dtypes.DType) ElementType { return ElementType{DType: dtype} }

// IsStatic returns whether the type is a known GoMLX dtype.
func (et ElementType) IsStatic() bool { return et.DType != dtypes.InvalidDType }

// IsCustom returns whether the type is an opaque framework type.
func (et ElementType) IsCustom() bool { return et.DType == dtypes.InvalidDType && et.Custom != "" }

// IsDynamic returns whether the type is unknown.
func (et ElementType) IsDynamic() bool { return et.DType == dtypes.InvalidDType && et.Custom == "" }

func (et ElementType) String() string {
	switch {
	case et.IsStatic():
		return et.DType.String()
	case et.IsCustom():
		return et.Custom
	default:
		return "dynamic"
	}
}

// jaxDTypeNames maps JAX names that differ from GoMLX's lower-case dtype names.
var jaxDTypeNames = map[string]dtypes.DType{
	"bool_":         dtypes.Bool,
	"int4":          dtypes.S4,
	"uint4":         dtypes.U4,
	"float8_e5m2":   dtypes.F8E5M2,
	"float8_e4m3fn": dtypes.F8E4M3FN,
}

// ParseElementType converts a JAX dtype name to an ElementType. Empty names are dynamic and
// names GoMLX doesn't know are kept as custom types.
func ParseElementType(name string) ElementType {
	if name == "" {
		return DynamicType
	}
	if dtype, found := jaxDTypeNames[name]; found {
		return TypeOf(dtype)
	}
	if dtype, found := dtypes.MapOfNames[name]; found && dtype != dtypes.InvalidDType {
		return TypeOf(dtype)
	}
	return ElementType{Custom: name}
}

// AbstractValue is the statically known shape and element type of a traced value.
type AbstractValue struct {
	Shape    PartialShape
	Type     ElementType
	WeakType bool
}

// IsStatic returns whether both shape and dtype are static.
func (av AbstractValue) IsStatic() bool { return av.Shape.IsStatic() && av.Type.IsStatic() }

// ToShape returns the GoMLX shape of a static abstract value.
func (av AbstractValue) ToShape() (shapes.Shape, error) {
	if !av.Type.IsStatic() {
		return shapes.Shape{}, errors.Errorf("element type %s is not static", av.Type)
	}
	return av.Shape.ToShape(av.Type.DType)
}

func (av AbstractValue) String() string {
	return fmt.Sprintf("(%s)%s", av.Type, av.Shape)
}

// abstractValueFromJaxpr converts the wire representation. A nil aval is fully dynamic.
func abstractValueFromJaxpr(av *jaxpr.AbstractValue) AbstractValue {
	if av == nil {
		return AbstractValue{Shape: DynamicRankShape(), Type: DynamicType}
	}
	shape := DynamicRankShape()
	if !av.DynamicRank {
		shape = StaticShape(av.Shape...)
	}
	return AbstractValue{Shape: shape, Type: ParseElementType(av.DType), WeakType: av.WeakType}
}
