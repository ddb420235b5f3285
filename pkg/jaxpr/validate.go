// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package jaxpr

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Validate checks the structural consistency of the trace:
//
//   - Variable ids are unique within each jaxpr, and every id used by an equation or an outvar is
//     defined earlier: by an invar, a constvar or a previous equation.
//   - Each parameter holds exactly one value.
//   - Shapes only have dimensions >= -1.
//   - Constvars of closed jaxprs carry their values, with as many elements as their shapes.
//
// Nested jaxprs (parameters) are validated recursively, each as its own scope.
func (t *Trace) Validate() error {
	if t == nil || t.Jaxpr == nil {
		return errors.Wrap(ErrInvalidTrace, "trace has no jaxpr")
	}
	return t.Jaxpr.Validate()
}

// Validate checks the structural consistency of the jaxpr and its nested jaxprs. See Trace.Validate.
func (j *Jaxpr) Validate() error {
	return j.validate("jaxpr")
}

func (j *Jaxpr) validate(path string) error {
	defined := make(map[int]bool, len(j.Invars)+len(j.Constvars)+len(j.Eqns))
	defineID := func(v *Var, where string) error {
		if err := v.validateAval(where); err != nil {
			return err
		}
		if v.None {
			return nil
		}
		if defined[v.ID] {
			return errors.Wrapf(ErrInvalidTrace, "%s: variable id %d defined more than once", where, v.ID)
		}
		defined[v.ID] = true
		return nil
	}
	use := func(v *Var, where string) error {
		if err := v.validateAval(where); err != nil {
			return err
		}
		if v.None || v.IsLiteral() {
			return nil
		}
		if !defined[v.ID] {
			return errors.Wrapf(ErrInvalidTrace, "%s: variable id %d used before being defined", where, v.ID)
		}
		return nil
	}

	for i := range j.Constvars {
		v := &j.Constvars[i]
		where := fmtPath(path, "constvars", i)
		if j.Closed {
			if !v.IsLiteral() {
				return errors.Wrapf(ErrInvalidTrace, "%s: constvar of a closed jaxpr has no value", where)
			}
			if err := v.validateLiteralSize(where); err != nil {
				return err
			}
		}
		// Constvars are referenced by id even when they carry a value.
		if err := defineID(v, where); err != nil {
			return err
		}
	}
	for i := range j.Invars {
		v := &j.Invars[i]
		where := fmtPath(path, "invars", i)
		if v.IsLiteral() {
			return errors.Wrapf(ErrInvalidTrace, "%s: input can't be a literal", where)
		}
		if err := defineID(v, where); err != nil {
			return err
		}
	}
	for eqnIdx := range j.Eqns {
		eqn := &j.Eqns[eqnIdx]
		eqnPath := fmtPath(path, "eqns", eqnIdx)
		if eqn.Primitive == "" {
			return errors.Wrapf(ErrInvalidTrace, "%s: missing primitive", eqnPath)
		}
		eqnPath = eqnPath + "(" + eqn.Primitive + ")"
		for i := range eqn.Invars {
			v := &eqn.Invars[i]
			where := fmtPath(eqnPath, "invars", i)
			if err := use(v, where); err != nil {
				return err
			}
			if v.IsLiteral() {
				if err := v.validateLiteralSize(where); err != nil {
					return err
				}
			}
		}
		for _, name := range slices.Sorted(maps.Keys(eqn.Params)) {
			param := eqn.Params[name]
			if err := validateParam(&param, eqnPath+".params."+name); err != nil {
				return err
			}
		}
		for i := range eqn.Outvars {
			v := &eqn.Outvars[i]
			where := fmtPath(eqnPath, "outvars", i)
			if v.IsLiteral() {
				return errors.Wrapf(ErrInvalidTrace, "%s: equation output can't be a literal", where)
			}
			if err := defineID(v, where); err != nil {
				return err
			}
		}
	}
	for i := range j.Outvars {
		if err := use(&j.Outvars[i], fmtPath(path, "outvars", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateParam(p *Param, where string) error {
	kind, err := p.Kind()
	if err != nil {
		return errors.WithMessage(err, where)
	}
	switch kind {
	case ParamJaxpr:
		return p.Jaxpr.validate(where)
	case ParamJaxprs:
		for i, sub := range p.Jaxprs {
			if sub == nil {
				return errors.Wrapf(ErrInvalidTrace, "%s[%d]: nil jaxpr", where, i)
			}
			if err := sub.validate(fmtPath(where, "", i)); err != nil {
				return err
			}
		}
	default:
	}
	return nil
}

func (v *Var) validateAval(where string) error {
	if v.Aval == nil || v.Aval.DynamicRank {
		return nil
	}
	for axis, dim := range v.Aval.Shape {
		if dim < -1 {
			return errors.Wrapf(ErrInvalidTrace, "%s: invalid dimension %d for axis %d", where, dim, axis)
		}
	}
	return nil
}

// validateLiteralSize checks that a literal has as many values as its aval requires, if the aval is static.
// Complex literals hold 2 values per element, and integer lists are only accepted for integer and bool dtypes.
func (v *Var) validateLiteralSize(where string) error {
	if err := v.Literal.validate(); err != nil {
		return errors.Wrapf(ErrInvalidTrace, "%s: %v", where, err)
	}
	if v.Aval == nil {
		return nil
	}
	if v.Literal.Values == nil && v.Literal.Len() > 0 && !isIntegerOrBoolDType(v.Aval.DType) {
		return errors.Wrapf(ErrInvalidTrace, "%s: integer literal values for dtype %q", where, v.Aval.DType)
	}
	size := v.Aval.Size()
	if size < 0 {
		return nil
	}
	if strings.HasPrefix(v.Aval.DType, "complex") {
		size *= 2
	}
	if v.Literal.Len() != size {
		return errors.Wrapf(ErrInvalidTrace, "%s: literal has %d values, but shape %v (%s) requires %d",
			where, v.Literal.Len(), v.Aval.Shape, v.Aval.DType, size)
	}
	return nil
}

func isIntegerOrBoolDType(dtype string) bool {
	return dtype == "bool" || strings.HasPrefix(dtype, "int") || strings.HasPrefix(dtype, "uint")
}

func fmtPath(path, field string, idx int) string {
	if field == "" {
		return fmt.Sprintf("%s[%d]", path, idx)
	}
	return fmt.Sprintf("%s.%s[%d]", path, field, idx)
}
