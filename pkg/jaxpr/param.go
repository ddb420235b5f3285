// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package jaxpr

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ParamKind enumerates the closed set of value kinds a Param can hold.
type ParamKind int

const (
	ParamInvalid ParamKind = iota
	ParamInt
	ParamFloat
	ParamString
	ParamBool
	ParamInts
	ParamFloats
	ParamStrings
	ParamBools
	ParamIntLists
	ParamJaxpr
	ParamJaxprs
)

var paramKindNames = [...]string{
	ParamInvalid:  "invalid",
	ParamInt:      "int",
	ParamFloat:    "float",
	ParamString:   "string",
	ParamBool:     "bool",
	ParamInts:     "ints",
	ParamFloats:   "floats",
	ParamStrings:  "strings",
	ParamBools:    "bools",
	ParamIntLists: "int_lists",
	ParamJaxpr:    "jaxpr",
	ParamJaxprs:   "jaxprs",
}

func (k ParamKind) String() string {
	if k < 0 || int(k) >= len(paramKindNames) {
		return "invalid"
	}
	return paramKindNames[k]
}

// Param is a static equation parameter. Exactly one of its fields must be set.
//
// On the wire it is an object with a single key naming its kind, e.g. {"ints": [1, 2, 2, 1]}.
type Param struct {
	Int      *int64    `json:"int,omitempty" msgpack:"int,omitempty"`
	Float    *float64  `json:"float,omitempty" msgpack:"float,omitempty"`
	String   *string   `json:"string,omitempty" msgpack:"string,omitempty"`
	Bool     *bool     `json:"bool,omitempty" msgpack:"bool,omitempty"`
	Ints     []int64   `json:"ints,omitempty" msgpack:"ints,omitempty"`
	Floats   []float64 `json:"floats,omitempty" msgpack:"floats,omitempty"`
	Strings  []string  `json:"strings,omitempty" msgpack:"strings,omitempty"`
	Bools    []bool    `json:"bools,omitempty" msgpack:"bools,omitempty"`
	IntLists [][]int64 `json:"int_lists,omitempty" msgpack:"int_lists,omitempty"`
	Jaxpr    *Jaxpr    `json:"jaxpr,omitempty" msgpack:"jaxpr,omitempty"`
	Jaxprs   []*Jaxpr  `json:"jaxprs,omitempty" msgpack:"jaxprs,omitempty"`
}

// Kind returns the kind of the value held, or an error if none or more than one field is set.
// An empty but non-nil list counts as set.
func (p Param) Kind() (ParamKind, error) {
	kind := ParamInvalid
	count := 0
	set := func(isSet bool, k ParamKind) {
		if isSet {
			count++
			kind = k
		}
	}
	set(p.Int != nil, ParamInt)
	set(p.Float != nil, ParamFloat)
	set(p.String != nil, ParamString)
	set(p.Bool != nil, ParamBool)
	set(p.Ints != nil, ParamInts)
	set(p.Floats != nil, ParamFloats)
	set(p.Strings != nil, ParamStrings)
	set(p.Bools != nil, ParamBools)
	set(p.IntLists != nil, ParamIntLists)
	set(p.Jaxpr != nil, ParamJaxpr)
	set(p.Jaxprs != nil, ParamJaxprs)
	switch count {
	case 0:
		return ParamInvalid, errors.Wrap(ErrInvalidTrace, "parameter has no value")
	case 1:
		return kind, nil
	default:
		return ParamInvalid, errors.Wrapf(ErrInvalidTrace, "parameter has %d values set, expected exactly one", count)
	}
}

// value returns the one value held, for the encoders.
func (p Param) value() (string, any, error) {
	kind, err := p.Kind()
	if err != nil {
		return "", nil, err
	}
	var v any
	switch kind {
	case ParamInt:
		v = *p.Int
	case ParamFloat:
		v = *p.Float
	case ParamString:
		v = *p.String
	case ParamBool:
		v = *p.Bool
	case ParamInts:
		v = p.Ints
	case ParamFloats:
		v = p.Floats
	case ParamStrings:
		v = p.Strings
	case ParamBools:
		v = p.Bools
	case ParamIntLists:
		v = p.IntLists
	case ParamJaxpr:
		v = p.Jaxpr
	case ParamJaxprs:
		v = p.Jaxprs
	}
	return kind.String(), v, nil
}

// MarshalJSON writes the parameter as a single-key object, keeping empty lists.
func (p Param) MarshalJSON() ([]byte, error) {
	key, v, err := p.value()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{key: v})
}

// EncodeMsgpack writes the parameter as a single-key map, keeping empty lists.
func (p Param) EncodeMsgpack(enc *msgpack.Encoder) error {
	key, v, err := p.value()
	if err != nil {
		return err
	}
	return enc.Encode(map[string]any{key: v})
}

// Param constructors, mostly used to build traces programmatically.

// IntParam returns a Param holding an int.
func IntParam(v int64) Param { return Param{Int: &v} }

// FloatParam returns a Param holding a float.
func FloatParam(v float64) Param { return Param{Float: &v} }

// StringParam returns a Param holding a string.
func StringParam(v string) Param { return Param{String: &v} }

// BoolParam returns a Param holding a bool.
func BoolParam(v bool) Param { return Param{Bool: &v} }

// IntsParam returns a Param holding a list of ints.
func IntsParam(v ...int64) Param {
	if v == nil {
		v = []int64{}
	}
	return Param{Ints: v}
}

// FloatsParam returns a Param holding a list of floats.
func FloatsParam(v ...float64) Param {
	if v == nil {
		v = []float64{}
	}
	return Param{Floats: v}
}

// StringsParam returns a Param holding a list of strings.
func StringsParam(v ...string) Param {
	if v == nil {
		v = []string{}
	}
	return Param{Strings: v}
}

// BoolsParam returns a Param holding a list of bools.
func BoolsParam(v ...bool) Param {
	if v == nil {
		v = []bool{}
	}
	return Param{Bools: v}
}

// IntListsParam returns a Param holding a list of lists of ints, e.g. paddings.
func IntListsParam(v ...[]int64) Param {
	if v == nil {
		v = [][]int64{}
	}
	return Param{IntLists: v}
}

// JaxprParam returns a Param holding a nested jaxpr.
func JaxprParam(j *Jaxpr) Param { return Param{Jaxpr: j} }

// JaxprsParam returns a Param holding a list of nested jaxprs (e.g. cond branches).
func JaxprsParam(j ...*Jaxpr) Param {
	if j == nil {
		j = []*Jaxpr{}
	}
	return Param{Jaxprs: j}
}
