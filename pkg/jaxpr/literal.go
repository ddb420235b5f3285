// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package jaxpr

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// Literal holds flat constant values in row-major order.
//
// Float values go in Values, where complex values are interleaved (real, imaginary) pairs.
// Integer literals may instead use Ints or Uints, which hold 64-bit values exactly: a float64
// only represents integers up to 2^53. At most one of the three lists is set; if none is, the
// literal is empty.
//
// In JSON the non-finite floats are written as the strings "inf", "-inf" and "nan".
type Literal struct {
	Values []float64 `json:"values" msgpack:"values"`
	Ints   []int64   `json:"ints,omitempty" msgpack:"ints,omitempty"`
	Uints  []uint64  `json:"uints,omitempty" msgpack:"uints,omitempty"`
}

// Len returns the number of values held.
func (l *Literal) Len() int {
	switch {
	case l.Ints != nil:
		return len(l.Ints)
	case l.Uints != nil:
		return len(l.Uints)
	default:
		return len(l.Values)
	}
}

func (l *Literal) validate() error {
	count := 0
	for _, isSet := range []bool{l.Values != nil, l.Ints != nil, l.Uints != nil} {
		if isSet {
			count++
		}
	}
	if count > 1 {
		return errors.Errorf("literal has %d value lists set, expected at most one", count)
	}
	return nil
}

// literalJSON writes "values" unless an integer list is set.
type literalJSON struct {
	Values *[]jsonFloat `json:"values,omitempty"`
	Ints   []int64      `json:"ints,omitempty"`
	Uints  []uint64     `json:"uints,omitempty"`
}

// MarshalJSON implements json.Marshaler, spelling out the non-finite values.
func (l Literal) MarshalJSON() ([]byte, error) {
	out := literalJSON{Ints: l.Ints, Uints: l.Uints}
	if l.Values != nil || (l.Ints == nil && l.Uints == nil) {
		var values []jsonFloat
		if l.Values != nil {
			values = make([]jsonFloat, len(l.Values))
			for i, v := range l.Values {
				values[i] = jsonFloat(v)
			}
		}
		out.Values = &values
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Literal) UnmarshalJSON(data []byte) error {
	var in literalJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*l = Literal{Ints: in.Ints, Uints: in.Uints}
	if in.Values != nil && *in.Values != nil {
		l.Values = make([]float64, len(*in.Values))
		for i, v := range *in.Values {
			l.Values[i] = float64(v)
		}
	}
	return nil
}

// jsonFloat is a float64 that accepts "inf", "-inf" and "nan" in JSON.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"nan"`), nil
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	}
	return json.Marshal(v)
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '"' {
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = jsonFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "nan":
		*f = jsonFloat(math.NaN())
	case "inf":
		*f = jsonFloat(math.Inf(1))
	case "-inf":
		*f = jsonFloat(math.Inf(-1))
	default:
		return errors.Errorf("invalid literal value %q", s)
	}
	return nil
}
