// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"fmt"
	"slices"
)

// FrontendName is the discriminant of places created by this frontend.
const FrontendName = "jax"

// Place is a handle to a named input or output of an InputModel.
//
// Places are small values: they reference an entry of the model's place arena, so the changes made
// through one handle (or name) are visible through all of them. The zero Place is invalid.
type Place struct {
	frontend string
	model    *InputModel
	index    int
}

// IsValid returns whether p was created by this frontend's InputModel.
func (p Place) IsValid() bool {
	return p.frontend == FrontendName && p.model != nil && p.index >= 0 && p.index < len(p.model.places)
}

func (p Place) entry() *placeEntry { return &p.model.places[p.index] }

// TensorID returns the id of the traced value the place is bound to: the identity of the place.
func (p Place) TensorID() int { return p.entry().tensorID }

// Names returns the keys under which the place is registered: its id as a string, and its aliases.
func (p Place) Names() []string { return slices.Clone(p.entry().names) }

// Name returns the first alias of the place, or its id as a string if it has no aliases.
func (p Place) Name() string {
	names := p.entry().names
	if len(names) > 1 {
		return names[1]
	}
	return names[0]
}

// IsInput returns whether the place is currently one of the model inputs. Frozen inputs are no longer inputs.
func (p Place) IsInput() bool { return slices.Contains(p.model.inputs, p.index) }

// IsOutput returns whether the place is currently one of the model outputs.
func (p Place) IsOutput() bool { return slices.Contains(p.model.outputs, p.index) }

// IsEqual returns whether both handles refer to the same place.
func (p Place) IsEqual(other Place) bool {
	return p.frontend == other.frontend && p.model == other.model && p.index == other.index
}

func (p Place) String() string {
	if !p.IsValid() {
		return "Place(invalid)"
	}
	e := p.entry()
	return fmt.Sprintf("Place(#%d %v %s%s)", e.tensorID, e.names[1:], e.elementType, e.shape)
}
