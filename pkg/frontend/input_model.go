// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SelfMarker is the substring that identifies, in the names of the first input, the implicit receiver
// ("self") some traced methods carry. Such an input is hidden from InputModel.Inputs.
const SelfMarker = "self"

type placeRole int

const (
	roleInput placeRole = iota
	roleOutput
)

func (r placeRole) String() string {
	if r == roleInput {
		return "input"
	}
	return "output"
}

type placeEntry struct {
	tensorID int

	// names[0] is the id as a string, followed by the aliases reported by the decoder.
	names []string

	shape       PartialShape
	elementType ElementType
	role        placeRole

	// position in the decoder's list of inputs or outputs.
	position int
}

// PlaceDesc records the constant value an input was frozen to.
type PlaceDesc struct {
	Value *tensors.Tensor
}

// InputModel holds the inputs and outputs ("places") of a traced graph, and lets the caller refine
// them before conversion: set their shapes and types, freeze inputs to constant values, select or
// reorder inputs and outputs.
//
// The graph itself can't be changed: the lists of inputs and outputs can only shrink or be reordered.
//
// InputModel is not safe for concurrent use.
type InputModel struct {
	id      string
	decoder Decoder

	places      []placeEntry
	nameToPlace map[string]int

	// inputs and outputs hold indices into places.
	inputs, outputs []int

	// descriptors of frozen inputs, keyed by tensor id.
	descriptors map[int]PlaceDesc
}

// NewInputModel creates the places of the graph decoded by d: one per top-level input, then one per
// top-level output. Each is registered under its id (as a string) and under each of its names; for
// repeated names the last registration wins.
func NewInputModel(d Decoder) *InputModel {
	m := &InputModel{
		id:          uuid.NewString(),
		decoder:     d,
		nameToPlace: make(map[string]int),
		descriptors: make(map[int]PlaceDesc),
	}
	for i, id := range d.Inputs() {
		idx := m.addPlace(id, d.InputNames(i), d.InputAval(i), roleInput, i)
		m.inputs = append(m.inputs, idx)
	}
	for i, id := range d.Outputs() {
		aval := AbstractValue{Shape: d.OutputShape(i), Type: d.OutputType(i)}
		idx := m.addPlace(id, d.OutputNames(i), aval, roleOutput, i)
		m.outputs = append(m.outputs, idx)
	}
	klog.V(1).Infof("InputModel %s: %d inputs, %d outputs", m.id, len(m.inputs), len(m.outputs))
	return m
}

func (m *InputModel) addPlace(id int, names []string, aval AbstractValue, role placeRole, position int) int {
	idx := len(m.places)
	allNames := append([]string{strconv.Itoa(id)}, names...)
	m.places = append(m.places, placeEntry{
		tensorID:    id,
		names:       allNames,
		shape:       aval.Shape,
		elementType: aval.Type,
		role:        role,
		position:    position,
	})
	for _, name := range allNames {
		m.nameToPlace[name] = idx
	}
	return idx
}

func (m *InputModel) place(idx int) Place {
	return Place{frontend: FrontendName, model: m, index: idx}
}

func (m *InputModel) placesOf(indices []int) []Place {
	places := make([]Place, len(indices))
	for i, idx := range indices {
		places[i] = m.place(idx)
	}
	return places
}

// ID returns the unique id of the model, used in logs.
func (m *InputModel) ID() string { return m.id }

// Decoder returns the decoder of the graph.
func (m *InputModel) Decoder() Decoder { return m.decoder }

// DecoderTypeName returns the type name of the decoder of the graph.
func (m *InputModel) DecoderTypeName() string { return m.decoder.TypeName() }

// hasSelf returns whether the first current input is the implicit receiver.
//
// The receiver is recognized by a substring match of SelfMarker in its names, so a regular argument
// named e.g. "selfie" in the first position is also hidden.
func (m *InputModel) hasSelf() bool {
	if len(m.inputs) == 0 {
		return false
	}
	return slices.ContainsFunc(m.places[m.inputs[0]].names, func(name string) bool {
		return strings.Contains(name, SelfMarker)
	})
}

// Inputs returns the current inputs, in order, except the implicit receiver ("self") if there is one.
func (m *InputModel) Inputs() []Place {
	if m.hasSelf() {
		return m.placesOf(m.inputs[1:])
	}
	return m.placesOf(m.inputs)
}

// AllInputs returns the current inputs, in order, including the implicit receiver if there is one.
func (m *InputModel) AllInputs() []Place { return m.placesOf(m.inputs) }

// Outputs returns the current outputs, in order.
func (m *InputModel) Outputs() []Place { return m.placesOf(m.outputs) }

// PlaceByName returns the place registered under name: its id as a string or one of its aliases.
func (m *InputModel) PlaceByName(name string) (Place, bool) {
	idx, found := m.nameToPlace[name]
	if !found {
		return Place{}, false
	}
	return m.place(idx), true
}

// checkOwned returns an error if p was not produced by this model.
func (m *InputModel) checkOwned(p Place) error {
	if !p.IsValid() {
		return errors.Wrapf(ErrPlaceMisuse, "%s was not produced by the %s frontend", p, FrontendName)
	}
	if p.model != m {
		return errors.Wrapf(ErrPlaceMisuse, "%s belongs to a different model", p)
	}
	return nil
}

// checkCurrentInput returns an error if p is not from this model or is not currently an input.
func (m *InputModel) checkCurrentInput(p Place, operation string) error {
	if err := m.checkOwned(p); err != nil {
		return err
	}
	if !p.IsInput() {
		return errors.Wrapf(ErrPlaceMisuse, "%s: %s is not an input, only inputs are supported", operation, p)
	}
	return nil
}

// SetPartialShape sets the shape of the input p.
func (m *InputModel) SetPartialShape(p Place, shape PartialShape) error {
	if err := m.checkCurrentInput(p, "SetPartialShape"); err != nil {
		return err
	}
	p.entry().shape = PartialShape{Dimensions: slices.Clone(shape.Dimensions), DynamicRank: shape.DynamicRank}
	return nil
}

// PartialShape returns the shape of the input or output p.
func (m *InputModel) PartialShape(p Place) (PartialShape, error) {
	if err := m.checkOwned(p); err != nil {
		return PartialShape{}, err
	}
	return p.entry().shape, nil
}

// SetElementType sets the element type of the input p.
func (m *InputModel) SetElementType(p Place, elementType ElementType) error {
	if err := m.checkCurrentInput(p, "SetElementType"); err != nil {
		return err
	}
	p.entry().elementType = elementType
	return nil
}

// ElementType returns the element type of the input or output p.
func (m *InputModel) ElementType(p Place) (ElementType, error) {
	if err := m.checkOwned(p); err != nil {
		return ElementType{}, err
	}
	return p.entry().elementType, nil
}

// Shape returns the GoMLX shape of p, if it is static.
func (m *InputModel) Shape(p Place) (shapes.Shape, error) {
	if err := m.checkOwned(p); err != nil {
		return shapes.Shape{}, err
	}
	e := p.entry()
	shape, err := AbstractValue{Shape: e.shape, Type: e.elementType}.ToShape()
	if err != nil {
		return shapes.Shape{}, errors.WithMessagef(err, "%s", p)
	}
	return shape, nil
}

// SetTensorValue freezes the input p to the constant value given by its raw bytes (in the machine's
// native byte order). The input must have static shape and element type, and it's removed from the
// inputs: it can't be set back as an input.
func (m *InputModel) SetTensorValue(p Place, data []byte) error {
	if err := m.checkCurrentInput(p, "SetTensorValue"); err != nil {
		return err
	}
	shape, err := m.Shape(p)
	if err != nil {
		return errors.Wrapf(ErrPlaceMisuse,
			"shape and type must be static before calling SetTensorValue: %v", err)
	}
	if uintptr(len(data)) != shape.Memory() {
		return errors.Wrapf(ErrPlaceMisuse, "SetTensorValue(%s): got %d bytes, but shape %s requires %d bytes",
			p, len(data), shape, shape.Memory())
	}
	t := tensors.FromShape(shape)
	if shape.Size() > 0 {
		err = t.MutableBytes(func(tensorData []byte) {
			copy(tensorData, data)
		})
		if err != nil {
			return errors.WithMessagef(err, "SetTensorValue(%s)", p)
		}
	}
	m.descriptors[p.TensorID()] = PlaceDesc{Value: t}
	m.inputs = slices.DeleteFunc(m.inputs, func(idx int) bool { return idx == p.index })
	klog.V(1).Infof("InputModel %s: input %s frozen to a constant", m.id, p)
	return nil
}

// Descriptor returns the description of the frozen input with the given tensor id.
func (m *InputModel) Descriptor(tensorID int) (PlaceDesc, bool) {
	desc, found := m.descriptors[tensorID]
	return desc, found
}

// FrozenInputs returns the places of inputs frozen with SetTensorValue, in declaration order.
func (m *InputModel) FrozenInputs() []Place {
	var frozen []Place
	for idx := range m.places {
		e := &m.places[idx]
		if e.role != roleInput || slices.Contains(m.inputs, idx) {
			continue
		}
		if _, found := m.descriptors[e.tensorID]; found {
			frozen = append(frozen, m.place(idx))
		}
	}
	return frozen
}

// checkOverride validates a list of places for OverrideAllInputs or OverrideAllOutputs: the places must
// be from this model, have the given role, and not be repeated.
func (m *InputModel) checkOverride(places []Place, role placeRole, operation string) ([]int, error) {
	indices := make([]int, len(places))
	for i, p := range places {
		if err := m.checkOwned(p); err != nil {
			return nil, errors.WithMessagef(err, "%s", operation)
		}
		if p.entry().role != role {
			return nil, errors.Wrapf(ErrPlaceMisuse, "%s: %s is not one of the initial %ss", operation, p, role)
		}
		if slices.Contains(indices[:i], p.index) {
			return nil, errors.Wrapf(ErrPlaceMisuse, "%s: %s given more than once", operation, p)
		}
		indices[i] = p.index
	}
	return indices, nil
}

// OverrideAllOutputs replaces the outputs of the model. Only initial outputs can be given: outputs can be
// reordered or dropped, but not added.
func (m *InputModel) OverrideAllOutputs(outputs []Place) error {
	indices, err := m.checkOverride(outputs, roleOutput, "OverrideAllOutputs")
	if err != nil {
		return err
	}
	m.outputs = indices
	return nil
}

// OverrideAllInputs reorders the inputs of the model. Only current inputs can be given, and the
// number of inputs must match the number returned by Inputs.
//
// If the model has an implicit receiver ("self") input, it must not be given: it is kept as the
// first input.
func (m *InputModel) OverrideAllInputs(inputs []Place) error {
	const operation = "OverrideAllInputs"
	indices, err := m.checkOverride(inputs, roleInput, operation)
	if err != nil {
		return err
	}
	for _, p := range inputs {
		if !p.IsInput() {
			return errors.Wrapf(ErrPlaceMisuse, "%s: %s is not a current input (was it frozen?)", operation, p)
		}
	}
	if m.hasSelf() {
		self := m.inputs[0]
		if slices.Contains(indices, self) {
			return errors.Wrapf(ErrPlaceMisuse, "%s: unexpected %s input %s", operation, SelfMarker, m.place(self))
		}
		if len(indices) != len(m.inputs)-1 {
			return errors.Wrapf(ErrPlaceMisuse, "%s: expected %d inputs, received %d: the inputs can't be changed, "+
				"only reordered", operation, len(m.inputs)-1, len(indices))
		}
		m.inputs = append([]int{self}, indices...)
		return nil
	}
	if len(indices) != len(m.inputs) {
		return errors.Wrapf(ErrPlaceMisuse, "%s: expected %d inputs, received %d: the inputs can't be changed, "+
			"only reordered", operation, len(m.inputs), len(indices))
	}
	m.inputs = indices
	return nil
}
