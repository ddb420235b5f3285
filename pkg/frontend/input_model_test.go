// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package frontend_test

import (
	"encoding/binary"
	"math"
	"slices"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/gomlx/jax-gomlx/pkg/frontend/frontendtest"
	"github.com/gomlx/jax-gomlx/pkg/jaxpr"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// methodTrace returns the trace of a method: inputs self (id 0), x (id 1, f32[2,3]) and y (id 2, f32[?,3]),
// and outputs z = x+x (id 3) and w = -y (id 4).
func methodTrace(selfName string) *jaxpr.Trace {
	b := frontendtest.NewTraceBuilder("method")
	b.Input(frontendtest.Aval(dtypes.Float32, 2), selfName)
	x := b.Input(frontendtest.Aval(dtypes.Float32, 2, 3), "x", "arg0")
	y := b.Input(frontendtest.Aval(dtypes.Float32, -1, 3), "y")
	z := b.Eqn1("add", nil, []jaxpr.Var{x, x}, frontendtest.Aval(dtypes.Float32, 2, 3))
	w := b.Eqn1("neg", nil, []jaxpr.Var{y}, frontendtest.Aval(dtypes.Float32, -1, 3))
	b.Output(b.Name(z, "z"), w)
	return b.Trace()
}

func placeNames(places []frontend.Place) []string {
	names := make([]string, len(places))
	for i, p := range places {
		names[i] = p.Name()
	}
	return names
}

func mustPlace(t *testing.T, m *frontend.InputModel, name string) frontend.Place {
	t.Helper()
	p, found := m.PlaceByName(name)
	require.Truef(t, found, "place %q not found", name)
	return p
}

func TestInputModelPlaces(t *testing.T) {
	m := frontendtest.NewModel(methodTrace("self"))
	assert.Equal(t, frontend.JaxprDecoderTypeName, m.DecoderTypeName())
	_, err := uuid.Parse(m.ID())
	require.NoError(t, err)
	assert.NotEqual(t, m.ID(), frontendtest.NewModel(methodTrace("self")).ID())

	assert.Equal(t, []string{"x", "y"}, placeNames(m.Inputs()))
	assert.Equal(t, []string{"self", "x", "y"}, placeNames(m.AllInputs()))
	assert.Equal(t, []string{"z", "4"}, placeNames(m.Outputs()))

	x := mustPlace(t, m, "x")
	assert.Equal(t, 1, x.TensorID())
	assert.Equal(t, []string{"1", "x", "arg0"}, x.Names())
	assert.True(t, x.IsEqual(mustPlace(t, m, "arg0")))
	assert.True(t, x.IsEqual(mustPlace(t, m, "1")))
	assert.True(t, x.IsInput())
	assert.False(t, x.IsOutput())
	assert.True(t, mustPlace(t, m, "z").IsOutput())

	_, found := m.PlaceByName("unknown")
	assert.False(t, found)
	assert.False(t, frontend.Place{}.IsValid())

	shape, err := m.PartialShape(mustPlace(t, m, "y"))
	require.NoError(t, err)
	assert.Equal(t, frontend.StaticShape(frontend.DynamicDim, 3), shape)
	// The output w has no alias, only its id.
	elementType, err := m.ElementType(mustPlace(t, m, "4"))
	require.NoError(t, err)
	assert.Equal(t, frontend.TypeOf(dtypes.Float32), elementType)
}

func TestInputModelSelf(t *testing.T) {
	for _, tc := range []struct {
		name       string
		selfHidden bool
	}{
		{"self", true},
		{"my_self_module", true},
		{"selfie", true}, // Substring match.
		{"receiver", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := frontendtest.NewModel(methodTrace(tc.name))
			want := []string{"x", "y"}
			if !tc.selfHidden {
				want = []string{tc.name, "x", "y"}
			}
			assert.Equal(t, want, placeNames(m.Inputs()))
			assert.Len(t, m.AllInputs(), 3)
		})
	}

	t.Run("only-first-input", func(t *testing.T) {
		b := frontendtest.NewTraceBuilder("f")
		x := b.Input(frontendtest.Aval(dtypes.Float32), "x")
		b.Input(frontendtest.Aval(dtypes.Float32), "self")
		b.Output(x)
		m := frontendtest.NewModel(b.Trace())
		assert.Equal(t, []string{"x", "self"}, placeNames(m.Inputs()))
	})
}

func TestInputModelSetShapeAndType(t *testing.T) {
	m := frontendtest.NewModel(methodTrace("self"))
	y := mustPlace(t, m, "y")
	_, err := m.Shape(y)
	require.Error(t, err)

	require.NoError(t, m.SetPartialShape(y, frontend.StaticShape(4, 3)))
	require.NoError(t, m.SetElementType(y, frontend.TypeOf(dtypes.Float64)))
	shape, err := m.Shape(y)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, shape.DType)
	assert.Equal(t, []int{4, 3}, shape.Dimensions)
	// Changes are visible through all handles.
	shape2, err := m.Shape(mustPlace(t, m, "2"))
	require.NoError(t, err)
	assert.True(t, shape.Equal(shape2))

	// Outputs, foreign and invalid places are rejected.
	z := mustPlace(t, m, "z")
	require.ErrorIs(t, m.SetPartialShape(z, frontend.StaticShape(1)), frontend.ErrPlaceMisuse)
	require.ErrorIs(t, m.SetElementType(z, frontend.TypeOf(dtypes.Int8)), frontend.ErrPlaceMisuse)
	other := frontendtest.NewModel(methodTrace("self"))
	require.ErrorIs(t, m.SetPartialShape(mustPlace(t, other, "y"), frontend.StaticShape(1)), frontend.ErrPlaceMisuse)
	require.ErrorIs(t, m.SetPartialShape(frontend.Place{}, frontend.StaticShape(1)), frontend.ErrPlaceMisuse)
	_, err = m.PartialShape(frontend.Place{})
	require.ErrorIs(t, err, frontend.ErrPlaceMisuse)
	outputShape, err := m.PartialShape(z)
	require.NoError(t, err)
	assert.Equal(t, frontend.StaticShape(2, 3), outputShape)
}

func float32Bytes(values ...float32) []byte {
	data := make([]byte, 0, 4*len(values))
	for _, v := range values {
		data = binary.NativeEndian.AppendUint32(data, math.Float32bits(v))
	}
	return data
}

func TestInputModelSetTensorValue(t *testing.T) {
	m := frontendtest.NewModel(methodTrace("self"))
	x := mustPlace(t, m, "x")

	// Wrong size: state unchanged.
	require.ErrorIs(t, m.SetTensorValue(x, float32Bytes(1, 2, 3)), frontend.ErrPlaceMisuse)
	assert.True(t, x.IsInput())
	assert.Empty(t, m.FrozenInputs())

	// Dynamic shape.
	y := mustPlace(t, m, "y")
	require.ErrorIs(t, m.SetTensorValue(y, float32Bytes(1, 2, 3)), frontend.ErrPlaceMisuse)
	assert.True(t, y.IsInput())

	require.NoError(t, m.SetTensorValue(x, float32Bytes(1, 2, 3, 4, 5, 6)))
	assert.False(t, x.IsInput())
	assert.Equal(t, []string{"y"}, placeNames(m.Inputs()))
	assert.Equal(t, []string{"self", "y"}, placeNames(m.AllInputs()))
	desc, found := m.Descriptor(x.TensorID())
	require.True(t, found)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, desc.Value.Value())
	require.Len(t, m.FrozenInputs(), 1)
	assert.True(t, m.FrozenInputs()[0].IsEqual(x))

	// Frozen inputs can't be changed anymore.
	require.ErrorIs(t, m.SetTensorValue(x, float32Bytes(1, 2, 3, 4, 5, 6)), frontend.ErrPlaceMisuse)
	require.ErrorIs(t, m.SetPartialShape(x, frontend.StaticShape(6)), frontend.ErrPlaceMisuse)
	require.ErrorIs(t, m.SetTensorValue(mustPlace(t, m, "z"), float32Bytes(1, 2, 3, 4, 5, 6)), frontend.ErrPlaceMisuse)
}

func TestInputModelOverrideOutputs(t *testing.T) {
	m := frontendtest.NewModel(methodTrace("self"))
	z, w := mustPlace(t, m, "z"), mustPlace(t, m, "4")

	require.NoError(t, m.OverrideAllOutputs([]frontend.Place{w, z}))
	assert.Equal(t, []string{"4", "z"}, placeNames(m.Outputs()))
	require.NoError(t, m.OverrideAllOutputs([]frontend.Place{w}))
	assert.Equal(t, []string{"4"}, placeNames(m.Outputs()))
	assert.False(t, z.IsOutput())
	// Initial outputs can be selected again.
	require.NoError(t, m.OverrideAllOutputs([]frontend.Place{z, w}))

	for _, places := range [][]frontend.Place{
		{z, mustPlace(t, m, "x")},
		{z, z},
		{frontend.Place{}},
		{mustPlace(t, frontendtest.NewModel(methodTrace("self")), "z")},
	} {
		require.ErrorIs(t, m.OverrideAllOutputs(places), frontend.ErrPlaceMisuse)
		assert.Equal(t, []string{"z", "4"}, placeNames(m.Outputs()))
	}
}

func TestInputModelOverrideInputs(t *testing.T) {
	t.Run("with-self", func(t *testing.T) {
		m := frontendtest.NewModel(methodTrace("self"))
		x, y, self := mustPlace(t, m, "x"), mustPlace(t, m, "y"), mustPlace(t, m, "self")
		require.NoError(t, m.OverrideAllInputs([]frontend.Place{y, x}))
		assert.Equal(t, []string{"y", "x"}, placeNames(m.Inputs()))
		assert.Equal(t, []string{"self", "y", "x"}, placeNames(m.AllInputs()))

		for _, places := range [][]frontend.Place{
			{y},
			{self, y, x},
			{y, x, x},
			{y, mustPlace(t, m, "z")},
		} {
			require.ErrorIs(t, m.OverrideAllInputs(places), frontend.ErrPlaceMisuse)
			assert.Equal(t, []string{"self", "y", "x"}, placeNames(m.AllInputs()))
		}
	})

	t.Run("without-self", func(t *testing.T) {
		m := frontendtest.NewModel(methodTrace("receiver"))
		x, y, receiver := mustPlace(t, m, "x"), mustPlace(t, m, "y"), mustPlace(t, m, "receiver")
		require.ErrorIs(t, m.OverrideAllInputs([]frontend.Place{y, x}), frontend.ErrPlaceMisuse)
		require.NoError(t, m.OverrideAllInputs([]frontend.Place{y, receiver, x}))
		assert.Equal(t, []string{"y", "receiver", "x"}, placeNames(m.Inputs()))
	})

	t.Run("frozen", func(t *testing.T) {
		m := frontendtest.NewModel(methodTrace("self"))
		x, y := mustPlace(t, m, "x"), mustPlace(t, m, "y")
		require.NoError(t, m.SetTensorValue(x, float32Bytes(1, 2, 3, 4, 5, 6)))
		require.ErrorIs(t, m.OverrideAllInputs([]frontend.Place{y, x}), frontend.ErrPlaceMisuse)
		require.NoError(t, m.OverrideAllInputs([]frontend.Place{y}))
		assert.Equal(t, []string{"self", "y"}, placeNames(m.AllInputs()))
	})
}

// TestInputModelOverrideProperty checks that, for any selection of places, OverrideAllOutputs either
// applies it exactly or fails leaving the outputs unchanged, and that outputs are always a subset of
// the initial ones.
func TestInputModelOverrideProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("OverrideAllOutputs is all-or-nothing", prop.ForAll(
		func(selections [][]int) bool {
			m := frontendtest.NewModel(methodTrace("self"))
			initial := m.Outputs()
			all := append(m.AllInputs(), initial...)
			for _, selection := range selections {
				places := make([]frontend.Place, len(selection))
				for i, idx := range selection {
					places[i] = all[idx%len(all)]
				}
				before := m.Outputs()
				err := m.OverrideAllOutputs(places)
				after := m.Outputs()
				if err != nil {
					if !slices.EqualFunc(before, after, frontend.Place.IsEqual) {
						return false
					}
				} else if !slices.EqualFunc(places, after, frontend.Place.IsEqual) {
					return false
				}
				for _, p := range after {
					if !slices.ContainsFunc(initial, p.IsEqual) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.IntRange(0, 4))),
	))

	properties.Property("OverrideAllInputs only reorders", prop.ForAll(
		func(order []int) bool {
			m := frontendtest.NewModel(methodTrace("self"))
			inputs := m.Inputs()
			places := make([]frontend.Place, len(order))
			for i, idx := range order {
				places[i] = inputs[idx%len(inputs)]
			}
			err := m.OverrideAllInputs(places)
			// Inputs (not counting self) are x and y.
			isPermutation := len(places) == 2 && !places[0].IsEqual(places[1])
			if (err == nil) != isPermutation {
				return false
			}
			return len(m.AllInputs()) == 3 && m.AllInputs()[0].Name() == "self"
		},
		gen.SliceOf(gen.IntRange(0, 1)),
	))

	properties.TestingRun(t)
}
