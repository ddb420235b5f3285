// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
)

// maxPrintedElements is the largest output printed in full by -run.
const maxPrintedElements = 32

// placeRow describes a place: its names, shape, dtype and size in bytes, if static.
func placeRow(model *frontend.InputModel, p frontend.Place) []string {
	shape, _ := model.PartialShape(p)
	dtype, _ := model.ElementType(p)
	size := "?"
	if static, err := model.Shape(p); err == nil {
		size = humanize.Bytes(uint64(static.Memory()))
	}
	return []string{strings.Join(p.Names(), ", "), shape.String(), dtype.String(), size}
}

// reportModel writes the inputs, outputs and primitive counts of the model.
func reportModel(w io.Writer, tracePath string, model *frontend.InputModel, withSubgraphs bool) {
	d := model.Decoder()
	fprintln(w, titleStyle.Render(fmt.Sprintf("Trace %s", tracePath)))

	headers := []string{"Names", "Shape", "DType", "Bytes"}
	inputs := newTable(append([]string{"Input"}, headers...), lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	for i, p := range model.AllInputs() {
		inputs.Row(append([]string{fmt.Sprint(i)}, placeRow(model, p)...)...)
	}
	for _, p := range model.FrozenInputs() {
		inputs.Row(append([]string{"frozen"}, placeRow(model, p)...)...)
	}
	fprintln(w, inputs.Render())

	outputs := newTable(append([]string{"Output"}, headers...), lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	for i, p := range model.Outputs() {
		outputs.Row(append([]string{fmt.Sprint(i)}, placeRow(model, p)...)...)
	}
	fprintln(w, outputs.Render())

	counts := make(map[string]int)
	countPrimitives(d, counts)
	if withSubgraphs {
		fprintln(w, titleStyle.Render("Subgraphs"))
		table := newTable([]string{"Depth", "Name", "Equations", "Inputs", "Outputs"},
			lipgloss.Right, lipgloss.Left, lipgloss.Right)
		for depth, sub := range frontend.WalkSubgraphs(d) {
			table.Row(fmt.Sprint(depth), sub.DebugInfo(), humanize.Comma(int64(sub.NumEquations())),
				fmt.Sprint(sub.NumInputs()), fmt.Sprint(sub.NumOutputs()))
			countPrimitives(sub, counts)
		}
		fprintln(w, table.Render())
	}

	fprintln(w, titleStyle.Render("Primitives"))
	table := newTable([]string{"Primitive", "Count"}, lipgloss.Left, lipgloss.Right)
	for _, primitive := range slices.Sorted(maps.Keys(counts)) {
		table.Row(primitive, humanize.Comma(int64(counts[primitive])))
	}
	fprintln(w, table.Render())
}

// countPrimitives counts the primitives of the equations of graph d, not including its subgraphs.
func countPrimitives(d frontend.Decoder, counts map[string]int) {
	for i := range d.NumEquations() {
		counts[d.Equation(i).OpType()]++
	}
}

// reportResults writes the outputs of the executed graph.
func reportResults(w io.Writer, model *frontend.InputModel, values []frontend.Value, results []*tensors.Tensor) {
	fprintln(w, titleStyle.Render("Results"))
	table := newTable([]string{"Output", "Name", "Shape", "Value"}, lipgloss.Right, lipgloss.Left)
	places := model.Outputs()
	for i, t := range results {
		shape := t.Shape().String()
		if values[i].IsComplex() {
			shape = values[i].String()
		}
		value := fmt.Sprintf("(%s elements)", humanize.Comma(int64(t.Shape().Size())))
		if t.Shape().Size() <= maxPrintedElements {
			value = fmt.Sprint(t.Value())
		}
		table.Row(fmt.Sprint(i), places[i].Name(), shape, value)
	}
	fprintln(w, table.Render())
}
