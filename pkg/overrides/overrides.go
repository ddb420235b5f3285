// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package overrides reads a TOML file describing changes to the inputs and outputs of a converted
// trace, and applies them to a frontend.InputModel.
//
// Example of a configuration file:
//
//	# Keep only the output "y".
//	outputs = ["y"]
//
//	[[input]]
//	name = "x"
//	shape = [1, 4, 4, 1]
//	dtype = "float32"
//
//	[[input]]
//	name = "weights"
//	value_file = "weights.bin"  # Raw values in native byte order: the input becomes a constant.
package overrides

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config holds the overrides to apply to an InputModel.
type Config struct {
	// Outputs, if not empty, replaces the outputs of the model, in the given order.
	Outputs []string `toml:"outputs"`

	Inputs []Input `toml:"input"`

	// dir is the directory against which relative value files are resolved.
	dir string
}

// Input holds the overrides of one input, identified by one of its names or by its id.
type Input struct {
	Name string `toml:"name"`

	// Shape, if set, replaces the shape of the input: -1 marks a dynamic dimension, and an empty
	// list a scalar.
	Shape []int `toml:"shape"`

	// DType, if set, replaces the element type of the input, e.g. "float32" or "bfloat16".
	DType string `toml:"dtype"`

	// ValueFile, if set, freezes the input to the raw contents of the file. Relative paths are taken
	// relative to the configuration file.
	ValueFile string `toml:"value_file"`
}

// Load reads the configuration from the TOML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read overrides from %q", path)
	}
	config, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "overrides file %q", path)
	}
	config.dir = filepath.Dir(path)
	return config, nil
}

// Parse parses a TOML configuration. Relative value files are resolved against the current directory.
func Parse(data []byte) (*Config, error) {
	config := &Config{}
	meta, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse TOML overrides")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown keys in overrides: %v", undecoded)
	}
	for i, in := range config.Inputs {
		if in.Name == "" {
			return nil, errors.Errorf("[[input]] #%d has no name", i)
		}
		if in.DType != "" && !frontend.ParseElementType(in.DType).IsStatic() {
			return nil, errors.Errorf("[[input]] %q: unknown dtype %q", in.Name, in.DType)
		}
	}
	return config, nil
}

// findPlace returns the place in places registered under name.
func findPlace(places []frontend.Place, name string) (frontend.Place, bool) {
	idx := slices.IndexFunc(places, func(p frontend.Place) bool {
		return slices.Contains(p.Names(), name)
	})
	if idx < 0 {
		return frontend.Place{}, false
	}
	return places[idx], true
}

// Apply applies the overrides to model. For each input the shape is set first, then the element type,
// then the value. The outputs are overridden last.
//
// Inputs and outputs are looked up by name separately, since an output may carry the same names as an
// input it returns.
func (c *Config) Apply(model *frontend.InputModel) error {
	for _, in := range c.Inputs {
		if err := c.applyInput(model, in); err != nil {
			return errors.WithMessagef(err, "[[input]] %q", in.Name)
		}
	}
	if len(c.Outputs) == 0 {
		return nil
	}
	current := model.Outputs()
	outputs := make([]frontend.Place, len(c.Outputs))
	for i, name := range c.Outputs {
		p, found := findPlace(current, name)
		if !found {
			return errors.Wrapf(frontend.ErrPlaceMisuse, "output %q not found", name)
		}
		outputs[i] = p
	}
	if err := model.OverrideAllOutputs(outputs); err != nil {
		return err
	}
	klog.V(1).Infof("overrides: outputs set to %v", c.Outputs)
	return nil
}

func (c *Config) applyInput(model *frontend.InputModel, in Input) error {
	p, found := findPlace(model.AllInputs(), in.Name)
	if !found {
		return errors.Wrap(frontend.ErrPlaceMisuse, "input not found")
	}
	if in.Shape != nil {
		if err := model.SetPartialShape(p, frontend.PartialShape{Dimensions: in.Shape}); err != nil {
			return err
		}
	}
	if in.DType != "" {
		if err := model.SetElementType(p, frontend.ParseElementType(in.DType)); err != nil {
			return err
		}
	}
	if in.ValueFile != "" {
		path := in.ValueFile
		if !filepath.IsAbs(path) && c.dir != "" {
			path = filepath.Join(c.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read value file")
		}
		if err := model.SetTensorValue(p, data); err != nil {
			return err
		}
	}
	klog.V(1).Infof("overrides: input %s updated", p)
	return nil
}
