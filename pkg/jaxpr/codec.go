// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package jaxpr

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/vmihailenco/msgpack/v5"
)

// Format of a serialized trace.
type Format int

const (
	// FormatJSON is the human-readable format, validated against the embedded JSON schema on read.
	FormatJSON Format = iota

	// FormatMsgpack is the compact binary format, usually used for traces with large constants.
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// FormatFromPath returns the format implied by the file extension: ".json" or ".msgpack" (also ".mpk").
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return FormatJSON, errors.Errorf("unknown trace format for %q: use a .json or .msgpack extension", path)
	}
}

//go:embed trace.schema.json
var schemaJSON []byte

const schemaURL = "trace.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse embedded trace schema")
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, errors.Wrap(err, "failed to add trace schema resource")
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile trace schema")
	}
	return sch, nil
})

// Load reads the trace stored in path, with the format given by its extension, and validates it.
func Load(path string) (*Trace, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open trace file %q", path)
	}
	defer func() { _ = f.Close() }()
	trace, err := Decode(bufio.NewReader(f), format)
	if err != nil {
		return nil, errors.WithMessagef(err, "while loading trace %q", path)
	}
	return trace, nil
}

// Decode reads a trace in the given format and validates it.
func Decode(r io.Reader, format Format) (*Trace, error) {
	trace := &Trace{}
	switch format {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read trace")
		}
		if err := validateSchema(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, trace); err != nil {
			return nil, errors.Wrapf(ErrInvalidTrace, "failed to decode JSON trace: %v", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(trace); err != nil {
			return nil, errors.Wrapf(ErrInvalidTrace, "failed to decode msgpack trace: %v", err)
		}
	default:
		return nil, errors.Errorf("unknown trace format %d", format)
	}
	if trace.Version == 0 {
		trace.Version = CurrentVersion
	}
	if trace.Version > CurrentVersion {
		return nil, errors.Wrapf(ErrInvalidTrace, "trace version %d is newer than the supported version %d",
			trace.Version, CurrentVersion)
	}
	if err := trace.Validate(); err != nil {
		return nil, err
	}
	return trace, nil
}

func validateSchema(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(ErrInvalidTrace, "malformed JSON: %v", err)
	}
	if err := sch.Validate(inst); err != nil {
		return errors.Wrapf(ErrInvalidTrace, "trace doesn't match schema: %v", err)
	}
	return nil
}

// Encode writes the trace in the given format. The trace is validated first.
func Encode(w io.Writer, format Format, trace *Trace) error {
	if err := trace.Validate(); err != nil {
		return err
	}
	out := *trace
	if out.Version == 0 {
		out.Version = CurrentVersion
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(&out); err != nil {
			return errors.Wrap(err, "failed to encode JSON trace")
		}
	case FormatMsgpack:
		if err := msgpack.NewEncoder(w).Encode(&out); err != nil {
			return errors.Wrap(err, "failed to encode msgpack trace")
		}
	default:
		return errors.Errorf("unknown trace format %d", format)
	}
	return nil
}

// Save writes the trace to path, with the format given by its extension.
func Save(path string, trace *Trace) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create trace file %q", path)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "failed to close trace file %q", path)
		}
	}()
	w := bufio.NewWriter(f)
	if err = Encode(w, format, trace); err != nil {
		return errors.WithMessagef(err, "while saving trace %q", path)
	}
	if err = w.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write trace file %q", path)
	}
	return nil
}
