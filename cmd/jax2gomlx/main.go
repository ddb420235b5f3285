// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// jax2gomlx converts a JAX trace (a jaxpr exported to a .json or .msgpack file) to a GoMLX graph, and
// reports on it.
//
// Usage:
//
//	jax2gomlx [-config=overrides.toml] [-subgraphs] [-run] <trace file>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/gomlx/jax-gomlx/pkg/frontend"
	"github.com/gomlx/jax-gomlx/pkg/frontend/ops"
	"github.com/gomlx/jax-gomlx/pkg/jaxpr"
	"github.com/gomlx/jax-gomlx/pkg/overrides"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "", "TOML file with overrides of the inputs and outputs of the trace: "+
		"shapes, dtypes, frozen values and the selection of outputs.")
	flagSummary   = flag.Bool("summary", true, "Display the inputs, outputs and primitives of the trace.")
	flagSubgraphs = flag.Bool("subgraphs", false, "List the nested graphs (pjit, cond branches, ...) and "+
		"include their primitives in the summary.")
	flagRun = flag.Bool("run", false, "Execute the converted graph on the pure Go backend, with zero-valued "+
		"inputs, and print its outputs.")
)

// runBackendName is the backend used by -run: the pure Go one, which needs no installation.
const runBackendName = "go"

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing trace file to convert. See 'jax2gomlx -help'")
		os.Exit(1)
	}
	if len(args) > 1 {
		klog.Errorf("Too many arguments. See 'jax2gomlx -help'.")
		os.Exit(1)
	}
	opts := options{
		configPath: *flagConfig,
		summary:    *flagSummary,
		subgraphs:  *flagSubgraphs,
		run:        *flagRun,
	}
	if err := convert(os.Stdout, args[0], opts); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

type options struct {
	configPath              string
	summary, subgraphs, run bool
}

// convert loads the trace, applies the overrides, converts it and writes the reports to w.
func convert(w io.Writer, tracePath string, opts options) error {
	trace, err := jaxpr.Load(tracePath)
	if err != nil {
		return err
	}
	model := frontend.NewInputModel(frontend.NewTraceDecoder(trace))
	if opts.configPath != "" {
		config, err := overrides.Load(opts.configPath)
		if err != nil {
			return err
		}
		if err := config.Apply(model); err != nil {
			return errors.WithMessagef(err, "applying overrides from %q", opts.configPath)
		}
	}

	if opts.summary {
		reportModel(w, tracePath, model, opts.subgraphs)
	}

	backend, err := backends.NewWithConfig(runBackendName)
	if err != nil {
		return errors.WithMessagef(err, "creating backend %q", runBackendName)
	}
	defer backend.Finalize()
	g := NewGraph(backend, model.Decoder().DebugInfo())
	outputs, err := frontend.NewConverter(model, ops.DefaultRegistry()).WithName(tracePath).BuildGraph(g)
	if err != nil {
		return err
	}
	klog.V(1).Infof("converted %q: %d outputs", tracePath, len(outputs))
	if !opts.run {
		return nil
	}

	var results []*tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		g.Compile(xslices.Map(outputs, func(v frontend.Value) *Node { return v.Node })...)
		inputs := make([]any, g.NumParameters())
		for i := range inputs {
			inputs[i] = tensors.FromShape(g.GetParameterByHandle(ParameterHandle(i)).Shape())
		}
		results = g.Run(inputs...)
	})
	if err != nil {
		return errors.WithMessagef(err, "executing %q", tracePath)
	}
	reportResults(w, model, outputs, results)
	return nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
