// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sbench/pkg/config"
	"github.com/AleutianAI/sbench/pkg/logging"
	"github.com/AleutianAI/sbench/pkg/suites"
	"github.com/AleutianAI/sbench/pkg/ux"
)

// globalOptions holds the persistent flags, merged with the config file in
// PersistentPreRunE. Explicit flags win over the file.
type globalOptions struct {
	configPath  string
	logLevel    string
	logJSON     bool
	logDir      string
	progress    string
	metricsFile string
	traceFile   string

	cfg config.SbenchConfig
}

// newRootCmd builds the command tree. Suite commands are generated from
// suites.Default.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalOptions{cfg: config.DefaultConfig()}

	root := &cobra.Command{
		Use:   "sbench",
		Short: "Memory-bandwidth benchmarks for stencil kernels",
		Long: `sbench sweeps stencil kernel variants over a range of domain sizes,
times every run, and writes the results as one CSV row per run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.resolve(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.sbench/sbench.yaml)")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVar(&g.logJSON, "log-json", false, "write console logs as JSON")
	pf.StringVar(&g.logDir, "log-dir", "", "also append JSON logs to a file in this directory")
	pf.StringVar(&g.progress, "progress", string(ux.ProgressAuto), "progress display (auto, bar, plain, none)")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "write sweep metrics here (.json for otel JSON, else Prometheus textfile)")
	pf.StringVar(&g.traceFile, "trace-file", "", "write sweep spans here as JSON")

	for _, name := range suites.Default.List() {
		s, err := suites.Default.Get(name)
		if err != nil {
			continue
		}
		root.AddCommand(newSuiteCmd(s, g))
	}
	root.AddCommand(newVariantsCmd())
	root.AddCommand(newSummarizeCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// resolve loads the config file and fills every persistent flag the user
// did not set.
func (g *globalOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	g.cfg = cfg

	flags := cmd.Flags()
	if !flags.Changed("log-level") {
		g.logLevel = cfg.Log.Level
	}
	if !flags.Changed("log-json") {
		g.logJSON = cfg.Log.JSON
	}
	if !flags.Changed("log-dir") {
		g.logDir = cfg.Log.Dir
	}
	if !flags.Changed("progress") {
		g.progress = cfg.Progress
	}
	if !flags.Changed("metrics-file") {
		g.metricsFile = cfg.Telemetry.MetricsFile
	}
	if !flags.Changed("trace-file") {
		g.traceFile = cfg.Telemetry.TraceFile
	}
	return nil
}

// newLogger builds the command logger from the resolved options.
func (g *globalOptions) newLogger(stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  g.logDir,
		Service: "sbench",
		JSON:    g.logJSON,
		Writer:  stderr,
	}), nil
}
