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
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sbench/pkg/config"
	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/suites"
	"github.com/AleutianAI/sbench/pkg/sweep"
	"github.com/AleutianAI/sbench/pkg/telemetry"
	"github.com/AleutianAI/sbench/pkg/ux"
	"github.com/AleutianAI/sbench/pkg/validation"
)

var errUsage = errors.New("invalid usage")

// exponentLimit is the largest --max-exponent accepted.
const exponentLimit = 16

// benchOptions are the per-suite command flags.
type benchOptions struct {
	executions int
	dtype      string
	minExp     int
	maxExp     int
}

// newSuiteCmd builds the benchmark command for one suite.
func newSuiteCmd(s suites.Suite, g *globalOptions) *cobra.Command {
	o := &benchOptions{}
	cmd := &cobra.Command{
		Use:   s.Name + " <backend> <gpu-architecture> <output>",
		Short: s.Short,
		Long: fmt.Sprintf(`%s.

Runs every variant of the suite on every domain, repeating each run
--executions times, and writes one CSV row per run to <output>.
<backend> is one of cuda, hip.`, s.Short),
		Args: cobra.MatchAll(cobra.ExactArgs(3), backendArg),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("executions") {
				o.executions = g.cfg.Executions
			}
			return runSuite(cmd, s, g, o, args)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&o.executions, "executions", "e", config.DefaultConfig().Executions, "timed repetitions per variant and domain")
	f.StringVarP(&o.dtype, "dtype", "d", string(s.DefaultDType), "element type (float32, float64)")
	f.IntVar(&o.minExp, "min-exponent", sweep.MinExponent, "smallest domain is 2^n x 2^n x 80")
	f.IntVar(&o.maxExp, "max-exponent", sweep.MaxExponent, "largest domain is 2^n x 2^n x 80")
	return cmd
}

// backendArg validates the <backend> positional argument.
func backendArg(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	_, err := params.ParseBackend(args[0])
	return err
}

func runSuite(cmd *cobra.Command, s suites.Suite, g *globalOptions, o *benchOptions, args []string) error {
	backend, err := params.ParseBackend(args[0])
	if err != nil {
		return err
	}
	dtype, err := params.ParseDType(o.dtype)
	if err != nil {
		return err
	}
	if o.minExp < 1 || o.minExp > o.maxExp || o.maxExp > exponentLimit {
		return fmt.Errorf("%w: need 1 <= --min-exponent <= --max-exponent <= %d, got %d and %d",
			errUsage, exponentLimit, o.minExp, o.maxExp)
	}
	if err := validation.OutputPath(args[2]); err != nil {
		return err
	}
	if _, err := os.Stat(args[2]); err == nil {
		ux.Warning(cmd.ErrOrStderr(), fmt.Sprintf("%s exists and will be replaced", args[2]))
	}
	mode, err := ux.ParseProgressMode(g.progress)
	if err != nil {
		return err
	}

	logger, err := g.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()
	logger = logger.With("suite", s.Name)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "sbench",
		ServiceVersion: version,
		TraceFile:      g.traceFile,
		MetricsFile:    g.metricsFile,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	// Also on failure: the metrics of an aborted sweep are the post-mortem.
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	base := params.BuildBaseConfig(backend, args[1], dtype)
	sw := s.Sweep(base, o.executions)
	sw.Domains = sweep.DomainRange(o.minExp, o.maxExp, sweep.DomainDepth)

	driver := &sweep.Driver{
		Progress: ux.NewProgress(cmd.ErrOrStderr(), mode),
		Logger:   logger.Slog(),
		Tracer:   tel.TracerProvider().Tracer("sbench.sweep"),
		Meter:    tel.MeterProvider().Meter("sbench.sweep"),
	}
	results, err := driver.Run(ctx, sw)
	if err != nil {
		return err
	}

	output := args[2]
	if err := results.WriteFile(output); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	logger.Info("results written", "path", output, "rows", results.Len())
	ux.Success(cmd.OutOrStdout(), fmt.Sprintf("%s: wrote %d rows to %s", s.Name, results.Len(), output))
	return nil
}
