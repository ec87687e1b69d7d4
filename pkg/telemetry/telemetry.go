// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry sets up OpenTelemetry for one sbench invocation.
//
// A sweep is a short-lived batch job, so nothing is pushed or scraped.
// Spans are written as JSON to a trace file by the stdout exporter, and
// metrics are written once at shutdown, either as a Prometheus textfile
// (for node_exporter's textfile collector) or as otel JSON.
//
// Init installs the providers as the otel globals, so package-level
// otel.Tracer and otel.Meter instruments pick them up.
//
//	tel, err := telemetry.Init(ctx, telemetry.Config{
//	    ServiceName: "sbench",
//	    TraceFile:   "sweep.trace.json",
//	    MetricsFile: "sweep.prom",
//	})
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

var (
	// ErrNilContext is returned by Init for a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownFormat is returned for an unsupported metrics format.
	ErrUnknownFormat = errors.New("unknown metrics format")
)

// Metrics file formats.
const (
	FormatPrometheus = "prometheus"
	FormatJSON       = "json"
)

// Config controls telemetry outputs. Empty file names disable the output.
type Config struct {
	// ServiceName identifies this process in the resource attributes.
	ServiceName string

	// ServiceVersion is the version string for this process.
	ServiceVersion string

	// TraceFile receives spans as JSON, one object per span.
	TraceFile string

	// MetricsFile receives the final metric values at Shutdown.
	MetricsFile string

	// MetricsFormat is FormatPrometheus or FormatJSON. Default: derived
	// from the MetricsFile extension, ".json" meaning FormatJSON.
	MetricsFormat string
}

// DefaultConfig returns a configuration with both outputs disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "sbench",
		ServiceVersion: "1.0.0",
	}
}

func (c Config) metricsFormat() string {
	if c.MetricsFormat != "" {
		return c.MetricsFormat
	}
	if strings.EqualFold(filepath.Ext(c.MetricsFile), ".json") {
		return FormatJSON
	}
	return FormatPrometheus
}

// Telemetry owns the providers and output files of one invocation.
//
// Thread Safety: Providers are safe for concurrent use. Shutdown must be
// called once.
type Telemetry struct {
	cfg Config

	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	registry *prometheus.Registry

	files []*os.File
}

// Init creates the configured providers and installs them as the otel
// globals. With both outputs disabled it installs nothing and Shutdown is
// a no-op.
//
// Outputs:
//   - *Telemetry: Never nil on success.
//   - error: ErrNilContext, ErrUnknownFormat, or a file/exporter error.
//     Files opened before the failure are closed.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	t := &Telemetry{cfg: cfg}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceFile != "" {
		tp, err := t.initTracer(cfg, res)
		if err != nil {
			t.closeFiles()
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		t.tp = tp
	}

	if cfg.MetricsFile != "" {
		mp, err := t.initMeter(cfg, res)
		if err != nil {
			if t.tp != nil {
				_ = t.tp.Shutdown(ctx)
			}
			t.closeFiles()
			return nil, fmt.Errorf("init meter: %w", err)
		}
		t.mp = mp
	}

	if t.tp != nil {
		otel.SetTracerProvider(t.tp)
	}
	if t.mp != nil {
		otel.SetMeterProvider(t.mp)
	}
	return t, nil
}

func (t *Telemetry) create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t.files = append(t.files, f)
	return f, nil
}

func (t *Telemetry) initTracer(cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	f, err := t.create(cfg.TraceFile)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

func (t *Telemetry) initMeter(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	switch format := cfg.metricsFormat(); format {
	case FormatPrometheus:
		// Own registry: the textfile must hold only this invocation's series.
		t.registry = prometheus.NewRegistry()
		exporter, err := promexporter.New(promexporter.WithRegisterer(t.registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		), nil

	case FormatJSON:
		f, err := t.create(cfg.MetricsFile)
		if err != nil {
			return nil, fmt.Errorf("create metrics file: %w", err)
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(f))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		// The periodic reader exports once more on shutdown, which is the
		// only export that matters for a batch run.
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// TracerProvider returns the SDK provider, or a no-op one when tracing is
// disabled.
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	if t.tp == nil {
		return tracenoop.NewTracerProvider()
	}
	return t.tp
}

// MeterProvider returns the SDK provider, or a no-op one when metrics are
// disabled.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t.mp == nil {
		return noop.NewMeterProvider()
	}
	return t.mp
}

// WriteTextfile writes the current Prometheus metrics to path. It requires
// FormatPrometheus.
func (t *Telemetry) WriteTextfile(path string) error {
	if t.registry == nil {
		return fmt.Errorf("%w: textfile needs %s metrics", ErrUnknownFormat, FormatPrometheus)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	return prometheus.WriteToTextfile(path, t.registry)
}

// Shutdown flushes spans, writes the metrics file, and closes all files.
// Every step runs even if an earlier one fails.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if t.registry != nil {
		// Before the provider shuts down; the exporter cannot collect after.
		if err := t.WriteTextfile(t.cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter: %w", err))
		}
	}
	errs = append(errs, t.closeFiles())
	return errors.Join(errs...)
}

func (t *Telemetry) closeFiles() error {
	var errs []error
	for _, f := range t.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.files = nil
	return errors.Join(errs...)
}
