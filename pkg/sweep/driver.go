// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sweep

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/table"
)

var (
	tracer = otel.Tracer("sbench.sweep")
	meter  = otel.Meter("sbench.sweep")
)

// StencilColumn is the result column holding the variant name.
const StencilColumn = "stencil"

// Sweep describes one benchmark invocation.
type Sweep struct {
	// Domains is the domain sequence, outermost loop. Default: Domains().
	Domains iter.Seq[params.Domain]

	// Variants are run in order for every domain.
	Variants []Variant

	// Executions is the number of timed repetitions per variant and domain.
	Executions int

	// Preprocess adjusts each variant's parameters after the domain has
	// been merged in, e.g. TruncateBlockToDomain. Nil means unchanged.
	Preprocess func(params.Set) params.Set

	// RunID identifies the sweep in logs and traces. Generated when empty.
	RunID string
}

// Validate checks that the sweep can be run.
func (s *Sweep) Validate() error {
	if s.Executions <= 0 {
		return fmt.Errorf("%w: executions must be positive, got %d", ErrInvalidSweep, s.Executions)
	}
	for i, v := range s.Variants {
		if v.Name == "" {
			return fmt.Errorf("%w: variant %d has no name", ErrInvalidSweep, i)
		}
		if v.New == nil {
			return fmt.Errorf("%w: variant %q has no capability", ErrInvalidSweep, v.Name)
		}
	}
	return nil
}

// Driver runs sweeps.
//
// Description:
//
//	The driver iterates domains, then variants, then repetitions, strictly
//	in that nesting and strictly sequentially. For every (domain, variant)
//	pair it constructs one kernel instance, runs it Executions times, and
//	appends one row per run. When the pair is done, on success or failure,
//	the instance is closed and the Reclaimer runs to completion before the
//	next instance is constructed.
//
//	The first construction or run error stops the sweep and is returned
//	unmodified. Progress, logging, tracing, and metrics only observe.
//
// Thread Safety:
//
//	A Driver may be reused but must not run two sweeps concurrently; device
//	timing requires exclusive access.
type Driver struct {
	// Reclaimer is the memory-hygiene barrier. Default: GCReclaimer.
	Reclaimer Reclaimer

	// Progress observes the three sweep levels. Default: no-op.
	Progress Progress

	// Logger receives sweep logs. Default: discards.
	Logger *slog.Logger

	// Tracer and Meter override the package-level otel instruments.
	Tracer trace.Tracer
	Meter  metric.Meter

	metricsOnce    sync.Once
	rowsTotal      metric.Int64Counter
	variantsTotal  metric.Int64Counter
	runSeconds     metric.Float64Histogram
	reclaimSeconds metric.Float64Histogram
}

func (d *Driver) reclaimer() Reclaimer {
	if d.Reclaimer == nil {
		return GCReclaimer{}
	}
	return d.Reclaimer
}

func (d *Driver) progress() Progress {
	if d.Progress == nil {
		return nopProgress{}
	}
	return d.Progress
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func (d *Driver) tracer() trace.Tracer {
	if d.Tracer == nil {
		return tracer
	}
	return d.Tracer
}

// initMetrics lazily initializes metrics.
// Instrument failures degrade observability but never the sweep.
func (d *Driver) initMetrics() {
	d.metricsOnce.Do(func() {
		m := d.Meter
		if m == nil {
			m = meter
		}

		var initErrors []string
		var err error

		d.rowsTotal, err = m.Int64Counter("sbench_rows_total",
			metric.WithDescription("Result rows appended"),
		)
		if err != nil {
			initErrors = append(initErrors, "rows_total: "+err.Error())
		}

		d.variantsTotal, err = m.Int64Counter("sbench_variants_total",
			metric.WithDescription("Variant instances processed, by outcome"),
		)
		if err != nil {
			initErrors = append(initErrors, "variants_total: "+err.Error())
		}

		d.runSeconds, err = m.Float64Histogram("sbench_run_duration_seconds",
			metric.WithDescription("Wall time of one kernel Run call, warm-up included"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_seconds: "+err.Error())
		}

		d.reclaimSeconds, err = m.Float64Histogram("sbench_reclaim_duration_seconds",
			metric.WithDescription("Time spent in the reclamation barrier"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "reclaim_seconds: "+err.Error())
		}

		if len(initErrors) > 0 {
			d.logger().Error("failed to initialize some sweep metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Run executes the sweep and returns the result table.
//
// Outputs:
//   - *table.Table: One row per (domain, variant, repetition), in sweep order.
//   - error: The first configuration or execution error, unmodified. The
//     table is not returned on this path.
func (d *Driver) Run(ctx context.Context, sw Sweep) (*table.Table, error) {
	t := table.New()
	if err := d.RunInto(ctx, t, sw); err != nil {
		return nil, err
	}
	return t, nil
}

// RunInto executes the sweep, appending rows to t.
//
// Description:
//
//	Same as Run, except that the caller owns the table. When an error is
//	returned t holds exactly the rows appended before the failure.
func (d *Driver) RunInto(ctx context.Context, t *table.Table, sw Sweep) error {
	if err := sw.Validate(); err != nil {
		return err
	}
	if sw.Domains == nil {
		sw.Domains = Domains()
	}
	if sw.RunID == "" {
		sw.RunID = uuid.NewString()
	}

	d.initMetrics()
	log := d.logger().With(slog.String("run_id", sw.RunID))
	prog := d.progress()

	ctx, span := d.tracer().Start(ctx, "sweep.Run",
		trace.WithAttributes(
			attribute.String("sweep.run_id", sw.RunID),
			attribute.Int("sweep.variants", len(sw.Variants)),
			attribute.Int("sweep.executions", sw.Executions),
		),
	)
	defer span.End()

	start := time.Now()
	domainCount := count(sw.Domains)
	log.Info("sweep started",
		slog.Int("domains", domainCount),
		slog.Int("variants", len(sw.Variants)),
		slog.Int("executions", sw.Executions),
	)

	domains := report(prog, LevelDomain, domainCount, sw.Domains, params.Domain.String)
	for domain := range domains {
		variants := report(prog, LevelVariant, len(sw.Variants), variantSeq(sw.Variants),
			func(v Variant) string { return v.Name })
		for v := range variants {
			if err := d.runVariant(ctx, log, t, domain, v, sw); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				log.Info("sweep aborted",
					slog.String("variant", v.Name),
					slog.String("domain", domain.String()),
					slog.Int("rows", t.Len()),
				)
				return err
			}
		}
	}

	span.SetStatus(codes.Ok, "")
	log.Info("sweep completed",
		slog.Int("rows", t.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// runVariant owns one kernel instance from construction to reclamation.
func (d *Driver) runVariant(ctx context.Context, log *slog.Logger, t *table.Table,
	domain params.Domain, v Variant, sw Sweep) (err error) {

	ctx, span := d.tracer().Start(ctx, "sweep.Variant",
		trace.WithAttributes(
			attribute.String("variant.name", v.Name),
			attribute.String("variant.kernel", v.Kernel),
			attribute.String("variant.domain", domain.String()),
		),
	)
	defer span.End()

	// Registered first so it runs last, after Close, on every path.
	defer d.reclaim(ctx, log, v.Name)

	defer func() {
		outcome := "ok"
		switch {
		case err == nil:
		case IsConfigurationError(err):
			outcome = "configuration_error"
		case IsExecutionError(err):
			outcome = "execution_error"
		default:
			outcome = "error"
		}
		if d.variantsTotal != nil {
			d.variantsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("variant", v.Name),
				attribute.String("outcome", outcome),
			))
		}
		if err != nil {
			attachVariant(err, v.Name)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
	}()

	p := v.Params.WithDomain(domain)
	if sw.Preprocess != nil {
		p = sw.Preprocess(p)
	}

	log.Debug("constructing instance",
		slog.String("variant", v.Name),
		slog.String("domain", domain.String()),
	)
	inst, err := v.New(domain, p)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := inst.Close(); cerr != nil {
			if err == nil {
				err = &ExecutionError{Variant: v.Name, Domain: domain, Repetition: -1,
					Err: fmt.Errorf("close instance: %w", cerr)}
				return
			}
			log.Warn("closing instance after failure also failed",
				slog.String("variant", v.Name),
				slog.String("error", cerr.Error()),
			)
		}
	}()

	attrs := metric.WithAttributes(attribute.String("variant", v.Name))
	reps := report(d.progress(), LevelRepetition, sw.Executions, repetitions(sw.Executions), strconv.Itoa)
	for range reps {
		runStart := time.Now()
		rec, err := inst.Run()
		if err != nil {
			return err
		}
		if d.runSeconds != nil {
			d.runSeconds.Record(ctx, time.Since(runStart).Seconds(), attrs)
		}

		row := rec.Clone()
		row.Set(StencilColumn, v.Name)
		row.Update(params.Pretty(inst.Parameters()))
		t.Append(row)

		if d.rowsTotal != nil {
			d.rowsTotal.Add(ctx, 1, attrs)
		}
	}
	return nil
}

// reclaim runs the memory-hygiene barrier synchronously.
func (d *Driver) reclaim(ctx context.Context, log *slog.Logger, variant string) {
	start := time.Now()
	d.reclaimer().Reclaim()
	elapsed := time.Since(start)

	if d.reclaimSeconds != nil {
		d.reclaimSeconds.Record(ctx, elapsed.Seconds())
	}
	log.Debug("reclaimed resources",
		slog.String("variant", variant),
		slog.Duration("duration", elapsed),
	)
}

func variantSeq(vs []Variant) iter.Seq[Variant] {
	return func(yield func(Variant) bool) {
		for _, v := range vs {
			if !yield(v) {
				return
			}
		}
	}
}
