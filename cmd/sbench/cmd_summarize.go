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
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/sbench/pkg/kernels"
	"github.com/AleutianAI/sbench/pkg/sweep"
	"github.com/AleutianAI/sbench/pkg/table"
	"github.com/AleutianAI/sbench/pkg/ux"
)

var errMissingColumn = errors.New("missing column")

// domainColumn is the result column written by params.Pretty.
const domainColumn = "domain"

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <results.csv>",
		Short: "Summarize a result file per domain and stencil",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := table.ReadFile(args[0])
			if err != nil {
				return err
			}
			groups, err := summarize(results)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			rows := make([][]string, len(groups))
			for i, s := range groups {
				rows[i] = []string{
					s.Domain, s.Stencil, strconv.Itoa(s.Runs),
					formatSeconds(s.TimeMedian), formatSeconds(s.TimeMin), formatSeconds(s.TimeMean),
					strconv.FormatFloat(s.BandwidthMedian, 'f', 2, 64),
				}
			}
			ux.PrintTable(cmd.OutOrStdout(),
				[]string{"domain", "stencil", "runs", "time median", "time min", "time mean", "GB/s median"},
				rows)
			return nil
		},
	}
}

// summary holds the statistics of one (domain, stencil) group.
type summary struct {
	Domain          string
	Stencil         string
	Runs            int
	TimeMedian      float64
	TimeMin         float64
	TimeMean        float64
	BandwidthMedian float64
}

// summarize groups rows by (domain, stencil) in first-seen order.
func summarize(t *table.Table) ([]summary, error) {
	for _, col := range []string{domainColumn, sweep.StencilColumn, kernels.ColumnTime, kernels.ColumnBandwidth} {
		if !slices.Contains(t.Columns(), col) {
			return nil, fmt.Errorf("%w: %s", errMissingColumn, col)
		}
	}

	type key struct{ domain, stencil string }
	type samples struct{ time, bandwidth []float64 }

	var order []key
	groups := make(map[key]*samples)
	for i, row := range t.Rows() {
		k := key{cell(row, domainColumn), cell(row, sweep.StencilColumn)}
		tm, err := strconv.ParseFloat(cell(row, kernels.ColumnTime), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i, kernels.ColumnTime, err)
		}
		bw, err := strconv.ParseFloat(cell(row, kernels.ColumnBandwidth), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i, kernels.ColumnBandwidth, err)
		}

		g, ok := groups[k]
		if !ok {
			g = &samples{}
			groups[k] = g
			order = append(order, k)
		}
		g.time = append(g.time, tm)
		g.bandwidth = append(g.bandwidth, bw)
	}

	out := make([]summary, 0, len(order))
	for _, k := range order {
		g := groups[k]
		out = append(out, summary{
			Domain:          k.domain,
			Stencil:         k.stencil,
			Runs:            len(g.time),
			TimeMedian:      median(g.time),
			TimeMin:         floats.Min(g.time),
			TimeMean:        stat.Mean(g.time, nil),
			BandwidthMedian: median(g.bandwidth),
		})
	}
	return out, nil
}

// median sorts a copy of xs; stat.Quantile requires sorted input. Even
// counts average the two middle values.
func median(xs []float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n%2 == 1:
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	default:
		return stat.Mean(sorted[n/2-1:n/2+1], nil)
	}
}

func cell(row table.Row, key string) string {
	v, ok := row.Get(key)
	if !ok {
		return ""
	}
	return table.FormatValue(v)
}

func formatSeconds(s float64) string {
	switch {
	case s >= 1:
		return strconv.FormatFloat(s, 'f', 3, 64) + "s"
	case s >= 1e-3:
		return strconv.FormatFloat(s*1e3, 'f', 3, 64) + "ms"
	default:
		return strconv.FormatFloat(s*1e6, 'f', 3, 64) + "µs"
	}
}
