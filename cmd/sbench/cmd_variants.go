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
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/sbench/pkg/params"
	"github.com/AleutianAI/sbench/pkg/suites"
	"github.com/AleutianAI/sbench/pkg/sweep"
	"github.com/AleutianAI/sbench/pkg/table"
	"github.com/AleutianAI/sbench/pkg/ux"
)

func newVariantsCmd() *cobra.Command {
	var dtype string
	cmd := &cobra.Command{
		Use:   "variants <suite> <backend>",
		Short: "List the variants a suite would run, without running them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := suites.Default.Get(args[0])
			if err != nil {
				return fmt.Errorf("%w (choose from %s)", err, strings.Join(suites.Default.List(), ", "))
			}
			backend, err := params.ParseBackend(args[1])
			if err != nil {
				return err
			}
			dt := s.DefaultDType
			if dtype != "" {
				if dt, err = params.ParseDType(dtype); err != nil {
					return err
				}
			}

			variants := s.Variants(params.BuildBaseConfig(backend, "", dt))
			ux.Title(cmd.OutOrStdout(), fmt.Sprintf("%s (%s, %s)", s.Name, backend, dt))
			ux.PrintTable(cmd.OutOrStdout(), []string{"variant", "kernel", "block-size", "options"}, variantRows(variants))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dtype, "dtype", "d", "", "element type (default: the suite's)")
	return cmd
}

func variantRows(variants []sweep.Variant) [][]string {
	rows := make([][]string, 0, len(variants))
	for _, v := range variants {
		rows = append(rows, []string{v.Name, v.Kernel, v.Params.BlockSize.String(), formatOptions(v.Params.Options)})
	}
	return rows
}

// formatOptions renders options as sorted key=value pairs.
func formatOptions(opts params.Options) string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + table.FormatValue(opts[k])
	}
	return strings.Join(parts, " ")
}
