// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"os"

	"github.com/penny-vault/pv-forecast/portfolio"
	"github.com/penny-vault/pv-forecast/projection"
	"github.com/penny-vault/pv-forecast/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	enrichCmd.Flags().StringP("output", "o", "", "Directory to write the enriched portfolio to; prints to stdout when blank")
	enrichCmd.Flags().StringP("format", "f", report.FormatTable, "Output format one of: `csv`, `json`, or `table`")

	rootCmd.AddCommand(enrichCmd)
}

var enrichCmd = &cobra.Command{
	Use:   "enrich [flags] PORTFOLIO_FILE",
	Short: "Compute price metrics for each holding without forecasting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stop := startProfiling()
		defer stop()

		holdings, err := portfolio.Load(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("FileName", args[0]).Msg("could not load portfolio")
		}

		cfg, err := runConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid configuration")
		}

		manager, err := newDataManager()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize data sources")
		}

		runner, err := projection.NewRunner(cfg, manager, nil, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create runner")
		}
		results, err := runner.Enrich(cmd.Context(), holdings)
		if err != nil {
			log.Fatal().Err(err).Msg("enrichment failed")
		}

		skipped := make([]projection.Skip, 0)
		for _, res := range results {
			if res.Skip != nil {
				skipped = append(skipped, *res.Skip)
			}
		}

		format, _ := cmd.Flags().GetString("format")
		dir, _ := cmd.Flags().GetString("output")
		if dir == "" {
			if err := report.Write(os.Stdout, format, report.EnrichedRecords(results)); err != nil {
				log.Fatal().Err(err).Msg("could not write enriched portfolio")
			}
		} else {
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Fatal().Err(err).Str("Dir", dir).Msg("could not create output directory")
			}
			writeOutput(dir, "enriched", format, report.EnrichedRecords(results))
			if gains := report.GainRecords(results); len(gains) > 0 {
				writeOutput(dir, "gains", format, gains)
			}
		}

		if len(skipped) > 0 {
			report.WriteTable(os.Stderr, report.SkipRecords(skipped))
		}
	},
}
