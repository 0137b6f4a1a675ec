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
	"errors"
	"os"
	"path/filepath"

	"github.com/penny-vault/pv-forecast/portfolio"
	"github.com/penny-vault/pv-forecast/projection"
	"github.com/penny-vault/pv-forecast/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var writeTrajectories bool

func init() {
	forecastCmd.Flags().IntSlice("horizons", defaultConfig.Horizons, "Forecast horizons in years")
	viper.BindPFlag("forecast.horizons", forecastCmd.Flags().Lookup("horizons"))

	forecastCmd.Flags().Int("fit-concurrency", defaultConfig.FitConcurrency, "Number of models fit at the same time")
	viper.BindPFlag("fit.concurrency", forecastCmd.Flags().Lookup("fit-concurrency"))

	forecastCmd.Flags().Duration("fit-timeout", defaultConfig.FitTimeout, "Maximum time to fit a single model")
	viper.BindPFlag("fit.timeout", forecastCmd.Flags().Lookup("fit-timeout"))

	forecastCmd.Flags().StringP("output", "o", ".", "Directory to write results to")
	viper.BindPFlag("output.dir", forecastCmd.Flags().Lookup("output"))

	forecastCmd.Flags().StringP("format", "f", report.FormatCSV, "Output format one of: `csv`, `json`, or `table`")
	viper.BindPFlag("output.format", forecastCmd.Flags().Lookup("format"))

	forecastCmd.Flags().BoolVar(&writeTrajectories, "trajectories", false, "Write the dated forecast path of every symbol")

	rootCmd.AddCommand(forecastCmd)
}

var forecastCmd = &cobra.Command{
	Use:   "forecast [flags] PORTFOLIO_FILE",
	Short: "Forecast the value of a portfolio",
	Long: `Load a portfolio from a CSV or TOML file, fetch price history for each holding, fit a
seasonal ARIMA model per symbol and report the portfolio value today and at each horizon.`,
	Args: cobra.ExactArgs(1),
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

		calendar, err := newCalendar()
		if err != nil {
			log.Fatal().Err(err).Msg("could not build trading calendar")
		}

		runner, err := projection.NewRunner(cfg, manager, newForecaster(cfg.Order), calendar)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create runner")
		}
		rpt, err := runner.Run(cmd.Context(), holdings)
		if err != nil {
			var aggErr *projection.AggregationError
			if errors.As(err, &aggErr) && rpt != nil {
				report.WriteTable(os.Stderr, report.SkipRecords(rpt.Skipped))
			}
			log.Fatal().Err(err).Msg("forecast failed")
		}

		dir := viper.GetString("output.dir")
		format := viper.GetString("output.format")
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("Dir", dir).Msg("could not create output directory")
		}

		writeOutput(dir, "enriched", format, report.EnrichedRecords(rpt.Holdings))
		writeOutput(dir, "forecasts", format, report.ForecastRecords(rpt))
		writeOutput(dir, "snapshots", format, report.SnapshotRecords(rpt))
		writeOutput(dir, "skipped", format, report.SkipRecords(rpt.Skipped))
		if gains := report.GainRecords(rpt.Holdings); len(gains) > 0 {
			writeOutput(dir, "gains", format, gains)
		}

		if writeTrajectories {
			fn := filepath.Join(dir, "trajectories.csv")
			fh, err := os.Create(fn)
			if err != nil {
				log.Fatal().Err(err).Str("FileName", fn).Msg("could not create trajectories file")
			}
			if err := report.WriteTrajectories(fh, rpt.Trajectories); err != nil {
				log.Error().Err(err).Str("FileName", fn).Msg("could not write trajectories")
			}
			fh.Close()
		}

		if err := report.WriteSummary(os.Stdout, rpt); err != nil {
			log.Fatal().Err(err).Msg("could not print summary")
		}
	},
}

func writeOutput[T report.Record](dir, name, format string, records []T) {
	fn, err := report.WriteFile(dir, name, format, records)
	if err != nil {
		log.Fatal().Err(err).Str("Name", name).Msg("could not write output")
	}
	log.Info().Str("FileName", fn).Int("NumRecords", len(records)).Msg("saved output")
}
