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
	"context"
	"fmt"
	"os"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Profile bool
var Trace bool

var closeLog func()
var shutdownTracing func(context.Context) error

func init() {
	// Logging configuration
	viper.BindEnv("log.level", "PVF_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PVF_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PVF_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PVF_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "Format logs for humans rather than as JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Data sources
	viper.BindEnv("data.provider", "PVF_DATA_PROVIDER")
	rootCmd.PersistentFlags().String("data-provider", "yahoo", "Price history source one of: `yahoo` or `tiingo`")
	viper.BindPFlag("data.provider", rootCmd.PersistentFlags().Lookup("data-provider"))

	viper.BindEnv("data.history", "PVF_DATA_HISTORY")
	rootCmd.PersistentFlags().String("history", "5y", "Length of price history to fetch (e.g. 90d, 26w, 18mo, 5y)")
	viper.BindPFlag("data.history", rootCmd.PersistentFlags().Lookup("history"))

	viper.BindEnv("tiingo.token", "TIINGO_TOKEN")
	rootCmd.PersistentFlags().String("tiingo-token", "", "Tiingo API token")
	viper.BindPFlag("tiingo.token", rootCmd.PersistentFlags().Lookup("tiingo-token"))

	viper.BindEnv("fx.provider", "PVF_FX_PROVIDER")
	rootCmd.PersistentFlags().String("fx-provider", "yahoo", "Exchange rate source one of: `yahoo`, `tiingo`, `fred`, or `static`")
	viper.BindPFlag("fx.provider", rootCmd.PersistentFlags().Lookup("fx-provider"))

	// Portfolio
	viper.BindEnv("forecast.total_value", "PVF_TOTAL_VALUE")
	rootCmd.PersistentFlags().Float64("total-value", defaultConfig.TotalValue, "Total value of the portfolio today in USD")
	viper.BindPFlag("forecast.total_value", rootCmd.PersistentFlags().Lookup("total-value"))

	// Concurrency
	viper.BindEnv("fetch.concurrency", "PVF_FETCH_CONCURRENCY")
	rootCmd.PersistentFlags().Int("fetch-concurrency", 4, "Number of holdings fetched at the same time")
	viper.BindPFlag("fetch.concurrency", rootCmd.PersistentFlags().Lookup("fetch-concurrency"))

	rootCmd.PersistentFlags().Duration("fetch-timeout", defaultConfig.FetchTimeout, "Maximum time to fetch a single holding")
	viper.BindPFlag("fetch.timeout", rootCmd.PersistentFlags().Lookup("fetch-timeout"))

	// OpenTelemetry
	viper.BindEnv("otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP collector to send traces to, if blank tracing is disabled")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	viper.BindEnv("otlp.http", "PVF_OTLP_HTTP")
	viper.BindEnv("otlp.insecure", "PVF_OTLP_INSECURE")

	viper.SetDefault("model.order", []int{defaultConfig.Order.P, defaultConfig.Order.D, defaultConfig.Order.Q})
	viper.SetDefault("model.seasonal_order", []int{defaultConfig.Order.SP, defaultConfig.Order.SD, defaultConfig.Order.SQ, defaultConfig.Order.Period})
	viper.SetDefault("forecast.trading_days_per_year", defaultConfig.TradingDaysPerYear)
	viper.SetDefault("calendar.schedule", "@close")
	viper.SetDefault("cache.size", defaultConfig.CacheSize)

	rootCmd.PersistentFlags().BoolVar(&Profile, "cpu-profile", false, "Run pprof and save in profile.out")
	rootCmd.PersistentFlags().BoolVar(&Trace, "trace", false, "Trace program execution and save in trace.out")
}

var rootCmd = &cobra.Command{
	Use:     common.ProgramName,
	Version: common.CurrentVersion.String(),
	Short:   "Project the future value of an investment portfolio",
	Long: `Fetch the price history of every holding in a portfolio, enrich it with moving average
and volatility metrics, fit a seasonal ARIMA model per symbol and report the value of the
portfolio today and at each forecast horizon.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		closeLog = common.SetupLogging()

		var err error
		shutdownTracing, err = opentelemetry.Setup(cmd.Context())
		if err != nil {
			log.Error().Err(err).Msg("could not setup tracing; continuing without it")
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			if err := shutdownTracing(context.Background()); err != nil {
				log.Error().Err(err).Msg("could not flush traces")
			}
		}
		if closeLog != nil {
			closeLog()
		}
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
