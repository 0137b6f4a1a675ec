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
	"fmt"
	"os"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"time"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/data"
	"github.com/penny-vault/pv-forecast/forecast"
	"github.com/penny-vault/pv-forecast/projection"
	"github.com/penny-vault/pv-forecast/tradecron"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrInvalidOrder    = errors.New("invalid model order")
)

var defaultConfig = projection.DefaultConfig()

// startProfiling begins CPU profiling and execution tracing when requested on the command
// line. The returned function stops both.
func startProfiling() func() {
	stops := make([]func(), 0, 2)

	if Profile {
		f, err := os.Create("profile.out")
		if err != nil {
			log.Fatal().Err(err).Msg("could not create profile output file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start cpu profile")
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}

	if Trace {
		f, err := os.Create("trace.out")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create trace output file")
		}
		if err := trace.Start(f); err != nil {
			log.Fatal().Err(err).Msg("failed to start trace")
		}
		stops = append(stops, func() {
			trace.Stop()
			if err := f.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close trace file")
			}
		})
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// newDataManager builds the price, exchange rate and profile sources named in the
// configuration
func newDataManager() (*data.Manager, error) {
	var prices data.PriceProvider
	switch provider := strings.ToLower(viper.GetString("data.provider")); provider {
	case "", "yahoo":
		prices = data.NewYahoo()
	case "tiingo":
		tiingo, err := data.NewTiingo(viper.GetString("tiingo.token"))
		if err != nil {
			return nil, err
		}
		prices = tiingo
	default:
		return nil, fmt.Errorf("%w: price provider %s", ErrUnknownProvider, provider)
	}

	var fx data.FXProvider
	switch provider := strings.ToLower(viper.GetString("fx.provider")); provider {
	case "", "yahoo":
		fx = data.NewYahoo()
	case "tiingo":
		tiingo, err := data.NewTiingo(viper.GetString("tiingo.token"))
		if err != nil {
			return nil, err
		}
		fx = tiingo
	case "fred":
		fx = data.NewFred()
	case "static":
		fx = data.NewStaticFX(floatMap("fx.rates"))
	default:
		return nil, fmt.Errorf("%w: exchange rate provider %s", ErrUnknownProvider, provider)
	}

	end := time.Now().In(common.GetTimezone())
	begin, err := data.HistoryBegin(end, viper.GetString("data.history"))
	if err != nil {
		return nil, err
	}

	manager := data.NewManager(prices, fx, begin, end)
	if ratios := floatMap("profile.expense_ratios"); len(ratios) > 0 {
		manager.RegisterProfileProvider(data.NewStaticProfile(ratios))
	}

	log.Info().Str("PriceProvider", prices.DataType()).Time("Begin", begin).Time("End", end).Msg("initialized data manager")
	return manager, nil
}

// floatMap reads a table of numbers keyed by symbol or currency
func floatMap(key string) map[string]float64 {
	vals := make(map[string]float64)
	for k := range viper.GetStringMap(key) {
		vals[strings.ToUpper(k)] = viper.GetFloat64(key + "." + k)
	}
	return vals
}

// newCalendar builds the trading calendar used to date forecast days
func newCalendar() (*tradecron.TradeCron, error) {
	holidays, err := tradecron.ParseHolidays(viper.GetStringSlice("calendar.holidays"))
	if err != nil {
		return nil, err
	}
	return tradecron.New(viper.GetString("calendar.schedule"), tradecron.RegularHours, holidays...)
}

// runConfig assembles the projection configuration from viper
func runConfig() (projection.Config, error) {
	cfg := projection.DefaultConfig()

	if horizons := viper.GetIntSlice("forecast.horizons"); len(horizons) > 0 {
		cfg.Horizons = horizons
	}
	if total := viper.GetFloat64("forecast.total_value"); total != 0 {
		cfg.TotalValue = total
	}
	cfg.TradingDaysPerYear = viper.GetInt("forecast.trading_days_per_year")

	order, err := modelOrder(viper.GetIntSlice("model.order"), viper.GetIntSlice("model.seasonal_order"))
	if err != nil {
		return cfg, err
	}
	cfg.Order = order

	if n := viper.GetInt("fetch.concurrency"); n > 0 {
		cfg.FetchConcurrency = n
	}
	if n := viper.GetInt("fit.concurrency"); n > 0 {
		cfg.FitConcurrency = n
	}
	if d := viper.GetDuration("fetch.timeout"); d > 0 {
		cfg.FetchTimeout = d
	}
	if d := viper.GetDuration("fit.timeout"); d > 0 {
		cfg.FitTimeout = d
	}
	cfg.CacheSize = viper.GetInt("cache.size")

	return cfg, cfg.Validate()
}

func modelOrder(order, seasonal []int) (forecast.Order, error) {
	if len(order) != 3 {
		return forecast.Order{}, fmt.Errorf("%w: model.order must be [p, d, q], got %v", ErrInvalidOrder, order)
	}
	if len(seasonal) != 4 {
		return forecast.Order{}, fmt.Errorf("%w: model.seasonal_order must be [P, D, Q, s], got %v", ErrInvalidOrder, seasonal)
	}

	return forecast.Order{
		P:      order[0],
		D:      order[1],
		Q:      order[2],
		SP:     seasonal[0],
		SD:     seasonal[1],
		SQ:     seasonal[2],
		Period: seasonal[3],
	}, nil
}

func newForecaster(order forecast.Order) *forecast.SARIMA {
	opts := []forecast.Option{}
	if n := viper.GetInt("fit.max_evaluations"); n > 0 {
		opts = append(opts, forecast.WithMaxEvaluations(n))
	}
	return forecast.NewSARIMA(order, opts...)
}
