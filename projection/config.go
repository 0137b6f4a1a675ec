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

package projection

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/penny-vault/pv-forecast/data"
	"github.com/penny-vault/pv-forecast/forecast"
	"github.com/penny-vault/pv-forecast/metrics"
)

// Config is the run configuration of a projection
type Config struct {
	Horizons           []int          `json:"horizons"`
	TotalValue         float64        `json:"totalValue"`
	TradingDaysPerYear int            `json:"tradingDaysPerYear"`
	Order              forecast.Order `json:"order"`
	FetchConcurrency   int            `json:"fetchConcurrency"`
	FetchTimeout       time.Duration  `json:"fetchTimeout"`
	FitConcurrency     int            `json:"fitConcurrency"`
	FitTimeout         time.Duration  `json:"fitTimeout"`
	CacheSize          int            `json:"cacheSize"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		Horizons:           []int{5, 10, 15},
		TotalValue:         10_000,
		TradingDaysPerYear: metrics.TradingDaysPerYear,
		Order:              forecast.DefaultOrder,
		FetchConcurrency:   4,
		FetchTimeout:       30 * time.Second,
		FitConcurrency:     runtime.NumCPU(),
		FitTimeout:         2 * time.Minute,
		CacheSize:          data.DefaultCacheSize,
	}
}

// Validate checks the configuration for values that would make a run meaningless
func (cfg Config) Validate() error {
	if len(cfg.Horizons) == 0 {
		return fmt.Errorf("%w: at least one horizon is required", ErrInvalidConfig)
	}
	for _, years := range cfg.Horizons {
		if years <= 0 {
			return fmt.Errorf("%w: horizon %d must be positive", ErrInvalidConfig, years)
		}
	}
	if cfg.TotalValue <= 0 || math.IsNaN(cfg.TotalValue) || math.IsInf(cfg.TotalValue, 0) {
		return fmt.Errorf("%w: total value must be a positive number", ErrInvalidConfig)
	}
	if cfg.TradingDaysPerYear <= 0 {
		return fmt.Errorf("%w: trading days per year must be positive", ErrInvalidConfig)
	}
	if cfg.FetchConcurrency < 1 || cfg.FitConcurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig)
	}
	if cfg.FetchTimeout < 0 || cfg.FitTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if err := cfg.Order.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	return nil
}

// SortedHorizons returns the distinct horizons in ascending order
func (cfg Config) SortedHorizons() []int {
	seen := make(map[int]bool, len(cfg.Horizons))
	horizons := make([]int, 0, len(cfg.Horizons))
	for _, years := range cfg.Horizons {
		if !seen[years] {
			seen[years] = true
			horizons = append(horizons, years)
		}
	}
	sort.Ints(horizons)
	return horizons
}

// MaxHorizonDays is the number of trading days of the longest horizon
func (cfg Config) MaxHorizonDays() int {
	maxDays := 0
	for _, years := range cfg.Horizons {
		if days := HorizonDays(float64(years), cfg.TradingDaysPerYear); days > maxDays {
			maxDays = days
		}
	}
	return maxDays
}

// HorizonDays converts a horizon in years to trading days
func HorizonDays(years float64, tradingDaysPerYear int) int {
	return int(math.Round(years * float64(tradingDaysPerYear)))
}
