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

package projection_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/data"
	"github.com/penny-vault/pv-forecast/forecast"
	"github.com/penny-vault/pv-forecast/portfolio"
	"github.com/penny-vault/pv-forecast/projection"
)

// tradingDates returns n weekdays starting 2022-01-03 at the market close
func tradingDates(n int) []time.Time {
	nyc := common.GetTimezone()
	dates := make([]time.Time, 0, n)
	dt := time.Date(2022, 1, 3, 16, 0, 0, 0, nyc)
	for len(dates) < n {
		if dt.Weekday() != time.Saturday && dt.Weekday() != time.Sunday {
			dates = append(dates, dt)
		}
		dt = dt.AddDate(0, 0, 1)
	}
	return dates
}

// newRunner creates a runner on the default trading calendar
func newRunner(cfg projection.Config, fetcher projection.Fetcher, forecaster forecast.Forecaster) *projection.Runner {
	runner, err := projection.NewRunner(cfg, fetcher, forecaster, nil)
	Expect(err).To(BeNil())
	return runner
}

func makeSeries(symbol, currency string, closes []float64) *data.PriceSeries {
	series, err := data.NewPriceSeries(symbol, currency, tradingDates(len(closes)), closes)
	if err != nil {
		panic(err)
	}
	return series
}

func linear(start, slope float64, n int) []float64 {
	vals := make([]float64, n)
	for idx := range vals {
		vals[idx] = start + slope*float64(idx)
	}
	return vals
}

func constant(val float64, n int) []float64 {
	vals := make([]float64, n)
	for idx := range vals {
		vals[idx] = val
	}
	return vals
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]*data.FetchResult
	errs    map[string]error
	block   map[string]bool
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		results: make(map[string]*data.FetchResult),
		errs:    make(map[string]error),
		block:   make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) add(series *data.PriceSeries, rate float64) {
	f.results[series.Symbol] = &data.FetchResult{
		Symbol:   series.Symbol,
		Series:   series,
		Currency: series.Currency,
		FXRate:   rate,
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, cache *data.RunCache, holding portfolio.Holding) (*data.FetchResult, error) {
	f.mu.Lock()
	f.calls[holding.Symbol]++
	f.mu.Unlock()

	if f.block[holding.Symbol] {
		<-ctx.Done()
		return nil, &data.DataUnavailableError{Symbol: holding.Symbol, Err: ctx.Err()}
	}
	if err, ok := f.errs[holding.Symbol]; ok {
		return nil, err
	}
	if res, ok := f.results[holding.Symbol]; ok {
		return res, nil
	}
	return nil, &data.DataUnavailableError{Symbol: holding.Symbol, Err: fmt.Errorf("%w: unknown symbol", data.ErrDataUnavailable)}
}

// seriesProvider serves fixed price series as a data.PriceProvider
type seriesProvider map[string]*data.PriceSeries

func (p seriesProvider) DataType() string {
	return data.DataTypeSecurity
}

func (p seriesProvider) PriceHistory(ctx context.Context, symbol string, begin, end time.Time) (*data.PriceSeries, error) {
	if series, ok := p[symbol]; ok {
		return series, nil
	}
	return nil, fmt.Errorf("%w: %s", data.ErrDataUnavailable, symbol)
}

// slopeForecaster extends each series linearly by slope per day
type slopeForecaster struct {
	mu          sync.Mutex
	slope       map[string]float64
	calls       map[string]int
	horizonDays []int
	wait        bool
}

func newSlopeForecaster() *slopeForecaster {
	return &slopeForecaster{
		slope: make(map[string]float64),
		calls: make(map[string]int),
	}
}

func (f *slopeForecaster) Forecast(ctx context.Context, symbol string, closes []float64, horizonDays int) (*forecast.Trajectory, error) {
	f.mu.Lock()
	f.calls[symbol]++
	f.horizonDays = append(f.horizonDays, horizonDays)
	f.mu.Unlock()

	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	last := closes[len(closes)-1]
	vals := make([]float64, horizonDays)
	for idx := range vals {
		vals[idx] = last + f.slope[symbol]*float64(idx+1)
	}
	return forecast.NewTrajectory(symbol, vals), nil
}
