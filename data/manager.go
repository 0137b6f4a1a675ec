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

package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/observability/opentelemetry"
	"github.com/penny-vault/pv-forecast/portfolio"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// FetchResult is everything retrieved from the data sources for one holding
type FetchResult struct {
	Symbol       string
	Series       *PriceSeries
	Currency     string
	FXRate       float64
	FXErr        error
	ExpenseRatio *float64
}

// Manager combines the configured price, exchange rate and profile sources
type Manager struct {
	Begin    time.Time
	End      time.Time
	prices   PriceProvider
	fx       FXProvider
	profiles ProfileProvider
	group    singleflight.Group
}

// NewManager create a new data manager that loads price history between begin and end
func NewManager(prices PriceProvider, fx FXProvider, begin, end time.Time) *Manager {
	return &Manager{
		Begin:  begin,
		End:    end,
		prices: prices,
		fx:     fx,
	}
}

// RegisterProfileProvider add a source of fund profile values
func (m *Manager) RegisterProfileProvider(p ProfileProvider) {
	m.profiles = p
}

// Fetch retrieves the price history, exchange rate and expense ratio of a holding. A price
// failure is returned as a *DataUnavailableError; an exchange rate failure is recorded on
// the result so only that holding is affected.
func (m *Manager) Fetch(ctx context.Context, cache *RunCache, holding portfolio.Holding) (*FetchResult, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.Fetch")
	defer span.End()

	symbol := strings.ToUpper(holding.Symbol)
	subLog := log.With().Str("Symbol", symbol).Logger()
	span.SetAttributes(attribute.String("Symbol", symbol))

	series, err := m.series(ctx, cache, symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "price history unavailable")
		subLog.Warn().Err(err).Msg("price history unavailable")
		return nil, &DataUnavailableError{Symbol: symbol, Err: err}
	}

	if series.Len() == 0 {
		span.SetStatus(codes.Error, "price history is empty")
		return nil, &DataUnavailableError{Symbol: symbol, Err: fmt.Errorf("%w: empty series", ErrDataUnavailable)}
	}

	result := &FetchResult{
		Symbol:       symbol,
		Series:       series,
		Currency:     holding.Currency,
		ExpenseRatio: holding.ExpenseRatio,
	}

	if result.Currency == "" {
		result.Currency = series.Currency
	}
	if result.Currency == "" {
		result.Currency = common.BaseCurrency
	}
	if series.Currency != "" && series.Currency != result.Currency {
		subLog.Warn().Str("HoldingCurrency", result.Currency).Str("SourceCurrency", series.Currency).Msg("portfolio currency differs from source currency; using portfolio currency")
	}

	result.FXRate, result.FXErr = m.rate(ctx, cache, result.Currency)
	if result.FXErr != nil {
		subLog.Warn().Err(result.FXErr).Str("Currency", result.Currency).Msg("exchange rate unavailable")
	}

	if result.ExpenseRatio == nil && m.profiles != nil {
		ratio, err := m.profiles.ExpenseRatio(ctx, symbol)
		if err != nil {
			subLog.Warn().Err(err).Msg("could not load expense ratio")
		} else {
			result.ExpenseRatio = ratio
		}
	}

	subLog.Debug().Int("NumObservations", series.Len()).Float64("FXRate", result.FXRate).Msg("fetched holding data")
	return result, nil
}

func (m *Manager) series(ctx context.Context, cache *RunCache, symbol string) (*PriceSeries, error) {
	key := fmt.Sprintf("series:%s:%s:%s", symbol, m.Begin.Format("2006-01-02"), m.End.Format("2006-01-02"))
	if cache != nil {
		if series, ok := cache.Series(key); ok {
			return series, nil
		}
	}

	val, err, _ := m.group.Do(key, func() (interface{}, error) {
		series, err := m.prices.PriceHistory(ctx, symbol, m.Begin, m.End)
		if err != nil {
			return nil, err
		}
		if cache != nil {
			if err := cache.SetSeries(key, series); err != nil {
				log.Warn().Err(err).Str("Symbol", symbol).Msg("could not cache series")
			}
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}

	return val.(*PriceSeries), nil
}

func (m *Manager) rate(ctx context.Context, cache *RunCache, currency string) (float64, error) {
	if currency == common.BaseCurrency {
		return 1.0, nil
	}

	if m.fx == nil {
		return 0, fmt.Errorf("%w: no exchange rate source configured", ErrFXUnavailable)
	}

	key := fmt.Sprintf("fx:%s%s", currency, common.BaseCurrency)
	if cache != nil {
		if rate, ok := cache.Rate(key); ok {
			return rate, nil
		}
	}

	val, err, _ := m.group.Do(key, func() (interface{}, error) {
		rate, err := m.fx.Rate(ctx, currency, common.BaseCurrency)
		if err != nil {
			return 0.0, err
		}
		if cache != nil {
			if err := cache.SetRate(key, rate); err != nil {
				log.Warn().Err(err).Str("Currency", currency).Msg("could not cache exchange rate")
			}
		}
		return rate, nil
	})
	if err != nil {
		return 0, err
	}

	return val.(float64), nil
}
