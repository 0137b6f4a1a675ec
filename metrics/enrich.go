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

// Package metrics derives the descriptive statistics of a holding from its price history.
package metrics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/data"
	"github.com/penny-vault/pv-forecast/portfolio"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

const (
	MovingAverageWindow = 50
	TradingDaysPerYear  = 252
)

// FXQuote is the exchange rate from a holding's currency to USD captured at fetch time.
// Err is set when the rate source failed.
type FXQuote struct {
	Currency string
	Rate     float64
	Err      error
}

// EnrichedHolding is a holding with metrics computed from its price history. ExpenseRatio is
// carried on the embedded Holding and is nil when no source knows it.
type EnrichedHolding struct {
	portfolio.Holding
	LastClose            float64   `json:"lastClose"`
	LastDate             time.Time `json:"lastDate"`
	MovingAvg50          *float64  `json:"movingAvg50"`
	Volatility           *float64  `json:"volatility"`
	AnnualizedVolatility *float64  `json:"annualizedVolatility"`
	FXRate               float64   `json:"fxRate"`
	PriceUSD             float64   `json:"priceUSD"`
	Observations         int       `json:"observations"`
	InsufficientHistory  bool      `json:"insufficientHistory"`
}

// Enrich computes the last close, 50 day moving average, volatility of daily returns and the
// USD price of a holding. An empty or missing series is a *data.DataUnavailableError; a
// non-USD holding without a valid rate is a *CurrencyConversionError.
func Enrich(h portfolio.Holding, series *data.PriceSeries, fx FXQuote) (*EnrichedHolding, error) {
	subLog := log.With().Str("Symbol", h.Symbol).Logger()

	if series.Len() == 0 {
		return nil, &data.DataUnavailableError{Symbol: h.Symbol, Err: fmt.Errorf("%w: empty price series", data.ErrDataUnavailable)}
	}

	currency := strings.ToUpper(fx.Currency)
	if currency == "" {
		currency = strings.ToUpper(h.Currency)
	}
	if currency == "" {
		currency = common.BaseCurrency
	}

	rate := 1.0
	if currency != common.BaseCurrency {
		switch {
		case fx.Err != nil:
			return nil, &CurrencyConversionError{Symbol: h.Symbol, Currency: currency, Err: fx.Err}
		case math.IsNaN(fx.Rate) || math.IsInf(fx.Rate, 0) || fx.Rate <= 0:
			return nil, &CurrencyConversionError{Symbol: h.Symbol, Currency: currency, Err: fmt.Errorf("invalid rate %f", fx.Rate)}
		}
		rate = fx.Rate
	}

	h.Currency = currency
	enriched := &EnrichedHolding{
		Holding:      h,
		LastClose:    series.LastClose(),
		LastDate:     series.LastDate(),
		FXRate:       rate,
		Observations: series.Len(),
	}
	enriched.PriceUSD = enriched.LastClose * rate

	if series.Len() >= MovingAverageWindow {
		sma := series.Frame.SMA(MovingAverageWindow)
		val := sma.Vals[0][sma.Len()-1]
		enriched.MovingAvg50 = &val
	} else {
		enriched.InsufficientHistory = true
		subLog.Warn().Int("NumObservations", series.Len()).Msg("fewer than 50 observations; moving average not computed")
	}

	returns := series.Frame.PctChange().Drop(math.NaN())
	if returns.Len() >= 2 {
		vol := stat.StdDev(returns.Vals[0], nil)
		annualized := vol * math.Sqrt(TradingDaysPerYear)
		enriched.Volatility = &vol
		enriched.AnnualizedVolatility = &annualized
	}

	subLog.Debug().Float64("LastClose", enriched.LastClose).Float64("PriceUSD", enriched.PriceUSD).Int("NumObservations", enriched.Observations).Msg("enriched holding")

	return enriched, nil
}
