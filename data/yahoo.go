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
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var yahooAPI = "https://query1.finance.yahoo.com"

// Yahoo reads daily prices and exchange rates from the Yahoo Finance chart api
type Yahoo struct{}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// NewYahoo creates a new Yahoo data provider
func NewYahoo() *Yahoo {
	return &Yahoo{}
}

func (y *Yahoo) DataType() string {
	return DataTypeSecurity
}

// PriceHistory returns the adjusted daily close of symbol between begin and end. Missing
// closes are dropped.
func (y *Yahoo) PriceHistory(ctx context.Context, symbol string, begin, end time.Time) (*PriceSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.PriceHistory")
	defer span.End()

	span.SetAttributes(attribute.String("Symbol", symbol))

	result, err := y.chart(ctx, symbol, begin, end)
	if err != nil {
		return nil, err
	}

	series, err := result.series(symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not build price series")
		return nil, err
	}

	return series, nil
}

// Rate returns the last close of the {FROM}{TO}=X currency pair
func (y *Yahoo) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return 1.0, nil
	}

	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.Rate")
	defer span.End()

	pair := fmt.Sprintf("%s%s=X", from, to)
	span.SetAttributes(attribute.String("Pair", pair))

	end := time.Now()
	result, err := y.chart(ctx, pair, end.AddDate(0, 0, -14), end)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s", ErrFXUnavailable, pair, err.Error())
	}

	series, err := result.series(pair)
	if err != nil || series.Len() == 0 {
		span.SetStatus(codes.Error, "no exchange rate returned")
		return 0, fmt.Errorf("%w: %s", ErrFXUnavailable, pair)
	}

	rate := series.LastClose()
	if rate <= 0 || math.IsNaN(rate) {
		return 0, fmt.Errorf("%w: %s returned %f", ErrFXUnavailable, pair, rate)
	}

	return rate, nil
}

func (y *Yahoo) chart(ctx context.Context, symbol string, begin, end time.Time) (*yahooChartResult, error) {
	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	chartURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d", yahooAPI, url.PathEscape(symbol), begin.Unix(), end.Unix())

	resp := yahooChartResponse{}
	status, err := getJSON(ctx, trace.SpanFromContext(ctx), subLog, chartURL, chartURL, &resp)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s not found", ErrDataUnavailable, symbol)
		}
		return nil, err
	}

	if resp.Chart.Error != nil {
		subLog.Warn().Str("Code", resp.Chart.Error.Code).Str("Description", resp.Chart.Error.Description).Msg("yahoo returned an error")
		return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, resp.Chart.Error.Description)
	}

	if len(resp.Chart.Result) == 0 {
		subLog.Warn().Msg("yahoo returned no results")
		return nil, fmt.Errorf("%w: no results returned for %s", ErrDataUnavailable, symbol)
	}

	return &resp.Chart.Result[0], nil
}

func (res *yahooChartResult) series(symbol string) (*PriceSeries, error) {
	closes := make([]*float64, 0)
	if len(res.Indicators.AdjClose) > 0 && len(res.Indicators.AdjClose[0].AdjClose) == len(res.Timestamp) {
		closes = res.Indicators.AdjClose[0].AdjClose
	} else if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}

	if len(closes) != len(res.Timestamp) {
		return nil, fmt.Errorf("%w: %s returned %d timestamps and %d closes", ErrInvalidSeries, symbol, len(res.Timestamp), len(closes))
	}

	tz := common.GetTimezone()
	dates := make([]time.Time, 0, len(res.Timestamp))
	vals := make([]float64, 0, len(res.Timestamp))
	for idx, ts := range res.Timestamp {
		if closes[idx] == nil || math.IsNaN(*closes[idx]) {
			continue
		}

		// yahoo may report the current session twice; keep the latest quote for a day
		local := time.Unix(ts, 0).In(tz)
		dt := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, tz)
		if n := len(dates); n > 0 && !dt.After(dates[n-1]) {
			vals[n-1] = *closes[idx]
			continue
		}

		dates = append(dates, dt)
		vals = append(vals, *closes[idx])
	}

	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s returned no prices", ErrDataUnavailable, symbol)
	}

	return NewPriceSeries(symbol, strings.ToUpper(res.Meta.Currency), dates, vals)
}
