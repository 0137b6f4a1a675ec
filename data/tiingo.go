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
	"net/http"
	"strings"
	"time"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Tiingo reads daily prices and exchange rates from the Tiingo api
type Tiingo struct {
	apikey string
}

type tiingoJSONResponse struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
}

type tiingoFXResponse struct {
	Ticker         string   `json:"ticker"`
	QuoteTimestamp string   `json:"quoteTimestamp"`
	MidPrice       *float64 `json:"midPrice"`
	BidPrice       *float64 `json:"bidPrice"`
	AskPrice       *float64 `json:"askPrice"`
}

var tiingoAPI = "https://api.tiingo.com"

// NewTiingo Create a new Tiingo data provider
func NewTiingo(key string) (*Tiingo, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: tiingo", ErrNoTokenProvided)
	}
	return &Tiingo{
		apikey: key,
	}, nil
}

func (t *Tiingo) DataType() string {
	return DataTypeSecurity
}

// PriceHistory returns the adjusted daily close of symbol between begin and end
func (t *Tiingo) PriceHistory(ctx context.Context, symbol string, begin, end time.Time) (*PriceSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.PriceHistory")
	defer span.End()

	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()
	span.SetAttributes(attribute.String("Symbol", symbol))

	query := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s", tiingoAPI, strings.ToLower(symbol), begin.Format("2006-01-02"), end.Format("2006-01-02"))

	rows := make([]tiingoJSONResponse, 0)
	status, err := getJSON(ctx, span, subLog, fmt.Sprintf("%s&token=%s", query, t.apikey), query, &rows)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s not found", ErrDataUnavailable, symbol)
		}
		return nil, err
	}

	if len(rows) == 0 {
		span.SetStatus(codes.Error, "no results returned")
		subLog.Warn().Msg("tiingo returned no results")
		return nil, fmt.Errorf("%w: no results returned for %s", ErrDataUnavailable, symbol)
	}

	tz := common.GetTimezone()
	dates := make([]time.Time, 0, len(rows))
	vals := make([]float64, 0, len(rows))
	for _, row := range rows {
		dtParts := strings.Split(row.Date, "T")
		dt, err := time.ParseInLocation("2006-01-02", dtParts[0], tz)
		if err != nil {
			span.RecordError(err)
			msg := "cannot parse date string"
			span.SetStatus(codes.Error, msg)
			subLog.Error().Err(err).Str("DateStr", row.Date).Msg(msg)
			return nil, err
		}
		dates = append(dates, dt.Add(time.Hour*16))

		val := row.AdjClose
		if val == 0 {
			val = row.Close
		}
		vals = append(vals, val)
	}

	return NewPriceSeries(strings.ToUpper(symbol), "", dates, vals)
}

// Rate returns the current mid price of the from/to currency pair
func (t *Tiingo) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToLower(from)
	to = strings.ToLower(to)
	if from == to {
		return 1.0, nil
	}

	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.Rate")
	defer span.End()

	pair := from + to
	subLog := log.With().Str("Pair", pair).Logger()
	span.SetAttributes(attribute.String("Pair", pair))

	query := fmt.Sprintf("%s/tiingo/fx/top?tickers=%s", tiingoAPI, pair)

	quotes := make([]tiingoFXResponse, 0)
	if _, err := getJSON(ctx, span, subLog, fmt.Sprintf("%s&token=%s", query, t.apikey), query, &quotes); err != nil {
		return 0, fmt.Errorf("%w: %s: %s", ErrFXUnavailable, pair, err.Error())
	}

	if len(quotes) == 0 {
		span.SetStatus(codes.Error, "no quote returned")
		return 0, fmt.Errorf("%w: %s", ErrFXUnavailable, pair)
	}

	quote := quotes[0]
	switch {
	case quote.MidPrice != nil && *quote.MidPrice > 0:
		return *quote.MidPrice, nil
	case quote.BidPrice != nil && quote.AskPrice != nil && *quote.BidPrice > 0 && *quote.AskPrice > 0:
		return (*quote.BidPrice + *quote.AskPrice) / 2, nil
	default:
		span.SetStatus(codes.Error, "quote has no price")
		return 0, fmt.Errorf("%w: %s quote has no price", ErrFXUnavailable, pair)
	}
}
