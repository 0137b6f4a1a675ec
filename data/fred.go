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
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var fredURL = "https://fred.stlouisfed.org"

type fredSeries struct {
	id string
	// inverted series are quoted as units of currency per US dollar
	inverted bool
}

// daily H.10 exchange rate series published by the Federal Reserve
var fredFXSeries = map[string]fredSeries{
	"AUD": {id: "DEXUSAL"},
	"EUR": {id: "DEXUSEU"},
	"GBP": {id: "DEXUSUK"},
	"NZD": {id: "DEXUSNZ"},
	"CAD": {id: "DEXCAUS", inverted: true},
	"CHF": {id: "DEXSZUS", inverted: true},
	"CNY": {id: "DEXCHUS", inverted: true},
	"DKK": {id: "DEXDNUS", inverted: true},
	"HKD": {id: "DEXHKUS", inverted: true},
	"INR": {id: "DEXINUS", inverted: true},
	"JPY": {id: "DEXJPUS", inverted: true},
	"KRW": {id: "DEXKOUS", inverted: true},
	"MXN": {id: "DEXMXUS", inverted: true},
	"NOK": {id: "DEXNOUS", inverted: true},
	"SEK": {id: "DEXSDUS", inverted: true},
	"SGD": {id: "DEXSIUS", inverted: true},
}

// Fred reads exchange rates from the St. Louis Fed FRED database
type Fred struct{}

// NewFred Create a new Fred data provider
func NewFred() *Fred {
	return &Fred{}
}

// Rate returns the most recent published rate between a currency and the US dollar
func (f *Fred) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	switch {
	case from == to:
		return 1.0, nil
	case to == common.BaseCurrency:
		return f.usdPer(ctx, from)
	case from == common.BaseCurrency:
		rate, err := f.usdPer(ctx, to)
		if err != nil {
			return 0, err
		}
		return 1.0 / rate, nil
	default:
		fromUSD, err := f.usdPer(ctx, from)
		if err != nil {
			return 0, err
		}
		toUSD, err := f.usdPer(ctx, to)
		if err != nil {
			return 0, err
		}
		return fromUSD / toUSD, nil
	}
}

// usdPer returns the number of US dollars bought by one unit of currency
func (f *Fred) usdPer(ctx context.Context, currency string) (float64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fred.Rate")
	defer span.End()

	series, ok := fredFXSeries[currency]
	if !ok {
		span.SetStatus(codes.Error, "unsupported currency")
		return 0, fmt.Errorf("%w: fred has no series for %s", ErrFXUnavailable, currency)
	}

	subLog := log.With().Str("Currency", currency).Str("Series", series.id).Logger()
	span.SetAttributes(attribute.String("Series", series.id))

	end := time.Now()
	begin := end.AddDate(0, 0, -30)
	url := fmt.Sprintf("%s/graph/fredgraph.csv?id=%s&cosd=%s&coed=%s", fredURL, series.id, begin.Format("2006-01-02"), end.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fred http request failed")
		subLog.Error().Err(err).Msg("fred http request failed")
		return 0, fmt.Errorf("%w: %s", ErrFXUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, "fred returned invalid response code")
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("fred returned invalid response code")
		return 0, fmt.Errorf("%w: status code %d", ErrFXUnavailable, resp.StatusCode)
	}

	rate, err := lastFredValue(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not parse fred csv")
		subLog.Error().Err(err).Bytes("Body", body).Msg("could not parse fred csv")
		return 0, fmt.Errorf("%w: %s: %s", ErrFXUnavailable, series.id, err.Error())
	}

	if series.inverted {
		rate = 1.0 / rate
	}

	return rate, nil
}

// lastFredValue returns the last numeric observation of a fredgraph csv. FRED reports
// missing observations as ".".
func lastFredValue(body []byte) (float64, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	if _, err := reader.Read(); err != nil {
		return 0, err
	}

	last := 0.0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if len(record) < 2 {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil || val <= 0 {
			continue
		}
		last = val
	}

	if last == 0 {
		return 0, ErrFXUnavailable
	}
	return last, nil
}
