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
	"errors"
	"fmt"

	"github.com/penny-vault/pv-forecast/data"
	"github.com/penny-vault/pv-forecast/forecast"
	"github.com/penny-vault/pv-forecast/metrics"
	"github.com/penny-vault/pv-forecast/portfolio"
)

// State is the lifecycle position of a holding within one run
type State string

const (
	StatePending    State = "pending"
	StateEnriched   State = "enriched"
	StateForecasted State = "forecasted"
	StateAggregated State = "aggregated"
	StateSkipped    State = "skipped"
)

var transitions = map[State][]State{
	StatePending:    {StateEnriched, StateSkipped},
	StateEnriched:   {StateForecasted, StateSkipped},
	StateForecasted: {StateAggregated},
}

// SkipKind names the error that removed a holding from a run
type SkipKind string

const (
	SkipDataUnavailable     SkipKind = "DataUnavailableError"
	SkipCurrencyConversion  SkipKind = "CurrencyConversionError"
	SkipForecastConvergence SkipKind = "ForecastConvergenceError"
)

// Skip records why a holding contributes zero to a snapshot
type Skip struct {
	Symbol string   `json:"symbol"`
	Kind   SkipKind `json:"kind"`
	Reason string   `json:"reason"`
	Stage  State    `json:"stage"`
}

// HoldingResult tracks a single holding through the run
type HoldingResult struct {
	Holding   portfolio.Holding        `json:"holding"`
	Enriched  *metrics.EnrichedHolding `json:"enriched,omitempty"`
	State     State                    `json:"state"`
	Quantity  float64                  `json:"quantity"`
	Skip      *Skip                    `json:"skip,omitempty"`
	Forecasts []Forecast               `json:"forecasts,omitempty"`

	series *data.PriceSeries
}

func newHoldingResult(h portfolio.Holding) *HoldingResult {
	return &HoldingResult{
		Holding: h,
		State:   StatePending,
	}
}

func (res *HoldingResult) advance(to State) error {
	for _, allowed := range transitions[res.State] {
		if allowed == to {
			res.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s (%s)", ErrIllegalTransition, res.State, to, res.Holding.Symbol)
}

func (res *HoldingResult) skip(err error) error {
	res.Skip = &Skip{
		Symbol: res.Holding.Symbol,
		Kind:   skipKind(err),
		Reason: err.Error(),
		Stage:  res.State,
	}
	return res.advance(StateSkipped)
}

// contributesToday is true for every holding that was enriched, whether or not it could be
// forecast
func (res *HoldingResult) contributesToday() bool {
	return res.Enriched != nil && res.State != StatePending
}

func skipKind(err error) SkipKind {
	switch {
	case errors.Is(err, metrics.ErrCurrencyConversion):
		return SkipCurrencyConversion
	case errors.Is(err, forecast.ErrForecastConvergence):
		return SkipForecastConvergence
	default:
		return SkipDataUnavailable
	}
}
