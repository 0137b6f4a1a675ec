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
	"sort"
	"time"
)

const AsOfToday = "today"

// Forecast is the predicted price of a symbol at one horizon
type Forecast struct {
	Symbol            string    `json:"symbol"`
	HorizonYears      int       `json:"horizonYears"`
	HorizonDays       int       `json:"horizonDays"`
	Date              time.Time `json:"date"`
	PredictedPrice    float64   `json:"predictedPrice"`
	PredictedPriceUSD float64   `json:"predictedPriceUSD"`
	Degenerate        bool      `json:"degenerate"`
}

// Position is the value of one symbol within a snapshot
type Position struct {
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
}

// Snapshot is the portfolio value at a single point in time
type Snapshot struct {
	AsOf         string              `json:"asOf"`
	HorizonYears int                 `json:"horizonYears"`
	TotalValue   float64             `json:"totalValue"`
	PerHolding   map[string]Position `json:"perHolding"`
	Skipped      []Skip              `json:"skipped"`
}

// Symbols returns the symbols held in the snapshot in sorted order
func (snap *Snapshot) Symbols() []string {
	symbols := make([]string, 0, len(snap.PerHolding))
	for symbol := range snap.PerHolding {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (snap *Snapshot) add(symbol string, quantity, price float64) {
	pos := snap.PerHolding[symbol]
	pos.Quantity += quantity
	pos.Price = price
	pos.Value += quantity * price
	snap.PerHolding[symbol] = pos
	snap.TotalValue += quantity * price
}

func (snap *Snapshot) skip(res *HoldingResult, fallback string) {
	if res.Skip != nil {
		snap.Skipped = append(snap.Skipped, *res.Skip)
		return
	}
	snap.Skipped = append(snap.Skipped, Skip{
		Symbol: res.Holding.Symbol,
		Kind:   SkipForecastConvergence,
		Reason: fallback,
		Stage:  res.State,
	})
}

// Aggregate builds today's snapshot followed by one snapshot per horizon in ascending order.
// Today values every enriched holding at its USD price; a horizon values each forecasted
// holding at its predicted USD price. Holdings that did not make it to a point contribute
// zero and are listed in that snapshot's Skipped. Returns *AggregationError when no holding
// was forecasted.
func Aggregate(results []*HoldingResult, cfg Config) ([]*Snapshot, error) {
	forecasted := 0
	skipped := 0
	for _, res := range results {
		switch res.State {
		case StateForecasted, StateAggregated:
			forecasted++
		case StateSkipped:
			skipped++
		}
	}
	if forecasted == 0 {
		return nil, &AggregationError{Reason: "no holding could be forecast", Skipped: skipped}
	}

	horizons := cfg.SortedHorizons()
	snapshots := make([]*Snapshot, 0, len(horizons)+1)

	today := &Snapshot{
		AsOf:       AsOfToday,
		PerHolding: make(map[string]Position),
		Skipped:    []Skip{},
	}
	for _, res := range results {
		if res.contributesToday() {
			today.add(res.Holding.Symbol, res.Quantity, res.Enriched.PriceUSD)
			continue
		}
		today.skip(res, "not enriched")
	}
	snapshots = append(snapshots, today)

	for _, years := range horizons {
		snap := &Snapshot{
			AsOf:         fmt.Sprintf("%d years", years),
			HorizonYears: years,
			PerHolding:   make(map[string]Position),
			Skipped:      []Skip{},
		}
		for _, res := range results {
			fc, ok := res.forecastFor(years)
			if !ok {
				snap.skip(res, fmt.Sprintf("no forecast at %d years", years))
				continue
			}
			snap.add(res.Holding.Symbol, res.Quantity, fc.PredictedPriceUSD)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

func (res *HoldingResult) forecastFor(years int) (Forecast, bool) {
	if res.State != StateForecasted && res.State != StateAggregated {
		return Forecast{}, false
	}
	for _, fc := range res.Forecasts {
		if fc.HorizonYears == years {
			return fc, true
		}
	}
	return Forecast{}, false
}
