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

package report

import (
	"strconv"
	"time"

	"github.com/penny-vault/pv-forecast/projection"
)

const dateFormat = "2006-01-02"

// Record is a flat row that can be written by any of the writers in this package
type Record interface {
	Header() []string
	Row() []string
}

// EnrichedRecord is one holding with its computed metrics
type EnrichedRecord struct {
	Symbol               string    `json:"symbol"`
	Currency             string    `json:"currency"`
	Weight               float64   `json:"weight"`
	Quantity             float64   `json:"quantity"`
	LastClose            float64   `json:"lastClose"`
	LastDate             time.Time `json:"lastDate"`
	MovingAvg50          *float64  `json:"movingAvg50"`
	Volatility           *float64  `json:"volatility"`
	AnnualizedVolatility *float64  `json:"annualizedVolatility"`
	ExpenseRatio         *float64  `json:"expenseRatio"`
	FXRate               float64   `json:"fxRate"`
	PriceUSD             float64   `json:"priceUSD"`
	Observations         int       `json:"observations"`
	InsufficientHistory  bool      `json:"insufficientHistory"`
}

func (r EnrichedRecord) Header() []string {
	return []string{"Symbol", "Currency", "Weight", "Quantity", "LastClose", "LastDate", "MovingAvg50",
		"Volatility", "AnnualizedVolatility", "ExpenseRatio", "FXRate", "PriceUSD", "Observations",
		"InsufficientHistory"}
}

func (r EnrichedRecord) Row() []string {
	return []string{
		r.Symbol,
		r.Currency,
		formatFloat(r.Weight),
		formatFloat(r.Quantity),
		formatFloat(r.LastClose),
		r.LastDate.Format(dateFormat),
		formatOptional(r.MovingAvg50),
		formatOptional(r.Volatility),
		formatOptional(r.AnnualizedVolatility),
		formatOptional(r.ExpenseRatio),
		formatFloat(r.FXRate),
		formatFloat(r.PriceUSD),
		strconv.Itoa(r.Observations),
		strconv.FormatBool(r.InsufficientHistory),
	}
}

// ForecastRecord is the predicted price of a symbol at one horizon
type ForecastRecord struct {
	Symbol            string    `json:"symbol"`
	HorizonYears      int       `json:"horizonYears"`
	HorizonDays       int       `json:"horizonDays"`
	Date              time.Time `json:"date"`
	PredictedPrice    float64   `json:"predictedPrice"`
	PredictedPriceUSD float64   `json:"predictedPriceUSD"`
	Degenerate        bool      `json:"degenerate"`
}

func (r ForecastRecord) Header() []string {
	return []string{"Symbol", "HorizonYears", "HorizonDays", "Date", "PredictedPrice", "PredictedPriceUSD", "Degenerate"}
}

func (r ForecastRecord) Row() []string {
	return []string{
		r.Symbol,
		strconv.Itoa(r.HorizonYears),
		strconv.Itoa(r.HorizonDays),
		r.Date.Format(dateFormat),
		formatFloat(r.PredictedPrice),
		formatFloat(r.PredictedPriceUSD),
		strconv.FormatBool(r.Degenerate),
	}
}

// SnapshotRecord is the position of one symbol in one snapshot
type SnapshotRecord struct {
	AsOf         string  `json:"asOf"`
	HorizonYears int     `json:"horizonYears"`
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Value        float64 `json:"value"`
}

func (r SnapshotRecord) Header() []string {
	return []string{"AsOf", "HorizonYears", "Symbol", "Quantity", "Price", "Value"}
}

func (r SnapshotRecord) Row() []string {
	return []string{
		r.AsOf,
		strconv.Itoa(r.HorizonYears),
		r.Symbol,
		formatFloat(r.Quantity),
		formatFloat(r.Price),
		formatFloat(r.Value),
	}
}

// SkipRecord is a holding that was dropped from the run
type SkipRecord struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

func (r SkipRecord) Header() []string {
	return []string{"Symbol", "Kind", "Stage", "Reason"}
}

func (r SkipRecord) Row() []string {
	return []string{r.Symbol, r.Kind, r.Stage, r.Reason}
}

// EnrichedRecords flattens every holding that was enriched
func EnrichedRecords(results []*projection.HoldingResult) []EnrichedRecord {
	records := make([]EnrichedRecord, 0, len(results))
	for _, res := range results {
		if res.Enriched == nil {
			continue
		}
		e := res.Enriched
		records = append(records, EnrichedRecord{
			Symbol:               e.Symbol,
			Currency:             e.Currency,
			Weight:               e.Weight,
			Quantity:             res.Quantity,
			LastClose:            e.LastClose,
			LastDate:             e.LastDate,
			MovingAvg50:          e.MovingAvg50,
			Volatility:           e.Volatility,
			AnnualizedVolatility: e.AnnualizedVolatility,
			ExpenseRatio:         e.ExpenseRatio,
			FXRate:               e.FXRate,
			PriceUSD:             e.PriceUSD,
			Observations:         e.Observations,
			InsufficientHistory:  e.InsufficientHistory,
		})
	}
	return records
}

// ForecastRecords flattens the forecasts of a report
func ForecastRecords(rpt *projection.Report) []ForecastRecord {
	records := make([]ForecastRecord, 0, len(rpt.Forecasts))
	for _, fc := range rpt.Forecasts {
		records = append(records, ForecastRecord(fc))
	}
	return records
}

// SnapshotRecords flattens every snapshot into one row per symbol, symbols in sorted order
func SnapshotRecords(rpt *projection.Report) []SnapshotRecord {
	records := make([]SnapshotRecord, 0)
	for _, snap := range rpt.Snapshots {
		for _, symbol := range snap.Symbols() {
			pos := snap.PerHolding[symbol]
			records = append(records, SnapshotRecord{
				AsOf:         snap.AsOf,
				HorizonYears: snap.HorizonYears,
				Symbol:       symbol,
				Quantity:     pos.Quantity,
				Price:        pos.Price,
				Value:        pos.Value,
			})
		}
	}
	return records
}

// SkipRecords flattens the skipped holdings of a report
func SkipRecords(skipped []projection.Skip) []SkipRecord {
	records := make([]SkipRecord, 0, len(skipped))
	for _, skip := range skipped {
		records = append(records, SkipRecord{
			Symbol: skip.Symbol,
			Kind:   string(skip.Kind),
			Stage:  string(skip.Stage),
			Reason: skip.Reason,
		})
	}
	return records
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func formatOptional(val *float64) string {
	if val == nil {
		return ""
	}
	return formatFloat(*val)
}
