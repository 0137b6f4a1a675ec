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
	"github.com/penny-vault/pv-forecast/projection"
)

// GainRecord is the gain or loss of every position held in one symbol, valued in USD
type GainRecord struct {
	Symbol        string   `json:"symbol"`
	Quantity      float64  `json:"quantity"`
	PurchaseValue float64  `json:"purchaseValue"`
	CurrentValue  float64  `json:"currentValue"`
	GainLoss      float64  `json:"gainLoss"`
	PercentGain   *float64 `json:"percentGain"`
}

func (r GainRecord) Header() []string {
	return []string{"Symbol", "Quantity", "PurchaseValue", "CurrentValue", "GainLoss", "PercentGain"}
}

func (r GainRecord) Row() []string {
	return []string{
		r.Symbol,
		formatFloat(r.Quantity),
		formatFloat(r.PurchaseValue),
		formatFloat(r.CurrentValue),
		formatFloat(r.GainLoss),
		formatOptional(r.PercentGain),
	}
}

// GainRecords groups enriched holdings that carry a purchase price by symbol. The purchase
// value of a holding is PurchasePrice * Quantity plus its commission, converted to USD with the
// same rate as its current price. Symbols appear in order of first appearance.
func GainRecords(results []*projection.HoldingResult) []GainRecord {
	records := make([]GainRecord, 0)
	index := make(map[string]int)
	for _, res := range results {
		if res.Enriched == nil || res.Holding.PurchasePrice == nil || res.Quantity <= 0 {
			continue
		}

		purchase := *res.Holding.PurchasePrice * res.Quantity
		if res.Holding.Commission != nil {
			purchase += *res.Holding.Commission
		}
		purchase *= res.Enriched.FXRate
		current := res.Enriched.PriceUSD * res.Quantity

		idx, ok := index[res.Holding.Symbol]
		if !ok {
			idx = len(records)
			index[res.Holding.Symbol] = idx
			records = append(records, GainRecord{Symbol: res.Holding.Symbol})
		}

		rec := &records[idx]
		rec.Quantity += res.Quantity
		rec.PurchaseValue += purchase
		rec.CurrentValue += current
	}

	for idx := range records {
		rec := &records[idx]
		rec.GainLoss = rec.CurrentValue - rec.PurchaseValue
		if rec.PurchaseValue > 0 {
			pct := rec.GainLoss / rec.PurchaseValue * 100
			rec.PercentGain = &pct
		}
	}

	return records
}
