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

package portfolio

import (
	"math"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// WeightTolerance is the allowed deviation of the sum of normalized weights from 1
	WeightTolerance = 1e-9
)

// Holding is one instrument's allocation within a portfolio
type Holding struct {
	Symbol       string   `json:"symbol"`
	RawWeight    float64  `json:"rawWeight"`
	Weight       float64  `json:"weight"`
	Currency     string   `json:"currency"`
	Shares       *float64 `json:"shares,omitempty"`
	ExpenseRatio *float64 `json:"expenseRatio,omitempty"`

	// PurchasePrice and Commission are the cost basis of the position in the holding's
	// currency; they are only used for gain/loss reporting
	PurchasePrice *float64 `json:"purchasePrice,omitempty"`
	Commission    *float64 `json:"commission,omitempty"`
}

// Normalize validates the raw weights of holdings and returns a new set of holdings where
// Weight = RawWeight / sum(RawWeight). Symbols and currencies are upper-cased. An empty currency
// stays empty so the price source can supply it. The input slice is not modified.
func Normalize(holdings []Holding) ([]Holding, error) {
	if len(holdings) == 0 {
		return nil, &InvalidPortfolioError{Reason: "portfolio has no holdings"}
	}

	total := 0.0
	for idx, holding := range holdings {
		symbol := strings.ToUpper(strings.TrimSpace(holding.Symbol))
		if symbol == "" {
			return nil, &InvalidPortfolioError{Reason: "holding has no symbol", Row: idx + 1}
		}

		if math.IsNaN(holding.RawWeight) || math.IsInf(holding.RawWeight, 0) {
			return nil, &InvalidPortfolioError{Reason: "weight is not a finite number", Symbol: symbol}
		}

		if holding.RawWeight < 0 {
			return nil, &InvalidPortfolioError{Reason: "weight must not be negative", Symbol: symbol}
		}

		if holding.PurchasePrice != nil && *holding.PurchasePrice < 0 {
			return nil, &InvalidPortfolioError{Reason: "purchase price must not be negative", Symbol: symbol}
		}

		total += holding.RawWeight
	}

	if total <= 0 {
		return nil, &InvalidPortfolioError{Reason: "sum of weights must be positive"}
	}

	normalized := make([]Holding, len(holdings))
	for idx, holding := range holdings {
		holding.Symbol = strings.ToUpper(strings.TrimSpace(holding.Symbol))
		holding.Currency = strings.ToUpper(strings.TrimSpace(holding.Currency))
		holding.Weight = holding.RawWeight / total
		normalized[idx] = holding
	}

	log.Debug().Int("NumHoldings", len(normalized)).Float64("RawWeightSum", total).Msg("normalized portfolio weights")

	return normalized, nil
}

// Symbols returns the distinct symbols of holdings in the order they first appear
func Symbols(holdings []Holding) []string {
	seen := make(map[string]bool, len(holdings))
	symbols := make([]string, 0, len(holdings))
	for _, holding := range holdings {
		if !seen[holding.Symbol] {
			seen[holding.Symbol] = true
			symbols = append(symbols, holding.Symbol)
		}
	}
	return symbols
}
