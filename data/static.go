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

	"github.com/penny-vault/pv-forecast/common"
)

// StaticFX returns exchange rates from a fixed table of currency -> USD rates
type StaticFX struct {
	rates map[string]float64
}

// NewStaticFX creates a static rate source. rates maps a currency code to the number of US
// dollars bought by one unit of that currency.
func NewStaticFX(rates map[string]float64) *StaticFX {
	normalized := make(map[string]float64, len(rates)+1)
	for k, v := range rates {
		normalized[strings.ToUpper(k)] = v
	}
	normalized[common.BaseCurrency] = 1.0
	return &StaticFX{
		rates: normalized,
	}
}

func (s *StaticFX) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return 1.0, nil
	}

	fromUSD, ok := s.rates[from]
	if !ok || fromUSD <= 0 {
		return 0, fmt.Errorf("%w: no rate configured for %s", ErrFXUnavailable, from)
	}

	toUSD, ok := s.rates[to]
	if !ok || toUSD <= 0 {
		return 0, fmt.Errorf("%w: no rate configured for %s", ErrFXUnavailable, to)
	}

	return fromUSD / toUSD, nil
}

// StaticProfile returns fund profile values from a fixed table
type StaticProfile struct {
	expenseRatios map[string]float64
}

// NewStaticProfile creates a profile source from a map of symbol -> expense ratio
func NewStaticProfile(expenseRatios map[string]float64) *StaticProfile {
	normalized := make(map[string]float64, len(expenseRatios))
	for k, v := range expenseRatios {
		normalized[strings.ToUpper(k)] = v
	}
	return &StaticProfile{
		expenseRatios: normalized,
	}
}

func (s *StaticProfile) ExpenseRatio(ctx context.Context, symbol string) (*float64, error) {
	if val, ok := s.expenseRatios[strings.ToUpper(symbol)]; ok {
		return &val, nil
	}
	return nil, nil
}
