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
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/dataframe"
)

// PriceSeries is the daily close history of a single symbol ordered by date
type PriceSeries struct {
	Symbol   string
	Currency string
	Frame    *dataframe.DataFrame
}

// NewPriceSeries validates dates and closes and builds a series. Dates must be strictly
// increasing and every close must be a finite number.
func NewPriceSeries(symbol, currency string, dates []time.Time, closes []float64) (*PriceSeries, error) {
	for idx, val := range closes {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("%w: %s has a non-finite close at index %d", ErrInvalidSeries, symbol, idx)
		}
	}

	df, err := dataframe.New(dates, common.CloseCol, closes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidSeries, symbol, err.Error())
	}

	return &PriceSeries{
		Symbol:   symbol,
		Currency: currency,
		Frame:    df,
	}, nil
}

// Len returns the number of observations
func (ps *PriceSeries) Len() int {
	if ps == nil || ps.Frame == nil {
		return 0
	}
	return ps.Frame.Len()
}

// Closes returns a copy of the close prices
func (ps *PriceSeries) Closes() []float64 {
	if ps.Len() == 0 {
		return []float64{}
	}
	return ps.Frame.Column(common.CloseCol)
}

// Dates returns a copy of the observation dates
func (ps *PriceSeries) Dates() []time.Time {
	if ps.Len() == 0 {
		return []time.Time{}
	}
	dates := make([]time.Time, len(ps.Frame.Dates))
	copy(dates, ps.Frame.Dates)
	return dates
}

// LastClose returns the most recent close; NaN if the series is empty
func (ps *PriceSeries) LastClose() float64 {
	if ps.Len() == 0 {
		return math.NaN()
	}
	col := ps.Frame.ColIndex(common.CloseCol)
	return ps.Frame.Vals[col][ps.Frame.Len()-1]
}

// LastDate returns the date of the most recent close
func (ps *PriceSeries) LastDate() time.Time {
	if ps.Len() == 0 {
		return time.Time{}
	}
	return ps.Frame.End()
}
