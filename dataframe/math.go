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

package dataframe

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MulScalar multiplies all columns in dataframe df by the scalar and returns a new dataframe
func (df *DataFrame) MulScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.Vals {
		floats.Scale(scalar, df.Vals[colIdx])
	}
	return df
}

// PctChange computes the percent change between each row and the previous row, r_t = x_t / x_{t-1} - 1,
// for every column. The first row is NaN. The result has the same length as df.
func (df *DataFrame) PctChange() *DataFrame {
	res := &DataFrame{
		Dates:    df.Dates,
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}

	for colIdx, col := range df.Vals {
		pct := make([]float64, len(col))
		for rowIdx := range col {
			if rowIdx == 0 {
				pct[rowIdx] = math.NaN()
				continue
			}
			pct[rowIdx] = col[rowIdx]/col[rowIdx-1] - 1
		}
		res.Vals[colIdx] = pct
	}

	return res
}

// SMA computes the simple moving average of all the columns in df for the specified
// lookback period. The length of the resulting dataframe equals that of the input with NaNs during the warm-up period.
// Invalid lookback periods result in a dataframe of all NaN.
// NOTE: lookback is in terms of rows; if the dataframe is sampled daily then SMA is daily
func (df *DataFrame) SMA(lookback int) *DataFrame {
	smaVals := make([][]float64, df.ColCount())
	for idx := range smaVals {
		smaVals[idx] = make([]float64, df.Len())
	}

	smaDf := &DataFrame{
		Dates:    df.Dates,
		Vals:     smaVals,
		ColNames: df.ColNames,
	}

	// check that lookback is a valid period
	if (lookback > df.Len()) || (lookback <= 0) {
		log.Debug().Int("Lookback", lookback).Int("NRows", df.Len()).Msg("lookback must be: 0 < lookback <= NRows")
		for colIdx := range smaVals {
			for rowIdx := range smaVals[colIdx] {
				smaVals[colIdx][rowIdx] = math.NaN()
			}
		}
		return smaDf
	}

	for colIdx, col := range df.Vals {
		for rowIdx := range col {
			// NOTE: row is 0 based, lookback is 1 based
			if rowIdx < (lookback - 1) {
				smaVals[colIdx][rowIdx] = math.NaN()
				continue
			}
			smaVals[colIdx][rowIdx] = stat.Mean(col[rowIdx-lookback+1:rowIdx+1], nil)
		}
	}

	return smaDf
}
