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
	"sort"
	"time"
)

// Align finds the maximum start and minimum end across all dataframes and trims them to match
func (dfMap Map) Align() Map {
	var start time.Time
	var end time.Time

	first := true
	for _, df := range dfMap {
		if first {
			start = df.Start()
			end = df.End()
			first = false
			continue
		}
		if df.Start().After(start) {
			start = df.Start()
		}
		if df.End().Before(end) {
			end = df.End()
		}
	}

	dfMapTrimmed := make(Map, len(dfMap))
	for k, df := range dfMap {
		dfMapTrimmed[k] = df.Trim(start, end)
	}

	return dfMapTrimmed
}

// Keys returns the sorted keys of the map
func (dfMap Map) Keys() []string {
	keys := make([]string, 0, len(dfMap))
	for k := range dfMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DataFrame converts each item in the map to columns in a single dataframe. Dataframes are
// first aligned to the max start and min end; columns are ordered by key. If the aligned
// date indexes still differ ErrDateIndexNotAligned is returned.
func (dfMap Map) DataFrame() (*DataFrame, error) {
	df := &DataFrame{}
	aligned := dfMap.Align()

	for idx, k := range aligned.Keys() {
		v := aligned[k]
		if idx == 0 {
			df.Dates = v.Dates
			df.ColNames = append(df.ColNames, v.ColNames...)
			df.Vals = append(df.Vals, v.Vals...)
			continue
		}

		if len(df.Dates) != len(v.Dates) {
			return nil, ErrDateIndexNotAligned
		}
		for rowIdx := range df.Dates {
			if !df.Dates[rowIdx].Equal(v.Dates[rowIdx]) {
				return nil, ErrDateIndexNotAligned
			}
		}

		df.ColNames = append(df.ColNames, v.ColNames...)
		df.Vals = append(df.Vals, v.Vals...)
	}

	return df, nil
}
