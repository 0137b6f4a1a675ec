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

package forecast

import "fmt"

// Trajectory is a forecast path of daily prices starting the day after the last observation
type Trajectory struct {
	Symbol string
	values []float64
}

// NewTrajectory creates a trajectory from a copy of values
func NewTrajectory(symbol string, values []float64) *Trajectory {
	vals := make([]float64, len(values))
	copy(vals, values)
	return &Trajectory{
		Symbol: symbol,
		values: vals,
	}
}

// Len returns the number of forecast days
func (t *Trajectory) Len() int {
	return len(t.values)
}

// At returns the forecast `day` trading days after the last observation; day is 1-based
func (t *Trajectory) At(day int) (float64, error) {
	if day < 1 || day > len(t.values) {
		return 0, fmt.Errorf("%w: day %d of %d", ErrDayOutOfRange, day, len(t.values))
	}
	return t.values[day-1], nil
}

// Values returns a copy of the forecast path
func (t *Trajectory) Values() []float64 {
	vals := make([]float64, len(t.values))
	copy(vals, t.values)
	return vals
}
