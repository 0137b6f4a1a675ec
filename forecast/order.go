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

import (
	"context"
	"fmt"
)

// Order is the (p,d,q)(P,D,Q,s) order of a seasonal ARIMA model
type Order struct {
	P      int `json:"p" toml:"p"`
	D      int `json:"d" toml:"d"`
	Q      int `json:"q" toml:"q"`
	SP     int `json:"seasonalP" toml:"seasonal_p"`
	SD     int `json:"seasonalD" toml:"seasonal_d"`
	SQ     int `json:"seasonalQ" toml:"seasonal_q"`
	Period int `json:"period" toml:"period"`
}

// DefaultOrder is SARIMA(1,1,1)(1,1,1,12)
var DefaultOrder = Order{P: 1, D: 1, Q: 1, SP: 1, SD: 1, SQ: 1, Period: 12}

// Forecaster projects a close price series forward a number of trading days
type Forecaster interface {
	Forecast(ctx context.Context, symbol string, closes []float64, horizonDays int) (*Trajectory, error)
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)(%d,%d,%d,%d)", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.Period)
}

// Validate checks that all orders are non-negative and the seasonal period is at least 2
func (o Order) Validate() error {
	if o.P < 0 || o.D < 0 || o.Q < 0 || o.SP < 0 || o.SD < 0 || o.SQ < 0 {
		return fmt.Errorf("%w: orders must not be negative: %s", ErrInvalidOrder, o)
	}
	if o.Period < 2 {
		return fmt.Errorf("%w: seasonal period must be at least 2: %s", ErrInvalidOrder, o)
	}
	return nil
}

// NumParams returns the number of ARMA coefficients estimated by the model
func (o Order) NumParams() int {
	return o.P + o.Q + o.SP + o.SQ
}

// MinObservations is the shortest series the model will fit
func (o Order) MinObservations() int {
	return 2 * o.Period
}
