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
	"errors"
	"fmt"
)

var (
	ErrForecastConvergence = errors.New("forecast did not converge")
	ErrInvalidHorizon      = errors.New("horizon must be at least one day")
	ErrDayOutOfRange       = errors.New("day is outside of the forecast trajectory")
	ErrInvalidOrder        = errors.New("invalid model order")
)

// ConvergenceError is returned when a series cannot be fit: it is too short, constant or
// contains non-finite values, the optimizer fails, or the fit is cancelled.
type ConvergenceError struct {
	Symbol string
	Reason string
	Err    error
}

func (e *ConvergenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("forecast for %s did not converge: %s", e.Symbol, e.Reason)
	}
	return fmt.Sprintf("forecast for %s did not converge: %s: %s", e.Symbol, e.Reason, e.Err.Error())
}

func (e *ConvergenceError) Is(target error) bool {
	return target == ErrForecastConvergence
}

func (e *ConvergenceError) Unwrap() error {
	return e.Err
}
