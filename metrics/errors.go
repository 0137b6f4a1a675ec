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

package metrics

import (
	"errors"
	"fmt"
)

var (
	ErrCurrencyConversion = errors.New("currency conversion failed")
)

// CurrencyConversionError is returned when a non-USD holding has no usable exchange rate
type CurrencyConversionError struct {
	Symbol   string
	Currency string
	Err      error
}

func (e *CurrencyConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot convert %s from %s to USD", e.Symbol, e.Currency)
	}
	return fmt.Sprintf("cannot convert %s from %s to USD: %s", e.Symbol, e.Currency, e.Err.Error())
}

func (e *CurrencyConversionError) Is(target error) bool {
	return target == ErrCurrencyConversion
}

func (e *CurrencyConversionError) Unwrap() error {
	return e.Err
}
