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
	"errors"
	"fmt"
)

var (
	ErrDataUnavailable   = errors.New("price data unavailable")
	ErrFXUnavailable     = errors.New("exchange rate unavailable")
	ErrInvalidSeries     = errors.New("invalid price series")
	ErrInvalidHistory    = errors.New("invalid history period")
	ErrUnknownProvider   = errors.New("unknown data provider")
	ErrNoTokenProvided   = errors.New("api token not provided")
	ErrUnexpectedStatus  = errors.New("unexpected http status code")
	ErrCacheEntryInvalid = errors.New("cache entry could not be decoded")
)

// DataUnavailableError is returned when the price history of a symbol cannot be retrieved
// or is empty. The holding is skipped but the run continues.
type DataUnavailableError struct {
	Symbol string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("data unavailable for %s", e.Symbol)
	}
	return fmt.Sprintf("data unavailable for %s: %s", e.Symbol, e.Err.Error())
}

func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}
