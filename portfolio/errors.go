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
	"errors"
	"fmt"
)

var (
	ErrInvalidPortfolio = errors.New("invalid portfolio")
)

// InvalidPortfolioError is returned when the portfolio weights or records are malformed. It is
// fatal for a run.
type InvalidPortfolioError struct {
	Reason string
	Symbol string
	Row    int
}

func (e *InvalidPortfolioError) Error() string {
	switch {
	case e.Row > 0 && e.Symbol != "":
		return fmt.Sprintf("invalid portfolio: row %d (%s): %s", e.Row, e.Symbol, e.Reason)
	case e.Row > 0:
		return fmt.Sprintf("invalid portfolio: row %d: %s", e.Row, e.Reason)
	case e.Symbol != "":
		return fmt.Sprintf("invalid portfolio: %s: %s", e.Symbol, e.Reason)
	default:
		return fmt.Sprintf("invalid portfolio: %s", e.Reason)
	}
}

func (e *InvalidPortfolioError) Unwrap() error {
	return ErrInvalidPortfolio
}
