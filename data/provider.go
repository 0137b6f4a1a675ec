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
	"time"
)

const (
	DataTypeSecurity = "security"
)

// PriceProvider returns the daily close history of a symbol
type PriceProvider interface {
	DataType() string
	PriceHistory(ctx context.Context, symbol string, begin, end time.Time) (*PriceSeries, error)
}

// FXProvider returns the number of units of `to` bought by one unit of `from`
type FXProvider interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// ProfileProvider returns fund profile values. A nil ratio means the source does not know it.
type ProfileProvider interface {
	ExpenseRatio(ctx context.Context, symbol string) (*float64, error)
}
