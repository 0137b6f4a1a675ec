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
	"regexp"
	"strconv"
	"strings"
	"time"
)

var historyRegex = regexp.MustCompile(`^(\d+)(d|w|mo|y)$`)

// HistoryBegin returns the start of a lookback period such as 5y, 18mo, 26w or 90d ending at end
func HistoryBegin(end time.Time, period string) (time.Time, error) {
	match := historyRegex.FindStringSubmatch(strings.ToLower(strings.TrimSpace(period)))
	if match == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidHistory, period)
	}

	n, err := strconv.Atoi(match[1])
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidHistory, period)
	}

	switch match[2] {
	case "d":
		return end.AddDate(0, 0, -n), nil
	case "w":
		return end.AddDate(0, 0, -7*n), nil
	case "mo":
		return end.AddDate(0, -n, 0), nil
	default:
		return end.AddDate(-n, 0, 0), nil
	}
}
