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

package tradecron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/pv-forecast/common"
)

// Holiday is a day the market is closed or closes early. EarlyClose is a time of day such as
// 1300; zero means the market is closed all day.
type Holiday struct {
	Date       time.Time
	EarlyClose int
}

type MarketStatus struct {
	marketHours MarketHours
	tz          *time.Location
	holidays    map[int64]int
}

// ParseHolidays parses holidays of the form 2023-12-25 (closed) or 2023-11-24@1300 (early
// close at 13:00)
func ParseHolidays(specs []string) ([]Holiday, error) {
	tz := common.GetTimezone()
	holidays := make([]Holiday, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(strings.TrimSpace(spec), "@", 2)
		dt, err := time.ParseInLocation("2006-01-02", parts[0], tz)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHoliday, spec)
		}

		holiday := Holiday{Date: dt}
		if len(parts) == 2 {
			closeTime, err := strconv.Atoi(parts[1])
			if err != nil || closeTime <= 0 || closeTime >= 2400 || closeTime%100 > 59 {
				return nil, fmt.Errorf("%w: %q has an invalid close time", ErrInvalidHoliday, spec)
			}
			holiday.EarlyClose = closeTime
		}

		holidays = append(holidays, holiday)
	}
	return holidays, nil
}

// NewMarketStatus creates a market calendar for the given hours and holidays
func NewMarketStatus(hours MarketHours, holidays []Holiday) *MarketStatus {
	ms := &MarketStatus{
		marketHours: hours,
		tz:          common.GetTimezone(),
		holidays:    make(map[int64]int, len(holidays)),
	}

	for _, holiday := range holidays {
		ms.holidays[ms.midnight(holiday.Date).Unix()] = holiday.EarlyClose
	}

	return ms
}

func (ms *MarketStatus) midnight(t time.Time) time.Time {
	t = t.In(ms.tz)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ms.tz)
}

// EarlyClose returns close time of an early close market day, e.g. 1300
func (ms *MarketStatus) EarlyClose(t time.Time) int {
	return ms.holidays[ms.midnight(t).Unix()]
}

// IsMarketHoliday returns true if the market is closed all day on the specified date
func (ms *MarketStatus) IsMarketHoliday(t time.Time) bool {
	closeTime, ok := ms.holidays[ms.midnight(t).Unix()]
	return ok && closeTime == 0
}

// IsMarketDay returns true if the specified date is a valid trading day
// (i.e. not a market holiday or weekend)
func (ms *MarketStatus) IsMarketDay(t time.Time) bool {
	t = t.In(ms.tz)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}

	return !ms.IsMarketHoliday(t)
}

// IsMarketOpen returns true if the specified time is during market hours
func (ms *MarketStatus) IsMarketOpen(t time.Time) bool {
	if !ms.IsMarketDay(t) {
		return false
	}

	closeTime := ms.marketHours.Close
	if earlyClose := ms.EarlyClose(t); earlyClose != 0 {
		closeTime = earlyClose
	}

	t = t.In(ms.tz)
	timeOfDay := t.Hour()*100 + t.Minute()
	return timeOfDay >= ms.marketHours.Open && timeOfDay <= closeTime
}

// NextTradingDay returns midnight of the first trading day after t
func (ms *MarketStatus) NextTradingDay(t time.Time) time.Time {
	d := ms.midnight(t).AddDate(0, 0, 1)
	for !ms.IsMarketDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
