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
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	AtOpen  = "@open"
	AtClose = "@close"
)

type MarketHours struct {
	Open  int
	Close int
}

type TradeCron struct {
	Schedule       cron.Schedule
	ScheduleString string
	TimeSpec       string
	TimeFlag       string
	marketStatus   *MarketStatus
}

var (
	RegularHours = MarketHours{
		Open:  930,
		Close: 1600,
	}
	ExtendedHours = MarketHours{
		Open:  700,
		Close: 2000,
	}
)

// New parses a market aware schedule. Schedules use the standard CRON format of:
// Minutes(Min) Hours(H) DayOfMonth(DoM) Month(M) DayOfWeek(DoW)
// See: https://en.wikipedia.org/wiki/Cron
//
// '*' wildcards only execute during market open hours. Omitted trailing fields default to '*'.
//
// Additional market-aware modifiers are supported:
//
//	@open       - Run at market open; replaces Minute and Hour field
//	@close      - Run at market close; replaces Minute and Hour field
//
// Minutes and hours given with a modifier are an offset from it. When a modifier spec omits
// fields, the remaining day fields are aligned to the right.
//
// Examples:
//   - every 5 minutes: */5 * * * *
//   - market open on tuesdays: @open * * * * 2
//   - 15 minutes after market open: 15 @open * * *
//   - every trading day at the close: @close
//   - weekdays at the close: @close * * * 1-5
func New(cronSpec string, hours MarketHours, holidays ...Holiday) (*TradeCron, error) {
	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	tokens := strings.Fields(cronSpec)
	if len(tokens) == 0 {
		return nil, ErrEmptySpec
	}
	tokens = expandBriefFormat(tokens)

	// separate special tokens from timespec
	timeSpecTokens := make([]string, 0, 5)
	specialTokens := make([]string, 0, 1)
	for _, token := range tokens {
		if strings.HasPrefix(token, "@") {
			specialTokens = append(specialTokens, token)
		} else {
			timeSpecTokens = append(timeSpecTokens, token)
		}
	}

	var timeSpec string
	var timeFlag string
	var err error
	for _, token := range specialTokens {
		if timeFlag != "" {
			return nil, ErrConflictingModifiers
		}

		switch token {
		case AtOpen:
			timeSpec, err = parseTimeRelativeTo(timeSpecTokens, hours.Open/100, hours.Open%100)
		case AtClose:
			timeSpec, err = parseTimeRelativeTo(timeSpecTokens, hours.Close/100, hours.Close%100)
		default:
			return nil, ErrUnknownModifier
		}
		if err != nil {
			return nil, err
		}
		timeFlag = token
	}

	if timeSpec == "" {
		timeSpec = strings.Join(timeSpecTokens, " ")
	}

	schedule, err := specParser.Parse(timeSpec)
	if err != nil {
		log.Error().Err(err).Str("TimeSpec", timeSpec).Str("TradeCronSpec", cronSpec).Msg("robfig/cron could not parse timespec")
		return nil, err
	}

	return &TradeCron{
		Schedule:       schedule,
		ScheduleString: cronSpec,
		TimeSpec:       timeSpec,
		TimeFlag:       timeFlag,
		marketStatus:   NewMarketStatus(hours, holidays),
	}, nil
}

// MarketStatus returns the calendar used by the schedule
func (tc *TradeCron) MarketStatus() *MarketStatus {
	return tc.marketStatus
}

// IsTradeDay evaluates the given date against the schedule and returns true if the date falls
// on a trading day according to the schedule. The time portion of the schedule is ignored when
// evaluating this function
func (tc *TradeCron) IsTradeDay(forDate time.Time) bool {
	t1 := tc.marketStatus.midnight(forDate)
	next := tc.Next(t1.Add(-time.Nanosecond))
	return tc.marketStatus.midnight(next).Equal(t1)
}

// Next returns the next scheduled time after forDate on which the market trades. Schedules
// anchored to @open or @close only require a trading day, so early close days are kept.
func (tc *TradeCron) Next(forDate time.Time) time.Time {
	checkDate := forDate.In(tc.marketStatus.tz)

	marketOpen := false
	maxIters := 5000
	actualIters := 0
	for !marketOpen {
		checkDate = tc.Schedule.Next(checkDate)
		if tc.TimeFlag != "" {
			marketOpen = tc.marketStatus.IsMarketDay(checkDate)
		} else {
			marketOpen = tc.marketStatus.IsMarketOpen(checkDate)
		}
		if actualIters > maxIters {
			log.Panic().Str("TimeSpec", tc.TimeSpec).Msg("something is wrong with tradecron schedule as it appears to be in an infinite loop")
		}
		actualIters++
	}

	return checkDate
}

// NextN returns the next n scheduled times after from
func (tc *TradeCron) NextN(from time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}

	dates := make([]time.Time, n)
	next := from
	for idx := range dates {
		next = tc.Next(next)
		dates[idx] = next
	}
	return dates
}
