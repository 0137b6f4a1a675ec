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

	"github.com/rs/zerolog/log"
)

// expandBriefFormat expands a timespec that has fields ommitted for brevity. Without a
// modifier missing fields are filled from the right. With @open or @close the leading
// numeric tokens (at most two) are the minute and hour offsets and the remaining tokens
// are right-aligned onto day-of-month, month and day-of-week, so "@close * * * 1-5" runs
// at the close on weekdays.
func expandBriefFormat(tokens []string) []string {
	special := make([]string, 0, 1)
	fields := make([]string, 0, 5)
	for _, token := range tokens {
		if strings.HasPrefix(token, "@") {
			special = append(special, token)
		} else {
			fields = append(fields, token)
		}
	}

	if len(special) == 0 || len(fields) >= 5 {
		for len(fields) < 5 {
			fields = append(fields, "*")
		}
		return append(special, fields...)
	}

	offsets := make([]string, 0, 2)
	for len(offsets) < 2 && len(offsets) < len(fields) && isOffset(fields[len(offsets)]) {
		offsets = append(offsets, fields[len(offsets)])
	}
	days := fields[len(offsets):]
	if len(days) > 3 {
		// more than three day fields is malformed
		return append(special, fields...)
	}

	expanded := make([]string, 0, 5+len(special))
	expanded = append(expanded, special...)
	expanded = append(expanded, offsets...)
	for idx := len(offsets); idx < 2; idx++ {
		expanded = append(expanded, "*")
	}
	for idx := len(days); idx < 3; idx++ {
		expanded = append(expanded, "*")
	}
	return append(expanded, days...)
}

func isOffset(token string) bool {
	if token == "*" {
		return true
	}
	_, err := strconv.Atoi(token)
	return err == nil
}

// parseTimeRelativeTo offsets the minute and hour tokens by the given time of day
func parseTimeRelativeTo(tokens []string, hours int, minutes int) (string, error) {
	if len(tokens) != 5 {
		return "", ErrMalformedTimeSpec
	}

	var mins int
	var err error
	if tokens[0] != "*" {
		if mins, err = strconv.Atoi(tokens[0]); err != nil {
			log.Error().Str("MinutesToken", tokens[0]).Msg("could not parse minutes token")
			return "", ErrMalformedTimeSpec
		}
	}

	var hrs int
	if tokens[1] != "*" {
		if hrs, err = strconv.Atoi(tokens[1]); err != nil {
			log.Error().Str("HoursToken", tokens[1]).Msg("could not parse hours token")
			return "", ErrMalformedTimeSpec
		}
	}

	total := (hrs+hours)*60 + mins + minutes
	if total < 0 || total >= 24*60 {
		return "", ErrFieldOutOfBounds
	}

	return fmt.Sprintf("%d %d %s %s %s", total%60, total/60, tokens[2], tokens[3], tokens[4]), nil
}
