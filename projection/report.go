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

package projection

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-forecast/dataframe"
	"github.com/penny-vault/pv-forecast/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// Report is the complete result of a run
type Report struct {
	RunID        uuid.UUID        `json:"runID"`
	Fingerprint  string           `json:"fingerprint"`
	GeneratedAt  time.Time        `json:"generatedAt"`
	Config       Config           `json:"config"`
	Holdings     []*HoldingResult `json:"holdings"`
	Forecasts    []Forecast       `json:"forecasts"`
	Snapshots    []*Snapshot      `json:"snapshots"`
	Skipped      []Skip           `json:"skipped"`
	Trajectories dataframe.Map    `json:"-"`
}

// Snapshot returns the snapshot at the given horizon, 0 for today, or nil if there is none
func (r *Report) Snapshot(years int) *Snapshot {
	for _, snap := range r.Snapshots {
		if snap.HorizonYears == years {
			return snap
		}
	}
	return nil
}

// Fingerprint computes a blake3 hash of the normalized holdings and the parameters that
// affect a run's numbers. Two runs with the same fingerprint on the same day fit the same
// models.
func Fingerprint(holdings []portfolio.Holding, cfg Config) (string, error) {
	h := blake3.New()

	write := func(field, val string) error {
		if _, err := h.Write([]byte(val)); err != nil {
			log.Error().Err(err).Str("Field", field).Msg("could not write to blake3 hasher")
			return err
		}
		return nil
	}

	for _, holding := range holdings {
		if err := write("symbol", holding.Symbol); err != nil {
			return "", err
		}
		if err := write("weight", fmt.Sprintf("%.9f", holding.Weight)); err != nil {
			return "", err
		}
		if err := write("currency", holding.Currency); err != nil {
			return "", err
		}
		if holding.Shares != nil {
			if err := write("shares", fmt.Sprintf("%.5f", *holding.Shares)); err != nil {
				return "", err
			}
		}
	}

	if err := write("horizons", fmt.Sprintf("%v", cfg.SortedHorizons())); err != nil {
		return "", err
	}
	if err := write("totalValue", fmt.Sprintf("%.5f", cfg.TotalValue)); err != nil {
		return "", err
	}
	if err := write("tradingDaysPerYear", fmt.Sprintf("%d", cfg.TradingDaysPerYear)); err != nil {
		return "", err
	}
	if err := write("order", cfg.Order.String()); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
