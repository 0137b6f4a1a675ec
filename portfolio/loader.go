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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported portfolio file format")
)

type tomlHolding struct {
	Symbol        string   `toml:"symbol"`
	Weight        float64  `toml:"weight"`
	Currency      string   `toml:"currency"`
	ExpenseRatio  *float64 `toml:"expense_ratio"`
	Quantity      *float64 `toml:"quantity"`
	PurchasePrice *float64 `toml:"purchase_price"`
	Commission    *float64 `toml:"commission"`
}

type tomlPortfolio struct {
	Holdings []tomlHolding `toml:"holding"`
}

// Load reads holdings from a CSV (.csv) or TOML (.toml) file. The holdings are not normalized.
func Load(fn string) ([]Holding, error) {
	subLog := log.With().Str("FileName", fn).Logger()

	fh, err := os.Open(fn)
	if err != nil {
		subLog.Error().Err(err).Msg("could not open portfolio file")
		return nil, err
	}
	defer fh.Close()

	switch strings.ToLower(filepath.Ext(fn)) {
	case ".csv":
		return LoadCSV(fh)
	case ".toml":
		return LoadTOML(fh)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fn))
	}
}

// LoadCSV reads holdings from CSV. The header must contain Symbol and Weight columns; Currency,
// ExpenseRatio, Quantity, PurchasePrice and Commission are optional. Column names are
// case-insensitive.
func LoadCSV(r io.Reader) ([]Holding, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InvalidPortfolioError{Reason: "portfolio file is empty"}
		}
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for idx, name := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
		cols[key] = idx
	}

	symbolIdx, ok := cols["symbol"]
	if !ok {
		return nil, &InvalidPortfolioError{Reason: "missing Symbol column"}
	}
	weightIdx, ok := cols["weight"]
	if !ok {
		return nil, &InvalidPortfolioError{Reason: "missing Weight column"}
	}

	field := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	holdings := make([]Holding, 0, 16)
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &InvalidPortfolioError{Reason: err.Error(), Row: row}
		}

		if symbolIdx >= len(record) || weightIdx >= len(record) {
			return nil, &InvalidPortfolioError{Reason: "record is missing fields", Row: row}
		}

		symbol := strings.TrimSpace(record[symbolIdx])
		weight, err := strconv.ParseFloat(strings.TrimSpace(record[weightIdx]), 64)
		if err != nil {
			return nil, &InvalidPortfolioError{Reason: "weight is not a number", Row: row, Symbol: symbol}
		}

		holding := Holding{
			Symbol:    symbol,
			RawWeight: weight,
			Currency:  field(record, "currency"),
		}

		if holding.ExpenseRatio, err = optionalFloat(field(record, "expenseratio")); err != nil {
			return nil, &InvalidPortfolioError{Reason: "expense ratio is not a number", Row: row, Symbol: symbol}
		}

		if holding.Shares, err = optionalFloat(field(record, "quantity")); err != nil {
			return nil, &InvalidPortfolioError{Reason: "quantity is not a number", Row: row, Symbol: symbol}
		}

		if holding.PurchasePrice, err = optionalFloat(field(record, "purchaseprice")); err != nil {
			return nil, &InvalidPortfolioError{Reason: "purchase price is not a number", Row: row, Symbol: symbol}
		}

		if holding.Commission, err = optionalFloat(field(record, "commission")); err != nil {
			return nil, &InvalidPortfolioError{Reason: "commission is not a number", Row: row, Symbol: symbol}
		}

		holdings = append(holdings, holding)
	}

	log.Debug().Int("NumHoldings", len(holdings)).Msg("loaded portfolio from csv")
	return holdings, nil
}

// LoadTOML reads holdings from a TOML document made of [[holding]] tables
func LoadTOML(r io.Reader) ([]Holding, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := tomlPortfolio{}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, &InvalidPortfolioError{Reason: err.Error()}
	}

	holdings := make([]Holding, 0, len(doc.Holdings))
	for _, h := range doc.Holdings {
		holdings = append(holdings, Holding{
			Symbol:        h.Symbol,
			RawWeight:     h.Weight,
			Currency:      h.Currency,
			ExpenseRatio:  h.ExpenseRatio,
			Shares:        h.Quantity,
			PurchasePrice: h.PurchasePrice,
			Commission:    h.Commission,
		})
	}

	log.Debug().Int("NumHoldings", len(holdings)).Msg("loaded portfolio from toml")
	return holdings, nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
