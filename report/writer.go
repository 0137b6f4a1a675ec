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

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-forecast/dataframe"
	"github.com/rs/zerolog/log"
)

// Supported output formats
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatTable = "table"
)

// WriteCSV writes records with a header row
func WriteCSV[T Record](w io.Writer, records []T) error {
	writer := csv.NewWriter(w)

	var zero T
	if err := writer.Write(zero.Header()); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(rec.Row()); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteTable renders records as an ASCII table
func WriteTable[T Record](w io.Writer, records []T) error {
	var zero T

	table := tablewriter.NewWriter(w)
	table.SetHeader(zero.Header())
	table.SetBorder(false)
	for _, rec := range records {
		table.Append(rec.Row())
	}
	table.Render()

	return nil
}

// Write dispatches to the writer for format
func Write[T Record](w io.Writer, format string, records []T) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatTable:
		return WriteTable(w, records)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// WriteFile creates dir/name.<ext> and writes records to it in format
func WriteFile[T Record](dir, name, format string, records []T) (string, error) {
	ext := format
	if format == FormatTable {
		ext = "txt"
	}
	fn := filepath.Join(dir, fmt.Sprintf("%s.%s", name, ext))

	fh, err := os.Create(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not create output file")
		return "", err
	}
	defer fh.Close()

	if err := Write(fh, format, records); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not write records")
		return "", err
	}

	return fn, nil
}

// WriteTrajectories writes the forecast paths as a dated table with one column per symbol
func WriteTrajectories(w io.Writer, trajectories dataframe.Map) error {
	if len(trajectories) == 0 {
		return ErrNoTrajectories
	}

	df, err := trajectories.DataFrame()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{"Date"}, df.ColNames...)); err != nil {
		return err
	}

	for rowIdx, dt := range df.Dates {
		row := make([]string, 0, len(df.ColNames)+1)
		row = append(row, dt.Format(dateFormat))
		for _, col := range df.Vals {
			row = append(row, formatFloat(col[rowIdx]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
