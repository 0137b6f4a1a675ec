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
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-forecast/projection"
)

// WriteSummary prints the portfolio value today and at each horizon followed by a per-symbol
// breakdown, the gain or loss of holdings with a purchase price and the list of skipped holdings
func WriteSummary(w io.Writer, rpt *projection.Report) error {
	if len(rpt.Snapshots) == 0 {
		return fmt.Errorf("%w: report has no snapshots", projection.ErrAggregation)
	}

	fmt.Fprintf(w, "Run: %s\n", rpt.RunID)
	fmt.Fprintf(w, "Fingerprint: %s\n\n", rpt.Fingerprint)

	for _, snap := range rpt.Snapshots {
		if snap.HorizonYears == 0 {
			fmt.Fprintf(w, "Total Portfolio Value Today: $%.2f\n", snap.TotalValue)
			continue
		}
		fmt.Fprintf(w, "Predicted Total Portfolio Value in %d years: $%.2f\n", snap.HorizonYears, snap.TotalValue)
	}

	header := []string{"Symbol", "Quantity", "Value Today"}
	for _, snap := range rpt.Snapshots[1:] {
		header = append(header, fmt.Sprintf("Value in %d years", snap.HorizonYears))
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)

	today := rpt.Snapshots[0]
	for _, symbol := range today.Symbols() {
		pos := today.PerHolding[symbol]
		row := []string{symbol, fmt.Sprintf("%.4f", pos.Quantity), fmt.Sprintf("$%.2f", pos.Value)}
		for _, snap := range rpt.Snapshots[1:] {
			if future, ok := snap.PerHolding[symbol]; ok {
				row = append(row, fmt.Sprintf("$%.2f", future.Value))
			} else {
				row = append(row, "-")
			}
		}
		table.Append(row)
	}
	table.Render()

	if gains := GainRecords(rpt.Holdings); len(gains) > 0 {
		writeGains(w, gains)
	}

	if len(rpt.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped holdings:")
		if err := WriteTable(w, SkipRecords(rpt.Skipped)); err != nil {
			return err
		}
	}

	return nil
}

func writeGains(w io.Writer, gains []GainRecord) {
	fmt.Fprintln(w, "\nGain/Loss:")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Quantity", "Purchase Value", "Current Value", "Gain/Loss", "Percent"})
	table.SetBorder(false)

	purchase, gain := 0.0, 0.0
	for _, rec := range gains {
		pct := "-"
		if rec.PercentGain != nil {
			pct = fmt.Sprintf("%.2f%%", *rec.PercentGain)
		}
		table.Append([]string{
			rec.Symbol,
			fmt.Sprintf("%.4f", rec.Quantity),
			fmt.Sprintf("$%.2f", rec.PurchaseValue),
			fmt.Sprintf("$%.2f", rec.CurrentValue),
			fmt.Sprintf("$%.2f", rec.GainLoss),
			pct,
		})
		purchase += rec.PurchaseValue
		gain += rec.GainLoss
	}
	table.Render()

	fmt.Fprintf(w, "Total Purchase Value: $%.2f\n", purchase)
	fmt.Fprintf(w, "Total Gain/Loss: $%.2f\n", gain)
}
