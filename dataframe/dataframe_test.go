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

package dataframe_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-forecast/dataframe"
)

var _ = Describe("Dataframe", func() {
	var (
		dates []time.Time
		df1   *dataframe.DataFrame
	)

	BeforeEach(func() {
		dates = []time.Time{
			time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC),
			time.Date(2021, time.January, 5, 0, 0, 0, 0, time.UTC),
			time.Date(2021, time.January, 6, 0, 0, 0, 0, time.UTC),
			time.Date(2021, time.January, 7, 0, 0, 0, 0, time.UTC),
			time.Date(2021, time.January, 8, 0, 0, 0, 0, time.UTC),
		}

		var err error
		df1, err = dataframe.New(dates, "test", []float64{1.0, 2.0, 3.0, 4.0, 5.0})
		Expect(err).To(BeNil())
	})

	Context("when constructing", func() {
		It("rejects mismatched lengths", func() {
			_, err := dataframe.New(dates, "test", []float64{1.0})
			Expect(errors.Is(err, dataframe.ErrLengthMismatch)).To(BeTrue())
		})

		It("rejects duplicate dates", func() {
			dup := []time.Time{dates[0], dates[0]}
			_, err := dataframe.New(dup, "test", []float64{1.0, 2.0})
			Expect(errors.Is(err, dataframe.ErrDatesNotIncreasing)).To(BeTrue())
		})

		It("copies its inputs", func() {
			vals := []float64{1, 2}
			df, err := dataframe.New(dates[:2], "test", vals)
			Expect(err).To(BeNil())
			vals[0] = 100
			Expect(df.Vals[0][0]).To(Equal(1.0))
		})
	})

	Context("when computing the SMA", func() {
		It("yields all NaN for a lookback of 0", func() {
			sma := df1.SMA(0)
			Expect(sma.Len()).To(Equal(5))
			for _, v := range sma.Vals[0] {
				Expect(math.IsNaN(v)).To(BeTrue())
			}
		})

		It("yields correct results for a lookback of 2", func() {
			sma := df1.SMA(2)
			col1 := sma.Vals[0]
			Expect(math.IsNaN(col1[0])).To(BeTrue())
			Expect(col1[1:]).To(Equal([]float64{1.5, 2.5, 3.5, 4.5}))
		})

		It("yields the plain mean when the lookback equals the length", func() {
			sma := df1.SMA(5)
			Expect(sma.Vals[0][4]).To(Equal(3.0))
		})

		It("yields all NaN when the lookback exceeds the length", func() {
			sma := df1.SMA(6)
			Expect(math.IsNaN(sma.Vals[0][4])).To(BeTrue())
		})
	})

	Context("when computing percent change", func() {
		It("has a NaN first row followed by simple returns", func() {
			pct := df1.PctChange()
			Expect(pct.Len()).To(Equal(5))
			Expect(math.IsNaN(pct.Vals[0][0])).To(BeTrue())
			Expect(pct.Vals[0][1]).To(BeNumerically("~", 1.0, 1e-12))
			Expect(pct.Vals[0][4]).To(BeNumerically("~", 0.25, 1e-12))
		})

		It("drops the warm-up row", func() {
			pct := df1.PctChange().Drop(math.NaN())
			Expect(pct.Len()).To(Equal(4))
		})
	})

	Context("when trimming", func() {
		It("keeps the inclusive range", func() {
			trimmed := df1.Trim(dates[1], dates[3])
			Expect(trimmed.Dates).To(Equal(dates[1:4]))
			Expect(trimmed.Vals[0]).To(Equal([]float64{2, 3, 4}))
		})

		It("returns an empty dataframe when the range does not overlap", func() {
			trimmed := df1.Trim(dates[4].AddDate(0, 0, 1), dates[4].AddDate(0, 0, 5))
			Expect(trimmed.Len()).To(Equal(0))
		})
	})

	Context("when merging a map", func() {
		It("aligns and orders columns by key", func() {
			df2, err := dataframe.New(dates[1:], "other", []float64{20, 30, 40, 50})
			Expect(err).To(BeNil())

			merged, err := dataframe.Map{"b": df2, "a": df1}.DataFrame()
			Expect(err).To(BeNil())
			Expect(merged.ColNames).To(Equal([]string{"test", "other"}))
			Expect(merged.Dates).To(Equal(dates[1:]))
			Expect(merged.Vals[0]).To(Equal([]float64{2, 3, 4, 5}))
			Expect(merged.Vals[1]).To(Equal([]float64{20, 30, 40, 50}))
		})
	})

	It("renders a table", func() {
		Expect(df1.Table()).To(ContainSubstring("2021-01-08"))
		Expect((&dataframe.DataFrame{}).Table()).To(Equal("<NO DATA>"))
	})
})
