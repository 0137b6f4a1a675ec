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

package data_test

import (
	"context"
	"errors"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-forecast/common"
	"github.com/penny-vault/pv-forecast/data"
)

const yahooVTI = `{"chart":{"result":[{"meta":{"symbol":"VTI","currency":"USD"},
"timestamp":[1672756200,1672842600,1672929000,1672945200],
"indicators":{"quote":[{"close":[190.5,null,192.25,193.0]}],
"adjclose":[{"adjclose":[189.5,null,191.25,192.0]}]}}],"error":null}}`

const yahooEUR = `{"chart":{"result":[{"meta":{"symbol":"EURUSD=X","currency":"USD"},
"timestamp":[1672756200,1672842600],
"indicators":{"quote":[{"close":[1.05,1.10]}]}}],"error":null}}`

const yahooNotFound = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

var _ = Describe("Yahoo", func() {
	var (
		yahoo *data.Yahoo
		begin time.Time
		end   time.Time
	)

	BeforeEach(func() {
		yahoo = data.NewYahoo()
		begin = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC)
	})

	Context("with a valid symbol", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET", "https://query1.finance.yahoo.com/v8/finance/chart/VTI",
				httpmock.NewStringResponder(200, yahooVTI))
		})

		It("should decode adjusted closes and drop missing values", func() {
			series, err := yahoo.PriceHistory(context.Background(), "VTI", begin, end)
			Expect(err).To(BeNil())
			Expect(series.Symbol).To(Equal("VTI"))
			Expect(series.Currency).To(Equal("USD"))
			Expect(series.Len()).To(Equal(2))
			Expect(series.Closes()).To(Equal([]float64{189.5, 192.0}))
			Expect(series.Dates()[0]).To(Equal(time.Date(2023, 1, 3, 16, 0, 0, 0, common.GetTimezone())))
		})

		It("should keep the last quote of a day reported twice", func() {
			series, err := yahoo.PriceHistory(context.Background(), "VTI", begin, end)
			Expect(err).To(BeNil())
			Expect(series.LastDate()).To(Equal(time.Date(2023, 1, 5, 16, 0, 0, 0, common.GetTimezone())))
			Expect(series.LastClose()).To(Equal(192.0))
		})
	})

	Context("with an unknown symbol", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET", "https://query1.finance.yahoo.com/v8/finance/chart/NOPE",
				httpmock.NewStringResponder(404, yahooNotFound))
		})

		It("should return ErrDataUnavailable", func() {
			_, err := yahoo.PriceHistory(context.Background(), "NOPE", begin, end)
			Expect(errors.Is(err, data.ErrDataUnavailable)).To(BeTrue())
		})
	})

	Context("with exchange rates", func() {
		BeforeEach(func() {
			httpmock.RegisterResponder("GET", "https://query1.finance.yahoo.com/v8/finance/chart/EURUSD=X",
				httpmock.NewStringResponder(200, yahooEUR))
		})

		It("should return the last close of the pair", func() {
			rate, err := yahoo.Rate(context.Background(), "eur", "usd")
			Expect(err).To(BeNil())
			Expect(rate).To(Equal(1.10))
		})

		It("should return 1 for the same currency without a request", func() {
			rate, err := yahoo.Rate(context.Background(), "USD", "USD")
			Expect(err).To(BeNil())
			Expect(rate).To(Equal(1.0))
			Expect(httpmock.GetTotalCallCount()).To(Equal(0))
		})

		It("should return ErrFXUnavailable for an unknown pair", func() {
			httpmock.RegisterResponder("GET", "https://query1.finance.yahoo.com/v8/finance/chart/XXXUSD=X",
				httpmock.NewStringResponder(404, yahooNotFound))
			_, err := yahoo.Rate(context.Background(), "XXX", "USD")
			Expect(errors.Is(err, data.ErrFXUnavailable)).To(BeTrue())
		})
	})
})
