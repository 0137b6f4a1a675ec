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

package portfolio_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-forecast/portfolio"
)

var _ = Describe("Loader", func() {
	Describe("when reading csv", func() {
		It("should parse required and optional columns", func() {
			input := "Symbol,Weight,Currency,Expense_Ratio,Quantity\n" +
				"VTI,60,USD,0.0003,\n" +
				"VWRL.L,40,GBP,,12.5\n"
			holdings, err := portfolio.LoadCSV(strings.NewReader(input))
			Expect(err).To(BeNil())
			Expect(holdings).To(HaveLen(2))

			Expect(holdings[0].Symbol).To(Equal("VTI"))
			Expect(holdings[0].RawWeight).To(Equal(60.0))
			Expect(holdings[0].ExpenseRatio).ToNot(BeNil())
			Expect(*holdings[0].ExpenseRatio).To(Equal(0.0003))
			Expect(holdings[0].Shares).To(BeNil())

			Expect(holdings[1].Currency).To(Equal("GBP"))
			Expect(holdings[1].ExpenseRatio).To(BeNil())
			Expect(holdings[1].Shares).ToNot(BeNil())
			Expect(*holdings[1].Shares).To(Equal(12.5))
		})

		It("should parse purchase price and commission", func() {
			input := "Symbol,Weight,Quantity,Purchase_Price,Commission\n" +
				"AAPL,1,10,150.25,4.95\n" +
				"MSFT,1,5,,\n"
			holdings, err := portfolio.LoadCSV(strings.NewReader(input))
			Expect(err).To(BeNil())
			Expect(*holdings[0].PurchasePrice).To(Equal(150.25))
			Expect(*holdings[0].Commission).To(Equal(4.95))
			Expect(holdings[1].PurchasePrice).To(BeNil())
			Expect(holdings[1].Commission).To(BeNil())
		})

		It("should report a malformed purchase price", func() {
			_, err := portfolio.LoadCSV(strings.NewReader("Symbol,Weight,PurchasePrice\nSPY,1,n/a\n"))
			var portErr *portfolio.InvalidPortfolioError
			Expect(errors.As(err, &portErr)).To(BeTrue())
			Expect(portErr.Row).To(Equal(1))
			Expect(portErr.Reason).To(ContainSubstring("purchase price"))
		})

		It("should accept headers in any case", func() {
			holdings, err := portfolio.LoadCSV(strings.NewReader("symbol,WEIGHT\nspy,1\n"))
			Expect(err).To(BeNil())
			Expect(holdings).To(HaveLen(1))
			Expect(holdings[0].Symbol).To(Equal("spy"))
		})

		It("should report the row of a malformed weight", func() {
			_, err := portfolio.LoadCSV(strings.NewReader("Symbol,Weight\nSPY,1\nQQQ,abc\n"))
			Expect(err).ToNot(BeNil())
			Expect(errors.Is(err, portfolio.ErrInvalidPortfolio)).To(BeTrue())

			var portErr *portfolio.InvalidPortfolioError
			Expect(errors.As(err, &portErr)).To(BeTrue())
			Expect(portErr.Row).To(Equal(2))
			Expect(portErr.Symbol).To(Equal("QQQ"))
		})

		It("should reject a missing weight column", func() {
			_, err := portfolio.LoadCSV(strings.NewReader("Symbol,Currency\nSPY,USD\n"))
			Expect(errors.Is(err, portfolio.ErrInvalidPortfolio)).To(BeTrue())
		})

		It("should reject an empty file", func() {
			_, err := portfolio.LoadCSV(strings.NewReader(""))
			Expect(errors.Is(err, portfolio.ErrInvalidPortfolio)).To(BeTrue())
		})
	})

	Describe("when reading toml", func() {
		It("should parse holding tables", func() {
			input := `
[[holding]]
symbol = "VTI"
weight = 0.7

[[holding]]
symbol = "EUNL.DE"
weight = 0.3
currency = "EUR"
expense_ratio = 0.002
quantity = 4
purchase_price = 80.5
commission = 1.0
`
			holdings, err := portfolio.LoadTOML(strings.NewReader(input))
			Expect(err).To(BeNil())
			Expect(holdings).To(HaveLen(2))
			Expect(holdings[1].Symbol).To(Equal("EUNL.DE"))
			Expect(holdings[1].Currency).To(Equal("EUR"))
			Expect(*holdings[1].ExpenseRatio).To(Equal(0.002))
			Expect(*holdings[1].PurchasePrice).To(Equal(80.5))
			Expect(*holdings[1].Commission).To(Equal(1.0))
			Expect(holdings[0].PurchasePrice).To(BeNil())
		})

		It("should reject malformed documents", func() {
			_, err := portfolio.LoadTOML(strings.NewReader("[[holding]\nsymbol="))
			Expect(errors.Is(err, portfolio.ErrInvalidPortfolio)).To(BeTrue())
		})
	})

	Describe("when loading from disk", func() {
		It("should dispatch on the file extension", func() {
			dir, err := os.MkdirTemp("", "portfolio")
			Expect(err).To(BeNil())
			DeferCleanup(os.RemoveAll, dir)
			fn := filepath.Join(dir, "portfolio.csv")
			Expect(os.WriteFile(fn, []byte("Symbol,Weight\nSPY,1\n"), 0o600)).To(Succeed())

			holdings, err := portfolio.Load(fn)
			Expect(err).To(BeNil())
			Expect(holdings).To(HaveLen(1))
		})

		It("should reject unknown extensions", func() {
			dir, err := os.MkdirTemp("", "portfolio")
			Expect(err).To(BeNil())
			DeferCleanup(os.RemoveAll, dir)
			fn := filepath.Join(dir, "portfolio.xlsx")
			Expect(os.WriteFile(fn, []byte("x"), 0o600)).To(Succeed())

			_, err = portfolio.Load(fn)
			Expect(errors.Is(err, portfolio.ErrUnsupportedFormat)).To(BeTrue())
		})
	})
})
