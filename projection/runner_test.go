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

package projection_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-forecast/data"
	"github.com/penny-vault/pv-forecast/forecast"
	"github.com/penny-vault/pv-forecast/portfolio"
	"github.com/penny-vault/pv-forecast/projection"
	"github.com/penny-vault/pv-forecast/tradecron"
)

var _ = Describe("Runner", func() {
	var (
		cfg     projection.Config
		fetcher *fakeFetcher
	)

	BeforeEach(func() {
		cfg = projection.DefaultConfig()
		cfg.FitConcurrency = 2
		fetcher = newFakeFetcher()
	})

	Context("with a trending USD holding and a flat EUR holding", func() {
		var (
			report *projection.Report
			err    error
		)

		BeforeEach(func() {
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			fetcher.add(makeSeries("BBB", "EUR", constant(50, 60)), 1.1)

			runner := newRunner(cfg, fetcher, forecast.NewSARIMA(forecast.DefaultOrder))
			report, err = runner.Run(context.Background(), []portfolio.Holding{
				{Symbol: "AAA", RawWeight: 0.6},
				{Symbol: "bbb", RawWeight: 0.4, Currency: "eur"},
			})
		})

		It("should succeed", func() {
			Expect(err).To(BeNil())
			Expect(report.Fingerprint).To(HaveLen(64))
			Expect(report.Snapshots).To(HaveLen(4))
		})

		It("should value today's portfolio at the total", func() {
			today := report.Snapshot(0)
			Expect(today.AsOf).To(Equal("today"))
			Expect(today.TotalValue).To(BeNumerically("~", 10_000, 1e-6))
			Expect(today.PerHolding["AAA"].Value).To(BeNumerically("~", 6_000, 1e-6))
			Expect(today.PerHolding["BBB"].Value).To(BeNumerically("~", 4_000, 1e-6))
			Expect(today.PerHolding["BBB"].Price).To(BeNumerically("~", 55, 1e-9))
			Expect(today.Skipped).To(BeEmpty())
		})

		It("should compute quantity from the USD price", func() {
			Expect(report.Holdings[0].Quantity).To(BeNumerically("~", 6_000.0/159.0, 1e-9))
			Expect(report.Holdings[1].Quantity).To(BeNumerically("~", 4_000.0/55.0, 1e-9))
		})

		It("should extrapolate the trend at every horizon", func() {
			Expect(report.Forecasts).To(HaveLen(3))
			for idx, years := range []int{5, 10, 15} {
				fc := report.Forecasts[idx]
				Expect(fc.Symbol).To(Equal("AAA"))
				Expect(fc.HorizonYears).To(Equal(years))
				Expect(fc.HorizonDays).To(Equal(252 * years))
				Expect(fc.PredictedPrice).To(BeNumerically("~", 159+float64(252*years), 1e-6))
				Expect(fc.PredictedPriceUSD).To(Equal(fc.PredictedPrice))
				Expect(fc.Degenerate).To(BeFalse())
				Expect(fc.Date.After(time.Date(2022, 3, 25, 0, 0, 0, 0, time.UTC))).To(BeTrue())
			}

			snap := report.Snapshot(5)
			Expect(snap.AsOf).To(Equal("5 years"))
			Expect(snap.TotalValue).To(BeNumerically("~", 6_000.0/159.0*1419.0, 1e-6))
		})

		It("should skip the flat series at every horizon but not today", func() {
			Expect(report.Skipped).To(HaveLen(1))
			skip := report.Skipped[0]
			Expect(skip.Symbol).To(Equal("BBB"))
			Expect(skip.Kind).To(Equal(projection.SkipForecastConvergence))
			Expect(skip.Stage).To(Equal(projection.StateEnriched))

			for _, years := range []int{5, 10, 15} {
				snap := report.Snapshot(years)
				Expect(snap.PerHolding).ToNot(HaveKey("BBB"))
				Expect(snap.Skipped).To(HaveLen(1))
				Expect(snap.Skipped[0].Symbol).To(Equal("BBB"))
			}
		})

		It("should move holdings to their final state", func() {
			Expect(report.Holdings[0].State).To(Equal(projection.StateAggregated))
			Expect(report.Holdings[1].State).To(Equal(projection.StateSkipped))
		})

		It("should keep the dated trajectory of forecast holdings", func() {
			Expect(report.Trajectories).To(HaveKey("AAA"))
			Expect(report.Trajectories).ToNot(HaveKey("BBB"))
			df := report.Trajectories["AAA"]
			Expect(df.Len()).To(Equal(252 * 15))
			Expect(df.Vals[0][0]).To(BeNumerically("~", 160, 1e-6))
			Expect(df.Dates[1259]).To(Equal(report.Forecasts[0].Date))
		})
	})

	Context("with a holding whose price history is missing", func() {
		It("should skip it before enrichment and exclude it from today", func() {
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			forecaster := newSlopeForecaster()

			runner := newRunner(cfg, fetcher, forecaster)
			report, err := runner.Run(context.Background(), []portfolio.Holding{
				{Symbol: "AAA", RawWeight: 1},
				{Symbol: "ZZZ", RawWeight: 1},
			})
			Expect(err).To(BeNil())

			today := report.Snapshot(0)
			Expect(today.TotalValue).To(BeNumerically("~", 5_000, 1e-6))
			Expect(today.Skipped).To(HaveLen(1))
			Expect(today.Skipped[0].Kind).To(Equal(projection.SkipDataUnavailable))
			Expect(today.Skipped[0].Stage).To(Equal(projection.StatePending))
			Expect(report.Holdings[1].Enriched).To(BeNil())
			Expect(forecaster.calls).ToNot(HaveKey("ZZZ"))
		})
	})

	Context("with a holding whose exchange rate is unavailable", func() {
		It("should skip it with a currency conversion error", func() {
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			fetcher.add(makeSeries("CCC", "GBP", linear(20, 0.1, 60)), 0)
			fetcher.results["CCC"].FXErr = errors.New("no quote")

			runner := newRunner(cfg, fetcher, newSlopeForecaster())
			report, err := runner.Run(context.Background(), []portfolio.Holding{
				{Symbol: "AAA", RawWeight: 1},
				{Symbol: "CCC", RawWeight: 1, Currency: "GBP"},
			})
			Expect(err).To(BeNil())
			Expect(report.Skipped).To(HaveLen(1))
			Expect(report.Skipped[0].Kind).To(Equal(projection.SkipCurrencyConversion))
			Expect(report.Snapshot(0).PerHolding).ToNot(HaveKey("CCC"))
		})
	})

	Context("with duplicate symbols", func() {
		It("should fit once and group the positions", func() {
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			forecaster := newSlopeForecaster()
			forecaster.slope["AAA"] = 1

			runner := newRunner(cfg, fetcher, forecaster)
			report, err := runner.Run(context.Background(), []portfolio.Holding{
				{Symbol: "AAA", RawWeight: 1},
				{Symbol: "AAA", RawWeight: 3},
			})
			Expect(err).To(BeNil())
			Expect(forecaster.calls["AAA"]).To(Equal(1))
			Expect(forecaster.horizonDays).To(Equal([]int{252 * 15}))
			Expect(report.Forecasts).To(HaveLen(3))
			Expect(report.Holdings[0].Forecasts).To(Equal(report.Holdings[1].Forecasts))

			today := report.Snapshot(0)
			Expect(today.PerHolding).To(HaveLen(1))
			Expect(today.PerHolding["AAA"].Quantity).To(BeNumerically("~", 10_000.0/159.0, 1e-9))
			Expect(today.PerHolding["AAA"].Value).To(BeNumerically("~", 10_000, 1e-6))
		})
	})

	Context("with explicit shares", func() {
		It("should use the shares rather than the weight", func() {
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			shares := 10.0

			runner := newRunner(cfg, fetcher, newSlopeForecaster())
			report, err := runner.Run(context.Background(), []portfolio.Holding{
				{Symbol: "AAA", RawWeight: 1, Shares: &shares},
			})
			Expect(err).To(BeNil())
			Expect(report.Holdings[0].Quantity).To(Equal(10.0))
			Expect(report.Snapshot(0).TotalValue).To(BeNumerically("~", 1_590, 1e-9))
		})
	})

	Context("with a declining forecast", func() {
		It("should flag non-positive prices without clamping them", func() {
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			forecaster := newSlopeForecaster()
			forecaster.slope["AAA"] = -0.1

			runner := newRunner(cfg, fetcher, forecaster)
			report, err := runner.Run(context.Background(), []portfolio.Holding{{Symbol: "AAA", RawWeight: 1}})
			Expect(err).To(BeNil())

			Expect(report.Forecasts[0].Degenerate).To(BeFalse())
			Expect(report.Forecasts[0].PredictedPrice).To(BeNumerically("~", 159-126, 1e-9))
			Expect(report.Forecasts[1].Degenerate).To(BeTrue())
			Expect(report.Forecasts[1].PredictedPrice).To(BeNumerically("~", 159-252, 1e-9))
			Expect(report.Snapshot(10).TotalValue).To(BeNumerically("<", 0))
		})
	})

	Context("with slow sources", func() {
		It("should skip a holding whose fetch times out", func() {
			cfg.FetchTimeout = 20 * time.Millisecond
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			fetcher.block["SLOW"] = true

			runner := newRunner(cfg, fetcher, newSlopeForecaster())
			report, err := runner.Run(context.Background(), []portfolio.Holding{
				{Symbol: "AAA", RawWeight: 1},
				{Symbol: "SLOW", RawWeight: 1},
			})
			Expect(err).To(BeNil())
			Expect(report.Skipped).To(HaveLen(1))
			Expect(report.Skipped[0].Symbol).To(Equal("SLOW"))
			Expect(report.Skipped[0].Kind).To(Equal(projection.SkipDataUnavailable))
		})

		It("should turn a fit timeout into a convergence skip", func() {
			cfg.FitTimeout = 20 * time.Millisecond
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			forecaster := newSlopeForecaster()
			forecaster.wait = true

			runner := newRunner(cfg, fetcher, forecaster)
			report, err := runner.Run(context.Background(), []portfolio.Holding{{Symbol: "AAA", RawWeight: 1}})

			var aggErr *projection.AggregationError
			Expect(errors.As(err, &aggErr)).To(BeTrue())
			Expect(errors.Is(err, projection.ErrAggregation)).To(BeTrue())
			Expect(report).ToNot(BeNil())
			Expect(report.Skipped).To(HaveLen(1))
			Expect(report.Skipped[0].Kind).To(Equal(projection.SkipForecastConvergence))
			Expect(report.Skipped[0].Reason).To(ContainSubstring(context.DeadlineExceeded.Error()))
		})
	})

	Context("with invalid input", func() {
		It("should reject an invalid portfolio", func() {
			runner := newRunner(cfg, fetcher, newSlopeForecaster())
			_, err := runner.Run(context.Background(), []portfolio.Holding{{Symbol: "AAA", RawWeight: -1}})
			Expect(errors.Is(err, portfolio.ErrInvalidPortfolio)).To(BeTrue())
			Expect(fetcher.calls).To(BeEmpty())
		})

		It("should reject an invalid configuration", func() {
			cfg.Horizons = nil
			runner := newRunner(cfg, fetcher, newSlopeForecaster())
			_, err := runner.Run(context.Background(), []portfolio.Holding{{Symbol: "AAA", RawWeight: 1}})
			Expect(errors.Is(err, projection.ErrInvalidConfig)).To(BeTrue())
		})

		It("should fail when no holding can be forecast", func() {
			runner := newRunner(cfg, fetcher, newSlopeForecaster())
			report, err := runner.Run(context.Background(), []portfolio.Holding{{Symbol: "ZZZ", RawWeight: 1}})
			Expect(errors.Is(err, projection.ErrAggregation)).To(BeTrue())
			Expect(report.Snapshots).To(BeEmpty())
			Expect(report.Holdings[0].State).To(Equal(projection.StateSkipped))
		})

		It("should stop when the context is cancelled", func() {
			fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			runner := newRunner(cfg, fetcher, newSlopeForecaster())
			_, err := runner.Run(ctx, []portfolio.Holding{{Symbol: "AAA", RawWeight: 1}})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})
})

var _ = Describe("Runner with a data manager", func() {
	It("should convert a holding without a currency column using the source currency", func() {
		closes := append(constant(80, 59), 79.50)
		provider := seriesProvider{"BBB": makeSeries("BBB", "EUR", closes)}
		manager := data.NewManager(provider, data.NewStaticFX(map[string]float64{"EUR": 1.1}), time.Time{}, time.Now())

		holdings, err := portfolio.LoadCSV(strings.NewReader("Symbol,Weight\nBBB,1\n"))
		Expect(err).To(BeNil())

		runner := newRunner(projection.DefaultConfig(), manager, newSlopeForecaster())
		report, err := runner.Run(context.Background(), holdings)
		Expect(err).To(BeNil())
		Expect(report.Holdings).To(HaveLen(1))

		res := report.Holdings[0]
		Expect(res.State).To(Equal(projection.StateAggregated))
		Expect(res.Enriched.Currency).To(Equal("EUR"))
		Expect(res.Enriched.FXRate).To(Equal(1.1))
		Expect(res.Enriched.PriceUSD).To(BeNumerically("~", 87.45, 1e-9))
		Expect(res.Quantity).To(BeNumerically("~", 10_000/87.45, 1e-9))
	})
})

var _ = Describe("NewRunner", func() {
	expectTradingDays := func(calendar *tradecron.TradeCron) {
		fetcher := newFakeFetcher()
		fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)

		runner, err := projection.NewRunner(projection.DefaultConfig(), fetcher, newSlopeForecaster(), calendar)
		Expect(err).To(BeNil())

		report, err := runner.Run(context.Background(), []portfolio.Holding{{Symbol: "AAA", RawWeight: 1}})
		Expect(err).To(BeNil())
		Expect(report.Forecasts).To(HaveLen(3))
		for _, fc := range report.Forecasts {
			Expect(fc.Date.Weekday()).ToNot(Equal(time.Saturday))
			Expect(fc.Date.Weekday()).ToNot(Equal(time.Sunday))
		}
	}

	It("should default to the session close calendar", func() {
		expectTradingDays(nil)
	})

	It("should use a supplied weekday calendar", func() {
		calendar, err := tradecron.New("@close * * * 1-5", tradecron.RegularHours)
		Expect(err).To(BeNil())
		expectTradingDays(calendar)
	})
})

var _ = Describe("Runner.Enrich", func() {
	It("should enrich without forecasting", func() {
		fetcher := newFakeFetcher()
		fetcher.add(makeSeries("AAA", "USD", linear(100, 1, 60)), 1)
		forecaster := newSlopeForecaster()

		runner := newRunner(projection.DefaultConfig(), fetcher, forecaster)
		results, err := runner.Enrich(context.Background(), []portfolio.Holding{
			{Symbol: "AAA", RawWeight: 3},
			{Symbol: "ZZZ", RawWeight: 1},
		})
		Expect(err).To(BeNil())
		Expect(results).To(HaveLen(2))

		Expect(results[0].State).To(Equal(projection.StateEnriched))
		Expect(results[0].Enriched.LastClose).To(Equal(159.0))
		Expect(*results[0].Enriched.MovingAvg50).To(BeNumerically("~", 134.5, 1e-9))
		Expect(results[0].Quantity).To(BeNumerically("~", 7_500.0/159.0, 1e-9))

		Expect(results[1].State).To(Equal(projection.StateSkipped))
		Expect(results[1].Skip.Kind).To(Equal(projection.SkipDataUnavailable))
		Expect(forecaster.calls).To(BeEmpty())
	})
})

var _ = Describe("Fingerprint", func() {
	holdings := []portfolio.Holding{
		{Symbol: "AAA", Weight: 0.5, Currency: "USD"},
		{Symbol: "BBB", Weight: 0.5, Currency: "EUR"},
	}

	It("should be stable for the same input", func() {
		cfg := projection.DefaultConfig()
		a, err := projection.Fingerprint(holdings, cfg)
		Expect(err).To(BeNil())
		b, err := projection.Fingerprint(holdings, cfg)
		Expect(err).To(BeNil())
		Expect(a).To(Equal(b))
	})

	It("should ignore concurrency settings", func() {
		cfg := projection.DefaultConfig()
		a, _ := projection.Fingerprint(holdings, cfg)
		cfg.FetchConcurrency = 16
		cfg.FitTimeout = time.Hour
		b, _ := projection.Fingerprint(holdings, cfg)
		Expect(a).To(Equal(b))
	})

	It("should change with the horizons", func() {
		cfg := projection.DefaultConfig()
		a, _ := projection.Fingerprint(holdings, cfg)
		cfg.Horizons = []int{1}
		b, _ := projection.Fingerprint(holdings, cfg)
		Expect(a).ToNot(Equal(b))
	})
})

var _ = Describe("Config", func() {
	DescribeTable("HorizonDays",
		func(years float64, expected int) {
			Expect(projection.HorizonDays(years, 252)).To(Equal(expected))
		},
		Entry("5 years", 5.0, 1260),
		Entry("10 years", 10.0, 2520),
		Entry("15 years", 15.0, 3780),
		Entry("half a year", 0.5, 126),
	)

	It("should accept the defaults", func() {
		Expect(projection.DefaultConfig().Validate()).To(BeNil())
	})

	DescribeTable("invalid configurations",
		func(mutate func(*projection.Config)) {
			cfg := projection.DefaultConfig()
			mutate(&cfg)
			Expect(errors.Is(cfg.Validate(), projection.ErrInvalidConfig)).To(BeTrue())
		},
		Entry("no horizons", func(c *projection.Config) { c.Horizons = nil }),
		Entry("zero horizon", func(c *projection.Config) { c.Horizons = []int{0, 5} }),
		Entry("zero total", func(c *projection.Config) { c.TotalValue = 0 }),
		Entry("zero concurrency", func(c *projection.Config) { c.FetchConcurrency = 0 }),
		Entry("bad order", func(c *projection.Config) { c.Order.Period = 0 }),
	)

	It("should sort and dedupe horizons", func() {
		cfg := projection.DefaultConfig()
		cfg.Horizons = []int{10, 5, 10}
		Expect(cfg.SortedHorizons()).To(Equal([]int{5, 10}))
		Expect(cfg.MaxHorizonDays()).To(Equal(2520))
	})
})
