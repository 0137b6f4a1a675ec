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

package forecast_test

import (
	"context"
	"errors"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-forecast/forecast"
)

func linearSeries(start, slope float64, n int) []float64 {
	vals := make([]float64, n)
	for idx := range vals {
		vals[idx] = start + slope*float64(idx)
	}
	return vals
}

func noisySeries(seed int64, n int) []float64 {
	rnd := rand.New(rand.NewSource(seed))
	vals := make([]float64, n)
	price := 100.0
	for idx := range vals {
		price += 0.05 + rnd.NormFloat64() + 0.5*math.Sin(2*math.Pi*float64(idx)/12)
		vals[idx] = price
	}
	return vals
}

var _ = Describe("SARIMA", func() {
	var sarima *forecast.SARIMA

	BeforeEach(func() {
		sarima = forecast.NewSARIMA(forecast.DefaultOrder)
	})

	Context("with a linear series", func() {
		It("should forecast the exact linear continuation", func() {
			closes := linearSeries(100, 1, 60)
			traj, err := sarima.Forecast(context.Background(), "AAA", closes, 1260)
			Expect(err).To(BeNil())
			Expect(traj.Len()).To(Equal(1260))

			for _, day := range []int{1, 252, 1260} {
				val, err := traj.At(day)
				Expect(err).To(BeNil())
				Expect(val).To(BeNumerically("~", 159+float64(day), 1e-6))
			}
		})

		It("should return negative forecasts unchanged", func() {
			closes := linearSeries(200, -3, 60)
			traj, err := sarima.Forecast(context.Background(), "DOWN", closes, 20)
			Expect(err).To(BeNil())
			val, err := traj.At(20)
			Expect(err).To(BeNil())
			Expect(val).To(BeNumerically("~", 23-60, 1e-6))
		})
	})

	Context("with a trend and a 12 observation cycle", func() {
		It("should extrapolate both exactly", func() {
			n := 48
			closes := make([]float64, n)
			for idx := range closes {
				closes[idx] = 50 + 0.5*float64(idx) + 3*math.Sin(2*math.Pi*float64(idx)/12)
			}

			traj, err := sarima.Forecast(context.Background(), "SEAS", closes, 24)
			Expect(err).To(BeNil())
			for day := 1; day <= 24; day++ {
				t := float64(n - 1 + day)
				expected := 50 + 0.5*t + 3*math.Sin(2*math.Pi*t/12)
				val, err := traj.At(day)
				Expect(err).To(BeNil())
				Expect(val).To(BeNumerically("~", expected, 1e-6))
			}
		})
	})

	Context("with a noisy series", func() {
		var closes []float64

		BeforeEach(func() {
			closes = noisySeries(42, 300)
		})

		It("should produce a finite trajectory of the requested length", func() {
			traj, err := sarima.Forecast(context.Background(), "NOISY", closes, 252)
			Expect(err).To(BeNil())
			Expect(traj.Len()).To(Equal(252))
			for _, val := range traj.Values() {
				Expect(math.IsNaN(val) || math.IsInf(val, 0)).To(BeFalse())
			}
		})

		It("should be deterministic", func() {
			first, err := sarima.Forecast(context.Background(), "NOISY", closes, 100)
			Expect(err).To(BeNil())
			second, err := sarima.Forecast(context.Background(), "NOISY", closes, 100)
			Expect(err).To(BeNil())
			Expect(first.Values()).To(Equal(second.Values()))
		})

		It("should read the same value at day h regardless of the horizon fit", func() {
			long, err := sarima.Forecast(context.Background(), "NOISY", closes, 252)
			Expect(err).To(BeNil())
			short, err := sarima.Forecast(context.Background(), "NOISY", closes, 63)
			Expect(err).To(BeNil())
			Expect(long.Values()[:63]).To(Equal(short.Values()))
		})

		It("should keep coefficients inside the unit interval", func() {
			model, err := sarima.Fit(context.Background(), "NOISY", closes)
			Expect(err).To(BeNil())
			for _, coefs := range [][]float64{model.AR, model.MA, model.SeasonalAR, model.SeasonalMA} {
				Expect(coefs).To(HaveLen(1))
				Expect(math.Abs(coefs[0])).To(BeNumerically("<=", 1))
			}
			Expect(model.Sigma2).To(BeNumerically(">", 0))
		})

		It("should not modify the input", func() {
			orig := make([]float64, len(closes))
			copy(orig, closes)
			_, err := sarima.Forecast(context.Background(), "NOISY", closes, 10)
			Expect(err).To(BeNil())
			Expect(closes).To(Equal(orig))
		})
	})

	DescribeTable("degenerate series",
		func(closes []float64) {
			_, err := sarima.Forecast(context.Background(), "BAD", closes, 10)
			Expect(errors.Is(err, forecast.ErrForecastConvergence)).To(BeTrue())

			var convErr *forecast.ConvergenceError
			Expect(errors.As(err, &convErr)).To(BeTrue())
			Expect(convErr.Symbol).To(Equal("BAD"))
		},
		Entry("constant", linearSeries(50, 0, 60)),
		Entry("shorter than two periods", linearSeries(1, 1, 23)),
		Entry("empty", []float64{}),
		Entry("NaN", append(linearSeries(1, 1, 30), math.NaN())),
		Entry("infinite", append(linearSeries(1, 1, 30), math.Inf(1))),
	)

	It("should accept exactly two periods of history", func() {
		traj, err := sarima.Forecast(context.Background(), "MIN", noisySeries(7, 24), 5)
		Expect(err).To(BeNil())
		Expect(traj.Len()).To(Equal(5))
	})

	It("should fail when the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := sarima.Forecast(ctx, "SLOW", noisySeries(1, 300), 10)
		Expect(errors.Is(err, forecast.ErrForecastConvergence)).To(BeTrue())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("should reject a horizon of zero days", func() {
		_, err := sarima.Forecast(context.Background(), "AAA", linearSeries(1, 1, 60), 0)
		Expect(errors.Is(err, forecast.ErrInvalidHorizon)).To(BeTrue())
	})

	It("should fit a non-seasonal order", func() {
		arima := forecast.NewSARIMA(forecast.Order{P: 1, D: 1, Q: 0, Period: 12}, forecast.WithMaxEvaluations(500))
		traj, err := arima.Forecast(context.Background(), "NOISY", noisySeries(3, 120), 30)
		Expect(err).To(BeNil())
		Expect(traj.Len()).To(Equal(30))
	})
})

var _ = Describe("Order", func() {
	It("should describe itself", func() {
		Expect(forecast.DefaultOrder.String()).To(Equal("(1,1,1)(1,1,1,12)"))
		Expect(forecast.DefaultOrder.NumParams()).To(Equal(4))
		Expect(forecast.DefaultOrder.MinObservations()).To(Equal(24))
	})

	DescribeTable("validation",
		func(order forecast.Order, valid bool) {
			err := order.Validate()
			if valid {
				Expect(err).To(BeNil())
			} else {
				Expect(errors.Is(err, forecast.ErrInvalidOrder)).To(BeTrue())
			}
		},
		Entry("default", forecast.DefaultOrder, true),
		Entry("negative order", forecast.Order{P: -1, Period: 12}, false),
		Entry("period of one", forecast.Order{P: 1, Period: 1}, false),
	)
})

var _ = Describe("Trajectory", func() {
	It("should index days from one", func() {
		traj := forecast.NewTrajectory("AAA", []float64{1, 2, 3})
		val, err := traj.At(1)
		Expect(err).To(BeNil())
		Expect(val).To(Equal(1.0))

		_, err = traj.At(0)
		Expect(errors.Is(err, forecast.ErrDayOutOfRange)).To(BeTrue())
		_, err = traj.At(4)
		Expect(errors.Is(err, forecast.ErrDayOutOfRange)).To(BeTrue())
	})

	It("should not expose its backing array", func() {
		vals := []float64{1, 2, 3}
		traj := forecast.NewTrajectory("AAA", vals)
		vals[0] = 10
		out := traj.Values()
		out[1] = 20
		Expect(traj.Values()).To(Equal([]float64{1, 2, 3}))
	})
})
