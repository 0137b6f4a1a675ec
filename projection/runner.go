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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-forecast/data"
	"github.com/penny-vault/pv-forecast/dataframe"
	"github.com/penny-vault/pv-forecast/forecast"
	"github.com/penny-vault/pv-forecast/metrics"
	"github.com/penny-vault/pv-forecast/observability/opentelemetry"
	"github.com/penny-vault/pv-forecast/portfolio"
	"github.com/penny-vault/pv-forecast/tradecron"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves the price history and exchange rate of a holding
type Fetcher interface {
	Fetch(ctx context.Context, cache *data.RunCache, holding portfolio.Holding) (*data.FetchResult, error)
}

// Runner executes a projection: normalize, fetch and enrich, forecast, aggregate
type Runner struct {
	cfg        Config
	fetcher    Fetcher
	forecaster forecast.Forecaster
	calendar   *tradecron.TradeCron
}

// DefaultSchedule dates forecasts at each trading day's close
const DefaultSchedule = "@close"

type symbolFit struct {
	series     *data.PriceSeries
	trajectory *forecast.Trajectory
	dates      []time.Time
	err        error
}

// NewRunner creates a runner. Forecast dates are drawn from calendar; when calendar is nil
// the regular NYSE session close without holidays is used.
func NewRunner(cfg Config, fetcher Fetcher, forecaster forecast.Forecaster, calendar *tradecron.TradeCron) (*Runner, error) {
	if calendar == nil {
		var err error
		if calendar, err = tradecron.New(DefaultSchedule, tradecron.RegularHours); err != nil {
			return nil, fmt.Errorf("default trading calendar: %w", err)
		}
	}

	return &Runner{
		cfg:        cfg,
		fetcher:    fetcher,
		forecaster: forecaster,
		calendar:   calendar,
	}, nil
}

// Run projects the value of holdings to each configured horizon. Holdings that cannot be
// fetched, converted or forecast are skipped and recorded on the report; the run fails only
// when the portfolio is invalid, the context is done, or nothing could be forecast. On an
// *AggregationError the returned report still carries the holdings and skips.
func (r *Runner) Run(ctx context.Context, holdings []portfolio.Holding) (*Report, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "runner.Run")
	defer span.End()

	if err := r.cfg.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid configuration")
		return nil, err
	}

	normalized, err := portfolio.Normalize(holdings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid portfolio")
		return nil, err
	}

	fingerprint, err := Fingerprint(normalized, r.cfg)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:        uuid.New(),
		Fingerprint:  fingerprint,
		GeneratedAt:  time.Now(),
		Config:       r.cfg,
		Holdings:     make([]*HoldingResult, len(normalized)),
		Forecasts:    []Forecast{},
		Skipped:      []Skip{},
		Trajectories: dataframe.Map{},
	}
	for idx, h := range normalized {
		report.Holdings[idx] = newHoldingResult(h)
	}

	span.SetAttributes(
		attribute.String("run.id", report.RunID.String()),
		attribute.Int("holdings", len(normalized)),
	)

	subLog := log.With().Str("RunID", report.RunID.String()).Logger()
	subLog.Info().Int("NumHoldings", len(normalized)).Ints("Horizons", r.cfg.SortedHorizons()).Str("Order", r.cfg.Order.String()).Msg("starting projection")

	cache, err := data.NewRunCache(r.cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	if err := r.enrichAll(ctx, cache, report.Holdings); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fits, err := r.forecastAll(ctx, report.Holdings)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.applyForecasts(report.Holdings, fits); err != nil {
		return nil, err
	}

	for _, res := range report.Holdings {
		if res.Skip != nil {
			report.Skipped = append(report.Skipped, *res.Skip)
			subLog.Warn().Str("Symbol", res.Skip.Symbol).Str("Kind", string(res.Skip.Kind)).Str("Stage", string(res.Skip.Stage)).Str("Reason", res.Skip.Reason).Msg("holding skipped")
		}
	}

	snapshots, err := Aggregate(report.Holdings, r.cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		subLog.Error().Err(err).Msg("no holdings survived to aggregation")
		return report, err
	}
	report.Snapshots = snapshots

	seen := make(map[string]bool)
	for _, res := range report.Holdings {
		if res.State != StateForecasted {
			continue
		}
		if err := res.advance(StateAggregated); err != nil {
			return nil, err
		}
		if seen[res.Holding.Symbol] {
			continue
		}
		seen[res.Holding.Symbol] = true
		report.Forecasts = append(report.Forecasts, res.Forecasts...)

		fit := fits[res.Holding.Symbol]
		df, err := dataframe.New(fit.dates, res.Holding.Symbol, fit.trajectory.Values())
		if err != nil {
			subLog.Warn().Err(err).Str("Symbol", res.Holding.Symbol).Msg("could not build trajectory dataframe")
			continue
		}
		report.Trajectories[res.Holding.Symbol] = df
	}

	subLog.Info().Int("NumSkipped", len(report.Skipped)).Float64("TodayValue", snapshots[0].TotalValue).Msg("projection complete")
	return report, nil
}

// Enrich normalizes and enriches holdings without forecasting them. Holdings that cannot be
// fetched or converted are returned in the skipped state.
func (r *Runner) Enrich(ctx context.Context, holdings []portfolio.Holding) ([]*HoldingResult, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "runner.Enrich")
	defer span.End()

	if err := r.cfg.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid configuration")
		return nil, err
	}

	normalized, err := portfolio.Normalize(holdings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid portfolio")
		return nil, err
	}

	results := make([]*HoldingResult, len(normalized))
	for idx, h := range normalized {
		results[idx] = newHoldingResult(h)
	}

	cache, err := data.NewRunCache(r.cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	if err := r.enrichAll(ctx, cache, results); err != nil {
		return nil, err
	}

	return results, ctx.Err()
}

// enrichAll fetches and enriches every holding, at most FetchConcurrency at a time
func (r *Runner) enrichAll(ctx context.Context, cache *data.RunCache, results []*HoldingResult) error {
	g := errgroup.Group{}
	g.SetLimit(r.cfg.FetchConcurrency)

	for _, res := range results {
		res := res
		g.Go(func() error {
			return r.enrich(ctx, cache, res)
		})
	}

	return g.Wait()
}

func (r *Runner) enrich(ctx context.Context, cache *data.RunCache, res *HoldingResult) error {
	subLog := log.With().Str("Symbol", res.Holding.Symbol).Logger()

	fetchCtx := ctx
	if r.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.cfg.FetchTimeout)
		defer cancel()
	}

	fetched, err := r.fetcher.Fetch(fetchCtx, cache, res.Holding)
	if err != nil {
		subLog.Debug().Err(err).Msg("fetch failed")
		return res.skip(err)
	}

	h := res.Holding
	if fetched.ExpenseRatio != nil {
		h.ExpenseRatio = fetched.ExpenseRatio
	}

	enriched, err := metrics.Enrich(h, fetched.Series, metrics.FXQuote{
		Currency: fetched.Currency,
		Rate:     fetched.FXRate,
		Err:      fetched.FXErr,
	})
	if err != nil {
		subLog.Debug().Err(err).Msg("enrichment failed")
		return res.skip(err)
	}

	if enriched.PriceUSD <= 0 {
		return res.skip(&data.DataUnavailableError{
			Symbol: res.Holding.Symbol,
			Err:    fmt.Errorf("%w: non-positive price %f", data.ErrDataUnavailable, enriched.PriceUSD),
		})
	}

	res.Enriched = enriched
	res.series = fetched.Series
	if enriched.Shares != nil {
		res.Quantity = *enriched.Shares
	} else {
		res.Quantity = enriched.Weight * r.cfg.TotalValue / enriched.PriceUSD
	}

	return res.advance(StateEnriched)
}

// forecastAll fits one model per distinct enriched symbol, at most FitConcurrency at a time
func (r *Runner) forecastAll(ctx context.Context, results []*HoldingResult) (map[string]*symbolFit, error) {
	fits := make(map[string]*symbolFit)
	for _, res := range results {
		if res.State != StateEnriched {
			continue
		}
		if _, ok := fits[res.Holding.Symbol]; !ok {
			fits[res.Holding.Symbol] = &symbolFit{series: res.series}
		}
	}

	maxDays := r.cfg.MaxHorizonDays()

	g := errgroup.Group{}
	g.SetLimit(r.cfg.FitConcurrency)

	for symbol, fit := range fits {
		symbol, fit := symbol, fit
		g.Go(func() error {
			r.fit(ctx, symbol, fit, maxDays)
			return nil
		})
	}

	return fits, g.Wait()
}

func (r *Runner) fit(ctx context.Context, symbol string, fit *symbolFit, maxDays int) {
	fitCtx := ctx
	if r.cfg.FitTimeout > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, r.cfg.FitTimeout)
		defer cancel()
	}

	start := time.Now()
	trajectory, err := r.forecaster.Forecast(fitCtx, symbol, fit.series.Closes(), maxDays)
	if err != nil {
		if !errors.Is(err, forecast.ErrForecastConvergence) {
			err = &forecast.ConvergenceError{Symbol: symbol, Reason: "forecast failed", Err: err}
		}
		fit.err = err
		return
	}

	if trajectory.Len() < maxDays {
		fit.err = &forecast.ConvergenceError{
			Symbol: symbol,
			Reason: fmt.Sprintf("trajectory covers %d of %d days", trajectory.Len(), maxDays),
		}
		return
	}

	fit.trajectory = trajectory
	fit.dates = r.calendar.NextN(fit.series.LastDate(), maxDays)

	log.Debug().Str("Symbol", symbol).Dur("Elapsed", time.Since(start)).Msg("fit model")
}

// applyForecasts reads each horizon from the symbol's trajectory and moves the holding to
// forecasted, or skips it when the fit failed
func (r *Runner) applyForecasts(results []*HoldingResult, fits map[string]*symbolFit) error {
	horizons := r.cfg.SortedHorizons()

	for _, res := range results {
		if res.State != StateEnriched {
			continue
		}

		fit := fits[res.Holding.Symbol]
		if fit.err != nil {
			if err := res.skip(fit.err); err != nil {
				return err
			}
			continue
		}

		res.Forecasts = make([]Forecast, 0, len(horizons))
		for _, years := range horizons {
			days := HorizonDays(float64(years), r.cfg.TradingDaysPerYear)
			price, err := fit.trajectory.At(days)
			if err != nil {
				return err
			}

			fc := Forecast{
				Symbol:            res.Holding.Symbol,
				HorizonYears:      years,
				HorizonDays:       days,
				Date:              fit.dates[days-1],
				PredictedPrice:    price,
				PredictedPriceUSD: price * res.Enriched.FXRate,
				Degenerate:        price <= 0,
			}
			if fc.Degenerate {
				log.Warn().Str("Symbol", fc.Symbol).Int("HorizonYears", years).Float64("PredictedPrice", price).Msg("forecast price is not positive")
			}
			res.Forecasts = append(res.Forecasts, fc)
		}

		if err := res.advance(StateForecasted); err != nil {
			return err
		}
	}

	return nil
}
