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

// Package forecast fits seasonal ARIMA models to daily close prices and projects them forward.
package forecast

import (
	"context"
	"errors"
	"math"

	"github.com/penny-vault/pv-forecast/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	DefaultMaxEvaluations = 4000

	// differenced values smaller than this (relative to the price scale) are treated as zero
	zeroTolerance = 1e-10
)

// SARIMA fits a seasonal ARIMA model by conditional sum of squares
type SARIMA struct {
	order          Order
	maxEvaluations int
}

type Option func(*SARIMA)

// WithMaxEvaluations limits the number of objective evaluations of the optimizer
func WithMaxEvaluations(n int) Option {
	return func(s *SARIMA) {
		if n > 0 {
			s.maxEvaluations = n
		}
	}
}

// NewSARIMA creates a forecaster with the given order
func NewSARIMA(order Order, opts ...Option) *SARIMA {
	s := &SARIMA{
		order:          order,
		maxEvaluations: DefaultMaxEvaluations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Order returns the model order used by the forecaster
func (s *SARIMA) Order() Order {
	return s.order
}

// Forecast fits the model to closes and projects horizonDays trading days past the last close.
// The same input always produces the same trajectory.
func (s *SARIMA) Forecast(ctx context.Context, symbol string, closes []float64, horizonDays int) (*Trajectory, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "sarima.Forecast")
	defer span.End()

	span.SetAttributes(
		attribute.String("Symbol", symbol),
		attribute.Int("NumObservations", len(closes)),
		attribute.Int("HorizonDays", horizonDays),
		attribute.String("Order", s.order.String()),
	)

	if horizonDays < 1 {
		span.SetStatus(codes.Error, ErrInvalidHorizon.Error())
		return nil, ErrInvalidHorizon
	}

	model, err := s.Fit(ctx, symbol, closes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fit failed")
		return nil, err
	}

	vals := model.Project(horizonDays)
	for _, val := range vals {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			err := &ConvergenceError{Symbol: symbol, Reason: "forecast is not finite"}
			span.SetStatus(codes.Error, err.Reason)
			return nil, err
		}
	}

	return NewTrajectory(symbol, vals), nil
}

// Model is a fitted SARIMA model
type Model struct {
	Order      Order
	AR         []float64
	MA         []float64
	SeasonalAR []float64
	SeasonalMA []float64
	SSE        float64
	Sigma2     float64

	// lag polynomials of the differenced series:
	// w_t = sum(arLag[i] * w_{t-i}) + e_t + sum(maLag[j] * e_{t-j})
	arLag []float64
	maLag []float64

	levels [][]float64
	lags   []int
	resid  []float64
}

// Fit estimates the ARMA coefficients of the differenced series
func (s *SARIMA) Fit(ctx context.Context, symbol string, closes []float64) (*Model, error) {
	subLog := log.With().Str("Symbol", symbol).Str("Order", s.order.String()).Logger()

	if err := s.order.Validate(); err != nil {
		return nil, &ConvergenceError{Symbol: symbol, Reason: "invalid model order", Err: err}
	}

	for _, val := range closes {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, &ConvergenceError{Symbol: symbol, Reason: "series contains non-finite values"}
		}
	}

	if len(closes) < s.order.MinObservations() {
		return nil, &ConvergenceError{Symbol: symbol, Reason: "series is shorter than two seasonal periods"}
	}

	if floats.Max(closes)-floats.Min(closes) == 0 {
		return nil, &ConvergenceError{Symbol: symbol, Reason: "series is constant"}
	}

	if err := ctx.Err(); err != nil {
		return nil, &ConvergenceError{Symbol: symbol, Reason: "fit cancelled", Err: err}
	}

	model := &Model{
		Order:      s.order,
		AR:         make([]float64, s.order.P),
		MA:         make([]float64, s.order.Q),
		SeasonalAR: make([]float64, s.order.SP),
		SeasonalMA: make([]float64, s.order.SQ),
	}
	model.difference(closes)

	w := model.levels[len(model.levels)-1]
	if len(w) == 0 {
		return nil, &ConvergenceError{Symbol: symbol, Reason: "no observations left after differencing"}
	}

	scale := math.Max(1, floats.Norm(closes, math.Inf(1)))
	if floats.Norm(w, math.Inf(1)) <= zeroTolerance*scale {
		// differencing removed all variation; the forecast is an exact extrapolation
		model.setParams(make([]float64, s.order.NumParams()))
		model.resid = make([]float64, len(w))
		subLog.Debug().Msg("differenced series is zero; skipping optimization")
		return model, nil
	}

	start := len(model.arLag) - 1
	if len(w)-start <= s.order.NumParams() {
		start = 0
	}

	if s.order.NumParams() > 0 {
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				model.setParams(x)
				_, sse := model.residuals(w, start)
				if math.IsNaN(sse) || math.IsInf(sse, 0) {
					return math.Inf(1)
				}
				return sse
			},
		}

		settings := &optimize.Settings{
			FuncEvaluations: s.maxEvaluations,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-12,
				Relative:   1e-10,
				Iterations: 200,
			},
			Recorder: &contextRecorder{ctx: ctx},
		}

		result, err := optimize.Minimize(problem, make([]float64, s.order.NumParams()), settings, &optimize.NelderMead{})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, &ConvergenceError{Symbol: symbol, Reason: "fit cancelled", Err: ctxErr}
			}
			subLog.Warn().Err(err).Msg("optimizer failed")
			return nil, &ConvergenceError{Symbol: symbol, Reason: "optimizer failed", Err: err}
		}

		if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
			return nil, &ConvergenceError{Symbol: symbol, Reason: "optimum is not finite"}
		}

		subLog.Debug().Str("Status", result.Status.String()).Int("FuncEvaluations", result.FuncEvaluations).Float64("SSE", result.F).Msg("optimizer finished")
		model.setParams(result.X)
	} else {
		model.setParams([]float64{})
	}

	model.resid, model.SSE = model.residuals(w, start)
	if math.IsNaN(model.SSE) || math.IsInf(model.SSE, 0) {
		return nil, &ConvergenceError{Symbol: symbol, Reason: "residuals are not finite"}
	}
	if n := len(w) - start; n > 0 {
		model.Sigma2 = model.SSE / float64(n)
	}

	subLog.Debug().Floats64("AR", model.AR).Floats64("MA", model.MA).Floats64("SeasonalAR", model.SeasonalAR).
		Floats64("SeasonalMA", model.SeasonalMA).Float64("Sigma2", model.Sigma2).Msg("fit sarima model")

	return model, nil
}

// difference applies d lag-1 differences followed by D seasonal differences and keeps every
// intermediate level for integration
func (m *Model) difference(closes []float64) {
	level := make([]float64, len(closes))
	copy(level, closes)

	m.levels = [][]float64{level}
	m.lags = make([]int, 0, m.Order.D+m.Order.SD)
	for i := 0; i < m.Order.D; i++ {
		m.lags = append(m.lags, 1)
	}
	for i := 0; i < m.Order.SD; i++ {
		m.lags = append(m.lags, m.Order.Period)
	}

	for _, lag := range m.lags {
		prev := m.levels[len(m.levels)-1]
		next := make([]float64, 0, len(prev))
		for t := lag; t < len(prev); t++ {
			next = append(next, prev[t]-prev[t-lag])
		}
		m.levels = append(m.levels, next)
	}
}

// setParams maps unconstrained optimizer values through tanh onto the coefficients and
// rebuilds the lag polynomials
func (m *Model) setParams(x []float64) {
	idx := 0
	for _, coefs := range [][]float64{m.AR, m.MA, m.SeasonalAR, m.SeasonalMA} {
		for i := range coefs {
			coefs[i] = math.Tanh(x[idx])
			idx++
		}
	}

	period := m.Order.Period

	// (1 - φ(B)) (1 - Φ(B^s))
	ar := polyMul(lagPoly(m.AR, 1, -1), lagPoly(m.SeasonalAR, period, -1))
	m.arLag = make([]float64, len(ar))
	for i := 1; i < len(ar); i++ {
		m.arLag[i] = -ar[i]
	}

	// (1 + θ(B)) (1 + Θ(B^s))
	m.maLag = polyMul(lagPoly(m.MA, 1, 1), lagPoly(m.SeasonalMA, period, 1))
	m.maLag[0] = 0
}

// residuals computes the one-step residuals of w with pre-sample values set to zero and the
// sum of squares from start onwards
func (m *Model) residuals(w []float64, start int) ([]float64, float64) {
	resid := make([]float64, len(w))
	sse := 0.0
	for t := range w {
		pred := 0.0
		for i := 1; i < len(m.arLag) && i <= t; i++ {
			pred += m.arLag[i] * w[t-i]
		}
		for j := 1; j < len(m.maLag) && j <= t; j++ {
			pred += m.maLag[j] * resid[t-j]
		}
		resid[t] = w[t] - pred
		if t >= start {
			sse += resid[t] * resid[t]
		}
	}
	return resid, sse
}

// Project forecasts h steps with future shocks set to zero and undoes the differencing
func (m *Model) Project(h int) []float64 {
	w := m.levels[len(m.levels)-1]
	n := len(w)

	wExt := make([]float64, n+h)
	copy(wExt, w)
	eExt := make([]float64, n+h)
	copy(eExt, m.resid)

	for t := n; t < n+h; t++ {
		val := 0.0
		for i := 1; i < len(m.arLag) && i <= t; i++ {
			val += m.arLag[i] * wExt[t-i]
		}
		for j := 1; j < len(m.maLag) && j <= t; j++ {
			val += m.maLag[j] * eExt[t-j]
		}
		wExt[t] = val
	}

	future := wExt[n:]
	for lvl := len(m.lags) - 1; lvl >= 0; lvl-- {
		prev := m.levels[lvl]
		lag := m.lags[lvl]
		ext := make([]float64, len(prev)+h)
		copy(ext, prev)
		for k := 0; k < h; k++ {
			t := len(prev) + k
			ext[t] = future[k] + ext[t-lag]
		}
		future = ext[len(prev):]
	}

	res := make([]float64, h)
	copy(res, future)
	return res
}

// lagPoly builds 1 + sign*(c_1 B^step + c_2 B^2step + ...)
func lagPoly(coefs []float64, step int, sign float64) []float64 {
	poly := make([]float64, len(coefs)*step+1)
	poly[0] = 1
	for i, c := range coefs {
		poly[(i+1)*step] = sign * c
	}
	return poly
}

func polyMul(a, b []float64) []float64 {
	res := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			res[i+j] += x * y
		}
	}
	return res
}

// contextRecorder stops the optimizer when the fit context is done
type contextRecorder struct {
	ctx context.Context
}

func (r *contextRecorder) Init() error {
	return r.ctx.Err()
}

func (r *contextRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}
