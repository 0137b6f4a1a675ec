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

package data

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const userAgent = "Mozilla/5.0 (compatible; pvforecast)"

// getJSON issues a GET request and decodes the JSON body into out. displayURL is recorded
// on the span in place of url so that api tokens are not leaked.
func getJSON(ctx context.Context, span trace.Span, subLog zerolog.Logger, url, displayURL string, out interface{}) (int, error) {
	span.SetAttributes(attribute.String("Url", displayURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not build request")
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		span.RecordError(err)
		msg := "http request failed"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Str("Url", displayURL).Msg(msg)
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		msg := "could not read response body"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Str("Url", displayURL).Msg(msg)
		return resp.StatusCode, err
	}

	span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))
	if resp.StatusCode >= 400 {
		msg := "http request returned invalid status code"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Bytes("Body", body).Str("Url", displayURL).Msg(msg)
		return resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		span.RecordError(err)
		msg := "could not unmarshal json"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Bytes("Body", body).Msg(msg)
		return resp.StatusCode, err
	}

	return resp.StatusCode, nil
}
