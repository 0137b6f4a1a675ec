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
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
)

const DefaultCacheSize = 256

// RunCache holds price series and exchange rates retrieved during a single run. Entries are
// stored json encoded and lz4 compressed.
type RunCache struct {
	cache *lru.Cache
}

type cachedSeries struct {
	Symbol   string      `json:"symbol"`
	Currency string      `json:"currency"`
	Dates    []time.Time `json:"dates"`
	Closes   []float64   `json:"closes"`
}

// NewRunCache creates a cache that holds at most size entries
func NewRunCache(size int) (*RunCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return nil, err
	}

	return &RunCache{
		cache: cache,
	}, nil
}

// Series returns a copy of the cached series for key
func (rc *RunCache) Series(key string) (*PriceSeries, bool) {
	raw, ok := rc.get(key)
	if !ok {
		return nil, false
	}

	entry := cachedSeries{}
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("could not decode cached series")
		return nil, false
	}

	series, err := NewPriceSeries(entry.Symbol, entry.Currency, entry.Dates, entry.Closes)
	if err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("cached series is invalid")
		return nil, false
	}

	return series, true
}

// SetSeries stores series under key
func (rc *RunCache) SetSeries(key string, series *PriceSeries) error {
	raw, err := json.Marshal(&cachedSeries{
		Symbol:   series.Symbol,
		Currency: series.Currency,
		Dates:    series.Dates(),
		Closes:   series.Closes(),
	})
	if err != nil {
		return err
	}
	return rc.set(key, raw)
}

// Rate returns the cached exchange rate for key
func (rc *RunCache) Rate(key string) (float64, bool) {
	raw, ok := rc.get(key)
	if !ok {
		return 0, false
	}

	var rate float64
	if err := json.Unmarshal(raw, &rate); err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("could not decode cached rate")
		return 0, false
	}
	return rate, true
}

// SetRate stores an exchange rate under key
func (rc *RunCache) SetRate(key string, rate float64) error {
	raw, err := json.Marshal(rate)
	if err != nil {
		return err
	}
	return rc.set(key, raw)
}

// Len returns the number of entries in the cache
func (rc *RunCache) Len() int {
	return rc.cache.Len()
}

// Purge removes all entries
func (rc *RunCache) Purge() {
	rc.cache.Purge()
}

func (rc *RunCache) get(key string) ([]byte, bool) {
	val, ok := rc.cache.Get(key)
	if !ok {
		return nil, false
	}

	compressed, ok := val.([]byte)
	if !ok {
		return nil, false
	}

	raw, err := decompress(compressed)
	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: %s", ErrCacheEntryInvalid, err.Error())).Str("Key", key).Msg("cache read failed")
		return nil, false
	}
	return raw, true
}

func (rc *RunCache) set(key string, raw []byte) error {
	compressed, err := compress(raw)
	if err != nil {
		return err
	}
	rc.cache.Add(key, compressed)
	return nil
}

func compress(in []byte) ([]byte, error) {
	r := bytes.NewReader(in)
	w := &bytes.Buffer{}
	zw := lz4.NewWriter(w)
	_, err := io.Copy(zw, r)
	if err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decompress(in []byte) ([]byte, error) {
	r := bytes.NewReader(in)
	w := &bytes.Buffer{}
	zr := lz4.NewReader(r)
	_, err := io.Copy(w, zr)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
