// Copyright 2024
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

// Package collector drives a scrape run: it fetches one record per ticker
// from a provider in small serial batches, retries transient failures a
// bounded number of times, and writes the resulting scrape file. A ticker
// whose retries are exhausted degrades to an all-unknown record; it never
// aborts the run.
package collector

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/provider"
)

// Config holds the scrape pacing knobs. Zero values fall back to the
// defaults below so callers only set what they care about.
type Config struct {
	// BatchSize is the number of tickers fetched between courtesy pauses.
	BatchSize int

	// BatchDelay is the pause between batches.
	BatchDelay time.Duration

	// Retries is the number of fetch attempts per ticker.
	Retries int

	// RetryDelay is the fixed pause between attempts for one ticker.
	RetryDelay time.Duration
}

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 10 * time.Second
)

func (cfg Config) withDefaults() Config {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return cfg
}

// Collector fetches ticker records from a single provider.
type Collector struct {
	fetcher provider.Fetcher
	cfg     Config
}

func New(fetcher provider.Fetcher, cfg Config) *Collector {
	return &Collector{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
	}
}

// Collect fetches a record for every ticker in order. Failed tickers are
// returned as unknown records and listed in the run summary; the slice
// always has one entry per input ticker.
func (collector *Collector) Collect(ctx context.Context, region data.Region, tickers []string) ([]*data.TickerRecord, *data.RunSummary) {
	summary := &data.RunSummary{
		RunID:      uuid.New(),
		Region:     region,
		StartTime:  time.Now(),
		NumTickers: len(tickers),
	}

	records := make([]*data.TickerRecord, 0, len(tickers))

	for i := 0; i < len(tickers); i += collector.cfg.BatchSize {
		end := i + collector.cfg.BatchSize
		if end > len(tickers) {
			end = len(tickers)
		}

		for _, ticker := range tickers[i:end] {
			record, err := collector.fetchWithRetry(ctx, ticker)
			if err != nil {
				log.Warn().Err(err).Str("Ticker", ticker).Int("Retries", collector.cfg.Retries).
					Msg("ticker failed after all attempts, recording as unknown")
				records = append(records, data.UnknownRecord(ticker))
				summary.FailedTickers = append(summary.FailedTickers, ticker)
				continue
			}

			log.Debug().Str("Ticker", ticker).Str("Provider", collector.fetcher.Name()).Msg("fetched ticker")
			records = append(records, record)
		}

		// courtesy pause between batches so we do not hammer the provider
		if end < len(tickers) {
			time.Sleep(collector.cfg.BatchDelay)
		}
	}

	summary.EndTime = time.Now()
	summary.NumFailed = len(summary.FailedTickers)

	return records, summary
}

func (collector *Collector) fetchWithRetry(ctx context.Context, ticker string) (*data.TickerRecord, error) {
	var lastErr error

	for attempt := 1; attempt <= collector.cfg.Retries; attempt++ {
		record, err := collector.fetcher.FetchTicker(ctx, ticker)
		if err == nil {
			return record, nil
		}

		lastErr = err
		log.Debug().Err(err).Str("Ticker", ticker).Int("Attempt", attempt).Msg("fetch attempt failed")

		if attempt < collector.cfg.Retries {
			time.Sleep(collector.cfg.RetryDelay)
		}
	}

	return nil, lastErr
}

// CollectToFile runs Collect and writes the records to a timestamped scrape
// file under dir, returning the file name and the run summary.
func (collector *Collector) CollectToFile(ctx context.Context, region data.Region, name string, tickers []string, dir string) (string, *data.RunSummary, error) {
	records, summary := collector.Collect(ctx, region, tickers)

	fn := filepath.Join(dir, data.ScrapeFileName(region, name, summary.StartTime))
	if err := data.WriteRecords(fn, records); err != nil {
		return "", summary, err
	}

	log.Info().Str("FileName", fn).Int("NumTickers", summary.NumTickers).
		Int("NumFailed", summary.NumFailed).Str("RunID", summary.RunID.String()).
		Msg("scrape file written")

	return fn, summary, nil
}
