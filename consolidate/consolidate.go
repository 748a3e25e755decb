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

// Package consolidate merges timestamped scrape files into one latest-value
// table per region, and refreshes the volatile market fields of an existing
// table against the provider.
package consolidate

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/provider"
)

var (
	// ErrNoScrapeFiles indicates a region has no usable scrape files; the
	// region is skipped, the run continues.
	ErrNoScrapeFiles = errors.New("no scrape files for region")

	// ErrMissingColumns indicates a consolidated file lacks the columns a
	// partial refresh needs. The refresh aborts for that region only.
	ErrMissingColumns = errors.New("consolidated file is missing required columns")
)

// Config holds the directories and refresh pacing for consolidation.
type Config struct {
	ScrapedDir string
	CleanDir   string

	// Refresh pacing, mirrors collector defaults when zero.
	BatchSize  int
	Retries    int
	RetryDelay time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	return cfg
}

// ConsolidatedFile returns the path of a region's consolidated table.
func ConsolidatedFile(cleanDir string, region data.Region) string {
	return filepath.Join(cleanDir, fmt.Sprintf("%s_screen_data.csv", region))
}

// Rebuild consolidates every scrape file for a region into a single table
// with exactly one row per ticker: the row from the file with the latest
// embedded timestamp. Files are visited in lexicographic name order and only
// a strictly newer timestamp replaces a row, so equal timestamps resolve to
// the first file in sorted order. Malformed files are skipped with a
// diagnostic.
func Rebuild(cfg Config, region data.Region) error {
	files, err := data.ListScrapeFiles(cfg.ScrapedDir, region)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("%w: %s", ErrNoScrapeFiles, region)
	}

	type stamped struct {
		record *data.TickerRecord
		ts     time.Time
	}

	newest := make(map[string]stamped)

	for _, fn := range files {
		ts, err := data.ScrapeFileTime(fn)
		if err != nil {
			// ListScrapeFiles already filtered these
			continue
		}

		records, err := data.ReadRecords(fn)
		if err != nil {
			log.Warn().Err(err).Str("FileName", fn).Msg("skipping malformed scrape file")
			continue
		}

		for _, record := range records {
			if record.Ticker == "" {
				continue
			}
			if cur, ok := newest[record.Ticker]; !ok || ts.After(cur.ts) {
				newest[record.Ticker] = stamped{record: record, ts: ts}
			}
		}
	}

	if len(newest) == 0 {
		return fmt.Errorf("%w: %s", ErrNoScrapeFiles, region)
	}

	rows := make([]*data.TickerRecord, 0, len(newest))
	for _, entry := range newest {
		rows = append(rows, entry.record)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Ticker < rows[j].Ticker
	})

	outFile := ConsolidatedFile(cfg.CleanDir, region)
	if err := data.WriteRecords(outFile, rows); err != nil {
		return err
	}

	log.Info().Str("Region", string(region)).Int("NumFiles", len(files)).
		Int("NumTickers", len(rows)).Str("FileName", outFile).
		Msg("consolidated scrape files")

	return nil
}

// Refresh updates the Market Price and Market Cap columns of an existing
// consolidated table from fresh provider quotes. Tickers whose fetch failed
// keep their prior values; a fresh value always wins over a stale one.
func Refresh(ctx context.Context, cfg Config, region data.Region, fetcher provider.Fetcher) error {
	cfg = cfg.withDefaults()

	fn := ConsolidatedFile(cfg.CleanDir, region)
	if err := checkRefreshColumns(fn); err != nil {
		return err
	}

	records, err := data.ReadRecords(fn)
	if err != nil {
		return err
	}

	tickers := make([]string, 0, len(records))
	for _, record := range records {
		tickers = append(tickers, record.Ticker)
	}

	quotes := fetchQuotes(ctx, cfg, fetcher, tickers)

	refreshed := 0
	for _, record := range records {
		quote, ok := quotes[record.Ticker]
		if !ok {
			continue
		}
		if quote.Price != nil {
			record.MarketPrice = quote.Price
			refreshed++
		}
		if quote.MarketCap != nil {
			record.MarketCap = quote.MarketCap
		}
	}

	if err := data.WriteRecords(fn, records); err != nil {
		return err
	}

	log.Info().Str("Region", string(region)).Int("NumTickers", len(records)).
		Int("NumRefreshed", refreshed).Msg("refreshed market price and market cap")

	return nil
}

// fetchQuotes pulls quotes in batches, then retries individually any ticker
// the batch pass came back empty for. Tickers that still fail are simply
// absent from the result.
func fetchQuotes(ctx context.Context, cfg Config, fetcher provider.Fetcher, tickers []string) map[string]provider.Quote {
	quotes := make(map[string]provider.Quote, len(tickers))

	for i := 0; i < len(tickers); i += cfg.BatchSize {
		end := i + cfg.BatchSize
		if end > len(tickers) {
			end = len(tickers)
		}

		batch, err := fetcher.FetchQuotes(ctx, tickers[i:end])
		if err != nil {
			log.Warn().Err(err).Int("BatchStart", i).Msg("quote batch failed, tickers will be retried individually")
			continue
		}

		for ticker, quote := range batch {
			quotes[ticker] = quote
		}
	}

	for _, ticker := range tickers {
		if quote, ok := quotes[ticker]; ok && (quote.Price != nil || quote.MarketCap != nil) {
			continue
		}

		for attempt := 1; attempt <= cfg.Retries; attempt++ {
			single, err := fetcher.FetchQuotes(ctx, []string{ticker})
			if err == nil {
				if quote, ok := single[ticker]; ok && (quote.Price != nil || quote.MarketCap != nil) {
					quotes[ticker] = quote
					break
				}
			}

			if attempt < cfg.Retries {
				time.Sleep(cfg.RetryDelay)
			} else {
				log.Warn().Str("Ticker", ticker).Int("Retries", cfg.Retries).
					Msg("quote refresh failed, keeping prior values")
			}
		}
	}

	return quotes
}

// checkRefreshColumns verifies the consolidated file carries the columns a
// partial refresh rewrites.
func checkRefreshColumns(fn string) error {
	fh, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	header, err := csv.NewReader(fh).Read()
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}

	for _, col := range []string{"Ticker", "Market Price", "Market Cap"} {
		if !present[col] {
			return fmt.Errorf("%w: %s (%s)", ErrMissingColumns, col, fn)
		}
	}

	return nil
}

// Run processes every requested region: a partial refresh when refresh is
// set and the consolidated file already exists, a full rebuild otherwise.
// Per-region failures are logged and never abort the other regions.
func Run(ctx context.Context, cfg Config, regions []data.Region, refresh bool, fetcher provider.Fetcher) {
	cfg = cfg.withDefaults()

	for _, region := range regions {
		fn := ConsolidatedFile(cfg.CleanDir, region)

		if refresh {
			if _, err := os.Stat(fn); err == nil {
				if err := Refresh(ctx, cfg, region, fetcher); err != nil {
					log.Error().Err(err).Str("Region", string(region)).Msg("partial refresh failed")
				}
				continue
			}
		}

		if err := Rebuild(cfg, region); err != nil {
			if errors.Is(err, ErrNoScrapeFiles) {
				log.Info().Str("Region", string(region)).Msg("no scrape files found, skipping region")
				continue
			}
			log.Error().Err(err).Str("Region", string(region)).Msg("consolidation failed")
		}
	}
}
