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
package consolidate_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/value-vault/vscreen/consolidate"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/provider"
)

// fakeQuoter serves canned quotes and records how it was called.
type fakeQuoter struct {
	quotes    map[string]provider.Quote
	batchErr  error
	numCalls  int
	requested [][]string
}

func (fake *fakeQuoter) Name() string { return "fake" }

func (fake *fakeQuoter) FetchTicker(_ context.Context, _ string) (*data.TickerRecord, error) {
	return nil, provider.ErrNotFound
}

func (fake *fakeQuoter) FetchQuotes(_ context.Context, tickers []string) (map[string]provider.Quote, error) {
	fake.numCalls++
	fake.requested = append(fake.requested, tickers)

	if fake.batchErr != nil && len(tickers) > 1 {
		return nil, fake.batchErr
	}

	quotes := make(map[string]provider.Quote)
	for _, ticker := range tickers {
		if quote, ok := fake.quotes[ticker]; ok {
			quotes[ticker] = quote
		}
	}
	return quotes, nil
}

func writeScrapeFile(dir string, region data.Region, name string, at time.Time, records []*data.TickerRecord) string {
	fn := filepath.Join(dir, data.ScrapeFileName(region, name, at))
	Expect(data.WriteRecords(fn, records)).To(Succeed())
	return fn
}

func record(ticker string, price float64) *data.TickerRecord {
	return &data.TickerRecord{
		Ticker:      ticker,
		CompanyName: ticker + " Inc.",
		MarketPrice: data.Float(price),
		MarketCap:   data.Float(price * 100),
	}
}

var _ = Describe("Rebuild", func() {
	var (
		scrapedDir string
		cleanDir   string
		cfg        consolidate.Config
	)

	BeforeEach(func() {
		scrapedDir = GinkgoT().TempDir()
		cleanDir = GinkgoT().TempDir()
		cfg = consolidate.Config{ScrapedDir: scrapedDir, CleanDir: cleanDir}
	})

	It("keeps the row from the file with the newest timestamp", func() {
		older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

		writeScrapeFile(scrapedDir, data.RegionUS, "scrape", older, []*data.TickerRecord{
			record("AAPL", 10),
			record("MSFT", 20),
		})
		writeScrapeFile(scrapedDir, data.RegionUS, "scrape", newer, []*data.TickerRecord{
			record("AAPL", 12),
		})

		Expect(consolidate.Rebuild(cfg, data.RegionUS)).To(Succeed())

		rows, err := data.ReadRecords(consolidate.ConsolidatedFile(cleanDir, data.RegionUS))
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))

		// sorted by ticker, AAPL from the newer file
		Expect(rows[0].Ticker).To(Equal("AAPL"))
		Expect(rows[0].MarketPrice).To(HaveValue(Equal(12.0)))
		Expect(rows[1].Ticker).To(Equal("MSFT"))
		Expect(rows[1].MarketPrice).To(HaveValue(Equal(20.0)))
	})

	It("resolves equal timestamps to the first file in sorted order", func() {
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		writeScrapeFile(scrapedDir, data.RegionUS, "alpha", at, []*data.TickerRecord{
			record("AAPL", 10),
		})
		writeScrapeFile(scrapedDir, data.RegionUS, "beta", at, []*data.TickerRecord{
			record("AAPL", 99),
		})

		Expect(consolidate.Rebuild(cfg, data.RegionUS)).To(Succeed())

		rows, err := data.ReadRecords(consolidate.ConsolidatedFile(cleanDir, data.RegionUS))
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].MarketPrice).To(HaveValue(Equal(10.0)))
	})

	It("is idempotent", func() {
		writeScrapeFile(scrapedDir, data.RegionUS, "scrape",
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			[]*data.TickerRecord{record("AAPL", 10), record("MSFT", 20)})

		Expect(consolidate.Rebuild(cfg, data.RegionUS)).To(Succeed())
		first, err := os.ReadFile(consolidate.ConsolidatedFile(cleanDir, data.RegionUS))
		Expect(err).NotTo(HaveOccurred())

		Expect(consolidate.Rebuild(cfg, data.RegionUS)).To(Succeed())
		second, err := os.ReadFile(consolidate.ConsolidatedFile(cleanDir, data.RegionUS))
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
	})

	It("skips malformed scrape files and keeps the rest", func() {
		writeScrapeFile(scrapedDir, data.RegionUS, "scrape",
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			[]*data.TickerRecord{record("AAPL", 10)})

		badFN := filepath.Join(scrapedDir, data.ScrapeFileName(data.RegionUS, "bad",
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
		Expect(os.WriteFile(badFN, []byte("Ticker\n\"unterminated"), 0644)).To(Succeed())

		Expect(consolidate.Rebuild(cfg, data.RegionUS)).To(Succeed())

		rows, err := data.ReadRecords(consolidate.ConsolidatedFile(cleanDir, data.RegionUS))
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Ticker).To(Equal("AAPL"))
	})

	It("returns ErrNoScrapeFiles when the region has nothing to merge", func() {
		err := consolidate.Rebuild(cfg, data.RegionHK)
		Expect(err).To(MatchError(consolidate.ErrNoScrapeFiles))
	})

	It("keeps unknown markers distinct from zero across the merge", func() {
		failed := data.UnknownRecord("FAIL")
		zero := record("ZERO", 10)
		zero.Dividends = data.Float(0)

		writeScrapeFile(scrapedDir, data.RegionUS, "scrape",
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			[]*data.TickerRecord{failed, zero})

		Expect(consolidate.Rebuild(cfg, data.RegionUS)).To(Succeed())

		rows, err := data.ReadRecords(consolidate.ConsolidatedFile(cleanDir, data.RegionUS))
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].Ticker).To(Equal("FAIL"))
		Expect(rows[0].MarketPrice).To(BeNil())
		Expect(rows[1].Dividends).To(HaveValue(Equal(0.0)))
	})
})

var _ = Describe("Refresh", func() {
	var (
		cleanDir string
		cfg      consolidate.Config
		ctx      context.Context
	)

	BeforeEach(func() {
		cleanDir = GinkgoT().TempDir()
		ctx = context.Background()
		cfg = consolidate.Config{
			ScrapedDir: GinkgoT().TempDir(),
			CleanDir:   cleanDir,
			BatchSize:  2,
			Retries:    2,
			RetryDelay: time.Millisecond,
		}
	})

	It("replaces price and cap for fetched tickers and keeps prior values for the rest", func() {
		fn := consolidate.ConsolidatedFile(cleanDir, data.RegionUS)
		Expect(data.WriteRecords(fn, []*data.TickerRecord{
			record("AAPL", 10),
			record("MSFT", 20),
		})).To(Succeed())

		fake := &fakeQuoter{quotes: map[string]provider.Quote{
			"AAPL": {Price: data.Float(12), MarketCap: data.Float(1200)},
		}}

		Expect(consolidate.Refresh(ctx, cfg, data.RegionUS, fake)).To(Succeed())

		rows, err := data.ReadRecords(fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows[0].Ticker).To(Equal("AAPL"))
		Expect(rows[0].MarketPrice).To(HaveValue(Equal(12.0)))
		Expect(rows[0].MarketCap).To(HaveValue(Equal(1200.0)))

		// MSFT fetch failed; prior values survive
		Expect(rows[1].Ticker).To(Equal("MSFT"))
		Expect(rows[1].MarketPrice).To(HaveValue(Equal(20.0)))
		Expect(rows[1].MarketCap).To(HaveValue(Equal(2000.0)))
	})

	It("keeps the prior value when only part of a quote is fresh", func() {
		fn := consolidate.ConsolidatedFile(cleanDir, data.RegionUS)
		Expect(data.WriteRecords(fn, []*data.TickerRecord{record("AAPL", 10)})).To(Succeed())

		fake := &fakeQuoter{quotes: map[string]provider.Quote{
			"AAPL": {Price: data.Float(11)},
		}}

		Expect(consolidate.Refresh(ctx, cfg, data.RegionUS, fake)).To(Succeed())

		rows, err := data.ReadRecords(fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows[0].MarketPrice).To(HaveValue(Equal(11.0)))
		Expect(rows[0].MarketCap).To(HaveValue(Equal(1000.0)))
	})

	It("retries tickers individually after a failed batch", func() {
		fn := consolidate.ConsolidatedFile(cleanDir, data.RegionUS)
		Expect(data.WriteRecords(fn, []*data.TickerRecord{
			record("AAPL", 10),
			record("MSFT", 20),
		})).To(Succeed())

		fake := &fakeQuoter{
			batchErr: provider.ErrStatus,
			quotes: map[string]provider.Quote{
				"AAPL": {Price: data.Float(12)},
				"MSFT": {Price: data.Float(22)},
			},
		}

		Expect(consolidate.Refresh(ctx, cfg, data.RegionUS, fake)).To(Succeed())

		rows, err := data.ReadRecords(fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows[0].MarketPrice).To(HaveValue(Equal(12.0)))
		Expect(rows[1].MarketPrice).To(HaveValue(Equal(22.0)))

		// one failed batch call plus one individual call per ticker
		Expect(fake.numCalls).To(Equal(3))
	})

	It("aborts when the consolidated file lacks the refresh columns", func() {
		fn := consolidate.ConsolidatedFile(cleanDir, data.RegionUS)
		Expect(os.WriteFile(fn, []byte("Ticker,Company Name\nAAPL,Apple Inc.\n"), 0644)).To(Succeed())

		err := consolidate.Refresh(ctx, cfg, data.RegionUS, &fakeQuoter{})
		Expect(err).To(MatchError(consolidate.ErrMissingColumns))
	})
})

var _ = Describe("Run", func() {
	It("rebuilds each region and skips regions without scrape files", func() {
		scrapedDir := GinkgoT().TempDir()
		cleanDir := GinkgoT().TempDir()
		cfg := consolidate.Config{ScrapedDir: scrapedDir, CleanDir: cleanDir}

		writeScrapeFile(scrapedDir, data.RegionUS, "scrape",
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			[]*data.TickerRecord{record("AAPL", 10)})

		consolidate.Run(context.Background(), cfg, data.Regions, false, nil)

		_, err := os.Stat(consolidate.ConsolidatedFile(cleanDir, data.RegionUS))
		Expect(err).NotTo(HaveOccurred())

		_, err = os.Stat(consolidate.ConsolidatedFile(cleanDir, data.RegionCN))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("refreshes in place when the consolidated file already exists", func() {
		scrapedDir := GinkgoT().TempDir()
		cleanDir := GinkgoT().TempDir()
		cfg := consolidate.Config{
			ScrapedDir: scrapedDir,
			CleanDir:   cleanDir,
			Retries:    1,
			RetryDelay: time.Millisecond,
		}

		fn := consolidate.ConsolidatedFile(cleanDir, data.RegionUS)
		Expect(data.WriteRecords(fn, []*data.TickerRecord{record("AAPL", 10)})).To(Succeed())

		fake := &fakeQuoter{quotes: map[string]provider.Quote{
			"AAPL": {Price: data.Float(15), MarketCap: data.Float(1500)},
		}}

		consolidate.Run(context.Background(), cfg, []data.Region{data.RegionUS}, true, fake)

		rows, err := data.ReadRecords(fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows[0].MarketPrice).To(HaveValue(Equal(15.0)))
	})
})
