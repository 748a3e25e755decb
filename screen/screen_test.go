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
package screen_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gocarina/gocsv"
	"github.com/value-vault/vscreen/consolidate"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/screen"
)

// validRecord builds a record that passes the screen's validity filter. The
// defaults give EBIT = 100 - 40 - 20 = 40.
func validRecord(ticker string) *data.TickerRecord {
	return &data.TickerRecord{
		Ticker:          ticker,
		CompanyName:     ticker + " Inc.",
		Industry:        "Technology",
		MarketCurrency:  "USD",
		MarketPrice:     data.Float(10),
		MarketCap:       data.Float(1000),
		Dividends:       data.Float(1),
		InvestedCapital: data.Float(500),
		TotalDebt:       data.Float(50),
		CommonEquity:    data.Float(200),
		Sales:           data.Float(100),
		COGS:            data.Float(40),
		Opex:            data.Float(20),
	}
}

var _ = Describe("Screen", func() {
	Describe("validity filter", func() {
		It("excludes rows with missing or non-positive required inputs", func() {
			noPrice := validRecord("NOPRICE")
			noPrice.MarketPrice = nil

			zeroCap := validRecord("ZEROCAP")
			zeroCap.MarketCap = data.Float(0)

			negativeIC := validRecord("NEGIC")
			negativeIC.InvestedCapital = data.Float(-1)

			noSales := validRecord("NOSALES")
			noSales.Sales = nil

			noDebt := validRecord("NODEBT")
			noDebt.TotalDebt = nil

			results, err := screen.Screen([]*data.TickerRecord{
				validRecord("GOOD"), noPrice, zeroCap, negativeIC, noSales, noDebt,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Ticker).To(Equal("GOOD"))
		})

		It("keeps rows with zero dividends; zero is a value, not a gap", func() {
			zeroDiv := validRecord("ZERODIV")
			zeroDiv.Dividends = data.Float(0)

			results, err := screen.Screen([]*data.TickerRecord{zeroDiv})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].DividendYield).To(Equal(0.0))
		})

		It("returns ErrNoValidRows when nothing survives", func() {
			_, err := screen.Screen([]*data.TickerRecord{data.UnknownRecord("FAIL")})
			Expect(err).To(MatchError(screen.ErrNoValidRows))
		})
	})

	Describe("ratios", func() {
		It("computes the four metrics from the consolidated row", func() {
			record := validRecord("AAPL")
			record.MarketPrice = data.Float(12)
			record.MarketCap = data.Float(1200)

			results, err := screen.Screen([]*data.TickerRecord{record})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			company := results[0]
			Expect(company.EBITYield).To(BeNumerically("~", 40.0/1200.0, 1e-12))
			Expect(company.ROIC).To(BeNumerically("~", 0.08, 1e-12))
			Expect(company.DividendYield).To(BeNumerically("~", 1.0/12.0, 1e-12))
			Expect(company.DebtRatio).To(BeNumerically("~", 0.25, 1e-12))
			Expect(company.CombinedRank).To(Equal(3))
		})
	})

	Describe("debt ranking", func() {
		It("ranks non-positive equity companies on total debt, after the others", func() {
			// everything but debt and equity is identical, so the combined
			// rank is decided entirely by the partitioned debt ranking
			lowRatio := validRecord("LOWRATIO")
			lowRatio.TotalDebt = data.Float(50)
			lowRatio.CommonEquity = data.Float(200) // ratio 0.25

			highRatio := validRecord("HIGHRATIO")
			highRatio.TotalDebt = data.Float(50)
			highRatio.CommonEquity = data.Float(100) // ratio 0.5

			bigDebtNegEq := validRecord("BIGDEBT")
			bigDebtNegEq.TotalDebt = data.Float(10)
			bigDebtNegEq.CommonEquity = data.Float(-10)

			smallDebtNegEq := validRecord("SMALLDEBT")
			smallDebtNegEq.TotalDebt = data.Float(5)
			smallDebtNegEq.CommonEquity = data.Float(-5)

			results, err := screen.Screen([]*data.TickerRecord{
				lowRatio, highRatio, bigDebtNegEq, smallDebtNegEq,
			})
			Expect(err).NotTo(HaveOccurred())

			tickers := make([]string, len(results))
			for i, company := range results {
				tickers[i] = company.Ticker
			}
			Expect(tickers).To(Equal([]string{"LOWRATIO", "HIGHRATIO", "SMALLDEBT", "BIGDEBT"}))
		})
	})

	Describe("ordering", func() {
		It("is deterministic and keeps input order for tied companies", func() {
			first := validRecord("FIRST")
			second := validRecord("SECOND")

			for i := 0; i < 5; i++ {
				results, err := screen.Screen([]*data.TickerRecord{first, second})
				Expect(err).NotTo(HaveOccurred())
				Expect(results[0].Ticker).To(Equal("FIRST"))
				Expect(results[1].Ticker).To(Equal("SECOND"))
				Expect(results[0].CombinedRank).To(Equal(results[1].CombinedRank))
			}
		})
	})
})

var _ = Describe("Region", func() {
	It("reads the consolidated table and writes the screened CSV", func() {
		cleanDir := GinkgoT().TempDir()
		outDir := GinkgoT().TempDir()

		records := []*data.TickerRecord{
			validRecord("AAA"),
			validRecord("BBB"),
			data.UnknownRecord("FAIL"),
		}
		Expect(data.WriteRecords(consolidate.ConsolidatedFile(cleanDir, data.RegionUS), records)).To(Succeed())

		results, err := screen.Region(cleanDir, outDir, data.RegionUS)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))

		fh, err := os.Open(screen.ScreenedFile(outDir, data.RegionUS))
		Expect(err).NotTo(HaveOccurred())
		defer fh.Close()

		var back []*data.ScreenedCompany
		Expect(gocsv.Unmarshal(fh, &back)).To(Succeed())
		Expect(back).To(HaveLen(2))
		Expect(back[0].Ticker).To(Equal("AAA"))
		Expect(back[0].CombinedRank).To(Equal(back[1].CombinedRank))
	})

	It("propagates a missing consolidated file", func() {
		cleanDir := GinkgoT().TempDir()
		_, err := screen.Region(cleanDir, cleanDir, data.RegionCN)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("End to end", func() {
	It("screens against the newest scrape data for each ticker", func() {
		scrapedDir := GinkgoT().TempDir()
		cleanDir := GinkgoT().TempDir()
		outDir := GinkgoT().TempDir()

		stale := validRecord("AAPL")
		fresh := validRecord("AAPL")
		fresh.MarketPrice = data.Float(12)
		fresh.MarketCap = data.Float(1200)

		older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

		Expect(data.WriteRecords(
			filepath.Join(scrapedDir, data.ScrapeFileName(data.RegionUS, "scrape", older)),
			[]*data.TickerRecord{stale})).To(Succeed())
		Expect(data.WriteRecords(
			filepath.Join(scrapedDir, data.ScrapeFileName(data.RegionUS, "scrape", newer)),
			[]*data.TickerRecord{fresh})).To(Succeed())

		cfg := consolidate.Config{ScrapedDir: scrapedDir, CleanDir: cleanDir}
		Expect(consolidate.Rebuild(cfg, data.RegionUS)).To(Succeed())

		results, err := screen.Region(cleanDir, outDir, data.RegionUS)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))

		company := results[0]
		Expect(company.MarketPrice).To(Equal(12.0))
		Expect(company.MarketCap).To(Equal(1200.0))
		Expect(company.EBITYield).To(BeNumerically("~", 40.0/1200.0, 1e-12))
		Expect(company.ROIC).To(BeNumerically("~", 0.08, 1e-12))
		Expect(company.DividendYield).To(BeNumerically("~", 1.0/12.0, 1e-12))
		Expect(company.DebtRatio).To(BeNumerically("~", 0.25, 1e-12))
	})
})
