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

// Package screen ranks consolidated ticker tables by four value metrics:
// EBIT yield and ROIC rank on their own, while dividend yield and the debt
// ratio are folded into a composite sub-score before entering the combined
// rank. Companies with non-positive common equity cannot be ranked on
// debt-to-equity, so the debt ranking is partitioned: positive-equity rows
// rank on Total Debt / Common Equity, the rest rank on Total Debt
// below them.
package screen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/value-vault/vscreen/consolidate"
	"github.com/value-vault/vscreen/data"
)

// ErrNoValidRows indicates every row was rejected by the validity filter;
// no output file is produced for the region.
var ErrNoValidRows = errors.New("no rows passed the validity filter")

type candidate struct {
	record         *data.TickerRecord
	ebitYield      float64
	roic           float64
	dividendYield  float64
	debtRatio      float64
	positiveEquity bool
}

// Screen filters a consolidated table and ranks the surviving rows. Rows
// with missing or invalid required inputs are excluded entirely, never
// scored as worst. The result is sorted ascending by combined rank with
// ties retaining input order.
func Screen(records []*data.TickerRecord) ([]*data.ScreenedCompany, error) {
	candidates := make([]*candidate, 0, len(records))

	for _, record := range records {
		c, ok := evaluate(record)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return nil, ErrNoValidRows
	}

	n := len(candidates)
	ebitYields := make([]float64, n)
	roics := make([]float64, n)
	dividendYields := make([]float64, n)
	for i, c := range candidates {
		ebitYields[i] = c.ebitYield
		roics[i] = c.roic
		dividendYields[i] = c.dividendYield
	}

	ebitRanks := Rank(ebitYields, true)
	roicRanks := Rank(roics, true)
	dividendRanks := Rank(dividendYields, true)
	debtRanks := rankDebt(candidates)

	compositeScores := make([]int, n)
	for i := range candidates {
		compositeScores[i] = dividendRanks[i] + debtRanks[i]
	}
	compositeRanks := rankInts(compositeScores)

	results := make([]*data.ScreenedCompany, n)
	for i, c := range candidates {
		results[i] = &data.ScreenedCompany{
			Ticker:         c.record.Ticker,
			CompanyName:    c.record.CompanyName,
			Industry:       c.record.Industry,
			MarketPrice:    *c.record.MarketPrice,
			MarketCap:      *c.record.MarketCap,
			MarketCurrency: c.record.MarketCurrency,
			EBITYield:      c.ebitYield,
			ROIC:           c.roic,
			DividendYield:  c.dividendYield,
			DebtRatio:      c.debtRatio,
			CombinedRank:   ebitRanks[i] + roicRanks[i] + compositeRanks[i],
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].CombinedRank < results[b].CombinedRank
	})

	return results, nil
}

// evaluate computes the row's metrics and applies the validity filter:
// positive price, market cap and invested capital, and present EBIT inputs,
// dividends, total debt and common equity.
func evaluate(record *data.TickerRecord) (*candidate, bool) {
	if record.MarketPrice == nil || *record.MarketPrice <= 0 {
		return nil, false
	}
	if record.MarketCap == nil || *record.MarketCap <= 0 {
		return nil, false
	}
	if record.InvestedCapital == nil || *record.InvestedCapital <= 0 {
		return nil, false
	}
	if record.Sales == nil || record.COGS == nil || record.Opex == nil {
		return nil, false
	}
	if record.Dividends == nil || record.TotalDebt == nil || record.CommonEquity == nil {
		return nil, false
	}

	ebit := *record.Sales - *record.COGS - *record.Opex

	return &candidate{
		record:         record,
		ebitYield:      ebit / *record.MarketCap,
		roic:           ebit / *record.InvestedCapital,
		dividendYield:  *record.Dividends / *record.MarketPrice,
		debtRatio:      *record.TotalDebt / *record.CommonEquity,
		positiveEquity: *record.CommonEquity > 0,
	}, true
}

// rankDebt produces the partitioned debt ranking: rows with positive common
// equity rank ascending on debt-to-equity (1..M), rows with non-positive
// equity rank ascending on the raw total debt value and are offset by M so
// they always trail the first group.
func rankDebt(candidates []*candidate) []int {
	var positive, negative []int
	for i, c := range candidates {
		if c.positiveEquity {
			positive = append(positive, i)
		} else {
			negative = append(negative, i)
		}
	}

	ranks := make([]int, len(candidates))

	ratios := make([]float64, len(positive))
	for j, i := range positive {
		ratios[j] = candidates[i].debtRatio
	}
	for j, r := range Rank(ratios, false) {
		ranks[positive[j]] = r
	}

	debts := make([]float64, len(negative))
	for j, i := range negative {
		debts[j] = *candidates[i].record.TotalDebt
	}
	offset := len(positive)
	for j, r := range Rank(debts, false) {
		ranks[negative[j]] = offset + r
	}

	return ranks
}

// ScreenedFile returns the path of a region's screened output table.
func ScreenedFile(outDir string, region data.Region) string {
	return filepath.Join(outDir, fmt.Sprintf("%s_screened.csv", region))
}

// Region screens one region's consolidated table and writes the result to
// {region}_screened.csv under outDir. The ranked rows are returned so
// callers can display them.
func Region(cleanDir, outDir string, region data.Region) ([]*data.ScreenedCompany, error) {
	inFile := consolidate.ConsolidatedFile(cleanDir, region)

	records, err := data.ReadRecords(inFile)
	if err != nil {
		return nil, err
	}

	results, err := Screen(records)
	if err != nil {
		return nil, err
	}

	outFile := ScreenedFile(outDir, region)
	fh, err := os.Create(outFile)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	if err := gocsv.MarshalFile(&results, fh); err != nil {
		return nil, err
	}

	log.Info().Str("Region", string(region)).Int("NumCompanies", len(results)).
		Str("FileName", outFile).Msg("screened companies written")

	return results, nil
}
