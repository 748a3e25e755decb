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
package data

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Region identifies the market grouping a scrape or screen file belongs to.
type Region string

const (
	RegionUS Region = "us"
	RegionCN Region = "cn"
	RegionHK Region = "hk"
)

// Regions lists all supported market regions in processing order.
var Regions = []Region{RegionUS, RegionCN, RegionHK}

// ErrUnknownRegion indicates a region string outside the supported set.
var ErrUnknownRegion = errors.New("unknown region")

// ParseRegion validates a region string from the command line.
func ParseRegion(s string) (Region, error) {
	for _, region := range Regions {
		if s == string(region) {
			return region, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownRegion, s)
}

// NA marks a missing string value in scrape output.
const NA = "N/A"

// TickerRecord is one flat row of fundamental and price data for a single
// security. Numeric fields are pointers so a missing value survives a CSV
// round trip as an empty cell rather than being conflated with zero; zero
// is a legitimate financial value, absent is not.
type TickerRecord struct {
	Ticker         string `csv:"Ticker"`
	CompanyName    string `csv:"Company Name"`
	Industry       string `csv:"Industry"`
	MarketCurrency string `csv:"Market Currency"`
	ReportCurrency string `csv:"Report Currency"`

	// FiscalYearEnd is the month-day the company closes its books, e.g. "09-30".
	FiscalYearEnd string `csv:"Financial Year End Date"`

	MarketPrice *float64 `csv:"Market Price"`
	MarketCap   *float64 `csv:"Market Cap"`

	// Dividends carries the trailing annual dividend rate per share, the
	// proxy used for the prior financial year's dividend payments.
	Dividends *float64 `csv:"Past Financial Year Dividends"`

	InvestedCapital *float64 `csv:"Latest Invested Capital"`
	TotalDebt       *float64 `csv:"Latest Total Debt"`
	TotalAssets     *float64 `csv:"Latest Total Assets"`
	CommonEquity    *float64 `csv:"Latest Common Equity"`

	Sales     *float64 `csv:"Past Annual Sales"`
	COGS      *float64 `csv:"Past Annual Cogs"`
	Opex      *float64 `csv:"Past Annual Opex"`
	NetIncome *float64 `csv:"Past Annual Net Income"`

	OperatingCashFlow *float64 `csv:"Past Annual Operating Cash Flow"`
	FinancingCashFlow *float64 `csv:"Past Annual Financing Cash Flow"`
	InvestingCashFlow *float64 `csv:"Past Annual Investing Cash Flow"`
}

// UnknownRecord returns a TickerRecord with every field marked absent. It is
// emitted for tickers whose fetch failed after all retries so the run can
// continue without inventing values.
func UnknownRecord(ticker string) *TickerRecord {
	return &TickerRecord{
		Ticker:         ticker,
		CompanyName:    NA,
		Industry:       NA,
		MarketCurrency: NA,
		ReportCurrency: NA,
		FiscalYearEnd:  NA,
	}
}

// Float boxes a value for the record's optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// ScreenedCompany is one row of ranker output: the identity and descriptive
// fields from the consolidated table plus the four computed ratios and the
// final combined rank. Lower combined rank is better.
type ScreenedCompany struct {
	Ticker         string  `csv:"Ticker" db:"ticker"`
	CompanyName    string  `csv:"Company Name" db:"company_name"`
	Industry       string  `csv:"Industry" db:"industry"`
	MarketPrice    float64 `csv:"Market Price" db:"market_price"`
	MarketCap      float64 `csv:"Market Cap" db:"market_cap"`
	MarketCurrency string  `csv:"Market Currency" db:"market_currency"`
	EBITYield      float64 `csv:"EBIT/Market Cap" db:"ebit_yield"`
	ROIC           float64 `csv:"ROIC" db:"roic"`
	DividendYield  float64 `csv:"D/P" db:"dividend_yield"`
	DebtRatio      float64 `csv:"Total Debt/Common Equity" db:"debt_ratio"`
	CombinedRank   int     `csv:"Combined Rank" db:"combined_rank"`
}

// RunSummary captures the outcome of one collector run.
type RunSummary struct {
	RunID         uuid.UUID
	Region        Region
	StartTime     time.Time
	EndTime       time.Time
	NumTickers    int
	NumFailed     int
	FailedTickers []string
}
