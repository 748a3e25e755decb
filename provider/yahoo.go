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
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/value-vault/vscreen/data"
	"golang.org/x/time/rate"
)

const (
	yahooQuoteSummaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary/%s"
	yahooTimeseriesURL   = "https://query1.finance.yahoo.com/ws/fundamentals-timeseries/v1/finance/timeseries/%s"
	yahooQuoteURL        = "https://query1.finance.yahoo.com/v7/finance/quote"

	yahooUserAgent = "Mozilla/5.0"
)

var yahooSummaryModules = strings.Join([]string{
	"price",
	"summaryProfile",
	"summaryDetail",
	"defaultKeyStatistics",
	"financialData",
}, ",")

var yahooTimeseriesTypes = strings.Join([]string{
	"annualTotalRevenue",
	"annualCostOfRevenue",
	"annualOperatingExpense",
	"annualGrossProfit",
	"annualOperatingIncome",
	"annualNetIncome",
	"annualInvestedCapital",
	"annualTotalDebt",
	"annualTotalAssets",
	"annualCommonStockEquity",
	"annualOperatingCashFlow",
	"annualFinancingCashFlow",
	"annualInvestingCashFlow",
}, ",")

// Yahoo fetches fundamentals and quotes from the Yahoo Finance public API.
// Requests are rate limited and results are cached for the lifetime of the
// fetcher so a ticker shared across regions or lists is only fetched once
// per run.
type Yahoo struct {
	client  *resty.Client
	limiter *rate.Limiter
	cache   *haxmap.Map[string, *data.TickerRecord]
}

// NewYahoo creates a Yahoo Finance fetcher limited to rateLimit requests
// per minute.
func NewYahoo(rateLimit int) *Yahoo {
	if rateLimit <= 0 {
		rateLimit = 60
	}

	client := resty.New().
		SetHeader("User-Agent", yahooUserAgent).
		SetTimeout(30 * time.Second)
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal

	return &Yahoo{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(float64(rateLimit)/60.0), 1),
		cache:   haxmap.New[string, *data.TickerRecord](),
	}
}

func (yahoo *Yahoo) Name() string {
	return "yahoo"
}

// Private interface

type yahooRawValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type yahooSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price *struct {
				ShortName           string        `json:"shortName"`
				LongName            string        `json:"longName"`
				Currency            string        `json:"currency"`
				RegularMarketPrice  yahooRawValue `json:"regularMarketPrice"`
				MarketCap           yahooRawValue `json:"marketCap"`
				RegularMarketVolume yahooRawValue `json:"regularMarketVolume"`
			} `json:"price"`
			SummaryProfile *struct {
				Industry string `json:"industry"`
				Sector   string `json:"sector"`
			} `json:"summaryProfile"`
			SummaryDetail *struct {
				TrailingAnnualDividendRate yahooRawValue `json:"trailingAnnualDividendRate"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics *struct {
				LastFiscalYearEnd yahooRawValue `json:"lastFiscalYearEnd"`
			} `json:"defaultKeyStatistics"`
			FinancialData *struct {
				FinancialCurrency string `json:"financialCurrency"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type yahooTimeseriesValue struct {
	AsOfDate      string `json:"asOfDate"`
	ReportedValue struct {
		Raw *float64 `json:"raw"`
	} `json:"reportedValue"`
}

type yahooTimeseriesResponse struct {
	Timeseries struct {
		Result []struct {
			Meta struct {
				Symbol []string `json:"symbol"`
				Type   []string `json:"type"`
			} `json:"meta"`
			AnnualTotalRevenue      []*yahooTimeseriesValue `json:"annualTotalRevenue"`
			AnnualCostOfRevenue     []*yahooTimeseriesValue `json:"annualCostOfRevenue"`
			AnnualOperatingExpense  []*yahooTimeseriesValue `json:"annualOperatingExpense"`
			AnnualGrossProfit       []*yahooTimeseriesValue `json:"annualGrossProfit"`
			AnnualOperatingIncome   []*yahooTimeseriesValue `json:"annualOperatingIncome"`
			AnnualNetIncome         []*yahooTimeseriesValue `json:"annualNetIncome"`
			AnnualInvestedCapital   []*yahooTimeseriesValue `json:"annualInvestedCapital"`
			AnnualTotalDebt         []*yahooTimeseriesValue `json:"annualTotalDebt"`
			AnnualTotalAssets       []*yahooTimeseriesValue `json:"annualTotalAssets"`
			AnnualCommonStockEquity []*yahooTimeseriesValue `json:"annualCommonStockEquity"`
			AnnualOperatingCashFlow []*yahooTimeseriesValue `json:"annualOperatingCashFlow"`
			AnnualFinancingCashFlow []*yahooTimeseriesValue `json:"annualFinancingCashFlow"`
			AnnualInvestingCashFlow []*yahooTimeseriesValue `json:"annualInvestingCashFlow"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"timeseries"`
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
			MarketCap          *float64 `json:"marketCap"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// latest returns the reported value with the greatest asOfDate, or nil when
// the series is empty. Yahoo pads sparse series with null entries.
func latest(series []*yahooTimeseriesValue) *float64 {
	var (
		bestDate  string
		bestValue *float64
	)

	for _, v := range series {
		if v == nil || v.ReportedValue.Raw == nil {
			continue
		}
		if v.AsOfDate >= bestDate {
			bestDate = v.AsOfDate
			bestValue = v.ReportedValue.Raw
		}
	}

	return bestValue
}

func (yahoo *Yahoo) FetchTicker(ctx context.Context, ticker string) (*data.TickerRecord, error) {
	if cached, ok := yahoo.cache.Get(ticker); ok {
		return cached, nil
	}

	record := &data.TickerRecord{
		Ticker:         ticker,
		CompanyName:    data.NA,
		Industry:       data.NA,
		MarketCurrency: data.NA,
		ReportCurrency: data.NA,
		FiscalYearEnd:  data.NA,
	}

	if err := yahoo.fetchSummary(ctx, ticker, record); err != nil {
		return nil, err
	}

	if err := yahoo.fetchStatements(ctx, ticker, record); err != nil {
		return nil, err
	}

	yahoo.cache.Set(ticker, record)
	return record, nil
}

func (yahoo *Yahoo) fetchSummary(ctx context.Context, ticker string, record *data.TickerRecord) error {
	if err := yahoo.limiter.Wait(ctx); err != nil {
		return err
	}

	respContent := yahooSummaryResponse{}
	resp, err := yahoo.client.R().
		SetContext(ctx).
		SetQueryParam("modules", yahooSummaryModules).
		SetResult(&respContent).
		Get(fmt.Sprintf(yahooQuoteSummaryURL, ticker))
	if err != nil {
		return err
	}

	if resp.StatusCode() == 404 {
		return fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}

	if resp.StatusCode() >= 300 {
		log.Error().Int("StatusCode", resp.StatusCode()).Str("Ticker", ticker).
			Str("URL", resp.Request.URL).Msg("yahoo returned an invalid HTTP response")
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	if respContent.QuoteSummary.Error != nil {
		return fmt.Errorf("%w: %s (%s)", ErrNotFound, ticker, respContent.QuoteSummary.Error.Description)
	}

	if len(respContent.QuoteSummary.Result) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}

	result := respContent.QuoteSummary.Result[0]

	if result.Price != nil {
		if result.Price.ShortName != "" {
			record.CompanyName = result.Price.ShortName
		} else if result.Price.LongName != "" {
			record.CompanyName = result.Price.LongName
		}
		if result.Price.Currency != "" {
			record.MarketCurrency = result.Price.Currency
		}
		record.MarketPrice = result.Price.RegularMarketPrice.Raw
		record.MarketCap = result.Price.MarketCap.Raw
	}

	if result.SummaryProfile != nil && result.SummaryProfile.Industry != "" {
		record.Industry = result.SummaryProfile.Industry
	}

	// A ticker that pays no dividend omits the trailing rate entirely; that
	// is a known zero, not an unknown.
	record.Dividends = data.Float(0)
	if result.SummaryDetail != nil && result.SummaryDetail.TrailingAnnualDividendRate.Raw != nil {
		record.Dividends = result.SummaryDetail.TrailingAnnualDividendRate.Raw
	}

	if result.DefaultKeyStatistics != nil && result.DefaultKeyStatistics.LastFiscalYearEnd.Raw != nil {
		fiscalEnd := time.Unix(int64(*result.DefaultKeyStatistics.LastFiscalYearEnd.Raw), 0).UTC()
		record.FiscalYearEnd = fiscalEnd.Format("01-02")
	}

	if result.FinancialData != nil && result.FinancialData.FinancialCurrency != "" {
		record.ReportCurrency = result.FinancialData.FinancialCurrency
	}

	return nil
}

func (yahoo *Yahoo) fetchStatements(ctx context.Context, ticker string, record *data.TickerRecord) error {
	if err := yahoo.limiter.Wait(ctx); err != nil {
		return err
	}

	now := time.Now()
	respContent := yahooTimeseriesResponse{}
	resp, err := yahoo.client.R().
		SetContext(ctx).
		SetQueryParam("type", yahooTimeseriesTypes).
		SetQueryParam("period1", fmt.Sprintf("%d", now.AddDate(-2, 0, 0).Unix())).
		SetQueryParam("period2", fmt.Sprintf("%d", now.Unix())).
		SetResult(&respContent).
		Get(fmt.Sprintf(yahooTimeseriesURL, ticker))
	if err != nil {
		return err
	}

	if resp.StatusCode() >= 300 {
		log.Error().Int("StatusCode", resp.StatusCode()).Str("Ticker", ticker).
			Str("URL", resp.Request.URL).Msg("yahoo timeseries returned an invalid HTTP response")
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	var (
		grossProfit     *float64
		operatingIncome *float64
	)

	for _, result := range respContent.Timeseries.Result {
		record.Sales = firstNonNil(record.Sales, latest(result.AnnualTotalRevenue))
		record.COGS = firstNonNil(record.COGS, latest(result.AnnualCostOfRevenue))
		record.Opex = firstNonNil(record.Opex, latest(result.AnnualOperatingExpense))
		record.NetIncome = firstNonNil(record.NetIncome, latest(result.AnnualNetIncome))
		record.InvestedCapital = firstNonNil(record.InvestedCapital, latest(result.AnnualInvestedCapital))
		record.TotalDebt = firstNonNil(record.TotalDebt, latest(result.AnnualTotalDebt))
		record.TotalAssets = firstNonNil(record.TotalAssets, latest(result.AnnualTotalAssets))
		record.CommonEquity = firstNonNil(record.CommonEquity, latest(result.AnnualCommonStockEquity))
		record.OperatingCashFlow = firstNonNil(record.OperatingCashFlow, latest(result.AnnualOperatingCashFlow))
		record.FinancingCashFlow = firstNonNil(record.FinancingCashFlow, latest(result.AnnualFinancingCashFlow))
		record.InvestingCashFlow = firstNonNil(record.InvestingCashFlow, latest(result.AnnualInvestingCashFlow))
		grossProfit = firstNonNil(grossProfit, latest(result.AnnualGrossProfit))
		operatingIncome = firstNonNil(operatingIncome, latest(result.AnnualOperatingIncome))
	}

	// Some filers report no operating expense line; derive it from gross
	// profit and operating income when both are available.
	if record.Opex == nil && grossProfit != nil && operatingIncome != nil {
		record.Opex = data.Float(*grossProfit - *operatingIncome)
	}

	return nil
}

func (yahoo *Yahoo) FetchQuotes(ctx context.Context, tickers []string) (map[string]Quote, error) {
	if err := yahoo.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	respContent := yahooQuoteResponse{}
	resp, err := yahoo.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(tickers, ",")).
		SetResult(&respContent).
		Get(yahooQuoteURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		log.Error().Int("StatusCode", resp.StatusCode()).Int("NumTickers", len(tickers)).
			Msg("yahoo quote endpoint returned an invalid HTTP response")
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	if respContent.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrStatus, respContent.QuoteResponse.Error.Description)
	}

	quotes := make(map[string]Quote, len(respContent.QuoteResponse.Result))
	for _, result := range respContent.QuoteResponse.Result {
		quotes[result.Symbol] = Quote{
			Price:     result.RegularMarketPrice,
			MarketCap: result.MarketCap,
		}
	}

	return quotes, nil
}

func firstNonNil(current, candidate *float64) *float64 {
	if current != nil {
		return current
	}
	return candidate
}
