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
package library

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/rs/zerolog/log"
	"github.com/value-vault/vscreen/data"
)

// SaveScreened publishes a region's screened results to the database,
// replacing rows for tickers already present.
func (myLibrary *Library) SaveScreened(ctx context.Context, region data.Region, companies []*data.ScreenedCompany) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Commit(ctx); err != nil {
			log.Error().Err(err).Msg("error committing screened results to database")
		}
	}()

	sql := `INSERT INTO screened_companies (
		"region",
		"ticker",
		"company_name",
		"industry",
		"market_price",
		"market_cap",
		"market_currency",
		"ebit_yield",
		"roic",
		"dividend_yield",
		"debt_ratio",
		"combined_rank",
		"last_updated"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
	) ON CONFLICT ON CONSTRAINT screened_companies_pkey DO UPDATE SET
		company_name = EXCLUDED.company_name,
		industry = EXCLUDED.industry,
		market_price = EXCLUDED.market_price,
		market_cap = EXCLUDED.market_cap,
		market_currency = EXCLUDED.market_currency,
		ebit_yield = EXCLUDED.ebit_yield,
		roic = EXCLUDED.roic,
		dividend_yield = EXCLUDED.dividend_yield,
		debt_ratio = EXCLUDED.debt_ratio,
		combined_rank = EXCLUDED.combined_rank,
		last_updated = EXCLUDED.last_updated`

	now := time.Now()
	for _, company := range companies {
		if _, err := tx.Exec(ctx, sql,
			string(region),
			company.Ticker,
			company.CompanyName,
			company.Industry,
			company.MarketPrice,
			company.MarketCap,
			company.MarketCurrency,
			company.EBITYield,
			company.ROIC,
			company.DividendYield,
			company.DebtRatio,
			company.CombinedRank,
			now,
		); err != nil {
			log.Error().Err(err).Str("Ticker", company.Ticker).Msg("save screened company to DB failed")
			return err
		}
	}

	return nil
}

// LoadScreened reads a region's previously published screened results,
// best rank first.
func (myLibrary *Library) LoadScreened(ctx context.Context, region data.Region) ([]*data.ScreenedCompany, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var companies []*data.ScreenedCompany
	sql := `SELECT ticker, company_name, industry, market_price, market_cap,
		market_currency, ebit_yield, roic, dividend_yield, debt_ratio, combined_rank
		FROM screened_companies WHERE region=$1 ORDER BY combined_rank, ticker`

	if err := pgxscan.Select(ctx, conn, &companies, sql, string(region)); err != nil {
		return nil, err
	}

	return companies, nil
}
