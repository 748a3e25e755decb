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
	"errors"

	"github.com/value-vault/vscreen/data"
)

var (
	// ErrNotFound indicates the provider has no data for a ticker.
	ErrNotFound = errors.New("no data for ticker")

	// ErrStatus indicates the provider returned an invalid HTTP status.
	ErrStatus = errors.New("status code is invalid")
)

// Quote carries the volatile market fields refreshed between full scrapes.
// Absent values are nil.
type Quote struct {
	Price     *float64
	MarketCap *float64
}

// Fetcher is the boundary to an external market data source. Implementations
// perform their own rate limiting; retry policy belongs to the caller so the
// pipeline stages stay independently testable.
type Fetcher interface {
	Name() string

	// FetchTicker retrieves the full fundamental and price record for a
	// single ticker.
	FetchTicker(ctx context.Context, ticker string) (*data.TickerRecord, error)

	// FetchQuotes retrieves current price and market cap for a batch of
	// tickers. Tickers the provider knows nothing about are simply absent
	// from the returned map.
	FetchQuotes(ctx context.Context, tickers []string) (map[string]Quote, error)
}
