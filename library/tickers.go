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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/value-vault/vscreen/data"
)

// ErrNoTickers indicates no ticker list files exist for a region.
var ErrNoTickers = errors.New("no ticker lists for region")

// Tickers loads the ticker symbols for a region from the ticker library.
// Every {region}*.json file is a JSON array of symbols; lists are merged
// and de-duplicated, preserving first-seen order across files visited in
// sorted name order.
func (myLibrary *Library) Tickers(region data.Region) ([]string, error) {
	pattern := filepath.Join(myLibrary.TickerDir(), fmt.Sprintf("%s*.json", region))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTickers, region)
	}

	sort.Strings(files)

	seen := make(map[string]bool)
	tickers := make([]string, 0)

	for _, fn := range files {
		raw, err := os.ReadFile(fn)
		if err != nil {
			return nil, err
		}

		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			log.Warn().Err(err).Str("FileName", fn).Msg("skipping invalid ticker list")
			continue
		}

		for _, ticker := range list {
			if ticker == "" || seen[ticker] {
				continue
			}
			seen[ticker] = true
			tickers = append(tickers, ticker)
		}
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTickers, region)
	}

	return tickers, nil
}
