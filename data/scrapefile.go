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
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
)

// ScrapeTimestampLayout is the 14-digit timestamp embedded in scrape file names.
const ScrapeTimestampLayout = "20060102150405"

var (
	ErrNoTimestamp = errors.New("file name does not embed a scrape timestamp")

	scrapeTimestampRe = regexp.MustCompile(`_(\d{14})\.csv$`)
)

// ScrapeFileName builds a scrape file name of the form
// {region}{name}_{YYYYMMDDHHMMSS}.csv, e.g. us_nyse_20240101000000.csv.
func ScrapeFileName(region Region, name string, at time.Time) string {
	return fmt.Sprintf("%s%s_%s.csv", region, name, at.Format(ScrapeTimestampLayout))
}

// ScrapeFileTime extracts the creation timestamp embedded in a scrape file
// name. Files without a parseable trailing timestamp return ErrNoTimestamp.
func ScrapeFileTime(fn string) (time.Time, error) {
	match := scrapeTimestampRe.FindStringSubmatch(filepath.Base(fn))
	if match == nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNoTimestamp, fn)
	}

	ts, err := time.Parse(ScrapeTimestampLayout, match[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNoTimestamp, fn)
	}

	return ts, nil
}

// ListScrapeFiles returns the scrape files for a region in lexicographic
// order. Files whose names do not carry a parseable timestamp are excluded.
// Sorted order makes consolidation deterministic when two files share the
// same timestamp.
func ListScrapeFiles(dir string, region Region) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("%s*_*.csv", region)))
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(matches))
	for _, fn := range matches {
		if _, err := ScrapeFileTime(fn); err != nil {
			continue
		}
		files = append(files, fn)
	}

	sort.Strings(files)
	return files, nil
}

// ReadRecords loads ticker records from a CSV table. Empty numeric cells
// unmarshal to nil, preserving the unknown marker.
func ReadRecords(fn string) ([]*TickerRecord, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	records := make([]*TickerRecord, 0)
	if err := gocsv.UnmarshalFile(fh, &records); err != nil {
		return nil, err
	}

	return records, nil
}

// WriteRecords persists ticker records as a CSV table.
func WriteRecords(fn string, records []*TickerRecord) error {
	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	return gocsv.MarshalFile(&records, fh)
}
