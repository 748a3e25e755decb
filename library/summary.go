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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/value-vault/vscreen/data"
	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary returns a description of the data library in markdown: per
// region, how many scrape files exist, how fresh the newest one is, and the
// sizes of the consolidated and screened tables.
func (myLibrary *Library) Summary() (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	name := myLibrary.Name
	if name == "" {
		name = "vscreen data library"
	}

	builder.WriteString(fmt.Sprintf("# %s\n\n", name))
	if myLibrary.Owner != "" {
		builder.WriteString(fmt.Sprintf("Owner: %s\n\n", myLibrary.Owner))
	}
	builder.WriteString(fmt.Sprintf("Data directory: `%s`\n", myLibrary.DataDir))

	for _, region := range data.Regions {
		builder.WriteString(fmt.Sprintf("\n## Region %s\n\n", strings.ToUpper(string(region))))

		files, err := data.ListScrapeFiles(myLibrary.ScrapedDir(), region)
		if err != nil {
			return "", err
		}

		builder.WriteString(p.Sprintf("  * Scrape files: %d\n", len(files)))

		if len(files) > 0 {
			// files are sorted, the newest timestamp is in the last name
			newest, err := data.ScrapeFileTime(files[len(files)-1])
			if err == nil {
				builder.WriteString(fmt.Sprintf("  * Last scrape: %s\n", timeago.English.Format(newest)))
			}
		}

		cleanFile := fmt.Sprintf("%s/%s_screen_data.csv", myLibrary.CleanDir(), region)
		if rows, err := countRows(cleanFile); err == nil {
			builder.WriteString(p.Sprintf("  * Consolidated tickers: %d\n", rows))
		} else {
			builder.WriteString("  * Consolidated tickers: not yet consolidated\n")
		}

		screenedFile := fmt.Sprintf("%s/%s_screened.csv", myLibrary.ScreenedDir(), region)
		if rows, err := countRows(screenedFile); err == nil {
			builder.WriteString(p.Sprintf("  * Screened companies: %d\n", rows))
		}
	}

	return builder.String(), nil
}

// countRows counts the data rows of a CSV table, excluding the header.
func countRows(fn string) (int, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	reader.FieldsPerRecord = -1

	rows := 0
	for {
		if _, err := reader.Read(); err != nil {
			if err == io.EOF {
				break
			}
			return 0, err
		}
		rows++
	}

	if rows > 0 {
		rows--
	}

	return rows, nil
}
