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
package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/value-vault/vscreen/collector"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/library"
	"github.com/value-vault/vscreen/provider"
)

var scrapeName string

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <region> [ticker...]",
	Short: "Collect fundamentals and quotes for a region",
	Long: `The scrape sub-command fetches fundamentals and the latest quote for every
ticker in the region's ticker library (or for the tickers given as arguments)
and writes a timestamped scrape file into the library's scraped_data
directory. Tickers that still fail after all retries are recorded with N/A
values so later scrapes can fill them in.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		region, err := data.ParseRegion(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("invalid region argument")
		}

		myLibrary := library.NewFromConfig()
		if err := myLibrary.EnsureDirs(); err != nil {
			log.Fatal().Err(err).Msg("library data directory is not usable")
		}

		tickers := args[1:]
		if len(tickers) == 0 {
			tickers, err = myLibrary.Tickers(region)
			if err != nil {
				log.Fatal().Err(err).Str("Region", string(region)).Msg("could not load ticker library")
			}
		}

		yahoo := provider.NewYahoo(viper.GetInt("yahoo.rate_limit"))
		myCollector := collector.New(yahoo, collector.Config{
			BatchSize:  viper.GetInt("scrape.batch_size"),
			BatchDelay: viper.GetDuration("scrape.batch_delay"),
			Retries:    viper.GetInt("scrape.retries"),
			RetryDelay: viper.GetDuration("scrape.retry_delay"),
		})

		startTime := time.Now()
		fn, summary, err := myCollector.CollectToFile(ctx, region, scrapeName, tickers, myLibrary.ScrapedDir())
		if err != nil {
			log.Fatal().Err(err).Msg("scrape failed")
		}

		subLog := log.With().Str("RunID", summary.RunID.String()).Str("FileName", fn).Logger()
		subLog.Info().Int("NumTickers", summary.NumTickers).Int("NumFailed", summary.NumFailed).
			Dur("RunTime", time.Since(startTime)).Msg("scrape complete")
		if summary.NumFailed > 0 {
			subLog.Warn().Strs("FailedTickers", summary.FailedTickers).Msg("some tickers could not be fetched")
		}
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.Flags().StringVar(&scrapeName, "name", "scrape", "name embedded in the scrape file before the timestamp")
}
