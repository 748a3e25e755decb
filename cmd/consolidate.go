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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/value-vault/vscreen/consolidate"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/library"
	"github.com/value-vault/vscreen/provider"
)

var (
	consolidateRefresh bool
	consolidateRegion  string
)

// consolidateCmd represents the consolidate command
var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge scrape files into one clean table per region",
	Long: `The consolidate sub-command merges every timestamped scrape file for a region
into a single clean CSV with exactly one row per ticker, keeping the newest
data for each. With --refresh it afterwards re-fetches the market price and
market cap for every consolidated ticker so the screen runs against current
quotes.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := library.NewFromConfig()
		if err := myLibrary.EnsureDirs(); err != nil {
			log.Fatal().Err(err).Msg("library data directory is not usable")
		}

		regions := data.Regions
		if consolidateRegion != "" {
			region, err := data.ParseRegion(consolidateRegion)
			if err != nil {
				log.Fatal().Err(err).Msg("invalid region flag")
			}
			regions = []data.Region{region}
		}

		cfg := consolidate.Config{
			ScrapedDir: myLibrary.ScrapedDir(),
			CleanDir:   myLibrary.CleanDir(),
			BatchSize:  viper.GetInt("scrape.batch_size"),
			Retries:    viper.GetInt("scrape.retries"),
			RetryDelay: viper.GetDuration("scrape.retry_delay"),
		}

		var fetcher provider.Fetcher
		if consolidateRefresh {
			fetcher = provider.NewYahoo(viper.GetInt("yahoo.rate_limit"))
		}

		consolidate.Run(ctx, cfg, regions, consolidateRefresh, fetcher)
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
	consolidateCmd.Flags().BoolVar(&consolidateRefresh, "refresh", false, "re-fetch market price and market cap after consolidating")
	consolidateCmd.Flags().StringVar(&consolidateRegion, "region", "", "limit to a single region (us, cn, hk)")
}
