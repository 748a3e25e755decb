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
	"github.com/value-vault/vscreen/backblaze"
	"github.com/value-vault/vscreen/consolidate"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/healthcheck"
	"github.com/value-vault/vscreen/library"
	"github.com/value-vault/vscreen/provider"
	"github.com/value-vault/vscreen/screen"
)

var runRefresh bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consolidate and screen every region in one pass",
	Long: `The run sub-command executes the full pipeline over existing scrape files:
consolidate each region, optionally refresh quotes, screen the consolidated
tables, archive the screened results to Backblaze when configured, and ping
the configured health check.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		startTime := time.Now()

		myLibrary := library.NewFromConfig()
		if err := myLibrary.EnsureDirs(); err != nil {
			log.Fatal().Err(err).Msg("library data directory is not usable")
		}

		cfg := consolidate.Config{
			ScrapedDir: myLibrary.ScrapedDir(),
			CleanDir:   myLibrary.CleanDir(),
			BatchSize:  viper.GetInt("scrape.batch_size"),
			Retries:    viper.GetInt("scrape.retries"),
			RetryDelay: viper.GetDuration("scrape.retry_delay"),
		}

		var fetcher provider.Fetcher
		if runRefresh {
			fetcher = provider.NewYahoo(viper.GetInt("yahoo.rate_limit"))
		}

		consolidate.Run(ctx, cfg, data.Regions, runRefresh, fetcher)

		ok := true
		archiveFiles := make([]string, 0, 2*len(data.Regions))
		for _, region := range data.Regions {
			companies, err := screen.Region(myLibrary.CleanDir(), myLibrary.ScreenedDir(), region)
			if err != nil {
				log.Error().Err(err).Str("Region", string(region)).Msg("could not screen region")
				ok = false
				continue
			}

			log.Info().Str("Region", string(region)).Int("NumCompanies", len(companies)).Msg("screen complete")
			archiveFiles = append(archiveFiles,
				consolidate.ConsolidatedFile(myLibrary.CleanDir(), region),
				screen.ScreenedFile(myLibrary.ScreenedDir(), region))
		}

		if backblaze.Enabled() && len(archiveFiles) > 0 {
			backblaze.Archive(archiveFiles...)
		}

		if err := healthcheck.Ping(ok); err != nil {
			log.Error().Err(err).Msg("could not ping health check")
		}

		log.Info().Dur("RunTime", time.Since(startTime)).Msg("pipeline run complete")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runRefresh, "refresh", false, "re-fetch market price and market cap before screening")
}
