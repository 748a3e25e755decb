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
	"os"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/library"
	"github.com/value-vault/vscreen/screen"
)

var publishRegion string

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload screened results to the PostgreSQL database",
	Long: `The publish sub-command reads the screened CSV for each region and upserts
the rows into the screened_companies table so other tools can query the latest
screen without touching the data library on disk.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := library.NewFromConfig()
		if myLibrary.DBUrl == "" {
			log.Fatal().Msg("no database configured; set db.url or run vscreen init")
		}

		if err := myLibrary.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		defer myLibrary.Close()

		regions := data.Regions
		if publishRegion != "" {
			region, err := data.ParseRegion(publishRegion)
			if err != nil {
				log.Fatal().Err(err).Msg("invalid region flag")
			}
			regions = []data.Region{region}
		}

		for _, region := range regions {
			fn := screen.ScreenedFile(myLibrary.ScreenedDir(), region)
			fh, err := os.Open(fn)
			if err != nil {
				log.Warn().Err(err).Str("Region", string(region)).Str("FileName", fn).
					Msg("no screened results for region; skipping")
				continue
			}

			var companies []*data.ScreenedCompany
			err = gocsv.Unmarshal(fh, &companies)
			fh.Close()
			if err != nil {
				log.Error().Err(err).Str("FileName", fn).Msg("could not parse screened results")
				continue
			}

			if err := myLibrary.SaveScreened(ctx, region, companies); err != nil {
				log.Error().Err(err).Str("Region", string(region)).Msg("could not publish screened results")
				continue
			}

			log.Info().Str("Region", string(region)).Int("NumCompanies", len(companies)).Msg("published screened results")
		}
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishRegion, "region", "", "limit to a single region (us, cn, hk)")
}
