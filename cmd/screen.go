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
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/library"
	"github.com/value-vault/vscreen/screen"
)

var (
	screenRegion string
	screenTop    int
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Rank consolidated companies and write the screened results",
	Long: `The screen sub-command ranks every valid company in a region's consolidated
table on EBIT yield, return on invested capital, dividends per price and
leverage, then writes the ranked list to the region's screened CSV. Use --top
to print the best N companies as a table.`,
	Run: func(cmd *cobra.Command, args []string) {
		myLibrary := library.NewFromConfig()
		if err := myLibrary.EnsureDirs(); err != nil {
			log.Fatal().Err(err).Msg("library data directory is not usable")
		}

		regions := data.Regions
		if screenRegion != "" {
			region, err := data.ParseRegion(screenRegion)
			if err != nil {
				log.Fatal().Err(err).Msg("invalid region flag")
			}
			regions = []data.Region{region}
		}

		for _, region := range regions {
			companies, err := screen.Region(myLibrary.CleanDir(), myLibrary.ScreenedDir(), region)
			if err != nil {
				log.Error().Err(err).Str("Region", string(region)).Msg("could not screen region")
				continue
			}

			log.Info().Str("Region", string(region)).Int("NumCompanies", len(companies)).
				Str("FileName", screen.ScreenedFile(myLibrary.ScreenedDir(), region)).Msg("screen complete")

			if screenTop > 0 {
				printTopTable(region, companies, screenTop)
			}
		}
	},
}

func printTopTable(region data.Region, companies []*data.ScreenedCompany, top int) {
	if top > len(companies) {
		top = len(companies)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Top %d value candidates (%s)", top, region))
	t.AppendHeader(table.Row{"Ticker", "Company", "EBIT/MCap", "ROIC", "D/P", "Debt/Equity", "Rank"})
	for _, company := range companies[:top] {
		t.AppendRow(table.Row{
			company.Ticker,
			company.CompanyName,
			fmt.Sprintf("%.4f", company.EBITYield),
			fmt.Sprintf("%.4f", company.ROIC),
			fmt.Sprintf("%.4f", company.DividendYield),
			fmt.Sprintf("%.4f", company.DebtRatio),
			company.CombinedRank,
		})
	}
	t.Render()
}

func init() {
	rootCmd.AddCommand(screenCmd)
	screenCmd.Flags().StringVar(&screenRegion, "region", "", "limit to a single region (us, cn, hk)")
	screenCmd.Flags().IntVar(&screenTop, "top", 0, "print the top N companies after screening")
}
