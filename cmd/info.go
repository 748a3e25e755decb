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
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/value-vault/vscreen/data"
	"github.com/value-vault/vscreen/library"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display information about the data library",
	Run: func(cmd *cobra.Command, args []string) {
		myLibrary := library.NewFromConfig()

		summary, err := myLibrary.Summary()
		if err != nil {
			log.Fatal().Err(err).Msg("could not create library summary document")
		}

		if myLibrary.DBUrl != "" {
			summary += publishedSummary(myLibrary)
		}

		r, _ := glamour.NewTermRenderer(
			// detect background color and pick either the default dark or light theme
			glamour.WithAutoStyle(),
			// wrap output at specific width (default is 80)
			glamour.WithWordWrap(80),
		)

		out, err := r.Render(summary)
		if err != nil {
			log.Fatal().Err(err).Msg("could not render summary document")
		}

		fmt.Print(out)
	},
}

// publishedSummary renders the best published companies per region, or
// nothing when the database is unreachable.
func publishedSummary(myLibrary *library.Library) string {
	ctx := context.Background()

	if err := myLibrary.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("could not connect to database, skipping published results")
		return ""
	}
	defer myLibrary.Close()

	builder := strings.Builder{}
	builder.WriteString("\n## Published screens\n")

	for _, region := range data.Regions {
		companies, err := myLibrary.LoadScreened(ctx, region)
		if err != nil || len(companies) == 0 {
			continue
		}

		top := companies
		if len(top) > 5 {
			top = top[:5]
		}

		builder.WriteString(fmt.Sprintf("\n### %s (%d companies)\n\n", strings.ToUpper(string(region)), len(companies)))
		for _, company := range top {
			builder.WriteString(fmt.Sprintf("  * %s — %s (rank %d)\n",
				company.Ticker, company.CompanyName, company.CombinedRank))
		}
	}

	return builder.String()
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
