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
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/value-vault/vscreen/db"
	"github.com/value-vault/vscreen/healthcheck"
	"github.com/value-vault/vscreen/library"
)

// tomlConfig mirrors the viper key layout so the generated config file
// round-trips through initConfig.
type tomlConfig struct {
	Library struct {
		Name  string `toml:"name"`
		Owner string `toml:"owner"`
	} `toml:"library"`
	Data struct {
		Dir string `toml:"dir"`
	} `toml:"data"`
	DB struct {
		URL string `toml:"url,omitempty"`
	} `toml:"db,omitempty"`
	Healthchecks struct {
		APIKey  string `toml:"apikey,omitempty"`
		CheckID string `toml:"checkid,omitempty"`
	} `toml:"healthchecks,omitempty"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather library configuration and create the directory layout",
	Run: func(cmd *cobra.Command, args []string) {
		myLibrary := &library.Library{}

		form := huh.NewForm(
			// Gather details about the library and who owns it
			huh.NewGroup(
				huh.NewInput().
					Title("Give the library a name:").
					Value(&myLibrary.Name),

				huh.NewInput().
					Title("Who owns the library?").
					Value(&myLibrary.Owner),
			),

			// Where should the data live on disk?
			huh.NewGroup(
				huh.NewInput().
					Title("Directory to store the data library in:").
					Value(&myLibrary.DataDir).
					Validate(func(dir string) error {
						if dir == "" {
							return fmt.Errorf("directory is required")
						}
						return nil
					}),
			),

			// Optional database for publishing screened results
			huh.NewGroup(
				huh.NewInput().
					Title("DSN for publishing screened results to PostgreSQL -- leave empty to skip (postgres://[user[:password]@][netloc][:port][/dbname])").
					Value(&myLibrary.DBUrl).
					Validate(func(dsn string) error {
						if dsn == "" {
							return nil
						}
						_, err := pgx.ParseConfig(dsn)
						return err
					}),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering library settings")
		}

		if err := os.MkdirAll(myLibrary.DataDir, 0755); err != nil {
			log.Fatal().Err(err).Str("DataDir", myLibrary.DataDir).Msg("could not create data directory")
		}

		if err := myLibrary.EnsureDirs(); err != nil {
			log.Fatal().Err(err).Msg("could not create library directory layout")
		}

		if myLibrary.DBUrl != "" {
			log.Info().Msg("creating database tables")

			// run migration
			dbURL := strings.Replace(myLibrary.DBUrl, "postgres://", "pgx5://", -1)
			err = db.Migrate(dbURL)
			if err != nil {
				log.Fatal().Err(err).Msg("error running database migration")
			}

			log.Info().Msg("database tables created")
		}

		// save settings to config file
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		var cfg tomlConfig
		cfg.Library.Name = myLibrary.Name
		cfg.Library.Owner = myLibrary.Owner
		cfg.Data.Dir = myLibrary.DataDir
		cfg.DB.URL = myLibrary.DBUrl

		// register a monitoring check when an API key is already configured
		if apiKey := viper.GetString("healthchecks.apikey"); apiKey != "" {
			cfg.Healthchecks.APIKey = apiKey

			checkID, err := healthcheck.Create(myLibrary.Name, myLibrary.CheckSlug(),
				[]string{"vscreen"}, "0 18 * * 1-5")
			if err != nil {
				log.Warn().Err(err).Msg("could not create health check, continuing without monitoring")
			} else {
				cfg.Healthchecks.CheckID = checkID
				log.Info().Str("CheckID", checkID).Msg("created health check for pipeline runs")
			}
		}

		configFN := filepath.Join(home, ".vscreen.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving library settings to config file")
		configData, err := toml.Marshal(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0644)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		okStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
		fmt.Println(okStyle.Render("Your data library has been initialized"))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
