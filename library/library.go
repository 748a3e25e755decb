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

// Package library describes the on-disk data library the screener works
// against: scrape files, consolidated tables, screened results and ticker
// lists, all rooted under a single data directory. An optional PostgreSQL
// connection publishes screened results for other tools.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
)

// ErrNoDataDir indicates the configured data directory does not exist;
// this is a configuration error and halts the run.
var ErrNoDataDir = errors.New("data directory does not exist")

type Library struct {
	Name    string `toml:"name"`
	Owner   string `toml:"owner"`
	DataDir string `toml:"data_dir"`
	DBUrl   string `toml:"db_url,omitempty"`

	Pool *pgxpool.Pool `toml:"-"`
}

// NewFromConfig builds a library from viper configuration.
func NewFromConfig() *Library {
	return &Library{
		Name:    viper.GetString("library.name"),
		Owner:   viper.GetString("library.owner"),
		DataDir: viper.GetString("data.dir"),
		DBUrl:   viper.GetString("db.url"),
	}
}

// CheckSlug derives the health-check slug from the library's free-form
// name.
func (myLibrary *Library) CheckSlug() string {
	name := myLibrary.Name
	if name == "" {
		name = "vscreen"
	}
	return slug.Make(fmt.Sprintf("%s run", name))
}

// ScrapedDir is where timestamped scrape files land.
func (myLibrary *Library) ScrapedDir() string {
	return filepath.Join(myLibrary.DataDir, "scraped_data")
}

// CleanDir is where consolidated per-region tables live.
func (myLibrary *Library) CleanDir() string {
	return filepath.Join(myLibrary.DataDir, "cleaned_data")
}

// ScreenedDir is where screened result tables are written.
func (myLibrary *Library) ScreenedDir() string {
	return myLibrary.DataDir
}

// TickerDir holds the per-region ticker list JSON files.
func (myLibrary *Library) TickerDir() string {
	return filepath.Join(myLibrary.DataDir, "ticker_library")
}

// EnsureDirs verifies the data directory exists and creates the pipeline
// subdirectories beneath it.
func (myLibrary *Library) EnsureDirs() error {
	if myLibrary.DataDir == "" {
		return fmt.Errorf("%w: data.dir is not configured", ErrNoDataDir)
	}

	if _, err := os.Stat(myLibrary.DataDir); err != nil {
		return fmt.Errorf("%w: %s", ErrNoDataDir, myLibrary.DataDir)
	}

	for _, dir := range []string{myLibrary.ScrapedDir(), myLibrary.CleanDir(), myLibrary.TickerDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return nil
}

// Connect opens the database pool configured for the library.
func (myLibrary *Library) Connect(ctx context.Context) error {
	if myLibrary.Pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, myLibrary.DBUrl)
	if err != nil {
		return err
	}
	myLibrary.Pool = pool

	return nil
}

// Close the database pool
func (myLibrary *Library) Close() {
	if myLibrary.Pool != nil {
		myLibrary.Pool.Close()
	}
}
