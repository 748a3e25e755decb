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

// Package backblaze archives pipeline output tables to a Backblaze B2
// bucket so screen runs remain reproducible after local files rotate.
package backblaze

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kothar/go-backblaze"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrBucketNotFound = errors.New("bucket not found")
	ErrNotConfigured  = errors.New("backblaze credentials not configured")
)

// Enabled reports whether archive credentials are configured.
func Enabled() bool {
	return viper.GetString("backblaze.application_id") != "" &&
		viper.GetString("backblaze.application_key") != ""
}

// Upload stores a single file in the named bucket under dirname.
func Upload(fn, bucketName, dirname string) error {
	if !Enabled() {
		return ErrNotConfigured
	}

	b2, err := backblaze.NewB2(backblaze.Credentials{
		KeyID:          viper.GetString("backblaze.application_id"),
		ApplicationKey: viper.GetString("backblaze.application_key"),
	})
	if err != nil {
		log.Error().Err(err).Str("BucketName", bucketName).Msg("authorize backblaze failed")
		return err
	}

	bucket, err := b2.Bucket(bucketName)
	if err != nil {
		log.Error().Err(err).Str("BucketName", bucketName).Msg("lookup bucket failed")
		return err
	}
	if bucket == nil {
		log.Error().Str("BucketName", bucketName).Msg("bucket does not exist")
		return ErrBucketNotFound
	}

	reader, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer reader.Close()

	outName := fmt.Sprintf("%s/%s", dirname, filepath.Base(fn))
	metadata := make(map[string]string)

	file, err := bucket.UploadFile(outName, metadata, reader)
	if err != nil {
		log.Error().Err(err).Str("FileName", outName).Str("BucketName", bucketName).Msg("save file to backblaze failed")
		return err
	}

	log.Info().Str("FileName", file.Name).Int64("Size", file.ContentLength).Str("ID", file.ID).Msg("uploaded file to backblaze")
	return nil
}

// Archive uploads a set of tables under a dated directory in the configured
// bucket. Individual upload failures are logged and the rest continue.
func Archive(fns ...string) {
	bucketName := viper.GetString("backblaze.bucket")
	if bucketName == "" || !Enabled() {
		log.Debug().Msg("backblaze archive not configured, skipping")
		return
	}

	dirname := time.Now().Format("2006-01-02")

	for _, fn := range fns {
		if _, err := os.Stat(fn); err != nil {
			continue
		}
		if err := Upload(fn, bucketName, dirname); err != nil {
			log.Warn().Err(err).Str("FileName", fn).Msg("archive upload failed")
		}
	}
}
