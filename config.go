/*
Copyright 2026 The Ledger Offload Engine Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package offload

import (
	"strings"

	"github.com/ledgerbroker/offload/internal/jsonconfig"
)

// Config describes how to reach and use an object-store driver. It is
// validated once, at engine construction; a bad Config never fails
// later mid-offload.
type Config struct {
	// Driver selects the backend: "s3", "aws-s3", or
	// "google-cloud-storage" (case-insensitive).
	Driver string

	Endpoint string // optional, S3-compatible endpoints
	Region   string
	Bucket   string

	MaxBlockSize   int64
	ReadBufferSize int64

	AccessKey string
	SecretKey string

	GCSServiceAccountFile string

	SoftwareVersion  string
	SoftwareBuildID  string
}

// Known driver names, compared case-insensitively.
const (
	DriverS3     = "s3"
	DriverAWSS3  = "aws-s3"
	DriverGCS    = "google-cloud-storage"
)

// Validate performs driver-selection checks:
// unknown driver, S3 with neither region nor endpoint, empty bucket,
// and a block size below the 5 MiB minimum are all ConfigError.
func (c Config) Validate() error {
	switch strings.ToLower(c.Driver) {
	case DriverS3, DriverAWSS3:
		if c.Region == "" && c.Endpoint == "" {
			return newErr(ConfigError, "s3 driver requires a region or an endpoint", nil)
		}
	case DriverGCS:
		// no region/endpoint requirement; service-account file is
		// read eagerly by gcsstore.New, not validated here.
	default:
		return errf(ConfigError, nil, "unknown driver %q", c.Driver)
	}
	if c.Bucket == "" {
		return newErr(ConfigError, "bucket must not be empty", nil)
	}
	if c.MaxBlockSize < MinBlockSize {
		return errf(ConfigError, nil, "maxBlockSize %d is below the minimum %d", c.MaxBlockSize, MinBlockSize)
	}
	if c.ReadBufferSize <= 0 {
		return errf(ConfigError, nil, "readBufferSize must be positive, got %d", c.ReadBufferSize)
	}
	return nil
}

// LoadConfig decodes a Config out of a flat JSON configuration
// object, the way every teacher storage backend's newFromConfig
// reads its own jsonconfig.Obj.
func LoadConfig(jc jsonconfig.Obj) (Config, error) {
	c := Config{
		Driver:                jc.RequiredString("driver"),
		Endpoint:              jc.OptionalString("endpoint", ""),
		Region:                jc.OptionalString("region", ""),
		Bucket:                jc.RequiredString("bucket"),
		MaxBlockSize:          jc.OptionalInt64("maxBlockSize", MinBlockSize),
		ReadBufferSize:        jc.OptionalInt64("readBufferSize", 1<<20),
		AccessKey:             jc.OptionalString("accessKey", ""),
		SecretKey:             jc.OptionalString("secretKey", ""),
		GCSServiceAccountFile: jc.OptionalString("gcsServiceAccountFile", ""),
		SoftwareVersion:       jc.OptionalString("softwareVersion", ""),
		SoftwareBuildID:       jc.OptionalString("softwareBuildId", ""),
	}
	if err := jc.Validate(); err != nil {
		return Config{}, errf(ConfigError, err, "invalid configuration")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
