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

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerbroker/offload"
	"github.com/ledgerbroker/offload/gcsstore"
	"github.com/ledgerbroker/offload/s3store"
)

func (cf *configFlags) config() offload.Config {
	return offload.Config{
		Driver:                cf.driver,
		Endpoint:              cf.endpoint,
		Region:                cf.region,
		Bucket:                cf.bucket,
		MaxBlockSize:          cf.maxBlockSize,
		ReadBufferSize:        cf.readBufferSize,
		AccessKey:             cf.accessKey,
		SecretKey:             cf.secretKey,
		GCSServiceAccountFile: cf.gcsServiceAccountFile,
		SoftwareVersion:       version,
		SoftwareBuildID:       buildID,
	}
}

// version and buildID are the per-object user-metadata values this
// binary stamps on everything it writes. Overridden at link time with
// -ldflags "-X main.version=... -X main.buildID=...".
var (
	version = "dev"
	buildID = "unknown"
)

func newOffloaderFromFlags(ctx context.Context, cf *configFlags) (*offload.Offloader, error) {
	cfg := cf.config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store offload.ObjectStore
	var err error
	switch strings.ToLower(cfg.Driver) {
	case offload.DriverS3, offload.DriverAWSS3:
		store, err = s3store.New(ctx, cfg)
	case offload.DriverGCS:
		store, err = gcsstore.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	return offload.NewOffloader(cfg, store, offload.NewKeyedLane(4))
}
