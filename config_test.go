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

import "testing"

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "unknown driver",
			cfg:     Config{Driver: "azure-blob", Bucket: "b", MaxBlockSize: MinBlockSize, ReadBufferSize: 1024},
			wantErr: true,
		},
		{
			name:    "s3 without region or endpoint",
			cfg:     Config{Driver: "s3", Bucket: "b", MaxBlockSize: MinBlockSize, ReadBufferSize: 1024},
			wantErr: true,
		},
		{
			name:    "s3 with region",
			cfg:     Config{Driver: "S3", Region: "us-east-1", Bucket: "b", MaxBlockSize: MinBlockSize, ReadBufferSize: 1024},
			wantErr: false,
		},
		{
			name:    "empty bucket",
			cfg:     Config{Driver: "google-cloud-storage", Bucket: "", MaxBlockSize: MinBlockSize, ReadBufferSize: 1024},
			wantErr: true,
		},
		{
			name:    "block size below minimum",
			cfg:     Config{Driver: "google-cloud-storage", Bucket: "b", MaxBlockSize: 1024, ReadBufferSize: 1024},
			wantErr: true,
		},
		{
			name:    "valid gcs config",
			cfg:     Config{Driver: "google-cloud-storage", Bucket: "b", MaxBlockSize: MinBlockSize, ReadBufferSize: 1024},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !Is(err, ConfigError) {
				t.Fatalf("Validate() error kind = %v, want ConfigError", err)
			}
		})
	}
}
