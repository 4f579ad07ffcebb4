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

// Command ledger-offload is a small administrative CLI over the
// offload engine: offload, read, delete, create-bucket, delete-bucket,
// driven against a configured driver. It exists for operators to
// exercise and debug the engine directly, the way cmd/pk wraps the
// client library for interactive use.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
)

var ctxbg = context.Background()

func usage() {
	fmt.Fprintf(os.Stderr, `usage: ledger-offload <command> [flags]

commands:
  offload        pack a local file into a ledger and offload it
  read           read back an offloaded ledger's entries
  delete         delete an offloaded ledger's objects
  create-bucket  create the configured bucket
  delete-bucket  delete the configured bucket

Run "ledger-offload <command> -h" for command-specific flags.
`)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("ledger-offload: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "offload":
		err = runOffload(args)
	case "read":
		err = runRead(args)
	case "delete":
		err = runDelete(args)
	case "create-bucket":
		err = runCreateBucket(args)
	case "delete-bucket":
		err = runDeleteBucket(args)
	case "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// commonFlags returns a FlagSet pre-populated with the driver/bucket
// flags every subcommand needs to build a Config, plus the Config
// fields the flags were bound to.
func commonFlags(name string) (*flag.FlagSet, *configFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cf := &configFlags{}
	fs.StringVar(&cf.driver, "driver", "google-cloud-storage", "object-store driver: s3, aws-s3, or google-cloud-storage")
	fs.StringVar(&cf.endpoint, "endpoint", "", "S3-compatible endpoint (optional)")
	fs.StringVar(&cf.region, "region", "", "S3 region")
	fs.StringVar(&cf.bucket, "bucket", "", "bucket name (required)")
	fs.Int64Var(&cf.maxBlockSize, "max-block-size", 5<<20, "block size in bytes, minimum 5 MiB")
	fs.Int64Var(&cf.readBufferSize, "read-buffer-size", 1<<20, "read-ahead buffer size in bytes")
	fs.StringVar(&cf.accessKey, "access-key", "", "S3 access key (optional, default provider chain otherwise)")
	fs.StringVar(&cf.secretKey, "secret-key", "", "S3 secret key")
	fs.StringVar(&cf.gcsServiceAccountFile, "gcs-service-account-file", "", "GCS service account JSON file")
	fs.StringVar(&cf.ledgerID, "ledger-id", "", "ledger ID (required)")
	fs.StringVar(&cf.uuid, "uuid", "", "offload UUID (required for read/delete; generated for offload if blank)")
	return fs, cf
}

type configFlags struct {
	driver                string
	endpoint              string
	region                string
	bucket                string
	maxBlockSize          int64
	readBufferSize        int64
	accessKey             string
	secretKey             string
	gcsServiceAccountFile string
	ledgerID              string
	uuid                  string
}
