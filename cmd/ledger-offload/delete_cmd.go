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
	"fmt"

	"github.com/ledgerbroker/offload/ledger"
)

func runDelete(args []string) error {
	fs, cf := commonFlags("delete")
	fs.Parse(args)

	if cf.ledgerID == "" || cf.uuid == "" {
		return fmt.Errorf("delete requires -ledger-id and -uuid")
	}

	off, err := newOffloaderFromFlags(ctxbg, cf)
	if err != nil {
		return err
	}

	ref := ledger.Ref{LedgerID: ledger.ID(cf.ledgerID), UUID: cf.uuid}
	if err := off.DeleteOffloaded(ctxbg, ref); err != nil {
		return err
	}
	fmt.Printf("deleted ledger %s uuid %s\n", ref.LedgerID, ref.UUID)
	return nil
}

func runCreateBucket(args []string) error {
	fs, cf := commonFlags("create-bucket")
	fs.Parse(args)

	off, err := newOffloaderFromFlags(ctxbg, cf)
	if err != nil {
		return err
	}
	if err := off.CreateBucket(ctxbg); err != nil {
		return err
	}
	fmt.Printf("created bucket %s\n", cf.bucket)
	return nil
}

func runDeleteBucket(args []string) error {
	fs, cf := commonFlags("delete-bucket")
	fs.Parse(args)

	off, err := newOffloaderFromFlags(ctxbg, cf)
	if err != nil {
		return err
	}
	if err := off.DeleteBucket(ctxbg); err != nil {
		return err
	}
	fmt.Printf("deleted bucket %s\n", cf.bucket)
	return nil
}
