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
	"os"

	"github.com/ledgerbroker/offload/ledger"
)

func runRead(args []string) error {
	fs, cf := commonFlags("read")
	first := fs.Int64("first", 0, "first entry ID to read")
	last := fs.Int64("last", -1, "last entry ID to read (required; -1 is invalid, must be set)")
	fs.Parse(args)

	if cf.ledgerID == "" || cf.uuid == "" {
		return fmt.Errorf("read requires -ledger-id and -uuid")
	}
	if *last < 0 {
		return fmt.Errorf("read requires -last >= 0")
	}

	off, err := newOffloaderFromFlags(ctxbg, cf)
	if err != nil {
		return err
	}

	ref := ledger.Ref{LedgerID: ledger.ID(cf.ledgerID), UUID: cf.uuid}
	rh, err := off.ReadOffloaded(ctxbg, ref, cf.readBufferSize)
	if err != nil {
		return err
	}
	defer rh.Close()

	entries, err := rh.Read(ctxbg, ledger.EntryID(*first), ledger.EntryID(*last))
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%d\t%s\n", e.ID, e.Payload)
	}
	return nil
}
