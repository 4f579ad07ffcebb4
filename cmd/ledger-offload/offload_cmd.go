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
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ledgerbroker/offload/ledger"
)

// fileLedger packs a local file into a ledger.Source for the CLI's
// "offload" command: one entry per newline-delimited line. Real
// deployments get their ledger.Source from the broker's bookkeeping
// client (out of scope here); this lets an operator
// exercise the engine end-to-end without one.
type fileLedger struct {
	id      ledger.ID
	entries [][]byte
}

func loadFileLedger(id ledger.ID, path string) (*fileLedger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		cp := make([]byte, len(line))
		copy(cp, line)
		entries = append(entries, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &fileLedger{id: id, entries: entries}, nil
}

func (l *fileLedger) ID() ledger.ID      { return l.id }
func (l *fileLedger) IsClosed() bool     { return true }
func (l *fileLedger) Metadata() ledger.Metadata { return nil }

func (l *fileLedger) Length() int64 {
	var n int64
	for _, e := range l.entries {
		n += int64(len(e))
	}
	return n
}

func (l *fileLedger) LastAddConfirmed() ledger.EntryID {
	if len(l.entries) == 0 {
		return ledger.NoEntryID
	}
	return ledger.EntryID(len(l.entries) - 1)
}

func (l *fileLedger) ReadEntry(ctx context.Context, id ledger.EntryID) ([]byte, error) {
	if id < 0 || int(id) >= len(l.entries) {
		return nil, fmt.Errorf("entry %d out of range [0,%d)", id, len(l.entries))
	}
	return l.entries[id], nil
}

func runOffload(args []string) error {
	fs, cf := commonFlags("offload")
	file := fs.String("file", "", "local file to pack into entries, one per line (required)")
	fs.Parse(args)

	if cf.ledgerID == "" || *file == "" {
		return fmt.Errorf("offload requires -ledger-id and -file")
	}
	if cf.uuid == "" {
		cf.uuid = uuid.NewString()
	}

	src, err := loadFileLedger(ledger.ID(cf.ledgerID), *file)
	if err != nil {
		return fmt.Errorf("load %s: %w", *file, err)
	}

	off, err := newOffloaderFromFlags(ctxbg, cf)
	if err != nil {
		return err
	}

	ref := ledger.Ref{LedgerID: src.ID(), UUID: cf.uuid}
	if err := off.Offload(ctxbg, src, ref, nil); err != nil {
		return err
	}
	fmt.Printf("offloaded ledger %s as uuid %s (%d entries, data=%s index=%s)\n",
		ref.LedgerID, ref.UUID, len(src.entries), ref.DataKey(), ref.IndexKey())
	return nil
}
