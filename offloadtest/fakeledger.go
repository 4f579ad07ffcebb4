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

package offloadtest

import (
	"context"
	"fmt"

	"github.com/ledgerbroker/offload/ledger"
)

// FakeLedger is an in-memory ledger.Source over a fixed list of
// entries, for driving offload engine tests without a real
// bookkeeping client.
type FakeLedger struct {
	id      ledger.ID
	closed  bool
	meta    ledger.Metadata
	entries [][]byte
}

// NewFakeLedger returns a closed ledger with the given entry
// payloads, entry IDs 0..len(entries)-1.
func NewFakeLedger(id ledger.ID, entries [][]byte) *FakeLedger {
	return &FakeLedger{id: id, closed: true, entries: entries}
}

// WithMetadata sets the ledger metadata blob round-tripped through
// offload and index decode.
func (f *FakeLedger) WithMetadata(m ledger.Metadata) *FakeLedger {
	f.meta = m
	return f
}

// Open marks the ledger not-closed, for exercising the InvalidArgument
// precondition on open ledgers.
func (f *FakeLedger) Open() *FakeLedger {
	f.closed = false
	return f
}

func (f *FakeLedger) ID() ledger.ID { return f.id }

func (f *FakeLedger) Length() int64 {
	var n int64
	for _, e := range f.entries {
		n += int64(len(e))
	}
	return n
}

func (f *FakeLedger) IsClosed() bool { return f.closed }

func (f *FakeLedger) LastAddConfirmed() ledger.EntryID {
	if len(f.entries) == 0 {
		return ledger.NoEntryID
	}
	return ledger.EntryID(len(f.entries) - 1)
}

func (f *FakeLedger) Metadata() ledger.Metadata { return f.meta }

func (f *FakeLedger) ReadEntry(ctx context.Context, id ledger.EntryID) ([]byte, error) {
	if id < 0 || int(id) >= len(f.entries) {
		return nil, fmt.Errorf("offloadtest: entry %d out of range [0,%d)", id, len(f.entries))
	}
	return f.entries[id], nil
}
