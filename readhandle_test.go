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

package offload_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ledgerbroker/offload"
	"github.com/ledgerbroker/offload/ledger"
	"github.com/ledgerbroker/offload/offloadtest"
)

func TestReadHandleMidRangeAccess(t *testing.T) {
	ctx := context.Background()
	store := offloadtest.NewMemStore()
	store.CreateBucket(ctx, "b")
	off := newTestOffloader(t, store, "b", offload.MinBlockSize)

	entries := make([][]byte, 10)
	for i := range entries {
		entries[i] = bytes.Repeat([]byte{byte('a' + i)}, 50+i)
	}
	src := offloadtest.NewFakeLedger("mid-range", entries)
	ref := ledger.Ref{LedgerID: src.ID(), UUID: uuid.NewString()}
	if err := off.Offload(ctx, src, ref, nil); err != nil {
		t.Fatalf("Offload: %v", err)
	}

	rh, err := off.ReadOffloaded(ctx, ref, 64) // small buffer to force refetches
	if err != nil {
		t.Fatalf("ReadOffloaded: %v", err)
	}
	defer rh.Close()

	got, err := rh.Read(ctx, 3, 6)
	if err != nil {
		t.Fatalf("Read(3,6): %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d entries, want 4", len(got))
	}
	for i, e := range got {
		want := entries[3+i]
		if e.ID != ledger.EntryID(3+i) {
			t.Fatalf("entry %d has ID %d, want %d", i, e.ID, 3+i)
		}
		if !bytes.Equal(e.Payload, want) {
			t.Fatalf("entry %d payload mismatch: got %d bytes, want %d bytes", i, len(e.Payload), len(want))
		}
	}
}

func TestReadHandleLastAddConfirmed(t *testing.T) {
	ctx := context.Background()
	store := offloadtest.NewMemStore()
	store.CreateBucket(ctx, "b")
	off := newTestOffloader(t, store, "b", offload.MinBlockSize)

	src := offloadtest.NewFakeLedger("lac", [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")})
	ref := ledger.Ref{LedgerID: src.ID(), UUID: uuid.NewString()}
	if err := off.Offload(ctx, src, ref, nil); err != nil {
		t.Fatalf("Offload: %v", err)
	}

	rh, err := off.ReadOffloaded(ctx, ref, 1<<16)
	if err != nil {
		t.Fatalf("ReadOffloaded: %v", err)
	}
	defer rh.Close()

	if got := rh.LastAddConfirmed(); got != 2 {
		t.Fatalf("LastAddConfirmed = %d, want 2", got)
	}
}

func TestReadHandleMissingVersionMetadata(t *testing.T) {
	ctx := context.Background()
	store := offloadtest.NewMemStore()
	store.CreateBucket(ctx, "b")

	ref := ledger.Ref{LedgerID: "no-version", UUID: uuid.NewString()}
	// Put an index-shaped object directly, bypassing the offloader, so
	// it carries no format-version metadata.
	if err := store.PutObject(ctx, "b", ref.IndexKey(), nil, "application/octet-stream", bytes.NewReader([]byte{}), 0); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	off := newTestOffloader(t, store, "b", offload.MinBlockSize)
	_, err := off.ReadOffloaded(ctx, ref, 1<<16)
	if !offload.Is(err, offload.IncompatibleVersion) {
		t.Fatalf("ReadOffloaded error = %v, want IncompatibleVersion", err)
	}
}
