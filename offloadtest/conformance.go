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
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/ledgerbroker/offload"
	"github.com/ledgerbroker/offload/ledger"
)

// Opts configures RunConformance and RunFuzzLaw, mirroring the
// teacher's own storagetest.Opts shape: New is required and returns a
// fresh ObjectStore plus an optional cleanup func.
type Opts struct {
	New func(*testing.T) (store offload.ObjectStore, cleanup func())

	// Bucket is the bucket name conformance tests create, use, and
	// tear down. Defaults to "offload-conformance".
	Bucket string

	// MaxBlockSize overrides the default (minimum) block size used
	// by conformance tests. Values below offload.MinBlockSize are
	// rejected by offload.Config.Validate.
	MaxBlockSize int64
}

func (o Opts) bucket() string {
	if o.Bucket != "" {
		return o.Bucket
	}
	return "offload-conformance"
}

func (o Opts) maxBlockSize() int64 {
	if o.MaxBlockSize != 0 {
		return o.MaxBlockSize
	}
	return offload.MinBlockSize
}

func newOffloader(t *testing.T, store offload.ObjectStore, bucket string, maxBlockSize int64) *offload.Offloader {
	t.Helper()
	cfg := offload.Config{
		Driver:         offload.DriverGCS,
		Bucket:         bucket,
		MaxBlockSize:   maxBlockSize,
		ReadBufferSize: 1 << 16,
	}
	off, err := offload.NewOffloader(cfg, store, offload.NewKeyedLane(4))
	if err != nil {
		t.Fatalf("NewOffloader: %v", err)
	}
	return off
}

// RunConformance exercises the round-trip, offload preconditions,
// idempotent delete, and corrupt-index-magic scenarios against a
// fresh bucket for each call.
func RunConformance(t *testing.T, opt Opts) {
	ctx := context.Background()
	store, cleanup := opt.New(t)
	if cleanup != nil {
		defer cleanup()
	}
	bucket := opt.bucket()
	if err := store.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}

	off := newOffloader(t, store, bucket, opt.maxBlockSize())

	t.Run("RoundTrip", func(t *testing.T) {
		testRoundTrip(t, ctx, off, store, bucket)
	})
	t.Run("PreconditionRejectsEmptyLedger", func(t *testing.T) {
		testInvalidArgument(t, ctx, off, NewFakeLedger("empty", nil))
	})
	t.Run("PreconditionRejectsOpenLedger", func(t *testing.T) {
		testInvalidArgument(t, ctx, off, NewFakeLedger("open", [][]byte{[]byte("x")}).Open())
	})
	t.Run("IdempotentDelete", func(t *testing.T) {
		testIdempotentDelete(t, ctx, off, store, bucket)
	})
	t.Run("CorruptIndexMagic", func(t *testing.T) {
		testCorruptIndexMagic(t, ctx, off, store, bucket)
	})
}

func testRoundTrip(t *testing.T, ctx context.Context, off *offload.Offloader, store offload.ObjectStore, bucket string) {
	entries := [][]byte{
		[]byte("alpha"),
		[]byte("beta-beta"),
		[]byte("gamma-gamma-gamma"),
	}
	src := NewFakeLedger("ledger-roundtrip", entries).WithMetadata(ledger.Metadata("ensemble=3,quorum=2"))
	ref := ledger.Ref{LedgerID: src.ID(), UUID: uuid.NewString()}

	if err := off.Offload(ctx, src, ref, nil); err != nil {
		t.Fatalf("Offload: %v", err)
	}
	if !store.(interface{ HasObject(string, string) bool }).HasObject(bucket, ref.DataKey()) {
		t.Fatalf("data object %s missing after successful offload", ref.DataKey())
	}
	if !store.(interface{ HasObject(string, string) bool }).HasObject(bucket, ref.IndexKey()) {
		t.Fatalf("index object %s missing after successful offload", ref.IndexKey())
	}

	rh, err := off.ReadOffloaded(ctx, ref, 1<<16)
	if err != nil {
		t.Fatalf("ReadOffloaded: %v", err)
	}
	defer rh.Close()

	if !bytes.Equal(rh.LedgerMetadata(), src.Metadata()) {
		t.Errorf("ledger metadata round-trip mismatch: got %q want %q", rh.LedgerMetadata(), src.Metadata())
	}

	got, err := rh.Read(ctx, 0, src.LastAddConfirmed())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Read returned %d entries, want %d", len(got), len(entries))
	}
	for i, e := range got {
		if e.ID != ledger.EntryID(i) {
			t.Errorf("entry %d has ID %d", i, e.ID)
		}
		if !bytes.Equal(e.Payload, entries[i]) {
			t.Errorf("entry %d payload = %q, want %q", i, e.Payload, entries[i])
		}
	}
}

func testInvalidArgument(t *testing.T, ctx context.Context, off *offload.Offloader, src *FakeLedger) {
	ref := ledger.Ref{LedgerID: src.ID(), UUID: uuid.NewString()}
	err := off.Offload(ctx, src, ref, nil)
	if !offload.Is(err, offload.InvalidArgument) {
		t.Fatalf("Offload error = %v, want InvalidArgument", err)
	}
}

func testIdempotentDelete(t *testing.T, ctx context.Context, off *offload.Offloader, store offload.ObjectStore, bucket string) {
	src := NewFakeLedger("ledger-delete", [][]byte{[]byte("only-entry")})
	ref := ledger.Ref{LedgerID: src.ID(), UUID: uuid.NewString()}
	if err := off.Offload(ctx, src, ref, nil); err != nil {
		t.Fatalf("Offload: %v", err)
	}
	if err := off.DeleteOffloaded(ctx, ref); err != nil {
		t.Fatalf("first DeleteOffloaded: %v", err)
	}
	if err := off.DeleteOffloaded(ctx, ref); err != nil {
		t.Fatalf("second DeleteOffloaded should be a no-op, got: %v", err)
	}
}

func testCorruptIndexMagic(t *testing.T, ctx context.Context, off *offload.Offloader, store offload.ObjectStore, bucket string) {
	mem, ok := store.(*MemStore)
	if !ok {
		t.Skip("corrupt-index scenario requires MemStore.CorruptIndexMagic")
	}
	src := NewFakeLedger("ledger-corrupt", [][]byte{[]byte("entry-a"), []byte("entry-b")})
	ref := ledger.Ref{LedgerID: src.ID(), UUID: uuid.NewString()}
	if err := off.Offload(ctx, src, ref, nil); err != nil {
		t.Fatalf("Offload: %v", err)
	}
	if err := mem.CorruptIndexMagic(bucket, ref.IndexKey()); err != nil {
		t.Fatalf("CorruptIndexMagic: %v", err)
	}
	_, err := off.ReadOffloaded(ctx, ref, 1<<16)
	if !offload.Is(err, offload.CorruptIndex) {
		t.Fatalf("ReadOffloaded after corrupting magic = %v, want CorruptIndex", err)
	}
}

// RunFuzzLaw checks that for random entry-length
// sequences summing to at most 10 MiB, with maxBlockSize drawn from
// {5 MiB, 8 MiB, 16 MiB}, offload-then-read reproduces the sequence
// exactly and the index's implied offsets match on-object offsets.
func RunFuzzLaw(t *testing.T, opt Opts, trials int) {
	ctx := context.Background()
	blockSizes := []int64{5 << 20, 8 << 20, 16 << 20}
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < trials; trial++ {
		store, cleanup := opt.New(t)
		bucket := fmt.Sprintf("%s-fuzz-%d", opt.bucket(), trial)
		if err := store.CreateBucket(ctx, bucket); err != nil {
			t.Fatalf("trial %d: CreateBucket: %v", trial, err)
		}
		maxBlockSize := blockSizes[rng.Intn(len(blockSizes))]
		off := newOffloader(t, store, bucket, maxBlockSize)

		entries := randomEntries(rng, 10<<20, int(maxBlockSize-int64(offload.DataBlockHeaderLen())-int64(offload.EntryFramingOverhead())))
		src := NewFakeLedger(ledger.ID(fmt.Sprintf("fuzz-%d", trial)), entries)
		ref := ledger.Ref{LedgerID: src.ID(), UUID: uuid.NewString()}

		if err := off.Offload(ctx, src, ref, nil); err != nil {
			t.Fatalf("trial %d (maxBlockSize=%d, %d entries): Offload: %v", trial, maxBlockSize, len(entries), err)
		}
		rh, err := off.ReadOffloaded(ctx, ref, 1<<16)
		if err != nil {
			t.Fatalf("trial %d: ReadOffloaded: %v", trial, err)
		}
		got, err := rh.Read(ctx, 0, ledger.EntryID(len(entries)-1))
		rh.Close()
		if err != nil {
			t.Fatalf("trial %d: Read: %v", trial, err)
		}
		if len(got) != len(entries) {
			t.Fatalf("trial %d: got %d entries, want %d", trial, len(got), len(entries))
		}
		for i, e := range got {
			if !bytes.Equal(e.Payload, entries[i]) {
				t.Fatalf("trial %d: entry %d mismatch: got %d bytes, want %d bytes", trial, i, len(e.Payload), len(entries[i]))
			}
		}
		if cleanup != nil {
			cleanup()
		}
	}
}

func randomEntries(rng *rand.Rand, totalBudget, maxEntrySize int) [][]byte {
	var entries [][]byte
	remaining := totalBudget
	for remaining > 0 {
		n := rng.Intn(maxEntrySize/4 + 1)
		if n == 0 {
			n = 1
		}
		if n > remaining {
			n = remaining
		}
		buf := make([]byte, n)
		rng.Read(buf)
		entries = append(entries, buf)
		remaining -= n
		if len(entries) > 4096 {
			break
		}
	}
	if len(entries) == 0 {
		entries = append(entries, []byte("x"))
	}
	return entries
}
