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
	"bytes"
	"io"
	"testing"

	"github.com/ledgerbroker/offload/ledger"
)

func buildTestOIB(t *testing.T) *OIB {
	t.Helper()
	b := NewIndexBuilder(ledger.Metadata("meta-blob")).WithDataBlockHeaderLength(dataBlockHeaderLen)
	if err := b.AddBlock(0, 1, 0); err != nil {
		t.Fatalf("AddBlock 1: %v", err)
	}
	if err := b.AddBlock(17, 2, 5<<20); err != nil {
		t.Fatalf("AddBlock 2: %v", err)
	}
	b.WithDataObjectLength(10 << 20)
	return b.Build()
}

func TestIndexBuilderRejectsOutOfOrder(t *testing.T) {
	b := NewIndexBuilder(nil)
	if err := b.AddBlock(0, 1, 0); err != nil {
		t.Fatalf("first AddBlock: %v", err)
	}
	if err := b.AddBlock(0, 2, 5<<20); err == nil {
		t.Fatal("expected error for non-increasing firstEntryId")
	}
	if err := b.AddBlock(5, 3, 5<<20); err == nil {
		t.Fatal("expected error for partId skipping ahead")
	}
}

func TestIndexBuilderRejectsFirstPartIDNotOne(t *testing.T) {
	b := NewIndexBuilder(nil)
	if err := b.AddBlock(0, 2, 0); err == nil {
		t.Fatal("expected error when first partId != 1")
	}
}

func TestOIBRoundTripsThroughEncoding(t *testing.T) {
	oib := buildTestOIB(t)
	data, err := io.ReadAll(oib.ToStream())
	if err != nil {
		t.Fatalf("ToStream: %v", err)
	}
	if int64(len(data)) != oib.StreamSize() {
		t.Fatalf("encoded length = %d, want StreamSize() = %d", len(data), oib.StreamSize())
	}

	decoded, err := DecodeOIB(data)
	if err != nil {
		t.Fatalf("DecodeOIB: %v", err)
	}
	if decoded.EntryCount() != 2 {
		t.Fatalf("EntryCount = %d, want 2", decoded.EntryCount())
	}
	if !bytes.Equal(decoded.LedgerMetadata(), []byte("meta-blob")) {
		t.Fatalf("LedgerMetadata = %q, want %q", decoded.LedgerMetadata(), "meta-blob")
	}
	if decoded.DataObjectLength() != 10<<20 {
		t.Fatalf("DataObjectLength = %d, want %d", decoded.DataObjectLength(), 10<<20)
	}
}

func TestOIBLookup(t *testing.T) {
	oib := buildTestOIB(t)

	partID, offset, firstEntryID, err := oib.Lookup(0)
	if err != nil {
		t.Fatalf("Lookup(0): %v", err)
	}
	if partID != 1 || offset != 0 || firstEntryID != 0 {
		t.Fatalf("Lookup(0) = (%d,%d,%d), want (1,0,0)", partID, offset, firstEntryID)
	}

	partID, offset, firstEntryID, err = oib.Lookup(16)
	if err != nil {
		t.Fatalf("Lookup(16): %v", err)
	}
	if partID != 1 || offset != 0 || firstEntryID != 0 {
		t.Fatalf("Lookup(16) = (%d,%d,%d), want (1,0,0)", partID, offset, firstEntryID)
	}

	partID, offset, firstEntryID, err = oib.Lookup(17)
	if err != nil {
		t.Fatalf("Lookup(17): %v", err)
	}
	if partID != 2 || offset != 5<<20 || firstEntryID != 17 {
		t.Fatalf("Lookup(17) = (%d,%d,%d), want (2,%d,17)", partID, offset, firstEntryID, 5<<20)
	}
}

func TestOIBLookupOutOfRange(t *testing.T) {
	oib := buildTestOIB(t)
	if _, _, _, err := oib.Lookup(-1); !Is(err, EntryOutOfRange) {
		t.Fatalf("Lookup(-1) error = %v, want EntryOutOfRange", err)
	}

	empty := NewIndexBuilder(nil).Build()
	if _, _, _, err := empty.Lookup(0); !Is(err, EntryOutOfRange) {
		t.Fatalf("Lookup on empty index error = %v, want EntryOutOfRange", err)
	}
}

func TestDecodeOIBBadMagic(t *testing.T) {
	oib := buildTestOIB(t)
	data, err := io.ReadAll(oib.ToStream())
	if err != nil {
		t.Fatalf("ToStream: %v", err)
	}
	data[0] ^= 0xFF
	if _, err := DecodeOIB(data); !Is(err, CorruptIndex) {
		t.Fatalf("DecodeOIB with corrupt magic error = %v, want CorruptIndex", err)
	}
}

func TestDecodeOIBTruncated(t *testing.T) {
	if _, err := DecodeOIB([]byte{1, 2, 3}); !Is(err, CorruptIndex) {
		t.Fatal("expected CorruptIndex for truncated index bytes")
	}
}

func TestDecodeOIBWrongVersion(t *testing.T) {
	oib := buildTestOIB(t)
	data, err := io.ReadAll(oib.ToStream())
	if err != nil {
		t.Fatalf("ToStream: %v", err)
	}
	data[7] = 99 // low byte of the big-endian version field
	if _, err := DecodeOIB(data); !Is(err, CorruptIndex) {
		t.Fatalf("DecodeOIB with bad version error = %v, want CorruptIndex", err)
	}
}

func TestBlockRange(t *testing.T) {
	oib := buildTestOIB(t)
	start, end, first, err := oib.BlockRange(5)
	if err != nil {
		t.Fatalf("BlockRange(5): %v", err)
	}
	if start != 0 || end != 5<<20 || first != 0 {
		t.Fatalf("BlockRange(5) = (%d,%d,%d), want (0,%d,0)", start, end, first, int64(5<<20))
	}
	start, end, first, err = oib.BlockRange(17)
	if err != nil {
		t.Fatalf("BlockRange(17): %v", err)
	}
	if start != 5<<20 || end != 10<<20 || first != 17 {
		t.Fatalf("BlockRange(17) = (%d,%d,%d), want (%d,%d,17)", start, end, first, int64(5<<20), int64(10<<20))
	}
}
