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
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/ledgerbroker/offload/ledger"
)

type testSrc struct {
	entries [][]byte
}

func (s *testSrc) ID() ledger.ID   { return "test" }
func (s *testSrc) IsClosed() bool  { return true }
func (s *testSrc) Metadata() ledger.Metadata { return nil }
func (s *testSrc) Length() int64 {
	var n int64
	for _, e := range s.entries {
		n += int64(len(e))
	}
	return n
}
func (s *testSrc) LastAddConfirmed() ledger.EntryID {
	if len(s.entries) == 0 {
		return ledger.NoEntryID
	}
	return ledger.EntryID(len(s.entries) - 1)
}
func (s *testSrc) ReadEntry(ctx context.Context, id ledger.EntryID) ([]byte, error) {
	return s.entries[id], nil
}

func drain(t *testing.T, r io.Reader, n int64) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	return buf
}

func TestStreamPacksWholeBlock(t *testing.T) {
	src := &testSrc{entries: [][]byte{
		bytes.Repeat([]byte{1}, 100),
		bytes.Repeat([]byte{2}, 200),
		bytes.Repeat([]byte{3}, 300),
	}}
	const blockSize = 5 << 20
	s := NewStream(context.Background(), src, 0, blockSize, blockSize)
	buf := drain(t, s, blockSize)

	if got := binary.BigEndian.Uint32(buf[0:]); got != dataBlockMagic {
		t.Fatalf("magic = %#x, want %#x", got, dataBlockMagic)
	}
	if got := binary.BigEndian.Uint64(buf[8:]); got != 0 {
		t.Fatalf("firstEntryId = %d, want 0", got)
	}
	if got := binary.BigEndian.Uint32(buf[16:]); got != 3 {
		t.Fatalf("entryCount = %d, want 3", got)
	}
	if s.EndEntryID() != 2 {
		t.Fatalf("EndEntryID = %d, want 2", s.EndEntryID())
	}
	if s.EntryBytesRead() != 600 {
		t.Fatalf("EntryBytesRead = %d, want 600", s.EntryBytesRead())
	}

	pos := dataBlockHeaderLen
	for i, want := range src.entries {
		length := binary.BigEndian.Uint32(buf[pos:])
		id := binary.BigEndian.Uint64(buf[pos+4:])
		if int(length) != len(want) {
			t.Fatalf("entry %d length = %d, want %d", i, length, len(want))
		}
		if id != uint64(i) {
			t.Fatalf("entry %d id = %d, want %d", i, id, i)
		}
		got := buf[pos+entryFramingOverhead : pos+entryFramingOverhead+len(want)]
		if !bytes.Equal(got, want) {
			t.Fatalf("entry %d payload mismatch", i)
		}
		pos += entryFramingOverhead + len(want)
	}
	// Remainder must be zero padding.
	for _, b := range buf[pos:] {
		if b != 0 {
			t.Fatalf("non-zero byte in padding at offset %d", pos)
		}
	}
}

func TestStreamSplitsAtBlockBoundary(t *testing.T) {
	// entry 0 is exactly as large as the available block budget minus
	// framing, so entry 1 must start a new block.
	const blockSize = dataBlockHeaderLen + entryFramingOverhead + 10
	src := &testSrc{entries: [][]byte{
		bytes.Repeat([]byte{0xAA}, 10),
		bytes.Repeat([]byte{0xBB}, 5),
	}}
	s := NewStream(context.Background(), src, 0, blockSize, blockSize)
	drain(t, s, blockSize)
	if s.EndEntryID() != 0 {
		t.Fatalf("EndEntryID = %d, want 0 (entry 1 should not fit)", s.EndEntryID())
	}

	s2 := NewStream(context.Background(), src, 1, blockSize, blockSize)
	buf2 := drain(t, s2, blockSize)
	if s2.EndEntryID() != 1 {
		t.Fatalf("second stream EndEntryID = %d, want 1", s2.EndEntryID())
	}
	id := binary.BigEndian.Uint64(buf2[dataBlockHeaderLen+4:])
	if id != 1 {
		t.Fatalf("second block's first entry id = %d, want 1", id)
	}
}

func TestStreamEntryTooLargeFails(t *testing.T) {
	const maxBlockSize = 5 << 20
	tooLarge := make([]byte, MaxEntrySize(maxBlockSize)+1)
	src := &testSrc{entries: [][]byte{tooLarge}}
	s := NewStream(context.Background(), src, 0, maxBlockSize, maxBlockSize)
	_, err := io.ReadAll(s)
	if !Is(err, InvalidArgument) {
		t.Fatalf("error for oversized entry = %v, want InvalidArgument", err)
	}
}

func TestStreamNoEntriesAtStart(t *testing.T) {
	src := &testSrc{entries: [][]byte{[]byte("only")}}
	const blockSize = 5 << 20
	s := NewStream(context.Background(), src, 1, blockSize, blockSize)
	drain(t, s, blockSize)
	if s.EndEntryID() != ledger.NoEntryID {
		t.Fatalf("EndEntryID = %d, want NoEntryID (LAC already reached)", s.EndEntryID())
	}
}

func TestCalculateBlockSizeTrimsFinalBlock(t *testing.T) {
	const maxBlockSize = 5 << 20
	size := CalculateBlockSize(maxBlockSize, 300, 3, 100)
	want := int64(dataBlockHeaderLen) + 300 + 3*entryFramingOverhead
	if size != want {
		t.Fatalf("CalculateBlockSize = %d, want %d", size, want)
	}
	if size >= maxBlockSize {
		t.Fatalf("expected trimmed block size below max, got %d", size)
	}
}

func TestCalculateBlockSizeCapsAtMax(t *testing.T) {
	const maxBlockSize = 5 << 20
	size := CalculateBlockSize(maxBlockSize, 100<<20, 1000, 100)
	if size != maxBlockSize {
		t.Fatalf("CalculateBlockSize = %d, want %d", size, maxBlockSize)
	}
}
