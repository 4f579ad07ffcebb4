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
	"encoding/binary"
	"io"
	"sort"

	"github.com/ledgerbroker/offload/ledger"
)

// indexEntry is one row of the OIB's sorted lookup table.
type indexEntry struct {
	firstEntryID ledger.EntryID
	partID       uint32
	offset       uint64
}

// IndexBuilder accumulates block boundaries during an offload and
// produces the serialized Offload Index Block. Calls to AddBlock must
// happen in emission order; the builder does not reorder or
// deduplicate.
type IndexBuilder struct {
	meta             ledger.Metadata
	dataHeaderLen    uint32
	dataObjectLength uint64
	entries          []indexEntry

	lastFirstEntry ledger.EntryID
	lastPartID     uint32
	havePrior      bool
}

// NewIndexBuilder starts a builder for the given ledger metadata.
func NewIndexBuilder(meta ledger.Metadata) *IndexBuilder {
	return &IndexBuilder{meta: meta}
}

// WithDataBlockHeaderLength records H, the fixed data-block header
// size, into the index header.
func (b *IndexBuilder) WithDataBlockHeaderLength(h uint32) *IndexBuilder {
	b.dataHeaderLen = h
	return b
}

// WithDataObjectLength records the total size of the data object once
// known (after the last block has been uploaded).
func (b *IndexBuilder) WithDataObjectLength(l uint64) *IndexBuilder {
	b.dataObjectLength = l
	return b
}

// AddBlock records one emitted block. partID must start at 1 and
// strictly increase; firstEntryID must strictly increase; offset must
// be a multiple of the block size used to produce it. Returns an error
// (InvalidArgument) if the monotonicity invariants of the index table
// are violated.
func (b *IndexBuilder) AddBlock(firstEntryID ledger.EntryID, partID uint32, offset uint64) error {
	if b.havePrior {
		if firstEntryID <= b.lastFirstEntry {
			return errf(InvalidArgument, nil, "oib: firstEntryID %d does not strictly increase after %d", firstEntryID, b.lastFirstEntry)
		}
		if partID != b.lastPartID+1 {
			return errf(InvalidArgument, nil, "oib: partID %d is not the successor of %d", partID, b.lastPartID)
		}
	} else if partID != 1 {
		return errf(InvalidArgument, nil, "oib: first partID must be 1, got %d", partID)
	}
	b.entries = append(b.entries, indexEntry{firstEntryID: firstEntryID, partID: partID, offset: offset})
	b.lastFirstEntry = firstEntryID
	b.lastPartID = partID
	b.havePrior = true
	return nil
}

// Build finalizes the builder into an immutable OIB. The builder may
// not be reused afterward.
func (b *IndexBuilder) Build() *OIB {
	return &OIB{
		version:          CurrentVersion,
		meta:             b.meta,
		dataHeaderLen:    b.dataHeaderLen,
		dataObjectLength: b.dataObjectLength,
		entries:          b.entries,
	}
}

// OIB is the parsed or built in-memory form of an Offload Index
// Block: ledger metadata plus the sorted block-boundary table.
type OIB struct {
	version          uint32
	meta             ledger.Metadata
	dataHeaderLen    uint32
	dataObjectLength uint64
	entries          []indexEntry
}

// StreamSize returns the exact number of bytes ToStream will produce,
// needed up-front for the object store's content-length header.
func (o *OIB) StreamSize() int64 {
	return int64(indexFixedHeaderLen) + int64(len(o.meta)) + int64(len(o.entries))*int64(indexEntryLen)
}

// ToStream serializes the OIB in full. The returned reader is
// restartable in the sense that it reads from a freshly rendered
// buffer each call.
func (o *OIB) ToStream() io.Reader {
	buf := make([]byte, o.StreamSize())
	binary.BigEndian.PutUint32(buf[0:], indexMagic)
	binary.BigEndian.PutUint32(buf[4:], o.version)
	binary.BigEndian.PutUint32(buf[8:], uint32(len(o.entries)))
	binary.BigEndian.PutUint32(buf[12:], o.dataHeaderLen)
	binary.BigEndian.PutUint64(buf[16:], o.dataObjectLength)
	binary.BigEndian.PutUint32(buf[24:], uint32(len(o.meta)))

	pos := indexFixedHeaderLen
	copy(buf[pos:], o.meta)
	pos += len(o.meta)

	for _, e := range o.entries {
		binary.BigEndian.PutUint64(buf[pos:], uint64(e.firstEntryID))
		binary.BigEndian.PutUint32(buf[pos+8:], e.partID)
		binary.BigEndian.PutUint64(buf[pos+12:], e.offset)
		pos += indexEntryLen
	}
	return bytes.NewReader(buf)
}

// EntryCount returns the number of index entries (blocks) recorded.
func (o *OIB) EntryCount() int { return len(o.entries) }

// DataObjectLength returns the recorded total data object size.
func (o *OIB) DataObjectLength() uint64 { return o.dataObjectLength }

// LedgerMetadata returns the embedded ledger metadata blob.
func (o *OIB) LedgerMetadata() ledger.Metadata { return o.meta }

// DataBlockHeaderLen returns H as recorded in this index.
func (o *OIB) DataBlockHeaderLen() uint32 { return o.dataHeaderLen }

// Lookup performs a binary search for the block covering entryId,
// returning the part ID, the block's byte offset within the data
// object, and the first entry ID of that block. Returns
// EntryOutOfRange if entryId falls before the first recorded block or
// there are no blocks at all.
func (o *OIB) Lookup(entryID ledger.EntryID) (partID uint32, offset uint64, blockFirstEntryID ledger.EntryID, err error) {
	if len(o.entries) == 0 {
		return 0, 0, 0, errf(EntryOutOfRange, nil, "oib: index is empty, cannot locate entry %d", entryID)
	}
	i := sort.Search(len(o.entries), func(i int) bool {
		return o.entries[i].firstEntryID > entryID
	})
	if i == 0 {
		return 0, 0, 0, errf(EntryOutOfRange, nil, "oib: entry %d precedes first indexed block (firstEntryId=%d)", entryID, o.entries[0].firstEntryID)
	}
	e := o.entries[i-1]
	return e.partID, e.offset, e.firstEntryID, nil
}

// BlockRange returns the byte span [start, end) of the block covering
// entryId within the data object, along with the block's first entry
// ID. end is exclusive: the offset of the next block, or the data
// object's total length for the final block.
func (o *OIB) BlockRange(entryID ledger.EntryID) (start, end int64, blockFirstEntryID ledger.EntryID, err error) {
	if len(o.entries) == 0 {
		return 0, 0, 0, errf(EntryOutOfRange, nil, "oib: index is empty, cannot locate entry %d", entryID)
	}
	i := sort.Search(len(o.entries), func(i int) bool {
		return o.entries[i].firstEntryID > entryID
	})
	if i == 0 {
		return 0, 0, 0, errf(EntryOutOfRange, nil, "oib: entry %d precedes first indexed block (firstEntryId=%d)", entryID, o.entries[0].firstEntryID)
	}
	e := o.entries[i-1]
	start = int64(e.offset)
	if i < len(o.entries) {
		end = int64(o.entries[i].offset)
	} else {
		end = int64(o.dataObjectLength)
	}
	return start, end, e.firstEntryID, nil
}

// LastBlock returns the byte span and first entry ID of the final
// recorded block, for callers that need to scan it to find the
// highest entry ID actually present (the index itself only records
// block-starting entry IDs).
func (o *OIB) LastBlock() (start, end int64, firstEntryID ledger.EntryID, ok bool) {
	if len(o.entries) == 0 {
		return 0, 0, 0, false
	}
	last := o.entries[len(o.entries)-1]
	return int64(last.offset), int64(o.dataObjectLength), last.firstEntryID, true
}

// DecodeOIB parses a complete index object's bytes into an OIB. A
// magic or version mismatch, or a length inconsistent with the
// declared entry/metadata counts, fails with CorruptIndex.
func DecodeOIB(data []byte) (*OIB, error) {
	if len(data) < indexFixedHeaderLen {
		return nil, errf(CorruptIndex, nil, "oib: index object too short: %d bytes", len(data))
	}
	magic := binary.BigEndian.Uint32(data[0:])
	if magic != indexMagic {
		return nil, errf(CorruptIndex, nil, "oib: bad magic %#x", magic)
	}
	version := binary.BigEndian.Uint32(data[4:])
	if version != CurrentVersion {
		return nil, errf(CorruptIndex, nil, "oib: index format version %d, want %d", version, CurrentVersion)
	}
	entryCount := binary.BigEndian.Uint32(data[8:])
	dataHeaderLen := binary.BigEndian.Uint32(data[12:])
	dataObjectLength := binary.BigEndian.Uint64(data[16:])
	metaLen := binary.BigEndian.Uint32(data[24:])

	pos := indexFixedHeaderLen
	want := pos + int(metaLen) + int(entryCount)*indexEntryLen
	if want != len(data) {
		return nil, errf(CorruptIndex, nil, "oib: index object length %d, expected %d for %d entries and %d metadata bytes", len(data), want, entryCount, metaLen)
	}

	meta := make(ledger.Metadata, metaLen)
	copy(meta, data[pos:pos+int(metaLen)])
	pos += int(metaLen)

	entries := make([]indexEntry, entryCount)
	var prevFirst ledger.EntryID
	var prevPart uint32
	for i := 0; i < int(entryCount); i++ {
		first := ledger.EntryID(binary.BigEndian.Uint64(data[pos:]))
		part := binary.BigEndian.Uint32(data[pos+8:])
		off := binary.BigEndian.Uint64(data[pos+12:])
		if i > 0 {
			if first <= prevFirst {
				return nil, errf(CorruptIndex, nil, "oib: entry %d firstEntryId %d does not strictly increase after %d", i, first, prevFirst)
			}
			if part != prevPart+1 {
				return nil, errf(CorruptIndex, nil, "oib: entry %d partId %d is not the successor of %d", i, part, prevPart)
			}
		} else if part != 1 {
			return nil, errf(CorruptIndex, nil, "oib: first index entry has partId %d, want 1", part)
		}
		entries[i] = indexEntry{firstEntryID: first, partID: part, offset: off}
		prevFirst, prevPart = first, part
		pos += indexEntryLen
	}

	return &OIB{
		version:          version,
		meta:             meta,
		dataHeaderLen:    dataHeaderLen,
		dataObjectLength: dataObjectLength,
		entries:          entries,
	}, nil
}
