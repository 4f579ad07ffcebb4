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
	"context"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/ledgerbroker/offload/ledger"
)

// ReadHandle is the Backed Read Handle (BRH): a random-access reader
// over an offloaded ledger's data object, backed by its already
// parsed index. It holds one range buffer plus the parsed index in
// memory; the buffer is readBufferSize bytes, or one entry's length
// when an entry is larger than that.
type ReadHandle struct {
	ctx            context.Context
	store          ObjectStore
	bucket         string
	ref            ledger.Ref
	oib            *OIB
	readBufferSize int64

	bufStart int64
	buf      []byte
}

// openReadHandle fetches the index object, checks its format-version
// metadata, and parses the OIB.
func openReadHandle(ctx context.Context, store ObjectStore, bucket string, ref ledger.Ref, readBufferSize int64) (*ReadHandle, error) {
	rc, info, err := store.GetObject(ctx, bucket, ref.IndexKey())
	if err != nil {
		return nil, errf(IOFailure, err, "fetch index object %s", ref.IndexKey())
	}
	defer rc.Close()

	if err := checkFormatVersion(info); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errf(IOFailure, err, "read index object %s", ref.IndexKey())
	}

	oib, err := DecodeOIB(data)
	if err != nil {
		return nil, err
	}

	if readBufferSize <= 0 {
		readBufferSize = 1 << 20
	}

	return &ReadHandle{
		ctx:            ctx,
		store:          store,
		bucket:         bucket,
		ref:            ref,
		oib:            oib,
		readBufferSize: readBufferSize,
		bufStart:       -1,
	}, nil
}

// checkFormatVersion reads the format-version user-metadata header
// and fails with IncompatibleVersion if it's absent or doesn't match
// CurrentVersion.
func checkFormatVersion(info ObjectInfo) error {
	meta := NormalizeMetadataKeys(info.UserMetadata)
	v, ok := meta[MetaFormatVersion]
	if !ok {
		return errf(IncompatibleVersion, nil, "object missing %q metadata", MetaFormatVersion)
	}
	n, err := strconv.Atoi(v)
	if err != nil || uint32(n) != CurrentVersion {
		return errf(IncompatibleVersion, nil, "object format version %q, want %d", v, CurrentVersion)
	}
	return nil
}

// ID returns the ledger ID this handle was opened for.
func (h *ReadHandle) ID() ledger.ID { return h.ref.LedgerID }

// Length returns the recorded data object length in bytes.
func (h *ReadHandle) Length() int64 { return int64(h.oib.DataObjectLength()) }

// LastAddConfirmed returns the highest entry ID covered by the index,
// found by scanning the final block's framed entries from its start
// until the first padding boundary. Returns ledger.NoEntryID if the
// index has no blocks.
func (h *ReadHandle) LastAddConfirmed() ledger.EntryID {
	start, end, firstEntryID, ok := h.oib.LastBlock()
	if !ok {
		return ledger.NoEntryID
	}
	H := int64(h.oib.DataBlockHeaderLen())
	offset := start + H
	last := ledger.NoEntryID
	id := firstEntryID
	for offset+entryFramingOverhead <= end {
		header, err := h.readAt(h.ctx, offset, entryFramingOverhead)
		if err != nil {
			return last
		}
		length := binary.BigEndian.Uint32(header[0:])
		if length == 0 {
			break
		}
		last = id
		offset += int64(entryFramingOverhead) + int64(length)
		id++
	}
	return last
}

// LedgerMetadata returns the opaque metadata blob stored alongside
// the ledger at offload time.
func (h *ReadHandle) LedgerMetadata() ledger.Metadata { return h.oib.LedgerMetadata() }

// Close discards the handle's range buffer.
func (h *ReadHandle) Close() error {
	h.buf = nil
	return nil
}

// Entry is one entry returned by Read.
type Entry struct {
	ID      ledger.EntryID
	Payload []byte
}

// Read serves readEntries(firstId, lastId): for each
// entry ID in [a, b], ensure the range buffer covers its header at
// the computed offset, issuing a single ranged GET per buffer miss,
// extending the read if a payload overruns the buffer.
func (h *ReadHandle) Read(ctx context.Context, a, b ledger.EntryID) ([]Entry, error) {
	if a > b {
		return nil, errf(InvalidArgument, nil, "read range [%d,%d] is empty or inverted", a, b)
	}

	blockOffset, blockEnd, blockFirstEntryID, err := h.oib.BlockRange(a)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	cur := a
	curOffset, err := h.offsetWithinBlock(ctx, blockOffset, blockFirstEntryID, cur)
	if err != nil {
		return nil, err
	}

	for cur <= b {
		if curOffset >= blockEnd {
			blockOffset, blockEnd, blockFirstEntryID, err = h.oib.BlockRange(cur)
			if err != nil {
				return nil, err
			}
			curOffset, err = h.offsetWithinBlock(ctx, blockOffset, blockFirstEntryID, cur)
			if err != nil {
				return nil, err
			}
		}

		header, err := h.readAt(ctx, curOffset, entryFramingOverhead)
		if err != nil {
			return nil, err
		}
		length := binary.BigEndian.Uint32(header[0:])
		entryID := ledger.EntryID(binary.BigEndian.Uint64(header[4:]))
		if length == 0 {
			// Zero padding: end of used space within this block.
			return entries, nil
		}
		if entryID != cur {
			return nil, errf(CorruptEntry, nil, "entry at offset %d has id %d, expected %d", curOffset, entryID, cur)
		}
		payload, err := h.readAt(ctx, curOffset+entryFramingOverhead, int64(length))
		if err != nil {
			return nil, err
		}
		p := make([]byte, len(payload))
		copy(p, payload)
		entries = append(entries, Entry{ID: cur, Payload: p})

		curOffset += int64(entryFramingOverhead) + int64(length)
		cur++
	}
	return entries, nil
}

// offsetWithinBlock scans linearly from a block's start to locate the
// byte offset of targetEntry. Blocks hold at most maxBlockSize/12
// entries, so a linear scan from the block start is bounded.
func (h *ReadHandle) offsetWithinBlock(ctx context.Context, blockOffset int64, blockFirstEntryID, targetEntry ledger.EntryID) (int64, error) {
	H := int64(h.oib.DataBlockHeaderLen())
	offset := blockOffset + H
	for id := blockFirstEntryID; id < targetEntry; id++ {
		header, err := h.readAt(ctx, offset, entryFramingOverhead)
		if err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(header[0:])
		entryID := ledger.EntryID(binary.BigEndian.Uint64(header[4:]))
		if length == 0 || entryID != id {
			return 0, errf(CorruptEntry, nil, "block at offset %d: expected entry %d at scan position, found id=%d length=%d", blockOffset, id, entryID, length)
		}
		offset += int64(entryFramingOverhead) + int64(length)
	}
	return offset, nil
}

// readAt ensures the range buffer covers [offset, offset+length) and
// returns a slice over it, refetching via a single ranged GET on a
// buffer miss.
func (h *ReadHandle) readAt(ctx context.Context, offset, length int64) ([]byte, error) {
	if h.buf != nil && offset >= h.bufStart && offset+length <= h.bufStart+int64(len(h.buf)) {
		start := offset - h.bufStart
		return h.buf[start : start+length], nil
	}

	readLen := h.readBufferSize
	if readLen < length {
		readLen = length
	}
	maxLen := h.Length() - offset
	if readLen > maxLen {
		readLen = maxLen
	}
	if readLen < length {
		return nil, errf(CorruptEntry, nil, "entry at offset %d extends past end of data object", offset)
	}

	rc, err := h.store.GetObjectRange(ctx, h.bucket, h.ref.DataKey(), offset, readLen)
	if err != nil {
		return nil, errf(IOFailure, err, "ranged read of %s at offset %d len %d", h.ref.DataKey(), offset, readLen)
	}
	defer rc.Close()

	buf := make([]byte, readLen)
	if _, err := io.ReadFull(rc, buf); err != nil {
		return nil, errf(IOFailure, err, "read ranged body of %s", h.ref.DataKey())
	}

	h.buf = buf
	h.bufStart = offset
	return h.buf[:length], nil
}
