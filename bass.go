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
	"fmt"
	"io"

	"github.com/ledgerbroker/offload/internal/blockpool"
	"github.com/ledgerbroker/offload/ledger"
)

// Stream is the Block-Aware Segment Streamer (BASS). It
// produces a lazy byte sequence of exactly blockSize bytes: a
// fixed-size header followed by as many whole framed entries as fit,
// padded at the tail with zeroes.
//
// A Stream is single-use: create one per block, Read it to
// completion (or at least until EOF), then discard it.
type Stream struct {
	ctx          context.Context
	src          ledger.Source
	startEntry   ledger.EntryID
	blockSize    int64
	maxBlockSize int64

	endEntryID     ledger.EntryID
	entryBytesRead uint64

	pool *blockpool.Pool // optional; supplies reusable block buffers

	buf []byte // fully materialized block contents, lazily built
	off int    // read cursor into buf
	err error
}

// NewStream constructs a BASS over src, starting at startEntry, that
// will emit exactly blockSize bytes. maxBlockSize bounds the maximum
// entry size that may be packed ("entry larger than
// maxBlockSize - H - 12 is rejected").
func NewStream(ctx context.Context, src ledger.Source, startEntry ledger.EntryID, blockSize, maxBlockSize int64) *Stream {
	return &Stream{
		ctx:          ctx,
		src:          src,
		startEntry:   startEntry,
		blockSize:    blockSize,
		maxBlockSize: maxBlockSize,
		endEntryID:   ledger.NoEntryID,
	}
}

// WithPool supplies a blockpool.Pool the Stream draws its backing
// buffer from instead of allocating one with make. The pool must hand
// out buffers of capacity >= blockSize; Close returns the buffer to
// the pool. Returns s for chaining.
func (s *Stream) WithPool(pool *blockpool.Pool) *Stream {
	s.pool = pool
	return s
}

// pack builds the full block into s.buf. It runs lazily on the first
// Read so that constructing a Stream never blocks.
func (s *Stream) pack() error {
	H := dataBlockHeaderLen
	buf := s.allocBuf()

	var (
		pos        = H
		firstEntry = s.startEntry
		entryCount uint32
		entryBytes uint64
		endEntryID = ledger.NoEntryID
	)

	lac := s.src.LastAddConfirmed()
	cur := s.startEntry
	for cur <= lac {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}
		payload, err := s.src.ReadEntry(s.ctx, cur)
		if err != nil {
			return fmt.Errorf("bass: read entry %d: %w", cur, err)
		}
		need := entryFramingOverhead + len(payload)
		if int64(len(payload)) > MaxEntrySize(s.maxBlockSize) {
			return errf(InvalidArgument, nil, "bass: entry %d of %d bytes exceeds max entry size %d", cur, len(payload), MaxEntrySize(s.maxBlockSize))
		}
		if pos+need > len(buf) {
			break
		}
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(payload)))
		binary.BigEndian.PutUint64(buf[pos+4:], uint64(cur))
		copy(buf[pos+entryFramingOverhead:], payload)
		pos += need
		entryBytes += uint64(len(payload))
		entryCount++
		endEntryID = cur
		cur++
	}

	// The remainder of buf is already zero: allocBuf zeroes pooled
	// buffers and make zeroes fresh ones.
	binary.BigEndian.PutUint32(buf[0:], dataBlockMagic)
	binary.BigEndian.PutUint32(buf[4:], uint32(s.blockSize))
	binary.BigEndian.PutUint64(buf[8:], uint64(firstEntry))
	binary.BigEndian.PutUint32(buf[16:], entryCount)
	// bytes [20:H) stay zero: reserved/padding area.

	s.buf = buf
	s.endEntryID = endEntryID
	s.entryBytesRead = entryBytes
	return nil
}

// Read implements io.Reader, yielding the block's bytes.
func (s *Stream) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.buf == nil {
		if err := s.pack(); err != nil {
			s.err = err
			return 0, err
		}
	}
	if s.off >= len(s.buf) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.off:])
	s.off += n
	return n, nil
}

// EndEntryID returns the last entry ID packed into the block, or
// ledger.NoEntryID if none were packed. Valid only after the stream
// has been read at least once (packing is lazy).
func (s *Stream) EndEntryID() ledger.EntryID {
	return s.endEntryID
}

// EntryBytesRead returns the total payload bytes (excluding framing)
// packed into the block.
func (s *Stream) EntryBytesRead() uint64 {
	return s.entryBytesRead
}

// allocBuf returns a zeroed buffer of exactly s.blockSize bytes,
// drawing from s.pool when one is set.
func (s *Stream) allocBuf() []byte {
	if s.pool == nil {
		return make([]byte, s.blockSize)
	}
	b := s.pool.Get()
	for i := range b[:s.blockSize] {
		b[i] = 0
	}
	return b[:s.blockSize]
}

// Close releases the stream's backing buffer, returning it to the
// pool when one was set.
func (s *Stream) Close() error {
	if s.pool != nil && s.buf != nil {
		s.pool.Put(s.buf[:cap(s.buf)])
	}
	s.buf = nil
	return nil
}

// CalculateBlockSize returns the size of the next block to emit for a
// ledger whose LastAddConfirmed entry leaves at most
// remainingLedgerBytes of payload from startEntry onward:
//
//	min(maxBlockSize, H + remainingLedgerBytes + framingOverheadEstimate)
//
// trimming the final block so offload doesn't overshoot ledger.Length.
// firstEntryLen is the size of the first entry to be packed (used to
// guarantee the returned size is at least large enough to hold one
// entry).
func CalculateBlockSize(maxBlockSize int64, remainingLedgerBytes int64, remainingEntryCount int64, firstEntryLen int64) int64 {
	framingOverhead := remainingEntryCount * entryFramingOverhead
	want := int64(dataBlockHeaderLen) + remainingLedgerBytes + framingOverhead
	size := want
	if size > maxBlockSize {
		size = maxBlockSize
	}
	minNeeded := int64(dataBlockHeaderLen) + entryFramingOverhead + firstEntryLen
	if size < minNeeded {
		size = minNeeded
	}
	if size > maxBlockSize {
		size = maxBlockSize
	}
	return size
}
