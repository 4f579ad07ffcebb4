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

// Package offload implements the Ledger Offload Engine: it moves
// closed, immutable ledgers into object storage and serves reads back
// from the object tier. See Offloader for the primary entry point.
package offload

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ledgerbroker/offload/internal/blockpool"
	"github.com/ledgerbroker/offload/ledger"
)

const contentTypeOctetStream = "application/octet-stream"

// Offloader is the Object-Tier Offloader (OTO): it orchestrates
// offload, read and delete of ledgers against a configured
// ObjectStore, dispatching each operation onto the engine's Lane so
// that operations on one ledger never interleave with each other.
type Offloader struct {
	store  ObjectStore
	bucket string
	cfg    Config
	lane   Lane
	pool   *blockpool.Pool

	openGroup singleflight.Group

	logMu  sync.Once
	logger *log.Logger
}

// NewOffloader constructs an Offloader over an already-validated
// Config, a driver-specific ObjectStore, and a Lane providing
// per-ledger serialization. Callers normally obtain store from
// s3store.New or gcsstore.New based on cfg.Driver.
func NewOffloader(cfg Config, store ObjectStore, lane Lane) (*Offloader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lane == nil {
		lane = NewKeyedLane(8)
	}
	return &Offloader{
		store:  store,
		bucket: cfg.Bucket,
		cfg:    cfg,
		lane:   lane,
		pool:   blockpool.New(int(cfg.MaxBlockSize)),
	}, nil
}

func (o *Offloader) log() *log.Logger {
	o.logMu.Do(func() {
		if o.logger == nil {
			o.logger = log.New(os.Stderr, "offload: ", log.LstdFlags)
		}
	})
	return o.logger
}

// Logf writes a best-effort diagnostic line (startup, compensation
// failures, recovery warnings). It is never used for the primary
// error path, which always returns a typed *Error instead.
func (o *Offloader) Logf(format string, args ...interface{}) {
	o.log().Printf(format, args...)
}

func (o *Offloader) userMetadata() map[string]string {
	return NormalizeMetadataKeys(map[string]string{
		MetaFormatVersion:   fmt.Sprintf("%d", CurrentVersion),
		MetaSoftwareVersion: o.cfg.SoftwareVersion,
		MetaSoftwareBuildID: o.cfg.SoftwareBuildID,
	})
}

// CreateBucket creates the configured bucket, administrative op.
func (o *Offloader) CreateBucket(ctx context.Context) error {
	if err := o.store.CreateBucket(ctx, o.bucket); err != nil {
		return errf(IOFailure, err, "create bucket %q", o.bucket)
	}
	return nil
}

// DeleteBucket deletes the configured bucket, administrative op.
func (o *Offloader) DeleteBucket(ctx context.Context) error {
	if err := o.store.DeleteBucket(ctx, o.bucket); err != nil {
		return errf(IOFailure, err, "delete bucket %q", o.bucket)
	}
	return nil
}

// Offload moves src to the object tier under ref, following
// §4.3's offload algorithm: preconditions, init index builder,
// initiate multipart upload, pack-and-upload loop, complete, build
// and upload the index, with best-effort compensation on failure.
func (o *Offloader) Offload(ctx context.Context, src ledger.Source, ref ledger.Ref, extraMetadata map[string]string) error {
	return o.lane.Run(ctx, ref.LedgerID, func(ctx context.Context) error {
		return o.offloadLocked(ctx, src, ref, extraMetadata)
	})
}

func (o *Offloader) offloadLocked(ctx context.Context, src ledger.Source, ref ledger.Ref, extraMetadata map[string]string) error {
	// 1. Preconditions.
	if src.Length() == 0 || !src.IsClosed() || src.LastAddConfirmed() < 0 {
		return errf(InvalidArgument, nil, "ledger %s is not a closed, non-empty ledger (length=%d closed=%v lac=%d)",
			src.ID(), src.Length(), src.IsClosed(), src.LastAddConfirmed())
	}

	dataKey := ref.DataKey()
	indexKey := ref.IndexKey()

	meta := o.userMetadata()
	for k, v := range extraMetadata {
		meta[k] = v
	}

	// 2. Init index builder.
	idx := NewIndexBuilder(src.Metadata()).WithDataBlockHeaderLength(uint32(DataBlockHeaderLen()))

	// 3. Initiate multipart upload.
	uploadID, err := o.store.CreateMultipartUpload(ctx, o.bucket, dataKey, meta, contentTypeOctetStream)
	if err != nil {
		return errf(IOFailure, err, "initiate multipart upload for %s", dataKey)
	}

	parts, dataObjectLength, err := o.uploadLoop(ctx, src, idx, dataKey, uploadID)
	if err != nil {
		o.abortMultipart(ctx, dataKey, uploadID)
		return err
	}

	// 5. Complete the multipart upload.
	if err := o.store.CompleteMultipartUpload(ctx, o.bucket, dataKey, uploadID, parts); err != nil {
		// No compensation: no index was uploaded, so no external
		// observer sees this offload as complete.
		return errf(IOFailure, err, "complete multipart upload for %s", dataKey)
	}

	// 6. Build and upload index object.
	idx.WithDataObjectLength(uint64(dataObjectLength))
	oib := idx.Build()
	if err := o.store.PutObject(ctx, o.bucket, indexKey, meta, contentTypeOctetStream, oib.ToStream(), oib.StreamSize()); err != nil {
		if delErr := o.store.DeleteObjects(ctx, o.bucket, []string{dataKey}); delErr != nil {
			o.Logf("offload %s: failed to delete orphaned data object %s after index upload failure: %v", ref.LedgerID, dataKey, delErr)
		}
		return errf(IOFailure, err, "upload index object %s", indexKey)
	}

	return nil
}

// uploadLoop runs the pack-and-upload loop.
func (o *Offloader) uploadLoop(ctx context.Context, src ledger.Source, idx *IndexBuilder, dataKey, uploadID string) ([]UploadedPart, int64, error) {
	var (
		parts            []UploadedPart
		startEntry       = ledger.EntryID(0)
		partID           = uint32(1)
		entryBytesWritten int64
		dataObjectLength int64
	)

	for {
		lac := src.LastAddConfirmed()
		if startEntry > lac {
			break
		}
		remainingEntries := int64(lac-startEntry) + 1
		remainingBytes := src.Length() - entryBytesWritten
		firstPayload, err := src.ReadEntry(ctx, startEntry)
		if err != nil {
			return nil, 0, errf(IOFailure, err, "read entry %d of ledger %s", startEntry, src.ID())
		}
		if int64(len(firstPayload)) > MaxEntrySize(o.cfg.MaxBlockSize) {
			return nil, 0, errf(InvalidArgument, nil, "entry %d of ledger %s is %d bytes, exceeds max entry size %d for block size %d",
				startEntry, src.ID(), len(firstPayload), MaxEntrySize(o.cfg.MaxBlockSize), o.cfg.MaxBlockSize)
		}
		blockSize := CalculateBlockSize(o.cfg.MaxBlockSize, remainingBytes, remainingEntries, int64(len(firstPayload)))

		stream := NewStream(ctx, src, startEntry, blockSize, o.cfg.MaxBlockSize).WithPool(o.pool)
		etag, err := o.store.UploadPart(ctx, o.bucket, dataKey, uploadID, int(partID), stream, blockSize)
		stream.Close()
		if err != nil {
			return nil, 0, errf(IOFailure, err, "upload part %d of %s", partID, dataKey)
		}
		parts = append(parts, UploadedPart{PartNumber: int(partID), ETag: etag})

		offset := dataObjectLength
		if err := idx.AddBlock(startEntry, partID, uint64(offset)); err != nil {
			return nil, 0, err
		}

		dataObjectLength += blockSize

		if stream.EndEntryID() == ledger.NoEntryID {
			break
		}
		entryBytesWritten += int64(stream.EntryBytesRead())
		startEntry = stream.EndEntryID() + 1
		partID++
	}

	return parts, dataObjectLength, nil
}

func (o *Offloader) abortMultipart(ctx context.Context, dataKey, uploadID string) {
	if err := o.store.AbortMultipartUpload(ctx, o.bucket, dataKey, uploadID); err != nil {
		o.Logf("abort multipart upload for %s (uploadId=%s): %v", dataKey, uploadID, err)
	}
}

// ReadOffloaded opens a Backed Read Handle for a previously offloaded
// ledger.
func (o *Offloader) ReadOffloaded(ctx context.Context, ref ledger.Ref, readBufferSize int64) (*ReadHandle, error) {
	var rh *ReadHandle
	err := o.lane.Run(ctx, ref.LedgerID, func(ctx context.Context) error {
		// The lane serializes operations on this ledger, so two opens
		// of the same index object through this Offloader never
		// overlap here; singleflight only deduplicates opens that do
		// overlap in time.
		sfKey := ref.IndexKey()
		v, err, _ := o.openGroup.Do(sfKey, func() (interface{}, error) {
			return openReadHandle(ctx, o.store, o.bucket, ref, readBufferSize)
		})
		if err != nil {
			return err
		}
		rh = v.(*ReadHandle)
		return nil
	})
	return rh, err
}

// DeleteOffloaded removes both objects for a previously offloaded
// ledger. Missing objects are treated as an idempotent no-op per
// deletes are idempotent: a missing object is not an error.
func (o *Offloader) DeleteOffloaded(ctx context.Context, ref ledger.Ref) error {
	return o.lane.Run(ctx, ref.LedgerID, func(ctx context.Context) error {
		keys := []string{ref.DataKey(), ref.IndexKey()}
		if err := o.store.DeleteObjects(ctx, o.bucket, keys); err != nil {
			return errf(IOFailure, err, "delete offloaded objects for ledger %s", ref.LedgerID)
		}
		return nil
	})
}
