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

// Package gcsstore implements offload.ObjectStore on top of Google
// Cloud Storage. GCS has no native multipart upload API, so the
// multipart contract is emulated with per-part temporary objects
// composed together on completion.
package gcsstore

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ledgerbroker/offload"
)

// maxComposeSources is the largest number of source objects a single
// GCS compose call accepts.
const maxComposeSources = 32

// Store is an offload.ObjectStore backed by a
// cloud.google.com/go/storage client.
type Store struct {
	client *storage.Client

	logOnce sync.Once
	logger  *log.Logger
}

// New builds a Store. cfg.GCSServiceAccountFile, if set, is read
// eagerly here; an
// empty value falls back to application default credentials.
func New(ctx context.Context, cfg offload.Config) (*Store, error) {
	var opts []option.ClientOption
	if cfg.GCSServiceAccountFile != "" {
		if _, err := os.Stat(cfg.GCSServiceAccountFile); err != nil {
			return nil, fmt.Errorf("gcsstore: service account file: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.GCSServiceAccountFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: new client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) log() *log.Logger {
	s.logOnce.Do(func() {
		if s.logger == nil {
			s.logger = log.New(os.Stderr, "gcsstore: ", log.LstdFlags)
		}
	})
	return s.logger
}

func (s *Store) CreateBucket(ctx context.Context, bucket string) error {
	return s.client.Bucket(bucket).Create(ctx, "", nil)
}

func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	return s.client.Bucket(bucket).Delete(ctx)
}

// partKey names the temporary per-part object backing one multipart
// upload part. GCS is flat, so uploadID (opaque, unique per upload)
// plus the part number is enough to avoid collisions between
// concurrent uploads of the same final key.
func partKey(key, uploadID string, partNumber int) string {
	return fmt.Sprintf("%s.part-%s-%04d", key, uploadID, partNumber)
}

// CreateMultipartUpload returns an opaque uploadID; no server-side
// call is made, mirroring that GCS doesn't have a native multipart
// concept to initiate. meta and contentType are not recorded, so the
// object produced by CompleteMultipartUpload has no user metadata.
func (s *Store) CreateMultipartUpload(ctx context.Context, bucket, key string, meta map[string]string, contentType string) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body io.Reader, size int64) (string, error) {
	name := partKey(key, uploadID, partNumber)
	w := s.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return "", fmt.Errorf("gcsstore: write part %d of %s: %w", partNumber, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcsstore: close part %d of %s: %w", partNumber, key, err)
	}
	return name, nil
}

// CompleteMultipartUpload composes the temporary part objects (in
// part-number order) into the final key, fanning in through a tree
// of compose calls when there are more than maxComposeSources parts,
// then deletes the temporaries. The composed object carries no user
// metadata.
func (s *Store) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []offload.UploadedPart) error {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = partKey(key, uploadID, p.PartNumber)
	}

	_, tmps, err := s.composeTree(ctx, bucket, key, names, offload.NormalizeMetadataKeys(nil), "application/octet-stream")
	if err != nil {
		s.deleteBestEffort(ctx, bucket, names)
		return err
	}

	allTmps := append(append([]string{}, tmps...), names...)
	s.deleteBestEffort(ctx, bucket, allTmps)
	return nil
}

// composeTree composes names (part objects, in order) into dst
// through a tree fan-in: whenever there are more than
// maxComposeSources remaining at a level, the level is first reduced
// by composing maxComposeSources-sized groups into new temporary
// objects, until the final compose call writes directly to dst. A
// single part is copied to dst instead of composed. It returns dst
// and any intermediate temporary object names created along the way,
// for cleanup.
func (s *Store) composeTree(ctx context.Context, bucket, dst string, names []string, meta map[string]string, contentType string) (string, []string, error) {
	if len(names) == 0 {
		return "", nil, fmt.Errorf("gcsstore: compose of zero parts for %s", dst)
	}
	if len(names) == 1 {
		if _, err := s.client.Bucket(bucket).Object(dst).CopierFrom(s.client.Bucket(bucket).Object(names[0])).Run(ctx); err != nil {
			return "", nil, fmt.Errorf("gcsstore: copy single part into %s: %w", dst, err)
		}
		return dst, nil, nil
	}

	level := names
	var allTemps []string
	for len(level) > maxComposeSources {
		next := make([]string, (len(level)+maxComposeSources-1)/maxComposeSources)
		var mu sync.Mutex
		var eg errgroup.Group
		for i := 0; i < len(level); i += maxComposeSources {
			end := i + maxComposeSources
			if end > len(level) {
				end = len(level)
			}
			group := level[i:end]
			slot := i / maxComposeSources
			tmpName := fmt.Sprintf("%s.compose-tmp-%p", dst, &group)
			eg.Go(func() error {
				if err := s.composeOnce(ctx, bucket, tmpName, group, nil, contentType); err != nil {
					return err
				}
				mu.Lock()
				next[slot] = tmpName
				allTemps = append(allTemps, tmpName)
				mu.Unlock()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return "", allTemps, err
		}
		level = next
	}

	if err := s.composeOnce(ctx, bucket, dst, level, meta, contentType); err != nil {
		return "", allTemps, err
	}
	return dst, allTemps, nil
}

func (s *Store) composeOnce(ctx context.Context, bucket, dst string, srcs []string, meta map[string]string, contentType string) error {
	dstObj := s.client.Bucket(bucket).Object(dst)
	srcObjs := make([]*storage.ObjectHandle, len(srcs))
	for i, n := range srcs {
		srcObjs[i] = s.client.Bucket(bucket).Object(n)
	}
	composer := dstObj.ComposerFrom(srcObjs...)
	composer.ContentType = contentType
	if len(meta) > 0 {
		composer.Metadata = meta
	}
	_, err := composer.Run(ctx)
	if err != nil {
		return fmt.Errorf("gcsstore: compose %d sources into %s: %w", len(srcs), dst, err)
	}
	return nil
}

func (s *Store) deleteBestEffort(ctx context.Context, bucket string, names []string) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if err := s.client.Bucket(bucket).Object(n).Delete(ctx); err != nil {
			s.log().Printf("cleanup of temporary object %s/%s: %v", bucket, n, err)
		}
	}
}

// AbortMultipartUpload deletes whatever temporary part objects have
// been written for uploadID so far. Since GCS has no server-side
// upload-ID registry, the part objects are found by listing the
// uploadID's part-key prefix, as a best-effort sweep.
func (s *Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: fmt.Sprintf("%s.part-%s-", key, uploadID)})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("gcsstore: list parts for abort of %s: %w", key, err)
		}
		names = append(names, attrs.Name)
	}
	s.deleteBestEffort(ctx, bucket, names)
	return nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, meta map[string]string, contentType string, body io.Reader, size int64) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = offload.NormalizeMetadataKeys(meta)
	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("gcsstore: write %s: %w", key, err)
	}
	return w.Close()
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, offload.ObjectInfo, error) {
	obj := s.client.Bucket(bucket).Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, offload.ObjectInfo{}, fmt.Errorf("gcsstore: head %s: %w", key, err)
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, offload.ObjectInfo{}, fmt.Errorf("gcsstore: read %s: %w", key, err)
	}
	return r, attrsToInfo(attrs), nil
}

func (s *Store) GetObjectRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: ranged read %s at %d+%d: %w", key, offset, length, err)
	}
	return r, nil
}

func (s *Store) HeadObject(ctx context.Context, bucket, key string) (offload.ObjectInfo, error) {
	attrs, err := s.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		return offload.ObjectInfo{}, fmt.Errorf("gcsstore: head %s: %w", key, err)
	}
	return attrsToInfo(attrs), nil
}

func attrsToInfo(attrs *storage.ObjectAttrs) offload.ObjectInfo {
	return offload.ObjectInfo{
		Size:         attrs.Size,
		UserMetadata: offload.NormalizeMetadataKeys(attrs.Metadata),
	}
}

func (s *Store) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	var eg errgroup.Group
	for _, k := range keys {
		k := k
		eg.Go(func() error {
			err := s.client.Bucket(bucket).Object(k).Delete(ctx)
			if err == storage.ErrObjectNotExist {
				return nil
			}
			if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 404 {
				return nil
			}
			return err
		})
	}
	return eg.Wait()
}
