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

// Package offloadtest provides an in-memory offload.ObjectStore fake
// and a storage-conformance test harness, playing the role the
// teacher's blobserver/memory and blobserver/storagetest packages
// play for blob storage backends.
package offloadtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"sync"

	"github.com/ledgerbroker/offload"
)

type memObject struct {
	data []byte
	meta map[string]string
}

type memUpload struct {
	key   string
	parts map[int][]byte
	meta  map[string]string
}

// MemStore is a hermetic, in-memory offload.ObjectStore. It has no
// eventual-consistency window and no network errors unless injected
// via FailNextUploadPart, making it suitable for fast unit tests; the
// S3 and GCS adapters are exercised separately through interface-level
// conformance tests.
type MemStore struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]map[string]*memObject // bucket -> key -> object
	uploads map[string]*memUpload            // uploadID -> upload
	nextID  int

	failPartNumber int // if > 0, UploadPart for this part number fails once
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		buckets: make(map[string]bool),
		objects: make(map[string]map[string]*memObject),
		uploads: make(map[string]*memUpload),
	}
}

// FailNextUploadPart arranges for the next UploadPart call for the
// given part number to fail, simulating an upload failing partway
// injected failure fires once.
func (m *MemStore) FailNextUploadPart(partNumber int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPartNumber = partNumber
}

// CorruptIndexMagic overwrites the first 4 bytes of an already-stored
// index object with garbage, simulating on-disk corruption.
func (m *MemStore) CorruptIndexMagic(bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[bucket][key]
	if !ok {
		return fmt.Errorf("offloadtest: no object %s/%s", bucket, key)
	}
	if len(obj.data) < 4 {
		return fmt.Errorf("offloadtest: object %s/%s too short to corrupt", bucket, key)
	}
	copy(obj.data[:4], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	return nil
}

func (m *MemStore) CreateBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]*memObject)
	}
	return nil
}

func (m *MemStore) DeleteBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.objects[bucket]) > 0 {
		return fmt.Errorf("offloadtest: bucket %s not empty", bucket)
	}
	delete(m.buckets, bucket)
	delete(m.objects, bucket)
	return nil
}

func (m *MemStore) CreateMultipartUpload(ctx context.Context, bucket, key string, meta map[string]string, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("upload-%d", m.nextID)
	m.uploads[id] = &memUpload{key: key, parts: make(map[int][]byte), meta: meta}
	return id, nil
}

func (m *MemStore) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body io.Reader, size int64) (string, error) {
	b, err := ioutil.ReadAll(io.LimitReader(body, size))
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPartNumber != 0 && m.failPartNumber == partNumber {
		m.failPartNumber = 0
		return "", fmt.Errorf("offloadtest: injected failure on part %d", partNumber)
	}
	up, ok := m.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("offloadtest: no such upload %s", uploadID)
	}
	up.parts[partNumber] = b
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (m *MemStore) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []offload.UploadedPart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[uploadID]
	if !ok {
		return fmt.Errorf("offloadtest: no such upload %s", uploadID)
	}
	sorted := append([]offload.UploadedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	var buf bytes.Buffer
	for _, p := range sorted {
		data, ok := up.parts[p.PartNumber]
		if !ok {
			return fmt.Errorf("offloadtest: complete references missing part %d", p.PartNumber)
		}
		buf.Write(data)
	}

	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]*memObject)
	}
	m.objects[bucket][key] = &memObject{data: buf.Bytes(), meta: up.meta}
	delete(m.uploads, uploadID)
	return nil
}

func (m *MemStore) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, uploadID)
	return nil
}

func (m *MemStore) PutObject(ctx context.Context, bucket, key string, meta map[string]string, contentType string, body io.Reader, size int64) error {
	b, err := ioutil.ReadAll(io.LimitReader(body, size))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]*memObject)
	}
	m.objects[bucket][key] = &memObject{data: b, meta: meta}
	return nil
}

func (m *MemStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, offload.ObjectInfo, error) {
	m.mu.Lock()
	obj, ok := m.objects[bucket][key]
	m.mu.Unlock()
	if !ok {
		return nil, offload.ObjectInfo{}, fmt.Errorf("offloadtest: no object %s/%s", bucket, key)
	}
	return ioutil.NopCloser(bytes.NewReader(obj.data)), offload.ObjectInfo{Size: int64(len(obj.data)), UserMetadata: obj.meta}, nil
}

func (m *MemStore) GetObjectRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	m.mu.Lock()
	obj, ok := m.objects[bucket][key]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("offloadtest: no object %s/%s", bucket, key)
	}
	end := offset + length
	if end > int64(len(obj.data)) {
		end = int64(len(obj.data))
	}
	if offset > int64(len(obj.data)) {
		offset = int64(len(obj.data))
	}
	return ioutil.NopCloser(bytes.NewReader(obj.data[offset:end])), nil
}

func (m *MemStore) HeadObject(ctx context.Context, bucket, key string) (offload.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[bucket][key]
	if !ok {
		return offload.ObjectInfo{}, fmt.Errorf("offloadtest: no object %s/%s", bucket, key)
	}
	return offload.ObjectInfo{Size: int64(len(obj.data)), UserMetadata: obj.meta}, nil
}

func (m *MemStore) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects[bucket], k)
	}
	return nil
}

// HasObject reports whether bucket/key currently exists, for test
// assertions about commit atomicity.
func (m *MemStore) HasObject(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket][key]
	return ok
}
