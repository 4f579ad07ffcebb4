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

package s3store

import (
	"testing"

	"github.com/ledgerbroker/offload"
)

// Adapters are exercised only through interface-level tests: there is
// no live S3 in this environment, so correctness of wire calls is
// covered by the interface-level conformance suite against MemStore;
// here we check the parts of s3store that are pure logic.
var _ offload.ObjectStore = (*Store)(nil)

func TestBatchKeysSplitsAtMax(t *testing.T) {
	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = string(rune('a' + i%26))
	}
	batches := batchKeys(keys, 1000)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[0]) != 1000 || len(batches[1]) != 1000 || len(batches[2]) != 500 {
		t.Fatalf("batch sizes = %d,%d,%d, want 1000,1000,500", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestBatchKeysEmpty(t *testing.T) {
	if batches := batchKeys(nil, 1000); len(batches) != 0 {
		t.Fatalf("batchKeys(nil) = %v, want no batches", batches)
	}
}

func TestBatchKeysUnderMax(t *testing.T) {
	batches := batchKeys([]string{"a", "b"}, 1000)
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batchKeys of 2 keys under max = %v, want one batch of 2", batches)
	}
}
