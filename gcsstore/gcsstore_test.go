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

package gcsstore

import (
	"strings"
	"testing"

	"github.com/ledgerbroker/offload"
)

// Adapters are exercised only through interface-level tests: there is
// no live GCS in this environment, so correctness of wire calls is
// covered by the interface-level conformance suite against MemStore;
// here we check the parts of gcsstore that are pure logic.
var _ offload.ObjectStore = (*Store)(nil)

func TestPartKeyIsUniquePerUploadAndPartNumber(t *testing.T) {
	a := partKey("ledger-data", "upload-1", 1)
	b := partKey("ledger-data", "upload-1", 2)
	c := partKey("ledger-data", "upload-2", 1)

	if a == b {
		t.Fatalf("part keys for distinct part numbers collided: %q", a)
	}
	if a == c {
		t.Fatalf("part keys for distinct upload IDs collided: %q", a)
	}
	if !strings.HasPrefix(a, "ledger-data.part-upload-1-") {
		t.Fatalf("part key %q doesn't carry the final key as a prefix", a)
	}
}

func TestPartKeyOrdersNumerically(t *testing.T) {
	// Part numbers are zero-padded so that lexical (prefix-listing)
	// order matches numeric order, which AbortMultipartUpload's
	// prefix sweep relies on being stable, not ordered, but a
	// consistent width still avoids "10" sorting before "2".
	nine := partKey("k", "u", 9)
	ten := partKey("k", "u", 10)
	if !(nine < ten) {
		t.Fatalf("partKey(9) = %q should sort before partKey(10) = %q", nine, ten)
	}
}
