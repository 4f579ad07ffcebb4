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

package ledger

import "testing"

func TestRefKeysAreDerivedAndDistinct(t *testing.T) {
	r := Ref{LedgerID: "ledger-42", UUID: "abc-123"}

	data := r.DataKey()
	index := r.IndexKey()

	if data == "" || index == "" {
		t.Fatalf("DataKey/IndexKey must not be empty: data=%q index=%q", data, index)
	}
	if data == index {
		t.Fatalf("DataKey and IndexKey must differ, both were %q", data)
	}
	if index[:len(data)] != data {
		t.Fatalf("IndexKey %q should be derived from DataKey %q", index, data)
	}
}

func TestRefKeysVaryByLedgerAndUUID(t *testing.T) {
	a := Ref{LedgerID: "ledger-1", UUID: "u1"}
	b := Ref{LedgerID: "ledger-2", UUID: "u1"}
	c := Ref{LedgerID: "ledger-1", UUID: "u2"}

	if a.DataKey() == b.DataKey() {
		t.Fatalf("refs with different ledger IDs produced the same data key %q", a.DataKey())
	}
	if a.DataKey() == c.DataKey() {
		t.Fatalf("refs with different UUIDs produced the same data key %q", a.DataKey())
	}
	if a.IndexKey() == b.IndexKey() || a.IndexKey() == c.IndexKey() {
		t.Fatal("refs that differ should produce distinct index keys")
	}
}

func TestNoEntryIDSentinel(t *testing.T) {
	if NoEntryID >= 0 {
		t.Fatalf("NoEntryID = %d, want a negative sentinel distinguishable from any real entry ID", NoEntryID)
	}
}
