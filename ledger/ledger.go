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

// Package ledger defines the domain types shared between the offload
// engine and the broker's bookkeeping tier: ledger and entry
// identifiers, the opaque metadata blob, and the narrow reader
// capability a closed ledger must expose to be offloaded.
package ledger

import "context"

// ID identifies a ledger within the broker. The engine treats it as
// an opaque string; it never parses or interprets it.
type ID string

// EntryID is a ledger entry's 64-bit identifier. Entry IDs are
// monotonically increasing from 0 within a ledger. NoEntryID is the
// sentinel value reported when a stream has packed no entries.
type EntryID int64

// NoEntryID is returned by a stream that packed zero entries.
const NoEntryID EntryID = -1

// Metadata is the opaque, round-trippable ledger metadata blob
// (ensemble/quorum info, creation timestamp, custom properties). The
// engine stores and returns it verbatim.
type Metadata []byte

// Ref identifies one offload attempt of one ledger: the ledger's own
// ID plus the caller-chosen UUID that lets multiple historical
// offloads of the same ledger coexist side by side in the object
// store under distinct keys.
type Ref struct {
	LedgerID ID
	UUID     string
}

// DataKey returns the object key of the offloaded data object.
func (r Ref) DataKey() string {
	return r.UUID + "-ledger-" + string(r.LedgerID)
}

// IndexKey returns the object key of the offloaded index object.
func (r Ref) IndexKey() string {
	return r.DataKey() + "-index"
}

// Source is the narrow read capability the broker's bookkeeping tier
// must expose for a closed ledger to be offloaded. It is the
// downstream "ledger reader" collaborator this engine reads from.
type Source interface {
	// ID returns the ledger's identifier.
	ID() ID

	// Length returns the ledger's length in bytes, the sum of all
	// entry payload sizes.
	Length() int64

	// IsClosed reports whether the ledger has been closed (sealed)
	// by the bookkeeping tier. Open ledgers must never be offloaded.
	IsClosed() bool

	// LastAddConfirmed returns the largest entry ID durably written
	// to the ledger, or NoEntryID if the ledger has no entries.
	LastAddConfirmed() EntryID

	// Metadata returns the ledger's opaque metadata blob.
	Metadata() Metadata

	// ReadEntry returns the payload of entry id. It returns an error
	// if id is greater than LastAddConfirmed().
	ReadEntry(ctx context.Context, id EntryID) ([]byte, error)
}
