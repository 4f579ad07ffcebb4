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

// On-object binary layout constants. All multi-byte integers are
// big-endian.
const (
	// MinBlockSize is the minimum (and default) block size: 5 MiB,
	// aligning with the multipart minimums of the supported object
	// stores.
	MinBlockSize int64 = 5 << 20

	// dataBlockHeaderLen is the fixed size H of a data-block header:
	// magic(4) + blockSize(4) + firstEntryID(8) + entryCount(4) +
	// reserved padding to a round number.
	dataBlockHeaderLen = 32

	dataBlockMagic uint32 = 0x4c4f4231 // "LOB1"

	// entryFramingOverhead is the 12 bytes of framing ([length:4][entryId:8])
	// that precede every entry's payload within a block.
	entryFramingOverhead = 12

	// indexMagic/CurrentVersion identify the index object format.
	indexMagic     uint32 = 0x4f494231 // "OIB1"
	CurrentVersion uint32 = 1

	// indexFixedHeaderLen is the fixed portion of the index object
	// header: magic(4) + version(4) + entryCount(4) + dataHeaderLen(4)
	// + dataObjectLength(8) + ledgerMetadataLength(4).
	indexFixedHeaderLen = 28

	// indexEntryLen is the size of one serialized index entry:
	// firstEntryIdOfBlock(8) + partId(4) + offsetOfBlockInDataObject(8).
	indexEntryLen = 20
)

// DataBlockHeaderLen returns H, the fixed size of a data-block header.
// Exported because BASS callers (the offloader) need it to size
// blocks and compute offsets.
func DataBlockHeaderLen() int { return dataBlockHeaderLen }

// EntryFramingOverhead returns the per-entry framing overhead (12
// bytes: a 4-byte length prefix and an 8-byte entry ID).
func EntryFramingOverhead() int { return entryFramingOverhead }

// MaxEntrySize returns the largest entry payload that can fit in a
// block of the given size: maxBlockSize - H - framing overhead.
// Offload validates against this and fails with InvalidArgument
// rather than silently misbehaving.
func MaxEntrySize(maxBlockSize int64) int64 {
	return maxBlockSize - int64(dataBlockHeaderLen) - int64(entryFramingOverhead)
}

// UserMetadata keys, normalized to lowercase at write time per the
// §9 "version metadata case" design note (object-store drivers may
// lowercase user-metadata keys; the engine always writes and reads
// lowercase to avoid depending on driver behavior).
const (
	MetaFormatVersion    = "format-version"
	MetaSoftwareVersion  = "software-version"
	MetaSoftwareBuildID  = "software-build-id"
)
