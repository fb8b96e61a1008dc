package badger

import (
	"encoding/binary"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// namespace into logical tables.
//
// Path-Based Node Identification:
//
// Nodes are identified by their canonical namespace path. Rename is not part
// of the namespace contract, so a path is a stable identity for the lifetime
// of a node.
//
// Key Namespace Prefixes:
//
// Data Type         Prefix  Key Format                        Value Type
// =========================================================================
// Node Record       "n:"    n:<path>                          nodeRecord (XDR)
// Child Entry       "c:"    c:<parent>\x00<seq:8 bytes BE>    direntRecord (XDR)
// Child Index       "i:"    i:<parent>\x00<name>              seq (8 bytes BE)
// Child Sequence    "q:"    q:<parent>                        next seq (8 bytes BE)
//
// Key Design Rationale:
//
//  1. Node Record (n:)
//     One entry per node. Point lookup by path: O(1).
//
//  2. Child Entry (c:)
//     One entry per child, keyed by a per-directory monotonically increasing
//     sequence number. BadgerDB iterates keys in byte order, so a prefix scan
//     of "c:<parent>\x00" yields children in creation order in O(N).
//     The NUL separator cannot appear in a path, which keeps "/top" and
//     "/top_plus" in disjoint key ranges.
//
//  3. Child Index (i:)
//     Maps a child name back to its sequence number so removal is O(1)
//     without scanning the directory.
//
//  4. Child Sequence (q:)
//     Next sequence number for a directory. Sequence numbers are never
//     reused, so a re-created name goes to the end of the listing.
const (
	// prefixNode is the key prefix for node records (path → nodeRecord)
	prefixNode = "n:"

	// prefixChild is the key prefix for ordered child entries
	prefixChild = "c:"

	// prefixChildIndex is the key prefix for name → sequence lookups
	prefixChildIndex = "i:"

	// prefixSequence is the key prefix for per-directory sequence counters
	prefixSequence = "q:"

	// separator terminates the parent path inside composite keys
	separator = "\x00"
)

// keyNode generates a key for a node record.
//
// Format: "n:<path>"
// Example: "n:/docs/report.pdf"
func keyNode(path string) []byte {
	return []byte(prefixNode + path)
}

// keyChildPrefix generates the key prefix for range scanning a directory's
// children in creation order.
//
// Format: "c:<parent>\x00"
func keyChildPrefix(parent string) []byte {
	return []byte(prefixChild + parent + separator)
}

// keyChild generates a key for the child entry at sequence seq.
//
// Format: "c:<parent>\x00<seq>"
func keyChild(parent string, seq uint64) []byte {
	prefix := keyChildPrefix(parent)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// keyChildIndex generates a key for the name → sequence index.
//
// Format: "i:<parent>\x00<name>"
func keyChildIndex(parent, name string) []byte {
	return []byte(prefixChildIndex + parent + separator + name)
}

// keySequence generates a key for a directory's next sequence number.
//
// Format: "q:<parent>"
func keySequence(parent string) []byte {
	return []byte(prefixSequence + parent)
}
