package metadata

// DirEntry represents a single entry in a directory listing.
//
// Entries are returned in the order the children were created. Listings
// never contain the virtual "." and ".." entries.
type DirEntry struct {
	// Name is the entry name (a single path component, no slashes)
	Name string

	// Type is the node type of the child
	Type FileType

	// ID is the inode number of the child, derived from its path with PathToINode
	ID uint64
}

// DirentType returns the d_type code of the entry.
func (e DirEntry) DirentType() uint8 {
	return e.Type.DirentType()
}
