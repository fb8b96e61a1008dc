package metadata

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// ============================================================================
// Namespace Path Utilities
// ============================================================================
//
// Namespace paths are canonical absolute paths relative to the mount root:
// "/" is the mount root, components are separated by a single "/", no
// component is empty, "." or "..", and no byte is NUL. The path resolver is
// responsible for producing canonical paths; stores reject anything else.

// RootPath is the namespace path of the mount root.
const RootPath = "/"

// IsCanonicalPath reports whether p is a canonical namespace path.
func IsCanonicalPath(p string) bool {
	if p == RootPath {
		return true
	}
	if len(p) < 2 || p[0] != '/' || p[len(p)-1] == '/' || strings.IndexByte(p, 0) >= 0 {
		return false
	}
	for _, c := range strings.Split(p[1:], "/") {
		if c == "" || c == "." || c == ".." {
			return false
		}
	}
	return true
}

// SplitPath splits a canonical namespace path into its parent path and final
// component. The root has no parent: SplitPath("/") returns ("", "").
//
// Example:
//
//	SplitPath("/a/b") // "/a", "b"
//	SplitPath("/a")   // "/", "a"
func SplitPath(p string) (parent, name string) {
	if p == RootPath || p == "" {
		return "", ""
	}
	idx := strings.LastIndexByte(p, '/')
	if idx == 0 {
		return RootPath, p[1:]
	}
	return p[:idx], p[idx+1:]
}

// JoinPath appends a single component to a canonical directory path.
func JoinPath(dir, name string) string {
	if dir == RootPath {
		return RootPath + name
	}
	return dir + "/" + name
}

// IsAncestor reports whether ancestor is a strict ancestor of p.
//
// Matching is component-exact: "/top" is not an ancestor of "/top_plus/x".
func IsAncestor(ancestor, p string) bool {
	if ancestor == p {
		return false
	}
	if ancestor == RootPath {
		return strings.HasPrefix(p, RootPath)
	}
	return strings.HasPrefix(p, ancestor) && len(p) > len(ancestor) && p[len(ancestor)] == '/'
}

// PathToINode converts a namespace path to a uint64 inode number.
//
// This is the CANONICAL implementation for deriving inode numbers. Both store
// implementations and the POSIX layer use it, so the same path always yields
// the same st_ino regardless of backend.
//
// Algorithm:
//
// Uses the SHA-256 hash of the path, taking the first 8 bytes as a big-endian
// uint64. Collisions are astronomically unlikely for realistic namespaces.
//
// Parameters:
//   - path: canonical namespace path
//
// Returns:
//   - uint64: inode number, or 0 if path is empty
func PathToINode(path string) uint64 {
	if path == "" {
		return 0
	}

	hash := sha256.Sum256([]byte(path))
	return binary.BigEndian.Uint64(hash[:8])
}
