// Package pathres classifies paths against the mount boundary.
//
// A session addresses files with ordinary host paths. Everything at or below
// the mount directory lives in the nsfs namespace; everything else belongs to
// the host filesystem. Resolve applies path components strictly left to
// right, so a path may leave the mount with ".." and re-enter it (or the
// reverse) any number of times; only the final location decides the side.
package pathres

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/sys/unix"
)

// Resolved is the outcome of resolving a path: either a location inside the
// namespace (Internal, Path relative to the mount, "/" being the mount root)
// or a canonical host path (External).
type Resolved struct {
	Internal bool
	Path     string
}

// String renders the resolution for logs ("internal:/a", "external:/tmp").
func (r Resolved) String() string {
	if r.Internal {
		return "internal:" + r.Path
	}
	return "external:" + r.Path
}

// Resolver resolves paths for one mount directory. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	mountDir   string
	components []string
}

// NewResolver creates a resolver for the given mount directory.
//
// mountDir must be absolute; it is canonicalised ("//a/./b/" becomes "/a/b").
func NewResolver(mountDir string) (*Resolver, error) {
	if !strings.HasPrefix(mountDir, "/") {
		return nil, fmt.Errorf("mount directory must be absolute: %q", mountDir)
	}

	components := walk(nil, mountDir)
	return &Resolver{
		mountDir:   join(components),
		components: components,
	}, nil
}

// MountDir returns the canonical mount directory.
func (r *Resolver) MountDir() string {
	return r.mountDir
}

// Resolve classifies p relative to cwd.
//
// Absolute paths start at the host root; relative paths start at cwd, which
// must be an absolute host path. "" and "." components are skipped and ".."
// pops one component unless already at "/".
//
// Returns:
//   - Resolved: Internal with a namespace path, or External with a host path
//   - error: unix.ENOENT for an empty path, unix.EINVAL for a relative cwd
func (r *Resolver) Resolve(cwd, p string) (Resolved, error) {
	if p == "" {
		return Resolved{}, unix.ENOENT
	}

	var stack []string
	if !strings.HasPrefix(p, "/") {
		if !strings.HasPrefix(cwd, "/") {
			return Resolved{}, unix.EINVAL
		}
		stack = walk(stack, cwd)
	}
	stack = walk(stack, p)

	return r.classify(stack), nil
}

// HostPath returns the canonical absolute host path of res.
func (r *Resolver) HostPath(res Resolved) string {
	if !res.Internal {
		return res.Path
	}
	if res.Path == "/" {
		return r.mountDir
	}
	if r.mountDir == "/" {
		return res.Path
	}
	return r.mountDir + res.Path
}

// classify decides the side of the mount boundary for a component stack.
func (r *Resolver) classify(stack []string) Resolved {
	if len(stack) < len(r.components) {
		return Resolved{Path: join(stack)}
	}
	for i, c := range r.components {
		if stack[i] != c {
			return Resolved{Path: join(stack)}
		}
	}
	return Resolved{Internal: true, Path: join(stack[len(r.components):])}
}

// walk applies the components of p to stack, left to right.
func walk(stack []string, p string) []string {
	for _, c := range strings.Split(p, "/") {
		switch c {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, c)
		}
	}
	return stack
}

func join(components []string) string {
	if len(components) == 0 {
		return "/"
	}
	return "/" + path.Join(components...)
}
