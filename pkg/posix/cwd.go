package posix

import (
	"context"

	"golang.org/x/sys/unix"
)

// Chdir changes the session's working directory. On failure the working
// directory is left unchanged.
//
// Errors: ENOENT if path is absent, ENOTDIR if it is not a directory.
func (s *Session) Chdir(ctx context.Context, path string) (err error) {
	defer s.call("chdir", s.begin("chdir"), &err)

	res, err := s.resolve(path)
	if err != nil {
		return err
	}

	if res.Internal {
		attr, err := s.fs.tree.Lookup(ctx, res.Path)
		if err != nil {
			return err
		}
		if !attr.IsDir() {
			return unix.ENOTDIR
		}
	} else {
		info, err := s.fs.host.Stat(res.Path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return unix.ENOTDIR
		}
	}

	s.mu.Lock()
	s.cwd = s.fs.resolver.HostPath(res)
	s.mu.Unlock()
	return nil
}

// Getcwd returns the session's working directory as a canonical absolute
// host path.
func (s *Session) Getcwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd
}
