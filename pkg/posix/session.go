package posix

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/errno"
	"github.com/marmos91/nsfs/pkg/openfile"
	"github.com/marmos91/nsfs/pkg/pathres"
)

// Session is one client's view of the filesystem: a working directory and
// a descriptor table. Methods are safe for concurrent use, although a
// single client normally issues one call at a time.
type Session struct {
	fs    *FileSystem
	files *openfile.Table

	mu  sync.RWMutex
	cwd string

	closed bool
}

// NewSession starts a session with the given working directory. An empty
// cwd starts at the mount directory.
func (fsys *FileSystem) NewSession(cwd string) (*Session, error) {
	if cwd == "" {
		cwd = fsys.resolver.MountDir()
	}
	res, err := fsys.resolver.Resolve("/", cwd)
	if err != nil {
		return nil, err
	}

	s := &Session{
		fs:    fsys,
		files: openfile.NewTable(fsys.fdBase),
		cwd:   fsys.resolver.HostPath(res),
	}
	fsys.metrics.SetActiveSessions(fsys.sessions.Add(1))
	logger.Debug("Session started (cwd=%s)", s.cwd)
	return s, nil
}

// End closes every descriptor the session still holds. The session must
// not be used afterwards.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var firstErr error
	for _, h := range s.files.Drain() {
		if err := s.closeHandle(ctx, h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.fs.metrics.SetActiveSessions(s.fs.sessions.Add(-1))
	if firstErr != nil {
		return errno.FromError(firstErr)
	}
	return nil
}

// OpenFiles returns the number of open descriptors.
func (s *Session) OpenFiles() int {
	return s.files.Len()
}

// resolve classifies p against the session's working directory.
func (s *Session) resolve(p string) (pathres.Resolved, error) {
	s.mu.RLock()
	cwd := s.cwd
	s.mu.RUnlock()
	return s.fs.resolver.Resolve(cwd, p)
}

// call instruments one POSIX call. It is deferred at the top of every
// exported method:
//
//	defer s.call("mkdir", s.begin("mkdir"), &err)
//
// and converts whatever error the method produced into a unix.Errno.
func (s *Session) call(op string, start time.Time, errp *error) {
	var name string
	if *errp != nil {
		logger.Debug("%s: %v", op, *errp)
		e := errno.FromError(*errp)
		name = errno.Name(e)
		*errp = e
	}
	s.fs.metrics.RecordCall(op, time.Since(start).Seconds(), name)
	s.fs.metrics.RecordCallEnd(op)
}

// begin marks op as in flight and returns its start time.
func (s *Session) begin(op string) time.Time {
	s.fs.metrics.RecordCallStart(op)
	return time.Now()
}
