// Package iotool runs single file system operations by name and reports
// their outcome as JSON records, one per operation.
//
// It is the engine behind `nsfs io` and `nsfs shell`: every operation runs
// against one posix.Session, so descriptors returned by open or opendir stay
// valid for later operations until the session ends.
//
// A record always carries retval and errno. retval is -1 on failure and
// errno then holds the error number; on success errno is 0. Operations
// add their own fields (buf, statbuf, dirents, path).
package iotool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/errno"
	"github.com/marmos91/nsfs/pkg/posix"
)

// ErrUsage is returned (wrapped) when an operation is unknown or its
// arguments cannot be parsed. No record is produced in that case.
var ErrUsage = errors.New("usage error")

// Record is the outcome of one operation.
type Record struct {
	errno.Result

	// Symbol is the symbolic errno (e.g. "ENOENT"), empty on success
	Symbol string `json:"errno_name,omitempty"`

	// Buf holds the bytes read by read and pread (base64 in JSON)
	Buf []byte `json:"buf,omitempty"`

	// Stat is filled by stat, statx and fstat
	Stat *posix.Stat `json:"statbuf,omitempty"`

	// Statfs is filled by statfs
	Statfs *posix.Statfs `json:"statfsbuf,omitempty"`

	// Dirents is filled by readdir; retval carries the entry count
	Dirents []posix.Dirent `json:"dirents,omitempty"`

	// Path is filled by getcwd and getcwd_validate
	Path string `json:"path,omitempty"`
}

func newRecord(ret int64, err error) Record {
	r := Record{Result: errno.NewResult(ret, err)}
	r.Symbol = r.ErrnoName()
	return r
}

// Options configures a Runner.
type Options struct {
	// Verbose prints a one-line human readable summary instead of JSON
	Verbose bool

	// Indent pretty-prints JSON records with the given indent
	Indent string
}

// Runner executes operations against a session and writes one record per
// operation to its output.
//
// A Runner is safe for concurrent use, but operations are serialised.
type Runner struct {
	s    *posix.Session
	out  io.Writer
	opts Options

	mu   sync.Mutex
	dirs map[int]*posix.Dir
}

// NewRunner creates a Runner bound to session s.
func NewRunner(s *posix.Session, out io.Writer, opts Options) *Runner {
	return &Runner{
		s:    s,
		out:  out,
		opts: opts,
		dirs: make(map[int]*posix.Dir),
	}
}

// opFunc executes one operation. Argument errors must wrap ErrUsage.
type opFunc func(r *Runner, ctx context.Context, args []string) (Record, error)

type opSpec struct {
	usage string
	run   opFunc
}

// Operations returns the names of all supported operations, sorted.
func Operations() []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage returns the argument synopsis of op, or "" if op is unknown.
func Usage(op string) string {
	spec, ok := ops[op]
	if !ok {
		return ""
	}
	return op + " " + spec.usage
}

// Exec runs the operation named by args[0] and returns its record without
// writing it.
func (r *Runner) Exec(ctx context.Context, args []string) (Record, error) {
	if len(args) == 0 {
		return Record{}, fmt.Errorf("%w: missing operation", ErrUsage)
	}

	spec, ok := ops[args[0]]
	if !ok {
		return Record{}, fmt.Errorf("%w: unknown operation %q", ErrUsage, args[0])
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := spec.run(r, ctx, args[1:])
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", Usage(args[0]), err)
	}
	return rec, nil
}

// Run executes the operation named by args[0] and writes its record.
func (r *Runner) Run(ctx context.Context, args []string) error {
	rec, err := r.Exec(ctx, args)
	if err != nil {
		return err
	}

	if r.opts.Verbose {
		_, err = fmt.Fprintln(r.out, describe(args, rec))
		return err
	}

	var data []byte
	if r.opts.Indent != "" {
		data, err = json.MarshalIndent(rec, "", r.opts.Indent)
	} else {
		data, err = json.Marshal(rec)
	}
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = fmt.Fprintln(r.out, string(data))
	return err
}

// Close closes every directory stream opened through the runner. File
// descriptors are released when the session ends.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for fd, d := range r.dirs {
		if err := r.s.Closedir(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("closedir %d: %w", fd, err))
		}
		delete(r.dirs, fd)
	}
	if len(errs) > 0 {
		logger.Debug("iotool: %d directory streams failed to close", len(errs))
	}
	return errors.Join(errs...)
}

// Split breaks a shell line into arguments. Double quotes group words;
// a backslash escapes the next character.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)

	for _, c := range line {
		switch {
		case escaped:
			cur.WriteRune(c)
			escaped = false
		case c == '\\':
			escaped = true
			started = true
		case c == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (c == ' ' || c == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(c)
			started = true
		}
	}

	if inQuote || escaped {
		return nil, fmt.Errorf("%w: unterminated quote or escape", ErrUsage)
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
