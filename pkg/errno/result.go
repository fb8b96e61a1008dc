package errno

import (
	"golang.org/x/sys/unix"
)

// Result is the caller-facing outcome of a single call: a return value and,
// when Retval signals failure, the errno describing it.
//
// Errno is only meaningful when Retval is -1.
type Result struct {
	Retval int64      `json:"retval"`
	Errno  unix.Errno `json:"errno"`
}

// NewResult builds a Result from a Go-style (value, error) pair.
//
// A nil error yields {ret, 0}; any error yields {-1, FromError(err)}.
func NewResult(ret int64, err error) Result {
	if err != nil {
		return Result{Retval: -1, Errno: FromError(err)}
	}
	return Result{Retval: ret}
}

// Failed reports whether the call failed.
func (r Result) Failed() bool {
	return r.Retval == -1
}

// ErrnoName returns the symbolic errno name, or "" on success.
func (r Result) ErrnoName() string {
	if !r.Failed() {
		return ""
	}
	return Name(r.Errno)
}
