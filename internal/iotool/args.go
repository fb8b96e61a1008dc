package iotool

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// randomSeed seeds write_random so runs are reproducible.
const randomSeed = 42

// RandomBytes returns the first n bytes of the PCG stream seeded with 42.
// Two calls with the same n return identical data, and a shorter result is
// always a prefix of a longer one.
func RandomBytes(n int) []byte {
	r := rand.New(rand.NewPCG(randomSeed, randomSeed))
	buf := make([]byte, n+8)
	for i := 0; i < n; i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], r.Uint64())
	}
	return buf[:n]
}

// randomStream yields the bytes of RandomBytes incrementally, so large
// writes never hold the whole payload.
type randomStream struct {
	r    *rand.Rand
	word [8]byte
	left int
}

func newRandomStream() *randomStream {
	return &randomStream{r: rand.New(rand.NewPCG(randomSeed, randomSeed))}
}

// Read fills p with the next len(p) bytes of the stream. It never fails.
func (s *randomStream) Read(p []byte) (int, error) {
	i := 0
	for ; i < len(p) && s.left > 0; i++ {
		p[i] = s.word[8-s.left]
		s.left--
	}
	for ; len(p)-i >= 8; i += 8 {
		binary.LittleEndian.PutUint64(p[i:], s.r.Uint64())
	}
	if i < len(p) {
		binary.LittleEndian.PutUint64(s.word[:], s.r.Uint64())
		s.left = 8
		for ; i < len(p); i++ {
			p[i] = s.word[8-s.left]
			s.left--
		}
	}
	return len(p), nil
}

var openFlagNames = map[string]int{
	"O_RDONLY":    unix.O_RDONLY,
	"O_WRONLY":    unix.O_WRONLY,
	"O_RDWR":      unix.O_RDWR,
	"O_CREAT":     unix.O_CREAT,
	"O_EXCL":      unix.O_EXCL,
	"O_TRUNC":     unix.O_TRUNC,
	"O_APPEND":    unix.O_APPEND,
	"O_DIRECTORY": unix.O_DIRECTORY,
	"O_NOFOLLOW":  unix.O_NOFOLLOW,
	"O_CLOEXEC":   unix.O_CLOEXEC,
	"O_SYNC":      unix.O_SYNC,
}

var whenceNames = map[string]int{
	"SEEK_SET":  unix.SEEK_SET,
	"SEEK_CUR":  unix.SEEK_CUR,
	"SEEK_END":  unix.SEEK_END,
	"SEEK_DATA": unix.SEEK_DATA,
	"SEEK_HOLE": unix.SEEK_HOLE,
}

// parseSymbolic parses either a number (decimal, 0x hex, 0 octal) or a
// "|"-separated list of names from table.
func parseSymbolic(s string, table map[string]int, what string) (int, error) {
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return int(n), nil
	}

	v := 0
	for _, part := range strings.Split(s, "|") {
		bits, ok := table[strings.ToUpper(strings.TrimSpace(part))]
		if !ok {
			return 0, fmt.Errorf("%w: invalid %s %q", ErrUsage, what, part)
		}
		v |= bits
	}
	return v, nil
}

func parseFlags(s string) (int, error) {
	return parseSymbolic(s, openFlagNames, "open flag")
}

func parseWhence(s string) (int, error) {
	return parseSymbolic(s, whenceNames, "whence")
}

// parseMode parses a permission mode. A leading 0 selects octal ("0755"),
// otherwise the value is decimal ("493").
func parseMode(s string) (uint32, error) {
	m, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mode %q", ErrUsage, s)
	}
	return uint32(m), nil
}

func parseInt(s, what string) (int64, error) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrUsage, what, s)
	}
	return n, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.ParseUint(s, 0, 31)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid count %q", ErrUsage, s)
	}
	return int(n), nil
}

// argc checks the number of arguments is within [lo, hi].
func argc(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return fmt.Errorf("%w: expected %d to %d arguments, got %d", ErrUsage, lo, hi, len(args))
	}
	return nil
}
