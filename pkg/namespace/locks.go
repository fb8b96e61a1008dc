package namespace

import "sync"

// lockTable hands out one mutex per path. Entries are reference counted and
// dropped when the last holder releases them, so the table only grows with
// the number of paths currently being operated on.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*pathLock)}
}

// lock acquires the mutex for path and returns its release function.
func (t *lockTable) lock(path string) func() {
	t.mu.Lock()
	l, ok := t.locks[path]
	if !ok {
		l = &pathLock{}
		t.locks[path] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, path)
		}
		t.mu.Unlock()
	}
}

// size returns the number of live entries.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
