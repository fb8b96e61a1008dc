package memory

// compactThreshold is the minimum list length before tombstones are compacted.
const compactThreshold = 64

// childList is an append-friendly, insertion-ordered list of child names.
//
// Appends are O(1) amortised. Removals leave a tombstone (empty name) so that
// the positions of later children do not shift; the list is compacted once
// tombstones make up more than half of it. Iteration is O(len(names)).
type childList struct {
	// names holds child names in creation order; "" marks a removed slot
	names []string

	// index maps a live child name to its slot in names
	index map[string]int

	// live is the number of non-tombstone slots
	live int
}

func newChildList() *childList {
	return &childList{index: make(map[string]int)}
}

// add appends name. Callers guarantee name is not already present.
func (l *childList) add(name string) {
	l.index[name] = len(l.names)
	l.names = append(l.names, name)
	l.live++
}

// remove drops name, reporting whether it was present.
func (l *childList) remove(name string) bool {
	slot, ok := l.index[name]
	if !ok {
		return false
	}

	delete(l.index, name)
	l.names[slot] = ""
	l.live--

	if len(l.names) >= compactThreshold && l.live*2 < len(l.names) {
		l.compact()
	}
	return true
}

func (l *childList) compact() {
	names := make([]string, 0, l.live)
	for _, name := range l.names {
		if name == "" {
			continue
		}
		l.index[name] = len(names)
		names = append(names, name)
	}
	l.names = names
}

func (l *childList) len() int {
	return l.live
}

// each calls fn for every live name in creation order.
func (l *childList) each(fn func(name string)) {
	for _, name := range l.names {
		if name != "" {
			fn(name)
		}
	}
}
