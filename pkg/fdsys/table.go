package fdsys

import "fmt"

// descriptorEntry is one occupied slot. refs counts the opens collapsed onto
// this descriptor. detached is set when the name was unlinked while open; the
// descriptor stays usable but no longer answers lookups by name.
type descriptorEntry struct {
	fd       int
	name     string
	store    *contentStore
	refs     int
	detached bool
}

// descriptorTable is a fixed arena of slots indexed by fd-base, plus the
// name -> fd index. Both are updated together. Not safe for concurrent use.
type descriptorTable struct {
	base   int
	slots  []*descriptorEntry
	byName map[string]int
	live   int
}

func newDescriptorTable(base, capacity int) *descriptorTable {
	return &descriptorTable{
		base:   base,
		slots:  make([]*descriptorEntry, capacity),
		byName: make(map[string]int, capacity),
	}
}

func (t *descriptorTable) full() bool {
	return t.live == len(t.slots)
}

func (t *descriptorTable) get(fd int) (*descriptorEntry, error) {
	idx := fd - t.base
	if idx < 0 || idx >= len(t.slots) || t.slots[idx] == nil {
		return nil, fmt.Errorf("%w: %d", ErrBadDescriptor, fd)
	}

	return t.slots[idx], nil
}

func (t *descriptorTable) byNameEntry(name string) (*descriptorEntry, bool) {
	fd, ok := t.byName[name]
	if !ok {
		return nil, false
	}

	return t.slots[fd-t.base], true
}

// openOrCreate resolves name to a descriptor.
//
// An already-open name gets its refcount bumped and keeps its descriptor.
// Otherwise the store comes from reg (created, i.e. truncated, when creating
// is set) and is placed in the lowest free slot with its cursor rewound.
//
// When creating on a full table, the truncation done by reg.create is kept.
func (t *descriptorTable) openOrCreate(reg *registry, name string, creating bool) (fd int, reused bool, err error) {
	if e, ok := t.byNameEntry(name); ok {
		e.refs++

		return e.fd, true, nil
	}

	var s *contentStore

	if creating {
		s = reg.create(name)
	} else {
		s, err = reg.lookup(name)
		if err != nil {
			return Failure, false, err
		}
	}

	if t.full() {
		return Failure, false, fmt.Errorf("%w: %d of %d descriptors in use", ErrTableFull, t.live, len(t.slots))
	}

	idx := t.lowestFree()
	e := &descriptorEntry{
		fd:    t.base + idx,
		name:  name,
		store: s,
		refs:  1,
	}

	t.slots[idx] = e
	t.byName[name] = e.fd
	t.live++

	s.refs++
	s.rewind()

	return e.fd, false, nil
}

// close drops one reference from fd. When the last reference goes the slot is
// freed, and the store is discarded if it was unlinked in the meantime.
func (t *descriptorTable) close(fd int) (freed bool, discarded bool, err error) {
	e, err := t.get(fd)
	if err != nil {
		return false, false, err
	}

	e.refs--
	if e.refs > 0 {
		return false, false, nil
	}

	t.slots[fd-t.base] = nil
	t.live--

	if !e.detached {
		delete(t.byName, e.name)
	}

	s := e.store
	s.refs--

	if s.refs == 0 && s.pendingDelete {
		s.discard()

		return true, true, nil
	}

	return true, false, nil
}

// detach removes name from the name index so later opens of the same name
// cannot reach the open descriptor.
func (t *descriptorTable) detach(name string) {
	e, ok := t.byNameEntry(name)
	if !ok {
		return
	}

	e.detached = true
	delete(t.byName, name)
}

// lowestFree returns the index of the first empty slot. The table must not be
// full.
func (t *descriptorTable) lowestFree() int {
	for i, e := range t.slots {
		if e == nil {
			return i
		}
	}

	panic("fdsys: lowestFree called on a full table")
}

// entries returns the occupied slots in descriptor order.
func (t *descriptorTable) entries() []*descriptorEntry {
	out := make([]*descriptorEntry, 0, t.live)

	for _, e := range t.slots {
		if e != nil {
			out = append(out, e)
		}
	}

	return out
}
