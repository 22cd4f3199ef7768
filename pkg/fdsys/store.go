package fdsys

import "sync"

// contentStore holds one file's bytes and the cursor shared by every open of
// that file.
//
// data, cursor and discarded are guarded by mu. refs and pendingDelete are
// guarded by the owning Kernel's mutex.
type contentStore struct {
	mu        sync.Mutex
	data      []byte
	cursor    int
	discarded bool

	name          string
	refs          int
	pendingDelete bool
}

func newContentStore(name string) *contentStore {
	return &contentStore{name: name}
}

// truncate empties the store and rewinds the cursor.
func (s *contentStore) truncate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = s.data[:0]
	s.cursor = 0
}

// replace swaps in a copy of data. The cursor is clamped to the new length.
func (s *contentStore) replace(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data[:0], data...)
	s.cursor = min(s.cursor, len(s.data))
}

func (s *contentStore) rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor = 0
}

// discard drops the bytes. Any I/O still in flight against the store fails
// with [ErrBadDescriptor] afterwards.
func (s *contentStore) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = nil
	s.cursor = 0
	s.discarded = true
}

// write copies src into the store at the cursor, growing it as needed, and
// advances the cursor by len(src).
func (s *contentStore) write(src []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return 0, ErrBadDescriptor
	}

	if len(src) == 0 {
		return 0, nil
	}

	end := s.cursor + len(src)
	if end > len(s.data) {
		s.data = append(s.data, make([]byte, end-len(s.data))...)
	}

	copy(s.data[s.cursor:end], src)
	s.cursor = end

	return len(src), nil
}

// read copies up to len(dst) bytes from the cursor into dst and advances the
// cursor. It returns 0 at the end of the data.
func (s *contentStore) read(dst []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return 0, ErrBadDescriptor
	}

	n := copy(dst, s.data[s.cursor:])
	s.cursor += n

	return n, nil
}

func (s *contentStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data)
}

func (s *contentStore) position() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cursor
}

func (s *contentStore) snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, len(s.data))
	copy(out, s.data)

	return out
}
