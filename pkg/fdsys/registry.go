package fdsys

import (
	"fmt"
	"slices"
)

// registry is the flat name -> store mapping. It is not safe for concurrent
// use; the Kernel serializes access.
type registry struct {
	files map[string]*contentStore
}

func newRegistry() *registry {
	return &registry{files: make(map[string]*contentStore)}
}

// create returns the store registered under name, truncated to empty, or
// registers a new empty one.
func (r *registry) create(name string) *contentStore {
	if s, ok := r.files[name]; ok {
		s.truncate()

		return s
	}

	s := newContentStore(name)
	r.files[name] = s

	return s
}

// load registers a store holding a copy of data, replacing the bytes of any
// store already registered under name.
func (r *registry) load(name string, data []byte) *contentStore {
	s, ok := r.files[name]
	if !ok {
		s = newContentStore(name)
		r.files[name] = s
	}

	s.replace(data)

	return s
}

func (r *registry) lookup(name string) (*contentStore, error) {
	s, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return s, nil
}

// unlink removes name from the registry. The store's bytes are discarded now
// if no descriptor references it, otherwise when the last one closes.
// deferred reports which of the two happened.
func (r *registry) unlink(name string) (deferred bool, err error) {
	s, err := r.lookup(name)
	if err != nil {
		return false, err
	}

	delete(r.files, name)

	if s.refs > 0 {
		s.pendingDelete = true

		return true, nil
	}

	s.discard()

	return false, nil
}

func (r *registry) names() []string {
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
