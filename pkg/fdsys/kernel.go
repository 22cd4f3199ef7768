package fdsys

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// FileInfo describes a registered file.
type FileInfo struct {
	Name string
	Size int
	Open bool
}

// DescriptorInfo describes an open descriptor.
type DescriptorInfo struct {
	FD       int
	Name     string
	Refs     int
	Cursor   int
	Size     int
	Unlinked bool
}

// Kernel owns the name registry and the descriptor table behind one mutex.
//
// The zero value is not usable; construct with [New].
type Kernel struct {
	mu    sync.Mutex
	opts  Options
	log   *slog.Logger
	files *registry
	table *descriptorTable
}

// New returns an empty Kernel. Returns [ErrInvalidOptions] if opts are out of
// range.
func New(opts Options) (*Kernel, error) {
	err := opts.validate()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Kernel{
		opts:  opts,
		log:   logger,
		files: newRegistry(),
		table: newDescriptorTable(opts.Reserved, opts.Capacity),
	}, nil
}

// Capacity returns the number of distinct files that may be open at once.
func (k *Kernel) Capacity() int {
	return k.opts.Capacity
}

// FirstDescriptor returns the lowest descriptor number the table hands out.
func (k *Kernel) FirstDescriptor() int {
	return k.opts.Reserved
}

// Create opens name for I/O, creating it if needed.
//
// If name is already open its descriptor is returned with one more reference
// and the contents are left alone. Otherwise the file is truncated (or created
// empty) and placed in the lowest free descriptor. On [ErrTableFull] the
// truncation still happens.
func (k *Kernel) Create(name string) (int, error) {
	return k.openOrCreate("create", name, true)
}

// Open returns a descriptor for an existing file. Returns [ErrNotFound] if no
// file has that name and [ErrTableFull] if a new descriptor is needed but none
// is free.
func (k *Kernel) Open(name string) (int, error) {
	return k.openOrCreate("open", name, false)
}

func (k *Kernel) openOrCreate(op string, name string, creating bool) (int, error) {
	err := k.validName(name)
	if err != nil {
		return Failure, k.fail(op, err, "name", name)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	fd, reused, err := k.table.openOrCreate(k.files, name, creating)
	if err != nil {
		return Failure, k.fail(op, err, "name", name)
	}

	k.log.Debug(op, "name", name, "fd", fd, "reused", reused)

	return fd, nil
}

// Read copies up to count bytes from fd's cursor into dst and advances the
// cursor. count is clamped to len(dst). It returns 0 at the end of the data.
//
// A nil dst or a negative count is [ErrInvalidArgument].
func (k *Kernel) Read(fd int, dst []byte, count int) (int, error) {
	s, err := k.resolve(fd)
	if err != nil {
		return Failure, k.fail("read", err, "fd", fd)
	}

	if dst == nil {
		return Failure, k.fail("read", fmt.Errorf("%w: nil destination buffer", ErrInvalidArgument), "fd", fd)
	}

	if count < 0 {
		return Failure, k.fail("read", fmt.Errorf("%w: negative count %d", ErrInvalidArgument, count), "fd", fd)
	}

	n, err := s.read(dst[:min(count, len(dst))])
	if err != nil {
		return Failure, k.fail("read", err, "fd", fd)
	}

	k.log.Debug("read", "fd", fd, "count", count, "n", n)

	return n, nil
}

// Write copies min(count, len(src)) bytes from src into fd at its cursor,
// extending the file as needed, and advances the cursor.
//
// A nil src or a negative count is [ErrInvalidArgument]. An empty src
// writes nothing and returns 0.
func (k *Kernel) Write(fd int, src []byte, count int) (int, error) {
	s, err := k.resolve(fd)
	if err != nil {
		return Failure, k.fail("write", err, "fd", fd)
	}

	if src == nil {
		return Failure, k.fail("write", fmt.Errorf("%w: nil source buffer", ErrInvalidArgument), "fd", fd)
	}

	if count < 0 {
		return Failure, k.fail("write", fmt.Errorf("%w: negative count %d", ErrInvalidArgument, count), "fd", fd)
	}

	n, err := s.write(src[:min(count, len(src))])
	if err != nil {
		return Failure, k.fail("write", err, "fd", fd)
	}

	k.log.Debug("write", "fd", fd, "count", count, "n", n)

	return n, nil
}

// Close drops one reference to fd. The descriptor number is freed when the
// last reference goes, and an unlinked file's bytes are discarded then.
func (k *Kernel) Close(fd int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	freed, discarded, err := k.table.close(fd)
	if err != nil {
		return k.fail("close", err, "fd", fd)
	}

	k.log.Debug("close", "fd", fd, "freed", freed, "discarded", discarded)

	return nil
}

// Unlink removes name. Open descriptors keep working until closed; the bytes
// are discarded when the last one closes. After Unlink, Open(name) fails and
// Create(name) makes a new, unrelated file.
func (k *Kernel) Unlink(name string) error {
	err := k.validName(name)
	if err != nil {
		return k.fail("unlink", err, "name", name)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	deferred, err := k.files.unlink(name)
	if err != nil {
		return k.fail("unlink", err, "name", name)
	}

	k.table.detach(name)
	k.log.Debug("unlink", "name", name, "deferred", deferred)

	return nil
}

// Load registers name with a copy of data without opening it, replacing the
// contents of an existing file. Used to seed a kernel from elsewhere.
func (k *Kernel) Load(name string, data []byte) error {
	err := k.validName(name)
	if err != nil {
		return k.fail("load", err, "name", name)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.files.load(name, data)
	k.log.Debug("load", "name", name, "size", len(data))

	return nil
}

// Snapshot returns a copy of the bytes registered under name.
func (k *Kernel) Snapshot(name string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, err := k.files.lookup(name)
	if err != nil {
		return nil, err
	}

	return s.snapshot(), nil
}

// Stat describes the file registered under name.
func (k *Kernel) Stat(name string) (FileInfo, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, err := k.files.lookup(name)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{Name: name, Size: s.size(), Open: s.refs > 0}, nil
}

// Files lists registered files sorted by name. Unlinked files that are still
// open are not listed.
func (k *Kernel) Files() []FileInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	names := k.files.names()
	out := make([]FileInfo, 0, len(names))

	for _, name := range names {
		s := k.files.files[name]
		out = append(out, FileInfo{Name: name, Size: s.size(), Open: s.refs > 0})
	}

	return out
}

// Descriptors lists open descriptors in ascending order.
func (k *Kernel) Descriptors() []DescriptorInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	entries := k.table.entries()
	out := make([]DescriptorInfo, 0, len(entries))

	for _, e := range entries {
		out = append(out, DescriptorInfo{
			FD:       e.fd,
			Name:     e.name,
			Refs:     e.refs,
			Cursor:   e.store.position(),
			Size:     e.store.size(),
			Unlinked: e.detached,
		})
	}

	return out
}

// resolve maps fd to its store under the kernel lock. The byte copy happens
// afterwards under the store's own lock.
func (k *Kernel) resolve(fd int) (*contentStore, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, err := k.table.get(fd)
	if err != nil {
		return nil, err
	}

	return e.store, nil
}

func (k *Kernel) validName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty file name", ErrInvalidArgument)
	}

	if len(name) > k.opts.MaxNameLength {
		return fmt.Errorf("%w: file name is %d bytes, limit is %d", ErrInvalidArgument, len(name), k.opts.MaxNameLength)
	}

	return nil
}

func (k *Kernel) fail(op string, err error, args ...any) error {
	k.log.Debug(op+" failed", append(args, "err", err)...)

	return err
}
