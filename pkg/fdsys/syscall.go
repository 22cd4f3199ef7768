package fdsys

// Syscalls exposes a [Kernel] through the integer syscall contract: a
// descriptor or byte count on success, 0 for close/unlink success, and
// [Failure] (-1) for every error.
//
// A nil buffer models a null pointer; an empty, non-nil buffer is a
// zero-length one.
type Syscalls struct {
	k *Kernel
}

// NewSyscalls returns the syscall view of k.
func NewSyscalls(k *Kernel) *Syscalls {
	return &Syscalls{k: k}
}

// Kernel returns the underlying kernel.
func (s *Syscalls) Kernel() *Kernel {
	return s.k
}

// Creat opens name, creating or truncating it, and returns its descriptor.
func (s *Syscalls) Creat(name string) int {
	fd, _ := s.k.Create(name)

	return fd
}

// Open returns the descriptor for an existing file.
func (s *Syscalls) Open(name string) int {
	fd, _ := s.k.Open(name)

	return fd
}

// Read reads up to count bytes from fd into buf and returns the byte count.
func (s *Syscalls) Read(fd int, buf []byte, count int) int {
	n, _ := s.k.Read(fd, buf, count)

	return n
}

// Write writes up to count bytes of buf to fd and returns the byte count.
func (s *Syscalls) Write(fd int, buf []byte, count int) int {
	n, _ := s.k.Write(fd, buf, count)

	return n
}

// Close releases one reference to fd.
func (s *Syscalls) Close(fd int) int {
	return Errno(s.k.Close(fd))
}

// Unlink removes name.
func (s *Syscalls) Unlink(name string) int {
	return Errno(s.k.Unlink(name))
}
