// Package fdsys provides an in-memory file descriptor layer with the classic
// create/open/read/write/close/unlink syscall contract.
//
// A [Kernel] owns a flat name registry and a fixed-capacity descriptor table.
// Opening a name that is already open does not allocate a new descriptor: the
// existing descriptor's reference count is incremented and the same number is
// returned. Each open file has a single cursor shared by all of its opens.
//
// # Basic Usage
//
//	k, err := fdsys.New(fdsys.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//
//	fd, err := k.Create("notes.txt")    // fd == 2 with the default options
//	n, err := k.Write(fd, []byte("hello"), 20) // n == 5
//	err = k.Close(fd)
//
//	fd, err = k.Open("notes.txt")       // cursor starts at 0 again
//	buf := make([]byte, 16)
//	n, err = k.Read(fd, buf, len(buf))  // n == 5
//
// Callers that want the raw integer contract (descriptor or -1) use
// [Syscalls], which wraps a [Kernel] and collapses every error to -1.
//
// # Descriptor Numbers
//
// The lowest [Options.Reserved] numbers are never handed out (standard input
// and output). The next [Options.Capacity] numbers form the table, and
// allocation always picks the lowest free number.
//
// # Concurrency
//
// All methods on [Kernel] are safe for concurrent use. Table and registry
// mutations run under one kernel-wide mutex. Reads and writes resolve the
// descriptor under that mutex and then copy bytes under a per-file mutex, so
// the cursor advance and the copy are atomic with respect to other I/O on the
// same file.
//
// # Error Handling
//
// Failures wrap one of [ErrNotFound], [ErrTableFull], [ErrBadDescriptor] or
// [ErrInvalidArgument]; use [errors.Is]. A failed call leaves the kernel
// unchanged, with one exception: Create on a full table still truncates an
// existing file of that name.
package fdsys
