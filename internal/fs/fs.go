// Package fs is the host filesystem seam used to seed a kernel from a
// directory and to export its files back out.
//
// The main types are:
//   - [FS]: the operations hostdir needs from the host
//   - [File]: an open host file (satisfied by [os.File])
//   - [Real]: production implementation using [os]
//   - [Locker]: flock-based exclusive locks on host paths
//
// Example usage:
//
//	fsys := fs.NewReal()
//	entries, err := fsys.ReadDir(dir)
//	if err != nil {
//	    return err
//	}
package fs

import (
	"io"
	"os"
)

// File represents an open host file.
//
// This interface is satisfied by [os.File].
type File interface {
	io.ReadWriteCloser

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for flock in [Locker].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)
}

// FS defines the host operations used by import and export.
//
// All methods mirror their [os] package equivalents so tests can substitute
// a failing implementation.
type FS interface {
	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic writes data to path via temp file + rename so readers
	// never see a partial file.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// ReadDir reads a directory and returns its entries sorted by name.
	// See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
