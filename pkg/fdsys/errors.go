package fdsys

import "errors"

// Sentinel errors returned by [Kernel] operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, fdsys.ErrTableFull) {
//	    // close something and retry
//	}
var (
	// ErrNotFound indicates no file is registered under the given name.
	ErrNotFound = errors.New("fdsys: not found")

	// ErrTableFull indicates every descriptor in the table is in use.
	//
	// Recovery: close a descriptor and retry.
	ErrTableFull = errors.New("fdsys: descriptor table full")

	// ErrBadDescriptor indicates the descriptor is out of range or not open.
	ErrBadDescriptor = errors.New("fdsys: bad descriptor")

	// ErrInvalidArgument indicates a nil buffer, a negative count, or a
	// malformed file name.
	//
	// This is a programming error.
	ErrInvalidArgument = errors.New("fdsys: invalid argument")

	// ErrInvalidOptions indicates [New] was called with unusable [Options].
	ErrInvalidOptions = errors.New("fdsys: invalid options")
)

// Failure is the return code [Syscalls] uses for every failed call.
const Failure = -1

// Errno maps err to a syscall return code: 0 for nil, [Failure] otherwise.
func Errno(err error) int {
	if err == nil {
		return 0
	}

	return Failure
}
