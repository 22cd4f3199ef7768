package fdsys

import (
	"fmt"
	"log/slog"
)

// Defaults reproduce the reference layout: descriptors 0 and 1 are reserved
// and 14 files may be open at once, so descriptors run from 2 to 15.
const (
	DefaultCapacity      = 14
	DefaultReserved      = 2
	DefaultMaxNameLength = 256
)

// Options configure a [Kernel].
type Options struct {
	// Capacity is the maximum number of distinct files open at once.
	Capacity int

	// Reserved is the number of low descriptor numbers never allocated.
	// The first allocatable descriptor is Reserved itself.
	Reserved int

	// MaxNameLength is the longest accepted file name, in bytes.
	MaxNameLength int

	// Logger receives debug records for every operation. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() Options {
	return Options{
		Capacity:      DefaultCapacity,
		Reserved:      DefaultReserved,
		MaxNameLength: DefaultMaxNameLength,
	}
}

func (o Options) validate() error {
	if o.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be >= 1, got %d", ErrInvalidOptions, o.Capacity)
	}

	if o.Reserved < 0 {
		return fmt.Errorf("%w: reserved must be >= 0, got %d", ErrInvalidOptions, o.Reserved)
	}

	if o.MaxNameLength < 1 {
		return fmt.Errorf("%w: max name length must be >= 1, got %d", ErrInvalidOptions, o.MaxNameLength)
	}

	return nil
}
