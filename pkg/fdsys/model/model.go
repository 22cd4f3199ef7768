// Package model provides a deliberately simple, in-memory state model of
// fdsys's publicly observable behavior.
//
// The model favors clarity over performance: no locking, linear scans, and
// plain slices. Tests drive the same operations against the model and a real
// [fdsys.Kernel] and compare results.
package model

import (
	"slices"

	"github.com/calvinalkan/fdsys/pkg/fdsys"
)

// File is a registered file or an unlinked one still held open.
type File struct {
	Data     []byte
	Cursor   int
	Unlinked bool
}

// Slot is an occupied descriptor.
type Slot struct {
	Name     string
	File     *File
	Refs     int
	Detached bool
}

// Kernel mirrors fdsys.Kernel. Slots[i] is descriptor Reserved+i.
type Kernel struct {
	Reserved      int
	MaxNameLength int
	Files         map[string]*File
	Slots         []*Slot
}

// New returns an empty model with the given options' geometry.
func New(opts fdsys.Options) *Kernel {
	return &Kernel{
		Reserved:      opts.Reserved,
		MaxNameLength: opts.MaxNameLength,
		Files:         map[string]*File{},
		Slots:         make([]*Slot, opts.Capacity),
	}
}

// Creat models fdsys.Syscalls.Creat.
func (k *Kernel) Creat(name string) int {
	return k.openOrCreate(name, true)
}

// Open models fdsys.Syscalls.Open.
func (k *Kernel) Open(name string) int {
	return k.openOrCreate(name, false)
}

func (k *Kernel) openOrCreate(name string, creating bool) int {
	if !k.validName(name) {
		return fdsys.Failure
	}

	for i, slot := range k.Slots {
		if slot != nil && !slot.Detached && slot.Name == name {
			slot.Refs++

			return k.Reserved + i
		}
	}

	file, ok := k.Files[name]

	switch {
	case creating && ok:
		file.Data = file.Data[:0]
		file.Cursor = 0
	case creating:
		file = &File{}
		k.Files[name] = file
	case !ok:
		return fdsys.Failure
	}

	for i, slot := range k.Slots {
		if slot == nil {
			k.Slots[i] = &Slot{Name: name, File: file, Refs: 1}
			file.Cursor = 0

			return k.Reserved + i
		}
	}

	return fdsys.Failure
}

// Read models fdsys.Syscalls.Read.
func (k *Kernel) Read(fd int, buf []byte, count int) int {
	slot := k.slot(fd)
	if slot == nil || buf == nil || count < 0 {
		return fdsys.Failure
	}

	file := slot.File
	n := min(count, len(buf), len(file.Data)-file.Cursor)
	copy(buf, file.Data[file.Cursor:file.Cursor+n])
	file.Cursor += n

	return n
}

// Write models fdsys.Syscalls.Write.
func (k *Kernel) Write(fd int, buf []byte, count int) int {
	slot := k.slot(fd)
	if slot == nil || buf == nil || count < 0 {
		return fdsys.Failure
	}

	file := slot.File
	n := min(count, len(buf))

	for i := range n {
		pos := file.Cursor + i
		if pos < len(file.Data) {
			file.Data[pos] = buf[i]
		} else {
			file.Data = append(file.Data, buf[i])
		}
	}

	file.Cursor += n

	return n
}

// Close models fdsys.Syscalls.Close.
func (k *Kernel) Close(fd int) int {
	slot := k.slot(fd)
	if slot == nil {
		return fdsys.Failure
	}

	slot.Refs--
	if slot.Refs == 0 {
		k.Slots[fd-k.Reserved] = nil

		if slot.File.Unlinked {
			slot.File.Data = nil
		}
	}

	return 0
}

// Unlink models fdsys.Syscalls.Unlink.
func (k *Kernel) Unlink(name string) int {
	if !k.validName(name) {
		return fdsys.Failure
	}

	file, ok := k.Files[name]
	if !ok {
		return fdsys.Failure
	}

	delete(k.Files, name)
	file.Unlinked = true

	for _, slot := range k.Slots {
		if slot != nil && slot.Name == name {
			slot.Detached = true
		}
	}

	return 0
}

// FileInfos returns the registry contents in the shape of fdsys.Kernel.Files.
func (k *Kernel) FileInfos() []fdsys.FileInfo {
	names := make([]string, 0, len(k.Files))
	for name := range k.Files {
		names = append(names, name)
	}

	slices.Sort(names)

	out := make([]fdsys.FileInfo, 0, len(names))

	for _, name := range names {
		file := k.Files[name]
		out = append(out, fdsys.FileInfo{Name: name, Size: len(file.Data), Open: k.isOpen(file)})
	}

	return out
}

// DescriptorInfos returns the table in the shape of fdsys.Kernel.Descriptors.
func (k *Kernel) DescriptorInfos() []fdsys.DescriptorInfo {
	out := []fdsys.DescriptorInfo{}

	for i, slot := range k.Slots {
		if slot == nil {
			continue
		}

		out = append(out, fdsys.DescriptorInfo{
			FD:       k.Reserved + i,
			Name:     slot.Name,
			Refs:     slot.Refs,
			Cursor:   slot.File.Cursor,
			Size:     len(slot.File.Data),
			Unlinked: slot.Detached,
		})
	}

	return out
}

func (k *Kernel) slot(fd int) *Slot {
	idx := fd - k.Reserved
	if idx < 0 || idx >= len(k.Slots) {
		return nil
	}

	return k.Slots[idx]
}

func (k *Kernel) isOpen(file *File) bool {
	for _, slot := range k.Slots {
		if slot != nil && slot.File == file {
			return true
		}
	}

	return false
}

func (k *Kernel) validName(name string) bool {
	return name != "" && len(name) <= k.MaxNameLength
}
