// Package hostdir copies files between a host directory and an in-memory
// [fdsys.Kernel].
//
// [Import] seeds a kernel from the regular files of one directory. [Export]
// writes the kernel's registry back out under an exclusive directory lock,
// together with a MANIFEST of BLAKE3 digests.
//
// Both directions are flat: the kernel has no hierarchy, so subdirectories are
// ignored on import and names containing a path separator are skipped on
// export.
package hostdir

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/fdsys/internal/fs"
	"github.com/calvinalkan/fdsys/pkg/fdsys"
)

const (
	// ManifestName is the digest listing written by [Export].
	ManifestName = "MANIFEST"

	// LockName is the lock file [Export] holds inside the target directory.
	LockName = ".fdsh.lock"

	exportWorkers = 4
	filePerm      = 0o644
	dirPerm       = 0o755
)

// ErrLocked is returned by [Export] when another exporter holds the
// directory lock for longer than the caller is willing to wait.
var ErrLocked = errors.New("hostdir: directory is locked by another export")

// Skip names a file that was not copied and why.
type Skip struct {
	Name   string
	Reason string
}

// ImportResult reports what [Import] loaded.
type ImportResult struct {
	Loaded  int
	Skipped []Skip
}

// ExportResult reports what [Export] wrote.
type ExportResult struct {
	Written int
	Skipped []Skip
	// Manifest is the MANIFEST body as written.
	Manifest string
}

// Import loads every regular file directly inside dir into k with
// [fdsys.Kernel.Load]. Dot-files and the MANIFEST are ignored. Names the
// kernel rejects are reported in [ImportResult.Skipped] instead of failing
// the import.
func Import(ctx context.Context, fsys fs.FS, dir string, k *fdsys.Kernel) (ImportResult, error) {
	var res ImportResult

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == ManifestName || !entry.Type().IsRegular() {
			continue
		}

		data, err := fsys.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return res, fmt.Errorf("reading %s: %w", name, err)
		}

		err = k.Load(name, data)
		if err != nil {
			if errors.Is(err, fdsys.ErrInvalidArgument) {
				res.Skipped = append(res.Skipped, Skip{Name: name, Reason: err.Error()})

				continue
			}

			return res, fmt.Errorf("loading %s: %w", name, err)
		}

		res.Loaded++
	}

	return res, nil
}

type exportFile struct {
	name string
	data []byte
}

// Export writes every file registered in k into dir, which is created if
// missing. Files are written in parallel with atomic temp+rename writes while
// an exclusive lock on dir/.fdsh.lock is held. If another export holds the
// lock, Export waits up to wait for it before returning [ErrLocked]; zero
// does not wait at all. The MANIFEST is written last,
// one line per file sorted by name:
//
//	<blake3-hex>  <size>  <name>
//
// Files in dir that are not registered in k are left alone.
func Export(ctx context.Context, fsys fs.FS, dir string, k *fdsys.Kernel, wait time.Duration) (ExportResult, error) {
	var res ExportResult

	err := fsys.MkdirAll(dir, dirPerm)
	if err != nil {
		return res, fmt.Errorf("creating %s: %w", dir, err)
	}

	lock, err := fs.NewLocker(fsys).LockWithTimeout(filepath.Join(dir, LockName), wait)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return res, fmt.Errorf("%w: %s", ErrLocked, dir)
		}

		return res, fmt.Errorf("locking %s: %w", dir, err)
	}
	defer lock.Close()

	var files []exportFile

	for _, info := range k.Files() {
		if reason := unsafeName(info.Name); reason != "" {
			res.Skipped = append(res.Skipped, Skip{Name: info.Name, Reason: reason})

			continue
		}

		data, err := k.Snapshot(info.Name)
		if err != nil {
			// Unlinked since Files() was taken.
			if errors.Is(err, fdsys.ErrNotFound) {
				continue
			}

			return res, err
		}

		files = append(files, exportFile{name: info.Name, data: data})
	}

	sums := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportWorkers)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			sums[i] = Digest(f.data)

			err := fsys.WriteFileAtomic(filepath.Join(dir, f.name), f.data, filePerm)
			if err != nil {
				return fmt.Errorf("writing %s: %w", f.name, err)
			}

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return res, err
	}

	res.Written = len(files)
	res.Manifest = manifest(files, sums)

	err = fsys.WriteFileAtomic(filepath.Join(dir, ManifestName), []byte(res.Manifest), filePerm)
	if err != nil {
		return res, fmt.Errorf("writing %s: %w", ManifestName, err)
	}

	return res, nil
}

// Digest returns the hex BLAKE3-256 digest of data, as listed in the MANIFEST.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// manifest expects files in name order, as returned by [fdsys.Kernel.Files].
func manifest(files []exportFile, sums []string) string {
	var b strings.Builder

	for i, f := range files {
		fmt.Fprintf(&b, "%s  %d  %s\n", sums[i], len(f.data), f.name)
	}

	return b.String()
}

// unsafeName returns why name cannot be written as a file in the export
// directory, or "" if it can.
func unsafeName(name string) string {
	switch {
	case strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator):
		return "name contains a path separator"
	case strings.HasPrefix(name, "."):
		return "dot-files are not exported"
	case name == ManifestName:
		return "name is reserved for the manifest"
	case strings.ContainsRune(name, 0):
		return "name contains a NUL byte"
	}

	return ""
}
