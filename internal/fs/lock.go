package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrWouldBlock is returned when the lock is held elsewhere and could not
	// be taken before the timeout.
	ErrWouldBlock = errors.New("lock would block")

	// ErrInvalidTimeout is returned when a timeout is < 0.
	ErrInvalidTimeout = errors.New("invalid lock timeout")

	// errInodeMismatch means the lock file was replaced between open and
	// flock. Callers retry.
	errInodeMismatch = errors.New("inode mismatch")
)

// Locker takes exclusive flock(2) locks on dedicated lock files.
//
// flock is advisory and applies to an inode, so the lock file must stay in
// place while held. After flock succeeds the Locker checks that the locked
// descriptor still refers to the file at path and retries if it was
// replaced in the meantime.
//
// This implementation is Unix-only.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker creates a Locker that opens lock files through fs.
func NewLocker(fs FS) *Locker {
	return &Locker{
		fs:    fs,
		flock: unix.Flock,
	}
}

// Lock is a held lock. Call [Lock.Close] to release it.
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close releases the lock and closes the lock file. Close is idempotent.
//
// If both unlocking and closing fail, the returned error wraps both.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())

	unlockErr := flockRetryEINTR(lk.flock, fd, unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlocking lock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// TryLock takes the lock at path or returns [ErrWouldBlock] at once.
func (l *Locker) TryLock(path string) (*Lock, error) {
	return l.lockPolling(path, 0)
}

// LockWithTimeout polls for the lock at path with backoff (1ms up to 25ms)
// until timeout expires. A zero timeout behaves like [Locker.TryLock].
//
// Returns an error satisfying [errors.Is] with [ErrWouldBlock] on timeout
// and [ErrInvalidTimeout] if timeout < 0.
func (l *Locker) LockWithTimeout(path string, timeout time.Duration) (*Lock, error) {
	if timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must be >= 0", ErrInvalidTimeout)
	}

	return l.lockPolling(path, timeout)
}

const maxBackoff = 25 * time.Millisecond

func (l *Locker) lockPolling(path string, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)
	backoff := time.Millisecond

	for {
		file, err := l.openLockFile(path)
		if err != nil {
			return nil, fmt.Errorf("opening lockfile: %w", err)
		}

		err = l.acquire(file, path)
		if err == nil {
			return &Lock{file: file, flock: l.flock}, nil
		}

		_ = file.Close()

		if !errors.Is(err, ErrWouldBlock) && !errors.Is(err, errInodeMismatch) {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if timeout == 0 {
				return nil, ErrWouldBlock
			}

			return nil, fmt.Errorf("%w: timed out after %s", ErrWouldBlock, timeout)
		}

		time.Sleep(min(backoff, remaining))

		backoff = min(backoff*2, maxBackoff)
	}
}

// acquire flocks file without blocking and verifies it is still the file at
// path. On failure the file is unlocked but not closed.
func (l *Locker) acquire(file File, path string) error {
	fd := int(file.Fd())

	err := flockRetryEINTR(l.flock, fd, unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return ErrWouldBlock
		}

		return fmt.Errorf("flock: %w", err)
	}

	match, err := l.inodeMatchesPath(path, file)
	if err != nil || !match {
		_ = flockRetryEINTR(l.flock, fd, unix.LOCK_UN)

		if err == nil || errors.Is(err, os.ErrNotExist) {
			return errInodeMismatch
		}

		return fmt.Errorf("verifying inode match: %w", err)
	}

	return nil
}

const (
	lockFilePerm = 0o600
	lockDirPerm  = 0o755
)

func (l *Locker) openLockFile(path string) (File, error) {
	f, err := l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), lockDirPerm); err != nil {
		return nil, err
	}

	return l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
}

// inodeMatchesPath compares (dev, inode) of the open lock file with the file
// currently at path.
func (l *Locker) inodeMatchesPath(path string, f File) (bool, error) {
	var open, current unix.Stat_t

	err := unix.Fstat(int(f.Fd()), &open)
	if err != nil {
		return false, err
	}

	err = unix.Stat(path, &current)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, os.ErrNotExist
		}

		return false, err
	}

	return open.Dev == current.Dev && open.Ino == current.Ino, nil
}

// flockRetryEINTR retries flock when a signal interrupts it, with a cap so a
// signal storm cannot spin forever.
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
