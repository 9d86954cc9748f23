package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	billyutil "github.com/go-git/go-billy/v5/util"

	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/util"
)

// DefaultStateFile is the state file name inside the filesystem root.
const DefaultStateFile = "state.json"

// FileOptions configures a FileStore.
type FileOptions struct {
	// Name is the state file path relative to the filesystem root.
	Name string
	// MaxBackups is the number of previous snapshots kept (0 disables backups).
	MaxBackups int
	// MaxBackupAge drops backups older than this (0 = unlimited).
	MaxBackupAge time.Duration
	Logger       *slog.Logger
	// Now is the clock, for tests.
	Now func() time.Time
}

// FileStore keeps the state as a JSON document on a billy.Filesystem.
type FileStore struct {
	fs       billy.Filesystem
	name     string
	opts     FileOptions
	logger   *slog.Logger
	location string
	lock     *lockFile
}

var (
	_ Store         = (*FileStore)(nil)
	_ Locker        = (*FileStore)(nil)
	_ Resetter      = (*FileStore)(nil)
	_ BackupManager = (*FileStore)(nil)
)

// NewFileStore creates a store on fs.
func NewFileStore(fs billy.Filesystem, opts FileOptions) *FileStore {
	if opts.Name == "" {
		opts.Name = DefaultStateFile
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FileStore{
		fs:       fs,
		name:     opts.Name,
		opts:     opts,
		logger:   logging.Or(opts.Logger),
		location: filepath.Join(fs.Root(), opts.Name),
		lock:     &lockFile{fs: fs, name: opts.Name + ".lock"},
	}
}

// OpenFileStore creates a store for the state file at path on the OS
// filesystem. Backups go to a "backups" directory next to it.
func OpenFileStore(path string, opts FileOptions) *FileStore {
	opts.Name = filepath.Base(path)
	return NewFileStore(osfs.New(filepath.Dir(path)), opts)
}

// Location implements Describer.
func (s *FileStore) Location() string {
	return s.location
}

// Load implements Store. A missing file is an empty state.
func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := billyutil.ReadFile(s.fs, s.name)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("no state file, starting empty", logging.Path(s.location))
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", s.location, err)
	}
	snap, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", s.location, err)
	}
	return snap, nil
}

// Commit implements Store. The previous document is backed up first when
// backups are enabled, then replaced by temp file and rename.
func (s *FileStore) Commit(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.opts.Now().UTC()
	}
	data, err := encodeDocument(snap)
	if err != nil {
		return err
	}

	if s.opts.MaxBackups > 0 {
		if err := s.backupCurrent(); err != nil {
			return fmt.Errorf("back up state before commit: %w", err)
		}
	}

	if err := util.WriteFileAtomic(s.fs, s.name, data); err != nil {
		return fmt.Errorf("commit state %s: %w", s.location, err)
	}
	s.logger.Debug("state committed", logging.Path(s.location), logging.Count(snap.Len()))
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

// Lock implements Locker with an exclusive lock file.
func (s *FileStore) Lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.lock.acquire(s.opts.Now())
}

// Unlock implements Locker.
func (s *FileStore) Unlock() error {
	return s.lock.release(false)
}

// BreakLock implements LockBreaker.
func (s *FileStore) BreakLock() error {
	if err := s.lock.release(true); err != nil {
		return err
	}
	s.logger.Warn("state lock removed", logging.Path(filepath.Join(s.fs.Root(), s.lock.name)))
	return nil
}

// exclusive runs fn under the lock file. A lock this store already holds is
// reused and left held.
func (s *FileStore) exclusive(fn func() error) error {
	if s.lock.held {
		return fn()
	}
	if err := s.lock.acquire(s.opts.Now()); err != nil {
		return err
	}
	defer func() { _ = s.lock.release(false) }()
	return fn()
}

// Reset implements Resetter. The current file is moved aside rather than
// deleted. Reset fails with ErrLocked while another process holds the lock.
func (s *FileStore) Reset(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var moved string
	err := s.exclusive(func() error {
		if _, err := s.fs.Stat(s.name); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		aside := fmt.Sprintf("%s.reset-%s", s.name, s.opts.Now().UTC().Format("20060102-150405"))
		if err := s.fs.Rename(s.name, aside); err != nil {
			return fmt.Errorf("move state aside: %w", err)
		}
		moved = filepath.Join(s.fs.Root(), aside)
		return nil
	})
	if err != nil {
		return "", err
	}
	if moved != "" {
		s.logger.Info("state reset", logging.Path(moved))
	}
	return moved, nil
}

// lockFile is an O_EXCL lock file holding the owner's pid.
type lockFile struct {
	fs   billy.Filesystem
	name string
	held bool
}

func (l *lockFile) acquire(now time.Time) error {
	f, err := l.fs.OpenFile(l.name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w (remove %s if no other marksync is running)", ErrLocked, filepath.Join(l.fs.Root(), l.name))
	}
	if err != nil {
		return fmt.Errorf("create lock file: %w", err)
	}
	_, werr := fmt.Fprintf(f, "pid=%d\nsince=%s\n", os.Getpid(), now.UTC().Format(time.RFC3339))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = l.fs.Remove(l.name)
		return fmt.Errorf("write lock file: %w", werr)
	}
	l.held = true
	return nil
}

// release removes the lock file if this process holds it, or unconditionally
// when force is set.
func (l *lockFile) release(force bool) error {
	if !l.held && !force {
		return nil
	}
	l.held = false
	err := l.fs.Remove(l.name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}
