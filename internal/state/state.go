// Package state persists the sync state: the set of LinkRecords confirmed by
// previous reconciliation runs, under a schema version.
//
// Two backends implement Store. FileStore keeps a JSON document on a
// billy.Filesystem and replaces it atomically (temp file plus rename), with
// optional backups of each previous snapshot. BoltStore keeps the records
// in a bbolt database and commits in a single transaction.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/klauern/marksync/internal/model"
)

// SchemaVersion is the state layout version this build reads and writes.
const SchemaVersion = 1

var (
	// ErrCorrupt means the persisted state cannot be decoded. Fatal until
	// the state is repaired, restored or reset.
	ErrCorrupt = errors.New("sync state is corrupt")
	// ErrUnsupportedVersion means the state was written by a newer build.
	ErrUnsupportedVersion = errors.New("sync state version is not supported")
	// ErrLocked means another process holds the state lock.
	ErrLocked = errors.New("sync state is locked by another process")
	// ErrBackupNotFound means the requested backup does not exist.
	ErrBackupNotFound = errors.New("backup not found")
)

// Snapshot is one consistent view of the sync state.
type Snapshot struct {
	Version   int
	UpdatedAt time.Time
	Links     *model.Links
}

// NewSnapshot returns an empty snapshot at the current schema version.
func NewSnapshot() *Snapshot {
	links, _ := model.NewLinks()
	return &Snapshot{Version: SchemaVersion, Links: links}
}

// Len returns the number of link records.
func (s *Snapshot) Len() int {
	if s == nil || s.Links == nil {
		return 0
	}
	return s.Links.Len()
}

// Store loads and atomically commits snapshots. A Commit either persists
// the whole snapshot or leaves the previous one in place.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Commit(ctx context.Context, snap *Snapshot) error
	Close() error
}

// Locker is implemented by stores that need an explicit cross-process lock
// held for the duration of a run.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// LockBreaker is implemented by stores whose lock can outlive a crashed
// run. BreakLock removes the lock whoever holds it.
type LockBreaker interface {
	BreakLock() error
}

// Resetter is implemented by stores that can discard their state. Reset
// returns where the previous state was moved, if it was kept.
type Resetter interface {
	Reset(ctx context.Context) (string, error)
}

// BackupManager is implemented by stores that keep backups of previous
// snapshots.
type BackupManager interface {
	Backups() ([]Backup, error)
	Restore(ctx context.Context, id string) error
}

// Describer reports where a store keeps its data.
type Describer interface {
	Location() string
}
