package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/model"
)

var (
	metaBucket  = []byte("meta")
	linksBucket = []byte("links")

	keyVersion   = []byte("version")
	keyUpdatedAt = []byte("updated_at")
)

// BoltOptions configures a BoltStore.
type BoltOptions struct {
	// LockTimeout bounds the wait for bbolt's file lock.
	LockTimeout time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// BoltStore keeps the state in a bbolt database. bbolt's own file lock
// excludes other processes for as long as the store is open.
type BoltStore struct {
	db     *bbolt.DB
	path   string
	now    func() time.Time
	logger *slog.Logger
}

var (
	_ Store    = (*BoltStore)(nil)
	_ Resetter = (*BoltStore)(nil)
)

// OpenBoltStore opens (or creates) the database at path.
func OpenBoltStore(path string, opts BoltOptions) (*BoltStore, error) {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: opts.LockTimeout})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorrupt, path, err)
	}

	return &BoltStore{
		db:     db,
		path:   path,
		now:    opts.Now,
		logger: logging.Or(opts.Logger),
	}, nil
}

// Location implements Describer.
func (s *BoltStore) Location() string {
	return s.path
}

// Load implements Store. A database without the meta bucket is empty.
func (s *BoltStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snap *Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			snap = NewSnapshot()
			return nil
		}

		version, err := strconv.Atoi(string(meta.Get(keyVersion)))
		if err != nil {
			return fmt.Errorf("%w: bad version: %v", ErrCorrupt, err)
		}
		if err := checkVersion(version); err != nil {
			return err
		}

		var updated time.Time
		if raw := meta.Get(keyUpdatedAt); raw != nil {
			if err := updated.UnmarshalText(raw); err != nil {
				return fmt.Errorf("%w: bad updated_at: %v", ErrCorrupt, err)
			}
		}

		records := make(map[string]model.LinkRecord)
		if b := tx.Bucket(linksBucket); b != nil {
			err := b.ForEach(func(k, v []byte) error {
				var r model.LinkRecord
				if err := json.Unmarshal(v, &r); err != nil {
					return fmt.Errorf("%w: link %s: %v", ErrCorrupt, k, err)
				}
				records[string(k)] = r
				return nil
			})
			if err != nil {
				return err
			}
		}

		snap, err = snapshotFromRecords(version, updated, records)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", s.path, err)
	}
	return snap, nil
}

// Commit implements Store. The links bucket is replaced and the version
// written in one transaction.
func (s *BoltStore) Commit(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now().UTC()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(linksBucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		links, err := tx.CreateBucket(linksBucket)
		if err != nil {
			return err
		}
		if snap.Links != nil {
			for _, r := range snap.Links.Records() {
				data, err := json.Marshal(r)
				if err != nil {
					return err
				}
				if err := links.Put([]byte(r.BookmarkID), data); err != nil {
					return err
				}
			}
		}

		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if err := meta.Put(keyVersion, []byte(strconv.Itoa(SchemaVersion))); err != nil {
			return err
		}
		ts, err := snap.UpdatedAt.MarshalText()
		if err != nil {
			return err
		}
		return meta.Put(keyUpdatedAt, ts)
	})
	if err != nil {
		return fmt.Errorf("commit state %s: %w", s.path, err)
	}
	s.logger.Debug("state committed", logging.Path(s.path), logging.Count(snap.Len()))
	return nil
}

// Reset implements Resetter by dropping both buckets.
func (s *BoltStore) Reset(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{linksBucket, metaBucket} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reset state %s: %w", s.path, err)
	}
	s.logger.Info("state reset", logging.Path(s.path))
	return "", nil
}

// Close implements Store and releases the file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
