package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"time"

	billyutil "github.com/go-git/go-billy/v5/util"

	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/util"
)

const (
	// BackupDir is the backup directory next to the state file.
	BackupDir = "backups"
	// IndexFilename is the name of the backup index file.
	IndexFilename = "index.json"
	// IndexVersion is the current version of the backup index format.
	IndexVersion = "1.0"
)

// Backup describes one saved snapshot.
type Backup struct {
	ID        string    `json:"id"`
	File      string    `json:"file"`
	CreatedAt time.Time `json:"created_at"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	Links     int       `json:"links"`
}

// backupIndex maintains the list of backups.
type backupIndex struct {
	Version string            `json:"version"`
	Updated time.Time         `json:"updated"`
	Backups map[string]Backup `json:"backups"`
}

func (s *FileStore) indexPath() string {
	return path.Join(BackupDir, IndexFilename)
}

func (s *FileStore) loadIndex() (*backupIndex, error) {
	data, err := billyutil.ReadFile(s.fs, s.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return &backupIndex{Version: IndexVersion, Backups: make(map[string]Backup)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup index: %w", err)
	}
	var idx backupIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse backup index: %w", err)
	}
	if idx.Backups == nil {
		idx.Backups = make(map[string]Backup)
	}
	return &idx, nil
}

func (s *FileStore) saveIndex(idx *backupIndex) error {
	idx.Updated = s.opts.Now().UTC()
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup index: %w", err)
	}
	return util.WriteFileAtomic(s.fs, s.indexPath(), data)
}

// backupCurrent saves the current state file, if any and if it is
// readable, then applies retention.
func (s *FileStore) backupCurrent() error {
	data, err := billyutil.ReadFile(s.fs, s.name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	links := 0
	if snap, err := decodeDocument(data); err == nil {
		links = snap.Len()
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	now := s.opts.Now().UTC()
	id := now.Format("20060102-150405.000") + "-" + hash[:8]
	b := Backup{
		ID:        id,
		File:      path.Join(BackupDir, id+".json"),
		CreatedAt: now,
		Hash:      hash,
		Size:      int64(len(data)),
		Links:     links,
	}

	if err := util.WriteFileAtomic(s.fs, b.File, data); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	idx.Backups[b.ID] = b
	s.pruneBackups(idx, now)
	return s.saveIndex(idx)
}

// pruneBackups drops backups beyond MaxBackups or older than MaxBackupAge,
// always keeping the newest one.
func (s *FileStore) pruneBackups(idx *backupIndex, now time.Time) {
	backups := sortedBackups(idx)
	for i, b := range backups {
		if i == 0 {
			continue
		}
		tooMany := s.opts.MaxBackups > 0 && i >= s.opts.MaxBackups
		tooOld := s.opts.MaxBackupAge > 0 && now.Sub(b.CreatedAt) > s.opts.MaxBackupAge
		if !tooMany && !tooOld {
			continue
		}
		if err := s.fs.Remove(b.File); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove old backup", logging.Path(b.File), logging.Err(err))
			continue
		}
		delete(idx.Backups, b.ID)
	}
}

// sortedBackups returns the index entries newest first.
func sortedBackups(idx *backupIndex) []Backup {
	out := make([]Backup, 0, len(idx.Backups))
	for _, b := range idx.Backups {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Backups implements BackupManager, newest first.
func (s *FileStore) Backups() ([]Backup, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return sortedBackups(idx), nil
}

// Restore implements BackupManager. The backup's hash and content are
// verified before it replaces the current state, which is itself backed up
// first when backups are enabled. Restore fails with ErrLocked while another
// process holds the lock.
func (s *FileStore) Restore(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.exclusive(func() error {
		return s.restore(id)
	})
}

func (s *FileStore) restore(id string) error {
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	b, ok := idx.Backups[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBackupNotFound, id)
	}

	data, err := billyutil.ReadFile(s.fs, b.File)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", id, err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != b.Hash {
		return fmt.Errorf("backup %s: %w: hash mismatch", id, ErrCorrupt)
	}
	if _, err := decodeDocument(data); err != nil {
		return fmt.Errorf("backup %s: %w", id, err)
	}

	if s.opts.MaxBackups > 0 {
		if err := s.backupCurrent(); err != nil {
			return fmt.Errorf("back up state before restore: %w", err)
		}
	}
	if err := util.WriteFileAtomic(s.fs, s.name, data); err != nil {
		return fmt.Errorf("restore backup %s: %w", id, err)
	}
	s.logger.Info("state restored", logging.Path(s.location), slog.String("backup", id))
	return nil
}
