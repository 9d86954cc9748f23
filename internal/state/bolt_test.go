package state

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func openTestBolt(t *testing.T, path string) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(path, BoltOptions{LockTimeout: 50 * time.Millisecond, Now: testClock()})
	require.NoError(t, err)
	return s
}

func TestBoltStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	s := openTestBolt(t, path)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())

	require.NoError(t, s.Commit(ctx, snapshotOf(t, link("b1", "n1"), link("b2", "n2"))))
	require.NoError(t, s.Commit(ctx, snapshotOf(t, link("b2", "n2"))))
	require.NoError(t, s.Close())

	s = openTestBolt(t, path)
	defer s.Close()
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len(), "commit replaces the previous link set")
	_, ok := snap.Links.ByBookmark("b2")
	assert.True(t, ok)
}

func TestBoltStore_SecondOpenIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s := openTestBolt(t, path)
	defer s.Close()

	_, err := OpenBoltStore(path, BoltOptions{LockTimeout: 50 * time.Millisecond})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestBoltStore_FutureVersion(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t, filepath.Join(t.TempDir(), "state.db"))
	defer s.Close()

	require.NoError(t, s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		return meta.Put(keyVersion, []byte(strconv.Itoa(SchemaVersion+1)))
	}))

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = s.Reset(ctx)
	require.NoError(t, err)
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}
