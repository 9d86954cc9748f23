package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/model"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newAdapter(t *testing.T, fs billy.Filesystem) *Adapter {
	t.Helper()
	a, err := New(fs, "collection.yaml", model.NotebookSide, Options{
		NewID: sequentialIDs(),
		Now:   func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return a
}

func TestNew_Validation(t *testing.T) {
	_, err := New(memfs.New(), "x.yaml", model.Side("shelf"), Options{})
	assert.Error(t, err)
	_, err = New(memfs.New(), "", model.BookmarkSide, Options{})
	assert.Error(t, err)
}

func TestAdapter_MissingFileIsEmpty(t *testing.T) {
	a := newAdapter(t, memfs.New())

	items, err := a.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, a.Ping(context.Background()))
}

func TestAdapter_ApplyAndList(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	a := newAdapter(t, fs)

	result, err := a.Apply(ctx, adapter.ApplyRequest{
		Creates: []model.Item{
			{SourceID: "b1", Origin: model.BookmarkSide, Title: "Go", URL: "https://go.dev", Tags: []string{"Lang", "lang"}},
			{SourceID: "b2", Origin: model.BookmarkSide, Title: "Rust", URL: "https://rust-lang.org"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "id-1", result.Outcomes[0].ResultID)
	assert.Empty(t, result.Failed())

	items, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.NotebookSide, items[0].Origin)
	assert.Equal(t, []string{"lang"}, items[0].Tags)
	assert.Equal(t, result.Outcomes[0].Item.Fingerprint, items[0].Fingerprint)

	source := model.Item{Title: "Go", URL: "https://go.dev", Tags: []string{"lang"}}.WithFingerprint()
	assert.Equal(t, source.Fingerprint, items[0].Fingerprint, "round trip must keep the fingerprint")

	result, err = a.Apply(ctx, adapter.ApplyRequest{
		Updates: []model.Update{{TargetID: "id-1", Item: model.Item{Title: "Go!", URL: "https://go.dev"}}},
		Deletes: []model.Delete{{TargetID: "id-2"}, {TargetID: "missing"}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Failed())

	items, err = a.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Go!", items[0].Title)

	data, err := billyutil.ReadFile(fs, "collection.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1")
	assert.Contains(t, string(data), "id: id-1")
}

func TestAdapter_UpdateMissing(t *testing.T) {
	a := newAdapter(t, memfs.New())

	result, err := a.Apply(context.Background(), adapter.ApplyRequest{
		Updates: []model.Update{{TargetID: "ghost", Item: model.Item{Title: "x"}}},
	})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.ErrorIs(t, result.Outcomes[0].Err, adapter.ErrNotFound)
}

func TestAdapter_InvalidFiles(t *testing.T) {
	tests := map[string]string{
		"not yaml":       "items: [unclosed",
		"future version": "version: 9\nitems: []\n",
		"duplicate id":   "items:\n  - id: a\n  - id: a\n",
		"missing id":     "items:\n  - title: x\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			fs := memfs.New()
			require.NoError(t, billyutil.WriteFile(fs, "collection.yaml", []byte(content), 0o600))
			a := newAdapter(t, fs)

			_, err := a.List(context.Background())
			assert.ErrorIs(t, err, adapter.ErrInvalid)
			assert.Error(t, a.Ping(context.Background()))
		})
	}
}

// renameFailFS fails the final rename of an atomic write.
type renameFailFS struct {
	billy.Filesystem
}

func (renameFailFS) Rename(_, _ string) error { return errors.New("disk full") }

func TestAdapter_SaveFailureFailsOutcomes(t *testing.T) {
	a := newAdapter(t, renameFailFS{memfs.New()})

	result, err := a.Apply(context.Background(), adapter.ApplyRequest{
		Creates: []model.Item{{SourceID: "b1", Title: "Go"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Failed(), 1)
	assert.Empty(t, result.Outcomes[0].ResultID)

	items, err := a.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	a, err := Open(path, model.BookmarkSide, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.BookmarkSide, a.Side())
	assert.Equal(t, "file", a.Name())
	assert.Equal(t, path, a.Path())

	_, err = a.Apply(context.Background(), adapter.ApplyRequest{
		Creates: []model.Item{{SourceID: "n1", Title: "Notes", URL: "https://notes.example"}},
	})
	require.NoError(t, err)

	reopened, err := Open(path, model.BookmarkSide, Options{})
	require.NoError(t, err)
	items, err := reopened.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].SourceID)
}
