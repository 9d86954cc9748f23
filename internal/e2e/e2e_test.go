package e2e

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/klauern/marksync/internal/cli"
	"github.com/klauern/marksync/internal/sync"
)

var (
	goDev     = Entry{ID: "b1", Title: "Go", URL: "https://go.dev", Tags: []string{"lang"}}
	effective = Entry{ID: "b2", Title: "Effective Go", URL: "https://go.dev/doc/effective_go"}
)

func findURL(entries []Entry, url string) (Entry, bool) {
	for _, e := range entries {
		if e.URL == url {
			return e, true
		}
	}
	return Entry{}, false
}

func TestSyncBookmarksToNotebook(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev, effective)

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Created:   2")
	AssertItemURLs(t, h.NotebookItems(), goDev.URL, effective.URL)
	AssertFileExists(t, h.StatePath())

	nb, _ := findURL(h.NotebookItems(), goDev.URL)
	if nb.ID == goDev.ID {
		t.Error("notebook side should assign its own ids")
	}
	if len(nb.Tags) != 1 || nb.Tags[0] != "lang" {
		t.Errorf("tags not carried over: %v", nb.Tags)
	}
}

func TestSyncNotebookSourcesToBookmarks(t *testing.T) {
	h := NewHarness(t)
	h.Notebooks(Entry{ID: "n1", Title: "Tour", URL: "https://go.dev/tour"})

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertItemURLs(t, h.BookmarkItems(), "https://go.dev/tour")
}

func TestSyncIsIdempotent(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev, effective)
	AssertSuccess(t, h.Run("sync"))

	before := h.Home().ReadFile("notebooks.yaml")
	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Created:   0")
	AssertOutputContains(t, r, "Updated:   0")
	AssertFileEquals(t, h.NotebooksPath(), before)
}

func TestSyncLinksExistingMatchesWithoutWrites(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev)
	h.Notebooks(Entry{ID: "n9", Title: "Go", URL: "https://GO.dev/", Tags: []string{"Lang"}})

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Created:   0")
	AssertOutputContains(t, r, "Linked:    1")
	AssertItemURLs(t, h.NotebookItems(), "https://GO.dev/")
}

func TestSyncPropagatesEdits(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev)
	AssertSuccess(t, h.Run("sync"))

	edited := goDev
	edited.Title = "The Go Programming Language"
	edited.Note = "home page"
	h.Bookmarks(edited)

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Updated:   1")

	nb, ok := findURL(h.NotebookItems(), goDev.URL)
	if !ok {
		t.Fatal("notebook lost the item")
	}
	if nb.Title != edited.Title || nb.Note != edited.Note {
		t.Errorf("notebook item = %+v, want title %q note %q", nb, edited.Title, edited.Note)
	}
}

func TestSyncReportsConflicts(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev)
	AssertSuccess(t, h.Run("sync"))

	nb := h.NotebookItems()[0]
	nb.Title = "Notebook edit"
	h.Notebooks(nb)
	bm := goDev
	bm.Title = "Bookmark edit"
	h.Bookmarks(bm)

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Conflicts: 1")
	AssertOutputContains(t, r, "Conflicts requiring resolution")

	if got := h.BookmarkItems()[0].Title; got != "Bookmark edit" {
		t.Errorf("bookmark title = %q, conflict must not be resolved automatically", got)
	}
	if got := h.NotebookItems()[0].Title; got != "Notebook edit" {
		t.Errorf("notebook title = %q, conflict must not be resolved automatically", got)
	}
}

func TestSyncHoldsDeletesUntilPropagated(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev, effective)
	AssertSuccess(t, h.Run("sync"))

	h.Bookmarks(goDev)

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Held:      1")
	AssertItemURLs(t, h.NotebookItems(), goDev.URL, effective.URL)

	r = h.Run("sync", "--propagate-deletes")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Deleted:   1")
	AssertItemURLs(t, h.NotebookItems(), goDev.URL)

	// The link is gone, so the item is not recreated on the next run.
	r = h.Run("sync")
	AssertSuccess(t, r)
	AssertItemURLs(t, h.BookmarkItems(), goDev.URL)
}

func TestSyncPropagateDeletesFromEnvironment(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev, effective)
	AssertSuccess(t, h.Run("sync"))

	h.SetEnv("MARKSYNC_SYNC_PROPAGATE_DELETES", "true")
	h.Notebooks()

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertItemURLs(t, h.BookmarkItems())
}

func TestSyncLeavesAmbiguousItemsAlone(t *testing.T) {
	h := NewHarness(t)
	dup := Entry{Title: "Same", URL: "https://same.example"}
	first, second := dup, dup
	first.ID, second.ID = "b1", "b2"
	h.Bookmarks(first, second)
	h.Notebooks(Entry{ID: "n1", Title: "Same", URL: "https://same.example"})

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Ambiguous: 1")
	AssertItemURLs(t, h.NotebookItems(), "https://same.example")
}

func TestSyncDryRunWritesNothing(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev, effective)

	r := h.Run("sync", "--dry-run")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Dry run")
	AssertOutputContains(t, r, "Create on notebook: 2")
	AssertFileNotExists(t, h.NotebooksPath())
	AssertFileNotExists(t, h.StatePath())
}

func TestSyncJSONReport(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev)

	r := h.Run("sync", "--output", "json")
	AssertSuccess(t, r)

	var report sync.Report
	if err := json.Unmarshal([]byte(r.Stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, r.Stdout)
	}
	if !report.Success || !report.Committed || report.Created != 1 || report.Linked != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.RunID == "" {
		t.Error("report should carry a run id")
	}
}

func TestSyncWithBoltState(t *testing.T) {
	h := NewHarness(t)
	h.SetEnv("MARKSYNC_STATE_BACKEND", "bolt")
	h.SetEnv("MARKSYNC_STATE_PATH", filepath.Join(h.HomeDir(), "state.db"))
	h.Bookmarks(goDev, effective)

	AssertSuccess(t, h.Run("sync"))
	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Created:   0")

	r = h.Run("state", "show")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Links:    2")
	AssertOutputContains(t, r, "state.db")
}

func TestSyncCorruptStateIsFatal(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev)
	h.Home().WriteFile("state/state.json", "{broken")

	r := h.Run("sync")
	AssertError(t, r)
	AssertExitCode(t, r, cli.ExitFatal)
	AssertFileNotExists(t, h.NotebooksPath())
}

func TestStatusCommand(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev)
	AssertSuccess(t, h.Run("sync"))

	r := h.Run("status")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Adapters")
	AssertOutputContains(t, r, "bookmark")
	AssertOutputContains(t, r, "notebook")
	AssertOutputContains(t, r, h.StatePath())
}

func TestStateResetRelinksByFingerprint(t *testing.T) {
	h := NewHarness(t)
	h.Bookmarks(goDev, effective)
	AssertSuccess(t, h.Run("sync"))

	AssertError(t, h.Run("state", "reset"))
	AssertSuccess(t, h.Run("state", "reset", "--yes"))

	r := h.Run("sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Created:   0")
	AssertOutputContains(t, r, "Linked:    2")
	AssertItemURLs(t, h.NotebookItems(), goDev.URL, effective.URL)
}

func TestConfigShowUsesEnvironment(t *testing.T) {
	h := NewHarness(t)

	r := h.Run("config", "show")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "kind: file")
	AssertOutputContains(t, r, h.BookmarksPath())
	AssertOutputContains(t, r, "MARKSYNC_RAINDROP_TOKEN: not set")
}
