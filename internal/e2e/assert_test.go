package e2e

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAssertHelpers(t *testing.T) {
	r := &Result{Stdout: "ok", Err: nil, ExitCode: 0}

	AssertSuccess(t, r)
	AssertExitCode(t, r, 0)
	AssertOutputEquals(t, r, "ok")
}

func TestAssertFileEquals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	AssertFileEquals(t, path, "content")
}

func TestAssertItemURLs(t *testing.T) {
	entries := []Entry{{ID: "1", URL: "https://a.example"}, {ID: "2", URL: "https://b.example"}}
	AssertItemURLs(t, entries, "https://b.example", "https://a.example")
	AssertItemURLs(t, nil)
}

func TestFixtureItemsRoundTrip(t *testing.T) {
	f := NewFixture(t, t.TempDir())
	if got := f.ReadItems("missing.yaml"); got != nil {
		t.Errorf("missing file should have no items, got %v", got)
	}

	f.WriteItems("side.yaml", Entry{ID: "x", Title: "X", URL: "https://x.example", Tags: []string{"t"}})
	got := f.ReadItems("side.yaml")
	if len(got) != 1 || got[0].ID != "x" || got[0].Tags[0] != "t" {
		t.Errorf("ReadItems() = %+v", got)
	}
}
