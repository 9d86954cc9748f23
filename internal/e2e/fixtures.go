package e2e

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// Entry is one item in a side file.
type Entry struct {
	ID    string   `yaml:"id"`
	Title string   `yaml:"title,omitempty"`
	URL   string   `yaml:"url,omitempty"`
	Note  string   `yaml:"note,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
}

type sideFile struct {
	Version int     `yaml:"version"`
	Items   []Entry `yaml:"items"`
}

// Fixture provides helpers for creating test fixtures in E2E tests.
type Fixture struct {
	t       *testing.T
	baseDir string
}

// NewFixture creates a new fixture helper rooted at the given directory.
func NewFixture(t *testing.T, baseDir string) *Fixture {
	t.Helper()
	return &Fixture{
		t:       t,
		baseDir: baseDir,
	}
}

// WriteFile writes content to a file relative to the fixture base directory.
// It creates parent directories as needed.
func (f *Fixture) WriteFile(relPath, content string) string {
	f.t.Helper()
	fullPath := filepath.Join(f.baseDir, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		f.t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0o600); err != nil {
		f.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}

	return fullPath
}

// WriteItems writes a side file holding entries.
func (f *Fixture) WriteItems(relPath string, entries ...Entry) string {
	f.t.Helper()
	data, err := yaml.Marshal(sideFile{Version: 1, Items: entries})
	if err != nil {
		f.t.Fatalf("failed to encode items: %v", err)
	}
	return f.WriteFile(relPath, string(data))
}

// ReadItems decodes a side file. A missing file has no items.
func (f *Fixture) ReadItems(relPath string) []Entry {
	f.t.Helper()
	if !f.Exists(relPath) {
		return nil
	}
	var doc sideFile
	if err := yaml.Unmarshal([]byte(f.ReadFile(relPath)), &doc); err != nil {
		f.t.Fatalf("failed to decode %s: %v", relPath, err)
	}
	return doc.Items
}

// Path returns the full path for a relative path.
func (f *Fixture) Path(relPath string) string {
	return filepath.Join(f.baseDir, relPath)
}

// Exists returns true if the file or directory exists.
func (f *Fixture) Exists(relPath string) bool {
	f.t.Helper()
	_, err := os.Stat(filepath.Join(f.baseDir, relPath))
	return err == nil
}

// ReadFile reads and returns the content of a file.
func (f *Fixture) ReadFile(relPath string) string {
	f.t.Helper()
	fullPath := filepath.Join(f.baseDir, relPath)

	// #nosec G304 - fullPath is constructed from trusted test fixture base and test-provided path
	data, err := os.ReadFile(fullPath)
	if err != nil {
		f.t.Fatalf("failed to read file %s: %v", fullPath, err)
	}

	return string(data)
}

// Home returns a fixture rooted at the harness home, where both side files
// and the state live.
func (h *Harness) Home() *Fixture {
	h.t.Helper()
	return NewFixture(h.t, h.homeDir)
}

// Bookmarks writes the bookmark side.
func (h *Harness) Bookmarks(entries ...Entry) {
	h.t.Helper()
	h.Home().WriteItems(filepath.Base(h.BookmarksPath()), entries...)
}

// Notebooks writes the notebook side.
func (h *Harness) Notebooks(entries ...Entry) {
	h.t.Helper()
	h.Home().WriteItems(filepath.Base(h.NotebooksPath()), entries...)
}

// BookmarkItems reads the bookmark side.
func (h *Harness) BookmarkItems() []Entry {
	h.t.Helper()
	return h.Home().ReadItems(filepath.Base(h.BookmarksPath()))
}

// NotebookItems reads the notebook side.
func (h *Harness) NotebookItems() []Entry {
	h.t.Helper()
	return h.Home().ReadItems(filepath.Base(h.NotebooksPath()))
}
