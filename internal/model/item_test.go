package model

import (
	"strings"
	"testing"
)

func TestValidateSnapshot(t *testing.T) {
	tests := map[string]struct {
		items   []Item
		wantErr string
	}{
		"valid": {
			items: []Item{
				{SourceID: "1", Origin: BookmarkSide},
				{SourceID: "2", Origin: BookmarkSide},
			},
		},
		"duplicate id": {
			items: []Item{
				{SourceID: "1", Origin: BookmarkSide},
				{SourceID: "1", Origin: BookmarkSide},
			},
			wantErr: "duplicate",
		},
		"wrong origin": {
			items:   []Item{{SourceID: "1", Origin: NotebookSide}},
			wantErr: "origin",
		},
		"empty id": {
			items:   []Item{{Origin: BookmarkSide, Title: "untitled"}},
			wantErr: "empty source id",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateSnapshot(BookmarkSide, tt.items)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateSnapshot() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateSnapshot() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestItem_WithFingerprint(t *testing.T) {
	it := Item{Title: "x", Tags: []string{"B", "a"}}.WithFingerprint()
	if it.Fingerprint == "" {
		t.Fatal("WithFingerprint() left fingerprint empty")
	}
	if strings.Join(it.Tags, ",") != "a,b" {
		t.Errorf("Tags = %v, want normalized [a b]", it.Tags)
	}

	preset := Item{Title: "x", Fingerprint: "sha256:preset"}.WithFingerprint()
	if preset.Fingerprint != "sha256:preset" {
		t.Errorf("WithFingerprint() overwrote preset fingerprint: %q", preset.Fingerprint)
	}
}

func TestConflict_Fields(t *testing.T) {
	c := Conflict{
		Bookmark: Item{Title: "A", URL: "https://x.test", Tags: []string{"one"}},
		Notebook: Item{Title: "B", URL: "https://x.test/", Tags: []string{"two"}},
	}
	got := strings.Join(c.Fields(), ",")
	if got != "title,tags" {
		t.Errorf("Fields() = %q, want %q", got, "title,tags")
	}
	if !strings.Contains(c.Summary(), "title, tags differ") {
		t.Errorf("Summary() = %q", c.Summary())
	}
}

func TestChangeSet_IsEmpty(t *testing.T) {
	cs := &ChangeSet{}
	if !cs.IsEmpty() {
		t.Error("zero ChangeSet should be empty")
	}

	cs.Ambiguous = []Ambiguity{{Fingerprint: "f"}}
	cs.HeldDeletes = []Delete{{TargetID: "x"}}
	if !cs.IsEmpty() {
		t.Error("ambiguities and held deletes should not make a ChangeSet non-empty")
	}

	cs.Links = []LinkRecord{{BookmarkID: "b", NotebookID: "n"}}
	if cs.IsEmpty() {
		t.Error("ChangeSet with links should not be empty")
	}
	if cs.HasWrites() {
		t.Error("link bookkeeping is not an adapter write")
	}
}
