package model

import (
	"fmt"
	"strings"
)

// Side identifies one of the two collections being reconciled.
type Side string

const (
	// BookmarkSide is the bookmarking service (Raindrop).
	BookmarkSide Side = "bookmark"
	// NotebookSide is the document-notes service (notebook sources).
	NotebookSide Side = "notebook"
)

// IsValid returns true if the side is recognized
func (s Side) IsValid() bool {
	switch s {
	case BookmarkSide, NotebookSide:
		return true
	default:
		return false
	}
}

// Opposite returns the other side of the sync pair.
func (s Side) Opposite() Side {
	if s == BookmarkSide {
		return NotebookSide
	}
	return BookmarkSide
}

// String returns the string representation of the side.
func (s Side) String() string {
	return string(s)
}

// AllSides returns both sides, bookmark first.
func AllSides() []Side {
	return []Side{BookmarkSide, NotebookSide}
}

// ParseSide converts a string to a Side, accepting a few common aliases.
func ParseSide(s string) (Side, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	side := Side(normalized)
	if side.IsValid() {
		return side, nil
	}

	switch normalized {
	case "bookmarks", "raindrop", "b":
		return BookmarkSide, nil
	case "notebooks", "notebooklm", "sources", "n":
		return NotebookSide, nil
	default:
		return "", fmt.Errorf("unknown side %q (valid: bookmark, notebook)", s)
	}
}
