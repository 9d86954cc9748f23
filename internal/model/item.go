package model

import (
	"fmt"
	"time"
)

// Item is a synchronizable unit fetched from either side.
// Items are rebuilt on every fetch and never persisted.
type Item struct {
	SourceID    string    `json:"source_id" yaml:"id"`
	Origin      Side      `json:"origin" yaml:"-"`
	Title       string    `json:"title" yaml:"title"`
	URL         string    `json:"url" yaml:"url"`
	Note        string    `json:"note,omitempty" yaml:"note,omitempty"`
	Tags        []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Fingerprint string    `json:"fingerprint" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// Key returns the snapshot-unique identity of the item ("origin:source_id").
func (i Item) Key() string {
	return string(i.Origin) + ":" + i.SourceID
}

// WithFingerprint returns a copy of the item with its tags normalized and
// its fingerprint computed if it was not already set.
func (i Item) WithFingerprint() Item {
	i.Tags = NormalizeTags(i.Tags)
	if i.Fingerprint == "" {
		i.Fingerprint = Fingerprint(i)
	}
	return i
}

// Content returns a copy of the item carrying only the content fields, with
// origin and identity cleared. It is what gets written to the other side.
func (i Item) Content() Item {
	return Item{
		Title: i.Title,
		URL:   i.URL,
		Note:  i.Note,
		Tags:  append([]string(nil), i.Tags...),
	}
}

// DisplayName returns a short human-readable label for the item.
func (i Item) DisplayName() string {
	switch {
	case i.Title != "":
		return i.Title
	case i.URL != "":
		return i.URL
	default:
		return i.SourceID
	}
}

// ValidateSnapshot checks the invariants of one fetch snapshot: every item
// belongs to the given side, has an id, and (origin, source_id) is unique.
func ValidateSnapshot(side Side, items []Item) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.SourceID == "" {
			return fmt.Errorf("%s item %q has an empty source id", side, it.DisplayName())
		}
		if it.Origin != side {
			return fmt.Errorf("item %s has origin %q, expected %q", it.SourceID, it.Origin, side)
		}
		if _, dup := seen[it.SourceID]; dup {
			return fmt.Errorf("duplicate %s item id %q in snapshot", side, it.SourceID)
		}
		seen[it.SourceID] = struct{}{}
	}
	return nil
}
