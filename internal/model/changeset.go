package model

import (
	"fmt"
	"slices"
	"strings"
)

// Update replaces the content of an existing item on the target side with
// the content of Item, which was read from the opposite side.
type Update struct {
	// TargetID is the id of the item being overwritten.
	TargetID string
	// Item is the changed source item whose content is propagated.
	Item Item
	// Link is the correspondence being refreshed.
	Link LinkRecord
}

// Delete removes an item whose linked counterpart disappeared.
type Delete struct {
	// TargetID is the id of the item to delete.
	TargetID string
	// Item is the item as last fetched, for reporting.
	Item Item
	// Link is the correspondence that will be dropped.
	Link LinkRecord
}

// Conflict is a linked pair where both sides changed since the last sync to
// different content. Conflicts are reported and never auto-resolved.
type Conflict struct {
	Link     LinkRecord
	Bookmark Item
	Notebook Item
}

// Fields returns the names of the content fields that differ between the
// two versions, in a stable order.
func (c Conflict) Fields() []string {
	var fields []string
	b, n := c.Bookmark, c.Notebook
	if NormalizeText(b.Title) != NormalizeText(n.Title) {
		fields = append(fields, "title")
	}
	if NormalizeURL(b.URL) != NormalizeURL(n.URL) {
		fields = append(fields, "url")
	}
	if NormalizeText(b.Note) != NormalizeText(n.Note) {
		fields = append(fields, "note")
	}
	if !slices.Equal(NormalizeTags(b.Tags), NormalizeTags(n.Tags)) {
		fields = append(fields, "tags")
	}
	return fields
}

// Summary returns a brief description of the conflict.
func (c Conflict) Summary() string {
	fields := c.Fields()
	desc := "content differs"
	if len(fields) > 0 {
		desc = strings.Join(fields, ", ") + " differ"
	}
	return fmt.Sprintf("%s: %s", c.Bookmark.DisplayName(), desc)
}

// Ambiguity groups unlinked items that share a fingerprint with more than
// one candidate on the other side. They are reported and never auto-linked.
type Ambiguity struct {
	Fingerprint string
	Bookmarks   []Item
	Notebooks   []Item
}

// Summary returns a brief description of the ambiguity.
func (a Ambiguity) Summary() string {
	title := ""
	switch {
	case len(a.Bookmarks) > 0:
		title = a.Bookmarks[0].DisplayName()
	case len(a.Notebooks) > 0:
		title = a.Notebooks[0].DisplayName()
	}
	return fmt.Sprintf("%s: %d bookmark(s) and %d notebook source(s) share content",
		title, len(a.Bookmarks), len(a.Notebooks))
}

// ChangeSet is the Differ's output for one reconciliation run.
type ChangeSet struct {
	CreatesOnNotebook []Item
	CreatesOnBookmark []Item

	UpdatesOnNotebook []Update
	UpdatesOnBookmark []Update

	DeletesOnNotebook []Delete
	DeletesOnBookmark []Delete

	Conflicts []Conflict

	// Links are correspondences to record without touching either service:
	// fingerprint matches of unlinked items, and linked pairs whose two
	// sides converged on the same content.
	Links []LinkRecord
	// Unlinks are correspondences whose items are gone from both sides.
	Unlinks []LinkRecord

	// Ambiguous lists fingerprint groups left unmatched.
	Ambiguous []Ambiguity
	// HeldDeletes are deletion candidates suppressed because deletion
	// propagation is disabled. Their links are left untouched.
	HeldDeletes []Delete
}

// Creates returns the creates queued for the given side.
func (cs *ChangeSet) Creates(side Side) []Item {
	if side == BookmarkSide {
		return cs.CreatesOnBookmark
	}
	return cs.CreatesOnNotebook
}

// Updates returns the updates queued for the given side.
func (cs *ChangeSet) Updates(side Side) []Update {
	if side == BookmarkSide {
		return cs.UpdatesOnBookmark
	}
	return cs.UpdatesOnNotebook
}

// Deletes returns the deletes queued for the given side.
func (cs *ChangeSet) Deletes(side Side) []Delete {
	if side == BookmarkSide {
		return cs.DeletesOnBookmark
	}
	return cs.DeletesOnNotebook
}

// TotalCreates returns the number of creates on both sides.
func (cs *ChangeSet) TotalCreates() int {
	return len(cs.CreatesOnNotebook) + len(cs.CreatesOnBookmark)
}

// TotalUpdates returns the number of updates on both sides.
func (cs *ChangeSet) TotalUpdates() int {
	return len(cs.UpdatesOnNotebook) + len(cs.UpdatesOnBookmark)
}

// TotalDeletes returns the number of deletes on both sides.
func (cs *ChangeSet) TotalDeletes() int {
	return len(cs.DeletesOnNotebook) + len(cs.DeletesOnBookmark)
}

// HasWrites returns true if applying the change set calls any adapter.
func (cs *ChangeSet) HasWrites() bool {
	return cs.TotalCreates()+cs.TotalUpdates()+cs.TotalDeletes() > 0
}

// IsEmpty returns true if there is nothing to apply, record or resolve.
// Ambiguities and held deletes are informational and do not count.
func (cs *ChangeSet) IsEmpty() bool {
	return !cs.HasWrites() &&
		len(cs.Conflicts) == 0 &&
		len(cs.Links) == 0 &&
		len(cs.Unlinks) == 0
}
