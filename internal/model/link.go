package model

import (
	"fmt"
	"sort"
	"time"
)

// LinkRecord is a confirmed correspondence between one bookmark and one
// notebook source, with the fingerprints both had after the last sync.
type LinkRecord struct {
	BookmarkID          string    `json:"bookmark_id"`
	NotebookID          string    `json:"notebook_id"`
	BookmarkFingerprint string    `json:"last_synced_fingerprint_bookmark"`
	NotebookFingerprint string    `json:"last_synced_fingerprint_notebook"`
	LastSyncedAt        time.Time `json:"last_synced_at"`
}

// ID returns the record's id on the given side.
func (l LinkRecord) ID(side Side) string {
	if side == BookmarkSide {
		return l.BookmarkID
	}
	return l.NotebookID
}

// Fingerprint returns the last synced fingerprint for the given side.
func (l LinkRecord) Fingerprint(side Side) string {
	if side == BookmarkSide {
		return l.BookmarkFingerprint
	}
	return l.NotebookFingerprint
}

// String returns "bookmark_id<->notebook_id".
func (l LinkRecord) String() string {
	return l.BookmarkID + "<->" + l.NotebookID
}

// Links is a 1:1 index of LinkRecords by both bookmark and notebook id.
// The zero value is not usable; call NewLinks.
type Links struct {
	byBookmark map[string]LinkRecord
	byNotebook map[string]string
}

// NewLinks builds an index from records, rejecting any record that would
// break the 1:1 correspondence.
func NewLinks(records ...LinkRecord) (*Links, error) {
	l := &Links{
		byBookmark: make(map[string]LinkRecord, len(records)),
		byNotebook: make(map[string]string, len(records)),
	}
	for _, r := range records {
		if err := l.Add(r); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add inserts a new record. Either id already being linked is an error.
func (l *Links) Add(r LinkRecord) error {
	if r.BookmarkID == "" || r.NotebookID == "" {
		return fmt.Errorf("link %s: both ids are required", r)
	}
	if existing, ok := l.byBookmark[r.BookmarkID]; ok {
		return fmt.Errorf("bookmark %q is already linked to notebook source %q", r.BookmarkID, existing.NotebookID)
	}
	if existing, ok := l.byNotebook[r.NotebookID]; ok {
		return fmt.Errorf("notebook source %q is already linked to bookmark %q", r.NotebookID, existing)
	}
	l.byBookmark[r.BookmarkID] = r
	l.byNotebook[r.NotebookID] = r.BookmarkID
	return nil
}

// Put inserts or replaces the record for r.BookmarkID. A previous record for
// the same bookmark is removed first, so a changed notebook id is re-indexed.
func (l *Links) Put(r LinkRecord) error {
	l.RemoveBookmark(r.BookmarkID)
	return l.Add(r)
}

// RemoveBookmark deletes the record linked to a bookmark id, if any.
func (l *Links) RemoveBookmark(bookmarkID string) {
	if r, ok := l.byBookmark[bookmarkID]; ok {
		delete(l.byNotebook, r.NotebookID)
		delete(l.byBookmark, bookmarkID)
	}
}

// ByBookmark looks up a record by bookmark id.
func (l *Links) ByBookmark(id string) (LinkRecord, bool) {
	r, ok := l.byBookmark[id]
	return r, ok
}

// ByNotebook looks up a record by notebook source id.
func (l *Links) ByNotebook(id string) (LinkRecord, bool) {
	bid, ok := l.byNotebook[id]
	if !ok {
		return LinkRecord{}, false
	}
	return l.byBookmark[bid], true
}

// BySide looks up a record by the id it holds for the given side.
func (l *Links) BySide(side Side, id string) (LinkRecord, bool) {
	if side == BookmarkSide {
		return l.ByBookmark(id)
	}
	return l.ByNotebook(id)
}

// Len returns the number of records.
func (l *Links) Len() int {
	return len(l.byBookmark)
}

// Records returns all records sorted by bookmark id.
func (l *Links) Records() []LinkRecord {
	out := make([]LinkRecord, 0, len(l.byBookmark))
	for _, r := range l.byBookmark {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BookmarkID < out[j].BookmarkID
	})
	return out
}

// Clone returns an independent copy of the index.
func (l *Links) Clone() *Links {
	c := &Links{
		byBookmark: make(map[string]LinkRecord, len(l.byBookmark)),
		byNotebook: make(map[string]string, len(l.byNotebook)),
	}
	for k, v := range l.byBookmark {
		c.byBookmark[k] = v
	}
	for k, v := range l.byNotebook {
		c.byNotebook[k] = v
	}
	return c
}
