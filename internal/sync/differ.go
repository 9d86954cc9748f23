package sync

import (
	"github.com/klauern/marksync/internal/model"
)

// DiffOptions tunes the Differ.
type DiffOptions struct {
	// PropagateDeletes turns deletion candidates into deletes. When false
	// they are held and reported, and their links are left untouched.
	PropagateDeletes bool
}

// Diff computes the change set for a match result. Linked pairs are compared
// against the fingerprints recorded at the last sync:
//   - neither side changed: nothing to do
//   - one side changed: update the other side with its content
//   - both changed to the same content: refresh the link only
//   - both changed to different content: one conflict, no updates
//
// Fingerprint pairs become new links without touching either service.
// Unmatched items outside an ambiguity are created on the opposite side.
func Diff(m MatchResult, opts DiffOptions) *model.ChangeSet {
	cs := &model.ChangeSet{}

	for _, p := range m.Pairs {
		if p.Link == nil {
			cs.Links = append(cs.Links, model.LinkRecord{
				BookmarkID:          p.Bookmark.SourceID,
				NotebookID:          p.Notebook.SourceID,
				BookmarkFingerprint: p.Bookmark.Fingerprint,
				NotebookFingerprint: p.Notebook.Fingerprint,
			})
			continue
		}

		link := *p.Link
		bookmarkChanged := p.Bookmark.Fingerprint != link.BookmarkFingerprint
		notebookChanged := p.Notebook.Fingerprint != link.NotebookFingerprint

		switch {
		case !bookmarkChanged && !notebookChanged:
		case bookmarkChanged && !notebookChanged:
			cs.UpdatesOnNotebook = append(cs.UpdatesOnNotebook, model.Update{
				TargetID: p.Notebook.SourceID,
				Item:     p.Bookmark,
				Link:     link,
			})
		case notebookChanged && !bookmarkChanged:
			cs.UpdatesOnBookmark = append(cs.UpdatesOnBookmark, model.Update{
				TargetID: p.Bookmark.SourceID,
				Item:     p.Notebook,
				Link:     link,
			})
		case p.Bookmark.Fingerprint == p.Notebook.Fingerprint:
			link.BookmarkFingerprint = p.Bookmark.Fingerprint
			link.NotebookFingerprint = p.Notebook.Fingerprint
			cs.Links = append(cs.Links, link)
		default:
			cs.Conflicts = append(cs.Conflicts, model.Conflict{
				Link:     link,
				Bookmark: p.Bookmark,
				Notebook: p.Notebook,
			})
		}
	}

	ambiguous := make(map[string]bool)
	for _, a := range m.Ambiguous {
		for _, it := range a.Bookmarks {
			ambiguous[it.Key()] = true
		}
		for _, it := range a.Notebooks {
			ambiguous[it.Key()] = true
		}
	}
	cs.Ambiguous = m.Ambiguous

	for _, it := range m.UnmatchedBookmark {
		if !ambiguous[it.Key()] {
			cs.CreatesOnNotebook = append(cs.CreatesOnNotebook, it)
		}
	}
	for _, it := range m.UnmatchedNotebook {
		if !ambiguous[it.Key()] {
			cs.CreatesOnBookmark = append(cs.CreatesOnBookmark, it)
		}
	}

	for _, o := range m.Orphans {
		if o.BothGone() {
			cs.Unlinks = append(cs.Unlinks, o.Link)
			continue
		}
		d := model.Delete{TargetID: o.Present.SourceID, Item: *o.Present, Link: o.Link}
		switch {
		case !opts.PropagateDeletes:
			cs.HeldDeletes = append(cs.HeldDeletes, d)
		case o.MissingSide == model.NotebookSide:
			cs.DeletesOnBookmark = append(cs.DeletesOnBookmark, d)
		default:
			cs.DeletesOnNotebook = append(cs.DeletesOnNotebook, d)
		}
	}

	return cs
}
