package sync

import (
	"sort"

	"github.com/klauern/marksync/internal/model"
)

// Pair is a bookmark and a notebook source known to correspond. Link is nil
// for a pair found by fingerprint that has not been recorded yet.
type Pair struct {
	Link     *model.LinkRecord
	Bookmark model.Item
	Notebook model.Item
}

// Orphan is a link with at least one of its items gone. Present is the
// surviving item, or nil when both are gone.
type Orphan struct {
	Link        model.LinkRecord
	Present     *model.Item
	MissingSide model.Side
}

// BothGone reports whether neither linked item exists any more.
func (o Orphan) BothGone() bool {
	return o.Present == nil
}

// MatchResult is the Matcher's output. Items in an ambiguous fingerprint
// group appear both in the unmatched lists and in Ambiguous.
type MatchResult struct {
	Pairs             []Pair
	UnmatchedBookmark []model.Item
	UnmatchedNotebook []model.Item
	Orphans           []Orphan
	Ambiguous         []model.Ambiguity
}

// Match pairs items from the two sides. Recorded links take precedence over
// content, so a renamed but linked item is never treated as new. Remaining
// items pair by fingerprint only when exactly one candidate exists on each
// side. Match has no side effects and its output order is deterministic.
func Match(bookmarks, notebooks []model.Item, links *model.Links) MatchResult {
	var result MatchResult

	bookmarkByID := indexByID(bookmarks)
	notebookByID := indexByID(notebooks)
	claimed := make(map[string]bool)

	if links != nil {
		for _, link := range links.Records() {
			b, hasB := bookmarkByID[link.BookmarkID]
			n, hasN := notebookByID[link.NotebookID]
			l := link

			switch {
			case hasB && hasN:
				result.Pairs = append(result.Pairs, Pair{Link: &l, Bookmark: b, Notebook: n})
			case hasB:
				result.Orphans = append(result.Orphans, Orphan{Link: l, Present: &b, MissingSide: model.NotebookSide})
			case hasN:
				result.Orphans = append(result.Orphans, Orphan{Link: l, Present: &n, MissingSide: model.BookmarkSide})
			default:
				result.Orphans = append(result.Orphans, Orphan{Link: l})
			}
			if hasB {
				claimed[b.Key()] = true
			}
			if hasN {
				claimed[n.Key()] = true
			}
		}
	}

	bookmarkGroups := groupByFingerprint(bookmarks, claimed)
	notebookGroups := groupByFingerprint(notebooks, claimed)

	fingerprints := make([]string, 0, len(bookmarkGroups)+len(notebookGroups))
	for fp := range bookmarkGroups {
		fingerprints = append(fingerprints, fp)
	}
	for fp := range notebookGroups {
		if _, ok := bookmarkGroups[fp]; !ok {
			fingerprints = append(fingerprints, fp)
		}
	}
	sort.Strings(fingerprints)

	for _, fp := range fingerprints {
		bs, ns := bookmarkGroups[fp], notebookGroups[fp]
		switch {
		case len(bs) == 1 && len(ns) == 1:
			result.Pairs = append(result.Pairs, Pair{Bookmark: bs[0], Notebook: ns[0]})
			continue
		case len(bs) > 0 && len(ns) > 0:
			result.Ambiguous = append(result.Ambiguous, model.Ambiguity{
				Fingerprint: fp,
				Bookmarks:   bs,
				Notebooks:   ns,
			})
		}
		result.UnmatchedBookmark = append(result.UnmatchedBookmark, bs...)
		result.UnmatchedNotebook = append(result.UnmatchedNotebook, ns...)
	}

	sort.Slice(result.Pairs, func(i, j int) bool {
		return result.Pairs[i].Bookmark.SourceID < result.Pairs[j].Bookmark.SourceID
	})
	sortItems(result.UnmatchedBookmark)
	sortItems(result.UnmatchedNotebook)
	return result
}

func indexByID(items []model.Item) map[string]model.Item {
	m := make(map[string]model.Item, len(items))
	for _, it := range items {
		m[it.SourceID] = it
	}
	return m
}

// groupByFingerprint groups unclaimed items, each group sorted by id.
func groupByFingerprint(items []model.Item, claimed map[string]bool) map[string][]model.Item {
	groups := make(map[string][]model.Item)
	for _, it := range items {
		if claimed[it.Key()] {
			continue
		}
		it = it.WithFingerprint()
		groups[it.Fingerprint] = append(groups[it.Fingerprint], it)
	}
	for _, g := range groups {
		sortItems(g)
	}
	return groups
}

func sortItems(items []model.Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].SourceID < items[j].SourceID
	})
}
