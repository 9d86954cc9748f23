// Package sync implements the reconciliation core of marksync: it pairs
// bookmarks with notebook sources, computes what changed since the last
// run, applies the changes through the adapters and records the result.
//
// # Pipeline
//
// One run of Engine.Run goes through these steps:
//   - fetch both sides concurrently (adapter.Adapter.List)
//   - Match pairs items by their persisted LinkRecord first and by content
//     fingerprint second
//   - Diff compares each pair against the fingerprints recorded at the last
//     sync and produces a model.ChangeSet
//   - the engine applies creates, then updates, then deletes, with the two
//     sides running concurrently inside each phase
//   - the next link snapshot is committed once, after every phase finished
//
// # Safety
//
// Conflicts (both sides changed to different content) and ambiguous
// fingerprint matches are reported in the Summary and never resolved
// automatically. Deletions are only propagated when
// Options.PropagateDeletes is set; otherwise they are held and reported.
// A failed item leaves its link untouched so the next run retries it.
//
// A dry run stops after Diff: no adapter is written to and the store is
// not committed.
//
//	engine, err := sync.NewEngine(bookmarks, notebooks, store, sync.Options{})
//	if err != nil {
//	    return err
//	}
//	summary, err := engine.Run(ctx, false)
//	fmt.Print(summary)
package sync
