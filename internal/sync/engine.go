package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/model"
	"github.com/klauern/marksync/internal/state"
)

// opLink labels failures to record a correspondence.
const opLink adapter.Op = "link"

// Engine runs reconciliation between one bookmark adapter and one notebook
// adapter over one state store. At most one Run is active at a time.
type Engine struct {
	adapters map[model.Side]adapter.Adapter
	store    state.Store
	opts     Options
	logger   *slog.Logger

	running    sync.Mutex
	progressMu sync.Mutex
}

// NewEngine validates the collaborators and returns an engine.
func NewEngine(bookmarks, notebooks adapter.Adapter, store state.Store, opts Options) (*Engine, error) {
	if bookmarks == nil || notebooks == nil {
		return nil, errors.New("both a bookmark and a notebook adapter are required")
	}
	if store == nil {
		return nil, errors.New("a state store is required")
	}
	if bookmarks.Side() != model.BookmarkSide {
		return nil, fmt.Errorf("adapter %q serves the %s side, want %s", bookmarks.Name(), bookmarks.Side(), model.BookmarkSide)
	}
	if notebooks.Side() != model.NotebookSide {
		return nil, fmt.Errorf("adapter %q serves the %s side, want %s", notebooks.Name(), notebooks.Side(), model.NotebookSide)
	}

	opts = opts.withDefaults()
	return &Engine{
		adapters: map[model.Side]adapter.Adapter{
			model.BookmarkSide: bookmarks,
			model.NotebookSide: notebooks,
		},
		store:  store,
		opts:   opts,
		logger: logging.Or(opts.Logger),
	}, nil
}

// Run performs one reconciliation run. With dryRun the computed plan is
// returned in Summary.Plan and nothing is written.
//
// The returned Summary is non-nil whenever the run got past the run lock,
// including on error. Errors wrap ErrRunInProgress, ErrUnreachable,
// adapter.ErrAuth, state.ErrCorrupt, state.ErrUnsupportedVersion,
// state.ErrLocked or a context error.
func (e *Engine) Run(ctx context.Context, dryRun bool) (*Summary, error) {
	if !e.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.running.Unlock()

	summary := &Summary{
		RunID:     uuid.NewString(),
		DryRun:    dryRun,
		StartedAt: e.opts.Now(),
	}
	defer func() { summary.FinishedAt = e.opts.Now() }()

	log := e.logger.With(logging.RunID(summary.RunID))
	log.Info("sync started", slog.Bool("dry_run", dryRun))

	if locker, ok := e.store.(state.Locker); ok && !dryRun {
		if err := locker.Lock(ctx); err != nil {
			return summary, fmt.Errorf("lock state: %w", err)
		}
		defer func() {
			if err := locker.Unlock(); err != nil {
				log.Warn("failed to release state lock", logging.Err(err))
			}
		}()
	}

	snap, err := e.store.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load state: %w", err)
	}

	items, err := e.fetch(ctx, summary, log)
	if err != nil {
		return summary, err
	}

	match := Match(items[model.BookmarkSide], items[model.NotebookSide], snap.Links)
	plan := Diff(match, DiffOptions{PropagateDeletes: e.opts.PropagateDeletes})
	summary.Plan = plan
	summary.Conflicts = plan.Conflicts
	summary.Ambiguous = plan.Ambiguous
	summary.HeldDeletes = plan.HeldDeletes

	log.Info("plan computed",
		slog.Int("creates", plan.TotalCreates()),
		slog.Int("updates", plan.TotalUpdates()),
		slog.Int("deletes", plan.TotalDeletes()),
		slog.Int("conflicts", len(plan.Conflicts)),
		slog.Int("ambiguous", len(plan.Ambiguous)),
	)

	if dryRun {
		return summary, nil
	}

	if e.opts.Review != nil && !plan.IsEmpty() {
		reviewed, err := e.opts.Review(ctx, plan)
		if err != nil {
			return summary, err
		}
		if reviewed != nil {
			plan = reviewed
		}
	}

	now := e.opts.Now().UTC()
	next := snap.Links.Clone()
	e.recordLinks(plan, next, now, summary, log)

	for _, op := range []adapter.Op{adapter.OpCreate, adapter.OpUpdate, adapter.OpDelete} {
		if err := e.applyPhase(ctx, op, plan, next, now, summary, log); err != nil {
			log.Error("sync aborted, state not committed", logging.Operation(string(op)), logging.Err(err))
			return summary, err
		}
	}

	commitCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	nextSnap := &state.Snapshot{Version: state.SchemaVersion, UpdatedAt: now, Links: next}
	if err := e.store.Commit(commitCtx, nextSnap); err != nil {
		return summary, fmt.Errorf("commit state: %w", err)
	}
	summary.Committed = true

	log.Info("sync finished",
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("deleted", summary.Deleted),
		slog.Int("failed", len(summary.Failures)),
		logging.Count(next.Len()),
	)
	return summary, nil
}

// fetch lists both sides concurrently. An auth failure on either side
// cancels the other fetch.
func (e *Engine) fetch(ctx context.Context, summary *Summary, log *slog.Logger) (map[model.Side][]model.Item, error) {
	defer logging.Timer("fetch")()

	var (
		mu    sync.Mutex
		items = make(map[model.Side][]model.Item, 2)
		errs  = make(map[model.Side]error, 2)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, side := range model.AllSides() {
		a := e.adapters[side]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, e.opts.CallTimeout)
			defer cancel()

			list, err := a.List(callCtx)
			if err == nil {
				for i := range list {
					list[i] = list[i].WithFingerprint()
				}
				err = model.ValidateSnapshot(side, list)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				err = fmt.Errorf("list %s (%s): %w", side, a.Name(), err)
				errs[side] = err
				log.Warn("fetch failed", logging.Side(string(side)), logging.Adapter(a.Name()), logging.Err(err))
				if adapter.IsFatal(err) {
					return err
				}
				return nil
			}
			items[side] = list
			log.Debug("fetched items", logging.Side(string(side)), logging.Count(len(list)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var unreachable []string
	for _, side := range model.AllSides() {
		err, ok := errs[side]
		if !ok {
			continue
		}
		if !isUnreachable(err) {
			return nil, err
		}
		if summary.SideErrors == nil {
			summary.SideErrors = make(map[model.Side]error)
		}
		summary.SideErrors[side] = err
		unreachable = append(unreachable, string(side))
	}
	if len(unreachable) > 0 {
		summary.Unreachable = true
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, strings.Join(unreachable, ", "))
	}
	return items, nil
}

// isUnreachable reports whether a fetch error means the side could not be
// reached, as opposed to a fatal or a programming error.
func isUnreachable(err error) bool {
	return adapter.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
}

// recordLinks applies the bookkeeping that needs no adapter call.
func (e *Engine) recordLinks(plan *model.ChangeSet, next *model.Links, now time.Time, summary *Summary, log *slog.Logger) {
	for _, rec := range plan.Links {
		rec.LastSyncedAt = now
		if err := next.Put(rec); err != nil {
			summary.fail(model.BookmarkSide, opLink, rec.BookmarkID, "", err)
			log.Warn("failed to record link", logging.Link(rec.BookmarkID, rec.NotebookID), logging.Err(err))
			continue
		}
		summary.Linked++
	}
	for _, rec := range plan.Unlinks {
		next.RemoveBookmark(rec.BookmarkID)
		summary.Unlinked++
	}
}

type sideApply struct {
	side   model.Side
	req    adapter.ApplyRequest
	result *adapter.ApplyResult
	err    error
}

// applyPhase sends one Apply call per side with pending writes for op and
// runs the two sides concurrently. It returns an error only when the run
// must abort: ErrAuth or cancellation.
func (e *Engine) applyPhase(
	ctx context.Context,
	op adapter.Op,
	plan *model.ChangeSet,
	next *model.Links,
	now time.Time,
	summary *Summary,
	log *slog.Logger,
) error {
	var pending []sideApply
	for _, side := range model.AllSides() {
		var req adapter.ApplyRequest
		switch op {
		case adapter.OpCreate:
			req.Creates = plan.Creates(side)
		case adapter.OpUpdate:
			req.Updates = plan.Updates(side)
		case adapter.OpDelete:
			req.Deletes = plan.Deletes(side)
		}
		if !req.IsEmpty() {
			pending = append(pending, sideApply{side: side, req: req})
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var g errgroup.Group
	for i := range pending {
		p := &pending[i]
		a := e.adapters[p.side]
		g.Go(func() error {
			e.progress(ProgressEvent{Phase: op, Side: p.side, Total: p.req.Len()})

			callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
			defer cancel()
			p.result, p.err = a.Apply(callCtx, p.req)
			if p.result == nil {
				p.result = &adapter.ApplyResult{}
			}

			e.progress(ProgressEvent{
				Phase:  op,
				Side:   p.side,
				Total:  p.req.Len(),
				Done:   len(p.result.Outcomes),
				Failed: len(p.result.Failed()),
			})
			return nil
		})
	}
	_ = g.Wait()

	var abort error
	for _, p := range pending {
		e.recordOutcomes(op, p, next, now, summary, log)
		if p.err == nil {
			continue
		}
		if adapter.IsFatal(p.err) || ctx.Err() != nil {
			if abort == nil {
				abort = fmt.Errorf("apply %ss on %s: %w", op, p.side, p.err)
			}
			continue
		}
		log.Warn("apply call failed", logging.Side(string(p.side)), logging.Operation(string(op)), logging.Err(p.err))
	}
	if abort == nil {
		if err := ctx.Err(); err != nil {
			abort = err
		}
	}
	return abort
}

// recordOutcomes folds one side's outcomes into the next link snapshot and
// the summary. Requested items without an outcome are failures.
func (e *Engine) recordOutcomes(op adapter.Op, p sideApply, next *model.Links, now time.Time, summary *Summary, log *slog.Logger) {
	seen := make(map[string]bool, len(p.result.Outcomes))

	creates := make(map[string]model.Item, len(p.req.Creates))
	for _, it := range p.req.Creates {
		creates[it.SourceID] = it
	}
	updates := make(map[string]model.Update, len(p.req.Updates))
	for _, u := range p.req.Updates {
		updates[u.TargetID] = u
	}
	deletes := make(map[string]model.Delete, len(p.req.Deletes))
	for _, d := range p.req.Deletes {
		deletes[d.TargetID] = d
	}

	for _, o := range p.result.Outcomes {
		seen[o.RequestID] = true
		switch o.Op {
		case adapter.OpCreate:
			src, ok := creates[o.RequestID]
			if !ok {
				continue
			}
			if o.OK() && o.ResultID == "" {
				o.Err = fmt.Errorf("%w: adapter returned no id", adapter.ErrInvalid)
			}
			if !o.OK() {
				e.failItem(summary, log, p.side, op, src.SourceID, src.DisplayName(), o.Err)
				continue
			}
			rec := createdLink(p.side, src, o, now)
			if err := next.Put(rec); err != nil {
				e.failItem(summary, log, p.side, opLink, o.ResultID, src.DisplayName(), err)
				continue
			}
			summary.Created++

		case adapter.OpUpdate:
			u, ok := updates[o.RequestID]
			if !ok {
				continue
			}
			if !o.OK() {
				e.failItem(summary, log, p.side, op, u.TargetID, u.Item.DisplayName(), o.Err)
				continue
			}
			prev, linked := next.ByBookmark(u.Link.BookmarkID)
			next.RemoveBookmark(u.Link.BookmarkID)
			if err := next.Put(updatedLink(p.side, u, o, now)); err != nil {
				// Keep the previous link so the pair is retried next run.
				if linked {
					if rerr := next.Put(prev); rerr != nil {
						err = errors.Join(err, rerr)
					}
				}
				e.failItem(summary, log, p.side, opLink, u.TargetID, u.Item.DisplayName(), err)
				continue
			}
			summary.Updated++

		case adapter.OpDelete:
			d, ok := deletes[o.RequestID]
			if !ok {
				continue
			}
			if !o.OK() {
				e.failItem(summary, log, p.side, op, d.TargetID, d.Item.DisplayName(), o.Err)
				continue
			}
			next.RemoveBookmark(d.Link.BookmarkID)
			summary.Deleted++
		}
	}

	missing := p.err
	if missing == nil {
		missing = errors.New("adapter reported no outcome")
	}
	for _, it := range p.req.Creates {
		if !seen[it.SourceID] {
			e.failItem(summary, log, p.side, op, it.SourceID, it.DisplayName(), missing)
		}
	}
	for _, u := range p.req.Updates {
		if !seen[u.TargetID] {
			e.failItem(summary, log, p.side, op, u.TargetID, u.Item.DisplayName(), missing)
		}
	}
	for _, d := range p.req.Deletes {
		if !seen[d.TargetID] {
			e.failItem(summary, log, p.side, op, d.TargetID, d.Item.DisplayName(), missing)
		}
	}
}

func (e *Engine) failItem(summary *Summary, log *slog.Logger, side model.Side, op adapter.Op, id, title string, err error) {
	summary.fail(side, op, id, title, err)
	log.Warn("item failed",
		logging.Side(string(side)),
		logging.Operation(string(op)),
		logging.Item(id),
		logging.Err(err),
	)
}

// createdLink records a new correspondence between the source item and the
// item created from it on side.
func createdLink(side model.Side, src model.Item, o adapter.Outcome, now time.Time) model.LinkRecord {
	resultFP := src.Fingerprint
	if o.Item != nil && o.Item.Fingerprint != "" {
		resultFP = o.Item.Fingerprint
	}
	rec := model.LinkRecord{LastSyncedAt: now}
	if side == model.NotebookSide {
		rec.BookmarkID, rec.BookmarkFingerprint = src.SourceID, src.Fingerprint
		rec.NotebookID, rec.NotebookFingerprint = o.ResultID, resultFP
	} else {
		rec.BookmarkID, rec.BookmarkFingerprint = o.ResultID, resultFP
		rec.NotebookID, rec.NotebookFingerprint = src.SourceID, src.Fingerprint
	}
	return rec
}

// updatedLink refreshes a link after its side item was overwritten,
// following a replacement id when the adapter reported one.
func updatedLink(side model.Side, u model.Update, o adapter.Outcome, now time.Time) model.LinkRecord {
	targetID := u.TargetID
	if o.ResultID != "" {
		targetID = o.ResultID
	}
	targetFP := u.Item.Fingerprint
	if o.Item != nil && o.Item.Fingerprint != "" {
		targetFP = o.Item.Fingerprint
	}

	rec := u.Link
	rec.LastSyncedAt = now
	if side == model.NotebookSide {
		rec.NotebookID, rec.NotebookFingerprint = targetID, targetFP
		rec.BookmarkFingerprint = u.Item.Fingerprint
	} else {
		rec.BookmarkID, rec.BookmarkFingerprint = targetID, targetFP
		rec.NotebookFingerprint = u.Item.Fingerprint
	}
	return rec
}

func (e *Engine) progress(ev ProgressEvent) {
	if e.opts.Progress == nil {
		return
	}
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.opts.Progress(ev)
}

// Health is the reachability of one side.
type Health struct {
	Side    model.Side
	Adapter string
	Err     error
	Latency time.Duration
}

// Reachable returns true if the ping succeeded.
func (h Health) Reachable() bool {
	return h.Err == nil
}

// Status pings both adapters concurrently. It never calls List.
func (e *Engine) Status(ctx context.Context) []Health {
	sides := model.AllSides()
	out := make([]Health, len(sides))

	var g errgroup.Group
	for i, side := range sides {
		a := e.adapters[side]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
			defer cancel()
			start := time.Now()
			err := a.Ping(callCtx)
			out[i] = Health{Side: side, Adapter: a.Name(), Err: err, Latency: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
