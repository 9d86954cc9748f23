package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/model"
)

var (
	// ErrRunInProgress means another Run on the same engine has not finished.
	ErrRunInProgress = errors.New("a sync run is already in progress")
	// ErrUnreachable means at least one side could not be fetched after
	// retries. Nothing was applied or committed.
	ErrUnreachable = errors.New("adapter unreachable")
	// ErrReviewRejected means the plan review declined the change set.
	ErrReviewRejected = errors.New("sync plan was not approved")
)

// DefaultCallTimeout bounds each adapter call and the commit.
const DefaultCallTimeout = 2 * time.Minute

// ProgressEvent reports apply progress for one side and phase.
type ProgressEvent struct {
	Phase adapter.Op
	Side  model.Side
	// Total is the number of writes requested in this phase for this side.
	Total int
	// Done is the number of outcomes received, 0 when the phase starts.
	Done int
	// Failed counts failed outcomes once the phase finished.
	Failed int
}

// ProgressFunc receives progress events. Calls are serialized.
type ProgressFunc func(ProgressEvent)

// ReviewFunc inspects a plan before it is applied. It may return a reduced
// change set to apply only part of the plan, or ErrReviewRejected.
type ReviewFunc func(ctx context.Context, plan *model.ChangeSet) (*model.ChangeSet, error)

// Options configures an Engine.
type Options struct {
	// PropagateDeletes propagates deletions to the other side. Off by
	// default because deletes are destructive and irreversible.
	PropagateDeletes bool
	// CallTimeout bounds each adapter call and the commit.
	CallTimeout time.Duration
	Logger      *slog.Logger
	Progress    ProgressFunc
	Review      ReviewFunc
	// Now is the clock, for tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
