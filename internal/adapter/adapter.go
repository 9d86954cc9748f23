// Package adapter defines the contract between the reconciliation engine and
// the external services it synchronizes, plus the shared plumbing adapters
// use to talk to them: the error taxonomy, retry with backoff, and HTTP
// error mapping.
//
// An adapter owns one side of the sync. It lists the side's current items
// and applies batches of creates, updates and deletes, reporting one
// Outcome per requested item. Per-item failures are reported in the
// outcome; a call-level error means the whole call failed.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/klauern/marksync/internal/model"
)

// Op identifies a write operation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// String returns the operation name.
func (o Op) String() string {
	return string(o)
}

// Adapter is implemented once per external service.
type Adapter interface {
	// Name returns the implementation name (e.g. "raindrop").
	Name() string
	// Side returns which side of the sync this adapter serves.
	Side() model.Side
	// List returns the side's current items with fingerprints filled in.
	// It fails with ErrAuth, ErrNetwork or ErrRateLimited.
	List(ctx context.Context) ([]model.Item, error)
	// Apply writes a batch and returns one Outcome per requested item.
	// A returned error means the call as a whole failed (for example
	// ErrAuth or context cancellation); outcomes gathered so far are
	// still returned.
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
	// Ping is a lightweight reachability and credentials check.
	Ping(ctx context.Context) error
}

// ApplyRequest is the batch of writes for one side and one apply phase.
type ApplyRequest struct {
	// Creates hold items from the opposite side whose content is to be
	// created on this side.
	Creates []model.Item
	// Updates overwrite existing items on this side.
	Updates []model.Update
	// Deletes remove existing items on this side.
	Deletes []model.Delete
}

// Len returns the number of requested writes.
func (r ApplyRequest) Len() int {
	return len(r.Creates) + len(r.Updates) + len(r.Deletes)
}

// IsEmpty returns true if the request has nothing to write.
func (r ApplyRequest) IsEmpty() bool {
	return r.Len() == 0
}

// Outcome reports the result of one requested write.
type Outcome struct {
	Op Op
	// RequestID is the id the request referred to: the source item id for
	// a create, the target id for an update or delete.
	RequestID string
	// ResultID is the id of the item on this side after the write. For an
	// update it differs from RequestID when the service replaced the item.
	ResultID string
	// Item is the item as stored on this side after the write, when the
	// adapter can report it. Nil for deletes.
	Item *model.Item
	// Err is the per-item failure, nil on success.
	Err error
}

// OK returns true if the write succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// ApplyResult collects per-item outcomes.
type ApplyResult struct {
	Outcomes []Outcome
}

// Add appends an outcome.
func (r *ApplyResult) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Failed returns the outcomes that carry an error.
func (r *ApplyResult) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Writer is the per-item write surface most services expose. ApplyEach
// turns it into an Apply implementation.
type Writer interface {
	Create(ctx context.Context, item model.Item) (model.Item, error)
	Update(ctx context.Context, id string, item model.Item) (model.Item, error)
	Delete(ctx context.Context, id string) error
}

// ApplyEach applies req one item at a time through w, creates first, then
// updates, then deletes. Item failures are recorded and processing
// continues. ErrAuth or context cancellation stops the call: the outcomes
// gathered so far are returned together with the error.
func ApplyEach(ctx context.Context, w Writer, req ApplyRequest) (*ApplyResult, error) {
	result := &ApplyResult{Outcomes: make([]Outcome, 0, req.Len())}

	for _, item := range req.Creates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		created, err := w.Create(ctx, item.Content())
		o := Outcome{Op: OpCreate, RequestID: item.SourceID, Err: err}
		if err == nil {
			o.ResultID = created.SourceID
			o.Item = &created
		}
		result.Add(o)
		if stop := callError(ctx, err); stop != nil {
			return result, stop
		}
	}

	for _, u := range req.Updates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		updated, err := w.Update(ctx, u.TargetID, u.Item.Content())
		o := Outcome{Op: OpUpdate, RequestID: u.TargetID, Err: err}
		if err == nil {
			o.ResultID = updated.SourceID
			if o.ResultID == "" {
				o.ResultID = u.TargetID
			}
			o.Item = &updated
		}
		result.Add(o)
		if stop := callError(ctx, err); stop != nil {
			return result, stop
		}
	}

	for _, d := range req.Deletes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		err := w.Delete(ctx, d.TargetID)
		// Deleting something already gone is a success.
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		result.Add(Outcome{Op: OpDelete, RequestID: d.TargetID, ResultID: d.TargetID, Err: err})
		if stop := callError(ctx, err); stop != nil {
			return result, stop
		}
	}

	return result, nil
}

// callError returns the error that must abort the whole call, if any.
func callError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuth) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("apply interrupted: %w", ctxErr)
	}
	return nil
}
