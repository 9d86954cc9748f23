// Package memory provides an in-memory Adapter. It backs engine tests and
// lets a run be exercised without any external service.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/model"
)

// Adapter is a thread-safe in-memory collection for one side.
type Adapter struct {
	side model.Side
	name string

	mu      sync.Mutex
	items   map[string]model.Item
	nextID  int
	listErr error
	pingErr error
	failOn  map[string]error
	calls   Calls
}

// Calls counts adapter invocations.
type Calls struct {
	List  int
	Apply int
	Ping  int
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an empty adapter for side, pre-loaded with items.
func New(side model.Side, items ...model.Item) *Adapter {
	a := &Adapter{
		side:   side,
		name:   "memory",
		items:  make(map[string]model.Item),
		failOn: make(map[string]error),
	}
	for _, it := range items {
		a.Put(it)
	}
	return a
}

// Name implements adapter.Adapter.
func (a *Adapter) Name() string { return a.name }

// Side implements adapter.Adapter.
func (a *Adapter) Side() model.Side { return a.side }

// Put inserts or replaces an item, stamping origin and fingerprint.
func (a *Adapter) Put(item model.Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item.Origin = a.side
	item.Fingerprint = ""
	a.items[item.SourceID] = item.WithFingerprint()
}

// Remove deletes an item directly, bypassing Apply.
func (a *Adapter) Remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, id)
}

// Get returns the stored item.
func (a *Adapter) Get(id string) (model.Item, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	it, ok := a.items[id]
	return it, ok
}

// Len returns the number of stored items.
func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// FailList makes List (and Ping) return err; nil clears it.
func (a *Adapter) FailList(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listErr = err
	a.pingErr = err
}

// FailOn makes writes of the given key fail with err. The key is the target
// id for updates and deletes, and the title for creates.
func (a *Adapter) FailOn(key string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failOn[key] = err
}

// Calls returns a copy of the invocation counters.
func (a *Adapter) Calls() Calls {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// List implements adapter.Adapter.
func (a *Adapter) List(ctx context.Context) ([]model.Item, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.List++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.listErr != nil {
		return nil, a.listErr
	}
	out := make([]model.Item, 0, len(a.items))
	for _, it := range a.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

// Ping implements adapter.Adapter.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Ping++
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.pingErr
}

// Apply implements adapter.Adapter.
func (a *Adapter) Apply(ctx context.Context, req adapter.ApplyRequest) (*adapter.ApplyResult, error) {
	a.mu.Lock()
	a.calls.Apply++
	a.mu.Unlock()
	return adapter.ApplyEach(ctx, writer{a}, req)
}

type writer struct{ a *Adapter }

func (w writer) Create(_ context.Context, item model.Item) (model.Item, error) {
	a := w.a
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failOn[item.Title]; err != nil {
		return model.Item{}, err
	}
	a.nextID++
	item.SourceID = fmt.Sprintf("%s-%d", a.side, a.nextID)
	for {
		if _, taken := a.items[item.SourceID]; !taken {
			break
		}
		a.nextID++
		item.SourceID = fmt.Sprintf("%s-%d", a.side, a.nextID)
	}
	item.Origin = a.side
	item.Fingerprint = ""
	item = item.WithFingerprint()
	a.items[item.SourceID] = item
	return item, nil
}

func (w writer) Update(_ context.Context, id string, item model.Item) (model.Item, error) {
	a := w.a
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failOn[id]; err != nil {
		return model.Item{}, err
	}
	if _, ok := a.items[id]; !ok {
		return model.Item{}, fmt.Errorf("update %s: %w", id, adapter.ErrNotFound)
	}
	item.SourceID = id
	item.Origin = a.side
	item.Fingerprint = ""
	item = item.WithFingerprint()
	a.items[id] = item
	return item, nil
}

func (w writer) Delete(_ context.Context, id string) error {
	a := w.a
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failOn[id]; err != nil {
		return err
	}
	if _, ok := a.items[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, adapter.ErrNotFound)
	}
	delete(a.items, id)
	return nil
}
