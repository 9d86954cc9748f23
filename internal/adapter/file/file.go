// Package file implements an Adapter over a local YAML collection file. It
// can serve either side, which makes it useful for offline runs, exports and
// end-to-end tests.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/model"
	"github.com/klauern/marksync/internal/util"
)

// FormatVersion is the collection file layout version.
const FormatVersion = 1

// document is the on-disk layout.
type document struct {
	Version int     `yaml:"version"`
	Items   []entry `yaml:"items"`
}

type entry struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title,omitempty"`
	URL       string    `yaml:"url,omitempty"`
	Note      string    `yaml:"note,omitempty"`
	Tags      []string  `yaml:"tags,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// Options configures an Adapter.
type Options struct {
	Logger *slog.Logger
	// Now is the clock, for tests.
	Now func() time.Time
	// NewID generates ids for created items. Defaults to random UUIDs.
	NewID func() string
}

// Adapter stores one side's items in a YAML file.
type Adapter struct {
	fs     billy.Filesystem
	name   string
	side   model.Side
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an adapter for side over the file name inside fs.
func New(fs billy.Filesystem, name string, side model.Side, opts Options) (*Adapter, error) {
	if !side.IsValid() {
		return nil, fmt.Errorf("file adapter: invalid side %q", side)
	}
	if name == "" {
		return nil, errors.New("file adapter: a file name is required")
	}
	a := &Adapter{
		fs:     fs,
		name:   name,
		side:   side,
		logger: logging.Or(opts.Logger),
		now:    opts.Now,
		newID:  opts.NewID,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.newID == nil {
		a.newID = uuid.NewString
	}
	return a, nil
}

// Open creates an adapter over the file at path on the local disk.
func Open(path string, side model.Side, opts Options) (*Adapter, error) {
	path = util.ExpandPath(path)
	return New(osfs.New(filepath.Dir(path)), filepath.Base(path), side, opts)
}

// Name implements adapter.Adapter.
func (a *Adapter) Name() string { return "file" }

// Side implements adapter.Adapter.
func (a *Adapter) Side() model.Side { return a.side }

// Path returns the collection file location.
func (a *Adapter) Path() string {
	return a.fs.Join(a.fs.Root(), a.name)
}

// List implements adapter.Adapter. A missing file is an empty collection.
func (a *Adapter) List(ctx context.Context) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := a.load()
	if err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(doc.Items))
	for _, e := range doc.Items {
		items = append(items, a.toItem(e))
	}
	return items, nil
}

// Ping implements adapter.Adapter by checking the file can be read.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.load()
	return err
}

// Apply implements adapter.Adapter. All writes of one call are saved
// together; when the save fails every outcome is turned into a failure.
func (a *Adapter) Apply(ctx context.Context, req adapter.ApplyRequest) (*adapter.ApplyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := a.load()
	if err != nil {
		return nil, err
	}
	w := &docWriter{a: a, index: make(map[string]int, len(doc.Items)), doc: doc}
	for i, e := range doc.Items {
		w.index[e.ID] = i
	}

	result, callErr := adapter.ApplyEach(ctx, w, req)
	if !w.dirty {
		return result, callErr
	}
	if err := a.save(doc); err != nil {
		a.logger.Warn("failed to save collection", logging.Path(a.Path()), logging.Err(err))
		for i := range result.Outcomes {
			if result.Outcomes[i].OK() {
				result.Outcomes[i].Err = err
				result.Outcomes[i].ResultID = ""
				result.Outcomes[i].Item = nil
			}
		}
	}
	return result, callErr
}

func (a *Adapter) load() (*document, error) {
	data, err := billyutil.ReadFile(a.fs, a.name)
	if errors.Is(err, os.ErrNotExist) {
		return &document{Version: FormatVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.Path(), err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %v", a.Path(), adapter.ErrInvalid, err)
	}
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("%s: %w: format version %d is newer than %d", a.Path(), adapter.ErrInvalid, doc.Version, FormatVersion)
	}
	seen := make(map[string]bool, len(doc.Items))
	for _, e := range doc.Items {
		if e.ID == "" || seen[e.ID] {
			return nil, fmt.Errorf("%s: %w: missing or duplicate id %q", a.Path(), adapter.ErrInvalid, e.ID)
		}
		seen[e.ID] = true
	}
	return &doc, nil
}

func (a *Adapter) save(doc *document) error {
	sort.SliceStable(doc.Items, func(i, j int) bool { return doc.Items[i].ID < doc.Items[j].ID })
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	return util.WriteFileAtomic(a.fs, a.name, data)
}

func (a *Adapter) toItem(e entry) model.Item {
	return model.Item{
		SourceID:  e.ID,
		Origin:    a.side,
		Title:     e.Title,
		URL:       e.URL,
		Note:      e.Note,
		Tags:      model.NormalizeTags(e.Tags),
		UpdatedAt: e.UpdatedAt,
	}.WithFingerprint()
}

func (a *Adapter) toEntry(id string, item model.Item) entry {
	return entry{
		ID:        id,
		Title:     item.Title,
		URL:       item.URL,
		Note:      item.Note,
		Tags:      model.NormalizeTags(item.Tags),
		UpdatedAt: a.now().UTC(),
	}
}

// docWriter applies writes to a loaded document in memory.
type docWriter struct {
	a     *Adapter
	doc   *document
	index map[string]int
	dirty bool
}

func (w *docWriter) Create(ctx context.Context, item model.Item) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}
	id := w.a.newID()
	if _, taken := w.index[id]; taken {
		return model.Item{}, fmt.Errorf("create: %w: id %q already exists", adapter.ErrInvalid, id)
	}
	e := w.a.toEntry(id, item)
	w.index[id] = len(w.doc.Items)
	w.doc.Items = append(w.doc.Items, e)
	w.dirty = true
	return w.a.toItem(e), nil
}

func (w *docWriter) Update(ctx context.Context, id string, item model.Item) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}
	i, ok := w.index[id]
	if !ok {
		return model.Item{}, fmt.Errorf("update %s: %w", id, adapter.ErrNotFound)
	}
	e := w.a.toEntry(id, item)
	w.doc.Items[i] = e
	w.dirty = true
	return w.a.toItem(e), nil
}

func (w *docWriter) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i, ok := w.index[id]
	if !ok {
		return fmt.Errorf("delete %s: %w", id, adapter.ErrNotFound)
	}
	w.doc.Items = append(w.doc.Items[:i], w.doc.Items[i+1:]...)
	delete(w.index, id)
	for j := i; j < len(w.doc.Items); j++ {
		w.index[w.doc.Items[j].ID] = j
	}
	w.dirty = true
	return nil
}
