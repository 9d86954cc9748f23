// Package raindrop implements the bookmark-side adapter over the Raindrop.io
// REST API (https://developer.raindrop.io).
package raindrop

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/model"
)

const (
	// DefaultBaseURL is the public Raindrop REST endpoint.
	DefaultBaseURL = "https://api.raindrop.io/rest/v1"
	// AllCollections lists bookmarks from every collection except Trash.
	AllCollections = 0
	// Unsorted is the collection new bookmarks land in by default.
	Unsorted = -1

	defaultPerPage = 50
	maxPerPage     = 50
)

// Config configures the adapter.
type Config struct {
	BaseURL string
	Token   string
	// CollectionID scopes List to one collection. 0 means all.
	CollectionID int
	PerPage      int
	Timeout      time.Duration
	Retry        adapter.RetryPolicy
	Logger       *slog.Logger
}

// Adapter talks to Raindrop on behalf of the bookmark side.
type Adapter struct {
	client     *resty.Client
	collection int
	perPage    int
	retry      adapter.RetryPolicy
	logger     *slog.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an adapter. A missing token is an ErrAuth.
func New(cfg Config) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("raindrop: %w: token is not set (MARKSYNC_RAINDROP_TOKEN)", adapter.ErrAuth)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PerPage <= 0 || cfg.PerPage > maxPerPage {
		cfg.PerPage = defaultPerPage
	}

	return &Adapter{
		client: adapter.NewHTTPClient(adapter.HTTPConfig{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
		}),
		collection: cfg.CollectionID,
		perPage:    cfg.PerPage,
		retry:      cfg.Retry,
		logger:     logging.Or(cfg.Logger).With(logging.Adapter("raindrop")),
	}, nil
}

// Name implements adapter.Adapter.
func (a *Adapter) Name() string { return "raindrop" }

// Side implements adapter.Adapter.
func (a *Adapter) Side() model.Side { return model.BookmarkSide }

// raindrop is the subset of the Raindrop object marksync reads and writes.
type raindrop struct {
	ID         int64       `json:"_id,omitempty"`
	Title      string      `json:"title"`
	Link       string      `json:"link"`
	Note       string      `json:"note"`
	Tags       []string    `json:"tags"`
	LastUpdate time.Time   `json:"lastUpdate,omitzero"`
	Collection *collection `json:"collection,omitempty"`
}

type collection struct {
	ID int `json:"$id"`
}

type listResponse struct {
	Result bool       `json:"result"`
	Items  []raindrop `json:"items"`
	Count  int        `json:"count"`
}

type itemResponse struct {
	Result bool     `json:"result"`
	Item   raindrop `json:"item"`
}

func (r raindrop) toItem() model.Item {
	return model.Item{
		SourceID:  strconv.FormatInt(r.ID, 10),
		Origin:    model.BookmarkSide,
		Title:     r.Title,
		URL:       r.Link,
		Note:      r.Note,
		Tags:      r.Tags,
		UpdatedAt: r.LastUpdate,
	}.WithFingerprint()
}

func fromItem(item model.Item) raindrop {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return raindrop{Title: item.Title, Link: item.URL, Note: item.Note, Tags: tags}
}

// List implements adapter.Adapter, following pages until a short page.
func (a *Adapter) List(ctx context.Context) ([]model.Item, error) {
	defer logging.Timer("raindrop.list")()

	var items []model.Item
	for page := 0; ; page++ {
		var body listResponse
		err := adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
			resp, err := a.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"page":    strconv.Itoa(page),
					"perpage": strconv.Itoa(a.perPage),
				}).
				SetResult(&body).
				Get("/raindrops/" + strconv.Itoa(a.collection))
			return adapter.CheckResponse(ctx, resp, err)
		})
		if err != nil {
			return nil, fmt.Errorf("list raindrops (page %d): %w", page, err)
		}

		for _, r := range body.Items {
			items = append(items, r.toItem())
		}
		if len(body.Items) < a.perPage || (body.Count > 0 && len(items) >= body.Count) {
			break
		}
	}

	a.logger.Debug("listed bookmarks", logging.Count(len(items)))
	return items, nil
}

// Ping implements adapter.Adapter by fetching the current user.
func (a *Adapter) Ping(ctx context.Context) error {
	return adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
		resp, err := a.client.R().SetContext(ctx).Get("/user")
		return adapter.CheckResponse(ctx, resp, err)
	})
}

// Apply implements adapter.Adapter.
func (a *Adapter) Apply(ctx context.Context, req adapter.ApplyRequest) (*adapter.ApplyResult, error) {
	return adapter.ApplyEach(ctx, a, req)
}

// Create adds a bookmark to the configured collection (Unsorted when the
// adapter lists all collections).
func (a *Adapter) Create(ctx context.Context, item model.Item) (model.Item, error) {
	body := fromItem(item)
	target := a.collection
	if target == AllCollections {
		target = Unsorted
	}
	body.Collection = &collection{ID: target}

	var out itemResponse
	err := adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
		resp, err := a.client.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("/raindrop")
		return adapter.CheckResponse(ctx, resp, err)
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("create raindrop %q: %w", item.DisplayName(), err)
	}
	if out.Item.ID == 0 {
		return model.Item{}, fmt.Errorf("create raindrop %q: %w: response has no id", item.DisplayName(), adapter.ErrInvalid)
	}
	a.logger.Debug("created bookmark", logging.Item(strconv.FormatInt(out.Item.ID, 10)))
	return out.Item.toItem(), nil
}

// Update overwrites a bookmark's title, link, note and tags.
func (a *Adapter) Update(ctx context.Context, id string, item model.Item) (model.Item, error) {
	var out itemResponse
	err := adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
		resp, err := a.client.R().SetContext(ctx).SetBody(fromItem(item)).SetResult(&out).Put("/raindrop/" + id)
		return adapter.CheckResponse(ctx, resp, err)
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("update raindrop %s: %w", id, err)
	}
	if out.Item.ID == 0 {
		// No item echoed back; the bookmark keeps its id and the sent content.
		stored := fromItem(item).toItem()
		stored.SourceID = id
		return stored, nil
	}
	return out.Item.toItem(), nil
}

// Delete moves a bookmark to Trash.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	err := adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
		resp, err := a.client.R().SetContext(ctx).Delete("/raindrop/" + id)
		return adapter.CheckResponse(ctx, resp, err)
	})
	if err != nil {
		return fmt.Errorf("delete raindrop %s: %w", id, err)
	}
	return nil
}
