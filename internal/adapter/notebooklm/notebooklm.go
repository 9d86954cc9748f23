// Package notebooklm implements the notebook-side adapter. It speaks a
// notebook sources REST API: each notebook holds sources with a title, a
// URL, a note and tags.
//
//	GET    /notebooks/{notebook}                 ping
//	GET    /notebooks/{notebook}/sources         list (page_size, page_token)
//	POST   /notebooks/{notebook}/sources         create
//	PATCH  /notebooks/{notebook}/sources/{id}    update (may return a new id)
//	DELETE /notebooks/{notebook}/sources/{id}    delete
package notebooklm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/model"
)

const defaultPageSize = 100

// ErrNotConfigured is returned by New when the endpoint or notebook is unset.
var ErrNotConfigured = errors.New("notebook endpoint is not configured")

// Config configures the adapter.
type Config struct {
	BaseURL    string
	Token      string
	NotebookID string
	PageSize   int
	Timeout    time.Duration
	Retry      adapter.RetryPolicy
	Logger     *slog.Logger
}

// Adapter talks to the notebook service on behalf of the notebook side.
type Adapter struct {
	client   *resty.Client
	base     string
	pageSize int
	retry    adapter.RetryPolicy
	logger   *slog.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" || cfg.NotebookID == "" {
		return nil, fmt.Errorf("notebooklm: %w (set notebook.base_url and notebook.notebook_id)", ErrNotConfigured)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("notebooklm: %w: token is not set (MARKSYNC_NOTEBOOK_TOKEN)", adapter.ErrAuth)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	return &Adapter{
		client: adapter.NewHTTPClient(adapter.HTTPConfig{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
		}),
		base:     "/notebooks/" + url.PathEscape(cfg.NotebookID),
		pageSize: cfg.PageSize,
		retry:    cfg.Retry,
		logger:   logging.Or(cfg.Logger).With(logging.Adapter("notebooklm")),
	}, nil
}

// Name implements adapter.Adapter.
func (a *Adapter) Name() string { return "notebooklm" }

// Side implements adapter.Adapter.
func (a *Adapter) Side() model.Side { return model.NotebookSide }

type source struct {
	ID         string    `json:"id,omitempty"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Note       string    `json:"note"`
	Tags       []string  `json:"tags"`
	UpdateTime time.Time `json:"update_time,omitzero"`
}

type listResponse struct {
	Sources       []source `json:"sources"`
	NextPageToken string   `json:"next_page_token"`
}

func (s source) toItem() model.Item {
	return model.Item{
		SourceID:  s.ID,
		Origin:    model.NotebookSide,
		Title:     s.Title,
		URL:       s.URL,
		Note:      s.Note,
		Tags:      s.Tags,
		UpdatedAt: s.UpdateTime,
	}.WithFingerprint()
}

func fromItem(item model.Item) source {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return source{Title: item.Title, URL: item.URL, Note: item.Note, Tags: tags}
}

func (a *Adapter) sourcePath(id string) string {
	return a.base + "/sources/" + url.PathEscape(id)
}

// List implements adapter.Adapter, following next_page_token.
func (a *Adapter) List(ctx context.Context) ([]model.Item, error) {
	defer logging.Timer("notebooklm.list")()

	var items []model.Item
	token := ""
	for page := 0; ; page++ {
		var body listResponse
		err := adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
			req := a.client.R().
				SetContext(ctx).
				SetQueryParam("page_size", strconv.Itoa(a.pageSize)).
				SetResult(&body)
			if token != "" {
				req.SetQueryParam("page_token", token)
			}
			resp, err := req.Get(a.base + "/sources")
			return adapter.CheckResponse(ctx, resp, err)
		})
		if err != nil {
			return nil, fmt.Errorf("list sources (page %d): %w", page, err)
		}

		for _, s := range body.Sources {
			items = append(items, s.toItem())
		}
		if body.NextPageToken == "" {
			break
		}
		token = body.NextPageToken
	}

	a.logger.Debug("listed notebook sources", logging.Count(len(items)))
	return items, nil
}

// Ping implements adapter.Adapter by fetching the notebook itself.
func (a *Adapter) Ping(ctx context.Context) error {
	return adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
		resp, err := a.client.R().SetContext(ctx).Get(a.base)
		return adapter.CheckResponse(ctx, resp, err)
	})
}

// Apply implements adapter.Adapter.
func (a *Adapter) Apply(ctx context.Context, req adapter.ApplyRequest) (*adapter.ApplyResult, error) {
	return adapter.ApplyEach(ctx, a, req)
}

// Create adds a source to the notebook.
func (a *Adapter) Create(ctx context.Context, item model.Item) (model.Item, error) {
	var out source
	err := adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
		resp, err := a.client.R().SetContext(ctx).SetBody(fromItem(item)).SetResult(&out).Post(a.base + "/sources")
		return adapter.CheckResponse(ctx, resp, err)
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("create source %q: %w", item.DisplayName(), err)
	}
	if out.ID == "" {
		return model.Item{}, fmt.Errorf("create source %q: %w: response has no id", item.DisplayName(), adapter.ErrInvalid)
	}
	a.logger.Debug("created source", logging.Item(out.ID))
	return out.toItem(), nil
}

// Update replaces a source's content. Services that re-import a source on
// change answer with a new id, which is reported back to the engine.
func (a *Adapter) Update(ctx context.Context, id string, item model.Item) (model.Item, error) {
	var out source
	err := adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
		resp, err := a.client.R().SetContext(ctx).SetBody(fromItem(item)).SetResult(&out).Patch(a.sourcePath(id))
		return adapter.CheckResponse(ctx, resp, err)
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("update source %s: %w", id, err)
	}
	if out.ID == "" {
		out.ID = id
	}
	if out.ID != id {
		a.logger.Info("source replaced on update", logging.Item(id), slog.String("new_id", out.ID))
	}
	return out.toItem(), nil
}

// Delete removes a source.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	err := adapter.Retry(ctx, a.retry, func(ctx context.Context) error {
		resp, err := a.client.R().SetContext(ctx).Delete(a.sourcePath(id))
		return adapter.CheckResponse(ctx, resp, err)
	})
	if err != nil {
		return fmt.Errorf("delete source %s: %w", id, err)
	}
	return nil
}
