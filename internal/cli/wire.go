package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/adapter/file"
	"github.com/klauern/marksync/internal/adapter/notebooklm"
	"github.com/klauern/marksync/internal/adapter/raindrop"
	"github.com/klauern/marksync/internal/config"
	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/model"
	"github.com/klauern/marksync/internal/state"
	"github.com/klauern/marksync/internal/sync"
)

// loadConfig reads the config named by --config, or the default file,
// and applies overrides.
func loadConfig(cmd *cli.Command, o config.Overrides) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	o.Verbose = o.Verbose || cmd.Bool("verbose")
	o.NoColor = o.NoColor || cmd.Bool("no-color")
	if err := cfg.Merge(o); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildAdapter constructs the adapter configured for side.
func buildAdapter(cfg *config.Config, side model.Side, logger *slog.Logger) (adapter.Adapter, error) {
	ac := cfg.Bookmarks
	if side == model.NotebookSide {
		ac = cfg.Notebooks
	}
	logger = logger.With(logging.Side(string(side)), logging.Adapter(ac.Kind))

	switch ac.Kind {
	case config.KindRaindrop:
		return raindrop.New(raindrop.Config{
			BaseURL:      ac.BaseURL,
			Token:        cfg.Credentials.RaindropToken,
			CollectionID: ac.CollectionID,
			PerPage:      ac.PageSize,
			Timeout:      ac.Timeout,
			Retry:        cfg.Retry,
			Logger:       logger,
		})
	case config.KindNotebookLM:
		return notebooklm.New(notebooklm.Config{
			BaseURL:    ac.BaseURL,
			Token:      cfg.Credentials.NotebookToken,
			NotebookID: ac.NotebookID,
			PageSize:   ac.PageSize,
			Timeout:    ac.Timeout,
			Retry:      cfg.Retry,
			Logger:     logger,
		})
	case config.KindFile:
		return file.Open(ac.Path, side, file.Options{Logger: logger})
	default:
		return nil, fmt.Errorf("%w: unknown adapter kind %q", config.ErrInvalid, ac.Kind)
	}
}

// session bundles what the sync and status commands operate on.
type session struct {
	cfg    *config.Config
	store  state.Store
	engine *sync.Engine
}

func (r *session) Close() error {
	return r.store.Close()
}

func openSession(cfg *config.Config, opts sync.Options) (*session, error) {
	logger := logging.Default()
	bookmarks, err := buildAdapter(cfg, model.BookmarkSide, logger)
	if err != nil {
		return nil, fmt.Errorf("bookmark adapter: %w", err)
	}
	notebooks, err := buildAdapter(cfg, model.NotebookSide, logger)
	if err != nil {
		return nil, fmt.Errorf("notebook adapter: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	opts.PropagateDeletes = cfg.Sync.PropagateDeletes
	opts.CallTimeout = cfg.Sync.CallTimeout
	opts.Logger = logger
	engine, err := sync.NewEngine(bookmarks, notebooks, store, opts)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return &session{cfg: cfg, store: store, engine: engine}, nil
}

func openStore(cfg *config.Config) (state.Store, error) {
	opts := cfg.StateOptions()
	opts.Logger = logging.Default()
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	store, err := state.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return store, nil
}
