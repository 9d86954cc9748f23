package state

import (
	"fmt"
	"log/slog"
	"time"
)

// Backend names accepted by Open.
const (
	BackendFile = "file"
	BackendBolt = "bolt"
)

// Options selects and configures a backend.
type Options struct {
	Backend      string
	Path         string
	MaxBackups   int
	MaxBackupAge time.Duration
	Logger       *slog.Logger
}

// Open returns the configured store.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return OpenFileStore(opts.Path, FileOptions{
			MaxBackups:   opts.MaxBackups,
			MaxBackupAge: opts.MaxBackupAge,
			Logger:       opts.Logger,
		}), nil
	case BackendBolt:
		s, err := OpenBoltStore(opts.Path, BoltOptions{Logger: opts.Logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q (want %q or %q)", opts.Backend, BackendFile, BackendBolt)
	}
}
