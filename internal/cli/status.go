package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/config"
	"github.com/klauern/marksync/internal/state"
	"github.com/klauern/marksync/internal/sync"
	"github.com/klauern/marksync/internal/ui"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Check that both sides are reachable and summarize the sync state",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withExitCode(runStatus(ctx, cmd))
		},
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, config.Overrides{})
	if err != nil {
		return err
	}
	s, err := openSession(cfg, sync.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	w := cmd.Root().Writer
	_, _ = fmt.Fprintln(w, ui.Header("Adapters"))

	var unreachable []string
	for _, h := range s.engine.Status(ctx) {
		label := fmt.Sprintf("%-9s %s", h.Side, h.Adapter)
		if h.Reachable() {
			_, _ = fmt.Fprintf(w, "  %s %s\n", ui.StatusSuccess(label), ui.Dim(h.Latency.Round(time.Millisecond).String()))
			continue
		}
		unreachable = append(unreachable, string(h.Side))
		_, _ = fmt.Fprintf(w, "  %s: %v\n", ui.StatusError(label), h.Err)
	}

	_, _ = fmt.Fprintln(w, ui.Header("State"))
	snap, loadErr := s.store.Load(ctx)
	if loadErr != nil {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", ui.StatusError(location(s.store)), loadErr)
	} else {
		_, _ = fmt.Fprintf(w, "  %s\n", ui.StatusSuccess(location(s.store)))
		_, _ = fmt.Fprintf(w, "  links:       %s\n", humanize.Comma(int64(snap.Len())))
		_, _ = fmt.Fprintf(w, "  last synced: %s\n", lastSynced(snap))
	}

	if len(unreachable) > 0 {
		return fmt.Errorf("%w: %v", sync.ErrUnreachable, unreachable)
	}
	return loadErr
}

func location(store state.Store) string {
	if d, ok := store.(state.Describer); ok {
		return d.Location()
	}
	return "state"
}

func lastSynced(snap *state.Snapshot) string {
	if snap.UpdatedAt.IsZero() {
		return "never"
	}
	return humanize.Time(snap.UpdatedAt)
}
