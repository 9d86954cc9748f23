package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/config"
	"github.com/klauern/marksync/internal/state"
	"github.com/klauern/marksync/internal/ui"
	"github.com/klauern/marksync/internal/ui/tui"
)

func stateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Inspect and repair the sync state",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the state location, version and links",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "links", Aliases: []string{"l"}, Usage: "List every link"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withExitCode(withStore(cmd, func(store state.Store) error {
						return showState(ctx, cmd.Root().Writer, store, cmd.Bool("links"))
					}))
				},
			},
			{
				Name:  "reset",
				Usage: "Move the current state aside and start from an empty state",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the reset"},
					&cli.BoolFlag{Name: "force", Usage: "Remove a lock left behind by a crashed run first"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if !cmd.Bool("yes") {
						return withExitCode(errors.New("reset forgets every link; rerun with --yes to confirm"))
					}
					return withExitCode(withStore(cmd, func(store state.Store) error {
						return resetState(ctx, cmd.Root().Writer, store, cmd.Bool("force"))
					}))
				},
			},
			{
				Name:  "backups",
				Usage: "List backups of previous state snapshots",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return withExitCode(withStore(cmd, func(store state.Store) error {
						return listBackups(cmd.Root().Writer, store)
					}))
				},
			},
			{
				Name:      "restore",
				Usage:     "Restore a state backup",
				ArgsUsage: "[backup-id]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" && !ui.IsTerminal(cmd.Root().Writer) {
						return withExitCode(errors.New("restore requires a backup id (see 'marksync state backups')"))
					}
					return withExitCode(withStore(cmd, func(store state.Store) error {
						if id == "" {
							return pickAndRestore(ctx, cmd.Root().Writer, store)
						}
						return restoreState(ctx, cmd.Root().Writer, store, id)
					}))
				},
			},
		},
	}
}

func withStore(cmd *cli.Command, fn func(state.Store) error) error {
	cfg, err := loadConfig(cmd, config.Overrides{})
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func showState(ctx context.Context, w io.Writer, store state.Store, links bool) error {
	_, _ = fmt.Fprintf(w, "Location: %s\n", location(store))

	snap, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, state.ErrCorrupt) || errors.Is(err, state.ErrUnsupportedVersion) {
			_, _ = fmt.Fprintln(w, ui.StatusError("State cannot be read. Restore a backup or run 'marksync state reset --yes'."))
		}
		return err
	}

	_, _ = fmt.Fprintf(w, "Version:  %d\n", snap.Version)
	_, _ = fmt.Fprintf(w, "Updated:  %s\n", lastSynced(snap))
	_, _ = fmt.Fprintf(w, "Links:    %s\n", humanize.Comma(int64(snap.Len())))

	if links && snap.Links != nil {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, ui.Header(fmt.Sprintf("%-24s %-24s %s", "BOOKMARK", "NOTEBOOK", "SYNCED")))
		for _, r := range snap.Links.Records() {
			_, _ = fmt.Fprintf(w, "%-24s %-24s %s\n", r.BookmarkID, r.NotebookID, ui.Dim(humanize.Time(r.LastSyncedAt)))
		}
	}
	return nil
}

func resetState(ctx context.Context, w io.Writer, store state.Store, force bool) error {
	r, ok := store.(state.Resetter)
	if !ok {
		return errors.New("this state backend cannot be reset")
	}
	if force {
		if b, ok := store.(state.LockBreaker); ok {
			if err := b.BreakLock(); err != nil {
				return fmt.Errorf("reset state: %w", err)
			}
		}
	}
	moved, err := r.Reset(ctx)
	if err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	if moved != "" {
		_, _ = fmt.Fprintln(w, ui.StatusSuccess("State reset, previous state kept at "+moved))
	} else {
		_, _ = fmt.Fprintln(w, ui.StatusSuccess("State reset"))
	}
	return nil
}

func listBackups(w io.Writer, store state.Store) error {
	bm, ok := store.(state.BackupManager)
	if !ok {
		return errors.New("this state backend does not keep backups")
	}
	backups, err := bm.Backups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		_, _ = fmt.Fprintln(w, "No backups")
		return nil
	}

	_, _ = fmt.Fprintln(w, ui.Header(fmt.Sprintf("%-28s %-16s %8s %8s", "ID", "CREATED", "LINKS", "SIZE")))
	for _, b := range backups {
		_, _ = fmt.Fprintf(w, "%-28s %-16s %8s %8s\n",
			b.ID, humanize.Time(b.CreatedAt), humanize.Comma(int64(b.Links)), humanize.Bytes(uint64(b.Size)))
	}
	return nil
}

func restoreState(ctx context.Context, w io.Writer, store state.Store, id string) error {
	bm, ok := store.(state.BackupManager)
	if !ok {
		return errors.New("this state backend does not keep backups")
	}
	if err := bm.Restore(ctx, id); err != nil {
		return fmt.Errorf("restore %s: %w", id, err)
	}
	_, _ = fmt.Fprintln(w, ui.StatusSuccess("Restored state from backup "+id))
	return nil
}

// pickAndRestore lets the user choose a backup interactively.
func pickAndRestore(ctx context.Context, w io.Writer, store state.Store) error {
	bm, ok := store.(state.BackupManager)
	if !ok {
		return errors.New("this state backend does not keep backups")
	}
	backups, err := bm.Backups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		_, _ = fmt.Fprintln(w, "No backups")
		return nil
	}
	b, ok, err := tui.PickBackup(ctx, backups)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintln(w, ui.StatusSkipped("Restore canceled"))
		return nil
	}
	return restoreState(ctx, w, store, b.ID)
}
