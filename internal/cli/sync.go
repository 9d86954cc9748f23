package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/klauern/marksync/internal/config"
	"github.com/klauern/marksync/internal/progress"
	"github.com/klauern/marksync/internal/sync"
	"github.com/klauern/marksync/internal/ui"
	"github.com/klauern/marksync/internal/ui/tui"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Reconcile bookmarks and notebook sources",
		UsageText: "marksync sync [options]",
		Description: `Match bookmarks with notebook sources, then create, update and
   (optionally) delete items so both sides hold the same collection.

   Conflicts and ambiguous matches are reported and left alone.

   Examples:
     marksync sync --dry-run
     marksync sync --review
     marksync sync --propagate-deletes --output json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Show the plan without writing to either side",
			},
			&cli.BoolFlag{
				Name:  "review",
				Usage: "Review and select planned writes before they are applied",
			},
			&cli.BoolFlag{
				Name:  "propagate-deletes",
				Usage: "Delete items whose counterpart was deleted",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Report format: text, json or yaml",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withExitCode(runSync(ctx, cmd))
		},
	}
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, config.Overrides{
		PropagateDeletes: cmd.Bool("propagate-deletes"),
		OutputFormat:     cmd.String("output"),
	})
	if err != nil {
		return err
	}

	var opts sync.Options
	if cfg.Output.Format == config.FormatText {
		opts.Progress = progress.NewReporter(progress.Options{Writer: cmd.Root().ErrWriter}).Func()
	}
	if cmd.Bool("review") && !cmd.Bool("dry-run") {
		if !ui.IsTerminal(cmd.Root().Writer) {
			return errors.New("--review needs an interactive terminal")
		}
		opts.Review = tui.ReviewPlan
	}

	s, err := openSession(cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	summary, runErr := s.engine.Run(ctx, cmd.Bool("dry-run"))
	if errors.Is(runErr, sync.ErrReviewRejected) {
		_, _ = fmt.Fprintln(cmd.Root().Writer, ui.StatusSkipped("Sync canceled, nothing applied"))
		return nil
	}
	if summary != nil && (runErr == nil || summary.Unreachable || summary.Plan != nil) {
		if err := writeSummary(cmd.Root().Writer, cfg.Output.Format, summary); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if n := len(summary.Failures); n > 0 {
		return itemFailures(n)
	}
	return nil
}

func writeSummary(w io.Writer, format string, summary *sync.Summary) error {
	switch format {
	case config.FormatJSON:
		data, err := json.MarshalIndent(summary.Report(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case config.FormatYAML:
		data, err := yaml.Marshal(summary.Report())
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprint(w, statusLine(summary)+"\n"+summary.String())
		return err
	}
}

func statusLine(s *sync.Summary) string {
	switch {
	case s.Unreachable:
		return ui.StatusError("Sync skipped: a side is unreachable")
	case len(s.Failures) > 0:
		return ui.StatusWarning(fmt.Sprintf("Sync finished with %d failure(s)", len(s.Failures)))
	case s.DryRun:
		return ui.StatusHeld("Plan computed")
	case len(s.Conflicts) > 0 || len(s.Ambiguous) > 0:
		return ui.StatusWarning("Sync finished, some items need attention")
	default:
		return ui.StatusSuccess(fmt.Sprintf("Sync finished in %s", s.Duration().Round(time.Millisecond)))
	}
}
