package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/config"
	"github.com/klauern/marksync/internal/ui"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or create the configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd, config.Overrides{})
					if err != nil {
						return withExitCode(err)
					}
					return withExitCode(showConfig(cmd, cfg))
				},
			},
			{
				Name:  "init",
				Usage: "Write a config file with the defaults",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Overwrite an existing file"},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return withExitCode(initConfig(cmd))
				},
			},
		},
	}
}

func configPath(cmd *cli.Command) string {
	if path := cmd.String("config"); path != "" {
		return path
	}
	return config.FilePath()
}

func showConfig(cmd *cli.Command, cfg *config.Config) error {
	w := cmd.Root().Writer
	data, err := cfg.Marshal(configPath(cmd))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "# %s\n", configPath(cmd))
	_, _ = w.Write(data)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "# MARKSYNC_RAINDROP_TOKEN: %s\n", tokenState(cfg.Credentials.RaindropToken))
	_, _ = fmt.Fprintf(w, "# MARKSYNC_NOTEBOOK_TOKEN: %s\n", tokenState(cfg.Credentials.NotebookToken))
	return nil
}

func tokenState(token string) string {
	if token == "" {
		return "not set"
	}
	return "set"
}

func initConfig(cmd *cli.Command) error {
	path := configPath(cmd)
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.Default().SaveToPath(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.Root().Writer, ui.StatusSuccess("Wrote "+path))
	return nil
}
