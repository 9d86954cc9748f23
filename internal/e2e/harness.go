// Package e2e provides testing infrastructure for end-to-end CLI tests.
// It includes a harness for running marksync commands against file-backed
// sides, fixture management, and assertion helpers.
package e2e

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauern/marksync/internal/cli"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the process exit code main would use.
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness runs marksync in an isolated home with both sides stored as YAML
// files and the state in a file store.
type Harness struct {
	t       *testing.T
	homeDir string
	env     map[string]string
}

// NewHarness creates a harness. Bookmarks live in bookmarks.yaml and
// notebook sources in notebooks.yaml under the test home.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	homeDir := t.TempDir()
	h := &Harness{
		t:       t,
		homeDir: homeDir,
		env:     make(map[string]string),
	}

	h.SetEnv("MARKSYNC_HOME", homeDir)
	h.SetEnv("MARKSYNC_BOOKMARKS_KIND", "file")
	h.SetEnv("MARKSYNC_BOOKMARKS_PATH", h.BookmarksPath())
	h.SetEnv("MARKSYNC_NOTEBOOKS_KIND", "file")
	h.SetEnv("MARKSYNC_NOTEBOOKS_PATH", h.NotebooksPath())
	h.SetEnv("MARKSYNC_STATE_BACKEND", "file")
	h.SetEnv("MARKSYNC_STATE_PATH", h.StatePath())

	return h
}

// SetEnv sets an environment variable for commands run through this harness.
// The environment is restored after the test completes.
func (h *Harness) SetEnv(key, value string) {
	h.t.Helper()
	h.env[key] = value
	h.t.Setenv(key, value)
}

// HomeDir returns the isolated home directory for this harness.
func (h *Harness) HomeDir() string {
	return h.homeDir
}

// BookmarksPath is the file backing the bookmark side.
func (h *Harness) BookmarksPath() string {
	return filepath.Join(h.homeDir, "bookmarks.yaml")
}

// NotebooksPath is the file backing the notebook side.
func (h *Harness) NotebooksPath() string {
	return filepath.Join(h.homeDir, "notebooks.yaml")
}

// StatePath is the sync state file.
func (h *Harness) StatePath() string {
	return filepath.Join(h.homeDir, "state", "state.json")
}

// Run executes a CLI command with the given arguments and captures stdout.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()

	if len(args) == 0 || args[0] != "marksync" {
		args = append([]string{"marksync"}, args...)
	}

	oldStdout := os.Stdout
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = stdoutW

	// Drain concurrently so output larger than the pipe buffer cannot block.
	var stdoutBuf bytes.Buffer
	var copyErr error
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		_, copyErr = io.Copy(&stdoutBuf, stdoutR)
	}()

	cmdErr := cli.Run(context.Background(), args)

	if err := stdoutW.Close(); err != nil {
		h.t.Fatalf("failed to close stdout pipe writer: %v", err)
	}
	os.Stdout = oldStdout

	<-copyDone
	if copyErr != nil {
		h.t.Fatalf("failed to read captured stdout: %v", copyErr)
	}

	return &Result{
		Stdout:   stdoutBuf.String(),
		Err:      cmdErr,
		ExitCode: cli.ExitCode(cmdErr),
	}
}
