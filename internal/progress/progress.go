// Package progress provides progress indicators for sync apply phases.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/klauern/marksync/internal/logging"
	"github.com/klauern/marksync/internal/model"
	marksync "github.com/klauern/marksync/internal/sync"
	"github.com/klauern/marksync/internal/ui"
)

// Bar wraps progressbar functionality with integration to marksync's UI and logging.
type Bar struct {
	bar     *progressbar.ProgressBar
	enabled bool
	desc    string
}

// Options configures the progress bar behavior.
type Options struct {
	// Max is the maximum value for the progress bar (total steps).
	Max int64
	// Description is the prefix text shown before the progress bar.
	Description string
	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer
	// Force shows the bar even when Writer is not a terminal.
	Force bool
}

// New creates a new progress bar with the given options.
// The bar is only shown if:
//   - Colors are enabled (respects NO_COLOR and --no-color)
//   - Output is a terminal
//   - Not in debug mode (to avoid interfering with logs)
func New(opts Options) *Bar {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	b := &Bar{
		enabled: opts.Force || shouldShowProgress(opts.Writer),
		desc:    opts.Description,
	}

	if !b.enabled {
		logging.Debug(fmt.Sprintf("%s started", opts.Description), logging.Count(int(opts.Max)))
		return b
	}

	b.bar = progressbar.NewOptions64(
		opts.Max,
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetWriter(opts.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(opts.Writer, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(ui.IsColorEnabled()),
	)

	return b
}

// Enabled reports whether the bar renders anything.
func (b *Bar) Enabled() bool {
	return b.enabled
}

// Set sets the progress bar to a specific value.
func (b *Bar) Set(n int) error {
	if !b.enabled {
		return nil
	}
	return b.bar.Set(n)
}

// Describe updates the progress bar description.
func (b *Bar) Describe(desc string) {
	b.desc = desc
	if !b.enabled {
		return
	}
	b.bar.Describe(desc)
}

// Finish completes the progress bar and logs completion.
func (b *Bar) Finish() error {
	if !b.enabled {
		logging.Debug(fmt.Sprintf("%s completed", b.desc))
		return nil
	}
	return b.bar.Finish()
}

// shouldShowProgress determines if progress bars should be displayed.
func shouldShowProgress(w io.Writer) bool {
	if !ui.IsColorEnabled() {
		return false
	}
	if !ui.IsTerminal(w) {
		return false
	}
	// Disable progress if at debug level (avoid interfering with logs)
	return !logging.Default().Enabled(context.Background(), logging.LevelDebug)
}

// Reporter turns engine progress events into one bar per phase and side.
type Reporter struct {
	opts Options

	mu   sync.Mutex
	bars map[string]*Bar
}

// NewReporter creates a reporter writing to opts.Writer.
func NewReporter(opts Options) *Reporter {
	return &Reporter{opts: opts, bars: make(map[string]*Bar)}
}

// Func returns the engine callback.
func (r *Reporter) Func() marksync.ProgressFunc {
	return r.Handle
}

// Handle processes one event. A Done of zero starts a bar; any later event
// completes it.
func (r *Reporter) Handle(ev marksync.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(ev.Phase) + "/" + string(ev.Side)
	bar, ok := r.bars[key]
	if !ok {
		opts := r.opts
		opts.Max = int64(ev.Total)
		opts.Description = describe(ev)
		bar = New(opts)
		r.bars[key] = bar
	}
	if ev.Done == 0 && ev.Failed == 0 {
		return
	}

	if ev.Failed > 0 {
		bar.Describe(fmt.Sprintf("%s (%d failed)", describe(ev), ev.Failed))
	}
	_ = bar.Set(ev.Done)
	_ = bar.Finish()
	delete(r.bars, key)
}

func describe(ev marksync.ProgressEvent) string {
	return fmt.Sprintf("%s on %s", ev.Phase, sideLabel(ev.Side))
}

func sideLabel(s model.Side) string {
	if s == model.BookmarkSide {
		return "bookmarks"
	}
	return "notebook"
}
