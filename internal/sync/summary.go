package sync

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/model"
)

// Failure is one write that did not succeed. Its link was left untouched.
type Failure struct {
	Side   model.Side
	Op     adapter.Op
	ItemID string
	Title  string
	Err    error
}

// Summary reports the outcome of one run. It is returned even when the run
// fails part way, so successes, failures and conflicts are always listed.
type Summary struct {
	RunID  string
	DryRun bool
	// Plan is the computed change set (before any review filtering).
	Plan *model.ChangeSet

	Created  int
	Updated  int
	Deleted  int
	Linked   int
	Unlinked int

	Conflicts   []model.Conflict
	Ambiguous   []model.Ambiguity
	HeldDeletes []model.Delete
	Failures    []Failure

	// SideErrors holds fetch failures per side.
	SideErrors map[model.Side]error
	// Unreachable is set when a side could not be fetched; nothing was
	// applied or committed.
	Unreachable bool
	// Committed is set once the next state snapshot was persisted.
	Committed bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Success returns true if every side was reachable and every write succeeded.
func (s *Summary) Success() bool {
	return len(s.Failures) == 0 && len(s.SideErrors) == 0
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) fail(side model.Side, op adapter.Op, id, title string, err error) {
	s.Failures = append(s.Failures, Failure{Side: side, Op: op, ItemID: id, Title: title, Err: err})
}

// String returns a human-readable report.
func (s *Summary) String() string {
	var sb strings.Builder

	if s.DryRun {
		sb.WriteString("Dry run - no changes made\n")
		if s.Plan != nil {
			sb.WriteString("Planned bookmark <-> notebook sync\n")
			fmt.Fprintf(&sb, "  Create on notebook: %d\n", len(s.Plan.CreatesOnNotebook))
			fmt.Fprintf(&sb, "  Create on bookmark: %d\n", len(s.Plan.CreatesOnBookmark))
			fmt.Fprintf(&sb, "  Update on notebook: %d\n", len(s.Plan.UpdatesOnNotebook))
			fmt.Fprintf(&sb, "  Update on bookmark: %d\n", len(s.Plan.UpdatesOnBookmark))
			fmt.Fprintf(&sb, "  Delete on notebook: %d\n", len(s.Plan.DeletesOnNotebook))
			fmt.Fprintf(&sb, "  Delete on bookmark: %d\n", len(s.Plan.DeletesOnBookmark))
			fmt.Fprintf(&sb, "  Link:               %d\n", len(s.Plan.Links))
			fmt.Fprintf(&sb, "  Unlink:             %d\n", len(s.Plan.Unlinks))
		}
	} else {
		sb.WriteString("Synced bookmark <-> notebook\n")
		fmt.Fprintf(&sb, "  Created:   %d\n", s.Created)
		fmt.Fprintf(&sb, "  Updated:   %d\n", s.Updated)
		fmt.Fprintf(&sb, "  Deleted:   %d\n", s.Deleted)
		fmt.Fprintf(&sb, "  Linked:    %d\n", s.Linked)
		fmt.Fprintf(&sb, "  Unlinked:  %d\n", s.Unlinked)
	}
	fmt.Fprintf(&sb, "  Conflicts: %d\n", len(s.Conflicts))
	fmt.Fprintf(&sb, "  Ambiguous: %d\n", len(s.Ambiguous))
	fmt.Fprintf(&sb, "  Held:      %d\n", len(s.HeldDeletes))
	fmt.Fprintf(&sb, "  Failed:    %d\n", len(s.Failures))

	if len(s.SideErrors) > 0 {
		sb.WriteString("\nUnreachable:\n")
		for _, side := range model.AllSides() {
			if err, ok := s.SideErrors[side]; ok {
				fmt.Fprintf(&sb, "  - %s: %v\n", side, err)
			}
		}
	}

	if len(s.Conflicts) > 0 {
		sb.WriteString("\nConflicts requiring resolution:\n")
		for _, c := range s.Conflicts {
			fmt.Fprintf(&sb, "  - %s (%s)\n", c.Summary(), c.Link)
		}
	}

	if len(s.Ambiguous) > 0 {
		sb.WriteString("\nAmbiguous matches (not linked):\n")
		for _, a := range s.Ambiguous {
			fmt.Fprintf(&sb, "  - %s\n", a.Summary())
		}
	}

	if len(s.HeldDeletes) > 0 {
		sb.WriteString("\nDeletes held (run with --propagate-deletes to apply):\n")
		for _, d := range s.HeldDeletes {
			fmt.Fprintf(&sb, "  - %s %s: %s\n", d.Item.Origin, d.TargetID, d.Item.DisplayName())
		}
	}

	if len(s.Failures) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&sb, "  - %s %s %s: %v\n", f.Op, f.Side, f.label(), f.Err)
		}
	}

	return sb.String()
}

func (f Failure) label() string {
	if f.Title != "" {
		return fmt.Sprintf("%q", f.Title)
	}
	return f.ItemID
}

// Report is the serializable form of a Summary for --output json|yaml.
type Report struct {
	RunID       string            `json:"run_id" yaml:"run_id"`
	DryRun      bool              `json:"dry_run" yaml:"dry_run"`
	Success     bool              `json:"success" yaml:"success"`
	Committed   bool              `json:"committed" yaml:"committed"`
	Created     int               `json:"created" yaml:"created"`
	Updated     int               `json:"updated" yaml:"updated"`
	Deleted     int               `json:"deleted" yaml:"deleted"`
	Linked      int               `json:"linked" yaml:"linked"`
	Unlinked    int               `json:"unlinked" yaml:"unlinked"`
	Plan        *PlanReport       `json:"plan,omitempty" yaml:"plan,omitempty"`
	Conflicts   []ConflictReport  `json:"conflicts" yaml:"conflicts"`
	Ambiguous   []AmbiguityReport `json:"ambiguous" yaml:"ambiguous"`
	HeldDeletes []ItemReport      `json:"held_deletes" yaml:"held_deletes"`
	Failures    []FailureReport   `json:"failures" yaml:"failures"`
	Unreachable map[string]string `json:"unreachable,omitempty" yaml:"unreachable,omitempty"`
	DurationMS  int64             `json:"duration_ms" yaml:"duration_ms"`
}

// PlanReport lists planned writes.
type PlanReport struct {
	CreatesOnNotebook []ItemReport `json:"creates_on_notebook" yaml:"creates_on_notebook"`
	CreatesOnBookmark []ItemReport `json:"creates_on_bookmark" yaml:"creates_on_bookmark"`
	UpdatesOnNotebook []ItemReport `json:"updates_on_notebook" yaml:"updates_on_notebook"`
	UpdatesOnBookmark []ItemReport `json:"updates_on_bookmark" yaml:"updates_on_bookmark"`
	DeletesOnNotebook []ItemReport `json:"deletes_on_notebook" yaml:"deletes_on_notebook"`
	DeletesOnBookmark []ItemReport `json:"deletes_on_bookmark" yaml:"deletes_on_bookmark"`
	Links             []string     `json:"links" yaml:"links"`
	Unlinks           []string     `json:"unlinks" yaml:"unlinks"`
}

// ItemReport identifies an item.
type ItemReport struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// ConflictReport describes a conflict.
type ConflictReport struct {
	BookmarkID string   `json:"bookmark_id" yaml:"bookmark_id"`
	NotebookID string   `json:"notebook_id" yaml:"notebook_id"`
	Title      string   `json:"title" yaml:"title"`
	Fields     []string `json:"fields" yaml:"fields"`
}

// AmbiguityReport describes an ambiguous fingerprint group.
type AmbiguityReport struct {
	Fingerprint string   `json:"fingerprint" yaml:"fingerprint"`
	Bookmarks   []string `json:"bookmarks" yaml:"bookmarks"`
	Notebooks   []string `json:"notebooks" yaml:"notebooks"`
}

// FailureReport describes a failed write.
type FailureReport struct {
	Side  string `json:"side" yaml:"side"`
	Op    string `json:"op" yaml:"op"`
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Error string `json:"error" yaml:"error"`
}

// Report builds the serializable form.
func (s *Summary) Report() Report {
	r := Report{
		RunID:       s.RunID,
		DryRun:      s.DryRun,
		Success:     s.Success(),
		Committed:   s.Committed,
		Created:     s.Created,
		Updated:     s.Updated,
		Deleted:     s.Deleted,
		Linked:      s.Linked,
		Unlinked:    s.Unlinked,
		Conflicts:   []ConflictReport{},
		Ambiguous:   []AmbiguityReport{},
		HeldDeletes: []ItemReport{},
		Failures:    []FailureReport{},
		DurationMS:  s.Duration().Milliseconds(),
	}
	if s.DryRun && s.Plan != nil {
		r.Plan = planReport(s.Plan)
	}
	for _, c := range s.Conflicts {
		r.Conflicts = append(r.Conflicts, ConflictReport{
			BookmarkID: c.Link.BookmarkID,
			NotebookID: c.Link.NotebookID,
			Title:      c.Bookmark.DisplayName(),
			Fields:     c.Fields(),
		})
	}
	for _, a := range s.Ambiguous {
		r.Ambiguous = append(r.Ambiguous, AmbiguityReport{
			Fingerprint: a.Fingerprint,
			Bookmarks:   itemIDs(a.Bookmarks),
			Notebooks:   itemIDs(a.Notebooks),
		})
	}
	for _, d := range s.HeldDeletes {
		r.HeldDeletes = append(r.HeldDeletes, itemReport(d.TargetID, d.Item))
	}
	for _, f := range s.Failures {
		r.Failures = append(r.Failures, FailureReport{
			Side:  string(f.Side),
			Op:    string(f.Op),
			ID:    f.ItemID,
			Title: f.Title,
			Error: errString(f.Err),
		})
	}
	if len(s.SideErrors) > 0 {
		r.Unreachable = make(map[string]string, len(s.SideErrors))
		for side, err := range s.SideErrors {
			r.Unreachable[string(side)] = errString(err)
		}
	}
	return r
}

func planReport(cs *model.ChangeSet) *PlanReport {
	p := &PlanReport{Links: []string{}, Unlinks: []string{}}
	for _, it := range cs.CreatesOnNotebook {
		p.CreatesOnNotebook = append(p.CreatesOnNotebook, itemReport(it.SourceID, it))
	}
	for _, it := range cs.CreatesOnBookmark {
		p.CreatesOnBookmark = append(p.CreatesOnBookmark, itemReport(it.SourceID, it))
	}
	for _, u := range cs.UpdatesOnNotebook {
		p.UpdatesOnNotebook = append(p.UpdatesOnNotebook, itemReport(u.TargetID, u.Item))
	}
	for _, u := range cs.UpdatesOnBookmark {
		p.UpdatesOnBookmark = append(p.UpdatesOnBookmark, itemReport(u.TargetID, u.Item))
	}
	for _, d := range cs.DeletesOnNotebook {
		p.DeletesOnNotebook = append(p.DeletesOnNotebook, itemReport(d.TargetID, d.Item))
	}
	for _, d := range cs.DeletesOnBookmark {
		p.DeletesOnBookmark = append(p.DeletesOnBookmark, itemReport(d.TargetID, d.Item))
	}
	for _, l := range cs.Links {
		p.Links = append(p.Links, l.String())
	}
	for _, l := range cs.Unlinks {
		p.Unlinks = append(p.Unlinks, l.String())
	}
	return p
}

func itemReport(id string, it model.Item) ItemReport {
	return ItemReport{ID: id, Title: it.Title, URL: it.URL}
}

func itemIDs(items []model.Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.SourceID)
	}
	sort.Strings(ids)
	return ids
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
