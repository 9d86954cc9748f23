package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/klauern/marksync/internal/model"
	"github.com/klauern/marksync/internal/sync"
)

// PlanEntry is one planned write shown in the review table.
type PlanEntry struct {
	Op       string
	Side     model.Side
	TargetID string
	Item     model.Item
}

// PlanReviewResult contains the outcome of a review.
type PlanReviewResult struct {
	Approved bool
	Plan     *model.ChangeSet
}

type planReviewKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Toggle    key.Binding
	ToggleAll key.Binding
	Confirm   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultPlanReviewKeyMap() planReviewKeyMap {
	return planReviewKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "tab"),
			key.WithHelp("space/tab", "toggle"),
		),
		ToggleAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle all"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y/enter", "apply selected"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/esc", "cancel"),
		),
	}
}

// PlanReviewModel lets the user pick which planned writes to apply.
type PlanReviewModel struct {
	table        table.Model
	plan         *model.ChangeSet
	entries      []PlanEntry
	selected     []bool
	keys         planReviewKeyMap
	result       PlanReviewResult
	showHelp     bool
	confirmMode  bool
	width        int
	quitting     bool
	columnWidths planReviewColumnWidths
}

var planReviewStyles = struct {
	Title     lipgloss.Style
	Help      lipgloss.Style
	Confirm   lipgloss.Style
	Status    lipgloss.Style
	Warning   lipgloss.Style
	DetailBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Confirm:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Padding(1, 2),
	Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
	Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Padding(0, 1),
	DetailBox: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
}

const (
	planReviewCheckboxWidth = 3
	planReviewOpWidth       = 8
	planReviewSideWidth     = 9
	planReviewTitleWidth    = 30
	planReviewURLWidth      = 40
	planReviewColumnPadding = 2
	planReviewColumnCount   = 5
)

type planReviewColumnWidths struct {
	title int
	url   int
}

func planReviewColumns(totalWidth int) ([]table.Column, planReviewColumnWidths) {
	widths := planReviewColumnWidths{title: planReviewTitleWidth, url: planReviewURLWidth}

	if totalWidth > 0 {
		base := planReviewCheckboxWidth + planReviewOpWidth + planReviewSideWidth + widths.title + widths.url +
			planReviewColumnPadding*planReviewColumnCount
		if extra := totalWidth - base; extra > 0 {
			widths.title += extra / 2
			widths.url += extra - extra/2
		}
	}

	return []table.Column{
		{Title: " ", Width: planReviewCheckboxWidth},
		{Title: "Op", Width: planReviewOpWidth},
		{Title: "On", Width: planReviewSideWidth},
		{Title: "Title", Width: widths.title},
		{Title: "URL", Width: widths.url},
	}, widths
}

// PlanEntries flattens the writes of a change set in apply order.
func PlanEntries(plan *model.ChangeSet) []PlanEntry {
	if plan == nil {
		return nil
	}
	var entries []PlanEntry
	for _, side := range model.AllSides() {
		for _, it := range plan.Creates(side) {
			entries = append(entries, PlanEntry{Op: "create", Side: side, TargetID: it.SourceID, Item: it})
		}
	}
	for _, side := range model.AllSides() {
		for _, u := range plan.Updates(side) {
			entries = append(entries, PlanEntry{Op: "update", Side: side, TargetID: u.TargetID, Item: u.Item})
		}
	}
	for _, side := range model.AllSides() {
		for _, d := range plan.Deletes(side) {
			entries = append(entries, PlanEntry{Op: "delete", Side: side, TargetID: d.TargetID, Item: d.Item})
		}
	}
	return entries
}

// NewPlanReviewModel creates a review model with every write selected.
func NewPlanReviewModel(plan *model.ChangeSet) PlanReviewModel {
	columns, widths := planReviewColumns(0)
	entries := PlanEntries(plan)
	selected := make([]bool, len(entries))
	for i := range selected {
		selected[i] = true
	}

	m := PlanReviewModel{
		plan:         plan,
		entries:      entries,
		selected:     selected,
		keys:         defaultPlanReviewKeyMap(),
		columnWidths: widths,
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(m.rows()),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m.table = t
	return m
}

func (m PlanReviewModel) rows() []table.Row {
	rows := make([]table.Row, len(m.entries))
	for i, e := range m.entries {
		checkbox := "[ ]"
		if m.selected[i] {
			checkbox = "[✓]"
		}
		rows[i] = table.Row{
			checkbox,
			e.Op,
			string(e.Side),
			truncateText(e.Item.DisplayName(), m.columnWidths.title),
			truncateText(e.Item.URL, m.columnWidths.url),
		}
	}
	return rows
}

// Init implements tea.Model.
func (m PlanReviewModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PlanReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetHeight(max(msg.Height-12, 5))
		columns, widths := planReviewColumns(msg.Width)
		m.columnWidths = widths
		m.table.SetColumns(columns)
		m.table.SetRows(m.rows())

	case tea.KeyMsg:
		if m.confirmMode {
			switch msg.String() {
			case "y", "Y", "enter":
				m.result = PlanReviewResult{Approved: true, Plan: m.Selected()}
				m.quitting = true
				return m, tea.Quit
			case "n", "N", "esc":
				m.confirmMode = false
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.result = PlanReviewResult{}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Toggle):
			if i := m.table.Cursor(); i >= 0 && i < len(m.entries) {
				m.selected[i] = !m.selected[i]
				m.table.SetRows(m.rows())
			}
			return m, nil

		case key.Matches(msg, m.keys.ToggleAll):
			selectAll := m.selectedCount() < len(m.entries)
			for i := range m.selected {
				m.selected[i] = selectAll
			}
			m.table.SetRows(m.rows())
			return m, nil

		case key.Matches(msg, m.keys.Confirm):
			m.confirmMode = true
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m PlanReviewModel) selectedCount() int {
	n := 0
	for _, s := range m.selected {
		if s {
			n++
		}
	}
	return n
}

// Selected returns the change set reduced to the selected writes. Link
// bookkeeping and reported items are kept as planned.
func (m PlanReviewModel) Selected() *model.ChangeSet {
	if m.plan == nil {
		return nil
	}
	out := &model.ChangeSet{
		Links:       m.plan.Links,
		Unlinks:     m.plan.Unlinks,
		Conflicts:   m.plan.Conflicts,
		Ambiguous:   m.plan.Ambiguous,
		HeldDeletes: m.plan.HeldDeletes,
	}

	keep := make(map[string]bool, len(m.entries))
	for i, e := range m.entries {
		if m.selected[i] {
			keep[entryKey(e.Op, e.Side, e.TargetID)] = true
		}
	}
	for _, it := range m.plan.CreatesOnNotebook {
		if keep[entryKey("create", model.NotebookSide, it.SourceID)] {
			out.CreatesOnNotebook = append(out.CreatesOnNotebook, it)
		}
	}
	for _, it := range m.plan.CreatesOnBookmark {
		if keep[entryKey("create", model.BookmarkSide, it.SourceID)] {
			out.CreatesOnBookmark = append(out.CreatesOnBookmark, it)
		}
	}
	for _, u := range m.plan.UpdatesOnNotebook {
		if keep[entryKey("update", model.NotebookSide, u.TargetID)] {
			out.UpdatesOnNotebook = append(out.UpdatesOnNotebook, u)
		}
	}
	for _, u := range m.plan.UpdatesOnBookmark {
		if keep[entryKey("update", model.BookmarkSide, u.TargetID)] {
			out.UpdatesOnBookmark = append(out.UpdatesOnBookmark, u)
		}
	}
	for _, d := range m.plan.DeletesOnNotebook {
		if keep[entryKey("delete", model.NotebookSide, d.TargetID)] {
			out.DeletesOnNotebook = append(out.DeletesOnNotebook, d)
		}
	}
	for _, d := range m.plan.DeletesOnBookmark {
		if keep[entryKey("delete", model.BookmarkSide, d.TargetID)] {
			out.DeletesOnBookmark = append(out.DeletesOnBookmark, d)
		}
	}
	return out
}

func entryKey(op string, side model.Side, id string) string {
	return op + "/" + string(side) + "/" + id
}

// Result returns the review outcome once the program quit.
func (m PlanReviewModel) Result() PlanReviewResult {
	return m.result
}

func (m PlanReviewModel) renderDetail() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.entries) {
		return ""
	}
	e := m.entries[i]
	width := max(m.width-4, 40)

	lines := []string{
		formatDetail("Title: ", e.Item.DisplayName(), width),
		formatDetail("URL:   ", e.Item.URL, width),
	}
	if len(e.Item.Tags) > 0 {
		lines = append(lines, formatDetail("Tags:  ", strings.Join(e.Item.Tags, ", "), width))
	}
	if e.Item.Note != "" {
		lines = append(lines, formatDetail("Note:  ", e.Item.Note, width))
	}
	return planReviewStyles.DetailBox.Render(strings.Join(lines, "\n"))
}

// View implements tea.Model.
func (m PlanReviewModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(planReviewStyles.Title.Render("Review sync plan: bookmark <-> notebook"))
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.confirmMode {
		msg := fmt.Sprintf("Apply %d of %d write(s)? (y/n)", m.selectedCount(), len(m.entries))
		b.WriteString(planReviewStyles.Confirm.Render(msg))
		return b.String()
	}

	b.WriteString(m.renderDetail())
	b.WriteString("\n")

	if m.plan != nil {
		if n := len(m.plan.Conflicts) + len(m.plan.Ambiguous) + len(m.plan.HeldDeletes); n > 0 {
			b.WriteString(planReviewStyles.Warning.Render(fmt.Sprintf(
				"%d conflict(s), %d ambiguous, %d held delete(s) will be reported, not applied",
				len(m.plan.Conflicts), len(m.plan.Ambiguous), len(m.plan.HeldDeletes))))
			b.WriteString("\n")
		}
	}

	status := fmt.Sprintf("%d write(s) selected of %d", m.selectedCount(), len(m.entries))
	b.WriteString(planReviewStyles.Status.Render(status))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(planReviewStyles.Help.Render(
			"↑/k up • ↓/j down • space toggle • a toggle all • y apply • q cancel • ? hide help"))
	} else {
		b.WriteString(planReviewStyles.Help.Render("space toggle • y apply • q cancel • ? help"))
	}
	return b.String()
}

// ReviewPlan runs the review TUI and returns the approved subset of plan.
// It satisfies sync.ReviewFunc.
func ReviewPlan(ctx context.Context, plan *model.ChangeSet) (*model.ChangeSet, error) {
	final, err := Run(ctx, NewPlanReviewModel(plan))
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("review plan: %w", err)
	}
	m, ok := final.(PlanReviewModel)
	if !ok || !m.Result().Approved {
		return nil, sync.ErrReviewRejected
	}
	return m.Result().Plan, nil
}

var _ sync.ReviewFunc = ReviewPlan
