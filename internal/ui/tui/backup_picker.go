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
	"github.com/dustin/go-humanize"

	"github.com/klauern/marksync/internal/state"
)

// BackupPickerResult is the outcome of the backup picker.
type BackupPickerResult struct {
	// Restore is true when the user confirmed a restore.
	Restore bool
	Backup  state.Backup
}

type backupPickerKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Restore  key.Binding
	Filter   key.Binding
	ClearFlt key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultBackupPickerKeyMap() backupPickerKeyMap {
	return backupPickerKeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Restore:  key.NewBinding(key.WithKeys("r", "enter"), key.WithHelp("r", "restore")),
		Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		ClearFlt: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear filter")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// BackupPickerModel lists state backups and lets the user pick one to
// restore.
type BackupPickerModel struct {
	table       table.Model
	backups     []state.Backup
	filtered    []state.Backup
	keys        backupPickerKeyMap
	result      BackupPickerResult
	filter      string
	filtering   bool
	showHelp    bool
	confirmMode bool
	quitting    bool
}

var backupPickerStyles = struct {
	Title       lipgloss.Style
	Help        lipgloss.Style
	Filter      lipgloss.Style
	FilterInput lipgloss.Style
	Confirm     lipgloss.Style
	Status      lipgloss.Style
}{
	Title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Filter:      lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	FilterInput: lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
	Confirm:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Padding(1, 2),
	Status:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
}

// NewBackupPickerModel creates a picker over backups, newest first as given.
func NewBackupPickerModel(backups []state.Backup) BackupPickerModel {
	columns := []table.Column{
		{Title: "ID", Width: 28},
		{Title: "Created", Width: 16},
		{Title: "Links", Width: 8},
		{Title: "Size", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(backupsToRows(backups)),
		table.WithFocused(true),
		table.WithHeight(12),
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

	return BackupPickerModel{
		table:    t,
		backups:  backups,
		filtered: backups,
		keys:     defaultBackupPickerKeyMap(),
	}
}

func backupsToRows(backups []state.Backup) []table.Row {
	rows := make([]table.Row, len(backups))
	for i, b := range backups {
		rows[i] = table.Row{
			b.ID,
			b.CreatedAt.Format("2006-01-02 15:04"),
			humanize.Comma(int64(b.Links)),
			humanize.Bytes(uint64(b.Size)),
		}
	}
	return rows
}

// Init implements tea.Model.
func (m BackupPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m BackupPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-8, 5))

	case tea.KeyMsg:
		if m.confirmMode {
			switch msg.String() {
			case "y", "Y", "enter":
				m.result.Restore = true
				m.quitting = true
				return m, tea.Quit
			case "n", "N", "esc":
				m.confirmMode = false
				m.result = BackupPickerResult{}
			}
			return m, nil
		}

		if m.filtering {
			switch msg.String() {
			case "enter":
				m.filtering = false
			case "esc":
				m.filter = ""
				m.filtering = false
				m.applyFilter()
			case "backspace":
				if len(m.filter) > 0 {
					m.filter = m.filter[:len(m.filter)-1]
					m.applyFilter()
				}
			default:
				if len(msg.String()) == 1 {
					m.filter += msg.String()
					m.applyFilter()
				}
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Filter):
			m.filtering = true
			return m, nil
		case key.Matches(msg, m.keys.ClearFlt):
			m.filter = ""
			m.applyFilter()
			return m, nil
		case key.Matches(msg, m.keys.Restore):
			if b, ok := m.selected(); ok {
				m.result = BackupPickerResult{Backup: b}
				m.confirmMode = true
			}
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *BackupPickerModel) applyFilter() {
	if m.filter == "" {
		m.filtered = m.backups
	} else {
		var filtered []state.Backup
		lower := strings.ToLower(m.filter)
		for _, b := range m.backups {
			if strings.Contains(strings.ToLower(b.ID), lower) ||
				strings.Contains(b.CreatedAt.Format("2006-01-02 15:04"), lower) {
				filtered = append(filtered, b)
			}
		}
		m.filtered = filtered
	}
	m.table.SetRows(backupsToRows(m.filtered))
	m.table.SetCursor(0)
}

func (m BackupPickerModel) selected() (state.Backup, bool) {
	cursor := m.table.Cursor()
	if cursor >= 0 && cursor < len(m.filtered) {
		return m.filtered[cursor], true
	}
	return state.Backup{}, false
}

// View implements tea.Model.
func (m BackupPickerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(backupPickerStyles.Title.Render("State backups"))
	b.WriteString("\n\n")

	if m.filter != "" || m.filtering {
		val := backupPickerStyles.FilterInput.Render(m.filter)
		if m.filtering {
			val += "█"
		}
		b.WriteString(backupPickerStyles.Filter.Render("Filter: ") + val + "\n\n")
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.confirmMode {
		b.WriteString(backupPickerStyles.Confirm.Render(fmt.Sprintf(
			"Restore backup %s (%s links)? The current state is backed up first. (y/n)",
			m.result.Backup.ID, humanize.Comma(int64(m.result.Backup.Links)))))
		return b.String()
	}

	status := fmt.Sprintf("%d backup(s)", len(m.filtered))
	if m.filter != "" {
		status = fmt.Sprintf("%d of %d backup(s) (filtered)", len(m.filtered), len(m.backups))
	}
	b.WriteString(backupPickerStyles.Status.Render(status))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(backupPickerStyles.Help.Render(
			"↑/k up • ↓/j down • r/enter restore • / filter • esc clear filter • q quit • ? hide help"))
	} else {
		b.WriteString(backupPickerStyles.Help.Render("r restore • / filter • q quit • ? help"))
	}
	return b.String()
}

// Result returns the result of the user interaction.
func (m BackupPickerModel) Result() BackupPickerResult {
	return m.result
}

// PickBackup runs the picker. ok is false when the user quit without
// confirming a restore.
func PickBackup(ctx context.Context, backups []state.Backup) (state.Backup, bool, error) {
	if len(backups) == 0 {
		return state.Backup{}, false, nil
	}

	final, err := Run(ctx, NewBackupPickerModel(backups), tea.WithAltScreen())
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return state.Backup{}, false, ctx.Err()
		}
		return state.Backup{}, false, fmt.Errorf("pick backup: %w", err)
	}
	m, ok := final.(BackupPickerModel)
	if !ok || !m.Result().Restore {
		return state.Backup{}, false, nil
	}
	return m.Result().Backup, true, nil
}
