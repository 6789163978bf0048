// Package tui provides the interactive progress view for a sync run. It is a
// pure consumer of the coordinator's progress events.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/yzhou-dev/replayarc/internal/models"
)

var (
	// Colors
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	accentColor  = lipgloss.Color("#7C3AED")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			Padding(0, 1)

	completedStyle = lipgloss.NewStyle().Foreground(successColor)
	pendingStyle   = lipgloss.NewStyle().Foreground(warningColor)
	failedStyle    = lipgloss.NewStyle().Foreground(errorColor)
	helpStyle      = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
)

// EventMsg delivers one coordinator status transition to the view.
type EventMsg models.TaskEvent

// DoneMsg signals the run has finished.
type DoneMsg struct {
	Report *models.Report
	Err    error
}

// row is the latest known state of one task.
type row struct {
	path   string
	status models.TaskStatus
	errMsg string
}

// Model is the progress view over a running sync.
type Model struct {
	spinner spinner.Model
	rows    map[string]*row
	order   []string
	report  *models.Report
	runErr  error
	done    bool

	// cancel stops the underlying run when the user quits mid-sync.
	cancel func()
}

// New creates a progress view. cancel is invoked when the user aborts.
func New(cancel func()) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)
	return Model{
		spinner: sp,
		rows:    make(map[string]*row),
		cancel:  cancel,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles events from the coordinator and the terminal.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil {
				m.cancel()
			}
			if m.done {
				return m, tea.Quit
			}
			return m, nil
		}

	case EventMsg:
		r, ok := m.rows[msg.TaskID]
		if !ok {
			r = &row{path: msg.Path}
			m.rows[msg.TaskID] = r
			m.order = append(m.order, msg.TaskID)
		}
		if r.path == "" {
			r.path = shortID(msg.ContentID)
		}
		r.status = msg.To
		r.errMsg = msg.Err
		return m, nil

	case DoneMsg:
		m.done = true
		m.report = msg.Report
		m.runErr = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the task table and, once finished, the report summary.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("replayarc sync"))
	b.WriteString("\n\n")

	for _, id := range m.order {
		r := m.rows[id]
		marker := m.spinner.View()
		style := pendingStyle
		switch r.status {
		case models.TaskStatusCompleted:
			marker = "✓"
			style = completedStyle
		case models.TaskStatusFailed:
			marker = "✗"
			style = failedStyle
		case models.TaskStatusPending:
			marker = "·"
		}
		line := fmt.Sprintf("%s %s %s", marker, style.Render(string(r.status)), r.path)
		if r.errMsg != "" && r.status != models.TaskStatusCompleted {
			line += " " + helpStyle.Render(r.errMsg)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.done && m.report != nil {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("completed %d, skipped %d, failed %d\n",
			m.report.Completed, m.report.Skipped, len(m.report.Failed)))
		if m.runErr != nil {
			b.WriteString(failedStyle.Render(m.runErr.Error()))
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q to cancel"))
		b.WriteString("\n")
	}

	return b.String()
}

// shortID trims a content identifier for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
