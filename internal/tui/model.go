package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/documents"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/event"
	"github.com/Iron-Ham/git2doc/internal/util"
)

// Jobs is the part of the document orchestrator the dashboard drives.
type Jobs interface {
	Jobs() []api.Document
	List(ctx context.Context) ([]api.Document, error)
	Polling() bool
}

// Column widths.
const (
	colID     = 6
	colRepo   = 28
	colName   = 32
	colStatus = 12
)

// Model is the Bubbletea model for the job dashboard.
type Model struct {
	ctx    context.Context
	jobs   Jobs
	events <-chan tea.Msg

	search    textinput.Model
	searching bool
	cursor    int

	width  int
	height int

	polling    bool
	lastChange string
	errorMsg   string
	quitting   bool
}

// New creates a dashboard over jobs that redraws on messages from events
// (see [Bridge]). ctx bounds the refreshes it issues.
func New(ctx context.Context, jobs Jobs, events <-chan tea.Msg) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter by name or repository"
	ti.CharLimit = 100
	ti.Width = 40

	return Model{
		ctx:     ctx,
		jobs:    jobs,
		events:  events,
		search:  ti,
		polling: jobs.Polling(),
	}
}

// Init starts listening for bridged events and loads the job list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(listen(m.events), m.refresh())
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		_, err := m.jobs.List(m.ctx)
		return refreshedMsg{err: err}
	}
}

// visible returns the jobs matching the current filter.
func (m Model) visible() []api.Document {
	return documents.FilterJobs(m.jobs.Jobs(), m.search.Value())
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case jobsChangedMsg:
		m.clampCursor()
		return m, listen(m.events)

	case statusChangedMsg:
		e := msg.event
		m.lastChange = fmt.Sprintf("job %d: %s -> %s (%d%%)", e.JobID, e.From, e.To, e.Progress)
		return m, listen(m.events)

	case pollMsg:
		m.polling = msg.polling
		if msg.reason == event.StopSession {
			m.errorMsg = "Session ended. Log in again to keep watching."
		}
		return m, listen(m.events)

	case refreshedMsg:
		if msg.err != nil {
			m.errorMsg = errors.UserMessage(msg.err, "Failed to load documents")
		} else {
			m.errorMsg = ""
		}
		m.clampCursor()
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if m.searching {
		switch msg.Type {
		case tea.KeyEsc:
			m.searching = false
			m.search.Blur()
			m.search.Reset()
			m.clampCursor()
			return m, nil
		case tea.KeyEnter:
			m.searching = false
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.clampCursor()
		return m, cmd
	}

	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "/":
		m.searching = true
		return m, m.search.Focus()
	case "r":
		return m, m.refresh()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	jobs := m.jobs.Jobs()
	visible := documents.FilterJobs(jobs, m.search.Value())

	state := mutedStyle.Render("idle")
	if m.polling {
		state = statusStyle(api.StatusProcessing).Render("polling")
	}
	b.WriteString(titleStyle.Render("git2doc"))
	fmt.Fprintf(&b, "  %d jobs  %s\n\n", len(jobs), state)

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n\n")
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("  %s %s %s %s",
		util.FitANSI("ID", colID),
		util.FitANSI("REPOSITORY", colRepo),
		util.FitANSI("NAME", colName),
		"STATUS",
	)))
	b.WriteString("\n")

	if len(visible) == 0 {
		if len(jobs) == 0 {
			b.WriteString(mutedStyle.Render("  No documents."))
		} else {
			b.WriteString(mutedStyle.Render("  No jobs match the filter."))
		}
		b.WriteString("\n")
	}
	for i, d := range visible {
		row := fmt.Sprintf("%s %s %s %s",
			util.FitANSI(strconv.FormatInt(d.ID, 10), colID),
			util.FitANSI(d.GithubRepo, colRepo),
			util.FitANSI(d.Name, colName),
			statusStyle(d.Status).Render(util.FitANSI(d.Status, colStatus)),
		)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + row))
		} else {
			b.WriteString("  " + row)
		}
		b.WriteString("\n")
	}

	if m.lastChange != "" {
		b.WriteString("\n")
		b.WriteString(m.lastChange)
		b.WriteString("\n")
	}
	if m.errorMsg != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.errorMsg))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("[/] filter  [r] refresh  [j/k] move  [q] quit"))
	return b.String()
}
