// Package tui provides the interactive job dashboard for git2doc.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/event"
)

// Run shows the dashboard until the user quits or ctx ends. Bus events
// drive redraws; the caller owns starting and stopping the poll loop.
func Run(ctx context.Context, jobs Jobs, bus *event.Bus, opts ...tea.ProgramOption) error {
	events, unsubscribe := Bridge(bus)
	defer unsubscribe()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	program := tea.NewProgram(New(ctx, jobs, events), opts...)

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
