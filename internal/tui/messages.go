package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/git2doc/internal/event"
)

// Messages

// jobsChangedMsg signals that the orchestrator's job sequence changed.
type jobsChangedMsg struct{}

// statusChangedMsg carries a job leaving the processing state.
type statusChangedMsg struct {
	event event.JobStatusChangedEvent
}

// pollMsg reports the poll loop starting or stopping.
type pollMsg struct {
	polling bool
	reason  string
}

// refreshedMsg is the result of a user-requested refresh.
type refreshedMsg struct {
	err error
}

// eventBuffer bounds the bus-to-program channel. Publishing never blocks; a
// dropped jobsChangedMsg is harmless because the next one redraws from the
// orchestrator's current state.
const eventBuffer = 64

// Bridge subscribes to the bus events the dashboard renders and forwards
// them as tea messages. The returned function unsubscribes and closes the
// channel.
func Bridge(bus *event.Bus) (<-chan tea.Msg, func()) {
	ch := make(chan tea.Msg, eventBuffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	send := func(msg tea.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg:
		default:
		}
	}

	jobsChanged := func(event.Event) { send(jobsChangedMsg{}) }
	ids := []string{
		bus.Subscribe(event.TypeDocumentsListed, jobsChanged),
		bus.Subscribe(event.TypeDocumentCreated, jobsChanged),
		bus.Subscribe(event.TypeDocumentDeleted, jobsChanged),
		bus.Subscribe(event.TypeJobStatusChanged, func(e event.Event) {
			if changed, ok := e.(event.JobStatusChangedEvent); ok {
				send(statusChangedMsg{event: changed})
			}
		}),
		bus.Subscribe(event.TypePollStarted, func(event.Event) {
			send(pollMsg{polling: true})
		}),
		bus.Subscribe(event.TypePollStopped, func(e event.Event) {
			if stopped, ok := e.(event.PollStoppedEvent); ok {
				send(pollMsg{reason: stopped.Reason})
			}
		}),
	}

	return ch, func() {
		for _, id := range ids {
			bus.Unsubscribe(id)
		}
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// Commands

// listen waits for the next bridged message. It returns nil once the
// channel is closed, which ends the listening chain.
func listen(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
