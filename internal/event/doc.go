// Package event provides a pub-sub event bus that lets observers follow the
// session and document components without depending on them.
//
// The session store publishes [SessionReadyEvent] once restoration finishes
// and [SessionChangedEvent] on every identity change. The document
// orchestrator publishes listing, creation, deletion, status-transition and
// poll-loop lifecycle events. The CLI subscribes to render progress, and the
// orchestrator itself subscribes to session changes so that logout stops
// polling.
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers are called synchronously on the
// publishing goroutine and protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe(event.TypeJobStatusChanged, func(e event.Event) {
//	    changed := e.(event.JobStatusChangedEvent)
//	    fmt.Printf("job %d: %s -> %s\n", changed.JobID, changed.From, changed.To)
//	})
//
//	id := bus.SubscribeAll(func(e event.Event) {
//	    logger.Debug("event", "type", e.EventType())
//	})
//	defer bus.Unsubscribe(id)
package event
