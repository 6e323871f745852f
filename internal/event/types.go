package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.changed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSessionReady     = "session.ready"
	TypeSessionChanged   = "session.changed"
	TypeDocumentsListed  = "documents.listed"
	TypeDocumentCreated  = "documents.created"
	TypeDocumentDeleted  = "documents.deleted"
	TypeJobStatusChanged = "job.status_changed"
	TypePollStarted      = "poll.started"
	TypePollStopped      = "poll.stopped"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionReadyEvent is emitted exactly once, when startup restoration has
// finished (successfully or not).
type SessionReadyEvent struct {
	baseEvent
	Authenticated bool
	UserID        int64 // zero when not authenticated
}

// NewSessionReadyEvent creates a SessionReadyEvent.
func NewSessionReadyEvent(authenticated bool, userID int64) SessionReadyEvent {
	return SessionReadyEvent{
		baseEvent:     newBaseEvent(TypeSessionReady),
		Authenticated: authenticated,
		UserID:        userID,
	}
}

// Reasons carried by SessionChangedEvent.
const (
	ReasonLogin    = "login"
	ReasonSignup   = "signup"
	ReasonRestored = "restored"
	ReasonLogout   = "logout"
	ReasonExpired  = "expired"
)

// SessionChangedEvent is emitted whenever the in-memory identity changes.
type SessionChangedEvent struct {
	baseEvent
	Authenticated bool
	UserID        int64 // zero when not authenticated
	Reason        string
}

// NewSessionChangedEvent creates a SessionChangedEvent.
func NewSessionChangedEvent(authenticated bool, userID int64, reason string) SessionChangedEvent {
	return SessionChangedEvent{
		baseEvent:     newBaseEvent(TypeSessionChanged),
		Authenticated: authenticated,
		UserID:        userID,
		Reason:        reason,
	}
}

// -----------------------------------------------------------------------------
// Document Events
// -----------------------------------------------------------------------------

// DocumentsListedEvent is emitted after the job sequence is replaced by a
// fresh listing.
type DocumentsListedEvent struct {
	baseEvent
	Count      int
	Processing int
}

// NewDocumentsListedEvent creates a DocumentsListedEvent.
func NewDocumentsListedEvent(count, processing int) DocumentsListedEvent {
	return DocumentsListedEvent{
		baseEvent:  newBaseEvent(TypeDocumentsListed),
		Count:      count,
		Processing: processing,
	}
}

// DocumentCreatedEvent is emitted when the service accepts a generation job.
type DocumentCreatedEvent struct {
	baseEvent
	JobID   int64
	RepoURL string
}

// NewDocumentCreatedEvent creates a DocumentCreatedEvent.
func NewDocumentCreatedEvent(jobID int64, repoURL string) DocumentCreatedEvent {
	return DocumentCreatedEvent{
		baseEvent: newBaseEvent(TypeDocumentCreated),
		JobID:     jobID,
		RepoURL:   repoURL,
	}
}

// DocumentDeletedEvent is emitted after a job is deleted.
type DocumentDeletedEvent struct {
	baseEvent
	JobID int64
}

// NewDocumentDeletedEvent creates a DocumentDeletedEvent.
func NewDocumentDeletedEvent(jobID int64) DocumentDeletedEvent {
	return DocumentDeletedEvent{
		baseEvent: newBaseEvent(TypeDocumentDeleted),
		JobID:     jobID,
	}
}

// JobStatusChangedEvent is emitted when a poll tick observes a job leaving
// the processing state.
type JobStatusChangedEvent struct {
	baseEvent
	JobID    int64
	From     string
	To       string
	Progress int
}

// NewJobStatusChangedEvent creates a JobStatusChangedEvent.
func NewJobStatusChangedEvent(jobID int64, from, to string, progress int) JobStatusChangedEvent {
	return JobStatusChangedEvent{
		baseEvent: newBaseEvent(TypeJobStatusChanged),
		JobID:     jobID,
		From:      from,
		To:        to,
		Progress:  progress,
	}
}

// -----------------------------------------------------------------------------
// Poll Loop Events
// -----------------------------------------------------------------------------

// PollStartedEvent is emitted when the poll loop begins tracking jobs.
type PollStartedEvent struct {
	baseEvent
	Processing int
}

// NewPollStartedEvent creates a PollStartedEvent.
func NewPollStartedEvent(processing int) PollStartedEvent {
	return PollStartedEvent{
		baseEvent:  newBaseEvent(TypePollStarted),
		Processing: processing,
	}
}

// Reasons carried by PollStoppedEvent.
const (
	StopIdle     = "idle"     // no job is processing
	StopCanceled = "canceled" // owner stopped the loop or its context ended
	StopSession  = "session"  // the session ended
)

// PollStoppedEvent is emitted when the poll loop exits.
type PollStoppedEvent struct {
	baseEvent
	Reason string
	Ticks  int
}

// NewPollStoppedEvent creates a PollStoppedEvent.
func NewPollStoppedEvent(reason string, ticks int) PollStoppedEvent {
	return PollStoppedEvent{
		baseEvent: newBaseEvent(TypePollStopped),
		Reason:    reason,
		Ticks:     ticks,
	}
}
