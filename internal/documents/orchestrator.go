package documents

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/event"
	"github.com/Iron-Ham/git2doc/internal/logging"
)

// Service is the subset of the service API the orchestrator needs.
// *api.Client satisfies it.
type Service interface {
	ListDocuments(ctx context.Context) ([]api.Document, error)
	GenerateDocument(ctx context.Context, in api.GenerateRequest) (*api.Document, error)
	GetDocument(ctx context.Context, id int64) (*api.Document, error)
	DocumentStatus(ctx context.Context, id int64) (*api.DocumentStatus, error)
	DownloadDocument(ctx context.Context, id int64) (*api.Artifact, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// errSessionEnded is returned for results discarded because the session
// ended while the call was in flight.
var errSessionEnded = errors.Wrap(errors.ErrCanceled, "session ended")

// Orchestrator is the DocumentOrchestrator. It is safe for concurrent use.
//
// The orchestrator does not check authentication itself; the service
// rejects calls made without a session.
type Orchestrator struct {
	svc          Service
	bus          *event.Bus
	logger       *logging.Logger
	pollInterval time.Duration // guarded by pollMu
	checkTimeout time.Duration
	subID        string

	mu      sync.RWMutex
	jobs    []api.Document
	loading int
	epoch   uint64 // bumped when the session ends; stale results are dropped
	owner   int64  // user the jobs belong to, zero if unknown

	poller
}

// New creates an Orchestrator. If a bus is configured the orchestrator
// subscribes to session changes until Close is called.
func New(svc Service, opts ...Option) *Orchestrator {
	cfg := &config{
		pollInterval: DefaultPollInterval,
		checkTimeout: DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}

	o := &Orchestrator{
		svc:          svc,
		bus:          cfg.bus,
		logger:       cfg.logger.WithComponent("documents"),
		pollInterval: cfg.pollInterval,
		checkTimeout: cfg.checkTimeout,
	}
	if o.bus != nil {
		o.subID = o.bus.Subscribe(event.TypeSessionChanged, o.onSessionChanged)
	}
	return o
}

// Close stops the poll loop and detaches from the bus.
func (o *Orchestrator) Close() {
	o.Stop()
	if o.bus != nil && o.subID != "" {
		o.bus.Unsubscribe(o.subID)
	}
}

// Jobs returns a copy of the current job sequence.
func (o *Orchestrator) Jobs() []api.Document {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]api.Document(nil), o.jobs...)
}

// Job returns the locally known job with id.
func (o *Orchestrator) Job(id int64) (api.Document, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, j := range o.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return api.Document{}, false
}

// IsLoading reports whether a listing is in flight.
func (o *Orchestrator) IsLoading() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loading > 0
}

// ProcessingIDs returns the IDs of jobs last seen processing, in sequence
// order.
func (o *Orchestrator) ProcessingIDs() []int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return processingIDs(o.jobs)
}

func processingIDs(jobs []api.Document) []int64 {
	var ids []int64
	for _, j := range jobs {
		if j.IsProcessing() {
			ids = append(ids, j.ID)
		}
	}
	return ids
}

// List fetches every job for the current session and replaces the local
// sequence with the result. On failure the sequence is left unchanged.
func (o *Orchestrator) List(ctx context.Context) ([]api.Document, error) {
	o.mu.Lock()
	o.loading++
	epoch := o.epoch
	o.mu.Unlock()

	docs, err := o.svc.ListDocuments(ctx)

	o.mu.Lock()
	o.loading--
	if err != nil {
		o.mu.Unlock()
		o.logger.Warn("list documents failed", "kind", errors.KindOf(err).String(), "error", err)
		return nil, err
	}
	if epoch != o.epoch {
		o.mu.Unlock()
		return nil, errSessionEnded
	}
	o.jobs = append([]api.Document(nil), docs...)
	processing := len(processingIDs(o.jobs))
	o.mu.Unlock()

	o.logger.Debug("documents listed", "count", len(docs), "processing", processing)
	o.bus.Publish(event.NewDocumentsListedEvent(len(docs), processing))
	o.ensurePolling()
	return append([]api.Document(nil), docs...), nil
}

// Generate submits a generation job for repoURL and re-lists so the new job
// appears in the sequence. A blank repoURL is rejected without a request.
func (o *Orchestrator) Generate(ctx context.Context, repoURL, prompt string) (*api.Document, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return nil, errors.NewValidationError("repository URL is required").WithField("repo_url")
	}

	doc, err := o.svc.GenerateDocument(ctx, api.GenerateRequest{RepoURL: repoURL, Prompt: strings.TrimSpace(prompt)})
	if err != nil {
		o.logger.Warn("generate failed", "repo_url", repoURL, "error", err)
		return nil, err
	}
	o.logger.WithJob(doc.ID).Info("generation submitted", "repo", doc.GithubRepo)
	o.bus.Publish(event.NewDocumentCreatedEvent(doc.ID, repoURL))

	if _, err := o.List(ctx); err != nil {
		if errors.Is(err, errSessionEnded) {
			return nil, err
		}
		// The job exists server-side; show it until the next listing.
		o.upsert(*doc)
		o.ensurePolling()
	}
	return doc, nil
}

// Get fetches a single job and updates it in the sequence. A job the
// service no longer knows is removed locally.
func (o *Orchestrator) Get(ctx context.Context, id int64) (*api.Document, error) {
	o.mu.RLock()
	epoch := o.epoch
	o.mu.RUnlock()

	doc, err := o.svc.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrJobNotFound) {
			o.remove(id)
		}
		return nil, err
	}

	o.mu.RLock()
	stale := epoch != o.epoch
	o.mu.RUnlock()
	if stale {
		return nil, errSessionEnded
	}
	o.upsert(*doc)
	o.ensurePolling()
	return doc, nil
}

// Status returns the service's current status record for a job without
// touching the local sequence.
func (o *Orchestrator) Status(ctx context.Context, id int64) (*api.DocumentStatus, error) {
	return o.svc.DocumentStatus(ctx, id)
}

// Download fetches the artifact of a completed job. Jobs that are unknown
// locally, or whose last known status is not completed, are rejected
// before any request.
func (o *Orchestrator) Download(ctx context.Context, id int64) (*api.Artifact, error) {
	job, ok := o.Job(id)
	if !ok {
		return nil, errors.NewJobNotFoundError(id)
	}
	if !job.IsCompleted() {
		return nil, errors.NewJobNotReadyError(id, job.Status)
	}

	art, err := o.svc.DownloadDocument(ctx, id)
	if err != nil {
		o.logger.WithJob(id).Warn("download failed", "error", err)
		return nil, err
	}
	art.Filename = downloadFilename(art.Filename, job)
	o.logger.WithJob(id).Info("document downloaded", "bytes", len(art.Data), "filename", art.Filename)
	return art, nil
}

// downloadFilename prefers the service-provided name, then the job name,
// then document-<id>.pdf. Directory components are stripped.
func downloadFilename(served string, job api.Document) string {
	for _, candidate := range []string{served, job.Name} {
		name := path.Base(strings.ReplaceAll(strings.TrimSpace(candidate), "\\", "/"))
		if name != "" && name != "." && name != "/" && name != ".." {
			return name
		}
	}
	return fmt.Sprintf("document-%d.pdf", job.ID)
}

// Delete removes a job remotely and then from the local sequence.
// Confirmation is the caller's responsibility.
func (o *Orchestrator) Delete(ctx context.Context, id int64) error {
	if err := o.svc.DeleteDocument(ctx, id); err != nil {
		if errors.Is(err, errors.ErrJobNotFound) {
			o.remove(id)
		}
		o.logger.WithJob(id).Warn("delete failed", "error", err)
		return err
	}
	o.remove(id)
	o.logger.WithJob(id).Info("document deleted")
	o.bus.Publish(event.NewDocumentDeletedEvent(id))
	return nil
}

// Filter returns the jobs whose name or repository contains query,
// case-insensitively. It never touches the network or the sequence.
func (o *Orchestrator) Filter(query string) []api.Document {
	return FilterJobs(o.Jobs(), query)
}

// FilterJobs applies the Filter match to an arbitrary slice.
func FilterJobs(jobs []api.Document, query string) []api.Document {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]api.Document, 0, len(jobs))
	for _, j := range jobs {
		if q == "" ||
			strings.Contains(strings.ToLower(j.Name), q) ||
			strings.Contains(strings.ToLower(j.GithubRepo), q) {
			out = append(out, j)
		}
	}
	return out
}

func (o *Orchestrator) upsert(doc api.Document) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.jobs {
		if o.jobs[i].ID == doc.ID {
			o.jobs[i] = doc
			return
		}
	}
	o.jobs = append([]api.Document{doc}, o.jobs...)
}

func (o *Orchestrator) remove(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.jobs {
		if o.jobs[i].ID == id {
			o.jobs = append(o.jobs[:i:i], o.jobs[i+1:]...)
			return
		}
	}
}

// onSessionChanged drops all job state when the session ends or switches
// to a different user.
func (o *Orchestrator) onSessionChanged(e event.Event) {
	changed, ok := e.(event.SessionChangedEvent)
	if !ok {
		return
	}

	o.mu.Lock()
	switchUser := changed.Authenticated && o.owner != 0 && o.owner != changed.UserID
	if changed.Authenticated {
		o.owner = changed.UserID
	} else {
		o.owner = 0
	}
	if changed.Authenticated && !switchUser {
		o.mu.Unlock()
		return
	}
	o.jobs = nil
	o.epoch++
	o.mu.Unlock()

	o.logger.Info("session ended, dropping jobs", "reason", changed.Reason)
	o.cancelLoop(event.StopSession)
}
