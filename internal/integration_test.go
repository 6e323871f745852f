// Package internal contains integration tests that verify the client
// packages work together: persisted sessions, the document orchestrator and
// event bus communication between them.
package internal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/artifact"
	"github.com/Iron-Ham/git2doc/internal/documents"
	"github.com/Iron-Ham/git2doc/internal/event"
	"github.com/Iron-Ham/git2doc/internal/session"
	"github.com/Iron-Ham/git2doc/internal/storage"
	"github.com/Iron-Ham/git2doc/internal/testutil"
)

// recorder collects every event published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func record(bus *event.Bus) *recorder {
	r := &recorder{}
	bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

func (r *recorder) has(eventType string) bool {
	for _, typ := range r.types() {
		if typ == eventType {
			return true
		}
	}
	return false
}

// process wires the components the way one CLI invocation does.
type process struct {
	bus     *event.Bus
	events  *recorder
	client  *api.Client
	session *session.Store
	docs    *documents.Orchestrator
}

func startProcess(t *testing.T, baseURL, stateDir string) *process {
	t.Helper()
	kv, err := storage.NewFileStore(stateDir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	p := &process{bus: event.NewBus()}
	p.events = record(p.bus)
	p.client = api.NewClient(baseURL, kv)
	p.session = session.New(p.client, kv, session.WithBus(p.bus))
	p.docs = documents.New(p.client, documents.WithBus(p.bus), documents.WithPollInterval(20*time.Millisecond))
	t.Cleanup(func() {
		p.docs.Close()
		p.session.Close()
	})
	return p
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSessionSurvivesRestart logs in from one process and checks that a
// second process over the same state directory restores the identity
// without logging in again.
func TestSessionSurvivesRestart(t *testing.T) {
	fake := testutil.NewFakeService(t)
	fake.AddUser(testutil.FakeUser{Email: "ada@example.com", Password: "secret", FullName: "Ada"})
	stateDir := t.TempDir()
	ctx := context.Background()

	first := startProcess(t, fake.URL(), stateDir)
	if _, err := first.session.Login(ctx, "ada@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	logins := fake.Hits(testutil.RouteLogin)

	second := startProcess(t, fake.URL(), stateDir)
	id := second.session.Restore(ctx)
	if id == nil {
		t.Fatal("Restore() = nil, want the persisted identity")
	}
	if id.FullName != "Ada" {
		t.Errorf("restored FullName = %q", id.FullName)
	}
	if got := fake.Hits(testutil.RouteLogin); got != logins {
		t.Errorf("login hits = %d, want %d", got, logins)
	}
	if !second.events.has(event.TypeSessionChanged) {
		t.Error("restore did not publish a session change")
	}

	second.session.Logout(ctx)

	third := startProcess(t, fake.URL(), stateDir)
	if id := third.session.Restore(ctx); id != nil {
		t.Errorf("Restore() after logout = %+v, want nil", id)
	}
}

// TestGenerateFollowDownload drives one job from submission to a file on
// disk through the poll loop.
func TestGenerateFollowDownload(t *testing.T) {
	fake := testutil.NewFakeService(t)
	fake.AddUser(testutil.FakeUser{Email: "ada@example.com", Password: "secret", FullName: "Ada"})
	ctx := context.Background()

	p := startProcess(t, fake.URL(), t.TempDir())
	if _, err := p.session.Login(ctx, "ada@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := p.docs.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The fake assigns the first job ID 1.
	fake.ScriptStatus(1, "processing", "completed")
	doc, err := p.docs.Generate(ctx, "https://github.com/org/api", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	waitUntil(t, "the job to complete", func() bool {
		job, ok := p.docs.Job(doc.ID)
		return ok && job.IsCompleted() && p.events.has(event.TypePollStopped)
	})

	art, err := p.docs.Download(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if art.Filename != "org-api.pdf" {
		t.Errorf("Filename = %q, want org-api.pdf", art.Filename)
	}

	dir := t.TempDir()
	dest := artifact.Destination(dir+string(os.PathSeparator), art.Filename)
	if err := artifact.Write(dest, art.Data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if dest != filepath.Join(dir, "org-api.pdf") {
		t.Errorf("dest = %q", dest)
	}
	if !artifact.IsPDF(art.Data) {
		t.Error("downloaded bytes are not a PDF")
	}

	want := []string{
		event.TypeDocumentCreated,
		event.TypePollStarted,
		event.TypeJobStatusChanged,
		event.TypePollStopped,
	}
	got := p.events.types()
	i := 0
	for _, typ := range got {
		if i < len(want) && typ == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Errorf("events %v do not contain %v in order", got, want)
	}
}

// TestLogoutStopsPolling checks that ending the session clears the
// orchestrator and stops a running loop.
func TestLogoutStopsPolling(t *testing.T) {
	fake := testutil.NewFakeService(t)
	userID := fake.AddUser(testutil.FakeUser{Email: "ada@example.com", Password: "secret", FullName: "Ada"})
	fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "Processing...", GithubRepo: "org/api", Status: "processing"})
	ctx := context.Background()

	p := startProcess(t, fake.URL(), t.TempDir())
	if _, err := p.session.Login(ctx, "ada@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := p.docs.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := p.docs.List(ctx); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	waitUntil(t, "polling to start", p.docs.Polling)

	p.session.Logout(ctx)

	waitUntil(t, "polling to stop", func() bool { return !p.docs.Polling() })
	if jobs := p.docs.Jobs(); len(jobs) != 0 {
		t.Errorf("Jobs() after logout = %d, want 0", len(jobs))
	}
	if p.session.IsAuthenticated() {
		t.Error("still authenticated after logout")
	}
}
