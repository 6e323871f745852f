package documents

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/event"
	"github.com/Iron-Ham/git2doc/internal/session"
	"github.com/Iron-Ham/git2doc/internal/storage"
	"github.com/Iron-Ham/git2doc/internal/testutil"
)

type harness struct {
	fake    *testutil.FakeService
	client  *api.Client
	bus     *event.Bus
	session *session.Store
	orch    *Orchestrator
	userID  int64

	mu     sync.Mutex
	events []event.Event
}

// newHarness returns an orchestrator whose session is logged in as a
// freshly seeded user.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	kv := storage.NewMemoryStore()
	h := &harness{
		fake: testutil.NewFakeService(t),
		bus:  event.NewBus(),
	}
	h.client = api.NewClient(h.fake.URL(), kv)
	h.session = session.New(h.client, kv, session.WithBus(h.bus))
	h.bus.SubscribeAll(func(e event.Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, e)
	})

	h.userID = h.fake.AddUser(testutil.FakeUser{Email: "ada@example.com", Password: "secret", FullName: "Ada"})
	if _, err := h.session.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	opts = append([]Option{WithBus(h.bus), WithPollInterval(10 * time.Millisecond)}, opts...)
	h.orch = New(h.client, opts...)
	t.Cleanup(h.orch.Close)
	return h
}

func (h *harness) addDoc(id int64, repo, name, status string) {
	h.fake.AddDocument(testutil.FakeDocument{
		ID:         id,
		UserID:     h.userID,
		Name:       name,
		RepoURL:    "https://github.com/" + repo,
		GithubRepo: repo,
		Status:     status,
	})
}

func (h *harness) count(eventType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

func (h *harness) last(eventType string) event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i].EventType() == eventType {
			return h.events[i]
		}
	}
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func ids(jobs []api.Document) []int64 {
	out := make([]int64, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestList(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/api", "org-api.pdf", api.StatusCompleted)
	h.addDoc(2, "org/ui", "Processing...", api.StatusProcessing)

	jobs, err := h.orch.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !equalIDs(ids(jobs), []int64{2, 1}) {
		t.Errorf("List() ids = %v, want [2 1]", ids(jobs))
	}
	if !equalIDs(h.orch.ProcessingIDs(), []int64{2}) {
		t.Errorf("ProcessingIDs() = %v, want [2]", h.orch.ProcessingIDs())
	}
	if h.orch.IsLoading() {
		t.Error("IsLoading() = true after List returned")
	}

	listed, ok := h.last(event.TypeDocumentsListed).(event.DocumentsListedEvent)
	if !ok || listed.Count != 2 || listed.Processing != 1 {
		t.Errorf("DocumentsListed = %+v", listed)
	}
}

func TestList_FailureKeepsSequence(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/api", "org-api.pdf", api.StatusCompleted)
	if _, err := h.orch.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	h.fake.FailNext(testutil.RouteListDocuments, http.StatusInternalServerError, "boom")
	if _, err := h.orch.List(context.Background()); err == nil {
		t.Fatal("List() expected error")
	}
	if got := ids(h.orch.Jobs()); !equalIDs(got, []int64{1}) {
		t.Errorf("Jobs() = %v, want [1]", got)
	}
}

func TestList_DiscardedWhenSessionEnds(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/api", "org-api.pdf", api.StatusCompleted)
	h.fake.SetDelay(testutil.RouteListDocuments, 100*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.orch.List(context.Background())
		errCh <- err
	}()

	waitFor(t, "list request", func() bool { return h.orch.IsLoading() })
	h.bus.Publish(event.NewSessionChangedEvent(false, 0, event.ReasonLogout))

	if err := <-errCh; !errors.Is(err, errors.ErrCanceled) {
		t.Fatalf("List() error = %v, want ErrCanceled", err)
	}
	if len(h.orch.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want empty", ids(h.orch.Jobs()))
	}
}

func TestGenerate(t *testing.T) {
	h := newHarness(t)

	doc, err := h.orch.Generate(context.Background(), " https://github.com/org/api ", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if doc.Name != "Processing..." || doc.Status != api.StatusProcessing {
		t.Errorf("Generate() = %+v", doc)
	}
	if h.fake.Hits(testutil.RouteListDocuments) != 1 {
		t.Errorf("list hits = %d, want 1", h.fake.Hits(testutil.RouteListDocuments))
	}
	if got := ids(h.orch.Jobs()); !equalIDs(got, []int64{doc.ID}) {
		t.Errorf("Jobs() = %v, want [%d]", got, doc.ID)
	}
	created, ok := h.last(event.TypeDocumentCreated).(event.DocumentCreatedEvent)
	if !ok || created.JobID != doc.ID || created.RepoURL != "https://github.com/org/api" {
		t.Errorf("DocumentCreated = %+v", created)
	}
}

func TestGenerate_BlankURLMakesNoRequest(t *testing.T) {
	h := newHarness(t)
	before := h.fake.TotalHits()

	for _, url := range []string{"", "   ", "\t\n"} {
		_, err := h.orch.Generate(context.Background(), url, "prompt")
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Generate(%q) error = %v, want ErrInvalidInput", url, err)
		}
	}
	if got := h.fake.TotalHits(); got != before {
		t.Errorf("requests = %d, want %d", got, before)
	}
}

func TestGenerate_RemoteRejection(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Generate(context.Background(), "not-a-url", "")
	if err == nil {
		t.Fatal("Generate() expected error")
	}
	if got := errors.UserMessage(err, ""); got != "Invalid GitHub URL format: not-a-url" {
		t.Errorf("UserMessage() = %q", got)
	}
	if h.fake.Hits(testutil.RouteListDocuments) != 0 {
		t.Error("rejected generate should not re-list")
	}
}

func TestGenerate_RelistFailureKeepsCreatedJob(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/old", "org-old.pdf", api.StatusCompleted)
	if _, err := h.orch.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	h.fake.FailNext(testutil.RouteListDocuments, http.StatusServiceUnavailable, "")
	doc, err := h.orch.Generate(context.Background(), "https://github.com/org/api", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := ids(h.orch.Jobs()); !equalIDs(got, []int64{doc.ID, 1}) {
		t.Errorf("Jobs() = %v, want [%d 1]", got, doc.ID)
	}
}

func TestGet(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/api", "Processing...", api.StatusProcessing)
	if _, err := h.orch.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	h.fake.SetStatus(1, api.StatusCompleted)
	doc, err := h.orch.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if local, _ := h.orch.Job(1); local.Status != api.StatusCompleted || doc.Status != api.StatusCompleted {
		t.Errorf("Get() did not update local job: %+v", local)
	}

	_, err = h.orch.Get(context.Background(), 99)
	if !errors.Is(err, errors.ErrJobNotFound) {
		t.Errorf("Get(99) error = %v, want ErrJobNotFound", err)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/api", "Processing...", api.StatusProcessing)

	st, err := h.orch.Status(context.Background(), 1)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Status != api.StatusProcessing || st.Progress != 50 {
		t.Errorf("Status() = %+v", st)
	}
	if len(h.orch.Jobs()) != 0 {
		t.Error("Status() should not touch the sequence")
	}
}

func TestDownload(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/api", "org-api.pdf", api.StatusCompleted)
	h.addDoc(2, "org/ui", "Processing...", api.StatusProcessing)
	h.fake.SetArtifact([]byte("%PDF-1.4 fake"))
	if _, err := h.orch.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	t.Run("completed job", func(t *testing.T) {
		art, err := h.orch.Download(context.Background(), 1)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if art.Filename != "org-api.pdf" || string(art.Data) != "%PDF-1.4 fake" {
			t.Errorf("Download() = %q (%d bytes)", art.Filename, len(art.Data))
		}
	})

	tests := []struct {
		name string
		id   int64
		want error
	}{
		{"processing job", 2, errors.ErrJobNotReady},
		{"unknown job", 99, errors.ErrJobNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.fake.Hits(testutil.RouteDownload)
			_, err := h.orch.Download(context.Background(), tt.id)
			if !errors.Is(err, tt.want) {
				t.Errorf("Download(%d) error = %v, want %v", tt.id, err, tt.want)
			}
			if h.fake.Hits(testutil.RouteDownload) != before {
				t.Error("rejected download reached the service")
			}
		})
	}
}

func TestDownloadFilename(t *testing.T) {
	tests := []struct {
		name   string
		served string
		job    api.Document
		want   string
	}{
		{"served name wins", "org-api.pdf", api.Document{ID: 1, Name: "other.pdf"}, "org-api.pdf"},
		{"job name fallback", "", api.Document{ID: 1, Name: "org-api.pdf"}, "org-api.pdf"},
		{"id fallback", "", api.Document{ID: 7}, "document-7.pdf"},
		{"directories stripped", "../../etc/passwd", api.Document{ID: 1}, "passwd"},
		{"windows separators", `..\evil.pdf`, api.Document{ID: 1}, "evil.pdf"},
		{"dot dot only", "..", api.Document{ID: 3}, "document-3.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := downloadFilename(tt.served, tt.job); got != tt.want {
				t.Errorf("downloadFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/api", "org-api.pdf", api.StatusCompleted)
	h.addDoc(2, "org/ui", "org-ui.pdf", api.StatusCompleted)
	if _, err := h.orch.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if err := h.orch.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := ids(h.orch.Jobs()); !equalIDs(got, []int64{2}) {
		t.Errorf("Jobs() = %v, want [2]", got)
	}
	if h.fake.Status(1) != "" {
		t.Error("job still exists remotely")
	}
	if deleted, ok := h.last(event.TypeDocumentDeleted).(event.DocumentDeletedEvent); !ok || deleted.JobID != 1 {
		t.Errorf("DocumentDeleted = %+v", deleted)
	}

	t.Run("remote not found removes locally", func(t *testing.T) {
		h.fake.FailNext(testutil.RouteDelete, http.StatusNotFound, "Document not found")
		err := h.orch.Delete(context.Background(), 2)
		if !errors.Is(err, errors.ErrJobNotFound) {
			t.Fatalf("Delete() error = %v, want ErrJobNotFound", err)
		}
		if len(h.orch.Jobs()) != 0 {
			t.Errorf("Jobs() = %v, want empty", ids(h.orch.Jobs()))
		}
	})

	t.Run("server failure keeps job", func(t *testing.T) {
		h.addDoc(3, "org/cli", "org-cli.pdf", api.StatusCompleted)
		if _, err := h.orch.List(context.Background()); err != nil {
			t.Fatalf("List() error = %v", err)
		}
		h.fake.FailNext(testutil.RouteDelete, http.StatusInternalServerError, "")
		if err := h.orch.Delete(context.Background(), 3); err == nil {
			t.Fatal("Delete() expected error")
		}
		if _, ok := h.orch.Job(3); !ok {
			t.Error("job removed after failed delete")
		}
	})
}

func TestFilterJobs(t *testing.T) {
	jobs := []api.Document{
		{ID: 1, Name: "api-docs", GithubRepo: "org/api"},
		{ID: 2, Name: "ui-docs", GithubRepo: "org/ui"},
		{ID: 3, Name: "Processing...", GithubRepo: "Team/Backend"},
	}

	tests := []struct {
		query string
		want  []int64
	}{
		{"", []int64{1, 2, 3}},
		{"   ", []int64{1, 2, 3}},
		{"api", []int64{1}},
		{"org/", []int64{1, 2}},
		{"DOCS", []int64{1, 2}},
		{"backend", []int64{3}},
		{"missing", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := FilterJobs(jobs, tt.query)
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("FilterJobs(%q) = %v, want %v", tt.query, ids(got), tt.want)
			}
		})
	}
}

func TestFilter_NoNetwork(t *testing.T) {
	h := newHarness(t)
	h.addDoc(1, "org/api", "api-docs", api.StatusCompleted)
	h.addDoc(2, "org/ui", "ui-docs", api.StatusCompleted)
	if _, err := h.orch.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	before := h.fake.TotalHits()
	got := h.orch.Filter("API")
	if !equalIDs(ids(got), []int64{1}) {
		t.Errorf("Filter() = %v, want [1]", ids(got))
	}
	if h.fake.TotalHits() != before {
		t.Error("Filter() made a request")
	}
	if len(h.orch.Jobs()) != 2 {
		t.Error("Filter() modified the sequence")
	}
}
