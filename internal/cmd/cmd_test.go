package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for the poll loop and the command to
// write concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cli struct {
	t    *testing.T
	fake *testutil.FakeService
	home string
}

// newCLI points the command tree at a fresh fake service and an isolated
// config directory. Commands run through it share persisted state.
func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	fake := testutil.NewFakeService(t)

	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GIT2DOC_API_BASE_URL", fake.URL())
	t.Setenv("GIT2DOC_POLL_INTERVAL_MS", "100")
	t.Cleanup(viper.Reset)

	return &cli{t: t, fake: fake, home: home}
}

// run executes one command line with stdin and returns stdout and stderr.
func (c *cli) run(stdin string, args ...string) (string, string, error) {
	c.t.Helper()
	viper.Reset()

	var stdout, stderr syncBuffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--no-color"}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func (c *cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	out, stderr, err := c.run(stdin, args...)
	if err != nil {
		c.t.Fatalf("%v failed: %v\nstderr: %s", args, err, stderr)
	}
	return out
}

// login seeds the ada@example.com account and logs in to it.
func (c *cli) login() int64 {
	c.t.Helper()
	userID := c.fake.AddUser(testutil.FakeUser{Email: "ada@example.com", Password: "secret", FullName: "Ada Lovelace"})
	c.mustRun("secret\n", "auth", "login", "ada@example.com")
	return userID
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	want := map[string]bool{"auth": false, "docs": false, "articles": false, "config": false}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}

	for _, flag := range []string{"config", "base-url", "format", "no-color", "debug"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestAuth_SignupWhoamiLogout(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("secret\n", "auth", "signup", "--name", "Ada Lovelace", "--email", "ada@example.com")
	if !strings.Contains(out, "Welcome, Ada Lovelace. You are logged in as ada@example.com.") {
		t.Errorf("signup output = %q", out)
	}

	out = c.mustRun("", "auth", "whoami")
	if !strings.Contains(out, "Ada Lovelace") || !strings.Contains(out, "email: ada@example.com") {
		t.Errorf("whoami output = %q", out)
	}

	if out := c.mustRun("", "auth", "logout"); strings.TrimSpace(out) != "Logged out." {
		t.Errorf("logout output = %q", out)
	}
	if out := c.mustRun("", "auth", "logout"); strings.TrimSpace(out) != "Not logged in." {
		t.Errorf("second logout output = %q", out)
	}

	_, _, err := c.run("", "auth", "whoami")
	if !errors.Is(err, errors.ErrNoSession) {
		t.Errorf("whoami after logout error = %v, want ErrNoSession", err)
	}

	out = c.mustRun("secret\n", "auth", "login", "ada@example.com")
	if strings.TrimSpace(out) != "Logged in as Ada Lovelace (ada@example.com)" {
		t.Errorf("login output = %q", out)
	}
}

func TestAuth_LoginRejected(t *testing.T) {
	c := newCLI(t)
	c.fake.AddUser(testutil.FakeUser{Email: "ada@example.com", Password: "secret", FullName: "Ada Lovelace"})

	_, _, err := c.run("wrong\n", "auth", "login", "ada@example.com")
	if err == nil {
		t.Fatal("expected login to fail")
	}
	if err.Error() != "Invalid credentials" {
		t.Errorf("error = %q, want the service detail", err.Error())
	}
	if !errors.Is(err, errors.ErrUnauthorized) {
		t.Error("expected the typed auth error to stay in the chain")
	}

	_, _, err = c.run("", "auth", "whoami")
	if !errors.Is(err, errors.ErrNoSession) {
		t.Errorf("whoami error = %v, want ErrNoSession", err)
	}
}

func TestAuth_Phone(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("", "auth", "signup", "--name", "Bo", "--phone", "+15550100")
	if !strings.Contains(out, "logged in as +15550100") {
		t.Errorf("signup output = %q", out)
	}
	c.mustRun("", "auth", "logout")

	out = c.mustRun("", "auth", "login", "--phone", "+15550100")
	if strings.TrimSpace(out) != "Logged in as Bo (+15550100)" {
		t.Errorf("phone login output = %q", out)
	}
}

func TestAuth_SignupNeedsContact(t *testing.T) {
	c := newCLI(t)
	if _, _, err := c.run("", "auth", "signup", "--name", "Ada"); err == nil {
		t.Error("expected an error without --email or --phone")
	}
	if _, _, err := c.run("", "auth", "signup", "--name", "Ada", "--email", "a@example.com", "--phone", "+1"); err == nil {
		t.Error("expected an error with both --email and --phone")
	}
	if hits := c.fake.Hits(testutil.RouteRegister); hits != 0 {
		t.Errorf("register hits = %d, want 0", hits)
	}
}

func TestDocs_RequiresSession(t *testing.T) {
	c := newCLI(t)
	for _, args := range [][]string{
		{"docs", "list"},
		{"docs", "generate", "https://github.com/org/api"},
		{"docs", "download", "1"},
		{"docs", "delete", "--yes", "1"},
	} {
		_, _, err := c.run("", args...)
		if !errors.Is(err, errors.ErrNoSession) {
			t.Errorf("%v error = %v, want ErrNoSession", args, err)
		}
	}
	if hits := c.fake.Hits(testutil.RouteListDocuments); hits != 0 {
		t.Errorf("list hits = %d, want 0", hits)
	}
}

func TestDocs_List(t *testing.T) {
	c := newCLI(t)
	userID := c.login()
	c.fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "api.pdf", GithubRepo: "org/api", Status: "completed"})
	c.fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "Processing...", GithubRepo: "org/ui", Status: "processing"})

	out := c.mustRun("", "docs", "list")
	for _, want := range []string{"REPOSITORY", "org/api", "org/ui", "completed", "processing"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	out = c.mustRun("", "docs", "list", "--search", "UI")
	if !strings.Contains(out, "org/ui") || strings.Contains(out, "org/api") {
		t.Errorf("filtered output = %q", out)
	}

	out = c.mustRun("", "--format", "json", "docs", "list")
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("json output did not decode: %v\n%s", err, out)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d documents, want 2", len(decoded))
	}
	if decoded[0]["github_repo"] != "org/ui" {
		t.Errorf("first document = %v, want newest first", decoded[0])
	}

	if out := c.mustRun("", "docs", "list", "--search", "nothing"); strings.TrimSpace(out) != "No documents." {
		t.Errorf("empty output = %q", out)
	}
}

func TestDocs_Show(t *testing.T) {
	c := newCLI(t)
	userID := c.login()
	c.fake.AddDocument(testutil.FakeDocument{
		UserID:     userID,
		Name:       "api.pdf",
		RepoURL:    "https://github.com/org/api",
		GithubRepo: "org/api",
		Status:     "completed",
		Pages:      12,
	})

	out := c.mustRun("", "docs", "show", "1")
	for _, want := range []string{"#1", "api.pdf", "repository: org/api", "pages:      12"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	_, _, err := c.run("", "docs", "show", "99")
	if err == nil || err.Error() != "Document not found" {
		t.Errorf("unknown job error = %v", err)
	}

	_, _, err = c.run("", "docs", "show", "abc")
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("bad id error = %v, want ErrInvalidInput", err)
	}
}

func TestDocs_Generate(t *testing.T) {
	c := newCLI(t)
	c.login()

	out, stderr, err := c.run("", "docs", "generate", "https://github.com/org/api")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.TrimSpace(out) != "Submitted job 1 for org/api (processing)" {
		t.Errorf("generate output = %q", out)
	}
	if stderr != "" {
		t.Errorf("unexpected warning: %q", stderr)
	}
	if got := c.fake.Status(1); got != "processing" {
		t.Errorf("remote status = %q", got)
	}
}

func TestDocs_GenerateWarnsOnUnrecognizedURL(t *testing.T) {
	c := newCLI(t)
	c.login()

	_, stderr, err := c.run("", "docs", "generate", "not-a-url")
	if err == nil {
		t.Fatal("expected the service to reject the URL")
	}
	if !strings.Contains(stderr, "submitting anyway") {
		t.Errorf("stderr = %q, want a local warning", stderr)
	}
	if !strings.Contains(err.Error(), "Invalid GitHub URL format") {
		t.Errorf("error = %q, want the service detail", err.Error())
	}
	if hits := c.fake.Hits(testutil.RouteGenerate); hits != 1 {
		t.Errorf("generate hits = %d, want 1", hits)
	}
}

func TestDocs_GenerateWait(t *testing.T) {
	c := newCLI(t)
	c.login()
	// The first status check finds the new job finished.
	c.fake.ScriptStatus(1, "completed")

	out := c.mustRun("", "docs", "generate", "--wait", "https://github.com/org/api")
	if !strings.Contains(out, "Submitted job 1 for org/api") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "job 1 org/api: processing -> completed (100%)") {
		t.Errorf("output missing the completion line:\n%s", out)
	}
	if got := c.fake.Hits(testutil.RouteDocumentStatus); got != 1 {
		t.Errorf("status hits = %d, want 1", got)
	}
}

func TestDocs_WatchNothingProcessing(t *testing.T) {
	c := newCLI(t)
	userID := c.login()
	c.fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "api.pdf", GithubRepo: "org/api", Status: "completed"})

	if out := c.mustRun("", "docs", "watch"); strings.TrimSpace(out) != "Nothing is processing." {
		t.Errorf("watch output = %q", out)
	}
	if hits := c.fake.Hits(testutil.RouteDocumentStatus); hits != 0 {
		t.Errorf("status hits = %d, want 0", hits)
	}
}

func TestDocs_Watch(t *testing.T) {
	c := newCLI(t)
	userID := c.login()
	id := c.fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "Processing...", GithubRepo: "org/ui", Status: "processing"})
	c.fake.ScriptStatus(id, "processing", "failed")

	out := c.mustRun("", "docs", "watch")
	if !strings.Contains(out, "Watching 1 processing job(s)...") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "processing -> failed (0%)") {
		t.Errorf("output missing the failure line:\n%s", out)
	}
}

func TestDocs_Download(t *testing.T) {
	c := newCLI(t)
	userID := c.login()
	c.fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "org-api.pdf", GithubRepo: "org/api", Status: "completed"})
	c.fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "Processing...", GithubRepo: "org/ui", Status: "processing"})
	c.fake.SetArtifact([]byte("%PDF-1.4\nnot really\n"))
	dir := t.TempDir()

	out := c.mustRun("", "docs", "download", "1", "-o", dir)
	dest := filepath.Join(dir, "org-api.pdf")
	if !strings.Contains(out, "Saved "+dest+" (20 B)") {
		t.Errorf("download output = %q", out)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if string(data) != "%PDF-1.4\nnot really\n" {
		t.Errorf("downloaded %q", data)
	}

	_, _, err = c.run("", "docs", "download", "2", "-o", dir)
	if !errors.Is(err, errors.ErrJobNotReady) {
		t.Errorf("processing download error = %v, want ErrJobNotReady", err)
	}
	if err != nil && err.Error() != "Document is not ready yet" {
		t.Errorf("error message = %q", err.Error())
	}

	_, _, err = c.run("", "docs", "download", "42", "-o", dir)
	if !errors.Is(err, errors.ErrJobNotFound) {
		t.Errorf("unknown download error = %v, want ErrJobNotFound", err)
	}
	if hits := c.fake.Hits(testutil.RouteDownload); hits != 1 {
		t.Errorf("download hits = %d, want 1", hits)
	}
}

func TestDocs_Delete(t *testing.T) {
	c := newCLI(t)
	userID := c.login()
	id := c.fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "api.pdf", GithubRepo: "org/api", Status: "completed"})

	out, stderr, err := c.run("n\n", "docs", "delete", "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if strings.TrimSpace(out) != "Aborted." {
		t.Errorf("declined output = %q", out)
	}
	if !strings.Contains(stderr, "Delete job 1 (api.pdf)? [y/N]") {
		t.Errorf("prompt = %q", stderr)
	}
	if c.fake.Status(id) == "" {
		t.Fatal("job deleted despite declining")
	}

	if out := c.mustRun("y\n", "docs", "rm", "1"); strings.TrimSpace(out) != "Deleted job 1." {
		t.Errorf("delete output = %q", out)
	}
	if c.fake.Status(id) != "" {
		t.Error("job still exists remotely")
	}
}

func TestDocs_DeleteYesSkipsPrompt(t *testing.T) {
	c := newCLI(t)
	userID := c.login()
	c.fake.AddDocument(testutil.FakeDocument{UserID: userID, Name: "api.pdf", GithubRepo: "org/api", Status: "completed"})

	out, stderr, err := c.run("", "docs", "delete", "--yes", "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if strings.TrimSpace(out) != "Deleted job 1." {
		t.Errorf("output = %q", out)
	}
	if stderr != "" {
		t.Errorf("unexpected prompt: %q", stderr)
	}
}

func TestArticles(t *testing.T) {
	c := newCLI(t)
	c.fake.AddArticle(testutil.FakeArticle{Title: "Reading a codebase", Slug: "reading", Excerpt: "Start here.", AuthorName: "Ada", ReadTime: "4 min"})
	c.fake.AddArticle(testutil.FakeArticle{Title: "Writing docs", Slug: "writing", Excerpt: "Then this.", Content: "Full text."})

	out := c.mustRun("", "articles", "list")
	for _, want := range []string{"reading", "Reading a codebase", "Ada  4 min", "writing"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	out = c.mustRun("", "articles", "list", "--skip", "1", "--limit", "1")
	if strings.Contains(out, "reading") || !strings.Contains(out, "writing") {
		t.Errorf("paged output = %q", out)
	}

	out = c.mustRun("", "articles", "show", "writing")
	if !strings.Contains(out, "Writing docs") || !strings.Contains(out, "Full text.") {
		t.Errorf("show output = %q", out)
	}

	_, _, err := c.run("", "articles", "show", "missing")
	if err == nil || err.Error() != "Article not found" {
		t.Errorf("missing article error = %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("", "config", "path")
	wantFile := filepath.Join(c.home, "git2doc", "config.yaml")
	if !strings.Contains(out, "Default path: "+wantFile+" (not created)") {
		t.Errorf("path output = %q", out)
	}
	if !strings.Contains(out, "GIT2DOC_API_BASE_URL") {
		t.Errorf("path output missing env hint:\n%s", out)
	}

	if err := os.MkdirAll(filepath.Dir(wantFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(wantFile, []byte("output:\n  format: yaml\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out = c.mustRun("", "config", "show")
	if !strings.Contains(out, "# Config file: "+wantFile) {
		t.Errorf("show output = %q", out)
	}
	if !strings.Contains(out, "format: yaml") || !strings.Contains(out, c.fake.URL()) {
		t.Errorf("show output missing merged settings:\n%s", out)
	}
}

func TestConfig_InvalidValueRejected(t *testing.T) {
	c := newCLI(t)
	t.Setenv("GIT2DOC_OUTPUT_FORMAT", "xml")

	_, _, err := c.run("", "articles", "list")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("error = %v, want invalid configuration", err)
	}
	if c.fake.TotalHits() != 0 {
		t.Error("no request should be made with an invalid configuration")
	}
}
