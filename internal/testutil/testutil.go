// Package testutil provides an in-process fake of the documentation service
// for git2doc tests. The fake speaks the same wire contract as the real
// backend (FastAPI-style error bodies, naive UTC timestamps, form login) so
// the api, session and documents packages can be exercised end to end.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// Route keys accepted by Hits, FailNext and SetDelay.
const (
	RouteRegister       = "POST /api/auth/register"
	RouteLogin          = "POST /api/auth/login"
	RouteMe             = "GET /api/auth/me"
	RouteLogout         = "POST /api/auth/logout"
	RouteGenerate       = "POST /api/documents/generate"
	RouteListDocuments  = "GET /api/documents"
	RouteGetDocument    = "GET /api/documents/:id"
	RouteDocumentStatus = "GET /api/documents/:id/status"
	RouteDownload       = "GET /api/documents/:id/download"
	RouteDelete         = "DELETE /api/documents/:id"
	RouteListArticles   = "GET /api/articles"
	RouteGetArticle     = "GET /api/articles/:slug"
)

const timestampLayout = "2006-01-02T15:04:05.000000"

// FakeUser is a registered account.
type FakeUser struct {
	ID       int64
	Email    string
	Phone    string
	Password string
	FullName string
	IsAdmin  bool
}

// FakeDocument is a generation job. A zero ID is assigned on seed.
type FakeDocument struct {
	ID         int64
	UserID     int64
	Name       string
	RepoURL    string
	GithubRepo string
	Status     string
	Pages      int
	Size       string
	CreatedAt  time.Time
}

// FakeArticle is a public article.
type FakeArticle struct {
	ID         int64
	Title      string
	Slug       string
	Excerpt    string
	Content    string
	AuthorName string
	Date       string
	ReadTime   string
}

type failure struct {
	status int
	detail string
}

// FakeService is a gin-backed stand-in for the documentation service.
type FakeService struct {
	server *httptest.Server

	mu            sync.Mutex
	users         []*FakeUser
	tokens        map[string]int64
	docs          map[int64]*FakeDocument
	articles      []*FakeArticle
	statusScripts map[int64][]string
	failures      map[string][]failure
	delays        map[string]time.Duration
	hits          map[string]int
	headers       map[string]http.Header
	artifact      []byte
	nextUserID    int64
	nextDocID     int64
	nextToken     int64
}

// NewFakeService starts a fake service that is shut down when t completes.
func NewFakeService(t testing.TB) *FakeService {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeService{
		tokens:        make(map[string]int64),
		docs:          make(map[int64]*FakeDocument),
		statusScripts: make(map[int64][]string),
		failures:      make(map[string][]failure),
		delays:        make(map[string]time.Duration),
		hits:          make(map[string]int),
		headers:       make(map[string]http.Header),
		artifact:      []byte("%PDF-1.4\n%fake\n"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), f.record())
	f.registerRoutes(engine)

	f.server = httptest.NewServer(engine)
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the base URL of the fake.
func (f *FakeService) URL() string {
	return f.server.URL
}

// AddUser registers an account directly and returns its ID.
func (f *FakeService) AddUser(u FakeUser) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(&u)
}

func (f *FakeService) addUserLocked(u *FakeUser) int64 {
	f.nextUserID++
	u.ID = f.nextUserID
	f.users = append(f.users, u)
	return u.ID
}

// AddDocument seeds a job and returns its ID.
func (f *FakeService) AddDocument(d FakeDocument) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == 0 {
		f.nextDocID++
		d.ID = f.nextDocID
	} else if d.ID > f.nextDocID {
		f.nextDocID = d.ID
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = "processing"
	}
	f.docs[d.ID] = &d
	return d.ID
}

// AddArticle seeds a public article.
func (f *FakeService) AddArticle(a FakeArticle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = int64(len(f.articles) + 1)
	f.articles = append(f.articles, &a)
}

// SetStatus changes a job's status immediately.
func (f *FakeService) SetStatus(id int64, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		d.Status = status
	}
}

// ScriptStatus queues statuses that successive status checks for id apply
// before responding. Once the queue is drained the status stays put.
func (f *FakeService) ScriptStatus(id int64, statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusScripts[id] = append(f.statusScripts[id], statuses...)
}

// Status returns a job's current status, or "" if it does not exist.
func (f *FakeService) Status(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		return d.Status
	}
	return ""
}

// SetArtifact replaces the bytes served by the download endpoint.
func (f *FakeService) SetArtifact(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifact = append([]byte(nil), data...)
}

// FailNext makes the next call to route fail with status and a
// {"detail": detail} body. An empty detail sends {} instead.
func (f *FakeService) FailNext(route string, status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = append(f.failures[route], failure{status: status, detail: detail})
}

// SetDelay makes every call to route sleep before it is handled.
func (f *FakeService) SetDelay(route string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[route] = d
}

// Hits returns how many requests reached route.
func (f *FakeService) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

// TotalHits returns the number of requests received on any route.
func (f *FakeService) TotalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.hits {
		total += n
	}
	return total
}

// LastHeader returns a header from the most recent request to route.
func (f *FakeService) LastHeader(route, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.headers[route]; ok {
		return h.Get(name)
	}
	return ""
}

// Tokens returns the number of active tokens issued by the fake.
func (f *FakeService) Tokens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

// RevokeTokens invalidates every issued token, simulating expiry.
func (f *FakeService) RevokeTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]int64)
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

// record counts the hit, applies any configured delay and serves a queued
// failure instead of the real handler.
func (f *FakeService) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + c.FullPath()

		f.mu.Lock()
		f.hits[route]++
		f.headers[route] = c.Request.Header.Clone()
		delay := f.delays[route]
		var fail *failure
		if queue := f.failures[route]; len(queue) > 0 {
			fail = &queue[0]
			f.failures[route] = queue[1:]
		}
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if fail != nil {
			if fail.detail == "" {
				c.AbortWithStatusJSON(fail.status, gin.H{})
			} else {
				c.AbortWithStatusJSON(fail.status, gin.H{"detail": fail.detail})
			}
			return
		}
		c.Next()
	}
}

func (f *FakeService) requireUser(c *gin.Context) (*FakeUser, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return nil, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return nil, false
	}
	for _, u := range f.users {
		if u.ID == id {
			return u, true
		}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "User not found"})
	return nil, false
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (f *FakeService) registerRoutes(r *gin.Engine) {
	auth := r.Group("/api/auth")
	auth.POST("/register", f.handleRegister)
	auth.POST("/login", f.handleLogin)
	auth.GET("/me", f.handleMe)
	auth.POST("/logout", f.handleLogout)

	docs := r.Group("/api/documents")
	docs.POST("/generate", f.handleGenerate)
	docs.GET("", f.handleListDocuments)
	docs.GET("/:id", f.handleGetDocument)
	docs.GET("/:id/status", f.handleStatus)
	docs.GET("/:id/download", f.handleDownload)
	docs.DELETE("/:id", f.handleDelete)

	r.GET("/api/articles", f.handleListArticles)
	r.GET("/api/articles/:slug", f.handleGetArticle)
}

func (f *FakeService) issueTokenLocked(userID int64) string {
	f.nextToken++
	token := "T" + strconv.FormatInt(f.nextToken, 10)
	f.tokens[token] = userID
	return token
}

func (f *FakeService) handleRegister(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}
	if body.Email == "" && body.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Either email or phone must be provided"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if body.Email != "" && u.Email == body.Email {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Email already registered"})
			return
		}
		if body.Phone != "" && u.Phone == body.Phone {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Phone already registered"})
			return
		}
	}

	u := &FakeUser{Email: body.Email, Phone: body.Phone, Password: body.Password, FullName: body.FullName}
	f.addUserLocked(u)
	c.JSON(http.StatusCreated, gin.H{
		"access_token": f.issueTokenLocked(u.ID),
		"token_type":   "bearer",
		"user":         userJSON(u),
	})
}

func (f *FakeService) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	f.mu.Lock()
	defer f.mu.Unlock()

	var user *FakeUser
	for _, u := range f.users {
		if (u.Email != "" && u.Email == username) || (u.Phone != "" && u.Phone == username) {
			user = u
			break
		}
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	}
	phoneOnly := user.Phone != "" && user.Password == "" && user.Phone == username
	if !phoneOnly && (user.Password == "" || user.Password != password) {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": f.issueTokenLocked(user.ID),
		"token_type":   "bearer",
		"user":         userJSON(user),
	})
}

func (f *FakeService) handleMe(c *gin.Context) {
	u, ok := f.requireUser(c)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.JSON(http.StatusOK, userJSON(u))
}

func (f *FakeService) handleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func (f *FakeService) handleGenerate(c *gin.Context) {
	u, ok := f.requireUser(c)
	if !ok {
		return
	}
	var body struct {
		RepoURL string `json:"repo_url"`
		Prompt  string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}
	repo, ok := parseGithubRepo(body.RepoURL)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid GitHub URL format: " + body.RepoURL})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextDocID++
	d := &FakeDocument{
		ID:         f.nextDocID,
		UserID:     u.ID,
		Name:       "Processing...",
		RepoURL:    body.RepoURL,
		GithubRepo: repo,
		Status:     "processing",
		CreatedAt:  time.Now().UTC(),
	}
	f.docs[d.ID] = d
	c.JSON(http.StatusAccepted, documentJSON(d))
}

func (f *FakeService) handleListDocuments(c *gin.Context) {
	u, ok := f.requireUser(c)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	owned := make([]*FakeDocument, 0, len(f.docs))
	for _, d := range f.docs {
		if d.UserID == u.ID {
			owned = append(owned, d)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID > owned[j].ID })

	out := make([]gin.H, 0, len(owned))
	for _, d := range owned {
		out = append(out, documentJSON(d))
	}
	c.JSON(http.StatusOK, out)
}

// ownedDocument resolves :id for the authenticated user; the caller must
// hold f.mu.
func (f *FakeService) ownedDocument(c *gin.Context, u *FakeUser) (*FakeDocument, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "value is not a valid integer"}}})
		return nil, false
	}
	d, ok := f.docs[id]
	if !ok || d.UserID != u.ID {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Document not found"})
		return nil, false
	}
	return d, true
}

func (f *FakeService) handleGetDocument(c *gin.Context) {
	u, ok := f.requireUser(c)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.ownedDocument(c, u)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, documentJSON(d))
}

func (f *FakeService) handleStatus(c *gin.Context) {
	u, ok := f.requireUser(c)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.ownedDocument(c, u)
	if !ok {
		return
	}
	if script := f.statusScripts[d.ID]; len(script) > 0 {
		d.Status = script[0]
		f.statusScripts[d.ID] = script[1:]
		if d.Status == "completed" && d.Name == "Processing..." {
			d.Name = fmt.Sprintf("%s.pdf", strings.ReplaceAll(d.GithubRepo, "/", "-"))
		}
	}

	progress := 0
	switch d.Status {
	case "completed":
		progress = 100
	case "processing":
		progress = 50
	}
	c.JSON(http.StatusOK, gin.H{"id": d.ID, "status": d.Status, "progress": progress})
}

func (f *FakeService) handleDownload(c *gin.Context) {
	u, ok := f.requireUser(c)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.ownedDocument(c, u)
	if !ok {
		return
	}
	if d.Status != "completed" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Document is not ready yet"})
		return
	}
	if d.Name != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Name))
	}
	c.Data(http.StatusOK, "application/pdf", f.artifact)
}

func (f *FakeService) handleDelete(c *gin.Context) {
	u, ok := f.requireUser(c)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.ownedDocument(c, u)
	if !ok {
		return
	}
	delete(f.docs, d.ID)
	delete(f.statusScripts, d.ID)
	c.Status(http.StatusNoContent)
}

func (f *FakeService) handleListArticles(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gin.H, 0)
	for i, a := range f.articles {
		if i < skip {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, articleJSON(a))
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeService) handleGetArticle(c *gin.Context) {
	slug := c.Param("slug")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.articles {
		if a.Slug == slug {
			c.JSON(http.StatusOK, articleJSON(a))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Article not found"})
}

// -----------------------------------------------------------------------------
// Wire encoding
// -----------------------------------------------------------------------------

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func userJSON(u *FakeUser) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      nullable(u.Email),
		"phone":      nullable(u.Phone),
		"full_name":  u.FullName,
		"is_admin":   u.IsAdmin,
		"created_at": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(timestampLayout),
	}
}

func documentJSON(d *FakeDocument) gin.H {
	out := gin.H{
		"id":          d.ID,
		"user_id":     d.UserID,
		"name":        d.Name,
		"repo_url":    d.RepoURL,
		"github_repo": d.GithubRepo,
		"status":      d.Status,
		"file_path":   nil,
		"pages":       nil,
		"size":        nullable(d.Size),
		"created_at":  d.CreatedAt.Format(timestampLayout),
	}
	if d.Status == "completed" {
		out["file_path"] = fmt.Sprintf("storage/documents/%d/doc.pdf", d.ID)
	}
	if d.Pages > 0 {
		out["pages"] = d.Pages
	}
	return out
}

func articleJSON(a *FakeArticle) gin.H {
	return gin.H{
		"id":            a.ID,
		"title":         a.Title,
		"slug":          a.Slug,
		"excerpt":       a.Excerpt,
		"content":       nullable(a.Content),
		"image":         "",
		"author_name":   a.AuthorName,
		"author_avatar": "",
		"date":          a.Date,
		"read_time":     a.ReadTime,
		"color_class":   "",
		"created_at":    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(timestampLayout),
	}
}

func parseGithubRepo(raw string) (string, bool) {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, ".git")
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
		return parts[0] + "/" + parts[1], true
	}
	return "", false
}
