package api

import (
	"encoding/json"
	"strings"
	"time"
)

// Job statuses reported by the service.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// User is the service's user record.
type User struct {
	ID        int64     `json:"id"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	FullName  string    `json:"full_name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt Timestamp `json:"created_at"`
}

// AuthResponse is returned by the login and register endpoints.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// RegisterRequest is the body of POST /api/auth/register. Exactly one of
// Email or Phone is expected to be set.
type RegisterRequest struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty"`
	FullName string `json:"full_name"`
}

// GenerateRequest is the body of POST /api/documents/generate.
type GenerateRequest struct {
	RepoURL string `json:"repo_url"`
	Prompt  string `json:"prompt,omitempty"`
}

// Document is a documentation-generation job.
type Document struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	RepoURL    string    `json:"repo_url"`
	GithubRepo string    `json:"github_repo"`
	Status     string    `json:"status"`
	FilePath   *string   `json:"file_path"`
	Pages      *int      `json:"pages"`
	Size       *string   `json:"size"`
	CreatedAt  Timestamp `json:"created_at"`
}

// IsProcessing reports whether the service was still generating the job
// when it was last fetched.
func (d Document) IsProcessing() bool { return d.Status == StatusProcessing }

// IsCompleted reports whether the artifact is ready for download.
func (d Document) IsCompleted() bool { return d.Status == StatusCompleted }

// DocumentStatus is the lightweight status record polled for in-flight jobs.
type DocumentStatus struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// Artifact is a downloaded document.
type Artifact struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Article is a public blog post.
type Article struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Excerpt      string    `json:"excerpt"`
	Content      *string   `json:"content"`
	Image        string    `json:"image"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar"`
	Date         string    `json:"date"`
	ReadTime     string    `json:"read_time"`
	ColorClass   string    `json:"color_class"`
	CreatedAt    Timestamp `json:"created_at"`
}

// Timestamp decodes the service's datetimes, which may omit the zone
// (naive UTC) or carry an RFC 3339 offset.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
