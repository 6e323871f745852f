package documents

import (
	"net/url"
	"strings"

	"github.com/Iron-Ham/git2doc/internal/errors"
)

// ParseRepoURL extracts "owner/repo" from a GitHub repository URL. It
// accepts https and http URLs, scheme-less "github.com/owner/repo" and
// scp-style "git@github.com:owner/repo.git". The service remains the
// authority on what it accepts; this is a local preview.
func ParseRepoURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	invalid := func(msg string) error {
		return errors.NewValidationError(msg).WithField("repo_url").WithValue(raw)
	}
	if s == "" {
		return "", invalid("repository URL is required")
	}

	if rest, ok := strings.CutPrefix(s, "git@"); ok {
		host, path, found := strings.Cut(rest, ":")
		if !found {
			return "", invalid("malformed SSH repository URL")
		}
		s = "https://" + host + "/" + path
	} else if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", invalid("malformed repository URL")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", invalid("unsupported URL scheme " + u.Scheme)
	}
	if !strings.EqualFold(strings.TrimPrefix(u.Hostname(), "www."), "github.com") {
		return "", invalid("not a GitHub URL")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", invalid("URL must name an owner and a repository")
	}
	return parts[0] + "/" + strings.TrimSuffix(parts[1], ".git"), nil
}
