// Package articles reads the service's public article feed. No session is
// required.
package articles

import (
	"context"
	"strings"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/logging"
)

// DefaultLimit is the page size used when none is given.
const DefaultLimit = 100

// Fetcher is the subset of the service API used to read articles.
// *api.Client satisfies it.
type Fetcher interface {
	ListArticles(ctx context.Context, skip, limit int) ([]api.Article, error)
	GetArticle(ctx context.Context, slug string) (*api.Article, error)
}

// Service lists and fetches public articles.
type Service struct {
	fetcher Fetcher
	logger  *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a Service.
func New(fetcher Fetcher, opts ...Option) *Service {
	s := &Service{fetcher: fetcher}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	s.logger = s.logger.WithComponent("articles")
	return s
}

// List returns up to limit articles after skipping skip of them. A
// non-positive limit means DefaultLimit.
func (s *Service) List(ctx context.Context, skip, limit int) ([]api.Article, error) {
	if skip < 0 {
		return nil, errors.NewValidationError("skip must not be negative").WithField("skip").WithValue(skip)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	out, err := s.fetcher.ListArticles(ctx, skip, limit)
	if err != nil {
		s.logger.Warn("list articles failed", "skip", skip, "limit", limit, "error", err)
		return nil, err
	}
	s.logger.Debug("articles listed", "count", len(out))
	return out, nil
}

// Get returns the article with the given slug.
func (s *Service) Get(ctx context.Context, slug string) (*api.Article, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.NewValidationError("article slug is required").WithField("slug")
	}

	a, err := s.fetcher.GetArticle(ctx, slug)
	if err != nil {
		s.logger.Warn("get article failed", "slug", slug, "error", err)
		return nil, err
	}
	return a, nil
}
