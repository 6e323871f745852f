package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListArticles returns a page of public articles.
func (c *Client) ListArticles(ctx context.Context, skip, limit int) ([]Article, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var out []Article
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/articles", query: q}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Article{}
	}
	return out, nil
}

// GetArticle returns the article with the given slug.
func (c *Client) GetArticle(ctx context.Context, slug string) (*Article, error) {
	var out Article
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/articles/" + url.PathEscape(slug)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
