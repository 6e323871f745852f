package api

import (
	"context"
	"io"
	"net/http"

	"github.com/Iron-Ham/git2doc/internal/errors"
)

// maxArtifactSize bounds a downloaded document.
const maxArtifactSize = 256 << 20

// GenerateDocument submits a generation job and returns the created record.
func (c *Client) GenerateDocument(ctx context.Context, in GenerateRequest) (*Document, error) {
	r := request{method: http.MethodPost, path: "/api/documents/generate", contentType: "application/json", auth: true}
	body, err := jsonBody(r.operation(), in)
	if err != nil {
		return nil, err
	}
	r.body = body

	var out Document
	if err := c.doJSON(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDocuments returns every job owned by the current user, newest first.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var out []Document
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/api/documents", auth: true}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Document{}
	}
	return out, nil
}

// GetDocument returns a single job.
func (c *Client) GetDocument(ctx context.Context, id int64) (*Document, error) {
	var out Document
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: documentPath(id, ""), auth: true, notFound: errors.ErrJobNotFound}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DocumentStatus returns the current status of a job.
func (c *Client) DocumentStatus(ctx context.Context, id int64) (*DocumentStatus, error) {
	var out DocumentStatus
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: documentPath(id, "/status"), auth: true, notFound: errors.ErrJobNotFound}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadDocument fetches the generated artifact. Filename is taken from
// the Content-Disposition header and is empty when the service sent none.
func (c *Client) DownloadDocument(ctx context.Context, id int64) (*Artifact, error) {
	r := request{method: http.MethodGet, path: documentPath(id, "/download"), auth: true, notFound: errors.ErrJobNotFound}
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize+1))
	if err != nil {
		return nil, errors.NewTransportError(r.operation(), err).WithMessage("failed to read document")
	}
	if len(data) > maxArtifactSize {
		return nil, errors.NewTransportError(r.operation(), nil).WithMessage("document exceeds size limit")
	}

	return &Artifact{
		Data:        data,
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// DeleteDocument removes a job and its artifact.
func (c *Client) DeleteDocument(ctx context.Context, id int64) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: documentPath(id, ""), auth: true, notFound: errors.ErrJobNotFound}, nil)
}
