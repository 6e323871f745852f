package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/session"
	"github.com/Iron-Ham/git2doc/internal/util"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// Column widths for document tables.
const (
	colID     = 6
	colName   = 32
	colRepo   = 28
	colStatus = 12
	colPages  = 6
)

// renderer writes command results in the configured format.
type renderer struct {
	out    io.Writer
	format string
	color  bool
	lg     *lipgloss.Renderer
}

func newRenderer(out io.Writer, format string, color bool) *renderer {
	if format == "" {
		format = formatTable
	}
	return &renderer{
		out:    out,
		format: format,
		color:  color,
		lg:     lipgloss.NewRenderer(out),
	}
}

func (r *renderer) table() bool { return r.format == formatTable }

// structured writes v as JSON or YAML. YAML is derived from the JSON
// encoding so both formats share field names.
func (r *renderer) structured(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if r.format != formatYAML {
		_, err = fmt.Fprintln(r.out, string(data))
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}

func (r *renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func (r *renderer) bold(s string) string {
	if !r.color {
		return s
	}
	return r.lg.NewStyle().Bold(true).Render(s)
}

func (r *renderer) faint(s string) string {
	if !r.color {
		return s
	}
	return r.lg.NewStyle().Faint(true).Render(s)
}

// badge styles a job status.
func (r *renderer) badge(status string) string {
	if !r.color {
		return status
	}
	style := r.lg.NewStyle().Bold(true)
	switch status {
	case api.StatusCompleted:
		style = style.Foreground(lipgloss.Color("2"))
	case api.StatusProcessing:
		style = style.Foreground(lipgloss.Color("3"))
	case api.StatusFailed:
		style = style.Foreground(lipgloss.Color("1"))
	}
	return style.Render(status)
}

func (r *renderer) documents(docs []api.Document) error {
	if !r.table() {
		return r.structured(docs)
	}
	if len(docs) == 0 {
		r.printf("No documents.\n")
		return nil
	}

	r.printf("%s %s %s %s %s %s\n",
		r.bold(util.FitANSI("ID", colID)),
		r.bold(util.FitANSI("NAME", colName)),
		r.bold(util.FitANSI("REPOSITORY", colRepo)),
		r.bold(util.FitANSI("STATUS", colStatus)),
		r.bold(util.FitANSI("PAGES", colPages)),
		r.bold("CREATED"),
	)
	for _, d := range docs {
		r.printf("%s %s %s %s %s %s\n",
			util.FitANSI(strconv.FormatInt(d.ID, 10), colID),
			util.FitANSI(d.Name, colName),
			util.FitANSI(d.GithubRepo, colRepo),
			util.FitANSI(r.badge(d.Status), colStatus),
			util.FitANSI(pages(d.Pages), colPages),
			r.faint(formatTime(d.CreatedAt.Time)),
		)
	}
	return nil
}

func (r *renderer) document(d *api.Document) error {
	if !r.table() {
		return r.structured(d)
	}
	r.printf("%s  %s\n", r.bold(fmt.Sprintf("#%d", d.ID)), d.Name)
	r.printf("  repository: %s\n", d.GithubRepo)
	r.printf("  url:        %s\n", d.RepoURL)
	r.printf("  status:     %s\n", r.badge(d.Status))
	if d.Pages != nil {
		r.printf("  pages:      %d\n", *d.Pages)
	}
	if d.Size != nil {
		r.printf("  size:       %s\n", *d.Size)
	}
	r.printf("  created:    %s\n", formatTime(d.CreatedAt.Time))
	return nil
}

func (r *renderer) identity(id *session.Identity) error {
	if !r.table() {
		return r.structured(id)
	}
	r.printf("%s\n", r.bold(id.FullName))
	if id.Email != nil {
		r.printf("  email: %s\n", *id.Email)
	}
	if id.Phone != nil {
		r.printf("  phone: %s\n", *id.Phone)
	}
	r.printf("  id:    %d\n", id.ID)
	if id.IsAdmin {
		r.printf("  role:  admin\n")
	}
	return nil
}

func (r *renderer) articles(list []api.Article) error {
	if !r.table() {
		return r.structured(list)
	}
	if len(list) == 0 {
		r.printf("No articles.\n")
		return nil
	}
	for _, a := range list {
		r.printf("%s  %s\n", r.bold(util.FitANSI(a.Slug, colName)), util.TruncateANSI(a.Title, 60))
		if meta := joinNonEmpty("  ", a.AuthorName, a.Date, a.ReadTime); meta != "" {
			r.printf("%s  %s\n", strings.Repeat(" ", colName), r.faint(meta))
		}
	}
	return nil
}

func (r *renderer) article(a *api.Article) error {
	if !r.table() {
		return r.structured(a)
	}
	r.printf("%s\n", r.bold(a.Title))
	r.printf("%s\n\n", r.faint(joinNonEmpty(" · ", a.AuthorName, a.Date, a.ReadTime)))
	body := a.Excerpt
	if a.Content != nil && *a.Content != "" {
		body = *a.Content
	}
	r.printf("%s\n", body)
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func pages(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
