package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/git2doc/internal/artifact"
	"github.com/Iron-Ham/git2doc/internal/config"
	"github.com/Iron-Ham/git2doc/internal/documents"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/event"
	"github.com/Iron-Ham/git2doc/internal/tui"
	"github.com/Iron-Ham/git2doc/internal/util"
)

func newDocsCmd() *cobra.Command {
	docsCmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "Generate, follow and download documentation jobs",
	}
	docsCmd.AddCommand(newDocsListCmd())
	docsCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a single job",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runDocsShow),
	})
	docsCmd.AddCommand(newDocsGenerateCmd())
	docsCmd.AddCommand(newDocsWatchCmd())
	docsCmd.AddCommand(newDocsDownloadCmd())
	docsCmd.AddCommand(newDocsDeleteCmd())
	return docsCmd
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("job ID must be a positive integer").WithField("id").WithValue(arg)
	}
	return id, nil
}

// -----------------------------------------------------------------------------
// list / show
// -----------------------------------------------------------------------------

func newDocsListCmd() *cobra.Command {
	var search string
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your documentation jobs",
		Args:    cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			jobs, err := a.docs.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.render.documents(documents.FilterJobs(jobs, search))
		}),
	}
	listCmd.Flags().StringVarP(&search, "search", "s", "", "only show jobs whose name or repository contains this text")
	return listCmd
}

func runDocsShow(cmd *cobra.Command, a *app, args []string) error {
	id, err := parseJobID(args[0])
	if err != nil {
		return err
	}
	if _, err := a.requireSession(cmd.Context()); err != nil {
		return err
	}
	doc, err := a.docs.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return a.render.document(doc)
}

// -----------------------------------------------------------------------------
// generate
// -----------------------------------------------------------------------------

type generateOptions struct {
	prompt string
	wait   bool
}

func newDocsGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	generateCmd := &cobra.Command{
		Use:   "generate <github-repo-url>",
		Short: "Submit a repository for documentation generation",
		Long: `Submit a GitHub repository for documentation generation.

The service accepts the job immediately and works on it in the
background. Use --wait to follow it until it finishes, or run
'git2doc docs watch' later.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return runDocsGenerate(cmd, a, args[0], opts)
		}),
	}
	generateCmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "extra instructions for the generator")
	generateCmd.Flags().BoolVarP(&opts.wait, "wait", "w", false, "wait until the job finishes")
	return generateCmd
}

func runDocsGenerate(cmd *cobra.Command, a *app, repoURL string, opts *generateOptions) error {
	ctx := cmd.Context()
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(repoURL) != "" {
		if _, err := documents.ParseRepoURL(repoURL); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s; submitting anyway\n", errors.UserMessage(err, ""))
		}
	}

	if opts.wait {
		if err := a.docs.Start(ctx); err != nil {
			return err
		}
	}
	stopped := subscribeProgress(a, cmd.OutOrStdout())
	defer stopped.close()

	doc, err := a.docs.Generate(ctx, repoURL, opts.prompt)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %d for %s (%s)\n", doc.ID, doc.GithubRepo, a.render.badge(doc.Status))

	if !opts.wait || len(a.docs.ProcessingIDs()) == 0 {
		return nil
	}
	return waitForJobs(ctx, a, stopped)
}

// -----------------------------------------------------------------------------
// watch
// -----------------------------------------------------------------------------

func newDocsWatchCmd() *cobra.Command {
	var dashboard bool
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow processing jobs until they finish",
		Long: `Follow processing jobs until they finish.

Status changes are printed as they are observed. The command returns once
nothing is processing, or when interrupted. Changes to poll.interval_ms in
the config file take effect while watching.

With --tui an interactive dashboard lists every job instead and stays open
until you quit it.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if dashboard {
				return runDocsDashboard(cmd, a)
			}
			return runDocsWatch(cmd, a)
		}),
	}
	watchCmd.Flags().BoolVar(&dashboard, "tui", false, "show an interactive dashboard")
	return watchCmd
}

func runDocsDashboard(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	if err := a.docs.Start(ctx); err != nil {
		return err
	}
	return tui.Run(ctx, a.docs, a.bus,
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
}

func runDocsWatch(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	stopped := subscribeProgress(a, cmd.OutOrStdout())
	defer stopped.close()

	if err := a.docs.Start(ctx); err != nil {
		return err
	}
	if _, err := a.docs.List(ctx); err != nil {
		return err
	}
	processing := a.docs.ProcessingIDs()
	if len(processing) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing is processing.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %d processing job(s)...\n", len(processing))
	return waitForJobs(ctx, a, stopped)
}

// progress relays poll events from the bus to the terminal.
type progress struct {
	a      *app
	subIDs []string
	done   chan event.PollStoppedEvent
}

func subscribeProgress(a *app, out io.Writer) *progress {
	p := &progress{a: a, done: make(chan event.PollStoppedEvent, 1)}
	p.subIDs = append(p.subIDs,
		a.bus.Subscribe(event.TypeJobStatusChanged, func(e event.Event) {
			changed, ok := e.(event.JobStatusChangedEvent)
			if !ok {
				return
			}
			name := ""
			if job, found := a.docs.Job(changed.JobID); found {
				name = " " + util.TruncateANSI(job.GithubRepo, colRepo)
			}
			fmt.Fprintf(out, "job %d%s: %s -> %s (%d%%)\n",
				changed.JobID, name, changed.From, a.render.badge(changed.To), changed.Progress)
		}),
		a.bus.Subscribe(event.TypePollStopped, func(e event.Event) {
			if stopped, ok := e.(event.PollStoppedEvent); ok {
				select {
				case p.done <- stopped:
				default:
				}
			}
		}),
	)
	return p
}

func (p *progress) close() {
	for _, id := range p.subIDs {
		p.a.bus.Unsubscribe(id)
	}
}

// waitForJobs blocks until the poll loop stops or ctx ends. While waiting,
// edits to the config file's poll interval are applied to the running loop.
func waitForJobs(ctx context.Context, a *app, p *progress) error {
	g, gctx := errgroup.WithContext(ctx)
	reload := make(chan struct{}, 1)

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			a.logger.Info("config file changed", "file", e.Name, "op", e.Op.String())
			select {
			case reload <- struct{}{}:
			default:
			}
		})
		viper.WatchConfig()
	}

	loopDone := make(chan struct{})
	g.Go(func() error {
		defer close(loopDone)
		select {
		case stopped := <-p.done:
			if stopped.Reason == event.StopSession {
				return errNotLoggedIn
			}
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-reload:
				cfg, err := config.Load()
				if err != nil {
					a.logger.Warn("ignoring invalid config change", "error", err)
					continue
				}
				a.docs.SetPollInterval(cfg.Poll.Interval())
			case <-loopDone:
				return nil
			case <-gctx.Done():
				return nil
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// -----------------------------------------------------------------------------
// download
// -----------------------------------------------------------------------------

func newDocsDownloadCmd() *cobra.Command {
	var output string
	downloadCmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a completed job's PDF",
		Long: `Download a completed job's PDF.

Without --output the file is written to the current directory under the
name the service gives it. If --output is a directory the file is written
inside it.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return runDocsDownload(cmd, a, args[0], output)
		}),
	}
	downloadCmd.Flags().StringVarP(&output, "output", "o", "", "file or directory to write to")
	return downloadCmd
}

func runDocsDownload(cmd *cobra.Command, a *app, arg, output string) error {
	id, err := parseJobID(arg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	if _, err := a.docs.List(ctx); err != nil {
		return err
	}

	art, err := a.docs.Download(ctx, id)
	if err != nil {
		return err
	}
	dest := artifact.Destination(output, art.Filename)
	if err := artifact.Write(dest, art.Data); err != nil {
		return err
	}

	size := util.HumanBytes(int64(len(art.Data)))
	info, err := artifact.Inspect(art.Data)
	if err != nil {
		a.logger.WithJob(id).Warn("could not inspect artifact", "error", err)
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", dest, size)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %d pages)\n", dest, size, info.Pages)
	return nil
}

// -----------------------------------------------------------------------------
// delete
// -----------------------------------------------------------------------------

func newDocsDeleteCmd() *cobra.Command {
	var yes bool
	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a job and its PDF",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return runDocsDelete(cmd, a, args[0], yes)
		}),
	}
	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return deleteCmd
}

func runDocsDelete(cmd *cobra.Command, a *app, arg string, yes bool) error {
	id, err := parseJobID(arg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	doc, err := a.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if !yes {
		ok, err := confirm(cmd, fmt.Sprintf("Delete job %d (%s)?", doc.ID, doc.Name))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	if err := a.docs.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %d.\n", id)
	return nil
}
