package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/articles"
	"github.com/Iron-Ham/git2doc/internal/config"
	"github.com/Iron-Ham/git2doc/internal/documents"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/event"
	"github.com/Iron-Ham/git2doc/internal/logging"
	"github.com/Iron-Ham/git2doc/internal/session"
	"github.com/Iron-Ham/git2doc/internal/storage"
)

// app wires the components a command needs from the loaded configuration.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
	kv       *storage.FileStore
	client   *api.Client
	session  *session.Store
	docs     *documents.Orchestrator
	articles *articles.Service
	render   *renderer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLoggerWithRotation(config.LogDir(), cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}
	}
	logger = logger.With("command", cmd.CommandPath())

	kv, err := storage.NewFileStore(cfg.Storage.ResolveDir(config.ConfigDir()))
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to open state directory: %w", err)
	}

	bus := event.NewBus(event.WithLogger(logger))
	client := api.NewClient(cfg.API.BaseURL, kv,
		api.WithTimeout(cfg.API.Timeout()),
		api.WithUserAgent(cfg.API.UserAgent),
		api.WithLogger(logger),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		kv:      kv,
		client:  client,
		session: session.New(client, kv, session.WithBus(bus), session.WithLogger(logger)),
		docs: documents.New(client,
			documents.WithBus(bus),
			documents.WithLogger(logger),
			documents.WithPollInterval(cfg.Poll.Interval()),
			documents.WithCheckTimeout(cfg.Poll.CheckTimeout()),
		),
		articles: articles.New(client, articles.WithLogger(logger)),
		render:   newRenderer(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.Color),
	}, nil
}

// Close stops background work and flushes the log.
func (a *app) Close() {
	a.docs.Close()
	a.session.Close()
	_ = a.logger.Close()
}

// requireSession restores the persisted session and fails when there is
// none.
func (a *app) requireSession(ctx context.Context) (*session.Identity, error) {
	id := a.session.Restore(ctx)
	if id == nil {
		return nil, errNotLoggedIn
	}
	return id, nil
}

var errNotLoggedIn = errors.Wrap(errors.ErrNoSession, "not logged in (run 'git2doc auth login')")

// withApp adapts a command body that needs the wired components.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return describe(run(cmd, a, args))
	}
}

// userError shows the user-facing message of a client error while keeping
// the original in the chain.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

// describe replaces typed client errors with the message a user should see.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var ce errors.ClientError
	if errors.As(err, &ce) {
		return &userError{msg: errors.UserMessage(err, ""), err: err}
	}
	return err
}
