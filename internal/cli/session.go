package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/jsondb/internal/events"
	"github.com/roach88/jsondb/internal/store"
)

// newLogger returns a tint logger writing to w. Colour is used only when w
// is a terminal.
func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

// session is an open store plus the bus that reports its changes.
type session struct {
	engine *store.Engine
	bus    *events.Local
	done   chan error
	logger *slog.Logger
	out    *OutputFormatter
}

// openSession loads configuration, opens the store and starts delivering
// change events to the log. Errors are already reported through the
// formatter when returned.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	f := newFormatter(cmd, opts)

	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Level())

	bus := events.NewLocal()
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		logger.DebugContext(ctx, "change", "topic", e.Topic, "path", e.Payload)
	})
	done := make(chan error, 1)
	go func() { done <- bus.Run(context.Background()) }()

	logger.Debug("opening store", "database", cfg.Database, "indexes", len(cfg.Indexes))
	engine, err := store.Open(cmd.Context(), cfg.Database, store.Options{
		Indexes:    cfg.Indexes,
		Bus:        bus,
		Logger:     logger,
		BatchBytes: cfg.BatchBytes,
		BatchRows:  cfg.BatchRows,
	})
	if err != nil {
		bus.Close()
		<-done
		return nil, f.Fail(ErrCodeGeneric, err)
	}
	return &session{engine: engine, bus: bus, done: done, logger: logger, out: f}, nil
}

// Close closes the store and waits until every change event was logged.
func (s *session) Close() error {
	err := s.engine.Close()
	s.bus.Close()
	return errors.Join(err, <-s.done)
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// withSession runs fn against an open session and closes it afterwards.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(s *session) error) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			s.logger.Warn("close store", "error", cerr)
		}
	}()
	return fn(s)
}
