// main package for the log-console
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-console/internal/config"
	"github.com/book-expert/tts-console/internal/core"
	"github.com/book-expert/tts-console/internal/logview"
	"github.com/book-expert/tts-console/internal/markup"
	"github.com/book-expert/tts-console/internal/objectstore"
	"github.com/book-expert/tts-console/internal/snapshot"
	"github.com/book-expert/tts-console/internal/stream"
	"github.com/book-expert/tts-console/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nats-io/nats.go"
)

// Flag names.
const (
	flagSource  = "source"
	flagURL     = "url"
	flagLevel   = "level"
	flagKeyword = "keyword"
	flagLimit   = "limit"
)

// Flag descriptions.
const (
	flagSourceDesc  = "Log stream source: sse or nats (overrides console.source)"
	flagURLDesc     = "Log stream endpoint for the sse source (overrides console.stream_url)"
	flagLevelDesc   = "Initial level filter"
	flagKeywordDesc = "Initial keyword filter"
	flagLimitDesc   = "Initial number of most recent matching lines to show"
)

// ErrNATSRequired indicates the nats source was selected without a NATS connection.
var ErrNATSRequired = errors.New("the nats source requires a NATS connection")

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	source  string
	url     string
	level   string
	keyword string
	limit   string
}

func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("log-console", flag.ContinueOnError)
	flagSet.StringVar(&flags.source, flagSource, "", flagSourceDesc)
	flagSet.StringVar(&flags.url, flagURL, "", flagURLDesc)
	flagSet.StringVar(&flags.level, flagLevel, "", flagLevelDesc)
	flagSet.StringVar(&flags.keyword, flagKeyword, "", flagKeywordDesc)
	flagSet.StringVar(&flags.limit, flagLimit, "", flagLimitDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// applyFlags overrides the console configuration with the flags that were set.
func applyFlags(cfg *config.ConsoleConfig, flags appFlags) {
	if flags.source != "" {
		cfg.Source = flags.source
	}

	if flags.url != "" {
		cfg.StreamURL = flags.url
	}

	if flags.level != "" {
		cfg.Level = flags.level
	}

	if flags.keyword != "" {
		cfg.Keyword = flags.keyword
	}

	if flags.limit != "" {
		cfg.DefaultLimit = logview.ParseLimit(flags.limit)
	}
}

func viewOptions(cfg config.ConsoleConfig) logview.Options {
	return logview.Options{
		Capacity: cfg.BufferCapacity,
		Criteria: logview.Criteria{
			Level:   cfg.Level,
			Keyword: cfg.Keyword,
			Limit:   cfg.DefaultLimit,
		},
		AutoRefresh: cfg.AutoRefreshEnabled(),
		Translator:  markup.Terminal{},
	}
}

func newDialer(cfg *config.Config, natsConnection *nats.Conn) (core.Dialer, error) {
	switch cfg.Console.Source {
	case config.SourceNATS:
		if natsConnection == nil {
			return nil, ErrNATSRequired
		}

		return stream.NewNATSDialer(natsConnection, cfg.NATS.LogSubject), nil
	case config.SourceSSE:
		return stream.NewSSEDialer(cfg.Console.StreamURL, nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSource, cfg.Console.Source)
	}
}

// newSaver wires snapshots to the JetStream object store. Snapshots are disabled without NATS.
func newSaver(cfg *config.Config, natsConnection *nats.Conn) (*snapshot.Exporter, func(), error) {
	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.SnapshotBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	exporter, err := snapshot.NewExporter(store, natsConnection, cfg.NATS.SnapshotSubject, cfg.Snapshot.Format)
	if err != nil {
		_ = store.Close()

		return nil, nil, fmt.Errorf("failed to create snapshot exporter: %w", err)
	}

	return exporter, func() { _ = store.Close() }, nil
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	bootstrapLog, err := setupLogger(os.TempDir(), "log-console-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	applyFlags(&cfg.Console, flags)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "log-console.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var saver tui.Saver

	natsConnection, natsErr := nats.Connect(cfg.NATS.URL, nats.Name("log-console"))
	if natsErr != nil {
		finalLog.Warn("NATS unavailable at %s, snapshots disabled: %v", cfg.NATS.URL, natsErr)
		natsConnection = nil
	} else {
		defer natsConnection.Close()

		exporter, closeStore, saverErr := newSaver(cfg, natsConnection)
		if saverErr != nil {
			finalLog.Warn("Snapshots disabled: %v", saverErr)
		} else {
			defer closeStore()

			saver = exporter
		}
	}

	dialer, err := newDialer(cfg, natsConnection)
	if err != nil {
		return fmt.Errorf("failed to create log stream dialer: %w", err)
	}

	finalLog.System("Log console starting, source %s.", cfg.Console.Source)

	model := tui.New(ctx, dialer, viewOptions(cfg.Console), saver, finalLog)

	defer func() {
		closeErr := model.Close()
		if closeErr != nil {
			finalLog.Warn("Failed to close log view: %v", closeErr)
		}
	}()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	_, err = program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("log console failed: %w", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Console exited with error: %v\n", err)
		os.Exit(1)
	}
}
