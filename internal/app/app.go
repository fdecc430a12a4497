// Package app initializes and holds the long-lived pagevault services,
// acting as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/api"
	"github.com/pagevault/pagevault/internal/clock/system"
	"github.com/pagevault/pagevault/internal/config"
	"github.com/pagevault/pagevault/internal/feed"
	feedsinks "github.com/pagevault/pagevault/internal/feed/sinks"
	"github.com/pagevault/pagevault/internal/hash/sha256"
	"github.com/pagevault/pagevault/internal/id/uuid"
	journalnoop "github.com/pagevault/pagevault/internal/journal/noop"
	journalpg "github.com/pagevault/pagevault/internal/journal/postgres"
	"github.com/pagevault/pagevault/internal/metrics"
	gcppublisher "github.com/pagevault/pagevault/internal/publisher/pubsub"
	"github.com/pagevault/pagevault/internal/runner"
	"github.com/pagevault/pagevault/internal/schedule"
	"github.com/pagevault/pagevault/internal/scrape"
	"github.com/pagevault/pagevault/internal/session"
	gcssink "github.com/pagevault/pagevault/internal/sink/gcs"
	localsink "github.com/pagevault/pagevault/internal/sink/local"
	memorysink "github.com/pagevault/pagevault/internal/sink/memory"
	"github.com/pagevault/pagevault/internal/solver"
)

// App holds the shared, long-lived services for the process. It is built
// once at startup, handed to the CLI commands through the command context,
// and closed exactly once on the way out.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	solver    *solver.Client
	sessions  *session.Directory
	runner    *runner.Runner
	loop      *schedule.Loop
	hub       *feed.Hub
	recent    *feedsinks.RingSink
	journal   scrape.Journal
	apiServer *api.Server

	pubsubClient  *pubsub.Client
	publisher     *gcppublisher.Publisher
	storageClient *storage.Client
}

// New builds every service from the validated configuration. It fails fast:
// any dependency that cannot be constructed aborts startup before the
// scheduler sees a single task.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	logger.Info("building application services",
		zap.String("config_source", cfg.Source),
		zap.String("output_provider", cfg.Output.Provider),
		zap.Int("tasks", len(cfg.Tasks)),
	)

	solverClient, err := solver.New(solver.Config{
		BaseURL:        cfg.Solver.BaseURL,
		MaxTimeout:     cfg.Solver.MaxTimeout(),
		RequestTimeout: cfg.Solver.RequestTimeout(),
	}, logger.Named("solver"))
	if err != nil {
		return nil, fmt.Errorf("solver client init failed: %w", err)
	}
	a.solver = solverClient

	contentSink, err := a.setupSink(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.setupJournal(ctx); err != nil {
		return nil, err
	}

	publisher, topic, err := a.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}

	a.recent = feedsinks.NewRingSink(cfg.Feed.Recent)
	a.hub = feed.New(feed.Config{
		Buffer:      cfg.Feed.Buffer,
		BaseContext: ctx,
		Logger:      logger.Named("feed"),
	}, feedsinks.NewLogSink(logger.Named("feed_log")), a.recent)

	ids := uuid.New()
	clock := system.New()
	a.sessions = session.New(solverClient, ids, a.hub, logger.Named("sessions"))
	a.runner = runner.New(
		a.sessions,
		solverClient,
		contentSink,
		a.journal,
		publisher,
		sha256.New(),
		clock,
		ids,
		a.hub,
		runner.Config{Topic: topic},
		logger.Named("runner"),
	)

	a.loop, err = schedule.NewLoop(cfg.Tasks, a.runner, clock, logger.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("schedule init failed: %w", err)
	}

	a.apiServer = api.NewServer(a.loop, a.sessions, a.recent, cfg.Server, logger.Named("api"))

	logger.Info("application services initialized")
	return a, nil
}

func (a *App) setupSink(ctx context.Context) (scrape.Sink, error) {
	switch a.cfg.Output.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storageClient = client
		sink, err := gcssink.New(client, gcssink.Config{
			Bucket: a.cfg.Output.GCSBucket,
			Prefix: a.cfg.Output.GCSPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs sink init failed: %w", err)
		}
		a.logger.Info("using gcs output",
			zap.String("bucket", a.cfg.Output.GCSBucket),
			zap.String("prefix", a.cfg.Output.GCSPrefix),
		)
		return sink, nil
	case "local":
		sink, err := localsink.New(localsink.Config{Directory: a.cfg.Output.Directory})
		if err != nil {
			return nil, fmt.Errorf("local sink init failed: %w", err)
		}
		a.logger.Info("using local output", zap.String("directory", a.cfg.Output.Directory))
		return sink, nil
	case "memory":
		a.logger.Info("using in-memory output; captures are discarded on exit")
		return memorysink.New(), nil
	default:
		return nil, fmt.Errorf("unknown output provider %q", a.cfg.Output.Provider)
	}
}

func (a *App) setupJournal(ctx context.Context) error {
	if !a.cfg.Database.Enabled() {
		a.logger.Info("no database dsn configured, capture journal disabled")
		a.journal = journalnoop.New()
		return nil
	}
	journal, err := journalpg.New(ctx, journalpg.Config{
		DSN:      a.cfg.Database.DSN,
		Table:    a.cfg.Database.Table,
		MaxConns: int32(a.cfg.Database.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("capture journal init failed: %w", err)
	}
	a.logger.Info("capture journal initialized", zap.String("table", a.cfg.Database.Table))
	a.journal = journal
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (scrape.Publisher, string, error) {
	if !a.cfg.Publisher.Enabled() {
		a.logger.Info("no pub/sub topic configured, capture notifications disabled")
		return nil, "", nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.Publisher.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.publisher = gcppublisher.New(client.Topic(a.cfg.Publisher.Topic))
	a.logger.Info("pub/sub publisher initialized",
		zap.String("project", a.cfg.Publisher.ProjectID),
		zap.String("topic", a.cfg.Publisher.Topic),
	)
	return a.publisher, a.cfg.Publisher.Topic, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Sessions returns the session directory.
func (a *App) Sessions() *session.Directory {
	return a.sessions
}

// Runner returns the capture runner used by both CLI commands.
func (a *App) Runner() *runner.Runner {
	return a.runner
}

// Loop returns the scheduling loop built from the configured tasks.
func (a *App) Loop() *schedule.Loop {
	return a.loop
}

// APIServer returns the status API server.
func (a *App) APIServer() *api.Server {
	return a.apiServer
}

// Close releases every service best-effort, in reverse dependency order.
// Session cleanup runs first so the solver client is still usable, then the
// feed drains, then the external clients disconnect.
func (a *App) Close(ctx context.Context) {
	if a.sessions != nil {
		a.sessions.Cleanup(ctx)
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("feed hub close failed", zap.Error(err))
		}
	}
	if a.journal != nil {
		a.journal.Close()
	}
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	a.logger.Info("application services shut down")
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
}
