package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	httpin "routesync/internal/adapters/in/http"
	"routesync/internal/adapters/out/assetstore"
	"routesync/internal/adapters/out/changefeed"
	"routesync/internal/adapters/out/changefeed/kafkafeed"
	"routesync/internal/adapters/out/changefeed/pgnotify"
	"routesync/internal/adapters/out/changefeed/redisfeed"
	"routesync/internal/adapters/out/postgres"
	"routesync/internal/core/application/orderstore"
	"routesync/internal/core/application/session"
	"routesync/internal/core/application/usecases/commands"
	"routesync/internal/core/application/usecases/queries"
	"routesync/internal/core/ports"
	"routesync/internal/jobs"
	"routesync/internal/pkg/metrics"

	"gorm.io/gorm"
)

// Runner is a long-lived loop started by the serve command.
type Runner struct {
	Name string
	Run  func(ctx context.Context) error
}

type CompositionRoot struct {
	cfg        Config
	logger     *slog.Logger
	gormDB     *gorm.DB
	uowFactory *postgres.GormUnitOfWorkFactory
	backend    *postgres.Backend
	metrics    *metrics.Metrics
	assets     *assetstore.GormStore

	// dispatcher is the route-less store dispatcher overrides go through.
	dispatcher *orderstore.Store

	feed     ports.ChangeFeed
	runners  []Runner
	closers  []io.Closer
	sessions *session.Manager
}

// NewCompositionRoot wires the adapters around gormDB. The change feed
// connections are opened here; Close releases them.
func NewCompositionRoot(ctx context.Context, cfg Config, gormDB *gorm.DB, logger *slog.Logger) (*CompositionRoot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	uowFactory := postgres.NewGormUnitOfWorkFactory(gormDB)
	backend := postgres.NewBackend(uowFactory)
	m := metrics.New()

	c := &CompositionRoot{
		cfg:        cfg,
		logger:     logger,
		gormDB:     gormDB,
		uowFactory: uowFactory,
		backend:    backend,
		metrics:    m,
		assets:     assetstore.NewGormStore(gormDB, cfg.AssetBaseURL),
		dispatcher: orderstore.NewStore(backend, logger, m),
	}

	if err := c.openFeeds(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	sessionCfg := session.DefaultConfig()
	if cfg.SessionIdleTTL > 0 {
		sessionCfg.IdleTTL = cfg.SessionIdleTTL
	}
	c.sessions = session.NewManager(backend, c.feed, c.assets, sessionCfg, logger, m)
	return c, nil
}

func (c *CompositionRoot) openFeeds(ctx context.Context) error {
	sqlDB, err := c.gormDB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}

	var db *pgnotify.Feed
	needsDB := c.cfg.ChangeFeed == FeedPgNotify || !c.cfg.RelayDisabled
	if needsDB {
		db, err = c.openPgNotify(sqlDB)
		if err != nil {
			return err
		}
	}

	var broker interface {
		ports.ChangeFeed
		ports.ChangePublisher
	}
	switch c.cfg.ChangeFeed {
	case FeedPgNotify:
		c.feed = db
		return nil
	case FeedRedis:
		rf, err := redisfeed.New(ctx, c.cfg.RedisAddr, c.cfg.RedisPassword, c.cfg.RedisDB,
			c.cfg.RedisChannel, c.logger, c.metrics)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, rf)
		c.runners = append(c.runners, Runner{Name: "redis feed", Run: func(ctx context.Context) error {
			return rf.Run(ctx, nil)
		}})
		broker = rf
	case FeedKafka:
		kf, err := kafkafeed.New(kafkafeed.Config{
			Brokers: c.cfg.KafkaBrokers(),
			Topic:   c.cfg.KafkaChangesTopic,
			GroupID: c.cfg.KafkaConsumerGroup,
		}, c.logger, c.metrics)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, kf)
		c.runners = append(c.runners, Runner{Name: "kafka feed", Run: kf.Run})
		broker = kf
	default:
		return fmt.Errorf("unknown change feed %q", c.cfg.ChangeFeed)
	}

	c.feed = broker
	if db != nil {
		relay := changefeed.NewRelay(db, broker, c.logger)
		c.runners = append(c.runners, Runner{Name: "change relay", Run: relay.Run})
	}
	return nil
}

func (c *CompositionRoot) openPgNotify(sqlDB *sql.DB) (*pgnotify.Feed, error) {
	f, err := pgnotify.New(c.cfg.DSN(), postgres.NotifyChannel, sqlDB, c.logger, c.metrics)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, f)
	c.runners = append(c.runners, Runner{Name: "pgnotify feed", Run: f.Run})
	return f, nil
}

// Runners returns the feed and relay loops; they must run for sessions to see
// changes made elsewhere.
func (c *CompositionRoot) Runners() []Runner {
	return c.runners
}

func (c *CompositionRoot) Sessions() *session.Manager {
	return c.sessions
}

func (c *CompositionRoot) CreateCreateOrderCommandHandler() commands.CreateOrderCommandHandler {
	var f commands.DispatchUoWFactory = FuncDispatchUoWFactory(func() commands.DispatchUoW {
		return c.uowFactory.Create()
	})
	return commands.NewCreateOrderCommandHandler(f)
}

func (c *CompositionRoot) CreateCancelOrderCommandHandler() commands.CancelOrderCommandHandler {
	return commands.NewCancelOrderCommandHandler(c.backend, c.dispatcher, c.logger)
}

func (c *CompositionRoot) CreateGetDeliveryRecordQueryHandler() queries.GetDeliveryRecordQueryHandler {
	return queries.NewGetDeliveryRecordQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateHTTPServer() *httpin.Server {
	return httpin.NewServer(
		c.sessions,
		c.CreateCreateOrderCommandHandler(),
		c.CreateCancelOrderCommandHandler(),
		c.CreateGetDeliveryRecordQueryHandler(),
		c.assets,
		c.metrics,
		c.logger,
	)
}

func (c *CompositionRoot) CreateJobManager() *jobs.JobManager {
	schedules := jobs.DefaultSchedules()
	if c.cfg.RoutePollSchedule != "" {
		schedules.RoutePoll = c.cfg.RoutePollSchedule
	}
	if c.cfg.SessionReapSchedule != "" {
		schedules.SessionReap = c.cfg.SessionReapSchedule
	}
	return jobs.NewJobManager(c.sessions, schedules, c.logger)
}

// Close ends every session and releases the feed connections.
func (c *CompositionRoot) Close() error {
	var errList []error
	if c.sessions != nil {
		if err := c.sessions.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Migrate creates the schema, the change triggers and the asset table.
func Migrate(ctx context.Context, gormDB *gorm.DB, assetBaseURL string) error {
	if err := postgres.Migrate(ctx, gormDB); err != nil {
		return err
	}
	return assetstore.NewGormStore(gormDB, assetBaseURL).Migrate(ctx)
}

type FuncDispatchUoWFactory func() commands.DispatchUoW

func (f FuncDispatchUoWFactory) Create() commands.DispatchUoW {
	return f()
}
