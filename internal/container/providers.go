package container

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/dispatcher"
	"github.com/garyjia/fleetbot/internal/application/eventbus"
	"github.com/garyjia/fleetbot/internal/application/flows"
	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/application/presenter"
	"github.com/garyjia/fleetbot/internal/application/service"
	"github.com/garyjia/fleetbot/internal/application/workflow"
	infraLark "github.com/garyjia/fleetbot/internal/infrastructure/external/lark"
	"github.com/garyjia/fleetbot/internal/infrastructure/metrics"
	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/sqlite"
	diskvstore "github.com/garyjia/fleetbot/internal/infrastructure/session/diskv"
	"github.com/garyjia/fleetbot/internal/infrastructure/session/memory"
	"github.com/garyjia/fleetbot/internal/infrastructure/session/redisstore"
	"github.com/garyjia/fleetbot/internal/infrastructure/worker"
	"github.com/garyjia/fleetbot/pkg/database"
	"github.com/garyjia/fleetbot/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw            *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// SessionBundle holds the session store and its lifecycle hooks.
type SessionBundle struct {
	Store port.SessionStore

	// Sweeper is set for backends that need explicit idle eviction
	Sweeper port.SessionSweeper

	Ping  func(ctx context.Context) error
	Close func() error
}

// LarkBundle holds all Lark-related components.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Messenger *infraLark.Messenger
}

// ApplicationBundle holds the chat pipeline.
type ApplicationBundle struct {
	Catalog    *flows.Catalog
	Engine     workflow.Engine
	Dispatcher *dispatcher.Dispatcher
	Lanes      *dispatcher.Lanes
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	raw, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Migrate(raw, logger); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Raw:            raw,
		SqlDB:          raw.DB,
		TransactionMgr: sqlite.NewDB(raw.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories over one connection pool.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &RepositoryBundle{
		Drivers:    repository.NewDriverRepository(sqlDB, logger),
		Vehicles:   repository.NewVehicleRepository(sqlDB, logger),
		Shifts:     repository.NewShiftRepository(sqlDB, logger),
		Deliveries: repository.NewDeliveryRepository(sqlDB, logger),
		Reports:    repository.NewReportRepository(sqlDB, logger),
		Links:      repository.NewUserLinkRepository(sqlDB, logger),
		Stats:      repository.NewStatsRepository(sqlDB, logger),
	}, nil
}

// ProvideSessionStore creates the configured session backend.
func ProvideSessionStore(cfg *SessionConfig, logger *zap.Logger) (*SessionBundle, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "", "memory":
		store := memory.New(cfg.IdleTimeout)
		return &SessionBundle{
			Store:   store,
			Sweeper: store,
			Ping:    func(context.Context) error { return nil },
			Close:   noop,
		}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		opts := []redisstore.Option{redisstore.WithTTL(cfg.IdleTimeout)}
		if cfg.RedisPrefix != "" {
			opts = append(opts, redisstore.WithPrefix(cfg.RedisPrefix))
		}
		store := redisstore.New(client, opts...)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			// The engine defers input while redis is down, so startup proceeds
			logger.Warn("Redis session store unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		return &SessionBundle{
			Store: store,
			Ping:  store.Ping,
			Close: client.Close,
		}, nil

	case "diskv":
		store := diskvstore.New(cfg.DiskvPath, cfg.IdleTimeout)
		return &SessionBundle{
			Store:   store,
			Sweeper: store,
			Ping:    func(context.Context) error { return nil },
			Close:   noop,
		}, nil

	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// ProvideLarkClients creates the Lark SDK client and message sender.
func ProvideLarkClients(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	return &LarkBundle{
		Client:    client,
		Messenger: infraLark.NewMessenger(client, logger),
	}, nil
}

// ProvideMetrics creates a registry with runtime collectors and the bot collector.
func ProvideMetrics() (*prometheus.Registry, *metrics.Collector, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, err
	}
	collector, err := metrics.New(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return reg, collector, nil
}

// ServiceDeps are the inputs of ProvideServices.
type ServiceDeps struct {
	Repos  *RepositoryBundle
	Bot    *BotConfig
	Sender port.MessageSender
	Bus    eventbus.Bus
	Now    func() time.Time
	Logger *zap.Logger
}

// ProvideServices creates the presenter and the application services, and
// subscribes the notifier to the bus.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	kv := utils.NewKVLogger(deps.Logger)

	opts := []presenter.Option{presenter.WithLogger(deps.Logger)}
	if len(deps.Bot.Messages) > 0 {
		opts = append(opts, presenter.WithOverrides(deps.Bot.Messages))
	}
	texts, err := presenter.New(opts...)
	if err != nil {
		return nil, err
	}

	r := deps.Repos
	notifier := service.NewNotifier(deps.Sender, deps.Bot.AdminUserIDs, texts, kv)
	notifier.Register(deps.Bus)

	return &ServiceBundle{
		Presenter: texts,
		Directory: service.NewDirectory(deps.Bot.AdminUserIDs, r.Drivers, r.Links, kv),
		Commands: service.NewCommandService(service.CommandRepositories{
			Drivers:    r.Drivers,
			Vehicles:   r.Vehicles,
			Shifts:     r.Shifts,
			Deliveries: r.Deliveries,
			Reports:    r.Reports,
			Links:      r.Links,
			Stats:      r.Stats,
		}, texts, deps.Now, kv),
		Reports:  service.NewReportService(r.Drivers, r.Vehicles, r.Shifts, r.Stats, deps.Now, kv),
		Notifier: notifier,
	}, nil
}

// ApplicationDeps are the inputs of ProvideApplication.
type ApplicationDeps struct {
	Repos       *RepositoryBundle
	TxManager   port.TransactionManager
	Sessions    port.SessionStore
	Services    *ServiceBundle
	Bus         eventbus.Bus
	Collector   *metrics.Collector
	Bot         *BotConfig
	IdleTimeout time.Duration
	Now         func() time.Time
	Logger      *zap.Logger
}

// ProvideApplication builds the flow catalog, the engine and the dispatcher.
func ProvideApplication(deps *ApplicationDeps) (*ApplicationBundle, error) {
	r := deps.Repos
	catalog, err := flows.NewCatalog(flows.Store{
		Drivers:    r.Drivers,
		Vehicles:   r.Vehicles,
		Shifts:     r.Shifts,
		Deliveries: r.Deliveries,
		Reports:    r.Reports,
		Links:      r.Links,
		Tx:         deps.TxManager,
	}, flows.WithLogger(deps.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create flow catalog: %w", err)
	}

	registry, err := catalog.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to build flow registry: %w", err)
	}

	engine, err := workflow.NewEngine(registry, deps.Sessions, catalog.Finalizers(),
		workflow.WithLogger(deps.Logger),
		workflow.WithClock(deps.Now),
		workflow.WithCancelTokens(deps.Bot.CancelTokens...),
		workflow.WithIdleTimeout(deps.IdleTimeout),
		workflow.WithObserver(deps.Collector),
		workflow.WithPublisher(deps.Bus),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	triggers, err := dispatcher.NewTriggerTable(engine.IsCancel, flows.Triggers()...)
	if err != nil {
		return nil, err
	}

	lanes := dispatcher.NewLanes(deps.Bot.Lanes, deps.Bot.LaneCapacity, deps.Logger)
	disp, err := dispatcher.New(dispatcher.Deps{
		Engine:    engine,
		Triggers:  triggers,
		Directory: deps.Services.Directory,
		Commands:  deps.Services.Commands,
		Renderer:  deps.Services.Presenter,
		Lanes:     lanes,
	},
		dispatcher.WithLogger(deps.Logger),
		dispatcher.WithObserver(deps.Collector),
		dispatcher.WithReorderWindow(deps.Bot.ReorderWindow),
	)
	if err != nil {
		lanes.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	return &ApplicationBundle{
		Catalog:    catalog,
		Engine:     engine,
		Dispatcher: disp,
		Lanes:      lanes,
	}, nil
}

// WorkerDeps are the inputs of ProvideWorkers.
type WorkerDeps struct {
	Repos     *RepositoryBundle
	Sessions  *SessionBundle
	Bus       eventbus.Bus
	Collector *metrics.Collector
	WorkerCfg *WorkerConfig
	Session   *SessionConfig
	Now       func() time.Time
	Logger    *zap.Logger
}

// ProvideWorkers creates the background workers.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	manager := worker.NewWorkerManager(deps.Logger)

	if deps.WorkerCfg.ReminderEnabled {
		reminder := worker.NewShiftReminderWorker(
			worker.ShiftReminderConfig{
				PollInterval: deps.WorkerCfg.ReminderPollInterval,
				OverdueAfter: deps.WorkerCfg.ReminderOverdueAfter,
			},
			deps.Repos.Shifts,
			deps.Repos.Links,
			deps.Bus,
			deps.Logger,
			worker.WithReminderClock(deps.Now),
			worker.WithReminderObserver(deps.Collector),
		)
		if err := manager.Register(reminder); err != nil {
			return nil, err
		}
	}

	if deps.Sessions.Sweeper != nil && deps.Session.IdleTimeout > 0 && deps.Session.SweepInterval > 0 {
		sweeper := worker.NewSessionSweepWorker(deps.Session.SweepInterval, deps.Sessions.Sweeper, deps.Logger)
		if err := manager.Register(sweeper); err != nil {
			return nil, err
		}
	}

	return manager, nil
}
