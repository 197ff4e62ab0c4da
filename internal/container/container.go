package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/dispatcher"
	"github.com/garyjia/fleetbot/internal/application/eventbus"
	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/application/presenter"
	"github.com/garyjia/fleetbot/internal/application/service"
	"github.com/garyjia/fleetbot/internal/application/workflow"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
	"github.com/garyjia/fleetbot/internal/infrastructure/metrics"
	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fleetbot/internal/infrastructure/worker"
	httpapi "github.com/garyjia/fleetbot/internal/interfaces/http"
	"github.com/garyjia/fleetbot/internal/interfaces/websocket"
	"github.com/garyjia/fleetbot/pkg/database"
	"github.com/garyjia/fleetbot/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	now    func() time.Time

	// Infrastructure - Data
	raw          *database.DB
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	sessions     *SessionBundle

	// Infrastructure - External
	lark *LarkBundle

	// Observability
	registry  *prometheus.Registry
	collector *metrics.Collector

	// Application
	bus      eventbus.Bus
	services *ServiceBundle
	app      *ApplicationBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Drivers    port.DriverRepository
	Vehicles   port.VehicleRepository
	Shifts     port.ShiftRepository
	Deliveries port.DeliveryRepository
	Reports    port.ReportRepository
	Links      port.UserLinkRepository
	Stats      port.StatsRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Presenter *presenter.Presenter
	Directory port.Directory
	Commands  dispatcher.Commands
	Reports   service.ReportService
	Notifier  *service.Notifier
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures the container
type Option func(*Container)

// WithClock sets the time source shared by the engine, services and workers
func WithClock(now func() time.Time) Option {
	return func(c *Container) {
		c.now = now
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and starts the background workers.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Session store
// 3. External clients (Lark)
// 4. Metrics, event bus and application services
// 5. Flow engine and dispatcher
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"sessions", c.initSessions},
		{"external clients", c.initExternalClients},
		{"services", c.initServices},
		{"application", c.initApplication},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	err := c.teardown()
	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far
func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	if c.app != nil {
		c.app.Lanes.Close()
		c.app = nil
	}

	if c.bus != nil {
		if err := c.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
		c.bus = nil
	}

	if c.sessions != nil {
		if err := c.sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
		c.sessions = nil
	}

	if c.raw != nil {
		if err := c.raw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.raw, c.sqlDB = nil, nil
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	if c.raw != nil {
		set("database", c.raw.Healthy(ctx))
	} else {
		set("database", errors.New("not initialized"))
	}

	if c.sessions != nil {
		set("sessions", c.sessions.Ping(ctx))
	} else {
		set("sessions", errors.New("not initialized"))
	}

	if c.workers == nil {
		set("workers", errors.New("not initialized"))
		return status
	}
	set("workers", nil)
	for _, ws := range c.workers.Statuses() {
		var err error
		if !ws.Running {
			err = errors.New("not running")
		}
		set("worker."+ws.Name, err)
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.raw = dbBundle.Raw
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initSessions() error {
	sessions, err := ProvideSessionStore(&c.config.Session, c.logger)
	if err != nil {
		return err
	}
	c.sessions = sessions
	return nil
}

func (c *Container) initExternalClients() error {
	larkBundle, err := ProvideLarkClients(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.lark = larkBundle
	return nil
}

func (c *Container) initServices() error {
	registry, collector, err := ProvideMetrics()
	if err != nil {
		return err
	}
	c.registry = registry
	c.collector = collector

	c.bus = eventbus.New(eventbus.WithLogger(utils.NewKVLogger(c.logger)))

	services, err := ProvideServices(&ServiceDeps{
		Repos:  c.repositories,
		Bot:    &c.config.Bot,
		Sender: c.lark.Messenger,
		Bus:    c.bus,
		Now:    c.now,
		Logger: c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initApplication() error {
	app, err := ProvideApplication(&ApplicationDeps{
		Repos:       c.repositories,
		TxManager:   c.db,
		Sessions:    c.sessions.Store,
		Services:    c.services,
		Bus:         c.bus,
		Collector:   c.collector,
		Bot:         &c.config.Bot,
		IdleTimeout: c.config.Session.IdleTimeout,
		Now:         c.now,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	c.app = app
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Repos:     c.repositories,
		Sessions:  c.sessions,
		Bus:       c.bus,
		Collector: c.collector,
		WorkerCfg: &c.config.Worker,
		Session:   &c.config.Session,
		Now:       c.now,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// HTTPServer builds the admin HTTP server over the container's components.
func (c *Container) HTTPServer() *httpapi.Server {
	return httpapi.NewServer(httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
	}, httpapi.Deps{
		Reports:    c.services.Reports,
		Drivers:    c.repositories.Drivers,
		Deliveries: c.repositories.Deliveries,
		Registry:   c.app.Engine.Registry(),
		Checks: map[string]httpapi.CheckFunc{
			"database": c.raw.Healthy,
			"sessions": c.sessions.Ping,
		},
		Gatherer: c.registry,
		Now:      c.now,
	}, utils.NewKVLogger(c.logger))
}

// LarkAdapter builds the Lark long connection adapter feeding the dispatcher.
func (c *Container) LarkAdapter() *websocket.LarkAdapter {
	return websocket.NewLarkAdapter(websocket.LarkAdapterConfig{
		AppID:     c.config.Lark.AppID,
		AppSecret: c.config.Lark.AppSecret,
	}, c.app.Dispatcher, c.lark.Messenger, c.logger)
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the inbound message dispatcher.
func (c *Container) Dispatcher() *dispatcher.Dispatcher {
	return c.app.Dispatcher
}

// Engine returns the flow engine.
func (c *Container) Engine() workflow.Engine {
	return c.app.Engine
}

// Registry returns the flow definitions.
func (c *Container) Registry() *domainwf.Registry {
	return c.app.Engine.Registry()
}

// Bus returns the event bus.
func (c *Container) Bus() eventbus.Bus {
	return c.bus
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// MetricsRegistry returns the Prometheus registry served on /metrics.
func (c *Container) MetricsRegistry() *prometheus.Registry {
	return c.registry
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
