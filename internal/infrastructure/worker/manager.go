package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
	IsRunning() bool
}

// Status is a point-in-time view of one worker
type Status struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

// WorkerManager starts and stops a set of uniquely named workers
type WorkerManager struct {
	workers []Worker
	started map[string]bool
	logger  *zap.Logger

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{
		started: make(map[string]bool),
		logger:  logger,
	}
}

// Register adds a worker to be managed. Names must be unique and workers
// cannot be added once the manager runs.
func (m *WorkerManager) Register(w Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("cannot register %s: workers already running", w.Name())
	}
	for _, existing := range m.workers {
		if existing.Name() == w.Name() {
			return fmt.Errorf("worker %s already registered", w.Name())
		}
	}

	m.workers = append(m.workers, w)
	m.logger.Info("Worker registered",
		zap.String("worker_name", w.Name()),
		zap.Int("total_workers", len(m.workers)))
	return nil
}

// StartAll starts every registered worker. A worker that fails to start
// does not keep the others from running; the failures are joined.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("workers already running")
	}

	var runCtx context.Context
	runCtx, m.cancel = context.WithCancel(ctx)
	m.isRunning = true

	m.logger.Info("Starting all workers", zap.Int("count", len(m.workers)))

	var failed []error
	for _, w := range m.workers {
		if err := w.Start(runCtx); err != nil {
			m.logger.Error("Failed to start worker",
				zap.String("worker_name", w.Name()),
				zap.Error(err))
			failed = append(failed, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}
		m.started[w.Name()] = true
		m.logger.Info("Worker started", zap.String("worker_name", w.Name()))
	}
	return errors.Join(failed...)
}

// Run starts all workers, waits for ctx to be cancelled and stops them
func (m *WorkerManager) Run(ctx context.Context) error {
	if err := m.StartAll(ctx); err != nil {
		m.logger.Warn("Some workers failed to start", zap.Error(err))
	}
	<-ctx.Done()
	return m.StopAll()
}

// StopAll stops the workers that started, in reverse registration order
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return nil
	}
	m.isRunning = false
	m.cancel()

	var failed []error
	for i := len(m.workers) - 1; i >= 0; i-- {
		w := m.workers[i]
		if !m.started[w.Name()] {
			continue
		}
		delete(m.started, w.Name())

		if err := w.Stop(); err != nil {
			m.logger.Error("Failed to stop worker",
				zap.String("worker_name", w.Name()),
				zap.Error(err))
			failed = append(failed, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}
		m.logger.Info("Worker stopped", zap.String("worker_name", w.Name()))
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to stop %d workers: %w", len(failed), errors.Join(failed...))
	}
	m.logger.Info("All workers stopped")
	return nil
}

// GetWorkerCount returns the number of registered workers
func (m *WorkerManager) GetWorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// IsRunning returns whether the manager has started its workers
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// Statuses reports each worker in registration order
func (m *WorkerManager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, len(m.workers))
	for i, w := range m.workers {
		out[i] = Status{Name: w.Name(), Running: w.IsRunning()}
	}
	return out
}
