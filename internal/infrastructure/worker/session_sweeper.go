package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
)

// SessionSweepWorker evicts idle sessions from stores that do not expire
// entries on their own
type SessionSweepWorker struct {
	sweeper port.SessionSweeper
	logger  *zap.Logger
	loop    *pollLoop
}

// NewSessionSweepWorker creates a sweeper running every interval
func NewSessionSweepWorker(interval time.Duration, sweeper port.SessionSweeper, logger *zap.Logger) *SessionSweepWorker {
	w := &SessionSweepWorker{sweeper: sweeper, logger: logger}
	w.loop = &pollLoop{
		name:     w.Name(),
		interval: interval,
		tick: func(ctx context.Context) error {
			_, err := w.RunOnce(ctx)
			return err
		},
		logger: logger,
	}
	return w
}

// Start begins the sweep loop
func (w *SessionSweepWorker) Start(ctx context.Context) error {
	return w.loop.start(ctx)
}

// Stop terminates the sweep loop
func (w *SessionSweepWorker) Stop() error {
	return w.loop.stop()
}

// Name returns the worker name for identification
func (w *SessionSweepWorker) Name() string {
	return "SessionSweepWorker"
}

// RunOnce sweeps the store and returns the number of evicted sessions
func (w *SessionSweepWorker) RunOnce(ctx context.Context) (int, error) {
	n, err := w.sweeper.Sweep(ctx)
	if err != nil {
		return n, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	if n > 0 {
		w.logger.Info("Idle sessions evicted", zap.Int("count", n))
	}
	return n, nil
}

// IsRunning returns whether the sweep loop is active
func (w *SessionSweepWorker) IsRunning() bool {
	return w.loop.running()
}
