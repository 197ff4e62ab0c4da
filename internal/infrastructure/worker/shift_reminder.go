package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/domain/event"
)

// ShiftReminderConfig holds configuration for the overdue shift reminder
type ShiftReminderConfig struct {
	PollInterval time.Duration

	// OverdueAfter is how long a shift may stay open before the driver is reminded
	OverdueAfter time.Duration
}

// DefaultShiftReminderConfig returns default configuration
func DefaultShiftReminderConfig() ShiftReminderConfig {
	return ShiftReminderConfig{
		PollInterval: 5 * time.Minute,
		OverdueAfter: 12 * time.Hour,
	}
}

// EventPublisher publishes domain events synchronously
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// ReminderObserver counts reminder attempts
type ReminderObserver interface {
	ObserveReminder(sent bool)
}

// ShiftReminderOption configures the worker
type ShiftReminderOption func(*ShiftReminderWorker)

// WithReminderClock sets the time source
func WithReminderClock(now func() time.Time) ShiftReminderOption {
	return func(w *ShiftReminderWorker) {
		w.now = now
	}
}

// WithReminderObserver reports every reminder attempt to o
func WithReminderObserver(o ReminderObserver) ShiftReminderOption {
	return func(w *ShiftReminderWorker) {
		w.observer = o
	}
}

// ShiftReminderWorker reminds drivers once about shifts left open too long.
// A shift is marked reminded only after the shift.overdue listeners succeed,
// so a failed delivery is retried on the next tick.
type ShiftReminderWorker struct {
	config    ShiftReminderConfig
	shifts    port.ShiftRepository
	links     port.UserLinkRepository
	publisher EventPublisher
	observer  ReminderObserver
	now       func() time.Time
	logger    *zap.Logger
	loop      *pollLoop
}

// NewShiftReminderWorker creates a new shift reminder worker
func NewShiftReminderWorker(
	config ShiftReminderConfig,
	shifts port.ShiftRepository,
	links port.UserLinkRepository,
	publisher EventPublisher,
	logger *zap.Logger,
	opts ...ShiftReminderOption,
) *ShiftReminderWorker {
	w := &ShiftReminderWorker{
		config:    config,
		shifts:    shifts,
		links:     links,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.loop = &pollLoop{
		name:     w.Name(),
		interval: config.PollInterval,
		tick: func(ctx context.Context) error {
			_, err := w.RunOnce(ctx)
			return err
		},
		logger: logger,
	}
	return w
}

// Start begins the polling loop
func (w *ShiftReminderWorker) Start(ctx context.Context) error {
	if w.config.OverdueAfter <= 0 {
		return fmt.Errorf("shift reminder: overdue limit must be positive")
	}
	return w.loop.start(ctx)
}

// Stop terminates the polling loop and waits for the current tick
func (w *ShiftReminderWorker) Stop() error {
	return w.loop.stop()
}

// Name returns the worker name for identification
func (w *ShiftReminderWorker) Name() string {
	return "ShiftReminderWorker"
}

// IsRunning returns whether the polling loop is active
func (w *ShiftReminderWorker) IsRunning() bool {
	return w.loop.running()
}

// RunOnce reminds every overdue driver and returns how many reminders went out
func (w *ShiftReminderWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()
	shifts, err := w.shifts.ListOverdue(ctx, now.Add(-w.config.OverdueAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue shifts: %w", err)
	}

	sent := 0
	var failed []error
	for _, sh := range shifts {
		if ctx.Err() != nil {
			break
		}
		ok, err := w.remind(ctx, sh, now)
		if err != nil {
			w.logger.Error("Failed to remind driver",
				zap.Int64("shift_id", sh.ID),
				zap.Int64("driver_id", sh.DriverID),
				zap.Error(err))
			failed = append(failed, err)
			w.observe(false)
			continue
		}
		if ok {
			sent++
		}
	}
	if sent > 0 {
		w.logger.Info("Overdue shift reminders sent", zap.Int("count", sent))
	}
	return sent, errors.Join(failed...)
}

func (w *ShiftReminderWorker) remind(ctx context.Context, sh *entity.Shift, now time.Time) (bool, error) {
	link, err := w.links.GetByDriverID(ctx, sh.DriverID)
	if err != nil {
		return false, fmt.Errorf("failed to get chat link: %w", err)
	}
	if link == nil {
		// Nobody to message until the driver logs in again
		w.logger.Debug("Overdue shift has no linked chat user",
			zap.Int64("shift_id", sh.ID),
			zap.Int64("driver_id", sh.DriverID))
		return false, nil
	}

	evt := event.NewEvent(event.TypeShiftOverdue, link.UserID, "", map[string]interface{}{
		"started_at": sh.StartedAt.Format("02.01 15:04"),
		"driver_id":  sh.DriverID,
	})
	evt.RecordID = sh.ID

	if err := w.publisher.Publish(ctx, evt); err != nil {
		return false, fmt.Errorf("failed to publish reminder: %w", err)
	}
	if err := w.shifts.MarkReminded(ctx, sh.ID, now); err != nil {
		return false, fmt.Errorf("failed to mark shift reminded: %w", err)
	}
	w.observe(true)
	return true, nil
}

func (w *ShiftReminderWorker) observe(sent bool) {
	if w.observer != nil {
		w.observer.ObserveReminder(sent)
	}
}
