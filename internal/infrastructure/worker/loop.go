package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// pollLoop is the start/stop/ticker scaffolding shared by the polling workers
type pollLoop struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context) error
	logger   *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
}

func (l *pollLoop) start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isRunning {
		return fmt.Errorf("%s already running", l.name)
	}
	if l.interval <= 0 {
		return fmt.Errorf("%s: poll interval must be positive", l.name)
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	l.isRunning = true

	l.logger.Info("Worker loop started",
		zap.String("worker_name", l.name),
		zap.Duration("poll_interval", l.interval))

	go l.run(ctx, l.done)
	return nil
}

func (l *pollLoop) stop() error {
	l.mu.Lock()
	if !l.isRunning {
		l.mu.Unlock()
		return nil
	}
	l.isRunning = false
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (l *pollLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Poll loop context cancelled", zap.String("worker_name", l.name))
			return
		case <-ticker.C:
			if err := l.tick(ctx); err != nil {
				l.logger.Error("Worker tick failed",
					zap.String("worker_name", l.name),
					zap.Error(err))
			}
		}
	}
}

func (l *pollLoop) running() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.isRunning
}
