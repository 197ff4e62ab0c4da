package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

// ErrLanesClosed is returned when work is submitted after Close
var ErrLanesClosed = errors.New("lanes are closed")

// Job is a unit of work run on a lane
type Job func(ctx context.Context)

type task struct {
	ctx  context.Context
	job  Job
	done chan struct{}
}

type lane struct {
	name  string
	tasks chan task
}

// Lanes is a fixed pool of single-goroutine queues. Work for one key always
// lands on the same lane, so it runs strictly in submission order.
type Lanes struct {
	lanes  []*lane
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLanes starts count lanes, each buffering up to capacity jobs
func NewLanes(count, capacity int, logger *zap.Logger) *Lanes {
	if count < 1 {
		count = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Lanes{
		lanes:  make([]*lane, count),
		logger: logger,
	}
	for i := range l.lanes {
		ln := &lane{name: "lane-" + strconv.Itoa(i), tasks: make(chan task, capacity)}
		l.lanes[i] = ln
		l.wg.Add(1)
		go l.run(ln)
	}
	return l
}

func (l *Lanes) run(ln *lane) {
	defer l.wg.Done()
	for t := range ln.tasks {
		l.safeRun(ln, t)
	}
	l.logger.Debug("Lane stopped", zap.String("lane", ln.name))
}

func (l *Lanes) safeRun(ln *lane, t task) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Lane job panicked",
				zap.String("lane", ln.name),
				zap.Any("panic", r))
		}
	}()
	t.job(t.ctx)
}

// Index returns the lane a key is routed to
func (l *Lanes) Index(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(len(l.lanes)))
}

// Size returns the number of lanes
func (l *Lanes) Size() int {
	return len(l.lanes)
}

// Submit enqueues job on the key's lane without waiting for it to run.
// It blocks while the lane is full, until ctx ends.
func (l *Lanes) Submit(ctx context.Context, key string, job Job) error {
	_, err := l.enqueue(ctx, key, job)
	return err
}

// Do enqueues job and waits until it has run or ctx ends
func (l *Lanes) Do(ctx context.Context, key string, job Job) error {
	done, err := l.enqueue(ctx, key, job)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for lane job: %w", ctx.Err())
	}
}

func (l *Lanes) enqueue(ctx context.Context, key string, job Job) (<-chan struct{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrLanesClosed
	}

	t := task{ctx: ctx, job: job, done: make(chan struct{})}
	select {
	case l.lanes[l.Index(key)].tasks <- t:
		return t.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting work, drains queued jobs and waits for the lanes to exit
func (l *Lanes) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for _, ln := range l.lanes {
		close(ln.tasks)
	}
	l.mu.Unlock()

	l.wg.Wait()
}
