package dispatcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	highWaterRetention = time.Minute
	pruneEvery         = 1024
)

// sequencer hands out one user's messages in ReceivedAt order. The transport
// may deliver two messages of one user concurrently, so each message is held
// for a short window during which an earlier sibling can still overtake it.
type sequencer struct {
	window time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	next  uint64
	users map[string]*userQueue
}

type userQueue struct {
	pending []*ticket
	changed chan struct{}

	// last is the newest ReceivedAt already handed out
	last time.Time
}

type ticket struct {
	user string
	at   time.Time
	seq  uint64

	// active is set once the ticket holds the head of its queue
	active bool
}

func (t *ticket) before(o *ticket) bool {
	if t.at.Equal(o.at) {
		return t.seq < o.seq
	}
	return t.at.Before(o.at)
}

func newSequencer(window time.Duration, logger *zap.Logger) *sequencer {
	return &sequencer{
		window: window,
		now:    time.Now,
		logger: logger,
		users:  make(map[string]*userQueue),
	}
}

// acquire blocks until every earlier message of the user has been released
// and the reorder window of msg has passed. The caller must release the
// returned ticket.
func (s *sequencer) acquire(ctx context.Context, msg Message) (*ticket, error) {
	t := s.admit(msg)

	if s.window > 0 {
		timer := time.NewTimer(s.window)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			s.release(t, false)
			return nil, ctx.Err()
		}
	}

	for {
		s.mu.Lock()
		q := s.users[t.user]
		if q.pending[0] == t {
			t.active = true
			s.mu.Unlock()
			return t, nil
		}
		changed := q.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			s.release(t, false)
			return nil, ctx.Err()
		}
	}
}

func (s *sequencer) admit(msg Message) *ticket {
	at := msg.ReceivedAt
	if at.IsZero() {
		at = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	if s.next%pruneEvery == 0 {
		s.prune(s.now())
	}
	t := &ticket{user: msg.UserID, at: at, seq: s.next}

	q, ok := s.users[t.user]
	if !ok {
		q = &userQueue{changed: make(chan struct{})}
		s.users[t.user] = q
	}
	if !q.last.IsZero() && at.Before(q.last) {
		s.logger.Warn("Message arrived after a newer one was handled",
			zap.String("user_id", msg.UserID),
			zap.String("message_id", msg.MessageID),
			zap.Time("received_at", at),
			zap.Time("last_handled", q.last))
	}

	// a running ticket keeps the head even when t is older
	lo := 0
	if len(q.pending) > 0 && q.pending[0].active {
		lo = 1
	}
	i := lo + sort.Search(len(q.pending)-lo, func(i int) bool { return t.before(q.pending[lo+i]) })
	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = t
	q.notify()
	return t
}

// release removes t from its queue. handled marks it as processed, which
// advances the user's high-water mark.
func (s *sequencer) release(t *ticket, handled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.users[t.user]
	for i, p := range q.pending {
		if p == t {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	if handled && t.at.After(q.last) {
		q.last = t.at
	}
	q.notify()
}

// prune drops idle users whose high-water mark is older than retention
func (s *sequencer) prune(now time.Time) {
	for user, q := range s.users {
		if len(q.pending) == 0 && now.Sub(q.last) > highWaterRetention {
			delete(s.users, user)
		}
	}
}

func (q *userQueue) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}
