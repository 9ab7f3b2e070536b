package live

import (
	"context"
	"sync"
)

// Dispatcher runs fn on the context that owns the subscriber's state, such as
// a UI event loop. It must run dispatched functions in the order given.
type Dispatcher func(fn func())

// Inline runs callbacks directly on the subscription's pump goroutine.
func Inline(fn func()) { fn() }

// SubscribeOption configures one subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	dispatch Dispatcher
	onError  func(error)
	name     string
}

// WithDispatcher routes deliveries through d instead of calling them inline.
func WithDispatcher(d Dispatcher) SubscribeOption {
	return func(o *subscribeOptions) {
		if d != nil {
			o.dispatch = d
		}
	}
}

// WithErrorHandler receives snapshot load failures. They are transient: the
// next notification retries the query.
func WithErrorHandler(fn func(error)) SubscribeOption {
	return func(o *subscribeOptions) {
		o.onError = fn
	}
}

// WithName labels the subscription in logs.
func WithName(name string) SubscribeOption {
	return func(o *subscribeOptions) {
		o.name = name
	}
}

// Subscription is a registered consumer of snapshots.
//
// Unsubscribe may be called at any time from any goroutine, including from
// inside the delivery callback. Once it returns no further callback starts.
// A callback that had already started keeps running; wait on Done to be sure
// the pump goroutine is gone.
type Subscription[T any] struct {
	id       uint64
	hub      *Hub[T]
	query    QueryFunc[T]
	deliver  func(Snapshot[T])
	onError  func(error)
	dispatch Dispatcher
	name     string

	signal chan struct{} // capacity 1: one pending snapshot at most
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	closed  bool
	lastSeq int64
}

// ID identifies the subscription within its hub.
func (s *Subscription[T]) ID() uint64 {
	return s.id
}

// Done is closed when the pump goroutine has exited.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe stops delivery. Idempotent.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.hub.remove(s.id)
		s.hub.logger.Debug("subscription removed", "subscription", s.id, "name", s.name)
	})
}

// notify records a pending snapshot without blocking.
func (s *Subscription[T]) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.signal:
		}
		if s.ctx.Err() != nil {
			return
		}

		// Read the generation before the query: the rows loaded below are
		// at least this new.
		seq := s.hub.generation()
		items, err := s.query(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.hub.logger.Warn("snapshot load failed", "subscription", s.id, "name", s.name, "error", err)
			if s.onError != nil {
				s.dispatch(func() {
					if s.active() {
						s.onError(err)
					}
				})
			}
			continue
		}

		snap := Snapshot[T]{Seq: seq, Items: items}
		s.dispatch(func() { s.invoke(snap) })
	}
}

// invoke runs on the dispatcher's context. The closed check and the sequence
// check happen there, immediately before the callback.
func (s *Subscription[T]) invoke(snap Snapshot[T]) {
	s.mu.Lock()
	if s.closed || snap.Seq <= s.lastSeq {
		s.mu.Unlock()
		return
	}
	s.lastSeq = snap.Seq
	s.mu.Unlock()

	s.deliver(snap)
}

func (s *Subscription[T]) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}
