// Package live delivers full-snapshot updates to subscribers whenever the
// underlying data changes.
//
// Every subscription owns a pump goroutine and a one-slot signal channel.
// Notify never blocks: repeated notifications before the pump wakes collapse
// into one, and the snapshot is loaded when the pump runs, so a subscriber is
// never more than one snapshot behind and never receives a stale one.
package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("live hub is closed")

// Snapshot is the full result of a query at one generation of the source.
type Snapshot[T any] struct {
	Seq   int64
	Items []T
}

// QueryFunc loads the current result for one subscription.
type QueryFunc[T any] func(ctx context.Context) ([]T, error)

// Hub fans change notifications out to subscriptions.
type Hub[T any] struct {
	generation func() int64
	logger     *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription[T]
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*hubOptions)

type hubOptions struct {
	logger *slog.Logger
}

// WithHubLogger sets the hub logger. Defaults to slog.Default().
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(o *hubOptions) {
		o.logger = logger
	}
}

// NewHub creates a hub. generation must return a value that increases after
// every committed change; it is read before each query and stamped on the
// resulting snapshot.
func NewHub[T any](generation func() int64, opts ...HubOption) *Hub[T] {
	o := hubOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Hub[T]{
		generation: generation,
		logger:     o.logger,
		subs:       make(map[uint64]*Subscription[T]),
	}
}

// Subscribe registers deliver to receive the result of query now and after
// every Notify. The first snapshot is delivered asynchronously, right after
// registration.
func (h *Hub[T]) Subscribe(query QueryFunc[T], deliver func(Snapshot[T]), opts ...SubscribeOption) (*Subscription[T], error) {
	if query == nil || deliver == nil {
		return nil, errors.New("live: query and deliver are required")
	}

	o := subscribeOptions{dispatch: Inline}
	for _, opt := range opts {
		opt(&o)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription[T]{
		id:       h.nextID,
		hub:      h,
		query:    query,
		deliver:  deliver,
		onError:  o.onError,
		dispatch: o.dispatch,
		name:     o.name,
		signal:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		lastSeq:  -1,
	}
	h.subs[s.id] = s

	// The initial snapshot is just a pending notification.
	s.notify()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		s.run()
	}()

	h.logger.Debug("subscription added", "subscription", s.id, "name", s.name)
	return s, nil
}

// Notify marks every subscription as having a pending snapshot.
// Safe from any goroutine; never blocks.
func (h *Hub[T]) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs {
		s.notify()
	}
}

// Len returns the number of active subscriptions.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels every subscription and waits for their pumps to exit,
// including any delivery in flight. Must not be called from a delivery callback.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.wg.Wait()
		return
	}
	h.closed = true
	subs := make([]*Subscription[T], 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	h.wg.Wait()
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}
