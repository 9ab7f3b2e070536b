package items

import (
	"context"
	"errors"

	"github.com/unowned-ai/trove/pkg/live"
)

// SubscribeAll delivers the full item list now and after every write.
func (s *Store) SubscribeAll(fn func(live.Snapshot[Item]), opts ...live.SubscribeOption) (*live.Subscription[Item], error) {
	opts = append([]live.SubscribeOption{live.WithName("all")}, opts...)
	return s.subscribe(s.All, fn, opts...)
}

// SubscribeByCategory delivers the items of one category now and after every
// write. The reserved All label is rejected; use SubscribeAll.
func (s *Store) SubscribeByCategory(category string, fn func(live.Snapshot[Item]), opts ...live.SubscribeOption) (*live.Subscription[Item], error) {
	category = NormalizeCategory(category)
	if err := ValidateCategory(category); err != nil {
		return nil, err
	}

	query := func(ctx context.Context) ([]Item, error) {
		return s.ByCategory(ctx, category)
	}
	opts = append([]live.SubscribeOption{live.WithName("category:" + category)}, opts...)
	return s.subscribe(query, fn, opts...)
}

func (s *Store) subscribe(query live.QueryFunc[Item], fn func(live.Snapshot[Item]), opts ...live.SubscribeOption) (*live.Subscription[Item], error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	sub, err := s.hub.Subscribe(query, fn, opts...)
	if errors.Is(err, live.ErrHubClosed) {
		return nil, ErrStoreClosed
	}
	return sub, err
}
