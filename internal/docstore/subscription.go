package docstore

import (
	"context"
	"log/slog"
)

// ListFunc fetches the current result set of a query.
type ListFunc func(ctx context.Context, q Query) ([]Document, error)

// Subscription re-runs a query whenever it is notified and hands the result
// to its callback. Notifications that arrive while a delivery is in flight
// coalesce into one re-run, so the last delivery always reflects the latest
// committed state.
type Subscription struct {
	query  Query
	fetch  ListFunc
	fn     SnapshotFunc
	dirty  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSubscription starts delivering snapshots of q until ctx is done or Stop
// is called. The first snapshot is delivered without waiting for a change.
func NewSubscription(ctx context.Context, q Query, fetch ListFunc, fn SnapshotFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		query:  q,
		fetch:  fetch,
		fn:     fn,
		dirty:  make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	s.Notify()
	go s.run()
	return s
}

func (s *Subscription) Query() Query {
	return s.query
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Subscription) Notify() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Subscription) Stop() {
	s.cancel()
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
		}

		docs, err := s.fetch(s.ctx, s.query)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			slog.WarnContext(s.ctx, "snapshot query failed",
				slog.String("collection", s.query.Collection), slog.Any("err", err))
			continue
		}
		if s.ctx.Err() != nil {
			return
		}
		s.fn(docs)
	}
}
