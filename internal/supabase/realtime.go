package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"design-portal-backend/internal/docstore"

	"github.com/lib/pq"
)

// ChangesChannel is the Postgres NOTIFY channel the documents trigger
// publishes the changed collection path on.
const ChangesChannel = "document_changes"

const pingInterval = 90 * time.Second

// Realtime turns document_changes notifications into re-runs of the
// subscriptions watching the changed collection.
type Realtime struct {
	listener *pq.Listener

	mu   sync.Mutex
	subs map[*docstore.Subscription]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRealtime(ctx context.Context, connectionString string) (*Realtime, error) {
	listener := pq.NewListener(connectionString, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("realtime listener event", slog.Int("event", int(ev)), slog.Any("err", err))
		}
	})
	if err := listener.Listen(ChangesChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChangesChannel, err)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Realtime{
		listener: listener,
		subs:     make(map[*docstore.Subscription]struct{}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.run(ctx)
	return r, nil
}

func (r *Realtime) add(sub *docstore.Subscription) {
	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-sub.Done()
		r.mu.Lock()
		delete(r.subs, sub)
		r.mu.Unlock()
	}()
}

func (r *Realtime) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-r.listener.Notify:
			// A nil notification means the connection was re-established and
			// changes may have been missed.
			if n == nil {
				r.notifyAll()
				continue
			}
			r.notify(n.Extra)
		case <-ticker.C:
			if err := r.listener.Ping(); err != nil {
				slog.WarnContext(ctx, "realtime listener ping failed", slog.Any("err", err))
			}
		}
	}
}

func (r *Realtime) notify(collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subs {
		if sub.Query().Collection == collection {
			sub.Notify()
		}
	}
}

func (r *Realtime) notifyAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subs {
		sub.Notify()
	}
}

func (r *Realtime) Close() error {
	r.cancel()
	<-r.done

	r.mu.Lock()
	for sub := range r.subs {
		sub.Stop()
	}
	r.mu.Unlock()

	return r.listener.Close()
}
