package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Bowarc/Tetris-wasm/domain"
	"github.com/Bowarc/Tetris-wasm/idgen"
)

const DefaultMaxParallelSends = 64

var _ domain.Broadcaster = (*Hub)(nil)

type Hub struct {
	clients map[domain.ConnectionID]domain.Sink
	mu      sync.RWMutex

	ids         *idgen.Generator
	maxParallel int
}

type Option func(*Hub)

func WithGenerator(g *idgen.Generator) Option {
	return func(h *Hub) { h.ids = g }
}

// WithMaxParallelSends bounds the number of concurrent sends in one fan-out.
// Values below 1 are ignored.
func WithMaxParallelSends(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxParallel = n
		}
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		clients:     make(map[domain.ConnectionID]domain.Sink),
		ids:         idgen.New(),
		maxParallel: DefaultMaxParallelSends,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) TryRegister(sink domain.Sink) (domain.ConnectionID, error) {
	if !h.mu.TryLock() {
		return domain.ConnectionID{}, domain.ErrRegistryBusy
	}

	id, err := h.ids.GenerateUnique(func(id domain.ConnectionID) bool {
		_, taken := h.clients[id]
		return taken
	})
	if err != nil {
		h.mu.Unlock()
		return id, fmt.Errorf("generate connection id: %w", err)
	}
	h.clients[id] = sink
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client connected", "clientId", id.String(), "clients", count)
	return id, nil
}

func (h *Hub) Remove(id domain.ConnectionID) bool {
	return h.remove(id, nil)
}

func (h *Hub) RemoveSink(id domain.ConnectionID, sink domain.Sink) bool {
	return h.remove(id, sink)
}

// remove deletes id; a non-nil owner must match the stored sink.
func (h *Hub) remove(id domain.ConnectionID, owner domain.Sink) bool {
	h.mu.Lock()
	current, exists := h.clients[id]
	if !exists || (owner != nil && current != owner) {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, id)
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client disconnected", "clientId", id.String(), "clients", count)
	return true
}

// SnapshotKeys returns the live ids in ascending order.
func (h *Hub) SnapshotKeys() []domain.ConnectionID {
	h.mu.RLock()
	keys := make([]domain.ConnectionID, 0, len(h.clients))
	for id := range h.clients {
		keys = append(keys, id)
	}
	h.mu.RUnlock()

	slices.SortFunc(keys, domain.ConnectionID.Compare)
	return keys
}

func (h *Hub) GetSink(id domain.ConnectionID) (domain.Sink, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sink, ok := h.clients[id]
	return sink, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver sends frame to every target concurrently. The registry lock is only
// held for each lookup, never across a send. A target that is no longer
// registered or already closing counts as missing. Sends cut short by ctx are
// skipped and leave the target alone. A target whose write fails is evicted
// and its sink closed; the failure is never returned to the caller.
func (h *Hub) Deliver(ctx context.Context, targets []domain.ConnectionID, frame []byte) domain.DeliveryReport {
	var delivered, missing, skipped, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(h.maxParallel)
	for _, id := range targets {
		g.Go(func() error {
			sink, ok := h.GetSink(id)
			if !ok {
				missing.Add(1)
				slog.Debug("target not found", "clientId", id.String())
				return nil
			}

			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}

			err := sink.Send(ctx, frame)
			if err == nil {
				delivered.Add(1)
				return nil
			}

			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				skipped.Add(1)
				slog.Debug("send abandoned", "clientId", id.String(), "error", err)
			case errors.Is(err, domain.ErrSinkClosed):
				// the session is tearing down and will remove itself
				missing.Add(1)
				slog.Debug("target closing", "clientId", id.String())
			default:
				failed.Add(1)
				slog.Warn("send failed, evicting client", "clientId", id.String(), "error", err)
				h.evict(id, sink)
			}
			return nil
		})
	}
	_ = g.Wait()

	return domain.DeliveryReport{
		Delivered: int(delivered.Load()),
		Missing:   int(missing.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
}

// Broadcast delivers frame verbatim to every live connection.
func (h *Hub) Broadcast(ctx context.Context, frame []byte) domain.DeliveryReport {
	return h.Deliver(ctx, h.SnapshotKeys(), frame)
}

// CloseAll closes every live sink. Each session then tears itself down.
func (h *Hub) CloseAll() int {
	keys := h.SnapshotKeys()
	closed := 0
	for _, id := range keys {
		sink, ok := h.GetSink(id)
		if !ok {
			continue
		}
		if err := sink.Close(); err != nil {
			slog.Debug("close error", "clientId", id.String(), "error", err)
		}
		closed++
	}
	return closed
}

func (h *Hub) evict(id domain.ConnectionID, sink domain.Sink) {
	h.RemoveSink(id, sink)
	if err := sink.Close(); err != nil {
		slog.Debug("close error", "clientId", id.String(), "error", err)
	}
}
