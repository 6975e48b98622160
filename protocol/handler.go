package protocol

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/Bowarc/Tetris-wasm/domain"
)

// Stats counts inbound frames by outcome.
type Stats struct {
	Received  int64 `json:"received"`
	Malformed int64 `json:"malformed"`
	Relayed   int64 `json:"relayed"`
	Dropped   int64 `json:"dropped"`
}

type Handler struct {
	broadcaster domain.Broadcaster
	prefix      string
	pick        Picker

	received  atomic.Int64
	malformed atomic.Int64
	relayed   atomic.Int64
	dropped   atomic.Int64
}

type Option func(*Handler)

// WithPrefix sets the marker written before every outbound frame.
func WithPrefix(prefix string) Option {
	return func(h *Handler) { h.prefix = prefix }
}

func WithPicker(p Picker) Option {
	return func(h *Handler) { h.pick = p }
}

func NewHandler(b domain.Broadcaster, opts ...Option) *Handler {
	h := &Handler{
		broadcaster: b,
		prefix:      domain.DefaultFramePrefix,
		pick:        RandomPicker,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one inbound frame from conn. Nothing it does can fail the
// caller's read loop: malformed frames are dropped and delivery failures are
// charged to the targets.
func (h *Handler) Handle(ctx context.Context, conn domain.Connection, data []byte) {
	h.received.Add(1)
	clientID := conn.ID().String()

	msg, err := domain.DecodeClientMessage(data)
	if err != nil {
		h.malformed.Add(1)
		slog.Warn("invalid message", "clientId", clientID, "error", err)
		return
	}

	plan, err := Route(conn.ID(), msg, h.broadcaster.SnapshotKeys(), h.pick)
	if err != nil {
		h.dropped.Add(1)
		slog.Error("route error", "clientId", clientID, "error", err)
		return
	}
	if len(plan.Targets) == 0 {
		h.dropped.Add(1)
		slog.Debug("no recipients", "clientId", clientID, "kind", kindOf(msg))
		return
	}

	frame, err := domain.EncodeServerFrame(h.prefix, plan.Message)
	if err != nil {
		h.dropped.Add(1)
		slog.Warn("marshal error", "clientId", clientID, "error", err)
		return
	}

	report := h.broadcaster.Deliver(ctx, plan.Targets, frame)
	h.relayed.Add(int64(report.Delivered))
	slog.Debug("message relayed",
		"clientId", clientID,
		"kind", kindOf(msg),
		"delivered", report.Delivered,
		"missing", report.Missing,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
}

func (h *Handler) Stats() Stats {
	return Stats{
		Received:  h.received.Load(),
		Malformed: h.malformed.Load(),
		Relayed:   h.relayed.Load(),
		Dropped:   h.dropped.Load(),
	}
}
