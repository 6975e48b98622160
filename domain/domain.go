package domain

import (
	"context"
	"errors"
)

var (
	ErrRegistryBusy     = errors.New("registry busy")
	ErrSinkClosed       = errors.New("sink closed")
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnroutable       = errors.New("unroutable message")
)

// Sink is the write half of one connection.
type Sink interface {
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Connection is a registered sink that knows its own identity.
type Connection interface {
	Sink
	ID() ConnectionID
}

// Registry is the live set of connections. It never exposes its map.
type Registry interface {
	// TryRegister returns ErrRegistryBusy instead of waiting for the lock.
	TryRegister(sink Sink) (ConnectionID, error)
	Remove(id ConnectionID) bool
	// RemoveSink removes id only while it still maps to sink.
	RemoveSink(id ConnectionID, sink Sink) bool
	SnapshotKeys() []ConnectionID
	GetSink(id ConnectionID) (Sink, bool)
	Len() int
}

// DeliveryReport counts the outcome of one fan-out. Missing covers targets
// that were gone or already closing; Skipped covers sends abandoned because
// the caller's context ended. Only Failed targets are evicted.
type DeliveryReport struct {
	Delivered int `json:"delivered"`
	Missing   int `json:"missing"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Broadcaster interface {
	Registry
	Deliver(ctx context.Context, targets []ConnectionID, frame []byte) DeliveryReport
	Broadcast(ctx context.Context, frame []byte) DeliveryReport
}

type MessageHandler interface {
	Handle(ctx context.Context, conn Connection, data []byte)
}
