package websocket

// State is the lifecycle position of one session. States only move forward.
type State int32

const (
	// StateConnecting: upgraded, no identity yet.
	StateConnecting State = iota
	// StateRegistered: identity assigned and present in the registry.
	StateRegistered
	// StateActive: reading and dispatching inbound frames.
	StateActive
	// StateClosing: no more inbound frames; the sink is being closed.
	StateClosing
	// StateRemoved: deleted from the registry. Terminal.
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}
