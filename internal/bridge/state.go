package bridge

import "sync"

// State is the connection lifecycle state visible to callers.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// validTransitions maps each state to the set of states it may move to.
// Every state may fall back to disconnected (stop or detected drop).
var validTransitions = map[State]map[State]bool{
	StateDisconnected: {
		StateConnecting: true,
	},
	StateConnecting: {
		StateConnected:    true,
		StateFailed:       true,
		StateDisconnected: true,
	},
	StateConnected: {
		StateFailed:       true,
		StateDisconnected: true,
	},
	StateFailed: {
		StateConnecting:   true,
		StateConnected:    true,
		StateDisconnected: true,
	},
}

// ValidTransition reports whether moving from one state to another is allowed.
func ValidTransition(from, to State) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// lifecycle is the guarded holder for the current state and failure reason.
// The worker writes it; any goroutine may read it.
type lifecycle struct {
	mu     sync.Mutex
	state  State
	reason string
}

// to applies a transition if the table allows it and reports whether it took.
func (l *lifecycle) to(next State, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == next {
		l.reason = reason
		return true
	}
	if !ValidTransition(l.state, next) {
		return false
	}
	l.state = next
	l.reason = reason
	return true
}

func (l *lifecycle) current() (State, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.reason
}
