package peerconn

import "sync/atomic"

// State is a peer connection's position in its connect/handshake/serve
// lifecycle. Transitions only move forward; Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// State reports the connection's current lifecycle state.
func (p *Conn) State() State {
	return State(atomic.LoadInt32(&p.state))
}

func (p *Conn) setState(s State) {
	atomic.StoreInt32(&p.state, int32(s))
}
