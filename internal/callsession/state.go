package callsession

import "fmt"

// State is the lifecycle state of a call session.
type State int

const (
	// StateIdle is the pre-start placeholder; no resources are held.
	StateIdle State = iota
	// StateInitializing means the transport is establishing the local
	// signaling identity and acquiring local media.
	StateInitializing
	// StateReady means local identity and local media are available.
	StateReady
	// StateDiscovering (caller only) means the peer discovery poller is
	// resolving the remote party's address and acceptance.
	StateDiscovering
	// StateCalling means the caller has dialed and awaits the answer.
	StateCalling
	// StateConnecting means the signaling handshake is in progress.
	StateConnecting
	// StateConnected means media flows both ways; billing is active.
	StateConnected
	// StateFailed means a failure occurred; lastError is populated.
	StateFailed
	// StateEnded is terminal; all resources released.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDiscovering:
		return "discovering"
	case StateCalling:
		return "calling"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// validTransitions defines which state transitions are allowed.
// Every state may additionally transition to StateEnded: session shutdown
// is an unconditional exit path and is encoded here explicitly.
var validTransitions = map[State][]State{
	StateIdle:         {StateInitializing, StateEnded},
	StateInitializing: {StateReady, StateFailed, StateEnded},
	StateReady:        {StateDiscovering, StateConnecting, StateEnded},
	StateDiscovering:  {StateCalling, StateEnded},
	StateCalling:      {StateConnecting, StateFailed, StateEnded},
	StateConnecting:   {StateConnected, StateFailed, StateEnded},
	StateConnected:    {StateFailed, StateEnded},
	StateFailed:       {StateCalling, StateReady, StateEnded},
	StateEnded:        {}, // terminal
}

// CanTransitionTo reports whether moving from s to next is a valid transition.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (s State) IsTerminal() bool {
	return s == StateEnded
}

// Role distinguishes the dialing party from the receiving party.
// Both roles run the same state machine; the caller additionally runs
// peer discovery before dialing.
type Role int

const (
	// RoleCaller dials once the remote address is confirmed (the customer).
	RoleCaller Role = iota
	// RoleCallee waits for an inbound connection (the companion).
	RoleCallee
)

func (r Role) String() string {
	switch r {
	case RoleCaller:
		return "caller"
	case RoleCallee:
		return "callee"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}

// EndReason explains why a session reached StateEnded.
type EndReason string

const (
	// EndReasonUserEnded is an explicit end request by a participant.
	EndReasonUserEnded EndReason = "user_ended"
	// EndReasonBalanceExhausted means the purchased minutes ran out.
	// This is a designed termination trigger, not an error.
	EndReasonBalanceExhausted EndReason = "balance_exhausted"
	// EndReasonRetriesExhausted means the transient-failure retry budget
	// was spent.
	EndReasonRetriesExhausted EndReason = "retries_exhausted"
	// EndReasonClosed means the owning component shut the session down.
	EndReasonClosed EndReason = "closed"
)
