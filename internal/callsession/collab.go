package callsession

import "context"

// PeerStatus is the result of a booking call-status query.
// RemoteAddress may be empty while the remote party has not registered.
type PeerStatus struct {
	RemoteAddress PeerAddress
	Accepted      bool
}

// StatusQuerier resolves the remote party's signaling address and
// acceptance for a booking. Polled at a fixed 1-second cadence during
// discovery only. Discovery treats query errors as transient and retries
// on the next tick.
type StatusQuerier interface {
	PeerStatus(ctx context.Context, bookingID string) (PeerStatus, error)
}

// EndNotifier tells the booking service that the call ended so billing
// can be finalized server-side. Fire-and-forget: the session reaches
// StateEnded locally regardless of this call's outcome.
type EndNotifier interface {
	NotifyCallEnded(ctx context.Context, bookingID, endedBy string) error
}

// Callbacks is the contract exposed to the UI layer. All callbacks are
// invoked from the session's event loop; implementations must not block.
// Nil members are skipped.
type Callbacks struct {
	// OnStateChange fires on every transition.
	OnStateChange func(State)
	// OnDuration fires each second while connected.
	OnDuration func(elapsedSeconds int)
	// OnEnded fires once, at terminal StateEnded.
	OnEnded func(EndReason)
	// OnError fires on entry to StateFailed. Balance exhaustion is a
	// designed termination trigger and never reaches OnError.
	OnError func(error)
}
