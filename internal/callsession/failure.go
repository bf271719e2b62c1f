package callsession

import (
	"errors"
	"fmt"
)

// FailureReason classifies a session failure. The classification decides
// whether the retry policy applies: permission and device failures require
// user action and are never retried automatically.
type FailureReason string

const (
	ReasonPermissionDenied  FailureReason = "permission_denied"
	ReasonDeviceUnavailable FailureReason = "device_unavailable"
	ReasonSignalingTimeout  FailureReason = "signaling_timeout"
	ReasonMediaLost         FailureReason = "media_lost"
	ReasonAdapterError      FailureReason = "adapter_error"
)

// Transient reports whether the failure is eligible for bounded automatic
// retry. Terminal failures keep the session in StateFailed until the user
// restarts it.
func (r FailureReason) Transient() bool {
	switch r {
	case ReasonSignalingTimeout, ReasonMediaLost, ReasonAdapterError:
		return true
	default:
		return false
	}
}

// TransportError carries a failure classification across the transport
// adapter boundary. Adapters should wrap their internal errors so the
// session can apply the right retry policy.
type TransportError struct {
	Reason FailureReason
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err with a failure classification.
func NewTransportError(reason FailureReason, err error) *TransportError {
	return &TransportError{Reason: reason, Err: err}
}

// classify extracts the failure reason from an adapter error.
// Unclassified errors default to adapter_error (transient).
func classify(err error) FailureReason {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ReasonAdapterError
}
