package callsession

import "context"

// PeerAddress is an opaque, session-scoped signaling identifier used by
// the transport layer to route a connection request to a specific
// participant's device.
type PeerAddress string

// MediaKind selects the local media to acquire.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaHandle is an opaque ownership token for an active audio/video
// stream. Handles are exclusively owned by one session and released
// exactly once on teardown.
type MediaHandle interface {
	Close() error
}

// Transport wraps the external signaling/media library. The wire format
// behind it is out of scope; the session only needs these primitives.
//
// Rules for adapters:
//   - Errors should be wrapped in TransportError so the session can apply
//     the retry policy; unwrapped errors are treated as adapter_error.
//   - Inbound events (incoming connection, answer, connected, disconnect)
//     are delivered by calling the Session's Handle* methods. The session
//     serializes them internally; adapters may call from any goroutine.
type Transport interface {
	// InitLocalIdentity establishes the local signaling identity.
	// The returned address is immutable for the session's lifetime.
	InitLocalIdentity(ctx context.Context) (PeerAddress, error)

	// AcquireLocalMedia requests the device's outgoing stream.
	// Permission denial must be reported as ReasonPermissionDenied.
	AcquireLocalMedia(ctx context.Context, kind MediaKind) (MediaHandle, error)

	// Connect dials the confirmed remote address (caller side).
	Connect(ctx context.Context, remote PeerAddress) error

	// Close releases the transport's signaling resources. Idempotent.
	Close() error
}
