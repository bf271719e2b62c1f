package callsession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"companion-platform/pkg/metrics"
)

// Internal cadence constants. These are deliberately not configuration
// surface; the only knobs a deployment gets are the booking's rate and
// minute budget.
const (
	pollInterval = 1 * time.Second
	tickInterval = 1 * time.Second
	maxRetries   = 3

	notifyTimeout = 5 * time.Second
)

// Config describes one call session. One session exists per booking per
// participant device; RatePerMinuteMinor and MaxMinutes are immutable
// inputs derived from the booking.
type Config struct {
	BookingID string
	Role      Role
	Media     MediaKind

	RatePerMinuteMinor int64
	MaxMinutes         int

	Transport Transport
	// Status is required for RoleCaller; the callee never polls.
	Status   StatusQuerier
	Notifier EndNotifier

	Callbacks Callbacks
	Logger    *slog.Logger
}

type eventKind int

const (
	evStart eventKind = iota
	evLocalReady
	evInitFailed
	evDiscovered
	evIncoming
	evAnswered
	evConnected
	evDisconnected
	evDialFailed
	evTick
	evEnd
	evShutdown
)

type event struct {
	kind   eventKind
	addr   PeerAddress
	media  MediaHandle
	reason FailureReason
	err    error
	end    EndReason
}

// Session drives one call from booking to teardown. All state transitions
// run on a single event-loop goroutine: asynchronous completions (transport
// events, poller results, timer ticks) are posted as events and applied in
// order, and an event whose precondition no longer holds is silently
// dropped, never queued.
type Session struct {
	cfg Config
	log *slog.Logger

	events chan event
	done   chan struct{}
	start  sync.Once

	// Injectable for deterministic tests.
	clock        func() time.Time
	pollEvery    time.Duration
	tickEvery    time.Duration
	retryCeiling int

	// Loop-owned lifecycle state. Written only by the event loop; the
	// snapshot mutex covers reads from accessor methods.
	mu          sync.Mutex
	state       State
	ownAddr     PeerAddress
	remoteAddr  PeerAddress
	localMedia  MediaHandle
	remoteMedia MediaHandle
	startedAt   time.Time
	elapsedSec  int
	retryCount  int
	lastErr     error
	started     bool

	// Connected-time bookkeeping.
	accumulated  time.Duration
	segmentStart time.Time

	tornDown bool

	// Timer/poll ownership. Both are cancelled together inside teardown;
	// leaking one of the two is the bug class this routing prevents.
	stopPoll context.CancelFunc
	stopTick context.CancelFunc

	opCtx    context.Context
	opCancel context.CancelFunc
}

// New validates cfg and creates a session in StateIdle. The event loop
// starts immediately so that Close is safe even before Start.
func New(cfg Config) (*Session, error) {
	if cfg.BookingID == "" {
		return nil, errors.New("callsession: booking id is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("callsession: transport is required")
	}
	if cfg.Role == RoleCaller && cfg.Status == nil {
		return nil, errors.New("callsession: status querier is required for the caller")
	}
	if cfg.RatePerMinuteMinor <= 0 {
		return nil, errors.New("callsession: rate per minute must be positive")
	}
	if cfg.MaxMinutes <= 0 {
		return nil, errors.New("callsession: minute budget must be positive")
	}
	if cfg.Media == "" {
		cfg.Media = MediaVideo
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("booking_id", cfg.BookingID, "role", cfg.Role.String())

	opCtx, opCancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:          cfg,
		log:          log,
		events:       make(chan event, 32),
		done:         make(chan struct{}),
		clock:        time.Now,
		pollEvery:    pollInterval,
		tickEvery:    tickInterval,
		retryCeiling: maxRetries,
		state:        StateIdle,
		opCtx:        opCtx,
		opCancel:     opCancel,
	}
	go s.run()
	return s, nil
}

// Start begins the session lifecycle: idle -> initializing.
func (s *Session) Start() {
	s.start.Do(func() {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()
		metrics.ActiveCallSessions.Inc()
		s.post(event{kind: evStart})
	})
}

// EndCall requests an explicit end. Always honored immediately; cancels
// discovery, retries and the duration timer.
func (s *Session) EndCall() {
	s.post(event{kind: evEnd, end: EndReasonUserEnded})
}

// Close shuts the session down unconditionally and waits for the event
// loop to finish teardown. Safe to call more than once and after the
// session has already ended.
func (s *Session) Close() {
	s.post(event{kind: evShutdown})
	<-s.done
}

// Done is closed once the session reached StateEnded and released all
// resources.
func (s *Session) Done() <-chan struct{} { return s.done }

// BookingID returns the booking this session belongs to.
func (s *Session) BookingID() string { return s.cfg.BookingID }

// Role returns the session's role.
func (s *Session) Role() Role { return s.cfg.Role }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ElapsedSeconds returns the connected time so far. It advances only
// while connected and is frozen otherwise.
func (s *Session) ElapsedSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedSec
}

// RetryCount returns how many automatic retries were spent.
func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// LastError returns the last recorded failure, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// OwnAddress returns the local signaling address once initialized.
func (s *Session) OwnAddress() PeerAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownAddr
}

/* ===================== adapter event injection ===================== */

// HandleIncomingConnection reports an inbound connect (callee side).
func (s *Session) HandleIncomingConnection() {
	s.post(event{kind: evIncoming})
}

// HandleAnswered reports that the remote party answered (caller side).
func (s *Session) HandleAnswered() {
	s.post(event{kind: evAnswered})
}

// HandleConnected reports negotiation completion; remote carries the
// inbound stream and its ownership passes to the session.
func (s *Session) HandleConnected(remote MediaHandle) {
	select {
	case s.events <- event{kind: evConnected, media: remote}:
	case <-s.done:
		// Session is gone; the handle would leak otherwise.
		if remote != nil {
			_ = remote.Close()
		}
	}
}

// HandleDisconnected reports media loss or a signaling drop.
func (s *Session) HandleDisconnected(err error) {
	s.post(event{kind: evDisconnected, reason: classify(err), err: err})
}

/* ===================== event loop ===================== */

func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer close(s.done)
	for ev := range s.events {
		s.handle(ev)
		if s.State() == StateEnded {
			return
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evStart:
		if s.state != StateIdle {
			return
		}
		s.transition(StateInitializing)
		go s.initialize()

	case evLocalReady:
		if s.state != StateInitializing {
			// Init completed after the session moved on; the stream
			// was never handed over, so release it here.
			if ev.media != nil {
				_ = ev.media.Close()
			}
			return
		}
		s.mu.Lock()
		s.ownAddr = ev.addr
		s.mu.Unlock()
		s.localMedia = ev.media
		s.transition(StateReady)
		if s.cfg.Role == RoleCaller {
			s.transition(StateDiscovering)
			s.startPoller()
		}

	case evInitFailed:
		if s.state != StateInitializing {
			return
		}
		s.fail(ev.reason, ev.err)

	case evDiscovered:
		// One-shot dial guard: the transition precondition itself
		// rejects duplicate discovery successes.
		if s.state != StateDiscovering {
			return
		}
		s.cancelPoller()
		s.mu.Lock()
		if s.remoteAddr == "" {
			s.remoteAddr = ev.addr
		}
		s.mu.Unlock()
		s.transition(StateCalling)
		s.dial()

	case evIncoming:
		if s.cfg.Role != RoleCallee || s.state != StateReady {
			return
		}
		s.transition(StateConnecting)

	case evAnswered:
		if s.state != StateCalling {
			return
		}
		s.transition(StateConnecting)

	case evConnected:
		if s.state != StateConnecting {
			if ev.media != nil {
				_ = ev.media.Close()
			}
			return
		}
		s.remoteMedia = ev.media
		now := s.clock()
		if s.startedAt.IsZero() {
			s.startedAt = now
		}
		s.segmentStart = now
		s.transition(StateConnected)
		s.startTicker()

	case evDisconnected:
		// A drop can arrive mid-handshake (calling/connecting), not only
		// with media flowing; all three are failures. The timer and the
		// elapsed counter only exist once connected.
		switch s.state {
		case StateConnected:
			s.freezeElapsed()
			s.cancelTicker()
		case StateCalling, StateConnecting:
		default:
			return
		}
		s.fail(ev.reason, ev.err)

	case evDialFailed:
		if s.state != StateCalling && s.state != StateConnecting {
			return
		}
		s.fail(ev.reason, ev.err)

	case evTick:
		if s.state != StateConnected {
			return
		}
		elapsed := s.advanceElapsed()
		if cb := s.cfg.Callbacks.OnDuration; cb != nil {
			cb(elapsed)
		}
		if RemainingMinutes(elapsed, s.cfg.MaxMinutes) <= 0 {
			s.end(EndReasonBalanceExhausted)
		}

	case evEnd:
		if s.state.IsTerminal() {
			return
		}
		s.end(ev.end)

	case evShutdown:
		if s.state.IsTerminal() {
			return
		}
		s.end(EndReasonClosed)
	}
}

/* ===================== transitions & side effects ===================== */

// transition applies a state change. Invalid transitions are dropped, not
// queued: racing completions resolve against the current state.
func (s *Session) transition(next State) bool {
	if !s.state.CanTransitionTo(next) {
		s.log.Debug("transition dropped", "from", s.state.String(), "to", next.String())
		return false
	}
	prev := s.state
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	s.log.Debug("state changed", "from", prev.String(), "to", next.String())
	if cb := s.cfg.Callbacks.OnStateChange; cb != nil {
		cb(next)
	}
	return true
}

func (s *Session) initialize() {
	addr, err := s.cfg.Transport.InitLocalIdentity(s.opCtx)
	if err != nil {
		s.post(event{kind: evInitFailed, reason: classify(err), err: err})
		return
	}
	media, err := s.cfg.Transport.AcquireLocalMedia(s.opCtx, s.cfg.Media)
	if err != nil {
		s.post(event{kind: evInitFailed, reason: classify(err), err: err})
		return
	}
	select {
	case s.events <- event{kind: evLocalReady, addr: addr, media: media}:
	case <-s.done:
		_ = media.Close()
	}
}

func (s *Session) dial() {
	s.mu.Lock()
	remote := s.remoteAddr
	s.mu.Unlock()
	go func() {
		if err := s.cfg.Transport.Connect(s.opCtx, remote); err != nil {
			s.post(event{kind: evDialFailed, reason: classify(err), err: err})
		}
	}()
}

// fail records the failure, surfaces it, and applies the retry policy.
// retryCount is a session-lifetime budget: a later successful connection
// does not refill it.
func (s *Session) fail(reason FailureReason, err error) {
	if err == nil {
		err = NewTransportError(reason, nil)
	}
	underCeiling := false
	s.mu.Lock()
	s.lastErr = err
	if s.retryCount < s.retryCeiling {
		s.retryCount++
		underCeiling = true
	}
	s.mu.Unlock()

	s.transition(StateFailed)
	s.log.Warn("call failure", "reason", string(reason), "err", err)
	metrics.CallFailuresTotal.WithLabelValues(string(reason)).Inc()
	if cb := s.cfg.Callbacks.OnError; cb != nil {
		cb(err)
	}

	if !reason.Transient() {
		// Permission/device failures need user action; the session
		// stays failed until restarted or closed.
		return
	}
	if !underCeiling {
		s.end(EndReasonRetriesExhausted)
		return
	}
	s.retry()
}

// retry re-enters the phase appropriate to the role. Transient failures
// can only happen once the remote address is confirmed, so the caller
// redials directly; the callee goes back to waiting.
func (s *Session) retry() {
	switch s.cfg.Role {
	case RoleCaller:
		if s.transition(StateCalling) {
			s.dial()
		}
	case RoleCallee:
		s.transition(StateReady)
	}
}

/* ===================== timers ===================== */

func (s *Session) startPoller() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopPoll = cancel
	go s.pollPeerStatus(ctx)
}

func (s *Session) cancelPoller() {
	if s.stopPoll != nil {
		s.stopPoll()
		s.stopPoll = nil
	}
}

func (s *Session) startTicker() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopTick = cancel
	go func() {
		t := time.NewTicker(s.tickEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.post(event{kind: evTick})
			}
		}
	}()
}

func (s *Session) cancelTicker() {
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
	}
}

// advanceElapsed recomputes connected time. Monotonic: never goes
// backwards even if the clock does.
func (s *Session) advanceElapsed() int {
	total := s.accumulated
	if !s.segmentStart.IsZero() {
		total += s.clock().Sub(s.segmentStart)
	}
	sec := int(total / time.Second)
	s.mu.Lock()
	if sec > s.elapsedSec {
		s.elapsedSec = sec
	}
	sec = s.elapsedSec
	s.mu.Unlock()
	return sec
}

// freezeElapsed folds the current connected segment into the accumulated
// total when leaving StateConnected.
func (s *Session) freezeElapsed() {
	if s.segmentStart.IsZero() {
		return
	}
	s.accumulated += s.clock().Sub(s.segmentStart)
	s.segmentStart = time.Time{}
	s.advanceElapsed()
}

/* ===================== termination ===================== */

// end performs the single idempotent teardown and moves to StateEnded.
// All exit paths (user action, balance exhaustion, retry exhaustion,
// shutdown) converge here.
func (s *Session) end(reason EndReason) {
	if s.state.IsTerminal() {
		return
	}
	if s.state == StateConnected {
		s.freezeElapsed()
	}
	s.teardown()
	s.mu.Lock()
	prev := s.state
	s.state = StateEnded
	wasStarted := s.started
	s.mu.Unlock()
	s.log.Info("call ended", "reason", string(reason), "from", prev.String(), "elapsed_sec", s.elapsedSec)
	if cb := s.cfg.Callbacks.OnStateChange; cb != nil {
		cb(StateEnded)
	}
	if wasStarted {
		metrics.ActiveCallSessions.Dec()
	}
	metrics.CallsEndedTotal.WithLabelValues(string(reason)).Inc()
	if cb := s.cfg.Callbacks.OnEnded; cb != nil {
		cb(reason)
	}
	s.notifyEnded(reason)
}

// teardown releases every owned resource exactly once: both timers are
// cancelled as one step, both media handles are closed and nulled, and
// the transport is shut. A second invocation is a no-op.
func (s *Session) teardown() {
	if s.tornDown {
		return
	}
	s.tornDown = true

	s.cancelPoller()
	s.cancelTicker()
	s.opCancel()

	if s.remoteMedia != nil {
		_ = s.remoteMedia.Close()
		s.remoteMedia = nil
	}
	if s.localMedia != nil {
		_ = s.localMedia.Close()
		s.localMedia = nil
	}
	if err := s.cfg.Transport.Close(); err != nil {
		s.log.Debug("transport close failed", "err", err)
	}
}

// notifyEnded fires the best-effort call-end notification so billing can
// be finalized server-side. The session is already ended locally; a
// delivery failure is only logged.
func (s *Session) notifyEnded(reason EndReason) {
	if s.cfg.Notifier == nil {
		return
	}
	endedBy := string(reason)
	if reason == EndReasonUserEnded {
		endedBy = s.cfg.Role.String()
	}
	bookingID := s.cfg.BookingID
	notifier := s.cfg.Notifier
	log := s.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := notifier.NotifyCallEnded(ctx, bookingID, endedBy); err != nil {
			log.Warn("call-end notification failed", "err", err)
		}
	}()
}
