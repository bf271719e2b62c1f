package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service tracks per-booking call presence in Redis.
//
// Each booking has at most two registered peers (customer and companion),
// plus an acceptance flag set by the companion. All keys carry a TTL so a
// crashed client cannot hold a slot forever; clients refresh via Heartbeat.
type Service struct {
	rdb *redis.Client
	ttl time.Duration
}

var (
	ErrSlotTaken     = errors.New("presence slot held by another address")
	ErrNotRegistered = errors.New("peer not registered")
)

const (
	RoleCustomer  = "customer"
	RoleCompanion = "companion"
)

func NewService(rdb *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{rdb: rdb, ttl: ttl}
}

// Status is what a polling peer sees: the other side's address (if any)
// and whether the companion has accepted the call.
type Status struct {
	RemoteAddress string `json:"remote_address,omitempty"`
	Accepted      bool   `json:"accepted"`
}

func addrKey(bookingID, role string) string {
	return fmt.Sprintf("call:presence:%s:%s", bookingID, role)
}

func acceptKey(bookingID string) string {
	return fmt.Sprintf("call:presence:%s:accepted", bookingID)
}

var registerScript = redis.NewScript(`
-- KEYS[1] = address slot key
-- ARGV[1] = address
-- ARGV[2] = ttl_ms (int)
--
-- Returns:
--  1 if registered (new or same address re-registering)
--  0 if rejected (slot held by a different address)
local current = redis.call('GET', KEYS[1])
if current and current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

var heartbeatScript = redis.NewScript(`
-- KEYS[1] = address slot key
-- ARGV[1] = address
-- ARGV[2] = ttl_ms (int)
--
-- Returns:
--  1 if TTL refreshed
--  0 if the slot is gone or held by a different address
local current = redis.call('GET', KEYS[1])
if not current or current ~= ARGV[1] then
  return 0
end
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// Register claims the booking's slot for a role. Re-registering the same
// address is idempotent; a different address is rejected so a second device
// cannot hijack an in-progress call.
func (s *Service) Register(ctx context.Context, bookingID, role, address string) error {
	if bookingID == "" || address == "" {
		return fmt.Errorf("booking id and address are required")
	}
	if err := validRole(role); err != nil {
		return err
	}

	res, err := registerScript.Run(ctx, s.rdb, []string{addrKey(bookingID, role)}, address, s.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if res != 1 {
		return ErrSlotTaken
	}
	return nil
}

// Heartbeat refreshes the TTL on a registered slot.
func (s *Service) Heartbeat(ctx context.Context, bookingID, role, address string) error {
	if bookingID == "" || address == "" {
		return fmt.Errorf("booking id and address are required")
	}
	if err := validRole(role); err != nil {
		return err
	}

	res, err := heartbeatScript.Run(ctx, s.rdb, []string{addrKey(bookingID, role)}, address, s.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if res != 1 {
		return ErrNotRegistered
	}
	return nil
}

// Accept marks the companion as willing to take the call. The flag carries
// the same TTL as address slots and is refreshed by companion heartbeats.
func (s *Service) Accept(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return fmt.Errorf("booking id is required")
	}
	return s.rdb.Set(ctx, acceptKey(bookingID), "1", s.ttl).Err()
}

// PeerStatus returns the other side's presence as seen by forRole.
// A missing remote slot yields an empty RemoteAddress, not an error.
func (s *Service) PeerStatus(ctx context.Context, bookingID, forRole string) (Status, error) {
	if bookingID == "" {
		return Status{}, fmt.Errorf("booking id is required")
	}
	if err := validRole(forRole); err != nil {
		return Status{}, err
	}

	remoteRole := RoleCompanion
	if forRole == RoleCompanion {
		remoteRole = RoleCustomer
	}

	pipe := s.rdb.Pipeline()
	addrCmd := pipe.Get(ctx, addrKey(bookingID, remoteRole))
	acceptCmd := pipe.Exists(ctx, acceptKey(bookingID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Status{}, err
	}

	var st Status
	if addr, err := addrCmd.Result(); err == nil {
		st.RemoteAddress = addr
	} else if !errors.Is(err, redis.Nil) {
		return Status{}, err
	}
	if n, err := acceptCmd.Result(); err == nil {
		st.Accepted = n > 0
	} else {
		return Status{}, err
	}
	return st, nil
}

// Clear drops all presence state for a booking. Called on call end.
func (s *Service) Clear(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return fmt.Errorf("booking id is required")
	}
	return s.rdb.Del(ctx,
		addrKey(bookingID, RoleCustomer),
		addrKey(bookingID, RoleCompanion),
		acceptKey(bookingID),
	).Err()
}

func validRole(role string) error {
	if role != RoleCustomer && role != RoleCompanion {
		return fmt.Errorf("invalid presence role %q", role)
	}
	return nil
}
