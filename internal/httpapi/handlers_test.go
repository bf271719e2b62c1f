package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"companion-platform/internal/audit"
	"companion-platform/internal/auth"
	"companion-platform/internal/booking"
	"companion-platform/internal/config"
	"companion-platform/internal/presence"
	"companion-platform/internal/pricing"
	"companion-platform/internal/wallet"

	"github.com/gin-gonic/gin"
)

type memWallets struct {
	mu       sync.Mutex
	balances map[string]int64
	applied  map[string]bool
}

func newMemWallets() *memWallets {
	return &memWallets{balances: make(map[string]int64), applied: make(map[string]bool)}
}

func (f *memWallets) WalletByOwner(ctx context.Context, ownerUserID string) (wallet.Wallet, error) {
	return wallet.Wallet{ID: "w-" + ownerUserID, OwnerUserID: ownerUserID, Currency: "USD"}, nil
}

func (f *memWallets) Debit(ctx context.Context, ownerUserID, walletID string, req wallet.DebitRequest) (wallet.WalletLedger, wallet.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ownerUserID + "/" + req.IdempotencyKey
	if !f.applied[key] {
		if f.balances[ownerUserID] < req.AmountMinor {
			return wallet.WalletLedger{}, wallet.Balance{}, wallet.ErrInsufficientFunds
		}
		f.applied[key] = true
		f.balances[ownerUserID] -= req.AmountMinor
	}
	return wallet.WalletLedger{}, wallet.Balance{BalanceMinor: f.balances[ownerUserID]}, nil
}

func (f *memWallets) Credit(ctx context.Context, ownerUserID, walletID string, req wallet.CreditRequest) (wallet.WalletLedger, wallet.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ownerUserID + "/" + req.IdempotencyKey
	if !f.applied[key] {
		f.applied[key] = true
		f.balances[ownerUserID] += req.AmountMinor
	}
	return wallet.WalletLedger{}, wallet.Balance{BalanceMinor: f.balances[ownerUserID]}, nil
}

// memPresence implements both httpapi.PresenceAPI and booking.PresenceStore.
type memPresence struct {
	mu       sync.Mutex
	addrs    map[string]string // bookingID/role -> address
	accepted map[string]bool
}

func newMemPresence() *memPresence {
	return &memPresence{addrs: make(map[string]string), accepted: make(map[string]bool)}
}

func (p *memPresence) Register(ctx context.Context, bookingID, role, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addrs[bookingID+"/"+role] = address
	return nil
}

func (p *memPresence) Heartbeat(ctx context.Context, bookingID, role, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.addrs[bookingID+"/"+role] != address {
		return presence.ErrNotRegistered
	}
	return nil
}

func (p *memPresence) Accept(ctx context.Context, bookingID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accepted[bookingID] = true
	return nil
}

func (p *memPresence) PeerStatus(ctx context.Context, bookingID, forRole string) (presence.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	remote := presence.RoleCompanion
	if forRole == presence.RoleCompanion {
		remote = presence.RoleCustomer
	}
	return presence.Status{
		RemoteAddress: p.addrs[bookingID+"/"+remote],
		Accepted:      p.accepted[bookingID],
	}, nil
}

func (p *memPresence) Clear(ctx context.Context, bookingID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.addrs, bookingID+"/"+presence.RoleCustomer)
	delete(p.addrs, bookingID+"/"+presence.RoleCompanion)
	delete(p.accepted, bookingID)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memWallets, *memPresence) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rates := pricing.NewService(&pricing.MemoryRepo{Rates: []pricing.ServiceRate{
		{
			ID:                 "r1",
			CompanionID:        "comp-1",
			Service:            pricing.ServiceVideoCall,
			Currency:           "USD",
			RatePerMinuteMinor: 5000,
			EffectiveFrom:      time.Unix(0, 0),
			Status:             pricing.RateStatusActive,
		},
	}})
	wallets := newMemWallets()
	pres := newMemPresence()
	bookings := booking.NewService(booking.NewMemoryRepo(), rates, wallets, pres, audit.NewService(audit.NewMemoryRepo()), nil)

	h := Handlers{Bookings: bookings, Presence: pres}

	r := gin.New()
	// Test identity middleware in place of JWT verification.
	r.Use(func(c *gin.Context) {
		uid := c.GetHeader("X-Test-User")
		role := c.GetHeader("X-Test-Role")
		if uid != "" {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), uid, role))
		}
		c.Next()
	})
	v1 := r.Group("/v1")
	{
		v1.POST("/bookings", h.CreateBooking)
		v1.GET("/bookings/:booking_id", h.GetBooking)
		v1.POST("/bookings/:booking_id/confirm", h.ConfirmBooking)
		v1.POST("/bookings/:booking_id/cancel", h.CancelBooking)
		v1.GET("/bookings/:booking_id/call-status", h.CallStatus)
		v1.POST("/bookings/:booking_id/presence", h.RegisterPresence)
		v1.POST("/bookings/:booking_id/presence/heartbeat", h.HeartbeatPresence)
		v1.POST("/bookings/:booking_id/accept", h.AcceptCall)
		v1.POST("/bookings/:booking_id/call/ended", h.CallEnded)
	}
	return r, wallets, pres
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBookingCallFlow(t *testing.T) {
	r, wallets, _ := newTestRouter(t)
	wallets.balances["cust-1"] = 100000

	// Customer books 10 minutes of video.
	w := doJSON(t, r, http.MethodPost, "/v1/bookings", "cust-1", "customer", gin.H{
		"companion_id": "comp-1",
		"service":      "video_call",
		"minutes":      10,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var b booking.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode booking: %v", err)
	}

	// Companion confirms.
	if w := doJSON(t, r, http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", "comp-1", "companion", nil); w.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// Companion registers presence and accepts.
	if w := doJSON(t, r, http.MethodPost, "/v1/bookings/"+b.ID+"/presence", "comp-1", "companion", gin.H{"address": "addr-comp"}); w.Code != http.StatusNoContent {
		t.Fatalf("presence: expected 204, got %d (%s)", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPost, "/v1/bookings/"+b.ID+"/accept", "comp-1", "companion", nil); w.Code != http.StatusNoContent {
		t.Fatalf("accept: expected 204, got %d (%s)", w.Code, w.Body.String())
	}

	// Customer's discovery poll sees address + acceptance.
	w = doJSON(t, r, http.MethodGet, "/v1/bookings/"+b.ID+"/call-status", "cust-1", "customer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("call-status: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var st presence.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.RemoteAddress != "addr-comp" || !st.Accepted {
		t.Fatalf("unexpected status: %+v", st)
	}

	// Call ends after 185 connected seconds.
	w = doJSON(t, r, http.MethodPost, "/v1/bookings/"+b.ID+"/call/ended", "cust-1", "customer", gin.H{
		"ended_by":        "caller",
		"elapsed_seconds": 185,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("call ended: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var done booking.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if done.Status != booking.StatusCompleted || done.CostMinor != 20000 {
		t.Fatalf("unexpected final booking: %+v", done)
	}
	if wallets.balances["cust-1"] != 80000 {
		t.Fatalf("expected customer balance 80000, got %d", wallets.balances["cust-1"])
	}

	// Duplicate end report is a no-op.
	w = doJSON(t, r, http.MethodPost, "/v1/bookings/"+b.ID+"/call/ended", "comp-1", "companion", gin.H{
		"ended_by":        "callee",
		"elapsed_seconds": 600,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate end: expected 200, got %d", w.Code)
	}
	if wallets.balances["cust-1"] != 80000 {
		t.Fatalf("duplicate end must not re-charge, balance %d", wallets.balances["cust-1"])
	}
}

func TestCallStatusStrangerForbidden(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/bookings", "cust-1", "customer", gin.H{
		"companion_id": "comp-1",
		"service":      "video_call",
		"minutes":      5,
	})
	var b booking.Booking
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	doJSON(t, r, http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", "comp-1", "companion", nil)

	if w := doJSON(t, r, http.MethodGet, "/v1/bookings/"+b.ID+"/call-status", "stranger", "customer", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAcceptRequiresCompanion(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/bookings", "cust-1", "customer", gin.H{
		"companion_id": "comp-1",
		"service":      "video_call",
		"minutes":      5,
	})
	var b booking.Booking
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	doJSON(t, r, http.MethodPost, "/v1/bookings/"+b.ID+"/confirm", "comp-1", "companion", nil)

	if w := doJSON(t, r, http.MethodPost, "/v1/bookings/"+b.ID+"/accept", "cust-1", "customer", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestLoginAndRefresh(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	h := Handlers{Auth: m}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	w := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", "", gin.H{"user_id": "u1", "role": "customer"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/auth/refresh", "", "", gin.H{"refresh_token": pair.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// Access tokens are not valid refresh tokens.
	w = doJSON(t, r, http.MethodPost, "/v1/auth/refresh", "", "", gin.H{"refresh_token": pair.AccessToken})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
