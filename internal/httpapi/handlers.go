package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"companion-platform/internal/auth"
	"companion-platform/internal/booking"
	"companion-platform/internal/presence"
	"companion-platform/internal/pricing"
	"companion-platform/internal/rbac"
	"companion-platform/internal/reporting"
	"companion-platform/internal/wallet"

	"github.com/gin-gonic/gin"
)

// PresenceAPI is the subset of presence operations handlers need.
// Kept as an interface so handlers can be tested without Redis.
type PresenceAPI interface {
	Register(ctx context.Context, bookingID, role, address string) error
	Heartbeat(ctx context.Context, bookingID, role, address string) error
	Accept(ctx context.Context, bookingID string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Wallet   *wallet.Service
	Bookings *booking.Service
	Presence PresenceAPI
	Reports  *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), claims.UserID, claims.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// --- Bookings ---

func (h Handlers) CreateBooking(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	var req booking.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	b, err := h.Bookings.Create(c.Request.Context(), uid, req)
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h Handlers) ListBookings(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	out, err := h.Bookings.ListForUser(c.Request.Context(), uid)
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h Handlers) GetBooking(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())

	var (
		b   booking.Booking
		err error
	)
	if rbac.IsSuperAdmin(role) || role == rbac.RoleSupport {
		b, err = h.Bookings.Get(c.Request.Context(), c.Param("booking_id"))
	} else {
		b, err = h.Bookings.GetForUser(c.Request.Context(), uid, c.Param("booking_id"))
	}
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) ConfirmBooking(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	b, err := h.Bookings.Confirm(c.Request.Context(), uid, c.Param("booking_id"))
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) CancelBooking(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	b, err := h.Bookings.Cancel(c.Request.Context(), uid, c.Param("booking_id"))
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// --- Call lifecycle ---

// CallStatus is the discovery endpoint polled once per second by the
// calling device. It returns the remote peer's address and acceptance.
func (h Handlers) CallStatus(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	st, err := h.Bookings.CallStatus(c.Request.Context(), uid, c.Param("booking_id"))
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type presenceRequest struct {
	Address string `json:"address"`
}

func (h Handlers) RegisterPresence(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	bookingID := c.Param("booking_id")

	b, err := h.Bookings.GetForUser(c.Request.Context(), uid, bookingID)
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	if b.Status != booking.StatusConfirmed && b.Status != booking.StatusInCall {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "booking not ready for calling"})
		return
	}

	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Address == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "address required"})
		return
	}

	role := participantRole(b, uid)
	if err := h.Presence.Register(c.Request.Context(), bookingID, role, req.Address); err != nil {
		if errors.Is(err, presence.ErrSlotTaken) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "another device holds this call"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "presence registration failed"})
		return
	}
	if _, err := h.Bookings.MarkInCall(c.Request.Context(), bookingID); err != nil && !errors.Is(err, booking.ErrInvalidTransition) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "booking update failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) HeartbeatPresence(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	bookingID := c.Param("booking_id")

	b, err := h.Bookings.GetForUser(c.Request.Context(), uid, bookingID)
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Address == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "address required"})
		return
	}
	if err := h.Presence.Heartbeat(c.Request.Context(), bookingID, participantRole(b, uid), req.Address); err != nil {
		if errors.Is(err, presence.ErrNotRegistered) {
			c.AbortWithStatusJSON(http.StatusGone, gin.H{"error": "presence expired"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "heartbeat failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// AcceptCall is companion-only: it flips the acceptance flag the customer's
// discovery poller is gated on.
func (h Handlers) AcceptCall(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	bookingID := c.Param("booking_id")

	b, err := h.Bookings.GetForUser(c.Request.Context(), uid, bookingID)
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	if b.CompanionID != uid {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "only the companion can accept"})
		return
	}
	if b.Status != booking.StatusConfirmed && b.Status != booking.StatusInCall {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "booking not ready for calling"})
		return
	}
	if err := h.Presence.Accept(c.Request.Context(), bookingID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "accept failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type callEndedRequest struct {
	EndedBy        string `json:"ended_by"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

// CallEnded finalizes billing for a call. Safe to call more than once;
// the booking service and the wallet ledger are both idempotent per booking.
func (h Handlers) CallEnded(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	bookingID := c.Param("booking_id")

	if _, err := h.Bookings.GetForUser(c.Request.Context(), uid, bookingID); err != nil {
		abortBookingErr(c, err)
		return
	}

	var req callEndedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	b, err := h.Bookings.FinalizeCall(c.Request.Context(), bookingID, req.EndedBy, req.ElapsedSeconds)
	if err != nil {
		abortBookingErr(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// --- Wallet ---

func (h Handlers) GetWalletBalance(c *gin.Context) {
	if h.Wallet == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "wallet not configured"})
		return
	}
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	w, err := h.Wallet.WalletByOwner(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no wallet"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "wallet lookup failed"})
		return
	}
	bal, err := h.Wallet.GetBalance(c.Request.Context(), uid, w.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, bal)
}

type topupRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Topup credits the caller's own wallet. Payment capture is out of scope;
// this endpoint records the credit the payment provider reported.
func (h Handlers) Topup(c *gin.Context) {
	if h.Wallet == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "wallet not configured"})
		return
	}
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	var req topupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	w, err := h.Wallet.EnsureWallet(c.Request.Context(), uid, req.Currency)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, bal, err := h.Wallet.Credit(c.Request.Context(), uid, w.ID, wallet.CreditRequest{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		ExternalRef:    "topup",
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bal)
}

type adminManualCreditRequest struct {
	OwnerUserID string `json:"owner_user_id"`
	WalletID    string `json:"wallet_id"`

	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
	Metadata       string `json:"metadata,omitempty"`
}

// AdminManualCredit performs an admin-only wallet credit.
// RBAC: super_admin (trust_ops where explicitly allowed).
func (h Handlers) AdminManualCredit(c *gin.Context) {
	if h.Wallet == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "wallet not configured"})
		return
	}
	adminUserID, _ := auth.UserID(c.Request.Context())
	adminRole, _ := auth.Role(c.Request.Context())

	var req adminManualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.OwnerUserID == "" || req.WalletID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "owner_user_id, wallet_id required"})
		return
	}

	_, _, bal, err := h.Wallet.AdminManualCredit(c.Request.Context(), req.OwnerUserID, req.WalletID, adminUserID, adminRole, wallet.AdminCreditRequest{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bal)
}

// --- Reports ---

func (h Handlers) BookingsSummary(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.BookingsSummary(c.Request.Context(), reporting.BookingsSummaryRequest{
		UserID: uid,
		Range:  rng,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SpendSummary(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{
		OwnerUserID: uid,
		Range:       rng,
		Currency:    c.Query("currency"),
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CompanionEarnings(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.CompanionEarnings(c.Request.Context(), reporting.EarningsRequest{
		CompanionID: uid,
		Range:       rng,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- helpers ---

func participantRole(b booking.Booking, uid string) string {
	if uid == b.CompanionID {
		return presence.RoleCompanion
	}
	return presence.RoleCustomer
}

func parseRange(c *gin.Context) (reporting.TimeRange, error) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("to must be RFC3339")
	}
	return reporting.TimeRange{From: from, To: to}, nil
}

func abortBookingErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, booking.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "invalid booking state"})
	case errors.Is(err, booking.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, pricing.ErrRateNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "companion rate not found"})
	case errors.Is(err, pricing.ErrInvalidQuoteReq):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
