package booking

import (
	"context"
	"testing"
	"time"

	"companion-platform/internal/audit"
	"companion-platform/internal/presence"
	"companion-platform/internal/pricing"
	"companion-platform/internal/wallet"
)

type fakeWallets struct {
	balances map[string]int64 // ownerUserID -> balance minor
	applied  map[string]bool  // ownerUserID + idempotency key
	debits   int
	credits  int
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{balances: make(map[string]int64), applied: make(map[string]bool)}
}

func (f *fakeWallets) WalletByOwner(ctx context.Context, ownerUserID string) (wallet.Wallet, error) {
	return wallet.Wallet{ID: "w-" + ownerUserID, OwnerUserID: ownerUserID, Currency: "USD"}, nil
}

func (f *fakeWallets) Debit(ctx context.Context, ownerUserID, walletID string, req wallet.DebitRequest) (wallet.WalletLedger, wallet.Balance, error) {
	key := ownerUserID + "/" + req.IdempotencyKey
	if f.applied[key] {
		return wallet.WalletLedger{}, wallet.Balance{BalanceMinor: f.balances[ownerUserID]}, nil
	}
	if f.balances[ownerUserID] < req.AmountMinor {
		return wallet.WalletLedger{}, wallet.Balance{}, wallet.ErrInsufficientFunds
	}
	f.applied[key] = true
	f.balances[ownerUserID] -= req.AmountMinor
	f.debits++
	return wallet.WalletLedger{AmountMinor: -req.AmountMinor}, wallet.Balance{BalanceMinor: f.balances[ownerUserID]}, nil
}

func (f *fakeWallets) Credit(ctx context.Context, ownerUserID, walletID string, req wallet.CreditRequest) (wallet.WalletLedger, wallet.Balance, error) {
	key := ownerUserID + "/" + req.IdempotencyKey
	if f.applied[key] {
		return wallet.WalletLedger{}, wallet.Balance{BalanceMinor: f.balances[ownerUserID]}, nil
	}
	f.applied[key] = true
	f.balances[ownerUserID] += req.AmountMinor
	f.credits++
	return wallet.WalletLedger{AmountMinor: req.AmountMinor}, wallet.Balance{BalanceMinor: f.balances[ownerUserID]}, nil
}

type fakePresence struct {
	status  presence.Status
	cleared int
}

func (f *fakePresence) PeerStatus(ctx context.Context, bookingID, forRole string) (presence.Status, error) {
	return f.status, nil
}

func (f *fakePresence) Clear(ctx context.Context, bookingID string) error {
	f.cleared++
	return nil
}

func newTestService(t *testing.T, wallets *fakeWallets, pres *fakePresence) (*Service, *audit.MemoryRepo) {
	t.Helper()
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
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(NewMemoryRepo(), rates, wallets, pres, audit.NewService(auditRepo), nil)
	return svc, auditRepo
}

func createConfirmed(t *testing.T, svc *Service, minutes int) Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), "cust-1", CreateRequest{
		CompanionID: "comp-1",
		Service:     pricing.ServiceVideoCall,
		ScheduledAt: time.Now(),
		Minutes:     minutes,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err = svc.Confirm(context.Background(), "comp-1", b.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return b
}

func TestCreateSnapshotsRate(t *testing.T) {
	svc, _ := newTestService(t, newFakeWallets(), &fakePresence{})

	b, err := svc.Create(context.Background(), "cust-1", CreateRequest{
		CompanionID: "comp-1",
		Service:     pricing.ServiceVideoCall,
		Minutes:     10,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != StatusPending {
		t.Fatalf("expected pending, got %s", b.Status)
	}
	if b.RatePerMinuteMinor != 5000 || b.Currency != "USD" {
		t.Fatalf("expected rate snapshot, got %+v", b)
	}
}

func TestCreateRejectsSelfBooking(t *testing.T) {
	svc, _ := newTestService(t, newFakeWallets(), &fakePresence{})
	_, err := svc.Create(context.Background(), "comp-1", CreateRequest{
		CompanionID: "comp-1",
		Service:     pricing.ServiceVideoCall,
		Minutes:     10,
	})
	if err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestConfirmRequiresCompanion(t *testing.T) {
	svc, _ := newTestService(t, newFakeWallets(), &fakePresence{})
	b, err := svc.Create(context.Background(), "cust-1", CreateRequest{
		CompanionID: "comp-1",
		Service:     pricing.ServiceVideoCall,
		Minutes:     10,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Confirm(context.Background(), "cust-1", b.ID); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	got, err := svc.Confirm(context.Background(), "comp-1", b.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
}

func TestCancelByEitherParticipant(t *testing.T) {
	svc, _ := newTestService(t, newFakeWallets(), &fakePresence{})
	b, _ := svc.Create(context.Background(), "cust-1", CreateRequest{
		CompanionID: "comp-1", Service: pricing.ServiceVideoCall, Minutes: 10,
	})

	if _, err := svc.Cancel(context.Background(), "stranger", b.ID); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	got, err := svc.Cancel(context.Background(), "cust-1", b.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCanceled {
		t.Fatalf("expected canceled, got %s", got.Status)
	}

	// A canceled booking cannot be confirmed.
	if _, err := svc.Confirm(context.Background(), "comp-1", b.ID); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestFinalizeCallBillsStartedMinutes(t *testing.T) {
	wallets := newFakeWallets()
	wallets.balances["cust-1"] = 100000
	pres := &fakePresence{}
	svc, auditRepo := newTestService(t, wallets, pres)

	b := createConfirmed(t, svc, 10)
	if _, err := svc.MarkInCall(context.Background(), b.ID); err != nil {
		t.Fatalf("mark in call: %v", err)
	}

	got, err := svc.FinalizeCall(context.Background(), b.ID, "caller", 185)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	// 185s is 3m05s -> 4 started minutes at 5000.
	if got.CostMinor != 20000 {
		t.Fatalf("expected 20000, got %d", got.CostMinor)
	}
	if got.CallSeconds != 185 || got.EndedBy != "caller" {
		t.Fatalf("unexpected outcome: %+v", got)
	}
	if wallets.balances["cust-1"] != 80000 {
		t.Fatalf("expected customer debited to 80000, got %d", wallets.balances["cust-1"])
	}
	if wallets.balances["comp-1"] != 20000 {
		t.Fatalf("expected companion paid 20000, got %d", wallets.balances["comp-1"])
	}
	if pres.cleared != 1 {
		t.Fatalf("expected presence cleared once, got %d", pres.cleared)
	}

	foundEnd := false
	for _, e := range auditRepo.Events() {
		if e.Type == audit.EventTypeCallEnded && e.BookingID == b.ID {
			foundEnd = true
		}
	}
	if !foundEnd {
		t.Fatalf("expected call_ended audit event")
	}
}

func TestFinalizeCallIdempotent(t *testing.T) {
	wallets := newFakeWallets()
	wallets.balances["cust-1"] = 100000
	svc, _ := newTestService(t, wallets, &fakePresence{})

	b := createConfirmed(t, svc, 10)

	first, err := svc.FinalizeCall(context.Background(), b.ID, "caller", 60)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	second, err := svc.FinalizeCall(context.Background(), b.ID, "callee", 999)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if second.CostMinor != first.CostMinor || second.CallSeconds != first.CallSeconds || second.EndedBy != "caller" {
		t.Fatalf("expected second finalize to be a no-op, got %+v", second)
	}
	if wallets.debits != 1 {
		t.Fatalf("expected exactly one debit, got %d", wallets.debits)
	}
}

func TestFinalizeCapsAtPurchasedMinutes(t *testing.T) {
	wallets := newFakeWallets()
	wallets.balances["cust-1"] = 100000
	svc, _ := newTestService(t, wallets, &fakePresence{})

	b := createConfirmed(t, svc, 5)

	got, err := svc.FinalizeCall(context.Background(), b.ID, "callee", 400)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got.CallSeconds != 300 {
		t.Fatalf("expected 300s cap, got %d", got.CallSeconds)
	}
	if got.CostMinor != 25000 {
		t.Fatalf("expected 25000, got %d", got.CostMinor)
	}
}

func TestFinalizeCompletesEvenIfDebitFails(t *testing.T) {
	wallets := newFakeWallets() // zero balance, debit fails
	svc, _ := newTestService(t, wallets, &fakePresence{})

	b := createConfirmed(t, svc, 10)

	got, err := svc.FinalizeCall(context.Background(), b.ID, "caller", 60)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed despite debit failure, got %s", got.Status)
	}
	if wallets.credits != 0 {
		t.Fatalf("payout must not happen when the debit failed")
	}
}

func TestFinalizeZeroSecondsChargesNothing(t *testing.T) {
	wallets := newFakeWallets()
	svc, _ := newTestService(t, wallets, &fakePresence{})

	b := createConfirmed(t, svc, 10)

	got, err := svc.FinalizeCall(context.Background(), b.ID, "caller", 0)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got.CostMinor != 0 || wallets.debits != 0 {
		t.Fatalf("expected no charge for a call that never connected")
	}
}

func TestCallStatusGating(t *testing.T) {
	pres := &fakePresence{status: presence.Status{RemoteAddress: "addr-7", Accepted: true}}
	svc, _ := newTestService(t, newFakeWallets(), pres)

	b, _ := svc.Create(context.Background(), "cust-1", CreateRequest{
		CompanionID: "comp-1", Service: pricing.ServiceVideoCall, Minutes: 10,
	})

	// Pending bookings have no call status yet.
	if _, err := svc.CallStatus(context.Background(), "cust-1", b.ID); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.Confirm(context.Background(), "comp-1", b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := svc.CallStatus(context.Background(), "stranger", b.ID); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	st, err := svc.CallStatus(context.Background(), "cust-1", b.ID)
	if err != nil {
		t.Fatalf("call status: %v", err)
	}
	if st.RemoteAddress != "addr-7" || !st.Accepted {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestMarkInCallIdempotent(t *testing.T) {
	svc, _ := newTestService(t, newFakeWallets(), &fakePresence{})
	b := createConfirmed(t, svc, 10)

	first, err := svc.MarkInCall(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("mark in call: %v", err)
	}
	second, err := svc.MarkInCall(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("second mark in call: %v", err)
	}
	if first.Status != StatusInCall || second.Status != StatusInCall {
		t.Fatalf("expected in_call")
	}
}
