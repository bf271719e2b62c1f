package presence

import (
	"testing"
	"time"
)

func TestPresenceScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if registerScript == nil || heartbeatScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestPresenceKeys(t *testing.T) {
	if got := addrKey("bk-1", RoleCustomer); got != "call:presence:bk-1:customer" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := acceptKey("bk-1"); got != "call:presence:bk-1:accepted" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestNewServiceDefaultsTTL(t *testing.T) {
	s := NewService(nil, 0)
	if s.ttl != 30*time.Second {
		t.Fatalf("expected default ttl, got %v", s.ttl)
	}
}

func TestValidRole(t *testing.T) {
	if err := validRole(RoleCustomer); err != nil {
		t.Fatalf("customer should be valid: %v", err)
	}
	if err := validRole(RoleCompanion); err != nil {
		t.Fatalf("companion should be valid: %v", err)
	}
	if err := validRole("support"); err == nil {
		t.Fatalf("expected error for non-participant role")
	}
}
