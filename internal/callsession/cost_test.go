package callsession

import "testing"

func TestCost(t *testing.T) {
	if got := Cost(0, 5000); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := Cost(1, 5000); got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}
	if got := Cost(60, 5000); got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}
	if got := Cost(61, 5000); got != 10000 {
		t.Fatalf("expected 10000, got %d", got)
	}
	if got := Cost(125, 5000); got != 15000 {
		t.Fatalf("expected 15000, got %d", got)
	}
}

func TestUsedMinutes(t *testing.T) {
	cases := []struct {
		sec  int
		want int
	}{
		{-5, 0},
		{0, 0},
		{1, 1},
		{59, 1},
		{60, 1},
		{61, 2},
		{300, 5},
	}
	for _, c := range cases {
		if got := UsedMinutes(c.sec); got != c.want {
			t.Fatalf("UsedMinutes(%d): expected %d, got %d", c.sec, c.want, got)
		}
	}
}

func TestRemainingMinutesNeverNegative(t *testing.T) {
	if got := RemainingMinutes(0, 10); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := RemainingMinutes(300, 10); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	// usedMinutes = 11 against a budget of 10 floors at zero.
	if got := RemainingMinutes(660, 10); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := RemainingMinutes(6000, 10); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
