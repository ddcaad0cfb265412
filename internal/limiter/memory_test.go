package limiter

import (
	"context"
	"testing"
	"time"
)

func TestMemoryControl_BlockAndExpiry(t *testing.T) {
	c := NewMemoryControl(30, 10)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.BlockSession(ctx, "s1", 5*time.Minute); err != nil {
		t.Fatalf("BlockSession() error = %v", err)
	}

	blocked, err := c.IsBlocked(ctx, "s1")
	if err != nil || !blocked {
		t.Fatalf("IsBlocked() = %v, %v; want true, nil", blocked, err)
	}

	// Past the deadline the block lifts on its own.
	now = now.Add(6 * time.Minute)
	blocked, _ = c.IsBlocked(ctx, "s1")
	if blocked {
		t.Error("IsBlocked() after expiry = true, want false")
	}
}

func TestMemoryControl_BlockNeverShortens(t *testing.T) {
	c := NewMemoryControl(30, 10)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.BlockSession(ctx, "s1", time.Hour)
	c.Cooldown(ctx, "s1", time.Minute) // shorter; must not override

	now = now.Add(10 * time.Minute)
	blocked, _ := c.IsBlocked(ctx, "s1")
	if !blocked {
		t.Error("a later shorter cooldown shortened an existing block")
	}
}

func TestMemoryControl_UnknownSessionNotBlocked(t *testing.T) {
	c := NewMemoryControl(30, 10)
	blocked, err := c.IsBlocked(context.Background(), "never-seen")
	if err != nil || blocked {
		t.Errorf("IsBlocked(unknown) = %v, %v; want false, nil", blocked, err)
	}
}

func TestMemoryControl_AllowMessageBurst(t *testing.T) {
	c := NewMemoryControl(30, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.AllowMessage(ctx, "s1")
		if err != nil || !ok {
			t.Fatalf("AllowMessage() call %d = %v, %v; want true, nil", i+1, ok, err)
		}
	}
	if ok, _ := c.AllowMessage(ctx, "s1"); ok {
		t.Error("AllowMessage() beyond burst = true, want false")
	}

	// Budgets are per-session.
	if ok, _ := c.AllowMessage(ctx, "s2"); !ok {
		t.Error("AllowMessage() for a fresh session = false, want true")
	}
}
