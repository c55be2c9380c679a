package lock

import (
	"regexp"
	"testing"
	"time"
)

func TestIsActive(t *testing.T) {
	acquired := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	released := acquired.Add(time.Minute)

	tests := []struct {
		name        string
		state       State
		now         time.Time
		wantActive  bool
		wantExpired bool
	}{
		{
			name:       "fresh lock",
			state:      State{AcquiredAt: acquired, Timeout: 5 * time.Minute},
			now:        acquired.Add(time.Minute),
			wantActive: true,
		},
		{
			name:        "exactly at timeout is expired",
			state:       State{AcquiredAt: acquired, Timeout: 5 * time.Minute},
			now:         acquired.Add(5 * time.Minute),
			wantExpired: true,
		},
		{
			name:  "released lock",
			state: State{AcquiredAt: acquired, ReleasedAt: &released, Timeout: 5 * time.Minute},
			now:   acquired.Add(2 * time.Minute),
		},
		{
			name:  "released and past timeout is not expired",
			state: State{AcquiredAt: acquired, ReleasedAt: &released, Timeout: time.Minute},
			now:   acquired.Add(time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsActive(tt.state, tt.now); got != tt.wantActive {
				t.Errorf("IsActive() = %v, want %v", got, tt.wantActive)
			}
			if got := IsExpired(tt.state, tt.now); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestCanRelease(t *testing.T) {
	tests := []struct {
		name        string
		ctx         ReleaseContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "holder releases",
			ctx:         ReleaseContext{LockID: "lock-1", HolderID: "h1", CallerID: "h1"},
			wantAllowed: true,
		},
		{
			name:       "other caller",
			ctx:        ReleaseContext{LockID: "lock-1", HolderID: "h1", CallerID: "h2"},
			wantReason: "Lock lock-1 is held by h1, not h2",
		},
		{
			name:       "already released",
			ctx:        ReleaseContext{LockID: "lock-1", HolderID: "h1", CallerID: "h1", Released: true},
			wantReason: "Lock lock-1 is already released",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanRelease(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanRelease() Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("CanRelease() Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestNewID(t *testing.T) {
	pattern := regexp.MustCompile(`^lock-[0-9a-f]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if !pattern.MatchString(id) {
			t.Fatalf("NewID() = %q, does not match %s", id, pattern)
		}
		seen[id] = true
	}
	if len(seen) < 95 {
		t.Errorf("NewID() produced too many collisions: %d unique of 100", len(seen))
	}
}

func TestNormalizeTimeout(t *testing.T) {
	if got := NormalizeTimeout(0); got != DefaultTimeout {
		t.Errorf("NormalizeTimeout(0) = %v, want %v", got, DefaultTimeout)
	}
	if got := NormalizeTimeout(time.Second); got != time.Second {
		t.Errorf("NormalizeTimeout(1s) = %v, want 1s", got)
	}
}
