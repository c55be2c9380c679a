package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/ports/primary"
)

func newTestWatcher(env *testEnv, cfg WatcherConfig) *Watcher {
	return NewWatcher(env.missions, env.locks, env.checkpoints, env.recovery, cfg, zerolog.Nop())
}

func TestWatcher_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.startedMission(t, "Watched")
	env.setProgress(t, m.ID, 55)
	lock, err := env.locks.Acquire(ctx, primary.AcquireLockRequest{ResourceKey: "/tmp/x", HolderID: "h1", Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	env.clock.Advance(2 * time.Minute)

	w := newTestWatcher(env, WatcherConfig{Retention: checkpoint.RetentionPolicy{MaxPerMission: 5}})
	if err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	got, err := env.locks.Get(ctx, lock.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ReleaseReason != "expired" {
		t.Errorf("expired lock not swept: %+v", got)
	}

	list, err := env.checkpoints.List(ctx, primary.CheckpointFilters{MissionID: m.ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].Trigger != checkpoint.TriggerProgress {
		t.Errorf("expected one progress checkpoint, got %d", len(list))
	}

	if err := w.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}
	list, err = env.checkpoints.List(ctx, primary.CheckpointFilters{MissionID: m.ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("second pass created more checkpoints: %d", len(list))
	}
}

func TestWatcher_Run_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWatcher(env, WatcherConfig{ScanInterval: time.Hour, PruneInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
