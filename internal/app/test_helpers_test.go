package app

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/flotilla/internal/adapters/sqlite"
	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/event"
	"github.com/example/flotilla/internal/db"
	"github.com/example/flotilla/internal/ports/primary"
	"github.com/example/flotilla/internal/ports/secondary"
)

// testClock is a settable clock shared by every service in a testEnv.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Ensure mockBackup implements the interface
var _ secondary.CheckpointBackup = (*mockBackup)(nil)

// mockBackup implements secondary.CheckpointBackup in memory.
type mockBackup struct {
	mu       sync.Mutex
	files    map[string]*secondary.CheckpointRecord
	writeErr error
}

func newMockBackup() *mockBackup {
	return &mockBackup{files: make(map[string]*secondary.CheckpointRecord)}
}

func (m *mockBackup) Write(ctx context.Context, cp *secondary.CheckpointRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	copied := *cp
	m.files[cp.ID] = &copied
	return nil
}

func (m *mockBackup) Read(ctx context.Context, id string) (*secondary.CheckpointRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.files[id]
	if !ok {
		return nil, errs.NotFound("checkpoint", id)
	}
	copied := *cp
	return &copied, nil
}

func (m *mockBackup) Remove(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.files, id)
	}
	return nil
}

func (m *mockBackup) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[id]
	return ok
}

// testEnv wires every service against one temp-file database.
type testEnv struct {
	conn        *sql.DB
	store       *sqlite.Store
	clock       *testClock
	backup      *mockBackup
	events      *EventServiceImpl
	missions    *MissionServiceImpl
	locks       *LockServiceImpl
	messages    *MessageServiceImpl
	checkpoints *CheckpointServiceImpl
	recovery    *RecoveryServiceImpl
	restore     *RestoreServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "flotilla.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	logger := zerolog.Nop()
	store := sqlite.NewStore(conn)
	env := &testEnv{
		conn:        conn,
		store:       store,
		clock:       newTestClock(),
		backup:      newMockBackup(),
		events:      NewEventService(store, logger),
		missions:    NewMissionService(store, logger),
		locks:       NewLockService(store, 30*time.Minute, logger),
		messages:    NewMessageService(store, logger),
		recovery:    NewRecoveryService(store, 300000*time.Millisecond, logger),
	}
	env.checkpoints = NewCheckpointService(store, env.backup, []int{25, 50, 75}, logger)
	env.restore = NewRestoreService(store, env.backup, false, logger)

	env.events.now = env.clock.Now
	env.missions.now = env.clock.Now
	env.locks.now = env.clock.Now
	env.messages.now = env.clock.Now
	env.checkpoints.now = env.clock.Now
	env.recovery.now = env.clock.Now
	env.restore.now = env.clock.Now
	return env
}

// startedMission creates a mission and moves it to in_progress.
func (e *testEnv) startedMission(t *testing.T, title string) *primary.Mission {
	t.Helper()
	ctx := context.Background()
	m, err := e.missions.CreateMission(ctx, primary.CreateMissionRequest{Title: title})
	if err != nil {
		t.Fatalf("CreateMission failed: %v", err)
	}
	m, err = e.missions.ApplyMission(ctx, m.ID, &event.MissionStartedPayload{})
	if err != nil {
		t.Fatalf("start mission failed: %v", err)
	}
	return m
}

// startedSortie creates a sortie under missionID and starts it.
func (e *testEnv) startedSortie(t *testing.T, missionID, title string, tasks ...string) *primary.Sortie {
	t.Helper()
	ctx := context.Background()
	s, err := e.missions.CreateSortie(ctx, primary.CreateSortieRequest{MissionID: missionID, Title: title, Tasks: tasks})
	if err != nil {
		t.Fatalf("CreateSortie failed: %v", err)
	}
	s, err = e.missions.ApplySortie(ctx, s.ID, &event.SortieStartedPayload{AgentID: "agent-" + s.ID})
	if err != nil {
		t.Fatalf("start sortie failed: %v", err)
	}
	return s
}

// setProgress appends mission.progressed.
func (e *testEnv) setProgress(t *testing.T, missionID string, percent int) {
	t.Helper()
	if _, err := e.missions.ApplyMission(context.Background(), missionID, &event.MissionProgressedPayload{ProgressPercent: percent}); err != nil {
		t.Fatalf("progress failed: %v", err)
	}
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error matching %v, got %v", target, err)
	}
}
