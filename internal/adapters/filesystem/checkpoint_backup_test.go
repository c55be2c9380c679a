package filesystem_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/example/flotilla/internal/adapters/filesystem"
	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/ports/secondary"
)

func TestCheckpointBackupAdapter_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	adapter, err := filesystem.NewCheckpointBackupAdapter(tmpDir)
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	ctx := context.Background()

	at := time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC)
	cp := &secondary.CheckpointRecord{
		ID:              "chk-0a1b2c3d",
		MissionID:       "MISSION-001",
		CreatedAt:       at,
		Trigger:         "progress",
		TriggerDetails:  "threshold:50",
		ProgressPercent: 50,
		Sorties:         []checkpoint.SortieSnapshot{{ID: "SORTIE-001", MissionID: "MISSION-001", Title: "API", Status: "in_progress", UpdatedAt: at}},
		Locks:           []checkpoint.LockSnapshot{{ID: "lock-00000001", ResourceKey: "/a.txt", HolderID: "SORTIE-001", AcquiredAt: at, TimeoutMs: 1000}},
		Messages:        []checkpoint.MessageSnapshot{},
		Context:         checkpoint.RecoveryContext{Summary: "halfway", NextSteps: []string{}, Blockers: []string{}, FilesModified: []string{}},
		SchemaVersion:   checkpoint.SchemaVersion,
	}

	if err := adapter.Write(ctx, cp); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "chk-0a1b2c3d.json")); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}

	got, err := adapter.Read(ctx, "chk-0a1b2c3d")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(got, cp) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, cp)
	}

	// Overwrite replaces the file in place.
	consumed := at.Add(time.Hour)
	cp.ConsumedAt = &consumed
	if err := adapter.Write(ctx, cp); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	got, _ = adapter.Read(ctx, "chk-0a1b2c3d")
	if got.ConsumedAt == nil || !got.ConsumedAt.Equal(consumed) {
		t.Errorf("ConsumedAt = %v", got.ConsumedAt)
	}

	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 1 {
		t.Errorf("expected only the backup file, found %d entries", len(entries))
	}

	if err := adapter.Remove(ctx, "chk-0a1b2c3d", "chk-ffffffff"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := adapter.Read(ctx, "chk-0a1b2c3d"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Read after Remove = %v, want not found", err)
	}
}

func TestCheckpointBackupAdapter_RejectsBadIDs(t *testing.T) {
	adapter, _ := filesystem.NewCheckpointBackupAdapter(t.TempDir())
	ctx := context.Background()

	if err := adapter.Write(ctx, &secondary.CheckpointRecord{ID: "../escape"}); err == nil {
		t.Error("Write accepted a path-like id")
	}
	if _, err := adapter.Read(ctx, "../../etc/passwd"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Read(bad id) = %v, want not found", err)
	}
}

func TestCheckpointBackupAdapter_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	adapter, _ := filesystem.NewCheckpointBackupAdapter(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "chk-00000001.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := adapter.Read(context.Background(), "chk-00000001")
	if err == nil || errors.Is(err, errs.ErrNotFound) {
		t.Errorf("corrupt file should be a parse error, got %v", err)
	}
}
