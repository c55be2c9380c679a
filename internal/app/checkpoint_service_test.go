package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/core/event"
	"github.com/example/flotilla/internal/ctxutil"
	"github.com/example/flotilla/internal/ports/primary"
)

func TestCheckpointService_Create_CapturesMission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.startedMission(t, "Refactor parser")
	s := env.startedSortie(t, m.ID, "Parser", "lex", "parse")
	if _, err := env.missions.ApplySortie(ctx, s.ID, &event.SortieProgressedPayload{
		ProgressPercent: 50,
		FilesModified:   []string{"/a.txt", "/b.txt"},
		TasksDone:       []string{"lex"},
	}); err != nil {
		t.Fatalf("ApplySortie failed: %v", err)
	}
	env.setProgress(t, m.ID, 30)
	if _, err := env.locks.Acquire(ctx, primary.AcquireLockRequest{ResourceKey: "/a.txt", HolderID: s.ID, Purpose: "edit"}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	intruder, err := env.locks.Acquire(ctx, primary.AcquireLockRequest{ResourceKey: "/b.txt", HolderID: "intruder"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := env.messages.Send(ctx, primary.SendMessageRequest{StreamID: s.ID, Sender: m.ID, Payload: "keep going"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	env.clock.Advance(90 * time.Second)
	cp, err := env.checkpoints.Create(ctxutil.WithActorID(ctx, "ops"), primary.CreateCheckpointRequest{
		MissionID: m.ID,
		Blockers:  []string{"waiting on review"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !checkpoint.IsID(cp.ID) {
		t.Errorf("ID = %q", cp.ID)
	}
	if cp.Trigger != checkpoint.TriggerManual || cp.ProgressPercent != 30 || cp.CreatedBy != "ops" {
		t.Errorf("header = %s %d%% by %s", cp.Trigger, cp.ProgressPercent, cp.CreatedBy)
	}
	if cp.SchemaVersion != checkpoint.SchemaVersion {
		t.Errorf("SchemaVersion = %d", cp.SchemaVersion)
	}
	if len(cp.Sorties) != 1 || cp.Sorties[0].ProgressPercent != 50 {
		t.Errorf("Sorties = %+v", cp.Sorties)
	}
	if len(cp.Locks) != 1 || cp.Locks[0].ResourceKey != "/a.txt" {
		t.Errorf("Locks = %+v", cp.Locks)
	}
	if len(cp.Messages) != 1 || cp.Messages[0].Payload != "keep going" {
		t.Errorf("Messages = %+v", cp.Messages)
	}

	rc := cp.Context
	if rc.LastAction != "Progress 30%" {
		t.Errorf("LastAction = %q", rc.LastAction)
	}
	if len(rc.NextSteps) != 1 || rc.NextSteps[0] != s.ID+": parse" {
		t.Errorf("NextSteps = %v", rc.NextSteps)
	}
	wantConflict := "blocker: /b.txt held by intruder (lock " + intruder.ID + ")"
	if len(rc.Blockers) != 2 || rc.Blockers[0] != "waiting on review" || rc.Blockers[1] != wantConflict {
		t.Errorf("Blockers = %v", rc.Blockers)
	}
	if len(rc.FilesModified) != 2 {
		t.Errorf("FilesModified = %v", rc.FilesModified)
	}
	if rc.ElapsedMs != 90000 {
		t.Errorf("ElapsedMs = %d, want 90000", rc.ElapsedMs)
	}

	if !env.backup.has(cp.ID) {
		t.Error("checkpoint was not mirrored to the backup")
	}

	recent, err := env.events.ListRecent(ctx, m.ID, 1)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	marker, ok := recent[0].Payload.(*event.CheckpointCreatedPayload)
	if !ok || marker.CheckpointID != cp.ID {
		t.Errorf("latest event = %s, want checkpoint.created for %s", recent[0].Type, cp.ID)
	}
}

func TestCheckpointService_Create_Errors(t *testing.T) {
	env := newTestEnv(t)
	m := env.startedMission(t, "Errors")

	tests := []struct {
		name   string
		req    primary.CreateCheckpointRequest
		target error
	}{
		{"missing mission id", primary.CreateCheckpointRequest{}, errs.ErrValidation},
		{"unknown trigger", primary.CreateCheckpointRequest{MissionID: m.ID, Trigger: "cosmic-ray"}, errs.ErrValidation},
		{"unknown mission", primary.CreateCheckpointRequest{MissionID: "MISSION-404"}, errs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.checkpoints.Create(context.Background(), tt.req)
			assertErrorIs(t, err, tt.target)
		})
	}
}

func TestCheckpointService_Create_BackupFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	m := env.startedMission(t, "Flaky disk")
	env.backup.writeErr = errors.New("disk full")

	cp, err := env.checkpoints.Create(context.Background(), primary.CreateCheckpointRequest{MissionID: m.ID})
	if err != nil {
		t.Fatalf("Create should succeed when only the mirror fails: %v", err)
	}
	if _, err := env.checkpoints.Get(context.Background(), cp.ID); err != nil {
		t.Errorf("checkpoint missing from store: %v", err)
	}
}

func TestCheckpointService_CreateOnError(t *testing.T) {
	env := newTestEnv(t)
	m := env.startedMission(t, "Crashy")

	cp, err := env.checkpoints.CreateOnError(context.Background(), m.ID, errors.New("agent crashed"))
	if err != nil {
		t.Fatalf("CreateOnError failed: %v", err)
	}
	if cp.Trigger != checkpoint.TriggerError || cp.TriggerDetails != "agent crashed" {
		t.Errorf("trigger = %s %q", cp.Trigger, cp.TriggerDetails)
	}
}

func TestCheckpointService_CheckProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.startedMission(t, "Thresholds")

	cp, err := env.checkpoints.CheckProgress(ctx, m.ID)
	if err != nil || cp != nil {
		t.Fatalf("expected no checkpoint at 0%%, got %v, %v", cp, err)
	}

	env.setProgress(t, m.ID, 50)
	cp, err = env.checkpoints.CheckProgress(ctx, m.ID)
	if err != nil {
		t.Fatalf("CheckProgress failed: %v", err)
	}
	if cp == nil {
		t.Fatal("expected a checkpoint at 50%")
	}
	if cp.Trigger != checkpoint.TriggerProgress || cp.TriggerDetails != "threshold:50" {
		t.Errorf("trigger = %s %q", cp.Trigger, cp.TriggerDetails)
	}

	again, err := env.checkpoints.CheckProgress(ctx, m.ID)
	if err != nil || again != nil {
		t.Errorf("second check should be a no-op, got %v, %v", again, err)
	}

	env.setProgress(t, m.ID, 60)
	if cp, _ := env.checkpoints.CheckProgress(ctx, m.ID); cp != nil {
		t.Errorf("60%% crosses nothing new, got %s", cp.TriggerDetails)
	}

	list, err := env.checkpoints.List(ctx, primary.CheckpointFilters{MissionID: m.ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d progress checkpoints, want exactly 1", len(list))
	}

	env.setProgress(t, m.ID, 80)
	cp, err = env.checkpoints.CheckProgress(ctx, m.ID)
	if err != nil || cp == nil || cp.TriggerDetails != "threshold:75" {
		t.Errorf("expected threshold:75 checkpoint, got %v, %v", cp, err)
	}
}

func TestCheckpointService_CheckProgress_OnlyInProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.startedMission(t, "Paused")
	env.setProgress(t, m.ID, 90)
	if _, err := env.missions.ApplyMission(ctx, m.ID, &event.MissionPausedPayload{}); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	cp, err := env.checkpoints.CheckProgress(ctx, m.ID)
	if err != nil || cp != nil {
		t.Errorf("paused mission should not be checkpointed, got %v, %v", cp, err)
	}
}

func TestCheckpointService_Get_FallsBackToBackup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.startedMission(t, "Fallback")

	cp, err := env.checkpoints.Create(ctx, primary.CreateCheckpointRequest{MissionID: m.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = env.checkpoints.Get(ctx, "chk-00000000")
	assertErrorIs(t, err, errs.ErrNotFound)

	env.conn.Close()
	got, err := env.checkpoints.Get(ctx, cp.ID)
	if err != nil {
		t.Fatalf("Get should fall back to the backup: %v", err)
	}
	if got.MissionID != m.ID {
		t.Errorf("MissionID = %s", got.MissionID)
	}
}

func TestCheckpointService_Prune(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	active := env.startedMission(t, "Active")
	done := env.startedMission(t, "Done")

	var activeIDs, doneIDs []string
	for i := 0; i < 3; i++ {
		env.clock.Advance(time.Hour)
		cp, err := env.checkpoints.Create(ctx, primary.CreateCheckpointRequest{MissionID: active.ID})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		activeIDs = append(activeIDs, cp.ID)

		cp, err = env.checkpoints.Create(ctx, primary.CreateCheckpointRequest{MissionID: done.ID})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		doneIDs = append(doneIDs, cp.ID)
	}
	if _, err := env.missions.ApplyMission(ctx, done.ID, &event.MissionCompletedPayload{}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	env.clock.Advance(10 * 24 * time.Hour)
	result, err := env.checkpoints.Prune(ctx, checkpoint.RetentionPolicy{MaxAge: 24 * time.Hour})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(result.Deleted) != 5 {
		t.Errorf("deleted %d, want 5: %v", len(result.Deleted), result.Deleted)
	}

	newest := activeIDs[len(activeIDs)-1]
	remaining, err := env.checkpoints.List(ctx, primary.CheckpointFilters{IncludeConsumed: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != newest {
		t.Errorf("remaining = %v, want only %s", remaining, newest)
	}
	if !env.backup.has(newest) {
		t.Error("kept checkpoint lost its backup")
	}
	pruned := append([]string{activeIDs[0], activeIDs[1]}, doneIDs...)
	for _, id := range pruned {
		if env.backup.has(id) {
			t.Errorf("backup of pruned %s still present", id)
		}
	}
}
