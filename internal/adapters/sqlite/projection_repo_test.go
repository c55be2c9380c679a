package sqlite_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/example/flotilla/internal/adapters/sqlite"
	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/ports/secondary"
)

func TestMissionRepository_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewMissionRepository(db)
	ctx := context.Background()

	started := baseTime.Add(time.Minute)
	m := &secondary.MissionRecord{
		ID:              "MISSION-001",
		Title:           "Ship billing",
		Description:     "Invoices v2",
		Status:          "in_progress",
		ProgressPercent: 40,
		Tasks:           []string{"api", "ui"},
		Metadata:        map[string]string{"team": "payments"},
		CreatedAt:       baseTime,
		UpdatedAt:       started,
		StartedAt:       &started,
		LastSequence:    3,
	}
	if err := repo.Save(ctx, m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "MISSION-001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, m)
	}

	// Upsert keeps created_at from the first write.
	m2 := *m
	m2.CreatedAt = baseTime.Add(time.Hour)
	m2.Status = "completed"
	m2.ProgressPercent = 100
	if err := repo.Save(ctx, &m2); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, "MISSION-001")
	if !got.CreatedAt.Equal(baseTime) {
		t.Errorf("created_at changed to %v", got.CreatedAt)
	}
	if got.Status != "completed" || got.ProgressPercent != 100 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestMissionRepository_GetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewMissionRepository(db)

	_, err := repo.GetByID(context.Background(), "MISSION-999")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestMissionRepository_ListAndNextID(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewMissionRepository(db)
	ctx := context.Background()

	id, err := repo.GetNextID(ctx)
	if err != nil {
		t.Fatalf("GetNextID failed: %v", err)
	}
	if id != "MISSION-001" {
		t.Errorf("first id = %s", id)
	}

	seedMission(t, db, "MISSION-001", "in_progress")
	seedMission(t, db, "MISSION-002", "completed")
	seedMission(t, db, "MISSION-010", "in_progress")

	id, _ = repo.GetNextID(ctx)
	if id != "MISSION-011" {
		t.Errorf("next id = %s, want MISSION-011", id)
	}

	active, err := repo.List(ctx, secondary.MissionFilters{Status: "in_progress"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(active) != 2 || active[0].ID != "MISSION-001" || active[1].ID != "MISSION-010" {
		t.Errorf("List(in_progress) = %v", active)
	}

	limited, _ := repo.List(ctx, secondary.MissionFilters{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("List(limit=1) returned %d", len(limited))
	}
}

func TestSortieRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewSortieRepository(db)
	ctx := context.Background()

	s := &secondary.SortieRecord{
		ID:              "SORTIE-001",
		MissionID:       "MISSION-001",
		Title:           "API",
		AgentID:         "agent-7",
		Status:          "in_progress",
		ProgressPercent: 10,
		Tasks:           []string{"routes", "tests"},
		TasksDone:       []string{"routes"},
		FilesModified:   []string{"/api.go"},
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
		LastSequence:    2,
	}
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	seedSortie(t, db, "SORTIE-002", "MISSION-001")
	seedSortie(t, db, "SORTIE-003", "MISSION-002")

	got, err := repo.GetByID(ctx, "SORTIE-001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, s)
	}

	list, err := repo.ListByMission(ctx, "MISSION-001")
	if err != nil {
		t.Fatalf("ListByMission failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListByMission returned %d sorties", len(list))
	}

	id, _ := repo.GetNextID(ctx)
	if id != "SORTIE-004" {
		t.Errorf("GetNextID = %s, want SORTIE-004", id)
	}

	if _, err := repo.GetByID(ctx, "SORTIE-404"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
