// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/flotilla/internal/adapters/sqlite"
	"github.com/example/flotilla/internal/db"
	"github.com/example/flotilla/internal/ports/secondary"
)

// baseTime is the fixed clock used by repository tests.
var baseTime = time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all repository tests.
// A single connection keeps every query on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedMission saves a mission projection row and returns its ID.
func seedMission(t *testing.T, testDB *sql.DB, id, status string) string {
	t.Helper()
	err := sqlite.NewMissionRepository(testDB).Save(context.Background(), &secondary.MissionRecord{
		ID:        id,
		Title:     "Mission " + id,
		Status:    status,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	})
	if err != nil {
		t.Fatalf("failed to seed mission: %v", err)
	}
	return id
}

// seedSortie saves a sortie projection row and returns its ID.
func seedSortie(t *testing.T, testDB *sql.DB, id, missionID string) string {
	t.Helper()
	err := sqlite.NewSortieRepository(testDB).Save(context.Background(), &secondary.SortieRecord{
		ID:        id,
		MissionID: missionID,
		Title:     "Sortie " + id,
		Status:    "in_progress",
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	})
	if err != nil {
		t.Fatalf("failed to seed sortie: %v", err)
	}
	return id
}

// seedEvent inserts an event and returns its sequence.
func seedEvent(t *testing.T, testDB *sql.DB, streamType, streamID, eventType string, at time.Time) int64 {
	t.Helper()
	rec := &secondary.EventRecord{
		ID:            streamID + "-" + eventType + "-" + at.Format("150405.000000000"),
		StreamType:    streamType,
		StreamID:      streamID,
		EventType:     eventType,
		Payload:       []byte(`{}`),
		CorrelationID: "corr-1",
		OccurredAt:    at,
	}
	if err := sqlite.NewEventRepository(testDB).Insert(context.Background(), rec); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return rec.Sequence
}
