// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/core/errs"
	"github.com/example/flotilla/internal/ports/secondary"
)

// CheckpointBackupAdapter implements secondary.CheckpointBackup as one JSON
// file per checkpoint: <baseDir>/<checkpoint-id>.json.
type CheckpointBackupAdapter struct {
	baseDir string
}

// NewCheckpointBackupAdapter creates a new filesystem checkpoint mirror.
// If baseDir is empty, defaults to ~/.flotilla/checkpoints.
func NewCheckpointBackupAdapter(baseDir string) (*CheckpointBackupAdapter, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".flotilla", "checkpoints")
	}
	return &CheckpointBackupAdapter{baseDir: baseDir}, nil
}

// checkpointFile is the on-disk layout of a mirrored checkpoint.
type checkpointFile struct {
	ID              string                       `json:"id"`
	MissionID       string                       `json:"mission_id"`
	CreatedAt       time.Time                    `json:"created_at"`
	Trigger         string                       `json:"trigger"`
	TriggerDetails  string                       `json:"trigger_details,omitempty"`
	ProgressPercent int                          `json:"progress_percent"`
	Sorties         []checkpoint.SortieSnapshot  `json:"sorties_snapshot"`
	Locks           []checkpoint.LockSnapshot    `json:"active_locks_snapshot"`
	Messages        []checkpoint.MessageSnapshot `json:"pending_messages_snapshot"`
	Context         checkpoint.RecoveryContext   `json:"recovery_context"`
	CreatedBy       string                       `json:"created_by,omitempty"`
	SchemaVersion   int                          `json:"schema_version"`
	ConsumedAt      *time.Time                   `json:"consumed_at,omitempty"`
}

// Write mirrors a checkpoint, replacing any previous copy. The file is
// written to a temp name and renamed so readers never see a partial file.
func (a *CheckpointBackupAdapter) Write(ctx context.Context, cp *secondary.CheckpointRecord) error {
	if !checkpoint.IsID(cp.ID) {
		return fmt.Errorf("refusing to mirror checkpoint with invalid id %q", cp.ID)
	}
	if err := os.MkdirAll(a.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	data, err := json.MarshalIndent(checkpointFile{
		ID:              cp.ID,
		MissionID:       cp.MissionID,
		CreatedAt:       cp.CreatedAt,
		Trigger:         cp.Trigger,
		TriggerDetails:  cp.TriggerDetails,
		ProgressPercent: cp.ProgressPercent,
		Sorties:         cp.Sorties,
		Locks:           cp.Locks,
		Messages:        cp.Messages,
		Context:         cp.Context,
		CreatedBy:       cp.CreatedBy,
		SchemaVersion:   cp.SchemaVersion,
		ConsumedAt:      cp.ConsumedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(a.baseDir, cp.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync backup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close backup file: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.path(cp.ID)); err != nil {
		return fmt.Errorf("failed to install backup file: %w", err)
	}
	return nil
}

// Read loads a mirrored checkpoint by ID.
func (a *CheckpointBackupAdapter) Read(ctx context.Context, id string) (*secondary.CheckpointRecord, error) {
	if !checkpoint.IsID(id) {
		return nil, errs.NotFound("checkpoint", id)
	}
	data, err := os.ReadFile(a.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.NotFound("checkpoint", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	var f checkpointFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse backup file %s: %w", a.path(id), err)
	}
	return &secondary.CheckpointRecord{
		ID:              f.ID,
		MissionID:       f.MissionID,
		CreatedAt:       f.CreatedAt,
		Trigger:         f.Trigger,
		TriggerDetails:  f.TriggerDetails,
		ProgressPercent: f.ProgressPercent,
		Sorties:         f.Sorties,
		Locks:           f.Locks,
		Messages:        f.Messages,
		Context:         f.Context,
		CreatedBy:       f.CreatedBy,
		SchemaVersion:   f.SchemaVersion,
		ConsumedAt:      f.ConsumedAt,
	}, nil
}

// Remove deletes mirrored checkpoints; missing files are ignored.
func (a *CheckpointBackupAdapter) Remove(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if !checkpoint.IsID(id) {
			continue
		}
		if err := os.Remove(a.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove backup file: %w", err)
		}
	}
	return nil
}

// BaseDir returns the directory holding the mirror files.
func (a *CheckpointBackupAdapter) BaseDir() string {
	return a.baseDir
}

func (a *CheckpointBackupAdapter) path(id string) string {
	return filepath.Join(a.baseDir, id+".json")
}

// Ensure CheckpointBackupAdapter implements the interface
var _ secondary.CheckpointBackup = (*CheckpointBackupAdapter)(nil)
