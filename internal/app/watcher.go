package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/ports/primary"
)

// WatcherConfig holds the sweep intervals of the watcher.
type WatcherConfig struct {
	ScanInterval  time.Duration // stale scan, lock expiry and progress checks
	PruneInterval time.Duration
	Retention     checkpoint.RetentionPolicy
}

// Watcher runs the periodic maintenance jobs: stale mission scan, expired
// lock sweep, progress checkpoints and retention pruning.
type Watcher struct {
	missions    primary.MissionService
	locks       primary.LockService
	checkpoints primary.CheckpointService
	recovery    primary.RecoveryService
	cfg         WatcherConfig
	logger      zerolog.Logger
}

// NewWatcher creates a new Watcher with injected dependencies.
func NewWatcher(
	missions primary.MissionService,
	locks primary.LockService,
	checkpoints primary.CheckpointService,
	recoverySvc primary.RecoveryService,
	cfg WatcherConfig,
	logger zerolog.Logger,
) *Watcher {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = time.Hour
	}
	return &Watcher{
		missions:    missions,
		locks:       locks,
		checkpoints: checkpoints,
		recovery:    recoverySvc,
		cfg:         cfg,
		logger:      logger.With().Str("component", "watcher").Logger(),
	}
}

// Run schedules every job and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}

		jobs := []struct {
			name     string
			interval time.Duration
			run      func(context.Context) error
		}{
			{"stale-scan", w.cfg.ScanInterval, w.ScanStale},
			{"lock-expiry", w.cfg.ScanInterval, w.SweepLocks},
			{"progress", w.cfg.ScanInterval, w.CheckProgress},
			{"prune", w.cfg.PruneInterval, w.Prune},
		}
		for _, job := range jobs {
			_, err := scheduler.NewJob(
				gocron.DurationJob(job.interval),
				gocron.NewTask(func() {
					if err := job.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						w.logger.Error().Err(err).Str("job", job.name).Msg("job failed")
					}
				}),
				gocron.WithName(job.name),
				gocron.WithSingletonMode(gocron.LimitModeReschedule),
				gocron.WithStartAt(gocron.WithStartImmediately()),
			)
			if err != nil {
				return fmt.Errorf("failed to schedule %s: %w", job.name, err)
			}
		}

		w.logger.Info().Dur("scan_interval", w.cfg.ScanInterval).Dur("prune_interval", w.cfg.PruneInterval).Msg("watcher started")
		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	w.logger.Info().Msg("watcher stopped")
	return nil
}

// RunOnce runs every job a single time, in order, and returns the first error.
func (w *Watcher) RunOnce(ctx context.Context) error {
	for _, run := range []func(context.Context) error{w.SweepLocks, w.CheckProgress, w.ScanStale, w.Prune} {
		if err := run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ScanStale logs every stale mission and its restore path.
func (w *Watcher) ScanStale(ctx context.Context) error {
	candidates, err := w.recovery.FindStale(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to scan for stale missions: %w", err)
	}
	for _, c := range candidates {
		w.logger.Warn().
			Str("mission_id", c.MissionID).
			Str("checkpoint_id", c.CheckpointID).
			Str("action", c.Action).
			Dur("inactive", c.InactivityDuration).
			Msg("stale mission")
	}
	return nil
}

// SweepLocks releases timed-out locks.
func (w *Watcher) SweepLocks(ctx context.Context) error {
	if _, err := w.locks.ReleaseExpired(ctx); err != nil {
		return fmt.Errorf("failed to release expired locks: %w", err)
	}
	return nil
}

// CheckProgress takes progress checkpoints for every in_progress mission.
// One failing mission does not stop the others.
func (w *Watcher) CheckProgress(ctx context.Context) error {
	missions, err := w.missions.ListMissions(ctx, primary.MissionFilters{Status: "in_progress"})
	if err != nil {
		return fmt.Errorf("failed to list missions: %w", err)
	}
	var errList []error
	for _, m := range missions {
		if _, err := w.checkpoints.CheckProgress(ctx, m.ID); err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", m.ID, err))
		}
	}
	return errors.Join(errList...)
}

// Prune applies the retention policy.
func (w *Watcher) Prune(ctx context.Context) error {
	if _, err := w.checkpoints.Prune(ctx, w.cfg.Retention); err != nil {
		return fmt.Errorf("failed to prune checkpoints: %w", err)
	}
	return nil
}
