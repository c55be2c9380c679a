// Package wire provides dependency injection for the flotilla application.
// It creates singleton services with lazy initialization.
package wire

import (
	"io"
	"log"
	"os"
	"sync"

	"github.com/rs/zerolog"

	cliadapter "github.com/example/flotilla/internal/adapters/cli"
	"github.com/example/flotilla/internal/adapters/filesystem"
	"github.com/example/flotilla/internal/adapters/sqlite"
	"github.com/example/flotilla/internal/app"
	"github.com/example/flotilla/internal/config"
	"github.com/example/flotilla/internal/core/checkpoint"
	"github.com/example/flotilla/internal/db"
	"github.com/example/flotilla/internal/logging"
	"github.com/example/flotilla/internal/ports/primary"
)

var (
	cfg               *config.Config
	logger            zerolog.Logger
	eventService      primary.EventService
	missionService    primary.MissionService
	lockService       primary.LockService
	messageService    primary.MessageService
	checkpointService primary.CheckpointService
	recoveryService   primary.RecoveryService
	restoreService    primary.RestoreService
	watcher           *app.Watcher
	once              sync.Once
)

// Config returns the resolved configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the process logger.
func Logger() zerolog.Logger {
	once.Do(initServices)
	return logger
}

// EventService returns the singleton EventService instance.
func EventService() primary.EventService {
	once.Do(initServices)
	return eventService
}

// MissionService returns the singleton MissionService instance.
func MissionService() primary.MissionService {
	once.Do(initServices)
	return missionService
}

// LockService returns the singleton LockService instance.
func LockService() primary.LockService {
	once.Do(initServices)
	return lockService
}

// MessageService returns the singleton MessageService instance.
func MessageService() primary.MessageService {
	once.Do(initServices)
	return messageService
}

// CheckpointService returns the singleton CheckpointService instance.
func CheckpointService() primary.CheckpointService {
	once.Do(initServices)
	return checkpointService
}

// RecoveryService returns the singleton RecoveryService instance.
func RecoveryService() primary.RecoveryService {
	once.Do(initServices)
	return recoveryService
}

// RestoreService returns the singleton RestoreService instance.
func RestoreService() primary.RestoreService {
	once.Do(initServices)
	return restoreService
}

// Watcher returns the singleton maintenance watcher.
func Watcher() *app.Watcher {
	once.Do(initServices)
	return watcher
}

// RetentionPolicy returns the configured checkpoint retention.
func RetentionPolicy() checkpoint.RetentionPolicy {
	once.Do(initServices)
	return retentionFromConfig(cfg)
}

func retentionFromConfig(c *config.Config) checkpoint.RetentionPolicy {
	return checkpoint.RetentionPolicy{
		MaxAge:        c.RetentionMaxAgeDuration(),
		MaxPerMission: c.RetentionMaxPerMission,
	}
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to resolve working directory: %v", err)
	}
	cfg, err = config.Load(cwd)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	backup, err := filesystem.NewCheckpointBackupAdapter(cfg.BackupDir)
	if err != nil {
		log.Fatalf("failed to initialize checkpoint backup: %v", err)
	}

	// Secondary ports: one store bundles every repository on the shared connection
	store := sqlite.NewStore(database)

	// Primary ports
	eventService = app.NewEventService(store, logger)
	missionService = app.NewMissionService(store, logger)
	lockService = app.NewLockService(store, cfg.LockTimeoutDuration(), logger)
	messageService = app.NewMessageService(store, logger)
	checkpointService = app.NewCheckpointService(store, backup, cfg.ProgressThresholds, logger)
	recoveryService = app.NewRecoveryService(store, cfg.InactivityThreshold(), logger)
	restoreService = app.NewRestoreService(store, backup, cfg.AllowReconsume, logger)

	watcher = app.NewWatcher(missionService, lockService, checkpointService, recoveryService, app.WatcherConfig{
		ScanInterval: cfg.ScanIntervalDuration(),
		Retention:    retentionFromConfig(cfg),
	}, logger)

	logger.Debug().Str("db_path", cfg.DBPath).Str("backup_dir", cfg.BackupDir).Msg("services initialized")
}

// MissionAdapter returns a new MissionAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func MissionAdapter() *cliadapter.MissionAdapter {
	return MissionAdapterWithOutput(os.Stdout)
}

// MissionAdapterWithOutput returns a new MissionAdapter writing to the given output.
func MissionAdapterWithOutput(out io.Writer) *cliadapter.MissionAdapter {
	once.Do(initServices)
	return cliadapter.NewMissionAdapter(missionService, eventService, out)
}

// LockAdapter returns a new LockAdapter writing to stdout.
func LockAdapter() *cliadapter.LockAdapter {
	return LockAdapterWithOutput(os.Stdout)
}

// LockAdapterWithOutput returns a new LockAdapter writing to the given output.
func LockAdapterWithOutput(out io.Writer) *cliadapter.LockAdapter {
	once.Do(initServices)
	return cliadapter.NewLockAdapter(lockService, out)
}

// CheckpointAdapter returns a new CheckpointAdapter writing to stdout.
func CheckpointAdapter() *cliadapter.CheckpointAdapter {
	return CheckpointAdapterWithOutput(os.Stdout)
}

// CheckpointAdapterWithOutput returns a new CheckpointAdapter writing to the given output.
func CheckpointAdapterWithOutput(out io.Writer) *cliadapter.CheckpointAdapter {
	once.Do(initServices)
	return cliadapter.NewCheckpointAdapter(checkpointService, out)
}

// RecoveryAdapter returns a new RecoveryAdapter writing to stdout.
func RecoveryAdapter() *cliadapter.RecoveryAdapter {
	return RecoveryAdapterWithOutput(os.Stdout)
}

// RecoveryAdapterWithOutput returns a new RecoveryAdapter writing to the given output.
func RecoveryAdapterWithOutput(out io.Writer) *cliadapter.RecoveryAdapter {
	once.Do(initServices)
	return cliadapter.NewRecoveryAdapter(recoveryService, restoreService, out)
}
