package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/superfly/fsm"

	"github.com/webbboot/companion/pkg/db"
	"github.com/webbboot/companion/pkg/device"
	"github.com/webbboot/companion/pkg/errors"
	appfsm "github.com/webbboot/companion/pkg/fsm"
	"github.com/webbboot/companion/pkg/platform"
	"github.com/webbboot/companion/pkg/storage"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(sqlitePath, fsmDBPath, cacheDir string) error {
	// Create database directory
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	// Create FSM database directory (only needed to run jobs)
	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			return errors.Wrap(err, "failed to create image cache directory")
		}
	}

	return nil
}

// openHistory opens the job history database
func openHistory() (*db.Repository, error) {
	if err := ensureDirectories(cfg.SQLitePath, "", ""); err != nil {
		return nil, err
	}
	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return nil, errors.Wrap(err, "db init failed")
	}
	return repo, nil
}

func newVerifier(adapter platform.Adapter) *device.Verifier {
	return device.NewVerifier(adapter, device.HostMounts{})
}

// engine is everything needed to execute jobs.
type engine struct {
	repo     *db.Repository
	manager  *fsm.Manager
	executor *appfsm.Executor
	adapter  platform.Adapter
}

func openEngine(ctx context.Context) (*engine, error) {
	if err := ensureDirectories(cfg.SQLitePath, cfg.FSMDBPath, cfg.ImageCacheDir); err != nil {
		return nil, err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return nil, errors.Wrap(err, "db init failed")
	}

	// A job that was running when the previous process died is never
	// resumed.
	if _, err := repo.FailRunning("Error: Interrupted by companion restart"); err != nil {
		repo.Close()
		return nil, err
	}

	var fetcher appfsm.ImageFetcher
	s3Client, err := storage.NewClient(ctx, storage.Options{
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		CacheDir:  cfg.ImageCacheDir,
	})
	if err != nil {
		slog.Warn("s3_unavailable", "error", err)
	} else {
		fetcher = s3Client
	}

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		repo.Close()
		return nil, errors.Wrap(err, "FSM manager failed")
	}

	adapter := platform.New()
	machine := appfsm.NewMachine(adapter, newVerifier(adapter), fetcher, repo, appfsm.Options{
		WriteTick:           cfg.WriteTick,
		SettleDelay:         cfg.SettleDelay,
		RecheckBeforeFormat: cfg.RecheckBeforeFormat,
	})

	executor, err := appfsm.NewExecutor(ctx, manager, machine)
	if err != nil {
		manager.Shutdown(10 * time.Second)
		repo.Close()
		return nil, errors.Wrap(err, "FSM register failed")
	}

	slog.Info("engine_ready", "platform", adapter.Name(), "fsm_db_path", cfg.FSMDBPath)
	return &engine{repo: repo, manager: manager, executor: executor, adapter: adapter}, nil
}

func (e *engine) Close() {
	e.manager.Shutdown(10 * time.Second)
	e.repo.Close()
}
