package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/gtfs-static/timetable"
	"github.com/ptvtracker-planner/internal/planner"
	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

type Reloader interface {
	Reload(ctx context.Context, version string, tt *models.Timetable) (*planner.Snapshot, error)
}

type Config struct {
	// CheckInterval between version checks; zero checks once at start.
	CheckInterval time.Duration
}

// Watcher polls a timetable source and republishes the planner snapshot
// whenever the source reports a new version.
type Watcher struct {
	config   Config
	source   timetable.Source
	reloader Reloader
	logger   logger.Logger

	mu          sync.Mutex
	cancel      context.CancelFunc
	running     bool
	lastVersion string
}

func New(config Config, source timetable.Source, reloader Reloader, log logger.Logger) *Watcher {
	return &Watcher{
		config:   config,
		source:   source,
		reloader: reloader,
		logger:   log.With("component", "watcher", "source", source.Name()),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.cancel = nil
		w.mu.Unlock()
		cancel()
	}()

	w.logger.Info("Starting timetable watcher", "check_interval", w.config.CheckInterval)

	if _, err := w.CheckNow(ctx); err != nil {
		w.logger.Error("Initial check failed", "error", err)
	}

	if w.config.CheckInterval <= 0 {
		<-ctx.Done()
		w.logger.Info("Watcher stopped")
		return nil
	}

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watcher stopped")
			return nil
		case <-ticker.C:
			if _, err := w.CheckNow(ctx); err != nil {
				w.logger.Error("Scheduled check failed", "error", err)
			}
		}
	}
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return fmt.Errorf("watcher not running")
	}

	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

// CheckNow compares the source version with the one last published and
// reloads when they differ. It reports whether a new snapshot was published.
// A failed load is retried on the next check.
func (w *Watcher) CheckNow(ctx context.Context) (bool, error) {
	version, err := w.source.Version(ctx)
	if err != nil {
		return false, fmt.Errorf("checking version: %w", err)
	}

	w.mu.Lock()
	unchanged := version == w.lastVersion
	w.mu.Unlock()
	if unchanged {
		w.logger.Debug("No new version available", "version", version)
		return false, nil
	}

	w.logger.Info("New version detected, reloading", "version", version)

	tt, err := w.source.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading timetable: %w", err)
	}

	snap, err := w.reloader.Reload(ctx, version, tt)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.lastVersion = version
	w.mu.Unlock()

	w.logger.Info("Timetable reloaded", "version", version, "build_id", snap.BuildID)
	return true, nil
}

// LastVersion is the version of the most recent successful reload.
func (w *Watcher) LastVersion() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastVersion
}
