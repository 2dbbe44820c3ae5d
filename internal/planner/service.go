// Package planner serves journey queries against the currently published
// timetable snapshot and rebuilds snapshots on reload.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/graph"
	"github.com/ptvtracker-planner/internal/schedule"
	"github.com/ptvtracker-planner/internal/search"
	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

// ErrNotReady is returned by queries before the first successful reload.
var ErrNotReady = errors.New("no timetable loaded")

// Query kinds and outcomes reported to Metrics.
const (
	KindEarliestArrival = "earliest_arrival"
	KindReachable       = "reachable"

	OutcomeFound    = "found"
	OutcomeNoRoute  = "no_route"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeCached   = "cached"
	OutcomeError    = "error"
)

// Snapshot is one published timetable version and the graph built from it.
type Snapshot struct {
	BuildID string
	Version string
	BuiltAt time.Time
	Store   *schedule.Store
	Graph   *graph.Graph
}

type Options struct {
	WalkingSpeedMetersPerMinute float64
	TransferRadiusMeters        float64
	// Horizon bounds earliest-arrival searches; zero disables it.
	Horizon time.Duration
	// MaxBudget rejects larger reachability budgets; zero disables it.
	MaxBudget time.Duration
}

type Service struct {
	opts     Options
	builder  *graph.Builder
	logger   logger.Logger
	metrics  Metrics
	notifier Notifier
	cache    Cache

	current atomic.Pointer[Snapshot]
	// reloads build one at a time; queries never take this lock
	reloadMu sync.Mutex
}

type Option func(*Service)

func WithMetrics(m Metrics) Option   { return func(s *Service) { s.metrics = m } }
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithCache(c Cache) Option       { return func(s *Service) { s.cache = c } }

func NewService(opts Options, logger logger.Logger, extra ...Option) *Service {
	s := &Service{
		opts:     opts,
		builder:  graph.NewBuilder(logger),
		logger:   logger,
		metrics:  nopMetrics{},
		notifier: nopNotifier{},
	}
	for _, o := range extra {
		o(s)
	}
	return s
}

// Snapshot returns the published snapshot, or nil before the first reload.
func (s *Service) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload builds a new snapshot from tt and publishes it. On failure the
// previous snapshot stays in place.
func (s *Service) Reload(ctx context.Context, version string, tt *models.Timetable) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	store, err := schedule.LoadTimetable(tt)
	if err != nil {
		s.metrics.ObserveReload(OutcomeError)
		s.logger.Error("Timetable rejected, keeping previous snapshot", "version", version, "error", err)
		return nil, fmt.Errorf("loading timetable %s: %w", version, err)
	}

	g, err := s.builder.Build(store, s.opts.WalkingSpeedMetersPerMinute, s.opts.TransferRadiusMeters)
	if err != nil {
		s.metrics.ObserveReload(OutcomeError)
		s.logger.Error("Graph build failed, keeping previous snapshot", "version", version, "error", err)
		return nil, fmt.Errorf("building graph for %s: %w", version, err)
	}

	snap := &Snapshot{
		BuildID: uuid.NewString(),
		Version: version,
		BuiltAt: time.Now().UTC(),
		Store:   store,
		Graph:   g,
	}
	s.current.Store(snap)

	stats := g.Stats()
	s.metrics.ObserveBuild(stats, time.Since(start))
	s.metrics.ObserveReload("ok")
	s.logger.Info("Published timetable snapshot",
		"version", version,
		"build_id", snap.BuildID,
		"stops", stats.Stops,
		"connections", stats.Connections,
		"transfers", stats.Transfers,
		"took", time.Since(start))

	if err := s.notifier.GraphPublished(ctx, newGraphPublished(snap)); err != nil {
		s.logger.Warn("Failed to announce snapshot", "build_id", snap.BuildID, "error", err)
	}
	return snap, nil
}

// EarliestArrival answers a point-to-point query on the current snapshot.
func (s *Service) EarliestArrival(ctx context.Context, origin, destination string, departAt schedule.Time) (*search.Journey, error) {
	return s.JourneyOn(ctx, s.current.Load(), origin, destination, departAt)
}

// JourneyOn answers a point-to-point query on snap, which callers obtain from
// Snapshot and keep for everything else they read about the result.
func (s *Service) JourneyOn(ctx context.Context, snap *Snapshot, origin, destination string, departAt schedule.Time) (*search.Journey, error) {
	start := time.Now()
	if snap == nil {
		return nil, ErrNotReady
	}

	key := fmt.Sprintf("ea:%s:%s:%s:%d", snap.BuildID, origin, destination, departAt)
	var cached search.Journey
	if s.cacheGet(ctx, key, &cached) {
		s.metrics.ObserveQuery(KindEarliestArrival, OutcomeCached, time.Since(start))
		return &cached, nil
	}

	j, err := search.EarliestArrival(snap.Graph, origin, destination, departAt, search.WithHorizon(s.opts.Horizon))
	if err != nil {
		s.metrics.ObserveQuery(KindEarliestArrival, outcomeOf(err), time.Since(start))
		return nil, err
	}
	outcome := OutcomeFound
	if !j.Found {
		outcome = OutcomeNoRoute
	}
	s.metrics.ObserveQuery(KindEarliestArrival, outcome, time.Since(start))
	s.cacheSet(ctx, key, j)
	return j, nil
}

// ReachableWithin answers an isochrone query on the current snapshot.
func (s *Service) ReachableWithin(ctx context.Context, origin string, departAt schedule.Time, budget time.Duration) (*search.Reachability, error) {
	return s.ReachableOn(ctx, s.current.Load(), origin, departAt, budget)
}

// ReachableOn answers an isochrone query on snap.
func (s *Service) ReachableOn(ctx context.Context, snap *Snapshot, origin string, departAt schedule.Time, budget time.Duration) (*search.Reachability, error) {
	start := time.Now()
	if snap == nil {
		return nil, ErrNotReady
	}
	if s.opts.MaxBudget > 0 && budget > s.opts.MaxBudget {
		s.metrics.ObserveQuery(KindReachable, OutcomeInvalid, time.Since(start))
		return nil, fmt.Errorf("%w: budget %s exceeds maximum %s", search.ErrInvalidQuery, budget, s.opts.MaxBudget)
	}

	key := fmt.Sprintf("rw:%s:%s:%d:%d", snap.BuildID, origin, departAt, budget/time.Second)
	var cached search.Reachability
	if s.cacheGet(ctx, key, &cached) {
		s.metrics.ObserveQuery(KindReachable, OutcomeCached, time.Since(start))
		return &cached, nil
	}

	r, err := search.ReachableWithin(snap.Graph, origin, departAt, budget)
	if err != nil {
		s.metrics.ObserveQuery(KindReachable, outcomeOf(err), time.Since(start))
		return nil, err
	}
	s.metrics.ObserveQuery(KindReachable, OutcomeFound, time.Since(start))
	s.cacheSet(ctx, key, r)
	return r, nil
}

// StopsNear lists stops around a point on the current snapshot.
func (s *Service) StopsNear(lat, lon, radiusMeters float64) ([]*schedule.Stop, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	ids := snap.Store.StopsNear(lat, lon, radiusMeters)
	out := make([]*schedule.Stop, 0, len(ids))
	for _, id := range ids {
		stop, _ := snap.Store.Stop(id)
		out = append(out, stop)
	}
	return out, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("Result cache read failed", "key", key, "error", err)
		return false
	}
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.logger.Warn("Result cache write failed", "key", key, "error", err)
	}
}

func outcomeOf(err error) string {
	var nf *schedule.NotFoundError
	switch {
	case errors.As(err, &nf):
		return OutcomeNotFound
	case errors.Is(err, search.ErrInvalidQuery):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
