package planner

import (
	"context"
	"time"

	"github.com/ptvtracker-planner/internal/graph"
)

// Metrics receives query and build observations.
type Metrics interface {
	ObserveQuery(kind, outcome string, took time.Duration)
	ObserveBuild(stats graph.Stats, took time.Duration)
	ObserveReload(outcome string)
}

// Notifier announces newly published snapshots.
type Notifier interface {
	GraphPublished(ctx context.Context, ev GraphPublished) error
}

// Cache stores query results keyed by snapshot build id, so entries from an
// older snapshot are never served after a reload.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// GraphPublished is the event emitted after every successful reload.
type GraphPublished struct {
	BuildID       string    `json:"build_id"`
	Version       string    `json:"version"`
	BuiltAt       time.Time `json:"built_at"`
	Stops         int       `json:"stops"`
	Trips         int       `json:"trips"`
	Connections   int       `json:"connections"`
	Transfers     int       `json:"transfers"`
	RejectedTrips int       `json:"rejected_trips"`
}

func newGraphPublished(s *Snapshot) GraphPublished {
	st := s.Graph.Stats()
	return GraphPublished{
		BuildID:       s.BuildID,
		Version:       s.Version,
		BuiltAt:       s.BuiltAt,
		Stops:         st.Stops,
		Trips:         st.Trips,
		Connections:   st.Connections,
		Transfers:     st.Transfers,
		RejectedTrips: st.RejectedTrips,
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveQuery(string, string, time.Duration) {}
func (nopMetrics) ObserveBuild(graph.Stats, time.Duration)    {}
func (nopMetrics) ObserveReload(string)                       {}

type nopNotifier struct{}

func (nopNotifier) GraphPublished(context.Context, GraphPublished) error { return nil }
