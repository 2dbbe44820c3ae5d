// Package maintenance keeps the version table of the planner database from
// growing without bound.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/ptvtracker-planner/internal/common/logger"
)

// Store is the database surface maintenance needs.
type Store interface {
	PruneVersions(ctx context.Context, keep int) (int64, error)
	VacuumTables(ctx context.Context) error
}

// PruneResult summarises one pruning run.
type PruneResult struct {
	VersionsRemoved int64         `json:"versions_removed"`
	Kept            int           `json:"kept"`
	Vacuumed        bool          `json:"vacuumed"`
	Duration        time.Duration `json:"duration"`
}

type Maintenance struct {
	store  Store
	logger logger.Logger
}

func New(store Store, logger logger.Logger) *Maintenance {
	return &Maintenance{
		store:  store,
		logger: logger,
	}
}

// PruneOldVersions removes inactive versions beyond the newest keep and
// vacuums the tables when anything was removed. A failed vacuum is logged
// but does not fail the run.
func (m *Maintenance) PruneOldVersions(ctx context.Context, keep int) (PruneResult, error) {
	start := time.Now()
	result := PruneResult{Kept: keep}

	removed, err := m.store.PruneVersions(ctx, keep)
	if err != nil {
		return result, fmt.Errorf("pruning versions: %w", err)
	}
	result.VersionsRemoved = removed

	if removed > 0 {
		if err := m.store.VacuumTables(ctx); err != nil {
			m.logger.Warn("Failed to vacuum tables after pruning", "error", err)
		} else {
			result.Vacuumed = true
		}
	}

	result.Duration = time.Since(start)
	m.logger.Info("Version pruning finished",
		"versions_removed", result.VersionsRemoved,
		"kept", keep,
		"vacuumed", result.Vacuumed,
		"duration", result.Duration)
	return result, nil
}
