package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

type VersionChecker struct {
	db *DB
}

func NewVersionChecker(db *DB) *VersionChecker {
	return &VersionChecker{db: db}
}

// GetActiveVersion returns nil without error when nothing has been activated.
func (vc *VersionChecker) GetActiveVersion(ctx context.Context) (*models.VersionInfo, error) {
	query := `
		SELECT version_id, version_name, created_at, updated_at, is_active, source_path, description
		FROM planner.versions
		WHERE is_active = true
		LIMIT 1
	`

	var version models.VersionInfo
	err := vc.db.conn.QueryRowContext(ctx, query).Scan(
		&version.VersionID,
		&version.VersionName,
		&version.CreatedAt,
		&version.UpdatedAt,
		&version.IsActive,
		&version.SourcePath,
		&version.Description,
	)

	if errors.Is(err, sql.ErrNoRows) {
		vc.db.logger.Info("No active version found in database")
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("querying active version: %w", err)
	}

	vc.db.logger.Debug("Found active version",
		"version_id", version.VersionID,
		"version_name", version.VersionName,
		"updated_at", version.UpdatedAt)

	return &version, nil
}

func (vc *VersionChecker) HasNewerVersion(ctx context.Context, lastModified time.Time) (bool, error) {
	activeVersion, err := vc.GetActiveVersion(ctx)
	if err != nil {
		return false, fmt.Errorf("getting active version: %w", err)
	}

	if activeVersion == nil {
		vc.db.logger.Info("No active version found, new import needed")
		return true, nil
	}

	isNewer := lastModified.After(activeVersion.UpdatedAt)

	vc.db.logger.Info("Version comparison",
		"dataset_modified", lastModified,
		"active_version_updated", activeVersion.UpdatedAt,
		"is_newer", isNewer)

	return isNewer, nil
}

// CreateNewVersion inserts an inactive version row. The current active
// version keeps serving until ActivateVersion is called.
func (vc *VersionChecker) CreateNewVersion(ctx context.Context, versionName string, sourcePath string, lastModified time.Time) (int, error) {
	query := `
		INSERT INTO planner.versions (version_name, source_path, updated_at, is_active, description)
		VALUES ($1, $2, $3, false, $4)
		RETURNING version_id
	`

	description := fmt.Sprintf("GTFS data imported from %s modified at %s", sourcePath, lastModified.Format(time.RFC3339))

	var versionID int
	err := vc.db.conn.QueryRowContext(ctx, query, versionName, sourcePath, lastModified, description).Scan(&versionID)
	if err != nil {
		return 0, fmt.Errorf("creating version: %w", err)
	}

	vc.db.logger.Info("Created new version",
		"version_id", versionID,
		"version_name", versionName)

	return versionID, nil
}

func (vc *VersionChecker) ActivateVersion(ctx context.Context, versionID int) error {
	tx, err := vc.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "UPDATE planner.versions SET is_active = false WHERE is_active = true")
	if err != nil {
		return fmt.Errorf("deactivating versions: %w", err)
	}

	result, err := tx.ExecContext(ctx, "UPDATE planner.versions SET is_active = true WHERE version_id = $1", versionID)
	if err != nil {
		return fmt.Errorf("activating version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("version %d not found", versionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	vc.db.logger.Info("Activated version", "version_id", versionID)
	return nil
}

// DeleteVersion removes a version and, through the cascading foreign keys,
// every row imported under it.
func (vc *VersionChecker) DeleteVersion(ctx context.Context, versionID int) error {
	_, err := vc.db.conn.ExecContext(ctx, "DELETE FROM planner.versions WHERE version_id = $1 AND is_active = false", versionID)
	if err != nil {
		return fmt.Errorf("deleting version %d: %w", versionID, err)
	}
	return nil
}

// PruneVersions deletes inactive versions, keeping the newest keep versions.
// The active version is never deleted.
func (vc *VersionChecker) PruneVersions(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	query := `
		DELETE FROM planner.versions
		WHERE is_active = false
		AND version_id NOT IN (
			SELECT version_id FROM planner.versions ORDER BY version_id DESC LIMIT $1
		)
	`
	result, err := vc.db.conn.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning versions: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if removed > 0 {
		vc.db.logger.Info("Pruned old versions", "removed", removed, "kept", keep)
	}
	return removed, nil
}
