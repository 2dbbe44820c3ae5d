package db

import (
	"context"
	"fmt"
	"time"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS planner`,
	`CREATE TABLE IF NOT EXISTS planner.versions (
		version_id   SERIAL PRIMARY KEY,
		version_name TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT false,
		source_path  TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS versions_single_active
		ON planner.versions (is_active) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS planner.stops (
		version_id INT NOT NULL REFERENCES planner.versions ON DELETE CASCADE,
		stop_id    TEXT NOT NULL,
		stop_name  TEXT NOT NULL DEFAULT '',
		stop_lat   TEXT NOT NULL,
		stop_lon   TEXT NOT NULL,
		PRIMARY KEY (version_id, stop_id)
	)`,
	`CREATE TABLE IF NOT EXISTS planner.routes (
		version_id       INT NOT NULL REFERENCES planner.versions ON DELETE CASCADE,
		route_id         TEXT NOT NULL,
		agency_id        TEXT NOT NULL DEFAULT '',
		route_short_name TEXT NOT NULL DEFAULT '',
		route_long_name  TEXT NOT NULL DEFAULT '',
		route_type       INT NOT NULL DEFAULT 0,
		PRIMARY KEY (version_id, route_id)
	)`,
	`CREATE TABLE IF NOT EXISTS planner.trips (
		version_id    INT NOT NULL REFERENCES planner.versions ON DELETE CASCADE,
		trip_id       TEXT NOT NULL,
		route_id      TEXT NOT NULL,
		service_id    TEXT NOT NULL DEFAULT '',
		trip_headsign TEXT NOT NULL DEFAULT '',
		direction_id  INT NOT NULL DEFAULT 0,
		PRIMARY KEY (version_id, trip_id)
	)`,
	// times stay text because GTFS allows values past 24:00:00
	`CREATE TABLE IF NOT EXISTS planner.stop_times (
		version_id     INT NOT NULL REFERENCES planner.versions ON DELETE CASCADE,
		trip_id        TEXT NOT NULL,
		stop_sequence  INT NOT NULL,
		stop_id        TEXT NOT NULL,
		arrival_time   TEXT NOT NULL DEFAULT '',
		departure_time TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (version_id, trip_id, stop_sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS planner.calendar (
		version_id INT NOT NULL REFERENCES planner.versions ON DELETE CASCADE,
		service_id TEXT NOT NULL,
		monday     SMALLINT NOT NULL,
		tuesday    SMALLINT NOT NULL,
		wednesday  SMALLINT NOT NULL,
		thursday   SMALLINT NOT NULL,
		friday     SMALLINT NOT NULL,
		saturday   SMALLINT NOT NULL,
		sunday     SMALLINT NOT NULL,
		start_date DATE,
		end_date   DATE,
		PRIMARY KEY (version_id, service_id)
	)`,
	`CREATE TABLE IF NOT EXISTS planner.calendar_dates (
		version_id     INT NOT NULL REFERENCES planner.versions ON DELETE CASCADE,
		service_id     TEXT NOT NULL,
		date           DATE NOT NULL,
		exception_type SMALLINT NOT NULL,
		PRIMARY KEY (version_id, service_id, date)
	)`,
}

// EnsureSchema creates the planner schema and its tables when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	db.logger.Debug("Database schema ready", "statements", len(schemaStatements))
	return nil
}

var vacuumTables = []string{"versions", "stops", "routes", "trips", "stop_times", "calendar", "calendar_dates"}

// VacuumTables runs VACUUM ANALYZE on every planner table. It must run
// outside a transaction.
func (db *DB) VacuumTables(ctx context.Context) error {
	failed := 0
	for _, table := range vacuumTables {
		start := time.Now()
		if _, err := db.conn.ExecContext(ctx, "VACUUM ANALYZE planner."+table); err != nil {
			failed++
			db.logger.Error("Failed to vacuum table", "table", table, "error", err)
			continue
		}
		db.logger.Debug("Vacuumed table", "table", table, "duration", time.Since(start))
	}
	if failed > 0 {
		return fmt.Errorf("vacuum failed for %d out of %d tables", failed, len(vacuumTables))
	}
	return nil
}
