package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ptvtracker-planner/internal/common/db"
	"github.com/ptvtracker-planner/internal/gtfs-static/parser"
	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

const defaultBatchSize = 1000

var tableColumns = map[string][]string{
	"stops":          {"version_id", "stop_id", "stop_name", "stop_lat", "stop_lon"},
	"routes":         {"version_id", "route_id", "agency_id", "route_short_name", "route_long_name", "route_type"},
	"trips":          {"version_id", "trip_id", "route_id", "service_id", "trip_headsign", "direction_id"},
	"stop_times":     {"version_id", "trip_id", "stop_sequence", "stop_id", "arrival_time", "departure_time"},
	"calendar":       {"version_id", "service_id", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "start_date", "end_date"},
	"calendar_dates": {"version_id", "service_id", "date", "exception_type"},
}

// ErrUpToDate is returned by Import when the archive is not newer than the
// active version.
var ErrUpToDate = errors.New("archive is not newer than the active version")

type Importer struct {
	db           *db.DB
	parser       *parser.Parser
	versions     *db.VersionChecker
	batchSize    int
	keepVersions int
	force        bool
}

type Option func(*Importer)

// WithForce imports even when the archive is not newer than the active version.
func WithForce(force bool) Option {
	return func(i *Importer) { i.force = force }
}

func NewImporter(database *db.DB, p *parser.Parser, keepVersions int, opts ...Option) *Importer {
	i := &Importer{
		db:           database,
		parser:       p,
		versions:     db.NewVersionChecker(database),
		batchSize:    defaultBatchSize,
		keepVersions: keepVersions,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import parses the archive at zipPath, writes it as a new version and
// activates it. A failed import leaves the previous active version in place.
// Unless forced, an archive modified no later than the active version is
// skipped with ErrUpToDate.
func (i *Importer) Import(ctx context.Context, zipPath string) (int, error) {
	log := i.db.Logger()

	info, err := os.Stat(zipPath)
	if err != nil {
		return 0, fmt.Errorf("reading archive: %w", err)
	}

	if !i.force {
		newer, err := i.versions.HasNewerVersion(ctx, info.ModTime())
		if err != nil {
			return 0, err
		}
		if !newer {
			log.Info("Archive is not newer than the active version, skipping import",
				"path", zipPath,
				"modified", info.ModTime())
			return 0, ErrUpToDate
		}
	}

	tt, err := i.parser.ParseZip(ctx, zipPath)
	if err != nil {
		return 0, fmt.Errorf("parsing zip: %w", err)
	}

	versionName := fmt.Sprintf("%s_%s",
		strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath)),
		info.ModTime().UTC().Format("20060102_150405"))

	versionID, err := i.versions.CreateNewVersion(ctx, versionName, zipPath, info.ModTime())
	if err != nil {
		return 0, err
	}

	if err := i.ImportTimetable(ctx, versionID, tt); err != nil {
		log.Error("Import failed, version will remain inactive",
			"version_id", versionID,
			"error", err)
		if derr := i.versions.DeleteVersion(ctx, versionID); derr != nil {
			log.Warn("Could not remove failed version", "version_id", versionID, "error", derr)
		}
		return 0, fmt.Errorf("importing data: %w", err)
	}

	if err := i.versions.ActivateVersion(ctx, versionID); err != nil {
		return 0, err
	}

	if _, err := i.versions.PruneVersions(ctx, i.keepVersions); err != nil {
		log.Warn("Version pruning failed", "error", err)
	}

	log.Info("Successfully imported and activated new GTFS data",
		"version_id", versionID,
		"version_name", versionName)
	return versionID, nil
}

// ImportTimetable writes every table of tt under versionID in one transaction.
func (i *Importer) ImportTimetable(ctx context.Context, versionID int, tt *models.Timetable) error {
	tx, err := i.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stopBatch := i.newBatchInserter(tx, "stops")
	for _, s := range tt.Stops {
		if err := stopBatch.Add(ctx, versionID, s.StopID, s.StopName, s.StopLat, s.StopLon); err != nil {
			return err
		}
	}

	routeBatch := i.newBatchInserter(tx, "routes")
	for _, r := range tt.Routes {
		if err := routeBatch.Add(ctx, versionID, r.RouteID, r.AgencyID, r.RouteShortName, r.RouteLongName, r.RouteType); err != nil {
			return err
		}
	}

	tripBatch := i.newBatchInserter(tx, "trips")
	for _, t := range tt.Trips {
		if err := tripBatch.Add(ctx, versionID, t.TripID, t.RouteID, t.ServiceID, t.TripHeadsign, t.DirectionID); err != nil {
			return err
		}
	}

	stopTimeBatch := i.newBatchInserter(tx, "stop_times")
	for _, st := range tt.StopTimes {
		if err := stopTimeBatch.Add(ctx, versionID, st.TripID, st.StopSequence, st.StopID, st.ArrivalTime, st.DepartureTime); err != nil {
			return err
		}
	}

	calendarBatch := i.newBatchInserter(tx, "calendar")
	for _, c := range tt.Calendars {
		if err := calendarBatch.Add(ctx, versionID, c.ServiceID,
			c.Monday, c.Tuesday, c.Wednesday, c.Thursday, c.Friday, c.Saturday, c.Sunday,
			nullDate(c.StartDate), nullDate(c.EndDate)); err != nil {
			return err
		}
	}

	calendarDateBatch := i.newBatchInserter(tx, "calendar_dates")
	for _, cd := range tt.CalendarDates {
		if err := calendarDateBatch.Add(ctx, versionID, cd.ServiceID, nullDate(cd.Date), cd.ExceptionType); err != nil {
			return err
		}
	}

	batches := []*batchInserter{stopBatch, routeBatch, tripBatch, stopTimeBatch, calendarBatch, calendarDateBatch}
	for _, batch := range batches {
		if err := batch.Flush(ctx); err != nil {
			return fmt.Errorf("flushing %s batch: %w", batch.tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	i.db.Logger().Info("Import completed successfully",
		"version_id", versionID,
		"stops", len(tt.Stops),
		"trips", len(tt.Trips),
		"stop_times", len(tt.StopTimes))
	return nil
}

func nullDate(d models.Date) sql.NullTime {
	return sql.NullTime{Time: d.Time, Valid: !d.IsZero()}
}

type batchInserter struct {
	tableName  string
	columns    []string
	values     []interface{}
	valueCount int
	batchSize  int
	tx         *sql.Tx
}

func (i *Importer) newBatchInserter(tx *sql.Tx, tableName string) *batchInserter {
	columns := tableColumns[tableName]
	return &batchInserter{
		tableName: tableName,
		columns:   columns,
		values:    make([]interface{}, 0, i.batchSize*len(columns)),
		batchSize: i.batchSize,
		tx:        tx,
	}
}

func (b *batchInserter) Add(ctx context.Context, values ...interface{}) error {
	if len(values) != len(b.columns) {
		return fmt.Errorf("%s: expected %d values, got %d", b.tableName, len(b.columns), len(values))
	}
	b.values = append(b.values, values...)
	b.valueCount++

	if b.valueCount >= b.batchSize {
		return b.Flush(ctx)
	}

	return nil
}

func (b *batchInserter) Flush(ctx context.Context) error {
	if b.valueCount == 0 {
		return nil
	}

	query := b.buildInsertQuery()
	_, err := b.tx.ExecContext(ctx, query, b.values...)
	if err != nil {
		return fmt.Errorf("executing batch insert into %s: %w", b.tableName, err)
	}

	b.values = b.values[:0]
	b.valueCount = 0

	return nil
}

func (b *batchInserter) buildInsertQuery() string {
	var sb strings.Builder
	fieldCount := len(b.columns)

	sb.WriteString(fmt.Sprintf("INSERT INTO planner.%s (%s) VALUES ",
		b.tableName,
		strings.Join(b.columns, ", ")))

	for i := 0; i < b.valueCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < fieldCount; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("$%d", i*fieldCount+j+1))
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ON CONFLICT DO NOTHING")

	return sb.String()
}
