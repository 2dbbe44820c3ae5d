package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ptvtracker-planner/internal/common/config"
	"github.com/ptvtracker-planner/internal/common/db"
	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/gtfs-static/parser"
	"github.com/ptvtracker-planner/internal/gtfs-static/timetable"
	"github.com/ptvtracker-planner/internal/planner"
)

func loadConfig(c *cli.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(
		logger.ParseLogLevel(cfg.Logging.Level),
		logger.ConsoleWriter(),
		logger.FileWriter(cfg.Logging.FilePath),
	)
	return cfg, log, nil
}

func newParser(cfg *config.Config, log logger.Logger) *parser.Parser {
	return parser.New(log, parser.WithFeed(cfg.Timetable.Feed))
}

type openedSource struct {
	timetable.Source
	// database is nil unless the source reads from postgres.
	database *db.DB
}

func (s *openedSource) Close() {
	if s.database != nil {
		s.database.Close()
	}
}

// versionStore joins the version table operations with table vacuuming
// for the maintenance scheduler.
type versionStore struct {
	*db.VersionChecker
	*db.DB
}

// openSource returns the configured timetable source. Close releases
// whatever it holds open.
func openSource(cfg *config.Config, log logger.Logger) (*openedSource, error) {
	filter, err := timetable.ParseServiceFilter(cfg.Timetable.ServiceIDs, cfg.Timetable.ServiceDate)
	if err != nil {
		return nil, err
	}

	switch cfg.Timetable.Source {
	case config.SourcePostgres:
		database, err := db.New(cfg.Database.ConnectionString(), log)
		if err != nil {
			return nil, err
		}
		src := timetable.NewDBSource(db.NewVersionChecker(database), database, filter)
		return &openedSource{Source: src, database: database}, nil
	default:
		src := timetable.NewZipSource(cfg.Timetable.ZipPath, newParser(cfg, log), filter)
		return &openedSource{Source: src}, nil
	}
}

func newService(cfg *config.Config, log logger.Logger, extra ...planner.Option) *planner.Service {
	return planner.NewService(planner.Options{
		WalkingSpeedMetersPerMinute: cfg.Graph.WalkingSpeedMetersPerMinute,
		TransferRadiusMeters:        cfg.Graph.TransferRadiusMeters,
		Horizon:                     cfg.Search.Horizon,
		MaxBudget:                   cfg.Search.MaxBudget,
	}, log, extra...)
}

// loadOnce builds a single snapshot for the one-shot query commands.
func loadOnce(ctx context.Context, cfg *config.Config, log logger.Logger) (*planner.Service, error) {
	src, err := openSource(cfg, log)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	version, err := src.Version(ctx)
	if err != nil {
		return nil, err
	}
	tt, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", src.Name(), err)
	}

	svc := newService(cfg, log)
	if _, err := svc.Reload(ctx, version, tt); err != nil {
		return nil, err
	}
	return svc, nil
}
