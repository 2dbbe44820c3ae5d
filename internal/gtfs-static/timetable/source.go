// Package timetable supplies parsed timetables to the planner from a GTFS
// archive on disk or from the active version in Postgres.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

// ErrNoVersion is returned by a database source with nothing activated yet.
var ErrNoVersion = errors.New("no active timetable version")

// Source produces timetables and a version tag that changes whenever the
// underlying data does.
type Source interface {
	Name() string
	Version(ctx context.Context) (string, error)
	Load(ctx context.Context) (*models.Timetable, error)
}

// ServiceFilter restricts a timetable to the services running on one day.
// IDs take precedence over Date; a zero filter keeps every trip.
type ServiceFilter struct {
	IDs  []string
	Date time.Time
}

// ParseServiceFilter builds a filter from configuration values. date is
// YYYYMMDD or empty.
func ParseServiceFilter(ids []string, date string) (ServiceFilter, error) {
	f := ServiceFilter{IDs: ids}
	if date != "" {
		d, err := models.ParseDate(date)
		if err != nil {
			return ServiceFilter{}, err
		}
		f.Date = d.Time
	}
	return f, nil
}

func (f ServiceFilter) IsZero() bool {
	return len(f.IDs) == 0 && f.Date.IsZero()
}

func (f ServiceFilter) Apply(tt *models.Timetable) *models.Timetable {
	switch {
	case len(f.IDs) > 0:
		return tt.FilterServices(f.IDs)
	case !f.Date.IsZero():
		return tt.FilterServices(tt.ActiveServiceIDs(f.Date))
	default:
		return tt
	}
}

type zipParser interface {
	ParseZip(ctx context.Context, path string) (*models.Timetable, error)
}

// ZipSource reads a GTFS archive. Its version is derived from the file's
// modification time and size.
type ZipSource struct {
	path   string
	parser zipParser
	filter ServiceFilter
}

func NewZipSource(path string, p zipParser, filter ServiceFilter) *ZipSource {
	return &ZipSource{path: path, parser: p, filter: filter}
}

func (s *ZipSource) Name() string { return "zip:" + s.path }

func (s *ZipSource) Version(ctx context.Context) (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", s.path, err)
	}
	return fmt.Sprintf("%s-%d", info.ModTime().UTC().Format("20060102T150405.000000000"), info.Size()), nil
}

func (s *ZipSource) Load(ctx context.Context) (*models.Timetable, error) {
	tt, err := s.parser.ParseZip(ctx, s.path)
	if err != nil {
		return nil, err
	}
	return s.filter.Apply(tt), nil
}

type versionLookup interface {
	GetActiveVersion(ctx context.Context) (*models.VersionInfo, error)
}

type tableLoader interface {
	LoadTimetable(ctx context.Context, versionID int) (*models.Timetable, error)
}

// DBSource serves the active imported version.
type DBSource struct {
	versions versionLookup
	tables   tableLoader
	filter   ServiceFilter
}

func NewDBSource(versions versionLookup, tables tableLoader, filter ServiceFilter) *DBSource {
	return &DBSource{versions: versions, tables: tables, filter: filter}
}

func (s *DBSource) Name() string { return "postgres" }

func (s *DBSource) Version(ctx context.Context) (string, error) {
	v, err := s.active(ctx)
	if err != nil {
		return "", err
	}
	return versionTag(v), nil
}

func (s *DBSource) Load(ctx context.Context) (*models.Timetable, error) {
	v, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	tt, err := s.tables.LoadTimetable(ctx, v.VersionID)
	if err != nil {
		return nil, err
	}
	return s.filter.Apply(tt), nil
}

func (s *DBSource) active(ctx context.Context) (*models.VersionInfo, error) {
	v, err := s.versions.GetActiveVersion(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNoVersion
	}
	return v, nil
}

func versionTag(v *models.VersionInfo) string {
	return fmt.Sprintf("%d-%s", v.VersionID, v.UpdatedAt.UTC().Format("20060102T150405"))
}
