package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

const nestedFeedName = "google_transit.zip"

var csvReaderOnce sync.Once

// Files that must be present for a usable timetable.
var requiredFiles = []string{"stops.txt", "routes.txt", "trips.txt", "stop_times.txt"}

type Parser struct {
	logger logger.Logger
	feed   string
}

type Option func(*Parser)

// WithFeed selects the numbered folder of a nested archive, e.g. "2" for
// 2/google_transit.zip. Without it the lowest numbered folder is used.
func WithFeed(folder string) Option {
	return func(p *Parser) { p.feed = strings.Trim(folder, "/") }
}

func New(log logger.Logger, opts ...Option) *Parser {
	csvReaderOnce.Do(func() {
		// rows with missing trailing columns are common in published feeds
		gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
			r := csv.NewReader(in)
			r.FieldsPerRecord = -1
			r.TrimLeadingSpace = true
			return r
		})
	})
	p := &Parser{logger: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseZip reads a GTFS archive from disk. Archives that wrap one or more
// google_transit.zip files in numbered folders are unwrapped first.
func (p *Parser) ParseZip(ctx context.Context, zipPath string) (*models.Timetable, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening zip file: %w", err)
	}
	defer reader.Close()

	p.logger.Info("Parsing GTFS zip file", "path", zipPath, "files", len(reader.File))
	return p.parseArchive(ctx, &reader.Reader)
}

// ParseReader is ParseZip for an archive already in memory.
func (p *Parser) ParseReader(ctx context.Context, r io.ReaderAt, size int64) (*models.Timetable, error) {
	reader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("creating zip reader: %w", err)
	}
	return p.parseArchive(ctx, reader)
}

func (p *Parser) parseArchive(ctx context.Context, reader *zip.Reader) (*models.Timetable, error) {
	if nested := p.nestedFeed(reader); nested != nil {
		p.logger.Info("Detected nested GTFS structure, parsing nested file", "file", nested.Name)
		return p.parseNested(ctx, nested)
	}
	return p.parseStandard(ctx, reader)
}

func (p *Parser) nestedFeed(reader *zip.Reader) *zip.File {
	var candidates []*zip.File
	for _, file := range reader.File {
		if path.Base(file.Name) != nestedFeedName || !strings.Contains(file.Name, "/") {
			continue
		}
		if p.feed != "" && strings.HasPrefix(file.Name, p.feed+"/") {
			return file
		}
		candidates = append(candidates, file)
	}
	if len(candidates) == 0 || p.feed != "" {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates[0]
}

func (p *Parser) parseNested(ctx context.Context, zipFile *zip.File) (*models.Timetable, error) {
	rc, err := zipFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening nested zip: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading nested zip: %w", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("creating zip reader: %w", err)
	}
	return p.parseStandard(ctx, reader)
}

func (p *Parser) parseStandard(ctx context.Context, reader *zip.Reader) (*models.Timetable, error) {
	tt := &models.Timetable{}
	destinations := map[string]interface{}{
		"stops.txt":          &tt.Stops,
		"routes.txt":         &tt.Routes,
		"trips.txt":          &tt.Trips,
		"stop_times.txt":     &tt.StopTimes,
		"calendar.txt":       &tt.Calendars,
		"calendar_dates.txt": &tt.CalendarDates,
	}

	files := make(map[string]*zip.File)
	for _, file := range reader.File {
		name := path.Base(file.Name)
		if _, known := destinations[name]; known {
			files[name] = file
		}
	}

	for _, name := range requiredFiles {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("archive is missing %s", name)
		}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.parseFile(files[name], destinations[name]); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	}

	p.logger.Info("GTFS parsing completed successfully",
		"stops", len(tt.Stops),
		"routes", len(tt.Routes),
		"trips", len(tt.Trips),
		"stop_times", len(tt.StopTimes))
	return tt, nil
}

func (p *Parser) parseFile(file *zip.File, destination interface{}) error {
	p.logger.Debug("Parsing file", "name", file.Name, "size", file.UncompressedSize64)

	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer rc.Close()

	err = gocsv.Unmarshal(stripBOM(rc), destination)
	if errors.Is(err, gocsv.ErrEmptyCSVFile) {
		p.logger.Warn("Empty file in archive", "name", file.Name)
		return nil
	}
	return err
}

// stripBOM drops a leading UTF-8 byte order mark, which would otherwise
// become part of the first header name.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err == nil && bytes.Equal(buf, []byte{0xEF, 0xBB, 0xBF}) {
		return r
	}
	return io.MultiReader(bytes.NewReader(buf[:n]), r)
}
