package main

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/ptvtracker-planner/internal/common/db"
	"github.com/ptvtracker-planner/internal/gtfs-static/importer"
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "import a GTFS archive into Postgres and activate it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "gtfs", Usage: "GTFS zip to import, defaults to the configured zip path"},
			&cli.BoolFlag{Name: "force", Usage: "import even when the archive is not newer than the active version"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			path := c.String("gtfs")
			if path == "" {
				path = cfg.Timetable.ZipPath
			}

			database, err := db.New(cfg.Database.ConnectionString(), log)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.EnsureSchema(c.Context); err != nil {
				return err
			}

			imp := importer.NewImporter(database, newParser(cfg, log), cfg.Database.KeepVersions,
				importer.WithForce(c.Bool("force")))
			versionID, err := imp.Import(c.Context, path)
			if errors.Is(err, importer.ErrUpToDate) {
				log.Info("Nothing to import", "path", path)
				return nil
			}
			if err != nil {
				return err
			}
			log.Info("Import finished", "version_id", versionID, "path", path)
			return nil
		},
	}
}
