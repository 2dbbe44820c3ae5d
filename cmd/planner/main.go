package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	app := &cli.App{
		Name:        "planner",
		Usage:       "journey planner over a static GTFS timetable",
		Description: "Builds a connection graph from GTFS and answers earliest-arrival and reachability queries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				EnvVars: []string{"PLANNER_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			planCommand(),
			reachableCommand(),
			importCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "planner:", err)
		os.Exit(1)
	}
}
