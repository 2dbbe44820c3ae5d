package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/ptvtracker-planner/internal/schedule"
	"github.com/ptvtracker-planner/internal/search"
)

var jsonFlag = &cli.BoolFlag{Name: "json", Usage: "print the raw result as JSON"}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "earliest arrival between two stops",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "origin stop id"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "destination stop id"},
			&cli.StringFlag{Name: "depart", Required: true, Usage: "departure time, HH:MM:SS"},
			jsonFlag,
		},
		Action: func(c *cli.Context) error {
			depart, err := schedule.ParseTime(c.String("depart"))
			if err != nil {
				return err
			}
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			svc, err := loadOnce(c.Context, cfg, log)
			if err != nil {
				return err
			}

			j, err := svc.EarliestArrival(c.Context, c.String("from"), c.String("to"), depart)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, j)
			}
			return writeJourney(c.App.Writer, j)
		},
	}
}

func reachableCommand() *cli.Command {
	return &cli.Command{
		Name:  "reachable",
		Usage: "stops reachable from an origin within a time budget",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "origin stop id"},
			&cli.StringFlag{Name: "depart", Required: true, Usage: "departure time, HH:MM:SS"},
			&cli.DurationFlag{Name: "budget", Required: true, Usage: "travel time budget, e.g. 50m"},
			jsonFlag,
		},
		Action: func(c *cli.Context) error {
			depart, err := schedule.ParseTime(c.String("depart"))
			if err != nil {
				return err
			}
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			svc, err := loadOnce(c.Context, cfg, log)
			if err != nil {
				return err
			}

			r, err := svc.ReachableWithin(c.Context, c.String("from"), depart, c.Duration("budget"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, r)
			}
			return writeReachability(c.App.Writer, r)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJourney(w io.Writer, j *search.Journey) error {
	if !j.Found {
		_, err := fmt.Fprintf(w, "no route from %s to %s departing %s\n", j.Origin, j.Destination, j.DepartAt)
		return err
	}

	fmt.Fprintf(w, "%s -> %s: depart %s, arrive %s (%s, %d boardings)\n",
		j.Origin, j.Destination, j.DepartAt, j.Arrival, j.Duration(), j.Boardings())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, leg := range j.Compact() {
		via := "walk"
		if leg.Kind == search.Ride {
			via = fmt.Sprintf("trip %s (route %s)", leg.TripID, leg.RouteID)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s -> %s\t%s\n", leg.Departure, leg.Arrival, leg.From, leg.To, via)
	}
	return tw.Flush()
}

func writeReachability(w io.Writer, r *search.Reachability) error {
	fmt.Fprintf(w, "%d stops reachable from %s within %s of %s\n", len(r.Arrivals), r.Origin, r.Budget, r.DepartAt)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, id := range r.Stops() {
		fmt.Fprintf(tw, "  %s\t%s\t+%s\n", id, r.Arrivals[id], (r.Arrivals[id] - r.DepartAt).Duration())
	}
	return tw.Flush()
}
