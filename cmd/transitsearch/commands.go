package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ytransit-data/internal/api"
	"github.com/ytransit-data/internal/common/config"
	"github.com/ytransit-data/internal/common/maintenance"
	route_search "github.com/ytransit-data/internal/route-search"
	"github.com/ytransit-data/internal/route-search/parser"
	"github.com/ytransit-data/pkg/route-search/models"
)

func (a *application) searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "search routes between two stations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "departure station"},
			&cli.StringFlag{Name: "to", Usage: "arrival station"},
			&cli.StringFlag{Name: "date", Usage: "travel date as YYYYMMDD"},
			&cli.StringFlag{Name: "time", Usage: "travel time as HHMM"},
			&cli.StringFlag{Name: "via", Usage: "intermediate station"},
			&cli.StringFlag{Name: "sort", Usage: "upstream sort order"},
			&cli.StringSliceFlag{Name: "pair", Usage: "additional from>to pair, searched concurrently"},
			&cli.BoolFlag{Name: "no-cache", Usage: "bypass the result cache"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context

			comp, err := a.setup(ctx, true, c.Bool("no-cache"))
			if err != nil {
				return err
			}
			defer comp.close()

			pairs, err := config.ParseWatchRoutes(strings.Join(c.StringSlice("pair"), ","))
			if err != nil {
				return err
			}

			base := models.SearchQuery{
				From: c.String("from"),
				To:   c.String("to"),
				Date: c.String("date"),
				Time: c.String("time"),
				Via:  c.String("via"),
				Sort: c.String("sort"),
			}

			if len(pairs) == 0 {
				routes, err := comp.service.SearchRoutes(ctx, base)
				if err != nil {
					return err
				}
				return writeOutput(c.App.Writer, c.String("format"), routes)
			}

			qs := []models.SearchQuery{}
			if base.From != "" || base.To != "" {
				qs = append(qs, base)
			}
			for _, p := range pairs {
				q := base
				q.From, q.To = p.From, p.To
				qs = append(qs, q)
			}
			return writeOutput(c.App.Writer, c.String("format"), comp.service.SearchMany(ctx, qs))
		},
	}
}

func (a *application) suggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "list station name candidates",
		ArgsUsage: "<partial station name>",
		Action: func(c *cli.Context) error {
			comp, err := a.setup(c.Context, false, false)
			if err != nil {
				return err
			}
			defer comp.close()

			suggestions, err := comp.service.SuggestStations(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return writeOutput(c.App.Writer, c.String("format"), suggestions)
		},
	}
}

func (a *application) parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "extract routes from a saved results page",
		ArgsUsage: "<file|->",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("a file path or - for stdin is required")
			}

			var r io.Reader = os.Stdin
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening %s: %w", path, err)
				}
				defer f.Close()
				r = f
			}

			routes, err := parser.New(parser.NewLogSink(a.log)).ParseReader(r)
			if err != nil {
				return err
			}
			return writeOutput(c.App.Writer, c.String("format"), routes)
		},
	}
}

func (a *application) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "listen address, overrides LISTEN_ADDRESS"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comp, err := a.setup(ctx, true, false)
			if err != nil {
				return err
			}
			defer comp.close()

			listen := a.cfg.Server.ListenAddress
			if l := c.String("listen"); l != "" {
				listen = l
			}

			deps := api.Deps{Routes: comp.service, Logger: a.log}
			var purger maintenance.HistoryPurger
			if comp.history != nil {
				deps.History = comp.history
				deps.Database = comp.database
				purger = comp.history
			}

			m := maintenance.New(comp.cache, purger, a.cfg.Maintenance.HistoryRetention, a.log)
			scheduler := maintenance.NewCleanupScheduler(m, a.log, maintenance.SchedulerConfig{
				Interval:     a.cfg.Maintenance.Interval,
				InitialDelay: maintenance.DefaultSchedulerConfig().InitialDelay,
			})
			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			defer scheduler.Stop()

			a.log.Info("Transit search API starting",
				"listen", listen,
				"cache_backend", a.cfg.Cache.Backend,
				"history", comp.history != nil)

			return api.Serve(ctx, api.NewApp(deps), listen)
		},
	}
}

func (a *application) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "periodically re-run configured searches and report empty results",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "route", Usage: "from>to pair, added to WATCH_ROUTES"},
			&cli.DurationFlag{Name: "interval", Usage: "overrides WATCH_INTERVAL"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			extra, err := config.ParseWatchRoutes(strings.Join(c.StringSlice("route"), ","))
			if err != nil {
				return err
			}

			wc := route_search.WatchConfig{Interval: a.cfg.Watch.Interval}
			if d := c.Duration("interval"); d > 0 {
				wc.Interval = d
			}
			for _, r := range append(a.cfg.Watch.Routes, extra...) {
				wc.Queries = append(wc.Queries, models.SearchQuery{From: r.From, To: r.To})
			}

			comp, err := a.setup(ctx, true, false)
			if err != nil {
				return err
			}
			defer comp.close()

			return route_search.NewWatcher(wc, comp.service, a.log).Start(ctx)
		},
	}
}

func (a *application) historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show recent searches",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of searches to show"},
			&cli.BoolFlag{Name: "routes", Usage: "include the stored routes"},
		},
		Action: func(c *cli.Context) error {
			if !a.cfg.Database.Enabled() {
				return fmt.Errorf("search history is disabled, set DB_HOST")
			}

			comp, err := a.setup(c.Context, true, false)
			if err != nil {
				return err
			}
			defer comp.close()

			records, err := comp.history.RecentSearches(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			if !c.Bool("routes") {
				for i := range records {
					records[i].Routes = nil
				}
			}
			return writeOutput(c.App.Writer, c.String("format"), records)
		},
	}
}
