package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ytransit-data/internal/common/cache"
	"github.com/ytransit-data/internal/common/config"
	"github.com/ytransit-data/internal/common/db"
	"github.com/ytransit-data/internal/common/discord"
	"github.com/ytransit-data/internal/common/logger"
	route_search "github.com/ytransit-data/internal/route-search"
	"github.com/ytransit-data/internal/route-search/parser"
	"github.com/ytransit-data/internal/route-search/recorder"
	"github.com/ytransit-data/internal/route-search/scraper"
)

const alertCooldown = 30 * time.Minute

type application struct {
	cfg *config.Config
	log logger.Logger
}

func (a *application) init(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLogLevel(cfg.Logging.Level)
	logCfg.Console = cfg.Logging.Console
	logCfg.File = cfg.Logging.FilePath != ""
	logCfg.FilePath = cfg.Logging.FilePath

	a.cfg = cfg
	a.log = logger.FromConfig(logCfg)
	return nil
}

// components is everything a long-running or fetching command needs. The
// database fields are nil when history is disabled.
type components struct {
	cache    cache.Cache
	database *db.DB
	history  *db.HistoryStore
	recorder *recorder.Recorder
	alerts   *route_search.AlertSink
	sink     parser.Sink
	service  *route_search.Service
}

func (a *application) sink(alerts *route_search.AlertSink) parser.Sink {
	if alerts == nil {
		return parser.NewLogSink(a.log)
	}
	return parser.MultiSink(parser.NewLogSink(a.log), alerts)
}

func (a *application) alertSink() *route_search.AlertSink {
	client := discord.NewClient(a.cfg.Alerts.DiscordWebhookURL)
	if !client.Enabled() {
		return nil
	}
	return route_search.NewAlertSink(client, a.log, alertCooldown)
}

// setup builds the service graph and starts its background workers. withHistory
// connects to the database when one is configured.
func (a *application) setup(ctx context.Context, withHistory bool, noCache bool) (*components, error) {
	comp := &components{}

	cacheCfg := cache.Config{
		Backend:       a.cfg.Cache.Backend,
		TTL:           a.cfg.Cache.TTL,
		Dir:           a.cfg.Cache.Dir,
		MaxEntries:    a.cfg.Cache.MaxEntries,
		RedisAddress:  a.cfg.Cache.RedisAddress,
		RedisPassword: a.cfg.Cache.RedisPassword,
		RedisDB:       a.cfg.Cache.RedisDB,
	}
	if noCache {
		cacheCfg.Backend = cache.BackendNone
	}

	c, err := cache.New(cacheCfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	comp.cache = c

	if withHistory && a.cfg.Database.Enabled() {
		if err := comp.openHistory(ctx, a.cfg, a.log); err != nil {
			comp.close()
			return nil, err
		}
	}

	comp.alerts = a.alertSink()
	if comp.alerts != nil {
		go comp.alerts.Run(ctx)
	}
	comp.sink = a.sink(comp.alerts)

	opts := route_search.Options{
		Cache:        comp.cache,
		CacheTTL:     a.cfg.Cache.TTL,
		Sink:         comp.sink,
		ParseWorkers: a.cfg.Server.ParseWorkers,
	}
	if comp.recorder != nil {
		opts.Recorder = comp.recorder
	}

	client := scraper.NewClient(scraper.Config{
		BaseURL:              a.cfg.Site.BaseURL,
		UserAgent:            a.cfg.Site.UserAgent,
		AcceptLanguage:       a.cfg.Site.AcceptLanguage,
		Timeout:              a.cfg.Site.Timeout,
		MaxRetries:           a.cfg.Site.MaxRetries,
		RetryInitialInterval: scraper.DefaultConfig().RetryInitialInterval,
		RequestsPerMinute:    a.cfg.Site.RequestsPerMinute,
	}, a.log)

	comp.service = route_search.NewService(client, a.log, opts)
	return comp, nil
}

func (comp *components) openHistory(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	database, err := db.New(ctx, cfg.Database.ConnectionString(), log)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	comp.database = database

	if err := database.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing database schema: %w", err)
	}

	comp.history = db.NewHistoryStore(database)
	comp.recorder = recorder.New(comp.history, log, 100)
	if err := comp.recorder.Start(ctx); err != nil {
		return fmt.Errorf("starting recorder: %w", err)
	}
	return nil
}

func (comp *components) close() {
	if comp.recorder != nil {
		comp.recorder.Stop()
	}
	if comp.database != nil {
		comp.database.Close()
	}
	if r, ok := comp.cache.(*cache.Redis); ok {
		r.Close()
	}
}
