package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ptvtracker-planner/internal/api"
	"github.com/ptvtracker-planner/internal/common/cache"
	"github.com/ptvtracker-planner/internal/common/db"
	"github.com/ptvtracker-planner/internal/common/maintenance"
	"github.com/ptvtracker-planner/internal/common/metrics"
	"github.com/ptvtracker-planner/internal/common/publisher"
	"github.com/ptvtracker-planner/internal/gtfs-static/watcher"
	"github.com/ptvtracker-planner/internal/planner"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve journey queries over HTTP and follow timetable updates",
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}

			log.Info("Journey planner starting",
				"log_level", cfg.Logging.Level,
				"source", cfg.Timetable.Source,
				"listen", cfg.Server.Listen)

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			collector := metrics.NewCollector()
			opts := []planner.Option{planner.WithMetrics(collector)}

			if cfg.NATS.URL != "" {
				pub, err := publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, log, collector)
				if err != nil {
					return err
				}
				defer pub.Close()
				opts = append(opts, planner.WithNotifier(pub))
			}

			if cfg.Redis.Addr != "" {
				rc, err := cache.NewRedis(ctx, cache.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
					Prefix:   "planner:",
					TTL:      cfg.Redis.TTL,
				})
				if err != nil {
					log.Warn("Result cache disabled", "error", err)
				} else {
					defer rc.Close()
					opts = append(opts, planner.WithCache(rc))
				}
			}

			svc := newService(cfg, log, opts...)

			src, err := openSource(cfg, log)
			if err != nil {
				return err
			}
			defer src.Close()

			if src.database != nil && cfg.Database.PruneInterval > 0 {
				pruner := maintenance.NewScheduler(versionStore{db.NewVersionChecker(src.database), src.database}, log, maintenance.SchedulerConfig{
					Interval:     cfg.Database.PruneInterval,
					InitialDelay: maintenance.DefaultSchedulerConfig().InitialDelay,
					KeepVersions: cfg.Database.KeepVersions,
				})
				if err := pruner.Start(ctx); err != nil {
					return err
				}
				defer pruner.Stop()
			}

			w := watcher.New(watcher.Config{CheckInterval: cfg.Timetable.CheckInterval}, src, svc, log)
			if _, err := w.CheckNow(ctx); err != nil {
				log.Error("Initial timetable load failed, queries return 503 until a version loads", "error", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			var wg sync.WaitGroup

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := w.Start(ctx); err != nil {
					log.Error("Watcher error", "error", err)
				}
			}()

			if cfg.Server.MetricsListen != "" {
				metricsSrv := collector.Serve(cfg.Server.MetricsListen, log)
				defer func() {
					sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer scancel()
					_ = metricsSrv.Shutdown(sctx)
				}()
			}

			server := api.NewServer(cfg.Server.Listen, svc, log)
			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.Listen()
			}()

			select {
			case <-sigChan:
				log.Info("Shutdown signal received")
			case err := <-serverErr:
				log.Error("HTTP server stopped", "error", err)
			}

			cancel()

			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			if err := server.Shutdown(sctx); err != nil {
				log.Warn("HTTP shutdown incomplete", "error", err)
			}

			wg.Wait()

			log.Info("Journey planner stopped")
			return nil
		},
	}
}
