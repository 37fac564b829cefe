package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/watch.report/internal/api"
	"github.com/banshee-data/watch.report/internal/config"
	"github.com/banshee-data/watch.report/internal/db"
	"github.com/banshee-data/watch.report/internal/kafka"
	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
	"github.com/banshee-data/watch.report/internal/nvr/pipeline"
	"github.com/banshee-data/watch.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to the service config YAML")
	tuningPath  = flag.String("tuning", "", "Path to the tuning JSON (overrides tuning_path in the service config)")
	listen      = flag.String("listen", "", "Listen address (overrides http.listen)")
	devMode     = flag.Bool("dev", false, "Run in dev mode: debug logging and fixture replay")
	fixtures    = flag.String("fixtures", "fixtures.jsonl", "JSONL detection frames replayed in dev mode")
	queueSize   = flag.Int("queue", 64, "Per-camera frame queue length")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.Print(version.Get().String())
		return
	}

	cfg, err := config.LoadServiceConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)

	tuning, err := cfg.LoadTuning()
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	if *devMode {
		monitoring.SetDebug(true)
	}
	log.Printf("starting %s", version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var database *db.DB
	if cfg.Database.Enabled() {
		database, err = db.NewDB(cfg.Database.Path)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
	}

	sinks, closers, err := buildSinks(ctx, cfg, database)
	if err != nil {
		log.Fatalf("failed to set up event sinks: %v", err)
	}
	defer closeAll(closers)

	metrics := monitoring.NewMetrics()
	fanout := l5events.NewFanout(l5events.FanoutConfig{PublishTimeout: 5 * time.Second, Metrics: metrics}, sinks...)
	// deliveries run on their own context so Close can drain the queue
	// after the signal context is cancelled
	fanout.Start(context.Background())
	log.Printf("event sinks: %v", fanout.Sinks())

	registry := pipeline.NewRegistry(pipeline.ConfigFromTuning(tuning), pipeline.Options{
		Metrics: metrics,
		Fanout:  fanout,
	})

	var zoneStore *db.ZoneStore
	var saved map[string][]l2zones.Spec
	if database != nil {
		zoneStore = db.NewZoneStore(database)
		if saved, err = zoneStore.LoadZones(ctx); err != nil {
			log.Fatalf("failed to load saved zones: %v", err)
		}
	}
	if err := bootstrapZones(registry, cfg.Cameras, saved); err != nil {
		log.Fatalf("failed to bootstrap zones: %v", err)
	}

	dispatcher := pipeline.NewDispatcher(registry, *queueSize)

	var wg sync.WaitGroup

	if cfg.Kafka.Enabled() {
		ingest, err := kafka.NewIngest(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.DetectionsTopic, dispatcher)
		if err != nil {
			log.Fatalf("failed to create kafka ingest: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ingest.Run(ctx)
			if err := ingest.Close(); err != nil {
				log.Printf("kafka ingest close error: %v", err)
			}
			log.Print("kafka ingest routine terminated")
		}()
	}

	if *devMode {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := replayFile(ctx, *fixtures, dispatcher)
			if err != nil {
				log.Printf("fixture replay stopped: %v", err)
			}
			log.Printf("replayed %d fixture frames", n)
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		opts := api.Options{Metrics: metrics}
		if database != nil {
			opts.Archive = db.NewEventStore(database)
			opts.Zones = zoneStore
		}
		mux := api.NewServer(registry, dispatcher, opts).ServeMux()
		if database != nil && cfg.Database.AdminRoutes {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("listening on %s", cfg.HTTP.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// frames already queued still produce events, so the dispatcher is
	// drained before the fanout
	dispatcher.Close()
	fanout.Close()
	if n := fanout.Dropped(); n > 0 {
		log.Printf("dropped %d events while sinks were backed up", n)
	}
	log.Printf("Graceful shutdown complete")
}

// applyFlags lets command-line flags override the loaded config.
func applyFlags(cfg *config.ServiceConfig) {
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}
	if *tuningPath != "" {
		cfg.TuningPath = *tuningPath
	}
}

func closeAll(closers []closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Printf("%s close error: %v", c.name, err)
		}
	}
}
