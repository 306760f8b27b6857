// Package app wires the server together: logging router, store, game
// service, websocket hub, scheduler jobs and the HTTP listener.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	nethttp "net/http"
	"os"
	"time"

	"stardrift/server/internal/config"
	"stardrift/server/internal/journal"
	httpnet "stardrift/server/internal/net"
	"stardrift/server/internal/net/ws"
	"stardrift/server/internal/sched"
	"stardrift/server/internal/store"
	"stardrift/server/internal/telemetry"
	"stardrift/server/internal/tick"
	"stardrift/server/logging"
	"stardrift/server/logging/sinks"
)

// Run starts the server and blocks until ctx is cancelled or the HTTP
// listener fails.
func Run(ctx context.Context, cfg config.Config) error {
	stdLogger := log.New(os.Stdout, "[stardrift] ", log.LstdFlags)
	logger := telemetry.WrapLogger(stdLogger)
	metrics := telemetry.NewCounters()

	eventJournal := journal.New(cfg.JournalCapacity, metrics)

	router, err := buildRouter(cfg.Logging, eventJournal)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		router.Close(closeCtx)
	}()

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer db.Close()

	hub := ws.NewHub(ws.Config{Logger: logger, Metrics: metrics, Journal: eventJournal})
	defer hub.Close()

	engine := tick.NewEngine(tick.Config{
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
		Notifier:  hub,
	})

	service := NewService(ServiceConfig{
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
		Store:     db,
		Engine:    engine,
		Journal:   eventJournal,
	})
	if err := service.LoadOpenGames(ctx); err != nil {
		return err
	}

	scheduler := sched.New(sched.Config{
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
		Poll:      cfg.SchedulerPoll,
	})
	jobs := []sched.Job{
		{
			Name:     "tick-games",
			Interval: cfg.TickInterval,
			Handler: func(ctx context.Context) error {
				return service.TickDueGames(ctx, cfg.TickInterval)
			},
		},
		{
			Name:     "cleanup-finished-games",
			Interval: cfg.CleanupInterval,
			Handler: func(ctx context.Context) error {
				return service.CleanupFinishedGames(ctx, cfg.CleanupRetention)
			},
		},
		{
			Name:     "create-official-games",
			Interval: cfg.OfficialInterval,
			Handler: func(ctx context.Context) error {
				return service.EnsureOfficialGames(ctx, cfg.Official, cfg.OfficialGamesOpen)
			},
		},
	}
	for _, job := range jobs {
		if err := scheduler.Register(job); err != nil {
			return err
		}
	}
	go scheduler.Run(ctx)

	handler := httpnet.NewHTTPHandler(service, hub, httpnet.HTTPHandlerConfig{
		Logger:  logger,
		Metrics: metrics,
		Journal: eventJournal,
	})

	server := &nethttp.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Printf("server listening on %s", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
		return err
	}
	return nil
}

// buildRouter assembles the logging router from the configured sink names.
// The journal is always attached so the event history endpoints work no
// matter which output sinks are enabled.
func buildRouter(cfg logging.Config, eventJournal *journal.Journal) (*logging.Router, error) {
	named := []logging.NamedSink{{Name: "journal", Sink: eventJournal}}
	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{Name: "console", Sink: sinks.NewConsole(os.Stdout)})
		case "json":
			sink, err := buildJSONSink(cfg.JSON)
			if err != nil {
				return nil, err
			}
			named = append(named, logging.NamedSink{Name: "json", Sink: sink})
		}
	}
	return logging.NewRouter(logging.SystemClock{}, cfg, named)
}

// buildJSONSink writes to the configured file, or stdout when no path is set.
func buildJSONSink(cfg logging.JSONConfig) (logging.Sink, error) {
	var w io.Writer = os.Stdout
	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("app: open json log %s: %w", cfg.FilePath, err)
		}
		w = f
	}
	return sinks.NewJSON(w, cfg.FlushInterval), nil
}
