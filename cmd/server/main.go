package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookmark-cataloger/internal/api"
	"bookmark-cataloger/internal/app"
	"bookmark-cataloger/internal/config"
	"bookmark-cataloger/pkg/logger"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("BOOKMARKCAT_CONFIG"), "path to YAML config")
	input := flag.String("input", "", "CSV/NDJSON URL list to catalog instead of the bookmark file")
	flag.Parse()

	l := logger.New()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		l.Errorf("%v", err)
		os.Exit(1)
	}
	l = logger.NewWith(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	// root context for background scans; cancelled on shutdown
	root, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	a, err := app.New(root, cfg, l, app.Options{Input: *input})
	if err != nil {
		l.Errorf("startup: %v", err)
		os.Exit(1)
	}
	if err := a.Service.Init(root); err != nil {
		l.Errorf("init options: %v", err)
		os.Exit(1)
	}

	h := api.NewHandler(a.Service, a.Bus, l).WithGatherer(a.Registry)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	// open event streams would otherwise keep Shutdown waiting
	srv.RegisterOnShutdown(h.Close)

	go func() {
		l.Infof("server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	l.Infof("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	// in-flight fetches fail fast and the scan writes its final snapshot
	cancelRoot()
	a.Service.Wait()
	if err := a.Close(); err != nil {
		l.Errorf("close: %v", err)
	}
	l.Infof("bye")
}
