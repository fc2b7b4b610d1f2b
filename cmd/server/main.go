package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"flightrecorder/internal/config"
	"flightrecorder/internal/httpapi"
	"flightrecorder/internal/jobs"
	"flightrecorder/internal/logging"
	"flightrecorder/internal/metrics"
	"flightrecorder/internal/otelsetup"
	"flightrecorder/internal/storage"
	"flightrecorder/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log.WithField("version", version.Version).Info("starting flightrecorder")

	ctx := context.Background()
	telemetry, err := otelsetup.Init(ctx, cfg.OTel, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise telemetry")
	}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// Dispatcher coordinates the export queues and their processors
	d, err := jobs.NewDispatcher(store, jobs.NewHandlers(cfg.Export, log), jobs.DispatcherConfig{
		PollInterval: cfg.Worker.PollInterval,
		Log:          log,
		Metrics:      collector,
		JobsCreated:  telemetry.JobsCreated,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create dispatcher")
	}
	d.Start(ctx)

	h := &httpapi.Handler{Store: store, Jobs: d, Metrics: collector, Log: log}
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpapi.NewRouter(h),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen error")
		}
	}()

	<-stop
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Gracefully stop HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	// Wait for in-flight work items
	d.Stop()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("telemetry shutdown")
	}
	if err := store.Close(); err != nil {
		log.WithError(err).Warn("close store")
	}
	log.Info("bye")
}
