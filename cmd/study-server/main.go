package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	study "github.com/goliatone/go-study"
	"github.com/goliatone/go-study/airtable"
	"github.com/goliatone/go-study/email"
)

func main() {
	cfg, err := study.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Study == nil {
		log.Fatal("Missing study configuration")
	}

	logger := study.NewLogrusLogger(cfg.LogLevel, cfg.Development)

	codec, err := study.NewCodec(cfg.Auth.SecretKeys, logger)
	if err != nil {
		log.Fatalf("Failed to build token codec: %v", err)
	}

	store := airtable.NewStore(
		airtable.NewClient(cfg.Study.AirtableAPIKey, cfg.Study.AirtableBaseID),
		*cfg.Study,
	)

	mailer, err := email.New(cfg.Email, logger)
	if err != nil {
		log.Fatalf("Failed to build email sender: %v", err)
	}

	renderer, err := email.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to load email templates: %v", err)
	}

	links := study.NewLinks(codec, cfg.StudyPublicURL)
	resolver := study.NewResolver(codec, store, logger)
	controller := study.NewController(store, codec, links, mailer, renderer, logger)

	var metrics *study.Metrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = study.NewMetrics(registry)

		go serveMetrics(cfg.Server.MetricsPort, registry, logger)
	}

	app := study.NewApp(study.AppOptions{
		Config:     cfg,
		Resolver:   resolver,
		Controller: controller,
		Metrics:    metrics,
		Logger:     logger,
	})

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("study API listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown did not complete cleanly: %v", err)
	}
}

func serveMetrics(port int, registry *prometheus.Registry, logger study.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener stopped: %v", err)
	}
}
