package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	study "github.com/goliatone/go-study"
	"github.com/goliatone/go-study/airtable"
	"github.com/goliatone/go-study/sync"
)

var (
	runOnce = flag.Bool("run-once", false, "Run every job once and exit")
	job     = flag.String("job", "", "Run a single job and exit: class_requests, students_to_add, remove_self_from_classes, external_logins_to_add")
)

func main() {
	flag.Parse()

	cfg, err := study.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Study == nil {
		log.Fatal("Missing study configuration")
	}
	if cfg.Sync == nil {
		log.Fatal("Missing sync configuration")
	}

	logger := study.NewLogrusLogger(cfg.LogLevel, cfg.Development)

	catalog := sync.NewCatalog(
		airtable.NewClient(cfg.Study.AirtableAPIKey, cfg.Study.AirtableBaseID),
	)
	platform := sync.NewPlatformClient(cfg.Sync.PlatformURL, cfg.Sync.PlatformCookie)
	processor := sync.NewProcessor(catalog, platform, logger)

	ctx := context.Background()

	if *job != "" {
		if err := runJob(ctx, processor, *job); err != nil {
			log.Fatalf("Job %s failed: %v", *job, err)
		}
		return
	}

	if *runOnce {
		processor.Run(ctx)
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Sync.Schedule, func() {
		processor.Run(context.Background())
	}); err != nil {
		log.Fatalf("Failed to schedule sync run: %v", err)
	}

	scheduler.Start()
	logger.Info("study sync started with schedule %q", cfg.Sync.Schedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	<-scheduler.Stop().Done()
}

func runJob(ctx context.Context, processor *sync.Processor, name string) error {
	switch name {
	case "class_requests":
		return processor.ProcessClassRequests(ctx)
	case "students_to_add":
		return processor.ProcessStudentsToAdd(ctx)
	case "remove_self_from_classes":
		return processor.ProcessRemoveSelfFromClasses(ctx)
	case "external_logins_to_add":
		return processor.ProcessExternalLoginsToAdd(ctx)
	default:
		log.Fatalf("Unknown job: %s", name)
		return nil
	}
}
