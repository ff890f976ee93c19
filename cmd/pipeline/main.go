package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/mail"
	"github.com/roberthaven/outreach/internal/pipeline"
	"github.com/roberthaven/outreach/internal/repository/sqlstore"
	"github.com/roberthaven/outreach/pkg/logger"
	"github.com/roberthaven/outreach/pkg/metrics"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to config file (optional)")
		stage        = flag.String("stage", "all", "stage to run: all|search|scrape|curate|compose|flyers|broker|worker")
		live         = flag.Bool("live", false, "continue past the approval checkpoint and send for real")
		dryRun       = flag.Bool("dry-run", true, "simulate sends in the worker stage")
		approvedOnly = flag.Bool("approved-only", true, "broker only converts approved rows")
		confirm      = flag.Bool("yes", false, "confirm an approved batch larger than the safety limit")
	)
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{Level: logger.ParseLevel(cfg.Logging.Level)})

	store, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal(err, "failed to open package store")
	}
	defer store.Close()
	repo := sqlstore.NewPackageRepository(store)

	m := metrics.New("outreach")
	m.Register(prometheus.DefaultRegisterer)

	// The gateway is only needed for live sends; dry runs never touch it.
	var gateway mail.Gateway
	if *live || !*dryRun {
		gateway, err = mail.NewSMTPGateway(cfg.SMTP)
		if err != nil {
			log.Fatal(err, "failed to configure mail gateway")
		}
	}

	p := pipeline.New(cfg, repo, gateway, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, p, *stage, *live, *dryRun, *approvedOnly, *confirm); err != nil {
		log.Fatal(err, "pipeline run failed", "stage", *stage)
	}
}

func run(ctx context.Context, p *pipeline.Pipeline, stage string, live, dryRun, approvedOnly, confirm bool) error {
	switch stage {
	case "all":
		return p.RunAll(ctx, pipeline.Options{Live: live, OnlyApproved: approvedOnly, Confirm: confirm})
	case "search":
		return p.RunSearch(ctx)
	case "scrape":
		return p.RunScrape(ctx)
	case "curate":
		return p.RunCurate(ctx)
	case "compose":
		return p.RunCompose(ctx)
	case "flyers":
		return p.RunFlyers(ctx)
	case "broker":
		return p.RunBroker(ctx, approvedOnly, confirm)
	case "worker":
		return p.RunWorker(ctx, dryRun)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}
