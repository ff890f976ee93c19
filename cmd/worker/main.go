package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/mail"
	"github.com/roberthaven/outreach/internal/repository/sqlstore"
	"github.com/roberthaven/outreach/internal/worker"
	"github.com/roberthaven/outreach/pkg/logger"
	"github.com/roberthaven/outreach/pkg/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional)")
		dryRun     = flag.Bool("dry-run", true, "simulate sends instead of contacting the gateway")
		watch      = flag.Bool("watch", false, "keep polling the pending directory until interrupted")
	)
	flag.Parse()

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

	var gateway mail.Gateway
	if !*dryRun {
		gateway, err = mail.NewSMTPGateway(cfg.SMTP)
		if err != nil {
			log.Fatal(err, "failed to configure mail gateway")
		}
	}

	m := metrics.New("outreach")
	m.Register(prometheus.DefaultRegisterer)

	w := worker.New(sqlstore.NewPackageRepository(store), gateway, cfg.Data, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*watch {
		if _, err := w.PollAndSend(ctx, *dryRun); err != nil {
			log.Fatal(err, "worker run failed")
		}
		return
	}

	log.Info("worker watching pending directory", "interval", cfg.Worker.PollInterval().String())
	ticker := time.NewTicker(cfg.Worker.PollInterval())
	defer ticker.Stop()

	for {
		if _, err := w.PollAndSend(ctx, *dryRun); err != nil {
			log.Error(err, "worker run failed")
		}
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		case <-ticker.C:
		}
	}
}
