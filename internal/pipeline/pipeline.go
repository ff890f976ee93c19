// Package pipeline sequences the outreach stages behind the human approval
// checkpoint: discovery and curation run freely, but nothing is composed or
// sent until the operator has reviewed the shortlist.
package pipeline

import (
	"context"
	"fmt"

	"github.com/roberthaven/outreach/internal/broker"
	"github.com/roberthaven/outreach/internal/composer"
	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/curator"
	"github.com/roberthaven/outreach/internal/mail"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/internal/pdf"
	"github.com/roberthaven/outreach/internal/repository"
	"github.com/roberthaven/outreach/internal/scraper"
	"github.com/roberthaven/outreach/internal/search"
	"github.com/roberthaven/outreach/internal/worker"
	"github.com/roberthaven/outreach/pkg/logger"
	"github.com/roberthaven/outreach/pkg/metrics"
)

// Options control a full pipeline run.
type Options struct {
	// Live continues past the approval checkpoint and performs real sends.
	Live bool
	// OnlyApproved restricts the broker to rows with a truthy approval flag.
	OnlyApproved bool
	// Confirm acknowledges an approved batch larger than the approval limit.
	Confirm bool
}

type Pipeline struct {
	cfg      *config.Config
	repo     repository.PackageRepository
	searcher *search.Searcher
	scraper  *scraper.Scraper
	curator  *curator.Curator
	composer *composer.Composer
	broker   *broker.Broker
	worker   *worker.Worker
	log      *logger.Logger
}

// New wires every stage. gateway may be nil when no live sends will happen;
// the worker only authenticates outside dry-run mode.
func New(cfg *config.Config, repo repository.PackageRepository, gateway mail.Gateway, log *logger.Logger, m *metrics.Metrics) *Pipeline {
	comp := composer.New(cfg.Outreach, log)
	return &Pipeline{
		cfg:      cfg,
		repo:     repo,
		searcher: search.New(cfg.Search, log, m),
		scraper:  scraper.New(cfg.Scraper, log, m),
		curator:  curator.New(cfg.Curator, log),
		composer: comp,
		broker:   broker.New(repo, comp, cfg.Data, log, m),
		worker:   worker.New(repo, gateway, cfg.Data, log, m),
		log:      log,
	}
}

func (p *Pipeline) RunSearch(ctx context.Context) error {
	hits, err := p.searcher.Run(ctx)
	if err != nil {
		return fmt.Errorf("search stage failed: %w", err)
	}
	return search.SaveHits(p.cfg.Data.SearchResults(), hits)
}

func (p *Pipeline) RunScrape(ctx context.Context) error {
	hits, err := search.LoadHits(p.cfg.Data.SearchResults())
	if err != nil {
		return fmt.Errorf("scrape stage needs search results: %w", err)
	}
	rows, err := p.scraper.ScrapeHits(ctx, hits)
	if err != nil {
		return fmt.Errorf("scrape stage failed: %w", err)
	}
	return scraper.WriteContacts(p.cfg.Data.RawContactsCSV(), rows)
}

func (p *Pipeline) RunCurate(ctx context.Context) error {
	_, err := p.curator.CurateFile(p.cfg.Data.RawContactsCSV(), p.cfg.Data.CuratedCSV())
	if err != nil {
		return fmt.Errorf("curate stage failed: %w", err)
	}
	p.log.Info("review the shortlist and set approved=true on rows to contact",
		"shortlist", p.cfg.Data.CuratedCSV())
	return nil
}

func (p *Pipeline) RunCompose(ctx context.Context) error {
	rows, err := curator.ReadShortlist(p.cfg.Data.CuratedCSV())
	if err != nil {
		return fmt.Errorf("compose stage failed: %w", err)
	}
	return p.composer.WriteDrafts(p.cfg.Data.DraftsJSON(), p.composer.Compose(rows))
}

func (p *Pipeline) RunFlyers(ctx context.Context) error {
	rows, err := curator.ReadShortlist(p.cfg.Data.CuratedCSV())
	if err != nil {
		return fmt.Errorf("flyer stage failed: %w", err)
	}
	_, err = pdf.RenderFlyers(rows, p.cfg.Data.FlyerDir(), p.cfg.Outreach, p.log)
	return err
}

// RunBroker converts approved shortlist rows into pending packages, refusing
// batches above the approval limit unless confirmed.
func (p *Pipeline) RunBroker(ctx context.Context, onlyApproved, confirm bool) error {
	if onlyApproved {
		if err := p.checkApprovalGate(confirm); err != nil {
			return err
		}
	}
	created, err := p.broker.CreatePackages(ctx, p.cfg.Data.CuratedCSV(), p.cfg.Data.FlyerDir(), onlyApproved)
	if err != nil {
		return fmt.Errorf("broker stage failed: %w", err)
	}
	if len(created) == 0 {
		p.log.Warn("broker created no packages; check the approval column in the shortlist")
	}
	return nil
}

func (p *Pipeline) RunWorker(ctx context.Context, dryRun bool) error {
	if _, err := p.worker.PollAndSend(ctx, dryRun); err != nil {
		return fmt.Errorf("worker stage failed: %w", err)
	}
	p.logStoreCounts(ctx)
	return nil
}

// RunAll executes the whole pipeline. Without Live it stops at the approval
// checkpoint after writing the shortlist; with Live it continues through
// compose, flyers, broker, and a real (non-dry-run) worker pass.
func (p *Pipeline) RunAll(ctx context.Context, opts Options) error {
	if err := p.RunSearch(ctx); err != nil {
		return err
	}
	if err := p.RunScrape(ctx); err != nil {
		return err
	}
	if err := p.RunCurate(ctx); err != nil {
		return err
	}

	if !opts.Live {
		p.log.Info("dry run: stopping at the approval checkpoint")
		return nil
	}

	if err := p.RunCompose(ctx); err != nil {
		return err
	}
	if err := p.RunFlyers(ctx); err != nil {
		return err
	}
	if err := p.RunBroker(ctx, opts.OnlyApproved, opts.Confirm); err != nil {
		return err
	}
	return p.RunWorker(ctx, false)
}

func (p *Pipeline) checkApprovalGate(confirm bool) error {
	rows, err := curator.ReadShortlist(p.cfg.Data.CuratedCSV())
	if err != nil {
		return err
	}
	approved := 0
	for _, row := range rows {
		if broker.ParseApproved(row.Approved) {
			approved++
		}
	}
	if approved == 0 {
		return fmt.Errorf("no approved rows in %s; approve a small test batch first", p.cfg.Data.CuratedCSV())
	}
	if approved > p.cfg.Pipeline.ApprovalLimit && !confirm {
		return fmt.Errorf("%d rows approved exceeds the safety limit of %d; re-run with confirmation to proceed",
			approved, p.cfg.Pipeline.ApprovalLimit)
	}
	return nil
}

func (p *Pipeline) logStoreCounts(ctx context.Context) {
	fields := make([]interface{}, 0, 8)
	for _, status := range []model.PackageStatus{
		model.PackageStatusPending,
		model.PackageStatusSent,
		model.PackageStatusDryRun,
		model.PackageStatusFailed,
	} {
		n, err := p.repo.CountByStatus(ctx, status)
		if err != nil {
			p.log.Error(err, "failed to read store counts")
			return
		}
		fields = append(fields, string(status), n)
	}
	p.log.Info("package store summary", fields...)
}
