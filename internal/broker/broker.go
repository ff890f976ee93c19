// Package broker converts human-approved curated rows into durable send
// packages: one JSON file in the pending directory plus one store row per
// approved contact.
//
// The broker takes no locks against a concurrently running worker; the
// operational contract is that the two never run against the same sandbox at
// the same time.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/roberthaven/outreach/internal/composer"
	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/internal/repository"
	"github.com/roberthaven/outreach/pkg/logger"
	"github.com/roberthaven/outreach/pkg/metrics"
	"github.com/roberthaven/outreach/pkg/textutil"
)

// ApprovedSpellings are the accepted truthy values of a curated row's
// approval flag, compared case-insensitively.
var ApprovedSpellings = map[string]struct{}{
	"true": {},
	"1":    {},
	"yes":  {},
}

// ParseApproved reports whether the flag value counts as approved.
func ParseApproved(value string) bool {
	_, ok := ApprovedSpellings[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// Created identifies one package produced by a broker run.
type Created struct {
	ID   int64
	Path string
}

type Broker struct {
	repo     repository.PackageRepository
	composer *composer.Composer
	data     config.DataConfig
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func New(repo repository.PackageRepository, comp *composer.Composer, data config.DataConfig, log *logger.Logger, m *metrics.Metrics) *Broker {
	return &Broker{
		repo:     repo,
		composer: comp,
		data:     data,
		log:      log,
		metrics:  m,
	}
}

// CreatePackages reads the curated file and creates one pending package per
// row that passes the approval gate, in row order. Row order defines the
// 1-based index used for draft and attachment lookup. A missing curated file
// is fatal; a row missing optional pieces (draft, attachment) is not.
//
// Re-running over the same curated file without clearing the pending
// directory creates duplicate packages for the same logical row; the broker
// warns about a non-empty pending directory but does not dedupe.
func (b *Broker) CreatePackages(ctx context.Context, curatedPath, attachmentDir string, onlyApproved bool) ([]Created, error) {
	if err := b.ensureDirs(); err != nil {
		return nil, err
	}
	b.warnIfPendingNotEmpty()

	rows, err := readCurated(curatedPath)
	if err != nil {
		return nil, err
	}

	drafts, err := composer.LoadDrafts(b.data.DraftsJSON())
	if err != nil {
		b.log.Warn("drafts unreadable, synthesizing all bodies", "path", b.data.DraftsJSON(), "error", err.Error())
		drafts = map[int]model.Draft{}
	}

	created := make([]Created, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		index := i + 1
		if onlyApproved && !ParseApproved(row.Approved) {
			continue
		}

		draft, ok := drafts[index]
		if !ok {
			draft = b.composer.Draft(row, index)
		}

		org := row.Organization
		if org == "" {
			org = "Contact"
		}
		contactName := row.ContactName
		if contactName == "" {
			contactName = org
		}

		pkg := &model.Package{
			Org:         org,
			ContactName: contactName,
			Emails:      row.Emails,
			Phones:      row.Phones,
			PDF:         findAttachment(attachmentDir, index, org),
			Subject:     draft.Subject,
			BodyText:    draft.BodyText,
			BodyHTML:    draft.BodyHTML,
			ListingURL:  row.URL,
		}

		id, err := b.repo.Create(ctx, pkg)
		if err != nil {
			return created, fmt.Errorf("failed to record package for row %d: %w", index, err)
		}

		path, err := b.writePackageFile(pkg)
		if err != nil {
			return created, err
		}

		if b.metrics != nil {
			b.metrics.PackagesCreated.Inc()
		}
		b.log.Debug("created package", "id", id, "org", org)
		created = append(created, Created{ID: id, Path: path})
	}

	b.log.Info("broker run complete", "created", len(created), "pending_dir", b.data.PendingDir())
	return created, nil
}

func (b *Broker) ensureDirs() error {
	for _, dir := range []string{b.data.PendingDir(), b.data.SentDir(), b.data.FailedDir(), b.data.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func (b *Broker) warnIfPendingNotEmpty() {
	matches, err := filepath.Glob(filepath.Join(b.data.PendingDir(), "package_*.json"))
	if err == nil && len(matches) > 0 {
		b.log.Warn("pending directory is not empty; re-running the broker will duplicate packages",
			"pending", len(matches))
	}
}

func (b *Broker) writePackageFile(pkg *model.Package) (string, error) {
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal package %d: %w", pkg.ID, err)
	}
	path := filepath.Join(b.data.PendingDir(), model.PackageFileName(pkg.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write package %d: %w", pkg.ID, err)
	}
	return path, nil
}

func readCurated(path string) ([]model.CuratedContact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open curated file: %w", err)
	}
	defer f.Close()

	var rows []model.CuratedContact
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse curated file %s: %w", path, err)
	}
	return rows, nil
}

// findAttachment looks for a flyer named for the row index, then for the org
// slug, then gives up; a package without an attachment is still valid.
func findAttachment(dir string, index int, org string) string {
	if dir == "" {
		return ""
	}
	matches, _ := filepath.Glob(filepath.Join(dir, fmt.Sprintf("personal_flyer_%d_*.pdf", index)))
	if len(matches) == 0 {
		slug := textutil.Slugify(org)
		matches, _ = filepath.Glob(filepath.Join(dir, "*"+slug+"*.pdf"))
	}
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}
