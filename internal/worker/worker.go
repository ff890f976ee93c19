// Package worker drains the pending directory: each package file is sent (or
// simulated), relocated to a terminal directory with a single atomic rename,
// and its store row updated to match. One bad package never aborts the batch.
//
// The worker takes no locks against a concurrently running broker; the
// operational contract is that the two never run against the same sandbox at
// the same time.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/mail"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/internal/repository"
	"github.com/roberthaven/outreach/pkg/logger"
	"github.com/roberthaven/outreach/pkg/metrics"
	"github.com/roberthaven/outreach/pkg/textutil"
)

// ReasonMissingEmail is the recorded failure for a package whose email list
// has no usable entry; the gateway is never contacted for these.
const ReasonMissingEmail = "missing_email"

var packageFileRE = regexp.MustCompile(`^package_(\d+)\.json$`)

// Outcome is the per-package result of a worker run. Err is set only for
// unexpected processing failures (unreadable file, rename or store errors);
// an expected failure such as a refused send or a missing recipient carries
// its reason in Detail with Err nil.
type Outcome struct {
	File   string
	ID     int64
	Status model.PackageStatus
	Detail string
	Err    error
}

type Worker struct {
	repo    repository.PackageRepository
	gateway mail.Gateway
	data    config.DataConfig
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(repo repository.PackageRepository, gateway mail.Gateway, data config.DataConfig, log *logger.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		repo:    repo,
		gateway: gateway,
		data:    data,
		log:     log,
		metrics: m,
	}
}

// PollAndSend processes every package file currently in the pending
// directory, in ascending id order, exactly once. With dryRun set the
// gateway is never contacted and every deliverable package lands in
// dry_run; without it a single authenticated handle is acquired up front
// and reused for the whole batch. A gateway authentication failure aborts
// the run before any file is touched, leaving the pending directory intact
// for a retry.
func (w *Worker) PollAndSend(ctx context.Context, dryRun bool) ([]Outcome, error) {
	if err := w.ensureDirs(); err != nil {
		return nil, err
	}
	if w.metrics != nil {
		timer := prometheus.NewTimer(w.metrics.WorkerRunDuration)
		defer timer.ObserveDuration()
	}

	files, err := w.pendingFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		w.log.Info("no packages found in pending directory", "dir", w.data.PendingDir())
		return []Outcome{}, nil
	}

	var handle mail.Handle
	if !dryRun {
		handle, err = w.gateway.Authenticate(ctx)
		if err != nil {
			return nil, fmt.Errorf("gateway authentication failed, leaving packages pending: %w", err)
		}
		defer handle.Close()
	}

	outcomes := make([]Outcome, 0, len(files))
	succeeded, failed := 0, 0
	for _, pf := range files {
		outcome := w.process(ctx, pf, handle, dryRun)
		outcomes = append(outcomes, outcome)

		if outcome.Status == model.PackageStatusFailed {
			failed++
			if w.metrics != nil {
				w.metrics.PackagesFailed.Inc()
			}
			w.log.Warn("package failed", "file", outcome.File, "id", outcome.ID, "reason", outcome.Detail)
		} else {
			succeeded++
			if w.metrics != nil {
				w.metrics.PackagesProcessed.Inc()
			}
			w.log.Info("package processed", "file", outcome.File, "id", outcome.ID, "status", string(outcome.Status))
		}
	}

	w.log.Info("worker run complete",
		"processed", len(outcomes), "succeeded", succeeded, "failed", failed, "dry_run", dryRun)
	return outcomes, nil
}

type pendingFile struct {
	name string
	id   int64
}

// pendingFiles lists package files sorted by parsed numeric id, so
// package_10 never sorts before package_2.
func (w *Worker) pendingFiles() ([]pendingFile, error) {
	entries, err := os.ReadDir(w.data.PendingDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read pending directory: %w", err)
	}

	var files []pendingFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := packageFileRE.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		files = append(files, pendingFile{name: entry.Name(), id: id})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].id < files[j].id })
	return files, nil
}

// process handles one package end to end. Every path out of here leaves the
// file in exactly one terminal directory and the store row in the matching
// state; unexpected errors route the package to failed rather than aborting
// the batch.
func (w *Worker) process(ctx context.Context, pf pendingFile, handle mail.Handle, dryRun bool) Outcome {
	src := filepath.Join(w.data.PendingDir(), pf.name)

	pkg, err := readPackageFile(src)
	if err != nil {
		return w.fail(ctx, pf, src, fmt.Sprintf("unreadable package: %v", err), err)
	}

	recipient := textutil.FirstEntry(pkg.Emails)
	if recipient == "" {
		return w.fail(ctx, pf, src, ReasonMissingEmail, nil)
	}

	var detail string
	status := model.PackageStatusSent
	if dryRun {
		status = model.PackageStatusDryRun
		detail = fmt.Sprintf("DRY RUN → to=%s subject=%q attach=%q", recipient, pkg.Subject, pkg.PDF)
	} else {
		messageID, err := handle.Send(ctx, mail.Message{
			To:             recipient,
			Subject:        pkg.Subject,
			TextBody:       pkg.BodyText,
			HTMLBody:       pkg.BodyHTML,
			AttachmentPath: pkg.PDF,
		})
		if err != nil {
			return w.fail(ctx, pf, src, err.Error(), nil)
		}
		detail = messageID
	}

	if err := w.moveTo(src, w.data.SentDir(), pf.name); err != nil {
		return w.fail(ctx, pf, src, fmt.Sprintf("relocate after send: %v", err), err)
	}
	outcome := Outcome{File: pf.name, ID: pf.id, Status: status, Detail: detail}
	if err := w.repo.UpdateStatus(ctx, pf.id, status, detail); err != nil {
		// The file has already moved; record the store drift on the outcome
		// instead of re-routing a delivered package to failed.
		outcome.Err = err
		w.log.Error(err, "store update failed after relocation", "id", pf.id)
	}
	return outcome
}

// fail routes a package to the failed directory and marks its row. Errors
// while failing are logged and folded into the outcome; the batch goes on.
func (w *Worker) fail(ctx context.Context, pf pendingFile, src, reason string, cause error) Outcome {
	outcome := Outcome{File: pf.name, ID: pf.id, Status: model.PackageStatusFailed, Detail: reason, Err: cause}
	if err := w.moveTo(src, w.data.FailedDir(), pf.name); err != nil {
		w.log.Error(err, "failed to relocate package to failed directory", "file", pf.name)
		if outcome.Err == nil {
			outcome.Err = err
		}
	}
	if err := w.repo.UpdateStatus(ctx, pf.id, model.PackageStatusFailed, reason); err != nil {
		w.log.Error(err, "failed to mark package failed", "id", pf.id)
		if outcome.Err == nil {
			outcome.Err = err
		}
	}
	return outcome
}

// moveTo relocates with a single rename so a crash can never leave the file
// both duplicated and live in two directories.
func (w *Worker) moveTo(src, destDir, name string) error {
	if err := os.Rename(src, filepath.Join(destDir, name)); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", name, destDir, err)
	}
	return nil
}

func (w *Worker) ensureDirs() error {
	for _, dir := range []string{w.data.PendingDir(), w.data.SentDir(), w.data.FailedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func readPackageFile(path string) (*model.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pkg model.Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}
