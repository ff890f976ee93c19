package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roberthaven/outreach/internal/broker"
	"github.com/roberthaven/outreach/internal/composer"
	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/mail"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/internal/repository"
	"github.com/roberthaven/outreach/internal/repository/sqlstore"
	"github.com/roberthaven/outreach/internal/worker"
	"github.com/roberthaven/outreach/pkg/logger"
)

type fakeHandle struct {
	sent    []mail.Message
	sendErr map[string]error
	closed  bool
}

func (h *fakeHandle) Send(_ context.Context, msg mail.Message) (string, error) {
	if err := h.sendErr[msg.To]; err != nil {
		return "", err
	}
	h.sent = append(h.sent, msg)
	return fmt.Sprintf("<msg-%d@test.local>", len(h.sent)), nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

type fakeGateway struct {
	handle    *fakeHandle
	authErr   error
	authCalls int
}

func (g *fakeGateway) Authenticate(context.Context) (mail.Handle, error) {
	g.authCalls++
	if g.authErr != nil {
		return nil, g.authErr
	}
	return g.handle, nil
}

type testEnv struct {
	data config.DataConfig
	repo repository.PackageRepository
	log  *logger.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlstore.Open("sqlite3", filepath.Join(dir, "packages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &testEnv{
		data: config.DataConfig{Dir: dir},
		repo: sqlstore.NewPackageRepository(store),
		log:  logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
	}
}

func (e *testEnv) writeCurated(t *testing.T, rows ...string) string {
	t.Helper()
	header := "organization,url,emails,phones,snippet,score,approved,contact_name"
	content := header + "\n" + strings.Join(rows, "\n") + "\n"
	path := e.data.CuratedCSV()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) createPackages(t *testing.T, rows ...string) []broker.Created {
	t.Helper()
	path := e.writeCurated(t, rows...)
	comp := composer.New(config.OutreachConfig{SenderName: "Robert", City: "Winter Haven"}, e.log)
	b := broker.New(e.repo, comp, e.data, e.log, nil)
	created, err := b.CreatePackages(context.Background(), path, "", true)
	require.NoError(t, err)
	return created
}

func (e *testEnv) newWorker(gateway mail.Gateway) *worker.Worker {
	return worker.New(e.repo, gateway, e.data, e.log, nil)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPollAndSendDryRun(t *testing.T) {
	env := newTestEnv(t)
	env.createPackages(t,
		`Acme Rooms,https://x.test/1,a@x.com,,,,true,`,
		`No Mail LLC,https://x.test/2,,,,,true,`,
	)

	w := env.newWorker(nil) // dry run must never touch the gateway
	outcomes, err := w.PollAndSend(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, model.PackageStatusDryRun, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Detail, "DRY RUN")
	assert.Contains(t, outcomes[0].Detail, "a@x.com")
	assert.True(t, fileExists(filepath.Join(env.data.SentDir(), "package_1.json")))

	assert.Equal(t, model.PackageStatusFailed, outcomes[1].Status)
	assert.Equal(t, worker.ReasonMissingEmail, outcomes[1].Detail)
	assert.True(t, fileExists(filepath.Join(env.data.FailedDir(), "package_2.json")))

	pkg1, err := env.repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.PackageStatusDryRun, pkg1.Status)
	assert.Contains(t, pkg1.SendResult, "DRY RUN")

	pkg2, err := env.repo.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, model.PackageStatusFailed, pkg2.Status)
	assert.Equal(t, worker.ReasonMissingEmail, pkg2.SendResult)
}

func TestPollAndSendEmptyPending(t *testing.T) {
	env := newTestEnv(t)

	outcomes, err := env.newWorker(nil).PollAndSend(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestPollAndSendDoesNotReprocess(t *testing.T) {
	env := newTestEnv(t)
	env.createPackages(t, `Acme Rooms,https://x.test/1,a@x.com,,,,true,`)

	w := env.newWorker(nil)
	first, err := w.PollAndSend(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := w.PollAndSend(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, second, "moved packages must not be reprocessed")
}

func TestPollAndSendLive(t *testing.T) {
	env := newTestEnv(t)
	env.createPackages(t,
		`Acme Rooms,https://x.test/1,a@x.com,,,,true,`,
		`Broken Relay,https://x.test/2,b@x.com,,,,true,`,
	)

	handle := &fakeHandle{sendErr: map[string]error{"b@x.com": errors.New("smtp: 550 rejected")}}
	gateway := &fakeGateway{handle: handle}

	outcomes, err := env.newWorker(gateway).PollAndSend(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, 1, gateway.authCalls, "one gateway handle per run")
	assert.True(t, handle.closed)

	assert.Equal(t, model.PackageStatusSent, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Detail, "@test.local")
	assert.True(t, fileExists(filepath.Join(env.data.SentDir(), "package_1.json")))

	assert.Equal(t, model.PackageStatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Detail, "550 rejected")
	assert.True(t, fileExists(filepath.Join(env.data.FailedDir(), "package_2.json")))

	pkg1, err := env.repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.PackageStatusSent, pkg1.Status)
	assert.Equal(t, outcomes[0].Detail, pkg1.SendResult)

	require.Len(t, handle.sent, 1)
	assert.Equal(t, "a@x.com", handle.sent[0].To)
}

func TestPollAndSendAuthFailureLeavesPendingIntact(t *testing.T) {
	env := newTestEnv(t)
	env.createPackages(t, `Acme Rooms,https://x.test/1,a@x.com,,,,true,`)

	gateway := &fakeGateway{authErr: errors.New("535 bad credentials")}
	_, err := env.newWorker(gateway).PollAndSend(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")

	assert.True(t, fileExists(filepath.Join(env.data.PendingDir(), "package_1.json")),
		"auth failure must leave packages pending for retry")
	pkg, err := env.repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.PackageStatusPending, pkg.Status)
}

func TestPollAndSendNumericOrder(t *testing.T) {
	env := newTestEnv(t)
	rows := make([]string, 11)
	for i := range rows {
		rows[i] = fmt.Sprintf(`Org %d,https://x.test/%d,user%d@x.com,,,,true,`, i+1, i+1, i+1)
	}
	env.createPackages(t, rows...)

	outcomes, err := env.newWorker(nil).PollAndSend(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, outcomes, 11)
	for i, outcome := range outcomes {
		assert.Equal(t, int64(i+1), outcome.ID, "package_10 must not sort before package_2")
	}
}

func TestPollAndSendUnreadablePackage(t *testing.T) {
	env := newTestEnv(t)
	env.createPackages(t, `Acme Rooms,https://x.test/1,a@x.com,,,,true,`)
	require.NoError(t, os.WriteFile(filepath.Join(env.data.PendingDir(), "package_2.json"), []byte("{not json"), 0o644))

	outcomes, err := env.newWorker(nil).PollAndSend(context.Background(), true)
	require.NoError(t, err, "a corrupt package must not abort the batch")
	require.Len(t, outcomes, 2)

	assert.Equal(t, model.PackageStatusDryRun, outcomes[0].Status)
	assert.Equal(t, model.PackageStatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Detail, "unreadable package")
	assert.True(t, fileExists(filepath.Join(env.data.FailedDir(), "package_2.json")))
}
