package scraper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/pkg/logger"
)

const listingPage = `<html><body>
<h1>Room available</h1>
<p>Contact us at owner@lakeside.test or call (863) 555-0123.</p>
<p>Bulk mail goes to noreply@lakeside.test.</p>
<a href="mailto:caretaker@lakeside.test?subject=Room">Email the caretaker</a>
</body></html>`

func testScraper() *Scraper {
	cfg := config.ScraperConfig{
		TimeoutSeconds:    5,
		RequestsPerMinute: 6000,
		MaxBodyBytes:      1 << 20,
		UserAgent:         "outreach-test/1.0",
	}
	return New(cfg, logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}), nil)
}

func TestScrapeHitsExtractsContacts(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		io.WriteString(w, listingPage)
	}))
	defer srv.Close()

	s := testScraper()
	rows, err := s.ScrapeHits(context.Background(), []model.SearchHit{
		{Title: "Lakeside Room", Link: srv.URL, Snippet: "quiet room"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "Lakeside Room", row.Organization)
	assert.Equal(t, srv.URL, row.URL)
	assert.Equal(t, "quiet room", row.Snippet)
	// Sorted, deduped, no-reply filtered, mailto query string stripped.
	assert.Equal(t, "caretaker@lakeside.test;owner@lakeside.test", row.Emails)
	assert.Equal(t, "(863) 555-0123", row.Phones)
	assert.Equal(t, "outreach-test/1.0", gotUA.Load())
}

func TestScrapeHitsCachesPages(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		io.WriteString(w, listingPage)
	}))
	defer srv.Close()

	s := testScraper()
	rows, err := s.ScrapeHits(context.Background(), []model.SearchHit{
		{Title: "First", Link: srv.URL},
		{Title: "Second", Link: srv.URL},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, rows[0].Emails, rows[1].Emails)
}

func TestScrapeHitsFetchFailureYieldsEmptyRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	s := testScraper()
	rows, err := s.ScrapeHits(context.Background(), []model.SearchHit{
		{Title: "Dead Listing", Link: srv.URL, Snippet: "was here once"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dead Listing", rows[0].Organization)
	assert.Empty(t, rows[0].Emails)
	assert.Empty(t, rows[0].Phones)
}

func TestScrapeHitsSkipsEmptyLinks(t *testing.T) {
	s := testScraper()
	rows, err := s.ScrapeHits(context.Background(), []model.SearchHit{
		{Title: "No Link"},
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUsableEmail(t *testing.T) {
	s := testScraper()
	assert.True(t, s.usableEmail("owner@lakeside.test"))
	assert.False(t, s.usableEmail(""))
	assert.False(t, s.usableEmail("noreply@lakeside.test"))
	assert.False(t, s.usableEmail("No-Reply@lakeside.test"))
	assert.False(t, s.usableEmail("donotreply@lakeside.test"))
	assert.False(t, s.usableEmail("not-an-email"))
}
