// Package scraper fetches listing pages and extracts contact details.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"github.com/gocarina/gocsv"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/pkg/logger"
	"github.com/roberthaven/outreach/pkg/metrics"
)

var (
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}`)
)

// noReplyPrefixes mark mailbox addresses not worth contacting.
var noReplyPrefixes = []string{"no-reply", "noreply", "donotreply"}

type pageContacts struct {
	emails []string
	phones []string
}

type Scraper struct {
	cfg      config.ScraperConfig
	client   *http.Client
	cache    *gocache.Cache
	limiter  *rate.Limiter
	validate *validator.Validate
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func New(cfg config.ScraperConfig, log *logger.Logger, m *metrics.Metrics) *Scraper {
	return &Scraper{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout()},
		cache:    gocache.New(gocache.NoExpiration, 0),
		limiter:  rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		validate: validator.New(),
		log:      log,
		metrics:  m,
	}
}

// ScrapeHits fetches every hit's page and builds one contact row per hit, in
// hit order. Fetch failures produce a row with empty contact fields; the
// stage never aborts on a single page.
func (s *Scraper) ScrapeHits(ctx context.Context, hits []model.SearchHit) ([]model.Contact, error) {
	rows := make([]model.Contact, 0, len(hits))
	for _, hit := range hits {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		if hit.Link == "" {
			continue
		}
		contacts := s.pageContacts(ctx, hit.Link)
		rows = append(rows, model.Contact{
			Organization: hit.Title,
			URL:          hit.Link,
			Emails:       strings.Join(contacts.emails, ";"),
			Phones:       strings.Join(contacts.phones, ";"),
			Snippet:      hit.Snippet,
		})
	}
	s.log.Info("scrape complete", "pages", len(rows))
	return rows, nil
}

// pageContacts fetches one page, politely and at most once per run, and
// extracts email and phone candidates from its text and mailto anchors.
func (s *Scraper) pageContacts(ctx context.Context, url string) pageContacts {
	if cached, ok := s.cache.Get(url); ok {
		return cached.(pageContacts)
	}

	contacts := pageContacts{}
	defer func() { s.cache.Set(url, contacts, gocache.NoExpiration) }()

	if err := s.limiter.Wait(ctx); err != nil {
		return contacts
	}

	body, err := s.fetch(ctx, url)
	if err != nil {
		s.countFetch("error")
		s.log.Warn("fetch failed", "url", url, "error", err.Error())
		return contacts
	}
	s.countFetch("ok")

	emails := map[string]struct{}{}
	for _, e := range emailRE.FindAllString(body, -1) {
		if s.usableEmail(e) {
			emails[e] = struct{}{}
		}
	}
	phones := map[string]struct{}{}
	for _, p := range phoneRE.FindAllString(body, -1) {
		phones[p] = struct{}{}
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find(`a[href^='mailto:']`).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			addr := strings.TrimSpace(strings.TrimPrefix(href, "mailto:"))
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if s.usableEmail(addr) {
				emails[addr] = struct{}{}
			}
		})
	}

	contacts.emails = sortedKeys(emails)
	contacts.phones = sortedKeys(phones)
	return contacts
}

func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 2 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Scraper) usableEmail(addr string) bool {
	if addr == "" {
		return false
	}
	lower := strings.ToLower(addr)
	for _, prefix := range noReplyPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return s.validate.Var(addr, "email") == nil
}

func (s *Scraper) countFetch(status string) {
	if s.metrics != nil {
		s.metrics.ScrapeRequests.WithLabelValues(status).Inc()
	}
}

// WriteContacts writes raw contact rows as the CSV the curator consumes.
func WriteContacts(path string, rows []model.Contact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create contacts directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create contacts file: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write contacts: %w", err)
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
