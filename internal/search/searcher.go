// Package search wraps the SerpApi client for the discovery stage.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	serpapi "github.com/serpapi/google-search-results-golang"
	"golang.org/x/time/rate"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/pkg/logger"
	"github.com/roberthaven/outreach/pkg/metrics"
)

// DefaultQueries seed the discovery stage when the config lists none.
var DefaultQueries = []string{
	`Winter Haven FL "room for rent" "owner"`,
	`Winter Haven FL "for rent by owner"`,
	`Winter Haven FL "room for rent" "caretaker" OR "care taker"`,
	`site:craigslist.org Winter Haven "room for rent"`,
	`Winter Haven "home share" "Silvernest" OR "HomeShare Online"`,
	`Winter Haven "senior center" contact email`,
	`Winter Haven "room for rent" owner email`,
}

type Searcher struct {
	cfg     config.SearchConfig
	limiter *rate.Limiter
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(cfg config.SearchConfig, log *logger.Logger, m *metrics.Metrics) *Searcher {
	pause := cfg.PauseSeconds
	if pause <= 0 {
		pause = 1.2
	}
	return &Searcher{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(1/pause), 1),
		log:     log,
		metrics: m,
	}
}

// Run executes every configured query against the provider and returns the
// organic results deduplicated by link. Individual query failures are logged
// and skipped; a missing API key is fatal.
func (s *Searcher) Run(ctx context.Context) ([]model.SearchHit, error) {
	if s.cfg.APIKey == "" {
		return nil, fmt.Errorf("search api key not configured (set SERPAPI_KEY)")
	}

	queries := s.cfg.Queries
	if len(queries) == 0 {
		queries = DefaultQueries
	}

	var hits []model.SearchHit
	for _, query := range queries {
		if err := s.limiter.Wait(ctx); err != nil {
			return hits, err
		}
		results, err := s.runQuery(query)
		if err != nil {
			s.countQuery("error")
			s.log.Warn("search query failed", "query", query, "error", err.Error())
			continue
		}
		s.countQuery("ok")
		hits = append(hits, results...)
	}

	deduped := DedupeByLink(hits)
	s.log.Info("search complete", "queries", len(queries), "hits", len(deduped))
	return deduped, nil
}

func (s *Searcher) runQuery(query string) ([]model.SearchHit, error) {
	params := map[string]string{
		"engine":   "google",
		"q":        query,
		"location": s.cfg.Location,
		"num":      fmt.Sprintf("%d", s.cfg.ResultsPerQuery),
	}
	client := serpapi.NewGoogleSearch(params, s.cfg.APIKey)
	data, err := client.GetJSON()
	if err != nil {
		return nil, err
	}

	organic, _ := data["organic_results"].([]interface{})
	hits := make([]model.SearchHit, 0, len(organic))
	for _, item := range organic {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		hits = append(hits, model.SearchHit{
			Title:   stringField(entry, "title"),
			Link:    stringField(entry, "link"),
			Snippet: stringField(entry, "snippet"),
		})
	}
	return hits, nil
}

func (s *Searcher) countQuery(status string) {
	if s.metrics != nil {
		s.metrics.SearchQueries.WithLabelValues(status).Inc()
	}
}

// DedupeByLink keeps the first hit for each link, preserving order, and
// drops hits with no link at all.
func DedupeByLink(hits []model.SearchHit) []model.SearchHit {
	seen := make(map[string]struct{}, len(hits))
	out := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Link == "" {
			continue
		}
		if _, dup := seen[h.Link]; dup {
			continue
		}
		seen[h.Link] = struct{}{}
		out = append(out, h)
	}
	return out
}

// SaveHits writes hits as JSON for the scrape stage.
func SaveHits(path string, hits []model.SearchHit) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal search hits: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write search hits: %w", err)
	}
	return nil
}

// LoadHits reads a previously saved results file.
func LoadHits(path string) ([]model.SearchHit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search hits: %w", err)
	}
	var hits []model.SearchHit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("failed to parse search hits: %w", err)
	}
	return hits, nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
