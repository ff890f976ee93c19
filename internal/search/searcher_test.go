package search

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/pkg/logger"
)

func TestRunRequiresAPIKey(t *testing.T) {
	s := New(config.SearchConfig{}, logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}), nil)
	_, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERPAPI_KEY")
}

func TestDedupeByLink(t *testing.T) {
	hits := []model.SearchHit{
		{Title: "First", Link: "https://a.test"},
		{Title: "No Link"},
		{Title: "Dup of first", Link: "https://a.test"},
		{Title: "Second", Link: "https://b.test"},
	}

	deduped := DedupeByLink(hits)
	require.Len(t, deduped, 2)
	assert.Equal(t, "First", deduped[0].Title)
	assert.Equal(t, "Second", deduped[1].Title)
}

func TestDedupeByLinkEmpty(t *testing.T) {
	assert.Empty(t, DedupeByLink(nil))
	assert.Empty(t, DedupeByLink([]model.SearchHit{{Title: "linkless"}}))
}

func TestSaveAndLoadHits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "search_results.json")
	hits := []model.SearchHit{
		{Title: "Lakeside Room", Link: "https://a.test", Snippet: "quiet room"},
		{Title: "Homeshare", Link: "https://b.test"},
	}

	require.NoError(t, SaveHits(path, hits))

	loaded, err := LoadHits(path)
	require.NoError(t, err)
	assert.Equal(t, hits, loaded)
}

func TestLoadHitsMissingFile(t *testing.T) {
	_, err := LoadHits(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read search hits")
}
