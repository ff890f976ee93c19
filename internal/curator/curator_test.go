package curator

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/pkg/logger"
)

func testCurator(topN int) *Curator {
	return New(
		config.CuratorConfig{TopN: topN},
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
	)
}

func TestScoreText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"neutral", "winter haven community center", 0},
		{"one positive", "room for rent by OWNER", 6}, // "owner" and "for rent by owner" both hit
		{"one negative", "Lakeview Apartment Homes", -2},
		{"mixed", "senior apartment leasing office", -1},
		{"case insensitive", "CARETAKER wanted", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreText(tt.text))
		})
	}
}

func TestCurateOrdersByScoreAndTruncates(t *testing.T) {
	c := testCurator(2)
	contacts := []model.Contact{
		{Organization: "Lakeview Apartments", URL: "https://a.test", Snippet: "leasing office"},
		{Organization: "Homeshare Winter Haven", URL: "https://b.test", Snippet: "owner occupied senior home"},
		{Organization: "Community Library", URL: "https://c.test", Snippet: "library events"},
	}

	shortlist := c.Curate(contacts)
	require.Len(t, shortlist, 2)
	assert.Equal(t, "Homeshare Winter Haven", shortlist[0].Organization)
	assert.Equal(t, "Community Library", shortlist[1].Organization)
	assert.Greater(t, shortlist[0].Score, shortlist[1].Score)
	for _, row := range shortlist {
		assert.Equal(t, "false", row.Approved)
	}
}

func TestCurateEmailBonus(t *testing.T) {
	c := testCurator(10)
	contacts := []model.Contact{
		{Organization: "Silent Org", URL: "https://a.test"},
		{Organization: "Reachable Org", URL: "https://b.test", Emails: "hello@b.test"},
	}

	shortlist := c.Curate(contacts)
	require.Len(t, shortlist, 2)
	assert.Equal(t, "Reachable Org", shortlist[0].Organization)
	assert.Equal(t, 2, shortlist[0].Score)
	assert.Equal(t, 0, shortlist[1].Score)
}

func TestCurateStableOnTies(t *testing.T) {
	c := testCurator(10)
	contacts := []model.Contact{
		{Organization: "First", URL: "https://a.test"},
		{Organization: "Second", URL: "https://b.test"},
	}

	shortlist := c.Curate(contacts)
	require.Len(t, shortlist, 2)
	assert.Equal(t, "First", shortlist[0].Organization)
	assert.Equal(t, "Second", shortlist[1].Organization)
}

func TestCurateFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "contacts.csv")
	outPath := filepath.Join(dir, "shortlist.csv")

	contacts := []model.Contact{
		{Organization: "Homeshare Winter Haven", URL: "https://b.test", Emails: "host@b.test", Snippet: "owner occupied"},
		{Organization: "Lakeview Apartments", URL: "https://a.test", Snippet: "leasing office"},
	}
	require.NoError(t, writeContactsCSV(t, inPath, contacts))

	c := testCurator(10)
	shortlist, err := c.CurateFile(inPath, outPath)
	require.NoError(t, err)
	require.Len(t, shortlist, 2)

	reread, err := ReadShortlist(outPath)
	require.NoError(t, err)
	require.Len(t, reread, 2)
	assert.Equal(t, shortlist[0].Organization, reread[0].Organization)
	assert.Equal(t, shortlist[0].Score, reread[0].Score)
	assert.Equal(t, "false", reread[0].Approved)
}

func writeContactsCSV(t *testing.T, path string, rows []model.Contact) error {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}

func TestCurateFileMissingInput(t *testing.T) {
	c := testCurator(10)
	_, err := c.CurateFile(filepath.Join(t.TempDir(), "nope.csv"), filepath.Join(t.TempDir(), "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the scrape stage first")
}
