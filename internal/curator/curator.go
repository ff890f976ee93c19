// Package curator scores scraped contacts and produces the shortlist a human
// reviews and approves before anything is sent.
package curator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/pkg/logger"
)

var positiveKeywords = []string{
	"owner",
	"owner-occupied",
	"for rent by owner",
	"caretaker",
	"care taker",
	"home share",
	"homeshare",
	"silvernest",
	"senior",
	"elder",
	"retire",
	"meals on wheels",
	"library",
	"church",
}

var negativeKeywords = []string{
	"apartment",
	"property management",
	"leasing",
	"apartments.com",
	"realtor",
	"zillow",
	"management company",
}

const (
	positiveWeight = 3
	negativeWeight = 2
	hasEmailBonus  = 2
)

type Curator struct {
	cfg config.CuratorConfig
	log *logger.Logger
}

func New(cfg config.CuratorConfig, log *logger.Logger) *Curator {
	return &Curator{cfg: cfg, log: log}
}

// Curate scores every contact and returns the top-N shortlist, highest score
// first, each row unapproved until a human says otherwise.
func (c *Curator) Curate(contacts []model.Contact) []model.CuratedContact {
	curated := make([]model.CuratedContact, 0, len(contacts))
	for _, contact := range contacts {
		score := ScoreText(contact.Organization + " " + contact.Snippet + " " + contact.URL)
		if strings.TrimSpace(contact.Emails) != "" {
			score += hasEmailBonus
		}
		curated = append(curated, model.CuratedContact{
			Organization: contact.Organization,
			URL:          contact.URL,
			Emails:       contact.Emails,
			Phones:       contact.Phones,
			Snippet:      contact.Snippet,
			Score:        score,
			Approved:     "false",
		})
	}

	sort.SliceStable(curated, func(i, j int) bool { return curated[i].Score > curated[j].Score })
	if len(curated) > c.cfg.TopN {
		curated = curated[:c.cfg.TopN]
	}
	c.log.Info("curated shortlist", "candidates", len(contacts), "shortlisted", len(curated))
	return curated
}

// CurateFile reads the raw contacts CSV and writes the shortlist CSV. A
// missing input file is fatal; the operator has to run the scrape stage
// first.
func (c *Curator) CurateFile(inPath, outPath string) ([]model.CuratedContact, error) {
	contacts, err := ReadContacts(inPath)
	if err != nil {
		return nil, err
	}
	shortlist := c.Curate(contacts)
	if err := WriteShortlist(outPath, shortlist); err != nil {
		return nil, err
	}
	return shortlist, nil
}

// ScoreText applies the keyword heuristic to a blob of row text.
func ScoreText(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			score += positiveWeight
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			score -= negativeWeight
		}
	}
	return score
}

// ReadContacts reads the scraper's raw CSV.
func ReadContacts(path string) ([]model.Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contacts file (run the scrape stage first): %w", err)
	}
	defer f.Close()

	var rows []model.Contact
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse contacts file %s: %w", path, err)
	}
	return rows, nil
}

// WriteShortlist writes the curated rows for human review.
func WriteShortlist(path string, rows []model.CuratedContact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create shortlist directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create shortlist file: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write shortlist: %w", err)
	}
	return nil
}

// ReadShortlist reads the curated shortlist back, for the compose, flyer,
// and broker stages.
func ReadShortlist(path string) ([]model.CuratedContact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shortlist (run the curate stage first): %w", err)
	}
	defer f.Close()

	var rows []model.CuratedContact
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse shortlist %s: %w", path, err)
	}
	return rows, nil
}
