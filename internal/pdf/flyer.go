// Package pdf renders one personalized flyer per curated contact, named so
// the broker can match flyers back to rows by index or organization slug.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/pkg/logger"
	"github.com/roberthaven/outreach/pkg/textutil"
)

const flyerTitle = "Seeking a Room to Rent - Reliable Tenant"

// FlyerName returns the canonical flyer file name for a row.
func FlyerName(index int, org string) string {
	return fmt.Sprintf("personal_flyer_%d_%s.pdf", index, textutil.Slugify(org))
}

// RenderFlyers writes one flyer per curated row into outDir and returns the
// paths in row order. A row that fails to render is skipped with a warning.
func RenderFlyers(rows []model.CuratedContact, outDir string, profile config.OutreachConfig, log *logger.Logger) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create flyer directory: %w", err)
	}

	var paths []string
	for i, row := range rows {
		path := filepath.Join(outDir, FlyerName(i+1, row.Organization))
		if err := renderFlyer(path, row, profile); err != nil {
			log.Warn("flyer render failed", "org", row.Organization, "error", err.Error())
			continue
		}
		log.Debug("created flyer", "path", path)
		paths = append(paths, path)
	}
	log.Info("flyers rendered", "count", len(paths), "dir", outDir)
	return paths, nil
}

func renderFlyer(path string, row model.CuratedContact, profile config.OutreachConfig) error {
	org := row.Organization
	if org == "" {
		org = "Contact"
	}

	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"My name is %s. I am seeking a private room in %s and can offer %s. "+
			"I pay on time, keep shared areas tidy, and can provide references plus a 30-day trial.\n\n"+
			"Listing/URL: %s\n"+
			"Notes: %s\n\n"+
			"Contact: %s - %s - %s\n\n"+
			"Happy to support with light webmaster/tech help if that is useful.",
		org,
		profile.SenderName, profile.City, profile.Offer,
		row.URL,
		row.Snippet,
		profile.SenderName, profile.SenderPhone, profile.SenderEmail,
	)

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(36, 36, 36)
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 16)
	doc.MultiCell(0, 20, flyerTitle, "", "L", false)
	doc.Ln(8)
	doc.SetFont("Helvetica", "", 11)
	doc.MultiCell(0, 14, body, "", "L", false)
	return doc.OutputFileAndClose(path)
}
