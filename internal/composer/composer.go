// Package composer builds outreach drafts for curated contacts. The broker
// falls back to these when no precomposed draft exists for a row.
package composer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/roberthaven/outreach/internal/config"
	"github.com/roberthaven/outreach/internal/model"
	"github.com/roberthaven/outreach/pkg/logger"
)

const subjectFormat = "Seeking Room — %s"

const bodyTemplate = `Hello {{.Contact}},

My name is {{.Sender}} and I'm looking for a quiet room in {{.City}}. I pay on time, keep shared areas tidy, and can offer {{.Offer}}. Happy to share references and do a 30-day trial.

Listing/URL: {{.Listing}}
Phone: {{.Phone}}
Email: {{.Email}}

Thank you for considering me,
{{.Sender}}
`

type bodyData struct {
	Contact string
	Sender  string
	City    string
	Offer   string
	Listing string
	Phone   string
	Email   string
}

type Composer struct {
	profile config.OutreachConfig
	tmpl    *template.Template
	log     *logger.Logger
}

func New(profile config.OutreachConfig, log *logger.Logger) *Composer {
	return &Composer{
		profile: profile,
		tmpl:    template.Must(template.New("body").Parse(bodyTemplate)),
		log:     log,
	}
}

// Draft synthesizes a draft for one curated row. index is the row's 1-based
// position in the shortlist, which keys the draft to attachments and
// precomposed content.
func (c *Composer) Draft(row model.CuratedContact, index int) model.Draft {
	org := row.Organization
	contact := "there"
	if org != "" {
		contact = strings.TrimSpace(strings.SplitN(org, ",", 2)[0])
	}

	var sb strings.Builder
	// The template is a compile-time constant; execution cannot fail.
	_ = c.tmpl.Execute(&sb, bodyData{
		Contact: contact,
		Sender:  c.profile.SenderName,
		City:    c.profile.City,
		Offer:   c.profile.Offer,
		Listing: row.URL,
		Phone:   c.profile.SenderPhone,
		Email:   c.profile.SenderEmail,
	})
	bodyText := sb.String()

	return model.Draft{
		Index:        index,
		Organization: org,
		To:           row.Emails,
		Subject:      fmt.Sprintf(subjectFormat, orgOr(org, "there")),
		BodyText:     bodyText,
		BodyHTML:     HTMLFromText(bodyText),
	}
}

// Compose builds one draft per curated row, in row order.
func (c *Composer) Compose(rows []model.CuratedContact) []model.Draft {
	drafts := make([]model.Draft, 0, len(rows))
	for i, row := range rows {
		drafts = append(drafts, c.Draft(row, i+1))
	}
	return drafts
}

// WriteDrafts serializes drafts as the JSON array the broker consumes.
func (c *Composer) WriteDrafts(path string, drafts []model.Draft) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create drafts directory: %w", err)
	}
	data, err := json.MarshalIndent(drafts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal drafts: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write drafts: %w", err)
	}
	c.log.Info("wrote drafts", "count", len(drafts), "path", path)
	return nil
}

// LoadDrafts reads precomposed drafts keyed by row index. A missing file is
// not an error; it just means every row gets a synthesized draft.
func LoadDrafts(path string) (map[int]model.Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]model.Draft{}, nil
		}
		return nil, fmt.Errorf("failed to read drafts: %w", err)
	}
	var drafts []model.Draft
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, fmt.Errorf("failed to parse drafts: %w", err)
	}
	byIndex := make(map[int]model.Draft, len(drafts))
	for _, d := range drafts {
		byIndex[d.Index] = d
	}
	return byIndex, nil
}

// HTMLFromText renders plaintext as minimal HTML.
func HTMLFromText(text string) string {
	return strings.ReplaceAll(text, "\n", "<br/>")
}

func orgOr(org, fallback string) string {
	if org == "" {
		return fallback
	}
	return org
}
