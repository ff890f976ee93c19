package model

// SearchHit is one organic result from the search provider.
type SearchHit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Contact is a raw scraped contact row, pre-curation.
type Contact struct {
	Organization string `csv:"organization"`
	URL          string `csv:"url"`
	Emails       string `csv:"emails"`
	Phones       string `csv:"phones"`
	Snippet      string `csv:"snippet"`
}

// CuratedContact is a scored, human-reviewable candidate. Approved holds the
// operator's boolean-ish spelling verbatim; parsing it is the broker's job.
type CuratedContact struct {
	Organization string `csv:"organization"`
	URL          string `csv:"url"`
	Emails       string `csv:"emails"`
	Phones       string `csv:"phones"`
	Snippet      string `csv:"snippet"`
	Score        int    `csv:"score"`
	Approved     string `csv:"approved"`
	ContactName  string `csv:"contact_name"`
}

// Draft is a precomposed outreach email keyed to a curated row by its
// 1-based position in the shortlist file.
type Draft struct {
	Index        int    `json:"index"`
	Organization string `json:"organization"`
	To           string `json:"to"`
	Subject      string `json:"subject"`
	BodyText     string `json:"body_text"`
	BodyHTML     string `json:"body_html"`
}
