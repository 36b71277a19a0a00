package domain

import "time"

// Tender is a normalized external procurement notice. URL is the natural
// upsert key; RelevanceScore and MatchedReasons are derived annotations and
// are recomputed per viewing company at list time.
type Tender struct {
	ID               string
	Source           string
	URL              string
	Title            string
	DescriptionRaw   string
	ShortDescription string
	Authority        string
	Country          string
	CPVCodes         []string
	Budget           string
	Deadline         time.Time
	PublishedAt      time.Time
	DocumentLinks    []string
	RelevanceScore   int
	MatchedReasons   []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CompanyProfile is the scoring input. It is owned by the account layer and
// read-only here.
type CompanyProfile struct {
	Name            string   `json:"company_name"`
	KeywordsInclude []string `json:"keywords_include"`
	KeywordsExclude []string `json:"keywords_exclude"`
	CPVCodes        []string `json:"cpv_codes"`
	Countries       []string `json:"countries"`
	MaxDeadlineDays int      `json:"max_deadline_days"`
}
