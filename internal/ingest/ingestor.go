// Package ingest pulls external tender feeds, normalizes entries and upserts
// them as Tender records scored against a reference profile.
package ingest

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/downoff/lucius-backend/internal/domain"
	"github.com/downoff/lucius-backend/internal/repository"
	"github.com/downoff/lucius-backend/internal/scoring"
)

// maxItemsPerFeed caps per-run work so one oversized feed cannot blast
// quotas or ingestion time.
const maxItemsPerFeed = 50

// defaultDeadlineDays is the placeholder window applied when a source omits
// a deadline.
const defaultDeadlineDays = 30

var budgetPattern = regexp.MustCompile(`[€£$]\s?[\d,]+(\.\d{2})?`)

// ReferenceProfile scores incoming tenders before any company-specific
// rescoring happens at list time.
var ReferenceProfile = domain.CompanyProfile{
	Name:            "Reference Digital Supplier",
	KeywordsInclude: []string{"software", "digital", "platform", "cloud", "data", "cybersecurity"},
	KeywordsExclude: []string{"construction", "cleaning", "school meals"},
}

type Feed struct {
	Name string
	URL  string
}

type Stats struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// FeedParser is satisfied by gofeed.Parser and by test stubs.
type FeedParser interface {
	ParseURLWithContext(url string, ctx context.Context) (*gofeed.Feed, error)
}

type Config struct {
	Feeds   []Feed
	Tenders repository.TendersRepository
	Scorer  scoring.Scorer
	Parser  FeedParser
	Profile *domain.CompanyProfile
	// Limiter paces outbound feed fetches.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

type Ingestor struct {
	feeds   []Feed
	tenders repository.TendersRepository
	scorer  scoring.Scorer
	parser  FeedParser
	profile domain.CompanyProfile
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg Config) *Ingestor {
	if cfg.Parser == nil {
		cfg.Parser = gofeed.NewParser()
	}
	profile := ReferenceProfile
	if cfg.Profile != nil {
		profile = *cfg.Profile
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(rate.Limit(2), 4)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Ingestor{
		feeds:   cfg.Feeds,
		tenders: cfg.Tenders,
		scorer:  cfg.Scorer,
		parser:  cfg.Parser,
		profile: profile,
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
	}
}

// Ingest runs all configured feeds. Per-feed and per-item failures are
// counted, never fatal: one broken source must not abort the others.
func (i *Ingestor) Ingest(ctx context.Context) Stats {
	var stats Stats
	for _, feed := range i.feeds {
		if err := i.ingestFeed(ctx, feed, &stats); err != nil {
			stats.Errors++
			i.logger.Warn("feed fetch failed",
				zap.String("feed", feed.Name),
				zap.String("url", feed.URL),
				zap.Error(err),
			)
		}
	}
	i.logger.Info("ingestion finished",
		zap.Int("processed", stats.Processed),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors),
	)
	return stats
}

func (i *Ingestor) ingestFeed(ctx context.Context, feed Feed, stats *Stats) error {
	if strings.TrimSpace(feed.URL) == "" {
		i.logger.Warn("skipping feed with empty URL", zap.String("feed", feed.Name))
		return nil
	}
	if err := i.limiter.Wait(ctx); err != nil {
		return err
	}

	parsed, err := i.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return err
	}

	items := parsed.Items
	if len(items) > maxItemsPerFeed {
		items = items[:maxItemsPerFeed]
	}

	for _, item := range items {
		stats.Processed++
		created, err := i.ingestItem(ctx, feed, item)
		if err != nil {
			stats.Errors++
			i.logger.Warn("feed item rejected",
				zap.String("feed", feed.Name),
				zap.String("title", truncateTitle(item.Title)),
				zap.Error(err),
			)
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}
	return nil
}

func (i *Ingestor) ingestItem(ctx context.Context, feed Feed, item *gofeed.Item) (bool, error) {
	tender, err := normalizeItem(feed, item)
	if err != nil {
		return false, err
	}

	match := i.scorer.Score(ctx, *tender, i.profile)
	tender.RelevanceScore = match.Score
	tender.MatchedReasons = match.Reasons

	return i.tenders.UpsertByURL(ctx, tender)
}

func normalizeItem(feed Feed, item *gofeed.Item) (*domain.Tender, error) {
	url := strings.TrimSpace(item.Link)
	if url == "" {
		url = strings.TrimSpace(item.GUID)
	}
	if url == "" {
		return nil, errMissingKey
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Untitled Tender"
	}

	description := firstNonEmpty(item.Description, item.Content)

	published := time.Now().UTC()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	}

	authority := "Public Authority"
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		authority = strings.TrimSpace(item.Author.Name)
	}

	tender := &domain.Tender{
		Source:           feed.Name,
		URL:              url,
		Title:            title,
		DescriptionRaw:   description,
		ShortDescription: shorten(description, 250),
		Authority:        authority,
		Country:          detectCountry(feed.Name, title, description),
		CPVCodes:         append([]string(nil), item.Categories...),
		Budget:           budgetPattern.FindString(description),
		Deadline:         time.Now().UTC().AddDate(0, 0, defaultDeadlineDays),
		PublishedAt:      published,
		DocumentLinks:    []string{url},
	}
	return tender, nil
}

// detectCountry applies the source label then cheap text heuristics; defaults
// to EU when nothing matches.
func detectCountry(sourceName, title, description string) string {
	text := title + " " + description
	switch {
	case strings.Contains(sourceName, "UK") || strings.Contains(text, "United Kingdom"):
		return "UK"
	case containsAny(text, "Germany", "Deutschland", "Berlin"):
		return "DACH"
	case containsAny(text, "France", "Paris"):
		return "FR"
	case containsAny(text, "Ireland"):
		return "IE"
	case containsAny(text, "Spain", "España", "Madrid"):
		return "ES"
	case containsAny(text, "Italy", "Italia", "Roma"):
		return "IT"
	case containsAny(text, "Poland", "Polska"):
		return "PL"
	case containsAny(text, "Sweden", "Sverige"):
		return "SE"
	case containsAny(text, "Netherlands", "Nederland"):
		return "NL"
	default:
		return "EU"
	}
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func shorten(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func truncateTitle(title string) string {
	return shorten(strings.TrimSpace(title), 40)
}

type ingestError string

func (e ingestError) Error() string { return string(e) }

const errMissingKey = ingestError("feed item has no link or guid")
