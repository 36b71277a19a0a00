package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/downoff/lucius-backend/internal/repository"
	"github.com/downoff/lucius-backend/internal/scoring"
)

type stubParser struct {
	feeds map[string]*gofeed.Feed
	errs  map[string]error
}

func (s *stubParser) ParseURLWithContext(url string, _ context.Context) (*gofeed.Feed, error) {
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	feed, ok := s.feeds[url]
	if !ok {
		return nil, errors.New("unknown feed")
	}
	return feed, nil
}

func newTestIngestor(t *testing.T, parser FeedParser, feeds ...Feed) (*Ingestor, repository.TendersRepository) {
	t.Helper()
	tenders := repository.NewMemoryTendersRepository()
	ingestor := New(Config{
		Feeds:   feeds,
		Tenders: tenders,
		Scorer:  scoring.NewHeuristicScorer(),
		Parser:  parser,
	})
	return ingestor, tenders
}

func TestIngestor_IngestsAndScoresItems(t *testing.T) {
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/uk": {Items: []*gofeed.Item{
			{
				Title:       "Cloud platform for data services",
				Link:        "https://tenders.example.com/n/1",
				Description: "Cloud data migration. Budget £120,000. United Kingdom wide.",
			},
		}},
	}}
	ingestor, tenders := newTestIngestor(t, parser, Feed{Name: "UK Contracts", URL: "https://feeds.example.com/uk"})

	stats := ingestor.Ingest(context.Background())

	assert.Equal(t, Stats{Processed: 1, Created: 1}, stats)

	stored, err := tenders.GetByURL(context.Background(), "https://tenders.example.com/n/1")
	require.NoError(t, err)
	assert.Equal(t, "UK Contracts", stored.Source)
	assert.Equal(t, "UK", stored.Country)
	assert.Equal(t, "£120,000", stored.Budget)
	assert.Positive(t, stored.RelevanceScore)
	assert.NotEmpty(t, stored.MatchedReasons)
}

func TestIngestor_SecondRunUpdatesInsteadOfDuplicating(t *testing.T) {
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/uk": {Items: []*gofeed.Item{
			{Title: "Cyber monitoring", Link: "https://tenders.example.com/n/2", Description: "SOC services"},
		}},
	}}
	ingestor, tenders := newTestIngestor(t, parser, Feed{Name: "UK Contracts", URL: "https://feeds.example.com/uk"})

	first := ingestor.Ingest(context.Background())
	second := ingestor.Ingest(context.Background())

	assert.Equal(t, Stats{Processed: 1, Created: 1}, first)
	assert.Equal(t, Stats{Processed: 1, Updated: 1}, second)

	recent, err := tenders.ListRecent(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestIngestor_BrokenFeedDoesNotAbortOthers(t *testing.T) {
	parser := &stubParser{
		feeds: map[string]*gofeed.Feed{
			"https://feeds.example.com/healthy": {Items: []*gofeed.Item{
				{Title: "Software support", Link: "https://tenders.example.com/n/3"},
			}},
		},
		errs: map[string]error{
			"https://feeds.example.com/broken": errors.New("503 from upstream"),
		},
	}
	ingestor, tenders := newTestIngestor(t, parser,
		Feed{Name: "Broken", URL: "https://feeds.example.com/broken"},
		Feed{Name: "Healthy", URL: "https://feeds.example.com/healthy"},
	)

	stats := ingestor.Ingest(context.Background())

	assert.Equal(t, Stats{Processed: 1, Created: 1, Errors: 1}, stats)
	_, err := tenders.GetByURL(context.Background(), "https://tenders.example.com/n/3")
	assert.NoError(t, err)
}

func TestIngestor_ItemWithoutLinkFallsBackToGUIDThenRejects(t *testing.T) {
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/mixed": {Items: []*gofeed.Item{
			{Title: "Has GUID only", GUID: "https://tenders.example.com/n/4"},
			{Title: "Has neither"},
		}},
	}}
	ingestor, tenders := newTestIngestor(t, parser, Feed{Name: "Mixed", URL: "https://feeds.example.com/mixed"})

	stats := ingestor.Ingest(context.Background())

	assert.Equal(t, Stats{Processed: 2, Created: 1, Errors: 1}, stats)
	_, err := tenders.GetByURL(context.Background(), "https://tenders.example.com/n/4")
	assert.NoError(t, err)
}

func TestIngestor_CapsItemsPerFeed(t *testing.T) {
	items := make([]*gofeed.Item, maxItemsPerFeed+20)
	for i := range items {
		items[i] = &gofeed.Item{
			Title: "Notice",
			Link:  fmt.Sprintf("https://tenders.example.com/bulk/%d", i),
		}
	}
	parser := &stubParser{feeds: map[string]*gofeed.Feed{
		"https://feeds.example.com/bulk": {Items: items},
	}}
	ingestor, _ := newTestIngestor(t, parser, Feed{Name: "Bulk", URL: "https://feeds.example.com/bulk"})

	stats := ingestor.Ingest(context.Background())
	assert.Equal(t, maxItemsPerFeed, stats.Processed)
}

func TestIngestor_SkipsFeedWithEmptyURL(t *testing.T) {
	ingestor, _ := newTestIngestor(t, &stubParser{}, Feed{Name: "Unconfigured", URL: "  "})

	stats := ingestor.Ingest(context.Background())
	assert.Equal(t, Stats{}, stats)
}

func TestNormalizeItem_Defaults(t *testing.T) {
	tender, err := normalizeItem(Feed{Name: "TED"}, &gofeed.Item{
		Link:       "https://tenders.example.com/n/5",
		Categories: []string{"72000000", "48000000"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Untitled Tender", tender.Title)
	assert.Equal(t, "Public Authority", tender.Authority)
	assert.Equal(t, "EU", tender.Country)
	assert.Equal(t, []string{"72000000", "48000000"}, tender.CPVCodes)
	assert.Empty(t, tender.Budget)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, defaultDeadlineDays), tender.Deadline, time.Minute)
}

func TestNormalizeItem_ShortensDescription(t *testing.T) {
	long := ""
	for len(long) < 400 {
		long += "procurement of managed services "
	}
	tender, err := normalizeItem(Feed{Name: "TED"}, &gofeed.Item{
		Link:        "https://tenders.example.com/n/6",
		Description: long,
	})
	require.NoError(t, err)

	assert.Len(t, tender.ShortDescription, 253)
	assert.True(t, len(tender.DescriptionRaw) >= 400)
}

func TestShorten_KeepsRuneBoundaries(t *testing.T) {
	// 3-byte runes, so a 250-byte cut would otherwise land mid-rune.
	text := strings.Repeat("€", 90)
	got := shorten(text, 250)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("€", 83)+"...", got)
}

func TestDetectCountry(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		description string
		want        string
	}{
		{"UK source label", "UK Contracts Finder", "anything", "UK"},
		{"United Kingdom in text", "TED", "Delivery across the United Kingdom", "UK"},
		{"Germany", "TED", "Located in Berlin, Germany", "DACH"},
		{"France", "TED", "Service public à Paris", "FR"},
		{"default", "TED", "No geography mentioned", "EU"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCountry(tt.source, "", tt.description))
		})
	}
}

func TestBudgetPattern(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Estimated value £1,250,000 excluding VAT", "£1,250,000"},
		{"Budget: € 300,000.00 total", "€ 300,000.00"},
		{"Value $45,000 per annum", "$45,000"},
		{"No monetary value stated", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, budgetPattern.FindString(tt.text))
	}
}
