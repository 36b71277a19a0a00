package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/downoff/lucius-backend/internal/domain"
)

// HeuristicScorer is the deterministic additive point model used for listing
// and ranking, and as the offline substitute for the LLM scorer. The total is
// deliberately unclamped; callers needing a bounded percentage clamp it
// themselves (see AssessBid).
type HeuristicScorer struct {
	now func() time.Time
}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{now: time.Now}
}

func (s *HeuristicScorer) Score(_ context.Context, tender domain.Tender, company domain.CompanyProfile) Match {
	score := 0
	reasons := make([]string, 0, 5)

	if overlap := countOverlap(tender.CPVCodes, company.CPVCodes); overlap > 0 {
		points := minInt(10, 5*overlap)
		score += points
		reasons = append(reasons, fmt.Sprintf("CPV overlap: %d shared codes (+%d)", overlap, points))
	}

	text := strings.ToLower(tender.Title + " " + tender.DescriptionRaw)

	if hits := countKeywordHits(text, company.KeywordsInclude); hits > 0 {
		points := minInt(15, 3*hits)
		score += points
		reasons = append(reasons, fmt.Sprintf("Included keywords matched: %d (+%d)", hits, points))
	}

	if hits := countKeywordHits(text, company.KeywordsExclude); hits > 0 {
		points := minInt(12, 4*hits)
		score -= points
		reasons = append(reasons, fmt.Sprintf("Excluded keywords matched: %d (-%d)", hits, points))
	}

	if remaining, ok := s.timeUntil(tender.Deadline); ok {
		switch {
		case remaining <= 14*24*time.Hour:
			score += 10
			reasons = append(reasons, "Deadline within 14 days (+10)")
		case remaining <= 30*24*time.Hour:
			score += 5
			reasons = append(reasons, "Deadline within 30 days (+5)")
		}
	}

	if tender.Country != "" && containsString(company.Countries, tender.Country) {
		score += 8
		reasons = append(reasons, fmt.Sprintf("Country match: %s (+8)", tender.Country))
	}

	return Match{Score: score, Reasons: reasons}
}

// timeUntil returns the time remaining; a zero or past deadline reports
// not ok rather than raising urgency.
func (s *HeuristicScorer) timeUntil(deadline time.Time) (time.Duration, bool) {
	if deadline.IsZero() {
		return 0, false
	}
	remaining := deadline.Sub(s.now())
	if remaining < 0 {
		return 0, false
	}
	return remaining, true
}

func countOverlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, code := range b {
		set[strings.TrimSpace(code)] = struct{}{}
	}
	overlap := 0
	for _, code := range a {
		if _, ok := set[strings.TrimSpace(code)]; ok {
			overlap++
		}
	}
	return overlap
}

func countKeywordHits(text string, keywords []string) int {
	hits := 0
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(text, keyword) {
			hits++
		}
	}
	return hits
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), target) {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
