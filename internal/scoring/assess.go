package scoring

import (
	"context"

	"github.com/downoff/lucius-backend/internal/domain"
)

// BidAssessmentInput carries the manual go/no-go parameters a user supplies
// without a stored tender record.
type BidAssessmentInput struct {
	Description string `json:"description"`
	Value       string `json:"value"`
	Complexity  string `json:"complexity"`
	Competitors int    `json:"competitors"`
}

const (
	highComplexityPenalty = 10
	crowdedFieldPenalty   = 15
	crowdedFieldThreshold = 5
)

// AssessBid scores an ad-hoc bid description and applies the manual
// modifiers. Unlike raw heuristic scores, the result is clamped to [0, 99]
// because it is presented as a win-probability percentage.
func AssessBid(ctx context.Context, scorer Scorer, company domain.CompanyProfile, input BidAssessmentInput) Match {
	description := input.Description
	if description == "" {
		description = "Contract value: " + input.Value + ", complexity: " + input.Complexity
	}

	tender := domain.Tender{
		Title:          "Manual Bid Assessment",
		DescriptionRaw: description,
		Budget:         input.Value,
	}

	match := scorer.Score(ctx, tender, company)
	score := match.Score
	reasons := append([]string(nil), match.Reasons...)

	if input.Complexity == "high" {
		score -= highComplexityPenalty
		reasons = append(reasons, "High complexity reduces win probability without niche expertise (-10)")
	}
	if input.Competitors > crowdedFieldThreshold {
		score -= crowdedFieldPenalty
		reasons = append(reasons, "Crowded competitor field reduces statistical win chance (-15)")
	}

	if score < 0 {
		score = 0
	}
	if score > 99 {
		score = 99
	}
	return Match{Score: score, Reasons: reasons}
}
