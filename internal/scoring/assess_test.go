package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/downoff/lucius-backend/internal/domain"
)

type fixedScorer struct {
	match Match
}

func (f fixedScorer) Score(context.Context, domain.Tender, domain.CompanyProfile) Match {
	return f.match
}

func TestAssessBid_AppliesComplexityAndCompetitorPenalties(t *testing.T) {
	base := fixedScorer{match: Match{Score: 50, Reasons: []string{"Included keywords matched: 2 (+6)"}}}

	match := AssessBid(context.Background(), base, domain.CompanyProfile{}, BidAssessmentInput{
		Description: "Managed IT services for a county council",
		Complexity:  "high",
		Competitors: 8,
	})

	assert.Equal(t, 25, match.Score)
	require.Len(t, match.Reasons, 3)
	assert.Equal(t, "High complexity reduces win probability without niche expertise (-10)", match.Reasons[1])
	assert.Equal(t, "Crowded competitor field reduces statistical win chance (-15)", match.Reasons[2])
}

func TestAssessBid_ClampsToZero(t *testing.T) {
	base := fixedScorer{match: Match{Score: 5}}

	match := AssessBid(context.Background(), base, domain.CompanyProfile{}, BidAssessmentInput{
		Description: "anything",
		Complexity:  "high",
		Competitors: 10,
	})

	assert.Equal(t, 0, match.Score)
}

func TestAssessBid_ClampsTo99(t *testing.T) {
	base := fixedScorer{match: Match{Score: 140}}

	match := AssessBid(context.Background(), base, domain.CompanyProfile{}, BidAssessmentInput{
		Description: "anything",
	})

	assert.Equal(t, 99, match.Score)
}

func TestAssessBid_CompetitorThresholdIsExclusive(t *testing.T) {
	base := fixedScorer{match: Match{Score: 50}}

	match := AssessBid(context.Background(), base, domain.CompanyProfile{}, BidAssessmentInput{
		Description: "anything",
		Competitors: 5,
	})

	assert.Equal(t, 50, match.Score)
	assert.Empty(t, match.Reasons)
}

func TestAssessBid_BuildsDescriptionFromValueAndComplexity(t *testing.T) {
	recorder := &recordingScorer{}

	AssessBid(context.Background(), recorder, domain.CompanyProfile{}, BidAssessmentInput{
		Value:      "£250,000",
		Complexity: "medium",
	})

	assert.Equal(t, "Contract value: £250,000, complexity: medium", recorder.lastTender.DescriptionRaw)
	assert.Equal(t, "Manual Bid Assessment", recorder.lastTender.Title)
}

type recordingScorer struct {
	lastTender domain.Tender
}

func (r *recordingScorer) Score(_ context.Context, tender domain.Tender, _ domain.CompanyProfile) Match {
	r.lastTender = tender
	return Match{}
}
