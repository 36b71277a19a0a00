package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/ai"
	"github.com/downoff/lucius-backend/internal/domain"
)

// NeutralFallbackScore is returned whenever the LLM path cannot produce a
// judgement. Scoring runs inside bulk ingestion; it must never throw past
// this boundary.
const NeutralFallbackScore = 60

const llmScoringInstructions = `You are a precise scoring engine for public tenders.
Evaluate the fit of the tender for the company.
Assign a score from 0 to 100 (0 = irrelevant, 100 = perfect fit) and a one-sentence rationale.
Return JSON: { "score": number, "rationale": "string" }`

// LLMScorer asks the text-generation capability for a fit judgement, falling
// back to a neutral score on any failure.
type LLMScorer struct {
	generator ai.TextGenerator
	model     string
	logger    *zap.Logger
}

func NewLLMScorer(generator ai.TextGenerator, model string, logger *zap.Logger) *LLMScorer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMScorer{generator: generator, model: model, logger: logger}
}

func (s *LLMScorer) Score(ctx context.Context, tender domain.Tender, company domain.CompanyProfile) Match {
	if s.generator == nil || !s.generator.Available() {
		return neutralMatch("AI scoring unavailable (missing credential)")
	}

	input := fmt.Sprintf(`TENDER:
Title: %s
Description: %s
Budget: %s
Country: %s

COMPANY:
Name: %s
Keywords include: %s
Keywords exclude: %s
CPV codes: %s`,
		tender.Title,
		tender.DescriptionRaw,
		orUnknown(tender.Budget),
		orUnknown(tender.Country),
		company.Name,
		strings.Join(company.KeywordsInclude, ", "),
		strings.Join(company.KeywordsExclude, ", "),
		strings.Join(company.CPVCodes, ", "),
	)

	result, err := s.generator.Generate(ctx, ai.GenerateRequest{
		Model:        s.model,
		Instructions: llmScoringInstructions,
		Input:        input,
		Temperature:  0.2,
		JSONMode:     true,
	})
	if err != nil {
		s.logger.Warn("llm scoring failed, using neutral fallback",
			zap.String("tender_url", tender.URL),
			zap.Error(err),
		)
		return neutralMatch("AI analysis failed")
	}

	var decoded struct {
		Score     int    `json:"score"`
		Rationale string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(result.Text), &decoded); err != nil {
		s.logger.Warn("llm scoring returned malformed JSON, using neutral fallback",
			zap.String("tender_url", tender.URL),
			zap.Error(err),
		)
		return neutralMatch("AI analysis failed")
	}

	rationale := strings.TrimSpace(decoded.Rationale)
	if rationale == "" {
		rationale = "Analysis completed."
	}
	return Match{Score: decoded.Score, Reasons: []string{rationale}}
}

func neutralMatch(reason string) Match {
	return Match{
		Score:   NeutralFallbackScore,
		Reasons: []string{reason + ". Defaulting to neutral score."},
	}
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Unknown"
	}
	return value
}
