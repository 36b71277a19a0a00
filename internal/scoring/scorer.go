// Package scoring ranks tenders against company profiles. Two interchangeable
// implementations exist: a deterministic heuristic and an LLM-backed scorer,
// selected by configuration so ingestion throughput never depends on external
// call latency in tests.
package scoring

import (
	"context"

	"github.com/downoff/lucius-backend/internal/domain"
)

// Match is a relevance judgement with human-readable explanations in the
// order the signals were evaluated.
type Match struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// Scorer computes a match between a tender and a company profile. It never
// returns an error: implementations run inside bulk ingestion loops and must
// degrade to a usable default instead of failing the batch.
type Scorer interface {
	Score(ctx context.Context, tender domain.Tender, company domain.CompanyProfile) Match
}
