// Package analysis turns extracted tender text into structured bid
// intelligence via the text-generation capability, with a deterministic
// demo fallback for offline use.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/ai"
	"github.com/downoff/lucius-backend/internal/domain"
)

// maxInputChars bounds the prompt to respect context-window and cost limits.
// Longer documents lose trailing content; acceptable, requirements cluster
// early in tender documents.
const maxInputChars = 15000

const (
	StageFull       = "analysis"
	StageCompliance = "compliance"
	StageRisk       = "risk"
	StageProposal   = "proposal"
)

// Error tags a generation or parse failure with the stage that produced it.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis stage %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type EngineConfig struct {
	Generator ai.TextGenerator
	Model     string
	DemoMode  bool
	Logger    *zap.Logger
}

type Engine struct {
	generator ai.TextGenerator
	model     string
	demoMode  bool
	logger    *zap.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		generator: cfg.Generator,
		model:     cfg.Model,
		demoMode:  cfg.DemoMode,
		logger:    cfg.Logger,
	}
}

// DemoMode reports whether the deterministic fallback path is active, either
// explicitly or because no generation credential is configured.
func (e *Engine) DemoMode() bool {
	return e.demoMode || e.generator == nil || !e.generator.Available()
}

const analyzeInstructions = `You are an expert bid manager.
Extract a strict JSON object from the tender document provided.
Analyze risks, compliance requirements, and draft a proposal strategy.

Output schema:
{
  "compliance_matrix": [
    { "requirement": "string", "source_page": number, "status": "compliant" | "non_compliant" | "risk" }
  ],
  "risk_score": number (0-100),
  "deadlines": [{ "label": "string", "date": "YYYY-MM-DD" }],
  "proposal_draft": "string (markdown)"
}`

// Analyze performs the single-shot full analysis used by the optimistic
// upload-time path.
func (e *Engine) Analyze(ctx context.Context, text string, companyContext map[string]string) (domain.AnalysisResult, error) {
	if e.DemoMode() {
		e.logger.Info("analysis engine in demo mode, returning mock result")
		return mockResult(), nil
	}

	input := truncate(text)
	if len(companyContext) > 0 {
		contextJSON, err := json.Marshal(companyContext)
		if err == nil {
			input = "Company context: " + string(contextJSON) + "\n\nTender text:\n" + input
		}
	} else {
		input = "Tender text:\n" + input
	}

	raw, err := e.generate(ctx, StageFull, analyzeInstructions, input)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	var result domain.AnalysisResult
	if err := decodeJSON(raw, &result); err != nil {
		return domain.AnalysisResult{}, &Error{Stage: StageFull, Err: err}
	}
	return result, nil
}

// Compliance extracts the compliance matrix stage.
func (e *Engine) Compliance(ctx context.Context, text string) ([]domain.ComplianceItem, error) {
	if e.DemoMode() {
		return mockResult().ComplianceMatrix, nil
	}

	instructions := `Extract a compliance matrix from the tender text.
Output JSON: { "requirements": [{ "requirement": "string", "source_page": number, "status": "compliant" | "non_compliant" | "risk" }] }`
	raw, err := e.generate(ctx, StageCompliance, instructions, truncate(text))
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Requirements []domain.ComplianceItem `json:"requirements"`
	}
	if err := decodeJSON(raw, &decoded); err != nil {
		return nil, &Error{Stage: StageCompliance, Err: err}
	}
	return decoded.Requirements, nil
}

type RiskAssessment struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// Risk scores overall bid risk for the tender.
func (e *Engine) Risk(ctx context.Context, text string) (RiskAssessment, error) {
	if e.DemoMode() {
		mock := mockResult()
		return RiskAssessment{Score: mock.RiskScore, Rationale: mock.RiskRationale}, nil
	}

	instructions := `Analyze bid risk for the tender text.
Output JSON: { "score": number (0-100), "rationale": "string" }`
	raw, err := e.generate(ctx, StageRisk, instructions, truncate(text))
	if err != nil {
		return RiskAssessment{}, err
	}

	var decoded RiskAssessment
	if err := decodeJSON(raw, &decoded); err != nil {
		return RiskAssessment{}, &Error{Stage: StageRisk, Err: err}
	}
	return decoded, nil
}

// Proposal drafts the proposal text stage.
func (e *Engine) Proposal(ctx context.Context, text string) (string, error) {
	if e.DemoMode() {
		return mockResult().ProposalDraft, nil
	}

	instructions := `Draft a proposal responding to the tender text.
Output JSON: { "text": "markdown string" }`
	raw, err := e.generate(ctx, StageProposal, instructions, truncate(text))
	if err != nil {
		return "", err
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(raw, &decoded); err != nil {
		return "", &Error{Stage: StageProposal, Err: err}
	}
	return decoded.Text, nil
}

func (e *Engine) generate(ctx context.Context, stage, instructions, input string) (string, error) {
	result, err := e.generator.Generate(ctx, ai.GenerateRequest{
		Model:        e.model,
		Instructions: instructions,
		Input:        input,
		Temperature:  0.2,
		JSONMode:     true,
	})
	if err != nil {
		return "", &Error{Stage: stage, Err: err}
	}
	return result.Text, nil
}

func truncate(text string) string {
	if len(text) <= maxInputChars {
		return text
	}
	cut := maxInputChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// decodeJSON tolerates models that fence their JSON output in markdown.
func decodeJSON(raw string, value any) error {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if err := json.Unmarshal([]byte(trimmed), value); err != nil {
		return fmt.Errorf("parse structured response: %w", err)
	}
	return nil
}

// mockResult is the fixed demo-mode output. The values are stable on purpose:
// local development and offline tests key off this exact shape.
func mockResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		ComplianceMatrix: []domain.ComplianceItem{
			{Requirement: "ISO 27001 Certification", SourcePage: 4, Status: domain.ComplianceStatusCompliant},
			{Requirement: "Turnover > £5M", SourcePage: 8, Status: domain.ComplianceStatusRisk},
			{Requirement: "Social Value Plan", SourcePage: 12, Status: domain.ComplianceStatusCompliant},
		},
		RiskScore:     85,
		RiskRationale: "Analysis complete based on extraction.",
		Deadlines: []domain.TenderDeadline{
			{Label: "Submission", Date: "2025-05-30"},
		},
		ProposalDraft: "## Executive Summary\n\nWe are pleased to submit our proposal...",
	}
}
