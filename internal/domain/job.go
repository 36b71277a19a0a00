package domain

import "time"

type JobType string

const (
	JobTypePDFAnalysis     JobType = "pdf_analysis"
	JobTypeComplianceCheck JobType = "compliance_check"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobPayload is the immutable input captured at job creation.
type JobPayload struct {
	FilePath       string            `json:"file_path"`
	OriginalName   string            `json:"original_name,omitempty"`
	CompanyContext map[string]string `json:"company_context,omitempty"`
}

// JobResult is present only on terminal jobs. Error is set if and only if
// the job failed; a failed result carries no partial analysis data.
type JobResult struct {
	Analysis *AnalysisResult `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Job is the canonical async unit of analysis work. Once claimed, the
// owning worker is the only writer of Status and Progress.
type Job struct {
	ID          string
	Type        JobType
	Status      JobStatus
	Payload     JobPayload
	Progress    int
	Result      *JobResult
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type ComplianceStatus string

const (
	ComplianceStatusCompliant    ComplianceStatus = "compliant"
	ComplianceStatusNonCompliant ComplianceStatus = "non_compliant"
	ComplianceStatusRisk         ComplianceStatus = "risk"
)

type ComplianceItem struct {
	Requirement string           `json:"requirement"`
	SourcePage  int              `json:"source_page"`
	Status      ComplianceStatus `json:"status"`
}

type TenderDeadline struct {
	Label string `json:"label"`
	Date  string `json:"date"`
}

// AnalysisResult is the structured output of the analysis engine. The JSON
// field names are a stable contract with downstream consumers.
type AnalysisResult struct {
	ComplianceMatrix []ComplianceItem `json:"compliance_matrix"`
	RiskScore        int              `json:"risk_score"`
	RiskRationale    string           `json:"risk_rationale,omitempty"`
	Deadlines        []TenderDeadline `json:"deadlines,omitempty"`
	ProposalDraft    string           `json:"proposal_draft"`
}
