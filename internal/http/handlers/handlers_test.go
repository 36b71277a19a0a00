package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/downoff/lucius-backend/internal/domain"
	"github.com/downoff/lucius-backend/internal/repository"
	"github.com/downoff/lucius-backend/internal/scoring"
	"github.com/downoff/lucius-backend/internal/service"
)

func newTestAPI(t *testing.T) (*API, repository.JobsRepository, repository.TendersRepository) {
	t.Helper()
	jobsRepo := repository.NewMemoryJobsRepository()
	tendersRepo := repository.NewMemoryTendersRepository()
	api := NewAPI(APIConfig{
		Jobs:      service.NewJobsService(service.JobsServiceConfig{Repo: jobsRepo}),
		Tenders:   tendersRepo,
		Scorer:    scoring.NewHeuristicScorer(),
		UploadDir: t.TempDir(),
	})
	return api, jobsRepo, tendersRepo
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	request := httptest.NewRequest(http.MethodPost, "/v1/analyses", &buf)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func decodeErrorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var payload errorPayload
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestAnalyze_RejectsNonPostMethods(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	api.Analyze(recorder, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestAnalyze_RequiresMultipartFile(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	request := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader("{}"))
	request.Header.Set("Content-Type", "application/json")
	api.Analyze(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_request", decodeErrorCode(t, recorder))
}

func TestAnalyze_RejectsNonPDFExtension(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	api.Analyze(recorder, multipartUpload(t, "notes.docx", []byte("payload"), nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_request", decodeErrorCode(t, recorder))
}

func TestAnalyze_RejectsUnreadablePDF(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	api.Analyze(recorder, multipartUpload(t, "tender.pdf", []byte("not a real pdf"), nil))

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, "unreadable_document", decodeErrorCode(t, recorder))
}

func TestJobStatus_InvalidIdentifier(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	api.JobStatus(recorder, httptest.NewRequest(http.MethodGet, "/v1/jobs/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_job_id", decodeErrorCode(t, recorder))
}

func TestJobStatus_NotFound(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	api.JobStatus(recorder, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "not_found", decodeErrorCode(t, recorder))
}

func TestJobStatus_ReturnsTerminalResult(t *testing.T) {
	api, jobsRepo, _ := newTestAPI(t)
	ctx := context.Background()

	job := &domain.Job{
		ID:        uuid.NewString(),
		Type:      domain.JobTypePDFAnalysis,
		Status:    domain.JobStatusPending,
		Progress:  5,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, jobsRepo.CreateJob(ctx, job))
	require.NoError(t, jobsRepo.MarkCompleted(ctx, job.ID, domain.AnalysisResult{RiskScore: 72, ProposalDraft: "## Summary"}))

	recorder := httptest.NewRecorder()
	api.JobStatus(recorder, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID, nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var response struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Result   *struct {
			Analysis *domain.AnalysisResult `json:"analysis"`
			Error    string                 `json:"error"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, job.ID, response.ID)
	assert.Equal(t, "completed", response.Status)
	assert.Equal(t, 100, response.Progress)
	require.NotNil(t, response.Result)
	require.NotNil(t, response.Result.Analysis)
	assert.Equal(t, 72, response.Result.Analysis.RiskScore)
}

func TestMatchTenders_RescoresAndSorts(t *testing.T) {
	api, _, tendersRepo := newTestAPI(t)
	ctx := context.Background()

	_, err := tendersRepo.UpsertByURL(ctx, &domain.Tender{
		URL:            "https://example.com/low",
		Title:          "Office cleaning contract",
		PublishedAt:    time.Now().UTC(),
		RelevanceScore: 90,
	})
	require.NoError(t, err)
	_, err = tendersRepo.UpsertByURL(ctx, &domain.Tender{
		URL:            "https://example.com/high",
		Title:          "Cloud data platform build",
		PublishedAt:    time.Now().UTC(),
		RelevanceScore: 1,
	})
	require.NoError(t, err)

	body := `{"company_name": "Acme", "keywords_include": ["cloud", "data"], "keywords_exclude": ["cleaning"]}`
	request := httptest.NewRequest(http.MethodPost, "/v1/tenders/match", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	api.MatchTenders(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	var response struct {
		Tenders []struct {
			URL            string `json:"url"`
			RelevanceScore int    `json:"relevance_score"`
		} `json:"tenders"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Equal(t, 2, response.Total)
	assert.Equal(t, "https://example.com/high", response.Tenders[0].URL)
	assert.Equal(t, 6, response.Tenders[0].RelevanceScore)
	assert.Equal(t, "https://example.com/low", response.Tenders[1].URL)
	assert.Equal(t, -4, response.Tenders[1].RelevanceScore)
}

func TestMatchTenders_RejectsUnknownFields(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	request := httptest.NewRequest(http.MethodPost, "/v1/tenders/match", strings.NewReader(`{"unexpected": true}`))
	api.MatchTenders(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAssessBid_RequiresDescriptionOrValue(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	request := httptest.NewRequest(http.MethodPost, "/v1/scoring/assess", strings.NewReader(`{}`))
	api.AssessBid(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAssessBid_ReturnsClampedMatch(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	body := `{"description": "General IT support services", "complexity": "high", "competitors": 9}`
	request := httptest.NewRequest(http.MethodPost, "/v1/scoring/assess", strings.NewReader(body))
	api.AssessBid(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	var match scoring.Match
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &match))
	assert.GreaterOrEqual(t, match.Score, 0)
	assert.LessOrEqual(t, match.Score, 99)
	assert.NotEmpty(t, match.Reasons)
}

func TestRunIngestion_WithoutConfiguredFeeds(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	api.RunIngestion(recorder, httptest.NewRequest(http.MethodPost, "/v1/ingest/run", nil))

	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "ingestion_disabled", decodeErrorCode(t, recorder))
}

func TestHealth(t *testing.T) {
	api, _, _ := newTestAPI(t)
	recorder := httptest.NewRecorder()

	api.Health(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status": "ok"}`, recorder.Body.String())
}
