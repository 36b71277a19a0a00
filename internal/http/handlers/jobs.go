package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/domain"
	"github.com/downoff/lucius-backend/internal/extract"
	"github.com/downoff/lucius-backend/internal/repository"
	"github.com/downoff/lucius-backend/internal/service"
)

// Analyze accepts a multipart PDF upload, rejects unreadable documents up
// front, and returns the created job so clients can start polling.
func (api *API) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, api.maxUploadBytes)
	if err := r.ParseMultipartForm(api.maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "multipart form with a file field is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "no file uploaded")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "only PDF files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "failed to read upload")
		return
	}

	// Pre-flight extraction keeps unreadable documents out of the queue.
	if _, err := extract.Text(data); err != nil {
		if errors.Is(err, extract.ErrEmptyDocument) {
			writeError(w, r, http.StatusUnprocessableEntity, "empty_document", "document contains no extractable text")
			return
		}
		var extractionErr *extract.ExtractionError
		if errors.As(err, &extractionErr) {
			writeError(w, r, http.StatusUnprocessableEntity, "unreadable_document", "document could not be parsed as a PDF")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "extraction failed")
		return
	}

	companyContext, err := parseCompanyContext(r.FormValue("company_context"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "company_context must be a JSON object of strings")
		return
	}

	filePath, err := api.persistUpload(header.Filename, data)
	if err != nil {
		api.logger.Error("failed to persist upload", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to store upload")
		return
	}

	job, err := api.jobs.CreateAnalysisJob(r.Context(), service.CreateJobInput{
		Type:           domain.JobType(r.FormValue("type")),
		FilePath:       filePath,
		OriginalName:   header.Filename,
		CompanyContext: companyContext,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidJobType) {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "unsupported job type")
			return
		}
		api.logger.Error("failed to create job", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", "failed to create analysis job")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"progress": job.Progress,
	})
}

// JobStatus reports job state for polling clients. Malformed identifiers,
// missing jobs and storage outages map to distinct responses.
func (api *API) JobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"))
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	job, err := api.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidJobID):
			writeError(w, r, http.StatusBadRequest, "invalid_job_id", "job id is not a valid identifier")
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, repository.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", "job store is unreachable")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
		}
		return
	}

	response := map[string]any{
		"id":         job.ID,
		"status":     job.Status,
		"progress":   job.Progress,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
	if job.Result != nil {
		response["result"] = job.Result
	}
	writeJSON(w, http.StatusOK, response)
}

func parseCompanyContext(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var context map[string]string
	if err := json.Unmarshal([]byte(raw), &context); err != nil {
		return nil, err
	}
	return context, nil
}

func (api *API) persistUpload(originalName string, data []byte) (string, error) {
	if err := os.MkdirAll(api.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := fmt.Sprintf("tender-%d-%s%s", time.Now().UnixNano(), uuid.NewString()[:8], filepath.Ext(originalName))
	path := filepath.Join(api.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}
