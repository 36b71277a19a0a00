package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/http/middleware"
	"github.com/downoff/lucius-backend/internal/ingest"
	"github.com/downoff/lucius-backend/internal/repository"
	"github.com/downoff/lucius-backend/internal/scoring"
	"github.com/downoff/lucius-backend/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	jobs     *service.JobsService
	tenders  repository.TendersRepository
	scorer   scoring.Scorer
	ingestor *ingest.Ingestor
	logger   *zap.Logger

	uploadDir      string
	maxUploadBytes int64
}

type APIConfig struct {
	Jobs           *service.JobsService
	Tenders        repository.TendersRepository
	Scorer         scoring.Scorer
	Ingestor       *ingest.Ingestor
	UploadDir      string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func NewAPI(cfg APIConfig) *API {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "data/uploads"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &API{
		jobs:           cfg.Jobs,
		tenders:        cfg.Tenders,
		scorer:         cfg.Scorer,
		ingestor:       cfg.Ingestor,
		logger:         cfg.Logger,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}
