package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/http/handlers"
	"github.com/downoff/lucius-backend/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *zap.Logger
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/analyses", deps.API.Analyze)
	mux.HandleFunc("/v1/jobs/", deps.API.JobStatus)
	mux.HandleFunc("/v1/tenders", deps.API.Tenders)
	mux.HandleFunc("/v1/tenders/match", deps.API.MatchTenders)
	mux.HandleFunc("/v1/scoring/assess", deps.API.AssessBid)
	mux.HandleFunc("/v1/ingest/run", deps.API.RunIngestion)

	handler := http.Handler(mux)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.AccessLog(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
