package handlers

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/domain"
)

// Tenders lists recently ingested tenders with their ingest-time scores.
func (api *API) Tenders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	tenders, err := api.tenders.ListRecent(r.Context(), 100)
	if err != nil {
		api.logger.Error("failed to list tenders", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", "tender store is unreachable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenders": tendersToJSON(tenders),
		"total":   len(tenders),
	})
}

// MatchTenders rescores the recent tenders against the caller's company
// profile. Ingest-time scores are defaults; this is the authoritative
// per-company view.
func (api *API) MatchTenders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var company domain.CompanyProfile
	if err := decodeJSON(r, &company); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "company profile payload is invalid")
		return
	}

	tenders, err := api.tenders.ListRecent(r.Context(), 100)
	if err != nil {
		api.logger.Error("failed to list tenders", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", "tender store is unreachable")
		return
	}

	for index := range tenders {
		match := api.scorer.Score(r.Context(), tenders[index], company)
		tenders[index].RelevanceScore = match.Score
		tenders[index].MatchedReasons = match.Reasons
	}
	sort.SliceStable(tenders, func(i, j int) bool {
		return tenders[i].RelevanceScore > tenders[j].RelevanceScore
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"tenders": tendersToJSON(tenders),
		"total":   len(tenders),
	})
}

// RunIngestion triggers a synchronous ingestion pass and reports its stats.
func (api *API) RunIngestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if api.ingestor == nil {
		writeError(w, r, http.StatusConflict, "ingestion_disabled", "no feeds configured")
		return
	}

	stats := api.ingestor.Ingest(r.Context())
	writeJSON(w, http.StatusOK, stats)
}

func tendersToJSON(tenders []domain.Tender) []map[string]any {
	out := make([]map[string]any, 0, len(tenders))
	for _, tender := range tenders {
		out = append(out, map[string]any{
			"url":               tender.URL,
			"source":            tender.Source,
			"title":             tender.Title,
			"short_description": tender.ShortDescription,
			"authority":         tender.Authority,
			"country":           tender.Country,
			"cpv_codes":         tender.CPVCodes,
			"budget":            tender.Budget,
			"deadline":          tender.Deadline,
			"published_at":      tender.PublishedAt,
			"relevance_score":   tender.RelevanceScore,
			"matched_reasons":   tender.MatchedReasons,
		})
	}
	return out
}
