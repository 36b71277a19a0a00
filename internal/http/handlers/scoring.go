package handlers

import (
	"net/http"

	"github.com/downoff/lucius-backend/internal/domain"
	"github.com/downoff/lucius-backend/internal/scoring"
)

// assessProfile stands in until assessments are tied to stored company
// accounts.
var assessProfile = domain.CompanyProfile{
	Name:            "User Company",
	KeywordsInclude: []string{"general"},
}

type assessRequest struct {
	Description string                 `json:"description,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Complexity  string                 `json:"complexity,omitempty"`
	Competitors int                    `json:"competitors,omitempty"`
	Company     *domain.CompanyProfile `json:"company,omitempty"`
}

// AssessBid runs the manual go/no-go assessment.
func (api *API) AssessBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request assessRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "assessment payload is invalid")
		return
	}
	if request.Description == "" && request.Value == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "description or value is required")
		return
	}

	company := assessProfile
	if request.Company != nil {
		company = *request.Company
	}

	match := scoring.AssessBid(r.Context(), api.scorer, company, scoring.BidAssessmentInput{
		Description: request.Description,
		Value:       request.Value,
		Complexity:  request.Complexity,
		Competitors: request.Competitors,
	})
	writeJSON(w, http.StatusOK, match)
}
