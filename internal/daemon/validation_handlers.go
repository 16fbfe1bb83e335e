package daemon

import (
	"net/http"
	"strings"

	"mila/internal/api"
	"mila/internal/archive"
)

type validationRequest struct {
	EntryID   int64  `json:"entry_id"`
	Validator string `json:"validator"`
	Decision  string `json:"decision"`
	Notes     string `json:"notes,omitempty"`
}

type bulkValidationRequest struct {
	EntryIDs  []int64 `json:"entry_ids"`
	Validator string  `json:"validator"`
	Decision  string  `json:"decision"`
	Notes     string  `json:"notes,omitempty"`
}

func (s *apiServer) handleValidation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req validationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	decision, ok := archive.ParseDecision(req.Decision)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "decision must be approved or rejected")
		return
	}

	outcome, err := s.daemon.consensus.Submit(r.Context(), req.EntryID, req.Validator, decision, req.Notes)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromOutcome(outcome))
}

func (s *apiServer) handleBulkValidation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req bulkValidationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.EntryIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "entry_ids is required")
		return
	}
	if strings.TrimSpace(req.Validator) == "" {
		s.writeError(w, http.StatusBadRequest, "validator is required")
		return
	}
	decision, ok := archive.ParseDecision(req.Decision)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "decision must be approved or rejected")
		return
	}

	results := s.daemon.consensus.SubmitBatch(r.Context(), req.EntryIDs, req.Validator, decision, req.Notes)
	payload := api.BulkValidationResponse{Results: make([]api.BulkValidationResult, 0, len(results))}
	for _, result := range results {
		item := api.BulkValidationResult{EntryID: result.EntryID}
		if result.Err != nil {
			item.Error = result.Err.Error()
		} else {
			item.Outcome = api.FromOutcome(result.Outcome)
		}
		payload.Results = append(payload.Results, item)
	}
	s.writeJSON(w, http.StatusOK, payload)
}
