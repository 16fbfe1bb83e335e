package daemon

import (
	"net/http"
	"strconv"
	"strings"

	"mila/internal/api"
	"mila/internal/archive"
)

func (s *apiServer) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listEntries(w, r)
	case http.MethodPost:
		s.submitEntry(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if community := strings.TrimSpace(query.Get("community")); community != "" {
		entries, err := s.daemon.entries.ListByCommunity(r.Context(), community)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.EntryListResponse{Entries: entries})
		return
	}

	var statuses []archive.Status
	for _, value := range query["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := archive.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(trimmed))
			return
		}
		statuses = append(statuses, status)
	}

	entries, err := s.daemon.entries.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EntryListResponse{Entries: entries})
}

func (s *apiServer) submitEntry(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	entry, err := s.daemon.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SubmitResponse{Entry: *entry})
}

// handleEntry serves /api/entries/{id} and /api/entries/{id}/retry.
func (s *apiServer) handleEntry(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.describeEntry(w, r, id)
	case action == "retry" && r.Method == http.MethodPost:
		s.retryEntry(w, r, id)
	case action == "" || action == "retry":
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		s.writeError(w, http.StatusNotFound, "entry not found")
	}
}

func (s *apiServer) describeEntry(w http.ResponseWriter, r *http.Request, id int64) {
	entry, validations, err := s.daemon.entries.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.EntryResponse{Entry: *entry, Validations: validations})
}

func (s *apiServer) retryEntry(w http.ResponseWriter, r *http.Request, id int64) {
	released, err := s.daemon.entries.Retry(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if released == 0 {
		s.writeError(w, http.StatusConflict, "entry is not frozen for review")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RetryResponse{Released: released})
}
