package daemon

import (
	"net/http"
	"strings"

	"mila/internal/api"
	"mila/internal/archive"
)

type communityRequest struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	DefaultLanguage  string   `json:"default_language,omitempty"`
	Region           string   `json:"region,omitempty"`
	Validators       []string `json:"validators,omitempty"`
	AllowedLanguages []string `json:"allowed_languages,omitempty"`
	SensitiveTerms   []string `json:"sensitive_terms,omitempty"`
	MinValidators    int      `json:"min_validators,omitempty"`
	AnchoringEnabled bool     `json:"anchoring_enabled,omitempty"`
}

func (s *apiServer) handleCommunities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		communities, err := s.daemon.communities.List(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.CommunityListResponse{Communities: communities})
	case http.MethodPost, http.MethodPut:
		s.setCommunity(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) setCommunity(w http.ResponseWriter, r *http.Request) {
	var req communityRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	community, err := s.daemon.communities.Set(r.Context(), &archive.Community{
		Name:             req.Name,
		Description:      req.Description,
		DefaultLanguage:  req.DefaultLanguage,
		Region:           req.Region,
		Validators:       req.Validators,
		AllowedLanguages: req.AllowedLanguages,
		SensitiveTerms:   req.SensitiveTerms,
		MinValidators:    req.MinValidators,
		AnchoringEnabled: req.AnchoringEnabled,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommunityResponse{Community: *community})
}

// handleCommunity serves /api/communities/{name} and
// /api/communities/{name}/check.
func (s *apiServer) handleCommunity(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/communities/")
	name, action, _ := strings.Cut(rest, "/")
	if strings.TrimSpace(name) == "" {
		s.writeError(w, http.StatusNotFound, "community not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.describeCommunity(w, r, name)
	case action == "check" && (r.Method == http.MethodPost || r.Method == http.MethodGet):
		s.checkCommunityRules(w, r, name)
	case action == "" || action == "check":
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		s.writeError(w, http.StatusNotFound, "community not found")
	}
}

func (s *apiServer) describeCommunity(w http.ResponseWriter, r *http.Request, name string) {
	community, err := s.daemon.communities.Describe(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if community == nil {
		s.writeError(w, http.StatusNotFound, "community not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommunityResponse{Community: *community})
}

func (s *apiServer) checkCommunityRules(w http.ResponseWriter, r *http.Request, name string) {
	var req api.CheckRequest
	if r.Method == http.MethodGet {
		query := r.URL.Query()
		req.Title = query.Get("title")
		req.Language = query.Get("language")
		req.Transcript = query.Get("transcript")
	} else if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Community = name
	check, err := s.daemon.communities.Check(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, check)
}
