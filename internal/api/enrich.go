package api

import (
	"net/http"
	"strings"
)

const (
	defaultYenteLimit = 20
	maxYenteLimit     = 100
)

func (s *Server) handleYenteSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query := strings.TrimSpace(params.Get("query"))
	if query == "" {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, `parameter "query" is required`)
		return
	}
	limit, err := parseIntParam(params, "limit", defaultYenteLimit, 1, maxYenteLimit)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, err.Error())
		return
	}

	response, err := s.enricher.Search(r.Context(), query, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, response)
}

func (s *Server) handleYenteLink(w http.ResponseWriter, r *http.Request) {
	response, err := s.enricher.Link(r.Context(), r.PathValue("id"), r.PathValue("entityID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, response)
}
