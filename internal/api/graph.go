package api

import "net/http"

const (
	defaultGraphLimit = 500
	maxGraphLimit     = 2000
)

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	skip, err := parseIntParam(params, "skip", 0, 0, 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, err.Error())
		return
	}
	limit, err := parseIntParam(params, "limit", defaultGraphLimit, 1, maxGraphLimit)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, err.Error())
		return
	}

	page, err := s.graphs.GetGraphPage(r.Context(), r.PathValue("id"), skip, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, page)
}
