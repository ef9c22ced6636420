package api

import (
	"encoding/json"
	"net/http"

	"github.com/osinto/casefile/internal/models"
)

func (s *Server) handleCreateInvestigation(w http.ResponseWriter, r *http.Request) {
	var payload models.InvestigationCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid JSON body")
		return
	}

	investigation, err := s.investigations.Create(r.Context(), payload)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, investigation)
}

func (s *Server) handleListInvestigations(w http.ResponseWriter, r *http.Request) {
	list, err := s.investigations.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, list)
}

func (s *Server) handleGetInvestigation(w http.ResponseWriter, r *http.Request) {
	investigation, err := s.investigations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, investigation)
}

func (s *Server) handleDeleteInvestigation(w http.ResponseWriter, r *http.Request) {
	if err := s.investigations.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}
