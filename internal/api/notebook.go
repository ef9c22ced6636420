package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/osinto/casefile/internal/models"
	"github.com/osinto/casefile/internal/notebook"
)

func (s *Server) handleGetNotebook(w http.ResponseWriter, r *http.Request) {
	doc, err := s.notebooks.GetOrCreate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, markUnavailable(err))
		return
	}
	WriteData(w, http.StatusOK, doc)
}

func (s *Server) handleSaveNotebook(w http.ResponseWriter, r *http.Request) {
	var payload models.NotebookUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid JSON body")
		return
	}

	doc, err := s.notebooks.Save(r.Context(), r.PathValue("id"), payload)
	if err != nil {
		if errors.Is(err, notebook.ErrVersionConflict) {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeServiceError(w, r, markUnavailable(err))
		return
	}
	WriteData(w, http.StatusOK, doc)
}
