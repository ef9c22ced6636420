package api

import (
	"encoding/json"
	"net/http"

	"github.com/osinto/casefile/internal/models"
)

const (
	defaultDedupeThreshold = 0.7
	defaultDedupeLimit     = 100
	maxDedupeLimit         = 500
)

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var payload models.EntityCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid JSON body")
		return
	}

	entity, err := s.entities.Create(r.Context(), r.PathValue("id"), payload)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, entity)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	entities, err := s.entities.List(r.Context(), r.PathValue("id"), search)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, entities)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := s.entities.Get(r.Context(), r.PathValue("id"), r.PathValue("entityID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entity == nil {
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, "Entity not found")
		return
	}
	WriteData(w, http.StatusOK, entity)
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	var payload models.EntityUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid JSON body")
		return
	}

	entity, err := s.entities.Update(r.Context(), r.PathValue("id"), r.PathValue("entityID"), payload)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entity == nil {
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, "Entity not found")
		return
	}
	WriteData(w, http.StatusOK, entity)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.entities.Delete(r.Context(), r.PathValue("id"), r.PathValue("entityID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, "Entity not found")
		return
	}
	WriteNoContent(w)
}

func (s *Server) handleExpandEntity(w http.ResponseWriter, r *http.Request) {
	expansion, err := s.entities.Expand(r.Context(), r.PathValue("id"), r.PathValue("entityID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if expansion == nil {
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, "Entity not found")
		return
	}
	WriteData(w, http.StatusOK, expansion)
}

func (s *Server) handleFindDuplicates(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	threshold, err := parseFloatParam(params, "threshold", defaultDedupeThreshold, 0, 1)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, err.Error())
		return
	}
	limit, err := parseIntParam(params, "limit", defaultDedupeLimit, 1, maxDedupeLimit)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, err.Error())
		return
	}

	candidates, err := s.entities.FindDuplicates(r.Context(), r.PathValue("id"), params.Get("schema"), threshold, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, candidates)
}

func (s *Server) handleMergeEntities(w http.ResponseWriter, r *http.Request) {
	var payload models.MergeEntitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid JSON body")
		return
	}

	result, err := s.entities.MergeEntities(r.Context(), r.PathValue("id"), payload.SourceIDs, payload.TargetID, payload.MergedProperties)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, result)
}
