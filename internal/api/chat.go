package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/osinto/casefile/internal/models"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrorCodeUnavailable, "Chat agent is not configured")
		return
	}

	var payload models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(payload.InvestigationID) == "" {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Missing required field: investigationId")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Missing required field: message")
		return
	}

	if _, err := s.investigations.Get(r.Context(), payload.InvestigationID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	response, err := s.chat.Chat(r.Context(), payload)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, response)
}
