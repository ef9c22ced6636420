package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/models"
	"github.com/osinto/casefile/internal/workflow"
)

const maxUploadBytes = 50 << 20

// ftmExtensions are ingested synchronously as structured records. Anything
// else is stored and routed through the extraction workflow.
var ftmExtensions = map[string]bool{
	".ftm":    true,
	".ijson":  true,
	".json":   true,
	".ndjson": true,
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Multipart field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Unable to read uploaded file")
		return
	}
	if len(content) == 0 {
		WriteError(w, http.StatusBadRequest, ErrorCodeValidation, "Uploaded file is empty")
		return
	}

	investigationID := r.PathValue("id")
	filename := header.Filename
	if filename == "" {
		filename = "upload.bin"
	}
	extension := strings.ToLower(filepath.Ext(filename))

	if ftmExtensions[extension] {
		result, err := s.ingestor.IngestFile(r.Context(), investigationID, content, filename)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		WriteData(w, http.StatusOK, result)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, err := s.startExtraction(r, investigationID, filename, extension, contentType, content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, result)
}

// startExtraction stores the raw document, registers it as a Document node
// and schedules the extraction workflow. The node carries the storage URL
// so the document stays addressable before extraction finishes.
func (s *Server) startExtraction(r *http.Request, investigationID, filename, extension, contentType string, content []byte) (*models.IngestResult, error) {
	ctx := r.Context()
	documentID := uuid.NewString()

	key, err := s.objects.Upload(ctx, investigationID, documentID, filename, content, contentType)
	if err != nil {
		return nil, markUnavailable(err)
	}

	properties := ftm.Properties{
		"fileName":         {filename},
		"mimeType":         {contentType},
		"processingStatus": {"queued"},
		"sourceUrl":        {s.objects.ObjectURL(investigationID, key)},
	}
	if extension != "" {
		properties["extension"] = []string{extension}
	}

	document, err := s.entities.Create(ctx, investigationID, models.EntityCreate{
		ID:         documentID,
		Schema:     "Document",
		Properties: properties,
	})
	if err != nil {
		return nil, err
	}

	workflowID, err := s.engine.Enqueue(ctx, workflow.Job{
		InvestigationID: investigationID,
		DocumentID:      document.ID,
		StorageKey:      key,
		Filename:        filename,
		ContentType:     contentType,
	})
	if err != nil {
		return nil, markUnavailable(err)
	}

	return &models.IngestResult{
		Processed:    1,
		NodesCreated: 1,
		EdgesCreated: 0,
		Errors:       []string{},
		Status:       "processing",
		WorkflowID:   workflowID,
		Message:      "Document uploaded and extraction workflow started",
	}, nil
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context(), r.PathValue("workflowID"))
	if err != nil {
		s.writeServiceError(w, r, markUnavailable(err))
		return
	}
	if status.Status == workflow.StatusNotFound {
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, "Workflow not found")
		return
	}
	WriteData(w, http.StatusOK, status)
}
