package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/metrics"
	"github.com/osinto/casefile/internal/models"
	"github.com/osinto/casefile/internal/workflow"
)

var errUnexpectedCall = errors.New("unexpected service call")

type stubInvestigations struct {
	createFn func(ctx context.Context, payload models.InvestigationCreate) (*models.Investigation, error)
	listFn   func(ctx context.Context) (*models.InvestigationList, error)
	getFn    func(ctx context.Context, id string) (*models.Investigation, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubInvestigations) Create(ctx context.Context, payload models.InvestigationCreate) (*models.Investigation, error) {
	if s.createFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createFn(ctx, payload)
}

func (s *stubInvestigations) List(ctx context.Context) (*models.InvestigationList, error) {
	if s.listFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listFn(ctx)
}

func (s *stubInvestigations) Get(ctx context.Context, id string) (*models.Investigation, error) {
	if s.getFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getFn(ctx, id)
}

func (s *stubInvestigations) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return errUnexpectedCall
	}
	return s.deleteFn(ctx, id)
}

type stubEntities struct {
	createFn     func(ctx context.Context, investigationID string, payload models.EntityCreate) (*models.Entity, error)
	listFn       func(ctx context.Context, investigationID, search string) ([]models.Entity, error)
	getFn        func(ctx context.Context, investigationID, entityID string) (*models.Entity, error)
	updateFn     func(ctx context.Context, investigationID, entityID string, payload models.EntityUpdate) (*models.Entity, error)
	deleteFn     func(ctx context.Context, investigationID, entityID string) (bool, error)
	expandFn     func(ctx context.Context, investigationID, entityID string) (*models.EntityExpand, error)
	duplicatesFn func(ctx context.Context, investigationID, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error)
	mergeFn      func(ctx context.Context, investigationID string, sourceIDs []string, targetID string, mergedProperties ftm.Properties) (*models.MergeEntitiesResponse, error)
}

func (s *stubEntities) Create(ctx context.Context, investigationID string, payload models.EntityCreate) (*models.Entity, error) {
	if s.createFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createFn(ctx, investigationID, payload)
}

func (s *stubEntities) List(ctx context.Context, investigationID, search string) ([]models.Entity, error) {
	if s.listFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listFn(ctx, investigationID, search)
}

func (s *stubEntities) Get(ctx context.Context, investigationID, entityID string) (*models.Entity, error) {
	if s.getFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getFn(ctx, investigationID, entityID)
}

func (s *stubEntities) Update(ctx context.Context, investigationID, entityID string, payload models.EntityUpdate) (*models.Entity, error) {
	if s.updateFn == nil {
		return nil, errUnexpectedCall
	}
	return s.updateFn(ctx, investigationID, entityID, payload)
}

func (s *stubEntities) Delete(ctx context.Context, investigationID, entityID string) (bool, error) {
	if s.deleteFn == nil {
		return false, errUnexpectedCall
	}
	return s.deleteFn(ctx, investigationID, entityID)
}

func (s *stubEntities) Expand(ctx context.Context, investigationID, entityID string) (*models.EntityExpand, error) {
	if s.expandFn == nil {
		return nil, errUnexpectedCall
	}
	return s.expandFn(ctx, investigationID, entityID)
}

func (s *stubEntities) FindDuplicates(ctx context.Context, investigationID, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error) {
	if s.duplicatesFn == nil {
		return nil, errUnexpectedCall
	}
	return s.duplicatesFn(ctx, investigationID, schema, threshold, limit)
}

func (s *stubEntities) MergeEntities(ctx context.Context, investigationID string, sourceIDs []string, targetID string, mergedProperties ftm.Properties) (*models.MergeEntitiesResponse, error) {
	if s.mergeFn == nil {
		return nil, errUnexpectedCall
	}
	return s.mergeFn(ctx, investigationID, sourceIDs, targetID, mergedProperties)
}

type stubIngestor struct {
	ingestFn func(ctx context.Context, investigationID string, data []byte, filename string) (*models.IngestResult, error)
}

func (s *stubIngestor) IngestFile(ctx context.Context, investigationID string, data []byte, filename string) (*models.IngestResult, error) {
	if s.ingestFn == nil {
		return nil, errUnexpectedCall
	}
	return s.ingestFn(ctx, investigationID, data, filename)
}

type stubObjects struct {
	uploadFn func(ctx context.Context, investigationID, documentID, filename string, content []byte, contentType string) (string, error)
}

func (s *stubObjects) Upload(ctx context.Context, investigationID, documentID, filename string, content []byte, contentType string) (string, error) {
	if s.uploadFn == nil {
		return "", errUnexpectedCall
	}
	return s.uploadFn(ctx, investigationID, documentID, filename, content, contentType)
}

func (s *stubObjects) ObjectURL(investigationID, key string) string {
	return "s3://casefile-" + investigationID + "/" + key
}

type stubEngine struct {
	enqueueFn func(ctx context.Context, job workflow.Job) (string, error)
	statusFn  func(ctx context.Context, workflowID string) (*models.ExtractionStatus, error)
}

func (s *stubEngine) Enqueue(ctx context.Context, job workflow.Job) (string, error) {
	if s.enqueueFn == nil {
		return "", errUnexpectedCall
	}
	return s.enqueueFn(ctx, job)
}

func (s *stubEngine) Status(ctx context.Context, workflowID string) (*models.ExtractionStatus, error) {
	if s.statusFn == nil {
		return nil, errUnexpectedCall
	}
	return s.statusFn(ctx, workflowID)
}

type stubGraphs struct {
	pageFn func(ctx context.Context, investigationID string, skip, limit int) (*models.GraphPage, error)
}

func (s *stubGraphs) GetGraphPage(ctx context.Context, investigationID string, skip, limit int) (*models.GraphPage, error) {
	if s.pageFn == nil {
		return nil, errUnexpectedCall
	}
	return s.pageFn(ctx, investigationID, skip, limit)
}

type stubNotebooks struct {
	getFn  func(ctx context.Context, investigationID string) (*models.NotebookDocument, error)
	saveFn func(ctx context.Context, investigationID string, update models.NotebookUpdate) (*models.NotebookDocument, error)
}

func (s *stubNotebooks) GetOrCreate(ctx context.Context, investigationID string) (*models.NotebookDocument, error) {
	if s.getFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getFn(ctx, investigationID)
}

func (s *stubNotebooks) Save(ctx context.Context, investigationID string, update models.NotebookUpdate) (*models.NotebookDocument, error) {
	if s.saveFn == nil {
		return nil, errUnexpectedCall
	}
	return s.saveFn(ctx, investigationID, update)
}

type stubEnricher struct {
	searchFn func(ctx context.Context, query string, limit int) (*models.YenteSearchResponse, error)
	linkFn   func(ctx context.Context, investigationID, entityID string) (*models.YenteLinkResponse, error)
}

func (s *stubEnricher) Search(ctx context.Context, query string, limit int) (*models.YenteSearchResponse, error) {
	if s.searchFn == nil {
		return nil, errUnexpectedCall
	}
	return s.searchFn(ctx, query, limit)
}

func (s *stubEnricher) Link(ctx context.Context, investigationID, entityID string) (*models.YenteLinkResponse, error) {
	if s.linkFn == nil {
		return nil, errUnexpectedCall
	}
	return s.linkFn(ctx, investigationID, entityID)
}

type stubChat struct {
	chatFn func(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

func (s *stubChat) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if s.chatFn == nil {
		return nil, errUnexpectedCall
	}
	return s.chatFn(ctx, req)
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error {
	return s.err
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Catalog == nil {
		deps.Catalog = ftm.BuiltinCatalog()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
		deps.Metrics = metrics.NewMetrics(deps.Registry)
	}
	cfg := Config{
		ListenAddr:  "127.0.0.1:0",
		CORSOrigins: []string{"http://localhost:5173"},
	}
	return NewServer(cfg, deps)
}

func doRequest(t *testing.T, s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return doRequest(t, s, method, target, bytes.NewReader(raw))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	return resp
}

// multipartBody builds a multipart form with one file part, keeping the
// part's content type explicit.
func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func newUploadRequest(t *testing.T, target string, body io.Reader, contentType string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	return req, httptest.NewRecorder()
}

func doUpload(t *testing.T, s *Server, target, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, formContentType := multipartBody(t, "file", filename, contentType, content)
	req, rec := newUploadRequest(t, target, body, formContentType)
	s.Handler().ServeHTTP(rec, req)
	return rec
}
