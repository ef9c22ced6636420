package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/models"
)

func TestCreateEntity(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			createFn: func(_ context.Context, investigationID string, payload models.EntityCreate) (*models.Entity, error) {
				assert.Equal(t, "inv-1", investigationID)
				assert.Equal(t, "Person", payload.Schema)
				return &models.Entity{ID: "p-1", Schema: payload.Schema, Properties: payload.Properties}, nil
			},
		},
	})

	rec := doJSON(t, s, http.MethodPost, "/api/investigations/inv-1/entities", models.EntityCreate{
		Schema:     "Person",
		Properties: ftm.Properties{"name": {"Ada Lovelace"}},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var entity models.Entity
	decodeBody(t, rec, &entity)
	assert.Equal(t, "p-1", entity.ID)
	assert.Equal(t, []string{"Ada Lovelace"}, entity.Properties.Get("name"))
}

func TestCreateEntityRejectsUnknownSchema(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			createFn: func(context.Context, string, models.EntityCreate) (*models.Entity, error) {
				return nil, ftm.NewSchemaError("Schema '%s' is not available", "Wizard")
			},
		},
	})

	rec := doJSON(t, s, http.MethodPost, "/api/investigations/inv-1/entities", models.EntityCreate{Schema: "Wizard"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, ErrorCodeValidation, resp.Error)
	assert.Equal(t, "Schema 'Wizard' is not available", resp.Message)
}

func TestListEntitiesForwardsSearch(t *testing.T) {
	var gotSearch string
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			listFn: func(_ context.Context, _, search string) ([]models.Entity, error) {
				gotSearch = search
				return []models.Entity{}, nil
			},
		},
	})

	rec := doRequest(t, s, http.MethodGet, "/api/investigations/inv-1/entities?search=acme", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", gotSearch)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetEntityNotFound(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			getFn: func(context.Context, string, string) (*models.Entity, error) {
				return nil, nil
			},
		},
	})

	rec := doRequest(t, s, http.MethodGet, "/api/investigations/inv-1/entities/p-missing", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, ErrorCodeNotFound, resp.Error)
	assert.Equal(t, "Entity not found", resp.Message)
}

func TestUpdateEntity(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			updateFn: func(_ context.Context, _, entityID string, payload models.EntityUpdate) (*models.Entity, error) {
				return &models.Entity{ID: entityID, Schema: "Person", Properties: payload.Properties}, nil
			},
		},
	})

	rec := doJSON(t, s, http.MethodPut, "/api/investigations/inv-1/entities/p-1", models.EntityUpdate{
		Properties: ftm.Properties{"name": {"Grace Hopper"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var entity models.Entity
	decodeBody(t, rec, &entity)
	assert.Equal(t, []string{"Grace Hopper"}, entity.Properties.Get("name"))
}

func TestUpdateEntityNotFound(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			updateFn: func(context.Context, string, string, models.EntityUpdate) (*models.Entity, error) {
				return nil, nil
			},
		},
	})

	rec := doJSON(t, s, http.MethodPut, "/api/investigations/inv-1/entities/p-missing", models.EntityUpdate{})

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Entity not found", decodeError(t, rec).Message)
}

func TestDeleteEntity(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			deleteFn: func(context.Context, string, string) (bool, error) { return true, nil },
		},
	})

	rec := doRequest(t, s, http.MethodDelete, "/api/investigations/inv-1/entities/p-1", nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteEntityNotFound(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			deleteFn: func(context.Context, string, string) (bool, error) { return false, nil },
		},
	})

	rec := doRequest(t, s, http.MethodDelete, "/api/investigations/inv-1/entities/p-missing", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Entity not found", decodeError(t, rec).Message)
}

func TestExpandEntity(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			expandFn: func(_ context.Context, _, entityID string) (*models.EntityExpand, error) {
				return &models.EntityExpand{
					Entity:    models.Entity{ID: entityID, Schema: "Person"},
					Neighbors: []models.Entity{{ID: "co-1", Schema: "Company"}},
					Edges:     []models.GraphEdge{{ID: "e-1", Source: entityID, Target: "co-1", Schema: "Directorship"}},
				}, nil
			},
		},
	})

	rec := doRequest(t, s, http.MethodGet, "/api/investigations/inv-1/entities/p-1/expand", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var expansion models.EntityExpand
	decodeBody(t, rec, &expansion)
	assert.Equal(t, "p-1", expansion.Entity.ID)
	require.Len(t, expansion.Neighbors, 1)
	require.Len(t, expansion.Edges, 1)
	assert.Equal(t, "Directorship", expansion.Edges[0].Schema)
}

func TestFindDuplicatesUsesDefaults(t *testing.T) {
	var gotThreshold float64
	var gotLimit int
	var gotSchema string
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			duplicatesFn: func(_ context.Context, _, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error) {
				gotSchema, gotThreshold, gotLimit = schema, threshold, limit
				return []models.DuplicateCandidate{}, nil
			},
		},
	})

	rec := doRequest(t, s, http.MethodGet, "/api/investigations/inv-1/entities/deduplicate/candidates", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.7, gotThreshold)
	assert.Equal(t, 100, gotLimit)
	assert.Empty(t, gotSchema)
}

func TestFindDuplicatesForwardsParams(t *testing.T) {
	var gotThreshold float64
	var gotLimit int
	var gotSchema string
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			duplicatesFn: func(_ context.Context, _, schema string, threshold float64, limit int) ([]models.DuplicateCandidate, error) {
				gotSchema, gotThreshold, gotLimit = schema, threshold, limit
				return []models.DuplicateCandidate{}, nil
			},
		},
	})

	rec := doRequest(t, s, http.MethodGet, "/api/investigations/inv-1/entities/deduplicate/candidates?schema=Person&threshold=0.9&limit=25", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Person", gotSchema)
	assert.Equal(t, 0.9, gotThreshold)
	assert.Equal(t, 25, gotLimit)
}

func TestFindDuplicatesRejectsThresholdOutOfRange(t *testing.T) {
	s := newTestServer(t, Deps{Entities: &stubEntities{}})

	rec := doRequest(t, s, http.MethodGet, "/api/investigations/inv-1/entities/deduplicate/candidates?threshold=1.5", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, ErrorCodeValidation, resp.Error)
	assert.Contains(t, resp.Message, "threshold")
}

func TestMergeEntities(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			mergeFn: func(_ context.Context, _ string, sourceIDs []string, targetID string, merged ftm.Properties) (*models.MergeEntitiesResponse, error) {
				assert.Equal(t, []string{"p-1", "p-2"}, sourceIDs)
				assert.Equal(t, "p-1", targetID)
				assert.Equal(t, []string{"Ada Lovelace"}, merged.Get("name"))
				return &models.MergeEntitiesResponse{
					Target:          models.Entity{ID: targetID, Schema: "Person", Properties: merged},
					MergedSourceIDs: []string{"p-2"},
				}, nil
			},
		},
	})

	rec := doJSON(t, s, http.MethodPost, "/api/investigations/inv-1/entities/merge", models.MergeEntitiesRequest{
		SourceIDs:        []string{"p-1", "p-2"},
		TargetID:         "p-1",
		MergedProperties: ftm.Properties{"name": {"Ada Lovelace"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.MergeEntitiesResponse
	decodeBody(t, rec, &result)
	assert.Equal(t, "p-1", result.Target.ID)
	assert.Equal(t, []string{"p-2"}, result.MergedSourceIDs)
}

func TestMergeEntitiesRejectsSingleSource(t *testing.T) {
	s := newTestServer(t, Deps{
		Entities: &stubEntities{
			mergeFn: func(context.Context, string, []string, string, ftm.Properties) (*models.MergeEntitiesResponse, error) {
				return nil, models.NewValidationError("At least two source_ids are required")
			},
		},
	})

	rec := doJSON(t, s, http.MethodPost, "/api/investigations/inv-1/entities/merge", models.MergeEntitiesRequest{
		SourceIDs: []string{"p-1"},
		TargetID:  "p-1",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "At least two source_ids are required", decodeError(t, rec).Message)
}
