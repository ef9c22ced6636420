package workflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/osinto/casefile/internal/docparse"
	"github.com/osinto/casefile/internal/extract"
	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/graph"
	"github.com/osinto/casefile/internal/ingest"
	"github.com/osinto/casefile/internal/models"
)

// PersistResult summarizes the persist step. It is stored as the step
// output and served as the workflow result.
type PersistResult struct {
	Processed    int      `json:"processed"`
	NodesCreated int      `json:"nodes_created"`
	EdgesCreated int      `json:"edges_created"`
	Errors       []string `json:"errors"`
	DocumentID   string   `json:"document_id"`
}

// persist writes extraction candidates into the investigation graph and
// stamps the document entity with the parse results. Candidate failures
// collect into the result; only document and graph-level failures abort
// the step. Candidate ids derive from their content, so re-running the
// step upserts the same nodes and edges instead of duplicating them.
func (e *Engine) persist(ctx context.Context, job Job, parsed *docparse.Parsed, candidates []extract.Candidate) (*PersistResult, error) {
	doc, err := e.entities.Get(ctx, job.InvestigationID, job.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, models.NewValidationError("Document entity '%s' not found", job.DocumentID)
	}
	if err := e.updateDocument(ctx, job, doc, parsed); err != nil {
		return nil, err
	}

	result := &PersistResult{Processed: 1, Errors: []string{}, DocumentID: job.DocumentID}
	nodes, relations := e.partition(candidates)

	// Nodes first so relation endpoints can resolve against them. The
	// cache seeds reference resolution with each node's primary name.
	querier := e.graphs.Investigation(job.InvestigationID)
	cache := map[string]string{}
	for i, candidate := range nodes {
		props := ftm.Clean(candidate.Properties)
		entity, created, err := e.ingestor.UpsertNode(ctx, job.InvestigationID, ingest.Record{
			ID:         candidateID(job.DocumentID, candidate.Schema, props),
			Schema:     candidate.Schema,
			Properties: props,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("entity %d: %v", i+1, err))
			continue
		}
		if created {
			result.NodesCreated++
		}
		if names := entity.Properties["name"]; len(names) > 0 {
			cache[strings.ToLower(names[0])] = entity.ID
		}
	}

	for i, candidate := range relations {
		created, err := e.persistRelation(ctx, querier, job.DocumentID, i+1, candidate, cache)
		if err != nil {
			if _, ok := err.(*candidateError); ok {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			return nil, err
		}
		if created {
			result.EdgesCreated++
		}
	}

	return result, nil
}

// updateDocument merges the parse results onto the document entity's
// existing properties and flips its processing status to completed.
func (e *Engine) updateDocument(ctx context.Context, job Job, doc *models.Entity, parsed *docparse.Parsed) error {
	props := make(ftm.Properties, len(doc.Properties)+5)
	for key, values := range doc.Properties {
		props[key] = values
	}
	props["fileName"] = []string{job.Filename}
	if job.ContentType != "" {
		props["mimeType"] = []string{job.ContentType}
	}
	if parsed.Content != "" {
		props["bodyText"] = []string{parsed.Content}
	}
	props["sourceUrl"] = []string{e.objects.ObjectURL(job.InvestigationID, job.StorageKey)}
	props["processingStatus"] = []string{"completed"}

	updated, err := e.entities.Update(ctx, job.InvestigationID, job.DocumentID, models.EntityUpdate{Properties: props})
	if err != nil {
		return err
	}
	if updated == nil {
		return models.NewValidationError("Document entity '%s' not found", job.DocumentID)
	}
	return nil
}

// partition splits candidates into nodes and relations. Unknown schemas
// go down the node path and surface their schema error there.
func (e *Engine) partition(candidates []extract.Candidate) (nodes, relations []extract.Candidate) {
	for _, candidate := range candidates {
		if schema, ok := e.catalog.Get(candidate.Schema); ok && schema.IsRelation() {
			relations = append(relations, candidate)
			continue
		}
		nodes = append(nodes, candidate)
	}
	return nodes, relations
}

// persistRelation resolves a relation candidate's endpoints and merges
// the edge under a deterministic id. Candidate-level problems return a
// *candidateError; anything else aborts the step.
func (e *Engine) persistRelation(ctx context.Context, querier graph.Querier, documentID string, idx int, candidate extract.Candidate, cache map[string]string) (bool, error) {
	props := ingest.NormalizeAliases(candidate.Schema, ftm.Clean(candidate.Properties))
	schema, ok := e.catalog.Get(candidate.Schema)
	if !ok {
		return false, &candidateError{fmt.Sprintf("relation %d: unknown schema %q", idx, candidate.Schema)}
	}

	endpoints, found := ingest.Endpoints(schema, props)
	if !found {
		return false, &candidateError{fmt.Sprintf("relation %d: missing endpoints", idx)}
	}

	sourceID, err := e.ingestor.ResolveReference(ctx, querier, endpoints.SourceRef, cache)
	if err != nil {
		return false, err
	}
	targetID, err := e.ingestor.ResolveReference(ctx, querier, endpoints.TargetRef, cache)
	if err != nil {
		return false, err
	}
	if sourceID == "" || targetID == "" {
		return false, &candidateError{fmt.Sprintf("relation %d: unresolved endpoints (%q -> %q)",
			idx, endpoints.SourceRef, endpoints.TargetRef)}
	}

	props[endpoints.SourceSlot] = []string{sourceID}
	props[endpoints.TargetSlot] = []string{targetID}
	if len(props["proof"]) == 0 {
		props["proof"] = []string{documentID}
	}

	created, err := e.ingestor.UpsertEdge(ctx, querier, ingest.EdgeCandidate{
		ID:         "rel-" + documentID + "-" + strconv.Itoa(idx),
		Schema:     schema.Name,
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: props,
	})
	if err != nil {
		return false, &candidateError{fmt.Sprintf("relation %d: %v", idx, err)}
	}
	return created, nil
}

// candidateError marks a failure scoped to a single candidate.
type candidateError struct {
	msg string
}

func (e *candidateError) Error() string { return e.msg }

// candidateID derives a stable id from the candidate's content so that
// re-running the persist step addresses the same node.
func candidateID(documentID, schema string, props ftm.Properties) string {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(documentID)
	b.WriteByte('\n')
	b.WriteString(schema)
	for _, key := range keys {
		b.WriteByte('\n')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strings.Join(props[key], "|"))
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())).String()
}
