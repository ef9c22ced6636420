// Package extract turns parsed document text into FollowTheMoney entity
// candidates using the Anthropic Messages API. The model is forced onto a
// single tool call whose input schema carries the extractions, so the
// response is structured JSON rather than free text.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/osinto/casefile/internal/docparse"
	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/logging"
)

// ErrLLMUnavailable marks failures reaching the extraction model. Handlers
// map it to 503.
var ErrLLMUnavailable = errors.New("extraction model unavailable")

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4096

	extractionToolName = "record_extractions"

	// maxTextChars caps how much document text goes into a single model
	// call. Longer documents are truncated rather than rejected.
	maxTextChars = 150000
)

// Entity and relation schemas the extractor accepts. Anything else the
// model emits is dropped.
var allowedSchemas = []string{
	"Person", "Company", "Organization", "Security", "Email",
	"Ownership", "Directorship", "Employment", "Associate", "Family",
	"Membership", "Representation", "Payment", "UnknownLink",
}

var allowedSchemaSet = func() map[string]bool {
	set := make(map[string]bool, len(allowedSchemas))
	for _, schema := range allowedSchemas {
		set[schema] = true
	}
	return set
}()

const basePrompt = "You are an OSINT analyst extracting FollowTheMoney entities from documents. " +
	"Extract entities from the text in order of appearance. " +
	"Allowed entity schemas: Person, Company, Organization, Security, Email. " +
	"Allowed relationship schemas: Ownership, Directorship, Employment, Associate, Family, Membership, Representation, Payment, UnknownLink. " +
	"Use exact text spans when possible. " +
	"For relationships, set FollowTheMoney properties when the text states them explicitly: startDate, endDate, date, role, status, summary, description, sourceUrl, percentage, amount, currency. " +
	"Relationship endpoint properties are Ownership(owner, asset), Directorship(director, organization), Employment(employee, employer), Associate(person, associate), Family(person, relative), Membership(member, organization), Representation(agent, client), Payment(payer, beneficiary), UnknownLink(subject, object); endpoint values may be entity names or ids. " +
	"When multiple mentions describe the same relationship, attach a relationGroup property with the same value to each. " +
	"Record everything you find with the " + extractionToolName + " tool."

const (
	secFilingGuidance = "Prioritize issuers, executives, directors, securities, and subsidiaries mentioned in SEC filing sections."
	emailGuidance     = "Prioritize sender and recipient people and organizations found in the headers and the message body."
)

// Completer abstracts the Anthropic Messages call so tests can substitute a
// canned fake.
type Completer interface {
	Complete(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// APICompleter is the production Completer backed by the Anthropic client.
type APICompleter struct {
	client anthropic.Client
}

// NewAPICompleter builds a Completer for the Anthropic API. An empty key
// defers to the ANTHROPIC_API_KEY environment variable.
func NewAPICompleter(apiKey string) *APICompleter {
	if apiKey == "" {
		return &APICompleter{client: anthropic.NewClient()}
	}
	return &APICompleter{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Complete implements Completer.
func (c *APICompleter) Complete(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return c.client.Messages.New(ctx, params)
}

// Candidate is one extracted entity or relationship, cleaned and ready for
// graph persistence.
type Candidate struct {
	Schema     string         `json:"schema"`
	Properties ftm.Properties `json:"properties"`
}

// Extractor runs entity extraction over parsed document text.
type Extractor struct {
	completer Completer
	model     anthropic.Model
	maxTokens int64
	logger    *logging.Logger
}

// NewExtractor creates an Extractor. Empty model and non-positive maxTokens
// fall back to defaults.
func NewExtractor(completer Completer, model string, maxTokens int) *Extractor {
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Extractor{
		completer: completer,
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
		logger:    logging.GetLogger("extract"),
	}
}

// Extract asks the model for entities and relationships in text. The
// documentType switches prompt guidance for SEC filings and emails.
func (e *Extractor) Extract(ctx context.Context, text, documentType string) ([]Candidate, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []Candidate{}, nil
	}
	if len(trimmed) > maxTextChars {
		e.logger.WarnWithFields("truncating document text for extraction",
			logging.Field("chars", len(trimmed)),
			logging.Field("limit", maxTextChars),
		)
		trimmed = trimmed[:maxTextChars]
	}

	params := anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: promptFor(documentType)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(trimmed)),
		},
		Tools: []anthropic.ToolUnionParam{extractionTool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: extractionToolName},
		},
	}

	resp, err := e.completer.Complete(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	payload, err := responsePayload(resp)
	if err != nil {
		return nil, err
	}
	items, err := decodeItems(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding extraction payload: %w", err)
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		if candidate, ok := buildCandidate(item); ok {
			candidates = append(candidates, candidate)
		}
	}

	e.logger.InfoWithFields("extraction finished",
		logging.Field("document_type", documentType),
		logging.Field("raw", len(items)),
		logging.Field("candidates", len(candidates)),
	)
	return candidates, nil
}

func promptFor(documentType string) string {
	switch documentType {
	case docparse.TypeSECFiling:
		return basePrompt + " " + secFilingGuidance
	case docparse.TypeEmail:
		return basePrompt + " " + emailGuidance
	default:
		return basePrompt
	}
}

func extractionTool() anthropic.ToolUnionParam {
	itemSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"schema": map[string]any{
				"type":        "string",
				"enum":        allowedSchemas,
				"description": "FollowTheMoney schema of the extraction.",
			},
			"span": map[string]any{
				"type":        "string",
				"description": "Exact text span the extraction was taken from.",
			},
			"properties": map[string]any{
				"type":                 "object",
				"description":          "FollowTheMoney properties. Values are strings or arrays of strings.",
				"additionalProperties": true,
			},
			"confidence": map[string]any{
				"type":        "number",
				"description": "Extraction confidence between 0 and 1.",
			},
			"charStart": map[string]any{"type": "integer"},
			"charEnd":   map[string]any{"type": "integer"},
		},
		"required": []string{"schema"},
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        extractionToolName,
			Description: anthropic.String("Record every entity and relationship extracted from the document."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"extractions": map[string]any{
						"type":        "array",
						"items":       itemSchema,
						"description": "Extracted entities and relationships in order of appearance.",
					},
				},
				Required: []string{"extractions"},
			},
		},
	}
}

type extractionItem struct {
	Schema     string         `json:"schema"`
	Span       string         `json:"span"`
	Confidence *float64       `json:"confidence"`
	CharStart  *float64       `json:"charStart"`
	CharEnd    *float64       `json:"charEnd"`
	Properties map[string]any `json:"properties"`
}

// responsePayload pulls the extraction JSON out of the response: the forced
// tool call's input, or the first text block with code fences stripped.
func responsePayload(resp *anthropic.Message) ([]byte, error) {
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "tool_use" && block.Name == extractionToolName {
			return []byte(block.Input), nil
		}
	}
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return []byte(stripFences(block.Text)), nil
		}
	}
	return nil, errors.New("model response carried no extraction payload")
}

func decodeItems(payload []byte) ([]extractionItem, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("empty extraction payload")
	}
	if trimmed[0] == '[' {
		var items []extractionItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var wrapper struct {
		Extractions []extractionItem `json:"extractions"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Extractions, nil
}

// buildCandidate converts one raw extraction into a cleaned Candidate.
// Unknown schemas and extractions with no usable properties are dropped.
func buildCandidate(item extractionItem) (Candidate, bool) {
	schema := strings.TrimSpace(item.Schema)
	if !allowedSchemaSet[schema] {
		return Candidate{}, false
	}

	properties := make(ftm.Properties, len(item.Properties)+4)
	for key, value := range item.Properties {
		if values := stringList(value); len(values) > 0 {
			properties[key] = values
		}
	}
	if item.Confidence != nil {
		properties["confidence"] = []string{strconv.FormatFloat(*item.Confidence, 'f', -1, 64)}
	}
	if item.CharStart != nil {
		properties["charStart"] = []string{strconv.Itoa(int(*item.CharStart))}
	}
	if item.CharEnd != nil {
		properties["charEnd"] = []string{strconv.Itoa(int(*item.CharEnd))}
	}

	span := strings.TrimSpace(item.Span)
	if span != "" && len(properties["name"]) == 0 {
		properties["name"] = []string{span}
	}
	if len(properties) == 0 {
		return Candidate{}, false
	}
	return Candidate{Schema: schema, Properties: ftm.Clean(properties)}, true
}

// stringList coerces a decoded JSON value into a list of strings, the shape
// FollowTheMoney properties take.
func stringList(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, stringify(item))
		}
		return out
	default:
		return []string{stringify(value)}
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || !strings.ContainsAny(first, "{[") {
			trimmed = trimmed[idx+1:]
		}
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
