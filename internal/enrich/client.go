// Package enrich looks up investigation entities in an external
// sanctions and PEP index served by yente, and links matches back into
// the investigation graph.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/osinto/casefile/internal/config"
	"github.com/osinto/casefile/internal/ftm"
	"github.com/osinto/casefile/internal/logging"
	"github.com/osinto/casefile/internal/models"
)

// ErrEnrichmentUnavailable marks yente connection failures, non-2xx
// answers and undecodable payloads. The API maps it to 503.
var ErrEnrichmentUnavailable = errors.New("enrichment service unavailable")

const (
	defaultTimeout  = 15 * time.Second
	defaultDataset  = "default"
	searchCacheSize = 256
)

type cacheKey struct {
	query string
	limit int
}

// Client is an HTTP client for the yente matching API with a small LRU
// cache over search responses.
type Client struct {
	baseURL    string
	dataset    string
	httpClient *http.Client
	cache      *lru.Cache[cacheKey, *models.YenteSearchResponse]
	logger     *logging.Logger
}

// NewClient creates a yente client with tuned connection pooling.
func NewClient(cfg config.YenteConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dataset := cfg.Dataset
	if dataset == "" {
		dataset = defaultDataset
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxConnsPerHost:     10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	cache, _ := lru.New[cacheKey, *models.YenteSearchResponse](searchCacheSize)
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		dataset: dataset,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		cache:  cache,
		logger: logging.GetLogger("enrich.client"),
	}
}

// Search queries the configured dataset and normalizes the matches. A
// blank query returns an empty response without touching the network.
func (c *Client) Search(ctx context.Context, query string, limit int) (*models.YenteSearchResponse, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return &models.YenteSearchResponse{Query: query, Total: 0, Results: []models.YenteSearchResult{}}, nil
	}

	key := cacheKey{query: q, limit: limit}
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	payload, err := c.getJSON(ctx, "/search/"+url.PathEscape(c.dataset), url.Values{
		"q":     {q},
		"limit": {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}

	results := []models.YenteSearchResult{}
	if raw, ok := payload["results"].([]interface{}); ok {
		for _, value := range raw {
			item, ok := value.(map[string]interface{})
			if !ok {
				continue
			}
			if result := normalizeResult(item); result != nil {
				results = append(results, *result)
			}
		}
	}

	response := &models.YenteSearchResponse{
		Query:   q,
		Total:   totalOf(payload, len(results)),
		Results: results,
	}
	c.cache.Add(key, response)
	return response, nil
}

// AdjacentIDs returns every entity id referenced by the yente record's
// adjacency, except the record itself, sorted.
func (c *Client) AdjacentIDs(ctx context.Context, entityID string) ([]string, error) {
	payload, err := c.getJSON(ctx, "/entities/"+url.PathEscape(entityID)+"/adjacent", nil)
	if err != nil {
		return nil, err
	}

	ids := map[string]struct{}{}
	if adjacent, ok := payload["adjacent"].(map[string]interface{}); ok {
		for _, value := range adjacent {
			bucket, ok := value.(map[string]interface{})
			if !ok {
				continue
			}
			results, ok := bucket["results"].([]interface{})
			if !ok {
				continue
			}
			for _, result := range results {
				if item, ok := result.(map[string]interface{}); ok {
					collectIDs(item["properties"], ids)
				}
			}
		}
	}

	delete(ids, entityID)
	linked := make([]string, 0, len(ids))
	for id := range ids {
		linked = append(linked, id)
	}
	sort.Strings(linked)
	return linked, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values) (map[string]interface{}, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create yente request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnrichmentUnavailable, err)
	}
	defer resp.Body.Close()

	// Read the body to completion so the connection can be reused.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrEnrichmentUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Yente request failed: status=%d body=%s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: status %d", ErrEnrichmentUnavailable, resp.StatusCode)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEnrichmentUnavailable, err)
	}
	return payload, nil
}

// normalizeResult flattens one match. Matches arrive either as a bare
// entity or wrapped in an item with entity and score fields; entries
// without an id or schema are dropped.
func normalizeResult(item map[string]interface{}) *models.YenteSearchResult {
	entity := item
	if nested, ok := item["entity"].(map[string]interface{}); ok {
		entity = nested
	}

	id := stringValue(entity["id"])
	schemaName := stringValue(entity["schema"])
	if id == "" || schemaName == "" {
		return nil
	}

	properties := normalizeProperties(entity["properties"])
	caption := stringValue(entity["caption"])
	if caption == "" {
		caption = stringValue(entity["name"])
	}
	if caption == "" && len(properties["name"]) > 0 {
		caption = properties["name"][0]
	}
	if caption == "" {
		caption = id
	}

	var score *float64
	if value, ok := item["score"].(float64); ok {
		score = &value
	}

	datasets := []string{}
	if raw, ok := entity["datasets"].([]interface{}); ok {
		for _, value := range raw {
			datasets = append(datasets, stringValue(value))
		}
	}

	return &models.YenteSearchResult{
		ID:         id,
		Schema:     schemaName,
		Caption:    caption,
		Score:      score,
		Datasets:   datasets,
		Properties: properties,
	}
}

func normalizeProperties(raw interface{}) ftm.Properties {
	props := ftm.Properties{}
	items, ok := raw.(map[string]interface{})
	if !ok {
		return props
	}
	for key, value := range items {
		switch v := value.(type) {
		case []interface{}:
			values := make([]string, 0, len(v))
			for _, item := range v {
				if item == nil {
					continue
				}
				values = append(values, stringValue(item))
			}
			props[key] = values
		case nil:
			props[key] = []string{}
		default:
			props[key] = []string{stringValue(value)}
		}
	}
	return props
}

// collectIDs walks nested maps and lists gathering every value stored
// under an id key.
func collectIDs(value interface{}, ids map[string]struct{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		switch id := v["id"].(type) {
		case string:
			ids[id] = struct{}{}
		case float64:
			ids[strconv.FormatFloat(id, 'f', -1, 64)] = struct{}{}
		}
		for _, nested := range v {
			collectIDs(nested, ids)
		}
	case []interface{}:
		for _, nested := range v {
			collectIDs(nested, ids)
		}
	}
}

// totalOf reads the response total, accepting both the bare count and
// the {value, relation} object newer yente versions return.
func totalOf(payload map[string]interface{}, fallback int) int {
	switch v := payload["total"].(type) {
	case float64:
		return int(v)
	case map[string]interface{}:
		if n, ok := v["value"].(float64); ok {
			return int(n)
		}
	}
	return fallback
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
