// Package elasticsearch keeps a long-term archive of ingested documents.
// The document store forgets unsaved news after a day; the archive does not.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Client wraps the Elasticsearch client with archive operations.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}

	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the archive mapping. Text fields use the Spanish analyzer.
var indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"title": { "type": "text", "analyzer": "spanish" },
			"full_content": { "type": "text", "analyzer": "spanish" },
			"executive_summary": { "type": "text", "analyzer": "spanish" },
			"category": { "type": "keyword" },
			"source_name": { "type": "keyword" },
			"responsible_entity": { "type": "keyword" },
			"keywords": { "type": "text", "analyzer": "spanish" },
			"published_at": { "type": "date" },
			"ingested_at": { "type": "date" },
			"original_url": { "type": "keyword" },
			"was_consulted": { "type": "boolean" },
			"consult_count": { "type": "integer" },
			"is_saved": { "type": "boolean" }
		}
	}
}`

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// IndexDocuments indexes docs with one bulk request and returns how many
// were accepted. Documents are keyed by id, so re-archiving overwrites.
func (c *Client) IndexDocuments(ctx context.Context, docs []models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]map[string]string{"index": {"_id": doc.ID}}
		if err := enc.Encode(meta); err != nil {
			return 0, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return 0, fmt.Errorf("failed to marshal document: %w", err)
		}
	}

	res, err := c.es.Bulk(
		&buf,
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("bulk error: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	indexed := 0
	var failures []string
	for _, item := range br.Items {
		for _, result := range item {
			if result.Error != nil {
				failures = append(failures, fmt.Sprintf("%s: %s", result.ID, result.Error.Reason))
				continue
			}
			indexed++
		}
	}
	if len(failures) > 0 {
		return indexed, fmt.Errorf("%d documents rejected: %s", len(failures), strings.Join(failures, "; "))
	}
	return indexed, nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchOptions narrows an archive search.
type SearchOptions struct {
	Query    string
	Category models.Category // empty for every category
	Since    time.Time       // zero for no lower bound
	Limit    int
}

func buildSearchQuery(opts SearchOptions) map[string]any {
	var must []any
	if strings.TrimSpace(opts.Query) != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  opts.Query,
				"fields": []string{"title^3", "keywords^2", "executive_summary", "full_content"},
			},
		})
	}

	var filter []any
	if opts.Category != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"category": opts.Category}})
	}
	if !opts.Since.IsZero() {
		filter = append(filter, map[string]any{
			"range": map[string]any{"published_at": map[string]any{"gte": opts.Since.UTC().Format(time.RFC3339)}},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(boolQuery) > 0 {
		query = map[string]any{"bool": boolQuery}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	q := map[string]any{
		"query": query,
		"size":  limit,
	}
	if len(must) == 0 {
		q["sort"] = []any{map[string]any{"published_at": map[string]any{"order": "desc"}}}
	}
	return q
}

// Search performs a BM25 search over the archive. Without a query text the
// newest documents matching the filters are returned.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]models.Document, error) {
	data, err := json.Marshal(buildSearchQuery(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	docs := make([]models.Document, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		docs[i] = hit.Source
	}

	return docs, nil
}

// getResponse represents ES get response structure.
type getResponse struct {
	Found  bool            `json:"found"`
	Source models.Document `json:"_source"`
}

// GetDocument retrieves a document by ID. It returns nil when the archive
// does not hold it.
func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	res, err := c.es.Get(
		c.index,
		id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}

	if res.IsError() {
		return nil, fmt.Errorf("get error: %s", res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !gr.Found {
		return nil, nil
	}

	return &gr.Source, nil
}
