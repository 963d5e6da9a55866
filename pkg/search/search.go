// Package search wraps a single Elasticsearch client, providing per-day
// index naming with an alias, single-document indexing for analytic
// documents, and bulk indexing for audit events.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Config holds the search client's connection parameters.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Timeout   time.Duration
}

// Client wraps *elasticsearch.Client with the index-naming and bulk/single
// document conventions used by the dispatcher (C4) and consumer (C5).
type Client struct {
	es      *elasticsearch.Client
	timeout time.Duration
}

// NewClient builds a Client from cfg, defaulting the request timeout to 2s
// per §5's "bounded request timeout (default 2s)" resource rule.
func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("building elasticsearch client: %w", err)
	}
	return &Client{es: es, timeout: timeout}, nil
}

// IndexName computes the per-day index name "<prefix>-YYYY.MM.DD" for ts.
func IndexName(prefix string, ts time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, ts.UTC().Format("2006.01.02"))
}

// BulkItem is one document to index in a bulk request.
type BulkItem struct {
	ID     string
	Index  string
	Source any
}

// BulkResult reports which items failed to index, keyed by ID.
type BulkResult struct {
	Failed map[string]string
}

// IndexDocument indexes a single document, used for analytic documents (C5
// step 6). It also ensures an alias named prefix points at the day's index.
func (c *Client) IndexDocument(ctx context.Context, prefix string, ts time.Time, id string, doc any) (indexName string, err error) {
	indexName = IndexName(prefix, ts)

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling document: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(reqCtx, c.es)
	if err != nil {
		return "", fmt.Errorf("indexing document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", fmt.Errorf("index request failed: %s", res.String())
	}

	if err := c.ensureAlias(ctx, prefix, indexName); err != nil {
		return "", err
	}
	return indexName, nil
}

// BulkIndex indexes many audit items in one request, per-item tolerant:
// partial failures are reported in BulkResult.Failed rather than aborting
// the whole chunk.
func (c *Client) BulkIndex(ctx context.Context, items []BulkItem) (*BulkResult, error) {
	if len(items) == 0 {
		return &BulkResult{Failed: map[string]string{}}, nil
	}

	var buf bytes.Buffer
	indices := map[string]bool{}
	for _, item := range items {
		meta := map[string]any{"index": map[string]any{"_index": item.Index, "_id": item.ID}}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshaling bulk meta: %w", err)
		}
		srcBytes, err := json.Marshal(item.Source)
		if err != nil {
			return nil, fmt.Errorf("marshaling bulk source: %w", err)
		}
		buf.Write(metaBytes)
		buf.WriteByte('\n')
		buf.Write(srcBytes)
		buf.WriteByte('\n')
		indices[item.Index] = true
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := esapi.BulkRequest{Body: bytes.NewReader(buf.Bytes())}
	res, err := req.Do(reqCtx, c.es)
	if err != nil {
		return nil, fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading bulk response: %w", err)
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing bulk response: %w", err)
	}

	result := &BulkResult{Failed: map[string]string{}}
	if parsed.Errors {
		for _, item := range parsed.Items {
			for _, outcome := range item {
				if outcome.Error != nil {
					result.Failed[outcome.ID] = outcome.Error.Reason
				}
			}
		}
	}
	return result, nil
}

// ensureAlias points alias prefix at indexName, adding it if absent.
func (c *Client) ensureAlias(ctx context.Context, prefix, indexName string) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.es.Indices.ExistsAlias([]string{prefix}, c.es.Indices.ExistsAlias.WithIndex(indexName))
	if err == nil && res != nil {
		defer res.Body.Close()
		if res.StatusCode == 200 {
			return nil
		}
	}

	body := fmt.Sprintf(`{"actions":[{"add":{"index":%q,"alias":%q}}]}`, indexName, prefix)
	updateRes, err := c.es.Indices.UpdateAliases(
		strings.NewReader(body),
		c.es.Indices.UpdateAliases.WithContext(reqCtx),
	)
	if err != nil {
		return fmt.Errorf("updating alias: %w", err)
	}
	defer updateRes.Body.Close()
	if updateRes.IsError() {
		return fmt.Errorf("alias update failed: %s", updateRes.String())
	}
	return nil
}
