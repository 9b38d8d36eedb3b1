package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/motheroflaunch/backend/internal/metrics"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/telemetry"
)

// Searcher answers catalog and blog searches and keeps its index in sync
// with moderation decisions
type Searcher interface {
	Search(ctx context.Context, q Query) (*Result, error)
	IndexTool(ctx context.Context, tool models.Tool) error
	IndexBlog(ctx context.Context, blog models.Blog) error
	DeleteTool(ctx context.Context, id string) error
	DeleteBlog(ctx context.Context, id string) error
}

// Client wraps the Elasticsearch client
type Client struct {
	es *elasticsearch.Client
}

// NewClient creates an Elasticsearch client whose requests are traced
func NewClient(url string, transport http.RoundTripper) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Transport: telemetry.HTTPTransport(transport),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// Ping verifies the cluster is reachable
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("info", res.Status(), res.Body)
	}
	return nil
}

// InitializeIndices creates the tools and blogs indices when missing
func (c *Client) InitializeIndices(ctx context.Context) error {
	if err := c.createIndex(ctx, IndexTools, toolsMapping()); err != nil {
		return fmt.Errorf("failed to create tools index: %w", err)
	}
	if err := c.createIndex(ctx, IndexBlogs, blogsMapping()); err != nil {
		return fmt.Errorf("failed to create blogs index: %w", err)
	}
	return nil
}

func toolsMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":          map[string]interface{}{"type": "keyword"},
				"name":        map[string]interface{}{"type": "text", "fields": map[string]interface{}{"keyword": map[string]interface{}{"type": "keyword"}}},
				"slug":        map[string]interface{}{"type": "keyword"},
				"tagline":     map[string]interface{}{"type": "text"},
				"description": map[string]interface{}{"type": "text"},
				"category":    map[string]interface{}{"type": "keyword"},
				"tags":        map[string]interface{}{"type": "keyword"},
				"pricing":     map[string]interface{}{"type": "keyword"},
				"total_votes": map[string]interface{}{"type": "integer"},
				"created_at":  map[string]interface{}{"type": "date"},
			},
		},
	}
}

func blogsMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":            map[string]interface{}{"type": "keyword"},
				"title":         map[string]interface{}{"type": "text"},
				"slug":          map[string]interface{}{"type": "keyword"},
				"excerpt":       map[string]interface{}{"type": "text"},
				"content":       map[string]interface{}{"type": "text"},
				"tags":          map[string]interface{}{"type": "keyword"},
				"quality_score": map[string]interface{}{"type": "float"},
				"published_at":  map[string]interface{}{"type": "date"},
			},
		},
	}
}

func (c *Client) createIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	res, err := c.es.Indices.Exists([]string{indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(indexName,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("creating index", res.Status(), res.Body)
	}
	return nil
}

// IndexTool implements Searcher
func (c *Client) IndexTool(ctx context.Context, tool models.Tool) error {
	err := c.index(ctx, IndexTools, tool.ID, ToolToSearchDoc(tool))
	metrics.Get().SearchIndexTotal.WithLabelValues(IndexTools, "index", metrics.Result(err)).Inc()
	return err
}

// IndexBlog implements Searcher
func (c *Client) IndexBlog(ctx context.Context, blog models.Blog) error {
	err := c.index(ctx, IndexBlogs, blog.ID, BlogToSearchDoc(blog))
	metrics.Get().SearchIndexTotal.WithLabelValues(IndexBlogs, "index", metrics.Result(err)).Inc()
	return err
}

// DeleteTool implements Searcher
func (c *Client) DeleteTool(ctx context.Context, id string) error {
	err := c.delete(ctx, IndexTools, id)
	metrics.Get().SearchIndexTotal.WithLabelValues(IndexTools, "delete", metrics.Result(err)).Inc()
	return err
}

// DeleteBlog implements Searcher
func (c *Client) DeleteBlog(ctx context.Context, id string) error {
	err := c.delete(ctx, IndexBlogs, id)
	metrics.Get().SearchIndexTotal.WithLabelValues(IndexBlogs, "delete", metrics.Result(err)).Inc()
	return err
}

func (c *Client) index(ctx context.Context, indexName, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", indexName, err)
	}

	res, err := c.es.Index(indexName, bytes.NewReader(body),
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index %s document: %w", indexName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("indexing "+indexName, res.Status(), res.Body)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, indexName, id string) error {
	res, err := c.es.Delete(indexName, id, c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete %s document: %w", indexName, err)
	}
	defer res.Body.Close()

	// 404 is OK - document doesn't exist
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("deleting from "+indexName, res.Status(), res.Body)
	}
	return nil
}

// Search implements Searcher with a multi_match over both indices
func (c *Client) Search(ctx context.Context, q Query) (_ *Result, err error) {
	defer observeQuery("elasticsearch", time.Now(), &err)
	q = q.Normalize()

	indices := []string{IndexTools, IndexBlogs}
	switch q.Kind {
	case KindTool:
		indices = []string{IndexTools}
	case KindBlog:
		indices = []string{IndexBlogs}
	}

	query := map[string]interface{}{
		"from": q.Offset,
		"size": q.Limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q.Text,
				"fields":    []string{"name^3", "title^3", "tagline^2", "excerpt^2", "tags^2", "description", "content"},
				"fuzziness": "AUTO",
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(indices...),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("searching", res.Status(), res.Body)
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Index  string          `json:"_index"`
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &Result{Hits: make([]Hit, 0, len(searchResp.Hits.Hits)), Total: searchResp.Hits.Total.Value}
	for _, h := range searchResp.Hits.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if strings.HasPrefix(h.Index, IndexBlogs) {
			var doc BlogSearchDoc
			if err := json.Unmarshal(h.Source, &doc); err != nil {
				continue
			}
			hit.Kind, hit.Title, hit.Slug, hit.Summary = KindBlog, doc.Title, doc.Slug, doc.Excerpt
		} else {
			var doc ToolSearchDoc
			if err := json.Unmarshal(h.Source, &doc); err != nil {
				continue
			}
			hit.Kind, hit.Title, hit.Slug, hit.Summary = KindTool, doc.Name, doc.Slug, doc.Tagline
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

func responseError(action, status string, body io.Reader) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return fmt.Errorf("error response [%s]", status)
	}
	return fmt.Errorf("error %s: [%s] %v", action, status, errResp["error"])
}

var _ Searcher = (*Client)(nil)
