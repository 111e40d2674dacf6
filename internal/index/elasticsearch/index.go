// Package elasticsearch implements the DocumentIndex on Elasticsearch 8.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
)

const listBatchSize = 500

// Config selects the cluster, index and write refresh policy.
type Config struct {
	URL        string
	IndexName  string
	Refresh    string // "true", "false" or "wait_for"
	MaxResults int
}

func (c Config) withDefaults() Config {
	if c.IndexName == "" {
		c.IndexName = DefaultIndexName
	}
	if c.Refresh == "" {
		c.Refresh = "wait_for"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 10000
	}
	return c
}

// Index is an Elasticsearch-backed DocumentIndex.
type Index struct {
	client   *elasticsearch.Client
	cfg      Config
	pageSize int
	newID    func() string
	logger   *slog.Logger
}

type hit struct {
	ID     string      `json:"_id"`
	Score  *float64    `json:"_score"`
	Source domain.Item `json:"_source"`
	Sort   []any       `json:"sort"`
}

// esSearchResponse is used to decode search responses.
type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []hit    `json:"hits"`
	} `json:"hits"`
}

type esGetResponse struct {
	ID     string      `json:"_id"`
	Found  bool        `json:"found"`
	Source domain.Item `json:"_source"`
}

// esBulkResponse is used to decode bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// esErrorResponse is used to decode error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New connects to the cluster at cfg.URL and ensures the index exists.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	x := NewWithClient(client, cfg, logger)
	if err := x.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}
	return x, nil
}

// NewWithClient wraps an existing client without touching the cluster.
func NewWithClient(client *elasticsearch.Client, cfg Config, logger *slog.Logger) *Index {
	return &Index{
		client:   client,
		cfg:      cfg.withDefaults(),
		pageSize: listBatchSize,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// responseError turns a failed response into an error naming op.
func responseError(op string, res *esapi.Response) error {
	var errResp esErrorResponse
	if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
		return fmt.Errorf("elasticsearch %s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("elasticsearch %s: unexpected status %s", op, res.Status())
}

func closeBody(res *esapi.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}

// Ping checks whether the cluster is reachable.
func (x *Index) Ping(ctx context.Context) error {
	res, err := x.client.Ping(x.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// ensureIndex creates the items index with its mapping when it is missing.
func (x *Index) ensureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.cfg.IndexName}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	closeBody(res)

	if res.StatusCode == http.StatusOK {
		x.logger.Info("elasticsearch index already exists", slog.String("index", x.cfg.IndexName))
		return nil
	}

	res, err = x.client.Indices.Create(
		x.cfg.IndexName,
		x.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
		x.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("create index", res)
	}

	x.logger.Info("elasticsearch index created", slog.String("index", x.cfg.IndexName))
	return nil
}

func (x *Index) Put(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	doc := item.Clone()
	if doc.ID == "" {
		doc.ID = x.newID()
	}
	doc.NormalizeTags()

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch put: marshal item: %w", err)
	}

	res, err := x.client.Index(
		x.cfg.IndexName,
		bytes.NewReader(data),
		x.client.Index.WithDocumentID(doc.ID),
		x.client.Index.WithRefresh(x.cfg.Refresh),
		x.client.Index.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch put: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError("put", res)
	}

	x.logger.DebugContext(ctx, "indexed item", slog.String("id", doc.ID))
	return &doc, nil
}

func (x *Index) Get(ctx context.Context, id string) (*domain.Item, bool, error) {
	res, err := x.client.Get(x.cfg.IndexName, id, x.client.Get.WithContext(ctx))
	if err != nil {
		return nil, false, fmt.Errorf("elasticsearch get: %w", err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if res.IsError() {
		return nil, false, responseError("get", res)
	}

	var doc esGetResponse
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("elasticsearch get: decode response: %w", err)
	}
	if !doc.Found {
		return nil, false, nil
	}
	item := toItem(doc.ID, doc.Source)
	return &item, true, nil
}

func (x *Index) Exists(ctx context.Context, id string) (bool, error) {
	res, err := x.client.Exists(x.cfg.IndexName, id, x.client.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("elasticsearch exists: %w", err)
	}
	defer closeBody(res)

	switch {
	case res.StatusCode == http.StatusOK:
		return true, nil
	case res.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("elasticsearch exists: unexpected status %s", res.Status())
	}
}

// Delete removes a document. A 404 is not an error.
func (x *Index) Delete(ctx context.Context, id string) error {
	res, err := x.client.Delete(
		x.cfg.IndexName,
		id,
		x.client.Delete.WithRefresh(x.cfg.Refresh),
		x.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}

	x.logger.DebugContext(ctx, "deleted item", slog.String("id", id))
	return nil
}

// ListAll pages through the whole index with search_after on the id field.
func (x *Index) ListAll(ctx context.Context) ([]domain.Item, error) {
	return x.scan(ctx, "list all", map[string]any{"match_all": map[string]any{}})
}

// scan collects every document matching query, one id-ordered page at a
// time, so the result is never cut at the index's max_result_window.
func (x *Index) scan(ctx context.Context, op string, query map[string]any) ([]domain.Item, error) {
	items := make([]domain.Item, 0)
	var after []any

	for {
		body := map[string]any{
			"query": query,
			"sort":  []any{map[string]any{"id": "asc"}},
			"size":  x.pageSize,
		}
		if after != nil {
			body["search_after"] = after
		}

		resp, err := x.search(ctx, op, body)
		if err != nil {
			return nil, err
		}
		for _, h := range resp.Hits.Hits {
			items = append(items, toItem(h.ID, h.Source))
		}
		if len(resp.Hits.Hits) < x.pageSize {
			return items, nil
		}
		after = resp.Hits.Hits[len(resp.Hits.Hits)-1].Sort
	}
}

func (x *Index) ListPage(ctx context.Context, offset, limit int) ([]domain.Item, int, error) {
	body := map[string]any{
		"query":            map[string]any{"match_all": map[string]any{}},
		"sort":             []any{map[string]any{"id": "asc"}},
		"from":             offset,
		"size":             limit,
		"track_total_hits": true,
	}

	resp, err := x.search(ctx, "list page", body)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.Item, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		items = append(items, toItem(h.ID, h.Source))
	}
	return items, resp.Hits.Total.Value, nil
}

// SaveAll indexes the batch with the bulk NDJSON API and returns the items
// whose bulk action succeeded, in input order.
func (x *Index) SaveAll(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return []domain.Item{}, nil
	}

	docs := make([]domain.Item, len(items))
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for i := range items {
		docs[i] = items[i].Clone()
		if docs[i].ID == "" {
			docs[i].ID = x.newID()
		}
		docs[i].NormalizeTags()

		action := map[string]any{
			"index": map[string]any{"_index": x.cfg.IndexName, "_id": docs[i].ID},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(docs[i]); err != nil {
			return nil, fmt.Errorf("elasticsearch bulk: encode document: %w", err)
		}
	}

	res, err := x.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		x.client.Bulk.WithIndex(x.cfg.IndexName),
		x.client.Bulk.WithRefresh(x.cfg.Refresh),
		x.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError("bulk", res)
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return nil, fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}

	ok := make(map[string]bool, len(bulkResp.Items))
	for _, it := range bulkResp.Items {
		if it.Index.Status >= 200 && it.Index.Status < 300 {
			ok[it.Index.ID] = true
			continue
		}
		x.logger.WarnContext(ctx, "bulk item rejected",
			slog.String("id", it.Index.ID),
			slog.String("type", it.Index.Error.Type),
			slog.String("reason", it.Index.Error.Reason),
		)
	}

	saved := make([]domain.Item, 0, len(docs))
	for _, d := range docs {
		if ok[d.ID] {
			saved = append(saved, d)
		}
	}

	x.logger.InfoContext(ctx, "bulk indexed items",
		slog.Int("requested", len(docs)),
		slog.Int("saved", len(saved)),
	)
	return saved, nil
}

// Search runs a scored query. Hits come back by score descending with the
// id as a tie-breaker.
func (x *Index) Search(ctx context.Context, query criteria.Node) (*domain.SearchHits, error) {
	body := map[string]any{
		"query": renderQuery(query),
		"sort": []any{
			map[string]any{"_score": "desc"},
			map[string]any{"id": "asc"},
		},
		"size":             x.cfg.MaxResults,
		"track_total_hits": true,
	}

	resp, err := x.search(ctx, "search", body)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.ScoredItem, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var score float64
		if h.Score != nil {
			score = *h.Score
		}
		hits = append(hits, domain.ScoredItem{Item: toItem(h.ID, h.Source), Score: score})
	}

	out := domain.NewSearchHits(hits)
	out.Total = resp.Hits.Total.Value
	if resp.Hits.MaxScore != nil {
		out.MaxScore = *resp.Hits.MaxScore
	}
	return out, nil
}

// Find runs the query in filter context and returns every match, ordered
// by id.
func (x *Index) Find(ctx context.Context, query criteria.Node) ([]domain.Item, error) {
	return x.scan(ctx, "find", map[string]any{
		"bool": map[string]any{"filter": []any{renderQuery(query)}},
	})
}

func (x *Index) search(ctx context.Context, op string, body map[string]any) (*esSearchResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}

	res, err := x.client.Search(
		x.client.Search.WithIndex(x.cfg.IndexName),
		x.client.Search.WithBody(bytes.NewReader(data)),
		x.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch %s: %w", op, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError(op, res)
	}

	var resp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("elasticsearch %s: decode response: %w", op, err)
	}
	return &resp, nil
}

// DeleteIndex drops the whole index. A missing index is not an error.
func (x *Index) DeleteIndex(ctx context.Context) error {
	res, err := x.client.Indices.Delete(
		[]string{x.cfg.IndexName},
		x.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete index: %w", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res)
	}
	x.logger.Info("elasticsearch index deleted", slog.String("index", x.cfg.IndexName))
	return nil
}

func toItem(id string, src domain.Item) domain.Item {
	if src.ID == "" {
		src.ID = id
	}
	src.NormalizeTags()
	return src
}
