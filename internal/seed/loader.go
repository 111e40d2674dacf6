package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/httpclient"
)

const serviceName = "catalog-search"

// Result summarizes a load.
type Result struct {
	Batches   int
	Requested int
	Persisted int
}

// Loader posts items to the bulk create endpoint in fixed-size batches.
type Loader struct {
	client    *httpclient.Client
	bulkURL   string
	batchSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewLoader creates a loader against the service at baseURL.
func NewLoader(client *httpclient.Client, baseURL string, batchSize int, logger *slog.Logger) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Loader{
		client:    client,
		bulkURL:   strings.TrimRight(baseURL, "/") + "/api/v1/items/bulk",
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		logger:    logger,
	}
}

// WithRate limits the loader to perSecond batches. Zero or less means no limit.
func (l *Loader) WithRate(perSecond float64) *Loader {
	if perSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return l
}

type bulkRequest struct {
	Items []service.CreateItemInput `json:"items"`
}

type bulkResponse struct {
	Data struct {
		Requested int `json:"requested"`
		Persisted int `json:"persisted"`
	} `json:"data"`
}

// Load sends items batch by batch and stops at the first rejected batch.
// Partially persisted batches are counted and logged, not treated as errors.
func (l *Loader) Load(ctx context.Context, items []service.CreateItemInput) (Result, error) {
	var res Result

	for start := 0; start < len(items); start += l.batchSize {
		end := min(start+l.batchSize, len(items))
		batch := items[start:end]

		if err := l.limiter.Wait(ctx); err != nil {
			return res, err
		}

		persisted, err := l.send(ctx, batch)
		if err != nil {
			return res, fmt.Errorf("batch %d (items %d-%d): %w", res.Batches+1, start, end-1, err)
		}

		res.Batches++
		res.Requested += len(batch)
		res.Persisted += persisted

		if persisted < len(batch) {
			l.logger.Warn("batch partially persisted",
				slog.Int("batch", res.Batches),
				slog.Int("requested", len(batch)),
				slog.Int("persisted", persisted),
			)
		} else {
			l.logger.Debug("batch persisted", slog.Int("batch", res.Batches), slog.Int("items", persisted))
		}
	}

	return res, nil
}

func (l *Loader) send(ctx context.Context, batch []service.CreateItemInput) (int, error) {
	resp, err := l.client.PostJSON(ctx, l.bulkURL, bulkRequest{Items: batch})
	if err != nil {
		return 0, err
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusMultiStatus:
	default:
		return 0, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var body bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}
	return body.Data.Persisted, nil
}
