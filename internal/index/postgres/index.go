// Package postgres implements the DocumentIndex on PostgreSQL using ILIKE
// for substring matches and pg_trgm word similarity for fuzzy search.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/database"
)

const itemColumns = `id, name, description, category, price::text, stock, tags, is_active, created_at, updated_at`

const upsertItemSQL = `
		INSERT INTO catalog_items (id, name, description, category, price, stock, tags, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			tags = EXCLUDED.tags,
			is_active = EXCLUDED.is_active,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`

const findPageSize = 500

// Index is a PostgreSQL-backed DocumentIndex.
type Index struct {
	db         database.DBTX
	tracer     *database.QueryTracer
	maxResults int
	pageSize   int
	newID      func() string
	logger     *slog.Logger
}

// New creates an index over db. Statements are traced through tracer, which
// may be nil.
func New(db database.DBTX, tracer *database.QueryTracer, maxResults int, logger *slog.Logger) *Index {
	if maxResults <= 0 {
		maxResults = 10000
	}
	return &Index{
		db:         db,
		tracer:     tracer,
		maxResults: maxResults,
		pageSize:   findPageSize,
		newID:      uuid.NewString,
		logger:     logger,
	}
}

// Ping checks database connectivity.
func (x *Index) Ping(ctx context.Context) error {
	return x.db.Ping(ctx)
}

func (x *Index) Put(ctx context.Context, item *domain.Item) (_ *domain.Item, err error) {
	ctx, end := x.tracer.Trace(ctx, "PutItem", upsertItemSQL)
	defer func() { end(err) }()

	doc := item.Clone()
	if doc.ID == "" {
		doc.ID = x.newID()
	}
	if err := x.upsert(ctx, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (x *Index) upsert(ctx context.Context, doc *domain.Item) error {
	doc.NormalizeTags()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	_, err := x.db.Exec(ctx, upsertItemSQL,
		doc.ID,
		doc.Name,
		doc.Description,
		doc.Category,
		doc.Price.String(),
		doc.Stock,
		doc.Tags,
		doc.IsActive,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", doc.ID, err)
	}
	return nil
}

func (x *Index) Get(ctx context.Context, id string) (_ *domain.Item, _ bool, err error) {
	query := `SELECT ` + itemColumns + ` FROM catalog_items WHERE id = $1`
	ctx, end := x.tracer.Trace(ctx, "GetItem", query)
	defer func() { end(err) }()

	item, err := scanItem(x.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get item %s: %w", id, err)
	}
	return &item, true, nil
}

func (x *Index) Exists(ctx context.Context, id string) (_ bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM catalog_items WHERE id = $1)`
	ctx, end := x.tracer.Trace(ctx, "ItemExists", query)
	defer func() { end(err) }()

	var exists bool
	if err := x.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check item %s exists: %w", id, err)
	}
	return exists, nil
}

func (x *Index) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM catalog_items WHERE id = $1`
	ctx, end := x.tracer.Trace(ctx, "DeleteItem", query)
	defer func() { end(err) }()

	if _, err := x.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

func (x *Index) ListAll(ctx context.Context) (_ []domain.Item, err error) {
	query := `SELECT ` + itemColumns + ` FROM catalog_items ORDER BY created_at, id`
	ctx, end := x.tracer.Trace(ctx, "ListItems", query)
	defer func() { end(err) }()

	return x.queryItems(ctx, "list items", query)
}

func (x *Index) ListPage(ctx context.Context, offset, limit int) (_ []domain.Item, _ int, err error) {
	query := `SELECT ` + itemColumns + `, count(*) OVER() AS total_count
		FROM catalog_items
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`
	ctx, end := x.tracer.Trace(ctx, "ListItemsPage", query)
	defer func() { end(err) }()

	rows, err := x.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list items page: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, limit)
	total := 0
	for rows.Next() {
		var (
			item domain.Item
			cnt  int
		)
		if err := scanInto(rows, &item, &cnt); err != nil {
			return nil, 0, fmt.Errorf("scan item: %w", err)
		}
		total = cnt
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate items: %w", err)
	}

	// count(*) OVER() yields nothing past the last row.
	if len(items) == 0 && offset > 0 {
		if err := x.db.QueryRow(ctx, `SELECT count(*) FROM catalog_items`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count items: %w", err)
		}
	}
	return items, total, nil
}

// SaveAll upserts items one by one. Rows that fail are logged and left out
// of the result, so the returned slice holds what was persisted, in order.
func (x *Index) SaveAll(ctx context.Context, items []domain.Item) (_ []domain.Item, err error) {
	ctx, end := x.tracer.Trace(ctx, "SaveItems", upsertItemSQL)
	defer func() { end(err) }()

	saved := make([]domain.Item, 0, len(items))
	for i := range items {
		if err := ctx.Err(); err != nil {
			return saved, fmt.Errorf("save items: %w", err)
		}
		doc := items[i].Clone()
		if doc.ID == "" {
			doc.ID = x.newID()
		}
		if err := x.upsert(ctx, &doc); err != nil {
			x.logger.WarnContext(ctx, "bulk item rejected",
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		saved = append(saved, doc)
	}
	return saved, nil
}

// Search runs a scored query ordered by relevance and then by id.
func (x *Index) Search(ctx context.Context, q criteria.Node) (_ *domain.SearchHits, err error) {
	b := &sqlBuilder{}
	score := b.score(q)
	where := b.where(q)
	query := fmt.Sprintf(`SELECT %s, (%s)::float8 AS score, count(*) OVER() AS total_count
		FROM catalog_items
		WHERE %s
		ORDER BY score DESC, id
		LIMIT %d`, itemColumns, score, where, x.maxResults)

	ctx, end := x.tracer.Trace(ctx, "SearchItems", query)
	defer func() { end(err) }()

	rows, err := x.db.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()

	hits := make([]domain.ScoredItem, 0)
	total := 0
	for rows.Next() {
		var h domain.ScoredItem
		if err := scanInto(rows, &h.Item, &h.Score, &total); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	out := domain.NewSearchHits(hits)
	out.Total = total
	return out, nil
}

// Find returns every match in creation order. Rows are read in keyset pages
// on (created_at, id) so a large result never needs one unbounded query.
func (x *Index) Find(ctx context.Context, q criteria.Node) (_ []domain.Item, err error) {
	b := &sqlBuilder{}
	where := b.where(q)
	n := len(b.args)
	first := fmt.Sprintf(`SELECT %s FROM catalog_items WHERE %s ORDER BY created_at, id LIMIT %d`,
		itemColumns, where, x.pageSize)
	next := fmt.Sprintf(`SELECT %s FROM catalog_items WHERE (%s) AND (created_at, id) > ($%d, $%d) ORDER BY created_at, id LIMIT %d`,
		itemColumns, where, n+1, n+2, x.pageSize)

	ctx, end := x.tracer.Trace(ctx, "FindItems", first)
	defer func() { end(err) }()

	items := make([]domain.Item, 0)
	page, err := x.queryItems(ctx, "find items", first, b.args...)
	for {
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if len(page) < x.pageSize {
			return items, nil
		}
		last := page[len(page)-1]
		args := append(b.args[:n:n], last.CreatedAt, last.ID)
		page, err = x.queryItems(ctx, "find items", next, args...)
	}
}

func (x *Index) queryItems(ctx context.Context, op, query string, args ...any) ([]domain.Item, error) {
	rows, err := x.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		var item domain.Item
		if err := scanInto(rows, &item); err != nil {
			return nil, fmt.Errorf("%s: scan item: %w", op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate items: %w", op, err)
	}
	return items, nil
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var item domain.Item
	err := scanInto(row, &item)
	return item, err
}

// scanInto reads the item columns followed by any extra destinations.
func scanInto(row pgx.Row, item *domain.Item, extra ...any) error {
	var price string
	dest := []any{
		&item.ID,
		&item.Name,
		&item.Description,
		&item.Category,
		&price,
		&item.Stock,
		&item.Tags,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return fmt.Errorf("parse price %q: %w", price, err)
	}
	item.Price = d
	item.NormalizeTags()
	return nil
}
