package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/criteria"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/index"
	"github.com/utafrali/catalog-search/pkg/validator"
)

// ItemPublisher announces item mutations to other services.
type ItemPublisher interface {
	PublishItemCreated(ctx context.Context, item *domain.Item) error
	PublishItemUpdated(ctx context.Context, item *domain.Item) error
	PublishItemDeleted(ctx context.Context, id string) error
}

// CatalogService implements the catalog operations on top of a document index.
type CatalogService struct {
	index     index.DocumentIndex
	publisher ItemPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCatalogService creates a catalog service. publisher may be nil, in which
// case no events are sent.
func NewCatalogService(idx index.DocumentIndex, publisher ItemPublisher, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		index:     idx,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateItemInput holds the client-supplied fields of an item.
type CreateItemInput struct {
	Name        string          `json:"name" validate:"required,notblank,min=2,max=100"`
	Description string          `json:"description" validate:"required,notblank,min=10,max=1000"`
	Category    string          `json:"category" validate:"required,notblank,min=2,max=50"`
	Price       decimal.Decimal `json:"price" validate:"dgte=0.01,dlte=999999.99,dscale=2"`
	Stock       int             `json:"stock" validate:"gte=0,lte=999999"`
	Tags        []string        `json:"tags" validate:"dive,min=1,max=20"`
	IsActive    *bool           `json:"is_active"`
}

// UpdateItemInput replaces every mutable field of an item. Omitted fields
// take their request defaults rather than the stored values.
type UpdateItemInput CreateItemInput

func (in *CreateItemInput) toItem() domain.Item {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	item := domain.Item{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		Tags:        append([]string(nil), in.Tags...),
		IsActive:    active,
	}
	item.NormalizeTags()
	return item
}

// Create validates input and stores a new item.
func (s *CatalogService) Create(ctx context.Context, input *CreateItemInput) (*domain.Item, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	item := input.toItem()
	now := s.now()
	item.CreatedAt = now
	item.UpdatedAt = now

	stored, err := s.index.Put(ctx, &item)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.publishCreated(ctx, stored)
	s.logger.InfoContext(ctx, "item created",
		slog.String("item_id", stored.ID),
		slog.String("category", stored.Category),
	)
	return stored, nil
}

// Get returns the item with the given id. found is false when it is absent.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Item, bool, error) {
	item, found, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("get item: %w", err)
	}
	return item, found, nil
}

// ListAll returns every item in the index's natural order.
func (s *CatalogService) ListAll(ctx context.Context) ([]domain.Item, error) {
	items, err := s.index.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ListPage returns one page of items and the total item count. page is
// 1-based.
func (s *CatalogService) ListPage(ctx context.Context, page, perPage int) ([]domain.Item, int, error) {
	offset := (page - 1) * perPage
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.index.ListPage(ctx, offset, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list items page: %w", err)
	}
	return items, total, nil
}

// Update replaces every mutable field of an existing item. found is false,
// and the index untouched, when no item has the id.
func (s *CatalogService) Update(ctx context.Context, id string, input *UpdateItemInput) (*domain.Item, bool, error) {
	if err := validator.Validate(input); err != nil {
		return nil, false, err
	}

	existing, found, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("get item for update: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	item := (*CreateItemInput)(input).toItem()
	item.ID = existing.ID
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.now()

	stored, err := s.index.Put(ctx, &item)
	if err != nil {
		return nil, false, fmt.Errorf("update item: %w", err)
	}

	s.publishUpdated(ctx, stored)

	s.logger.InfoContext(ctx, "item updated", slog.String("item_id", stored.ID))
	return stored, true, nil
}

// Delete removes the item with the given id and reports whether one existed.
func (s *CatalogService) Delete(ctx context.Context, id string) (bool, error) {
	exists, err := s.index.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check item exists: %w", err)
	}
	if !exists {
		return false, nil
	}

	if err := s.index.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}

	s.publishDeleted(ctx, id)

	s.logger.InfoContext(ctx, "item deleted", slog.String("item_id", id))
	return true, nil
}

// SearchByText returns items whose name or description contains text.
func (s *CatalogService) SearchByText(ctx context.Context, text string) ([]domain.Item, error) {
	return s.find(ctx, "search by text", criteria.TextQuery(text))
}

// SearchByName returns items whose name contains name.
func (s *CatalogService) SearchByName(ctx context.Context, name string) ([]domain.Item, error) {
	return s.find(ctx, "search by name", criteria.Contains(criteria.FieldName, name))
}

// SearchByCategory returns items in exactly the given category.
func (s *CatalogService) SearchByCategory(ctx context.Context, category string) ([]domain.Item, error) {
	return s.find(ctx, "search by category", criteria.Equals(criteria.FieldCategory, category))
}

// SearchByPriceRange returns items priced within [lo, hi]. A lower bound
// above the upper bound is passed through and matches nothing.
func (s *CatalogService) SearchByPriceRange(ctx context.Context, lo, hi decimal.Decimal) ([]domain.Item, error) {
	return s.find(ctx, "search by price range", criteria.Range(criteria.FieldPrice, &lo, &hi))
}

// SearchByTag returns items carrying tag.
func (s *CatalogService) SearchByTag(ctx context.Context, tag string) ([]domain.Item, error) {
	return s.find(ctx, "search by tag", criteria.Equals(criteria.FieldTags, tag))
}

// ListActive returns every active item.
func (s *CatalogService) ListActive(ctx context.Context) ([]domain.Item, error) {
	return s.find(ctx, "list active", criteria.Active())
}

// ListInStock returns active items with more than minStock units.
func (s *CatalogService) ListInStock(ctx context.Context, minStock int) ([]domain.Item, error) {
	lo := decimal.NewFromInt(int64(minStock) + 1)
	q := criteria.And(criteria.Active(), criteria.Range(criteria.FieldStock, &lo, nil))
	return s.find(ctx, "list in stock", q)
}

// AdvancedSearch combines the optional text, category and price filters of
// req with the active filter and returns scored hits.
func (s *CatalogService) AdvancedSearch(ctx context.Context, req domain.SearchRequest) (*domain.SearchHits, error) {
	return s.search(ctx, "advanced search", criteria.Build(req))
}

// FuzzySearch returns active items whose name approximately matches text.
func (s *CatalogService) FuzzySearch(ctx context.Context, text string) (*domain.SearchHits, error) {
	return s.search(ctx, "fuzzy search", criteria.FuzzyQuery(text))
}

func (s *CatalogService) find(ctx context.Context, op string, q criteria.Node) ([]domain.Item, error) {
	items, err := s.index.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.DebugContext(ctx, op,
		slog.String("query", q.String()),
		slog.Int("results", len(items)),
	)
	return items, nil
}

func (s *CatalogService) search(ctx context.Context, op string, q criteria.Node) (*domain.SearchHits, error) {
	hits, err := s.index.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.DebugContext(ctx, op,
		slog.String("query", q.String()),
		slog.Int("total", hits.Total),
		slog.Float64("max_score", hits.MaxScore),
	)
	return hits, nil
}

func (s *CatalogService) publishCreated(ctx context.Context, item *domain.Item) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishItemCreated(ctx, item); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish item.created event",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CatalogService) publishUpdated(ctx context.Context, item *domain.Item) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishItemUpdated(ctx, item); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish item.updated event",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CatalogService) publishDeleted(ctx context.Context, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishItemDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish item.deleted event",
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
	}
}
