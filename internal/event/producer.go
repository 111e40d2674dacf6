package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/domain"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
	"github.com/utafrali/catalog-search/pkg/logger"
)

// Aggregate type constant.
const AggregateTypeItem = "item"

// Source identifier for events originating from the catalog search service.
const SourceCatalogSearch = "catalog-search"

// Kafka topics for item events published by this service.
var (
	TopicItemCreated = pkgkafka.Topic(AggregateTypeItem, "created")
	TopicItemUpdated = pkgkafka.Topic(AggregateTypeItem, "updated")
	TopicItemDeleted = pkgkafka.Topic(AggregateTypeItem, "deleted")
)

// ItemData is the payload of item.created and item.updated events.
type ItemData struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Tags        []string        `json:"tags"`
	IsActive    bool            `json:"is_active"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ItemDeletedData is the payload of an item.deleted event.
type ItemDeletedData struct {
	ID string `json:"id"`
}

func itemData(item *domain.Item) ItemData {
	return ItemData{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price,
		Stock:       item.Stock,
		Tags:        item.Tags,
		IsActive:    item.IsActive,
		UpdatedAt:   item.UpdatedAt,
	}
}

// Producer publishes item events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an item event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishItemCreated publishes an item.created event.
func (p *Producer) PublishItemCreated(ctx context.Context, item *domain.Item) error {
	return p.publish(ctx, TopicItemCreated, item.ID, itemData(item))
}

// PublishItemUpdated publishes an item.updated event.
func (p *Producer) PublishItemUpdated(ctx context.Context, item *domain.Item) error {
	return p.publish(ctx, TopicItemUpdated, item.ID, itemData(item))
}

// PublishItemDeleted publishes an item.deleted event.
func (p *Producer) PublishItemDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicItemDeleted, id, ItemDeletedData{ID: id})
}

func (p *Producer) publish(ctx context.Context, topic, id string, data any) error {
	event, err := pkgkafka.NewEvent(topic, id, AggregateTypeItem, SourceCatalogSearch, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published item event",
		slog.String("topic", topic),
		slog.String("item_id", id),
	)
	return nil
}
