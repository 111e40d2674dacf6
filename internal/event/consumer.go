package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog-search/internal/service"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
)

// Kafka topics for item changes pushed by upstream systems.
var (
	TopicItemUpserted = pkgkafka.Topic(AggregateTypeItem, "upserted")
	TopicItemRemoved  = pkgkafka.Topic(AggregateTypeItem, "removed")
)

// IngestTopics lists the topics the ingest consumer subscribes to.
func IngestTopics() []string {
	return []string{TopicItemUpserted, TopicItemRemoved}
}

// ItemUpsertedData is the payload of an item.upserted event. ID is optional;
// an unknown or empty ID creates a new item.
type ItemUpsertedData struct {
	ID string `json:"id,omitempty"`
	service.CreateItemInput
}

// ItemRemovedData is the payload of an item.removed event.
type ItemRemovedData struct {
	ID string `json:"id"`
}

// Consumer applies upstream item changes to the catalog.
type Consumer struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewConsumer creates an ingest consumer.
func NewConsumer(catalog *service.CatalogService, logger *slog.Logger) *Consumer {
	return &Consumer{
		catalog: catalog,
		logger:  logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicItemUpserted:
		return c.handleUpserted(ctx, event)
	case TopicItemRemoved:
		return c.handleRemoved(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) handleUpserted(ctx context.Context, event *pkgkafka.Event) error {
	var data ItemUpsertedData
	if err := event.UnmarshalData(&data); err != nil {
		return pkgkafka.Permanent(err)
	}

	if data.ID != "" {
		input := service.UpdateItemInput(data.CreateItemInput)
		item, found, err := c.catalog.Update(ctx, data.ID, &input)
		if err != nil {
			return rejectInvalid(fmt.Errorf("apply item.upserted %s: %w", data.ID, err))
		}
		if found {
			c.logger.InfoContext(ctx, "upstream item updated", slog.String("item_id", item.ID))
			return nil
		}
	}

	item, err := c.catalog.Create(ctx, &data.CreateItemInput)
	if err != nil {
		return rejectInvalid(fmt.Errorf("apply item.upserted: %w", err))
	}
	c.logger.InfoContext(ctx, "upstream item created",
		slog.String("item_id", item.ID),
		slog.String("upstream_id", data.ID),
	)
	return nil
}

func (c *Consumer) handleRemoved(ctx context.Context, event *pkgkafka.Event) error {
	var data ItemRemovedData
	if err := event.UnmarshalData(&data); err != nil {
		return pkgkafka.Permanent(err)
	}

	removed, err := c.catalog.Delete(ctx, data.ID)
	if err != nil {
		return fmt.Errorf("apply item.removed %s: %w", data.ID, err)
	}
	c.logger.InfoContext(ctx, "upstream item removed",
		slog.String("item_id", data.ID),
		slog.Bool("existed", removed),
	)
	return nil
}

// rejectInvalid marks validation failures as permanent so the message goes
// to the dead-letter topic without being retried.
func rejectInvalid(err error) error {
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return pkgkafka.Permanent(err)
	}
	return err
}
