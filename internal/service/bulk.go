package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog-search/internal/domain"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/validator"
)

// ErrPartialBatch reports that the index persisted only part of a batch.
var ErrPartialBatch = errors.New("batch partially persisted")

// PartialBatchError carries the counts of a partially persisted batch. It
// matches both ErrPartialBatch and apperrors.ErrPartialFailure. Err is the
// index error that cut the batch short, if any.
type PartialBatchError struct {
	Requested int
	Persisted int
	Err       error
}

func (e *PartialBatchError) Error() string {
	msg := fmt.Sprintf("%s: %d of %d items persisted", ErrPartialBatch, e.Persisted, e.Requested)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartialBatchError) Unwrap() error {
	return e.Err
}

func (e *PartialBatchError) Is(target error) bool {
	return target == ErrPartialBatch || target == apperrors.ErrPartialFailure
}

type createBatch struct {
	Items []CreateItemInput `json:"items" validate:"dive"`
}

// CreateMany validates every input and then stores the batch in one call.
// An invalid input rejects the whole batch before anything is written. When
// the index persists fewer items than were sent, the persisted items are
// returned in input order together with a *PartialBatchError. That includes
// an index error arriving after some items were already written.
func (s *CatalogService) CreateMany(ctx context.Context, inputs []CreateItemInput) ([]domain.Item, error) {
	if err := validator.Validate(&createBatch{Items: inputs}); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return []domain.Item{}, nil
	}

	now := s.now()
	batch := make([]domain.Item, 0, len(inputs))
	for i := range inputs {
		item := inputs[i].toItem()
		item.CreatedAt = now
		item.UpdatedAt = now
		batch = append(batch, item)
	}

	saved, err := s.index.SaveAll(ctx, batch)
	if err != nil && len(saved) == 0 {
		return nil, fmt.Errorf("create items: %w", err)
	}

	for i := range saved {
		s.publishCreated(ctx, &saved[i])
	}

	if err != nil || len(saved) < len(batch) {
		attrs := []any{
			slog.Int("requested", len(batch)),
			slog.Int("persisted", len(saved)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		s.logger.WarnContext(ctx, "bulk create partially persisted", attrs...)
		return saved, &PartialBatchError{Requested: len(batch), Persisted: len(saved), Err: err}
	}

	s.logger.InfoContext(ctx, "items created", slog.Int("count", len(saved)))
	return saved, nil
}
