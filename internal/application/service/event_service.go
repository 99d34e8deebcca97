package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/sangkips/bursar-api/pkg/pagination"
)

// EventService exposes the domain event outbox to the notification collaborator
type EventService struct {
	*Core
}

// NewEventService creates a new event service
func NewEventService(core *Core) *EventService {
	return &EventService{Core: core}
}

// ListPending returns the caller tenant's undelivered events, oldest first
func (s *EventService) ListPending(ctx context.Context, params *pagination.CursorParams) (*pagination.CursorPaginatedResult[entity.DomainEvent], error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	if params == nil {
		params = &pagination.CursorParams{}
	}
	params.Validate()
	if _, err := params.DecodeCursor(); err != nil {
		return nil, apperror.NewBadRequestError(err.Error())
	}

	events, err := s.Repos.Events.ListPending(ctx, params)
	if err != nil {
		return nil, err
	}
	return pagination.NewCursorPaginatedResult(events, params.Limit, func(e entity.DomainEvent) (string, time.Time) {
		return e.ID.String(), e.CreatedAt
	}), nil
}

// Ack marks delivered events as published and returns how many changed.
// Acknowledging an event twice is harmless.
func (s *EventService) Ack(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if _, err := actorFrom(ctx); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, apperror.NewFieldError("ids", "at least one event id is required")
	}
	return s.Repos.Events.MarkPublished(ctx, ids, s.Clock.Now())
}
