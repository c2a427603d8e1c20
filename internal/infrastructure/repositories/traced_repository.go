package repositories

import (
	"context"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"
	"livegrid/pkg/tracing"
)

// tracedResultRepository wraps a store with one span per call.
type tracedResultRepository struct {
	next    ports.ResultRepository
	backend string
}

func (r *tracedResultRepository) Insert(ctx context.Context, record *domain.TestResultRecord) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "insert", r.backend)
	defer span.End()

	err := r.next.Insert(ctx, record)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

func (r *tracedResultRepository) GetByID(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error) {
	ctx, span := tracing.TraceStoreOperation(ctx, "get", r.backend)
	defer span.End()

	rec, err := r.next.GetByID(ctx, id)
	if err != nil && err != domain.ErrResultNotFound {
		tracing.RecordError(ctx, err)
	}
	return rec, err
}

func (r *tracedResultRepository) List(ctx context.Context, limit int) ([]*domain.TestResultRecord, error) {
	ctx, span := tracing.TraceStoreOperation(ctx, "list", r.backend)
	defer span.End()

	recs, err := r.next.List(ctx, limit)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return recs, err
}
