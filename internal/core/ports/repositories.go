package ports

import (
	"context"

	"livegrid/internal/core/domain"
)

// ResultRepository persists self-test outcomes. Insert is append-only.
type ResultRepository interface {
	Insert(ctx context.Context, record *domain.TestResultRecord) error
	GetByID(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error)
	List(ctx context.Context, limit int) ([]*domain.TestResultRecord, error)
}
