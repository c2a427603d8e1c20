package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"
)

type MemoryResultRepository struct {
	records map[domain.RecordID]*domain.TestResultRecord
	order   []domain.RecordID // insertion order
	mu      sync.RWMutex
}

func NewMemoryResultRepository() ports.ResultRepository {
	return &MemoryResultRepository{
		records: make(map[domain.RecordID]*domain.TestResultRecord),
	}
}

func (r *MemoryResultRepository) Insert(ctx context.Context, record *domain.TestResultRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return fmt.Errorf("result already exists: %s", record.ID)
	}

	stored := *record
	r.records[record.ID] = &stored
	r.order = append(r.order, record.ID)
	return nil
}

func (r *MemoryResultRepository) GetByID(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, domain.ErrResultNotFound
	}

	out := *record
	return &out, nil
}

// List returns up to limit records, newest first. Records created at the
// same instant keep reverse insertion order.
func (r *MemoryResultRepository) List(ctx context.Context, limit int) ([]*domain.TestResultRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*domain.TestResultRecord, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		rec := *r.records[r.order[i]]
		results = append(results, &rec)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
