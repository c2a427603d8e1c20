package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"livegrid/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResultRepository_RoundTrip(t *testing.T) {
	repo := NewMemoryResultRepository()
	ctx := context.Background()

	rec := &domain.TestResultRecord{
		ID:          "r1",
		Success:     true,
		AvgBitrate:  950,
		SSOID:       "u1",
		Browser:     "Firefox",
		OS:          "macOS",
		Description: "ok",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, rec))

	got, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// Stored copies are not aliased.
	got.Browser = "changed"
	again, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Firefox", again.Browser)
}

func TestMemoryResultRepository_DuplicateAndMissing(t *testing.T) {
	repo := NewMemoryResultRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.TestResultRecord{ID: "r1"}))
	assert.Error(t, repo.Insert(ctx, &domain.TestResultRecord{ID: "r1"}))

	_, err := repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)
}

func TestMemoryResultRepository_ListNewestFirst(t *testing.T) {
	repo := NewMemoryResultRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &domain.TestResultRecord{
			ID:        domain.RecordID(fmt.Sprintf("r%d", i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, domain.RecordID("r4"), all[0].ID)
	assert.Equal(t, domain.RecordID("r0"), all[4].ID)

	page, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, domain.RecordID("r4"), page[0].ID)
	assert.Equal(t, domain.RecordID("r3"), page[1].ID)
}
