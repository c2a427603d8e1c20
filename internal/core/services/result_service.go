package services

import (
	"context"
	"fmt"
	"time"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultResultListLimit = 50
	maxResultListLimit     = 500
)

type ResultService struct {
	repo   ports.ResultRepository
	logger *zap.SugaredLogger
	now    func() time.Time
}

var _ ports.ResultService = (*ResultService)(nil)

func NewResultService(repo ports.ResultRepository, logger *zap.SugaredLogger) *ResultService {
	return &ResultService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Record stores one self-test outcome under a fresh id. Client supplied ids
// and timestamps are ignored; every other field is stored as given.
func (s *ResultService) Record(ctx context.Context, record domain.TestResultRecord) (*domain.TestResultRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	record.ID = domain.RecordID(uuid.New().String())
	record.CreatedAt = s.now().UTC()

	if err := s.repo.Insert(ctx, &record); err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}

	s.logger.Infow("Self-test result recorded",
		"id", record.ID,
		"success", record.Success,
		"avg_bitrate", record.AvgBitrate,
		"sso_id", record.SSOID,
	)
	return &record, nil
}

func (s *ResultService) Get(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error) {
	if id == "" {
		return nil, domain.ErrResultNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit records, newest first. A non-positive limit
// selects the default page size.
func (s *ResultService) List(ctx context.Context, limit int) ([]*domain.TestResultRecord, error) {
	if limit <= 0 {
		limit = defaultResultListLimit
	}
	if limit > maxResultListLimit {
		limit = maxResultListLimit
	}
	return s.repo.List(ctx, limit)
}
