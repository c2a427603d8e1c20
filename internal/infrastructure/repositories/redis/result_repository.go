package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	resultKeyPrefix = "livegrid:result:"
	resultIndexKey  = "livegrid:results:by_time"
)

// RedisResultRepository stores each record as JSON under its own key and
// indexes ids in a sorted set scored by creation time in milliseconds.
type RedisResultRepository struct {
	client *redis.Client
}

func NewRedisResultRepository(client *redis.Client) ports.ResultRepository {
	return &RedisResultRepository{client: client}
}

func (r *RedisResultRepository) resultKey(id domain.RecordID) string {
	return resultKeyPrefix + string(id)
}

func (r *RedisResultRepository) Insert(ctx context.Context, record *domain.TestResultRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.resultKey(record.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store result in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("result already exists: %s", record.ID)
	}

	score := float64(record.CreatedAt.UnixMilli())
	if err := r.client.ZAdd(ctx, resultIndexKey, redis.Z{Score: score, Member: string(record.ID)}).Err(); err != nil {
		return fmt.Errorf("failed to index result: %w", err)
	}
	return nil
}

func (r *RedisResultRepository) GetByID(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error) {
	data, err := r.client.Get(ctx, r.resultKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result from Redis: %w", err)
	}

	var record domain.TestResultRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &record, nil
}

func (r *RedisResultRepository) List(ctx context.Context, limit int) ([]*domain.TestResultRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.client.ZRevRange(ctx, resultIndexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list result ids: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.TestResultRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.resultKey(domain.RecordID(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	results := make([]*domain.TestResultRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // index entry without a record
		}
		var record domain.TestResultRecord
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		results = append(results, &record)
	}
	return results, nil
}
