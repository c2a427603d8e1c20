package repositories

import (
	"context"
	"errors"
	"fmt"

	"livegrid/internal/core/ports"
	"livegrid/internal/infrastructure/repositories/memory"
	redisrepo "livegrid/internal/infrastructure/repositories/redis"
	sqlrepo "livegrid/internal/infrastructure/repositories/sql"
	"livegrid/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// ErrDegraded is reported by HealthCheck while results are kept in memory
// because the configured persistent store was unreachable.
var ErrDegraded = errors.New("result store degraded: results are not persisted")

// RepositoryFactory picks the result store from config. An unreachable
// Redis falls back to memory and marks the factory degraded; a sqlite open
// failure is fatal.
type RepositoryFactory struct {
	driver      string
	degraded    bool
	redisClient *redis.Client
	db          *gorm.DB
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		driver: cfg.Results.Driver,
		logger: logger,
	}

	switch cfg.Results.Driver {
	case DriverRedis:
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			cfg.Redis.ConnectAttempts,
			logger,
		)
		if err != nil {
			logger.Errorw("failed to connect to Redis, falling back to memory result store; results will not be persisted",
				"error", err,
			)
			factory.driver = DriverMemory
			factory.degraded = true
		} else {
			factory.redisClient = client
		}
	case DriverSQLite:
		db, err := sqlrepo.OpenSQLite(cfg.Results.DSN)
		if err != nil {
			return nil, err
		}
		factory.db = db
	case DriverMemory, "":
		factory.driver = DriverMemory
	default:
		return nil, fmt.Errorf("unknown results driver %q", cfg.Results.Driver)
	}

	logger.Infow("result store selected",
		"driver", factory.driver,
		"degraded", factory.degraded,
	)
	return factory, nil
}

// Driver reports the store actually in use after any fallback.
func (f *RepositoryFactory) Driver() string {
	return f.driver
}

// Degraded reports whether the configured store was replaced by memory.
func (f *RepositoryFactory) Degraded() bool {
	return f.degraded
}

// CreateResultRepository returns the selected store, traced.
func (f *RepositoryFactory) CreateResultRepository() ports.ResultRepository {
	var repo ports.ResultRepository
	switch {
	case f.redisClient != nil:
		repo = redisrepo.NewRedisResultRepository(f.redisClient)
	case f.db != nil:
		repo = sqlrepo.NewSQLResultRepository(f.db)
	default:
		repo = memory.NewMemoryResultRepository()
	}
	return &tracedResultRepository{next: repo, backend: f.driver}
}

func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	if f.db != nil {
		return sqlrepo.Close(f.db)
	}
	return nil
}

// HealthCheck pings the backing store. An explicitly chosen memory store is
// healthy; a fallback one reports ErrDegraded.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.degraded {
		return fmt.Errorf("%w: %s unreachable at startup", ErrDegraded, DriverRedis)
	}
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	if f.db != nil {
		return sqlrepo.Ping(ctx, f.db)
	}
	return nil
}
