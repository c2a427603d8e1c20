// Package sql stores self-test results in a relational database through gorm.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type resultRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Success     bool
	AvgBitrate  int64
	SSOID       string    `gorm:"column:sso_id;index;size:512"`
	Browser     string    `gorm:"size:512"`
	OS          string    `gorm:"column:os;size:512"`
	Description string    `gorm:"size:512"`
	CreatedAt   time.Time `gorm:"index"`
}

func (resultRow) TableName() string { return "test_results" }

func toRow(r *domain.TestResultRecord) resultRow {
	return resultRow{
		ID:          string(r.ID),
		Success:     r.Success,
		AvgBitrate:  r.AvgBitrate,
		SSOID:       r.SSOID,
		Browser:     r.Browser,
		OS:          r.OS,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

func (row resultRow) toDomain() *domain.TestResultRecord {
	return &domain.TestResultRecord{
		ID:          domain.RecordID(row.ID),
		Success:     row.Success,
		AvgBitrate:  row.AvgBitrate,
		SSOID:       row.SSOID,
		Browser:     row.Browser,
		OS:          row.OS,
		Description: row.Description,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type SQLResultRepository struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the sqlite database at dsn and
// migrates the results table. ":memory:" gives a private in-memory db.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", dsn, err)
	}
	if err := db.AutoMigrate(&resultRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate results table: %w", err)
	}
	return db, nil
}

func NewSQLResultRepository(db *gorm.DB) ports.ResultRepository {
	return &SQLResultRepository{db: db}
}

func (r *SQLResultRepository) Insert(ctx context.Context, record *domain.TestResultRecord) error {
	row := toRow(record)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

func (r *SQLResultRepository) GetByID(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error) {
	var row resultRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SQLResultRepository) List(ctx context.Context, limit int) ([]*domain.TestResultRecord, error) {
	var rows []resultRow
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("rowid DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	results := make([]*domain.TestResultRecord, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toDomain())
	}
	return results, nil
}

// Ping checks the underlying connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
