package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"KlineFeed/internal/domain/models"
)

// cryptoRow mirrors the external cryptos table maintained by the ranking
// process. The count column is a rolling trade-activity score.
type cryptoRow struct {
	Symbol     string    `gorm:"column:symbol;primaryKey"`
	BaseAsset  string    `gorm:"column:base_asset"`
	QuoteAsset string    `gorm:"column:quote_asset"`
	Count      int64     `gorm:"column:count"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (cryptoRow) TableName() string { return "cryptos" }

// PostgresRanking implements domain.repository.RankingStore over the
// shared Postgres ranking database.
type PostgresRanking struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewPostgresRanking opens the ranking database connection.
func NewPostgresRanking(dsn string, timeout time.Duration) (*PostgresRanking, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ranking db open: %w", err)
	}
	return &PostgresRanking{db: db, timeout: timeout}, nil
}

// TopSymbols returns the n most active symbols, score descending with
// symbol name as the deterministic tie break.
func (r *PostgresRanking) TopSymbols(ctx context.Context, n int) ([]models.Symbol, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []cryptoRow
	err := r.db.WithContext(ctx).
		Order("count DESC, symbol ASC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ranking query: %w", err)
	}

	observed := time.Now().UTC()
	out := make([]models.Symbol, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Symbol{
			Symbol:        row.Symbol,
			BaseAsset:     row.BaseAsset,
			QuoteAsset:    row.QuoteAsset,
			ActivityScore: row.Count,
			ObservedAt:    observed,
		})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (r *PostgresRanking) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
