// Package postgres implements the repositories contracts on PostgreSQL,
// with a Redis cache in front of content reads.
package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
)

// PostgreSQLRepository implements the main Repository interface.
type PostgreSQLRepository struct {
	db          *gorm.DB
	redisClient *redis.Client

	mockTest      repositories.MockTestRepository
	sectionResult repositories.SectionResultRepository
	content       repositories.ContentRepository
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	DB          *gorm.DB
	RedisClient *redis.Client
}

// NewPostgreSQLRepository creates a repository manager with all
// sub-repositories wired.
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	repo := &PostgreSQLRepository{
		db:          config.DB,
		redisClient: config.RedisClient,
	}

	repo.mockTest = NewMockTestPostgreSQL(config.DB)
	repo.sectionResult = NewSectionResultPostgreSQL(config.DB)
	repo.content = NewContentPostgreSQL(config.DB, config.RedisClient)

	return repo
}

func (r *PostgreSQLRepository) MockTest() repositories.MockTestRepository {
	return r.mockTest
}

func (r *PostgreSQLRepository) SectionResult() repositories.SectionResultRepository {
	return r.sectionResult
}

func (r *PostgreSQLRepository) Content() repositories.ContentRepository {
	return r.content
}

// WithTransaction executes fn within a database transaction, with every
// sub-repository rebound to the transaction handle.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &PostgreSQLRepository{
			db:          tx,
			redisClient: r.redisClient,
		}
		txRepo.mockTest = NewMockTestPostgreSQL(tx)
		txRepo.sectionResult = NewSectionResultPostgreSQL(tx)
		txRepo.content = NewContentPostgreSQL(tx, r.redisClient)

		return fn(txRepo)
	})
}

// Ping checks the health of database and cache connections.
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}
	return nil
}

// Close closes all connections.
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	return nil
}
