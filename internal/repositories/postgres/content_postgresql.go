package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/cache"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
)

type ContentPostgreSQL struct {
	db             *gorm.DB
	contentCache   *cache.CacheHelper
	answerKeyCache *cache.CacheHelper
}

func NewContentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ContentRepository {
	return &ContentPostgreSQL{
		db:             db,
		contentCache:   cache.NewCacheHelper(redisClient, cache.ContentCacheConfig.Prefix),
		answerKeyCache: cache.NewCacheHelper(redisClient, cache.AnswerKeyCacheConfig.Prefix),
	}
}

func (r *ContentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Content, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var content models.Content

	err := r.contentCache.CacheOrExecute(ctx, cacheKey, &content, cache.ContentCacheConfig.TTL, func() (interface{}, error) {
		var dbContent models.Content
		if err := r.db.WithContext(ctx).First(&dbContent, id).Error; err != nil {
			return nil, err
		}
		return &dbContent, nil
	})
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// FindRandom picks one active content item uniformly from the eligible
// pool. Random selection happens in the database, so it is never cached.
func (r *ContentPostgreSQL) FindRandom(ctx context.Context, module models.TestModule, contentType models.ContentType, variant *models.TestVariant) (*models.Content, error) {
	query := r.db.WithContext(ctx).
		Where("module = ? AND type = ? AND active = ?", module, contentType, true)
	if variant != nil {
		query = query.Where("variant IS NULL OR variant = ?", *variant)
	}

	var content models.Content
	err := query.Order("RANDOM()").First(&content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick random content: %w", err)
	}
	return &content, nil
}

func (r *ContentPostgreSQL) GetAnswerKey(ctx context.Context, contentID uint) (*models.AnswerKey, error) {
	cacheKey := fmt.Sprintf("content:%d", contentID)
	var key models.AnswerKey

	err := r.answerKeyCache.CacheOrExecute(ctx, cacheKey, &key, cache.AnswerKeyCacheConfig.TTL, func() (interface{}, error) {
		var dbKey models.AnswerKey
		if err := r.db.WithContext(ctx).Where("content_id = ?", contentID).First(&dbKey).Error; err != nil {
			return nil, err
		}
		return &dbKey, nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}
