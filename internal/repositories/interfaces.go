package repositories

import (
	"context"
	"time"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type MockTestFilters struct {
	OwnerID  *string             `json:"owner_id"`
	Status   *models.TestStatus  `json:"status"`
	Variant  *models.TestVariant `json:"variant"`
	DateFrom *time.Time          `json:"date_from"`
	DateTo   *time.Time          `json:"date_to"`

	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	SortBy    string `json:"sort_by"`    // "created_at", "completed_at", "overall_band"
	SortOrder string `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY INTERFACES =====

type MockTestRepository interface {
	Create(ctx context.Context, test *models.MockTest) error
	GetByID(ctx context.Context, id uint) (*models.MockTest, error)
	Update(ctx context.Context, test *models.MockTest) error
	List(ctx context.Context, filters MockTestFilters) ([]*models.MockTest, int64, error)
	CountActiveByOwner(ctx context.Context, ownerID string) (int64, error)
}

type SectionResultRepository interface {
	Create(ctx context.Context, result *models.SectionResult) error
	GetByID(ctx context.Context, id uint) (*models.SectionResult, error)
	Update(ctx context.Context, result *models.SectionResult) error
	ListByTest(ctx context.Context, testID uint) ([]*models.SectionResult, error)
}

type ContentRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Content, error)

	// FindRandom picks one active content item from the eligible pool, or
	// returns (nil, nil) when the pool is empty.
	FindRandom(ctx context.Context, module models.TestModule, contentType models.ContentType, variant *models.TestVariant) (*models.Content, error)

	// GetAnswerKey returns (nil, nil) when no key exists for the content.
	GetAnswerKey(ctx context.Context, contentID uint) (*models.AnswerKey, error)
}
