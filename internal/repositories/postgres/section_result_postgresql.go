package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
)

type SectionResultPostgreSQL struct {
	db *gorm.DB
}

func NewSectionResultPostgreSQL(db *gorm.DB) repositories.SectionResultRepository {
	return &SectionResultPostgreSQL{db: db}
}

func (r *SectionResultPostgreSQL) Create(ctx context.Context, result *models.SectionResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *SectionResultPostgreSQL) GetByID(ctx context.Context, id uint) (*models.SectionResult, error) {
	var result models.SectionResult
	if err := r.db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *SectionResultPostgreSQL) Update(ctx context.Context, result *models.SectionResult) error {
	return r.db.WithContext(ctx).Save(result).Error
}

func (r *SectionResultPostgreSQL) ListByTest(ctx context.Context, testID uint) ([]*models.SectionResult, error) {
	var results []*models.SectionResult
	err := r.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
