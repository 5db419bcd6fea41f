package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
)

type MockTestPostgreSQL struct {
	db *gorm.DB
}

func NewMockTestPostgreSQL(db *gorm.DB) repositories.MockTestRepository {
	return &MockTestPostgreSQL{db: db}
}

func (r *MockTestPostgreSQL) Create(ctx context.Context, test *models.MockTest) error {
	return r.db.WithContext(ctx).Create(test).Error
}

func (r *MockTestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.MockTest, error) {
	var test models.MockTest
	if err := r.db.WithContext(ctx).First(&test, id).Error; err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *MockTestPostgreSQL) Update(ctx context.Context, test *models.MockTest) error {
	return r.db.WithContext(ctx).Save(test).Error
}

func (r *MockTestPostgreSQL) List(ctx context.Context, filters repositories.MockTestFilters) ([]*models.MockTest, int64, error) {
	var tests []*models.MockTest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.MockTest{})
	query = applyMockTestFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count mock tests: %w", err)
	}

	query = applyMockTestSort(query, filters)
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&tests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list mock tests: %w", err)
	}
	return tests, total, nil
}

func (r *MockTestPostgreSQL) CountActiveByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MockTest{}).
		Where("owner_id = ? AND status = ?", ownerID, models.TestInProgress).
		Count(&count).Error
	return count, err
}

func applyMockTestFilters(query *gorm.DB, filters repositories.MockTestFilters) *gorm.DB {
	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Variant != nil {
		query = query.Where("variant = ?", *filters.Variant)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func applyMockTestSort(query *gorm.DB, filters repositories.MockTestFilters) *gorm.DB {
	sortBy := "created_at"
	switch filters.SortBy {
	case "completed_at", "overall_band", "created_at":
		sortBy = filters.SortBy
	}

	order := "DESC"
	if filters.SortOrder == "asc" {
		order = "ASC"
	}
	return query.Order(fmt.Sprintf("%s %s", sortBy, order))
}
