package repository

import (
	"context"
	"errors"

	"github.com/Soulboard/soulboard-web-sub001/internal/models"

	"gorm.io/gorm"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, run *models.SettlementRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Exists reports whether a run with the given dedup hash was already settled.
func (r *SettlementRepository) Exists(ctx context.Context, runHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SettlementRun{}).
		Where("run_hash = ?", runHash).
		Count(&count).Error
	return count > 0, err
}

func (r *SettlementRepository) GetByHash(ctx context.Context, runHash string) (*models.SettlementRun, error) {
	var run models.SettlementRun
	err := r.db.WithContext(ctx).
		Where("run_hash = ?", runHash).
		First(&run).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByCampaign returns settlement runs, newest slot first.
// A campaignID of zero lists runs across all campaigns.
func (r *SettlementRepository) ListByCampaign(ctx context.Context, campaignID int64, offset, limit int) ([]models.SettlementRun, error) {
	var runs []models.SettlementRun
	query := r.db.WithContext(ctx).Order("hour_start DESC, campaign_id ASC")

	if campaignID > 0 {
		query = query.Where("campaign_id = ?", campaignID)
	}

	err := query.
		Offset(offset).
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *SettlementRepository) CountByCampaign(ctx context.Context, campaignID int64) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.SettlementRun{})

	if campaignID > 0 {
		query = query.Where("campaign_id = ?", campaignID)
	}

	err := query.Count(&count).Error
	return count, err
}
