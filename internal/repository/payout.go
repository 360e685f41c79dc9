package repository

import (
	"context"

	"github.com/Soulboard/soulboard-web-sub001/internal/models"

	"gorm.io/gorm"
)

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(ctx context.Context, payout *models.DevicePayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

// List returns payouts filtered by campaign and/or device, newest first.
// Zero values disable the corresponding filter.
func (r *PayoutRepository) List(ctx context.Context, campaignID, deviceID int64, offset, limit int) ([]models.DevicePayout, error) {
	var payouts []models.DevicePayout
	query := r.db.WithContext(ctx).Order("hour_start DESC, device_id ASC")

	if campaignID > 0 {
		query = query.Where("campaign_id = ?", campaignID)
	}
	if deviceID > 0 {
		query = query.Where("device_id = ?", deviceID)
	}

	err := query.
		Offset(offset).
		Limit(limit).
		Find(&payouts).Error
	return payouts, err
}

func (r *PayoutRepository) Count(ctx context.Context, campaignID, deviceID int64) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.DevicePayout{})

	if campaignID > 0 {
		query = query.Where("campaign_id = ?", campaignID)
	}
	if deviceID > 0 {
		query = query.Where("device_id = ?", deviceID)
	}

	err := query.Count(&count).Error
	return count, err
}

// ListFailed returns failed payouts for an hour slot, for reconciliation.
func (r *PayoutRepository) ListFailed(ctx context.Context, campaignID int64, limit int) ([]models.DevicePayout, error) {
	var payouts []models.DevicePayout
	query := r.db.WithContext(ctx).
		Where("status = ?", models.PayoutStatusFailed).
		Order("hour_start DESC")

	if campaignID > 0 {
		query = query.Where("campaign_id = ?", campaignID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&payouts).Error
	return payouts, err
}
