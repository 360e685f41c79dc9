package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/Soulboard/soulboard-web-sub001/internal/models"

	"gorm.io/gorm"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// FindByAddress resolves a wallet address and role to an account.
// Returns nil without error when no account exists.
func (r *IdentityRepository) FindByAddress(ctx context.Context, address string, role models.AccountRole) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND role = ?", strings.ToLower(address), role).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// IncrementEarnings atomically adds the settled amount to the account's
// running earnings total.
func (r *IdentityRepository) IncrementEarnings(ctx context.Context, accountID uint64, amount string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE accounts
		SET total_earnings = total_earnings + ?, updated_at = NOW()
		WHERE id = ?
	`, amount, accountID).Error
}

// GetByHolder returns the account owning the given holder address.
func (r *IdentityRepository) GetByHolder(ctx context.Context, holderAddress string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("holder_address = ?", strings.ToLower(holderAddress)).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListByRole returns accounts of one role, paginated.
func (r *IdentityRepository) ListByRole(ctx context.Context, role models.AccountRole, offset, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Offset(offset).
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}

func (r *IdentityRepository) CountByRole(ctx context.Context, role models.AccountRole) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("role = ?", role).
		Count(&count).Error
	return count, err
}
