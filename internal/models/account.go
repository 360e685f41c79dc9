package models

import (
	"time"
)

type AccountRole string

const (
	RoleAdvertiser AccountRole = "advertiser"
	RoleProvider   AccountRole = "provider"
)

// Account maps an on-chain wallet address to the custodial holder
// account used by the payments ledger.
type Account struct {
	ID            uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletAddress string      `gorm:"uniqueIndex:uk_wallet_role;size:42;not null" json:"wallet_address"`
	Role          AccountRole `gorm:"uniqueIndex:uk_wallet_role;type:enum('advertiser','provider');not null" json:"role"`
	HolderAddress string      `gorm:"size:42;not null" json:"holder_address"`
	TotalEarnings string      `gorm:"type:decimal(65,18);not null;default:0" json:"total_earnings"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
