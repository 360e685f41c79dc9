package models

import (
	"time"
)

type PayoutStatus string

const (
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
	PayoutStatusSkipped PayoutStatus = "skipped"
)

// DevicePayout is the per-device audit trail of a settlement run.
// Failed and skipped rows are kept for manual reconciliation.
type DevicePayout struct {
	ID              uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID      int64        `gorm:"not null;index:idx_campaign_device" json:"campaign_id"`
	DeviceID        int64        `gorm:"not null;index:idx_campaign_device" json:"device_id"`
	HourStart       time.Time    `gorm:"not null;index" json:"hour_start"`
	ProviderAddress string       `gorm:"size:42" json:"provider_address"`
	Views           int64        `gorm:"not null;default:0" json:"views"`
	Taps            int64        `gorm:"not null;default:0" json:"taps"`
	ViewShare       string       `gorm:"type:decimal(20,18);not null;default:0" json:"view_share"`
	Amount          string       `gorm:"type:decimal(65,6);not null;default:0" json:"amount"`
	TxHash          string       `gorm:"size:66" json:"tx_hash"`
	Status          PayoutStatus `gorm:"type:enum('paid','failed','skipped');not null" json:"status"`
	Reason          string       `gorm:"size:255" json:"reason,omitempty"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (DevicePayout) TableName() string {
	return "device_payouts"
}
