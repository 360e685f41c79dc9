package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SettlementRun is the record of one campaign settled for one hour slot.
// RunHash is unique so the same slot is never settled twice.
type SettlementRun struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID        int64     `gorm:"not null;index:idx_campaign_slot" json:"campaign_id"`
	HourStart         time.Time `gorm:"not null;index:idx_campaign_slot" json:"hour_start"`
	HourEnd           time.Time `gorm:"not null" json:"hour_end"`
	TotalViews        int64     `gorm:"not null;default:0" json:"total_views"`
	TotalTaps         int64     `gorm:"not null;default:0" json:"total_taps"`
	DevicesPaid       int       `gorm:"not null;default:0" json:"devices_paid"`
	DevicesFailed     int       `gorm:"not null;default:0" json:"devices_failed"`
	TotalPaid         string    `gorm:"type:decimal(65,6);not null;default:0" json:"total_paid"`
	AmountUnallocated string    `gorm:"type:decimal(65,6);not null;default:0" json:"amount_unallocated"`
	RunHash           string    `gorm:"size:64;not null;uniqueIndex" json:"run_hash"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SettlementRun) TableName() string {
	return "settlement_runs"
}

// SettlementRunHash derives the dedup key for a (campaign, hour slot) pair.
func SettlementRunHash(campaignID int64, hourStart, hourEnd time.Time) string {
	data := fmt.Sprintf("%d:%d:%d", campaignID, hourStart.Unix(), hourEnd.Unix())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
