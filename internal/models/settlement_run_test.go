package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettlementRunHash(t *testing.T) {
	hourStart := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	hourEnd := hourStart.Add(time.Hour)

	hash := SettlementRunHash(1, hourStart, hourEnd)
	assert.Len(t, hash, 64)

	// Deterministic for the same (campaign, slot).
	assert.Equal(t, hash, SettlementRunHash(1, hourStart, hourEnd))

	// Distinct per campaign and per slot.
	assert.NotEqual(t, hash, SettlementRunHash(2, hourStart, hourEnd))
	assert.NotEqual(t, hash, SettlementRunHash(1, hourStart.Add(time.Hour), hourEnd.Add(time.Hour)))
}
