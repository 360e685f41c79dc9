package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Soulboard/soulboard-web-sub001/internal/blockchain"
	"github.com/Soulboard/soulboard-web-sub001/internal/config"
	"github.com/Soulboard/soulboard-web-sub001/internal/models"
	"github.com/Soulboard/soulboard-web-sub001/internal/payments"
	"github.com/Soulboard/soulboard-web-sub001/pkg/errors"
	"github.com/Soulboard/soulboard-web-sub001/pkg/logger"

	"github.com/shopspring/decimal"
)

// PaymentsAPI moves token amounts between custodial holder accounts.
type PaymentsAPI interface {
	Transfer(ctx context.Context, fromHolder, toHolder, tokenAddress string, amount decimal.Decimal) (*payments.TransferResult, error)
}

// IdentityStore resolves on-chain addresses to internal accounts and
// tracks running provider earnings.
type IdentityStore interface {
	FindByAddress(ctx context.Context, address string, role models.AccountRole) (*models.Account, error)
	IncrementEarnings(ctx context.Context, accountID uint64, amount string) error
}

// RunStore persists per-campaign settlement run records.
type RunStore interface {
	Exists(ctx context.Context, runHash string) (bool, error)
	Create(ctx context.Context, run *models.SettlementRun) error
}

// PayoutStore persists the per-device payout audit trail.
type PayoutStore interface {
	Create(ctx context.Context, payout *models.DevicePayout) error
}

// SettlementService settles one hour slot across all campaigns. Every
// failure is local to its campaign, device or transfer; a run never
// aborts because a single unit failed.
type SettlementService struct {
	registry        CampaignRegistry
	collector       *MetricsCollector
	identities      IdentityStore
	runs            RunStore
	payouts         PayoutStore
	payments        PaymentsAPI
	policy          AllocationPolicy
	tokenAddress    string
	tokenDecimals   int32
	campaignWorkers int
}

func NewSettlementService(
	registry CampaignRegistry,
	collector *MetricsCollector,
	identities IdentityStore,
	runs RunStore,
	payouts PayoutStore,
	paymentsAPI PaymentsAPI,
	cfg *config.SettlementConfig,
	tokenAddress string,
) *SettlementService {
	policy := AllocationPolicy{
		MinShare:    decimal.NewFromFloat(cfg.MinShare),
		AmountScale: cfg.AmountScale,
	}

	workers := cfg.CampaignWorkers
	if workers <= 0 {
		workers = 4
	}

	return &SettlementService{
		registry:        registry,
		collector:       collector,
		identities:      identities,
		runs:            runs,
		payouts:         payouts,
		payments:        paymentsAPI,
		policy:          policy,
		tokenAddress:    tokenAddress,
		tokenDecimals:   cfg.TokenDecimals,
		campaignWorkers: workers,
	}
}

type RunSummary struct {
	HourStart         time.Time       `json:"hour_start"`
	HourEnd           time.Time       `json:"hour_end"`
	CampaignsTotal    int             `json:"campaigns_total"`
	CampaignsSettled  int             `json:"campaigns_settled"`
	CampaignsSkipped  int             `json:"campaigns_skipped"`
	CampaignsFailed   int             `json:"campaigns_failed"`
	DevicesPaid       int             `json:"devices_paid"`
	DevicesFailed     int             `json:"devices_failed"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
}

type campaignStatus int

const (
	campaignSettled campaignStatus = iota
	campaignSkipped
	campaignFailed
)

type campaignOutcome struct {
	status        campaignStatus
	devicesPaid   int
	devicesFailed int
	paid          decimal.Decimal
}

// RunForSlot settles the hour containing slot for every eligible
// campaign. Only a registry enumeration failure fails the run itself.
func (s *SettlementService) RunForSlot(ctx context.Context, slot time.Time) (*RunSummary, error) {
	hourStart := time.Date(slot.Year(), slot.Month(), slot.Day(), slot.Hour(), 0, 0, 0, slot.Location())
	hourEnd := hourStart.Add(time.Hour)

	logger.WithFields(map[string]interface{}{
		"hour_start": hourStart.Unix(),
		"hour_end":   hourEnd.Unix(),
	}).Info("Starting settlement run")

	campaigns, err := s.registry.GetAllCampaigns(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrRegistryUnavailable, "failed to enumerate campaigns", err)
	}

	results := make(chan campaignOutcome, len(campaigns))
	sem := make(chan struct{}, s.campaignWorkers)
	var wg sync.WaitGroup

	for _, campaign := range campaigns {
		wg.Add(1)
		go func(c blockchain.Campaign) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results <- s.settleCampaign(ctx, c, hourStart, hourEnd)
		}(campaign)
	}

	wg.Wait()
	close(results)

	summary := &RunSummary{
		HourStart:      hourStart,
		HourEnd:        hourEnd,
		CampaignsTotal: len(campaigns),
		TotalPaid:      decimal.Zero,
	}

	for outcome := range results {
		switch outcome.status {
		case campaignSettled:
			summary.CampaignsSettled++
		case campaignSkipped:
			summary.CampaignsSkipped++
		case campaignFailed:
			summary.CampaignsFailed++
		}
		summary.DevicesPaid += outcome.devicesPaid
		summary.DevicesFailed += outcome.devicesFailed
		summary.TotalPaid = summary.TotalPaid.Add(outcome.paid)
	}

	logger.WithFields(map[string]interface{}{
		"hour_start":        hourStart.Unix(),
		"campaigns_total":   summary.CampaignsTotal,
		"campaigns_settled": summary.CampaignsSettled,
		"campaigns_skipped": summary.CampaignsSkipped,
		"campaigns_failed":  summary.CampaignsFailed,
		"devices_paid":      summary.DevicesPaid,
		"devices_failed":    summary.DevicesFailed,
		"total_paid":        summary.TotalPaid.String(),
	}).Info("Settlement run completed")

	return summary, nil
}

func (s *SettlementService) settleCampaign(ctx context.Context, campaign blockchain.Campaign, hourStart, hourEnd time.Time) campaignOutcome {
	fields := map[string]interface{}{
		"campaign_id": campaign.ID,
		"hour_start":  hourStart.Unix(),
	}

	if !campaign.Active {
		logger.WithFields(fields).Debug("Campaign inactive, skipped")
		return campaignOutcome{status: campaignSkipped, paid: decimal.Zero}
	}

	runHash := models.SettlementRunHash(campaign.ID, hourStart, hourEnd)
	settled, err := s.runs.Exists(ctx, runHash)
	if err != nil {
		logger.WithFields(fields).Error("Failed to check settlement run record: ", err)
		return campaignOutcome{status: campaignFailed, paid: decimal.Zero}
	}
	if settled {
		logger.WithFields(fields).Debug("Hour slot already settled, skipped")
		return campaignOutcome{status: campaignSkipped, paid: decimal.Zero}
	}

	advertiser, err := s.identities.FindByAddress(ctx, campaign.Advertiser.Hex(), models.RoleAdvertiser)
	if err != nil {
		logger.WithFields(fields).Error("Advertiser lookup failed: ", err)
		return campaignOutcome{status: campaignFailed, paid: decimal.Zero}
	}
	if advertiser == nil {
		logger.WithFields(fields).Warn("No advertiser account for ", campaign.Advertiser.Hex(), ", campaign skipped")
		return campaignOutcome{status: campaignSkipped, paid: decimal.Zero}
	}

	metrics, err := s.collector.Collect(ctx, campaign.ID, hourStart)
	if err != nil {
		logger.WithFields(fields).Error("Metrics collection failed: ", err)
		return campaignOutcome{status: campaignFailed, paid: decimal.Zero}
	}

	outcome := campaignOutcome{paid: decimal.Zero}

	// Failed devices get an audit row but no payment this run.
	for _, deviceID := range metrics.FailedDevices {
		outcome.devicesFailed++
		s.recordPayout(ctx, &models.DevicePayout{
			CampaignID: campaign.ID,
			DeviceID:   deviceID,
			HourStart:  hourStart,
			ViewShare:  "0",
			Amount:     "0",
			Status:     models.PayoutStatusSkipped,
			Reason:     "metrics unavailable",
		})
	}

	// Resolve booth owners first: view shares are computed over the
	// devices that can actually be paid.
	type payee struct {
		deviceID int64
		metrics  DeviceMetrics
		owner    string
		account  *models.Account
	}

	deviceIDs := make([]int64, 0, len(metrics.PerDevice))
	for deviceID := range metrics.PerDevice {
		deviceIDs = append(deviceIDs, deviceID)
	}
	sort.Slice(deviceIDs, func(i, j int) bool { return deviceIDs[i] < deviceIDs[j] })

	payees := make([]payee, 0, len(deviceIDs))
	perDeviceViews := make(map[int64]int64, len(deviceIDs))

	for _, deviceID := range deviceIDs {
		deviceFields := map[string]interface{}{
			"campaign_id": campaign.ID,
			"device_id":   deviceID,
			"hour_start":  hourStart.Unix(),
		}

		booth, err := s.registry.GetBoothDetails(ctx, deviceID)
		if err != nil {
			logger.WithFields(deviceFields).Warn("Booth lookup failed, device skipped: ", err)
			outcome.devicesFailed++
			s.recordPayout(ctx, &models.DevicePayout{
				CampaignID: campaign.ID,
				DeviceID:   deviceID,
				HourStart:  hourStart,
				Views:      metrics.PerDevice[deviceID].Views,
				Taps:       metrics.PerDevice[deviceID].Taps,
				ViewShare:  "0",
				Amount:     "0",
				Status:     models.PayoutStatusSkipped,
				Reason:     "booth lookup failed",
			})
			continue
		}

		provider, err := s.identities.FindByAddress(ctx, booth.Owner.Hex(), models.RoleProvider)
		if err != nil || provider == nil {
			logger.WithFields(deviceFields).Warn("No provider account for ", booth.Owner.Hex(), ", device skipped")
			outcome.devicesFailed++
			s.recordPayout(ctx, &models.DevicePayout{
				CampaignID:      campaign.ID,
				DeviceID:        deviceID,
				HourStart:       hourStart,
				ProviderAddress: booth.Owner.Hex(),
				Views:           metrics.PerDevice[deviceID].Views,
				Taps:            metrics.PerDevice[deviceID].Taps,
				ViewShare:       "0",
				Amount:          "0",
				Status:          models.PayoutStatusSkipped,
				Reason:          "provider account not found",
			})
			continue
		}

		payees = append(payees, payee{
			deviceID: deviceID,
			metrics:  metrics.PerDevice[deviceID],
			owner:    booth.Owner.Hex(),
			account:  provider,
		})
		perDeviceViews[deviceID] = metrics.PerDevice[deviceID].Views
	}

	if len(payees) == 0 {
		logger.WithFields(fields).Warn("No payable devices this slot, campaign skipped")
		outcome.status = campaignSkipped
		return outcome
	}

	hourlyRate := decimal.NewFromBigInt(campaign.HourlyRate, -s.tokenDecimals)

	allocations, err := s.policy.Allocate(hourlyRate, perDeviceViews)
	if err != nil {
		logger.WithFields(fields).Error("Allocation failed: ", err)
		outcome.status = campaignFailed
		return outcome
	}

	allocated := decimal.Zero

	for _, p := range payees {
		alloc := allocations[p.deviceID]
		allocated = allocated.Add(alloc.Amount)

		payout := &models.DevicePayout{
			CampaignID:      campaign.ID,
			DeviceID:        p.deviceID,
			HourStart:       hourStart,
			ProviderAddress: p.owner,
			Views:           p.metrics.Views,
			Taps:            p.metrics.Taps,
			ViewShare:       alloc.ViewShare.Round(18).String(),
			Amount:          alloc.Amount.String(),
			Status:          models.PayoutStatusSkipped,
		}

		if !alloc.Amount.IsPositive() {
			payout.Reason = "zero amount"
			s.recordPayout(ctx, payout)
			continue
		}

		deviceFields := map[string]interface{}{
			"campaign_id": campaign.ID,
			"device_id":   p.deviceID,
			"hour_start":  hourStart.Unix(),
			"amount":      alloc.Amount.String(),
		}

		result, err := s.payments.Transfer(ctx, advertiser.HolderAddress, p.account.HolderAddress, s.tokenAddress, alloc.Amount)
		if err != nil {
			logger.WithFields(deviceFields).Warn("Transfer failed, device skipped this run: ", err)
			outcome.devicesFailed++
			payout.Status = models.PayoutStatusFailed
			payout.Reason = "transfer failed"
			s.recordPayout(ctx, payout)
			continue
		}

		payout.Status = models.PayoutStatusPaid
		payout.TxHash = result.TxHash
		s.recordPayout(ctx, payout)

		if err := s.identities.IncrementEarnings(ctx, p.account.ID, alloc.Amount.String()); err != nil {
			logger.WithFields(deviceFields).Error("Failed to increment provider earnings: ", err)
		}

		outcome.devicesPaid++
		outcome.paid = outcome.paid.Add(alloc.Amount)

		logger.WithFields(deviceFields).Info("Device settled")
	}

	// Budget is the flat minimum per payable device plus the performance
	// pool; anything not allocated (undistributed pool on zero views,
	// flooring dust) stays with the advertiser.
	minimum := hourlyRate.Mul(s.policy.MinShare)
	budget := minimum.Mul(decimal.NewFromInt(int64(len(payees)))).Add(hourlyRate.Sub(minimum))

	run := &models.SettlementRun{
		CampaignID:        campaign.ID,
		HourStart:         hourStart,
		HourEnd:           hourEnd,
		TotalViews:        metrics.TotalViews,
		TotalTaps:         metrics.TotalTaps,
		DevicesPaid:       outcome.devicesPaid,
		DevicesFailed:     outcome.devicesFailed,
		TotalPaid:         outcome.paid.String(),
		AmountUnallocated: budget.Sub(allocated).String(),
		RunHash:           runHash,
	}

	if err := s.runs.Create(ctx, run); err != nil {
		logger.WithFields(fields).Error("Failed to persist settlement run record: ", err)
		outcome.status = campaignFailed
		return outcome
	}

	outcome.status = campaignSettled

	logger.WithFields(map[string]interface{}{
		"campaign_id":    campaign.ID,
		"hour_start":     hourStart.Unix(),
		"total_views":    metrics.TotalViews,
		"devices_paid":   outcome.devicesPaid,
		"devices_failed": outcome.devicesFailed,
		"total_paid":     outcome.paid.String(),
	}).Info("Campaign settled")

	return outcome
}

func (s *SettlementService) recordPayout(ctx context.Context, payout *models.DevicePayout) {
	if err := s.payouts.Create(ctx, payout); err != nil {
		logger.WithFields(map[string]interface{}{
			"campaign_id": payout.CampaignID,
			"device_id":   payout.DeviceID,
		}).Error("Failed to persist device payout: ", err)
	}
}
