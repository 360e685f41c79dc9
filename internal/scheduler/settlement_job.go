package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Soulboard/soulboard-web-sub001/internal/service"
	"github.com/Soulboard/soulboard-web-sub001/pkg/errors"
	"github.com/Soulboard/soulboard-web-sub001/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SettlementScheduler triggers one settlement run per hour, settling
// the hour that just completed. Overlapping runs are rejected.
type SettlementScheduler struct {
	cron      *cron.Cron
	svc       *service.SettlementService
	cronSpec  string
	isRunning int32
}

func NewSettlementScheduler(svc *service.SettlementService, cronSpec string) *SettlementScheduler {
	if cronSpec == "" {
		cronSpec = "0 0 * * * *"
	}
	return &SettlementScheduler{
		cron:     cron.New(cron.WithSeconds()),
		svc:      svc,
		cronSpec: cronSpec,
	}
}

func (s *SettlementScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronSpec, s.runSettlement)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Settlement scheduler started")
	return nil
}

func (s *SettlementScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Settlement scheduler stopped")
}

func (s *SettlementScheduler) IsRunning() bool {
	return atomic.LoadInt32(&s.isRunning) == 1
}

func (s *SettlementScheduler) runSettlement() {
	now := time.Now()
	currentHour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	slot := currentHour.Add(-time.Hour)

	if _, err := s.run(context.Background(), slot); err != nil {
		logger.Error("Scheduled settlement run failed: ", err)
	}
}

// TriggerManualRun settles an explicit hour slot, for backfill or
// operational retries. Rejected while another run is in flight.
func (s *SettlementScheduler) TriggerManualRun(ctx context.Context, slot time.Time) (*service.RunSummary, error) {
	return s.run(ctx, slot)
}

func (s *SettlementScheduler) run(ctx context.Context, slot time.Time) (*service.RunSummary, error) {
	if !atomic.CompareAndSwapInt32(&s.isRunning, 0, 1) {
		logger.WithFields(map[string]interface{}{
			"hour_start": slot.Unix(),
		}).Warn("Previous settlement run still in flight, skipped")
		return nil, errors.New(errors.ErrSettlementRun, "settlement run already in progress", nil)
	}
	defer atomic.StoreInt32(&s.isRunning, 0)

	return s.svc.RunForSlot(ctx, slot)
}
