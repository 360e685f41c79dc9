package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Soulboard/soulboard-web-sub001/internal/blockchain"
	"github.com/Soulboard/soulboard-web-sub001/pkg/errors"
	"github.com/Soulboard/soulboard-web-sub001/pkg/logger"
)

// MetricsOracle reads aggregated performance counters for one device
// over a half-open [startTime, endTime) window of UNIX seconds.
type MetricsOracle interface {
	GetAggregatedMetrics(ctx context.Context, deviceID, startTime, endTime int64) (views int64, taps int64, err error)
}

type DeviceMetrics struct {
	Views int64
	Taps  int64
}

// MetricsAggregator queries the oracle across a window, transparently
// splitting it into chunks no larger than maxChunkSeconds. Chunks tile
// the window exactly, so the summed counters equal a single unchunked
// query over the same range.
type MetricsAggregator struct {
	oracle          MetricsOracle
	maxChunkSeconds int64
}

func NewMetricsAggregator(oracle MetricsOracle, maxChunkSeconds int64) *MetricsAggregator {
	if maxChunkSeconds <= 0 {
		maxChunkSeconds = 3600
	}
	return &MetricsAggregator{
		oracle:          oracle,
		maxChunkSeconds: maxChunkSeconds,
	}
}

// Aggregate sums oracle counters for [startTime, endTime). A single
// failed chunk fails the whole call.
func (a *MetricsAggregator) Aggregate(ctx context.Context, deviceID, startTime, endTime int64) (DeviceMetrics, error) {
	if startTime >= endTime {
		return DeviceMetrics{}, errors.New(errors.ErrOracleUnavailable,
			fmt.Sprintf("invalid metrics window [%d,%d) for device %d", startTime, endTime, deviceID), nil)
	}

	var total DeviceMetrics

	for chunkStart := startTime; chunkStart < endTime; chunkStart += a.maxChunkSeconds {
		chunkEnd := chunkStart + a.maxChunkSeconds
		if chunkEnd > endTime {
			chunkEnd = endTime
		}

		views, taps, err := a.oracle.GetAggregatedMetrics(ctx, deviceID, chunkStart, chunkEnd)
		if err != nil {
			return DeviceMetrics{}, errors.New(errors.ErrOracleUnavailable,
				fmt.Sprintf("chunk query failed for device %d window [%d,%d)", deviceID, chunkStart, chunkEnd), err)
		}

		total.Views += views
		total.Taps += taps
	}

	return total, nil
}

// CampaignRegistry reads campaign and booth bookings from the on-chain
// registry.
type CampaignRegistry interface {
	GetAllCampaigns(ctx context.Context) ([]blockchain.Campaign, error)
	GetCampaignDevices(ctx context.Context, campaignID int64) ([]int64, error)
	GetBoothDetails(ctx context.Context, deviceID int64) (*blockchain.Booth, error)
}

type CampaignMetrics struct {
	CampaignID    int64
	PerDevice     map[int64]DeviceMetrics
	TotalViews    int64
	TotalTaps     int64
	FailedDevices []int64
}

// MetricsCollector resolves a campaign's booked devices and aggregates
// their metrics for one settlement hour.
type MetricsCollector struct {
	registry      CampaignRegistry
	aggregator    *MetricsAggregator
	deviceWorkers int
}

func NewMetricsCollector(registry CampaignRegistry, aggregator *MetricsAggregator, deviceWorkers int) *MetricsCollector {
	if deviceWorkers <= 0 {
		deviceWorkers = 8
	}
	return &MetricsCollector{
		registry:      registry,
		aggregator:    aggregator,
		deviceWorkers: deviceWorkers,
	}
}

// Collect aggregates metrics for every device booked by the campaign
// over [hourStart, hourStart+1h). A failed device contributes zero and
// is reported in FailedDevices; totals sum only successful devices.
func (c *MetricsCollector) Collect(ctx context.Context, campaignID int64, hourStart time.Time) (*CampaignMetrics, error) {
	deviceIDs, err := c.registry.GetCampaignDevices(ctx, campaignID)
	if err != nil {
		return nil, errors.New(errors.ErrRegistryUnavailable,
			fmt.Sprintf("failed to resolve devices for campaign %d", campaignID), err)
	}

	startTime := hourStart.Unix()
	endTime := hourStart.Add(time.Hour).Unix()

	type deviceResult struct {
		deviceID int64
		metrics  DeviceMetrics
		err      error
	}

	results := make(chan deviceResult, len(deviceIDs))
	sem := make(chan struct{}, c.deviceWorkers)
	var wg sync.WaitGroup

	for _, deviceID := range deviceIDs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			metrics, err := c.aggregator.Aggregate(ctx, id, startTime, endTime)
			results <- deviceResult{deviceID: id, metrics: metrics, err: err}
		}(deviceID)
	}

	wg.Wait()
	close(results)

	collected := &CampaignMetrics{
		CampaignID: campaignID,
		PerDevice:  make(map[int64]DeviceMetrics, len(deviceIDs)),
	}

	for res := range results {
		if res.err != nil {
			logger.WithFields(map[string]interface{}{
				"campaign_id": campaignID,
				"device_id":   res.deviceID,
				"hour_start":  hourStart.Unix(),
			}).Warn("device metrics unavailable, counted as zero: ", res.err)
			collected.FailedDevices = append(collected.FailedDevices, res.deviceID)
			continue
		}

		collected.PerDevice[res.deviceID] = res.metrics
		collected.TotalViews += res.metrics.Views
		collected.TotalTaps += res.metrics.Taps
	}

	sort.Slice(collected.FailedDevices, func(i, j int) bool {
		return collected.FailedDevices[i] < collected.FailedDevices[j]
	})

	return collected, nil
}
