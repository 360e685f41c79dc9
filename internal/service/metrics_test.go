package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Soulboard/soulboard-web-sub001/internal/blockchain"
	"github.com/Soulboard/soulboard-web-sub001/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type oracleCall struct {
	deviceID  int64
	startTime int64
	endTime   int64
}

// stubOracle returns either a fixed per-device count or counters
// proportional to the window length (viewsPerSecond).
type stubOracle struct {
	mu             sync.Mutex
	calls          []oracleCall
	viewsPerSecond int64
	tapsPerSecond  int64
	fixedViews     map[int64]int64
	failDevices    map[int64]bool
}

func (o *stubOracle) GetAggregatedMetrics(ctx context.Context, deviceID, startTime, endTime int64) (int64, int64, error) {
	o.mu.Lock()
	o.calls = append(o.calls, oracleCall{deviceID: deviceID, startTime: startTime, endTime: endTime})
	o.mu.Unlock()

	if o.failDevices[deviceID] {
		return 0, 0, fmt.Errorf("oracle unreachable for device %d", deviceID)
	}

	if o.fixedViews != nil {
		return o.fixedViews[deviceID], 0, nil
	}

	duration := endTime - startTime
	return duration * o.viewsPerSecond, duration * o.tapsPerSecond, nil
}

func (o *stubOracle) callsFor(deviceID int64) []oracleCall {
	o.mu.Lock()
	defer o.mu.Unlock()

	var calls []oracleCall
	for _, c := range o.calls {
		if c.deviceID == deviceID {
			calls = append(calls, c)
		}
	}
	return calls
}

type stubRegistry struct {
	campaigns    []blockchain.Campaign
	devices      map[int64][]int64
	booths       map[int64]*blockchain.Booth
	campaignsErr error
	devicesErr   error
}

func (r *stubRegistry) GetAllCampaigns(ctx context.Context) ([]blockchain.Campaign, error) {
	if r.campaignsErr != nil {
		return nil, r.campaignsErr
	}
	return r.campaigns, nil
}

func (r *stubRegistry) GetCampaignDevices(ctx context.Context, campaignID int64) ([]int64, error) {
	if r.devicesErr != nil {
		return nil, r.devicesErr
	}
	return r.devices[campaignID], nil
}

func (r *stubRegistry) GetBoothDetails(ctx context.Context, deviceID int64) (*blockchain.Booth, error) {
	booth, ok := r.booths[deviceID]
	if !ok {
		return nil, fmt.Errorf("booth %d not registered", deviceID)
	}
	return booth, nil
}

func TestAggregateSingleChunk(t *testing.T) {
	oracle := &stubOracle{viewsPerSecond: 2, tapsPerSecond: 1}
	aggregator := NewMetricsAggregator(oracle, 3600)

	metrics, err := aggregator.Aggregate(context.Background(), 1, 0, 1800)
	require.NoError(t, err)

	assert.Equal(t, int64(3600), metrics.Views)
	assert.Equal(t, int64(1800), metrics.Taps)

	calls := oracle.callsFor(1)
	require.Len(t, calls, 1)
	assert.Equal(t, oracleCall{deviceID: 1, startTime: 0, endTime: 1800}, calls[0])
}

func TestAggregateChunkTiling(t *testing.T) {
	oracle := &stubOracle{viewsPerSecond: 3, tapsPerSecond: 1}
	chunked := NewMetricsAggregator(oracle, 3600)

	metrics, err := chunked.Aggregate(context.Background(), 5, 0, 7200)
	require.NoError(t, err)

	calls := oracle.callsFor(5)
	require.Len(t, calls, 2)
	assert.Equal(t, oracleCall{deviceID: 5, startTime: 0, endTime: 3600}, calls[0])
	assert.Equal(t, oracleCall{deviceID: 5, startTime: 3600, endTime: 7200}, calls[1])

	// Chunked result must match one unchunked query over the window.
	unchunkedOracle := &stubOracle{viewsPerSecond: 3, tapsPerSecond: 1}
	unchunked := NewMetricsAggregator(unchunkedOracle, 7200)

	reference, err := unchunked.Aggregate(context.Background(), 5, 0, 7200)
	require.NoError(t, err)
	require.Len(t, unchunkedOracle.callsFor(5), 1)

	assert.Equal(t, reference, metrics)
}

func TestAggregateTruncatesLastChunk(t *testing.T) {
	oracle := &stubOracle{viewsPerSecond: 1}
	aggregator := NewMetricsAggregator(oracle, 3600)

	metrics, err := aggregator.Aggregate(context.Background(), 2, 1000, 6000)
	require.NoError(t, err)

	calls := oracle.callsFor(2)
	require.Len(t, calls, 2)
	assert.Equal(t, oracleCall{deviceID: 2, startTime: 1000, endTime: 4600}, calls[0])
	assert.Equal(t, oracleCall{deviceID: 2, startTime: 4600, endTime: 6000}, calls[1])

	// Chunks tile the window exactly: no gap, no overlap.
	assert.Equal(t, int64(5000), metrics.Views)
}

func TestAggregateChunkFailure(t *testing.T) {
	oracle := &stubOracle{viewsPerSecond: 1, failDevices: map[int64]bool{9: true}}
	aggregator := NewMetricsAggregator(oracle, 3600)

	_, err := aggregator.Aggregate(context.Background(), 9, 0, 7200)
	require.Error(t, err)
	assert.Equal(t, errors.ErrOracleUnavailable, errors.Code(err))
}

func TestAggregateInvalidWindow(t *testing.T) {
	oracle := &stubOracle{viewsPerSecond: 1}
	aggregator := NewMetricsAggregator(oracle, 3600)

	_, err := aggregator.Aggregate(context.Background(), 1, 7200, 7200)
	require.Error(t, err)
	assert.Empty(t, oracle.calls)
}

func TestCollectCampaignTotals(t *testing.T) {
	oracle := &stubOracle{fixedViews: map[int64]int64{101: 300, 102: 700}}
	registry := &stubRegistry{devices: map[int64][]int64{1: {101, 102}}}
	collector := NewMetricsCollector(registry, NewMetricsAggregator(oracle, 3600), 4)

	hourStart := time.Unix(1700000000, 0).UTC()
	metrics, err := collector.Collect(context.Background(), 1, hourStart)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), metrics.TotalViews)
	assert.Equal(t, DeviceMetrics{Views: 300}, metrics.PerDevice[101])
	assert.Equal(t, DeviceMetrics{Views: 700}, metrics.PerDevice[102])
	assert.Empty(t, metrics.FailedDevices)

	// Every device is queried over the same settlement hour.
	for _, deviceID := range []int64{101, 102} {
		calls := oracle.callsFor(deviceID)
		require.Len(t, calls, 1)
		assert.Equal(t, hourStart.Unix(), calls[0].startTime)
		assert.Equal(t, hourStart.Add(time.Hour).Unix(), calls[0].endTime)
	}
}

func TestCollectPartialDeviceFailure(t *testing.T) {
	oracle := &stubOracle{
		fixedViews:  map[int64]int64{1: 10, 2: 20, 3: 30},
		failDevices: map[int64]bool{2: true},
	}
	registry := &stubRegistry{devices: map[int64][]int64{7: {1, 2, 3}}}
	collector := NewMetricsCollector(registry, NewMetricsAggregator(oracle, 3600), 4)

	metrics, err := collector.Collect(context.Background(), 7, time.Unix(0, 0).UTC())
	require.NoError(t, err)

	assert.Equal(t, int64(40), metrics.TotalViews)
	assert.Equal(t, []int64{2}, metrics.FailedDevices)
	assert.NotContains(t, metrics.PerDevice, int64(2))
	assert.Len(t, metrics.PerDevice, 2)
}

func TestCollectRegistryError(t *testing.T) {
	registry := &stubRegistry{devicesErr: fmt.Errorf("registry timeout")}
	collector := NewMetricsCollector(registry, NewMetricsAggregator(&stubOracle{}, 3600), 4)

	_, err := collector.Collect(context.Background(), 1, time.Unix(0, 0).UTC())
	require.Error(t, err)
	assert.Equal(t, errors.ErrRegistryUnavailable, errors.Code(err))
}
