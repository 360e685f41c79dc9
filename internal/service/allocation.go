package service

import (
	"fmt"

	"github.com/Soulboard/soulboard-web-sub001/pkg/errors"

	"github.com/shopspring/decimal"
)

// AllocationPolicy fixes how a campaign's hourly rate is split among its
// booked devices: every device receives hourlyRate×MinShare flat, and
// the remaining (1−MinShare) pool is weighted by view share.
type AllocationPolicy struct {
	MinShare    decimal.Decimal
	AmountScale int32
}

func DefaultAllocationPolicy() AllocationPolicy {
	return AllocationPolicy{
		MinShare:    decimal.NewFromFloat(0.10),
		AmountScale: 6,
	}
}

type Allocation struct {
	DeviceID  int64
	Views     int64
	ViewShare decimal.Decimal
	Amount    decimal.Decimal
}

// Allocate computes the payment per device. Pure and deterministic.
//
// amount(device) = hourlyRate×MinShare + hourlyRate×(1−MinShare)×viewShare
//
// with viewShare = views/totalViews, or zero for every device when
// totalViews is zero (minimum only; the performance pool stays with the
// advertiser). Amounts are rounded down to AmountScale decimal places;
// the flooring dust is forfeited, never redistributed.
func (p AllocationPolicy) Allocate(hourlyRate decimal.Decimal, perDeviceViews map[int64]int64) (map[int64]Allocation, error) {
	if len(perDeviceViews) == 0 {
		return nil, errors.New(errors.ErrAllocationInvariant, "empty device set reached the allocator", nil)
	}
	if !hourlyRate.IsPositive() {
		return nil, errors.New(errors.ErrAllocationInvariant,
			fmt.Sprintf("non-positive hourly rate %s", hourlyRate), nil)
	}
	if p.MinShare.IsNegative() || p.MinShare.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.New(errors.ErrAllocationInvariant,
			fmt.Sprintf("minimum share %s outside [0,1)", p.MinShare), nil)
	}

	minimumPayment := hourlyRate.Mul(p.MinShare)
	performancePool := hourlyRate.Sub(minimumPayment)

	var totalViews int64
	for _, views := range perDeviceViews {
		if views < 0 {
			return nil, errors.New(errors.ErrAllocationInvariant,
				fmt.Sprintf("negative view count %d", views), nil)
		}
		totalViews += views
	}

	totalViewsDec := decimal.NewFromInt(totalViews)
	allocations := make(map[int64]Allocation, len(perDeviceViews))

	for deviceID, views := range perDeviceViews {
		viewShare := decimal.Zero
		if totalViews > 0 {
			viewShare = decimal.NewFromInt(views).Div(totalViewsDec)
		}

		amount := minimumPayment.Add(performancePool.Mul(viewShare)).RoundDown(p.AmountScale)

		allocations[deviceID] = Allocation{
			DeviceID:  deviceID,
			Views:     views,
			ViewShare: viewShare,
			Amount:    amount,
		}
	}

	return allocations, nil
}
