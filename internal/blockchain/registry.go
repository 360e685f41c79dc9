package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Soulboard/soulboard-web-sub001/pkg/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Read surface of the on-chain booth/campaign registry contract.
const registryABI = `[
	{"name":"getCampaignIds","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"ids","type":"uint256[]"}]},
	{"name":"getCampaign","type":"function","stateMutability":"view","inputs":[{"name":"campaignId","type":"uint256"}],"outputs":[{"name":"advertiser","type":"address"},{"name":"hourlyRate","type":"uint256"},{"name":"active","type":"bool"}]},
	{"name":"getCampaignDevices","type":"function","stateMutability":"view","inputs":[{"name":"campaignId","type":"uint256"}],"outputs":[{"name":"deviceIds","type":"uint256[]"}]},
	{"name":"getBoothDetails","type":"function","stateMutability":"view","inputs":[{"name":"deviceId","type":"uint256"}],"outputs":[{"name":"owner","type":"address"},{"name":"active","type":"bool"},{"name":"status","type":"uint8"}]}
]`

type BoothStatus uint8

const (
	BoothStatusUnbooked BoothStatus = iota
	BoothStatusBooked
	BoothStatusUnderMaintenance
)

func (s BoothStatus) String() string {
	switch s {
	case BoothStatusUnbooked:
		return "unbooked"
	case BoothStatusBooked:
		return "booked"
	case BoothStatusUnderMaintenance:
		return "under_maintenance"
	default:
		return "unknown"
	}
}

type Campaign struct {
	ID         int64
	Advertiser common.Address
	HourlyRate *big.Int // token base units
	Active     bool
}

type Booth struct {
	DeviceID int64
	Owner    common.Address
	Active   bool
	Status   BoothStatus
}

type Registry struct {
	client  *Client
	address common.Address
	abi     abi.ABI
}

func NewRegistry(client *Client, contractAddress string) (*Registry, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, errors.New(errors.ErrRegistryUnavailable, "failed to parse registry ABI", err)
	}

	return &Registry{
		client:  client,
		address: common.HexToAddress(contractAddress),
		abi:     parsed,
	}, nil
}

// GetAllCampaigns enumerates every campaign known to the registry.
func (r *Registry) GetAllCampaigns(ctx context.Context) ([]Campaign, error) {
	out, err := r.call(ctx, "getCampaignIds")
	if err != nil {
		return nil, err
	}

	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, errors.New(errors.ErrRegistryUnavailable, "unexpected campaign id list format", nil)
	}

	campaigns := make([]Campaign, 0, len(ids))
	for _, id := range ids {
		campaign, err := r.getCampaign(ctx, id)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *campaign)
	}

	return campaigns, nil
}

func (r *Registry) getCampaign(ctx context.Context, id *big.Int) (*Campaign, error) {
	out, err := r.call(ctx, "getCampaign", id)
	if err != nil {
		return nil, err
	}
	if len(out) < 3 {
		return nil, errors.New(errors.ErrRegistryUnavailable,
			fmt.Sprintf("short response for campaign %s", id), nil)
	}

	return &Campaign{
		ID:         id.Int64(),
		Advertiser: out[0].(common.Address),
		HourlyRate: out[1].(*big.Int),
		Active:     out[2].(bool),
	}, nil
}

// GetCampaignDevices returns the device IDs booked by a campaign.
func (r *Registry) GetCampaignDevices(ctx context.Context, campaignID int64) ([]int64, error) {
	out, err := r.call(ctx, "getCampaignDevices", big.NewInt(campaignID))
	if err != nil {
		return nil, err
	}

	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, errors.New(errors.ErrRegistryUnavailable, "unexpected device id list format", nil)
	}

	deviceIDs := make([]int64, 0, len(raw))
	for _, id := range raw {
		deviceIDs = append(deviceIDs, id.Int64())
	}
	return deviceIDs, nil
}

// GetBoothDetails returns the registration record of one device.
func (r *Registry) GetBoothDetails(ctx context.Context, deviceID int64) (*Booth, error) {
	out, err := r.call(ctx, "getBoothDetails", big.NewInt(deviceID))
	if err != nil {
		return nil, err
	}
	if len(out) < 3 {
		return nil, errors.New(errors.ErrRegistryUnavailable,
			fmt.Sprintf("short response for booth %d", deviceID), nil)
	}

	return &Booth{
		DeviceID: deviceID,
		Owner:    out[0].(common.Address),
		Active:   out[1].(bool),
		Status:   BoothStatus(out[2].(uint8)),
	}, nil
}

func (r *Registry) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.New(errors.ErrRegistryUnavailable,
			fmt.Sprintf("failed to encode %s call", method), err)
	}

	res, err := r.client.CallContract(ctx, r.address, data)
	if err != nil {
		return nil, errors.New(errors.ErrRegistryUnavailable,
			fmt.Sprintf("registry call %s failed", method), err)
	}

	out, err := r.abi.Unpack(method, res)
	if err != nil {
		return nil, errors.New(errors.ErrRegistryUnavailable,
			fmt.Sprintf("failed to decode %s response", method), err)
	}
	return out, nil
}
