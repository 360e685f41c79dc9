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

// Read surface of the on-chain performance oracle contract.
const oracleABI = `[
	{"name":"getAggregatedMetrics","type":"function","stateMutability":"view","inputs":[{"name":"deviceId","type":"uint256"},{"name":"startTime","type":"uint256"},{"name":"endTime","type":"uint256"}],"outputs":[{"name":"views","type":"uint256"},{"name":"taps","type":"uint256"}]}
]`

type Oracle struct {
	client  *Client
	address common.Address
	abi     abi.ABI
}

func NewOracle(client *Client, contractAddress string) (*Oracle, error) {
	parsed, err := abi.JSON(strings.NewReader(oracleABI))
	if err != nil {
		return nil, errors.New(errors.ErrOracleUnavailable, "failed to parse oracle ABI", err)
	}

	return &Oracle{
		client:  client,
		address: common.HexToAddress(contractAddress),
		abi:     parsed,
	}, nil
}

// GetAggregatedMetrics returns the view and tap counters recorded for a
// device over the half-open window [startTime, endTime), UNIX seconds.
func (o *Oracle) GetAggregatedMetrics(ctx context.Context, deviceID, startTime, endTime int64) (int64, int64, error) {
	data, err := o.abi.Pack("getAggregatedMetrics",
		big.NewInt(deviceID), big.NewInt(startTime), big.NewInt(endTime))
	if err != nil {
		return 0, 0, errors.New(errors.ErrOracleUnavailable, "failed to encode oracle call", err)
	}

	res, err := o.client.CallContract(ctx, o.address, data)
	if err != nil {
		return 0, 0, errors.New(errors.ErrOracleUnavailable,
			fmt.Sprintf("oracle call failed for device %d window [%d,%d)", deviceID, startTime, endTime), err)
	}

	out, err := o.abi.Unpack("getAggregatedMetrics", res)
	if err != nil || len(out) < 2 {
		return 0, 0, errors.New(errors.ErrOracleUnavailable, "failed to decode oracle response", err)
	}

	views := out[0].(*big.Int)
	taps := out[1].(*big.Int)

	return views.Int64(), taps.Int64(), nil
}
