package blockchain

import (
	"context"
	"fmt"
	"time"

	"github.com/Soulboard/soulboard-web-sub001/internal/config"
	"github.com/Soulboard/soulboard-web-sub001/pkg/errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

type Client struct {
	chainCfg *config.ChainConfig
	client   *ethclient.Client
}

// NewClient creates a read-only client for the configured chain.
func NewClient(chainCfg *config.ChainConfig) (*Client, error) {
	client, err := ethclient.Dial(chainCfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("failed to connect RPC: %s", chainCfg.RPCURL), err)
	}

	return &Client{
		chainCfg: chainCfg,
		client:   client,
	}, nil
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	c.client.Close()
}

// CallContract executes a read-only contract call against the latest
// block, bounded by the configured request timeout.
func (c *Client) CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.chainCfg.RequestTimeout)*time.Second)
	defer cancel()

	msg := ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}

	return c.client.CallContract(ctx, msg, nil)
}

// GetLatestBlockNumber returns the chain head block number.
func (c *Client) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.chainCfg.RequestTimeout)*time.Second)
	defer cancel()

	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrRPConnect, "failed to fetch latest block", err)
	}
	return header.Number.Int64(), nil
}
