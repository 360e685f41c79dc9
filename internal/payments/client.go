package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Soulboard/soulboard-web-sub001/internal/config"
	"github.com/Soulboard/soulboard-web-sub001/pkg/errors"

	"github.com/shopspring/decimal"
)

type TransferResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash"`
	Error   string `json:"error,omitempty"`
}

type transferRequest struct {
	FromHolder   string `json:"from_holder"`
	ToHolder     string `json:"to_holder"`
	TokenAddress string `json:"token_address"`
	Amount       string `json:"amount"`
}

// Client talks to the custodial ledger API that moves token balances
// between holder accounts.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.PaymentsConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

// Transfer moves amount from one holder account to another. A ledger
// rejection is returned as a TRANSFER_FAILED error alongside the result.
func (c *Client) Transfer(ctx context.Context, fromHolder, toHolder, tokenAddress string, amount decimal.Decimal) (*TransferResult, error) {
	payload, err := json.Marshal(transferRequest{
		FromHolder:   fromHolder,
		ToHolder:     toHolder,
		TokenAddress: tokenAddress,
		Amount:       amount.String(),
	})
	if err != nil {
		return nil, errors.New(errors.ErrTransferFailed, "failed to encode transfer request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transfers", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.New(errors.ErrTransferFailed, "failed to build transfer request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrTransferFailed, "transfer request failed", err)
	}
	defer resp.Body.Close()

	var result TransferResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(errors.ErrTransferFailed, "failed to decode transfer response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &result, errors.New(errors.ErrTransferFailed,
			fmt.Sprintf("ledger returned status %d", resp.StatusCode), nil)
	}
	if !result.Success {
		return &result, errors.New(errors.ErrTransferFailed,
			fmt.Sprintf("ledger rejected transfer: %s", result.Error), nil)
	}

	return &result, nil
}
