package ledger

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/provider"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/ybbus/jsonrpc/v3"
)

// Client LedgerClient 实现：读操作走 solana-go-sdk，
// 发送 / 模拟 / 状态查询走 JSON-RPC 以便使用 base64 编码与自定义参数
type Client struct {
	sdk      *client.Client
	rpc      jsonrpc.RPCClient
	endpoint string
}

var _ domain.LedgerClient = (*Client)(nil)

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		sdk: client.NewClient(endpoint),
		rpc: jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: timeout},
		}),
		endpoint: endpoint,
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	res, err := c.sdk.GetLatestBlockhash(ctx)
	if err != nil {
		return "", &domain.LedgerError{Op: "getLatestBlockhash", Err: err}
	}
	return res.Blockhash, nil
}

func (c *Client) GetAccount(ctx context.Context, addr common.PublicKey) (*domain.AccountInfo, error) {
	info, err := c.sdk.GetAccountInfo(ctx, addr.ToBase58())
	if err != nil {
		return nil, &domain.LedgerError{Op: "getAccountInfo", Err: err}
	}
	if info.Lamports == 0 && len(info.Data) == 0 {
		return nil, nil
	}
	return &domain.AccountInfo{
		Lamports: info.Lamports,
		Owner:    info.Owner,
		Data:     info.Data,
	}, nil
}

func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	v, err := c.sdk.GetMinimumBalanceForRentExemption(ctx, size)
	if err != nil {
		return 0, &domain.LedgerError{Op: "getMinimumBalanceForRentExemption", Err: err}
	}
	return v, nil
}

func (c *Client) Send(ctx context.Context, tx types.Transaction) (string, error) {
	encoded, err := provider.EncodeTransaction(tx)
	if err != nil {
		return "", err
	}
	var sig string
	err = c.rpc.CallFor(ctx, &sig, "sendTransaction", encoded, map[string]interface{}{
		"encoding":      "base64",
		"skipPreflight": true,
		"maxRetries":    0,
	})
	if err != nil {
		return "", &domain.LedgerError{Op: "sendTransaction", Err: err}
	}
	return sig, nil
}

type simulateResponse struct {
	Value struct {
		Err           interface{} `json:"err"`
		Logs          []string    `json:"logs"`
		UnitsConsumed uint64      `json:"unitsConsumed"`
	} `json:"value"`
}

func (c *Client) Simulate(ctx context.Context, tx types.Transaction) (*domain.SimulationResult, error) {
	encoded, err := provider.EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}
	var out simulateResponse
	err = c.rpc.CallFor(ctx, &out, "simulateTransaction", encoded, map[string]interface{}{
		"encoding":   "base64",
		"sigVerify":  true,
		"commitment": "processed",
	})
	if err != nil {
		return nil, &domain.LedgerError{Op: "simulateTransaction", Err: err}
	}
	return &domain.SimulationResult{
		Logs:          out.Value.Logs,
		UnitsConsumed: out.Value.UnitsConsumed,
		Err:           out.Value.Err,
	}, nil
}

type signatureStatusesResponse struct {
	Value []*struct {
		Slot               uint64      `json:"slot"`
		Err                interface{} `json:"err"`
		ConfirmationStatus string      `json:"confirmationStatus"`
	} `json:"value"`
}

func (c *Client) GetSignatureStatuses(ctx context.Context, sigs []string) ([]*domain.SignatureStatus, error) {
	var out signatureStatusesResponse
	err := c.rpc.CallFor(ctx, &out, "getSignatureStatuses", sigs, map[string]interface{}{
		"searchTransactionHistory": false,
	})
	if err != nil {
		return nil, &domain.LedgerError{Op: "getSignatureStatuses", Err: err}
	}
	if len(out.Value) != len(sigs) {
		return nil, &domain.LedgerError{Op: "getSignatureStatuses", Err: fmt.Errorf("status count mismatch: got=%d want=%d", len(out.Value), len(sigs))}
	}
	statuses := make([]*domain.SignatureStatus, len(sigs))
	for i, v := range out.Value {
		if v == nil {
			continue
		}
		statuses[i] = &domain.SignatureStatus{
			Slot:               v.Slot,
			ConfirmationStatus: v.ConfirmationStatus,
			Err:                v.Err,
		}
	}
	return statuses, nil
}
