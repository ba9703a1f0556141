package domain

import (
	"context"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// AccountInfo 链上账户快照
type AccountInfo struct {
	Lamports uint64
	Owner    common.PublicKey
	Data     []byte
}

// SimulationResult 模拟执行结果
type SimulationResult struct {
	Logs          []string
	UnitsConsumed uint64
	Err           interface{} // 链上返回的原始错误结构，nil 表示模拟成功
}

// SignatureStatus 签名确认状态
type SignatureStatus struct {
	Slot               uint64
	ConfirmationStatus string // processed / confirmed / finalized
	Err                interface{}
}

// LedgerClient 远端账本访问，调用耗时通常在几十到几百毫秒
type LedgerClient interface {
	GetLatestBlockhash(ctx context.Context) (string, error)
	// GetAccount 账户不存在时返回 (nil, nil)
	GetAccount(ctx context.Context, addr common.PublicKey) (*AccountInfo, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	Simulate(ctx context.Context, tx types.Transaction) (*SimulationResult, error)
	Send(ctx context.Context, tx types.Transaction) (string, error)
	// GetSignatureStatuses 返回与入参等长的切片，未知签名对应 nil
	GetSignatureStatuses(ctx context.Context, sigs []string) ([]*SignatureStatus, error)
}

// DurableNonceInfo 使用前现取，不跨调用缓存
type DurableNonceInfo struct {
	Account   common.PublicKey
	Authority common.PublicKey
	Nonce     string // base58，作为交易的 recent blockhash
}

// NonceRef 调用方指定的 nonce 账户
type NonceRef struct {
	Account common.PublicKey
}
