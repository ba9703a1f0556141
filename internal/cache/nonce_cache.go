package cache

import (
	"context"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/near/borsh-go"
)

const (
	nonceAccountSize      = 80
	nonceStateInitialized = 1
	nonceFetchOp          = "get nonce account"
)

// nonceAccountData System 程序 nonce 账户布局
type nonceAccountData struct {
	Version        uint32
	State          uint32
	Authority      common.PublicKey
	Nonce          [32]byte
	LamportsPerSig uint64
}

// NonceCache 按需读取 durable nonce
// nonce 被消费后链上值即改变，本地缓存会导致重放失败，因此每次都访问账本
type NonceCache struct {
	ledger domain.LedgerClient
}

func NewNonceCache(ledger domain.LedgerClient) *NonceCache {
	return &NonceCache{ledger: ledger}
}

// Fetch 读取 nonce 账户当前值
func (c *NonceCache) Fetch(ctx context.Context, account common.PublicKey) (domain.DurableNonceInfo, error) {
	info, err := c.ledger.GetAccount(ctx, account)
	if err != nil {
		return domain.DurableNonceInfo{}, &domain.LedgerError{Op: nonceFetchOp, Err: err}
	}
	if info == nil {
		return domain.DurableNonceInfo{}, domain.NewParameterError("durable_nonce", "account %s not found", account.ToBase58())
	}
	if info.Owner != consts.SystemProgram {
		return domain.DurableNonceInfo{}, domain.NewParameterError("durable_nonce", "account %s not owned by system program", account.ToBase58())
	}
	return DecodeNonceAccount(account, info.Data)
}

// DecodeNonceAccount 解析 80 字节 nonce 账户
func DecodeNonceAccount(account common.PublicKey, data []byte) (domain.DurableNonceInfo, error) {
	if len(data) < nonceAccountSize {
		return domain.DurableNonceInfo{}, domain.NewParameterError("durable_nonce", "account %s data too short: %d", account.ToBase58(), len(data))
	}
	var raw nonceAccountData
	if err := borsh.Deserialize(&raw, data[:nonceAccountSize]); err != nil {
		return domain.DurableNonceInfo{}, domain.NewParameterError("durable_nonce", "decode account %s: %v", account.ToBase58(), err)
	}
	if raw.State != nonceStateInitialized {
		return domain.DurableNonceInfo{}, domain.NewParameterError("durable_nonce", "account %s not initialized (state=%d)", account.ToBase58(), raw.State)
	}
	return domain.DurableNonceInfo{
		Account:   account,
		Authority: raw.Authority,
		Nonce:     types.Hash(raw.Nonce).String(),
	}, nil
}
