package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand/v2"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	soltypes "github.com/blocto/solana-go-sdk/types"
)

// Descriptor 加速通道描述
type Descriptor struct {
	Name           string
	Class          consts.ProviderClass
	Endpoint       string
	MinTipLamports uint64             // 仅对强制下限的类别生效
	TipAccounts    []common.PublicKey // 小费收款账户，随机选一个
}

// PickTipAccount 随机选择小费账户，未配置时返回 false
func (d Descriptor) PickTipAccount() (common.PublicKey, bool) {
	if len(d.TipAccounts) == 0 {
		return common.PublicKey{}, false
	}
	acc := d.TipAccounts[rand.IntN(len(d.TipAccounts))]
	if types.IsZero(acc) {
		return common.PublicKey{}, false
	}
	return acc, true
}

// EffectiveTip 强制下限的类别把不足下限的小费抬到下限，其余类别原样返回
func (d Descriptor) EffectiveTip(tip uint64) uint64 {
	if !d.Class.EnforcesTipFloor() {
		return tip
	}
	floor := d.MinTipLamports
	if floor == 0 {
		floor = d.Class.MinTipLamports()
	}
	if tip < floor {
		return floor
	}
	return tip
}

// Provider 加速通道客户端：每次 Send 只尝试一次，重试由调用方决定
type Provider interface {
	Descriptor() Descriptor
	Send(ctx context.Context, tx soltypes.Transaction, kind domain.TradeKind) (string, error)
}

// EncodeTransaction 序列化为 base64
func EncodeTransaction(tx soltypes.Transaction) (string, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// LocalSignature 交易首个签名，通道未返回签名时使用
func LocalSignature(tx soltypes.Transaction) string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return types.SignatureToBase58(tx.Signatures[0])
}

// DefaultTipAccounts 按类别返回内置小费账户
func DefaultTipAccounts(class consts.ProviderClass) []common.PublicKey {
	if class != consts.ProviderJito {
		return nil
	}
	accounts, err := types.TryPubkeysFromBase58(consts.JitoTipAccountStrs)
	if err != nil {
		return nil
	}
	return accounts
}
