package domain

import (
	"fmt"

	"dex-trader-sol/internal/consts"
)

// TradeKind 交易方向
type TradeKind uint8

const (
	KindBuy TradeKind = iota + 1
	KindSell
)

func (k TradeKind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k TradeKind) Valid() bool {
	return k == KindBuy || k == KindSell
}

// FeeVariant 区分普通配置与双配置中的两条
type FeeVariant uint8

const (
	VariantNormal          FeeVariant = iota
	VariantLowTipHighPrice            // 低小费高优先费
	VariantHighTipLowPrice            // 高小费低优先费
)

func (v FeeVariant) String() string {
	switch v {
	case VariantLowTipHighPrice:
		return "low_tip_high_price"
	case VariantHighTipLowPrice:
		return "high_tip_low_price"
	default:
		return "normal"
	}
}

// FeeStrategyKey (通道类别, 交易方向)
type FeeStrategyKey struct {
	Class consts.ProviderClass
	Kind  TradeKind
}

// FeeStrategyValue 一条优先费配置
type FeeStrategyValue struct {
	Class         consts.ProviderClass
	Kind          TradeKind
	Variant       FeeVariant
	CULimit       uint32 // compute unit 上限
	CUPrice       uint64 // 每 CU 价格（micro-lamports）
	TipLamports   uint64 // 小费（lamports）
	DataSizeLimit uint32 // 加载账户数据大小上限，仅买入使用，0 表示不设置
}

func (v FeeStrategyValue) Key() FeeStrategyKey {
	return FeeStrategyKey{Class: v.Class, Kind: v.Kind}
}
