package provider

import (
	"context"
	"fmt"
	"time"

	"dex-trader-sol/internal/consts"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const DefaultTipFloorURL = "https://bundles.jito.wtf/api/v1/bundles/tip_floor"

// TipFloor Jito 最近落地小费分位数（单位 SOL）
type TipFloor struct {
	Time              string          `json:"time"`
	LandedTips25th    decimal.Decimal `json:"landed_tips_25th_percentile"`
	LandedTips50th    decimal.Decimal `json:"landed_tips_50th_percentile"`
	LandedTips75th    decimal.Decimal `json:"landed_tips_75th_percentile"`
	LandedTips95th    decimal.Decimal `json:"landed_tips_95th_percentile"`
	LandedTips99th    decimal.Decimal `json:"landed_tips_99th_percentile"`
	EmaLandedTips50th decimal.Decimal `json:"ema_landed_tips_50th_percentile"`
}

// PercentileLamports 支持 25/50/75/95/99，其他值按 50 处理
func (f TipFloor) PercentileLamports(p int) uint64 {
	var sol decimal.Decimal
	switch p {
	case 25:
		sol = f.LandedTips25th
	case 75:
		sol = f.LandedTips75th
	case 95:
		sol = f.LandedTips95th
	case 99:
		sol = f.LandedTips99th
	default:
		sol = f.LandedTips50th
	}
	if sol.IsNegative() {
		return 0
	}
	return uint64(sol.Mul(decimal.NewFromInt(consts.LamportsPerSol)).Truncate(0).IntPart())
}

// TipFloorClient 查询 Jito tip floor
type TipFloorClient struct {
	url    string
	client *resty.Client
}

func NewTipFloorClient(url string, timeout time.Duration) *TipFloorClient {
	if url == "" {
		url = DefaultTipFloorURL
	}
	return &TipFloorClient{
		url:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

func (c *TipFloorClient) Fetch(ctx context.Context) (TipFloor, error) {
	var out []TipFloor
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.url)
	if err != nil {
		return TipFloor{}, fmt.Errorf("tip floor request: %w", err)
	}
	if resp.IsError() {
		return TipFloor{}, fmt.Errorf("tip floor http %s", resp.Status())
	}
	if len(out) == 0 {
		return TipFloor{}, fmt.Errorf("tip floor empty response")
	}
	return out[0], nil
}
