package svc

import (
	"testing"

	"dex-trader-sol/internal/config"
	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFeeTable(t *testing.T) {
	table, err := NewFeeTable(config.FeeConfig{
		CULimit:    200_000,
		CUPrice:    100_000,
		BuyTipSol:  "0.0002",
		SellTipSol: "0.0001",
		Dual: []config.DualFeeConfig{
			{Class: "Jito", Kind: "buy", CULimit: 120_000, LowCUPrice: 50_000, HighCUPrice: 500_000, LowTipSol: "0.0001", HighTipSol: "0.001"},
		},
	})
	require.NoError(t, err)

	buy := table.Get(consts.ProviderJito, domain.KindBuy)
	require.Len(t, buy, 2)
	assert.Equal(t, domain.VariantLowTipHighPrice, buy[0].Variant)
	assert.Equal(t, uint64(100_000), buy[0].TipLamports)
	assert.Equal(t, uint64(500_000), buy[0].CUPrice)
	assert.Equal(t, uint64(1_000_000), buy[1].TipLamports)
	assert.Equal(t, uint64(50_000), buy[1].CUPrice)

	sell := table.Get(consts.ProviderJito, domain.KindSell)
	require.Len(t, sell, 1)
	assert.Equal(t, uint64(100_000), sell[0].TipLamports)

	other := table.Get(consts.ProviderBloxroute, domain.KindBuy)
	require.Len(t, other, 1)
	assert.Equal(t, uint64(200_000), other[0].TipLamports)
}

func TestNewFeeTable_InvalidDual(t *testing.T) {
	_, err := NewFeeTable(config.FeeConfig{
		CULimit: 200_000,
		Dual:    []config.DualFeeConfig{{Class: "unknown", Kind: "buy", CULimit: 1}},
	})
	assert.Error(t, err)

	_, err = NewFeeTable(config.FeeConfig{CULimit: 0})
	assert.Error(t, err)
}
