package feestrategy

import (
	"errors"
	"sync"
	"testing"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_SetUniform(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetUniform(200_000, 1_000, 100_000, 50_000, 256*1024))

	assert.Equal(t, len(consts.AllProviderClasses())*2, tbl.Len())
	for _, class := range consts.AllProviderClasses() {
		buy := tbl.Get(class, domain.KindBuy)
		require.Len(t, buy, 1)
		assert.Equal(t, uint64(100_000), buy[0].TipLamports)
		assert.Equal(t, domain.VariantNormal, buy[0].Variant)

		sell := tbl.Get(class, domain.KindSell)
		require.Len(t, sell, 1)
		assert.Equal(t, uint64(50_000), sell[0].TipLamports)
	}
}

func TestTable_InvalidInput(t *testing.T) {
	tbl := NewTable()
	var pe *domain.ParameterError

	err := tbl.SetUniform(0, 1, 1, 1, 0)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "cu_limit", pe.Field)

	err = tbl.SetForClass(consts.ProviderJito, domain.TradeKind(9), 1, 1, 1, 0)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "kind", pe.Field)

	assert.Equal(t, 0, tbl.Len())
}

func TestTable_LastWriteWins(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetDual(consts.ProviderJito, domain.KindBuy, 150_000, 100, 5_000, 10_000, 500_000, 0))
	require.Len(t, tbl.Get(consts.ProviderJito, domain.KindBuy), 2)

	// 普通配置覆盖双配置
	require.NoError(t, tbl.SetForClass(consts.ProviderJito, domain.KindBuy, 120_000, 200, 30_000, 0))
	values := tbl.Get(consts.ProviderJito, domain.KindBuy)
	require.Len(t, values, 1)
	assert.Equal(t, uint64(30_000), values[0].TipLamports)

	// 双配置再覆盖回来
	require.NoError(t, tbl.SetDual(consts.ProviderJito, domain.KindBuy, 150_000, 100, 5_000, 10_000, 500_000, 0))
	values = tbl.Get(consts.ProviderJito, domain.KindBuy)
	require.Len(t, values, 2)
	assert.Equal(t, domain.VariantLowTipHighPrice, values[0].Variant)
	assert.Equal(t, uint64(10_000), values[0].TipLamports)
	assert.Equal(t, uint64(5_000), values[0].CUPrice)
	assert.Equal(t, domain.VariantHighTipLowPrice, values[1].Variant)
	assert.Equal(t, uint64(500_000), values[1].TipLamports)
	assert.Equal(t, uint64(100), values[1].CUPrice)
}

func TestTable_TipStoredVerbatim(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetForClass(consts.ProviderJito, domain.KindSell, 100_000, 1, 1, 0))
	assert.Equal(t, uint64(1), tbl.Get(consts.ProviderJito, domain.KindSell)[0].TipLamports)
}

func TestTable_GetReturnsCopy(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetForClass(consts.ProviderDefault, domain.KindBuy, 100_000, 1, 0, 0))
	got := tbl.Get(consts.ProviderDefault, domain.KindBuy)
	got[0].CUPrice = 999
	assert.Equal(t, uint64(1), tbl.Get(consts.ProviderDefault, domain.KindBuy)[0].CUPrice)
	assert.Nil(t, tbl.Get(consts.ProviderNode1, domain.KindBuy))
}

func TestTable_RemoveClearList(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetForClass(consts.ProviderJito, domain.KindSell, 100_000, 1, 1_000, 0))
	require.NoError(t, tbl.SetForClass(consts.ProviderDefault, domain.KindBuy, 100_000, 1, 0, 0))
	require.NoError(t, tbl.SetDual(consts.ProviderJito, domain.KindBuy, 100_000, 1, 2, 3, 4, 0))

	list := tbl.List()
	require.Len(t, list, 4)
	assert.Equal(t, consts.ProviderDefault, list[0].Class)
	assert.Equal(t, domain.KindBuy, list[1].Kind)
	assert.Equal(t, domain.VariantLowTipHighPrice, list[1].Variant)
	assert.Equal(t, domain.VariantHighTipLowPrice, list[2].Variant)
	assert.Equal(t, domain.KindSell, list[3].Kind)

	tbl.Remove(consts.ProviderJito, domain.KindBuy)
	assert.Nil(t, tbl.Get(consts.ProviderJito, domain.KindBuy))
	assert.Equal(t, 2, tbl.Len())

	tbl.Clear()
	assert.Equal(t, 0, tbl.Len())
	assert.Empty(t, tbl.List())
}

// 读方只能看到完整的普通配置或完整的双配置
func TestTable_ConcurrentReadsSeeWholeValues(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetForClass(consts.ProviderJito, domain.KindBuy, 100_000, 1, 1_000, 0))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				values := tbl.Get(consts.ProviderJito, domain.KindBuy)
				switch len(values) {
				case 1:
					assert.Equal(t, domain.VariantNormal, values[0].Variant)
				case 2:
					assert.Equal(t, domain.VariantLowTipHighPrice, values[0].Variant)
					assert.Equal(t, domain.VariantHighTipLowPrice, values[1].Variant)
				default:
					assert.Failf(t, "unexpected entry count", "%d", len(values))
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			_ = tbl.SetDual(consts.ProviderJito, domain.KindBuy, 100_000, 1, 2, 3, 4, 0)
		} else {
			_ = tbl.SetForClass(consts.ProviderJito, domain.KindBuy, 100_000, 1, 1_000, 0)
		}
	}
	close(stop)
	wg.Wait()
}

func TestTable_UpdateIsAtomic(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetForClass(consts.ProviderJito, domain.KindBuy, 200_000, 1_000, 0, 0))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tbl.Update(consts.ProviderJito, domain.KindBuy, func(cur []domain.FeeStrategyValue) []domain.FeeStrategyValue {
				cur[0].TipLamports++
				return cur
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got := tbl.Get(consts.ProviderJito, domain.KindBuy)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(workers), got[0].TipLamports, "每次读改写都基于最新值")
	assert.Equal(t, uint64(1_000), got[0].CUPrice)
}

func TestTable_UpdateNoopAndInvalid(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetDual(consts.ProviderJito, domain.KindSell, 200_000, 100, 5_000, 10_000, 500_000, 0))

	changed, err := tbl.Update(consts.ProviderJito, domain.KindSell, func(cur []domain.FeeStrategyValue) []domain.FeeStrategyValue {
		assert.Len(t, cur, 2)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, tbl.Get(consts.ProviderJito, domain.KindSell), 2)

	// 修改的是副本，未返回时不影响表
	_, _ = tbl.Update(consts.ProviderJito, domain.KindSell, func(cur []domain.FeeStrategyValue) []domain.FeeStrategyValue {
		cur[0].TipLamports = 1
		return nil
	})
	assert.Equal(t, uint64(10_000), tbl.Get(consts.ProviderJito, domain.KindSell)[0].TipLamports)

	_, err = tbl.Update(consts.ProviderJito, domain.KindSell, func(cur []domain.FeeStrategyValue) []domain.FeeStrategyValue {
		cur[0].CULimit = 0
		return cur
	})
	var pe *domain.ParameterError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "cu_limit", pe.Field)

	_, err = tbl.Update(consts.ProviderJito, domain.TradeKind(9), func(cur []domain.FeeStrategyValue) []domain.FeeStrategyValue { return cur })
	assert.Error(t, err)
}
