package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOwner = types.PubkeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

// countingDerive 统计派生调用次数
func countingDerive(calls *atomic.Int64) DeriveFunc {
	return func(owner, mint, program common.PublicKey, mode DeriveMode) (common.PublicKey, error) {
		calls.Add(1)
		return DeriveAddress(owner, mint, program, mode)
	}
}

func TestDeriveAddress_Standard(t *testing.T) {
	addr, err := DeriveAddress(testOwner, consts.USDCMint, consts.TokenProgram, ModeStandard)
	require.NoError(t, err)
	assert.Equal(t, "FGETo8T8wMcN2wCjav8VK6eh3dLk63evNDPxzLSJra8B", addr.ToBase58())

	addr, err = DeriveAddress(testOwner, consts.WSOLMint, consts.TokenProgram, ModeStandard)
	require.NoError(t, err)
	assert.Equal(t, "8LjUgMjzZuHj8VdyxzkmLLQVmW4C3gd56md1nLd76TNW", addr.ToBase58())
}

func TestDeriveAddress_Seed(t *testing.T) {
	assert.Equal(t, "ade8566f", SeedForMint(consts.USDCMint))

	addr, err := DeriveAddress(testOwner, consts.USDCMint, consts.TokenProgram, ModeSeed)
	require.NoError(t, err)
	assert.Equal(t, "4ijNZYfNhMt6QgBPuxEoE7XGhCCtVqnmMaTxaGC888Dx", addr.ToBase58())

	addr2022, err := DeriveAddress(testOwner, consts.USDCMint, consts.TokenProgram2022, ModeSeed)
	require.NoError(t, err)
	assert.Equal(t, "EAZc2UAFQXX7GkHERvqX4Nmby75EHKe7yM9DmqMyWCFN", addr2022.ToBase58())
}

func TestDeriveAddress_SeedRejectsNativeMint(t *testing.T) {
	_, err := DeriveAddress(testOwner, consts.WSOLMint, consts.TokenProgram, ModeSeed)
	var de *domain.DerivationError
	require.True(t, errors.As(err, &de))
}

func TestCreateWithSeed_Errors(t *testing.T) {
	_, err := CreateWithSeed(testOwner, "0123456789012345678901234567890123", consts.TokenProgram)
	assert.Error(t, err, "seed 超过 32 字节")

	var pdaOwner common.PublicKey
	copy(pdaOwner[32-len(consts.PDAMarker):], consts.PDAMarker)
	_, err = CreateWithSeed(testOwner, "abc", pdaOwner)
	assert.Error(t, err)
}

func TestCreateWithSeed_Valid(t *testing.T) {
	seed := SeedForMint(consts.USDCMint)
	addr, err := CreateWithSeed(testOwner, seed, consts.TokenProgram)
	require.NoError(t, err)
	assert.Equal(t, common.CreateWithSeed(testOwner, seed, consts.TokenProgram), addr)
	assert.Equal(t, "4ijNZYfNhMt6QgBPuxEoE7XGhCCtVqnmMaTxaGC888Dx", addr.ToBase58())
}

func TestAddressCache_Determinism(t *testing.T) {
	var calls atomic.Int64
	c := NewAddressCache(0, countingDerive(&calls))

	first, err := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, false)
	require.NoError(t, err)
	second, err := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load(), "第二次调用不应再派生")
	assert.Equal(t, 1, c.Len())
}

func TestAddressCache_ModeIndependence(t *testing.T) {
	var calls atomic.Int64
	c := NewAddressCache(0, countingDerive(&calls))

	std, err := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, false)
	require.NoError(t, err)
	seed, err := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, true)
	require.NoError(t, err)

	assert.NotEqual(t, std, seed)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, 2, c.Len())

	// 再次读取两种模式都命中缓存
	std2, _ := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, false)
	seed2, _ := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, true)
	assert.Equal(t, std, std2)
	assert.Equal(t, seed, seed2)
	assert.Equal(t, int64(2), calls.Load())
}

func TestAddressCache_NativeMintIgnoresFast(t *testing.T) {
	c := NewAddressCache(0, nil)
	for _, mint := range []common.PublicKey{consts.WSOLMint, consts.NativeSOLMint} {
		fast, err := c.Resolve(testOwner, mint, consts.TokenProgram, true)
		require.NoError(t, err)
		std, err := c.Resolve(testOwner, mint, consts.TokenProgram, false)
		require.NoError(t, err)
		assert.Equal(t, std, fast)
	}
	assert.Equal(t, 2, c.Len())
}

func TestAddressCache_Capacity(t *testing.T) {
	var calls atomic.Int64
	c := NewAddressCache(1, countingDerive(&calls))

	_, err := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, false)
	require.NoError(t, err)
	// 满了之后只计算不写入
	for i := 0; i < 3; i++ {
		_, err = c.Resolve(testOwner, consts.USDTMint, consts.TokenProgram, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(4), calls.Load())
}

func TestAddressCache_DeriveError(t *testing.T) {
	boom := errors.New("boom")
	c := NewAddressCache(0, func(common.PublicKey, common.PublicKey, common.PublicKey, DeriveMode) (common.PublicKey, error) {
		return common.PublicKey{}, boom
	})
	_, err := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, false)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestAddressCache_Concurrent(t *testing.T) {
	c := NewAddressCache(0, nil)
	want, err := DeriveAddress(testOwner, consts.USDCMint, consts.TokenProgram, ModeStandard)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Resolve(testOwner, consts.USDCMint, consts.TokenProgram, false)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
