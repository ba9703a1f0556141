package cache

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"

	"github.com/blocto/solana-go-sdk/common"
)

// DeriveMode 地址派生方式
type DeriveMode uint8

const (
	ModeStandard DeriveMode = iota // ATA：FindProgramAddress 逐个尝试 bump
	ModeSeed                       // createWithSeed：一次哈希，无需尝试
)

func (m DeriveMode) String() string {
	if m == ModeSeed {
		return "seed"
	}
	return "standard"
}

// DefaultAddressCapacity 地址缓存容量上限
const DefaultAddressCapacity = 50_000

// DeriveFunc 地址派生函数，测试中可替换以统计调用次数
type DeriveFunc func(owner, mint, program common.PublicKey, mode DeriveMode) (common.PublicKey, error)

type addressKey struct {
	owner   common.PublicKey
	mint    common.PublicKey
	program common.PublicKey
	mode    DeriveMode
}

// AddressCache 派生地址缓存
// 派生结果只由 key 决定，写入后永不变化，因此不需要淘汰；达到容量后只计算不写入
type AddressCache struct {
	entries  sync.Map // addressKey -> common.PublicKey
	size     atomic.Int64
	capacity int64
	derive   DeriveFunc
}

func NewAddressCache(capacity int, derive DeriveFunc) *AddressCache {
	if capacity <= 0 {
		capacity = DefaultAddressCapacity
	}
	if derive == nil {
		derive = DeriveAddress
	}
	return &AddressCache{
		capacity: int64(capacity),
		derive:   derive,
	}
}

// IsNativeMint WSOL 与原生 SOL 的账户布局不同，不能使用 seed 派生
func IsNativeMint(mint common.PublicKey) bool {
	return mint == consts.WSOLMint || mint == consts.NativeSOLMint
}

// Resolve 返回 (owner, mint, program) 对应的 token 账户地址
// fast 对原生币无效，按标准 ATA 派生
func (c *AddressCache) Resolve(owner, mint, program common.PublicKey, fast bool) (common.PublicKey, error) {
	mode := ModeStandard
	if fast && !IsNativeMint(mint) {
		mode = ModeSeed
	}
	key := addressKey{owner: owner, mint: mint, program: program, mode: mode}
	if v, ok := c.entries.Load(key); ok {
		return v.(common.PublicKey), nil
	}

	addr, err := c.derive(owner, mint, program, mode)
	if err != nil {
		return common.PublicKey{}, err
	}

	if c.size.Load() >= c.capacity {
		return addr, nil
	}
	if _, loaded := c.entries.LoadOrStore(key, addr); !loaded {
		c.size.Add(1)
	}
	return addr, nil
}

// Len 当前缓存条目数
func (c *AddressCache) Len() int {
	return int(c.size.Load())
}

// DeriveAddress 默认派生实现
func DeriveAddress(owner, mint, program common.PublicKey, mode DeriveMode) (common.PublicKey, error) {
	switch mode {
	case ModeSeed:
		if IsNativeMint(mint) {
			return common.PublicKey{}, &domain.DerivationError{
				Owner: owner.ToBase58(), Mint: mint.ToBase58(), Reason: "seed derivation not allowed for native mint",
			}
		}
		addr, err := CreateWithSeed(owner, SeedForMint(mint), program)
		if err != nil {
			return common.PublicKey{}, &domain.DerivationError{
				Owner: owner.ToBase58(), Mint: mint.ToBase58(), Reason: "create with seed", Err: err,
			}
		}
		return addr, nil
	default:
		addr, _, err := common.FindProgramAddress(
			[][]byte{owner[:], program[:], mint[:]},
			consts.AssociatedTokenProgram,
		)
		if err != nil {
			return common.PublicKey{}, &domain.DerivationError{
				Owner: owner.ToBase58(), Mint: mint.ToBase58(), Reason: "find program address", Err: err,
			}
		}
		return addr, nil
	}
}

// SeedForMint 取 mint 的 FNV-1a 64 低 32 位，格式化为 8 位小写十六进制
func SeedForMint(mint common.PublicKey) string {
	h := fnv.New64a()
	_, _ = h.Write(mint[:])
	return fmt.Sprintf("%08x", uint32(h.Sum64()))
}

var pdaMarker = []byte(consts.PDAMarker)

// CreateWithSeed 先校验 seed 长度与 owner 再调用 common.CreateWithSeed，后者不做校验
func CreateWithSeed(base common.PublicKey, seed string, owner common.PublicKey) (common.PublicKey, error) {
	if len(seed) > consts.MaxSeedLength {
		return common.PublicKey{}, fmt.Errorf("max seed length exceeded: %d", len(seed))
	}
	if bytes.HasSuffix(owner[:], pdaMarker) {
		return common.PublicKey{}, fmt.Errorf("illegal owner %s", owner.ToBase58())
	}
	return common.CreateWithSeed(base, seed, owner), nil
}
