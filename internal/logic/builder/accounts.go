package builder

import (
	"dex-trader-sol/internal/cache"
	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/instruction"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// TokenAccounts token 账户的地址解析与创建/关闭指令，供各协议构建器共用
type TokenAccounts struct {
	addresses *cache.AddressCache
	rent      *cache.RentCache
}

func NewTokenAccounts(addresses *cache.AddressCache, rent *cache.RentCache) *TokenAccounts {
	if addresses == nil {
		addresses = cache.NewAddressCache(cache.DefaultAddressCapacity, nil)
	}
	if rent == nil {
		rent = cache.NewRentCache()
	}
	return &TokenAccounts{addresses: addresses, rent: rent}
}

// Address 原生币始终走标准 ATA
func (a *TokenAccounts) Address(owner, mint, program common.PublicKey, fast bool) (common.PublicKey, error) {
	return a.addresses.Resolve(owner, mint, program, fast)
}

// Create 返回 (账户地址, 创建指令)
// fast 且非原生币时用 CreateAccountWithSeed + InitializeAccount3，否则用幂等 ATA 创建
func (a *TokenAccounts) Create(payer, owner, mint, program common.PublicKey, fast bool) (common.PublicKey, []types.Instruction, error) {
	account, err := a.addresses.Resolve(owner, mint, program, fast)
	if err != nil {
		return common.PublicKey{}, nil, err
	}
	if fast && !cache.IsNativeMint(mint) {
		ixs, err := instruction.CreateATAWithSeed(payer, owner, mint, program, account, cache.SeedForMint(mint), a.rent.Get(program))
		if err != nil {
			return common.PublicKey{}, nil, &domain.AssemblyError{Stage: "create_account", Reason: "seed account", Err: err}
		}
		return account, ixs, nil
	}
	return account, []types.Instruction{instruction.CreateATAIdempotent(payer, account, owner, mint, program)}, nil
}

// Close 关闭账户，租金退回 dest
func (a *TokenAccounts) Close(account, dest, owner, program common.PublicKey) types.Instruction {
	return instruction.CloseAccount(account, dest, owner, program)
}

// ProgramFor 为空时默认 Token 程序
func ProgramFor(program common.PublicKey) common.PublicKey {
	if program == (common.PublicKey{}) {
		return consts.TokenProgram
	}
	return program
}
