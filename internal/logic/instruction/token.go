package instruction

import (
	"fmt"

	"dex-trader-sol/internal/consts"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"
)

// SDK 的 token / ATA 指令固定使用经典 Token 程序，这里按 tokenProgram 改写，
// Token-2022 的这几条指令编码与经典程序一致

// CreateATAIdempotent 账户已存在时不报错
func CreateATAIdempotent(payer, ata, owner, mint, tokenProgram common.PublicKey) types.Instruction {
	ix := associated_token_account.CreateIdempotent(associated_token_account.CreateIdempotentParam{
		Funder:                 payer,
		Owner:                  owner,
		Mint:                   mint,
		AssociatedTokenAccount: ata,
	})
	// 第 6 个账户是 token 程序；末尾的 rent sysvar 已不再需要
	ix.Accounts = ix.Accounts[:6]
	ix.Accounts[5].PubKey = tokenProgram
	return ix
}

func InitializeAccount3(account, mint, owner, tokenProgram common.PublicKey) types.Instruction {
	ix := token.InitializeAccount3(token.InitializeAccount3Param{Account: account, Mint: mint, Owner: owner})
	ix.ProgramID = tokenProgram
	return ix
}

// CloseAccount 关闭 token 账户，租金退回 dest
func CloseAccount(account, dest, owner, tokenProgram common.PublicKey) types.Instruction {
	ix := token.CloseAccount(token.CloseAccountParam{Account: account, Auth: owner, To: dest})
	ix.ProgramID = tokenProgram
	return ix
}

// SyncNative 同步 WSOL 账户余额
func SyncNative(account, tokenProgram common.PublicKey) types.Instruction {
	ix := token.SyncNative(token.SyncNativeParam{Account: account})
	ix.ProgramID = tokenProgram
	return ix
}

// CreateAccountWithSeed seed 超过 32 字节时链上会失败，提前拒绝
func CreateAccountWithSeed(from, to, base common.PublicKey, seed string, lamports, space uint64, owner common.PublicKey) (types.Instruction, error) {
	if len(seed) > consts.MaxSeedLength {
		return types.Instruction{}, fmt.Errorf("seed too long: %d", len(seed))
	}
	return system.CreateAccountWithSeed(system.CreateAccountWithSeedParam{
		From:     from,
		New:      to,
		Base:     base,
		Owner:    owner,
		Seed:     seed,
		Lamports: lamports,
		Space:    space,
	}), nil
}

// CreateATAWithSeed 用 seed 派生的 token 账户：CreateAccountWithSeed + InitializeAccount3
// account 与 seed 必须来自同一次派生（见 cache.SeedForMint）；空间固定为不带扩展的 TokenAccountSize，
// 租金也按同一大小查询（见 RentSyncService）
func CreateATAWithSeed(payer, owner, mint, tokenProgram, account common.PublicKey, seed string, rent uint64) ([]types.Instruction, error) {
	create, err := CreateAccountWithSeed(payer, account, owner, seed, rent, consts.TokenAccountSize, tokenProgram)
	if err != nil {
		return nil, err
	}
	return []types.Instruction{create, InitializeAccount3(account, mint, owner, tokenProgram)}, nil
}
