package instruction

import (
	"dex-trader-sol/internal/consts"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/types"
)

// AntiFrontMarker 携带 jitodontfront 只读账户的空操作指令
// 以 payer -> payer 的 0 lamports 转账承载，system 程序忽略多余账户
func AntiFrontMarker(payer common.PublicKey) types.Instruction {
	ix := system.Transfer(system.TransferParam{
		From:   payer,
		To:     payer,
		Amount: 0,
	})
	ix.Accounts = append(ix.Accounts, types.AccountMeta{PubKey: consts.JitoDontFront, IsSigner: false, IsWritable: false})
	return ix
}

// IsAntiFrontMarker 判断指令是否为防夹标记
func IsAntiFrontMarker(ix types.Instruction) bool {
	if ix.ProgramID != consts.SystemProgram {
		return false
	}
	for _, meta := range ix.Accounts {
		if meta.PubKey == consts.JitoDontFront && !meta.IsWritable {
			return true
		}
	}
	return false
}

// Tip 小费转账
func Tip(payer, tipAccount common.PublicKey, lamports uint64) types.Instruction {
	return system.Transfer(system.TransferParam{
		From:   payer,
		To:     tipAccount,
		Amount: lamports,
	})
}

// AdvanceNonce nonce 推进指令，必须位于交易首位
func AdvanceNonce(nonceAccount, authority common.PublicKey) types.Instruction {
	return system.AdvanceNonceAccount(system.AdvanceNonceAccountParam{
		Nonce: nonceAccount,
		Auth:  authority,
	})
}
