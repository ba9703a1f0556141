package builder

import (
	"context"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/instruction"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/types"
)

// WSOLBuilder SOL 与 WSOL 互换：买入 = wrap，卖出 = unwrap
// wrap 仅在 CreateOutputATA 时创建账户；unwrap 要求 CloseInputATA
type WSOLBuilder struct {
	accounts *TokenAccounts
}

var _ domain.InstructionBuilder = (*WSOLBuilder)(nil)

func NewWSOLBuilder(accounts *TokenAccounts) *WSOLBuilder {
	if accounts == nil {
		accounts = NewTokenAccounts(nil, nil)
	}
	return &WSOLBuilder{accounts: accounts}
}

func (b *WSOLBuilder) Build(_ context.Context, kind domain.TradeKind, params *domain.TradeParams) ([]types.Instruction, error) {
	if params == nil {
		return nil, domain.NewParameterError("params", "nil")
	}
	if params.Mint != consts.WSOLMint {
		return nil, domain.NewParameterError("mint", "wsol builder only supports %s", consts.WSOLMintStr)
	}
	owner := params.Payer.PublicKey

	switch kind {
	case domain.KindBuy:
		if params.Amount == 0 {
			return nil, domain.NewParameterError("amount", "wrap amount must be > 0")
		}
		// WSOL 不支持 seed 账户，fast 标记在这里无效
		var (
			ata common.PublicKey
			ixs []types.Instruction
			err error
		)
		if params.CreateOutputATA {
			ata, ixs, err = b.accounts.Create(owner, owner, consts.WSOLMint, consts.TokenProgram, params.FastATA)
		} else {
			// 账户已存在，只转入并同步
			ata, err = b.accounts.Address(owner, consts.WSOLMint, consts.TokenProgram, false)
		}
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, system.Transfer(system.TransferParam{
			From:   owner,
			To:     ata,
			Amount: params.Amount,
		}))
		return append(ixs, instruction.SyncNative(ata, consts.TokenProgram)), nil

	case domain.KindSell:
		if !params.CloseInputATA {
			return nil, domain.NewParameterError("close_input_ata", "unwrap closes the wsol account, flag must be set")
		}
		ata, err := b.accounts.Address(owner, consts.WSOLMint, consts.TokenProgram, false)
		if err != nil {
			return nil, err
		}
		return []types.Instruction{b.accounts.Close(ata, owner, owner, consts.TokenProgram)}, nil

	default:
		return nil, domain.NewParameterError("kind", "unknown trade kind %d", kind)
	}
}
