package instruction

import (
	"fmt"

	"dex-trader-sol/internal/consts"

	"github.com/blocto/solana-go-sdk/program/compute_budget"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"
)

// SetLoadedAccountsDataSize 指令编号，SDK 未提供该指令
const computeBudgetSetLoadedDataLimit uint8 = 4

type loadedDataLimitData struct {
	Instruction uint8
	Bytes       uint32
}

func SetComputeUnitLimit(units uint32) types.Instruction {
	return compute_budget.SetComputeUnitLimit(compute_budget.SetComputeUnitLimitParam{Units: units})
}

func SetComputeUnitPrice(microLamports uint64) types.Instruction {
	return compute_budget.SetComputeUnitPrice(compute_budget.SetComputeUnitPriceParam{MicroLamports: microLamports})
}

// SetLoadedAccountsDataSizeLimit 限制交易加载账户数据总量，可降低调度成本
func SetLoadedAccountsDataSizeLimit(bytes uint32) (types.Instruction, error) {
	raw, err := borsh.Serialize(loadedDataLimitData{Instruction: computeBudgetSetLoadedDataLimit, Bytes: bytes})
	if err != nil {
		return types.Instruction{}, fmt.Errorf("encode compute budget: %w", err)
	}
	return types.Instruction{
		ProgramID: consts.ComputeBudgetProgram,
		Accounts:  []types.AccountMeta{},
		Data:      raw,
	}, nil
}

// ComputeBudgetInstructions 按 limit -> price -> data size 顺序生成
// dataSizeLimit 仅在 isBuy 且大于 0 时生效；limit / price 为 0 时跳过对应指令
func ComputeBudgetInstructions(cuPrice uint64, cuLimit uint32, dataSizeLimit uint32, isBuy bool) ([]types.Instruction, error) {
	out := make([]types.Instruction, 0, 3)
	if cuLimit > 0 {
		out = append(out, SetComputeUnitLimit(cuLimit))
	}
	if cuPrice > 0 {
		out = append(out, SetComputeUnitPrice(cuPrice))
	}
	if isBuy && dataSizeLimit > 0 {
		ix, err := SetLoadedAccountsDataSizeLimit(dataSizeLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, nil
}
