package assembler

import (
	"fmt"
	"time"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/instruction"
	"dex-trader-sol/internal/logic/provider"
	itypes "dex-trader-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	gocache "github.com/patrickmn/go-cache"
)

// Request 一笔待组装交易的全部输入
type Request struct {
	Payer        types.Account
	ExtraSigners []types.Account
	Provider     provider.Descriptor
	Kind         domain.TradeKind
	Fee          *domain.FeeStrategyValue // nil 表示不加 compute budget 和小费
	WithTip      bool
	TipAccount   common.PublicKey // 为空时从 Provider 随机选
	AntiFront    bool
	Nonce        *domain.DurableNonceInfo
	Blockhash    string // 无 nonce 时必填
	Instructions []types.Instruction
	LookupTable  *types.AddressLookupTableAccount
}

// Result 组装并签名后的交易
type Result struct {
	Tx           types.Transaction
	Instructions []types.Instruction // 最终指令顺序
	Signature    string
	TipLamports  uint64 // 实际写入交易的小费
	TipAccount   common.PublicKey
	Size         int
	AccountCount int
}

// Assembler 按固定顺序拼装指令：
// nonce 推进 -> 防夹标记 -> 小费 -> compute budget -> 业务指令，ALT 挂在消息上
type Assembler struct {
	budgetMemo *gocache.Cache
}

func NewAssembler() *Assembler {
	return &Assembler{
		budgetMemo: gocache.New(30*time.Minute, 10*time.Minute),
	}
}

func budgetKey(price uint64, limit, size uint32, isBuy bool) string {
	return fmt.Sprintf("%d:%d:%d:%t", price, limit, size, isBuy)
}

// computeBudget 相同参数的指令只构造一次
func (a *Assembler) computeBudget(fee *domain.FeeStrategyValue, isBuy bool) ([]types.Instruction, error) {
	key := budgetKey(fee.CUPrice, fee.CULimit, fee.DataSizeLimit, isBuy)
	if v, ok := a.budgetMemo.Get(key); ok {
		return v.([]types.Instruction), nil
	}
	ixs, err := instruction.ComputeBudgetInstructions(fee.CUPrice, fee.CULimit, fee.DataSizeLimit, isBuy)
	if err != nil {
		return nil, err
	}
	a.budgetMemo.SetDefault(key, ixs)
	return ixs, nil
}

// Assemble 组装、签名并校验大小
func (a *Assembler) Assemble(req Request) (*Result, error) {
	if len(req.Instructions) == 0 {
		return nil, domain.NewParameterError("instructions", "no business instructions")
	}
	if itypes.IsZero(req.Payer.PublicKey) {
		return nil, domain.NewParameterError("payer", "missing payer")
	}

	blockhash := req.Blockhash
	if req.Nonce != nil {
		if req.Nonce.Nonce == "" {
			return nil, domain.NewParameterError("durable_nonce", "empty nonce value")
		}
		blockhash = req.Nonce.Nonce
	}
	if blockhash == "" {
		return nil, domain.NewParameterError("blockhash", "missing recent blockhash or durable nonce")
	}

	payer := req.Payer.PublicKey
	ixs := make([]types.Instruction, 0, len(req.Instructions)+6)
	res := &Result{}

	// 1. nonce 推进必须在首位
	if req.Nonce != nil {
		authority := req.Nonce.Authority
		if itypes.IsZero(authority) {
			authority = payer
		}
		ixs = append(ixs, instruction.AdvanceNonce(req.Nonce.Account, authority))
	}

	// 2. 防夹标记：无 nonce 时下标 0，否则下标 1
	if req.AntiFront {
		ixs = append(ixs, instruction.AntiFrontMarker(payer))
	}

	// 3. 小费，只有这里会按通道下限调整
	if req.WithTip && req.Fee != nil && req.Fee.TipLamports > 0 {
		tipAccount := req.TipAccount
		if itypes.IsZero(tipAccount) {
			acc, ok := req.Provider.PickTipAccount()
			if !ok {
				return nil, &domain.AssemblyError{Stage: "tip", Reason: fmt.Sprintf("provider %s has no tip account", req.Provider.Name)}
			}
			tipAccount = acc
		}
		tip := req.Provider.EffectiveTip(req.Fee.TipLamports)
		ixs = append(ixs, instruction.Tip(payer, tipAccount, tip))
		res.TipLamports = tip
		res.TipAccount = tipAccount
	}

	// 4. compute budget
	if req.Fee != nil {
		budget, err := a.computeBudget(req.Fee, req.Kind == domain.KindBuy)
		if err != nil {
			return nil, &domain.AssemblyError{Stage: "compute_budget", Reason: "encode", Err: err}
		}
		ixs = append(ixs, budget...)
	}

	// 5. 业务指令原样追加
	ixs = append(ixs, req.Instructions...)

	if len(ixs) > consts.MaxTransactionIxCount {
		return nil, &domain.AssemblyError{Stage: "limits", Reason: fmt.Sprintf("instruction count %d exceeds %d", len(ixs), consts.MaxTransactionIxCount)}
	}

	// 6. ALT 挂在消息上
	param := types.NewMessageParam{
		FeePayer:        payer,
		Instructions:    ixs,
		RecentBlockhash: blockhash,
	}
	if req.LookupTable != nil {
		param.AddressLookupTableAccounts = []types.AddressLookupTableAccount{*req.LookupTable}
	}
	msg := types.NewMessage(param)

	accountCount := len(msg.Accounts)
	for _, alt := range msg.AddressLookupTables {
		accountCount += len(alt.WritableIndexes) + len(alt.ReadonlyIndexes)
	}
	if accountCount > consts.MaxTransactionAccount {
		return nil, &domain.AssemblyError{Stage: "limits", Reason: fmt.Sprintf("account count %d exceeds %d", accountCount, consts.MaxTransactionAccount)}
	}

	signers := make([]types.Account, 0, 1+len(req.ExtraSigners))
	signers = append(signers, req.Payer)
	signers = append(signers, req.ExtraSigners...)
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: msg,
		Signers: signers,
	})
	if err != nil {
		return nil, &domain.AssemblyError{Stage: "sign", Reason: "new transaction", Err: err}
	}

	raw, err := tx.Serialize()
	if err != nil {
		return nil, &domain.AssemblyError{Stage: "serialize", Reason: "serialize transaction", Err: err}
	}
	if len(raw) > consts.MaxTransactionSize {
		return nil, &domain.AssemblyError{Stage: "limits", Reason: fmt.Sprintf("transaction size %d exceeds %d", len(raw), consts.MaxTransactionSize)}
	}

	res.Tx = tx
	res.Instructions = ixs
	res.Signature = provider.LocalSignature(tx)
	res.Size = len(raw)
	res.AccountCount = accountCount
	return res, nil
}
