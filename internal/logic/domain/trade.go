package domain

import (
	"context"

	"dex-trader-sol/internal/consts"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// InstructionBuilder 每个 DEX 协议一个实现，返回有序的业务指令
type InstructionBuilder interface {
	Build(ctx context.Context, kind TradeKind, params *TradeParams) ([]types.Instruction, error)
}

// PoolStateLookup 供指令构建器查询池子参数，核心流程不直接使用
type PoolStateLookup interface {
	Lookup(ctx context.Context, mint common.PublicKey) (interface{}, error)
}

// CallbackMode 签名回调的执行方式
type CallbackMode uint8

const (
	CallbackAsync CallbackMode = iota // 不阻塞发送
	CallbackSync                      // 阻塞发送，回调报错则中止
)

// CallbackContext 每笔签名完成的交易对应一次回调
type CallbackContext struct {
	TradeID     string
	Tx          types.Transaction
	Provider    string
	Class       consts.ProviderClass
	Kind        TradeKind
	Signature   string
	TimestampNs int64
	WithTip     bool
	TipLamports uint64
}

type SignedCallback func(ctx CallbackContext) error

// StrategySource 费率来源，executor 默认使用全局表
type StrategySource interface {
	Get(class consts.ProviderClass, kind TradeKind) []FeeStrategyValue
}

// TradeParams 一笔交易的全部入参
type TradeParams struct {
	Kind        TradeKind
	Mint        common.PublicKey // 目标 token
	InputMint   common.PublicKey // 支付 token，为空表示 SOL
	Amount      uint64           // 买入为输入数量，卖出为 token 数量
	SlippageBps uint64
	Payer       types.Account

	RecentBlockhash string    // 为空时自动获取
	DurableNonce    *NonceRef // 非空时使用 nonce 代替 blockhash
	LookupTable     *types.AddressLookupTableAccount

	Strategy  StrategySource // 为空时使用 executor 的全局表
	WithTip   bool
	AntiFront bool

	Simulate      bool
	WaitConfirmed bool

	CreateInputATA  bool
	CloseInputATA   bool
	CreateOutputATA bool
	CloseOutputATA  bool
	FastATA         bool // 使用 seed 派生的 token 账户

	OnSigned     SignedCallback
	CallbackMode CallbackMode

	// Extra 交给协议构建器的不透明参数
	Extra interface{}
}

// TradeResult 对外返回
type TradeResult struct {
	TradeID      string
	Success      bool
	Signatures   []string
	Err          error
	Simulation   *SimulationResult
	Confirmation ConfirmationStatus
	Outcomes     []BroadcastOutcome
}
