package consts

import (
	"fmt"
	"runtime"

	"github.com/shopspring/decimal"
)

// 账本硬性限制
const (
	MaxTransactionSize    = 1232 // 单笔交易序列化后最大字节数
	MaxTransactionAccount = 64   // 单笔交易可锁定的账户上限（含 ALT 加载的账户）
	MaxTransactionIxCount = 64   // 指令数上限
)

// Token 账户
const (
	TokenAccountSize        = 165 // SPL Token 账户大小，Token-2022 无扩展时相同
	DefaultTokenAccountRent = 2_039_280

	MaxSeedLength = 32
	PDAMarker     = "ProgramDerivedAddress"
)

const (
	LamportsPerSol = 1_000_000_000

	// JitoMinTipLamports Jito 接受的最低小费（唯一带小费下限的加速通道）
	JitoMinTipLamports uint64 = 1_000
)

// CpuCount 表示逻辑 CPU 核心数，用于控制并发任务调度上限
var CpuCount = runtime.NumCPU()

var lamportsPerSolDec = decimal.NewFromInt(LamportsPerSol)

// SolToLamports 将 SOL 字符串（如 "0.001"）转为 lamports，小数部分超出精度时截断
func SolToLamports(sol string) (uint64, error) {
	if sol == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(sol)
	if err != nil {
		return 0, fmt.Errorf("invalid sol amount %q: %w", sol, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative sol amount %q", sol)
	}
	return uint64(d.Mul(lamportsPerSolDec).Truncate(0).IntPart()), nil
}

// LamportsToSol 仅用于日志展示
func LamportsToSol(lamports uint64) string {
	return decimal.NewFromInt(int64(lamports)).Div(lamportsPerSolDec).String()
}
