package consts

import (
	"dex-trader-sol/internal/types"
)

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// Programs
	SystemProgramStr          = "11111111111111111111111111111111"
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	TokenProgram2022Str       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetProgramIdStr = "ComputeBudget111111111111111111111111111111"

	// 原生币：WSOL 为 SPL 包装形式，NativeSOL 为 SDK 约定的原生 SOL 标识
	WSOLMintStr      = "So11111111111111111111111111111111111111112"
	NativeSOLMintStr = "So11111111111111111111111111111111111111111"
	USDCMintStr      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMintStr      = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

	// Jito 防夹标记账户，以只读账户形式出现在交易首条（或 nonce 之后）指令中
	JitoDontFrontStr = "jitodontfront111111111111111111111111111111"
)

// JitoTipAccountStrs Jito 官方小费账户
var JitoTipAccountStrs = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

var (
	// Programs
	SystemProgram          = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram           = types.PubkeyFromBase58(TokenProgramStr)
	TokenProgram2022       = types.PubkeyFromBase58(TokenProgram2022Str)
	AssociatedTokenProgram = types.PubkeyFromBase58(AssociatedTokenProgramStr)
	ComputeBudgetProgram   = types.PubkeyFromBase58(ComputeBudgetProgramIdStr)

	WSOLMint      = types.PubkeyFromBase58(WSOLMintStr)
	NativeSOLMint = types.PubkeyFromBase58(NativeSOLMintStr)
	USDCMint      = types.PubkeyFromBase58(USDCMintStr)
	USDTMint      = types.PubkeyFromBase58(USDTMintStr)

	JitoDontFront = types.PubkeyFromBase58(JitoDontFrontStr)
)
