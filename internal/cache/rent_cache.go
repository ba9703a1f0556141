package cache

import (
	"sync/atomic"

	"dex-trader-sol/internal/consts"

	"github.com/blocto/solana-go-sdk/common"
)

// RentCache token 账户免租金额，后台服务定期刷新
type RentCache struct {
	token     atomic.Uint64
	token2022 atomic.Uint64
}

// NewRentCache 初始值使用主网当前值，刷新前也可用
func NewRentCache() *RentCache {
	c := &RentCache{}
	c.token.Store(consts.DefaultTokenAccountRent)
	c.token2022.Store(consts.DefaultTokenAccountRent)
	return c
}

func (c *RentCache) Set(program common.PublicKey, lamports uint64) {
	if program == consts.TokenProgram2022 {
		c.token2022.Store(lamports)
		return
	}
	c.token.Store(lamports)
}

// Get 按 token 程序返回租金
func (c *RentCache) Get(program common.PublicKey) uint64 {
	if program == consts.TokenProgram2022 {
		return c.token2022.Load()
	}
	return c.token.Load()
}
