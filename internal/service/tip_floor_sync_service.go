package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/feestrategy"
	"dex-trader-sol/internal/logic/provider"
	"dex-trader-sol/pkg/logger"
)

// TipFloorFetcher provider.TipFloorClient 的接口形式
type TipFloorFetcher interface {
	Fetch(ctx context.Context) (provider.TipFloor, error)
}

// TipFloorOption 分位数与上下限（lamports）
type TipFloorOption struct {
	Interval   time.Duration
	Timeout    time.Duration
	Percentile int
	MinTip     uint64
	MaxTip     uint64
}

// TipFloorSyncService 按 Jito 落地小费分位数改写 Jito 通道的单笔费率
// 双费率配置不会被改写
type TipFloorSyncService struct {
	fetcher  TipFloorFetcher
	table    *feestrategy.Table
	opt      TipFloorOption
	stopChan chan struct{}
	ctx      context.Context
	cancel   func(err error)
}

func NewTipFloorSyncService(fetcher TipFloorFetcher, table *feestrategy.Table, opt TipFloorOption) *TipFloorSyncService {
	if opt.Interval <= 0 {
		opt.Interval = 10 * time.Second
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 2 * time.Second
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	return &TipFloorSyncService{
		fetcher:  fetcher,
		table:    table,
		opt:      opt,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *TipFloorSyncService) Start() {
	if err := s.update(); err != nil {
		logger.Warnf("[TipFloorSyncService] 首次更新失败: %v", err)
	}
	s.scheduleNext()
	<-s.stopChan
}

func (s *TipFloorSyncService) scheduleNext() {
	time.AfterFunc(s.opt.Interval, func() {
		if err := s.update(); err != nil {
			logger.Warnf("[TipFloorSyncService] 周期性更新失败: %v", err)
		}
		select {
		case <-s.ctx.Done():
			return
		default:
			s.scheduleNext()
		}
	})
}

func (s *TipFloorSyncService) Stop() {
	s.cancel(errors.New("TipFloorSyncService stop"))
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

func (s *TipFloorSyncService) clamp(tip uint64) uint64 {
	if tip < s.opt.MinTip {
		return s.opt.MinTip
	}
	if s.opt.MaxTip > 0 && tip > s.opt.MaxTip {
		return s.opt.MaxTip
	}
	return tip
}

func (s *TipFloorSyncService) update() (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[TipFloorSyncService] update panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("update panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.opt.Timeout)
	defer cancel()

	floor, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	tip := s.clamp(floor.PercentileLamports(s.opt.Percentile))

	for _, kind := range []domain.TradeKind{domain.KindBuy, domain.KindSell} {
		var prev uint64
		changed, err := s.table.Update(consts.ProviderJito, kind, func(current []domain.FeeStrategyValue) []domain.FeeStrategyValue {
			if len(current) != 1 || current[0].TipLamports == tip {
				return nil // 未配置、双费率或无变化
			}
			prev = current[0].TipLamports
			current[0].TipLamports = tip
			return current
		})
		if err != nil {
			return err
		}
		if changed {
			logger.Infof("[TipFloorSyncService] jito %s tip %d -> %d (p%d)", kind, prev, tip, s.opt.Percentile)
		}
	}
	return nil
}
