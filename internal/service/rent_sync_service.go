package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"dex-trader-sol/internal/cache"
	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/pkg/logger"
)

// RentSyncService 定期刷新 token 账户免租金额
type RentSyncService struct {
	ledger   domain.LedgerClient
	rent     *cache.RentCache
	interval time.Duration
	timeout  time.Duration
	stopChan chan struct{}
	ctx      context.Context
	cancel   func(err error)
}

func NewRentSyncService(ledger domain.LedgerClient, rent *cache.RentCache, interval, timeout time.Duration) *RentSyncService {
	if interval <= 0 {
		interval = time.Hour
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	s := &RentSyncService{
		ledger:   ledger,
		rent:     rent,
		interval: interval,
		timeout:  timeout,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	// 初始化失败不致命，缓存中已有默认值
	const retryCount = 2
	for i := 0; i <= retryCount; i++ {
		if err := s.update(); err != nil {
			logger.Warnf("[RentSyncService] 第 %d 次 update() 失败: %v", i+1, err)
			continue
		}
		logger.Infof("[RentSyncService] 初始租金同步成功")
		break
	}
	return s
}

func (s *RentSyncService) Start() {
	s.scheduleNext()
	<-s.stopChan
}

func (s *RentSyncService) scheduleNext() {
	time.AfterFunc(s.interval, func() {
		if err := s.update(); err != nil {
			logger.Warnf("[RentSyncService] 周期性更新失败: %v", err)
		}
		select {
		case <-s.ctx.Done():
			return
		default:
			s.scheduleNext()
		}
	})
}

func (s *RentSyncService) Stop() {
	s.cancel(errors.New("RentSyncService stop"))
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

func (s *RentSyncService) update() (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[RentSyncService] update panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("update panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	// seed 账户两种程序都按 TokenAccountSize 分配，租金按同一大小查询
	rent, err := s.ledger.GetMinimumBalanceForRentExemption(ctx, consts.TokenAccountSize)
	if err != nil {
		return fmt.Errorf("token account rent: %w", err)
	}
	if rent == 0 {
		return errors.New("rent is zero")
	}

	s.rent.Set(consts.TokenProgram, rent)
	s.rent.Set(consts.TokenProgram2022, rent)
	logger.Infof("[RentSyncService] token account rent=%d (%d bytes)", rent, consts.TokenAccountSize)
	return nil
}
