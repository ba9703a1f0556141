package svc

import (
	"fmt"
	"strings"
	"time"

	"dex-trader-sol/internal/cache"
	"dex-trader-sol/internal/config"
	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/assembler"
	"dex-trader-sol/internal/logic/broadcast"
	"dex-trader-sol/internal/logic/builder"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/executor"
	"dex-trader-sol/internal/logic/feestrategy"
	"dex-trader-sol/internal/logic/ledger"
	"dex-trader-sol/internal/logic/outcome"
	"dex-trader-sol/internal/logic/provider"
	"dex-trader-sol/internal/mq"
	"dex-trader-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

// ServiceContext 进程级共享资源
type ServiceContext struct {
	Config config.TraderConfig

	Ledger      *ledger.Client
	Providers   []provider.Entry
	FeeTable    *feestrategy.Table
	Addresses   *cache.AddressCache
	Rent        *cache.RentCache
	Blockhashes *cache.BlockhashCache
	Broadcaster *broadcast.Broadcaster
	Executor    *executor.Executor

	Producer *kafka.Producer // 可为 nil
	Redis    *redis.Client   // 可为 nil
}

func NewServiceContext(c config.TraderConfig) (*ServiceContext, error) {
	// 1. 账本客户端与通道
	ledgerClient := ledger.NewClient(c.Rpc.Endpoint, time.Duration(c.Rpc.TimeoutMs)*time.Millisecond)
	entries, err := provider.LoadProvidersFile(c.ProvidersFile, ledgerClient, c.Broadcast.PerSendTimeout())
	if err != nil {
		return nil, fmt.Errorf("load providers %s: %w", c.ProvidersFile, err)
	}
	for _, e := range entries {
		d := e.Provider.Descriptor()
		logger.Infof("[svc] provider %s class=%s endpoint=%s rate=%.1f/s", d.Name, d.Class, d.Endpoint, e.RatePerSec)
	}

	// 2. 费率表
	table, err := NewFeeTable(c.Fee)
	if err != nil {
		return nil, err
	}

	// 3. 缓存
	addresses := cache.NewAddressCache(c.AddressCache.Capacity, nil)
	rent := cache.NewRentCache()
	blockhashes := cache.NewBlockhashCache(time.Duration(c.Grpc.MaxBlockhashAgeSec) * time.Second)

	broadcaster := broadcast.NewBroadcaster(entries, ledgerClient, broadcast.Options{
		PerSendTimeout: c.Broadcast.PerSendTimeout(),
		WaitConfirmed:  c.Broadcast.WaitConfirmed,
		ConfirmTimeout: c.Broadcast.ConfirmTimeout(),
		PollInterval:   c.Broadcast.PollInterval(),
	})

	sc := &ServiceContext{
		Config:      c,
		Ledger:      ledgerClient,
		Providers:   entries,
		FeeTable:    table,
		Addresses:   addresses,
		Rent:        rent,
		Blockhashes: blockhashes,
		Broadcaster: broadcaster,
	}

	deps := executor.Deps{
		Builder:     builder.NewWSOLBuilder(builder.NewTokenAccounts(addresses, rent)),
		Ledger:      ledgerClient,
		Table:       table,
		Nonces:      cache.NewNonceCache(ledgerClient),
		Blockhashes: blockhashes,
		Assembler:   assembler.NewAssembler(),
		Broadcaster: broadcaster,
	}

	// 4. 可选：Kafka 交易流水
	if c.KafkaProducerConf.Enabled {
		producer, err := mq.NewKafkaProducer(c.KafkaProducerConf.ToKafkaOption())
		if err != nil {
			logger.Errorf("[svc] Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		sc.Producer = producer
		deps.Journal = mq.NewTxJournal(producer, c.KafkaProducerConf.Topic, c.KafkaProducerConf.Partition,
			time.Duration(c.KafkaProducerConf.TimeoutMs)*time.Millisecond)
	}

	// 5. 可选：Redis 签名状态
	if c.Redis.Enabled {
		sc.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		deps.Outcomes = outcome.NewRedisOutcomeStore(sc.Redis)
	}

	exec, err := executor.NewExecutor(deps)
	if err != nil {
		sc.Close()
		return nil, err
	}
	sc.Executor = exec

	logger.Infof("[svc] 服务上下文初始化完成, providers=%d fee_entries=%d", len(entries), table.Len())
	return sc, nil
}

// NewFeeTable 统一费率 + 双费率覆盖
func NewFeeTable(c config.FeeConfig) (*feestrategy.Table, error) {
	table := feestrategy.NewTable()
	if err := table.SetUniform(c.CULimit, c.CUPrice, c.TipLamports(true), c.TipLamports(false), c.DataSize); err != nil {
		return nil, err
	}
	for i, d := range c.Dual {
		class, err := consts.ParseProviderClass(d.Class)
		if err != nil {
			return nil, fmt.Errorf("fee.dual[%d]: %w", i, err)
		}
		kind := domain.KindBuy
		if strings.EqualFold(d.Kind, "sell") {
			kind = domain.KindSell
		}
		lowTip, err := consts.SolToLamports(d.LowTipSol)
		if err != nil {
			return nil, fmt.Errorf("fee.dual[%d]: %w", i, err)
		}
		highTip, err := consts.SolToLamports(d.HighTipSol)
		if err != nil {
			return nil, fmt.Errorf("fee.dual[%d]: %w", i, err)
		}
		if err := table.SetDual(class, kind, d.CULimit, d.LowCUPrice, d.HighCUPrice, lowTip, highTip, d.DataSize); err != nil {
			return nil, fmt.Errorf("fee.dual[%d]: %w", i, err)
		}
	}
	return table, nil
}

// Close 关闭服务上下文中的资源
func (sc *ServiceContext) Close() {
	if sc.Producer != nil {
		sc.Producer.Flush(3000)
		sc.Producer.Close()
	}
	if sc.Redis != nil {
		_ = sc.Redis.Close()
	}
}
