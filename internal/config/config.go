package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/mq"
	"dex-trader-sol/pkg/logger"

	"go.uber.org/multierr"
)

type LogConfig struct {
	Format   string `json:"format,default=console"` // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional"`       // 日志目录（可为相对路径或绝对路径）
	Level    string `json:"level,default=info"`     // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional"`      // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// RpcConfig 账本 RPC 节点
type RpcConfig struct {
	Endpoint  string `json:"endpoint"`                // 例如 https://api.mainnet-beta.solana.com
	TimeoutMs int    `json:"timeout_ms,default=5000"` // 单次请求超时（毫秒）
}

// GrpcConfig Yellowstone gRPC，用于订阅最新 blockhash
type GrpcConfig struct {
	Enabled  bool   `json:"enabled,optional"`
	Endpoint string `json:"endpoint,optional"` // gRPC 服务端地址
	XToken   string `json:"x_token,optional"`  // x-token 认证

	StreamPingIntervalSec    int `json:"stream_ping_interval_sec,default=10"`    // 应用层 ping 心跳间隔（秒）
	KeepalivePingIntervalSec int `json:"keepalive_ping_interval_sec,default=30"` // 底层 keepalive 间隔（秒）
	KeepalivePingTimeoutSec  int `json:"keepalive_ping_timeout_sec,default=5"`   // 底层 keepalive 超时（秒）

	MaxCallRecvMsgSize int `json:"max_call_recv_msg_size,default=4194304"` // 只订阅区块元数据，消息很小

	ReconnectIntervalSec int `json:"reconnect_interval_sec,default=1"`  // 重连最小间隔（秒）
	ConnectTimeoutSec    int `json:"connect_timeout_sec,default=10"`    // 连接建立超时（秒）
	SendTimeoutSec       int `json:"send_timeout_sec,default=5"`        // 发送超时（秒）
	BlockRecvTimeoutSec  int `json:"block_recv_timeout_sec,default=15"` // 超过该时间未收到区块则重连
	MaxBlockhashAgeSec   int `json:"max_blockhash_age_sec,default=30"`  // 缓存 blockhash 的最大可用时长
}

// DualFeeConfig 同一通道同时发送“低小费高优先费”和“高小费低优先费”两笔交易
type DualFeeConfig struct {
	Class       string `json:"class"`                    // 通道类别，如 Jito
	Kind        string `json:"kind"`                     // buy / sell
	CULimit     uint32 `json:"cu_limit"`                 // compute unit 上限
	LowCUPrice  uint64 `json:"low_cu_price"`             // 微 lamports
	HighCUPrice uint64 `json:"high_cu_price"`            // 微 lamports
	LowTipSol   string `json:"low_tip_sol"`              // 例如 "0.0001"
	HighTipSol  string `json:"high_tip_sol"`             // 例如 "0.001"
	DataSize    uint32 `json:"data_size_limit,optional"` // 0 表示不设置
}

// FeeConfig 默认统一费率，SOL 数量使用字符串避免浮点误差
type FeeConfig struct {
	CULimit    uint32          `json:"cu_limit,default=200000"`
	CUPrice    uint64          `json:"cu_price,default=100000"` // 微 lamports
	BuyTipSol  string          `json:"buy_tip_sol,default=0.0001"`
	SellTipSol string          `json:"sell_tip_sol,default=0.0001"`
	DataSize   uint32          `json:"data_size_limit,optional"`
	Dual       []DualFeeConfig `json:"dual,optional"`
}

// TipLamports 调用前需先通过 Validate
func (c *FeeConfig) TipLamports(buy bool) uint64 {
	s := c.SellTipSol
	if buy {
		s = c.BuyTipSol
	}
	v, _ := consts.SolToLamports(s)
	return v
}

// BroadcastConfig 广播与确认参数
type BroadcastConfig struct {
	PerSendTimeoutMs int  `json:"per_send_timeout_ms,default=3000"` // 单通道发送超时
	WaitConfirmed    bool `json:"wait_confirmed,optional"`          // 默认不等待确认
	ConfirmTimeoutMs int  `json:"confirm_timeout_ms,default=30000"`
	PollIntervalMs   int  `json:"poll_interval_ms,default=500"`
}

func (c *BroadcastConfig) PerSendTimeout() time.Duration {
	return time.Duration(c.PerSendTimeoutMs) * time.Millisecond
}

func (c *BroadcastConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutMs) * time.Millisecond
}

func (c *BroadcastConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

type AddressCacheConfig struct {
	Capacity int  `json:"capacity,default=50000"` // 最大条目数，满后只计算不写入
	FastATA  bool `json:"fast_ata,optional"`      // 默认使用 seed 派生的 token 账户
}

// RentSyncConfig 免租金额同步
type RentSyncConfig struct {
	Enabled      bool `json:"enabled,default=true"`
	IntervalSec  int  `json:"interval_sec,default=3600"`
	RpcTimeoutMs int  `json:"rpc_timeout_ms,default=5000"`
}

// TipFloorConfig 按 Jito 小费分位数自动调整 Jito 通道的小费
type TipFloorConfig struct {
	Enabled     bool   `json:"enabled,optional"`
	Url         string `json:"url,optional"`
	IntervalSec int    `json:"interval_sec,default=10"`
	Percentile  int    `json:"percentile,default=50"` // 25 / 50 / 75 / 95 / 99
	MinTipSol   string `json:"min_tip_sol,default=0.00001"`
	MaxTipSol   string `json:"max_tip_sol,default=0.01"`
	TimeoutMs   int    `json:"timeout_ms,default=2000"`
}

// KafkaProducerConfig 已签名交易流水
type KafkaProducerConfig struct {
	Enabled   bool   `json:"enabled,optional"`
	Brokers   string `json:"brokers,optional"` // 多个用英文逗号分隔
	BatchSize int    `json:"batch_size,default=16384"`
	LingerMs  int    `json:"linger_ms,default=5"`
	Topic     string `json:"topic,default=trader-signed-tx"`
	Partition int    `json:"partitions,default=4"`
	TimeoutMs int    `json:"send_timeout_ms,default=5000"` // 单条消息等待 ack 的超时
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics:    []mq.TopicOption{{Topic: c.Topic, Partitions: c.Partition}},
	}
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled,optional"`
	Addr     string `json:"addr,optional"` // eg: "127.0.0.1:6379"
	Password string `json:"password,optional"`
	DB       int    `json:"db,optional"`
}

type MetricsConfig struct {
	ListenAddr string `json:"listen_addr,optional"` // 为空不启动 /metrics
}

// TraderConfig 主配置
type TraderConfig struct {
	LogConf           LogConfig           `json:"logger"`
	Rpc               RpcConfig           `json:"rpc"`
	Grpc              GrpcConfig          `json:"grpc,optional"`
	ProvidersFile     string              `json:"providers_file"` // 通道注册表（yaml）
	Fee               FeeConfig           `json:"fee"`
	Broadcast         BroadcastConfig     `json:"broadcast,optional"`
	AddressCache      AddressCacheConfig  `json:"address_cache,optional"`
	RentSync          RentSyncConfig      `json:"rent_sync,optional"`
	TipFloor          TipFloorConfig      `json:"tip_floor,optional"`
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer,optional"`
	Redis             RedisConfig         `json:"redis,optional"`
	Metrics           MetricsConfig       `json:"metrics,optional"`
}

// Validate 一次返回全部配置错误
func (c *TraderConfig) Validate() error {
	var err error
	if c.Rpc.Endpoint == "" {
		err = multierr.Append(err, errors.New("rpc.endpoint 不能为空"))
	}
	if c.Rpc.TimeoutMs <= 0 {
		err = multierr.Append(err, errors.New("rpc.timeout_ms 必须大于0"))
	}
	if c.ProvidersFile == "" {
		err = multierr.Append(err, errors.New("providers_file 不能为空"))
	}
	if c.Fee.CULimit == 0 {
		err = multierr.Append(err, errors.New("fee.cu_limit 必须大于0"))
	}
	if _, e := consts.SolToLamports(c.Fee.BuyTipSol); e != nil {
		err = multierr.Append(err, fmt.Errorf("fee.buy_tip_sol: %w", e))
	}
	if _, e := consts.SolToLamports(c.Fee.SellTipSol); e != nil {
		err = multierr.Append(err, fmt.Errorf("fee.sell_tip_sol: %w", e))
	}
	for i, d := range c.Fee.Dual {
		if _, e := consts.ParseProviderClass(d.Class); e != nil {
			err = multierr.Append(err, fmt.Errorf("fee.dual[%d].class: %w", i, e))
		}
		if k := strings.ToLower(d.Kind); k != "buy" && k != "sell" {
			err = multierr.Append(err, fmt.Errorf("fee.dual[%d].kind 必须为 buy 或 sell", i))
		}
		if d.CULimit == 0 {
			err = multierr.Append(err, fmt.Errorf("fee.dual[%d].cu_limit 必须大于0", i))
		}
		if _, e := consts.SolToLamports(d.LowTipSol); e != nil {
			err = multierr.Append(err, fmt.Errorf("fee.dual[%d].low_tip_sol: %w", i, e))
		}
		if _, e := consts.SolToLamports(d.HighTipSol); e != nil {
			err = multierr.Append(err, fmt.Errorf("fee.dual[%d].high_tip_sol: %w", i, e))
		}
	}
	if c.Broadcast.PerSendTimeoutMs <= 0 {
		err = multierr.Append(err, errors.New("broadcast.per_send_timeout_ms 必须大于0"))
	}
	if c.Broadcast.WaitConfirmed && c.Broadcast.PollIntervalMs >= c.Broadcast.ConfirmTimeoutMs {
		err = multierr.Append(err, errors.New("broadcast.poll_interval_ms 必须小于 confirm_timeout_ms"))
	}
	if c.Grpc.Enabled && c.Grpc.Endpoint == "" {
		err = multierr.Append(err, errors.New("grpc.endpoint 不能为空"))
	}
	if c.TipFloor.Enabled {
		switch c.TipFloor.Percentile {
		case 25, 50, 75, 95, 99:
		default:
			err = multierr.Append(err, fmt.Errorf("tip_floor.percentile 不支持 %d", c.TipFloor.Percentile))
		}
		minTip, e1 := consts.SolToLamports(c.TipFloor.MinTipSol)
		maxTip, e2 := consts.SolToLamports(c.TipFloor.MaxTipSol)
		if e1 != nil || e2 != nil {
			err = multierr.Append(err, errors.New("tip_floor.min_tip_sol / max_tip_sol 格式错误"))
		} else if minTip > maxTip {
			err = multierr.Append(err, errors.New("tip_floor.min_tip_sol 不能大于 max_tip_sol"))
		}
	}
	if c.KafkaProducerConf.Enabled {
		if c.KafkaProducerConf.Brokers == "" {
			err = multierr.Append(err, errors.New("kafka_producer.brokers 不能为空"))
		}
		if c.KafkaProducerConf.Topic == "" {
			err = multierr.Append(err, errors.New("kafka_producer.topic 不能为空"))
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		err = multierr.Append(err, errors.New("redis.addr 不能为空"))
	}
	return err
}
