package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"dex-trader-sol/internal/config"
	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/grpc"
	"dex-trader-sol/internal/logic/provider"
	"dex-trader-sol/internal/service"
	"dex-trader-sol/internal/svc"
	itypes "dex-trader-sol/internal/types"
	"dex-trader-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var (
	configFile = flag.String("f", "etc/trader.yaml", "the config file")
	mode       = flag.String("mode", "serve", "serve | wrap | unwrap")
	amountSol  = flag.String("amount", "", "wrap amount in SOL")
	simulate   = flag.Bool("simulate", false, "simulate only, do not send")
	nonceAcc   = flag.String("nonce", "", "durable nonce account (optional)")
)

// 私钥从环境变量读取，避免出现在命令行历史里
const privateKeyEnv = "TRADER_PRIVATE_KEY"

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	var c config.TraderConfig
	conf.MustLoad(*configFile, &c)
	if err := c.Validate(); err != nil {
		logx.Errorf("invalid config: %v", err)
		os.Exit(1)
	}
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		logx.Errorf("init logger: %v", err)
		os.Exit(1)
	}

	sc, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}

	code := 0
	switch *mode {
	case "serve":
		serve(sc)
	case "wrap", "unwrap":
		code = runOnce(sc)
	default:
		logx.Errorf("unknown mode %q", *mode)
		code = 2
	}

	sc.Close()
	logger.Sync()
	if code != 0 {
		os.Exit(code)
	}
}

func serve(sc *svc.ServiceContext) {
	c := sc.Config
	sg := zerosvc.NewServiceGroup()

	if c.RentSync.Enabled {
		sg.Add(service.NewRentSyncService(sc.Ledger, sc.Rent,
			time.Duration(c.RentSync.IntervalSec)*time.Second,
			time.Duration(c.RentSync.RpcTimeoutMs)*time.Millisecond))
	}
	if c.TipFloor.Enabled {
		minTip, _ := consts.SolToLamports(c.TipFloor.MinTipSol)
		maxTip, _ := consts.SolToLamports(c.TipFloor.MaxTipSol)
		timeout := time.Duration(c.TipFloor.TimeoutMs) * time.Millisecond
		sg.Add(service.NewTipFloorSyncService(provider.NewTipFloorClient(c.TipFloor.Url, timeout), sc.FeeTable, service.TipFloorOption{
			Interval:   time.Duration(c.TipFloor.IntervalSec) * time.Second,
			Timeout:    timeout,
			Percentile: c.TipFloor.Percentile,
			MinTip:     minTip,
			MaxTip:     maxTip,
		}))
	}
	if c.Grpc.Enabled {
		stream, err := grpc.NewBlockhashStream(c.Grpc, sc.Blockhashes)
		if err != nil {
			panic(err)
		}
		sg.Add(stream)
	}
	if c.Metrics.ListenAddr != "" {
		sg.Add(service.NewMetricsService(c.Metrics.ListenAddr))
	}

	logx.Infof("Starting trader services, providers=%d", len(sc.Providers))
	go sg.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}

// runOnce 执行一笔 WSOL wrap/unwrap，返回进程退出码
func runOnce(sc *svc.ServiceContext) int {
	payer, err := types.AccountFromBase58(os.Getenv(privateKeyEnv))
	if err != nil {
		logx.Errorf("load %s: %v", privateKeyEnv, err)
		return 2
	}

	params := &domain.TradeParams{
		Kind:          domain.KindSell,
		Mint:          consts.WSOLMint,
		Payer:         payer,
		WithTip:       true,
		Simulate:      *simulate,
		WaitConfirmed: sc.Config.Broadcast.WaitConfirmed,
		FastATA:       sc.Config.AddressCache.FastATA,
		CloseInputATA: true,
	}
	if *mode == "wrap" {
		amount, err := consts.SolToLamports(*amountSol)
		if err != nil || amount == 0 {
			logx.Errorf("invalid -amount %q", *amountSol)
			return 2
		}
		params.Kind = domain.KindBuy
		params.Amount = amount
		params.CloseInputATA = false
		params.CreateOutputATA = true
	}
	if *nonceAcc != "" {
		acc, err := itypes.TryPubkeyFromBase58(*nonceAcc)
		if err != nil {
			logx.Errorf("invalid -nonce: %v", err)
			return 2
		}
		params.DurableNonce = &domain.NonceRef{Account: acc}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res := sc.Executor.Execute(ctx, params)
	for _, o := range res.Outcomes {
		if o.Success {
			logx.Infof("%s accepted %s (%v)", o.Provider, o.Signature, o.Elapsed)
		} else {
			logx.Infof("%s failed: %v (%v)", o.Provider, o.Err, o.Elapsed)
		}
	}
	if res.Simulation != nil {
		for _, l := range res.Simulation.Logs {
			logx.Info(l)
		}
	}
	return exitCode(res)
}

const (
	exitOK             = 0
	exitFailed         = 1 // 可重试
	exitInvalid        = 2 // 参数、派生或组装错误，重试无意义
	exitConfirmPending = 3 // 已发送但未确认，应查询签名而不是重发
)

func exitCode(res domain.TradeResult) int {
	switch {
	case !res.Success && domain.IsFatal(res.Err):
		logx.Errorf("trade %s rejected: %v", res.TradeID, res.Err)
		return exitInvalid
	case !res.Success:
		logx.Errorf("trade %s failed: %v", res.TradeID, res.Err)
		return exitFailed
	case res.Confirmation == domain.ConfirmationFailed:
		logx.Errorf("trade %s landed but failed on chain: %v", res.TradeID, res.Err)
		return exitFailed
	case domain.IsConfirmationTimeout(res.Err):
		logx.Infof("trade %s sent, not confirmed yet, signatures=%v", res.TradeID, res.Signatures)
		return exitConfirmPending
	}
	logx.Infof("trade %s ok, signatures=%v confirmation=%s", res.TradeID, res.Signatures, res.Confirmation)
	return exitOK
}
