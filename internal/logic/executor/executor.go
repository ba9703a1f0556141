package executor

import (
	"context"
	"errors"
	"time"

	"dex-trader-sol/internal/cache"
	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/assembler"
	"dex-trader-sol/internal/logic/broadcast"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/feestrategy"
	"dex-trader-sol/internal/logic/provider"
	"dex-trader-sol/internal/metrics"
	itypes "dex-trader-sol/internal/types"
	"dex-trader-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/threading"
	"golang.org/x/sync/errgroup"
)

// Journal 已签名交易的旁路记录（Kafka），失败不影响交易
type Journal interface {
	Publish(ctx context.Context, records []JournalRecord) error
}

// JournalRecord 一笔已签名交易
type JournalRecord struct {
	TradeID     string
	Provider    string
	Class       consts.ProviderClass
	Kind        domain.TradeKind
	Signature   string
	TipLamports uint64
	Accepted    bool
	Error       string
	Raw         []byte
}

// OutcomeStore 记录签名结果（Redis），供外部对账
type OutcomeStore interface {
	Record(ctx context.Context, tradeID string, result domain.BroadcastResult) error
}

// Deps 执行器依赖，缓存与费率表由外部构造后注入，便于测试隔离
type Deps struct {
	Builder     domain.InstructionBuilder
	Ledger      domain.LedgerClient
	Table       *feestrategy.Table
	Nonces      *cache.NonceCache
	Blockhashes *cache.BlockhashCache // 可选
	Assembler   *assembler.Assembler
	Broadcaster *broadcast.Broadcaster
	Journal     Journal      // 可选
	Outcomes    OutcomeStore // 可选
	DefaultFee  *domain.FeeStrategyValue
}

// Executor 单笔交易编排：构建 -> 组装 -> 签名 -> (模拟 | 广播) -> 聚合
type Executor struct {
	builder     domain.InstructionBuilder
	ledger      domain.LedgerClient
	table       *feestrategy.Table
	nonces      *cache.NonceCache
	blockhashes *cache.BlockhashCache
	assembler   *assembler.Assembler
	broadcaster *broadcast.Broadcaster
	journal     Journal
	outcomes    OutcomeStore
	defaultFee  *domain.FeeStrategyValue
}

func NewExecutor(deps Deps) (*Executor, error) {
	if deps.Builder == nil {
		return nil, errors.New("executor: instruction builder is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("executor: ledger client is required")
	}
	if deps.Broadcaster == nil {
		return nil, errors.New("executor: broadcaster is required")
	}
	if deps.Table == nil {
		deps.Table = feestrategy.NewTable()
	}
	if deps.Nonces == nil {
		deps.Nonces = cache.NewNonceCache(deps.Ledger)
	}
	if deps.Assembler == nil {
		deps.Assembler = assembler.NewAssembler()
	}
	return &Executor{
		builder:     deps.Builder,
		ledger:      deps.Ledger,
		table:       deps.Table,
		nonces:      deps.Nonces,
		blockhashes: deps.Blockhashes,
		assembler:   deps.Assembler,
		broadcaster: deps.Broadcaster,
		journal:     deps.Journal,
		outcomes:    deps.Outcomes,
		defaultFee:  deps.DefaultFee,
	}, nil
}

// Run 返回 (是否成功, 全部签名, 错误)
func (e *Executor) Run(ctx context.Context, params *domain.TradeParams) (bool, []string, error) {
	res := e.Execute(ctx, params)
	return res.Success, res.Signatures, res.Err
}

// signedJob 组装完成、等待发送的交易
type signedJob struct {
	provider provider.Provider
	result   *assembler.Result
}

// Execute 广播前的任何失败都直接返回，不会触达任何通道
func (e *Executor) Execute(ctx context.Context, params *domain.TradeParams) domain.TradeResult {
	tradeID := uuid.NewString()
	res := domain.TradeResult{TradeID: tradeID}
	metrics.IncTrades()

	fail := func(err error) domain.TradeResult {
		res.Err = err
		metrics.IncTradesFailed()
		logger.Warnf("[Executor] trade=%s 失败: %v", tradeID, err)
		return res
	}

	if err := validate(params); err != nil {
		return fail(err)
	}

	// 1. 指令构建与 blockhash / nonce 获取并行
	var (
		business  []types.Instruction
		nonceInfo *domain.DurableNonceInfo
		blockhash = params.RecentBlockhash
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ixs, err := e.builder.Build(gctx, params.Kind, params)
		if err != nil {
			return err
		}
		business = ixs
		return nil
	})
	g.Go(func() error {
		if params.DurableNonce != nil {
			info, err := e.nonces.Fetch(gctx, params.DurableNonce.Account)
			if err != nil {
				return err
			}
			nonceInfo = &info
			return nil
		}
		if blockhash != "" {
			return nil
		}
		bh, err := e.latestBlockhash(gctx)
		if err != nil {
			return err
		}
		blockhash = bh
		return nil
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	// 2. 规划 (通道 × 费率) 任务
	plans, err := e.plan(params, nonceInfo != nil)
	if err != nil {
		return fail(err)
	}

	// 3. 全部组装签名完成后再进入发送
	jobs := make([]signedJob, 0, len(plans))
	for _, pl := range plans {
		out, err := e.assembler.Assemble(assembler.Request{
			Payer:        params.Payer,
			Provider:     pl.provider.Descriptor(),
			Kind:         params.Kind,
			Fee:          pl.fee,
			WithTip:      pl.withTip,
			TipAccount:   pl.tipAccount,
			AntiFront:    params.AntiFront,
			Nonce:        nonceInfo,
			Blockhash:    blockhash,
			Instructions: business,
			LookupTable:  params.LookupTable,
		})
		if err != nil {
			metrics.IncAssembleFailures()
			return fail(err)
		}
		jobs = append(jobs, signedJob{provider: pl.provider, result: out})
	}

	// 4. 签名回调
	if err := e.notifySigned(tradeID, params, jobs); err != nil {
		return fail(err)
	}

	// 5. 模拟：只调用一次 simulate，不发送
	if params.Simulate {
		return e.simulate(ctx, res, jobs[0])
	}

	// 6. 广播
	sendJobs := make([]broadcast.SendJob, 0, len(jobs))
	for _, j := range jobs {
		sendJobs = append(sendJobs, broadcast.SendJob{Provider: j.provider, Tx: j.result.Tx, Kind: params.Kind})
	}
	opts := e.broadcaster.Defaults()
	opts.WaitConfirmed = params.WaitConfirmed
	bres := e.broadcaster.Broadcast(ctx, sendJobs, opts)

	e.record(ctx, tradeID, params.Kind, jobs, bres)

	res.Success = bres.Success
	res.Signatures = bres.Signatures()
	res.Err = bres.Err
	res.Confirmation = bres.Confirmation
	res.Outcomes = bres.Outcomes
	if res.Success {
		metrics.IncTradesSucceeded()
		logger.Infof("[Executor] trade=%s kind=%s 已被 %d/%d 个通道接受, confirmation=%s", tradeID, params.Kind, len(bres.Accepted), len(sendJobs), bres.Confirmation)
	} else {
		metrics.IncTradesFailed()
		logger.Warnf("[Executor] trade=%s kind=%s 全部通道失败: %v", tradeID, params.Kind, bres.Err)
	}
	return res
}

func validate(params *domain.TradeParams) error {
	if params == nil {
		return domain.NewParameterError("params", "nil")
	}
	if !params.Kind.Valid() {
		return domain.NewParameterError("kind", "unknown trade kind %d", params.Kind)
	}
	if itypes.IsZero(params.Payer.PublicKey) || len(params.Payer.PrivateKey) == 0 {
		return domain.NewParameterError("payer", "missing payer keypair")
	}
	if itypes.IsZero(params.Mint) {
		return domain.NewParameterError("mint", "missing mint")
	}
	if params.SlippageBps > 10_000 {
		return domain.NewParameterError("slippage_bps", "%d exceeds 10000", params.SlippageBps)
	}
	if params.DurableNonce != nil && itypes.IsZero(params.DurableNonce.Account) {
		return domain.NewParameterError("durable_nonce", "missing nonce account")
	}
	return nil
}

func (e *Executor) latestBlockhash(ctx context.Context) (string, error) {
	if e.blockhashes != nil {
		if bh, ok := e.blockhashes.Get(); ok {
			return bh, nil
		}
	}
	bh, err := e.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		var le *domain.LedgerError
		if !errors.As(err, &le) {
			err = &domain.LedgerError{Op: "getLatestBlockhash", Err: err}
		}
		return "", err
	}
	if e.blockhashes != nil {
		e.blockhashes.Update(bh, 0)
	}
	return bh, nil
}

type jobPlan struct {
	provider   provider.Provider
	fee        *domain.FeeStrategyValue
	withTip    bool
	tipAccount common.PublicKey
}

// plan 每个通道按其费率配置生成 1 或 2 笔交易；同一通道的多笔交易共用同一个小费账户
func (e *Executor) plan(params *domain.TradeParams, hasNonce bool) ([]jobPlan, error) {
	var source domain.StrategySource = e.table
	if params.Strategy != nil {
		source = params.Strategy
	}

	providers := e.broadcaster.Providers()
	if len(providers) == 0 {
		if !params.Simulate {
			return nil, domain.NewParameterError("providers", "no provider configured")
		}
		providers = []provider.Provider{provider.NewRPCProvider("simulate", "", e.ledger)}
	}

	plans := make([]jobPlan, 0, len(providers)*2)
	for _, p := range providers {
		desc := p.Descriptor()
		values := source.Get(desc.Class, params.Kind)
		if len(values) == 0 && e.defaultFee != nil {
			v := *e.defaultFee
			v.Class, v.Kind, v.Variant = desc.Class, params.Kind, domain.VariantNormal
			values = []domain.FeeStrategyValue{v}
		}

		// 没有小费账户的通道（普通 RPC）不带小费
		var tipAccount common.PublicKey
		withTip := false
		if params.WithTip {
			tipAccount, withTip = desc.PickTipAccount()
		}

		if len(values) == 0 {
			plans = append(plans, jobPlan{provider: p, withTip: withTip, tipAccount: tipAccount})
			continue
		}
		for i := range values {
			v := values[i]
			plans = append(plans, jobPlan{provider: p, fee: &v, withTip: withTip, tipAccount: tipAccount})
		}
	}

	// 多笔买入交易如果都能上链会重复买入，必须用 durable nonce 保证只有一笔生效
	if params.Kind == domain.KindBuy && len(plans) > 1 && !hasNonce && !params.Simulate {
		return nil, domain.NewParameterError("durable_nonce", "%d buy transactions require a durable nonce", len(plans))
	}
	return plans, nil
}

func (e *Executor) notifySigned(tradeID string, params *domain.TradeParams, jobs []signedJob) error {
	if params.OnSigned == nil {
		return nil
	}
	for _, j := range jobs {
		desc := j.provider.Descriptor()
		cbCtx := domain.CallbackContext{
			TradeID:     tradeID,
			Tx:          j.result.Tx,
			Provider:    desc.Name,
			Class:       desc.Class,
			Kind:        params.Kind,
			Signature:   j.result.Signature,
			TimestampNs: time.Now().UnixNano(),
			WithTip:     j.result.TipLamports > 0,
			TipLamports: j.result.TipLamports,
		}
		if params.CallbackMode == domain.CallbackSync {
			if err := params.OnSigned(cbCtx); err != nil {
				return domain.NewParameterError("on_signed", "callback rejected: %v", err)
			}
			continue
		}
		cb := params.OnSigned
		threading.GoSafe(func() {
			if err := cb(cbCtx); err != nil {
				logger.Warnf("[Executor] trade=%s 签名回调失败: %v", tradeID, err)
			}
		})
	}
	return nil
}

func (e *Executor) simulate(ctx context.Context, res domain.TradeResult, job signedJob) domain.TradeResult {
	metrics.IncTradesSimulated()
	sim, err := e.ledger.Simulate(ctx, job.result.Tx)
	if err != nil {
		var le *domain.LedgerError
		if !errors.As(err, &le) {
			err = &domain.LedgerError{Op: "simulateTransaction", Err: err}
		}
		res.Err = err
		return res
	}
	res.Simulation = sim
	res.Signatures = []string{job.result.Signature}
	if sim.Err != nil {
		res.Err = domain.NewOnchainError("simulate", sim.Err)
		logger.Infof("[Executor] trade=%s 模拟失败: %v, units=%d", res.TradeID, sim.Err, sim.UnitsConsumed)
		return res
	}
	res.Success = true
	logger.Infof("[Executor] trade=%s 模拟成功, units=%d", res.TradeID, sim.UnitsConsumed)
	return res
}

// record 旁路记录，不影响返回结果
func (e *Executor) record(ctx context.Context, tradeID string, kind domain.TradeKind, jobs []signedJob, bres domain.BroadcastResult) {
	if e.outcomes != nil {
		if err := e.outcomes.Record(ctx, tradeID, bres); err != nil {
			logger.Warnf("[Executor] trade=%s 记录结果失败: %v", tradeID, err)
		}
	}
	if e.journal == nil {
		return
	}

	records := make([]JournalRecord, 0, len(jobs))
	for i, j := range jobs {
		desc := j.provider.Descriptor()
		rec := JournalRecord{
			TradeID:     tradeID,
			Provider:    desc.Name,
			Class:       desc.Class,
			Kind:        kind,
			Signature:   j.result.Signature,
			TipLamports: j.result.TipLamports,
		}
		if i < len(bres.Outcomes) {
			o := bres.Outcomes[i]
			rec.Accepted = o.Success
			if o.Success && o.Signature != "" {
				rec.Signature = o.Signature
			}
			if o.Err != nil {
				rec.Error = o.Err.Error()
			}
		}
		if raw, err := j.result.Tx.Serialize(); err == nil {
			rec.Raw = raw
		}
		records = append(records, rec)
	}
	threading.GoSafe(func() {
		if err := e.journal.Publish(context.Background(), records); err != nil {
			metrics.IncJournalFailures()
			logger.Warnf("[Executor] trade=%s 写入交易流水失败: %v", tradeID, err)
		}
	})
}
