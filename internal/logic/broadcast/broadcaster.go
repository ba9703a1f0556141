package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/provider"
	"dex-trader-sol/internal/metrics"
	"dex-trader-sol/pkg/logger"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/ybbus/jsonrpc/v3"
	"golang.org/x/time/rate"
)

const (
	defaultPerSendTimeout = 3 * time.Second
	defaultConfirmTimeout = 30 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

// Options 广播参数
type Options struct {
	PerSendTimeout time.Duration // 单通道发送超时，超时不影响其他通道
	WaitConfirmed  bool
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func (o Options) withDefaults() Options {
	if o.PerSendTimeout <= 0 {
		o.PerSendTimeout = defaultPerSendTimeout
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = defaultConfirmTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}

// SendJob 一个通道一笔交易
type SendJob struct {
	Provider provider.Provider
	Tx       types.Transaction
	Kind     domain.TradeKind
}

type sendResult struct {
	index   int
	outcome domain.BroadcastOutcome
}

// Broadcaster 并发发送到全部通道，收齐全部结果后返回
type Broadcaster struct {
	providers []provider.Provider
	limiters  map[string]*rate.Limiter
	ledger    domain.LedgerClient
	defaults  Options
}

// NewBroadcaster ledger 仅用于确认轮询，可为 nil（此时不支持等待确认）
func NewBroadcaster(entries []provider.Entry, ledger domain.LedgerClient, defaults Options) *Broadcaster {
	b := &Broadcaster{
		providers: make([]provider.Provider, 0, len(entries)),
		limiters:  make(map[string]*rate.Limiter, len(entries)),
		ledger:    ledger,
		defaults:  defaults.withDefaults(),
	}
	for _, e := range entries {
		b.providers = append(b.providers, e.Provider)
		if e.RatePerSec > 0 {
			burst := int(e.RatePerSec)
			if burst < 1 {
				burst = 1
			}
			b.limiters[e.Provider.Descriptor().Name] = rate.NewLimiter(rate.Limit(e.RatePerSec), burst)
		}
	}
	return b
}

// Providers 已注册的通道
func (b *Broadcaster) Providers() []provider.Provider {
	return b.providers
}

// Defaults 默认广播参数
func (b *Broadcaster) Defaults() Options {
	return b.defaults
}

// BroadcastAll 同一笔交易发往全部通道
func (b *Broadcaster) BroadcastAll(ctx context.Context, tx types.Transaction, kind domain.TradeKind, opts Options) domain.BroadcastResult {
	jobs := make([]SendJob, 0, len(b.providers))
	for _, p := range b.providers {
		jobs = append(jobs, SendJob{Provider: p, Tx: tx, Kind: kind})
	}
	return b.Broadcast(ctx, jobs, opts)
}

// Broadcast 所有发送先全部发出再统一等待；没有首个成功即返回的捷径，
// 因为不同通道可能重新包装交易并返回不同签名
func (b *Broadcaster) Broadcast(ctx context.Context, jobs []SendJob, opts Options) domain.BroadcastResult {
	opts = opts.withDefaultsFrom(b.defaults)
	if len(jobs) == 0 {
		return domain.BroadcastResult{Err: errors.New("no provider configured")}
	}

	var wg sync.WaitGroup
	resultCh := make(chan sendResult, len(jobs)) // 缓冲避免阻塞

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job SendJob) {
			defer wg.Done()
			resultCh <- sendResult{index: i, outcome: b.sendOne(ctx, job, opts.PerSendTimeout)}
		}(i, job)
	}

	// 等待所有发送完成再关闭结果通道
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	outcomes := make([]domain.BroadcastOutcome, len(jobs))
	for res := range resultCh {
		outcomes[res.index] = res.outcome
	}

	result := aggregate(outcomes)
	if result.Success && opts.WaitConfirmed {
		b.confirm(ctx, &result, opts)
	}
	return result
}

// aggregate 按任务顺序聚合；全部失败时只取第一个失败通道的错误
func aggregate(outcomes []domain.BroadcastOutcome) domain.BroadcastResult {
	result := domain.BroadcastResult{Outcomes: outcomes}
	var firstErr error
	for _, o := range outcomes {
		if o.Success {
			result.Success = true
			result.Accepted = append(result.Accepted, domain.Accepted{Provider: o.Provider, Signature: o.Signature})
			continue
		}
		if firstErr == nil && o.Err != nil {
			firstErr = o.Err
		}
	}
	if !result.Success {
		if firstErr == nil {
			firstErr = errors.New("all providers failed")
		}
		result.Err = firstErr
	}
	return result
}

func (b *Broadcaster) sendOne(ctx context.Context, job SendJob, timeout time.Duration) domain.BroadcastOutcome {
	desc := job.Provider.Descriptor()
	outcome := domain.BroadcastOutcome{Provider: desc.Name, Class: desc.Class}
	start := time.Now()

	if lim, ok := b.limiters[desc.Name]; ok && !lim.Allow() {
		outcome.Err = domain.NewProviderError(desc.Name, domain.ProviderCodeRateLimited, "local rate limit exceeded", nil)
		metrics.IncProviderSend(desc.Name, domain.ProviderCodeRateLimited)
		return outcome
	}

	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		sig string
		err error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		sig, err := job.Provider.Send(sendCtx, job.Tx, job.Kind)
		done <- reply{sig: sig, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			outcome.Err = classify(desc.Name, r.err)
		} else {
			outcome.Success = true
			outcome.Signature = r.sig
		}
	case <-sendCtx.Done():
		// 放弃等待，不影响其他通道
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			outcome.Err = domain.NewProviderError(desc.Name, domain.ProviderCodeTimeout, fmt.Sprintf("send timeout (>%v)", timeout), sendCtx.Err())
		} else {
			outcome.Err = domain.NewProviderError(desc.Name, domain.ProviderCodeTransport, "ctx cancelled", sendCtx.Err())
		}
	}

	elapsed := time.Since(start)
	outcome.Elapsed = elapsed
	metrics.ObserveProviderLatency(desc.Name, elapsed)
	if outcome.Success {
		metrics.IncProviderSend(desc.Name, "ok")
		logger.Debugf("[Broadcaster] %s accepted sig=%s cost=%v", desc.Name, outcome.Signature, elapsed)
	} else {
		metrics.IncProviderSend(desc.Name, outcome.Err.Code)
		logger.Warnf("[Broadcaster] %s failed: %v cost=%v", desc.Name, outcome.Err, elapsed)
	}
	return outcome
}

// classify 把通道返回的各种错误统一成 ProviderError
func classify(name string, err error) *domain.ProviderError {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		if pe.Provider == "" {
			pe.Provider = name
		}
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(name, domain.ProviderCodeTimeout, "", err)
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return domain.NewProviderError(name, domain.ProviderCodeRPC, fmt.Sprintf("%d %s", rpcErr.Code, rpcErr.Message), err)
	}
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return domain.NewProviderError(name, domain.ProviderCodeHTTP, httpErr.Error(), err)
	}
	return domain.NewProviderError(name, domain.ProviderCodeTransport, err.Error(), err)
}

func (o Options) withDefaultsFrom(d Options) Options {
	if o.PerSendTimeout <= 0 {
		o.PerSendTimeout = d.PerSendTimeout
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = d.ConfirmTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	return o.withDefaults()
}
