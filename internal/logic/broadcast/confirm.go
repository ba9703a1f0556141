package broadcast

import (
	"context"
	"errors"
	"time"

	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/metrics"
	"dex-trader-sol/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

var errPending = errors.New("signature not confirmed yet")

// confirm 轮询直到任一签名达到 confirmed；超时与失败分开上报，超时后调用方应重新查询而不是重发
func (b *Broadcaster) confirm(ctx context.Context, result *domain.BroadcastResult, opts Options) {
	sigs := result.Signatures()
	if b.ledger == nil || len(sigs) == 0 {
		return
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, opts.ConfirmTimeout)
	defer cancel()

	// failed 记录第一个链上失败的签名；只有全部签名都失败才提前结束
	var failed *domain.ProviderError
	op := func() error {
		statuses, err := b.ledger.GetSignatureStatuses(waitCtx, sigs)
		if err != nil {
			logger.Debugf("[Broadcaster] 查询签名状态失败: %v", err)
			return err
		}
		pending := len(sigs) - len(statuses)
		for i, st := range statuses {
			switch {
			case st == nil:
				pending++
			case st.Err == nil && (st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized"):
				return nil
			case st.Err != nil:
				if failed == nil && i < len(sigs) {
					failed = domain.NewOnchainError(providerOf(result, sigs[i]), st.Err)
				}
			default:
				pending++
			}
		}
		if failed != nil && pending <= 0 {
			return backoff.Permanent(failed)
		}
		return errPending
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(opts.PollInterval), waitCtx))
	switch {
	case err == nil:
		result.Confirmation = domain.ConfirmationConfirmed
	case failed != nil:
		// 有签名链上失败，其余签名截止前也未确认
		result.Confirmation = domain.ConfirmationFailed
		result.Err = failed
	default:
		result.Confirmation = domain.ConfirmationTimedOut
		result.Err = &domain.ConfirmationTimeout{Signatures: sigs, Waited: time.Since(start)}
		metrics.IncConfirmationTimeouts()
		logger.Warnf("[Broadcaster] %v 内未确认: %v", opts.ConfirmTimeout, sigs)
	}
}

func providerOf(result *domain.BroadcastResult, sig string) string {
	for _, a := range result.Accepted {
		if a.Signature == sig {
			return a.Provider
		}
	}
	return ""
}
