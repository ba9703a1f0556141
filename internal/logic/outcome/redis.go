package outcome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/executor"

	"github.com/redis/go-redis/v9"
)

// Redis key 前缀
const (
	sigPrefix   = "trader:sig"
	tradePrefix = "trader:trade"
)

// 未确认的签名在 blockhash 过期后就没有意义了，保留时间较短
const (
	pendingTTL = 10 * time.Minute
	finalTTL   = 3 * 24 * time.Hour
)

// RedisOutcomeStore 记录 签名 -> 状态 与 交易 -> 签名集合，供对账与外部查询
type RedisOutcomeStore struct {
	rdb *redis.Client
}

var _ executor.OutcomeStore = (*RedisOutcomeStore)(nil)

func NewRedisOutcomeStore(rdb *redis.Client) *RedisOutcomeStore {
	return &RedisOutcomeStore{rdb: rdb}
}

func sigKey(signature string) string {
	return fmt.Sprintf("%s:%s", sigPrefix, signature)
}

func tradeKey(tradeID string) string {
	return fmt.Sprintf("%s:%s", tradePrefix, tradeID)
}

func ttlOf(status SigStatus) time.Duration {
	switch status {
	case SigConfirmed, SigFailed:
		return finalTTL
	default:
		return pendingTTL
	}
}

// Record 一次 pipeline 写入全部签名
func (r *RedisOutcomeStore) Record(ctx context.Context, tradeID string, result domain.BroadcastResult) error {
	pipe := r.rdb.Pipeline()
	var sigs []interface{}
	longest := pendingTTL
	for _, o := range result.Outcomes {
		if o.Signature == "" {
			continue
		}
		status := statusOf(o, result.Confirmation)
		ttl := ttlOf(status)
		if ttl > longest {
			longest = ttl
		}
		pipe.Set(ctx, sigKey(o.Signature), int(status), ttl)
		sigs = append(sigs, o.Signature)
	}
	if len(sigs) == 0 {
		return nil
	}
	pipe.SAdd(ctx, tradeKey(tradeID), sigs...)
	pipe.Expire(ctx, tradeKey(tradeID), longest)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline error: %w", err)
	}
	return nil
}

// GetSignatureStatus 签名不存在时返回 SigUnknown
func (r *RedisOutcomeStore) GetSignatureStatus(ctx context.Context, signature string) (SigStatus, error) {
	val, err := r.rdb.Get(ctx, sigKey(signature)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return SigUnknown, nil
	case err != nil:
		return SigUnknown, fmt.Errorf("redis get error: %w", err)
	case val < int(SigUnknown) || val > int(SigTimedOut):
		return SigUnknown, nil
	default:
		return SigStatus(val), nil
	}
}

// MarkSignature 外部确认后回写最终状态
func (r *RedisOutcomeStore) MarkSignature(ctx context.Context, signature string, status SigStatus) error {
	return r.rdb.Set(ctx, sigKey(signature), int(status), ttlOf(status)).Err()
}

// TradeSignatures 返回交易对应的全部签名
func (r *RedisOutcomeStore) TradeSignatures(ctx context.Context, tradeID string) ([]string, error) {
	sigs, err := r.rdb.SMembers(ctx, tradeKey(tradeID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis smembers error: %w", err)
	}
	return sigs, nil
}
