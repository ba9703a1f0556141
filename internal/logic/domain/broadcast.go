package domain

import (
	"time"

	"dex-trader-sol/internal/consts"
)

// ConfirmationStatus 可选的确认等待结果
type ConfirmationStatus uint8

const (
	ConfirmationNotRequested ConfirmationStatus = iota
	ConfirmationConfirmed
	ConfirmationTimedOut // 不等于失败，交易仍可能上链
	ConfirmationFailed
)

func (s ConfirmationStatus) String() string {
	switch s {
	case ConfirmationConfirmed:
		return "confirmed"
	case ConfirmationTimedOut:
		return "timed_out"
	case ConfirmationFailed:
		return "failed"
	default:
		return "not_requested"
	}
}

// BroadcastOutcome 单个通道的发送结果
type BroadcastOutcome struct {
	Provider  string
	Class     consts.ProviderClass
	Success   bool
	Signature string
	Err       *ProviderError
	Elapsed   time.Duration
}

// Accepted 被通道接受的签名
type Accepted struct {
	Provider  string
	Signature string
}

// BroadcastResult 聚合结果
type BroadcastResult struct {
	Success      bool       // 至少一个通道接受
	Accepted     []Accepted // 所有被接受的签名，按任务顺序
	Outcomes     []BroadcastOutcome
	Err          error // 仅在全部失败时取第一个失败通道的错误；确认超时时为 *ConfirmationTimeout
	Confirmation ConfirmationStatus
}

// Signatures 去重后的签名列表
func (r *BroadcastResult) Signatures() []string {
	seen := make(map[string]struct{}, len(r.Accepted))
	out := make([]string, 0, len(r.Accepted))
	for _, a := range r.Accepted {
		if _, ok := seen[a.Signature]; ok {
			continue
		}
		seen[a.Signature] = struct{}{}
		out = append(out, a.Signature)
	}
	return out
}
