package outcome

import "dex-trader-sol/internal/logic/domain"

// SigStatus 签名状态（Redis 中以整数存储）
type SigStatus int

const (
	SigUnknown   SigStatus = 0 // Redis 不存在
	SigAccepted  SigStatus = 1 // 通道已接受，未确认
	SigRejected  SigStatus = 2 // 通道拒绝
	SigConfirmed SigStatus = 3 // 已确认
	SigFailed    SigStatus = 4 // 链上执行失败
	SigTimedOut  SigStatus = 5 // 确认超时，可能仍会上链
)

func (s SigStatus) String() string {
	switch s {
	case SigAccepted:
		return "accepted"
	case SigRejected:
		return "rejected"
	case SigConfirmed:
		return "confirmed"
	case SigFailed:
		return "failed"
	case SigTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// statusOf 单个通道的结果叠加整体确认状态
func statusOf(o domain.BroadcastOutcome, confirmation domain.ConfirmationStatus) SigStatus {
	if !o.Success {
		return SigRejected
	}
	switch confirmation {
	case domain.ConfirmationConfirmed:
		return SigConfirmed
	case domain.ConfirmationFailed:
		return SigFailed
	case domain.ConfirmationTimedOut:
		return SigTimedOut
	default:
		return SigAccepted
	}
}
