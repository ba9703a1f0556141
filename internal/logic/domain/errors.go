package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParameterError 入参非法，在任何网络调用前发现
type ParameterError struct {
	Field  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

func NewParameterError(field, format string, args ...interface{}) *ParameterError {
	return &ParameterError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DerivationError 地址派生失败
type DerivationError struct {
	Owner  string
	Mint   string
	Reason string
	Err    error
}

func (e *DerivationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("derive address owner=%s mint=%s: %s: %v", e.Owner, e.Mint, e.Reason, e.Err)
	}
	return fmt.Sprintf("derive address owner=%s mint=%s: %s", e.Owner, e.Mint, e.Reason)
}

func (e *DerivationError) Unwrap() error { return e.Err }

// AssemblyError 组装阶段失败（顺序、大小、签名）
type AssemblyError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *AssemblyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assemble %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("assemble %s: %s", e.Stage, e.Reason)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// ProviderError 单个加速通道发送失败
type ProviderError struct {
	Provider         string
	Code             string // timeout / rate_limited / rpc / http / onchain / transport
	Message          string
	InstructionIndex *int // 链上报错能定位到指令时填充
	Err              error
}

const (
	ProviderCodeTimeout     = "timeout"
	ProviderCodeRateLimited = "rate_limited"
	ProviderCodeRPC         = "rpc"
	ProviderCodeHTTP        = "http"
	ProviderCodeTransport   = "transport"
	ProviderCodeOnchain     = "onchain"
)

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString("provider ")
	b.WriteString(e.Provider)
	b.WriteString(" [")
	b.WriteString(e.Code)
	b.WriteString("]")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.InstructionIndex != nil {
		b.WriteString(" (instruction ")
		b.WriteString(strconv.Itoa(*e.InstructionIndex))
		b.WriteString(")")
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

var instructionIndexRe = regexp.MustCompile(`(?i)error processing instruction (\d+)`)

// NewProviderError 构造通道错误，会尝试从报错文本中解析出错指令下标
func NewProviderError(provider, code, message string, cause error) *ProviderError {
	pe := &ProviderError{Provider: provider, Code: code, Message: message, Err: cause}
	text := message
	if text == "" && cause != nil {
		text = cause.Error()
	}
	if m := instructionIndexRe.FindStringSubmatch(text); len(m) == 2 {
		if idx, err := strconv.Atoi(m[1]); err == nil {
			pe.InstructionIndex = &idx
		}
	}
	return pe
}

// ConfirmationTimeout 已被通道接受，但在超时内未观察到确认；调用方应重新查询而非重发
type ConfirmationTimeout struct {
	Signatures []string
	Waited     time.Duration
}

func (e *ConfirmationTimeout) Error() string {
	return fmt.Sprintf("confirmation not observed within %v for %d signature(s)", e.Waited, len(e.Signatures))
}

// LedgerError 远端 RPC 调用失败
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// IsFatal 参数、派生、组装错误会中止整个交易流程
func IsFatal(err error) bool {
	var pe *ParameterError
	var de *DerivationError
	var ae *AssemblyError
	return errors.As(err, &pe) || errors.As(err, &de) || errors.As(err, &ae)
}

func IsConfirmationTimeout(err error) bool {
	var ct *ConfirmationTimeout
	return errors.As(err, &ct)
}

// NewOnchainError 链上错误结构（如 {"InstructionError":[2,{"Custom":6001}]}）转 ProviderError
func NewOnchainError(provider string, raw interface{}) *ProviderError {
	pe := NewProviderError(provider, ProviderCodeOnchain, fmt.Sprintf("%v", raw), nil)
	if pe.InstructionIndex == nil {
		pe.InstructionIndex = instructionIndexOf(raw)
	}
	return pe
}

func instructionIndexOf(raw interface{}) *int {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	detail, ok := m["InstructionError"].([]interface{})
	if !ok || len(detail) == 0 {
		return nil
	}
	switch v := detail[0].(type) {
	case float64:
		idx := int(v)
		return &idx
	case int:
		idx := v
		return &idx
	}
	return nil
}
