package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dex-trader-sol/internal/logic/domain"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/go-resty/resty/v2"
)

// RelayAuth 通道鉴权方式：header 或 query 参数
type RelayAuth struct {
	Header string // 例如 Authorization / api-key
	Query  string // 例如 api-key / c
	Token  string
}

type relayRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type relayResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// RelayProvider 接受 sendTransaction 形式请求的第三方加速通道（NextBlock、0slot、Astralane 等）
// 不同通道只在地址、鉴权方式与小费账户上不同
type RelayProvider struct {
	desc   Descriptor
	auth   RelayAuth
	client *resty.Client
}

func NewRelayProvider(desc Descriptor, auth RelayAuth, timeout time.Duration) *RelayProvider {
	desc.Endpoint = strings.TrimRight(desc.Endpoint, "/")
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	if auth.Header != "" && auth.Token != "" {
		client.SetHeader(auth.Header, auth.Token)
	}
	if auth.Query != "" && auth.Token != "" {
		client.SetQueryParam(auth.Query, auth.Token)
	}
	return &RelayProvider{desc: desc, auth: auth, client: client}
}

func (p *RelayProvider) Descriptor() Descriptor {
	return p.desc
}

func (p *RelayProvider) Send(ctx context.Context, tx soltypes.Transaction, kind domain.TradeKind) (string, error) {
	encoded, err := EncodeTransaction(tx)
	if err != nil {
		return "", err
	}
	body := relayRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendTransaction",
		Params: []interface{}{
			encoded,
			map[string]interface{}{"encoding": "base64", "skipPreflight": true},
		},
	}

	var out relayResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(p.desc.Endpoint)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return "", domain.NewProviderError(p.desc.Name, domain.ProviderCodeRateLimited, resp.Status(), nil)
	}
	if out.Error != nil {
		return "", domain.NewProviderError(p.desc.Name, domain.ProviderCodeRPC, fmt.Sprintf("%d %s", out.Error.Code, out.Error.Message), nil)
	}
	if resp.IsError() {
		return "", domain.NewProviderError(p.desc.Name, domain.ProviderCodeHTTP, fmt.Sprintf("%s: %s", resp.Status(), strings.TrimSpace(resp.String())), nil)
	}
	if out.Result == "" {
		return LocalSignature(tx), nil
	}
	return out.Result, nil
}
