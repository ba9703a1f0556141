package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/pkg/logger"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/ybbus/jsonrpc/v3"
)

// JitoRegionEndpoints block engine 区域地址
var JitoRegionEndpoints = map[string]string{
	"default":   "https://mainnet.block-engine.jito.wtf",
	"amsterdam": "https://amsterdam.mainnet.block-engine.jito.wtf",
	"frankfurt": "https://frankfurt.mainnet.block-engine.jito.wtf",
	"london":    "https://london.mainnet.block-engine.jito.wtf",
	"ny":        "https://ny.mainnet.block-engine.jito.wtf",
	"slc":       "https://slc.mainnet.block-engine.jito.wtf",
	"singapore": "https://singapore.mainnet.block-engine.jito.wtf",
	"tokyo":     "https://tokyo.mainnet.block-engine.jito.wtf",
}

const (
	jitoTransactionsPath = "/api/v1/transactions"
	jitoBundlesPath      = "/api/v1/bundles"
	jitoAuthHeader       = "x-jito-auth"
)

// JitoProvider 通过 block engine JSON-RPC 发送交易或 bundle
type JitoProvider struct {
	desc         Descriptor
	txClient     jsonrpc.RPCClient
	bundleClient jsonrpc.RPCClient
	bundleOnly   bool // 单笔交易也以 bundle 发送，失败的交易不会上链
}

// NewJitoProvider authToken 为空时不带鉴权
func NewJitoProvider(desc Descriptor, authToken string, timeout time.Duration) *JitoProvider {
	base := strings.TrimRight(desc.Endpoint, "/")
	if base == "" {
		base = JitoRegionEndpoints["default"]
	}
	desc.Endpoint = base

	opts := &jsonrpc.RPCClientOpts{
		HTTPClient:    &http.Client{Timeout: timeout},
		CustomHeaders: map[string]string{},
	}
	txURL := base + jitoTransactionsPath
	if authToken != "" {
		opts.CustomHeaders[jitoAuthHeader] = authToken
		txURL += "?uuid=" + url.QueryEscape(authToken)
	}
	return &JitoProvider{
		desc:         desc,
		txClient:     jsonrpc.NewClientWithOpts(txURL, opts),
		bundleClient: jsonrpc.NewClientWithOpts(base+jitoBundlesPath, opts),
	}
}

// UseBundles 切换为 bundle 发送
func (p *JitoProvider) UseBundles() *JitoProvider {
	p.bundleOnly = true
	return p
}

func (p *JitoProvider) Descriptor() Descriptor {
	return p.desc
}

// Send sendTransaction，返回签名；bundle 模式下返回交易自身签名
func (p *JitoProvider) Send(ctx context.Context, tx soltypes.Transaction, kind domain.TradeKind) (string, error) {
	if p.bundleOnly {
		id, err := p.SendBundle(ctx, []soltypes.Transaction{tx})
		if err != nil {
			return "", err
		}
		logger.Debugf("[JitoProvider] %s %s bundle=%s", p.desc.Name, kind, id)
		return LocalSignature(tx), nil
	}
	encoded, err := EncodeTransaction(tx)
	if err != nil {
		return "", err
	}
	res, err := p.txClient.Call(ctx, "sendTransaction", encoded, map[string]string{"encoding": "base64"})
	if err != nil {
		return "", err
	}
	if res.Error != nil {
		return "", res.Error
	}
	sig, err := res.GetString()
	if err != nil || sig == "" {
		return LocalSignature(tx), nil
	}
	return sig, nil
}

// SendBundle sendBundle，返回 bundle id
func (p *JitoProvider) SendBundle(ctx context.Context, txs []soltypes.Transaction) (string, error) {
	encoded := make([]string, 0, len(txs))
	for _, tx := range txs {
		e, err := EncodeTransaction(tx)
		if err != nil {
			return "", err
		}
		encoded = append(encoded, e)
	}
	res, err := p.bundleClient.Call(ctx, "sendBundle", encoded, map[string]string{"encoding": "base64"})
	if err != nil {
		return "", err
	}
	if res.Error != nil {
		return "", res.Error
	}
	return res.GetString()
}
