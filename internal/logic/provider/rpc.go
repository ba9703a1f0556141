package provider

import (
	"context"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"

	soltypes "github.com/blocto/solana-go-sdk/types"
)

// RPCProvider 普通 RPC 节点直发，不收小费
type RPCProvider struct {
	desc   Descriptor
	ledger domain.LedgerClient
}

func NewRPCProvider(name, endpoint string, ledger domain.LedgerClient) *RPCProvider {
	return &RPCProvider{
		desc: Descriptor{
			Name:     name,
			Class:    consts.ProviderDefault,
			Endpoint: endpoint,
		},
		ledger: ledger,
	}
}

func (p *RPCProvider) Descriptor() Descriptor {
	return p.desc
}

func (p *RPCProvider) Send(ctx context.Context, tx soltypes.Transaction, kind domain.TradeKind) (string, error) {
	sig, err := p.ledger.Send(ctx, tx)
	if err != nil {
		return "", err
	}
	if sig == "" {
		return LocalSignature(tx), nil
	}
	return sig, nil
}
