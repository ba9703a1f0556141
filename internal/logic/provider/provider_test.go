package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTx(t *testing.T) soltypes.Transaction {
	t.Helper()
	payer := soltypes.NewAccount()
	tx, err := soltypes.NewTransaction(soltypes.NewTransactionParam{
		Message: soltypes.NewMessage(soltypes.NewMessageParam{
			FeePayer:        payer.PublicKey,
			RecentBlockhash: "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
			Instructions: []soltypes.Instruction{system.Transfer(system.TransferParam{
				From: payer.PublicKey, To: soltypes.NewAccount().PublicKey, Amount: 1,
			})},
		}),
		Signers: []soltypes.Account{payer},
	})
	require.NoError(t, err)
	return tx
}

func TestDescriptor_EffectiveTip(t *testing.T) {
	jito := Descriptor{Class: consts.ProviderJito}
	assert.Equal(t, consts.JitoMinTipLamports, jito.EffectiveTip(1))
	assert.Equal(t, uint64(5_000), jito.EffectiveTip(5_000))

	custom := Descriptor{Class: consts.ProviderJito, MinTipLamports: 10_000}
	assert.Equal(t, uint64(10_000), custom.EffectiveTip(5_000))

	// 非 Jito 类别即便配置了下限也不生效
	relay := Descriptor{Class: consts.ProviderNextBlock, MinTipLamports: 10_000}
	assert.Equal(t, uint64(1), relay.EffectiveTip(1))
}

func TestDescriptor_PickTipAccount(t *testing.T) {
	_, ok := Descriptor{}.PickTipAccount()
	assert.False(t, ok)

	_, ok = Descriptor{TipAccounts: []common.PublicKey{{}}}.PickTipAccount()
	assert.False(t, ok)

	accounts := DefaultTipAccounts(consts.ProviderJito)
	require.Len(t, accounts, len(consts.JitoTipAccountStrs))
	desc := Descriptor{TipAccounts: accounts}
	for i := 0; i < 20; i++ {
		acc, ok := desc.PickTipAccount()
		require.True(t, ok)
		assert.Contains(t, accounts, acc)
	}
	assert.Nil(t, DefaultTipAccounts(consts.ProviderNextBlock))
}

func TestLocalSignature(t *testing.T) {
	assert.Empty(t, LocalSignature(soltypes.Transaction{}))
	tx := signedTx(t)
	assert.NotEmpty(t, LocalSignature(tx))

	_, err := EncodeTransaction(soltypes.Transaction{})
	assert.Error(t, err)
}

func TestLoadProviders(t *testing.T) {
	data := []byte(`
providers:
  - name: jito-ny
    class: jito
    region: ny
    min_tip_sol: "0.00001"
  - name: nb
    class: NextBlock
    endpoint: https://fra.nextblock.io
    auth_header: Authorization
    auth_token: secret
    tip_accounts: ["5ZiE3vAkrdXBgyFL7KqG3RoEGBws4CjRcXVbABDLZTgx"]
    rate_per_sec: 5
  - name: rpc
    class: default
  - name: off
    class: temporal
    disabled: true
`)
	entries, err := LoadProviders(data, &nopLedger{}, time.Second)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	jito := entries[0].Provider.Descriptor()
	assert.Equal(t, consts.ProviderJito, jito.Class)
	assert.Equal(t, JitoRegionEndpoints["ny"], jito.Endpoint)
	assert.Equal(t, uint64(10_000), jito.MinTipLamports)
	assert.Len(t, jito.TipAccounts, len(consts.JitoTipAccountStrs))
	assert.IsType(t, &JitoProvider{}, entries[0].Provider)

	nb := entries[1].Provider.Descriptor()
	assert.Equal(t, consts.ProviderNextBlock, nb.Class)
	assert.Zero(t, nb.MinTipLamports)
	assert.Len(t, nb.TipAccounts, 1)
	assert.Equal(t, 5.0, entries[1].RatePerSec)
	assert.IsType(t, &RelayProvider{}, entries[1].Provider)

	assert.IsType(t, &RPCProvider{}, entries[2].Provider)
}

func TestLoadProviders_Invalid(t *testing.T) {
	cases := map[string]string{
		"duplicate":      "providers:\n  - {name: a, class: default}\n  - {name: a, class: default}\n",
		"missing name":   "providers:\n  - {class: default}\n",
		"unknown class":  "providers:\n  - {name: a, class: foo}\n",
		"relay endpoint": "providers:\n  - {name: a, class: nextblock}\n",
		"jito region":    "providers:\n  - {name: a, class: jito, region: mars}\n",
		"unknown api":    "providers:\n  - {name: a, class: default, api: grpc}\n",
		"tip account":    "providers:\n  - {name: a, class: default, tip_accounts: [xyz]}\n",
		"bundle relay":   "providers:\n  - {name: a, class: nextblock, endpoint: http://x, bundle_only: true}\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadProviders([]byte(data), &nopLedger{}, time.Second)
			assert.True(t, errors.Is(err, ErrInvalidProvider), "%v", err)
		})
	}
}

func TestRelayProvider_Send(t *testing.T) {
	var gotAuth string
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req relayRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		gotMethod = req.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"relaySig"}`))
	}))
	defer srv.Close()

	p := NewRelayProvider(Descriptor{Name: "nb", Class: consts.ProviderNextBlock, Endpoint: srv.URL}, RelayAuth{Header: "Authorization", Token: "secret"}, time.Second)
	sig, err := p.Send(context.Background(), signedTx(t), domain.KindBuy)
	require.NoError(t, err)
	assert.Equal(t, "relaySig", sig)
	assert.Equal(t, "secret", gotAuth)
	assert.Equal(t, "sendTransaction", gotMethod)
}

func TestRelayProvider_Errors(t *testing.T) {
	status := http.StatusTooManyRequests
	body := `{}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := NewRelayProvider(Descriptor{Name: "nb", Endpoint: srv.URL}, RelayAuth{}, time.Second)
	tx := signedTx(t)

	_, err := p.Send(context.Background(), tx, domain.KindBuy)
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.ProviderCodeRateLimited, pe.Code)

	status = http.StatusOK
	body = `{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Error processing Instruction 2: custom program error"}}`
	_, err = p.Send(context.Background(), tx, domain.KindBuy)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.ProviderCodeRPC, pe.Code)
	require.NotNil(t, pe.InstructionIndex)
	assert.Equal(t, 2, *pe.InstructionIndex)

	status = http.StatusBadGateway
	body = `{}`
	_, err = p.Send(context.Background(), tx, domain.KindBuy)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.ProviderCodeHTTP, pe.Code)

	// 通道未返回签名时取交易自身签名
	status = http.StatusOK
	body = `{"jsonrpc":"2.0","id":1,"result":""}`
	sig, err := p.Send(context.Background(), tx, domain.KindBuy)
	require.NoError(t, err)
	assert.Equal(t, LocalSignature(tx), sig)
}

func TestJitoProvider_Send(t *testing.T) {
	var gotPath, gotUUID, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUUID = r.URL.Query().Get("uuid")
		gotHeader = r.Header.Get(jitoAuthHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":"jitoSig"}`))
	}))
	defer srv.Close()

	p := NewJitoProvider(Descriptor{Name: "jito", Class: consts.ProviderJito, Endpoint: srv.URL + "/"}, "token", time.Second)
	sig, err := p.Send(context.Background(), signedTx(t), domain.KindSell)
	require.NoError(t, err)
	assert.Equal(t, "jitoSig", sig)
	assert.Equal(t, jitoTransactionsPath, gotPath)
	assert.Equal(t, "token", gotUUID)
	assert.Equal(t, "token", gotHeader)
	assert.Equal(t, srv.URL, p.Descriptor().Endpoint)

	id, err := p.SendBundle(context.Background(), []soltypes.Transaction{signedTx(t)})
	require.NoError(t, err)
	assert.Equal(t, "jitoSig", id)
	assert.Equal(t, jitoBundlesPath, gotPath)
}

func TestJitoProvider_BundleOnly(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req relayRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		gotMethod = req.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":"bundle-id-1"}`))
	}))
	defer srv.Close()

	data := []byte("providers:\n  - {name: jb, class: jito, endpoint: " + srv.URL + ", bundle_only: true}\n")
	entries, err := LoadProviders(data, &nopLedger{}, time.Second)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	tx := signedTx(t)
	sig, err := entries[0].Provider.Send(context.Background(), tx, domain.KindBuy)
	require.NoError(t, err)
	// bundle id 不是签名，返回交易自身签名
	assert.Equal(t, LocalSignature(tx), sig)
	assert.Equal(t, jitoBundlesPath, gotPath)
	assert.Equal(t, "sendBundle", gotMethod)
}

func TestJitoProvider_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":0,"error":{"code":-32602,"message":"bundle contains an expired blockhash"}}`))
	}))
	defer srv.Close()

	p := NewJitoProvider(Descriptor{Name: "jito", Endpoint: srv.URL}, "", time.Second)
	_, err := p.Send(context.Background(), signedTx(t), domain.KindBuy)
	assert.ErrorContains(t, err, "expired blockhash")
}

func TestRPCProvider_Send(t *testing.T) {
	tx := signedTx(t)
	p := NewRPCProvider("rpc", "", &nopLedger{sig: "rpcSig"})
	sig, err := p.Send(context.Background(), tx, domain.KindBuy)
	require.NoError(t, err)
	assert.Equal(t, "rpcSig", sig)

	p = NewRPCProvider("rpc", "", &nopLedger{})
	sig, err = p.Send(context.Background(), tx, domain.KindBuy)
	require.NoError(t, err)
	assert.Equal(t, LocalSignature(tx), sig)
}

func TestTipFloorClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"time":"2024-01-01T00:00:00Z","landed_tips_25th_percentile":0.000001,"landed_tips_50th_percentile":0.00001,"landed_tips_75th_percentile":0.0001,"landed_tips_95th_percentile":0.001,"landed_tips_99th_percentile":0.01,"ema_landed_tips_50th_percentile":0.00002}]`))
	}))
	defer srv.Close()

	floor, err := NewTipFloorClient(srv.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), floor.PercentileLamports(25))
	assert.Equal(t, uint64(10_000), floor.PercentileLamports(50))
	assert.Equal(t, uint64(10_000), floor.PercentileLamports(60))
	assert.Equal(t, uint64(100_000), floor.PercentileLamports(75))
	assert.Equal(t, uint64(10_000_000), floor.PercentileLamports(99))
}

func TestTipFloorClient_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewTipFloorClient(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}

type nopLedger struct {
	sig string
}

func (l *nopLedger) GetLatestBlockhash(context.Context) (string, error) { return "", nil }
func (l *nopLedger) GetAccount(context.Context, common.PublicKey) (*domain.AccountInfo, error) {
	return nil, nil
}
func (l *nopLedger) GetMinimumBalanceForRentExemption(context.Context, uint64) (uint64, error) {
	return 0, nil
}
func (l *nopLedger) Simulate(context.Context, soltypes.Transaction) (*domain.SimulationResult, error) {
	return nil, nil
}
func (l *nopLedger) Send(context.Context, soltypes.Transaction) (string, error) { return l.sig, nil }
func (l *nopLedger) GetSignatureStatuses(context.Context, []string) ([]*domain.SignatureStatus, error) {
	return nil, nil
}
