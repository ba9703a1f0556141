package provider

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	"gopkg.in/yaml.v3"
)

var ErrInvalidProvider = errors.New("invalid provider config")

// ProvidersConfig 通道配置文件
type ProvidersConfig struct {
	Providers []ProviderSpec `yaml:"providers"`
}

type ProviderSpec struct {
	Name        string   `yaml:"name"`
	Class       string   `yaml:"class"`  // jito / nextblock / zeroslot / ... / default
	API         string   `yaml:"api"`    // jito / relay / rpc，为空时按类别推断
	Region      string   `yaml:"region"` // 仅 jito，endpoint 为空时使用
	Endpoint    string   `yaml:"endpoint"`
	AuthToken   string   `yaml:"auth_token"`
	AuthHeader  string   `yaml:"auth_header"`
	AuthQuery   string   `yaml:"auth_query"`
	MinTipSol   string   `yaml:"min_tip_sol"` // 覆盖默认下限，仅对强制下限的类别有效
	TipAccounts []string `yaml:"tip_accounts"`
	RatePerSec  float64  `yaml:"rate_per_sec"` // 0 表示不限速
	BundleOnly  bool     `yaml:"bundle_only"`  // 仅 jito
	Disabled    bool     `yaml:"disabled"`
}

// Entry 加载后的通道及其限速配置
type Entry struct {
	Provider   Provider
	RatePerSec float64
}

// LoadProvidersFile 从 yaml 文件加载通道
func LoadProvidersFile(file string, ledger domain.LedgerClient, timeout time.Duration) ([]Entry, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return LoadProviders(data, ledger, timeout)
}

func LoadProviders(data []byte, ledger domain.LedgerClient, timeout time.Duration) ([]Entry, error) {
	var cfg ProvidersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(cfg.Providers))
	seen := make(map[string]struct{}, len(cfg.Providers))
	for _, spec := range cfg.Providers {
		if spec.Disabled {
			continue
		}
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: missing name", ErrInvalidProvider)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %s", ErrInvalidProvider, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		p, err := buildProvider(spec, ledger, timeout)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Provider: p, RatePerSec: spec.RatePerSec})
	}
	return entries, nil
}

func buildProvider(spec ProviderSpec, ledger domain.LedgerClient, timeout time.Duration) (Provider, error) {
	class := consts.ProviderDefault
	if spec.Class != "" {
		c, err := consts.ParseProviderClass(spec.Class)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProvider, spec.Name, err)
		}
		class = c
	}

	tipAccounts, err := parseTipAccounts(spec, class)
	if err != nil {
		return nil, err
	}
	minTip := class.MinTipLamports()
	if spec.MinTipSol != "" && class.EnforcesTipFloor() {
		v, err := consts.SolToLamports(spec.MinTipSol)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProvider, spec.Name, err)
		}
		minTip = v
	}

	desc := Descriptor{
		Name:           spec.Name,
		Class:          class,
		Endpoint:       spec.Endpoint,
		MinTipLamports: minTip,
		TipAccounts:    tipAccounts,
	}

	api := strings.ToLower(spec.API)
	if api == "" {
		switch class {
		case consts.ProviderJito:
			api = "jito"
		case consts.ProviderDefault:
			api = "rpc"
		default:
			api = "relay"
		}
	}

	if spec.BundleOnly && api != "jito" {
		return nil, fmt.Errorf("%w: %s: bundle_only requires jito api", ErrInvalidProvider, spec.Name)
	}

	switch api {
	case "jito":
		if desc.Endpoint == "" && spec.Region != "" {
			endpoint, ok := JitoRegionEndpoints[strings.ToLower(spec.Region)]
			if !ok {
				return nil, fmt.Errorf("%w: %s: unknown jito region %q", ErrInvalidProvider, spec.Name, spec.Region)
			}
			desc.Endpoint = endpoint
		}
		p := NewJitoProvider(desc, spec.AuthToken, timeout)
		if spec.BundleOnly {
			p.UseBundles()
		}
		return p, nil
	case "relay":
		if desc.Endpoint == "" {
			return nil, fmt.Errorf("%w: %s: missing endpoint", ErrInvalidProvider, spec.Name)
		}
		return NewRelayProvider(desc, RelayAuth{Header: spec.AuthHeader, Query: spec.AuthQuery, Token: spec.AuthToken}, timeout), nil
	case "rpc":
		if ledger == nil {
			return nil, fmt.Errorf("%w: %s: rpc provider needs a ledger client", ErrInvalidProvider, spec.Name)
		}
		p := NewRPCProvider(spec.Name, spec.Endpoint, ledger)
		p.desc.Class = class
		p.desc.TipAccounts = tipAccounts
		p.desc.MinTipLamports = minTip
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown api %q", ErrInvalidProvider, spec.Name, spec.API)
	}
}

func parseTipAccounts(spec ProviderSpec, class consts.ProviderClass) ([]common.PublicKey, error) {
	if len(spec.TipAccounts) == 0 {
		return DefaultTipAccounts(class), nil
	}
	accounts, err := types.TryPubkeysFromBase58(spec.TipAccounts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProvider, spec.Name, err)
	}
	return accounts, nil
}
