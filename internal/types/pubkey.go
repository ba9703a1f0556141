package types

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"
)

const pubkeyLength = 32

// TryPubkeyFromBase58 解析 base58 字符串为 PublicKey，失败时返回 error（用于不信任输入路径）
// common.PublicKeyFromString 不校验长度，配置与外部输入一律走这里
func TryPubkeyFromBase58(s string) (common.PublicKey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("failed to decode base58 pubkey %q: %w", s, err)
	}
	if len(data) != pubkeyLength {
		return common.PublicKey{}, fmt.Errorf("invalid pubkey length: got %d, want %d, input=%q", len(data), pubkeyLength, s)
	}
	return common.PublicKeyFromBytes(data), nil
}

// PubkeyFromBase58 仅用于常量，解析失败直接 panic
func PubkeyFromBase58(s string) common.PublicKey {
	p, err := TryPubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}

// TryPubkeysFromBase58 批量解析，遇到第一个非法地址即返回
func TryPubkeysFromBase58(strs []string) ([]common.PublicKey, error) {
	result := make([]common.PublicKey, 0, len(strs))
	for _, s := range strs {
		p, err := TryPubkeyFromBase58(s)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// IsZero 判断是否为全零地址
func IsZero(p common.PublicKey) bool {
	return p == common.PublicKey{}
}
