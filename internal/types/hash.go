package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Hash 区块哈希 / nonce 值
type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, fmt.Errorf("failed to decode base58 hash %q: %w", s, err)
	}
	if len(data) != 32 {
		return h, fmt.Errorf("invalid hash length: got %d, want 32", len(data))
	}
	copy(h[:], data)
	return h, nil
}

// SignatureToBase58 交易签名（64 字节）转 base58
func SignatureToBase58(sig []byte) string {
	return base58.Encode(sig)
}
