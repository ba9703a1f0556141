package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestPartitionHashBytes(t *testing.T) {
	sig := make([]byte, 64)
	for i := range sig {
		sig[i] = byte(i * 7)
	}

	assert.Zero(t, PartitionHashBytes(sig[:10], 8), "过短")
	assert.Zero(t, PartitionHashBytes(sig, 1))
	assert.Equal(t, uint32(sig[27])&7, PartitionHashBytes(sig, 8))

	hash := uint32(sig[7])<<24 | uint32(sig[15])<<16 | uint32(sig[19])<<8 | uint32(sig[27])
	assert.Equal(t, hash%12, PartitionHashBytes(sig, 12))

	for mod := uint32(2); mod < 40; mod++ {
		assert.Less(t, PartitionHashBytes(sig, mod), mod)
	}
}

func TestRecordCodec(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]interface{}{"signature": "abc", "accepted": true})
	require.NoError(t, err)

	data, err := EncodeRecord(7, msg)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 0, 0, 0}, data[:4])

	var out structpb.Struct
	recordType, err := DecodeRecord(data, &out)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), recordType)
	assert.Equal(t, "abc", out.Fields["signature"].GetStringValue())
	assert.True(t, out.Fields["accepted"].GetBoolValue())

	_, err = DecodeRecord([]byte{1}, &out)
	assert.Error(t, err)
}

func TestGetLocalIP(t *testing.T) {
	ip, err := GetLocalIP()
	if err != nil {
		t.Skipf("no usable interface: %v", err)
	}
	assert.NotEmpty(t, ip)
}
