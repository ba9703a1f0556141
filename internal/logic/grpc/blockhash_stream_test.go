package grpc

import (
	"testing"
	"time"

	"dex-trader-sol/internal/cache"
	"dex-trader-sol/internal/config"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metaUpdate(slot uint64, hash string) *pb.SubscribeUpdate {
	return &pb.SubscribeUpdate{
		UpdateOneof: &pb.SubscribeUpdate_BlockMeta{
			BlockMeta: &pb.SubscribeUpdateBlockMeta{Slot: slot, Blockhash: hash},
		},
	}
}

func TestHandleUpdate_BlockMeta(t *testing.T) {
	bc := cache.NewBlockhashCache(time.Minute)
	m := newBlockhashStream(nil, nil, config.GrpcConfig{}, bc)

	assert.True(t, m.handleUpdate(metaUpdate(100, "hash-100")))
	bh, ok := bc.Get()
	require.True(t, ok)
	assert.Equal(t, "hash-100", bh)

	// 旧 slot 不覆盖
	assert.True(t, m.handleUpdate(metaUpdate(99, "hash-99")))
	bh, _ = bc.Get()
	assert.Equal(t, "hash-100", bh)

	assert.True(t, m.handleUpdate(metaUpdate(101, "hash-101")))
	assert.Equal(t, uint64(101), bc.Latest().Slot)
}

func TestHandleUpdate_IgnoresOtherUpdates(t *testing.T) {
	bc := cache.NewBlockhashCache(time.Minute)
	m := newBlockhashStream(nil, nil, config.GrpcConfig{}, bc)

	pong := &pb.SubscribeUpdate{UpdateOneof: &pb.SubscribeUpdate_Pong{Pong: &pb.SubscribeUpdatePong{Id: 1}}}
	assert.False(t, m.handleUpdate(pong))
	_, ok := bc.Get()
	assert.False(t, ok)
}

func TestBuildSubscribeRequest(t *testing.T) {
	req := buildSubscribeRequest()
	require.Contains(t, req.BlocksMeta, "blockhash")
	assert.Empty(t, req.Blocks)
	assert.Equal(t, pb.CommitmentLevel_CONFIRMED, req.GetCommitment())
}

func TestDefaultsFromConfig(t *testing.T) {
	m := newBlockhashStream(nil, nil, config.GrpcConfig{SendTimeoutSec: 2}, cache.NewBlockhashCache(0))
	assert.Equal(t, 2*time.Second, m.sendTimeout)
	assert.Equal(t, 15*time.Second, m.blockRecvTimeout)
	assert.Equal(t, time.Second, m.reconnectInterval)
}
