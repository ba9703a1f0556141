package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func validConfig() TraderConfig {
	return TraderConfig{
		Rpc:           RpcConfig{Endpoint: "http://127.0.0.1:8899", TimeoutMs: 5000},
		ProvidersFile: "etc/providers.yaml",
		Fee: FeeConfig{
			CULimit:    200_000,
			CUPrice:    100_000,
			BuyTipSol:  "0.0001",
			SellTipSol: "0.00005",
		},
		Broadcast: BroadcastConfig{PerSendTimeoutMs: 3000, ConfirmTimeoutMs: 30000, PollIntervalMs: 500},
		TipFloor:  TipFloorConfig{Percentile: 50, MinTipSol: "0.00001", MaxTipSol: "0.01"},
	}
}

func TestValidate_OK(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, uint64(100_000), c.Fee.TipLamports(true))
	assert.Equal(t, uint64(50_000), c.Fee.TipLamports(false))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	c := validConfig()
	c.Rpc.Endpoint = ""
	c.ProvidersFile = ""
	c.Fee.CULimit = 0
	c.Fee.BuyTipSol = "abc"

	err := c.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4, "应一次返回全部错误")
	assert.Contains(t, err.Error(), "rpc.endpoint")
	assert.Contains(t, err.Error(), "fee.buy_tip_sol")
}

func TestValidate_DualFee(t *testing.T) {
	c := validConfig()
	c.Fee.Dual = []DualFeeConfig{
		{Class: "jito", Kind: "buy", CULimit: 150_000, LowCUPrice: 1, HighCUPrice: 2, LowTipSol: "0.0001", HighTipSol: "0.001"},
	}
	require.NoError(t, c.Validate())

	c.Fee.Dual = append(c.Fee.Dual, DualFeeConfig{Class: "nope", Kind: "hold", LowTipSol: "-1", HighTipSol: "0.1"})
	err := c.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
}

func TestValidate_OptionalSections(t *testing.T) {
	c := validConfig()
	c.Grpc.Enabled = true
	c.TipFloor.Enabled = true
	c.TipFloor.Percentile = 60
	c.TipFloor.MinTipSol = "0.1"
	c.KafkaProducerConf.Enabled = true
	c.Redis.Enabled = true

	errs := multierr.Errors(c.Validate())
	// grpc.endpoint, percentile, min > max, brokers, topic, redis.addr
	assert.Len(t, errs, 6)
}

func TestValidate_PollInterval(t *testing.T) {
	c := validConfig()
	c.Broadcast.WaitConfirmed = true
	c.Broadcast.PollIntervalMs = c.Broadcast.ConfirmTimeoutMs
	assert.Error(t, c.Validate())
}

func TestKafkaOption(t *testing.T) {
	c := KafkaProducerConfig{Brokers: "a:9092,b:9092", Topic: "trader-signed-tx", Partition: 4}
	opt := c.ToKafkaOption()
	require.Len(t, opt.Topics, 1)
	assert.Equal(t, "trader-signed-tx", opt.Topics[0].Topic)
	assert.Equal(t, 4, opt.Topics[0].Partitions)
}
