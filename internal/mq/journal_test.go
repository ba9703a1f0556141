package mq

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
	"dex-trader-sol/internal/logic/executor"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(sigByte byte) executor.JournalRecord {
	sig := make([]byte, 64)
	for i := range sig {
		sig[i] = sigByte + byte(i)
	}
	return executor.JournalRecord{
		TradeID:     "7b0c5d6e-trade",
		Provider:    "jito-ny",
		Class:       consts.ProviderJito,
		Kind:        domain.KindBuy,
		Signature:   base58.Encode(sig),
		TipLamports: 18_446_744_073_709_551_000,
		Accepted:    true,
		Raw:         []byte{1, 2, 3},
	}
}

func TestEncodeJournalRecord_RoundTrip(t *testing.T) {
	rec := testRecord(1)
	data, err := EncodeJournalRecord(&rec)
	require.NoError(t, err)

	m, err := DecodeJournalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, "7b0c5d6e-trade", m["trade_id"])
	assert.Equal(t, "Jito", m["class"])
	assert.Equal(t, "buy", m["kind"])
	assert.Equal(t, "18446744073709551000", m["tip_lamports"], "大额 lamports 不能丢精度")
	assert.Equal(t, true, m["accepted"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), m["raw"])
}

func TestDecodeJournalRecord_TooShort(t *testing.T) {
	_, err := DecodeJournalRecord([]byte{1, 0})
	assert.Error(t, err)
}

func TestTxJournal_Publish(t *testing.T) {
	producer := &fakeProducer{}
	j := NewTxJournal(producer, "trader-signed-tx", 8, time.Second)

	records := []executor.JournalRecord{testRecord(1), testRecord(9)}
	require.NoError(t, j.Publish(context.Background(), records))
	require.Equal(t, 2, producer.count())

	for _, msg := range producer.produced {
		assert.Equal(t, "trader-signed-tx", *msg.TopicPartition.Topic)
		assert.Equal(t, []byte("7b0c5d6e-trade"), msg.Key)
		assert.GreaterOrEqual(t, msg.TopicPartition.Partition, int32(0))
		assert.Less(t, msg.TopicPartition.Partition, int32(8))
	}
}

func TestTxJournal_SamePartitionForSameSignature(t *testing.T) {
	j := NewTxJournal(&fakeProducer{}, "t", 12, time.Second)
	rec := testRecord(3)
	a, err := j.buildJob(&rec)
	require.NoError(t, err)
	b, err := j.buildJob(&rec)
	require.NoError(t, err)
	assert.Equal(t, a.Partition, b.Partition)
}

func TestTxJournal_PublishFailure(t *testing.T) {
	j := NewTxJournal(&fakeProducer{noAck: true}, "t", 1, 20*time.Millisecond)
	err := j.Publish(context.Background(), []executor.JournalRecord{testRecord(1)})
	assert.Error(t, err)
}

func TestTxJournal_PublishEmpty(t *testing.T) {
	producer := &fakeProducer{}
	j := NewTxJournal(producer, "t", 1, time.Second)
	assert.NoError(t, j.Publish(context.Background(), nil))
	assert.Equal(t, 0, producer.count())
}
