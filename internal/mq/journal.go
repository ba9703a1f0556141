package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dex-trader-sol/internal/logic/executor"
	"dex-trader-sol/internal/utils"

	"github.com/mr-tron/base58"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/types/known/structpb"
)

// RecordTypeSignedTx 交易流水的记录类型前缀
const RecordTypeSignedTx uint32 = 1

const defaultJournalTimeout = 5 * time.Second

// TxJournal 把已签名交易写入 Kafka，同一签名固定落在同一分区
type TxJournal struct {
	producer   Producer
	topic      string
	partitions uint32
	timeout    time.Duration
}

var _ executor.Journal = (*TxJournal)(nil)

func NewTxJournal(producer Producer, topic string, partitions int, timeout time.Duration) *TxJournal {
	if partitions <= 0 {
		partitions = 1
	}
	if timeout <= 0 {
		timeout = defaultJournalTimeout
	}
	return &TxJournal{producer: producer, topic: topic, partitions: uint32(partitions), timeout: timeout}
}

// Publish 任一条失败都会返回错误，但已成功的不会回滚
func (j *TxJournal) Publish(ctx context.Context, records []executor.JournalRecord) error {
	if len(records) == 0 {
		return nil
	}
	jobs := make([]*KafkaJob, 0, len(records))
	for i := range records {
		job, err := j.buildJob(&records[i])
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	_, failed := SendKafkaJobs(ctx, j.producer, jobs, j.timeout)
	var errs error
	for _, f := range failed {
		errs = multierr.Append(errs, fmt.Errorf("partition %d: %w", f.Job.Partition, f.Err))
	}
	return errs
}

func (j *TxJournal) buildJob(rec *executor.JournalRecord) (*KafkaJob, error) {
	msg, err := EncodeJournalRecord(rec)
	if err != nil {
		return nil, err
	}
	var partition uint32
	if sig, err := base58.Decode(rec.Signature); err == nil {
		partition = utils.PartitionHashBytes(sig, j.partitions)
	}
	return &KafkaJob{
		Topic:     j.topic,
		Partition: int32(partition),
		Key:       []byte(rec.TradeID),
		Value:     msg,
	}, nil
}

// EncodeJournalRecord 以 structpb 编码，消费方无需共享 .proto 定义
func EncodeJournalRecord(rec *executor.JournalRecord) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("nil journal record")
	}
	st, err := structpb.NewStruct(map[string]interface{}{
		"trade_id":     rec.TradeID,
		"provider":     rec.Provider,
		"class":        rec.Class.String(),
		"kind":         rec.Kind.String(),
		"signature":    rec.Signature,
		"tip_lamports": strconv.FormatUint(rec.TipLamports, 10), // 避免 float64 精度损失
		"accepted":     rec.Accepted,
		"error":        rec.Error,
		"raw":          rec.Raw,
	})
	if err != nil {
		return nil, fmt.Errorf("encode journal record: %w", err)
	}
	return utils.EncodeRecord(RecordTypeSignedTx, st)
}

// DecodeJournalRecord 与 EncodeJournalRecord 对应，raw 字段保持 base64 字符串
func DecodeJournalRecord(data []byte) (map[string]interface{}, error) {
	st := &structpb.Struct{}
	recordType, err := utils.DecodeRecord(data, st)
	if err != nil {
		return nil, err
	}
	if recordType != RecordTypeSignedTx {
		return nil, fmt.Errorf("unexpected record type %d", recordType)
	}
	return st.AsMap(), nil
}
