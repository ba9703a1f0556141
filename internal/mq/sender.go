package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Producer *kafka.Producer 的最小子集，测试中可替换
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

// KafkaJob 一条需要发送的 Kafka 消息
type KafkaJob struct {
	Topic     string
	Partition int32
	Key       []byte
	Value     []byte
}

// KafkaSendResult 每条消息的发送结果
type KafkaSendResult struct {
	Job *KafkaJob
	Err error
}

// SendKafkaJobs 并发发送多条 Kafka 消息并等待全部 ack，支持外部 context 控制超时/取消
func SendKafkaJobs(
	ctx context.Context,
	producer Producer,
	jobs []*KafkaJob,
	perMessageTimeout time.Duration,
) (ok []*KafkaJob, failed []KafkaSendResult) {
	var wg sync.WaitGroup
	resultCh := make(chan KafkaSendResult, len(jobs)) // 缓冲避免阻塞

	for _, job := range jobs {
		wg.Add(1)
		go func(job *KafkaJob) {
			defer wg.Done()
			resultCh <- KafkaSendResult{Job: job, Err: sendOne(ctx, producer, job, perMessageTimeout)}
		}(job)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for res := range resultCh {
		if res.Err != nil {
			failed = append(failed, res)
		} else {
			ok = append(ok, res.Job)
		}
	}
	return ok, failed
}

func sendOne(ctx context.Context, producer Producer, job *KafkaJob, timeout time.Duration) error {
	deliveryChan := make(chan kafka.Event, 1)
	err := producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &job.Topic,
			Partition: job.Partition,
		},
		Key:   job.Key,
		Value: job.Value,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("produce error: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e, ok := <-deliveryChan:
		if !ok {
			return fmt.Errorf("delivery channel closed unexpectedly")
		}
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("invalid message type: %T", e)
		}
		return msg.TopicPartition.Error
	case <-timer.C:
		go safeDrain(deliveryChan)
		return fmt.Errorf("delivery timeout (>%v)", timeout)
	case <-ctx.Done():
		go safeDrain(deliveryChan)
		return fmt.Errorf("ctx cancelled: %w", ctx.Err())
	}
}

// safeDrain 确保 deliveryChan 被 drain，避免 Kafka 回调阻塞
func safeDrain(ch <-chan kafka.Event) {
	defer func() {
		_ = recover()
	}()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
	}
}
