package mq

import (
	"context"
	"fmt"
	"time"

	"dex-trader-sol/internal/utils"
	"dex-trader-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	defaultBatchSize = 16 * 1024
	defaultLingerMs  = 5
)

// TopicOption topic 及其分区数，不存在时自动创建
type TopicOption struct {
	Topic      string
	Partitions int
}

type KafkaProducerOption struct {
	Brokers   string // 多个用英文逗号分隔（如 "localhost:9092,localhost:9093"）
	BatchSize int    // 批处理大小（字节）
	LingerMs  int    // 批处理最大延迟（毫秒）；交易流水量小，建议保持较低
	Topics    []TopicOption
}

// NewKafkaProducer 创建 Kafka 生产者，缺失的 topic 会先创建
func NewKafkaProducer(opt KafkaProducerOption) (*kafka.Producer, error) {
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": opt.Brokers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	meta, err := adminClient.GetMetadata(nil, true, 10000)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	brokerCount := len(meta.Brokers)

	replicationFactor := 1
	if brokerCount > 1 {
		replicationFactor = 2
	}
	logger.Infof("[mq] Kafka broker count = %d, using replication factor = %d", brokerCount, replicationFactor)

	existing := make(map[string]bool, len(meta.Topics))
	for _, topic := range meta.Topics {
		existing[topic.Topic] = true
	}
	var toCreate []kafka.TopicSpecification
	for _, t := range opt.Topics {
		if t.Topic == "" || existing[t.Topic] {
			continue
		}
		partitions := t.Partitions
		if partitions <= 0 {
			partitions = 1
		}
		toCreate = append(toCreate, kafka.TopicSpecification{
			Topic:             t.Topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}

	if len(toCreate) > 0 {
		results, err := adminClient.CreateTopics(ctx, toCreate)
		if err != nil {
			return nil, fmt.Errorf("failed to create topics: %w", err)
		}
		for _, result := range results {
			if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
				return nil, fmt.Errorf("failed to create topic %s: %w", result.Topic, result.Error)
			}
		}
	}

	batchSize := opt.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	lingerMs := opt.LingerMs
	if lingerMs < 0 {
		lingerMs = defaultLingerMs
	}

	localIP, _ := utils.GetLocalIP()
	if localIP == "" {
		localIP = "unknown"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": opt.Brokers,
		"client.id":         fmt.Sprintf("solana-trader-%s", localIP),

		// 可靠性保障
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5, // 幂等场景下最大值为 5

		// 超时与重试
		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		"batch.size":       batchSize,
		"linger.ms":        lingerMs,
		"compression.type": "none",

		"message.max.bytes": 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}
