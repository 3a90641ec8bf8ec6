package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"paflow/config"
	"paflow/internal/models"
)

// KafkaConsumer implements the Consumer interface by reading jobs from a
// Kafka topic within a consumer group.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *log.Logger
}

// NewKafkaConsumer creates a new KafkaConsumer instance.
func NewKafkaConsumer(cfg config.QueueConfig, logger *log.Logger) (*KafkaConsumer, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Name == "" || cfg.Kafka.GroupID == "" {
		return nil, errors.New("incomplete kafka configuration: brokers, queue name, group_id are all required")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		Topic:          cfg.Name,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: 0, // manual commits only
		StartOffset:    kafka.FirstOffset,
	})

	logger.Printf("Kafka consumer created, connected to Brokers: %v, Topic: %s, GroupID: %s", cfg.Kafka.Brokers, cfg.Name, cfg.Kafka.GroupID)

	return &KafkaConsumer{reader: r, logger: logger}, nil
}

// Consume fetches one job from Kafka.
func (k *KafkaConsumer) Consume(ctx context.Context) (*models.ProcessingJob, func(success bool), error) {
	kafkaMsg, err := k.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			k.logger.Println("Kafka consumer: Context cancelled, stopping consumption.")
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}

	var job models.ProcessingJob
	if err := json.Unmarshal(kafkaMsg.Value, &job); err != nil {
		k.logger.Printf("Kafka consumer: Failed to deserialize job (Offset: %d): %v. Message will be discarded.", kafkaMsg.Offset, err)
		_ = k.reader.CommitMessages(ctx, kafkaMsg) // Commit offset to avoid blocking
		return nil, nil, fmt.Errorf("job deserialization failed: %w", err)
	}

	ackCallback := func(success bool) {
		if success {
			commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := k.reader.CommitMessages(commitCtx, kafkaMsg); err != nil {
				k.logger.Printf("Kafka consumer: Failed to commit offset %d: %v", kafkaMsg.Offset, err)
			}
		} else {
			k.logger.Printf("Kafka consumer: NACK received for offset %d (job_uuid %s). Offset will not be committed.", kafkaMsg.Offset, job.JobUUID)
		}
	}

	return &job, ackCallback, nil
}

// Close closes the Kafka reader.
func (k *KafkaConsumer) Close() error {
	k.logger.Println("Closing Kafka consumer...")
	return k.reader.Close()
}

var _ Consumer = (*KafkaConsumer)(nil)
