package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"paflow/config"
	"paflow/internal/models"
)

// KafkaDispatcher implements the Dispatcher interface over Kafka topics.
// The queue name and dead-letter name map to topics; messages are keyed by
// job_uuid so redeliveries of the same job land on the same partition.
type KafkaDispatcher struct {
	writer    *kafka.Writer
	dlqWriter *kafka.Writer
	logger    *log.Logger
}

// NewKafkaDispatcher creates a KafkaDispatcher.
func NewKafkaDispatcher(cfg config.QueueConfig, logger *log.Logger) (*KafkaDispatcher, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Name == "" {
		return nil, errors.New("kafka dispatcher configuration incomplete: both brokers and queue name are required")
	}

	// Parse required_acks setting
	var requiredAcks kafka.RequiredAcks
	switch cfg.Kafka.RequiredAcks {
	case "none":
		requiredAcks = kafka.RequireNone
	case "all":
		requiredAcks = kafka.RequireAll
	default:
		requiredAcks = kafka.RequireOne // Default to wait for leader
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:     kafka.TCP(cfg.Kafka.Brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},

			RequiredAcks: requiredAcks,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			ReadTimeout:  cfg.Kafka.ReadTimeout,

			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				logger.Printf("Kafka Writer Error: "+msg, args...)
			}),
		}
	}

	logger.Printf("Kafka dispatcher created, connected to Brokers: %v, Topic: %s", cfg.Kafka.Brokers, cfg.Name)

	return &KafkaDispatcher{
		writer:    newWriter(cfg.Name),
		dlqWriter: newWriter(cfg.DeadLetterName),
		logger:    logger,
	}, nil
}

// Enqueue publishes a job to the work topic.
func (d *KafkaDispatcher) Enqueue(ctx context.Context, job *models.ProcessingJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to serialize processing job: %w", err)
	}

	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.JobUUID),
		Value: payload,
	})
	if err != nil {
		d.logger.Printf("Failed to enqueue job (job_uuid: %s): %v", job.JobUUID, err)
		return fmt.Errorf("failed to write job to Kafka: %w", err)
	}
	return nil
}

// EnqueueDeadLetter publishes an exhausted job to the dead-letter topic.
func (d *KafkaDispatcher) EnqueueDeadLetter(ctx context.Context, job *models.DeadLetterJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to serialize dead letter job: %w", err)
	}

	err = d.dlqWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.JobUUID),
		Value: payload,
	})
	if err != nil {
		d.logger.Printf("Failed to dead-letter job (job_uuid: %s): %v", job.JobUUID, err)
		return fmt.Errorf("failed to write job to Kafka dead letter topic: %w", err)
	}
	return nil
}

// Close closes both writers.
func (d *KafkaDispatcher) Close() error {
	d.logger.Println("Closing Kafka dispatcher (and flushing buffers)...")
	if err := d.writer.Close(); err != nil {
		d.dlqWriter.Close()
		return err
	}
	return d.dlqWriter.Close()
}

var _ Dispatcher = (*KafkaDispatcher)(nil) // Compile-time interface check
