package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"paflow/config"
	"paflow/internal/models"
)

// RedisDispatcher implements the Dispatcher interface over a Redis list.
// Jobs are pushed to the HEAD of the list (LPUSH); consumers pop from the
// TAIL (BRPOP), giving FIFO ordering. This push-end convention is part of
// the queue contract and must not change without coordinating consumers.
type RedisDispatcher struct {
	client    *redis.Client
	logger    *log.Logger
	queueName string
	dlqName   string
}

// NewRedisDispatcher creates a RedisDispatcher and verifies connectivity.
func NewRedisDispatcher(ctx context.Context, cfg config.QueueConfig, logger *log.Logger) (*RedisDispatcher, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opt.DialTimeout = cfg.Redis.DialTimeout
	opt.ReadTimeout = cfg.Redis.ReadTimeout
	opt.WriteTimeout = cfg.Redis.WriteTimeout
	if cfg.Redis.PoolSize > 0 {
		opt.PoolSize = cfg.Redis.PoolSize
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Printf("Redis dispatcher created, queue: %s, dlq: %s", cfg.Name, cfg.DeadLetterName)

	return &RedisDispatcher{
		client:    client,
		logger:    logger,
		queueName: cfg.Name,
		dlqName:   cfg.DeadLetterName,
	}, nil
}

// Enqueue pushes a job onto the work queue.
func (d *RedisDispatcher) Enqueue(ctx context.Context, job *models.ProcessingJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to serialize processing job: %w", err)
	}

	if err := d.client.LPush(ctx, d.queueName, payload).Err(); err != nil {
		d.logger.Printf("Failed to enqueue job (job_uuid: %s): %v", job.JobUUID, err)
		return fmt.Errorf("failed to push job to queue: %w", err)
	}
	return nil
}

// EnqueueDeadLetter pushes an exhausted job onto the dead-letter queue.
func (d *RedisDispatcher) EnqueueDeadLetter(ctx context.Context, job *models.DeadLetterJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to serialize dead letter job: %w", err)
	}

	if err := d.client.LPush(ctx, d.dlqName, payload).Err(); err != nil {
		d.logger.Printf("Failed to dead-letter job (job_uuid: %s): %v", job.JobUUID, err)
		return fmt.Errorf("failed to push job to dead letter queue: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (d *RedisDispatcher) Close() error {
	d.logger.Println("Closing Redis dispatcher...")
	return d.client.Close()
}

var _ Dispatcher = (*RedisDispatcher)(nil) // Compile-time interface check
