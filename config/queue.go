package config

import (
	"fmt"
	"time"
)

// QueueBackend selects the message queue implementation.
type QueueBackend string

const (
	BackendRedis QueueBackend = "redis"
	BackendKafka QueueBackend = "kafka"
)

// RedisQueueConfig defines configuration for the Redis list-backed queue
type RedisQueueConfig struct {
	URL          string        `yaml:"url"`           // redis://[:password@]host:port[/db]
	DialTimeout  time.Duration `yaml:"dial_timeout"`  // Connection establishment timeout
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Per-command read timeout
	WriteTimeout time.Duration `yaml:"write_timeout"` // Per-command write timeout
	PoolSize     int           `yaml:"pool_size"`     // Maximum number of socket connections
}

// KafkaQueueConfig defines configuration for the Kafka queue backend
type KafkaQueueConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"` // Consumer group ID (worker side only)

	// Reliability settings
	RequiredAcks string `yaml:"required_acks"` // none/one/all

	// Performance settings
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

// QueueConfig defines the work queue shared by the API service (producer)
// and the worker (consumer). The queue name doubles as the Redis list key
// and the Kafka topic.
type QueueConfig struct {
	Backend        QueueBackend     `yaml:"backend"`
	Name           string           `yaml:"name"`
	DeadLetterName string           `yaml:"dead_letter_name"`
	Redis          RedisQueueConfig `yaml:"redis"`
	Kafka          KafkaQueueConfig `yaml:"kafka"`
}

// SetDefaults sets reasonable default values for the queue configuration
func (c *QueueConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendRedis
		fmt.Printf("Warning: queue.backend not set, defaulting to %s\n", c.Backend)
	}
	if c.Name == "" {
		c.Name = "document_processing_queue"
		fmt.Printf("Warning: queue.name not set, defaulting to %s\n", c.Name)
	}
	if c.DeadLetterName == "" {
		c.DeadLetterName = "document_processing_dlq"
		fmt.Printf("Warning: queue.dead_letter_name not set, defaulting to %s\n", c.DeadLetterName)
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Kafka.WriteTimeout == 0 {
		c.Kafka.WriteTimeout = 5 * time.Second
	}
	if c.Kafka.ReadTimeout == 0 {
		c.Kafka.ReadTimeout = 5 * time.Second
	}
}

// Validate validates the queue configuration
func (c *QueueConfig) Validate() error {
	switch c.Backend {
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("queue.redis.url is required for the redis backend")
		}
	case BackendKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("queue.kafka.brokers is required for the kafka backend")
		}
	default:
		return fmt.Errorf("unsupported queue backend: %s", c.Backend)
	}
	if c.Name == "" {
		return fmt.Errorf("queue name is required")
	}
	return nil
}
