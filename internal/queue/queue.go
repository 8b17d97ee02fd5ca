package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/internal/util"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// ExtractQueue receives extraction jobs.
const ExtractQueue = "extract_queue"

const (
	retrySuffix = "_retry"
	dlqSuffix   = "_dlq"
	// retryDelay is how long a failed message waits in the retry queue
	// before it is dead-lettered back onto its work queue.
	retryDelay = 10 * time.Second
)

// Publisher is the publishing side of an AMQP channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Declarer declares queues on an AMQP channel.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// ConnectionURL builds the broker URL from the RABBITMQ_* environment.
func ConnectionURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnvString("RABBITMQ_USER", "guest"),
		util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

// Init connects to RabbitMQ.
func Init() (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(ConnectionURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each work queue with its dead-letter queue and a
// retry queue whose expired messages return to the work queue.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + dlqSuffix
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + retrySuffix
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay / time.Millisecond),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}

	logger.Debug("[Queue] Declared queues", "queues", queueNames)
	return nil
}

// PublishFIFO publishes a persistent JSON message to the default exchange.
func PublishFIFO(ctx context.Context, ch Publisher, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, publishing); err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	return nil
}
