package queue

import (
	"context"
	"errors"

	"github.com/DecisionNerd/infoextract-cidoc/internal/metrics"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is the number of redeliveries before a message is
// dead-lettered.
const MaxRetries = 10

const retriesHeader = "x-retries"

// RetryCount reads the retry counter from message headers. The broker may
// hand integers back at any width.
func RetryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}

// HandleProcessingError moves a failed message to the retry queue, or to
// the dead-letter queue once it has been retried MaxRetries times or when
// cause is ErrInvalidJob. The original delivery is acked only after the
// copy is published; otherwise it is requeued.
func HandleProcessingError(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string, cause error) {
	retries := RetryCount(msg.Headers)

	target := queueName + retrySuffix
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	if retries >= MaxRetries || errors.Is(cause, ErrInvalidJob) {
		target = queueName + dlqSuffix
		logger.Warn("[Queue] Sending message to DLQ", "dlq", target, "retries", retries, "err", cause)
		metrics.DLQJobsTotal.Inc()
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	err := ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nackErr)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
