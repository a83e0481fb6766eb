package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/notifyhq/notify-engine/internal/domain"
)

// Publisher publishes delivery attempt messages to a work queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg AttemptMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg AttemptMessage) error

// Consumer consumes delivery attempt messages from a work queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// queueMaxPriority is the RabbitMQ x-max-priority value for work queues.
	queueMaxPriority int32 = 3
)

// QueueName returns the work queue name for a channel type, e.g. email.
func QueueName(channelType domain.ChannelType) string {
	return strings.ToLower(channelType.String())
}

// DLQName returns the dead-letter queue name for a channel type, e.g. dlq.email.
func DLQName(channelType domain.ChannelType) string {
	return fmt.Sprintf("dlq.%s", QueueName(channelType))
}

// WorkQueueNames returns the work queue for every supported channel type.
func WorkQueueNames() []string {
	types := domain.ChannelTypes()
	queues := make([]string, 0, len(types))
	for _, channelType := range types {
		queues = append(queues, QueueName(channelType))
	}
	return queues
}

// DLQNames returns the dead-letter queue for every supported channel type.
func DLQNames() []string {
	types := domain.ChannelTypes()
	queues := make([]string, 0, len(types))
	for _, channelType := range types {
		queues = append(queues, DLQName(channelType))
	}
	return queues
}

// PriorityValue maps notification priority to RabbitMQ message priority.
func PriorityValue(priority domain.Priority) uint8 {
	switch priority {
	case domain.PriorityHigh:
		return 3
	case domain.PriorityNormal:
		return 2
	case domain.PriorityLow:
		return 1
	default:
		return 0
	}
}
