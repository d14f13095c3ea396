package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes messages to a durable broker queue. A consumer
// elsewhere turns them into email; this process only enqueues.
type AMQPNotifier struct {
	url    string
	queue  string
	logger *slog.Logger
}

// NewAMQPNotifier creates a notifier publishing to the named queue.
func NewAMQPNotifier(url, queue string, logger *slog.Logger) *AMQPNotifier {
	return &AMQPNotifier{url: url, queue: queue, logger: logger}
}

// Send publishes the message as persistent JSON. A connection is dialed per
// send; the call volume here is an invitation or two, not a hot path.
func (n *AMQPNotifier) Send(ctx context.Context, msg Message) error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publishing message: %w", err)
	}

	n.logger.Debug("notification enqueued", "queue", n.queue, "recipient", msg.Recipient)
	return nil
}
