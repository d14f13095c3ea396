// Package notify delivers best-effort outbound messages (invitation and
// confirmation mail events) to a broker queue. Delivery failures are the
// caller's to log and ignore; nothing in the request path depends on them.
package notify

import "context"

// Message is a single outbound notification.
type Message struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Notifier sends a message to a recipient. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Nop is a Notifier that drops every message. Used when no broker is
// configured and in tests.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }
