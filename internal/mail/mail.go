package mail

import "context"

// Message is a rendered transactional email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Sender delivers a message to the email provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Outbox accepts messages for eventual delivery. The queue-backed outbox
// publishes to AMQP for the worker; DirectOutbox sends inline when no broker
// is configured.
type Outbox interface {
	Enqueue(ctx context.Context, msg Message) error
}

// DirectOutbox delivers messages synchronously through a Sender.
type DirectOutbox struct {
	Sender Sender
}

// Enqueue sends immediately.
func (o DirectOutbox) Enqueue(ctx context.Context, msg Message) error {
	return o.Sender.Send(ctx, msg)
}
