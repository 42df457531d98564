package mail

import "context"

// Message is an outbound email.
type Message struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	ContentType string // "text/plain" or "text/html"
}

// Mailer sends messages. Notification jobs depend on this interface so
// tests can capture sends without a server.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
