package backinstock

import "context"

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender delivers one rendered message. Implementations live in
// infra/email/. Timeouts and provider-level retries are the implementation's
// concern; any error is terminal for that one attempt.
type EmailSender interface {
	// Send delivers the message and returns the provider's message ID.
	Send(ctx context.Context, msg *Message) (string, error)
}
