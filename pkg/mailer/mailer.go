// Package mailer sends outgoing application email through a persistent
// outbox and a background dispatch worker.
package mailer

import "context"

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Message is one outgoing email.
type Message struct {
	Subject     string
	From        string
	To          []string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
