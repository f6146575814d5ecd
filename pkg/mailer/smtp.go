package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"

	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/config"
)

// SMTPSender delivers messages over plain SMTP.
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender creates a sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send builds a MIME message and hands it to the configured SMTP server.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	body, err := buildMIME(msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	if err := smtp.SendMail(addr, auth, msg.From, msg.To, body); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMIME assembles a multipart/mixed message with an alternative
// text/html body part and base64-encoded attachments.
func buildMIME(msg Message) ([]byte, error) {
	var buf bytes.Buffer

	const mixedBoundary = "mixed-9f86d081884c"
	const altBoundary = "alt-7d793037a076"

	to := ""
	for i, r := range msg.To {
		if i > 0 {
			to += ", "
		}
		to += r
	}

	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixedBoundary)

	// Body: text and html alternatives
	fmt.Fprintf(&buf, "--%s\r\n", mixedBoundary)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", altBoundary)

	fmt.Fprintf(&buf, "--%s\r\n", altBoundary)
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(msg.TextBody)
	buf.WriteString("\r\n")

	if msg.HTMLBody != "" {
		fmt.Fprintf(&buf, "--%s\r\n", altBoundary)
		buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		buf.WriteString(msg.HTMLBody)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", altBoundary)

	// Attachments
	for _, att := range msg.Attachments {
		fmt.Fprintf(&buf, "--%s\r\n", mixedBoundary)
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", att.MIMEType)
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", att.Filename)

		encoded := base64.StdEncoding.EncodeToString(att.Data)
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76])
			buf.WriteString("\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", mixedBoundary)

	return buf.Bytes(), nil
}
