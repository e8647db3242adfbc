package delivery

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"convertupload/internal/config"
	"convertupload/internal/services"
)

// Messenger sends one message to one recipient. Both email recipients and
// SMS gateway addresses go through the same transport.
type Messenger interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type smtpMessenger struct {
	addr string
	host string
	auth smtp.Auth
}

// NewSMTPMessenger builds the messenger from the delivery configuration.
// Authentication is skipped when no username is configured.
func NewSMTPMessenger(cfg *config.Config) Messenger {
	d := cfg.Delivery
	var auth smtp.Auth
	if d.SMTPUsername != "" {
		auth = smtp.PlainAuth("", d.SMTPUsername, d.SMTPPassword, d.SMTPHost)
	}
	return &smtpMessenger{
		addr: fmt.Sprintf("%s:%d", d.SMTPHost, d.SMTPPort),
		host: d.SMTPHost,
		auth: auth,
	}
}

func (m *smtpMessenger) Send(ctx context.Context, from, to, subject, body string) error {
	msg := buildMessage(from, to, subject, body)
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(m.addr, m.auth, from, []string{to}, msg)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return services.Wrap(services.ErrTransient, "delivery", "send message", "smtp send failed", err)
		}
		return nil
	}
}

// buildMessage renders RFC 5322 headers plus a UTF-8 plain-text body.
// Carrier gateways want a bare body, so an empty subject omits the header.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	if subject != "" {
		fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
