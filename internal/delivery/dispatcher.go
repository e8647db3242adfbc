package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"convertupload/internal/config"
	"convertupload/internal/logging"
)

// Channel identifies which transport delivered one message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Outcome records the result of one recipient's send.
type Outcome struct {
	Channel   Channel
	Recipient string
	Err       error
}

// Dispatcher fans the share link out across the contact's addresses.
type Dispatcher struct {
	messenger Messenger
	from      string
	subject   string
	logger    *slog.Logger
}

func NewDispatcher(cfg *config.Config, messenger Messenger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		from:      cfg.Delivery.FromAddress,
		subject:   cfg.Delivery.EmailSubject,
		logger:    logging.NewComponentLogger(logger, "delivery"),
	}
}

// Deliver sends one email and one message per SMS gateway address. Each send
// is independent: failures are recorded and logged, never propagated, so one
// bad recipient cannot block the rest.
func (d *Dispatcher) Deliver(ctx context.Context, contact ContactInfo, shareLink string) []Outcome {
	outcomes := make([]Outcome, 0, 1+len(contact.SMSTargets))

	emailBody := fmt.Sprintf("Here's your video:\n\n%s\n", shareLink)
	outcomes = append(outcomes, d.send(ctx, ChannelEmail, contact.Email, d.subject, emailBody))

	// Gateways strip headers and truncate aggressively, so the SMS body is
	// the bare link with no subject.
	for _, target := range contact.SMSTargets {
		outcomes = append(outcomes, d.send(ctx, ChannelSMS, target, "", shareLink))
	}
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, channel Channel, recipient, subject, body string) Outcome {
	err := d.messenger.Send(ctx, d.from, recipient, subject, body)
	if err != nil {
		d.logger.Warn("send failed",
			logging.String("channel", string(channel)),
			logging.String("recipient", recipient),
			logging.Error(err),
		)
	} else {
		d.logger.Info("message sent",
			logging.String("channel", string(channel)),
			logging.String("recipient", recipient),
		)
	}
	return Outcome{Channel: channel, Recipient: recipient, Err: err}
}
