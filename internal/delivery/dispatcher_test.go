package delivery_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"convertupload/internal/config"
	"convertupload/internal/delivery"
	"convertupload/internal/logging"
)

type recordedSend struct {
	from, to, subject, body string
}

type fakeMessenger struct {
	sends   []recordedSend
	failFor map[string]error
}

func (m *fakeMessenger) Send(_ context.Context, from, to, subject, body string) error {
	m.sends = append(m.sends, recordedSend{from, to, subject, body})
	if err, ok := m.failFor[to]; ok {
		return err
	}
	return nil
}

func deliveryConfig() *config.Config {
	cfg := config.Default()
	cfg.Delivery.FromAddress = "pod@example.com"
	cfg.Delivery.EmailSubject = "Your Video from Pod"
	return &cfg
}

func TestDeliverFansOutToEveryRecipient(t *testing.T) {
	contact, err := delivery.NewContactInfo("guest@example.com", "5551234567",
		map[string]string{"A": "@a.net", "B": "@b.net"})
	if err != nil {
		t.Fatalf("contact: %v", err)
	}

	messenger := &fakeMessenger{}
	dispatcher := delivery.NewDispatcher(deliveryConfig(), messenger, logging.NewNop())
	outcomes := dispatcher.Deliver(context.Background(), contact, "https://example.com/v/1")

	if len(messenger.sends) != 3 {
		t.Fatalf("sends = %d, want 1 email + 2 sms", len(messenger.sends))
	}
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}

	email := messenger.sends[0]
	if email.to != "guest@example.com" || email.subject != "Your Video from Pod" {
		t.Fatalf("email send = %+v", email)
	}
	if !strings.Contains(email.body, "https://example.com/v/1") {
		t.Fatalf("email body missing link: %q", email.body)
	}

	for _, sms := range messenger.sends[1:] {
		if sms.subject != "" {
			t.Fatalf("sms must have empty subject, got %q", sms.subject)
		}
		if sms.body != "https://example.com/v/1" {
			t.Fatalf("sms body must be the bare link, got %q", sms.body)
		}
		if sms.from != "pod@example.com" {
			t.Fatalf("sms from = %q", sms.from)
		}
	}
	if messenger.sends[1].to != "5551234567@a.net" || messenger.sends[2].to != "5551234567@b.net" {
		t.Fatalf("sms targets out of order: %+v", messenger.sends[1:])
	}
}

func TestDeliverEmailOnlyContact(t *testing.T) {
	contact, err := delivery.NewContactInfo("guest@example.com", "", nil)
	if err != nil {
		t.Fatalf("contact: %v", err)
	}
	messenger := &fakeMessenger{}
	outcomes := delivery.NewDispatcher(deliveryConfig(), messenger, logging.NewNop()).
		Deliver(context.Background(), contact, "link")
	if len(outcomes) != 1 || outcomes[0].Channel != delivery.ChannelEmail {
		t.Fatalf("outcomes = %+v, want single email", outcomes)
	}
}

func TestDeliverKeepsGoingPastFailures(t *testing.T) {
	contact, err := delivery.NewContactInfo("guest@example.com", "5551234567",
		map[string]string{"A": "@a.net", "B": "@b.net"})
	if err != nil {
		t.Fatalf("contact: %v", err)
	}
	sendErr := errors.New("mailbox full")
	messenger := &fakeMessenger{failFor: map[string]error{"guest@example.com": sendErr}}
	outcomes := delivery.NewDispatcher(deliveryConfig(), messenger, logging.NewNop()).
		Deliver(context.Background(), contact, "link")

	if len(messenger.sends) != 3 {
		t.Fatalf("a failed send must not stop the fan-out, sends = %d", len(messenger.sends))
	}
	if !errors.Is(outcomes[0].Err, sendErr) {
		t.Fatalf("email outcome should carry the error, got %v", outcomes[0].Err)
	}
	if outcomes[1].Err != nil || outcomes[2].Err != nil {
		t.Fatalf("sms outcomes should succeed, got %+v", outcomes[1:])
	}
}
