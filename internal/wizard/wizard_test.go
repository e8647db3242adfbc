package wizard_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"convertupload/internal/config"
	"convertupload/internal/delivery"
	"convertupload/internal/logging"
	"convertupload/internal/wizard"
)

type recordingSignals struct {
	mu         sync.Mutex
	journal    []string
	contact    delivery.ContactInfo
	renderDone chan struct{}
}

func newRecordingSignals() *recordingSignals {
	return &recordingSignals{renderDone: make(chan struct{})}
}

func (s *recordingSignals) record(event string) {
	s.mu.Lock()
	s.journal = append(s.journal, event)
	s.mu.Unlock()
}

func (s *recordingSignals) ContactCaptured(contact delivery.ContactInfo) {
	s.contact = contact
	s.record("contact")
}

func (s *recordingSignals) ConsentGiven() { s.record("consent") }

func (s *recordingSignals) RenderDone() <-chan struct{} { return s.renderDone }

func (s *recordingSignals) markRenderDone() {
	s.record("render-done")
	close(s.renderDone)
}

func newTestWizard(input string) (*wizard.Wizard, *strings.Builder) {
	cfg := config.Default()
	cfg.Delivery.CarrierGateways = map[string]string{"A": "@a.net", "B": "@b.net"}
	var out strings.Builder
	return wizard.New(&cfg, strings.NewReader(input), &out, logging.NewNop()), &out
}

func TestRunHappyPath(t *testing.T) {
	w, _ := newTestWizard("guest@example.com\n555-123-4567\n5\ny\n")
	signals := newRecordingSignals()
	signals.markRenderDone()

	result, err := w.Run(context.Background(), signals)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Rating != 5 {
		t.Fatalf("rating = %d", result.Rating)
	}
	if result.Contact.Email != "guest@example.com" {
		t.Fatalf("email = %q", result.Contact.Email)
	}
	if len(result.Contact.SMSTargets) != 2 {
		t.Fatalf("sms targets = %v", result.Contact.SMSTargets)
	}
	if signals.contact.Email != "guest@example.com" {
		t.Fatal("contact signal did not carry the captured contact")
	}
}

func TestRunRepromptsOnInvalidInput(t *testing.T) {
	input := strings.Join([]string{
		// rejected contact, rejected phone, then accepted with no phone
		"not-an-email", "",
		"guest@example.com", "123",
		"guest@example.com", "",
		// rejected ratings, then accepted
		"banana", "0", "6", "4",
		// rejected consent, then accepted
		"maybe", "y",
	}, "\n") + "\n"
	w, out := newTestWizard(input)
	signals := newRecordingSignals()
	signals.markRenderDone()

	result, err := w.Run(context.Background(), signals)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Rating != 4 {
		t.Fatalf("rating = %d", result.Rating)
	}
	if len(result.Contact.SMSTargets) != 0 {
		t.Fatalf("skipped phone must yield no sms targets, got %v", result.Contact.SMSTargets)
	}
	if !strings.Contains(out.String(), "didn't look right") {
		t.Fatal("expected a contact re-prompt message")
	}
	if !strings.Contains(out.String(), "1 to 5") {
		t.Fatal("expected a rating re-prompt message")
	}
}

func TestRunConsentWaitsForRenderCompletion(t *testing.T) {
	w, _ := newTestWizard("guest@example.com\n\n5\ny\n")
	signals := newRecordingSignals()

	go func() {
		time.Sleep(50 * time.Millisecond)
		signals.markRenderDone()
	}()
	if _, err := w.Run(context.Background(), signals); err != nil {
		t.Fatalf("run: %v", err)
	}

	signals.mu.Lock()
	defer signals.mu.Unlock()
	want := []string{"contact", "render-done", "consent"}
	if len(signals.journal) != len(want) {
		t.Fatalf("journal = %v, want %v", signals.journal, want)
	}
	for i, event := range want {
		if signals.journal[i] != event {
			t.Fatalf("journal = %v, consent must follow render completion", signals.journal)
		}
	}
}

func TestRunAbortsOnCancel(t *testing.T) {
	w, _ := newTestWizard("guest@example.com\n\n5\n")
	signals := newRecordingSignals() // render never completes

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := w.Run(ctx, signals); err == nil {
		t.Fatal("expected cancellation error")
	}
	signals.mu.Lock()
	defer signals.mu.Unlock()
	for _, event := range signals.journal {
		if event == "consent" {
			t.Fatal("consent must not fire after cancellation")
		}
	}
}

func TestParseRating(t *testing.T) {
	cases := []struct {
		input string
		want  int
		ok    bool
	}{
		{"1", 1, true},
		{" 5 ", 5, true},
		{"0", 0, false},
		{"6", 0, false},
		{"two", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := wizard.ParseRating(tc.input)
		if tc.ok != (err == nil) || got != tc.want {
			t.Fatalf("ParseRating(%q) = %d, %v", tc.input, got, err)
		}
	}
}
