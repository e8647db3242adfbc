package wizard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"convertupload/internal/config"
	"convertupload/internal/delivery"
	"convertupload/internal/logging"
	"convertupload/internal/services"
)

// Signals is the surface the wizard drives on the orchestrator.
type Signals interface {
	ContactCaptured(contact delivery.ContactInfo)
	ConsentGiven()
	RenderDone() <-chan struct{}
}

// Result is what the wizard collected from the guest.
type Result struct {
	Contact delivery.ContactInfo
	Rating  int
}

// Wizard walks the guest through contact capture, a satisfaction rating
// and the final share-consent step on the kiosk console.
type Wizard struct {
	in       *bufio.Scanner
	out      io.Writer
	gateways map[string]string
	logger   *slog.Logger
}

func New(cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) *Wizard {
	return &Wizard{
		in:       bufio.NewScanner(in),
		out:      out,
		gateways: cfg.Delivery.CarrierGateways,
		logger:   logging.NewComponentLogger(logger, "wizard"),
	}
}

// Run collects contact data and the rating, then offers the share step.
// Consent is only offered once the rating is positive and the render has
// completed; the enhancement may finish before or after the guest gets
// here, and both orders work. Signals fire as each step completes.
func (w *Wizard) Run(ctx context.Context, signals Signals) (Result, error) {
	contact, err := w.collectContact(ctx)
	if err != nil {
		return Result{}, err
	}
	signals.ContactCaptured(contact)

	rating, err := w.collectRating(ctx)
	if err != nil {
		return Result{}, err
	}

	if err := w.awaitRender(ctx, signals.RenderDone()); err != nil {
		return Result{}, err
	}

	if err := w.collectConsent(ctx); err != nil {
		return Result{}, err
	}
	signals.ConsentGiven()

	return Result{Contact: contact, Rating: rating}, nil
}

func (w *Wizard) collectContact(ctx context.Context) (delivery.ContactInfo, error) {
	for {
		email, err := w.prompt(ctx, "Email address: ")
		if err != nil {
			return delivery.ContactInfo{}, err
		}
		phone, err := w.prompt(ctx, "Phone for text message (optional, press Enter to skip): ")
		if err != nil {
			return delivery.ContactInfo{}, err
		}
		contact, err := delivery.NewContactInfo(email, phone, w.gateways)
		if err != nil {
			fmt.Fprintf(w.out, "Sorry, that didn't look right: %s\n", services.Cause(err))
			continue
		}
		return contact, nil
	}
}

func (w *Wizard) collectRating(ctx context.Context) (int, error) {
	for {
		answer, err := w.prompt(ctx, "How was your experience? Rate 1-5 stars: ")
		if err != nil {
			return 0, err
		}
		rating, err := ParseRating(answer)
		if err != nil {
			fmt.Fprintf(w.out, "Please enter a whole number from 1 to 5.\n")
			continue
		}
		return rating, nil
	}
}

func (w *Wizard) awaitRender(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	default:
	}
	fmt.Fprintln(w.out, "Hang tight, your video is still being enhanced...")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		fmt.Fprintln(w.out, "Your video is ready!")
		return nil
	}
}

func (w *Wizard) collectConsent(ctx context.Context) error {
	for {
		answer, err := w.prompt(ctx, "Share your video now? [y/n]: ")
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return nil
		default:
			fmt.Fprintln(w.out, "Your video stays on the kiosk until you say yes.")
		}
	}
}

func (w *Wizard) prompt(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(w.out, label)
	if !w.in.Scan() {
		if err := w.in.Err(); err != nil {
			return "", fmt.Errorf("read console input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(w.in.Text()), nil
}

// ParseRating validates a 1 to 5 star rating.
func ParseRating(raw string) (int, error) {
	rating, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || rating < 1 || rating > 5 {
		return 0, services.Wrap(services.ErrValidation, "wizard", "parse rating", "rating must be 1 through 5", nil)
	}
	return rating, nil
}
