package render

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"convertupload/internal/logging"
	"convertupload/internal/retry"
	"convertupload/internal/services"
)

// DialFunc establishes a scripting session with the engine.
type DialFunc func(ctx context.Context) (Session, error)

// AttachClient establishes an engine session with bounded retry, launching
// the engine process when the first connection attempt finds nothing
// listening.
type AttachClient struct {
	dial        DialFunc
	launcher    Launcher
	maxAttempts int
	delay       time.Duration
	logger      *slog.Logger
}

// NewAttachClient constructs an AttachClient.
func NewAttachClient(dial DialFunc, launcher Launcher, maxAttempts int, delay time.Duration, logger *slog.Logger) *AttachClient {
	if launcher == nil {
		launcher = NopLauncher{}
	}
	return &AttachClient{
		dial:        dial,
		launcher:    launcher,
		maxAttempts: maxAttempts,
		delay:       delay,
		logger:      logging.NewComponentLogger(logger, "attach"),
	}
}

// Attach returns a live session or a terminal attach failure. The engine is
// launched at most once per run, after the immediate connection attempt
// fails. Exhausting the attempt budget is fatal for the pipeline.
func (c *AttachClient) Attach(ctx context.Context) (Session, error) {
	if c.maxAttempts <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "attach", "connect", "attach attempt budget must be positive", nil)
	}

	session, err := c.dial(ctx)
	if err == nil {
		c.logger.Info("attached to engine on first attempt")
		return session, nil
	}
	if c.maxAttempts == 1 {
		return nil, services.Wrap(services.ErrAttachExhausted, "attach", "connect", "engine never accepted a session", err)
	}

	c.logger.Info("engine not reachable, launching", logging.Error(err))
	if launchErr := c.launcher.Launch(ctx); launchErr != nil {
		if errors.Is(launchErr, services.ErrEngineMissing) {
			return nil, launchErr
		}
		c.logger.Warn("engine launch failed, continuing to retry attach", logging.Error(launchErr))
	}

	remaining := c.maxAttempts - 1
	retryErr := retry.Do(ctx, remaining, c.delay, func(ctx context.Context, attempt int) error {
		s, dialErr := c.dial(ctx)
		if dialErr != nil {
			c.logger.Debug("attach attempt failed",
				logging.Int("attempt", attempt+1),
				logging.Int("max_attempts", c.maxAttempts),
				logging.Error(dialErr),
			)
			return dialErr
		}
		session = s
		c.logger.Info("attached to engine", logging.Int("attempt", attempt+1))
		return nil
	})
	if retryErr != nil {
		if errors.Is(retryErr, context.Canceled) || errors.Is(retryErr, context.DeadlineExceeded) {
			return nil, retryErr
		}
		return nil, services.Wrap(services.ErrAttachExhausted, "attach", "connect", "engine never accepted a session", retryErr)
	}
	return session, nil
}
