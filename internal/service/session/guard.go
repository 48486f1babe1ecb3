// Package session answers one question before any compose work starts: does
// the user currently hold a valid remote session? The answer is probed fresh
// every time and never cached, since the session can expire or be revoked
// between checks.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/leafpost/leafpost/internal/metrics"
	"github.com/leafpost/leafpost/internal/model/mail"
	"github.com/leafpost/leafpost/internal/remote"
)

// Oracle is the remote session probe consumed by the guard.
type Oracle interface {
	SessionStatus(ctx context.Context) (*remote.SessionStatus, error)
}

// Backoff shapes the retry schedule for session probes. Delays[i] is the wait
// after attempt i+1; attempts past the slice reuse the last delay.
type Backoff struct {
	MaxAttempts int
	Delays      []time.Duration
}

// DefaultBackoff probes up to three times with increasing waits.
var DefaultBackoff = Backoff{
	MaxAttempts: 3,
	Delays:      []time.Duration{time.Second, 2 * time.Second},
}

func (b Backoff) delayAfter(attempt int) time.Duration {
	if len(b.Delays) == 0 {
		return 0
	}
	if attempt > len(b.Delays) {
		attempt = len(b.Delays)
	}
	return b.Delays[attempt-1]
}

// Context carries the identity attached to an authenticated session.
type Context struct {
	Email string `json:"email"`
}

// Result reports the probe outcome. Context is set only when State is
// SessionAuthenticated. State is SessionUnknown when the caller's context was
// cancelled mid-probe: no verdict was reached, and callers should treat it as
// "try again" rather than a denial.
type Result struct {
	State    mail.SessionState `json:"state"`
	Context  Context           `json:"context"`
	Attempts int               `json:"attempts"`
}

// Guard gates compose operations on a live session.
type Guard struct {
	oracle  Oracle
	backoff Backoff
	logger  zerolog.Logger
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewGuard builds a guard with the given retry schedule. A zero MaxAttempts
// falls back to DefaultBackoff.
func NewGuard(oracle Oracle, backoff Backoff, logger zerolog.Logger) *Guard {
	if backoff.MaxAttempts <= 0 {
		backoff = DefaultBackoff
	}
	return &Guard{
		oracle:  oracle,
		backoff: backoff,
		logger:  logger.With().Str("component", "session").Logger(),
		sleepFn: sleepCtx,
	}
}

// Ensure probes the remote session, retrying per the guard's backoff. Both an
// explicit "not authenticated" answer and a failed probe are retried, since
// session establishment is known to lag right after sign-in; the two are
// distinguished in logs. Only a positive answer ends the loop early.
func (g *Guard) Ensure(ctx context.Context) Result {
	var lastErr error
	for attempt := 1; attempt <= g.backoff.MaxAttempts; attempt++ {
		status, err := g.oracle.SessionStatus(ctx)
		switch {
		case err == nil && status.Authenticated:
			metrics.SessionProbes.WithLabelValues("authenticated").Inc()
			return Result{
				State:    mail.SessionAuthenticated,
				Context:  Context{Email: status.User.Email},
				Attempts: attempt,
			}

		case err == nil:
			lastErr = nil
			metrics.SessionProbes.WithLabelValues("denied").Inc()
			g.logger.Info().Int("attempt", attempt).Int("maxAttempts", g.backoff.MaxAttempts).
				Msg("session probe denied")

		default:
			lastErr = err
			metrics.SessionProbes.WithLabelValues("transport_error").Inc()
			g.logger.Warn().Err(err).Int("attempt", attempt).Int("maxAttempts", g.backoff.MaxAttempts).
				Msg("session probe failed")
		}

		if attempt < g.backoff.MaxAttempts {
			if err := g.sleepFn(ctx, g.backoff.delayAfter(attempt)); err != nil {
				metrics.SessionProbes.WithLabelValues("cancelled").Inc()
				return Result{State: mail.SessionUnknown, Attempts: attempt}
			}
		}
	}

	g.logger.Error().Err(lastErr).Int("attempts", g.backoff.MaxAttempts).Msg("session probes exhausted")
	return Result{State: mail.SessionUnauthenticated, Attempts: g.backoff.MaxAttempts}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
