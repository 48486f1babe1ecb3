// Package delivery commits a validated draft, immediately or at a scheduled
// time. A delivery is considered to have happened from the user's point of
// view even when the remote voice-rendering leg fails: losing the message
// would be worse than degrading it, so those paths fall back to a local
// rendering instead of surfacing an error.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/leafpost/leafpost/internal/metrics"
	"github.com/leafpost/leafpost/internal/model/mail"
	"github.com/leafpost/leafpost/internal/model/persona"
	"github.com/leafpost/leafpost/internal/remote"
	"github.com/leafpost/leafpost/internal/service/fallback"
	"github.com/leafpost/leafpost/internal/service/history"
	"github.com/leafpost/leafpost/internal/service/validate"
)

// Sender is the remote delivery leg consumed by the submitter.
type Sender interface {
	Send(ctx context.Context, req remote.SendRequest) (*remote.SendResponse, error)
}

// Mode selects immediate or scheduled dispatch.
type Mode string

const (
	ModeImmediate Mode = "now"
	ModeScheduled Mode = "scheduled"
)

// DefaultScheduleLead is the suggested dispatch offset when a scheduled
// submit arrives without an explicit instant.
const DefaultScheduleLead = time.Hour

// Kind tags the submission outcome.
type Kind string

const (
	KindDelivered             Kind = "delivered"
	KindDeliveredWithFallback Kind = "delivered_with_fallback"
	KindRejected              Kind = "rejected"
	KindFailed                Kind = "failed"
)

// Outcome is the submitter's result. FieldErrors is set only for rejected
// submissions; Retryable only for failed ones.
type Outcome struct {
	Kind             Kind                      `json:"kind"`
	RenderedText     string                    `json:"renderedText,omitempty"`
	RenderedImageURL string                    `json:"renderedImageUrl,omitempty"`
	Reason           string                    `json:"reason,omitempty"`
	Retryable        bool                      `json:"retryable,omitempty"`
	FieldErrors      map[validate.Field]string `json:"fieldErrors,omitempty"`
}

// Submitter sends delivery requests. Submissions for the same draft are
// single-flight: while one is outstanding, concurrent duplicates share its
// outcome instead of producing a second delivery record.
type Submitter struct {
	sender  Sender
	log     *history.Log
	logger  zerolog.Logger
	nowFn   func() time.Time
	flights singleflight.Group
}

// NewSubmitter wires the submitter to the remote sender and the delivery log.
func NewSubmitter(sender Sender, log *history.Log, logger zerolog.Logger) *Submitter {
	return &Submitter{
		sender: sender,
		log:    log,
		logger: logger.With().Str("component", "delivery").Logger(),
		nowFn:  time.Now,
	}
}

// Submit validates the draft, snapshots it into an immutable delivery
// request, and dispatches it.
func (s *Submitter) Submit(ctx context.Context, draft mail.Draft, p *persona.Persona, mode Mode) Outcome {
	if fieldErrs := validate.Validate(draft, p); len(fieldErrs) > 0 {
		metrics.Deliveries.WithLabelValues("rejected").Inc()
		return Outcome{Kind: KindRejected, Reason: "validation", FieldErrors: fieldErrs}
	}

	now := s.nowFn()
	dispatchAt := now
	if mode == ModeScheduled {
		if draft.ScheduledAt != nil {
			dispatchAt = *draft.ScheduledAt
		} else {
			dispatchAt = now.Add(DefaultScheduleLead)
		}
	}

	req, err := mail.NewDeliveryRequest(draft, p.VoiceID, dispatchAt, now)
	if err != nil {
		metrics.Deliveries.WithLabelValues("rejected").Inc()
		return Outcome{
			Kind:        KindRejected,
			Reason:      "validation",
			FieldErrors: map[validate.Field]string{validate.FieldScheduledAt: "scheduled time must be in the future"},
		}
	}

	v, _, shared := s.flights.Do(draft.ID, func() (any, error) {
		return s.dispatch(ctx, req), nil
	})
	if shared {
		s.logger.Info().Str("draftId", draft.ID).Msg("duplicate submission joined the in-flight delivery")
	}
	return v.(Outcome)
}

func (s *Submitter) dispatch(ctx context.Context, req mail.DeliveryRequest) Outcome {
	resp, err := s.sender.Send(ctx, remote.SendRequest{
		PersonaID:        req.PersonaID,
		VoiceID:          req.VoiceID,
		RecipientAddress: req.RecipientAddress,
		Subject:          req.Subject,
		BodyText:         req.BodyText,
		DispatchAt:       req.DispatchAt,
	})

	switch {
	case err == nil && resp.RenderedText != "":
		s.record(req, resp.RenderedText, false)
		metrics.Deliveries.WithLabelValues("delivered").Inc()
		return Outcome{Kind: KindDelivered, RenderedText: resp.RenderedText, RenderedImageURL: resp.RenderedImageURL}

	case err == nil:
		// The remote accepted the delivery but returned no rendered text;
		// treat it the same as a rendering failure.
		s.logger.Warn().Int("personaId", req.PersonaID).Msg("send succeeded without rendered text, applying fallback")
		return s.fallbackOutcome(req)

	case ctx.Err() != nil:
		// The caller gave up, not the remote; a clean retry is possible.
		metrics.Deliveries.WithLabelValues("failed").Inc()
		return Outcome{Kind: KindFailed, Reason: "submission cancelled before dispatch", Retryable: true}

	default:
		return s.remoteFailureOutcome(req, err)
	}
}

// remoteFailureOutcome classifies a failed send. Transport and server-side
// failures degrade to a fallback rendering; client-side rejections cannot
// succeed on retry and surface as failures.
func (s *Submitter) remoteFailureOutcome(req mail.DeliveryRequest, err error) Outcome {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		metrics.Deliveries.WithLabelValues("failed").Inc()
		reason := apiErr.Message
		if apiErr.AuthRequired() {
			reason = "authentication required"
		}
		s.logger.Error().Int("status", apiErr.Status).Str("reason", reason).Msg("remote rejected the delivery")
		return Outcome{Kind: KindFailed, Reason: reason, Retryable: false}
	}

	s.logger.Warn().Err(err).Msg("remote delivery leg failed, recording with fallback rendering")
	return s.fallbackOutcome(req)
}

func (s *Submitter) fallbackOutcome(req mail.DeliveryRequest) Outcome {
	rendered := fallback.Apply(req.BodyText)
	s.record(req, rendered, true)
	metrics.Deliveries.WithLabelValues("fallback").Inc()
	metrics.FallbackRenders.Inc()
	return Outcome{Kind: KindDeliveredWithFallback, RenderedText: rendered}
}

func (s *Submitter) record(req mail.DeliveryRequest, rendered string, usedFallback bool) {
	if s.log == nil {
		return
	}
	entry := history.Entry{
		PersonaID:    req.PersonaID,
		Recipient:    req.RecipientAddress,
		Subject:      req.Subject,
		OriginalText: req.BodyText,
		RenderedText: rendered,
		Fallback:     usedFallback,
		Status:       history.StatusSent,
	}
	if req.DispatchAt.After(s.nowFn()) {
		dispatchAt := req.DispatchAt
		entry.Status = history.StatusScheduled
		entry.ScheduledAt = &dispatchAt
		entry.SentAt = nil
	}
	s.log.Record(entry)
}
