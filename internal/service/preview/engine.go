// Package preview owns the debounced, race-safe preview pipeline. One Engine
// exists per open compose session; it issues requests to the remote
// transformer and guarantees that no response ever overwrites a result
// produced by a request issued after it.
package preview

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leafpost/leafpost/internal/metrics"
	"github.com/leafpost/leafpost/internal/model/mail"
	"github.com/leafpost/leafpost/internal/model/persona"
	"github.com/leafpost/leafpost/internal/remote"
)

// Transformer is the remote preview leg consumed by the engine.
type Transformer interface {
	Preview(ctx context.Context, req remote.PreviewRequest) (*remote.PreviewResponse, error)
}

// Phase is the engine's externally visible state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

// State is a snapshot of the engine. Result is set only in PhaseReady, Err
// only in PhaseError.
type State struct {
	Phase  Phase               `json:"phase"`
	Result *mail.PreviewResult `json:"result,omitempty"`
	Err    string              `json:"error,omitempty"`
}

// DefaultDebounce is how long input must settle before a request is issued.
const DefaultDebounce = 500 * time.Millisecond

const requestTimeout = 15 * time.Second

// Engine debounces draft changes into preview requests. All exported methods
// are safe for concurrent use.
type Engine struct {
	transformer Transformer
	delay       time.Duration
	logger      zerolog.Logger
	nowFn       func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	issued  uint64 // sequence of the newest request handed to the transformer
	applied uint64 // highest sequence whose response reached the state
	state   State
	notify  func(State)
	closed  bool
}

// NewEngine builds an engine with the given debounce delay; delay <= 0 falls
// back to DefaultDebounce.
func NewEngine(transformer Transformer, delay time.Duration, logger zerolog.Logger) *Engine {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Engine{
		transformer: transformer,
		delay:       delay,
		logger:      logger.With().Str("component", "preview").Logger(),
		nowFn:       time.Now,
		state:       State{Phase: PhaseIdle},
	}
}

// Notify registers a single observer pushed on every state change. Pass nil
// to unregister. The callback runs outside the engine lock.
func (e *Engine) Notify(fn func(State)) {
	e.mu.Lock()
	e.notify = fn
	e.mu.Unlock()
}

// Snapshot returns the current preview state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// OnChange feeds the latest draft input into the debounce pipeline. Every
// call cancels any pending (not-yet-fired) timer; only the input present at
// window close produces a request.
func (e *Engine) OnChange(text string, p *persona.Persona, recipientAddress string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.stopTimerLocked()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		// Empty input never reaches the network; anything still in flight is
		// for text that no longer exists and must not land.
		e.applied = e.issued
		e.setStateLocked(State{Phase: PhaseIdle})
		e.mu.Unlock()
		return
	}

	if strings.TrimSpace(recipientAddress) == "" || p == nil || p.VoiceID == "" {
		// A round trip without these would fail anyway; skip it and void any
		// in-flight request for the previous input.
		e.applied = e.issued
		e.setStateLocked(State{Phase: PhaseError, Err: "recipient address and persona voice are required for preview"})
		e.mu.Unlock()
		return
	}

	req := remote.PreviewRequest{
		PersonaID:        p.ID,
		VoiceID:          p.VoiceID,
		BodyText:         trimmed,
		RecipientAddress: strings.TrimSpace(recipientAddress),
	}
	e.setStateLocked(State{Phase: PhaseLoading})
	e.timer = time.AfterFunc(e.delay, func() { e.fire(req) })
	e.mu.Unlock()
}

// Close cancels any pending timer and detaches the engine. In-flight
// responses arriving after Close are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.stopTimerLocked()
	e.notify = nil
	e.mu.Unlock()
}

// fire runs at debounce-window close: capture a sequence number, issue the
// request, and apply the response only if it is still the freshest.
func (e *Engine) fire(req remote.PreviewRequest) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.issued++
	seq := e.issued
	e.mu.Unlock()

	metrics.PreviewsIssued.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := e.transformer.Preview(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if seq < e.issued || seq <= e.applied {
		// A newer request has since started or completed; this response is
		// stale and must be discarded silently.
		metrics.PreviewsStaleDropped.Inc()
		e.logger.Debug().Uint64("seq", seq).Uint64("issued", e.issued).Msg("stale preview response dropped")
		return
	}
	e.applied = seq

	if err != nil {
		metrics.PreviewFailures.Inc()
		e.logger.Warn().Err(err).Uint64("seq", seq).Msg("preview request failed")
		e.setStateLocked(State{Phase: PhaseError, Err: err.Error()})
		return
	}

	e.setStateLocked(State{
		Phase: PhaseReady,
		Result: &mail.PreviewResult{
			SequenceNumber:   seq,
			RenderedText:     resp.RenderedText,
			RenderedImageURL: resp.RenderedImageURL,
			GeneratedAt:      e.nowFn().UTC(),
		},
	})
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) setStateLocked(s State) {
	e.state = s
	if fn := e.notify; fn != nil {
		go fn(s)
	}
}
