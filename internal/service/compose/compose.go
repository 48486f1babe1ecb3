// Package compose manages open compose sessions: one per letter being
// written, each owning its draft, its persona, and its preview engine.
package compose

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leafpost/leafpost/internal/model/mail"
	"github.com/leafpost/leafpost/internal/model/persona"
	"github.com/leafpost/leafpost/internal/service/delivery"
	"github.com/leafpost/leafpost/internal/service/preview"
	"github.com/leafpost/leafpost/internal/service/session"
)

var (
	ErrSessionNotFound  = errors.New("compose session not found")
	ErrUnauthenticated  = errors.New("a valid sign-in session is required to compose")
	ErrPersonaNotFound  = errors.New("persona not found")
	ErrSessionUncertain = errors.New("could not determine sign-in state")
)

// Session is one open compose surface.
type Session struct {
	ID        string          `json:"id"`
	Persona   persona.Persona `json:"persona"`
	Draft     mail.Draft      `json:"draft"`
	User      session.Context `json:"user"`
	CreatedAt time.Time       `json:"createdAt"`

	engine *preview.Engine
}

// Engine exposes the session's preview engine.
func (s *Session) Engine() *preview.Engine { return s.engine }

// DraftUpdate is a partial draft edit; nil fields are left untouched.
type DraftUpdate struct {
	RecipientAddress *string    `json:"recipientAddress"`
	Subject          *string    `json:"subject"`
	BodyText         *string    `json:"bodyText"`
	ScheduledAt      *time.Time `json:"scheduledAt"`
}

// EngineFactory builds a preview engine for a new session.
type EngineFactory func() *preview.Engine

// Service owns the live compose sessions.
type Service struct {
	guard     *session.Guard
	store     *persona.MemoryStore
	submitter *delivery.Submitter
	newEngine EngineFactory
	logger    zerolog.Logger
	nowFn     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService wires the compose service to its collaborators.
func NewService(guard *session.Guard, store *persona.MemoryStore, submitter *delivery.Submitter, newEngine EngineFactory, logger zerolog.Logger) *Service {
	return &Service{
		guard:     guard,
		store:     store,
		submitter: submitter,
		newEngine: newEngine,
		logger:    logger.With().Str("component", "compose").Logger(),
		nowFn:     time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Open starts a compose session for the given persona. The sign-in session is
// verified first; an unauthenticated user never gets a compose surface.
func (s *Service) Open(ctx context.Context, personaID int) (*Session, error) {
	res := s.guard.Ensure(ctx)
	switch res.State {
	case mail.SessionAuthenticated:
	case mail.SessionUnknown:
		return nil, ErrSessionUncertain
	default:
		return nil, ErrUnauthenticated
	}

	p, ok := s.store.FindByID(personaID)
	if !ok {
		return nil, ErrPersonaNotFound
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Persona:   p,
		Draft:     mail.Draft{PersonaID: p.ID},
		User:      res.Context,
		CreatedAt: s.nowFn().UTC(),
		engine:    s.newEngine(),
	}
	sess.Draft.ID = sess.ID

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info().Str("sessionId", sess.ID).Int("personaId", p.ID).Str("user", res.Context.Email).
		Msg("compose session opened")
	return sess, nil
}

// Get returns an open session by ID.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// UpdateDraft applies a partial edit and feeds the result into the session's
// preview engine.
func (s *Service) UpdateDraft(id string, update DraftUpdate) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if update.RecipientAddress != nil {
		sess.Draft.RecipientAddress = *update.RecipientAddress
	}
	if update.Subject != nil {
		sess.Draft.Subject = *update.Subject
	}
	if update.BodyText != nil {
		sess.Draft.BodyText = *update.BodyText
	}
	if update.ScheduledAt != nil {
		at := *update.ScheduledAt
		sess.Draft.ScheduledAt = &at
	}
	draft := sess.Draft
	p := sess.Persona
	engine := sess.engine
	s.mu.Unlock()

	engine.OnChange(draft.BodyText, &p, draft.RecipientAddress)
	return sess, nil
}

// Send submits the session's draft. A non-nil scheduledAt replaces the
// draft's dispatch instant before submission. A delivered outcome (including
// fallback delivery) ends the session; rejections and failures leave it open
// so the user can fix the draft and retry.
func (s *Service) Send(ctx context.Context, id string, mode delivery.Mode, scheduledAt *time.Time) (delivery.Outcome, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return delivery.Outcome{}, ErrSessionNotFound
	}
	if scheduledAt != nil {
		at := *scheduledAt
		sess.Draft.ScheduledAt = &at
	}
	draft := sess.Draft
	p := sess.Persona
	s.mu.Unlock()

	out := s.submitter.Submit(ctx, draft, &p, mode)
	if out.Kind == delivery.KindDelivered || out.Kind == delivery.KindDeliveredWithFallback {
		s.Discard(id)
	}
	return out, nil
}

// Discard closes a session and its preview engine. Discarding an unknown ID
// is a no-op.
func (s *Service) Discard(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok {
		sess.engine.Close()
		s.logger.Info().Str("sessionId", id).Msg("compose session discarded")
	}
}

// Count reports how many sessions are open.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
