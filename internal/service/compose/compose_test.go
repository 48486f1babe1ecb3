package compose

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/leafpost/leafpost/internal/model/persona"
	"github.com/leafpost/leafpost/internal/remote"
	"github.com/leafpost/leafpost/internal/service/delivery"
	"github.com/leafpost/leafpost/internal/service/history"
	"github.com/leafpost/leafpost/internal/service/preview"
	"github.com/leafpost/leafpost/internal/service/session"
)

type stubOracle struct {
	status *remote.SessionStatus
	err    error
}

func (s *stubOracle) SessionStatus(_ context.Context) (*remote.SessionStatus, error) {
	return s.status, s.err
}

func authenticatedOracle() *stubOracle {
	status := &remote.SessionStatus{Authenticated: true}
	status.User.Email = "tom@example.com"
	return &stubOracle{status: status}
}

type stubRemote struct {
	previewErr error
	sendResp   *remote.SendResponse
	sendErr    error
}

func (s *stubRemote) Preview(_ context.Context, req remote.PreviewRequest) (*remote.PreviewResponse, error) {
	if s.previewErr != nil {
		return nil, s.previewErr
	}
	return &remote.PreviewResponse{RenderedText: req.BodyText + "~"}, nil
}

func (s *stubRemote) Send(_ context.Context, _ remote.SendRequest) (*remote.SendResponse, error) {
	return s.sendResp, s.sendErr
}

func newTestService(t *testing.T, oracle session.Oracle, rem *stubRemote) *Service {
	t.Helper()
	store := persona.NewMemoryStore([]persona.Persona{{ID: 1, DisplayName: "Tom", AvatarURL: "http://a", VoiceID: "v1"}})

	guard := session.NewGuard(oracle, session.Backoff{MaxAttempts: 1}, zerolog.Nop())
	submitter := delivery.NewSubmitter(rem, history.NewLog(), zerolog.Nop())
	factory := func() *preview.Engine {
		return preview.NewEngine(rem, time.Millisecond, zerolog.Nop())
	}
	return NewService(guard, store, submitter, factory, zerolog.Nop())
}

func TestOpenRequiresAuthenticatedSession(t *testing.T) {
	svc := newTestService(t, &stubOracle{status: &remote.SessionStatus{}}, &stubRemote{})

	_, err := svc.Open(context.Background(), 1)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Zero(t, svc.Count())
}

func TestOpenUnknownPersona(t *testing.T) {
	svc := newTestService(t, authenticatedOracle(), &stubRemote{})

	_, err := svc.Open(context.Background(), 99)
	require.ErrorIs(t, err, ErrPersonaNotFound)
}

func TestOpenCreatesSessionWithUserContext(t *testing.T) {
	svc := newTestService(t, authenticatedOracle(), &stubRemote{})

	sess, err := svc.Open(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, 1, sess.Persona.ID)
	require.Equal(t, "tom@example.com", sess.User.Email)
	require.Equal(t, sess.ID, sess.Draft.ID)

	got, err := svc.Get(sess.ID)
	require.NoError(t, err)
	require.Equal(t, sess.ID, got.ID)
}

func TestUpdateDraftAppliesPartialEdits(t *testing.T) {
	svc := newTestService(t, authenticatedOracle(), &stubRemote{})
	sess, err := svc.Open(context.Background(), 1)
	require.NoError(t, err)

	recipient := "friend@example.com"
	body := "Hello."
	_, err = svc.UpdateDraft(sess.ID, DraftUpdate{RecipientAddress: &recipient, BodyText: &body})
	require.NoError(t, err)

	subject := "Greetings"
	updated, err := svc.UpdateDraft(sess.ID, DraftUpdate{Subject: &subject})
	require.NoError(t, err)

	require.Equal(t, "friend@example.com", updated.Draft.RecipientAddress, "earlier edits survive partial updates")
	require.Equal(t, "Hello.", updated.Draft.BodyText)
	require.Equal(t, "Greetings", updated.Draft.Subject)
}

func TestUpdateDraftFeedsPreviewEngine(t *testing.T) {
	svc := newTestService(t, authenticatedOracle(), &stubRemote{})
	sess, err := svc.Open(context.Background(), 1)
	require.NoError(t, err)

	recipient := "friend@example.com"
	body := "Hello there."
	_, err = svc.UpdateDraft(sess.ID, DraftUpdate{RecipientAddress: &recipient, BodyText: &body})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := sess.Engine().Snapshot(); s.Phase == preview.PhaseReady {
			require.Equal(t, "Hello there.~", s.Result.RenderedText)
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("preview never became ready")
}

func TestSendDeliveredEndsSession(t *testing.T) {
	rem := &stubRemote{sendResp: &remote.SendResponse{RenderedText: "Hello~"}}
	svc := newTestService(t, authenticatedOracle(), rem)
	sess, err := svc.Open(context.Background(), 1)
	require.NoError(t, err)

	recipient := "friend@example.com"
	subject := "Hi"
	body := "Hello."
	_, err = svc.UpdateDraft(sess.ID, DraftUpdate{RecipientAddress: &recipient, Subject: &subject, BodyText: &body})
	require.NoError(t, err)

	out, err := svc.Send(context.Background(), sess.ID, delivery.ModeImmediate, nil)
	require.NoError(t, err)
	require.Equal(t, delivery.KindDelivered, out.Kind)

	_, err = svc.Get(sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendScheduledAtReachesDeliveryRecord(t *testing.T) {
	rem := &stubRemote{sendResp: &remote.SendResponse{RenderedText: "Hello~"}}
	store := persona.NewMemoryStore([]persona.Persona{{ID: 1, DisplayName: "Tom", AvatarURL: "http://a", VoiceID: "v1"}})
	guard := session.NewGuard(authenticatedOracle(), session.Backoff{MaxAttempts: 1}, zerolog.Nop())
	log := history.NewLog()
	submitter := delivery.NewSubmitter(rem, log, zerolog.Nop())
	factory := func() *preview.Engine {
		return preview.NewEngine(rem, time.Millisecond, zerolog.Nop())
	}
	svc := NewService(guard, store, submitter, factory, zerolog.Nop())

	sess, err := svc.Open(context.Background(), 1)
	require.NoError(t, err)

	recipient := "friend@example.com"
	subject := "Hi"
	body := "Hello."
	_, err = svc.UpdateDraft(sess.ID, DraftUpdate{RecipientAddress: &recipient, Subject: &subject, BodyText: &body})
	require.NoError(t, err)

	at := time.Now().Add(3 * time.Hour).UTC().Truncate(time.Second)
	out, err := svc.Send(context.Background(), sess.ID, delivery.ModeScheduled, &at)
	require.NoError(t, err)
	require.Equal(t, delivery.KindDelivered, out.Kind)

	entries := log.List("")
	require.Len(t, entries, 1)
	require.Equal(t, history.StatusScheduled, entries[0].Status)
	require.NotNil(t, entries[0].ScheduledAt)
	require.True(t, entries[0].ScheduledAt.Equal(at), "the chosen instant must win over the default lead")
}

func TestSendRejectedKeepsSessionOpen(t *testing.T) {
	svc := newTestService(t, authenticatedOracle(), &stubRemote{})
	sess, err := svc.Open(context.Background(), 1)
	require.NoError(t, err)

	out, err := svc.Send(context.Background(), sess.ID, delivery.ModeImmediate, nil)
	require.NoError(t, err)
	require.Equal(t, delivery.KindRejected, out.Kind)

	_, err = svc.Get(sess.ID)
	require.NoError(t, err, "a rejected draft stays editable")
}

func TestSendUnknownSession(t *testing.T) {
	svc := newTestService(t, authenticatedOracle(), &stubRemote{})
	_, err := svc.Send(context.Background(), "missing", delivery.ModeImmediate, nil)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDiscardClosesEngine(t *testing.T) {
	svc := newTestService(t, authenticatedOracle(), &stubRemote{})
	sess, err := svc.Open(context.Background(), 1)
	require.NoError(t, err)

	svc.Discard(sess.ID)
	require.Zero(t, svc.Count())
	svc.Discard(sess.ID) // repeat is a no-op
}

func TestOpenSessionProbeFailure(t *testing.T) {
	oracle := &stubOracle{err: &remote.TransportError{Err: errors.New("down")}}
	svc := newTestService(t, oracle, &stubRemote{})

	_, err := svc.Open(context.Background(), 1)
	require.ErrorIs(t, err, ErrUnauthenticated)
}
