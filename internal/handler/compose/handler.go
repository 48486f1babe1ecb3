package compose

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/leafpost/leafpost/internal/service/compose"
	"github.com/leafpost/leafpost/internal/service/delivery"
	"github.com/leafpost/leafpost/internal/service/history"
	"github.com/leafpost/leafpost/pkg/utils"
)

// Handler exposes the compose session lifecycle over HTTP.
type Handler struct {
	compose *compose.Service
	log     *history.Log
	logger  zerolog.Logger
}

// New creates the compose handler.
func New(svc *compose.Service, log *history.Log, logger zerolog.Logger) *Handler {
	return &Handler{
		compose: svc,
		log:     log,
		logger:  logger.With().Str("component", "compose_handler").Logger(),
	}
}

// RegisterRoutes registers compose and history routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/compose", h.handleOpen)
	r.Get("/compose/{sessionID}", h.handleGet)
	r.Put("/compose/{sessionID}/draft", h.handleUpdateDraft)
	r.Get("/compose/{sessionID}/preview", h.handlePreview)
	r.Get("/compose/{sessionID}/ws", h.handleWebSocket)
	r.Post("/compose/{sessionID}/send", h.handleSend)
	r.Delete("/compose/{sessionID}", h.handleDiscard)
	r.Get("/history", h.handleHistory)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PersonaID int `json:"personaId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.compose.Open(r.Context(), body.PersonaID)
	switch {
	case errors.Is(err, compose.ErrUnauthenticated):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, compose.ErrSessionUncertain):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, compose.ErrPersonaNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to open compose session")
		utils.RespondError(w, http.StatusInternalServerError, "failed to open compose session")
	default:
		utils.RespondJSON(w, http.StatusCreated, sess)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.compose.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var update compose.DraftUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.compose.UpdateDraft(chi.URLParam(r, "sessionID"), update)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, err := h.compose.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess.Engine().Snapshot())
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode        delivery.Mode `json:"mode"`
		ScheduledAt *time.Time    `json:"scheduledAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Mode == "" {
		body.Mode = delivery.ModeImmediate
	}
	if body.Mode != delivery.ModeImmediate && body.Mode != delivery.ModeScheduled {
		utils.RespondError(w, http.StatusBadRequest, "mode must be \"now\" or \"scheduled\"")
		return
	}

	out, err := h.compose.Send(r.Context(), chi.URLParam(r, "sessionID"), body.Mode, body.ScheduledAt)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, statusForOutcome(out), out)
}

// statusForOutcome maps submission outcomes onto HTTP statuses. Fallback
// deliveries are still deliveries and report success. Failures split on
// retryability: a gateway-class 502 invites a retry, a 400 does not.
func statusForOutcome(out delivery.Outcome) int {
	switch out.Kind {
	case delivery.KindDelivered, delivery.KindDeliveredWithFallback:
		return http.StatusOK
	case delivery.KindRejected:
		return http.StatusUnprocessableEntity
	default:
		if out.Retryable {
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	}
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	h.compose.Discard(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	status := history.Status(r.URL.Query().Get("status"))
	if status != "" && status != history.StatusScheduled && status != history.StatusSent {
		utils.RespondError(w, http.StatusBadRequest, "status must be \"scheduled\" or \"sent\"")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"entries": h.log.List(status)})
}
