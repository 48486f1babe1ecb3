package persona

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leafpost/leafpost/internal/service/directory"
	"github.com/leafpost/leafpost/pkg/utils"
)

// Handler serves the persona directory.
type Handler struct {
	directory *directory.Service
}

// New creates the persona handler.
func New(dir *directory.Service) *Handler {
	return &Handler{directory: dir}
}

// RegisterRoutes registers persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	opts := directory.Options{Sort: r.URL.Query().Get("sort")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	result := h.directory.List(r.Context(), opts)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"personas": result.Personas,
		"complete": result.Complete,
	})
}
