package compose

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	composeService "github.com/leafpost/leafpost/internal/service/compose"
	"github.com/leafpost/leafpost/internal/service/preview"
	"github.com/leafpost/leafpost/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsInbound is a message from the client: currently only draft edits.
type wsInbound struct {
	Type  string                     `json:"type"`
	Draft composeService.DraftUpdate `json:"draft"`
}

// wsOutbound pushes preview state to the client.
type wsOutbound struct {
	Type  string        `json:"type"`
	State preview.State `json:"state"`
}

// handleWebSocket streams preview state changes to the client and accepts
// draft edits over the same connection, replacing poll-based preview reads.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.compose.Get(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("sessionId", sessionID).Msg("websocket upgrade failed")
		return
	}

	states := make(chan preview.State, 16)
	engine := sess.Engine()
	engine.Notify(func(s preview.State) {
		select {
		case states <- s:
		default:
			// The client is not keeping up; it will catch up on the next state.
		}
	})
	defer engine.Notify(nil)

	// Seed the connection with the current state.
	states <- engine.Snapshot()

	done := make(chan struct{})
	go h.writePump(conn, states, done)
	h.readPump(conn, sessionID)
	close(done)
	conn.Close()
}

func (h *Handler) readPump(conn *websocket.Conn, sessionID string) {
	conn.SetReadLimit(64 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("sessionId", sessionID).Msg("websocket read failed")
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "draft" {
			continue
		}
		if _, err := h.compose.UpdateDraft(sessionID, msg.Draft); err != nil {
			// Session discarded while the socket was open.
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, states <-chan preview.State, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case s := <-states:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wsOutbound{Type: "preview", State: s}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
