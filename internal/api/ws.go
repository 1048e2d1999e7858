package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/fleetmind/fleetmind-agent/internal/agent"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API carries no cookies or ambient credentials, so
	// cross-origin chat UIs are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is one inbound chat message on the socket.
type wsRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// wsEvent is one outbound frame. Type is "session", "step", "final",
// or "error".
type wsEvent struct {
	Type      string               `json:"type"`
	SessionID string               `json:"session_id,omitempty"`
	Step      *agent.ExecutionStep `json:"step,omitempty"`
	Response  *agent.Response      `json:"response,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// handleWSChat runs chat over a WebSocket, streaming each execution
// step as it completes so clients can render the agent's reasoning
// live instead of waiting for the whole turn.
func (s *Server) handleWSChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		if req.Message == "" {
			if err := conn.WriteJSON(wsEvent{Type: "error", Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		sess := s.sessions.GetOrCreate(req.SessionID)
		if err := conn.WriteJSON(wsEvent{Type: "session", SessionID: sess.ID}); err != nil {
			return
		}

		// Steps fire sequentially from the loop, so writing from the
		// callback needs no extra synchronization.
		resp, procErr := sess.Process(r.Context(), req.Message, func(step agent.ExecutionStep) {
			if err := conn.WriteJSON(wsEvent{Type: "step", SessionID: sess.ID, Step: &step}); err != nil {
				s.logger.Debug("websocket step write failed", "error", err)
			}
		})
		if procErr != nil {
			s.logger.Error("turn failed", "session", sess.ID, "error", procErr)
		}

		s.recordTurn(r.Context(), sess.ID, req.Message, resp)

		if err := conn.WriteJSON(wsEvent{Type: "final", SessionID: sess.ID, Response: resp}); err != nil {
			return
		}
	}
}
