package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"agentgames/internal/logging"
	"agentgames/internal/replay"
	"agentgames/internal/session"
)

// Message types exchanged over the session websocket.
const (
	msgIntent = "intent"
	msgFrame  = "frame"
	msgError  = "error"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeError(w, r, http.StatusNotFound, session.ErrNotFound.Error(), s.requestLogger(r))
		return
	}
	logger := logging.ForSession(s.requestLogger(r), code)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		logging.Error(logger, "websocket accept failed", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	viewer := sess.AddViewer(uuid.NewString())
	defer sess.RemoveViewer(viewer.ID)

	// The current frame goes out first so a new viewer can draw immediately.
	sendWSMsg(viewer.Send, msgFrame, sess.View())

	// Writer goroutine: send messages from the channel to the websocket
	go func() {
		for msg := range viewer.Send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop: handle incoming messages
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWSMsg(viewer.Send, msgError, errorPayload{Message: "invalid message"})
			continue
		}
		s.handleMessage(r, code, viewer, msg)
	}

	logging.Info(logger, "viewer disconnected", "viewer", viewer.ID)
}

func (s *Server) handleMessage(r *http.Request, code string, viewer *session.Viewer, msg WSMessage) {
	switch msg.Type {
	case msgIntent:
		var in replay.Intent
		if err := json.Unmarshal(msg.Payload, &in); err != nil {
			sendWSMsg(viewer.Send, msgError, errorPayload{Message: "invalid intent payload"})
			return
		}
		// A successful intent is broadcast to every viewer, this one included.
		if _, err := s.applyIntent(r, code, in); err != nil {
			sendWSMsg(viewer.Send, msgError, errorPayload{Message: err.Error()})
		}
	default:
		sendWSMsg(viewer.Send, msgError, errorPayload{Message: "unknown message type: " + msg.Type})
	}
}

func encodeWSMsg(msgType string, payload any) []byte {
	p, _ := json.Marshal(payload)
	msg, _ := json.Marshal(WSMessage{Type: msgType, Payload: p})
	return msg
}

func sendWSMsg(send chan []byte, msgType string, payload any) {
	select {
	case send <- encodeWSMsg(msgType, payload):
	default:
	}
}
