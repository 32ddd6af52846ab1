package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
)

const maxFrameBytes = 1 << 20

// handleWebSocket serves the real-time channel. Frames are handled in order;
// a failed frame yields an error frame and the connection stays open.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	id := requestIDFrom(r.Context())
	slog.Info("websocket connected", "id", id, "remote", r.RemoteAddr)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Error("websocket error", "id", id, "error", err)
			} else {
				slog.Info("websocket disconnected", "id", id)
			}
			return
		}
		slog.Debug("stream frame", "id", id, "data", string(raw))

		reply := s.handleFrame(r, raw)
		if err := conn.WriteJSON(reply); err != nil {
			slog.Error("websocket write failed", "id", id, "error", err)
			return
		}
	}
}

func (s *Server) handleFrame(r *http.Request, raw []byte) justcopy.StreamMessage {
	var msg justcopy.StreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errorFrame("invalid_request", "invalid message: "+err.Error())
	}

	switch msg.Type {
	case justcopy.StreamPing:
		return justcopy.StreamMessage{Type: justcopy.StreamPong}

	case justcopy.StreamCodeRequest:
		var req justcopy.CodeRequest
		if len(msg.Data) == 0 {
			return errorFrame("invalid_request", "code_request requires data")
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return errorFrame("invalid_request", "invalid code_request data: "+err.Error())
		}
		resp, err := s.engine.GenerateCode(r.Context(), &req)
		if err != nil {
			_, code := classify(err)
			return errorFrame(code, err.Error())
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return errorFrame("internal_error", err.Error())
		}
		return justcopy.StreamMessage{Type: justcopy.StreamCodeResponse, Data: data}

	default:
		return errorFrame("unknown_type", "unknown message type: "+msg.Type)
	}
}

func errorFrame(code, message string) justcopy.StreamMessage {
	data, err := json.Marshal(justcopy.Error{Code: code, Message: message})
	if err != nil {
		slog.Error("failed to marshal error frame", "error", err)
	}
	return justcopy.StreamMessage{Type: justcopy.StreamError, Data: data}
}
