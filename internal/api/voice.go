package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voicepay/internal/domain"
)

type voiceConn struct {
	ws     *websocket.Conn
	sendMu sync.Mutex
}

func (c *voiceConn) send(ev domain.VoiceEvent) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.ws.WriteJSON(ev)
}

// voiceWSHandler carries one recognized utterance or recognition error per
// text frame and answers each with a reply frame. A session created for the
// socket ends with it.
func (s *Server) voiceWSHandler(w http.ResponseWriter, req *http.Request) {
	ws, err := s.wsUpgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Warn("upgrade websocket failed", "error", err)
		return
	}

	// a socket only ends sessions it created; joined sessions outlive it
	sessionID := strings.TrimSpace(req.URL.Query().Get("session_id"))
	owned := sessionID == ""
	if owned {
		sessionID = uuid.NewString()
	}
	deviceID := strings.TrimSpace(req.URL.Query().Get("device_id"))
	conn := &voiceConn{ws: ws}
	defer func() {
		if owned {
			s.deps.Engine.EndSession(sessionID)
		}
		_ = ws.Close()
	}()

	_ = conn.send(domain.VoiceEvent{Type: "ready", Text: sessionID})
	s.logger.Info("voice websocket opened", "session_id", sessionID, "device_id", deviceID)

	for {
		msgType, payload, err := ws.ReadMessage()
		if err != nil {
			s.logger.Info("voice websocket closed", "session_id", sessionID)
			return
		}
		if msgType != websocket.TextMessage {
			_ = conn.send(domain.VoiceEvent{Type: "error", Text: "only text frames are supported"})
			continue
		}

		var ev domain.VoiceEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			_ = conn.send(domain.VoiceEvent{Type: "error", Text: "invalid json"})
			continue
		}

		var reply string
		switch strings.ToLower(strings.TrimSpace(ev.Type)) {
		case "utterance":
			if strings.TrimSpace(ev.Text) == "" {
				reply = s.reply(req.Context(), sessionID, deviceID, "", string(domain.RecognitionNoMatch))
				break
			}
			reply = s.reply(req.Context(), sessionID, deviceID, ev.Text, "")
		case "recognition_error":
			reason := ev.Reason
			if strings.TrimSpace(reason) == "" {
				reason = string(domain.RecognitionNoMatch)
			}
			reply = s.reply(req.Context(), sessionID, deviceID, "", reason)
		default:
			_ = conn.send(domain.VoiceEvent{Type: "error", Text: "unknown event type: " + ev.Type})
			continue
		}
		if err := conn.send(domain.VoiceEvent{Type: "reply", Text: reply}); err != nil {
			s.logger.Warn("send voice reply failed", "session_id", sessionID, "error", err)
			return
		}
	}
}
