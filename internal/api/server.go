// Package api exposes the dialogue engine and the vault over HTTP and a voice
// websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voicepay/internal/catalog"
	"voicepay/internal/db"
	"voicepay/internal/device"
	"voicepay/internal/dialogue"
	"voicepay/internal/domain"
	"voicepay/internal/vault"
)

type Deps struct {
	Engine       *dialogue.Engine
	Vault        *vault.Store
	Catalog      *catalog.Catalog
	Discovery    dialogue.AppDiscovery
	Registry     *device.Registry
	Ledger       db.Ledger
	Speaker      dialogue.Speaker
	SpeakReplies bool
}

type Server struct {
	deps       Deps
	logger     *slog.Logger
	wsUpgrader websocket.Upgrader
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	return &Server{
		deps:   deps,
		logger: logger,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.deps.Engine.SessionCount()})
	})
	r.Post("/v1/sessions", s.createSession)
	r.Delete("/v1/sessions/{id}", s.endSession)
	r.Post("/v1/turns", s.handleTurn)
	r.Get("/v1/vault/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.deps.Vault.Stats())
	})
	r.Get("/v1/vault/audit", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"findings": s.deps.Vault.Audit()})
	})
	r.Post("/v1/vault/sweep", func(w http.ResponseWriter, _ *http.Request) {
		removed := s.deps.Vault.Sweep() + s.deps.Vault.ExpireDue()
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
	})
	r.Get("/v1/payments", s.listPayments)
	r.Get("/v1/receipts/{id}", s.getReceipt)
	r.Delete("/v1/receipts/{id}", s.deleteReceipt)
	r.Get("/v1/devices", s.listDevices)
	r.Get("/v1/devices/{id}/apps", s.deviceApps)
	r.Get("/ws/voice", s.voiceWSHandler)
	return r
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": uuid.NewString()})
}

func (s *Server) endSession(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if !s.deps.Engine.EndSession(id) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTurn(w http.ResponseWriter, req *http.Request) {
	var turnReq domain.TurnRequest
	if err := json.NewDecoder(req.Body).Decode(&turnReq); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(turnReq.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "session_id is required"})
		return
	}
	if strings.TrimSpace(turnReq.Text) == "" && strings.TrimSpace(turnReq.Failure) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "text or failure is required"})
		return
	}

	reply := s.reply(req.Context(), turnReq.SessionID, turnReq.DeviceID, turnReq.Text, turnReq.Failure)
	writeJSON(w, http.StatusOK, domain.TurnResponse{
		SessionID: turnReq.SessionID,
		Reply:     reply,
		State:     string(s.deps.Engine.SessionState(turnReq.SessionID)),
	})
}

// reply runs one turn and forwards the answer to the device speaker.
func (s *Server) reply(ctx context.Context, sessionID, deviceID, text, failure string) string {
	var reply string
	if strings.TrimSpace(failure) != "" {
		reply = s.deps.Engine.HandleRecognitionFailure(domain.RecognitionFailure(strings.ToLower(strings.TrimSpace(failure))))
	} else {
		reply = s.deps.Engine.HandleTurn(ctx, domain.Turn{SessionID: sessionID, DeviceID: deviceID, Text: text})
	}
	if s.deps.SpeakReplies && s.deps.Speaker != nil && deviceID != "" {
		if err := s.deps.Speaker.Speak(ctx, deviceID, sessionID, reply); err != nil {
			s.logger.Warn("speak reply failed", "device_id", deviceID, "session_id", sessionID, "error", err)
		}
	}
	return reply
}

func (s *Server) listPayments(w http.ResponseWriter, req *http.Request) {
	if s.deps.Ledger == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "payment ledger is disabled"})
		return
	}
	limit := db.DefaultListLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	records, err := s.deps.Ledger.ListPayments(req.Context(), limit)
	if err != nil {
		s.logger.Error("list payments failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": records})
}

func (s *Server) getReceipt(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	v, ok := s.deps.Vault.GetRegular("receipt_" + id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "receipt not found"})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) deleteReceipt(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if !s.deps.Vault.RemoveRegular("receipt_" + id) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "receipt not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDevices(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "device registry is not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": s.deps.Registry.ListOnline()})
}

func (s *Server) deviceApps(w http.ResponseWriter, req *http.Request) {
	deviceID := chi.URLParam(req, "id")
	if s.deps.Discovery == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "app discovery is not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	apps, err := s.deps.Discovery.InstalledPaymentApps(ctx, deviceID)
	switch {
	case errors.Is(err, device.ErrUnknownDevice):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	case errors.Is(err, device.ErrDeviceOffline):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	if apps == nil {
		apps = []domain.PaymentApp{}
	}

	resp := map[string]any{
		"device_id": deviceID,
		"installed": apps,
		"status":    s.deps.Catalog.Status(apps),
	}
	if preferred, ok := s.deps.Catalog.Preferred(apps); ok {
		resp["preferred"] = preferred
	} else {
		resp["recommendations"] = s.deps.Catalog.Recommendations()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
