package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"voicepay/internal/config"
	"voicepay/internal/domain"
	"voicepay/internal/mqtt"
)

func main() {
	config.LoadDotEnv()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg := config.LoadDeviceConfig()

	phone := newPhoneState(cfg.Packages, cfg.AppsVersion, cfg.FailPayments)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mqttClient, err := startMQTT(ctx, cfg, phone, logger)
	if err != nil {
		logger.Error("start device mqtt failed", "error", err)
		os.Exit(1)
	}
	defer mqttClient.Disconnect(100)

	sessionID := uuid.NewString()

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		out := phone.snapshot()
		out["device_id"] = cfg.DeviceID
		out["session_id"] = sessionID
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/apps", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			Packages []string `json:"packages"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		version := phone.setPackages(in.Packages)
		if err := publishApps(mqttClient, cfg, phone); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": version})
	})

	// /say forwards a typed utterance to the server as if it had been heard.
	r.Post("/say", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			Text    string `json:"text"`
			Failure string `json:"failure"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if strings.TrimSpace(in.Text) == "" && in.Failure == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text or failure is required"})
			return
		}
		out, status, err := sendTurn(req.Context(), cfg.ServerURL, domain.TurnRequest{
			SessionID: sessionID,
			DeviceID:  cfg.DeviceID,
			Text:      in.Text,
			Failure:   in.Failure,
		})
		if err != nil {
			phone.appendLog(fmt.Sprintf("/v1/turns failed: %v", err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, status, out)
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("payment device started", "addr", cfg.HTTPAddr, "device_id", cfg.DeviceID)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("payment device http error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("payment device shutdown signal")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("payment device shutdown failed", "error", err)
	}
}

func startMQTT(ctx context.Context, cfg config.DeviceConfig, phone *phoneState, logger *slog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	onlineTopic := mqtt.TopicOnline(cfg.MQTTTopicPrefix, cfg.DeviceID)
	opts.SetWill(onlineTopic, "offline", 1, true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	if token := client.Publish(onlineTopic, 1, true, "online"); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if err := publishApps(client, cfg, phone); err != nil {
		return nil, err
	}
	heartbeatTopic := mqtt.TopicHeartbeat(cfg.MQTTTopicPrefix, cfg.DeviceID)
	if token := client.Publish(heartbeatTopic, 0, false, []byte("1")); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	invokeTopic := mqtt.TopicInvokeAll(cfg.MQTTTopicPrefix, cfg.DeviceID)
	if token := client.Subscribe(invokeTopic, 1, func(_ paho.Client, msg paho.Message) {
		var req domain.InvokeRequest
		if err := json.Unmarshal(msg.Payload(), &req); err != nil {
			logger.Error("invalid invoke payload", "error", err)
			return
		}
		if req.RequestID == "" {
			req.RequestID = mqtt.ParseRequestID(msg.Topic())
		}
		result := phone.handleInvoke(req)
		logger.Info("payment request handled", "request_id", req.RequestID, "app", req.Payment.AppID, "ok", result.OK, "error", result.Error)
		resultTopic := mqtt.TopicResult(cfg.MQTTTopicPrefix, cfg.DeviceID, req.RequestID)
		buf, _ := json.Marshal(result)
		if tk := client.Publish(resultTopic, 1, false, buf); tk.Wait() && tk.Error() != nil {
			logger.Error("publish result failed", "error", tk.Error())
		}
	}); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	speakTopic := mqtt.TopicSpeak(cfg.MQTTTopicPrefix, cfg.DeviceID)
	if token := client.Subscribe(speakTopic, 0, func(_ paho.Client, msg paho.Message) {
		var payload domain.SpeakPayload
		if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
			phone.appendLog("speak raw: " + strings.TrimSpace(string(msg.Payload())))
			return
		}
		phone.speak(payload)
	}); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	go func() {
		heartbeatTicker := time.NewTicker(cfg.HeartbeatInterval)
		defer heartbeatTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeatTicker.C:
				client.Publish(heartbeatTopic, 0, false, []byte("1"))
			}
		}
	}()

	go func() {
		<-ctx.Done()
		client.Publish(onlineTopic, 1, true, "offline")
	}()

	return client, nil
}

func publishApps(client paho.Client, cfg config.DeviceConfig, phone *phoneState) error {
	buf, err := json.Marshal(phone.appReport(cfg.DeviceID))
	if err != nil {
		return err
	}
	topic := mqtt.TopicApps(cfg.MQTTTopicPrefix, cfg.DeviceID)
	if token := client.Publish(topic, 1, true, buf); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func sendTurn(ctx context.Context, serverURL string, in domain.TurnRequest) (any, int, error) {
	buf, _ := json.Marshal(in)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/v1/turns", bytes.NewReader(buf))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("content-type", "application/json")
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, 0, fmt.Errorf("invalid server response: %w", err)
	}
	return out, resp.StatusCode, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
