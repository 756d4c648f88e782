// Package mqtt connects the server to payment devices: it tracks presence and
// reported apps, sends payment invocations and relays spoken replies.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"voicepay/internal/device"
	"voicepay/internal/domain"
)

var ErrInvokeTimeout = errors.New("payment invocation timed out")

type HubConfig struct {
	BrokerURL     string
	ClientID      string
	Username      string
	Password      string
	TopicPrefix   string
	InvokeTimeout time.Duration
}

type Hub struct {
	cfg      HubConfig
	client   paho.Client
	publish  func(topic string, qos byte, payload []byte) error
	registry *device.Registry
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]chan domain.InvokeResult
}

func NewHub(cfg HubConfig, registry *device.Registry, logger *slog.Logger) *Hub {
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = 20 * time.Second
	}
	h := &Hub{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		pending:  make(map[string]chan domain.InvokeResult),
	}
	h.publish = h.publishMQTT
	return h
}

func (h *Hub) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})
	// Subscriptions are restored on every reconnect so retained app reports are replayed.
	opts.SetOnConnectHandler(func(_ paho.Client) {
		if err := h.subscribeHandlers(); err != nil {
			h.logger.Error("mqtt subscribe failed", "error", err)
		}
	})

	h.client = paho.NewClient(opts)
	if token := h.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(100)
	}()

	return nil
}

func (h *Hub) subscribeHandlers() error {
	subs := []struct {
		topic   string
		handler paho.MessageHandler
	}{
		{TopicDeviceApps(h.cfg.TopicPrefix), h.handleAppReport},
		{TopicDeviceOnline(h.cfg.TopicPrefix), h.handleOnline},
		{TopicDeviceHeartbeat(h.cfg.TopicPrefix), h.handleHeartbeat},
		{TopicDeviceResult(h.cfg.TopicPrefix), h.handleInvokeResult},
	}
	for _, s := range subs {
		if token := h.client.Subscribe(s.topic, 1, s.handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
		}
	}
	return nil
}

func (h *Hub) publishMQTT(topic string, qos byte, payload []byte) error {
	if h.client == nil || !h.client.IsConnected() {
		return errors.New("mqtt client not connected")
	}
	if token := h.client.Publish(topic, qos, false, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (h *Hub) handleAppReport(_ paho.Client, msg paho.Message) {
	deviceID, err := ParseDeviceID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid apps topic", "topic", msg.Topic(), "error", err)
		return
	}

	var report domain.AppReport
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		// a bare array of package names is accepted too
		var packages []string
		if err2 := json.Unmarshal(msg.Payload(), &packages); err2 != nil {
			h.logger.Warn("invalid apps payload", "device_id", deviceID, "error", err)
			return
		}
		report = domain.AppReport{DeviceID: deviceID, Packages: packages}
	}
	if report.DeviceID == "" {
		report.DeviceID = deviceID
	}
	if report.DeviceID != deviceID {
		h.logger.Warn("app report device mismatch", "topic_device", deviceID, "payload_device", report.DeviceID)
		return
	}

	h.registry.SetApps(deviceID, report.Version, report.Packages)
	state, _ := h.registry.GetState(deviceID)
	h.logger.Info("device apps updated", "device_id", deviceID, "apps_version", state.AppsVersion, "package_count", len(state.Packages))
}

func (h *Hub) handleOnline(_ paho.Client, msg paho.Message) {
	deviceID, err := ParseDeviceID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid online topic", "topic", msg.Topic(), "error", err)
		return
	}

	payload := strings.TrimSpace(strings.ToLower(string(msg.Payload())))
	online := payload == "1" || payload == "true" || payload == "online"
	h.registry.SetOnline(deviceID, online)
	h.logger.Info("device online status", "device_id", deviceID, "online", online)
}

func (h *Hub) handleHeartbeat(_ paho.Client, msg paho.Message) {
	deviceID, err := ParseDeviceID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid heartbeat topic", "topic", msg.Topic(), "error", err)
		return
	}
	h.registry.Touch(deviceID)
}

func (h *Hub) handleInvokeResult(_ paho.Client, msg paho.Message) {
	requestID := ParseRequestID(msg.Topic())
	if requestID == "" {
		return
	}

	var result domain.InvokeResult
	if err := json.Unmarshal(msg.Payload(), &result); err != nil {
		h.logger.Warn("invalid invoke result", "topic", msg.Topic(), "error", err)
		return
	}
	if result.RequestID == "" {
		result.RequestID = requestID
	}

	h.pendingMu.Lock()
	ch, ok := h.pending[result.RequestID]
	h.pendingMu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- result:
	default:
	}
}

// InitiatePayment asks the device to open a payment app with the request and
// waits until the device acknowledges the hand-off.
func (h *Hub) InitiatePayment(ctx context.Context, deviceID string, req domain.PaymentRequest) error {
	state, ok := h.registry.GetState(deviceID)
	if !ok {
		return device.ErrUnknownDevice
	}
	if !state.Online {
		return device.ErrDeviceOffline
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	requestID := req.RequestID
	payload := domain.InvokeRequest{
		RequestID: requestID,
		Action:    domain.ActionInitiatePayment,
		Payment:   req,
		UPIURI:    domain.BuildUPIURI(req),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resultCh := make(chan domain.InvokeResult, 1)
	h.pendingMu.Lock()
	h.pending[requestID] = resultCh
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, requestID)
		h.pendingMu.Unlock()
	}()

	topic := TopicInvoke(h.cfg.TopicPrefix, deviceID, requestID)
	if err := h.publish(topic, 1, body); err != nil {
		return fmt.Errorf("publish payment request: %w", err)
	}

	timer := time.NewTimer(h.cfg.InvokeTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-resultCh:
		if !result.OK {
			if result.Error == "" {
				result.Error = "payment app rejected the request"
			}
			return fmt.Errorf("device %s: %s", deviceID, result.Error)
		}
		return nil
	case <-timer.C:
		return ErrInvokeTimeout
	}
}

// Speak sends a reply for the device to read aloud. Delivery is not awaited.
func (h *Hub) Speak(_ context.Context, deviceID, sessionID, text string) error {
	body, err := json.Marshal(domain.SpeakPayload{
		SessionID: sessionID,
		Text:      text,
		TS:        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return h.publish(TopicSpeak(h.cfg.TopicPrefix, deviceID), 0, body)
}
