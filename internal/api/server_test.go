package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voicepay/internal/catalog"
	"voicepay/internal/db"
	"voicepay/internal/device"
	"voicepay/internal/dialogue"
	"voicepay/internal/domain"
	"voicepay/internal/vault"
)

type okPayments struct{}

func (okPayments) InitiatePayment(context.Context, string, domain.PaymentRequest) error { return nil }

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSpeaker) Speak(_ context.Context, _, _, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

type testServer struct {
	srv      *httptest.Server
	vault    *vault.Store
	registry *device.Registry
	speaker  *recordingSpeaker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.Default()
	store := vault.New(vault.Config{}, logger)
	registry := device.NewRegistry(time.Minute)
	discovery := device.NewDiscovery(registry, cat)

	ledger, err := db.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(ledger.Close)

	engine := dialogue.New(dialogue.Config{}, dialogue.Deps{
		Vault:     store,
		Catalog:   cat,
		Discovery: discovery,
		Payments:  okPayments{},
		Recorder:  ledger,
	}, logger)
	speaker := &recordingSpeaker{}
	srv := httptest.NewServer(NewServer(Deps{
		Engine:       engine,
		Vault:        store,
		Catalog:      cat,
		Discovery:    discovery,
		Registry:     registry,
		Ledger:       ledger,
		Speaker:      speaker,
		SpeakReplies: true,
	}, logger).Router())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, vault: store, registry: registry, speaker: speaker}
}

func (ts *testServer) turn(t *testing.T, body domain.TurnRequest) (int, domain.TurnResponse) {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(ts.srv.URL+"/v1/turns", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post turn: %v", err)
	}
	defer resp.Body.Close()
	var out domain.TurnResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestTurnsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.registry.SetApps("phone-1", 1, []string{"net.one97.paytm"})

	code, out := ts.turn(t, domain.TurnRequest{SessionID: "s-1", DeviceID: "phone-1", Text: "pay 250 to john@paytm"})
	if code != http.StatusOK || out.State != string(domain.StateAwaitingConfirmation) {
		t.Fatalf("code=%d resp=%+v", code, out)
	}
	code, out = ts.turn(t, domain.TurnRequest{SessionID: "s-1", DeviceID: "phone-1", Text: "yes"})
	if code != http.StatusOK || !strings.Contains(out.Reply, "initiated through Paytm") || out.State != string(domain.StateIdle) {
		t.Fatalf("code=%d resp=%+v", code, out)
	}

	var payments struct {
		Payments []domain.PaymentRecord `json:"payments"`
	}
	if code := getJSON(t, ts.srv.URL+"/v1/payments?limit=5", &payments); code != http.StatusOK || len(payments.Payments) != 1 {
		t.Fatalf("payments code=%d body=%+v", code, payments)
	}
	rec := payments.Payments[0]
	if rec.Outcome != domain.OutcomeDispatched || rec.Recipient != "jo**@paytm" {
		t.Fatalf("ledger record=%+v", rec)
	}

	var receipt domain.Receipt
	if code := getJSON(t, ts.srv.URL+"/v1/receipts/"+rec.RequestID, &receipt); code != http.StatusOK || receipt.AppName != "Paytm" {
		t.Fatalf("receipt code=%d body=%+v", code, receipt)
	}
	del, _ := http.NewRequest(http.MethodDelete, ts.srv.URL+"/v1/receipts/"+rec.RequestID, nil)
	for _, want := range []int{http.StatusNoContent, http.StatusNotFound} {
		resp, err := http.DefaultClient.Do(del)
		if err != nil {
			t.Fatalf("delete receipt: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("delete receipt code=%d, want %d", resp.StatusCode, want)
		}
	}
	if code := getJSON(t, ts.srv.URL+"/v1/receipts/"+rec.RequestID, nil); code != http.StatusNotFound {
		t.Fatalf("deleted receipt code=%d", code)
	}

	var health struct {
		Sessions int `json:"sessions"`
	}
	if code := getJSON(t, ts.srv.URL+"/healthz", &health); code != http.StatusOK || health.Sessions != 1 {
		t.Fatalf("healthz code=%d body=%+v", code, health)
	}

	ts.speaker.mu.Lock()
	spoken := len(ts.speaker.texts)
	ts.speaker.mu.Unlock()
	if spoken != 2 {
		t.Fatalf("spoken replies=%d, want 2", spoken)
	}
}

func TestTurnValidation(t *testing.T) {
	ts := newTestServer(t)
	if code, _ := ts.turn(t, domain.TurnRequest{Text: "hello"}); code != http.StatusBadRequest {
		t.Fatalf("missing session id code=%d", code)
	}
	if code, _ := ts.turn(t, domain.TurnRequest{SessionID: "s"}); code != http.StatusBadRequest {
		t.Fatalf("missing text code=%d", code)
	}
	code, out := ts.turn(t, domain.TurnRequest{SessionID: "s", Failure: "speech_timeout"})
	if code != http.StatusOK || out.Reply != "I didn't hear anything. Please try again." {
		t.Fatalf("failure turn code=%d resp=%+v", code, out)
	}
}

func TestVaultEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.vault.Put("transaction_x", "secret")

	var stats vault.Stats
	if code := getJSON(t, ts.srv.URL+"/v1/vault/stats", &stats); code != http.StatusOK || stats.Count != 1 {
		t.Fatalf("stats code=%d body=%+v", code, stats)
	}
	var audit struct {
		Findings []string `json:"findings"`
	}
	if code := getJSON(t, ts.srv.URL+"/v1/vault/audit", &audit); code != http.StatusOK {
		t.Fatalf("audit code=%d", code)
	}
	if len(audit.Findings) != 1 || audit.Findings[0] != "ERROR: Auto-cleanup sweep is not active" {
		t.Fatalf("findings=%q", audit.Findings)
	}

	resp, err := http.Post(ts.srv.URL+"/v1/vault/sweep", "application/json", nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sweep code=%d", resp.StatusCode)
	}
	if ts.vault.Stats().Count != 1 {
		t.Fatalf("fresh entry should survive a forced sweep")
	}
}

func TestDeviceApps(t *testing.T) {
	ts := newTestServer(t)
	if code := getJSON(t, ts.srv.URL+"/v1/devices/ghost/apps", nil); code != http.StatusNotFound {
		t.Fatalf("unknown device code=%d", code)
	}

	ts.registry.SetApps("phone-1", 1, []string{"net.one97.paytm", "com.google.android.apps.nfc.payment"})
	var body struct {
		Installed []domain.PaymentApp `json:"installed"`
		Status    map[string]bool     `json:"status"`
		Preferred domain.PaymentApp   `json:"preferred"`
	}
	if code := getJSON(t, ts.srv.URL+"/v1/devices/phone-1/apps", &body); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if len(body.Installed) != 2 || body.Preferred.DisplayName != "Google Pay" || len(body.Status) != 10 {
		t.Fatalf("body=%+v", body)
	}

	ts.registry.SetOnline("phone-1", false)
	if code := getJSON(t, ts.srv.URL+"/v1/devices/phone-1/apps", nil); code != http.StatusConflict {
		t.Fatalf("offline device code=%d", code)
	}
}

func TestListDevices(t *testing.T) {
	ts := newTestServer(t)
	ts.registry.SetApps("phone-b", 1, []string{"net.one97.paytm"})
	ts.registry.SetApps("phone-a", 1, []string{"com.phonepe.app"})
	ts.registry.SetApps("phone-c", 1, nil)
	ts.registry.SetOnline("phone-c", false)

	var body struct {
		Devices []device.State `json:"devices"`
	}
	if code := getJSON(t, ts.srv.URL+"/v1/devices", &body); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if len(body.Devices) != 2 || body.Devices[0].DeviceID != "phone-a" || body.Devices[1].DeviceID != "phone-b" {
		t.Fatalf("devices=%+v", body.Devices)
	}
	if len(body.Devices[0].Packages) != 1 || body.Devices[0].Packages[0] != "com.phonepe.app" {
		t.Fatalf("packages=%v", body.Devices[0].Packages)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	var created struct {
		SessionID string `json:"session_id"`
	}
	resp, err := http.Post(ts.srv.URL+"/v1/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	_ = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || created.SessionID == "" {
		t.Fatalf("code=%d body=%+v", resp.StatusCode, created)
	}

	ts.turn(t, domain.TurnRequest{SessionID: created.SessionID, Text: "pay 10 to a@ybl"})
	req, _ := http.NewRequest(http.MethodDelete, ts.srv.URL+"/v1/sessions/"+created.SessionID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete code=%d", resp.StatusCode)
	}
	if ts.vault.Stats().Count != 0 {
		t.Fatalf("ending a session should drop its snapshot")
	}
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete code=%d", resp.StatusCode)
	}
}

func TestVoiceWebsocket(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/voice?session_id=v-1&device_id=phone-1"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	var ev domain.VoiceEvent
	if err := ws.ReadJSON(&ev); err != nil || ev.Type != "ready" || ev.Text != "v-1" {
		t.Fatalf("ready event=%+v err=%v", ev, err)
	}

	exchange := func(in domain.VoiceEvent) domain.VoiceEvent {
		t.Helper()
		if err := ws.WriteJSON(in); err != nil {
			t.Fatalf("write: %v", err)
		}
		var out domain.VoiceEvent
		if err := ws.ReadJSON(&out); err != nil {
			t.Fatalf("read: %v", err)
		}
		return out
	}

	if out := exchange(domain.VoiceEvent{Type: "utterance", Text: "help"}); out.Type != "reply" || !strings.Contains(out.Text, "UPI payments") {
		t.Fatalf("reply=%+v", out)
	}
	if out := exchange(domain.VoiceEvent{Type: "recognition_error", Reason: "busy"}); !strings.Contains(out.Text, "busy") {
		t.Fatalf("reply=%+v", out)
	}
	if out := exchange(domain.VoiceEvent{Type: "dance"}); out.Type != "error" {
		t.Fatalf("unknown event should be rejected, got %+v", out)
	}
}

func TestVoiceWebsocketKeepsJoinedSession(t *testing.T) {
	ts := newTestServer(t)
	ts.turn(t, domain.TurnRequest{SessionID: "h-1", Text: "pay 10 to a@ybl"})

	base := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/voice"
	joined, _, err := websocket.DefaultDialer.Dial(base+"?session_id=h-1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	var ev domain.VoiceEvent
	if err := joined.ReadJSON(&ev); err != nil || ev.Text != "h-1" {
		t.Fatalf("ready event=%+v err=%v", ev, err)
	}
	joined.Close()

	own, _, err := websocket.DefaultDialer.Dial(base, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := own.ReadJSON(&ev); err != nil || ev.Text == "" || ev.Text == "h-1" {
		t.Fatalf("ready event=%+v err=%v", ev, err)
	}
	if err := own.WriteJSON(domain.VoiceEvent{Type: "utterance", Text: "pay 20 to b@ybl"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := own.ReadJSON(&ev); err != nil || ev.Type != "reply" {
		t.Fatalf("reply=%+v err=%v", ev, err)
	}
	if n := ts.vault.Stats().Count; n != 2 {
		t.Fatalf("vault entries=%d, want 2", n)
	}
	own.Close()

	// the socket-created session is dropped with its snapshot once the handler exits
	deadline := time.Now().Add(2 * time.Second)
	for ts.vault.Stats().Count != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("vault entries=%d, want 1 after the socket closed", ts.vault.Stats().Count)
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, out := ts.turn(t, domain.TurnRequest{SessionID: "h-1", Text: "help"})
	if out.State != string(domain.StateAwaitingConfirmation) {
		t.Fatalf("joined session state=%q, want awaiting confirmation", out.State)
	}
}
