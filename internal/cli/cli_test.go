package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicepay/internal/domain"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		serverFlag, formatFlag = "", "text"
		chatApps, chatFailPayments = []string{"phonepe", "paytm"}, false
	})
	err := RootCmd.Execute()
	return out.String(), err
}

func TestChatHappyPath(t *testing.T) {
	out, err := execute(t, "pay 500 rupees to john@paytm\nyes\nexit\n", "chat", "--apps", "paytm,phonepe")
	if err != nil {
		t.Fatalf("chat err=%v", err)
	}
	for _, want := range []string{
		"I'll send ₹500 to john@paytm.",
		"[device] opening com.phonepe.app with upi://pay?am=500.00&cu=INR&pa=john%40paytm&tn=VoicePay+Transaction",
		"Payment of ₹500 initiated through PhonePe.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestChatFailingPayments(t *testing.T) {
	out, err := execute(t, "pay 20 to a@ybl\nyes\n", "chat", "--fail-payments")
	if err != nil {
		t.Fatalf("chat err=%v", err)
	}
	if !strings.Contains(out, "Payment initiation failed.") {
		t.Fatalf("output=%s", out)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{arg: "john@paytm", want: "is a valid UPI ID"},
		{arg: "john@paytn", want: "did you mean john@paytm?"},
		{arg: "not-a-vpa", want: "is not a valid UPI ID", wantErr: true},
	}
	for _, tc := range tests {
		out, err := execute(t, "", "validate", tc.arg)
		if (err != nil) != tc.wantErr || !strings.Contains(out, tc.want) {
			t.Fatalf("validate %s: out=%q err=%v", tc.arg, out, err)
		}
	}
}

func TestRemoteCommands(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/vault/audit", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"findings": []string{"All security checks passed"}})
	})
	mux.HandleFunc("/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "3" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"payments": []domain.PaymentRecord{
			{RequestID: "r1", Recipient: "jo**@paytm", AmountPaise: 50025, AppID: "com.phonepe.app", Outcome: "dispatched", CreatedAt: "2026-03-01T10:00:00Z"},
		}})
	})
	mux.HandleFunc("/v1/vault/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "down for maintenance"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := execute(t, "", "audit", "--server", srv.URL)
	if err != nil || !strings.Contains(out, "All security checks passed") {
		t.Fatalf("audit out=%q err=%v", out, err)
	}
	out, err = execute(t, "", "payments", "--server", srv.URL, "-n", "3")
	if err != nil || !strings.Contains(out, "₹500.25") || !strings.Contains(out, "jo**@paytm") {
		t.Fatalf("payments out=%q err=%v", out, err)
	}
	_, err = execute(t, "", "stats", "--server", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "down for maintenance") {
		t.Fatalf("stats err=%v, want server error", err)
	}
}
