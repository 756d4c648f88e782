package domain

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{in: "500", want: 50000},
		{in: "500.25", want: 50025},
		{in: "0.05", want: 5},
		{in: "500.5", wantErr: true},
		{in: "", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got=%d", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseAmount(%q)=%d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmountOutOfRange(t *testing.T) {
	for _, in := range []string{"99999999999999999999", "92233720368547758.08"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrAmountOutOfRange) {
			t.Fatalf("ParseAmount(%q) err=%v, want ErrAmountOutOfRange", in, err)
		}
	}
	if _, err := ParseAmount("12x"); errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("malformed amount reported as out of range: %v", err)
	}
}

func TestAmountFormatting(t *testing.T) {
	if got := Amount(50000).String(); got != "500" {
		t.Fatalf("String()=%s, want 500", got)
	}
	if got := Amount(50025).String(); got != "500.25" {
		t.Fatalf("String()=%s, want 500.25", got)
	}
	if got := Amount(50000).Decimal(); got != "500.00" {
		t.Fatalf("Decimal()=%s, want 500.00", got)
	}
}

func TestBuildUPIURI(t *testing.T) {
	got := BuildUPIURI(PaymentRequest{
		RecipientID: "john@paytm",
		Amount:      50000,
		Description: "VoicePay Transaction",
	})
	want := "upi://pay?am=500.00&cu=INR&pa=john%40paytm&tn=VoicePay+Transaction"
	if got != want {
		t.Fatalf("BuildUPIURI()=%s, want %s", got, want)
	}
}

func TestIntentsCoverEveryName(t *testing.T) {
	all := Intents()
	if len(all) != int(IntentCount) {
		t.Fatalf("len(Intents())=%d, want %d", len(all), IntentCount)
	}
	for _, in := range all {
		if in.String() == "" || in.String() == "invalid" {
			t.Fatalf("intent %d has no name", in)
		}
	}
	if IntentCount.String() != "invalid" {
		t.Fatalf("IntentCount should not have a name")
	}
}

func TestTransactionComplete(t *testing.T) {
	amount := Amount(500)
	tests := []struct {
		tx   TransactionState
		want bool
	}{
		{tx: TransactionState{}, want: false},
		{tx: TransactionState{Amount: &amount}, want: false},
		{tx: TransactionState{RecipientID: "a@ybl"}, want: false},
		{tx: TransactionState{Amount: &amount, RecipientID: "a@ybl"}, want: true},
	}
	for _, tt := range tests {
		if got := tt.tx.Complete(); got != tt.want {
			t.Fatalf("Complete(%+v)=%v, want %v", tt.tx, got, tt.want)
		}
	}
}
