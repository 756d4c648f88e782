package domain

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

type Intent int

const (
	IntentGreeting Intent = iota
	IntentPayment
	IntentConfirmation
	IntentCancel
	IntentBalanceInquiry
	IntentHelp
	IntentListApps
	IntentUnknown

	IntentCount
)

var intentNames = [IntentCount]string{
	IntentGreeting:       "greeting",
	IntentPayment:        "payment",
	IntentConfirmation:   "confirmation",
	IntentCancel:         "cancel",
	IntentBalanceInquiry: "balance_inquiry",
	IntentHelp:           "help",
	IntentListApps:       "list_apps",
	IntentUnknown:        "unknown",
}

func (i Intent) String() string {
	if i < 0 || i >= IntentCount {
		return "invalid"
	}
	return intentNames[i]
}

// Intents returns every intent in classification precedence order.
func Intents() []Intent {
	out := make([]Intent, 0, IntentCount)
	for i := IntentGreeting; i < IntentCount; i++ {
		out = append(out, i)
	}
	return out
}

// Amount is a rupee amount held in paise.
type Amount int64

// MaxAmount stands in for spoken amounts too large to hold in paise.
const MaxAmount = Amount(math.MaxInt64)

var ErrAmountOutOfRange = errors.New("amount out of range")

func AmountFromPaise(p int64) Amount {
	return Amount(p)
}

// ParseAmount accepts "500" or "500.25".
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		return 0, fmt.Errorf("invalid amount: %q", s)
	}
	rupees, err := strconv.ParseInt(whole, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %q", ErrAmountOutOfRange, s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	var paise int64
	if hasFrac {
		if len(frac) != 2 {
			return 0, fmt.Errorf("invalid amount %q: want two fractional digits", s)
		}
		paise, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
	}
	if rupees > (1<<63-1-paise)/100 {
		return 0, fmt.Errorf("%w: %q", ErrAmountOutOfRange, s)
	}
	return Amount(rupees*100 + paise), nil
}

func (a Amount) Paise() int64 {
	return int64(a)
}

// String renders whole rupees without a fraction.
func (a Amount) String() string {
	if a%100 == 0 {
		return strconv.FormatInt(int64(a)/100, 10)
	}
	return a.Decimal()
}

// Decimal always renders two fractional digits, as UPI expects.
func (a Amount) Decimal() string {
	return fmt.Sprintf("%d.%02d", int64(a)/100, int64(a)%100)
}

type TransactionState struct {
	Amount              *Amount `json:"amount,omitempty"`
	RecipientID         string  `json:"recipient_id,omitempty"`
	RecipientName       string  `json:"recipient_name,omitempty"`
	Description         string  `json:"description,omitempty"`
	ConfirmationPending bool    `json:"confirmation_pending"`
}

func (t TransactionState) Complete() bool {
	return t.Amount != nil && t.RecipientID != ""
}

type DialogueState string

const (
	StateIdle                 DialogueState = "idle"
	StateAwaitingConfirmation DialogueState = "awaiting_confirmation"
)

type Turn struct {
	SessionID string
	DeviceID  string
	Text      string
}

type RecognitionFailure string

const (
	RecognitionNoMatch        RecognitionFailure = "no_match"
	RecognitionSpeechTimeout  RecognitionFailure = "speech_timeout"
	RecognitionNetwork        RecognitionFailure = "network"
	RecognitionNetworkTimeout RecognitionFailure = "network_timeout"
	RecognitionBusy           RecognitionFailure = "busy"
	RecognitionAudio          RecognitionFailure = "audio"
	RecognitionPermissions    RecognitionFailure = "permissions"
	RecognitionServer         RecognitionFailure = "server"
)

type PaymentApp struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

type PaymentRequest struct {
	RequestID   string `json:"request_id"`
	RecipientID string `json:"recipient_id"`
	Amount      Amount `json:"amount_paise"`
	Description string `json:"description"`
	AppID       string `json:"app_id"`
}

// BuildUPIURI renders the upi://pay deep link handed to the payment app.
func BuildUPIURI(req PaymentRequest) string {
	q := url.Values{}
	q.Set("pa", req.RecipientID)
	q.Set("am", req.Amount.Decimal())
	q.Set("cu", "INR")
	q.Set("tn", req.Description)
	return "upi://pay?" + q.Encode()
}

type Receipt struct {
	RequestID    string `json:"request_id"`
	SessionID    string `json:"session_id"`
	AppID        string `json:"app_id"`
	AppName      string `json:"app_name"`
	DispatchedAt string `json:"dispatched_at"`
}

type PaymentRecord struct {
	RequestID   string `json:"request_id"`
	SessionID   string `json:"session_id"`
	DeviceID    string `json:"device_id"`
	Recipient   string `json:"recipient"`
	AmountPaise int64  `json:"amount_paise"`
	AppID       string `json:"app_id"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
}

const (
	OutcomeDispatched = "dispatched"
	OutcomeFailed     = "failed"
	OutcomeNoApps     = "no_apps"
)

// HTTP payloads

type TurnRequest struct {
	SessionID string `json:"session_id"`
	DeviceID  string `json:"device_id"`
	Text      string `json:"text,omitempty"`
	Failure   string `json:"failure,omitempty"`
}

type TurnResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	State     string `json:"state"`
}

type VoiceEvent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// MQTT payloads

type AppReport struct {
	DeviceID string   `json:"device_id"`
	Version  int64    `json:"version,omitempty"`
	Packages []string `json:"packages"`
}

type InvokeRequest struct {
	RequestID string         `json:"request_id"`
	Action    string         `json:"action"`
	Payment   PaymentRequest `json:"payment"`
	UPIURI    string         `json:"upi_uri"`
}

type InvokeResult struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Output    string `json:"output"`
	Error     string `json:"error,omitempty"`
}

type SpeakPayload struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	TS        string `json:"ts"`
}

const ActionInitiatePayment = "initiate_payment"
