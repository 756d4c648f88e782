package dialogue

import (
	"context"
	"errors"

	"voicepay/internal/domain"
)

var ErrNoPaymentApps = errors.New("no payment apps installed")

// AppDiscovery reports which payment apps a device has installed.
type AppDiscovery interface {
	InstalledPaymentApps(ctx context.Context, deviceID string) ([]domain.PaymentApp, error)
	IsInstalled(ctx context.Context, deviceID, appID string) (bool, error)
}

// PaymentRequester hands a payment to an app on the device. A nil error means
// the app was opened with the request, not that money moved.
type PaymentRequester interface {
	InitiatePayment(ctx context.Context, deviceID string, req domain.PaymentRequest) error
}

// Recorder keeps an audit trail of payment dispatch attempts.
type Recorder interface {
	RecordPayment(ctx context.Context, rec domain.PaymentRecord) error
}

// Speaker reads a reply aloud on the device.
type Speaker interface {
	Speak(ctx context.Context, deviceID, sessionID, text string) error
}
