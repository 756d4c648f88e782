package dialogue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"voicepay/internal/domain"
	"voicepay/internal/slots"
)

// execute dispatches the confirmed payment. The vault snapshot is the source
// of truth; the session's transaction is dropped whatever the outcome.
func (e *Engine) execute(ctx context.Context, sess *session) string {
	key := sess.snapshotKey
	defer e.clearTransaction(sess)

	raw, ok := e.vault.GetWithExpiryCheck(key)
	if !ok {
		e.logger.Info("payment snapshot expired before confirmation", "session_id", sess.id)
		return msgSnapshotExpired
	}
	tx, ok := raw.(domain.TransactionState)
	if !ok {
		e.logger.Error("unexpected payment snapshot type", "session_id", sess.id, "key", key)
		return msgInternalError
	}
	if tx.Amount == nil || *tx.Amount <= 0 {
		return msgPaymentNoAmount
	}
	if tx.RecipientID == "" {
		return msgPaymentNoRecipient
	}

	req := domain.PaymentRequest{
		RequestID:   uuid.NewString(),
		RecipientID: tx.RecipientID,
		Amount:      *tx.Amount,
		Description: tx.Description,
	}
	if req.Description == "" {
		req.Description = defaultDescription
	}
	rec := domain.PaymentRecord{
		RequestID:   req.RequestID,
		SessionID:   sess.id,
		DeviceID:    sess.deviceID,
		Recipient:   slots.MaskVPA(req.RecipientID),
		AmountPaise: req.Amount.Paise(),
		CreatedAt:   e.cfg.Now().UTC().Format(time.RFC3339),
	}

	apps, err := e.installedApps(ctx, sess.deviceID)
	if err == nil && len(apps) == 0 {
		err = ErrNoPaymentApps
	}
	if errors.Is(err, ErrNoPaymentApps) {
		rec.Outcome = domain.OutcomeNoApps
		e.record(ctx, rec)
		return msgPaymentNoApps
	}
	if err != nil {
		e.logger.Warn("app discovery failed", "session_id", sess.id, "device_id", sess.deviceID, "error", err)
		rec.Outcome = domain.OutcomeFailed
		rec.Error = err.Error()
		e.record(ctx, rec)
		return msgPaymentFailed
	}

	app, _ := e.catalog.Preferred(apps)
	req.AppID = app.ID
	rec.AppID = app.ID

	if e.payments == nil {
		err = errors.New("no payment requester configured")
	} else {
		err = e.payments.InitiatePayment(ctx, sess.deviceID, req)
	}
	if err != nil {
		e.logger.Warn("payment initiation failed",
			"session_id", sess.id,
			"request_id", req.RequestID,
			"app_id", app.ID,
			"error", err,
		)
		rec.Outcome = domain.OutcomeFailed
		rec.Error = err.Error()
		e.record(ctx, rec)
		return msgPaymentFailed
	}

	rec.Outcome = domain.OutcomeDispatched
	e.record(ctx, rec)
	e.vault.PutRegular("receipt_"+req.RequestID, domain.Receipt{
		RequestID:    req.RequestID,
		SessionID:    sess.id,
		AppID:        app.ID,
		AppName:      app.DisplayName,
		DispatchedAt: rec.CreatedAt,
	})
	e.logger.Info("payment dispatched",
		"session_id", sess.id,
		"request_id", req.RequestID,
		"app_id", app.ID,
		"amount", req.Amount.String(),
		"recipient", rec.Recipient,
	)
	return paymentStartedMessage(req.Amount, app)
}

func (e *Engine) record(ctx context.Context, rec domain.PaymentRecord) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordPayment(ctx, rec); err != nil {
		e.logger.Warn("record payment failed", "request_id", rec.RequestID, "error", err)
	}
}
