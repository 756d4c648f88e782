// Package dialogue turns recognized utterances into replies: it classifies
// each turn, collects payment details, asks for confirmation and hands the
// confirmed payment to an app on the user's device.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"voicepay/internal/catalog"
	"voicepay/internal/domain"
	"voicepay/internal/intent"
	"voicepay/internal/slots"
	"voicepay/internal/vault"
)

const (
	DefaultMaxAmount      = domain.Amount(50000 * 100)
	DefaultSessionTimeout = time.Hour
	DefaultVPAHandle      = "ybl"
)

type Config struct {
	MaxAmount      domain.Amount
	SessionTimeout time.Duration
	DefaultHandle  string
	Now            func() time.Time
}

type Deps struct {
	Vault     *vault.Store
	Catalog   *catalog.Catalog
	Discovery AppDiscovery
	Payments  PaymentRequester
	Recorder  Recorder
	Greeter   Greeter
}

type handlerFunc func(ctx context.Context, sess *session, u intent.NormalizedUtterance) string

type Engine struct {
	cfg       Config
	vault     *vault.Store
	catalog   *catalog.Catalog
	discovery AppDiscovery
	payments  PaymentRequester
	recorder  Recorder
	greeter   Greeter
	logger    *slog.Logger

	sessions *sessionRegistry
	handlers [domain.IntentCount]handlerFunc
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if cfg.MaxAmount <= 0 {
		cfg.MaxAmount = DefaultMaxAmount
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if strings.TrimSpace(cfg.DefaultHandle) == "" {
		cfg.DefaultHandle = DefaultVPAHandle
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if deps.Greeter == nil {
		deps.Greeter = &RotatingGreeter{}
	}
	if deps.Vault == nil {
		deps.Vault = vault.New(vault.Config{Now: cfg.Now}, logger)
	}

	e := &Engine{
		cfg:       cfg,
		vault:     deps.Vault,
		catalog:   deps.Catalog,
		discovery: deps.Discovery,
		payments:  deps.Payments,
		recorder:  deps.Recorder,
		greeter:   deps.Greeter,
		logger:    logger,
		sessions:  newSessionRegistry(),
	}
	e.handlers = [domain.IntentCount]handlerFunc{
		domain.IntentGreeting:       e.handleGreeting,
		domain.IntentPayment:        e.handlePayment,
		domain.IntentConfirmation:   e.handleConfirmation,
		domain.IntentCancel:         e.handleCancel,
		domain.IntentBalanceInquiry: e.handleBalance,
		domain.IntentHelp:           e.handleHelp,
		domain.IntentListApps:       e.handleListApps,
		domain.IntentUnknown:        e.handleUnknown,
	}
	return e
}

// HandleTurn answers one finalized utterance. It never fails: faults inside a
// turn are logged and answered with a generic apology.
func (e *Engine) HandleTurn(ctx context.Context, turn domain.Turn) (reply string) {
	now := e.cfg.Now()
	var sess *session
	for {
		sess = e.sessions.getOrCreate(turn.SessionID, now)
		sess.mu.Lock()
		if !sess.ended {
			break
		}
		// ended while this turn waited for the lock; the registry already holds a fresh one
		sess.mu.Unlock()
	}
	defer sess.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("turn panicked", "session_id", turn.SessionID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			reply = msgInternalError
		}
	}()

	if turn.DeviceID != "" {
		sess.deviceID = turn.DeviceID
	}
	sess.lastActive = now

	if now.Sub(sess.startedAt) > e.cfg.SessionTimeout {
		e.resetSession(sess, now)
		e.logger.Info("session expired", "session_id", sess.id)
		return msgSessionExpired
	}

	u := intent.Normalize(turn.Text)
	in := intent.Classify(u)
	e.logger.Debug("turn classified", "session_id", sess.id, "intent", in.String())
	return e.handlers[in](ctx, sess, u)
}

// EndSession drops a session together with any transaction it holds.
func (e *Engine) EndSession(sessionID string) bool {
	sess, ok := e.sessions.remove(sessionID)
	if !ok {
		return false
	}
	sess.mu.Lock()
	e.endLocked(sess)
	sess.mu.Unlock()
	return true
}

// SessionCount reports how many sessions are currently tracked.
func (e *Engine) SessionCount() int {
	return e.sessions.len()
}

func (e *Engine) SessionState(sessionID string) domain.DialogueState {
	sess, ok := e.sessions.get(sessionID)
	if !ok {
		return domain.StateIdle
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	// a pending payment whose snapshot has expired can no longer be confirmed
	if sess.state() == domain.StateAwaitingConfirmation && !e.vault.HasFresh(sess.snapshotKey) {
		return domain.StateIdle
	}
	return sess.state()
}

// PruneSessions drops sessions idle for longer than the session timeout and
// returns how many were removed.
func (e *Engine) PruneSessions() int {
	now := e.cfg.Now()
	removed := 0
	for _, sess := range e.sessions.snapshot() {
		sess.mu.Lock()
		idle := !sess.ended && now.Sub(sess.lastActive) > e.cfg.SessionTimeout
		if idle && e.sessions.removeIf(sess.id, sess) {
			e.endLocked(sess)
			removed++
		}
		sess.mu.Unlock()
	}
	return removed
}

// RunJanitor prunes idle sessions on every tick until ctx is done.
func (e *Engine) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = e.cfg.SessionTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.PruneSessions(); n > 0 {
				e.logger.Info("idle sessions pruned", "count", n)
			}
		}
	}
}

// endLocked marks a session already removed from the registry as ended.
func (e *Engine) endLocked(sess *session) {
	sess.ended = true
	e.clearTransaction(sess)
}

func (e *Engine) resetSession(sess *session, now time.Time) {
	e.clearTransaction(sess)
	sess.startedAt = now
}

func (e *Engine) clearTransaction(sess *session) {
	sess.tx = nil
	if sess.snapshotKey != "" {
		e.vault.Remove(sess.snapshotKey)
		sess.snapshotKey = ""
	}
}

func (e *Engine) handleGreeting(_ context.Context, _ *session, _ intent.NormalizedUtterance) string {
	return e.greeter.Pick(greetings)
}

func (e *Engine) handlePayment(_ context.Context, sess *session, u intent.NormalizedUtterance) string {
	amount, hasAmount := slots.ExtractAmount(u)
	if hasAmount && amount <= 0 {
		hasAmount = false
	}
	if hasAmount && amount > e.cfg.MaxAmount {
		e.logger.Info("payment above ceiling refused", "session_id", sess.id, "amount", amount.String())
		return ceilingMessage(e.cfg.MaxAmount)
	}
	recipient, _ := slots.ExtractRecipient(u, e.cfg.DefaultHandle)
	description, _ := slots.ExtractDescription(u)

	tx := domain.TransactionState{RecipientID: recipient, Description: description}
	if hasAmount {
		tx.Amount = &amount
	}
	// An unconfirmed draft is completed by follow-up turns; a pending one is replaced.
	if prev := sess.tx; prev != nil && !prev.ConfirmationPending {
		if tx.Amount == nil {
			tx.Amount = prev.Amount
		}
		if tx.RecipientID == "" {
			tx.RecipientID = prev.RecipientID
		}
		if tx.Description == "" {
			tx.Description = prev.Description
		}
	}
	e.clearTransaction(sess)
	sess.tx = &tx

	if !tx.Complete() {
		if tx.Amount == nil {
			return msgMissingAmount
		}
		return msgMissingRecipient
	}

	tx.ConfirmationPending = true
	sess.snapshotKey = "transaction_" + ulid.Make().String()
	e.vault.Put(sess.snapshotKey, tx)

	suggestion, _ := slots.SuggestHandle(tx.RecipientID)
	e.logger.Info("payment awaiting confirmation",
		"session_id", sess.id,
		"amount", tx.Amount.String(),
		"recipient", slots.MaskVPA(tx.RecipientID),
	)
	return confirmationMessage(*tx.Amount, tx.RecipientID, tx.Description, suggestion)
}

func (e *Engine) handleConfirmation(ctx context.Context, sess *session, u intent.NormalizedUtterance) string {
	if sess.tx == nil || !sess.tx.ConfirmationPending {
		return msgNoPending
	}
	if intent.IsAffirmative(u) {
		return e.execute(ctx, sess)
	}
	e.clearTransaction(sess)
	e.logger.Info("payment declined", "session_id", sess.id)
	return msgDenied
}

func (e *Engine) handleCancel(_ context.Context, sess *session, _ intent.NormalizedUtterance) string {
	e.clearTransaction(sess)
	return msgCancelled
}

func (e *Engine) handleBalance(ctx context.Context, sess *session, _ intent.NormalizedUtterance) string {
	apps, err := e.installedApps(ctx, sess.deviceID)
	if err != nil {
		e.logger.Warn("app discovery failed", "session_id", sess.id, "device_id", sess.deviceID, "error", err)
		return msgDiscoveryFailed
	}
	if len(apps) == 0 {
		return msgBalanceNoApps
	}
	return balanceMessage(apps[0])
}

func (e *Engine) handleHelp(_ context.Context, _ *session, _ intent.NormalizedUtterance) string {
	return helpText
}

func (e *Engine) handleListApps(ctx context.Context, sess *session, _ intent.NormalizedUtterance) string {
	apps, err := e.installedApps(ctx, sess.deviceID)
	if err != nil {
		e.logger.Warn("app discovery failed", "session_id", sess.id, "device_id", sess.deviceID, "error", err)
		return msgDiscoveryFailed
	}
	if len(apps) == 0 {
		return msgNoAppsInstalled
	}
	return appListMessage(apps)
}

func (e *Engine) handleUnknown(_ context.Context, _ *session, _ intent.NormalizedUtterance) string {
	return msgUnknown
}

func (e *Engine) installedApps(ctx context.Context, deviceID string) ([]domain.PaymentApp, error) {
	if e.discovery == nil {
		return nil, nil
	}
	return e.discovery.InstalledPaymentApps(ctx, deviceID)
}
