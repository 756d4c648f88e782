package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"voicepay/internal/domain"
)

type openedPayment struct {
	RequestID string    `json:"request_id"`
	AppID     string    `json:"app_id"`
	UPIURI    string    `json:"upi_uri"`
	At        time.Time `json:"at"`
}

type spokenLine struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// phoneState is what the simulated phone shows: installed apps, the payment
// apps it was asked to open and the replies it read aloud.
type phoneState struct {
	mu           sync.RWMutex
	packages     []string
	appsVersion  int64
	failPayments bool
	opened       []openedPayment
	spoken       []spokenLine
	logs         []string
}

func newPhoneState(packages []string, version int64, failPayments bool) *phoneState {
	return &phoneState{
		packages:     append([]string{}, packages...),
		appsVersion:  version,
		failPayments: failPayments,
	}
}

func (s *phoneState) appReport(deviceID string) domain.AppReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.AppReport{
		DeviceID: deviceID,
		Version:  s.appsVersion,
		Packages: append([]string{}, s.packages...),
	}
}

// setPackages replaces the installed apps and bumps the report version.
func (s *phoneState) setPackages(packages []string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages = append([]string{}, packages...)
	s.appsVersion++
	s.appendLogLocked(fmt.Sprintf("installed apps changed: %s", strings.Join(packages, ", ")))
	return s.appsVersion
}

func (s *phoneState) isInstalled(appID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packages {
		if p == appID {
			return true
		}
	}
	return false
}

func (s *phoneState) handleInvoke(req domain.InvokeRequest) domain.InvokeResult {
	result := domain.InvokeResult{RequestID: req.RequestID}
	if req.Action != domain.ActionInitiatePayment {
		result.Error = "unsupported action: " + req.Action
		return result
	}
	if !strings.HasPrefix(req.UPIURI, "upi://pay?") {
		result.Error = "invalid upi uri"
		return result
	}
	if !s.isInstalled(req.Payment.AppID) {
		result.Error = fmt.Sprintf("app %s is not installed", req.Payment.AppID)
		return result
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPayments {
		s.appendLogLocked(fmt.Sprintf("payment app %s failed to open", req.Payment.AppID))
		result.Error = "payment app did not open"
		return result
	}
	s.opened = append(s.opened, openedPayment{
		RequestID: req.RequestID,
		AppID:     req.Payment.AppID,
		UPIURI:    req.UPIURI,
		At:        time.Now(),
	})
	s.appendLogLocked(fmt.Sprintf("opened %s with %s", req.Payment.AppID, req.UPIURI))
	result.OK = true
	result.Output = "opened " + req.Payment.AppID
	return result
}

func (s *phoneState) speak(p domain.SpeakPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, spokenLine{SessionID: p.SessionID, Text: p.Text, At: time.Now()})
	s.appendLogLocked("speak: " + p.Text)
}

func (s *phoneState) snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"packages":      append([]string{}, s.packages...),
		"apps_version":  s.appsVersion,
		"fail_payments": s.failPayments,
		"opened":        append([]openedPayment{}, s.opened...),
		"spoken":        append([]spokenLine{}, s.spoken...),
		"logs":          append([]string{}, s.logs...),
	}
}

func (s *phoneState) appendLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLogLocked(line)
}

func (s *phoneState) appendLogLocked(line string) {
	s.logs = append(s.logs, time.Now().Format(time.RFC3339)+" "+line)
	if len(s.logs) > 200 {
		s.logs = s.logs[len(s.logs)-200:]
	}
}
