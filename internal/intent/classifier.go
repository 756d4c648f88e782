package intent

import (
	"strings"

	"voicepay/internal/domain"
)

type NormalizedUtterance string

func Normalize(raw string) NormalizedUtterance {
	return NormalizedUtterance(strings.ToLower(strings.TrimSpace(raw)))
}

type rule struct {
	intent   domain.Intent
	keywords []string
}

var (
	affirmKeywords = []string{"yes", "confirm", "proceed", "go ahead", "correct", "right"}
	denyKeywords   = []string{"no", "cancel", "stop", "wrong", "incorrect"}
)

// Order matters: the first rule with a matching keyword wins, so "cancel"
// lands on confirmation (deny) before the cancel rule is reached.
var rules = []rule{
	{intent: domain.IntentGreeting, keywords: []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}},
	{intent: domain.IntentPayment, keywords: []string{"pay", "send", "transfer", "give", "payment"}},
	{intent: domain.IntentConfirmation, keywords: append(append([]string{}, affirmKeywords...), denyKeywords...)},
	{intent: domain.IntentCancel, keywords: []string{"cancel", "stop", "abort", "nevermind", "forget it"}},
	{intent: domain.IntentBalanceInquiry, keywords: []string{"balance", "check balance", "how much", "account balance"}},
	{intent: domain.IntentHelp, keywords: []string{"help", "what can you do", "commands", "how to"}},
	{intent: domain.IntentListApps, keywords: []string{"upi apps", "payment apps", "installed apps", "available apps"}},
}

// Classify maps an utterance to exactly one intent. Matching is plain
// substring containment.
func Classify(u NormalizedUtterance) domain.Intent {
	for _, r := range rules {
		if containsAny(string(u), r.keywords) {
			return r.intent
		}
	}
	return domain.IntentUnknown
}

// IsAffirmative reports whether a confirmation turn approves the pending
// payment. Anything else on a confirmation turn is a denial.
func IsAffirmative(u NormalizedUtterance) bool {
	return containsAny(string(u), []string{"yes", "confirm", "proceed"})
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
